package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/soltrace/soltrace/internal/solana"
)

// ---------------------------------------------------------------------------
// Contract Auditor — detects dangerous patterns via program account analysis
// ---------------------------------------------------------------------------

// Program is one entry of the audited DeFi program registry.
type Program struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Registry lists the Solana DeFi programs the scanner and daemon audit.
var Registry = []Program{
	{"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4", "Jupiter v6"},
	{"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc", "Orca Whirlpool"},
	{"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK", "Raydium CPMM"},
	{"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8", "Raydium AMM v4"},
	{"MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA", "Marginfi v2"},
	{"So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo", "Solend"},
	{"SSwpkEEcbUqx4vtoEByFjSkhKdCT862DNVb52nZg1UZ", "Saber Stable Swap"},
	{"DjVE6JNiYqPL2QXyCUUh8rNjHrbz9hXHNYt99MQ59qw1", "Orca Token Swap"},
	{"PhoeNiXZ8ByJGLkxNfZRnkUfjvmuYqLR89jjFHGqdXY", "Phoenix DEX"},
	{"6m2CDdhRgxpH4WjvdzxAYbGxwdGUz5MziiL5jek2kBma", "Drift Protocol"},
	{"MangoCzJ36AjZyKwVj3VnYU4GTonjfVEnJmvvWaxLac", "Mango Markets v3"},
	{"srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX", "Serum DEX v3"},
	{"LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo", "Meteora DLMM"},
	{"FLUXubRmkEi2q6K3Y9kBPg9248ggaZVsoSFhtJHSrm1X", "FluxBeam"},
	{"MarBmsSgKXdrN1egZf5sqe1TMai9K1rChYNDJgjq7aD", "Marinade Finance"},
}

// Programs considered safe regardless of other findings.
var knownSafe = map[string]bool{
	solana.SystemProgram:       true,
	solana.TokenProgram:        true,
	solana.Token2022Program:    true,
	solana.AssociatedTokenProg: true,
}

// AccountSource is the slice of the data source the auditor needs.
type AccountSource interface {
	GetAccountInfo(ctx context.Context, address solana.Pubkey) (*solana.AccountInfo, error)
}

// Result is a single program audit.
type Result struct {
	ProgramID     string   `json:"program_id"`
	IsExecutable  bool     `json:"is_executable"`
	IsUpgradeable bool     `json:"is_upgradeable"`
	Owner         string   `json:"owner"`
	DataSize      int      `json:"data_size"`
	Findings      []string `json:"findings"`
	RiskScore     int      `json:"risk_score"` // 0-100
}

// Config configures the auditor.
type Config struct {
	PaceDelay time.Duration `yaml:"pace_delay"` // delay between registry audits
}

// DefaultConfig returns auditor defaults.
func DefaultConfig() Config {
	return Config{PaceDelay: 300 * time.Millisecond}
}

// Auditor inspects program accounts for risk signals.
type Auditor struct {
	config Config
	source AccountSource
}

// NewAuditor creates a contract auditor.
func NewAuditor(config Config, source AccountSource) *Auditor {
	return &Auditor{config: config, source: source}
}

// Audit inspects a program account and scores its risk. Risk contributions
// are additive and clamped to 100; known system programs score zero.
func (a *Auditor) Audit(ctx context.Context, programID string) (*Result, error) {
	info, err := a.source.GetAccountInfo(ctx, solana.Pubkey(programID))
	if err != nil {
		return nil, fmt.Errorf("audit: account lookup for %s: %w", programID, err)
	}

	result := &Result{
		ProgramID:    programID,
		IsExecutable: info.Executable,
		Owner:        info.Owner,
		DataSize:     info.DataSize,
	}

	risk := 0

	if !info.Executable {
		result.Findings = append(result.Findings, "not an executable program")
		risk += 20
	}

	result.IsUpgradeable = info.Owner == solana.BPFUpgradeableLoader
	if result.IsUpgradeable {
		result.Findings = append(result.Findings, "UPGRADEABLE: owner can change code at any time")
		risk += 30

		if info.DataSize > 0 && info.DataSize < 100 {
			result.Findings = append(result.Findings, "small program account, likely a proxy/pointer")
			risk += 10
		}
	}

	if knownSafe[programID] {
		result.Findings = []string{"known system program"}
		result.RiskScore = 0
		return result, nil
	}

	if info.DataSize > 0 && info.DataSize < 500 && info.Executable {
		result.Findings = append(result.Findings, "very small program, may be a proxy")
		risk += 15
	}
	if info.DataSize > 500_000 {
		result.Findings = append(result.Findings, "very large program (>500KB), more attack surface")
		risk += 10
	}

	if risk > 100 {
		risk = 100
	}
	result.RiskScore = risk
	return result, nil
}

// ScanEntry pairs a registry program with its audit.
type ScanEntry struct {
	Program Program `json:"program"`
	Result  Result  `json:"result"`
}

// ScanSummary aggregates a full registry scan.
type ScanSummary struct {
	Scanned     int     `json:"scanned"`
	Upgradeable int     `json:"upgradeable"`
	AverageRisk float64 `json:"average_risk"`
}

// ScanAll audits every registry program with pacing between lookups.
// Individual audit failures are logged and skipped; the scan never aborts.
func (a *Auditor) ScanAll(ctx context.Context) ([]ScanEntry, ScanSummary) {
	pace := a.config.PaceDelay
	if pace <= 0 {
		pace = DefaultConfig().PaceDelay
	}
	limiter := rate.NewLimiter(rate.Every(pace), 1)

	var entries []ScanEntry
	for _, prog := range Registry {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		result, err := a.Audit(ctx, prog.ID)
		if err != nil {
			log.Warn().Err(err).Str("program", prog.Name).Msg("audit: scan entry failed")
			continue
		}

		log.Info().
			Str("program", prog.Name).
			Int("risk", result.RiskScore).
			Bool("upgradeable", result.IsUpgradeable).
			Msg("audit: program scanned")

		entries = append(entries, ScanEntry{Program: prog, Result: *result})
	}

	summary := ScanSummary{Scanned: len(entries)}
	totalRisk := 0
	for _, e := range entries {
		if e.Result.IsUpgradeable {
			summary.Upgradeable++
		}
		totalRisk += e.Result.RiskScore
	}
	if len(entries) > 0 {
		summary.AverageRisk = float64(totalRisk) / float64(len(entries))
	}
	return entries, summary
}
