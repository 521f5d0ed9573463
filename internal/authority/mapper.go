package authority

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/soltrace/soltrace/internal/audit"
	"github.com/soltrace/soltrace/internal/solana"
)

// ---------------------------------------------------------------------------
// Authority Mapper — reveals WHO controls each upgradeable program
// ---------------------------------------------------------------------------

// Source is the data-source slice the mapper needs, satisfied by
// solana.Client.
type Source interface {
	GetAccountInfo(ctx context.Context, address solana.Pubkey) (*solana.AccountInfo, error)
	GetBalance(ctx context.Context, wallet solana.Pubkey) (decimal.Decimal, error)
	GetRecentSignatures(ctx context.Context, address solana.Pubkey, limit int) ([]solana.SignatureInfo, error)
}

// Info is the decoded control structure of one program.
type Info struct {
	ProgramID          string  `json:"program_id"`
	ProgramName        string  `json:"program_name"`
	ProgramDataAccount string  `json:"programdata_account,omitempty"`
	UpgradeAuthority   string  `json:"upgrade_authority,omitempty"` // empty = immutable
	AuthoritySOL       float64 `json:"authority_sol"`
	AuthorityTxCount   int     `json:"authority_tx_count"`
}

// Immutable reports whether the program has no upgrade authority.
func (i Info) Immutable() bool { return i.UpgradeAuthority == "" }

// Config configures the mapper.
type Config struct {
	PaceDelay time.Duration `yaml:"pace_delay"`
	TxSample  int           `yaml:"tx_sample"` // signatures sampled for activity count
}

// DefaultConfig returns mapper defaults.
func DefaultConfig() Config {
	return Config{PaceDelay: 400 * time.Millisecond, TxSample: 100}
}

// Mapper decodes upgrade authorities from on-chain account layouts.
type Mapper struct {
	config Config
	source Source
}

// NewMapper creates an authority mapper.
func NewMapper(config Config, source Source) *Mapper {
	return &Mapper{config: config, source: source}
}

// MapAuthority resolves a program's upgrade authority. Programs not owned
// by the BPF upgradeable loader are reported immutable. The BPF upgradeable
// layout: program account data = [4 bytes type][32 bytes programdata key];
// programdata account data = [4 bytes type][8 bytes slot][1 byte option]
// [32 bytes authority].
func (m *Mapper) MapAuthority(ctx context.Context, programID, name string) (*Info, error) {
	info := &Info{ProgramID: programID, ProgramName: name}

	account, err := m.source.GetAccountInfo(ctx, solana.Pubkey(programID))
	if err != nil {
		return nil, fmt.Errorf("authority: program account for %s: %w", programID, err)
	}

	if account.Owner != solana.BPFUpgradeableLoader {
		return info, nil
	}

	if len(account.Data) < 36 {
		return info, nil
	}
	info.ProgramDataAccount = base58Encode(account.Data[4:36])

	programData, err := m.source.GetAccountInfo(ctx, solana.Pubkey(info.ProgramDataAccount))
	if err != nil {
		log.Debug().Err(err).Str("program", name).Msg("authority: programdata lookup failed")
		return info, nil
	}

	if len(programData.Data) >= 45 && programData.Data[12] == 1 {
		info.UpgradeAuthority = base58Encode(programData.Data[13:45])
	}

	if info.UpgradeAuthority != "" {
		if bal, err := m.source.GetBalance(ctx, solana.Pubkey(info.UpgradeAuthority)); err == nil {
			info.AuthoritySOL = bal.InexactFloat64()
		}
		if sigs, err := m.source.GetRecentSignatures(ctx, solana.Pubkey(info.UpgradeAuthority), m.config.TxSample); err == nil {
			info.AuthorityTxCount = len(sigs)
		}
	}

	return info, nil
}

// MapAll resolves authorities for the whole program registry with pacing.
// Failures skip the program; the pass never aborts.
func (m *Mapper) MapAll(ctx context.Context) []Info {
	pace := m.config.PaceDelay
	if pace <= 0 {
		pace = DefaultConfig().PaceDelay
	}
	limiter := rate.NewLimiter(rate.Every(pace), 1)

	var results []Info
	for _, prog := range audit.Registry {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		info, err := m.MapAuthority(ctx, prog.ID, prog.Name)
		if err != nil {
			log.Warn().Err(err).Str("program", prog.Name).Msg("authority: mapping failed")
			continue
		}

		if info.Immutable() {
			log.Info().Str("program", prog.Name).Msg("authority: immutable")
		} else {
			log.Info().
				Str("program", prog.Name).
				Str("authority", info.UpgradeAuthority).
				Float64("authority_sol", info.AuthoritySOL).
				Msg("authority: mapped")
		}
		results = append(results, *info)
	}
	return results
}

// Concentration is one authority controlling one or more programs.
type Concentration struct {
	Authority string   `json:"authority"`
	Programs  []string `json:"programs"`
}

// PowerMap groups programs by upgrade authority. The ranking is
// deterministic: program count descending, authority ascending on ties.
// Immutable programs are excluded from the concentration list.
type PowerMap struct {
	Concentrations    []Concentration `json:"concentrations"`
	Immutable         int             `json:"immutable"`
	Total             int             `json:"total"`
	UniqueAuthorities int             `json:"unique_authorities"`
}

// BuildPowerMap computes authority concentration over mapped programs.
func BuildPowerMap(results []Info) PowerMap {
	byAuthority := make(map[string][]string)
	immutable := 0
	for _, info := range results {
		if info.Immutable() {
			immutable++
			continue
		}
		byAuthority[info.UpgradeAuthority] = append(byAuthority[info.UpgradeAuthority], info.ProgramName)
	}

	concentrations := make([]Concentration, 0, len(byAuthority))
	for auth, programs := range byAuthority {
		sort.Strings(programs)
		concentrations = append(concentrations, Concentration{Authority: auth, Programs: programs})
	}
	sort.Slice(concentrations, func(i, j int) bool {
		if len(concentrations[i].Programs) != len(concentrations[j].Programs) {
			return len(concentrations[i].Programs) > len(concentrations[j].Programs)
		}
		return concentrations[i].Authority < concentrations[j].Authority
	})

	return PowerMap{
		Concentrations:    concentrations,
		Immutable:         immutable,
		Total:             len(results),
		UniqueAuthorities: len(byAuthority),
	}
}

// base58Encode encodes bytes with the Bitcoin base58 alphabet, as used for
// Solana public keys.
func base58Encode(input []byte) string {
	const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	if len(input) == 0 {
		return ""
	}

	digits := []byte{0}
	for _, b := range input {
		carry := uint32(b)
		for i := range digits {
			carry += uint32(digits[i]) * 256
			digits[i] = byte(carry % 58)
			carry /= 58
		}
		for carry > 0 {
			digits = append(digits, byte(carry%58))
			carry /= 58
		}
	}

	// Leading zero bytes encode as '1'.
	out := make([]byte, 0, len(digits)+4)
	for _, b := range input {
		if b != 0 {
			break
		}
		out = append(out, '1')
	}
	for i := len(digits) - 1; i >= 0; i-- {
		out = append(out, alphabet[digits[i]])
	}
	return string(out)
}
