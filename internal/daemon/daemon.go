package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/soltrace/soltrace/internal/audit"
	"github.com/soltrace/soltrace/internal/authority"
	"github.com/soltrace/soltrace/internal/solana"
)

// ---------------------------------------------------------------------------
// Guardian Daemon — continuous monitoring of program control changes
// ---------------------------------------------------------------------------

// Severity grades an alert.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityInfo     Severity = "INFO"
)

// Alert is one detected change in a monitored program.
type Alert struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Program   string    `json:"program"`
	Message   string    `json:"message"`
}

// programState is the snapshot compared between cycles.
type programState struct {
	upgradeable      bool
	authority        string
	authorityBalance float64
	dataSize         int
}

// Config configures the guardian.
type Config struct {
	Interval        time.Duration `yaml:"interval"`          // time between full scan cycles
	BalanceShiftSOL float64       `yaml:"balance_shift_sol"` // authority balance delta that alerts
}

// DefaultConfig returns guardian defaults.
func DefaultConfig() Config {
	return Config{Interval: 5 * time.Minute, BalanceShiftSOL: 10.0}
}

// Guardian watches the program registry for authority changes, upgrades and
// authority wallet activity. First sight of a program records a baseline and
// emits an info alert; subsequent cycles diff against the stored state.
type Guardian struct {
	config  Config
	auditor *audit.Auditor
	mapper  *authority.Mapper

	mu    sync.Mutex
	known map[string]programState

	// OnAlert, when set, is called for every alert as it is raised.
	OnAlert func(Alert)

	cycles       int64
	alertsRaised int64
}

// NewGuardian creates a guardian daemon.
func NewGuardian(config Config, auditor *audit.Auditor, mapper *authority.Mapper) *Guardian {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.BalanceShiftSOL <= 0 {
		config.BalanceShiftSOL = DefaultConfig().BalanceShiftSOL
	}
	return &Guardian{
		config:  config,
		auditor: auditor,
		mapper:  mapper,
		known:   make(map[string]programState),
	}
}

// RunCycle scans the whole registry once and returns the alerts raised.
func (g *Guardian) RunCycle(ctx context.Context) []Alert {
	g.mu.Lock()
	g.cycles++
	cycle := g.cycles
	g.mu.Unlock()

	log.Info().Int64("cycle", cycle).Msg("daemon: scan cycle starting")

	var alerts []Alert
	for _, prog := range audit.Registry {
		select {
		case <-ctx.Done():
			return alerts
		default:
		}
		alerts = append(alerts, g.checkProgram(ctx, prog)...)
	}

	log.Info().
		Int64("cycle", cycle).
		Int("alerts", len(alerts)).
		Msg("daemon: scan cycle complete")
	return alerts
}

// checkProgram diffs one program against its stored baseline.
func (g *Guardian) checkProgram(ctx context.Context, prog audit.Program) []Alert {
	result, err := g.auditor.Audit(ctx, prog.ID)
	if err != nil {
		log.Debug().Err(err).Str("program", prog.Name).Msg("daemon: audit failed, skipping")
		return nil
	}

	state := programState{
		upgradeable: result.IsUpgradeable,
		dataSize:    result.DataSize,
	}

	if result.IsUpgradeable {
		info, err := g.mapper.MapAuthority(ctx, prog.ID, prog.Name)
		if err == nil {
			state.authority = info.UpgradeAuthority
			state.authorityBalance = info.AuthoritySOL
		}
	}

	g.mu.Lock()
	prev, seen := g.known[prog.ID]
	g.known[prog.ID] = state
	g.mu.Unlock()

	if !seen {
		return []Alert{g.raise(SeverityInfo, prog.Name,
			fmt.Sprintf("baseline recorded (upgradeable=%v, authority=%s)", state.upgradeable, orNone(state.authority)))}
	}

	var alerts []Alert

	if prev.authority != state.authority {
		alerts = append(alerts, g.raise(SeverityCritical, prog.Name,
			fmt.Sprintf("UPGRADE AUTHORITY CHANGED: %s -> %s", orNone(prev.authority), orNone(state.authority))))
	}

	if prev.dataSize != state.dataSize {
		alerts = append(alerts, g.raise(SeverityHigh, prog.Name,
			fmt.Sprintf("PROGRAM UPGRADED: data size %d -> %d bytes", prev.dataSize, state.dataSize)))
	}

	if !prev.upgradeable && state.upgradeable {
		alerts = append(alerts, g.raise(SeverityCritical, prog.Name,
			"program became UPGRADEABLE after being immutable"))
	}

	shift := state.authorityBalance - prev.authorityBalance
	if shift < 0 {
		shift = -shift
	}
	if state.authority != "" && state.authority == prev.authority && shift > g.config.BalanceShiftSOL {
		alerts = append(alerts, g.raise(SeverityMedium, prog.Name,
			fmt.Sprintf("authority balance shifted %.2f SOL (%.2f -> %.2f)",
				shift, prev.authorityBalance, state.authorityBalance)))
	}

	return alerts
}

// Run cycles forever until ctx is cancelled. Account events from the
// watcher trigger an immediate targeted recheck of the touched program.
func (g *Guardian) Run(ctx context.Context, events <-chan solana.AccountEvent) error {
	ticker := time.NewTicker(g.config.Interval)
	defer ticker.Stop()

	g.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Int64("cycles", g.Cycles()).Msg("daemon: stopping")
			return ctx.Err()

		case <-ticker.C:
			g.RunCycle(ctx)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			g.handleEvent(ctx, ev)
		}
	}
}

// handleEvent rechecks the program an on-chain event touched. Events for
// addresses outside the registry are reported as-is.
func (g *Guardian) handleEvent(ctx context.Context, ev solana.AccountEvent) {
	for _, prog := range audit.Registry {
		if prog.ID == ev.Address {
			log.Info().
				Str("program", prog.Name).
				Uint64("slot", ev.Slot).
				Msg("daemon: live account change, rechecking")
			g.checkProgram(ctx, prog)
			return
		}
	}
	g.raise(SeverityInfo, ev.Address,
		fmt.Sprintf("watched account changed at slot %d (%d lamports, %d bytes)",
			ev.Slot, ev.Lamports, ev.DataSize))
}

func (g *Guardian) raise(sev Severity, program, message string) Alert {
	alert := Alert{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Severity:  sev,
		Program:   program,
		Message:   message,
	}

	g.mu.Lock()
	g.alertsRaised++
	g.mu.Unlock()

	evt := log.Warn()
	if sev == SeverityInfo {
		evt = log.Info()
	}
	evt.
		Str("severity", string(sev)).
		Str("program", program).
		Msg(message)

	if g.OnAlert != nil {
		g.OnAlert(alert)
	}
	return alert
}

// Cycles returns the number of completed scan cycles.
func (g *Guardian) Cycles() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cycles
}

// AlertCount returns the number of alerts raised so far.
func (g *Guardian) AlertCount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alertsRaised
}

func orNone(s string) string {
	if s == "" {
		return "none (immutable)"
	}
	return s
}
