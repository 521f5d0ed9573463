package daemon

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltrace/soltrace/internal/audit"
	"github.com/soltrace/soltrace/internal/authority"
	"github.com/soltrace/soltrace/internal/solana"
)

// The synthetic accounts below use all-zero pubkeys so their base58 form is
// a predictable run of '1' characters.
var (
	pdataAddr = strings.Repeat("1", 33)
	authAddrA = strings.Repeat("1", 31) + "2"
	authAddrB = strings.Repeat("1", 31) + "3"
)

func newTestGuardian(stub *solana.StubClient) *Guardian {
	auditConfig := audit.Config{PaceDelay: time.Nanosecond}
	mapperConfig := authority.DefaultConfig()
	mapperConfig.PaceDelay = time.Nanosecond
	return NewGuardian(
		Config{Interval: time.Hour, BalanceShiftSOL: 10},
		audit.NewAuditor(auditConfig, stub),
		authority.NewMapper(mapperConfig, stub),
	)
}

// setProgram wires Registry[0] as an upgradeable program whose programdata
// points at the given authority byte.
func setProgram(stub *solana.StubClient, dataSize int, authByte byte) {
	progID := solana.Pubkey(audit.Registry[0].ID)

	data := make([]byte, dataSize)
	// Offset 4..36 holds the programdata pubkey, left as zeros.
	stub.SetAccountInfo(progID, &solana.AccountInfo{
		Address:    progID,
		Owner:      solana.BPFUpgradeableLoader,
		Executable: true,
		Data:       data,
		DataSize:   dataSize,
	})

	pdata := make([]byte, 45)
	pdata[12] = 1
	pdata[44] = authByte
	stub.SetAccountInfo(solana.Pubkey(pdataAddr), &solana.AccountInfo{
		Address:  solana.Pubkey(pdataAddr),
		Owner:    solana.BPFUpgradeableLoader,
		Data:     pdata,
		DataSize: len(pdata),
	})
}

func TestGuardian_FirstCycleRecordsBaseline(t *testing.T) {
	stub := solana.NewStubClient()
	setProgram(stub, 200, 1)

	g := newTestGuardian(stub)
	alerts := g.RunCycle(context.Background())

	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityInfo, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "baseline")
	assert.NotEmpty(t, alerts[0].ID)
	assert.Equal(t, int64(1), g.Cycles())
}

func TestGuardian_NoChangeNoAlerts(t *testing.T) {
	stub := solana.NewStubClient()
	setProgram(stub, 200, 1)

	g := newTestGuardian(stub)
	g.RunCycle(context.Background())
	alerts := g.RunCycle(context.Background())

	assert.Empty(t, alerts)
}

func TestGuardian_DetectsUpgrade(t *testing.T) {
	stub := solana.NewStubClient()
	setProgram(stub, 200, 1)

	g := newTestGuardian(stub)
	g.RunCycle(context.Background())

	setProgram(stub, 300, 1)
	alerts := g.RunCycle(context.Background())

	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityHigh, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "PROGRAM UPGRADED")
}

func TestGuardian_DetectsAuthorityChange(t *testing.T) {
	stub := solana.NewStubClient()
	setProgram(stub, 200, 1)

	g := newTestGuardian(stub)
	g.RunCycle(context.Background())

	setProgram(stub, 200, 2)
	alerts := g.RunCycle(context.Background())

	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "AUTHORITY CHANGED")
	assert.Contains(t, alerts[0].Message, authAddrA)
	assert.Contains(t, alerts[0].Message, authAddrB)
}

func TestGuardian_DetectsAuthorityBalanceShift(t *testing.T) {
	stub := solana.NewStubClient()
	setProgram(stub, 200, 1)
	stub.SetBalance(solana.Pubkey(authAddrA), decimal.NewFromFloat(5))

	g := newTestGuardian(stub)
	g.RunCycle(context.Background())

	stub.SetBalance(solana.Pubkey(authAddrA), decimal.NewFromFloat(25))
	alerts := g.RunCycle(context.Background())

	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityMedium, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "balance shifted")
}

func TestGuardian_SmallBalanceShiftIgnored(t *testing.T) {
	stub := solana.NewStubClient()
	setProgram(stub, 200, 1)
	stub.SetBalance(solana.Pubkey(authAddrA), decimal.NewFromFloat(5))

	g := newTestGuardian(stub)
	g.RunCycle(context.Background())

	stub.SetBalance(solana.Pubkey(authAddrA), decimal.NewFromFloat(9))
	alerts := g.RunCycle(context.Background())

	assert.Empty(t, alerts)
}

func TestGuardian_OnAlertCallback(t *testing.T) {
	stub := solana.NewStubClient()
	setProgram(stub, 200, 1)

	g := newTestGuardian(stub)
	var received []Alert
	g.OnAlert = func(a Alert) { received = append(received, a) }

	g.RunCycle(context.Background())

	require.Len(t, received, 1)
	assert.Equal(t, audit.Registry[0].Name, received[0].Program)
	assert.Equal(t, int64(1), g.AlertCount())
}
