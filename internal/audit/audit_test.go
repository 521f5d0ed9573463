package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltrace/soltrace/internal/solana"
)

func newTestAuditor(stub *solana.StubClient) *Auditor {
	return NewAuditor(Config{PaceDelay: time.Nanosecond}, stub)
}

func TestAuditor_UpgradeableProgram(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetAccountInfo("prog1", &solana.AccountInfo{
		Address:    "prog1",
		Owner:      solana.BPFUpgradeableLoader,
		Executable: true,
		DataSize:   36,
	})

	result, err := newTestAuditor(stub).Audit(context.Background(), "prog1")
	require.NoError(t, err)

	assert.True(t, result.IsUpgradeable)
	// 30 upgradeable + 10 small proxy + 15 very small executable.
	assert.Equal(t, 55, result.RiskScore)
	assert.Contains(t, result.Findings[0], "UPGRADEABLE")
}

func TestAuditor_ImmutableProgram(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetAccountInfo("prog1", &solana.AccountInfo{
		Address:    "prog1",
		Owner:      "BPFLoader2111111111111111111111111111111111",
		Executable: true,
		DataSize:   200_000,
	})

	result, err := newTestAuditor(stub).Audit(context.Background(), "prog1")
	require.NoError(t, err)

	assert.False(t, result.IsUpgradeable)
	assert.Equal(t, 0, result.RiskScore)
	assert.Empty(t, result.Findings)
}

func TestAuditor_NotExecutable(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetAccountInfo("acct1", &solana.AccountInfo{
		Address:  "acct1",
		Owner:    solana.SystemProgram,
		DataSize: 10_000,
	})

	result, err := newTestAuditor(stub).Audit(context.Background(), "acct1")
	require.NoError(t, err)

	assert.Equal(t, 20, result.RiskScore)
	assert.Contains(t, result.Findings[0], "not an executable")
}

func TestAuditor_LargeProgram(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetAccountInfo("prog1", &solana.AccountInfo{
		Address:    "prog1",
		Owner:      solana.BPFUpgradeableLoader,
		Executable: true,
		DataSize:   600_000,
	})

	result, err := newTestAuditor(stub).Audit(context.Background(), "prog1")
	require.NoError(t, err)

	// 30 upgradeable + 10 very large.
	assert.Equal(t, 40, result.RiskScore)
}

func TestAuditor_KnownSafeProgram(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetAccountInfo(solana.Pubkey(solana.TokenProgram), &solana.AccountInfo{
		Address:    solana.Pubkey(solana.TokenProgram),
		Owner:      solana.BPFUpgradeableLoader,
		Executable: true,
		DataSize:   50,
	})

	result, err := newTestAuditor(stub).Audit(context.Background(), solana.TokenProgram)
	require.NoError(t, err)

	assert.Equal(t, 0, result.RiskScore)
	assert.Equal(t, []string{"known system program"}, result.Findings)
}

func TestAuditor_LookupFailure(t *testing.T) {
	stub := solana.NewStubClient()

	_, err := newTestAuditor(stub).Audit(context.Background(), "missing")
	assert.Error(t, err)
}

func TestAuditor_ScanAllSkipsFailures(t *testing.T) {
	stub := solana.NewStubClient()
	// Only two registry programs resolve; the rest fail and are skipped.
	stub.SetAccountInfo(solana.Pubkey(Registry[0].ID), &solana.AccountInfo{
		Address:    solana.Pubkey(Registry[0].ID),
		Owner:      solana.BPFUpgradeableLoader,
		Executable: true,
		DataSize:   200_000,
	})
	stub.SetAccountInfo(solana.Pubkey(Registry[1].ID), &solana.AccountInfo{
		Address:    solana.Pubkey(Registry[1].ID),
		Owner:      "BPFLoader2111111111111111111111111111111111",
		Executable: true,
		DataSize:   200_000,
	})

	entries, summary := newTestAuditor(stub).ScanAll(context.Background())

	require.Len(t, entries, 2)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.Upgradeable)
	assert.InDelta(t, 15.0, summary.AverageRisk, 1e-9) // (30 + 0) / 2
}
