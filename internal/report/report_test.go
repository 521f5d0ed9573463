package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltrace/soltrace/internal/analyze"
	"github.com/soltrace/soltrace/internal/audit"
)

func TestShortAddr(t *testing.T) {
	assert.Equal(t, "JUP6LkbZ...TaV4", ShortAddr("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"))
	assert.Equal(t, "short", ShortAddr("short"))
	assert.Equal(t, "", ShortAddr(""))
	assert.Equal(t, "exactly12chr", ShortAddr("exactly12chr"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSON(&buf, map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"a": 1`)
}

func TestPrintAudit(t *testing.T) {
	var buf bytes.Buffer
	PrintAudit(&buf, &audit.Result{
		ProgramID:     "prog1",
		IsExecutable:  true,
		IsUpgradeable: true,
		Owner:         "ownerX",
		DataSize:      36,
		Findings:      []string{"UPGRADEABLE: owner can change code at any time"},
		RiskScore:     55,
	})

	out := buf.String()
	assert.Contains(t, out, "prog1")
	assert.Contains(t, out, "UPGRADEABLE")
	assert.Contains(t, out, "55/100")
	assert.Contains(t, out, "MEDIUM RISK")
}

func TestPrintAnalysis(t *testing.T) {
	g := analyze.NewWalletGraph()
	g.AddWallet("walletAAAAAAAAAAAAAAAAAAAAAA", 10, []string{"t1", "t2"})
	g.AddWallet("walletBBBBBBBBBBBBBBBBBBBBBB", 5, []string{"t2"})

	var buf bytes.Buffer
	PrintAnalysis(&buf, g, 1, 10)

	out := buf.String()
	assert.Contains(t, out, "Analyzing 2 wallets")
	assert.Contains(t, out, "Whales:")
	assert.Contains(t, out, "Cluster 1:")
}
