package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltrace/soltrace/internal/solana"
)

func buildMetricsIndex() *Index {
	ix := NewIndex()
	// mintA held by 3 wallets, mintB by 2, mintC by 1.
	for _, w := range []solana.Pubkey{"W1", "W2", "W3"} {
		ix.recordHolder("mintA", w)
	}
	ix.recordHolder("mintB", "W1")
	ix.recordHolder("mintB", "W2")
	ix.recordHolder("mintC", "W3")

	ix.recordVisit("W1", []solana.Pubkey{"mintA", "mintB"})
	ix.recordVisit("W2", []solana.Pubkey{"mintA", "mintB"})
	ix.recordVisit("W3", []solana.Pubkey{"mintA", "mintC"})
	return ix
}

func TestIndex_ConnectingTokens(t *testing.T) {
	ix := buildMetricsIndex()

	conns := ix.ConnectingTokens()
	require.Len(t, conns, 2, "single-holder tokens are not connections")
	assert.Equal(t, solana.Pubkey("mintA"), conns[0].Mint)
	assert.Equal(t, 3, conns[0].DistinctHolders)
	assert.Equal(t, solana.Pubkey("mintB"), conns[1].Mint)
}

func TestIndex_ConnectingTokensDedupe(t *testing.T) {
	ix := NewIndex()
	ix.recordHolder("mintA", "W1")
	ix.recordHolder("mintA", "W1")

	assert.Empty(t, ix.ConnectingTokens(), "duplicate holders do not make a connection")
}

func TestIndex_MostConnected(t *testing.T) {
	ix := buildMetricsIndex()

	ranked := ix.MostConnected(0)
	require.Len(t, ranked, 3)
	// W1 and W2 each hold 2 connecting tokens; tie breaks by address.
	assert.Equal(t, solana.Pubkey("W1"), ranked[0].Wallet)
	assert.Equal(t, 2, ranked[0].ConnectingTokens)
	assert.Equal(t, solana.Pubkey("W2"), ranked[1].Wallet)
	assert.Equal(t, solana.Pubkey("W3"), ranked[2].Wallet)
	assert.Equal(t, 1, ranked[2].ConnectingTokens)
}

func TestIndex_MostConnectedTopK(t *testing.T) {
	ix := buildMetricsIndex()

	assert.Len(t, ix.MostConnected(1), 1)
	assert.Len(t, ix.MostConnected(100), 3)
}
