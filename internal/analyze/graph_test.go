package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph() *WalletGraph {
	g := NewWalletGraph()
	g.AddWallet("A", 10, []string{"t1", "t2"})
	g.AddWallet("B", 5, []string{"t2", "t3"})
	g.AddWallet("C", 20, []string{"t2"})
	return g
}

func TestWalletGraph_Similarity(t *testing.T) {
	g := newTestGraph()

	assert.InDelta(t, 1.0/3.0, g.Similarity("A", "B"), 1e-9)
	assert.Equal(t, g.Similarity("A", "B"), g.Similarity("B", "A"), "similarity is symmetric")
	assert.InDelta(t, 0.5, g.Similarity("A", "C"), 1e-9)
}

func TestWalletGraph_SimilarityEmptyUnion(t *testing.T) {
	g := NewWalletGraph()
	g.AddWallet("A", 1, nil)
	g.AddWallet("B", 1, nil)

	assert.Equal(t, 0.0, g.Similarity("A", "B"))
	assert.Equal(t, 0.0, g.Similarity("A", "untracked"))
}

func TestWalletGraph_SelfSimilarity(t *testing.T) {
	g := newTestGraph()
	assert.Equal(t, 1.0, g.Similarity("A", "A"))
}

func TestWalletGraph_CommonTokens(t *testing.T) {
	g := newTestGraph()

	common := g.CommonTokens()
	require.Len(t, common, 1, "only t2 has more than one holder")
	assert.Equal(t, "t2", common[0].Mint)
	assert.Equal(t, []string{"A", "B", "C"}, common[0].Holders)
}

func TestWalletGraph_CommonTokensOrdering(t *testing.T) {
	g := NewWalletGraph()
	g.AddWallet("A", 1, []string{"x", "y"})
	g.AddWallet("B", 1, []string{"x", "y"})
	g.AddWallet("C", 1, []string{"x"})

	common := g.CommonTokens()
	require.Len(t, common, 2)
	// x has 3 holders, y has 2.
	assert.Equal(t, "x", common[0].Mint)
	assert.Equal(t, "y", common[1].Mint)
}

func TestWalletGraph_Whales(t *testing.T) {
	g := newTestGraph()

	whales := g.Whales(2)
	require.Len(t, whales, 2)
	assert.Equal(t, "C", whales[0].Address)
	assert.Equal(t, "A", whales[1].Address)
}

func TestWalletGraph_WhalesTieBreak(t *testing.T) {
	g := NewWalletGraph()
	g.AddWallet("B", 7, nil)
	g.AddWallet("A", 7, nil)

	whales := g.Whales(10)
	require.Len(t, whales, 2)
	assert.Equal(t, "A", whales[0].Address, "equal balances rank by address")
}

func TestWalletGraph_Clusters(t *testing.T) {
	g := newTestGraph()

	clusters := g.Clusters(1)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"A", "B", "C"}, clusters[0])
}

func TestWalletGraph_ClustersSeedRelative(t *testing.T) {
	// B and C each share a token with seed A but nothing with each other.
	// Single-pass grouping still puts all three in A's cluster.
	g := NewWalletGraph()
	g.AddWallet("A", 1, []string{"t1", "t2"})
	g.AddWallet("B", 1, []string{"t1"})
	g.AddWallet("C", 1, []string{"t2"})

	clusters := g.Clusters(1)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"A", "B", "C"}, clusters[0])
	assert.Equal(t, 0, g.sharedCount("B", "C"))
}

func TestWalletGraph_ClustersNoneBelowThreshold(t *testing.T) {
	g := newTestGraph()
	assert.Empty(t, g.Clusters(2))
}

func TestWalletGraph_Totals(t *testing.T) {
	g := newTestGraph()

	assert.Equal(t, 3, g.WalletCount())
	assert.InDelta(t, 35.0, g.TotalSOL(), 1e-9)
	assert.Equal(t, []string{"A", "B", "C"}, g.Wallets())
}

func TestWalletGraph_AddWalletReplaces(t *testing.T) {
	g := NewWalletGraph()
	g.AddWallet("A", 1, []string{"t1"})
	g.AddWallet("A", 2, []string{"t2"})

	assert.Equal(t, 1, g.WalletCount())
	assert.InDelta(t, 2.0, g.TotalSOL(), 1e-9)
	assert.Equal(t, 0.0, g.Similarity("A", "B"))
	g.AddWallet("B", 0, []string{"t2"})
	assert.Equal(t, 1.0, g.Similarity("A", "B"))
}
