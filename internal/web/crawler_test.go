package web

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltrace/soltrace/internal/solana"
)

func newTestCrawler(source TokenSource, budget int) *Crawler {
	config := DefaultConfig()
	config.Budget = budget
	return NewCrawler(config, source, NopPacer{})
}

func TestCrawler_SeedOnly(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetHoldings("SEED", "mint1", "mint2")

	ix := newTestCrawler(stub, 10).Crawl(context.Background(), "SEED")

	mints, ok := ix.WalletTokens("SEED")
	require.True(t, ok)
	assert.Equal(t, []solana.Pubkey{"mint1", "mint2"}, mints)
	assert.Equal(t, 1, ix.VisitedCount())
	assert.Equal(t, StateVisited, ix.State("SEED"))
}

func TestCrawler_ExpandsThroughSharedToken(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetHoldings("SEED", "mint1")
	stub.SetHolders("mint1", "SEED", "W2")
	stub.SetHoldings("W2", "mint1", "mint2")
	stub.SetHolders("mint2", "W2", "W3")
	stub.SetHoldings("W3", "mint2")

	ix := newTestCrawler(stub, 10).Crawl(context.Background(), "SEED")

	assert.Equal(t, 3, ix.VisitedCount())
	assert.Equal(t, StateVisited, ix.State("W2"))
	assert.Equal(t, StateVisited, ix.State("W3"))
	assert.Equal(t, 2, ix.DistinctHolders("mint1"))
}

func TestCrawler_BudgetCeiling(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetHoldings("SEED", "mint1")
	stub.SetHolders("mint1", "W1", "W2", "W3", "W4")
	for _, w := range []solana.Pubkey{"W1", "W2", "W3", "W4"} {
		stub.SetHoldings(w, "mint1")
	}

	ix := newTestCrawler(stub, 2).Crawl(context.Background(), "SEED")

	assert.Equal(t, 2, ix.VisitedCount(), "budget is a hard ceiling on visits")
	// Unvisited discoveries remain tagged discovered.
	discovered := 0
	for _, w := range []solana.Pubkey{"W1", "W2", "W3", "W4"} {
		if ix.State(w) == StateDiscovered {
			discovered++
		}
	}
	assert.Greater(t, discovered, 0)
}

func TestCrawler_ZeroBudget(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetHoldings("SEED", "mint1")

	ix := newTestCrawler(stub, 0).Crawl(context.Background(), "SEED")

	assert.Equal(t, 0, ix.VisitedCount())
	assert.Equal(t, 0, ix.TokenCount())
	assert.Equal(t, 0, stub.HoldingsCalls)
}

func TestCrawler_BudgetOneRecordsHoldersWithoutVisiting(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetHoldings("SEED", "mint1")
	stub.SetHolders("mint1", "W2", "W3")

	ix := newTestCrawler(stub, 1).Crawl(context.Background(), "SEED")

	assert.Equal(t, 1, ix.VisitedCount())
	// Holder expansion still ran during the seed visit.
	assert.Equal(t, 3, ix.DistinctHolders("mint1")) // SEED + W2 + W3
	assert.Equal(t, StateDiscovered, ix.State("W2"))
	assert.Equal(t, StateDiscovered, ix.State("W3"))
}

func TestCrawler_VisitedSkipDoesNotConsumeBudget(t *testing.T) {
	stub := solana.NewStubClient()
	// SEED's token lists SEED itself plus W2 and W3, so the frontier gets
	// duplicates of already-visited wallets.
	stub.SetHoldings("SEED", "mint1")
	stub.SetHolders("mint1", "SEED", "W2", "W3")
	stub.SetHoldings("W2", "mint1")
	stub.SetHoldings("W3", "mint1")

	ix := newTestCrawler(stub, 3).Crawl(context.Background(), "SEED")

	// All three get visited; re-dequeued duplicates are skipped, not counted.
	assert.Equal(t, 3, ix.VisitedCount())
}

func TestCrawler_SeedLookupFailure(t *testing.T) {
	stub := solana.NewStubClient()
	stub.FailWallet("SEED")

	crawler := newTestCrawler(stub, 10)
	ix := crawler.Crawl(context.Background(), "SEED")

	mints, ok := ix.WalletTokens("SEED")
	require.True(t, ok, "failed lookup still records the visit")
	assert.Empty(t, mints)
	assert.Equal(t, int64(1), crawler.Stats().LookupErrors)
}

func TestCrawler_NoExpansionAboveThreshold(t *testing.T) {
	stub := solana.NewStubClient()
	config := DefaultConfig()
	config.Budget = 10
	config.ExpandThreshold = 0 // never expand
	stub.SetHoldings("SEED", "mint1")
	stub.SetHolders("mint1", "W2")

	crawler := NewCrawler(config, stub, NopPacer{})
	ix := crawler.Crawl(context.Background(), "SEED")

	assert.Equal(t, 1, ix.VisitedCount())
	assert.Equal(t, 0, stub.HolderCalls)
}

func TestCrawler_ContextCancel(t *testing.T) {
	stub := solana.NewStubClient()
	stub.SetHoldings("SEED", "mint1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ix := newTestCrawler(stub, 10).Crawl(ctx, "SEED")

	assert.Equal(t, 0, ix.VisitedCount())
}
