package web

import (
	"sort"

	"github.com/soltrace/soltrace/internal/solana"
)

// ---------------------------------------------------------------------------
// Connection Metrics — derived from the relationship index after a crawl
// ---------------------------------------------------------------------------

// TokenConnection is a token held by more than one distinct wallet.
type TokenConnection struct {
	Mint            solana.Pubkey `json:"mint"`
	DistinctHolders int           `json:"distinct_holders"`
}

// WalletConnection ranks a visited wallet by its connecting tokens.
type WalletConnection struct {
	Wallet           solana.Pubkey `json:"wallet"`
	ConnectingTokens int           `json:"connecting_tokens"`
}

// ConnectingTokens returns tokens held by more than one distinct wallet,
// ranked by distinct-holder count descending, mint ascending on ties.
func (ix *Index) ConnectingTokens() []TokenConnection {
	conns := make([]TokenConnection, 0, len(ix.tokenHolders))
	for mint := range ix.tokenHolders {
		if n := ix.DistinctHolders(mint); n > 1 {
			conns = append(conns, TokenConnection{Mint: mint, DistinctHolders: n})
		}
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].DistinctHolders != conns[j].DistinctHolders {
			return conns[i].DistinctHolders > conns[j].DistinctHolders
		}
		return conns[i].Mint < conns[j].Mint
	})
	return conns
}

// MostConnected ranks visited wallets by how many of their held tokens are
// connecting tokens, descending, address ascending on ties. Returns at most
// topK entries; topK <= 0 returns all.
func (ix *Index) MostConnected(topK int) []WalletConnection {
	connecting := make(map[solana.Pubkey]bool)
	for _, tc := range ix.ConnectingTokens() {
		connecting[tc.Mint] = true
	}

	ranked := make([]WalletConnection, 0, len(ix.walletTokens))
	for wallet, mints := range ix.walletTokens {
		count := 0
		for _, m := range mints {
			if connecting[m] {
				count++
			}
		}
		ranked = append(ranked, WalletConnection{Wallet: wallet, ConnectingTokens: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].ConnectingTokens != ranked[j].ConnectingTokens {
			return ranked[i].ConnectingTokens > ranked[j].ConnectingTokens
		}
		return ranked[i].Wallet < ranked[j].Wallet
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}
