package analyze

import (
	"sort"
)

// ---------------------------------------------------------------------------
// Multi-Wallet Analyzer — similarity, shared holdings, whales, clusters
// ---------------------------------------------------------------------------

// WalletGraph analyzes an explicitly supplied set of wallets with known
// holdings. It is independent of the crawler: callers add wallets directly
// and all computations are pure functions over the added data.
type WalletGraph struct {
	holdings map[string]map[string]struct{} // wallet -> token set
	balances map[string]float64             // wallet -> SOL balance
}

// NewWalletGraph creates an empty analyzer.
func NewWalletGraph() *WalletGraph {
	return &WalletGraph{
		holdings: make(map[string]map[string]struct{}),
		balances: make(map[string]float64),
	}
}

// AddWallet registers a wallet with its SOL balance and held token mints.
// Adding the same address again replaces the previous entry.
func (g *WalletGraph) AddWallet(address string, balanceSOL float64, mints []string) {
	set := make(map[string]struct{}, len(mints))
	for _, m := range mints {
		set[m] = struct{}{}
	}
	g.holdings[address] = set
	g.balances[address] = balanceSOL
}

// WalletCount returns the number of tracked wallets.
func (g *WalletGraph) WalletCount() int { return len(g.balances) }

// TotalSOL returns the summed SOL balance of all tracked wallets.
func (g *WalletGraph) TotalSOL() float64 {
	total := 0.0
	for _, b := range g.balances {
		total += b
	}
	return total
}

// Wallets returns all tracked addresses, sorted ascending.
func (g *WalletGraph) Wallets() []string {
	wallets := make([]string, 0, len(g.holdings))
	for w := range g.holdings {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)
	return wallets
}

// Similarity returns the Jaccard index of two wallets' holdings sets:
// |intersection| / |union|, and 0.0 when both sets are empty. A wallet not
// tracked is treated as holding nothing. Symmetric by construction.
func (g *WalletGraph) Similarity(w1, w2 string) float64 {
	s1 := g.holdings[w1]
	s2 := g.holdings[w2]

	intersection := 0
	for m := range s1 {
		if _, ok := s2[m]; ok {
			intersection++
		}
	}
	union := len(s1) + len(s2) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// TokenGroup is a token held by more than one tracked wallet.
type TokenGroup struct {
	Mint    string   `json:"mint"`
	Holders []string `json:"holders"`
}

// CommonTokens inverts the holdings mapping and returns tokens with more
// than one holder, sorted by holder count descending, mint ascending on
// ties. Holder lists are sorted ascending.
func (g *WalletGraph) CommonTokens() []TokenGroup {
	mintHolders := make(map[string][]string)
	for wallet, mints := range g.holdings {
		for m := range mints {
			mintHolders[m] = append(mintHolders[m], wallet)
		}
	}

	groups := make([]TokenGroup, 0, len(mintHolders))
	for mint, holders := range mintHolders {
		if len(holders) > 1 {
			sort.Strings(holders)
			groups = append(groups, TokenGroup{Mint: mint, Holders: holders})
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Holders) != len(groups[j].Holders) {
			return len(groups[i].Holders) > len(groups[j].Holders)
		}
		return groups[i].Mint < groups[j].Mint
	})
	return groups
}

// WhaleEntry is one wallet in the whale ranking.
type WhaleEntry struct {
	Address    string  `json:"address"`
	BalanceSOL float64 `json:"balance_sol"`
}

// Whales returns the top n wallets by SOL balance, descending. Balance ties
// break by address ascending so the ranking is a deterministic total order.
func (g *WalletGraph) Whales(n int) []WhaleEntry {
	entries := make([]WhaleEntry, 0, len(g.balances))
	for addr, bal := range g.balances {
		entries = append(entries, WhaleEntry{Address: addr, BalanceSOL: bal})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BalanceSOL != entries[j].BalanceSOL {
			return entries[i].BalanceSOL > entries[j].BalanceSOL
		}
		return entries[i].Address < entries[j].Address
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Clusters groups wallets that share at least minShared tokens with a
// cluster's seed wallet. The grouping is a single pass over wallets in
// address order and is deliberately non-transitive: membership is decided
// against the seed only, so two non-seed members of the same cluster may
// share no tokens with each other. Every emitted cluster has at least two
// members, the seed first.
func (g *WalletGraph) Clusters(minShared int) [][]string {
	wallets := g.Wallets()
	var clusters [][]string
	visited := make(map[string]bool)

	for i := 0; i < len(wallets); i++ {
		if visited[wallets[i]] {
			continue
		}
		cluster := []string{wallets[i]}
		for j := i + 1; j < len(wallets); j++ {
			if visited[wallets[j]] {
				continue
			}
			if g.sharedCount(wallets[i], wallets[j]) >= minShared {
				cluster = append(cluster, wallets[j])
				visited[wallets[j]] = true
			}
		}
		if len(cluster) > 1 {
			visited[wallets[i]] = true
			clusters = append(clusters, cluster)
		}
	}
	return clusters
}

// sharedCount returns the size of the holdings intersection of two wallets.
func (g *WalletGraph) sharedCount(w1, w2 string) int {
	s1, s2 := g.holdings[w1], g.holdings[w2]
	if len(s2) < len(s1) {
		s1, s2 = s2, s1
	}
	shared := 0
	for m := range s1 {
		if _, ok := s2[m]; ok {
			shared++
		}
	}
	return shared
}
