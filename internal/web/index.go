package web

import (
	"sort"

	"github.com/soltrace/soltrace/internal/solana"
)

// ---------------------------------------------------------------------------
// Relationship Index — bidirectional wallet/token index built by the crawler
// ---------------------------------------------------------------------------

// WalletState tags how much the crawl knows about a wallet.
type WalletState uint8

const (
	// StateUnknown: never seen.
	StateUnknown WalletState = iota
	// StateDiscovered: appeared as a token holder, holdings not confirmed.
	StateDiscovered
	// StateVisited: holdings confirmed by a direct lookup.
	StateVisited
)

func (s WalletState) String() string {
	switch s {
	case StateDiscovered:
		return "DISCOVERED"
	case StateVisited:
		return "VISITED"
	default:
		return "UNKNOWN"
	}
}

// Index is the relationship index produced by a crawl. Wallets may appear
// in a token's holder sequence without having confirmed holdings: that is
// the discovered-but-not-visited state, recorded speculatively before the
// crawl spends budget visiting them. Holder sequences keep insertion order
// and may contain duplicates; distinct-holder counts deduplicate.
type Index struct {
	walletTokens map[solana.Pubkey][]solana.Pubkey // visited wallet -> mints
	tokenHolders map[solana.Pubkey][]solana.Pubkey // mint -> holder sequence
	states       map[solana.Pubkey]WalletState
}

// NewIndex creates an empty relationship index.
func NewIndex() *Index {
	return &Index{
		walletTokens: make(map[solana.Pubkey][]solana.Pubkey),
		tokenHolders: make(map[solana.Pubkey][]solana.Pubkey),
		states:       make(map[solana.Pubkey]WalletState),
	}
}

// recordVisit stores a wallet's confirmed holdings and marks it visited.
func (ix *Index) recordVisit(wallet solana.Pubkey, mints []solana.Pubkey) {
	if mints == nil {
		mints = []solana.Pubkey{}
	}
	ix.walletTokens[wallet] = mints
	ix.states[wallet] = StateVisited
}

// recordHolder appends a wallet to a token's holder sequence. A wallet not
// yet visited is promoted to discovered.
func (ix *Index) recordHolder(mint, wallet solana.Pubkey) {
	ix.tokenHolders[mint] = append(ix.tokenHolders[mint], wallet)
	if ix.states[wallet] == StateUnknown {
		ix.states[wallet] = StateDiscovered
	}
}

// State returns what the crawl knows about a wallet.
func (ix *Index) State(wallet solana.Pubkey) WalletState {
	return ix.states[wallet]
}

// WalletTokens returns a visited wallet's confirmed holdings.
func (ix *Index) WalletTokens(wallet solana.Pubkey) ([]solana.Pubkey, bool) {
	mints, ok := ix.walletTokens[wallet]
	return mints, ok
}

// HolderSequence returns a token's raw holder sequence, duplicates included.
func (ix *Index) HolderSequence(mint solana.Pubkey) []solana.Pubkey {
	return ix.tokenHolders[mint]
}

// DistinctHolders returns the number of distinct wallets recorded as
// holders of a token.
func (ix *Index) DistinctHolders(mint solana.Pubkey) int {
	seen := make(map[solana.Pubkey]bool)
	for _, w := range ix.tokenHolders[mint] {
		seen[w] = true
	}
	return len(seen)
}

// VisitedWallets returns all visited wallet addresses, sorted.
func (ix *Index) VisitedWallets() []solana.Pubkey {
	wallets := make([]solana.Pubkey, 0, len(ix.walletTokens))
	for w := range ix.walletTokens {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i] < wallets[j] })
	return wallets
}

// Tokens returns all indexed token mints, sorted.
func (ix *Index) Tokens() []solana.Pubkey {
	mints := make([]solana.Pubkey, 0, len(ix.tokenHolders))
	for m := range ix.tokenHolders {
		mints = append(mints, m)
	}
	sort.Slice(mints, func(i, j int) bool { return mints[i] < mints[j] })
	return mints
}

// VisitedCount returns the number of visited wallets.
func (ix *Index) VisitedCount() int { return len(ix.walletTokens) }

// TokenCount returns the number of indexed tokens.
func (ix *Index) TokenCount() int { return len(ix.tokenHolders) }

// Export is the serializable form of the index.
type Export struct {
	WalletTokens map[string][]string `json:"wallet_tokens"`
	TokenHolders map[string][]string `json:"token_holders"`
	States       map[string]string   `json:"states"`
}

// Export returns a JSON-ready snapshot of the index.
func (ix *Index) Export() Export {
	out := Export{
		WalletTokens: make(map[string][]string, len(ix.walletTokens)),
		TokenHolders: make(map[string][]string, len(ix.tokenHolders)),
		States:       make(map[string]string, len(ix.states)),
	}
	for w, mints := range ix.walletTokens {
		strs := make([]string, len(mints))
		for i, m := range mints {
			strs[i] = string(m)
		}
		out.WalletTokens[string(w)] = strs
	}
	for m, holders := range ix.tokenHolders {
		strs := make([]string, len(holders))
		for i, h := range holders {
			strs[i] = string(h)
		}
		out.TokenHolders[string(m)] = strs
	}
	for w, st := range ix.states {
		out.States[string(w)] = st.String()
	}
	return out
}
