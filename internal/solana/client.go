package solana

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Data Source Client Interface
// ---------------------------------------------------------------------------

// Client is the interface for ledger data-source interactions.
// Implementations: LiveClient (real Solana JSON-RPC), StubClient (testing).
type Client interface {
	// GetHoldings returns the distinct token mints a wallet holds with a
	// positive balance, across both SPL Token and Token-2022 programs.
	GetHoldings(ctx context.Context, wallet Pubkey) ([]Pubkey, error)

	// GetTokenAccounts returns the wallet's token accounts with balances.
	GetTokenAccounts(ctx context.Context, wallet Pubkey) ([]TokenAccount, error)

	// GetBalance returns the wallet's SOL balance.
	GetBalance(ctx context.Context, wallet Pubkey) (decimal.Decimal, error)

	// GetLargestHolders returns up to limit of the token's largest holders,
	// each resolved to the wallet owning the token account. May return fewer.
	GetLargestHolders(ctx context.Context, mint Pubkey, limit int) ([]Pubkey, error)

	// GetAccountInfo fetches raw account state (owner, executable, data).
	GetAccountInfo(ctx context.Context, address Pubkey) (*AccountInfo, error)

	// GetRecentSignatures returns up to limit recent transaction signatures.
	GetRecentSignatures(ctx context.Context, address Pubkey, limit int) ([]SignatureInfo, error)

	// Health checks the endpoint.
	Health(ctx context.Context) error
}

// ---------------------------------------------------------------------------
// Stub Client (for testing and development)
// ---------------------------------------------------------------------------

// StubClient is a mock data source for testing. Unknown wallets and mints
// resolve to empty results rather than errors; use SetFailNext or FailWallet
// to simulate transport failures.
type StubClient struct {
	mu          sync.RWMutex
	holdings    map[Pubkey][]Pubkey
	accounts    map[Pubkey][]TokenAccount
	balances    map[Pubkey]decimal.Decimal
	holders     map[Pubkey][]Pubkey
	accountInfo map[Pubkey]*AccountInfo
	signatures  map[Pubkey][]SignatureInfo
	failWallets map[Pubkey]bool
	failNext    bool

	// Call counters, readable by tests.
	HoldingsCalls int
	HolderCalls   int
}

// NewStubClient creates a stub data source for testing.
func NewStubClient() *StubClient {
	return &StubClient{
		holdings:    make(map[Pubkey][]Pubkey),
		accounts:    make(map[Pubkey][]TokenAccount),
		balances:    make(map[Pubkey]decimal.Decimal),
		holders:     make(map[Pubkey][]Pubkey),
		accountInfo: make(map[Pubkey]*AccountInfo),
		signatures:  make(map[Pubkey][]SignatureInfo),
		failWallets: make(map[Pubkey]bool),
	}
}

// SetHoldings registers the mints a wallet holds.
func (s *StubClient) SetHoldings(wallet Pubkey, mints ...Pubkey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdings[wallet] = mints
}

// SetHolders registers the largest holders for a mint (already owner-resolved).
func (s *StubClient) SetHolders(mint Pubkey, owners ...Pubkey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holders[mint] = owners
}

// SetBalance registers a wallet's SOL balance.
func (s *StubClient) SetBalance(wallet Pubkey, sol decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[wallet] = sol
}

// SetTokenAccounts registers a wallet's token accounts.
func (s *StubClient) SetTokenAccounts(wallet Pubkey, accounts ...TokenAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[wallet] = accounts
}

// SetAccountInfo registers raw account state for an address.
func (s *StubClient) SetAccountInfo(address Pubkey, info *AccountInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountInfo[address] = info
}

// SetSignatures registers recent signatures for an address.
func (s *StubClient) SetSignatures(address Pubkey, sigs ...SignatureInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signatures[address] = sigs
}

// SetFailNext makes the next call fail.
func (s *StubClient) SetFailNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
}

// FailWallet makes every holdings lookup for the wallet fail.
func (s *StubClient) FailWallet(wallet Pubkey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWallets[wallet] = true
}

func (s *StubClient) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return true
	}
	return false
}

// --- Interface implementation ---

func (s *StubClient) GetHoldings(_ context.Context, wallet Pubkey) ([]Pubkey, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.Lock()
	s.HoldingsCalls++
	fail := s.failWallets[wallet]
	mints := append([]Pubkey(nil), s.holdings[wallet]...)
	s.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("stub: simulated holdings failure for %s", wallet)
	}
	sort.Slice(mints, func(i, j int) bool { return mints[i] < mints[j] })
	return mints, nil
}

func (s *StubClient) GetTokenAccounts(_ context.Context, wallet Pubkey) ([]TokenAccount, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TokenAccount(nil), s.accounts[wallet]...), nil
}

func (s *StubClient) GetBalance(_ context.Context, wallet Pubkey) (decimal.Decimal, error) {
	if s.shouldFail() {
		return decimal.Zero, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[wallet], nil
}

func (s *StubClient) GetLargestHolders(_ context.Context, mint Pubkey, limit int) ([]Pubkey, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.Lock()
	s.HolderCalls++
	owners := append([]Pubkey(nil), s.holders[mint]...)
	s.mu.Unlock()
	if len(owners) > limit {
		owners = owners[:limit]
	}
	return owners, nil
}

func (s *StubClient) GetAccountInfo(_ context.Context, address Pubkey) (*AccountInfo, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.accountInfo[address]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("stub: account %s not found", address)
}

func (s *StubClient) GetRecentSignatures(_ context.Context, address Pubkey, limit int) ([]SignatureInfo, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sigs := append([]SignatureInfo(nil), s.signatures[address]...)
	if len(sigs) > limit {
		sigs = sigs[:limit]
	}
	return sigs, nil
}

func (s *StubClient) Health(_ context.Context) error {
	if s.shouldFail() {
		return fmt.Errorf("stub: simulated RPC failure")
	}
	return nil
}
