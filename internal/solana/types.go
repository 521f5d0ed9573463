package solana

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pubkey is a Solana public key (base58 string).
type Pubkey string

// Signature is a Solana transaction signature.
type Signature string

// LamportsPerSOL is the lamport-to-SOL conversion factor.
const LamportsPerSOL = 1_000_000_000

// Well-known program IDs on mainnet.
const (
	SystemProgram        = "11111111111111111111111111111111"
	TokenProgram         = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022Program     = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProg  = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	BPFUpgradeableLoader = "BPFLoaderUpgradeab1e11111111111111111111111"
)

// Staked-SOL derivative mints surfaced by the wallet scan.
const (
	MarinadeMSOLMint Pubkey = "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"
	JitoSOLMint      Pubkey = "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn"
)

// TokenAccount describes one SPL token account owned by a wallet.
type TokenAccount struct {
	Mint     Pubkey          `json:"mint"`
	Amount   decimal.Decimal `json:"amount"`
	Decimals uint8           `json:"decimals"`
	Program  string          `json:"program"` // spl-token | spl-token-2022
}

// HolderInfo describes one of a token's largest holders, resolved to the
// wallet that owns the token account.
type HolderInfo struct {
	Owner        Pubkey          `json:"owner"`
	TokenAccount Pubkey          `json:"token_account"`
	Balance      decimal.Decimal `json:"balance"`
}

// AccountInfo is the decoded state of an on-chain account.
type AccountInfo struct {
	Address    Pubkey `json:"address"`
	Owner      string `json:"owner"`
	Executable bool   `json:"executable"`
	Lamports   uint64 `json:"lamports"`
	Data       []byte `json:"-"`
	DataSize   int    `json:"data_size"`
}

// SOLBalance returns the account balance in SOL.
func (a AccountInfo) SOLBalance() decimal.Decimal {
	return decimal.NewFromInt(int64(a.Lamports)).Div(decimal.NewFromInt(LamportsPerSOL))
}

// SignatureInfo is one entry of a wallet's recent transaction history.
type SignatureInfo struct {
	Signature Pubkey    `json:"signature"`
	Slot      uint64    `json:"slot"`
	BlockTime time.Time `json:"block_time"`
	Failed    bool      `json:"failed"`
}
