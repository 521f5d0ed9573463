package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/soltrace/soltrace/internal/analyze"
	"github.com/soltrace/soltrace/internal/audit"
	"github.com/soltrace/soltrace/internal/authority"
	"github.com/soltrace/soltrace/internal/solana"
	"github.com/soltrace/soltrace/internal/web"
)

// ---------------------------------------------------------------------------
// Console Reporting — human-readable rendering of engine results
// ---------------------------------------------------------------------------

// ShortAddr abbreviates a base58 address to first8...last4 for console
// output. Short inputs pass through unchanged.
func ShortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-4:]
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintWallet renders a single wallet profile.
func PrintWallet(w io.Writer, address solana.Pubkey, balance decimal.Decimal, accounts []solana.TokenAccount, sigs []solana.SignatureInfo) {
	fmt.Fprintf(w, "Wallet %s\n", address)
	fmt.Fprintf(w, "  Balance: %s SOL\n", balance.StringFixed(4))
	fmt.Fprintf(w, "  Token accounts: %d\n", len(accounts))
	for _, acct := range accounts {
		fmt.Fprintf(w, "    %s  %s (%s)\n", ShortAddr(string(acct.Mint)), acct.Amount.String(), acct.Program)
	}
	for _, acct := range accounts {
		switch acct.Mint {
		case solana.MarinadeMSOLMint:
			fmt.Fprintf(w, "  Staked: %s mSOL (Marinade)\n", acct.Amount.String())
		case solana.JitoSOLMint:
			fmt.Fprintf(w, "  Staked: %s jitoSOL (Jito)\n", acct.Amount.String())
		}
	}
	if len(sigs) > 0 {
		fmt.Fprintf(w, "  Recent transactions: %d\n", len(sigs))
		for i, sig := range sigs {
			if i >= 5 {
				fmt.Fprintf(w, "    ... and %d more\n", len(sigs)-i)
				break
			}
			status := "ok"
			if sig.Failed {
				status = "FAILED"
			}
			fmt.Fprintf(w, "    %s  slot %d  %s\n", ShortAddr(string(sig.Signature)), sig.Slot, status)
		}
	}
}

// PrintWeb renders a crawled relationship index.
func PrintWeb(w io.Writer, seed solana.Pubkey, ix *web.Index) {
	fmt.Fprintf(w, "Wallet web from seed %s\n", ShortAddr(string(seed)))
	fmt.Fprintf(w, "  Wallets visited: %d\n", ix.VisitedCount())
	fmt.Fprintf(w, "  Tokens indexed:  %d\n", ix.TokenCount())

	conns := ix.ConnectingTokens()
	if len(conns) == 0 {
		fmt.Fprintln(w, "  No connecting tokens found")
	} else {
		fmt.Fprintf(w, "  Connecting tokens (%d):\n", len(conns))
		for _, tc := range conns {
			fmt.Fprintf(w, "    %s  %d holders\n", ShortAddr(string(tc.Mint)), tc.DistinctHolders)
		}
	}

	fmt.Fprintln(w, "  Most connected wallets:")
	for _, wc := range ix.MostConnected(10) {
		fmt.Fprintf(w, "    %s  %d connecting tokens\n", ShortAddr(string(wc.Wallet)), wc.ConnectingTokens)
	}
}

// PrintAnalysis renders a multi-wallet comparison.
func PrintAnalysis(w io.Writer, g *analyze.WalletGraph, minShared, whaleCount int) {
	wallets := g.Wallets()
	fmt.Fprintf(w, "Analyzing %d wallets (%.2f SOL combined)\n", g.WalletCount(), g.TotalSOL())

	fmt.Fprintln(w, "  Pairwise similarity:")
	for i := 0; i < len(wallets); i++ {
		for j := i + 1; j < len(wallets); j++ {
			sim := g.Similarity(wallets[i], wallets[j])
			if sim > 0 {
				fmt.Fprintf(w, "    %s ~ %s  %.1f%%\n",
					ShortAddr(wallets[i]), ShortAddr(wallets[j]), sim*100)
			}
		}
	}

	common := g.CommonTokens()
	if len(common) > 0 {
		fmt.Fprintf(w, "  Common tokens (%d):\n", len(common))
		for _, tg := range common {
			fmt.Fprintf(w, "    %s  held by %d wallets\n", ShortAddr(tg.Mint), len(tg.Holders))
		}
	}

	fmt.Fprintln(w, "  Whales:")
	for i, whale := range g.Whales(whaleCount) {
		fmt.Fprintf(w, "    #%d %s  %.2f SOL\n", i+1, ShortAddr(whale.Address), whale.BalanceSOL)
	}

	clusters := g.Clusters(minShared)
	if len(clusters) == 0 {
		fmt.Fprintf(w, "  No clusters sharing >= %d tokens\n", minShared)
	} else {
		fmt.Fprintf(w, "  Clusters (>= %d shared tokens):\n", minShared)
		for i, cluster := range clusters {
			fmt.Fprintf(w, "    Cluster %d:\n", i+1)
			for _, member := range cluster {
				fmt.Fprintf(w, "      %s\n", ShortAddr(member))
			}
		}
	}
}

// PrintAudit renders a single program audit.
func PrintAudit(w io.Writer, result *audit.Result) {
	fmt.Fprintf(w, "Audit of %s\n", result.ProgramID)
	fmt.Fprintf(w, "  Executable:  %v\n", result.IsExecutable)
	fmt.Fprintf(w, "  Upgradeable: %v\n", result.IsUpgradeable)
	fmt.Fprintf(w, "  Owner:       %s\n", ShortAddr(result.Owner))
	fmt.Fprintf(w, "  Data size:   %d bytes\n", result.DataSize)
	for _, finding := range result.Findings {
		fmt.Fprintf(w, "  ! %s\n", finding)
	}
	fmt.Fprintf(w, "  Risk score:  %d/100 (%s)\n", result.RiskScore, riskLabel(result.RiskScore))
}

// PrintScan renders a full registry scan.
func PrintScan(w io.Writer, entries []audit.ScanEntry, summary audit.ScanSummary) {
	fmt.Fprintf(w, "Scanned %d programs\n", summary.Scanned)
	for _, e := range entries {
		fmt.Fprintf(w, "  %-20s risk %3d/100  %s\n", e.Program.Name, e.Result.RiskScore, riskLabel(e.Result.RiskScore))
	}
	fmt.Fprintf(w, "  Upgradeable: %d/%d\n", summary.Upgradeable, summary.Scanned)
	fmt.Fprintf(w, "  Average risk: %.1f\n", summary.AverageRisk)
}

// PrintPowerMap renders authority concentration.
func PrintPowerMap(w io.Writer, results []authority.Info, pm authority.PowerMap) {
	fmt.Fprintf(w, "Mapped %d programs\n", pm.Total)
	for _, info := range results {
		if info.Immutable() {
			fmt.Fprintf(w, "  %-20s IMMUTABLE\n", info.ProgramName)
			continue
		}
		fmt.Fprintf(w, "  %-20s authority %s  (%.2f SOL, %d recent txs)\n",
			info.ProgramName, ShortAddr(info.UpgradeAuthority), info.AuthoritySOL, info.AuthorityTxCount)
	}

	fmt.Fprintf(w, "Power map: %d authorities control %d upgradeable programs, %d immutable\n",
		pm.UniqueAuthorities, pm.Total-pm.Immutable, pm.Immutable)
	for _, c := range pm.Concentrations {
		if len(c.Programs) > 1 {
			fmt.Fprintf(w, "  %s controls %d programs: %v\n", ShortAddr(c.Authority), len(c.Programs), c.Programs)
		}
	}
}

func riskLabel(score int) string {
	switch {
	case score >= 60:
		return "HIGH RISK"
	case score >= 30:
		return "MEDIUM RISK"
	default:
		return "LOW RISK"
	}
}
