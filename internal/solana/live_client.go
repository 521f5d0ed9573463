package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ---------------------------------------------------------------------------
// Live Client — real Solana JSON-RPC with rate limiting & retry
// ---------------------------------------------------------------------------

// ClientConfig configures the live data-source client.
type ClientConfig struct {
	Endpoint     string        `yaml:"endpoint"`       // e.g. https://api.mainnet-beta.solana.com
	WSEndpoint   string        `yaml:"ws_endpoint"`    // e.g. wss://api.mainnet-beta.solana.com
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"` // requests per second limit
}

// DefaultClientConfig returns mainnet defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:     "https://api.mainnet-beta.solana.com",
		WSEndpoint:   "wss://api.mainnet-beta.solana.com",
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RateLimitRPS: 10,
	}
}

// LiveClient connects to a real Solana RPC endpoint.
type LiveClient struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter

	nextID atomic.Int64

	// Circuit breaker.
	consecutiveErrors atomic.Int64
	circuitOpen       atomic.Bool

	// Stats.
	requestCount  atomic.Int64
	errorCount    atomic.Int64
	latencySum    atomic.Int64 // cumulative microseconds
	lastRequestAt atomic.Int64
}

const (
	circuitBreakerThreshold = 10 // open after 10 consecutive errors
	circuitBreakerCooldown  = 30 * time.Second
)

// NewLiveClient creates a live Solana RPC client.
func NewLiveClient(config ClientConfig) *LiveClient {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RateLimitRPS == 0 {
		config.RateLimitRPS = 10
	}

	burst := int(config.RateLimitRPS)
	if burst < 1 {
		burst = 1
	}

	return &LiveClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimitRPS), burst),
	}
}

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call makes a rate-limited, retried JSON-RPC call.
func (c *LiveClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if c.circuitOpen.Load() {
		return nil, fmt.Errorf("rpc: circuit breaker open for %s (too many consecutive errors)", method)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		start := time.Now()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("rpc: create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("rpc: %s http error: %w", method, err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("rpc: %s read response: %w", method, err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		c.requestCount.Add(1)
		c.latencySum.Add(time.Since(start).Microseconds())
		c.lastRequestAt.Store(time.Now().UnixMilli())

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rpc: %s rate limited (429)", method)
			c.errorCount.Add(1)
			// Longer backoff on 429 - not a circuit-breaker error.
			select {
			case <-time.After(time.Duration(2<<uint(attempt)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("rpc: %s HTTP %d: %s", method, resp.StatusCode, string(respBody))
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("rpc: %s unmarshal response: %w", method, err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		if rpcResp.Error != nil {
			c.resetErrors()
			return nil, fmt.Errorf("rpc: %s error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
		}

		c.resetErrors()
		return rpcResp.Result, nil
	}

	return nil, fmt.Errorf("rpc: %s failed after %d attempts: %w", method, c.config.MaxRetries+1, lastErr)
}

// recordError increments consecutive errors and opens circuit breaker if needed.
func (c *LiveClient) recordError() {
	count := c.consecutiveErrors.Add(1)
	if count >= circuitBreakerThreshold {
		if c.circuitOpen.CompareAndSwap(false, true) {
			log.Error().Int64("errors", count).Msg("rpc: CIRCUIT BREAKER OPEN - too many consecutive errors")
			go func() {
				time.Sleep(circuitBreakerCooldown)
				c.circuitOpen.Store(false)
				c.consecutiveErrors.Store(0)
				log.Info().Msg("rpc: circuit breaker reset")
			}()
		}
	}
}

func (c *LiveClient) resetErrors() {
	c.consecutiveErrors.Store(0)
}

// ---------------------------------------------------------------------------
// Client interface implementation
// ---------------------------------------------------------------------------

// tokenAccountsResult matches getTokenAccountsByOwner (jsonParsed).
type tokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint        string `json:"mint"`
						TokenAmount struct {
							UIAmount       float64 `json:"uiAmount"`
							UIAmountString string  `json:"uiAmountString"`
							Decimals       uint8   `json:"decimals"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

func (c *LiveClient) tokenAccountsByProgram(ctx context.Context, wallet Pubkey, programID, label string) ([]TokenAccount, error) {
	result, err := c.call(ctx, "getTokenAccountsByOwner", []any{
		string(wallet),
		map[string]any{"programId": programID},
		map[string]any{"encoding": "jsonParsed"},
	})
	if err != nil {
		return nil, err
	}

	var resp tokenAccountsResult
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("rpc: parse token accounts: %w", err)
	}

	accounts := make([]TokenAccount, 0, len(resp.Value))
	for _, v := range resp.Value {
		info := v.Account.Data.Parsed.Info
		if info.TokenAmount.UIAmount <= 0 {
			continue // skip empty accounts
		}
		amount, _ := decimal.NewFromString(info.TokenAmount.UIAmountString)
		accounts = append(accounts, TokenAccount{
			Mint:     Pubkey(info.Mint),
			Amount:   amount,
			Decimals: info.TokenAmount.Decimals,
			Program:  label,
		})
	}
	return accounts, nil
}

// GetTokenAccounts returns the wallet's token accounts across both the SPL
// Token and Token-2022 programs. A failure of the Token-2022 leg degrades to
// the classic program's results.
func (c *LiveClient) GetTokenAccounts(ctx context.Context, wallet Pubkey) ([]TokenAccount, error) {
	classic, err := c.tokenAccountsByProgram(ctx, wallet, TokenProgram, "spl-token")
	if err != nil {
		return nil, err
	}

	modern, err := c.tokenAccountsByProgram(ctx, wallet, Token2022Program, "spl-token-2022")
	if err != nil {
		log.Debug().Err(err).Str("wallet", string(wallet)).Msg("rpc: token-2022 lookup failed")
		return classic, nil
	}

	return append(classic, modern...), nil
}

// GetHoldings returns the distinct mints held with a positive balance.
func (c *LiveClient) GetHoldings(ctx context.Context, wallet Pubkey) ([]Pubkey, error) {
	accounts, err := c.GetTokenAccounts(ctx, wallet)
	if err != nil {
		return nil, err
	}

	seen := make(map[Pubkey]bool, len(accounts))
	mints := make([]Pubkey, 0, len(accounts))
	for _, acc := range accounts {
		if !seen[acc.Mint] {
			seen[acc.Mint] = true
			mints = append(mints, acc.Mint)
		}
	}
	sort.Slice(mints, func(i, j int) bool { return mints[i] < mints[j] })
	return mints, nil
}

// GetBalance fetches the wallet's SOL balance.
func (c *LiveClient) GetBalance(ctx context.Context, wallet Pubkey) (decimal.Decimal, error) {
	result, err := c.call(ctx, "getBalance", []any{
		string(wallet),
		map[string]any{"commitment": "confirmed"},
	})
	if err != nil {
		return decimal.Zero, err
	}

	var resp struct {
		Value uint64 `json:"value"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("rpc: parse balance: %w", err)
	}

	return decimal.NewFromInt(int64(resp.Value)).Div(decimal.NewFromInt(LamportsPerSOL)), nil
}

// GetLargestHolders returns the token's largest accounts resolved to their
// owning wallets. Accounts whose owner cannot be resolved are dropped.
func (c *LiveClient) GetLargestHolders(ctx context.Context, mint Pubkey, limit int) ([]Pubkey, error) {
	result, err := c.call(ctx, "getTokenLargestAccounts", []any{string(mint)})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value []struct {
			Address string `json:"address"`
			Amount  string `json:"amount"`
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("rpc: parse largest accounts: %w", err)
	}

	owners := make([]Pubkey, 0, limit)
	for i, acc := range resp.Value {
		if i >= limit {
			break
		}
		owner, err := c.getAccountOwner(ctx, Pubkey(acc.Address))
		if err != nil {
			log.Debug().Err(err).Str("token_account", acc.Address).Msg("rpc: owner resolution failed")
			continue
		}
		owners = append(owners, owner)
	}
	return owners, nil
}

// getAccountOwner resolves a token account to the wallet that owns it.
func (c *LiveClient) getAccountOwner(ctx context.Context, tokenAccount Pubkey) (Pubkey, error) {
	result, err := c.call(ctx, "getAccountInfo", []any{
		string(tokenAccount),
		map[string]any{"encoding": "jsonParsed"},
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Value *struct {
			Data struct {
				Parsed struct {
					Info struct {
						Owner string `json:"owner"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return "", fmt.Errorf("rpc: parse account owner: %w", err)
	}
	if resp.Value == nil || resp.Value.Data.Parsed.Info.Owner == "" {
		return "", fmt.Errorf("rpc: no owner for token account %s", tokenAccount)
	}
	return Pubkey(resp.Value.Data.Parsed.Info.Owner), nil
}

// GetAccountInfo fetches raw account state with base64-decoded data.
func (c *LiveClient) GetAccountInfo(ctx context.Context, address Pubkey) (*AccountInfo, error) {
	result, err := c.call(ctx, "getAccountInfo", []any{
		string(address),
		map[string]any{"encoding": "base64"},
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value *struct {
			Data       []string `json:"data"` // [base64_data, "base64"]
			Owner      string   `json:"owner"`
			Executable bool     `json:"executable"`
			Lamports   uint64   `json:"lamports"`
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("rpc: parse account info: %w", err)
	}
	if resp.Value == nil {
		return nil, fmt.Errorf("rpc: account %s not found", address)
	}

	var data []byte
	if len(resp.Value.Data) > 0 {
		data, err = base64.StdEncoding.DecodeString(resp.Value.Data[0])
		if err != nil {
			return nil, fmt.Errorf("rpc: decode account data: %w", err)
		}
	}

	return &AccountInfo{
		Address:    address,
		Owner:      resp.Value.Owner,
		Executable: resp.Value.Executable,
		Lamports:   resp.Value.Lamports,
		Data:       data,
		DataSize:   len(data),
	}, nil
}

// GetRecentSignatures returns recent transaction signatures for an address.
func (c *LiveClient) GetRecentSignatures(ctx context.Context, address Pubkey, limit int) ([]SignatureInfo, error) {
	result, err := c.call(ctx, "getSignaturesForAddress", []any{
		string(address),
		map[string]any{"limit": limit},
	})
	if err != nil {
		return nil, err
	}

	var resp []struct {
		Signature string `json:"signature"`
		Slot      uint64 `json:"slot"`
		BlockTime int64  `json:"blockTime"`
		Err       any    `json:"err"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("rpc: parse signatures: %w", err)
	}

	sigs := make([]SignatureInfo, 0, len(resp))
	for _, s := range resp {
		info := SignatureInfo{
			Signature: Pubkey(s.Signature),
			Slot:      s.Slot,
			Failed:    s.Err != nil,
		}
		if s.BlockTime > 0 {
			info.BlockTime = time.Unix(s.BlockTime, 0).UTC()
		}
		sigs = append(sigs, info)
	}
	return sigs, nil
}

// Health checks the RPC endpoint.
func (c *LiveClient) Health(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.call(healthCtx, "getHealth", nil)
	return err
}

// ClientStats returns data-source client statistics.
type ClientStats struct {
	RequestCount  int64 `json:"request_count"`
	ErrorCount    int64 `json:"error_count"`
	AvgLatencyUs  int64 `json:"avg_latency_us"`
	LastRequestAt int64 `json:"last_request_at"`
	CircuitOpen   bool  `json:"circuit_open"`
	ConsecErrors  int64 `json:"consecutive_errors"`
}

func (c *LiveClient) Stats() ClientStats {
	reqCount := c.requestCount.Load()
	avgLatency := int64(0)
	if reqCount > 0 {
		avgLatency = c.latencySum.Load() / reqCount
	}
	return ClientStats{
		RequestCount:  reqCount,
		ErrorCount:    c.errorCount.Load(),
		AvgLatencyUs:  avgLatency,
		LastRequestAt: c.lastRequestAt.Load(),
		CircuitOpen:   c.circuitOpen.Load(),
		ConsecErrors:  c.consecutiveErrors.Load(),
	}
}
