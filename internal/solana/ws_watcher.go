package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// WebSocket Account Watcher — real-time program account change detection
// Subscribes to accountSubscribe for each watched program so the guardian
// daemon can react to upgrades between polling cycles
// ---------------------------------------------------------------------------

// WatcherConfig configures the WebSocket account watcher.
type WatcherConfig struct {
	WSEndpoint       string   `yaml:"ws_endpoint"`
	Accounts         []string `yaml:"accounts"` // program/account addresses to watch
	ReconnectDelayMs int      `yaml:"reconnect_delay_ms"`
	PingIntervalS    int      `yaml:"ping_interval_s"`
}

// DefaultWatcherConfig returns defaults for mainnet watching.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		WSEndpoint:       "wss://api.mainnet-beta.solana.com",
		ReconnectDelayMs: 1000,
		PingIntervalS:    30,
	}
}

// AccountEvent is emitted when a watched account's state changes.
type AccountEvent struct {
	Address    string    `json:"address"`
	Lamports   uint64    `json:"lamports"`
	DataSize   int       `json:"data_size"`
	Slot       uint64    `json:"slot"`
	DetectedAt time.Time `json:"detected_at"`
}

// AccountWatcher monitors watched accounts over a Solana WebSocket.
type AccountWatcher struct {
	config WatcherConfig

	mu      sync.RWMutex
	conn    *websocket.Conn
	pending map[int64]string // request ID -> address, awaiting confirmation
	subs    map[int64]string // server subscription ID -> watched address

	eventChan chan AccountEvent
	closed    atomic.Bool

	nextSubID atomic.Int64

	// Stats.
	messagesRecv atomic.Int64
	changesSeen  atomic.Int64
	reconnects   atomic.Int64
	connected    atomic.Bool
}

// NewAccountWatcher creates a new account watcher.
func NewAccountWatcher(config WatcherConfig) *AccountWatcher {
	return &AccountWatcher{
		config:    config,
		pending:   make(map[int64]string),
		subs:      make(map[int64]string),
		eventChan: make(chan AccountEvent, 256),
	}
}

// Start connects and begins watching. Returns the event channel; the
// watcher runs until ctx is cancelled, reconnecting on failure.
func (w *AccountWatcher) Start(ctx context.Context) (<-chan AccountEvent, error) {
	if len(w.config.Accounts) == 0 {
		return nil, fmt.Errorf("ws: no accounts to watch")
	}
	go w.runLoop(ctx)
	return w.eventChan, nil
}

func (w *AccountWatcher) runLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("ws: runLoop panic recovered")
		}
		w.mu.Lock()
		if w.closed.CompareAndSwap(false, true) {
			close(w.eventChan)
		}
		w.mu.Unlock()
	}()

	reconnectDelay := time.Duration(w.config.ReconnectDelayMs) * time.Millisecond
	const maxDelay = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			w.disconnect()
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			log.Warn().Err(err).Msg("ws: connection failed")
			w.reconnects.Add(1)
			select {
			case <-time.After(reconnectDelay):
				reconnectDelay *= 2
				if reconnectDelay > maxDelay {
					reconnectDelay = maxDelay
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		reconnectDelay = time.Duration(w.config.ReconnectDelayMs) * time.Millisecond

		for _, addr := range w.config.Accounts {
			if err := w.subscribe(addr); err != nil {
				log.Warn().Err(err).Str("account", shortAddr(addr)).Msg("ws: subscribe failed")
			}
		}

		w.readLoop(ctx)
	}
}

func (w *AccountWatcher) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, w.config.WSEndpoint, http.Header{})
	if err != nil {
		return fmt.Errorf("ws: dial: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.pending = make(map[int64]string)
	w.subs = make(map[int64]string)
	w.mu.Unlock()
	w.connected.Store(true)

	log.Info().Str("endpoint", w.config.WSEndpoint).Msg("ws: connected")
	return nil
}

func (w *AccountWatcher) disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected.Store(false)
}

// subscribe sends an accountSubscribe request for an address.
func (w *AccountWatcher) subscribe(address string) error {
	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("ws: not connected")
	}

	reqID := w.nextSubID.Add(1)

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      reqID,
		"method":  "accountSubscribe",
		"params": []any{
			address,
			map[string]any{
				"encoding":   "base64",
				"commitment": "confirmed",
			},
		},
	}

	w.mu.Lock()
	w.pending[reqID] = address
	err := w.conn.WriteJSON(req)
	w.mu.Unlock()

	if err != nil {
		return fmt.Errorf("ws: write subscribe: %w", err)
	}

	log.Info().Str("account", shortAddr(address)).Msg("ws: watching account")
	return nil
}

func (w *AccountWatcher) readLoop(ctx context.Context) {
	pingInterval := time.Duration(w.config.PingIntervalS) * time.Second
	if pingInterval == 0 {
		pingInterval = 30 * time.Second
	}
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()
			if conn != nil {
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Debug().Err(err).Msg("ws: ping failed")
					return
				}
			}
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Msg("ws: connection closed normally")
			} else {
				log.Warn().Err(err).Msg("ws: read error, reconnecting")
			}
			w.connected.Store(false)
			return
		}

		w.messagesRecv.Add(1)
		w.handleMessage(message)
	}
}

func (w *AccountWatcher) handleMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("ws: handleMessage panic recovered")
		}
	}()

	var notification struct {
		Method string `json:"method"`
		Params struct {
			Result struct {
				Value struct {
					Lamports uint64   `json:"lamports"`
					Data     []string `json:"data"`
				} `json:"value"`
				Context struct {
					Slot uint64 `json:"slot"`
				} `json:"context"`
			} `json:"result"`
			Subscription int64 `json:"subscription"`
		} `json:"params"`
	}

	if err := json.Unmarshal(data, &notification); err != nil {
		return
	}

	if notification.Method != "accountNotification" {
		// Subscription confirmation: the server assigns its own subscription
		// ID in result; notifications carry that ID, not our request ID.
		var subResp struct {
			ID     int64 `json:"id"`
			Result int64 `json:"result"`
		}
		if json.Unmarshal(data, &subResp) == nil && subResp.Result > 0 {
			w.mu.Lock()
			address, ok := w.pending[subResp.ID]
			if ok {
				delete(w.pending, subResp.ID)
				w.subs[subResp.Result] = address
			}
			w.mu.Unlock()
			if ok {
				log.Debug().
					Int64("sub_id", subResp.Result).
					Str("account", shortAddr(address)).
					Msg("ws: subscription confirmed")
			}
		}
		return
	}

	w.mu.RLock()
	address := w.subs[notification.Params.Subscription]
	w.mu.RUnlock()

	dataSize := 0
	if len(notification.Params.Result.Value.Data) > 0 {
		// base64 length approximates data size; the daemon re-reads via RPC.
		dataSize = len(notification.Params.Result.Value.Data[0]) * 3 / 4
	}

	event := AccountEvent{
		Address:    address,
		Lamports:   notification.Params.Result.Value.Lamports,
		DataSize:   dataSize,
		Slot:       notification.Params.Result.Context.Slot,
		DetectedAt: time.Now(),
	}

	w.changesSeen.Add(1)

	w.mu.RLock()
	if !w.closed.Load() {
		select {
		case w.eventChan <- event:
			log.Info().
				Str("account", shortAddr(address)).
				Uint64("slot", event.Slot).
				Msg("ws: ACCOUNT CHANGED")
		default:
			log.Warn().Msg("ws: event channel full, dropping event")
		}
	}
	w.mu.RUnlock()
}

func shortAddr(addr string) string {
	if len(addr) > 8 {
		return addr[:8]
	}
	return addr
}

// WatcherStats returns watcher statistics.
type WatcherStats struct {
	Connected    bool  `json:"connected"`
	MessagesRecv int64 `json:"messages_recv"`
	ChangesSeen  int64 `json:"changes_seen"`
	Reconnects   int64 `json:"reconnects"`
}

func (w *AccountWatcher) Stats() WatcherStats {
	return WatcherStats{
		Connected:    w.connected.Load(),
		MessagesRecv: w.messagesRecv.Load(),
		ChangesSeen:  w.changesSeen.Load(),
		Reconnects:   w.reconnects.Load(),
	}
}
