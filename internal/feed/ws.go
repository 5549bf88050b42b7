package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coinpilot/coinpilot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// TickerHandler is called for each live ticker observation.
type TickerHandler func(domain.Ticker)

// StreamClient is a WebSocket client for a Binance-compatible market stream.
// It manages the connection lifecycle and dispatches miniTicker messages to
// the registered handler. Reconnects are the caller's responsibility.
type StreamClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.Mutex
	closed bool
	nextID int

	handler   TickerHandler
	handlerMu sync.RWMutex

	done chan struct{}
}

// NewStreamClient creates a stream client for the given WebSocket endpoint,
// e.g. "wss://stream.binance.com:9443/ws".
func NewStreamClient(wsURL string) *StreamClient {
	return &StreamClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// OnTicker registers the handler invoked for each ticker message.
func (s *StreamClient) OnTicker(h TickerHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handler = h
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops.
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("feed/ws: client closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed/ws: connect: %w", err)
	}
	s.conn = conn

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.readLoop()
	go s.pingLoop()
	return nil
}

// Subscribe subscribes to the miniTicker stream for each symbol.
func (s *StreamClient) Subscribe(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("feed/ws: not connected")
	}

	streams := make([]string, len(symbols))
	for i, sym := range symbols {
		streams[i] = strings.ToLower(sym) + "@miniTicker"
	}
	s.nextID++
	cmd := map[string]any{
		"method": "SUBSCRIBE",
		"params": streams,
		"id":     s.nextID,
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("feed/ws: subscribe: %w", err)
	}
	return nil
}

func (s *StreamClient) readLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.Close()
			return
		}
		s.handleMessage(data)
	}
}

// miniTickerMsg is the Binance 24hr mini-ticker payload. Prices arrive as
// strings.
type miniTickerMsg struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
}

func (s *StreamClient) handleMessage(data []byte) {
	var msg miniTickerMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Event != "24hrMiniTicker" || msg.Symbol == "" {
		return
	}
	price, err := strconv.ParseFloat(msg.Close, 64)
	if err != nil || price <= 0 {
		return
	}
	volume, _ := strconv.ParseFloat(msg.Volume, 64)

	s.handlerMu.RLock()
	handler := s.handler
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(domain.Ticker{
			Symbol:    msg.Symbol,
			Price:     price,
			Volume24h: volume,
			Timestamp: time.UnixMilli(msg.EventTime).UTC(),
		})
	}
}

func (s *StreamClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}

// Close shuts the connection down. Safe to call more than once.
func (s *StreamClient) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
}
