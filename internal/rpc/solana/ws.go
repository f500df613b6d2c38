package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/gorilla/websocket"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 60 * time.Second
	wsPingInterval     = 20 * time.Second
	wsWriteTimeout     = 5 * time.Second
)

var ErrSubscriptionClosed = errors.New("root subscription closed")

// WSEndpoint returns ws_url, or the first node's URL with a websocket scheme.
func WSEndpoint(chain config.ChainConfig) string {
	if chain.WSURL != "" {
		return chain.WSURL
	}
	if len(chain.Nodes) == 0 {
		return ""
	}
	u := chain.Nodes[0].URL
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type wsMessage struct {
	ID     *int            `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Params *struct {
		Result       uint64 `json:"result"`
		Subscription uint64 `json:"subscription"`
	} `json:"params"`
}

// RootSubscription streams finalized-root slot numbers from a node's
// rootSubscribe feed. Roots is closed when the connection ends; Err then
// reports why.
type RootSubscription struct {
	conn  *websocket.Conn
	roots chan uint64
	done  chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// SubscribeRoots dials endpoint and waits for the subscription ack.
func SubscribeRoots(ctx context.Context, endpoint string) (*RootSubscription, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	req := wsRequest{JSONRPC: "2.0", ID: 1, Method: "rootSubscribe"}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send rootSubscribe: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(wsHandshakeTimeout))
	var ack wsMessage
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read rootSubscribe ack: %w", err)
	}
	if ack.Error != nil {
		conn.Close()
		return nil, fmt.Errorf("rootSubscribe rejected: %d %s", ack.Error.Code, ack.Error.Message)
	}

	s := &RootSubscription{
		conn:  conn,
		roots: make(chan uint64, 64),
		done:  make(chan struct{}),
	}
	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.fail(ctx.Err())
		case <-s.done:
		}
	}()
	return s, nil
}

func (s *RootSubscription) Roots() <-chan uint64 { return s.roots }

func (s *RootSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *RootSubscription) Close() error {
	s.fail(ErrSubscriptionClosed)
	s.wg.Wait()
	return nil
}

func (s *RootSubscription) fail(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		s.conn.Close()
	})
}

func (s *RootSubscription) readLoop() {
	defer s.wg.Done()
	defer close(s.roots)

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(fmt.Errorf("read: %w", err))
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Method != "rootNotification" || msg.Params == nil {
			continue
		}
		select {
		case s.roots <- msg.Params.Result:
		case <-s.done:
			return
		}
	}
}

func (s *RootSubscription) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.fail(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}
