package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseClient_IsHealthy(t *testing.T) {
	tests := []struct {
		name        string
		network     string
		wantMethod  string
		handler     func(w http.ResponseWriter, r *http.Request)
		wantHealthy bool
	}{
		{
			name:       "solana healthy",
			network:    NetworkSolana,
			wantMethod: "getHealth",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"ok"}`))
			},
			wantHealthy: true,
		},
		{
			name:       "bitcoin rpc error",
			network:    NetworkBitcoin,
			wantMethod: "getblockchaininfo",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"result":null,"error":{"code":-28,"message":"Loading block index..."},"id":1}`))
			},
			wantHealthy: false,
		},
		{
			name:       "gateway down",
			network:    NetworkEVM,
			wantMethod: "net_version",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("bad gateway"))
			},
			wantHealthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMethod string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req RPCRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				gotMethod = req.Method
				tt.handler(w, r)
			}))
			defer server.Close()

			client := NewBaseClient(server.URL, tt.network, nil, 5*time.Second, nil)
			assert.Equal(t, tt.wantHealthy, client.IsHealthy(context.Background()))
			assert.Equal(t, tt.wantMethod, gotMethod)
		})
	}
}

func TestBaseClient_JSONRPCErrorOnHTTP500(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"result":null,"error":{"code":-8,"message":"Block height out of range"},"id":1}`))
	}))
	defer server.Close()

	client := NewBaseClient(server.URL, NetworkBitcoin, nil, time.Second, nil)
	_, err := client.CallRPC(context.Background(), "getblockhash", []any{900000})

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -8, rpcErr.Code)
}

func TestBaseClient_Observer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":5}`))
	}))
	defer server.Close()

	client := NewBaseClient(server.URL, NetworkSolana, nil, time.Second, nil)
	var observed string
	client.SetObserver(func(method string, err error, _ time.Duration) {
		observed = method
		assert.NoError(t, err)
	})

	resp, err := client.CallRPC(context.Background(), "getSlot", nil)
	require.NoError(t, err)
	var slot uint64
	require.NoError(t, resp.Decode(&slot))
	assert.Equal(t, uint64(5), slot)
	assert.Equal(t, "getSlot", observed)
}

func TestNodeToAuthConfig(t *testing.T) {
	tests := []struct {
		name string
		node config.Node
		want *AuthConfig
	}{
		{
			name: "bearer prefix stripped",
			node: config.Node{URL: "https://rpc.example", ApiKey: "bearer abc123"},
			want: &AuthConfig{Type: AuthBearer, Token: "abc123"},
		},
		{
			name: "api key as bearer",
			node: config.Node{URL: "https://rpc.example", ApiKey: "xyz789"},
			want: &AuthConfig{Type: AuthBearer, Token: "xyz789"},
		},
		{
			name: "api key already in url",
			node: config.Node{URL: "https://rpc.example/v2/xyz789", ApiKey: "xyz789"},
			want: nil,
		},
		{
			name: "basic auth",
			node: config.Node{URL: "http://127.0.0.1:8332", Username: "rpc", Password: "secret"},
			want: &AuthConfig{Type: AuthBasic, Username: "rpc", Password: "secret"},
		},
		{
			name: "custom headers",
			node: config.Node{URL: "https://rpc.example", Headers: map[string]string{"X-API-Key": "custom123"}},
			want: &AuthConfig{Type: AuthCustom, Headers: map[string]string{"X-API-Key": "custom123"}},
		},
		{
			name: "no auth",
			node: config.Node{URL: "https://rpc.example"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NodeToAuthConfig(tt.node))
		})
	}
}

type stubClient struct {
	*BaseClient
	calls atomic.Int32
	err   error
}

func (s *stubClient) ping() error {
	s.calls.Add(1)
	return s.err
}

func newStub(name string, err error) *stubClient {
	return &stubClient{BaseClient: NewBaseClient("http://"+name, NetworkSolana, nil, time.Second, nil), err: err}
}

func testFailover(t *testing.T, clients ...*stubClient) *Failover[*stubClient] {
	t.Helper()
	cfg := DefaultFailoverConfig()
	cfg.RetryInterval = time.Millisecond
	f := NewFailover[*stubClient](&cfg)
	for i, c := range clients {
		require.NoError(t, f.AddProvider(&Provider{Name: c.GetURL(), URL: c.GetURL(), Client: clients[i]}))
	}
	return f
}

func TestFailover_BlacklistsAndSwitches(t *testing.T) {
	limited := newStub("limited", errors.New("HTTP 429: too many requests"))
	healthy := newStub("healthy", nil)
	f := testFailover(t, limited, healthy)

	err := f.ExecuteWithRetry(context.Background(), func(c *stubClient) error { return c.ping() })
	require.NoError(t, err)
	assert.Equal(t, int32(1), limited.calls.Load())
	assert.Equal(t, int32(1), healthy.calls.Load())

	p, err := f.GetBestProvider()
	require.NoError(t, err)
	assert.Equal(t, "http://healthy", p.Name)
}

func TestFailover_UpstreamUnavailableSwitches(t *testing.T) {
	down := newStub("down", errors.New("getSlot: HTTP 503: service unavailable"))
	up := newStub("up", nil)
	f := testFailover(t, down, up)

	require.NoError(t, f.ExecuteWithRetry(context.Background(), func(c *stubClient) error { return c.ping() }))
	assert.Equal(t, int32(1), up.calls.Load())
}

func TestFailover_RPCErrorIsNotRetried(t *testing.T) {
	bad := newStub("node", &RPCError{Code: -32602, Message: "invalid params"})
	f := testFailover(t, bad)

	err := f.ExecuteWithRetry(context.Background(), func(c *stubClient) error { return c.ping() })
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int32(1), bad.calls.Load())
}

func TestFailover_NoProvider(t *testing.T) {
	f := NewFailover[*stubClient](nil)
	err := f.ExecuteWithRetry(context.Background(), func(*stubClient) error { return nil })
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestFailover_ForcesSoonestBanBack(t *testing.T) {
	a := newStub("a", errors.New("connection refused"))
	b := newStub("b", errors.New("HTTP 429: too many requests"))
	f := testFailover(t, a, b)
	now := time.Unix(1_700_000_000, 0)
	f.now = func() time.Time { return now }

	err := f.ExecuteWithRetry(context.Background(), func(c *stubClient) error { return c.ping() })
	require.Error(t, err)

	// a is banned for 2m, b for 5m
	assert.Equal(t, StateBlacklisted, f.providers[0].Health().State)
	assert.Equal(t, StateBlacklisted, f.providers[1].Health().State)

	p, err := f.GetBestProvider()
	require.NoError(t, err)
	assert.Equal(t, "http://a", p.Name)
	assert.Equal(t, StateDegraded, p.Health().State)

	now = now.Add(6 * time.Minute)
	p, err = f.GetBestProvider()
	require.NoError(t, err)
	assert.Equal(t, "http://a", p.Name, "current provider stays while usable")
}

func TestProvider_LatencyAverage(t *testing.T) {
	p := &Provider{Name: "n"}
	p.succeed(100 * time.Millisecond)
	p.succeed(500 * time.Millisecond)
	h := p.Health()
	assert.Equal(t, StateHealthy, h.State)
	assert.Equal(t, 200*time.Millisecond, h.Latency)

	for range 5 {
		p.fail(5)
	}
	assert.Equal(t, StateUnhealthy, p.Health().State)
	assert.Equal(t, 5, p.Health().Errors)
}
