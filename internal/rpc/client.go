package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/ratelimiter"
)

const (
	AuthBearer = "bearer"
	AuthBasic  = "basic"
	AuthCustom = "custom"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Type     string
	Token    string
	Username string
	Password string
	Headers  map[string]string
}

// NodeToAuthConfig picks the auth scheme from a finalized node: explicit
// headers win, then basic credentials, then an api key as bearer token.
func NodeToAuthConfig(node config.Node) *AuthConfig {
	switch {
	case len(node.Headers) > 0:
		return &AuthConfig{Type: AuthCustom, Headers: maps.Clone(node.Headers)}
	case node.Username != "":
		return &AuthConfig{Type: AuthBasic, Username: node.Username, Password: node.Password}
	case node.ApiKey != "" && !strings.Contains(node.URL, node.ApiKey):
		token := strings.TrimPrefix(strings.TrimPrefix(node.ApiKey, "Bearer "), "bearer ")
		return &AuthConfig{Type: AuthBearer, Token: token}
	}
	return nil
}

type NetworkClient interface {
	CallRPC(ctx context.Context, method string, params any) (*RPCResponse, error)
	IsHealthy(ctx context.Context) bool
	GetNetworkType() string
	GetURL() string
	Close() error
}

// BaseClient speaks JSON-RPC 2.0 over HTTP POST. Chain clients embed it.
type BaseClient struct {
	httpClient  *http.Client
	baseURL     string
	auth        *AuthConfig
	network     string
	healthCheck string
	rateLimiter *ratelimiter.Limiter
	observe     CallObserver

	rpcID atomic.Int64
}

// CallObserver is told about every completed JSON-RPC call.
type CallObserver func(method string, err error, elapsed time.Duration)

func (c *BaseClient) SetObserver(o CallObserver) {
	c.observe = o
}

func NewBaseClient(
	baseURL, network string,
	auth *AuthConfig,
	timeout time.Duration,
	rateLimiter *ratelimiter.Limiter,
) *BaseClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &BaseClient{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		auth:        auth,
		network:     network,
		rateLimiter: rateLimiter,
	}
	switch network {
	case NetworkSolana:
		c.healthCheck = "getHealth"
	case NetworkBitcoin:
		c.healthCheck = "getblockchaininfo"
	default:
		c.healthCheck = "net_version"
	}
	return c
}

func (c *BaseClient) CallRPC(ctx context.Context, method string, params any) (*RPCResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req := &RPCRequest{ID: c.rpcID.Add(1), JSONRPC: "2.0", Method: method, Params: params}
	start := time.Now()
	resp, err := c.do(ctx, req)
	if c.observe != nil {
		c.observe(method, err, time.Since(start))
	}
	return resp, err
}

func (c *BaseClient) do(ctx context.Context, req *RPCRequest) (*RPCResponse, error) {
	raw, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal RPC response: %w", err)
	}
	if rpcResp.Error != nil {
		return &rpcResp, rpcResp.Error
	}
	return &rpcResp, nil
}

func (c *BaseClient) post(ctx context.Context, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	logger.Debug("HTTP request completed", "network", c.network, "elapsed", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// bitcoind answers RPC errors with HTTP 500 and a JSON body
	if resp.StatusCode >= 300 && !isJSONRPCBody(data) {
		return data, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(data), 256))
	}
	return data, nil
}

func isJSONRPCBody(data []byte) bool {
	var envelope struct {
		Error *RPCError `json:"error"`
	}
	return json.Unmarshal(data, &envelope) == nil && envelope.Error != nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (c *BaseClient) IsHealthy(ctx context.Context) bool {
	_, err := c.CallRPC(ctx, c.healthCheck, nil)
	return err == nil
}

func (c *BaseClient) setAuthHeaders(req *http.Request) {
	if c.auth == nil {
		return
	}
	switch c.auth.Type {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+c.auth.Token)
	case AuthBasic:
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	case AuthCustom:
		for k, v := range c.auth.Headers {
			req.Header.Set(k, v)
		}
	}
}

func (c *BaseClient) GetNetworkType() string { return c.network }
func (c *BaseClient) GetURL() string         { return c.baseURL }
func (c *BaseClient) Close() error           { return nil }
