package rpc

import (
	"encoding/json"
	"fmt"
)

// Network types
const (
	NetworkEVM     = "evm"
	NetworkSolana  = "solana"
	NetworkBitcoin = "bitcoin"
)

// RPCRequest represents a JSON-RPC request
type RPCRequest struct {
	ID      any    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCResponse represents a JSON-RPC response
type RPCResponse struct {
	ID      any             `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Decode unmarshals the result into v. A JSON null result leaves v untouched.
func (r *RPCResponse) Decode(v any) error {
	if len(r.Result) == 0 {
		return nil
	}
	return json.Unmarshal(r.Result, v)
}

// IsNull reports whether the node answered with a null result.
func (r *RPCResponse) IsNull() bool {
	return len(r.Result) == 0 || string(r.Result) == "null"
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}
