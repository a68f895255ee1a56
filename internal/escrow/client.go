// Package escrow verifies that a match is backed by an on-chain stake. It
// speaks plain JSON-RPC eth_call against the ChessGame contract; settlement
// and fund movement stay entirely off the server.
package escrow

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/sha3"
)

// Verifier is the gate consulted before socket-level join is allowed. A nil
// Verifier disables the gate.
type Verifier interface {
	MatchExists(ctx context.Context, matchID string) (bool, error)
	StakeOf(ctx context.Context, matchID string) (*big.Int, error)
}

type Client struct {
	rpcURL   string
	contract string
	http     *fasthttp.Client
	timeout  time.Duration

	selExists []byte
	selStake  []byte
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func NewClient(rpcURL, contract string, opts ...Option) (*Client, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	contract = strings.TrimSpace(contract)
	if rpcURL == "" || contract == "" {
		return nil, fmt.Errorf("escrow rpc url and contract address are required")
	}
	if !strings.HasPrefix(contract, "0x") || len(contract) != 42 {
		return nil, fmt.Errorf("invalid contract address: %q", contract)
	}
	c := &Client{
		rpcURL:    rpcURL,
		contract:  contract,
		http:      &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		timeout:   10 * time.Second,
		selExists: selector("matchExists(string)"),
		selStake:  selector("stakeOf(string)"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MatchExists reports whether the contract holds a game under matchID.
func (c *Client) MatchExists(ctx context.Context, matchID string) (bool, error) {
	out, err := c.ethCall(ctx, callData(c.selExists, matchID))
	if err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, nil
	}
	return out[len(out)-1] != 0, nil
}

// StakeOf returns the staked amount in wei for matchID.
func (c *Client) StakeOf(ctx context.Context, matchID string) (*big.Int, error) {
	out, err := c.ethCall(ctx, callData(c.selStake, matchID))
	if err != nil {
		return nil, err
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("short stakeOf response: %d bytes", len(out))
	}
	return new(big.Int).SetBytes(out[:32]), nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) ethCall(ctx context.Context, data []byte) ([]byte, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params: []any{
			map[string]string{"to": c.contract, "data": "0x" + hex.EncodeToString(data)},
			"latest",
		},
	})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(c.rpcURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remain := time.Until(deadline); remain < timeout {
			timeout = remain
		}
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("escrow rpc: %w", err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return nil, fmt.Errorf("escrow rpc status %d", code)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("escrow rpc decode: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("escrow rpc error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	return hex.DecodeString(strings.TrimPrefix(parsed.Result, "0x"))
}

// selector derives the 4-byte ABI selector for a function signature.
func selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

// callData joins a selector with its encoded argument without aliasing
// the selector's backing array.
func callData(sel []byte, matchID string) []byte {
	arg := encodeStringArg(matchID)
	data := make([]byte, 0, len(sel)+len(arg))
	data = append(data, sel...)
	return append(data, arg...)
}

// encodeStringArg ABI-encodes a single dynamic string argument: head offset,
// length word, then the bytes padded to a 32-byte boundary.
func encodeStringArg(s string) []byte {
	raw := []byte(s)
	padded := (len(raw) + 31) / 32 * 32
	out := make([]byte, 64+padded)
	out[31] = 0x20
	new(big.Int).SetInt64(int64(len(raw))).FillBytes(out[32:64])
	copy(out[64:], raw)
	return out
}
