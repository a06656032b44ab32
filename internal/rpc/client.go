// Package rpc reads ledger accounts from a Solana JSON-RPC endpoint.
package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
	"SASVerify/internal/logger"
)

const (
	// EncodingBase64 requests plain base64 account data.
	EncodingBase64 = "base64"

	// EncodingBase64Zstd requests zstd-compressed base64 account data.
	EncodingBase64Zstd = "base64+zstd"

	// maxResponseSize bounds a single response body.
	maxResponseSize = 64 << 20

	// maxBatch is the node's getMultipleAccounts limit.
	maxBatch = 100

	// maxAccountData bounds decompressed account data, the runtime's 10 MiB account limit.
	maxAccountData = 10 << 20
)

// Config configures a Client.
type Config struct {
	Endpoint   string        // Endpoint is the JSON-RPC URL
	Commitment string        // Commitment is processed, confirmed or finalized
	Encoding   string        // Encoding is base64 or base64+zstd
	Timeout    time.Duration // Timeout bounds each request
	HTTPClient *http.Client  // HTTPClient overrides the default transport
}

// Client implements ledger.MultiAccessor over JSON-RPC.
type Client struct {
	endpoint   string
	commitment string
	encoding   string
	http       *http.Client
	decoder    *zstd.Decoder
	log        *slog.Logger
	nextID     atomic.Uint64
}

// NewClient creates a client. Empty fields take defaults: confirmed
// commitment, base64+zstd encoding, 15s timeout.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("rpc endpoint is required")
	}

	c := &Client{
		endpoint:   cfg.Endpoint,
		commitment: cfg.Commitment,
		encoding:   cfg.Encoding,
		http:       cfg.HTTPClient,
		log:        logger.With("endpoint", cfg.Endpoint),
	}

	if c.commitment == "" {
		c.commitment = "confirmed"
	}

	if c.encoding == "" {
		c.encoding = EncodingBase64Zstd
	}

	if c.encoding != EncodingBase64 && c.encoding != EncodingBase64Zstd {
		return nil, fmt.Errorf("unsupported encoding %q", c.encoding)
	}

	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxAccountData))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder:\n%w", err)
	}
	c.decoder = dec

	return c, nil
}

// Close releases the decoder.
func (c *Client) Close() {
	c.decoder.Close()
}

// accountInfo is the JSON shape of one account.
type accountInfo struct {
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// contextResult wraps a value with the slot it was read at.
type contextResult[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

// GetAccount implements ledger.Accessor.
func (c *Client) GetAccount(ctx context.Context, addr address.Pubkey) (*ledger.Account, error) {
	var res contextResult[*accountInfo]

	params := []any{addr.String(), c.accountConfig()}
	if err := c.call(ctx, "getAccountInfo", params, &res); err != nil {
		return nil, err
	}

	if res.Value == nil {
		return nil, ledger.ErrNotFound
	}

	return c.toAccount(addr, res.Value)
}

// GetMultipleAccounts implements ledger.MultiAccessor, splitting large
// requests into node-sized batches.
func (c *Client) GetMultipleAccounts(ctx context.Context, addrs []address.Pubkey) ([]*ledger.Account, error) {
	out := make([]*ledger.Account, 0, len(addrs))

	for start := 0; start < len(addrs); start += maxBatch {
		end := min(start+maxBatch, len(addrs))
		batch := addrs[start:end]

		keys := make([]string, len(batch))
		for i, a := range batch {
			keys[i] = a.String()
		}

		var res contextResult[[]*accountInfo]
		if err := c.call(ctx, "getMultipleAccounts", []any{keys, c.accountConfig()}, &res); err != nil {
			return nil, err
		}

		if len(res.Value) != len(batch) {
			return nil, fmt.Errorf("getMultipleAccounts returned %d accounts for %d addresses", len(res.Value), len(batch))
		}

		for i, info := range res.Value {
			if info == nil {
				out = append(out, nil)
				continue
			}

			account, err := c.toAccount(batch[i], info)
			if err != nil {
				return nil, err
			}
			out = append(out, account)
		}
	}

	return out, nil
}

// GetSlot returns the current slot at the configured commitment.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", []any{map[string]string{"commitment": c.commitment}}, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// accountConfig returns the per-request options.
func (c *Client) accountConfig() map[string]string {
	return map[string]string{
		"encoding":   c.encoding,
		"commitment": c.commitment,
	}
}

// toAccount decodes the data field and owner of an account.
// Malformed fields are tagged ledger.ErrDecode: the account exists but its
// bytes cannot be used.
func (c *Client) toAccount(addr address.Pubkey, info *accountInfo) (*ledger.Account, error) {
	owner, err := address.ParsePubkey(info.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: account %s owner:\n%w", ledger.ErrDecode, addr, err)
	}

	data, err := c.decodeData(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: account %s data:\n%w", ledger.ErrDecode, addr, err)
	}

	return &ledger.Account{
		Address:    addr,
		Owner:      owner,
		Lamports:   info.Lamports,
		Executable: info.Executable,
		RentEpoch:  info.RentEpoch,
		Data:       data,
	}, nil
}

// decodeData decodes a ["<payload>", "<encoding>"] pair.
func (c *Client) decodeData(pair []string) ([]byte, error) {
	if len(pair) != 2 {
		return nil, fmt.Errorf("unexpected data shape: %d elements", len(pair))
	}

	raw, err := base64.StdEncoding.DecodeString(pair[0])
	if err != nil {
		return nil, fmt.Errorf("decode base64:\n%w", err)
	}

	switch pair[1] {
	case EncodingBase64:
		return raw, nil
	case EncodingBase64Zstd:
		if len(raw) == 0 {
			return raw, nil
		}
		out, err := c.decoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress zstd:\n%w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported data encoding %q", pair[1])
	}
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC request and decodes its result.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s:\n%w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request:\n%w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s %s:\n%w", c.endpoint, method, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s %s: status %d", c.endpoint, method, resp.StatusCode)
	}

	var rpcResp response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode %s response:\n%w", method, err)
	}

	if rpcResp.Error != nil {
		return fmt.Errorf("%s:\n%w", method, rpcResp.Error)
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("decode %s result:\n%w", method, err)
	}

	c.log.Debug("rpc call", "method", method, "bytes", resp.ContentLength, logger.Timed(start))

	return nil
}
