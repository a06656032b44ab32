// Package client is a Go client for the sasverify HTTP API.
package client

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quic-go/quic-go/http3"

	"SASVerify/internal/address"
	"SASVerify/internal/sas"
	"SASVerify/internal/verify"
)

// Client talks to a verifier's HTTP API.
type Client struct {
	baseURL string       // baseURL is the scheme and host, e.g. "http://127.0.0.1:8080"
	http    *http.Client // http performs the requests
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithHTTP3 sends requests over HTTP/3. The base URL switches to https.
// tlsConf may be nil to use the system roots.
func WithHTTP3(tlsConf *tls.Config) Option {
	return func(c *Client) {
		c.http = &http.Client{
			Transport: &http3.Transport{TLSClientConfig: tlsConf},
			Timeout:   c.http.Timeout,
		}
		c.baseURL = "https://" + strings.TrimPrefix(strings.TrimPrefix(c.baseURL, "http://"), "https://")
	}
}

// Verdict is a verification result as served by the API.
type Verdict struct {
	Valid       bool            `json:"valid"`
	Status      verify.Status   `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	Schema      address.Pubkey  `json:"schema"`
	Nonce       address.Pubkey  `json:"nonce"`
	Credential  *address.Pubkey `json:"credential,omitempty"`
	Attestation *address.Pubkey `json:"attestation,omitempty"`
	Mint        *address.Pubkey `json:"mint,omitempty"`
	Signer      *address.Pubkey `json:"signer,omitempty"`
	Expiry      *int64          `json:"expiry,omitempty"`
	CheckedAt   *time.Time      `json:"checkedAt,omitempty"`
	Record      map[string]any  `json:"record,omitempty"`
}

// Derived holds a derived address and its companions.
type Derived struct {
	Address      address.Pubkey  `json:"address"`
	Mint         *address.Pubkey `json:"mint,omitempty"`
	TokenAccount *address.Pubkey `json:"tokenAccount,omitempty"`
	Truncated    bool            `json:"truncated"`
}

// AttestationInfo is a fetched attestation with its decoded payload.
type AttestationInfo struct {
	Address     address.Pubkey   `json:"address"`
	Attestation *sas.Attestation `json:"attestation"`
	Schema      *sas.Schema      `json:"schema,omitempty"`
	Record      map[string]any   `json:"record,omitempty"`
	RecordError string           `json:"recordError,omitempty"`
}

// New creates a client for addr, either "host:port" or a full URL.
func New(addr string, opts ...Option) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	c := &Client{
		baseURL: strings.TrimSuffix(addr, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Close releases the HTTP/3 transport, if any.
func (c *Client) Close() error {
	if t, ok := c.http.Transport.(*http3.Transport); ok {
		return t.Close()
	}
	return nil
}

// Health returns nil when the server answers /health.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	return c.get(ctx, "/health", nil, &resp)
}

// Verify checks the subject's attestation under schema.
func (c *Client) Verify(ctx context.Context, schema, nonce address.Pubkey) (*Verdict, error) {
	return c.verdict(ctx, "/verify", schema, nonce)
}

// VerifyToken checks the subject's attestation token under schema.
func (c *Client) VerifyToken(ctx context.Context, schema, nonce address.Pubkey) (*Verdict, error) {
	return c.verdict(ctx, "/verify/token", schema, nonce)
}

func (c *Client) verdict(ctx context.Context, path string, schema, nonce address.Pubkey) (*Verdict, error) {
	q := url.Values{
		"schema": {schema.String()},
		"nonce":  {nonce.String()},
	}

	v := &Verdict{}
	if err := c.get(ctx, path, q, v); err != nil {
		return nil, err
	}

	return v, nil
}

// DeriveCredential asks the server for a credential address.
func (c *Client) DeriveCredential(ctx context.Context, authority address.Pubkey, name string) (*Derived, error) {
	return c.derive(ctx, "/derive/credential", url.Values{
		"authority": {authority.String()},
		"name":      {name},
	})
}

// DeriveSchema asks the server for a schema address and its mint.
func (c *Client) DeriveSchema(ctx context.Context, credential address.Pubkey, name string, version uint8) (*Derived, error) {
	return c.derive(ctx, "/derive/schema", url.Values{
		"credential": {credential.String()},
		"name":       {name},
		"version":    {strconv.Itoa(int(version))},
	})
}

// DeriveAttestation asks the server for an attestation address, its mint
// and the subject's token account.
func (c *Client) DeriveAttestation(ctx context.Context, credential, schema, nonce address.Pubkey) (*Derived, error) {
	return c.derive(ctx, "/derive/attestation", url.Values{
		"credential": {credential.String()},
		"schema":     {schema.String()},
		"nonce":      {nonce.String()},
	})
}

func (c *Client) derive(ctx context.Context, path string, q url.Values) (*Derived, error) {
	d := &Derived{}
	if err := c.get(ctx, path, q, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Attestation fetches an attestation account by address.
func (c *Client) Attestation(ctx context.Context, addr address.Pubkey) (*AttestationInfo, error) {
	info := &AttestationInfo{}
	if err := c.get(ctx, "/attestation/"+addr.String(), nil, info); err != nil {
		return nil, err
	}
	return info, nil
}
