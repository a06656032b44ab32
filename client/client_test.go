package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"SASVerify/internal/address"
	"SASVerify/internal/api"
	"SASVerify/internal/genesis"
	"SASVerify/internal/verify"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestClient serves the reference organization and returns a client for it.
func newTestClient(t *testing.T, now time.Time) (*Client, *genesis.Basics) {
	t.Helper()

	gen, b, err := genesis.BuildBasics("client", 5, testNow)
	if err != nil {
		t.Fatalf("BuildBasics: %v", err)
	}

	mem := gen.Memory()
	v := verify.New(mem, verify.Options{Clock: verify.FixedClock(now)})

	ts := httptest.NewServer(api.New(api.Config{}, mem, v).Handler())
	t.Cleanup(ts.Close)

	return New(ts.URL), b
}

func TestNewNormalizesAddress(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"http://127.0.0.1:8080/", "http://127.0.0.1:8080"},
		{"https://verifier.example", "https://verifier.example"},
	}

	for _, tt := range tests {
		if got := New(tt.addr).baseURL; got != tt.want {
			t.Errorf("New(%q).baseURL = %q, want %q", tt.addr, got, tt.want)
		}
	}

	if got := New("127.0.0.1:8443", WithHTTP3(nil)).baseURL; got != "https://127.0.0.1:8443" {
		t.Errorf("WithHTTP3 baseURL = %q", got)
	}
}

func TestHealth(t *testing.T) {
	c, _ := newTestClient(t, testNow)

	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestVerify(t *testing.T) {
	c, b := newTestClient(t, testNow.Add(time.Hour))
	ctx := context.Background()

	v, err := c.Verify(ctx, b.Schema, b.Nonce)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if !v.Valid || v.Status != verify.StatusValid {
		t.Fatalf("verdict = %+v, want valid", v)
	}

	if v.Attestation == nil || *v.Attestation != b.Attestation {
		t.Errorf("attestation = %v, want %s", v.Attestation, b.Attestation)
	}

	if v.Record["name"] != "test-user" {
		t.Errorf("record = %v", v.Record)
	}

	tv, err := c.VerifyToken(ctx, b.Schema, b.Nonce)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}

	if !tv.Valid || tv.Mint == nil || *tv.Mint != b.AttestationMint {
		t.Errorf("token verdict = %+v", tv)
	}
}

func TestVerifyInvalid(t *testing.T) {
	c, b := newTestClient(t, testNow.Add(2*genesis.BasicsValidity))

	v, err := c.Verify(context.Background(), b.Schema, b.Nonce)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if v.Valid || v.Status != verify.StatusExpired {
		t.Errorf("verdict = %s valid=%v, want expired", v.Status, v.Valid)
	}

	if v.Reason == "" {
		t.Error("expired verdict has no reason")
	}
}

func TestDerive(t *testing.T) {
	c, b := newTestClient(t, testNow)
	ctx := context.Background()

	cred, err := c.DeriveCredential(ctx, b.Authority, genesis.BasicsCredentialName)
	if err != nil {
		t.Fatalf("DeriveCredential: %v", err)
	}
	if cred.Address != b.Credential || cred.Truncated {
		t.Errorf("credential = %+v, want %s", cred, b.Credential)
	}

	schema, err := c.DeriveSchema(ctx, b.Credential, genesis.BasicsSchemaName, genesis.BasicsSchemaVersion)
	if err != nil {
		t.Fatalf("DeriveSchema: %v", err)
	}
	if schema.Address != b.Schema || schema.Mint == nil || *schema.Mint != b.SchemaMint {
		t.Errorf("schema = %+v", schema)
	}

	att, err := c.DeriveAttestation(ctx, b.Credential, b.Schema, b.Nonce)
	if err != nil {
		t.Fatalf("DeriveAttestation: %v", err)
	}
	if att.Address != b.Attestation || att.Mint == nil || *att.Mint != b.AttestationMint {
		t.Errorf("attestation = %+v", att)
	}

	want, err := address.DeriveTokenAccount(b.Nonce, b.AttestationMint)
	if err != nil {
		t.Fatal(err)
	}
	if att.TokenAccount == nil || *att.TokenAccount != want {
		t.Errorf("token account = %v, want %s", att.TokenAccount, want)
	}
}

func TestAttestation(t *testing.T) {
	c, b := newTestClient(t, testNow)

	info, err := c.Attestation(context.Background(), b.Attestation)
	if err != nil {
		t.Fatalf("Attestation: %v", err)
	}

	if info.Attestation == nil || info.Attestation.Nonce != b.Nonce || info.Attestation.Expiry != b.Expiry {
		t.Fatalf("attestation = %+v", info.Attestation)
	}

	if info.Record["country"] != "usa" || info.RecordError != "" {
		t.Errorf("record = %v, error = %q", info.Record, info.RecordError)
	}

	want := genesis.BasicsSchema()
	if info.Schema == nil || info.Schema.Name != want.Name || !reflect.DeepEqual(info.Schema.Layout, want.Layout) {
		t.Errorf("schema = %+v, want layout %v", info.Schema, want.Layout)
	}
}

func TestAttestationNotFound(t *testing.T) {
	c, b := newTestClient(t, testNow)

	_, err := c.Attestation(context.Background(), b.Nonce)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}

	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message == "" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestErrorWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	err := New(ts.URL).Health(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v", err)
	}

	if !strings.Contains(err.Error(), "Bad Gateway") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestCancelledContext(t *testing.T) {
	c, b := newTestClient(t, testNow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Verify(ctx, b.Schema, b.Nonce); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
