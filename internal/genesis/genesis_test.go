package genesis

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
	"SASVerify/internal/sas"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBuildBasicsAccounts(t *testing.T) {
	l, b, err := BuildBasics("test", 1000, testNow)
	if err != nil {
		t.Fatalf("BuildBasics: %v", err)
	}

	ctx := context.Background()
	mem := l.Memory()

	c, err := ledger.FetchCredential(ctx, mem, b.Credential)
	if err != nil {
		t.Fatalf("FetchCredential: %v", err)
	}
	if c.Name != BasicsCredentialName || c.Authority != b.Authority || !c.IsAuthorizedSigner(b.Signer) {
		t.Errorf("unexpected credential %+v", c)
	}

	s, err := ledger.FetchSchema(ctx, mem, b.Schema)
	if err != nil {
		t.Fatalf("FetchSchema: %v", err)
	}
	if s.Credential != b.Credential || s.Version != BasicsSchemaVersion || s.IsPaused {
		t.Errorf("unexpected schema %+v", s)
	}

	a, err := ledger.FetchAttestation(ctx, mem, b.Attestation)
	if err != nil {
		t.Fatalf("FetchAttestation: %v", err)
	}
	if a.Nonce != b.Nonce || a.Expiry != testNow.Add(BasicsValidity).Unix() {
		t.Errorf("unexpected attestation %+v", a)
	}

	wantTokenAccount, _ := address.DeriveTokenAccount(b.Nonce, b.AttestationMint)
	if a.TokenAccount != wantTokenAccount {
		t.Errorf("token account = %s, want %s", a.TokenAccount, wantTokenAccount)
	}

	record, err := sas.DecodeData(s, a.Data)
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if v, _ := record.Get("age"); v != uint8(100) {
		t.Errorf("age = %v", v)
	}
}

func TestBuildBasicsDeterministic(t *testing.T) {
	_, b1, err := BuildBasics("same", 1, testNow)
	if err != nil {
		t.Fatal(err)
	}
	_, b2, _ := BuildBasics("same", 1, testNow)
	_, b3, _ := BuildBasics("other", 1, testNow)

	if *b1 != *b2 {
		t.Error("same label should give the same ledger")
	}
	if b1.Credential == b3.Credential {
		t.Error("different labels should give different credentials")
	}
}

func TestTokenizedMints(t *testing.T) {
	l, b, err := BuildBasics("test", 1, testNow)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	mem := l.Memory()

	group, err := ledger.FetchMint(ctx, mem, b.SchemaMint)
	if err != nil {
		t.Fatalf("schema mint: %v", err)
	}
	g, err := group.Group()
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if g.Size != 1 || g.MaxSize != 100 {
		t.Errorf("group size %d/%d", g.Size, g.MaxSize)
	}

	member, err := ledger.FetchMint(ctx, mem, b.AttestationMint)
	if err != nil {
		t.Fatalf("attestation mint: %v", err)
	}

	gm, err := member.GroupMember()
	if err != nil {
		t.Fatalf("group member: %v", err)
	}
	if gm.Group != b.SchemaMint || gm.MemberNumber != 1 {
		t.Errorf("unexpected member %+v", gm)
	}

	md, err := member.Metadata()
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if v, _ := md.Lookup("attestation"); v != b.Attestation.String() {
		t.Errorf("attestation metadata = %q", v)
	}
	if v, _ := md.Lookup("schema"); v != b.Schema.String() {
		t.Errorf("schema metadata = %q", v)
	}
}

func TestSetClock(t *testing.T) {
	l := New(42)
	l.SetClock(testNow)

	a, err := l.Memory().GetAccount(context.Background(), address.ClockSysvar)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}

	if a.Owner != address.SysvarProgram || len(a.Data) != clockSize {
		t.Fatalf("unexpected clock account %+v", a)
	}

	if slot := binary.LittleEndian.Uint64(a.Data[0:8]); slot != 42 {
		t.Errorf("slot = %d", slot)
	}
	if ts := int64(binary.LittleEndian.Uint64(a.Data[32:40])); ts != testNow.Unix() {
		t.Errorf("unix_timestamp = %d", ts)
	}
}

func TestSetSchemaPaused(t *testing.T) {
	l, b, _ := BuildBasics("test", 1, testNow)

	if err := l.SetSchemaPaused(b.Schema, true); err != nil {
		t.Fatalf("SetSchemaPaused: %v", err)
	}

	s, err := ledger.FetchSchema(context.Background(), l.Memory(), b.Schema)
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsPaused {
		t.Error("schema should be paused")
	}
}

func TestAddAttestationUnknownSchema(t *testing.T) {
	l := New(1)

	_, err := l.AddAttestation(address.Pubkey{1}, address.Pubkey{2}, address.Pubkey{3}, nil, 0)
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddSchemaMismatchedNames(t *testing.T) {
	l := New(1)

	_, err := l.AddSchema(address.Pubkey{1}, sas.Schema{
		Name:       "bad",
		Layout:     []sas.FieldType{sas.U8},
		FieldNames: []string{"a", "b"},
	})
	if err == nil {
		t.Error("expected error for mismatched field names")
	}
}

func TestTokenizeAttestationRequiresSchemaMint(t *testing.T) {
	l := New(1)

	cred, _ := l.AddCredential(address.Pubkey{1}, "org")
	schema, _ := l.AddSchema(cred, BasicsSchema())
	att, err := l.AddAttestation(schema, address.Pubkey{2}, address.Pubkey{3}, BasicsValues, 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := l.TokenizeAttestation(att, "n", "s", "u"); err == nil {
		t.Error("expected error when the schema has no mint")
	}
}
