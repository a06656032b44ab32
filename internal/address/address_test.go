package address

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// testKey returns a deterministic non-zero key.
func testKey(fill byte) Pubkey {
	var pk Pubkey
	for i := range pk {
		pk[i] = fill + byte(i)
	}
	return pk
}

func TestParsePubkeyRoundTrip(t *testing.T) {
	s := SASProgram.String()
	if s != "22zoJMtdu4tQc2PzL74ZUT7FrwgB1Udec8DdW4yw4BdG" {
		t.Fatalf("String = %s", s)
	}

	pk, err := ParsePubkey(s)
	if err != nil {
		t.Fatalf("ParsePubkey: %v", err)
	}

	if pk != SASProgram {
		t.Error("round trip mismatch")
	}
}

func TestParsePubkeyRejectsBadInput(t *testing.T) {
	for _, s := range []string{"", "0OIl", "abc"} {
		if _, err := ParsePubkey(s); err == nil {
			t.Errorf("ParsePubkey(%q) succeeded", s)
		}
	}
}

func TestSystemProgramIsZero(t *testing.T) {
	if SystemProgram.String() != "11111111111111111111111111111111" {
		t.Errorf("system program = %s", SystemProgram)
	}

	if !SystemProgram.IsZero() {
		t.Error("system program should be zero")
	}
}

func TestPubkeyJSON(t *testing.T) {
	in := struct {
		Key Pubkey `json:"key"`
	}{Key: ClockSysvar}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if !strings.Contains(string(data), ClockSysvar.String()) {
		t.Fatalf("json = %s", data)
	}

	var out struct {
		Key Pubkey `json:"key"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if out.Key != ClockSysvar {
		t.Error("json round trip mismatch")
	}
}

func TestDeriveCredentialDeterministic(t *testing.T) {
	authority := testKey(1)

	a, err := DeriveCredential(authority, "TEST-ORGANIZATION")
	if err != nil {
		t.Fatalf("DeriveCredential: %v", err)
	}

	b, err := DeriveCredential(authority, "TEST-ORGANIZATION")
	if err != nil {
		t.Fatalf("DeriveCredential: %v", err)
	}

	if a != b {
		t.Error("derivation is not deterministic")
	}

	if IsOnCurve(a) {
		t.Error("derived address is on curve")
	}
}

func TestDeriveDistinguishesInputs(t *testing.T) {
	authority := testKey(1)

	a, _ := DeriveCredential(authority, "ORG-A")
	b, _ := DeriveCredential(authority, "ORG-B")
	c, _ := DeriveCredential(testKey(2), "ORG-A")

	if a == b || a == c {
		t.Error("distinct inputs derived the same credential")
	}

	s1, _ := DeriveSchema(a, "THE-BASICS", 1)
	s2, _ := DeriveSchema(a, "THE-BASICS", 2)
	if s1 == s2 {
		t.Error("schema versions derived the same address")
	}

	n1, n2 := testKey(10), testKey(20)
	at1, _ := DeriveAttestation(a, s1, n1)
	at2, _ := DeriveAttestation(a, s1, n2)
	if at1 == at2 {
		t.Error("distinct nonces derived the same attestation")
	}
}

func TestLongNamesTruncateAndCollide(t *testing.T) {
	authority := testKey(3)
	prefix := strings.Repeat("x", MaxSeedLength)

	a, err := DeriveCredential(authority, prefix+"-first")
	if err != nil {
		t.Fatalf("DeriveCredential: %v", err)
	}

	b, err := DeriveCredential(authority, prefix+"-second")
	if err != nil {
		t.Fatalf("DeriveCredential: %v", err)
	}

	if a != b {
		t.Error("names sharing a 32-byte prefix should collide")
	}

	if got := TruncateSeed("short"); string(got) != "short" {
		t.Errorf("TruncateSeed(short) = %q", got)
	}
}

func TestCreateProgramAddressSeedLimits(t *testing.T) {
	long := make([]byte, MaxSeedLength+1)

	if _, err := CreateProgramAddress([][]byte{long}, SASProgram); !errors.Is(err, ErrSeedTooLong) {
		t.Errorf("expected ErrSeedTooLong, got %v", err)
	}

	seeds := make([][]byte, MaxSeeds+1)
	if _, err := CreateProgramAddress(seeds, SASProgram); err == nil {
		t.Error("too many seeds accepted")
	}
}

func TestFindProgramAddressMatchesCreate(t *testing.T) {
	seeds := [][]byte{[]byte("credential"), testKey(5).Bytes(), []byte("org")}

	pk, bump, err := FindProgramAddress(seeds, SASProgram)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}

	again, err := CreateProgramAddress(append(seeds, []byte{bump}), SASProgram)
	if err != nil {
		t.Fatalf("CreateProgramAddress with bump %d: %v", bump, err)
	}

	if again != pk {
		t.Error("create with found bump differs from find")
	}
}

func TestRealKeysAreOnCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	pk, _ := PubkeyFromBytes(pub)
	if !IsOnCurve(pk) {
		t.Error("ed25519 public key reported off curve")
	}
}

func TestDeriveMintsAndAuthorities(t *testing.T) {
	schema := testKey(7)

	m1, err := DeriveSchemaMint(schema)
	if err != nil {
		t.Fatalf("DeriveSchemaMint: %v", err)
	}

	m2, err := DeriveAttestationMint(schema)
	if err != nil {
		t.Fatalf("DeriveAttestationMint: %v", err)
	}

	if m1 == m2 {
		t.Error("schema and attestation mint seeds collide")
	}

	ev, err := DeriveEventAuthority()
	if err != nil {
		t.Fatalf("DeriveEventAuthority: %v", err)
	}

	sas, err := DeriveSASAuthority()
	if err != nil {
		t.Fatalf("DeriveSASAuthority: %v", err)
	}

	if ev == sas {
		t.Error("authority seeds collide")
	}

	ata, err := DeriveTokenAccount(testKey(9), m2)
	if err != nil {
		t.Fatalf("DeriveTokenAccount: %v", err)
	}

	if IsOnCurve(ata) {
		t.Error("token account is on curve")
	}
}

// TestDeriveKnownAddresses pins every derivation to fixed addresses, so a
// change in seed order or prefix is caught.
func TestDeriveKnownAddresses(t *testing.T) {
	authority := Pubkey{1}
	nonce := Pubkey{3}

	if authority.String() != "4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM" {
		t.Fatalf("authority = %s", authority)
	}

	must := func(pk Pubkey, err error) Pubkey {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return pk
	}

	credential := must(DeriveCredential(authority, "test-credential"))
	schema := must(DeriveSchema(credential, "THE-BASICS", 1))
	attestation := must(DeriveAttestation(credential, schema, nonce))
	attestationMint := must(DeriveAttestationMint(attestation))

	tests := []struct {
		name string
		got  Pubkey
		want string
	}{
		{"credential", credential, "GrF3JFt1z7KZFVx34HuEjiWhpX16BDcTMGqe6WA119FU"},
		{"credential long name", must(DeriveCredential(authority, "a-credential-name-that-is-longer-than-32-bytes")), "84mhbz5WeiTrR4Mf8fmWSmbdtRUU5Dj2bnNXfzcFRy7b"},
		{"schema", schema, "Gd3hUe79VNYuWqQ9Ptqqsc1BytBU8Rkbyr8jwrWBSx4X"},
		{"attestation", attestation, "BzeJ7Zzg6F1FMtT8AH7PEiqyFKhhWxUAprdCFAHq74jr"},
		{"schema mint", must(DeriveSchemaMint(schema)), "AjHXKgkZGV8qRDe3NDt7qBsiRSJ8TLuc7uDBSshQHeQE"},
		{"attestation mint", attestationMint, "BiTXZZGtQk9w8UvJ3ZmesJEUoWPUc7Fmp5Bm872kvSe2"},
		{"event authority", must(DeriveEventAuthority()), "DzSpKpST2TSyrxokMXchFz3G2yn5WEGoxzpGEUDjCX4g"},
		{"sas authority", must(DeriveSASAuthority()), "HngMQFF6Yoqj9VqA31r43HQsnuYZ6BxopRWQLQAS6zk"},
		{"token account", must(DeriveTokenAccount(nonce, attestationMint)), "6Cc7Dq8nENKzgn6H4n5oTUrLW6QmFY4T1JkWPBZpsXdn"},
	}

	for _, tt := range tests {
		if tt.got.String() != tt.want {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}
