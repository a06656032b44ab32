package genesis

import (
	"time"

	"github.com/zeebo/blake3"

	"SASVerify/internal/address"
	"SASVerify/internal/sas"
)

// Names used by the reference organization.
const (
	BasicsCredentialName = "TEST-ORGANIZATION"
	BasicsSchemaName     = "THE-BASICS"
	BasicsSchemaVersion  = 1

	// BasicsValidity is how long the reference attestation stays valid.
	BasicsValidity = 365 * 24 * time.Hour
)

// BasicsValues is the payload of the reference attestation.
var BasicsValues = map[string]any{
	"name":    "test-user",
	"age":     uint8(100),
	"country": "usa",
}

// Basics holds the addresses of the reference organization's accounts.
type Basics struct {
	Authority       address.Pubkey `json:"authority"`
	Signer          address.Pubkey `json:"signer"`
	Nonce           address.Pubkey `json:"nonce"`
	Credential      address.Pubkey `json:"credential"`
	Schema          address.Pubkey `json:"schema"`
	Attestation     address.Pubkey `json:"attestation"`
	SchemaMint      address.Pubkey `json:"schemaMint"`
	AttestationMint address.Pubkey `json:"attestationMint"`
	Expiry          int64          `json:"expiry"`
}

// BasicsSchema returns the reference schema definition.
func BasicsSchema() sas.Schema {
	return sas.Schema{
		Name:        BasicsSchemaName,
		Description: "Basic identity information",
		Layout:      []sas.FieldType{sas.String, sas.U8, sas.String},
		FieldNames:  []string{"name", "age", "country"},
		Version:     BasicsSchemaVersion,
	}
}

// BuildBasics creates the reference organization: one credential, one
// tokenized schema and one tokenized attestation expiring BasicsValidity
// after now. The clock sysvar is set to now. Keys are derived from label
// so the same label always yields the same ledger.
func BuildBasics(label string, slot uint64, now time.Time) (*Ledger, *Basics, error) {
	_, authority := KeyFromSeed(blake3.Sum256([]byte(label + "/authority")))
	_, signer := KeyFromSeed(blake3.Sum256([]byte(label + "/signer")))
	_, nonce := KeyFromSeed(blake3.Sum256([]byte(label + "/nonce")))

	l := New(slot)
	b := &Basics{
		Authority: authority,
		Signer:    signer,
		Nonce:     nonce,
		Expiry:    now.Add(BasicsValidity).Unix(),
	}

	var err error

	if b.Credential, err = l.AddCredential(authority, BasicsCredentialName, signer); err != nil {
		return nil, nil, err
	}

	if b.Schema, err = l.AddSchema(b.Credential, BasicsSchema()); err != nil {
		return nil, nil, err
	}

	if b.Attestation, err = l.AddAttestation(b.Schema, nonce, signer, BasicsValues, b.Expiry); err != nil {
		return nil, nil, err
	}

	if b.SchemaMint, err = l.TokenizeSchema(b.Schema, 100); err != nil {
		return nil, nil, err
	}

	b.AttestationMint, err = l.TokenizeAttestation(b.Attestation, "Test Identity", "TID", "https://example.com/test-identity.json")
	if err != nil {
		return nil, nil, err
	}

	l.SetClock(now)

	return l, b, nil
}
