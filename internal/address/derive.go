package address

import "fmt"

// Seed prefixes used by the attestation program.
const (
	seedCredential      = "credential"
	seedSchema          = "schema"
	seedAttestation     = "attestation"
	seedSchemaMint      = "schemaMint"
	seedAttestationMint = "attestationMint"
	seedEventAuthority  = "__event_authority"
	seedSAS             = "sas"
)

// DeriveCredential returns the credential account for an authority and name.
func DeriveCredential(authority Pubkey, name string) (Pubkey, error) {
	return deriveSAS("credential", []byte(seedCredential), authority[:], TruncateSeed(name))
}

// DeriveSchema returns the schema account for a credential, name and version.
func DeriveSchema(credential Pubkey, name string, version uint8) (Pubkey, error) {
	return deriveSAS("schema", []byte(seedSchema), credential[:], TruncateSeed(name), []byte{version})
}

// DeriveAttestation returns the attestation account for a subject nonce.
func DeriveAttestation(credential, schema, nonce Pubkey) (Pubkey, error) {
	return deriveSAS("attestation", []byte(seedAttestation), credential[:], schema[:], nonce[:])
}

// DeriveSchemaMint returns the token-group mint of a tokenized schema.
func DeriveSchemaMint(schema Pubkey) (Pubkey, error) {
	return deriveSAS("schema mint", []byte(seedSchemaMint), schema[:])
}

// DeriveAttestationMint returns the member mint of a tokenized attestation.
func DeriveAttestationMint(attestation Pubkey) (Pubkey, error) {
	return deriveSAS("attestation mint", []byte(seedAttestationMint), attestation[:])
}

// DeriveEventAuthority returns the program's event authority.
func DeriveEventAuthority() (Pubkey, error) {
	return deriveSAS("event authority", []byte(seedEventAuthority))
}

// DeriveSASAuthority returns the program's signing authority for token operations.
func DeriveSASAuthority() (Pubkey, error) {
	return deriveSAS("sas authority", []byte(seedSAS))
}

// DeriveTokenAccount returns the associated Token-2022 account of owner for mint.
func DeriveTokenAccount(owner, mint Pubkey) (Pubkey, error) {
	pk, _, err := FindProgramAddress([][]byte{owner[:], Token2022Program[:], mint[:]}, AssociatedTokenProgram)
	if err != nil {
		return Pubkey{}, fmt.Errorf("derive token account:\n%w", err)
	}
	return pk, nil
}

// deriveSAS finds a program address under the attestation program.
func deriveSAS(what string, seeds ...[]byte) (Pubkey, error) {
	pk, _, err := FindProgramAddress(seeds, SASProgram)
	if err != nil {
		return Pubkey{}, fmt.Errorf("derive %s:\n%w", what, err)
	}
	return pk, nil
}
