package verify

import (
	"context"
	"fmt"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
)

// Token metadata keys linking a mint back to its attestation.
const (
	metadataAttestation = "attestation"
	metadataSchema      = "schema"
)

// VerifyToken reports whether the subject's attestation token is a member
// of the schema's token group and points back at the same attestation and
// schema. Expiry is not checked.
func (v *Verifier) VerifyToken(ctx context.Context, schema, nonce address.Pubkey) bool {
	r := v.CheckToken(ctx, schema, nonce)
	logResult("token", r)
	return r.Valid()
}

// CheckToken runs the token checks: schema active, attestation mint
// present, group membership equals the schema mint, metadata cross-references
// the derived attestation and schema.
func (v *Verifier) CheckToken(ctx context.Context, schema, nonce address.Pubkey) *Result {
	r := &Result{Schema: schema, Nonce: nonce}

	s, ok := v.activeSchema(ctx, r)
	if !ok {
		return r
	}

	attAddr, err := address.DeriveAttestation(s.Credential, schema, nonce)
	if err != nil {
		return r.fail(StatusNotFound, err)
	}
	r.Attestation = &attAddr

	mintAddr, err := address.DeriveAttestationMint(attAddr)
	if err != nil {
		return r.fail(StatusNotFound, err)
	}
	r.Mint = &mintAddr

	schemaMint, err := address.DeriveSchemaMint(schema)
	if err != nil {
		return r.fail(StatusNotFound, err)
	}

	m, err := ledger.FetchMint(ctx, v.acc, mintAddr)
	if err != nil {
		return r.failFetch(err)
	}

	gm, err := m.GroupMember()
	if err != nil {
		return r.fail(StatusDecode, fmt.Errorf("mint %s group member:\n%w", mintAddr, err))
	}

	if gm.Group != schemaMint {
		return r.fail(StatusMismatch, fmt.Errorf("mint %s is a member of %s, want schema group %s", mintAddr, gm.Group, schemaMint))
	}

	md, err := m.Metadata()
	if err != nil {
		return r.fail(StatusDecode, fmt.Errorf("mint %s metadata:\n%w", mintAddr, err))
	}

	for _, ref := range []struct {
		key  string
		want address.Pubkey
	}{
		{metadataAttestation, attAddr},
		{metadataSchema, schema},
	} {
		got, ok := md.Lookup(ref.key)
		if !ok {
			return r.fail(StatusMismatch, fmt.Errorf("mint %s metadata has no %q entry", mintAddr, ref.key))
		}
		if got != ref.want.String() {
			return r.fail(StatusMismatch, fmt.Errorf("mint %s metadata %q is %s, want %s", mintAddr, ref.key, got, ref.want))
		}
	}

	r.Status = StatusValid
	return r
}
