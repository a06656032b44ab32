// Package verify decides whether a subject holds a valid attestation under
// a schema, either from the attestation account itself or from its token.
//
// Check and CheckToken return a detailed Result. Verify and VerifyToken
// collapse it to a boolean and never return an error: every failure kind,
// from a missing account to an unreachable ledger, reads as "not verified".
package verify

import (
	"context"
	"fmt"
	"time"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
	"SASVerify/internal/logger"
	"SASVerify/internal/sas"
)

// Options tunes verification rules.
type Options struct {
	// Clock supplies the current time. Defaults to SystemClock.
	Clock Clock

	// RequireAuthorizedSigner also fetches the credential and rejects
	// attestations whose signer is not in its authorized set.
	RequireAuthorizedSigner bool

	// PermanentZeroExpiry treats an expiry of 0 as "never expires".
	// When false, 0 is an ordinary timestamp in the past.
	PermanentZeroExpiry bool
}

// Verifier checks attestations against a ledger. It holds no state between
// calls and is safe for concurrent use if its accessor is.
type Verifier struct {
	acc  ledger.Accessor // acc reads ledger accounts
	opts Options         // opts holds the verification rules
}

// New creates a verifier reading through acc.
func New(acc ledger.Accessor, opts Options) *Verifier {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	return &Verifier{acc: acc, opts: opts}
}

// Verify reports whether nonce holds a valid, unexpired attestation under schema.
func (v *Verifier) Verify(ctx context.Context, schema, nonce address.Pubkey) bool {
	r := v.Check(ctx, schema, nonce)
	logResult("attestation", r)
	return r.Valid()
}

// Check runs the attestation checks in order: schema active, attestation
// present, payload decodes, optional signer authorization, not expired.
func (v *Verifier) Check(ctx context.Context, schema, nonce address.Pubkey) *Result {
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

	a, err := ledger.FetchAttestation(ctx, v.acc, attAddr)
	if err != nil {
		return r.failFetch(err)
	}

	r.Signer = &a.Signer
	r.Expiry = &a.Expiry

	if a.Schema != schema || a.Nonce != nonce || a.Credential != s.Credential {
		return r.fail(StatusMismatch, fmt.Errorf("attestation %s does not reference schema %s and nonce %s", attAddr, schema, nonce))
	}

	record, err := sas.DecodeData(s, a.Data)
	if err != nil {
		return r.fail(StatusDecode, fmt.Errorf("decode attestation data:\n%w", err))
	}
	r.Record = record

	if v.opts.RequireAuthorizedSigner {
		c, err := ledger.FetchCredential(ctx, v.acc, s.Credential)
		if err != nil {
			return r.failFetch(err)
		}

		if !c.IsAuthorizedSigner(a.Signer) {
			return r.fail(StatusUnauthorized, fmt.Errorf("signer %s is not authorized by credential %s", a.Signer, s.Credential))
		}
	}

	now, err := v.opts.Clock.Now(ctx)
	if err != nil {
		return r.fail(StatusUnavailable, fmt.Errorf("read clock:\n%w", err))
	}
	r.CheckedAt = &now

	if !v.unexpired(a.Expiry, now) {
		return r.fail(StatusExpired, fmt.Errorf("attestation expired at %s", time.Unix(a.Expiry, 0).UTC().Format(time.RFC3339)))
	}

	r.Status = StatusValid
	return r
}

// activeSchema fetches the schema and rejects paused ones.
func (v *Verifier) activeSchema(ctx context.Context, r *Result) (*sas.Schema, bool) {
	s, err := ledger.FetchSchema(ctx, v.acc, r.Schema)
	if err != nil {
		r.failFetch(err)
		return nil, false
	}

	r.Credential = &s.Credential

	if s.IsPaused {
		r.fail(StatusPaused, fmt.Errorf("schema %s is paused", r.Schema))
		return nil, false
	}

	return s, true
}

// unexpired reports whether now is strictly before expiry.
func (v *Verifier) unexpired(expiry int64, now time.Time) bool {
	if expiry == 0 && v.opts.PermanentZeroExpiry {
		return true
	}
	return now.Before(time.Unix(expiry, 0))
}

// logResult records the outcome behind a boolean verification.
func logResult(kind string, r *Result) {
	if r.Valid() {
		logger.Debug("verification passed", "kind", kind, "schema", r.Schema, "nonce", r.Nonce)
		return
	}

	logger.Info("verification failed",
		"kind", kind,
		"schema", r.Schema,
		"nonce", r.Nonce,
		"status", r.Status,
		"reason", r.Reason,
	)
}
