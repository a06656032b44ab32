package verify

import (
	"errors"
	"fmt"
	"time"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
	"SASVerify/internal/sas"
)

// Status classifies a verification outcome.
type Status uint8

const (
	StatusValid        Status = iota // StatusValid means every check passed
	StatusNotFound                   // StatusNotFound means a required account does not exist
	StatusDecode                     // StatusDecode means account bytes did not match their layout
	StatusExpired                    // StatusExpired means the attestation expiry has passed
	StatusPaused                     // StatusPaused means the schema is paused
	StatusUnavailable                // StatusUnavailable means the ledger or clock could not be read
	StatusMismatch                   // StatusMismatch means cross-references between accounts disagree
	StatusUnauthorized               // StatusUnauthorized means the signer is not in the credential's set
)

var statusNames = [...]string{
	"valid", "not_found", "decode", "expired", "paused", "unavailable", "mismatch", "unauthorized",
}

// String returns the status name.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Result is the detailed outcome of a verification.
type Result struct {
	Status      Status          `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	Schema      address.Pubkey  `json:"schema"`
	Nonce       address.Pubkey  `json:"nonce"`
	Credential  *address.Pubkey `json:"credential,omitempty"`
	Attestation *address.Pubkey `json:"attestation,omitempty"`
	Mint        *address.Pubkey `json:"mint,omitempty"`
	Signer      *address.Pubkey `json:"signer,omitempty"`
	Expiry      *int64          `json:"expiry,omitempty"`
	CheckedAt   *time.Time      `json:"checkedAt,omitempty"`
	Record      sas.Record      `json:"record,omitempty"`

	// Err is the underlying failure, if any.
	Err error `json:"-"`
}

// Valid reports whether every check passed.
func (r *Result) Valid() bool {
	return r.Status == StatusValid
}

// fail sets a failure status and reason.
func (r *Result) fail(status Status, err error) *Result {
	r.Status = status
	r.Err = err
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

// failFetch classifies an accessor error.
func (r *Result) failFetch(err error) *Result {
	return r.fail(classify(err), err)
}

// classify maps accessor errors to a status.
func classify(err error) Status {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ledger.ErrDecode):
		return StatusDecode
	default:
		return StatusUnavailable
	}
}
