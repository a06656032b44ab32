package api

import (
	"fmt"
	"net/http"
	"strconv"

	"SASVerify/internal/address"
)

// maxNameLen bounds name parameters; longer names are truncated by derivation anyway.
const maxNameLen = 256

// pubkeyParam reads a required base58 address from the query string.
func pubkeyParam(r *http.Request, name string) (address.Pubkey, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return address.Pubkey{}, fmt.Errorf("missing %s", name)
	}

	pk, err := address.ParsePubkey(raw)
	if err != nil {
		return address.Pubkey{}, fmt.Errorf("invalid %s: %v", name, err)
	}

	return pk, nil
}

// nameParam reads a required, non-empty name from the query string.
func nameParam(r *http.Request, name string) (string, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return "", fmt.Errorf("missing %s", name)
	}

	if len(raw) > maxNameLen {
		return "", fmt.Errorf("%s longer than %d bytes", name, maxNameLen)
	}

	return raw, nil
}

// versionParam reads an optional schema version, defaulting to 1.
func versionParam(r *http.Request) (uint8, error) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return 1, nil
	}

	v, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid version: %q", raw)
	}

	return uint8(v), nil
}
