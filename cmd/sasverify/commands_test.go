package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SASVerify/internal/address"
	"SASVerify/internal/genesis"
	"SASVerify/internal/snapshot"
)

const (
	genesisAt    = "2025-06-01T12:00:00Z"
	beforeExpiry = "2025-12-01T00:00:00Z"
	afterExpiry  = "2027-01-01T00:00:00Z"
)

// execute runs the command tree with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// writeGenesis generates a reference snapshot and returns its path and addresses.
func writeGenesis(t *testing.T) (string, *genesis.Basics) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "basics.snap")

	out, _, err := execute(t, "snapshot", "genesis", path, "--label", "cli", "--at", genesisAt)
	require.NoError(t, err)

	b := &genesis.Basics{}
	require.NoError(t, json.Unmarshal([]byte(out), b))
	require.False(t, b.Schema.IsZero())

	return path, b
}

func TestDeriveCommands(t *testing.T) {
	authority := address.MustParse("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")

	out, stderr, err := execute(t, "derive", "credential", authority.String(), "TEST-ORGANIZATION")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	credential, err := address.DeriveCredential(authority, "TEST-ORGANIZATION")
	require.NoError(t, err)
	assert.Equal(t, credential.String(), strings.TrimSpace(out))

	out, _, err = execute(t, "derive", "schema", credential.String(), "THE-BASICS", "--version", "2")
	require.NoError(t, err)

	schema, err := address.DeriveSchema(credential, "THE-BASICS", 2)
	require.NoError(t, err)
	assert.Equal(t, schema.String(), strings.TrimSpace(out))

	out, _, err = execute(t, "derive", "program")
	require.NoError(t, err)

	var program map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &program))
	assert.Equal(t, address.SASProgram.String(), program["program"])
	assert.NotEmpty(t, program["eventAuthority"])
	assert.NotEmpty(t, program["sasAuthority"])
}

func TestDeriveWarnsOnTruncation(t *testing.T) {
	authority := address.MustParse("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	long := strings.Repeat("x", address.MaxSeedLength+8)

	out, stderr, err := execute(t, "derive", "credential", authority.String(), long)
	require.NoError(t, err)
	assert.Contains(t, stderr, "truncated")

	short, _, err := execute(t, "derive", "credential", authority.String(), long[:address.MaxSeedLength])
	require.NoError(t, err)
	assert.Equal(t, short, out, "names sharing the first 32 bytes derive the same address")
}

func TestDeriveRejectsBadKey(t *testing.T) {
	_, _, err := execute(t, "derive", "credential", "not-base58-0OIl", "X")
	assert.Error(t, err)
}

func TestVerifyAgainstSnapshot(t *testing.T) {
	path, b := writeGenesis(t)

	out, _, err := execute(t, "verify", b.Schema.String(), b.Nonce.String(),
		"--snapshot", path, "--clock", beforeExpiry)
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	out, _, err = execute(t, "verify", b.Schema.String(), b.Nonce.String(),
		"--snapshot", path, "--clock", "ledger")
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	out, _, err = execute(t, "verify", b.Schema.String(), b.Nonce.String(),
		"--snapshot", path, "--clock", afterExpiry)
	assert.True(t, errors.Is(err, errInvalid))
	assert.Equal(t, "invalid\n", out)

	out, _, err = execute(t, "verify", b.Schema.String(), b.Authority.String(), "--snapshot", path)
	assert.True(t, errors.Is(err, errInvalid))
	assert.Equal(t, "invalid\n", out)
}

func TestVerifyTokenIgnoresExpiry(t *testing.T) {
	path, b := writeGenesis(t)

	out, _, err := execute(t, "verify", b.Schema.String(), b.Nonce.String(),
		"--snapshot", path, "--clock", afterExpiry, "--token")
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)
}

func TestVerifyDetail(t *testing.T) {
	path, b := writeGenesis(t)

	out, _, err := execute(t, "verify", b.Schema.String(), b.Nonce.String(),
		"--snapshot", path, "--clock", afterExpiry, "--detail")
	require.True(t, errors.Is(err, errInvalid))

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "expired", res["status"])
	assert.Equal(t, b.Attestation.String(), res["attestation"])

	out, _, err = execute(t, "verify", b.Schema.String(), b.Nonce.String(),
		"--snapshot", path, "--clock", beforeExpiry, "--detail")
	require.NoError(t, err)

	res = nil
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "valid", res["status"])
	assert.Equal(t, map[string]any{"name": "test-user", "age": float64(100), "country": "usa"}, res["record"])
}

func TestVerifyCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap")
	data, err := snapshot.Compress([]byte("not a snapshot"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	schema := address.MustParse("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	_, _, err = execute(t, "verify", schema.String(), schema.String(), "--snapshot", path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, errInvalid))
}

func TestInspect(t *testing.T) {
	path, b := writeGenesis(t)

	tests := []struct {
		name string
		addr address.Pubkey
		kind string
	}{
		{"credential", b.Credential, kindCredential},
		{"schema", b.Schema, kindSchema},
		{"attestation", b.Attestation, kindAttestation},
		{"schema mint", b.SchemaMint, kindMint},
		{"attestation mint", b.AttestationMint, kindMint},
		{"clock", address.ClockSysvar, kindRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "inspect", tt.addr.String(), "--snapshot", path)
			require.NoError(t, err)

			var res map[string]any
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tt.kind, res["kind"])
			assert.Equal(t, tt.addr.String(), res["address"])
		})
	}
}

func TestInspectAttestationRecord(t *testing.T) {
	path, b := writeGenesis(t)

	out, _, err := execute(t, "inspect", b.Attestation.String(), "--snapshot", path)
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, map[string]any{"name": "test-user", "age": float64(100), "country": "usa"}, res["record"])
	assert.NotContains(t, res, "recordError")
}

func TestInspectErrors(t *testing.T) {
	path, b := writeGenesis(t)

	_, _, err := execute(t, "inspect", b.Nonce.String(), "--snapshot", path)
	assert.Error(t, err, "missing account")

	_, _, err = execute(t, "inspect", b.Schema.String(), "--snapshot", path, "--kind", "credential")
	assert.Error(t, err, "wrong discriminator")

	_, _, err = execute(t, "inspect", b.Schema.String(), "--snapshot", path, "--kind", "bogus")
	assert.Error(t, err)
}

func TestSnapshotImportExport(t *testing.T) {
	path, b := writeGenesis(t)
	store := filepath.Join(t.TempDir(), "store")

	out, _, err := execute(t, "snapshot", "import", path, "--store", store)
	require.NoError(t, err)
	assert.Contains(t, out, "at slot 1")

	out, _, err = execute(t, "verify", b.Schema.String(), b.Nonce.String(),
		"--store", store, "--clock", beforeExpiry)
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	exported := filepath.Join(t.TempDir(), "export.snap")
	pair := b.Schema.String() + ":" + b.Nonce.String()

	out, _, err = execute(t, "snapshot", "export", exported, "--store", store, "--pair", pair)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 6 accounts at slot 1")

	out, _, err = execute(t, "verify", b.Schema.String(), b.Nonce.String(),
		"--snapshot", exported, "--clock", "ledger", "--token")
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)
}

func TestSnapshotImportRequiresStore(t *testing.T) {
	path, _ := writeGenesis(t)

	_, _, err := execute(t, "snapshot", "import", path)
	assert.Error(t, err)
}

func TestSnapshotExportRequiresPair(t *testing.T) {
	path, _ := writeGenesis(t)

	_, _, err := execute(t, "snapshot", "export", filepath.Join(t.TempDir(), "out.snap"), "--snapshot", path)
	assert.Error(t, err)
}

func TestParsePair(t *testing.T) {
	schema := address.MustParse("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	nonce := address.SASProgram

	s, n, err := parsePair(schema.String() + ":" + nonce.String())
	require.NoError(t, err)
	assert.Equal(t, schema, s)
	assert.Equal(t, nonce, n)

	for _, bad := range []string{"", schema.String(), "a:b:c", schema.String() + ":xyz0"} {
		_, _, err := parsePair(bad)
		assert.Error(t, err, bad)
	}
}
