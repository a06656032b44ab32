package integration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"SASVerify/internal/genesis"
	"SASVerify/internal/ledger"
)

// genesisTime is the creation time of every reference ledger.
var genesisTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// safeBuffer wraps bytes.Buffer with a mutex for concurrent read/write.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write appends data to the buffer (implements io.Writer).
func (sb *safeBuffer) Write(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.buf.Write(p)
}

// String returns the buffer contents as a string.
func (sb *safeBuffer) String() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.buf.String()
}

// Validator is a JSON-RPC node serving accounts from a reference ledger.
type Validator struct {
	ledger   *genesis.Ledger  // ledger holds the served accounts
	basics   *genesis.Basics  // basics addresses the reference organization
	server   *httptest.Server // server is the HTTP endpoint
	requests atomic.Int64     // requests counts every request received
	failures atomic.Int64     // failures is how many upcoming requests get a 503

	mu       sync.Mutex
	accounts map[string]*ledger.Account
}

// NewValidator starts a validator holding the reference organization.
func NewValidator(t *testing.T, label string) *Validator {
	t.Helper()

	l, b, err := genesis.BuildBasics(label, 42, genesisTime)
	if err != nil {
		t.Fatalf("build ledger: %v", err)
	}

	v := &Validator{
		ledger:   l,
		basics:   b,
		accounts: make(map[string]*ledger.Account),
	}

	for _, a := range l.Accounts() {
		v.accounts[a.Address.String()] = a
	}

	v.server = httptest.NewServer(v)
	t.Cleanup(v.server.Close)

	return v
}

// URL returns the JSON-RPC endpoint.
func (v *Validator) URL() string { return v.server.URL }

// Basics returns the reference organization's addresses.
func (v *Validator) Basics() *genesis.Basics { return v.basics }

// Ledger returns the served ledger.
func (v *Validator) Ledger() *genesis.Ledger { return v.ledger }

// Requests returns the number of requests received.
func (v *Validator) Requests() int64 { return v.requests.Load() }

// FailNext makes the next n requests fail with 503.
func (v *Validator) FailNext(n int64) { v.failures.Store(n) }

// Remove deletes an account from the served state.
func (v *Validator) Remove(addr string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.accounts, addr)
}

// ServeHTTP answers getAccountInfo, getMultipleAccounts and getSlot.
func (v *Validator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.requests.Add(1)

	if v.failures.Add(-1) >= 0 {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	v.failures.Store(0)

	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	slot := map[string]any{"slot": v.ledger.Slot()}

	var opts struct {
		Encoding string `json:"encoding"`
	}
	if len(req.Params) > 1 {
		json.Unmarshal(req.Params[1], &opts)
	}

	switch req.Method {
	case "getAccountInfo":
		var key string
		json.Unmarshal(req.Params[0], &key)
		reply["result"] = map[string]any{"context": slot, "value": v.info(key, opts.Encoding)}

	case "getMultipleAccounts":
		var keys []string
		json.Unmarshal(req.Params[0], &keys)
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = v.info(k, opts.Encoding)
		}
		reply["result"] = map[string]any{"context": slot, "value": values}

	case "getSlot":
		reply["result"] = v.ledger.Slot()

	default:
		reply["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reply)
}

// info renders one account in the requested encoding, or nil.
func (v *Validator) info(key, encoding string) any {
	v.mu.Lock()
	a, ok := v.accounts[key]
	v.mu.Unlock()

	if !ok {
		return nil
	}

	data := a.Data
	if encoding == "base64+zstd" {
		enc, _ := zstd.NewWriter(nil)
		data = enc.EncodeAll(a.Data, nil)
		enc.Close()
	}

	return map[string]any{
		"data":       []string{base64.StdEncoding.EncodeToString(data), encoding},
		"executable": a.Executable,
		"lamports":   a.Lamports,
		"owner":      a.Owner.String(),
		"rentEpoch":  a.RentEpoch,
		"space":      len(a.Data),
	}
}

// Process is a running sasverify binary.
type Process struct {
	cmd    *exec.Cmd
	addr   string
	stderr *safeBuffer
	done   chan struct{}
}

// Addr returns the HTTP address the process serves on.
func (p *Process) Addr() string { return p.addr }

// Logs returns the process's log output.
func (p *Process) Logs() string { return p.stderr.String() }

// Stop interrupts the process and waits for it to exit.
func (p *Process) Stop() {
	if p.cmd.Process == nil {
		return
	}

	p.cmd.Process.Signal(os.Interrupt)

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		p.cmd.Process.Kill()
		<-p.done
	}
}

// startServe runs "sasverify serve" with args on a free port and waits for /health.
func startServe(t *testing.T, binary string, args ...string) *Process {
	t.Helper()

	addr := freeAddr(t)

	p := &Process{
		addr:   addr,
		stderr: &safeBuffer{},
		done:   make(chan struct{}),
	}

	p.cmd = exec.Command(binary, append([]string{"serve", "--addr", addr}, args...)...)
	p.cmd.Stdout = p.stderr
	p.cmd.Stderr = p.stderr

	if err := p.cmd.Start(); err != nil {
		t.Fatalf("start serve: %v", err)
	}

	go func() {
		p.cmd.Wait()
		close(p.done)
	}()

	t.Cleanup(p.Stop)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			drainClose(resp.Body)
			if resp.StatusCode == http.StatusOK {
				return p
			}
		}

		select {
		case <-p.done:
			t.Fatalf("serve exited early:\n%s", p.Logs())
		case <-time.After(100 * time.Millisecond):
		}
	}

	t.Fatalf("serve not ready after 10s:\n%s", p.Logs())
	return nil
}

// runCLI runs the binary to completion and returns its stdout.
func runCLI(t *testing.T, binary string, args ...string) (string, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		err = fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), err
}

// getJSON fetches url and decodes the body into v.
func getJSON(t *testing.T, url string, v any) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer drainClose(resp.Body)

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}

	return resp.StatusCode
}

// drainClose fully reads and closes a response body.
func drainClose(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}

// freeAddr reserves a loopback port and releases it for the caller.
func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

// buildBinary compiles the sasverify binary.
// Uses a unique temp file per test to avoid races when tests run in parallel.
func buildBinary(t *testing.T) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "sasverify_test_*")
	if err != nil {
		t.Fatalf("create temp binary file: %v", err)
	}

	binary := tmpFile.Name()
	tmpFile.Close()

	cmd := exec.Command("go", "build", "-o", binary, "./cmd/sasverify")
	cmd.Dir = getProjectRoot(t)

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build failed: %v\n%s", err, output)
	}

	t.Cleanup(func() { os.Remove(binary) })

	return binary
}

// getProjectRoot returns the project root directory (containing go.mod).
func getProjectRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("get working dir: %v", err)
	}

	dir := wd
	for i := 0; i < 5; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find project root from %s", wd)

	return ""
}
