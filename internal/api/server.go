// Package api serves attestation verification and address derivation over
// HTTP, with an optional HTTP/3 listener.
package api

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/quic-go/quic-go/http3"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
	"SASVerify/internal/logger"
	"SASVerify/internal/sas"
	"SASVerify/internal/verify"
)

// Config holds listener settings.
type Config struct {
	Addr      string             // Addr is the HTTP listen address
	HTTP3Addr string             // HTTP3Addr is the UDP listen address for HTTP/3; empty disables it
	TLSKey    ed25519.PrivateKey // TLSKey signs the HTTP/3 certificate; nil generates one
}

// Server is the HTTP API server.
type Server struct {
	cfg      Config           // cfg holds listener settings
	acc      ledger.Accessor  // acc reads ledger accounts
	verifier *verify.Verifier // verifier runs the attestation checks
	server   *http.Server     // server is the underlying HTTP server
	ln       net.Listener     // ln is the bound TCP listener
	h3       *http3.Server    // h3 is the HTTP/3 server, nil when disabled
	udp      net.PacketConn   // udp is the bound HTTP/3 socket
}

// New creates a new HTTP API server.
func New(cfg Config, acc ledger.Accessor, verifier *verify.Verifier) *Server {
	return &Server{
		cfg:      cfg,
		acc:      acc,
		verifier: verifier,
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /verify", s.handleVerify)
	mux.HandleFunc("GET /verify/token", s.handleVerifyToken)
	mux.HandleFunc("GET /derive/credential", s.handleDeriveCredential)
	mux.HandleFunc("GET /derive/schema", s.handleDeriveSchema)
	mux.HandleFunc("GET /derive/attestation", s.handleDeriveAttestation)
	mux.HandleFunc("GET /attestation/{address}", s.handleAttestation)

	return mux
}

// Start binds the listeners and serves in background goroutines.
// Bind failures on either listener are returned before anything is served.
func (s *Server) Start() error {
	handler := s.Handler()

	var udp net.PacketConn
	if s.cfg.HTTP3Addr != "" {
		h3, conn, err := s.bindHTTP3(handler)
		if err != nil {
			return err
		}
		s.h3, udp = h3, conn
		handler = advertiseHTTP3(h3, handler)
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		if udp != nil {
			udp.Close()
			s.h3 = nil
		}
		return err
	}

	s.ln = ln
	s.udp = udp
	s.server = &http.Server{
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if s.h3 != nil {
		h3 := s.h3
		go func() {
			logger.Info("http3 api started", "addr", udp.LocalAddr().String())

			if err := h3.Serve(udp); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http3 server error", "error", err)
			}
		}()
	}

	server := s.server
	go func() {
		logger.Info("http api started", "addr", ln.Addr().String())

		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound HTTP address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// HTTP3Addr returns the bound UDP address, or "" when HTTP/3 is off.
func (s *Server) HTTP3Addr() string {
	if s.udp == nil {
		return ""
	}
	return s.udp.LocalAddr().String()
}

// bindHTTP3 binds the UDP socket and prepares the HTTP/3 server with a
// self-signed certificate. Nothing is served until Start succeeds.
func (s *Server) bindHTTP3(handler http.Handler) (*http3.Server, net.PacketConn, error) {
	cert, err := generateCertificate(s.cfg.TLSKey, []string{"localhost"})
	if err != nil {
		return nil, nil, err
	}

	conn, err := net.ListenPacket("udp", s.cfg.HTTP3Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("bind http3 %s:\n%w", s.cfg.HTTP3Addr, err)
	}

	h3 := &http3.Server{
		Addr:      conn.LocalAddr().String(),
		Handler:   handler,
		TLSConfig: http3.ConfigureTLSConfig(&tls.Config{Certificates: []tls.Certificate{cert}}),
	}

	return h3, conn, nil
}

// advertiseHTTP3 adds the Alt-Svc header announcing the HTTP/3 listener.
func advertiseHTTP3(h3 *http3.Server, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h3.SetQUICHeaders(w.Header()); err != nil {
			logger.Debug("alt-svc header unavailable", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

// Stop gracefully shuts down the HTTP server, then the HTTP/3 server.
func (s *Server) Stop() error {
	var err error

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err = s.server.Shutdown(ctx)
	}

	if s.h3 != nil {
		if cerr := s.h3.Close(); cerr != nil {
			logger.Warn("http3 close failed", "error", cerr)
		}
	}

	if s.udp != nil {
		s.udp.Close()
	}

	return err
}

// verifyResponse is a verification result with its boolean verdict.
type verifyResponse struct {
	Valid bool `json:"valid"`
	*verify.Result
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleVerify handles GET /verify?schema=&nonce= requests.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	s.serveCheck(w, r, "attestation", s.verifier.Check)
}

// handleVerifyToken handles GET /verify/token?schema=&nonce= requests.
func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	s.serveCheck(w, r, "token", s.verifier.CheckToken)
}

// serveCheck parses schema and nonce, runs check and writes the result.
// Invalid verdicts are still 200: the request itself succeeded.
func (s *Server) serveCheck(w http.ResponseWriter, r *http.Request, kind string, check func(context.Context, address.Pubkey, address.Pubkey) *verify.Result) {
	schema, err := pubkeyParam(r, "schema")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	nonce, err := pubkeyParam(r, "nonce")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	res := check(r.Context(), schema, nonce)

	logger.Debug("verify request",
		"kind", kind,
		"schema", schema.Short(),
		"nonce", nonce.Short(),
		"status", res.Status,
		logger.Timed(start),
	)

	writeJSON(w, http.StatusOK, verifyResponse{Valid: res.Valid(), Result: res})
}

// handleDeriveCredential handles GET /derive/credential?authority=&name= requests.
func (s *Server) handleDeriveCredential(w http.ResponseWriter, r *http.Request) {
	authority, err := pubkeyParam(r, "authority")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name, err := nameParam(r, "name")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	addr, err := address.DeriveCredential(authority, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address":   addr,
		"truncated": len(name) > address.MaxSeedLength,
	})
}

// handleDeriveSchema handles GET /derive/schema?credential=&name=&version= requests.
func (s *Server) handleDeriveSchema(w http.ResponseWriter, r *http.Request) {
	credential, err := pubkeyParam(r, "credential")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name, err := nameParam(r, "name")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	version, err := versionParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	addr, err := address.DeriveSchema(credential, name, version)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	mint, err := address.DeriveSchemaMint(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address":   addr,
		"mint":      mint,
		"truncated": len(name) > address.MaxSeedLength,
	})
}

// handleDeriveAttestation handles GET /derive/attestation?credential=&schema=&nonce= requests.
func (s *Server) handleDeriveAttestation(w http.ResponseWriter, r *http.Request) {
	var keys [3]address.Pubkey
	for i, name := range []string{"credential", "schema", "nonce"} {
		pk, err := pubkeyParam(r, name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		keys[i] = pk
	}

	addr, err := address.DeriveAttestation(keys[0], keys[1], keys[2])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	mint, err := address.DeriveAttestationMint(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tokenAccount, err := address.DeriveTokenAccount(keys[2], mint)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address":      addr,
		"mint":         mint,
		"tokenAccount": tokenAccount,
	})
}

// handleAttestation handles GET /attestation/{address} requests.
// The payload is decoded with the attestation's schema when it can be read.
func (s *Server) handleAttestation(w http.ResponseWriter, r *http.Request) {
	addr, err := address.ParsePubkey(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address: "+err.Error())
		return
	}

	a, err := ledger.FetchAttestation(r.Context(), s.acc, addr)
	if err != nil {
		writeError(w, fetchStatus(err), err.Error())
		return
	}

	resp := map[string]any{
		"address":     addr,
		"attestation": a,
	}

	schema, err := ledger.FetchSchema(r.Context(), s.acc, a.Schema)
	if err != nil {
		resp["recordError"] = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp["schema"] = schema

	if record, err := sas.DecodeData(schema, a.Data); err != nil {
		resp["recordError"] = err.Error()
	} else {
		resp["record"] = record
	}

	writeJSON(w, http.StatusOK, resp)
}

// fetchStatus maps an accessor error to an HTTP status.
func fetchStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDecode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
