// Package debugsrv exposes the single /debug JSON endpoint described in
// spec §B, adapted from the teacher's distribution.Server — same
// self-signed-TLS-plus-net/http shape, trimmed down to one handler and no
// WebTransport/QUIC dependency.
package debugsrv

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/zsiec/dvbttx/internal/certs"
	"github.com/zsiec/dvbttx/internal/stats"
)

// Server serves stats.Snapshot as JSON over HTTPS using a self-signed
// certificate generated at startup. It is disabled entirely when addr is
// empty (spec §A.3, DVBTTX_DEBUG_ADDR).
type Server struct {
	log        *slog.Logger
	addr       string
	collector  *stats.Collector
	cert       *certs.CertInfo
	httpServer *http.Server
}

// New builds a debug server bound to addr. If addr is empty, Start is a
// no-op that returns immediately, letting the caller always wire this into
// an errgroup unconditionally.
func New(addr string, collector *stats.Collector, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "debugsrv")

	s := &Server{log: log, addr: addr, collector: collector}
	if addr == "" {
		return s, nil
	}

	cert, err := certs.Generate(0)
	if err != nil {
		return nil, err
	}
	s.cert = cert
	collector.SetCertFingerprint(cert.FingerprintBase64())
	return s, nil
}

// Start listens and serves until ctx is cancelled. When the server was
// built with an empty addr, Start returns nil immediately.
func (s *Server) Start(ctx context.Context) error {
	if s.addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug", s.handleDebug)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{s.cert.TLSCert},
		},
	}

	s.log.Info("debug server listening", "addr", s.addr, "cert_fingerprint", s.cert.FingerprintBase64())

	stop := context.AfterFunc(ctx, func() { s.httpServer.Close() })
	defer stop()

	err := s.httpServer.ListenAndServeTLS("", "")
	if ctx.Err() != nil || err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	snap := s.collector.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.log.Error("encoding debug response", "error", err)
	}
}
