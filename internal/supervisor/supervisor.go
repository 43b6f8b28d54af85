// Package supervisor implements the lifecycle loop spec §4.I describes:
// connect, pump bytes through the pipeline until the stream ends, tear
// down, sleep, reconnect — until a shutdown signal is observed. It is the
// single thread of control spec §5 requires: no goroutines run inside the
// loop itself, mirroring the teacher's single-purpose service loops in
// cmd/prism/main.go but collapsed to one long-lived reconnect loop instead
// of several independently listening servers.
package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zsiec/dvbttx/internal/emit"
	"github.com/zsiec/dvbttx/internal/ingest"
	"github.com/zsiec/dvbttx/internal/pipeline"
	"github.com/zsiec/dvbttx/internal/stats"
	"github.com/zsiec/dvbttx/internal/vbi"
)

// ReconnectDelay is the fixed pause between a dropped connection and the
// next connect attempt (spec §4.I "RECONNECT_DELAY = 5s").
const ReconnectDelay = 5 * time.Second

// readBufferSize is the chunk size used to pump bytes from the tuner
// connection into the pipeline. Its value has no protocol significance —
// the framer re-aligns on packet boundaries regardless of chunking (spec
// §4.B) — only read-syscall overhead.
const readBufferSize = 64 * 1024

// Config carries everything the supervisor needs to open a connection and
// route its bytes (spec §6, the 4 positional CLI arguments).
type Config struct {
	Host    string
	Channel int
	PID     uint16
	UDPPort int
}

// Supervisor owns the reconnect loop. It is not safe for concurrent use;
// Run must be called from a single goroutine, matching spec §5's
// single-thread model.
type Supervisor struct {
	cfg   Config
	log   *slog.Logger
	stats *stats.Collector

	em      *emit.UDPEmitter
	running atomic.Bool
}

// New builds a Supervisor. The UDP emitter is created once and reused
// across reconnects — unlike the Teletext decoder, it owns no per-connection
// state that a reconnect would need to discard (spec §4.H, §4.I).
func New(cfg Config, collector *stats.Collector, log *slog.Logger) (*Supervisor, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "supervisor")

	em, err := emit.NewUDPEmitter(cfg.UDPPort, log)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{cfg: cfg, log: log, stats: collector, em: em}
	s.running.Store(true)
	return s, nil
}

// Stop sets the running flag to false (spec §5 "signal flag"). The current
// connection's in-flight read is unaffected; the loop exits cleanly on the
// next iteration after that read returns.
func (s *Supervisor) Stop() {
	s.running.Store(false)
}

// Run drives the reconnect loop until Stop is called or ctx is cancelled.
// It returns nil on a clean shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.em.Close()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	for s.running.Load() {
		if err := s.runOnce(ctx); err != nil {
			s.stats.RecordReconnect(err)
			s.log.Warn("connection attempt failed, will retry", "error", err, "delay", ReconnectDelay)
		}

		if !s.running.Load() {
			break
		}

		select {
		case <-time.After(ReconnectDelay):
		case <-ctx.Done():
			return nil
		}
	}

	s.stats.SetState(stats.StateStopped)
	return nil
}

// runOnce performs exactly one connect-pump-disconnect cycle (spec §4.I
// "reconnect loop" body). A fresh Decoder and Pipeline are constructed
// here so no state from a previous connection can leak into this one
// (spec §3 invariants, §4.F "Isolation").
func (s *Supervisor) runOnce(ctx context.Context) error {
	s.stats.SetState(stats.StateConnecting)

	dec, err := vbi.New()
	if err != nil {
		return err
	}
	defer dec.Close()

	stream, err := ingest.Open(s.cfg.Host, s.cfg.Channel)
	if err != nil {
		return err
	}
	defer stream.Close()

	s.stats.SetState(stats.StateConnected)
	s.log.Info("connected", "host", s.cfg.Host, "channel", s.cfg.Channel)

	p := pipeline.New(s.cfg.PID, dec, s.em, s.log)

	buf := make([]byte, readBufferSize)
	for s.running.Load() {
		n, err := stream.Read(buf)
		if n > 0 {
			p.Feed(buf[:n])
			s.publishStats(stream, p)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Warn("stream closed by server, will reconnect", "delay", ReconnectDelay)
				return nil
			}
			return err
		}
	}

	return nil
}

func (s *Supervisor) publishStats(stream *ingest.Stream, p *pipeline.Pipeline) {
	ist := stream.Stats()
	s.stats.AddIngest(ist.BytesReceived, ist.ReadCount)

	c := p.Counters()
	s.stats.AddPipeline(c.PacketsFramed, c.PacketsDropped, c.PESDispatched, c.PagesEmitted, c.PagesSkipped, p.OverflowDrops())

	sent, errs := s.em.Stats()
	s.stats.AddEmitter(sent, errs)
}
