// Package pipeline wires the TS framer, PID filter, PES reassembler, VBI
// bridge, page serializer, and UDP emitter into the single synchronous data
// path spec §5 describes: one goroutine, one read loop, no channels. Every
// byte handed to Feed is fully processed — framed, filtered, reassembled,
// decoded, and (if a page completed) serialized and emitted — before Feed
// returns.
package pipeline

import (
	"log/slog"
	"time"

	"github.com/zsiec/dvbttx/internal/emit"
	"github.com/zsiec/dvbttx/internal/page"
	"github.com/zsiec/dvbttx/internal/tstream"
	"github.com/zsiec/dvbttx/internal/vbi"
)

// Counters tracks per-connection pipeline telemetry for the debug snapshot,
// grounded on the teacher's Pipeline forwarding counters.
type Counters struct {
	PacketsFramed  int64
	PacketsDropped int64
	PESDispatched  int64
	PagesEmitted   int64
	PagesSkipped   int64
}

// Decoder is the subset of *vbi.Decoder the pipeline depends on. Accepting
// an interface decouples the pipeline from the cgo binding, so it can be
// exercised in tests with a pure-Go stub instead of libzvbi.
type Decoder interface {
	Feed(buf []byte) []vbi.PageEvent
	FetchPage(page, subpage int) (vbi.Grid, bool)
}

// Emitter is the subset of *emit.UDPEmitter the pipeline depends on.
type Emitter interface {
	Send(datagram []byte)
}

// Pipeline bridges one open Stream's byte flow to the UDP emitter. The
// supervisor builds a fresh Pipeline (and fresh tstream.Framer/Reassembler/
// vbi.Decoder) for every reconnect — spec §4.F and §4.D both require
// assembly state to be discarded across a connection boundary. Reset
// clears the framing and reassembly state in place; it never touches the
// Decoder.
type Pipeline struct {
	log *slog.Logger

	framer *tstream.Framer
	filter *tstream.Filter
	reasm  *tstream.Reassembler
	dec    Decoder
	em     Emitter

	counters Counters
}

// New builds a Pipeline for one connection. pid is the fixed Teletext PID
// to filter (spec §4.C). Every page_complete event the decoder emits is
// serialized and sent — spec §3 defines no page filter, so there is
// nothing here to filter on.
func New(pid uint16, dec Decoder, em *emit.UDPEmitter, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "pipeline")

	p := &Pipeline{
		log:    log,
		framer: &tstream.Framer{},
		filter: tstream.NewFilter(pid),
		dec:    dec,
		em:     em,
	}
	p.reasm = tstream.NewReassembler(p.onPES, log)
	return p
}

// Feed processes one chunk of bytes read from the tuner connection. It is
// the only entry point into the pipeline's per-byte work and must be called
// from a single goroutine (spec §5).
func (p *Pipeline) Feed(chunk []byte) {
	p.framer.Feed(chunk, p.onPacket)
}

func (p *Pipeline) onPacket(packet []byte) {
	pusi, payload, ok := p.filter.Inspect(packet)
	if !ok {
		p.counters.PacketsDropped++
		return
	}
	p.counters.PacketsFramed++
	p.reasm.Feed(pusi, payload)
}

// onPES is the Reassembler's sink (spec §4.D/§4.E → §4.F). pes.Data aliases
// the reassembler's accumulator, so every downstream call here must
// complete before Feed returns control to the reassembler.
func (p *Pipeline) onPES(pes *tstream.PES) {
	p.counters.PESDispatched++

	events := p.dec.Feed(pes.Data)
	for _, ev := range events {
		p.dispatchPage(ev)
	}
}

func (p *Pipeline) dispatchPage(ev vbi.PageEvent) {
	grid, ok := p.dec.FetchPage(ev.Page, ev.Subpage)
	if !ok {
		p.counters.PagesSkipped++
		return
	}

	cells := page.Cells{Columns: grid.Columns, Rows: grid.Rows, Data: grid.Cells}
	datagram, ok := page.Serialize(ev.Page, ev.Subpage, time.Now().Unix(), cells)
	if !ok {
		p.log.Warn("page serialize rejected, dropping", "page", ev.Page, "subpage", ev.Subpage)
		p.counters.PagesSkipped++
		return
	}

	p.em.Send(datagram)
	p.counters.PagesEmitted++
}

// Reset discards partial framing/reassembly state without reallocating the
// Pipeline itself. The VBI decoder is intentionally not touched here — spec
// §4.F requires a brand-new Decoder per reconnect, owned by the caller.
func (p *Pipeline) Reset() {
	p.framer.Reset()
	p.reasm.Reset()
}

// OverflowDrops reports how many PES accumulations were abandoned due to
// the fixed-size buffer overflowing (spec §4.D, §7).
func (p *Pipeline) OverflowDrops() int64 {
	return p.reasm.OverflowDrops()
}

// Counters returns a snapshot of pipeline telemetry.
func (p *Pipeline) Counters() Counters {
	return p.counters
}
