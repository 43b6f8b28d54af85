package vbi

/*
#cgo pkg-config: zvbi
#include <libzvbi.h>
#include <stdlib.h>

extern void goTeletextPageEvent(void *user_data, vbi_pgno pgno, vbi_subno subno);

static void ttxd_event_handler(vbi_event *ev, void *user_data) {
	if (ev->type != VBI_EVENT_TTX_PAGE) {
		return;
	}
	goTeletextPageEvent(user_data, ev->ev.ttx_page.pgno, ev->ev.ttx_page.subno);
}

static int ttxd_install_handler(vbi_decoder *dec, void *user_data) {
	return vbi_event_handler_add(dec, VBI_EVENT_TTX_PAGE, ttxd_event_handler, user_data);
}
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"sync"
	"unsafe"
)

// maxSlicedPerCall bounds each demux_cor call, per spec §4.F.
const maxSlicedPerCall = 64

// displayRows is the fixed row count spec §4.F mandates for page fetches;
// FetchPage also passes Level 1.5 (national character sets) directly.
const displayRows = 25

// Grid is a fetched 40x25 page of decoded cells (spec §3 "Decoded page").
type Grid struct {
	Columns int
	Rows    int
	Cells   []rune // row-major, len == Columns*Rows
}

// PageEvent reports a completed page (spec §4.F "page_complete event").
type PageEvent struct {
	Page    int
	Subpage int
}

// Decoder wraps one libzvbi demuxer + decoder pair. It is not safe for
// concurrent use — spec §5 runs the whole pipeline on a single thread, and
// Decoder's page-complete callback is delivered synchronously from within
// Feed, via libzvbi's own vbi_decode (spec §5).
type Decoder struct {
	demux   *C.vbi_dvb_demux
	dec     *C.vbi_decoder
	handle  cgo.Handle
	mu      sync.Mutex
	pending []PageEvent
}

// New creates a fresh demuxer/decoder pair. Per spec §4.F "Isolation",
// callers must create a new Decoder on every (re)connect rather than
// resetting an existing one — there is no Reset method by design, so
// stale page-assembly state can never survive a reconnect.
func New() (*Decoder, error) {
	d := &Decoder{}
	d.handle = cgo.NewHandle(d)

	d.demux = C.vbi_dvb_demux_new(nil, nil)
	if d.demux == nil {
		d.handle.Delete()
		return nil, fmt.Errorf("vbi: vbi_dvb_demux_new failed")
	}

	d.dec = C.vbi_decoder_new()
	if d.dec == nil {
		C.vbi_dvb_demux_delete(d.demux)
		d.handle.Delete()
		return nil, fmt.Errorf("vbi: vbi_decoder_new failed")
	}

	// The handle is an opaque uintptr token, not a Go pointer, so storing
	// it as libzvbi's void* user_data for the decoder's lifetime does not
	// violate cgo's pointer-passing rules (see runtime/cgo.Handle docs).
	userData := unsafe.Pointer(uintptr(d.handle))
	if C.ttxd_install_handler(d.dec, userData) == 0 {
		d.Close()
		return nil, fmt.Errorf("vbi: vbi_event_handler_add failed")
	}

	return d, nil
}

// Close releases both libzvbi handles. Safe to call once; the Decoder
// must not be used afterward.
func (d *Decoder) Close() {
	if d.dec != nil {
		C.vbi_decoder_delete(d.dec)
		d.dec = nil
	}
	if d.demux != nil {
		C.vbi_dvb_demux_delete(d.demux)
		d.demux = nil
	}
	d.handle.Delete()
}

// Feed pushes PES payload bytes (already past the PES header, per spec
// §4.E) through the demuxer and into the decoder, draining every complete
// data unit the demuxer can slice out of buf (spec §4.F "Feed loop").
// Any PageEvents fired synchronously during this call are returned.
func (d *Decoder) Feed(buf []byte) []PageEvent {
	if len(buf) == 0 {
		return nil
	}

	cbuf := C.CBytes(buf)
	defer C.free(cbuf)

	p := (*C.uint8_t)(cbuf)
	left := C.uint(len(buf))

	var sliced [maxSlicedPerCall]C.vbi_sliced

	for left > 0 {
		before := left
		var pts C.int64_t
		n := C.vbi_dvb_demux_cor(d.demux, &sliced[0], C.uint(maxSlicedPerCall), &pts, &p, &left)
		if n == 0 {
			// demux_cor can legitimately return 0 sliced lines while still
			// consuming input (VPS, WSS, stuffing, and other non-Teletext
			// data units ahead of the Teletext ones in the same PES
			// payload) — only stop once it stops making progress.
			if left == before {
				break
			}
			continue
		}
		C.vbi_decode(d.dec, &sliced[0], n, C.double(pts)/90000.0)
	}

	d.mu.Lock()
	events := d.pending
	d.pending = nil
	d.mu.Unlock()
	return events
}

// FetchPage retrieves the 40x25 grid for a completed page, or ok=false if
// the page is no longer available (spec §4.G step 1 "If unavailable, skip
// silently").
func (d *Decoder) FetchPage(page, subpage int) (grid Grid, ok bool) {
	var cpage C.vbi_page
	r := C.vbi_fetch_vt_page(d.dec, &cpage, C.vbi_pgno(page), C.vbi_subno(subpage),
		C.VBI_WST_LEVEL_1p5, C.int(displayRows), C.vbi_bool(1))
	if r == 0 {
		return Grid{}, false
	}
	defer C.vbi_unref_page(&cpage)

	cols := int(cpage.columns)
	rows := int(cpage.rows)
	cells := make([]rune, cols*rows)

	text := unsafe.Slice(cpage.text, cols*rows)
	for i, c := range text {
		cells[i] = rune(c.unicode)
	}

	return Grid{Columns: cols, Rows: rows, Cells: cells}, true
}

//export goTeletextPageEvent
func goTeletextPageEvent(userData unsafe.Pointer, pgno C.vbi_pgno, subno C.vbi_subno) {
	h := cgo.Handle(uintptr(userData))
	d := h.Value().(*Decoder)

	d.mu.Lock()
	d.pending = append(d.pending, PageEvent{Page: int(pgno), Subpage: int(subno)})
	d.mu.Unlock()
}
