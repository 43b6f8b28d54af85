package tstream

import "log/slog"

// Reassembler accumulates TS payload slices for one PID into complete PES
// packets and dispatches them to a sink, implementing both PES termination
// conditions from spec §4.D: length-bounded (PES_packet_length > 0) and
// start-indicator-bounded (PES_packet_length == 0, dispatched on next PUSI).
type Reassembler struct {
	log  *slog.Logger
	sink func(pes *PES)

	buf    [PESAccumulatorCap]byte
	length int
	target int // 0 = unbounded, dispatch on next PUSI

	overflowDrops int64
}

// NewReassembler returns a Reassembler that calls sink with each dispatched
// PES packet's header-stripped payload (spec §4.E's slice). If log is nil,
// slog.Default() is used.
func NewReassembler(sink func(pes *PES), log *slog.Logger) *Reassembler {
	if log == nil {
		log = slog.Default()
	}
	return &Reassembler{log: log.With("component", "pes-reassembler"), sink: sink}
}

// Reset clears the accumulator. Called on every (re)connect (spec §3
// invariants) so a half-assembled PES from a dead connection never merges
// with the first packets of a new one.
func (r *Reassembler) Reset() {
	r.length = 0
	r.target = 0
}

// OverflowDrops returns the number of times the accumulator was reset due
// to overflow, for the debug/stats snapshot (spec §7 "Accumulator overflow").
func (r *Reassembler) OverflowDrops() int64 {
	return r.overflowDrops
}

// Feed processes one filtered TS payload slice (spec §4.D).
func (r *Reassembler) Feed(pusi bool, payload []byte) {
	if pusi {
		if r.length > 0 {
			r.dispatch()
		}
		r.target = 0
		if len(payload) >= 6 {
			pesLen := int(payload[4])<<8 | int(payload[5])
			if pesLen > 0 {
				r.target = 6 + pesLen
			}
		}
	}

	if r.length+len(payload) > PESAccumulatorCap {
		r.log.Warn("PES accumulator overflow, resetting", "length", r.length, "incoming", len(payload))
		r.overflowDrops++
		r.length = 0
		r.target = 0
		return
	}

	copy(r.buf[r.length:], payload)
	r.length += len(payload)

	if r.target > 0 && r.length >= r.target {
		r.dispatch()
	}
}

// dispatch hands the accumulated bytes to the PES header parser and clears
// the accumulator atomically with the call, per spec §3's monotonicity
// invariant. sink must not retain pes.Data beyond the call: it aliases the
// accumulator's backing array, which the next Feed call overwrites.
func (r *Reassembler) dispatch() {
	data := r.buf[:r.length]
	r.length = 0
	r.target = 0

	pes, ok := parsePESHeader(data)
	if !ok {
		return
	}
	r.sink(pes)
}

// parsePESHeader validates the PES start code and computes the payload
// offset from the header-data-length field (spec §4.E).
func parsePESHeader(data []byte) (*PES, bool) {
	if len(data) < 9 {
		return nil, false
	}
	if data[0] != 0x00 || data[1] != 0x00 || data[2] != 0x01 {
		return nil, false
	}

	headerDataLen := int(data[8])
	off := 9 + headerDataLen
	if off >= len(data) {
		return nil, false
	}

	return &PES{Data: data[off:len(data):len(data)]}, true
}
