package tstream

// Framer re-aligns an arbitrarily-chunked byte stream onto 188-octet TS
// packet boundaries (spec §4.B). It assumes the first chunk after (re)connect
// begins on a packet boundary — it never scans for a sync byte to recover
// from corruption; that is left to the packet filter (spec §4.B "Resync
// policy").
type Framer struct {
	carry    [PacketSize]byte
	carryLen int
}

// Reset clears the carry buffer. Called on every (re)connect so no prefix
// from a previous connection survives into the new one (spec §3 invariants).
func (f *Framer) Reset() {
	f.carryLen = 0
}

// Feed re-aligns chunk onto packet boundaries and invokes emit once per
// complete 188-octet packet. emit must not retain the slice it is given —
// the backing array is reused by the framer's carry buffer and by the
// caller's read buffer on the next call.
//
// Feed is associative: splitting a stream differently across calls never
// changes the sequence of packets emitted (spec §8, invariant 1).
func (f *Framer) Feed(chunk []byte, emit func(packet []byte)) {
	if f.carryLen > 0 {
		need := PacketSize - f.carryLen
		take := need
		if take > len(chunk) {
			take = len(chunk)
		}
		copy(f.carry[f.carryLen:], chunk[:take])
		f.carryLen += take
		chunk = chunk[take:]

		if f.carryLen == PacketSize {
			emit(f.carry[:])
			f.carryLen = 0
		}
	}

	for len(chunk) >= PacketSize {
		emit(chunk[:PacketSize])
		chunk = chunk[PacketSize:]
	}

	if len(chunk) > 0 {
		copy(f.carry[:], chunk)
		f.carryLen = len(chunk)
	}
}
