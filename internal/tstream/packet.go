package tstream

// Filter selects one elementary-stream PID out of the multiplex and
// exposes only the payload bytes of packets that pass (spec §4.C).
type Filter struct {
	pid uint16
}

// NewFilter returns a Filter that passes only packets on pid.
func NewFilter(pid uint16) *Filter {
	return &Filter{pid: pid}
}

// Inspect parses one 188-octet packet view and returns (pusi, payload, true)
// if it passes the drop conditions, or (false, nil, false) if it should be
// dropped. packet must be exactly PacketSize bytes; the returned payload
// aliases it.
func (f *Filter) Inspect(packet []byte) (pusi bool, payload []byte, ok bool) {
	if len(packet) != PacketSize {
		return false, nil, false
	}
	if packet[0] != SyncByte {
		return false, nil, false
	}
	if packet[1]&0x80 != 0 { // transport_error_indicator
		return false, nil, false
	}

	pid := uint16(packet[1]&0x1F)<<8 | uint16(packet[2])
	if pid != f.pid {
		return false, nil, false
	}

	hasAdaptationField := packet[3]&0x20 != 0
	hasPayload := packet[3]&0x10 != 0
	if !hasPayload {
		return false, nil, false
	}

	offset := 4
	if hasAdaptationField {
		offset = 5 + int(packet[4])
	}
	if offset >= PacketSize {
		return false, nil, false
	}

	pusi = packet[1]&0x40 != 0
	return pusi, packet[offset:], true
}
