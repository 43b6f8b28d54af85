package tstream

import (
	"bytes"
	"testing"
)

func buildStream(nPackets int) []byte {
	buf := make([]byte, nPackets*PacketSize)
	for i := 0; i < nPackets; i++ {
		pkt := buf[i*PacketSize : (i+1)*PacketSize]
		pkt[0] = SyncByte
		pkt[1] = byte(i >> 8)
		pkt[2] = byte(i)
	}
	return buf
}

func feedInChunks(t *testing.T, stream []byte, chunkSize int) [][]byte {
	t.Helper()
	var f Framer
	var got [][]byte
	for off := 0; off < len(stream); off += chunkSize {
		end := off + chunkSize
		if end > len(stream) {
			end = len(stream)
		}
		f.Feed(stream[off:end], func(packet []byte) {
			got = append(got, append([]byte(nil), packet...))
		})
	}
	return got
}

func TestFramer_ChunkSizeOne(t *testing.T) {
	t.Parallel()
	stream := buildStream(10)
	got := feedInChunks(t, stream, 1)
	if len(got) != 10 {
		t.Fatalf("got %d packets, want 10", len(got))
	}
	for i, pkt := range got {
		if !bytes.Equal(pkt, stream[i*PacketSize:(i+1)*PacketSize]) {
			t.Errorf("packet %d mismatch", i)
		}
	}
}

func TestFramer_KPacketsPlusOneByte(t *testing.T) {
	t.Parallel()
	stream := buildStream(20)
	// Chunk size = 188*3 + 1: emits 3 packets per chunk, 1 byte carried.
	got := feedInChunks(t, stream, PacketSize*3+1)
	if len(got) != 20 {
		t.Fatalf("got %d packets, want 20", len(got))
	}
}

func TestFramer_AssociativityAcrossChunkSizes(t *testing.T) {
	t.Parallel()
	stream := buildStream(37)
	var reference [][]byte
	{
		var f Framer
		f.Feed(stream, func(p []byte) {
			reference = append(reference, append([]byte(nil), p...))
		})
	}

	for _, chunkSize := range []int{1, 3, 7, 97, 188, 189, 500, 7000} {
		got := feedInChunks(t, stream, chunkSize)
		if len(got) != len(reference) {
			t.Fatalf("chunkSize=%d: got %d packets, want %d", chunkSize, len(got), len(reference))
		}
		for i := range got {
			if !bytes.Equal(got[i], reference[i]) {
				t.Fatalf("chunkSize=%d: packet %d differs from reference", chunkSize, i)
			}
		}
	}
}

func TestFramer_ResetClearsCarry(t *testing.T) {
	t.Parallel()
	var f Framer
	var got int
	f.Feed(make([]byte, 100), func([]byte) { got++ })
	if f.carryLen != 100 {
		t.Fatalf("carryLen = %d, want 100", f.carryLen)
	}
	f.Reset()
	if f.carryLen != 0 {
		t.Fatalf("carryLen after Reset = %d, want 0", f.carryLen)
	}
	if got != 0 {
		t.Fatalf("emit called %d times, want 0 for a partial packet", got)
	}
}
