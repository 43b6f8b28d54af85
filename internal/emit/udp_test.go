package emit

import (
	"net"
	"testing"
	"time"
)

func TestUDPEmitter_SendsOneDatagramPerPage(t *testing.T) {
	t.Parallel()

	lc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lc.Close()

	port := lc.LocalAddr().(*net.UDPAddr).Port
	e, err := NewUDPEmitter(port, nil)
	if err != nil {
		t.Fatalf("NewUDPEmitter: %v", err)
	}
	defer e.Close()

	datagram := []byte(`{"page":100,"subpage":0,"ts":1,"lines":[]}` + "\n")
	e.Send(datagram)

	lc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, _, err := lc.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	if string(buf[:n]) != string(datagram) {
		t.Errorf("received %q, want %q", buf[:n], datagram)
	}

	sent, errs := e.Stats()
	if sent != 1 || errs != 0 {
		t.Errorf("Stats() = (%d, %d), want (1, 0)", sent, errs)
	}
}

func TestUDPEmitter_SendErrorIsNonFatal(t *testing.T) {
	t.Parallel()

	e, err := NewUDPEmitter(1, nil) // nothing listens on a reserved port
	if err != nil {
		t.Fatalf("NewUDPEmitter: %v", err)
	}
	defer e.Close()

	e.Send([]byte("x"))
	e.Send([]byte("y"))

	sent, _ := e.Stats()
	if sent > 2 {
		t.Errorf("sent = %d, impossible", sent)
	}
}
