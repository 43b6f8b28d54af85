// Package emit sends completed-page datagrams to the local downstream
// consumer over UDP (spec §4.H).
package emit

import (
	"fmt"
	"log/slog"
	"net"
)

// UDPEmitter sends one datagram per page to a fixed loopback destination,
// over a single socket created at startup (spec §4.H).
type UDPEmitter struct {
	log  *slog.Logger
	conn *net.UDPConn

	sent   int64
	errors int64
}

// NewUDPEmitter dials a UDP "connection" to 127.0.0.1:port. No handshake
// occurs — net.DialUDP on a UDP socket just fixes the destination address
// for subsequent Write calls, equivalent to the sendto/connect pattern in
// spec §4.H. If log is nil, slog.Default() is used.
func NewUDPEmitter(port int, log *slog.Logger) (*UDPEmitter, error) {
	if log == nil {
		log = slog.Default()
	}
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("emit: dial %s: %w", addr, err)
	}
	return &UDPEmitter{log: log.With("component", "udp-emitter"), conn: conn}, nil
}

// Send transmits one datagram. Send errors are logged and non-fatal (spec
// §4.H, §7 "UDP send failure") — the caller should keep processing.
func (e *UDPEmitter) Send(datagram []byte) {
	if _, err := e.conn.Write(datagram); err != nil {
		e.errors++
		e.log.Warn("udp send failed", "error", err)
		return
	}
	e.sent++
}

// Stats returns (datagrams sent, send errors) for the debug snapshot.
func (e *UDPEmitter) Stats() (sent, errors int64) {
	return e.sent, e.errors
}

// Close releases the socket.
func (e *UDPEmitter) Close() error {
	return e.conn.Close()
}
