// Package stats collects the single-channel telemetry exposed by the
// debug endpoint (spec §B), adapted from the teacher's stream.Manager and
// ingest stats collectors down to the single-stream case this service
// scopes itself to.
package stats

import (
	"sync"
	"time"
)

// ConnectionState is the supervisor's current relationship to the tuner.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateStopped      ConnectionState = "stopped"
)

// Snapshot is a point-in-time view of the service's health, serialized
// verbatim by the debug endpoint.
type Snapshot struct {
	State ConnectionState `json:"state"`

	ConnectedAt    time.Time `json:"connectedAt,omitempty"`
	UptimeMs       int64     `json:"uptimeMs"`
	ReconnectCount int64     `json:"reconnectCount"`

	BytesReceived int64 `json:"bytesReceived"`
	ReadCount     int64 `json:"readCount"`

	PacketsFramed    int64 `json:"packetsFramed"`
	PacketsDropped   int64 `json:"packetsDropped"`
	PESDispatched    int64 `json:"pesDispatched"`
	PESOverflowDrops int64 `json:"pesOverflowDrops"`

	PagesEmitted int64 `json:"pagesEmitted"`
	PagesSkipped int64 `json:"pagesSkipped"`
	UDPSent      int64 `json:"udpSent"`
	UDPErrors    int64 `json:"udpErrors"`

	LastError string `json:"lastError,omitempty"`

	// CertFingerprint is the SHA-256 fingerprint (base64) of the debug
	// endpoint's self-signed certificate, so an operator hitting it
	// through an HTTPS client that can't chase a CA chain has something
	// to verify the connection against out of band. Empty when the debug
	// server is disabled.
	CertFingerprint string `json:"certFingerprint,omitempty"`
}

// Collector accumulates telemetry across the lifetime of the process,
// surviving reconnects. It is safe for concurrent use: the supervisor's
// read loop writes to it on one goroutine while the debug server reads
// a Snapshot on another.
type Collector struct {
	mu sync.Mutex

	state          ConnectionState
	connectedAt    time.Time
	reconnectCount int64
	lastError      string

	certFingerprint string

	bytesReceived int64
	readCount     int64

	packetsFramed    int64
	packetsDropped   int64
	pesDispatched    int64
	pesOverflowDrops int64

	pagesEmitted int64
	pagesSkipped int64
	udpSent      int64
	udpErrors    int64
}

// New returns a Collector starting in the "connecting" state.
func New() *Collector {
	return &Collector{state: StateConnecting}
}

// SetState records a connection-state transition.
func (c *Collector) SetState(s ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	if s == StateConnected {
		c.connectedAt = time.Now()
	}
}

// RecordReconnect increments the reconnect counter and stores the reason
// that triggered it (spec §D "log the failure reason before sleeping").
func (c *Collector) RecordReconnect(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectCount++
	if reason != nil {
		c.lastError = reason.Error()
	}
}

// SetCertFingerprint records the debug endpoint's self-signed certificate
// fingerprint, so it shows up in every Snapshot once the debug server has
// generated its certificate.
func (c *Collector) SetCertFingerprint(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.certFingerprint = fingerprint
}

// AddIngest folds in the latest ingest.Stats snapshot.
func (c *Collector) AddIngest(bytesReceived, readCount int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytesReceived = bytesReceived
	c.readCount = readCount
}

// AddPipeline folds in the latest pipeline.Counters snapshot, plus the
// overflow-drop count the reassembler tracks separately.
func (c *Collector) AddPipeline(packetsFramed, packetsDropped, pesDispatched, pagesEmitted, pagesSkipped, overflowDrops int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packetsFramed = packetsFramed
	c.packetsDropped = packetsDropped
	c.pesDispatched = pesDispatched
	c.pagesEmitted = pagesEmitted
	c.pagesSkipped = pagesSkipped
	c.pesOverflowDrops = overflowDrops
}

// AddEmitter folds in the latest emit.UDPEmitter send/error counts.
func (c *Collector) AddEmitter(sent, errors int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.udpSent = sent
	c.udpErrors = errors
}

// Snapshot returns a consistent point-in-time copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var uptime int64
	if c.state == StateConnected && !c.connectedAt.IsZero() {
		uptime = time.Since(c.connectedAt).Milliseconds()
	}

	return Snapshot{
		State:            c.state,
		ConnectedAt:      c.connectedAt,
		UptimeMs:         uptime,
		ReconnectCount:   c.reconnectCount,
		BytesReceived:    c.bytesReceived,
		ReadCount:        c.readCount,
		PacketsFramed:    c.packetsFramed,
		PacketsDropped:   c.packetsDropped,
		PESDispatched:    c.pesDispatched,
		PESOverflowDrops: c.pesOverflowDrops,
		PagesEmitted:     c.pagesEmitted,
		PagesSkipped:     c.pagesSkipped,
		UDPSent:          c.udpSent,
		UDPErrors:        c.udpErrors,
		LastError:        c.lastError,
		CertFingerprint:  c.certFingerprint,
	}
}
