package stats

import (
	"errors"
	"testing"
)

func TestCollector_InitialState(t *testing.T) {
	t.Parallel()
	c := New()
	snap := c.Snapshot()
	if snap.State != StateConnecting {
		t.Errorf("State = %q, want %q", snap.State, StateConnecting)
	}
	if snap.UptimeMs != 0 {
		t.Errorf("UptimeMs = %d, want 0 before connect", snap.UptimeMs)
	}
}

func TestCollector_ConnectedSetsUptime(t *testing.T) {
	t.Parallel()
	c := New()
	c.SetState(StateConnected)
	snap := c.Snapshot()
	if snap.State != StateConnected {
		t.Errorf("State = %q, want %q", snap.State, StateConnected)
	}
	if snap.ConnectedAt.IsZero() {
		t.Error("ConnectedAt should be set once connected")
	}
}

func TestCollector_RecordReconnect(t *testing.T) {
	t.Parallel()
	c := New()
	c.RecordReconnect(errors.New("connection refused"))
	c.RecordReconnect(errors.New("header too large"))

	snap := c.Snapshot()
	if snap.ReconnectCount != 2 {
		t.Errorf("ReconnectCount = %d, want 2", snap.ReconnectCount)
	}
	if snap.LastError != "header too large" {
		t.Errorf("LastError = %q, want %q", snap.LastError, "header too large")
	}
}

func TestCollector_SetCertFingerprint(t *testing.T) {
	t.Parallel()
	c := New()
	c.SetCertFingerprint("abc123==")

	snap := c.Snapshot()
	if snap.CertFingerprint != "abc123==" {
		t.Errorf("CertFingerprint = %q, want %q", snap.CertFingerprint, "abc123==")
	}
}

func TestCollector_AggregatesAllCounters(t *testing.T) {
	t.Parallel()
	c := New()
	c.AddIngest(1000, 10)
	c.AddPipeline(50, 2, 5, 3, 1, 0)
	c.AddEmitter(3, 0)

	snap := c.Snapshot()
	if snap.BytesReceived != 1000 || snap.ReadCount != 10 {
		t.Errorf("ingest counters = %+v", snap)
	}
	if snap.PacketsFramed != 50 || snap.PacketsDropped != 2 || snap.PESDispatched != 5 {
		t.Errorf("pipeline counters = %+v", snap)
	}
	if snap.PagesEmitted != 3 || snap.PagesSkipped != 1 {
		t.Errorf("page counters = %+v", snap)
	}
	if snap.UDPSent != 3 || snap.UDPErrors != 0 {
		t.Errorf("udp counters = %+v", snap)
	}
}
