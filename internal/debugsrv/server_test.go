package debugsrv

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/zsiec/dvbttx/internal/stats"
)

func TestServer_EmptyAddrIsNoOp(t *testing.T) {
	t.Parallel()
	s, err := New("", stats.New(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("Start with empty addr should be a no-op, got %v", err)
	}
}

func TestServer_ServesDebugSnapshot(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	collector := stats.New()
	collector.SetState(stats.StateConnected)
	collector.AddIngest(42, 1)

	s, err := New(addr, collector, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Timeout: 2 * time.Second,
	}

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = client.Get("https://" + addr + "/debug")
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /debug: %v", err)
	}
	defer resp.Body.Close()

	var snap stats.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != stats.StateConnected {
		t.Errorf("State = %q, want %q", snap.State, stats.StateConnected)
	}
	if snap.BytesReceived != 42 {
		t.Errorf("BytesReceived = %d, want 42", snap.BytesReceived)
	}
	if snap.CertFingerprint == "" {
		t.Error("CertFingerprint should be populated once the debug server has a certificate")
	}

	cancel()
	<-errCh
}
