package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

type capturedDetection struct {
	secret string
	det    Detection
}

func startGateway(t *testing.T) (*httptest.Server, chan capturedDetection) {
	t.Helper()
	received := make(chan capturedDetection, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var det Detection
		if err := json.NewDecoder(r.Body).Decode(&det); err != nil {
			t.Errorf("failed to decode detection: %v", err)
		}
		received <- capturedDetection{secret: r.Header.Get("x-agent-secret"), det: det}
		w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(server.Close)
	return server, received
}

func newTestWatcher(t *testing.T, cfg Config, uplinkURL string) *Watcher {
	t.Helper()
	uplink, err := NewUplink(UplinkConfig{URL: uplinkURL, Secret: "agent-secret"})
	if err != nil {
		t.Fatalf("failed to create uplink: %v", err)
	}
	w, err := NewWatcher(cfg, uplink)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// highEntropyBytes produces content that scores well above the 7.5
// threshold, optionally with a leading signature.
func highEntropyBytes(prefix string) []byte {
	data := []byte(prefix)
	for i := 0; i < 64; i++ {
		for b := 0; b < 256; b++ {
			data = append(data, byte(b))
		}
	}
	return data
}

func TestInspectUplinksUnauthorizedHighEntropy(t *testing.T) {
	server, received := startGateway(t)
	dir := t.TempDir()

	w := newTestWatcher(t, Config{
		WatchDir:         dir,
		AuthorizedPrefix: "VAULT_SIG",
		MachineID:        "edge-node-1",
	}, server.URL)

	path := writeFile(t, dir, "ransom.bin", highEntropyBytes(""))
	w.inspect(context.Background(), path)

	select {
	case got := <-received:
		if got.secret != "agent-secret" {
			t.Fatalf("missing agent secret header: %q", got.secret)
		}
		if got.det.FileName != "ransom.bin" {
			t.Fatalf("unexpected file name: %s", got.det.FileName)
		}
		if got.det.MachineID != "edge-node-1" {
			t.Fatalf("unexpected machine id: %s", got.det.MachineID)
		}
		if got.det.Status != StatusDetected {
			t.Fatalf("unexpected status: %s", got.det.Status)
		}
		if got.det.EntropyScore <= 7.5 {
			t.Fatalf("reported score below threshold: %v", got.det.EntropyScore)
		}
		if got.det.HexDump == "" || got.det.Timestamp == 0 {
			t.Fatalf("detection missing metadata: %+v", got.det)
		}
	default:
		t.Fatalf("no detection was uplinked")
	}
}

func TestInspectSkipsAuthorizedSignature(t *testing.T) {
	server, received := startGateway(t)
	dir := t.TempDir()

	w := newTestWatcher(t, Config{
		WatchDir:         dir,
		AuthorizedPrefix: "VAULT_SIG",
	}, server.URL)

	path := writeFile(t, dir, "vault.bin", highEntropyBytes("VAULT_SIG"))
	w.inspect(context.Background(), path)

	select {
	case got := <-received:
		t.Fatalf("authorized operation was uplinked: %+v", got.det)
	default:
	}
}

func TestInspectSkipsLowEntropy(t *testing.T) {
	server, received := startGateway(t)
	dir := t.TempDir()

	w := newTestWatcher(t, Config{WatchDir: dir}, server.URL)

	path := writeFile(t, dir, "notes.txt", []byte("plain readable text, nothing encrypted here"))
	w.inspect(context.Background(), path)

	select {
	case got := <-received:
		t.Fatalf("low-entropy file was uplinked: %+v", got.det)
	default:
	}
}

func TestNewWatcherDefaultsMachineID(t *testing.T) {
	server, _ := startGateway(t)
	dir := t.TempDir()

	w := newTestWatcher(t, Config{WatchDir: dir}, server.URL)
	if w.MachineID() == "" {
		t.Fatalf("expected a generated machine id")
	}
}

func TestNewWatcherRejectsMissingDir(t *testing.T) {
	uplink, err := NewUplink(UplinkConfig{URL: "http://127.0.0.1:1/api/incident", Secret: "s"})
	if err != nil {
		t.Fatalf("failed to create uplink: %v", err)
	}
	if _, err := NewWatcher(Config{WatchDir: "/definitely/not/a/real/path"}, uplink); err == nil {
		t.Fatalf("expected an error for a missing watch directory")
	}
}
