package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchDecodesChronologicalSamples(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"entropy":3.1,"timestamp":1000},{"entropy":7.9,"timestamp":2000}]`))
	}))
	defer server.Close()

	c, err := NewClient(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	samples, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Entropy != 3.1 || samples[0].Timestamp != 1000 {
		t.Fatalf("unexpected first sample: %+v", samples[0])
	}
	if samples[1].Entropy != 7.9 || samples[1].Timestamp != 2000 {
		t.Fatalf("unexpected second sample: %+v", samples[1])
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := NewClient(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatalf("expected an error for a 500 response")
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected an error for an empty URL")
	}
}
