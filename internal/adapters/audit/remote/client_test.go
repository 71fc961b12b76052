package remoteaudit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/misc"
)

func TestClient_PostsSignedReport(t *testing.T) {
	got := make(chan domain.PassReport, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get("Content-Type") != "application/json" ||
			!misc.VerifySHA256(body, "k", r.Header.Get(misc.HashHeader)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var rep domain.PassReport
		if err := json.Unmarshal(body, &rep); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got <- rep
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New[domain.PassReport](srv.URL+"/hooks/passes", WithHTTPClient(srv.Client()), WithKey("k"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Notify(context.Background(), domain.PassReport{Reporter: "edge", BatchesSent: 3}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	rep := <-got
	if rep.Reporter != "edge" || rep.BatchesSent != 3 {
		t.Fatalf("received %+v", rep)
	}
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{"server error retried", http.StatusBadGateway, 3, true},
		{"client error not retried", http.StatusBadRequest, 1, true},
		{"success", http.StatusNoContent, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c, _ := New[domain.PassReport](srv.URL, WithBackoff([]time.Duration{time.Millisecond, time.Millisecond}))
			err := c.Notify(context.Background(), domain.PassReport{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls.Load() != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a url", "ftp://host/x"} {
		if _, err := New[domain.PassReport](raw); err == nil {
			t.Fatalf("New(%q) should fail", raw)
		}
	}
	var nilClient *Client[domain.PassReport]
	if err := nilClient.Notify(context.Background(), domain.PassReport{}); err != nil {
		t.Fatalf("nil client: %v", err)
	}
}
