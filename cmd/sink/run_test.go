package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	memrepo "github.com/vshulcz/Deltaline/internal/adapters/repository/memory"
	"github.com/vshulcz/Deltaline/internal/config"
)

func Test_newHandler_RegistersRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := memrepo.New(0)
	h := newHandler(config.SinkConfig{User: "ops", Token: "pw"}, repo, zap.NewNop())

	body := `{"source":"web-1","measure_time":1700000000,"gauges":[{"name":"requests","value":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/metrics", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated POST = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/metrics", bytes.NewBufferString(body))
	req.SetBasicAuth("ops", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST = %d (%s)", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/metrics/requests", nil)
	req.SetBasicAuth("ops", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"value":2`) {
		t.Fatalf("GET = %d %s", rec.Code, rec.Body.String())
	}
}

func Test_buildRepo_FallsBackToMemory(t *testing.T) {
	repo, closeRepo := buildRepo(context.Background(), config.SinkConfig{}, zap.NewNop())
	defer closeRepo()
	if _, ok := repo.(*memrepo.Repo); !ok {
		t.Fatalf("repo = %T, want memory", repo)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo, closeRepo = buildRepo(ctx, config.SinkConfig{DSN: "postgres://nobody@127.0.0.1:1/none?sslmode=disable"}, zap.NewNop())
	defer closeRepo()
	if _, ok := repo.(*memrepo.Repo); !ok {
		t.Fatalf("unreachable db: repo = %T, want memory", repo)
	}
}

func Test_run_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, config.SinkConfig{Address: "127.0.0.1:0"}, zap.NewNop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}
