package sink

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vshulcz/Deltaline/internal/adapters/repository/memory"
	"github.com/vshulcz/Deltaline/internal/clock"
	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/services/audit"
	"github.com/vshulcz/Deltaline/pkg/observer"
)

type failingRepo struct {
	*memory.Repo
	err error
}

func (r failingRepo) Append(context.Context, []domain.Point) error { return r.err }

type recorder struct {
	mu     sync.Mutex
	events []audit.Ingest
}

func (r *recorder) Notify(_ context.Context, evt audit.Ingest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func batch(source string, ms ...domain.Measurement) domain.Batch {
	return domain.Batch{Source: source, MeasureTime: 1700000000, Measurements: ms}
}

func TestIngest_StoresPoints(t *testing.T) {
	repo := memory.New(0)
	rec := &recorder{}
	fc := clock.NewFake(time.Unix(1700000005, 0))
	svc := New(repo, audit.NewIngestSubject(rec), WithClock(fc))

	ctx := audit.WithClientIP(context.Background(), "10.0.0.7")
	n, err := svc.Ingest(ctx, batch("web-1",
		domain.Measurement{Name: "requests", Value: 5},
		domain.Measurement{Name: "cpu", Value: 0.5, Source: "host-2"},
	))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Fatalf("stored = %d, want 2", n)
	}

	pts, err := svc.Latest(context.Background(), "requests", 0)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(pts) != 1 || pts[0].Source != "web-1" || pts[0].Value != 5 || pts[0].MeasureTime != 1700000000 {
		t.Fatalf("requests points = %+v", pts)
	}
	pts, _ = svc.Latest(context.Background(), "cpu", 10)
	if len(pts) != 1 || pts[0].Source != "host-2" {
		t.Fatalf("cpu points = %+v", pts)
	}

	if len(rec.events) != 1 {
		t.Fatalf("events = %d", len(rec.events))
	}
	evt := rec.events[0]
	if evt.IPAddress != "10.0.0.7" || evt.Timestamp != 1700000005 || evt.Measurements != 2 {
		t.Fatalf("event = %+v", evt)
	}
	if strings.Join(evt.Names, ",") != "requests,cpu" {
		t.Fatalf("event names = %v", evt.Names)
	}

	names, err := svc.Names(context.Background())
	if err != nil || strings.Join(names, ",") != "cpu,requests" {
		t.Fatalf("Names = %v, %v", names, err)
	}
}

func TestIngest_Validation(t *testing.T) {
	tooMany := make([]domain.Measurement, MaxBatchMeasurements+1)
	for i := range tooMany {
		tooMany[i] = domain.Measurement{Name: "x", Value: 1}
	}
	tests := []struct {
		name string
		b    domain.Batch
	}{
		{"zero measure time", domain.Batch{Measurements: []domain.Measurement{{Name: "a", Value: 1}}}},
		{"empty", batch("")},
		{"too many", batch("", tooMany...)},
		{"bad name", batch("", domain.Measurement{Name: "has space", Value: 1})},
		{"empty name", batch("", domain.Measurement{Name: "", Value: 1})},
		{"bad batch source", batch("web 1", domain.Measurement{Name: "a", Value: 1})},
		{"bad measurement source", batch("", domain.Measurement{Name: "a", Value: 1, Source: "h/1"})},
		{"nan", batch("", domain.Measurement{Name: "a", Value: math.NaN()})},
		{"inf", batch("", domain.Measurement{Name: "a", Value: math.Inf(-1)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := memory.New(0)
			svc := New(repo, nil)
			_, err := svc.Ingest(context.Background(), tt.b)
			if !errors.Is(err, domain.ErrInvalidBatch) {
				t.Fatalf("err = %v, want ErrInvalidBatch", err)
			}
			if names, _ := repo.Names(context.Background()); len(names) != 0 {
				t.Fatalf("nothing should be stored, got %v", names)
			}
		})
	}
}

func TestIngest_RepoError(t *testing.T) {
	boom := errors.New("disk full")
	calls := 0
	events := observer.NewSubject[audit.Ingest](observer.ObserverFunc[audit.Ingest](func(context.Context, audit.Ingest) error {
		calls++
		return nil
	}))
	svc := New(failingRepo{Repo: memory.New(0), err: boom}, events)

	_, err := svc.Ingest(context.Background(), batch("", domain.Measurement{Name: "a", Value: 1}))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 0 {
		t.Fatalf("no event expected on failure, got %d", calls)
	}
}

func TestLatest_EmptyName(t *testing.T) {
	svc := New(memory.New(0), nil)
	if _, err := svc.Latest(context.Background(), "  ", 5); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Latest(context.Background(), "missing", 5); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestPing(t *testing.T) {
	svc := New(memory.New(0), nil)
	if err := svc.Ping(context.Background()); err == nil {
		t.Fatal("in-memory store should report no database")
	}
}
