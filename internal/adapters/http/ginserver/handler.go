// Package ginserver exposes the collector sink over HTTP.
package ginserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/misc"
	"github.com/vshulcz/Deltaline/internal/services/audit"
)

// Service is the sink behavior the handlers depend on.
type Service interface {
	Ingest(ctx context.Context, b domain.Batch) (int, error)
	Latest(ctx context.Context, name string, limit int) ([]domain.Point, error)
	Names(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Handler exposes HTTP endpoints for batch ingestion and inspection.
type Handler struct {
	svc Service
}

// NewHandler wires a sink service into gin handlers.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type batchBuffer struct {
	batch domain.Batch
}

// Reset zeroes the whole backing array: json decodes into reused elements
// without clearing fields absent from the next body.
func (b *batchBuffer) Reset() {
	b.batch.Source = ""
	b.batch.MeasureTime = 0
	clear(b.batch.Measurements[:cap(b.batch.Measurements)])
	b.batch.Measurements = b.batch.Measurements[:0]
}

var batchPool = misc.NewPool(func() *batchBuffer {
	return &batchBuffer{batch: domain.Batch{Measurements: make([]domain.Measurement, 0, domain.DefaultBatchSize)}}
}).WithDiscard(func(b *batchBuffer) bool {
	return cap(b.batch.Measurements) > 4*domain.DefaultBatchSize
})

func decodeBatch(r io.Reader, dst *domain.Batch) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// PostMetrics handles `POST /v1/metrics` with one transport batch.
func (h *Handler) PostMetrics(c *gin.Context) {
	buf := batchPool.Get()
	defer batchPool.Put(buf)

	if err := decodeBatch(c.Request.Body, &buf.batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed batch"})
		return
	}

	ctx := audit.WithClientIP(c.Request.Context(), c.ClientIP())
	stored, err := h.svc.Ingest(ctx, buf.batch)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": stored})
}

// GetLatest handles `GET /v1/metrics/:name?limit=N`.
func (h *Handler) GetLatest(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad limit"})
			return
		}
		limit = n
	}

	points, err := h.svc.Latest(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "points": points})
}

// ListNames handles `GET /v1/metrics`.
func (h *Handler) ListNames(c *gin.Context) {
	names, err := h.svc.Names(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"names": names})
}

// Ping proxies `GET /ping` to the storage health check.
func (h *Handler) Ping(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		c.String(http.StatusInternalServerError, "db ping error: %v", err)
		return
	}
	c.String(http.StatusOK, "ok")
}

func httpError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidBatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
