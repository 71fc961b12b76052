// Package middlewares holds the gin middlewares of the collector sink.
package middlewares

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

var (
	gzipReaders sync.Pool
	gzipWriters = sync.Pool{
		New: func() any { return gzip.NewWriter(io.Discard) },
	}
)

// compressible lists the response content types worth compressing.
var compressible = []string{"application/json", "text/plain"}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(enc, "gzip") {
			return true
		}
	}
	return false
}

// pooledReader returns its gzip.Reader to the pool on Close.
type pooledReader struct {
	zr  *gzip.Reader
	raw io.ReadCloser
}

func (r *pooledReader) Read(p []byte) (int, error) { return r.zr.Read(p) }

func (r *pooledReader) Close() error {
	zerr := r.zr.Close()
	gzipReaders.Put(r.zr)
	if err := r.raw.Close(); err != nil {
		return err
	}
	return zerr
}

func newGzipReader(src io.Reader) (*gzip.Reader, error) {
	if zr, ok := gzipReaders.Get().(*gzip.Reader); ok {
		if err := zr.Reset(src); err != nil {
			gzipReaders.Put(zr)
			return nil, err
		}
		return zr, nil
	}
	return gzip.NewReader(src)
}

// GzipRequest transparently decompresses gzip-encoded request bodies and
// rejects bodies that are not valid gzip.
func GzipRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(strings.ToLower(c.GetHeader("Content-Encoding")), "gzip") {
			c.Next()
			return
		}
		zr, err := newGzipReader(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed gzip body"})
			return
		}
		c.Request.Body = &pooledReader{zr: zr, raw: c.Request.Body}
		c.Request.Header.Del("Content-Encoding")
		c.Request.Header.Del("Content-Length")
		c.Request.ContentLength = -1
		c.Next()
	}
}

// compressWriter switches to gzip on the first body write when the response
// type is compressible.
type compressWriter struct {
	gin.ResponseWriter
	zw      *gzip.Writer
	started bool
}

func (w *compressWriter) start() {
	w.started = true
	status := w.Status()
	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified {
		return
	}
	ct := w.Header().Get("Content-Type")
	for _, prefix := range compressible {
		if strings.HasPrefix(ct, prefix) {
			zw, _ := gzipWriters.Get().(*gzip.Writer)
			zw.Reset(w.ResponseWriter)
			w.zw = zw
			w.Header().Del("Content-Length")
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Add("Vary", "Accept-Encoding")
			return
		}
	}
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.start()
	}
	if w.zw == nil {
		return w.ResponseWriter.Write(p)
	}
	return w.zw.Write(p)
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *compressWriter) finish() error {
	if w.zw == nil {
		return nil
	}
	err := w.zw.Close()
	gzipWriters.Put(w.zw)
	w.zw = nil
	return err
}

// GzipResponse compresses JSON and text responses for clients accepting gzip.
func GzipResponse() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !acceptsGzip(c.GetHeader("Accept-Encoding")) {
			c.Next()
			return
		}
		cw := &compressWriter{ResponseWriter: c.Writer}
		c.Writer = cw
		c.Next()
		if err := cw.finish(); err != nil {
			_ = c.Error(err)
		}
		c.Writer = cw.ResponseWriter
	}
}
