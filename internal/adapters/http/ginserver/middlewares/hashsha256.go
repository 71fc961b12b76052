package middlewares

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/Deltaline/internal/misc"
)

// signingWriter holds the response back so its signature can be sent as a header.
type signingWriter struct {
	gin.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *signingWriter) WriteHeader(code int) { w.status = code }

func (w *signingWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *signingWriter) WriteString(s string) (int, error) { return w.buf.WriteString(s) }

// release signs the held body with key and writes it to the real writer.
func (w *signingWriter) release(c *gin.Context, key string) {
	if w.buf.Len() > 0 {
		w.Header().Set(misc.HashHeader, misc.SignSHA256(w.buf.Bytes(), key))
	}
	if w.status == 0 {
		w.status = http.StatusOK
	}
	c.Writer = w.ResponseWriter
	c.Writer.WriteHeader(w.status)
	if _, err := c.Writer.Write(w.buf.Bytes()); err != nil {
		_ = c.Error(err)
	}
}

// verifyBody checks the request signature, if any, and restores the body
// for the handlers. It reports false after aborting the request.
func verifyBody(c *gin.Context, key string) bool {
	sig := strings.TrimSpace(c.GetHeader(misc.HashHeader))
	if sig == "" {
		return true
	}
	body, err := io.ReadAll(c.Request.Body)
	if cerr := c.Request.Body.Close(); cerr != nil {
		_ = c.Error(cerr)
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) > 0 && !misc.VerifySHA256(body, key, sig) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid hash"})
		return false
	}
	return true
}

// HashSHA256 rejects requests whose HashSHA256 header does not match the
// HMAC of the decompressed body and signs every response body.
// Unsigned requests pass. An empty key disables the middleware.
func HashSHA256(key string) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		sw := &signingWriter{ResponseWriter: c.Writer}
		c.Writer = sw
		if verifyBody(c, key) {
			c.Next()
		}
		sw.release(c, key)
	}
}
