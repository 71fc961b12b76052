// Package httpjson posts measurement batches to a collector as gzipped JSON.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/misc"
	"github.com/vshulcz/Deltaline/internal/ports"
)

// MetricsPath is where batches are posted, relative to the collector address.
const MetricsPath = "/v1/metrics"

const maxPooledBuffer = 1 << 20

// Options configures a Transport. Every field is optional.
type Options struct {
	// User and Token enable HTTP basic auth when User is set.
	User  string
	Token string
	// Key signs the uncompressed body into the HashSHA256 header.
	Key string
	// Backoff is the retry schedule for transient failures. Nil disables retries.
	Backoff    []time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Transport implements ports.Transport over HTTP.
type Transport struct {
	endpoint string
	opts     Options
	hc       *http.Client
	log      *zap.Logger
}

var _ ports.Transport = (*Transport)(nil)

var (
	gzipWriters = sync.Pool{
		New: func() any { return gzip.NewWriter(io.Discard) },
	}
	buffers = misc.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }).
		WithDiscard(func(b *bytes.Buffer) bool { return b.Cap() > maxPooledBuffer })
)

// New normalizes address and returns a Transport. The HTTP client has no
// timeout of its own; callers bound each Post through ctx.
func New(address string, opts Options) (*Transport, error) {
	base, err := url.Parse(normalizeBase(address))
	if err != nil {
		return nil, fmt.Errorf("collector address: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("collector address %q has no host", address)
	}
	base.Path = strings.TrimRight(base.Path, "/") + MetricsPath

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts.Key = strings.TrimSpace(opts.Key)
	return &Transport{endpoint: base.String(), opts: opts, hc: hc, log: log}, nil
}

func normalizeBase(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	if strings.HasPrefix(s, ":") {
		return "http://localhost" + s
	}
	return "http://" + s
}

// Endpoint returns the absolute URL batches are posted to.
func (t *Transport) Endpoint() string { return t.endpoint }

// Post sends one batch. Empty batches are not sent.
func (t *Transport) Post(ctx context.Context, batch domain.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	plain, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	var sig string
	if t.opts.Key != "" {
		sig = misc.SignSHA256(plain, t.opts.Key)
	}

	buf, err := gzipBytes(plain)
	if err != nil {
		return err
	}
	body := newSharedBody(buf, buffers.Put)
	defer body.release()

	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			t.log.Debug("retrying batch post", zap.Int("attempt", attempt), zap.Int("size", batch.Len()))
		}
		return t.do(ctx, body, sig)
	}
	return misc.Retry(ctx, t.opts.Backoff, IsRetryable, op)
}

func (t *Transport) do(ctx context.Context, body *sharedBody, sig string) (retErr error) {
	rc := body.open()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, rc)
	if err != nil {
		_ = rc.Close()
		return fmt.Errorf("new request: %w", err)
	}
	req.ContentLength = int64(body.buf.Len())
	req.GetBody = func() (io.ReadCloser, error) { return body.open(), nil }
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")
	if sig != "" {
		req.Header.Set(misc.HashHeader, sig)
	}
	if t.opts.User != "" {
		req.SetBasicAuth(t.opts.User, t.opts.Token)
	}

	resp, err := t.hc.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close response body: %w", cerr)
		}
	}()

	msg, err := readBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: msg}
	}
	return nil
}

// sharedBody hands out readers over one pooled buffer and recycles it
// once the caller and every request body have been closed. The transport
// may still read a request body after Do returns.
type sharedBody struct {
	buf     *bytes.Buffer
	refs    atomic.Int32
	recycle func(*bytes.Buffer)
}

func newSharedBody(buf *bytes.Buffer, recycle func(*bytes.Buffer)) *sharedBody {
	s := &sharedBody{buf: buf, recycle: recycle}
	s.refs.Store(1)
	return s
}

func (s *sharedBody) open() io.ReadCloser {
	s.refs.Add(1)
	return &bodyReader{Reader: bytes.NewReader(s.buf.Bytes()), owner: s}
}

func (s *sharedBody) release() {
	if s.refs.Add(-1) == 0 && s.recycle != nil {
		s.recycle(s.buf)
	}
}

type bodyReader struct {
	*bytes.Reader
	owner *sharedBody
	once  sync.Once
}

func (r *bodyReader) Close() error {
	r.once.Do(r.owner.release)
	return nil
}

func gzipBytes(src []byte) (*bytes.Buffer, error) {
	buf := buffers.Get()
	zw := gzipWriters.Get().(*gzip.Writer)
	defer gzipWriters.Put(zw)

	zw.Reset(buf)
	if _, err := zw.Write(src); err != nil {
		buffers.Put(buf)
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		buffers.Put(buf)
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf, nil
}

const maxErrorBody = 512

// readBody drains the response and returns a short prefix of it for errors.
func readBody(resp *http.Response) (string, error) {
	var r io.Reader = resp.Body
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("bad gzip: %w", err)
		}
		defer func() { _ = gr.Close() }()
		r = gr
	}
	head, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", fmt.Errorf("drain body: %w", err)
	}
	return strings.TrimSpace(string(head)), nil
}

// StatusError is returned for any non-2xx collector response.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "collector status: " + e.Status
	}
	return fmt.Sprintf("collector status: %s: %s", e.Status, e.Body)
}

// IsRetryable reports whether err is worth another attempt: gateway and
// throttling statuses, network errors and timeouts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusBadGateway, http.StatusServiceUnavailable,
			http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
