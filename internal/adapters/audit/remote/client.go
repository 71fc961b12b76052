// Package remoteaudit posts audit events to a webhook as JSON.
package remoteaudit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vshulcz/Deltaline/internal/misc"
	"github.com/vshulcz/Deltaline/pkg/observer"
)

const defaultTimeout = 5 * time.Second

// Client POSTs each event of type T to a fixed webhook.
type Client[T any] struct {
	endpoint string
	hc       *http.Client
	key      string
	backoff  []time.Duration
}

var _ observer.Observer[struct{}] = (*Client[struct{}])(nil)

// Option customizes a Client.
type Option func(*settings)

type settings struct {
	hc      *http.Client
	key     string
	backoff []time.Duration
}

// WithHTTPClient replaces the default client (5s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.hc = hc }
}

// WithKey signs every body into the HashSHA256 header.
func WithKey(key string) Option {
	return func(s *settings) { s.key = key }
}

// WithBackoff retries 5xx and network failures on the given schedule.
func WithBackoff(delays []time.Duration) Option {
	return func(s *settings) { s.backoff = delays }
}

// New validates rawURL and returns a Client.
func New[T any](rawURL string, opts ...Option) (*Client[T], error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("audit url is empty")
	}
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid audit url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid audit url scheme %q", u.Scheme)
	}

	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.hc == nil {
		s.hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client[T]{endpoint: u.String(), hc: s.hc, key: s.key, backoff: s.backoff}, nil
}

// statusError marks a non-2xx webhook reply.
type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("audit webhook status %d", e.code) }

func retryable(err error) bool {
	var se statusError
	switch {
	case err == nil:
		return false
	case errors.As(err, &se):
		return se.code >= http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

// Notify posts evt, retrying per the configured backoff.
func (c *Client[T]) Notify(ctx context.Context, evt T) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	var sig string
	if c.key != "" {
		sig = misc.SignSHA256(payload, c.key)
	}
	return misc.Retry(ctx, c.backoff, retryable, func() error {
		return c.post(ctx, payload, sig)
	})
}

func (c *Client[T]) post(ctx context.Context, payload []byte, sig string) (retErr error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(misc.HashHeader, sig)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("audit post: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close audit response: %w", cerr)
		}
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return statusError{code: resp.StatusCode}
	}
	return nil
}
