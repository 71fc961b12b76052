// Package file appends audit events to a newline-delimited JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/vshulcz/Deltaline/pkg/observer"
)

// Writer appends each event of type T as one JSON line. The file is opened
// on the first event and stays open until Close.
type Writer[T any] struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

var _ observer.Observer[struct{}] = (*Writer[struct{}])(nil)

// New creates a Writer for path.
func New[T any](path string) *Writer[T] {
	return &Writer[T]{path: path}
}

// Notify appends evt. An empty path or nil Writer drops it.
func (w *Writer[T]) Notify(_ context.Context, evt T) error {
	if w == nil || w.path == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil {
		f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		w.f, w.enc = f, json.NewEncoder(f)
	}
	if err := w.enc.Encode(evt); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// Close syncs and closes the file. The next Notify reopens it.
func (w *Writer[T]) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := errors.Join(w.f.Sync(), w.f.Close())
	w.f, w.enc = nil, nil
	if err != nil {
		return fmt.Errorf("close audit file: %w", err)
	}
	return nil
}
