// Package audit fans reporting passes and sink ingests out to observers
// such as log lines, NDJSON files and webhooks.
package audit

import (
	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/pkg/observer"
)

// PassObserver receives one report per reporting pass.
type PassObserver = observer.Observer[domain.PassReport]

// PassSubject fans out pass reports.
type PassSubject = observer.Subject[domain.PassReport]

// IngestObserver receives sink ingest events.
type IngestObserver = observer.Observer[Ingest]

// IngestPublisher is the sending side used by the sink service.
type IngestPublisher = observer.Publisher[Ingest]

// IngestSubject fans out ingest events.
type IngestSubject = observer.Subject[Ingest]

// NewPassSubject creates a subject optionally pre-populated with observers.
func NewPassSubject(observers ...PassObserver) *PassSubject {
	return observer.NewSubject(observers...)
}

// NewIngestSubject creates a subject optionally pre-populated with observers.
func NewIngestSubject(observers ...IngestObserver) *IngestSubject {
	return observer.NewSubject(observers...)
}
