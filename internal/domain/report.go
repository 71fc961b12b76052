package domain

import "time"

// PassReport describes the outcome of one reporting pass.
type PassReport struct {
	Reporter      string        `json:"reporter"`
	MeasureTime   int64         `json:"measure_time"`
	Metrics       int           `json:"metrics"`
	Measurements  int           `json:"measurements"`
	Skipped       int           `json:"skipped"`
	BatchesSent   int           `json:"batches_sent"`
	BatchesFailed int           `json:"batches_failed"`
	Evicted       int           `json:"evicted"`
	Duration      time.Duration `json:"duration_ns"`
}

// OK reports whether every batch of the pass was delivered.
func (r PassReport) OK() bool {
	return r.BatchesFailed == 0
}
