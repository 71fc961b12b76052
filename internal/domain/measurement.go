package domain

// DefaultBatchSize bounds the number of measurements sent in one request.
const DefaultBatchSize = 500

// Measurement is one named numeric value ready for transport.
type Measurement struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Source string  `json:"source,omitempty"`
}

// Batch is a size-bounded group of measurements sharing a source and a measure time.
type Batch struct {
	Source       string        `json:"source,omitempty"`
	MeasureTime  int64         `json:"measure_time"`
	Measurements []Measurement `json:"gauges"`
}

// Len reports the number of measurements in the batch.
func (b Batch) Len() int {
	return len(b.Measurements)
}
