package domain

// Point is a stored measurement as kept by the collector sink.
type Point struct {
	Name        string  `json:"name"`
	Source      string  `json:"source"`
	MeasureTime int64   `json:"measure_time"`
	Value       float64 `json:"value"`
}
