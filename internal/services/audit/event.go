package audit

// Ingest records a batch accepted by the collector sink.
type Ingest struct {
	Timestamp    int64    `json:"ts"`
	MeasureTime  int64    `json:"measure_time"`
	Source       string   `json:"source,omitempty"`
	Measurements int      `json:"measurements"`
	Names        []string `json:"names"`
	IPAddress    string   `json:"ip_address,omitempty"`
}
