package models

// HistorySample is one point of the persisted entropy series. Samples
// are owned by the external history store and read-only here.
type HistorySample struct {
	Entropy   float64 `json:"entropy"`
	Timestamp int64   `json:"timestamp"`
}
