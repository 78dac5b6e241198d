// Package reconcile merges the persisted entropy history with the
// transient live alert into one series for plotting. The merge is a
// pure derivation: it is recomputed on every change and never writes
// back into the history.
package reconcile

import (
	"time"

	"alertmesh/pkg/models"
)

// FallbackEntropy plots alerts that carry no usable score at a known
// severe-incident level.
const FallbackEntropy = 7.99

// Series is the merged view handed to the plot mapper.
type Series []models.HistorySample

// Merge returns history plus, if an alert is active, one synthesized
// spike point at the end. The input slice is never mutated; when the
// alert reverts to idle a recomputation yields exactly the history
// again.
func Merge(history []models.HistorySample, alert *models.ThreatAlert, fallback float64, now time.Time) Series {
	out := make(Series, len(history), len(history)+1)
	copy(out, history)

	if alert == nil {
		return out
	}
	return append(out, models.HistorySample{
		Entropy:   alert.SpikeEntropy(fallback),
		Timestamp: now.UnixMilli(),
	})
}
