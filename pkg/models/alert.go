package models

// ThreatAlert is the wire event fanned out to dashboard subscribers.
// The agent supplies the descriptive fields; Status, Mitigated and
// ServerTimestamp are stamped by the gateway and win over anything the
// agent sent.
type ThreatAlert struct {
	MachineID       string   `json:"machineId,omitempty"`
	FileName        string   `json:"fileName,omitempty"`
	EntropyScore    *float64 `json:"entropyScore,omitempty"`
	HexDump         string   `json:"hexDump,omitempty"`
	Status          string   `json:"status"`
	Mitigated       bool     `json:"mitigated"`
	ServerTimestamp int64    `json:"serverTimestamp"`
}

// SpikeEntropy returns the entropy to plot for this alert. A missing or
// zero score falls back to the given severe-incident baseline.
func (a *ThreatAlert) SpikeEntropy(fallback float64) float64 {
	if a == nil || a.EntropyScore == nil || *a.EntropyScore == 0 {
		return fallback
	}
	return *a.EntropyScore
}
