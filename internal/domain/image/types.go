package image

import "sync/atomic"

// ValidationResult captures the outcome of validating one upload.
type ValidationResult struct {
	IsValid      bool
	Format       string
	MediaType    string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}

// Metrics counts intake outcomes since process start.
type Metrics struct {
	TotalProcessed    atomic.Int64
	Accepted          atomic.Int64
	FailedValidations atomic.Int64
	SecurityIncidents atomic.Int64
}

// Snapshot returns the counters as plain values.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"total_processed":    m.TotalProcessed.Load(),
		"accepted":           m.Accepted.Load(),
		"failed_validations": m.FailedValidations.Load(),
		"security_incidents": m.SecurityIncidents.Load(),
	}
}
