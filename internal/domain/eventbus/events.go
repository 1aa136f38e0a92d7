package eventbus

import "time"

// Analysis lifecycle topics.
const (
	EventAnalysisStarted   = "analysis:started"
	EventAnalysisRejected  = "analysis:rejected"
	EventAnalysisCompleted = "analysis:completed"
	EventAnalysisFailed    = "analysis:failed"
)

// AnalysisTopics lists every lifecycle topic in publication order.
var AnalysisTopics = []string{
	EventAnalysisStarted,
	EventAnalysisRejected,
	EventAnalysisCompleted,
	EventAnalysisFailed,
}

// AnalysisEvent describes one step of a pipeline run. Fields that do not apply to
// the topic are left zero.
type AnalysisEvent struct {
	Type       string    `json:"type"`
	RequestID  string    `json:"request_id,omitempty"`
	FoodItem   string    `json:"food_item,omitempty"`
	Source     string    `json:"source,omitempty"`
	Items      int       `json:"items,omitempty"`
	GateScore  float64   `json:"gate_score,omitempty"`
	Degraded   bool      `json:"degraded,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	At         time.Time `json:"at"`
}
