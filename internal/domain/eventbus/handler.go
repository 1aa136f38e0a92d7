package eventbus

import (
	"context"
	"sync"

	"nutrilens-server-go/internal/platform/logging"
	"nutrilens-server-go/internal/platform/observability"
)

// Recorder logs every lifecycle event and counts events per type. Nothing is persisted.
type Recorder struct {
	logger *logging.Logger

	mu     sync.Mutex
	counts map[string]int64
}

func NewRecorder(logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Recorder{logger: logger, counts: map[string]int64{}}
}

// Attach subscribes the recorder to every analysis topic on bus.
func (r *Recorder) Attach(bus *Bus) error {
	return bus.SubscribeAll(r.Handle)
}

func (r *Recorder) Handle(ev AnalysisEvent) {
	switch ev.Type {
	case EventAnalysisFailed:
		r.logger.WarnTag("PIPELINE", "analysis %s failed (%s): %s", ev.RequestID, ev.Reason, ev.Error)
	case EventAnalysisRejected:
		r.logger.InfoTag("PIPELINE", "analysis %s rejected, gate score %.3f", ev.RequestID, ev.GateScore)
	case EventAnalysisCompleted:
		r.logger.InfoTag("PIPELINE", "analysis %s completed: %s (%s, %d items, %dms)",
			ev.RequestID, ev.FoodItem, ev.Source, ev.Items, ev.DurationMS)
	default:
		r.logger.DebugTag("PIPELINE", "%s %s", ev.Type, ev.RequestID)
	}

	r.mu.Lock()
	r.counts[ev.Type]++
	r.mu.Unlock()

	ctx := observability.WithRequestID(context.Background(), ev.RequestID)
	observability.RecordMetric(ctx, "analysis.events", 1, map[string]string{"type": ev.Type})
	if ev.Type == EventAnalysisCompleted || ev.Type == EventAnalysisFailed {
		observability.RecordMetric(ctx, "analysis.duration_ms", float64(ev.DurationMS), map[string]string{"type": ev.Type})
	}
}

// Counts returns a copy of the per-type event counters.
func (r *Recorder) Counts() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}
