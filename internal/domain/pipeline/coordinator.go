// Package pipeline runs the gate, identification and aggregation stages for one image.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"nutrilens-server-go/internal/domain/eventbus"
	"nutrilens-server-go/internal/domain/food"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/logging"
	"nutrilens-server-go/internal/platform/observability"
)

const (
	OpGate      = "pipeline.gate"
	OpIdentify  = "pipeline.identify"
	OpAggregate = "pipeline.aggregate"
)

// ErrNotFood is the cause of every gate rejection.
var ErrNotFood = stderrors.New("no food detected")

type Gatekeeper interface {
	Evaluate(ctx context.Context, blob food.ImageBlob) (food.GateDecision, error)
}

type Identifier interface {
	Identify(ctx context.Context, blob food.ImageBlob) (food.IdentificationRecord, error)
}

type Aggregator interface {
	Aggregate(ctx context.Context, rec food.IdentificationRecord) (food.AnalysisResult, error)
}

type Options struct {
	Gate       Gatekeeper
	Identifier Identifier
	Aggregator Aggregator
	Events     *eventbus.Bus
	Logger     *logging.Logger
}

// Stats counts finished runs by outcome.
type Stats struct {
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Failed    int64 `json:"failed"`
	Degraded  int64 `json:"degraded"`
}

// Coordinator is stateless per request and safe for concurrent use.
type Coordinator struct {
	gate       Gatekeeper
	identifier Identifier
	aggregator Aggregator
	events     *eventbus.Bus
	logger     *logging.Logger

	completed atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
	degraded  atomic.Int64
}

func New(opts Options) (*Coordinator, error) {
	if opts.Gate == nil || opts.Identifier == nil || opts.Aggregator == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "pipeline.new", "gate, identifier and aggregator are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger
	}
	return &Coordinator{
		gate:       opts.Gate,
		identifier: opts.Identifier,
		aggregator: opts.Aggregator,
		events:     opts.Events,
		logger:     opts.Logger,
	}, nil
}

// Analyze runs Gate, then Identify, then Aggregate. A rejected image never reaches
// the VLM or the nutrition database; the returned error then wraps ErrNotFood with
// KindGate. Any other error is KindUpstream (gate) or KindInternal.
func (c *Coordinator) Analyze(ctx context.Context, blob food.ImageBlob) (result food.AnalysisResult, err error) {
	start := time.Now()
	requestID := observability.RequestID(ctx)
	ctx, finish := observability.StartSpan(ctx, "pipeline", "analyze")
	defer func() {
		if platformerrors.IsKind(err, platformerrors.KindGate) {
			finish(nil)
			return
		}
		finish(err)
	}()

	c.events.Publish(eventbus.EventAnalysisStarted, eventbus.AnalysisEvent{RequestID: requestID, At: start})

	var decision food.GateDecision
	err = c.stage(ctx, OpGate, func(ctx context.Context) error {
		var gerr error
		decision, gerr = c.gate.Evaluate(ctx, blob)
		if gerr != nil {
			return platformerrors.Rewrap(platformerrors.KindUpstream, OpGate, "food gate failed", gerr)
		}
		return nil
	})
	if err != nil {
		return food.AnalysisResult{}, c.fail(requestID, start, err)
	}
	observability.RecordMetric(ctx, "gate_score", decision.Score, nil)

	if !decision.IsFood {
		c.rejected.Add(1)
		c.logger.InfoTag("PIPELINE", "rejected image, gate score %.4f", decision.Score)
		c.events.Publish(eventbus.EventAnalysisRejected, eventbus.AnalysisEvent{
			RequestID:  requestID,
			GateScore:  decision.Score,
			DurationMS: time.Since(start).Milliseconds(),
			At:         time.Now(),
		})
		return food.AnalysisResult{}, platformerrors.Rewrap(platformerrors.KindGate, OpGate, "no food detected", ErrNotFood)
	}

	var rec food.IdentificationRecord
	err = c.stage(ctx, OpIdentify, func(ctx context.Context) error {
		var ierr error
		rec, ierr = c.identifier.Identify(ctx, blob)
		if ierr != nil {
			return platformerrors.Rewrap(platformerrors.KindInternal, OpIdentify, "identification failed", ierr)
		}
		return nil
	})
	if err != nil {
		return food.AnalysisResult{}, c.fail(requestID, start, err)
	}
	if rec.Degraded {
		c.degraded.Add(1)
	}

	err = c.stage(ctx, OpAggregate, func(ctx context.Context) error {
		var aerr error
		result, aerr = c.aggregator.Aggregate(ctx, rec)
		if aerr != nil {
			return platformerrors.Rewrap(platformerrors.KindInternal, OpAggregate, "aggregation failed", aerr)
		}
		return nil
	})
	if err != nil {
		return food.AnalysisResult{}, c.fail(requestID, start, err)
	}

	c.completed.Add(1)
	elapsed := time.Since(start)
	observability.RecordMetric(ctx, "analysis_duration_ms", float64(elapsed.Milliseconds()), map[string]string{
		"source": result.Source.String(),
	})
	c.events.Publish(eventbus.EventAnalysisCompleted, eventbus.AnalysisEvent{
		RequestID:  requestID,
		FoodItem:   result.FoodItem,
		Source:     result.Source.String(),
		Items:      len(result.Items),
		GateScore:  decision.Score,
		Degraded:   rec.Degraded,
		DurationMS: elapsed.Milliseconds(),
		At:         time.Now(),
	})
	return result, nil
}

// stage runs fn inside a span and turns a panic into a KindInternal error.
func (c *Coordinator) stage(ctx context.Context, op string, fn func(context.Context) error) (err error) {
	ctx, finish := observability.StartSpan(ctx, "pipeline", op)
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorTag("PIPELINE", "panic in %s: %v", op, r)
			err = platformerrors.New(platformerrors.KindInternal, op, fmt.Sprintf("panic: %v", r))
		}
		finish(err)
	}()
	return fn(ctx)
}

func (c *Coordinator) fail(requestID string, start time.Time, err error) error {
	c.failed.Add(1)
	c.logger.ErrorTag("PIPELINE", "%s failed: %v", platformerrors.OpOf(err), err)
	c.events.Publish(eventbus.EventAnalysisFailed, eventbus.AnalysisEvent{
		RequestID:  requestID,
		Reason:     string(platformerrors.KindOf(err)),
		Error:      err.Error(),
		DurationMS: time.Since(start).Milliseconds(),
		At:         time.Now(),
	})
	return err
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		Completed: c.completed.Load(),
		Rejected:  c.rejected.Load(),
		Failed:    c.failed.Load(),
		Degraded:  c.degraded.Load(),
	}
}
