// Package gate decides whether an image shows food before any expensive analysis runs.
package gate

import (
	"context"
	"math"
	"strings"
	"time"

	"nutrilens-server-go/internal/domain/food"
	"nutrilens-server-go/internal/platform/config"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/logging"
)

// FoodThreshold is the decision boundary. Lower scores are more food-like, so a score
// strictly below the threshold means food.
const FoodThreshold = 0.5

// InputSize is the square edge length images are resized to before scoring.
const InputSize = 224

// Scorer is a loaded binary food classifier.
type Scorer interface {
	// Load verifies the model is reachable and ready. It is called once at startup.
	Load(ctx context.Context) error
	// Score returns a value in [0,1] where lower means more food-like.
	Score(ctx context.Context, blob food.ImageBlob) (float64, error)
}

// Gate applies FoodThreshold to a loaded Scorer. It is safe for concurrent use.
type Gate struct {
	scorer  Scorer
	timeout time.Duration
	logger  *logging.Logger
}

// NewGate loads scorer and fails with a KindConfig error when the model is unavailable.
func NewGate(ctx context.Context, scorer Scorer, timeout time.Duration, logger *logging.Logger) (*Gate, error) {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	if scorer == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "gate.load", "classifier unavailable: no scorer configured")
	}
	if err := scorer.Load(ctx); err != nil {
		return nil, platformerrors.Rewrap(platformerrors.KindConfig, "gate.load", "classifier unavailable", err)
	}
	logger.InfoTag("GATE", "classifier loaded")
	return &Gate{scorer: scorer, timeout: timeout, logger: logger}, nil
}

// Evaluate scores blob and applies the threshold. Scorer failures are KindUpstream.
func (g *Gate) Evaluate(ctx context.Context, blob food.ImageBlob) (food.GateDecision, error) {
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	score, err := g.scorer.Score(callCtx, blob)
	if err != nil {
		return food.GateDecision{}, platformerrors.Rewrap(platformerrors.KindUpstream, "gate.evaluate", "classifier invocation failed", err)
	}

	score = clamp(score)
	decision := food.GateDecision{IsFood: score < FoodThreshold, Score: score}
	g.logger.InfoTag("GATE", "score=%.4f is_food=%t", decision.Score, decision.IsFood)
	return decision, nil
}

func clamp(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return 1
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// NewScorer builds the scorer selected by cfg.Type.
func NewScorer(cfg config.ClassifierConfig, logger *logging.Logger) (Scorer, error) {
	switch strings.ToLower(cfg.Type) {
	case "tfserving":
		return NewTFServingScorer(cfg.URL, cfg.Model, nil), nil
	case "rekognition":
		return NewRekognitionScorer(cfg.Region, cfg.MinConfidence, logger), nil
	default:
		return nil, platformerrors.New(platformerrors.KindConfig, "gate.new_scorer", "unsupported classifier type: "+cfg.Type)
	}
}
