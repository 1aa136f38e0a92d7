// Package aggregate totals per-item nutrition lookups into one result.
package aggregate

import (
	"context"
	"errors"
	"strings"
	"time"

	"nutrilens-server-go/internal/domain/food"
	"nutrilens-server-go/internal/domain/nutrition"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/logging"
)

// DefaultMaxItems caps how many distinct items are looked up per request.
const DefaultMaxItems = 10

const opAggregate = "aggregate.run"

// Aggregator looks up every identified item in order and sums what resolves.
type Aggregator struct {
	lookup   nutrition.Lookup
	maxItems int
	timeout  time.Duration
	logger   *logging.Logger
}

func New(lookup nutrition.Lookup, maxItems int, timeout time.Duration, logger *logging.Logger) *Aggregator {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Aggregator{lookup: lookup, maxItems: maxItems, timeout: timeout, logger: logger}
}

// Aggregate never fails because of a lookup. Not-found and unavailable items just
// contribute nothing; the only error is cancellation of ctx.
//
// Totals come from lookups whenever any looked-up value was summed. Otherwise the
// VLM's own estimates are used, and nutrients neither source covers are N/A.
func (a *Aggregator) Aggregate(ctx context.Context, rec food.IdentificationRecord) (food.AnalysisResult, error) {
	result := food.AnalysisResult{
		FoodItem:    rec.Label(),
		Description: rec.Description,
		Items:       []food.ItemNutrients{},
	}

	var (
		totals  = map[food.Nutrient]float64{}
		counted = map[food.Nutrient]bool{}
	)

	for _, name := range Items(rec, a.maxItems) {
		if err := ctx.Err(); err != nil {
			return food.AnalysisResult{}, platformerrors.Wrap(platformerrors.KindInternal, opAggregate, "request canceled", err)
		}

		item, err := a.lookupItem(ctx, name)
		if err != nil {
			return food.AnalysisResult{}, err
		}
		result.Items = append(result.Items, item)

		for _, n := range food.AllNutrients {
			if amount := item.Nutrients.Get(n); amount.Available() {
				totals[n] += amount.Value
				counted[n] = true
			}
		}
	}

	if len(counted) > 0 {
		result.Source = food.SourceLookup
		for _, n := range food.AllNutrients {
			if counted[n] {
				result.Nutrients.Set(n, food.Measured(totals[n], CanonicalUnit(n)))
			}
		}
		return result, nil
	}

	for _, n := range food.AllNutrients {
		if text := rec.EstimatedNutrients[n]; strings.TrimSpace(text) != "" {
			result.Nutrients.Set(n, food.Estimated(text))
		}
	}
	if result.Nutrients.HasAny() {
		result.Source = food.SourceEstimate
	}
	return result, nil
}

func (a *Aggregator) lookupItem(ctx context.Context, name string) (food.ItemNutrients, error) {
	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	item := food.ItemNutrients{Name: name}
	raw, err := a.lookup.Lookup(callCtx, name)
	switch {
	case err == nil:
		item.Status = food.ItemFound
		item.Nutrients = Normalize(raw)
		a.logger.DebugTag("NUTRITION", "%q found", name)
	case errors.Is(err, nutrition.ErrNotFound):
		item.Status = food.ItemNotFound
		a.logger.InfoTag("NUTRITION", "%q not found", name)
	default:
		if ctx.Err() != nil {
			return item, platformerrors.Wrap(platformerrors.KindInternal, opAggregate, "request canceled", ctx.Err())
		}
		item.Status = food.ItemUnavailable
		a.logger.WarnTag("NUTRITION", "%q unavailable: %v", name, err)
	}
	return item, nil
}

// Items returns the distinct names to look up: ItemLabels, or the primary label when
// there are none. The UnknownFood sentinel is never returned.
func Items(rec food.IdentificationRecord, max int) []string {
	candidates := rec.ItemLabels
	if len(candidates) == 0 {
		candidates = []string{rec.Label()}
	}

	seen := map[string]bool{}
	var items []string
	for _, c := range candidates {
		key := nutrition.NormalizeName(c)
		if key == "" || key == strings.ToLower(food.UnknownFood) || seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, strings.TrimSpace(c))
		if max > 0 && len(items) == max {
			break
		}
	}
	return items
}
