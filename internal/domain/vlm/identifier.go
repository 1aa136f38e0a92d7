package vlm

import (
	"context"
	"time"

	"nutrilens-server-go/internal/domain/food"
	"nutrilens-server-go/internal/domain/parser"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/logging"
)

const opIdentify = "vlm.identify"

// Identifier runs the identification stage: one prompt, one reply, one parse.
type Identifier struct {
	provider Provider
	timeout  time.Duration
	logger   *logging.Logger
}

func NewIdentifier(provider Provider, timeout time.Duration, logger *logging.Logger) *Identifier {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Identifier{provider: provider, timeout: timeout, logger: logger}
}

// Identify never fails because of the model: transport errors and the stage timeout
// degrade to an UnknownFood record carrying the failure text. Only an empty payload or
// cancellation of ctx by the caller is returned as an error.
func (i *Identifier) Identify(ctx context.Context, blob food.ImageBlob) (food.IdentificationRecord, error) {
	if len(blob.Data) == 0 {
		return food.IdentificationRecord{}, platformerrors.New(platformerrors.KindValidation, opIdentify, "empty image payload")
	}

	callCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := i.provider.Complete(callCtx, Request{Prompt: IdentificationPrompt, Image: blob})
	if err != nil {
		if ctx.Err() != nil {
			return food.IdentificationRecord{}, platformerrors.Wrap(platformerrors.KindInternal, opIdentify, "request canceled", ctx.Err())
		}
		i.logger.WarnTag("VLM", "provider %s failed after %s: %v", i.provider.Name(), time.Since(start), err)
		return Degraded(err), nil
	}

	i.logger.DebugTag("VLM", "raw reply from %s: %s", i.provider.Name(), reply)
	rec := parser.Parse(reply)
	i.logger.InfoTag("VLM", "identified %q (%d items) in %s", rec.PrimaryLabel, len(rec.ItemLabels), time.Since(start))
	return rec, nil
}

// Degraded is the record returned when the model could not be consulted.
func Degraded(err error) food.IdentificationRecord {
	return food.IdentificationRecord{
		PrimaryLabel:       food.UnknownFood,
		Description:        "Failed to analyze image with VLM: " + err.Error(),
		EstimatedNutrients: map[food.Nutrient]string{},
		Degraded:           true,
	}
}
