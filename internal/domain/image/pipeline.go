package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nutrilens-server-go/internal/domain/food"
	"nutrilens-server-go/internal/platform/config"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/logging"
)

const opProcess = "image.process"

var (
	errEmpty       = errors.New("empty image payload")
	errInvalidType = errors.New("unsupported media type")
	errTooLarge    = errors.New("file too large")
	errNotImage    = errors.New("not a decodable image")
	errDimensions  = errors.New("image dimensions exceed limits")
)

// Pipeline reads an upload under the size cap, validates it and produces an ImageBlob.
type Pipeline struct {
	validator *SecurityValidator
	logger    *logging.Logger
	upload    *config.UploadConfig
	metrics   Metrics
}

type Options struct {
	Upload *config.UploadConfig
	Logger *logging.Logger
}

// Input describes one streaming upload.
type Input struct {
	Reader    io.Reader
	MediaType string
	Source    string
}

func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Upload == nil {
		return nil, fmt.Errorf("upload config is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger
	}
	return &Pipeline{
		validator: NewSecurityValidator(opts.Upload, opts.Logger),
		logger:    opts.Logger,
		upload:    opts.Upload,
	}, nil
}

// Validator exposes the validator for callers that only need the allow-list check.
func (p *Pipeline) Validator() *SecurityValidator {
	return p.validator
}

func (p *Pipeline) Metrics() map[string]int64 {
	return p.metrics.Snapshot()
}

// Process streams input into memory and validates it. Every rejection is a
// KindValidation error whose Message is safe to show to the client.
func (p *Pipeline) Process(ctx context.Context, input Input) (food.ImageBlob, error) {
	p.metrics.TotalProcessed.Add(1)

	if input.Reader == nil {
		p.metrics.FailedValidations.Add(1)
		return food.ImageBlob{}, platformerrors.New(platformerrors.KindValidation, opProcess, "No file was uploaded.")
	}
	if !p.validator.IsAllowed(input.MediaType) {
		p.metrics.FailedValidations.Add(1)
		return food.ImageBlob{}, platformerrors.Rewrap(platformerrors.KindValidation, opProcess, p.invalidTypeMessage(), errInvalidType)
	}

	maxSize := p.upload.MaxFileSize
	limited := &io.LimitedReader{R: input.Reader, N: maxSize + 1}

	raw, err := io.ReadAll(limited)
	if err != nil {
		p.metrics.FailedValidations.Add(1)
		return food.ImageBlob{}, platformerrors.Rewrap(platformerrors.KindValidation, opProcess, "Failed to read the uploaded file.", err)
	}
	if ctx.Err() != nil {
		return food.ImageBlob{}, ctx.Err()
	}
	if int64(len(raw)) > maxSize {
		p.metrics.FailedValidations.Add(1)
		return food.ImageBlob{}, platformerrors.Rewrap(platformerrors.KindValidation, opProcess, p.tooLargeMessage(), errTooLarge)
	}

	validation := p.validator.ValidateBytes(raw, input.MediaType)
	if !validation.IsValid {
		p.metrics.FailedValidations.Add(1)
		if validation.SecurityRisk != "" {
			p.metrics.SecurityIncidents.Add(1)
		}
		p.logger.WarnTag("HTTP", "upload rejected: source=%s risk=%s error=%v", input.Source, validation.SecurityRisk, validation.Error)
		return food.ImageBlob{}, platformerrors.Rewrap(platformerrors.KindValidation, opProcess, p.messageFor(validation.Error), validation.Error)
	}

	p.metrics.Accepted.Add(1)
	return food.ImageBlob{
		Data:      raw,
		MediaType: validation.MediaType,
		Format:    validation.Format,
	}, nil
}

// RejectOversize records and returns the error for an upload that outgrew the cap
// before it reached Process, for example while the form was being parsed.
func (p *Pipeline) RejectOversize() error {
	p.metrics.TotalProcessed.Add(1)
	p.metrics.FailedValidations.Add(1)
	return platformerrors.Rewrap(platformerrors.KindValidation, opProcess, p.tooLargeMessage(), errTooLarge)
}

func (p *Pipeline) messageFor(err error) string {
	switch {
	case errors.Is(err, errInvalidType):
		return p.invalidTypeMessage()
	case errors.Is(err, errTooLarge):
		return p.tooLargeMessage()
	case errors.Is(err, errEmpty):
		return "Uploaded file is empty."
	case errors.Is(err, errDimensions):
		return "Image dimensions exceed the allowed limits."
	default:
		return "Uploaded file is not a valid image."
	}
}

func (p *Pipeline) invalidTypeMessage() string {
	return fmt.Sprintf("Invalid file type. Only %s are allowed.", strings.Join(p.upload.AllowedTypes, ", "))
}

func (p *Pipeline) tooLargeMessage() string {
	mb := float64(p.upload.MaxFileSize) / (1024 * 1024)
	return fmt.Sprintf("File size exceeds the limit of %sMB.", strconv.FormatFloat(mb, 'f', -1, 64))
}
