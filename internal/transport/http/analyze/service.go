// Package analyze serves the food photo analysis endpoints.
package analyze

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"nutrilens-server-go/internal/domain/food"
	domainimage "nutrilens-server-go/internal/domain/image"
	"nutrilens-server-go/internal/domain/pipeline"
	"nutrilens-server-go/internal/platform/config"
	"nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/logging"
	httptransport "nutrilens-server-go/internal/transport/http"
)

const formField = "file"

// multipartOverhead is the slack allowed on top of the upload cap for form framing.
const multipartOverhead = 1 << 20

// Analyzer runs the full pipeline for one image.
type Analyzer interface {
	Analyze(ctx context.Context, blob food.ImageBlob) (food.AnalysisResult, error)
	Stats() pipeline.Stats
}

type Options struct {
	Config   *config.Config
	Logger   *logging.Logger
	Images   *domainimage.Pipeline
	Analyzer Analyzer
	// EventCounts, when set, adds lifecycle event counters to the status reply.
	EventCounts func() map[string]int64
	// VLMName labels the status reply.
	VLMName string
}

type Service struct {
	config   *config.Config
	logger   *logging.Logger
	images   *domainimage.Pipeline
	analyzer Analyzer
	events   func() map[string]int64
	vlmName  string
}

// Status is the GET /api/analyze reply.
type Status struct {
	Status string           `json:"status"`
	VLM    string           `json:"vlm"`
	Stats  pipeline.Stats   `json:"stats"`
	Intake map[string]int64 `json:"intake"`
	Events map[string]int64 `json:"events,omitempty"`
}

func NewService(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "config is required")
	}
	if opts.Images == nil || opts.Analyzer == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "image pipeline and analyzer are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger
	}
	return &Service{
		config:   opts.Config,
		logger:   opts.Logger,
		images:   opts.Images,
		analyzer: opts.Analyzer,
		events:   opts.EventCounts,
		vlmName:  opts.VLMName,
	}, nil
}

// Register mounts the status route on public and the analysis route on secured.
func (s *Service) Register(public, secured *gin.RouterGroup) {
	public.GET("/analyze", s.handleGet)
	secured.POST("/analyze", s.handlePost)
	s.logger.InfoTag("HTTP", "analyze routes registered")
}

func (s *Service) handleGet(c *gin.Context) {
	status := Status{
		Status: "ok",
		VLM:    s.vlmName,
		Stats:  s.analyzer.Stats(),
		Intake: s.images.Metrics(),
	}
	if s.events != nil {
		status.Events = s.events()
	}
	c.JSON(http.StatusOK, status)
}

func (s *Service) handlePost(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.Upload.MaxFileSize+multipartOverhead)

	file, header, err := c.Request.FormFile(formField)
	if err != nil {
		s.logger.WarnTag("HTTP", "missing upload: %v", err)
		httptransport.RespondFromError(c, s.classifyFormError(err))
		return
	}
	defer file.Close()

	mediaType := header.Header.Get("Content-Type")
	if !s.images.Validator().IsAllowed(mediaType) {
		// the pipeline produces the client message for a rejected type
		_, perr := s.images.Process(c.Request.Context(), domainimage.Input{Reader: file, MediaType: mediaType, Source: "upload"})
		httptransport.RespondFromError(c, perr)
		return
	}

	spooled, cleanup, err := s.spool(file)
	if err != nil {
		s.logger.ErrorTag("HTTP", "failed to spool upload: %v", err)
		httptransport.RespondFromError(c, err)
		return
	}
	defer cleanup()

	blob, err := s.images.Process(c.Request.Context(), domainimage.Input{
		Reader:    spooled,
		MediaType: mediaType,
		Source:    "upload",
	})
	if err != nil {
		httptransport.RespondFromError(c, err)
		return
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), blob)
	if err != nil {
		httptransport.RespondFromError(c, err)
		return
	}

	c.JSON(http.StatusOK, result.Envelope())
}

// spool copies the upload into a request-owned temp file. cleanup closes and removes
// it and must run on every exit path.
func (s *Service) spool(src io.Reader) (*os.File, func(), error) {
	dir := s.config.Upload.TempDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, errors.Wrap(errors.KindStorage, "analyze.spool", "failed to create temp dir", err)
		}
	}
	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return nil, nil, errors.Wrap(errors.KindStorage, "analyze.spool", "failed to create temp file", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			s.logger.WarnTag("HTTP", "failed to remove temp upload %s: %v", tmp.Name(), err)
		}
	}

	// one byte past the cap lets the pipeline detect oversize uploads
	if _, err := io.Copy(tmp, io.LimitReader(src, s.config.Upload.MaxFileSize+1)); err != nil {
		cleanup()
		return nil, nil, errors.Wrap(errors.KindStorage, "analyze.spool", "failed to write temp file", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, nil, errors.Wrap(errors.KindStorage, "analyze.spool", "failed to rewind temp file", err)
	}
	return tmp, cleanup, nil
}

func (s *Service) classifyFormError(err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return s.images.RejectOversize()
	}
	return errors.Rewrap(errors.KindValidation, "analyze.form", "No file was uploaded.", err)
}
