// Package bootstrap wires configuration, logging, storage and the analysis pipeline
// into a running server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"nutrilens-server-go/internal/domain/aggregate"
	"nutrilens-server-go/internal/domain/auth"
	"nutrilens-server-go/internal/domain/eventbus"
	"nutrilens-server-go/internal/domain/gate"
	domainimage "nutrilens-server-go/internal/domain/image"
	"nutrilens-server-go/internal/domain/nutrition"
	"nutrilens-server-go/internal/domain/nutrition/cache"
	"nutrilens-server-go/internal/domain/pipeline"
	"nutrilens-server-go/internal/domain/vlm"
	platformconfig "nutrilens-server-go/internal/platform/config"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/logging"
	platformobservability "nutrilens-server-go/internal/platform/observability"
	platformstorage "nutrilens-server-go/internal/platform/storage"
	httptransport "nutrilens-server-go/internal/transport/http"
	"nutrilens-server-go/internal/transport/http/analyze"
	mcptransport "nutrilens-server-go/internal/transport/mcp"
)

// Version is reported by the MCP server and the CLI. Overridden with -ldflags.
var Version = "1.0.0"

const (
	shutdownTimeout = 10 * time.Second
	closeTimeout    = 5 * time.Second
)

// Options controls how Build assembles the application.
type Options struct {
	// ConfigPath pins the config file; empty means NUTRILENS_CONFIG or config.yaml.
	ConfigPath string
	// DisableDotEnv skips loading .env.
	DisableDotEnv bool
	// Logger replaces the logger built from config. The caller keeps ownership.
	Logger *logging.Logger
}

// App holds every long-lived component of one process.
type App struct {
	Config      *platformconfig.Config
	ConfigPath  string
	Logger      *logging.Logger
	Images      *domainimage.Pipeline
	Coordinator *pipeline.Coordinator
	Lookup      *nutrition.CachedLookup
	Events      *eventbus.Bus
	Recorder    *eventbus.Recorder
	AuthToken   *auth.AuthToken
	VLMName     string

	opts                  Options
	ownsLogger            bool
	db                    *gorm.DB
	cacheStore            cache.Store
	gate                  *gate.Gate
	identifier            *vlm.Identifier
	observabilityShutdown platformobservability.ShutdownFunc
}

type stepFn func(context.Context, *App) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

// InitGraph lists the startup steps in execution order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:open-database",
			Title:     "Open sqlite cache database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   openDatabaseStep,
		},
		{
			ID:        "events:init-bus",
			Title:     "Start lifecycle event bus",
			DependsOn: []string{"storage:open-database"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventsStep,
		},
		{
			ID:        "nutrition:init-lookup",
			Title:     "Initialise nutrition lookup and cache",
			DependsOn: []string{"storage:open-database"},
			Kind:      platformerrors.KindConfig,
			Execute:   initNutritionStep,
		},
		{
			ID:        "gate:load-classifier",
			Title:     "Load food classifier",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindConfig,
			Execute:   loadClassifierStep,
		},
		{
			ID:        "vlm:init-provider",
			Title:     "Initialise vision model provider",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindConfig,
			Execute:   initVLMStep,
		},
		{
			ID:        "pipeline:init-coordinator",
			Title:     "Assemble analysis pipeline",
			DependsOn: []string{"events:init-bus", "nutrition:init-lookup", "gate:load-classifier", "vlm:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initPipelineStep,
		},
		{
			ID:        "auth:init-token",
			Title:     "Initialise bearer token auth",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindConfig,
			Execute:   initAuthStep,
		},
	}
}

// Build runs the init graph. On failure everything already started is released.
func Build(ctx context.Context, opts Options) (*App, error) {
	app := &App{opts: opts}
	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, app); err != nil {
		app.Close(context.Background())
		return nil, err
	}
	logBootstrapGraph(steps, app.Logger)
	return app, nil
}

// Run builds the application, serves HTTP until SIGINT/SIGTERM or ctx ends, and
// shuts everything down.
func Run(ctx context.Context, opts Options) error {
	app, err := Build(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Serve(signalCtx)
}

func executeInitSteps(ctx context.Context, steps []initStep, app *App) error {
	if app == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "execute init steps", "nil application")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(platformerrors.KindBootstrap, step.ID, fmt.Sprintf("dependency %s not satisfied", dep))
			}
		}
		if step.Execute == nil {
			return platformerrors.New(platformerrors.KindBootstrap, step.ID, "missing execute function")
		}
		if err := step.Execute(ctx, app); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func logBootstrapGraph(steps []initStep, logger *logging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "startup graph")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("BOOT", "  %s: %s", step.ID, step.Title)
			continue
		}
		logger.InfoTag("BOOT", "  %s: %s (after %s)", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func loadConfigStep(_ context.Context, app *App) error {
	loader := platformconfig.NewLoader().WithDotEnv(!app.opts.DisableDotEnv)
	if app.opts.ConfigPath != "" {
		loader = loader.WithPath(app.opts.ConfigPath)
	}
	res, err := loader.Load()
	if err != nil {
		return err
	}
	app.Config = res.Config
	app.ConfigPath = res.Path
	return nil
}

func initLoggingStep(_ context.Context, app *App) error {
	if app.opts.Logger != nil {
		app.Logger = app.opts.Logger
	} else {
		logger, err := logging.New(logging.Config{
			Level:    app.Config.Log.Level,
			Dir:      app.Config.Log.Dir,
			Filename: app.Config.Log.File,
		})
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
		}
		app.Logger = logger
		app.ownsLogger = true
	}

	source := app.ConfigPath
	if source == "" {
		source = "defaults + environment"
	}
	app.Logger.InfoTag("BOOT", "logging ready [%s] config=%s", app.Config.Log.Level, source)
	return nil
}

func setupObservabilityStep(ctx context.Context, app *App) error {
	shutdown, err := platformobservability.Setup(ctx, platformobservability.Config{
		Enabled: strings.EqualFold(app.Config.Log.Level, "debug"),
	}, app.Logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	app.observabilityShutdown = shutdown
	return nil
}

func openDatabaseStep(_ context.Context, app *App) error {
	cfg := app.Config
	if !strings.EqualFold(cfg.Cache.Driver, cache.DriverSQLite) {
		return nil
	}
	db, err := platformstorage.Open(cfg.Cache.SQLite.DSN)
	if err != nil {
		return err
	}
	app.db = db
	app.Logger.InfoTag("BOOT", "cache database ready at %s", cfg.Cache.SQLite.DSN)
	return nil
}

func initEventsStep(_ context.Context, app *App) error {
	bus := eventbus.New(eventbus.Options{
		Workers:   app.Config.Events.Workers,
		QueueSize: app.Config.Events.QueueSize,
	}, app.Logger)

	recorder := eventbus.NewRecorder(app.Logger)
	if err := recorder.Attach(bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "events:init-bus", "failed to subscribe event recorder", err)
	}

	bus.Start()
	app.Events = bus
	app.Recorder = recorder
	return nil
}

func initNutritionStep(_ context.Context, app *App) error {
	cfg := app.Config

	deps := cache.Dependencies{SQLiteDB: app.db}
	store, err := cache.New(cache.Config{
		Driver: cfg.Cache.Driver,
		TTL:    cfg.Cache.TTL,
		SQLite: &cache.SQLiteConfig{DSN: cfg.Cache.SQLite.DSN},
		Redis: &cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		},
	}, deps)
	if err != nil {
		return err
	}
	app.cacheStore = store

	usda := nutrition.NewUSDAClient(cfg.Nutrition, nil, app.Logger)
	app.Lookup = nutrition.NewCachedLookup(usda, store, app.Logger)
	app.Logger.InfoTag("NUTRITION", "lookup ready, cache driver %q ttl %s", cfg.Cache.Driver, cfg.Cache.TTL)
	return nil
}

func loadClassifierStep(ctx context.Context, app *App) error {
	cfg := app.Config
	scorer, err := gate.NewScorer(cfg.Classifier, app.Logger)
	if err != nil {
		return err
	}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Classifier)
	defer cancel()
	g, err := gate.NewGate(loadCtx, scorer, cfg.Timeouts.Classifier, app.Logger)
	if err != nil {
		return err
	}
	app.gate = g
	return nil
}

func initVLMStep(_ context.Context, app *App) error {
	cfg := app.Config
	vc, ok := cfg.SelectedVLM()
	if !ok {
		return platformerrors.New(platformerrors.KindConfig, "vlm:init-provider", "selected VLM provider not configured: "+cfg.Selected.VLM)
	}
	provider, err := vlm.NewProvider(vc, app.Logger)
	if err != nil {
		return err
	}
	app.identifier = vlm.NewIdentifier(provider, cfg.Timeouts.VLM, app.Logger)
	app.VLMName = fmt.Sprintf("%s (%s)", cfg.Selected.VLM, vc.ModelName)
	app.Logger.InfoTag("VLM", "provider %s ready", app.VLMName)
	return nil
}

func initPipelineStep(_ context.Context, app *App) error {
	images, err := domainimage.NewPipeline(domainimage.Options{Upload: &app.Config.Upload, Logger: app.Logger})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "pipeline:init-coordinator", "failed to create image pipeline", err)
	}
	app.Images = images

	coordinator, err := pipeline.New(pipeline.Options{
		Gate:       app.gate,
		Identifier: app.identifier,
		Aggregator: aggregate.New(app.Lookup, app.Config.Aggregation.MaxItems, app.Config.Timeouts.Nutrition, app.Logger),
		Events:     app.Events,
		Logger:     app.Logger,
	})
	if err != nil {
		return err
	}
	app.Coordinator = coordinator
	return nil
}

func initAuthStep(_ context.Context, app *App) error {
	authCfg := app.Config.Server.Auth
	if !authCfg.Enabled {
		return nil
	}
	app.AuthToken = auth.NewAuthToken(authCfg.Secret).WithTTL(authCfg.TTL)
	return nil
}

// Handler builds the HTTP surface. The MCP server is nil when disabled.
func (a *App) Handler() (http.Handler, *mcptransport.Server, error) {
	authMW := a.authMiddleware()
	router, err := httptransport.Build(httptransport.Options{
		Config:         a.Config,
		Logger:         a.Logger,
		AuthMiddleware: authMW,
	})
	if err != nil {
		return nil, nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}

	svc, err := analyze.NewService(analyze.Options{
		Config:      a.Config,
		Logger:      a.Logger,
		Images:      a.Images,
		Analyzer:    a.Coordinator,
		VLMName:     a.VLMName,
		EventCounts: a.Recorder.Counts,
	})
	if err != nil {
		return nil, nil, err
	}
	svc.Register(router.API, router.Secured)

	if !a.Config.MCP.Enabled {
		return router.Engine, nil, nil
	}
	mcpServer, err := mcptransport.New(mcptransport.Options{
		Images:   a.Images,
		Analyzer: a.Coordinator,
		Logger:   a.Logger,
		Version:  Version,
	})
	if err != nil {
		return nil, nil, err
	}
	group := router.Engine.Group("")
	if authMW != nil {
		group.Use(authMW)
	}
	mcpServer.Mount(group)
	return router.Engine, mcpServer, nil
}

func (a *App) authMiddleware() gin.HandlerFunc {
	if a.AuthToken == nil {
		return nil
	}
	return httptransport.AuthMiddleware(a.AuthToken, a.Logger)
}

// Serve listens until ctx is done, then shuts the server down gracefully.
func (a *App) Serve(ctx context.Context) error {
	handler, mcpServer, err := a.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.Config.Server.IP, strconv.Itoa(a.Config.Server.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.InfoTag("HTTP", "listening on http://%s", srv.Addr)
		a.Logger.InfoTag("HTTP", "docs at http://%s/docs", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "http server failed", err)
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		a.Logger.InfoTag("BOOT", "shutting down: %v", context.Cause(groupCtx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if mcpServer != nil {
			if err := mcpServer.Shutdown(shutdownCtx); err != nil {
				a.Logger.WarnTag("MCP", "sse shutdown: %v", err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return platformerrors.Wrap(platformerrors.KindTransport, "http:shutdown", "http server did not stop cleanly", err)
		}
		a.Logger.InfoTag("HTTP", "server stopped")
		return nil
	})
	return g.Wait()
}

// Close releases everything Build created, in reverse order. It is safe on a
// partially built App.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()

	a.Events.Stop()
	if a.Recorder != nil {
		a.Logger.InfoTag("PIPELINE", "lifecycle events: %v (dropped %d)", a.Recorder.Counts(), a.Events.Dropped())
	}
	if a.cacheStore != nil {
		if err := a.cacheStore.Close(ctx); err != nil {
			a.Logger.WarnTag("CACHE", "cache close: %v", err)
		}
	}
	if err := platformstorage.Close(a.db); err != nil {
		a.Logger.WarnTag("BOOT", "database close: %v", err)
	}
	if a.observabilityShutdown != nil {
		if err := a.observabilityShutdown(ctx); err != nil {
			a.Logger.WarnTag("OBSERVABILITY", "shutdown: %v", err)
		}
	}
	if a.ownsLogger && a.Logger != nil {
		_ = a.Logger.Close()
	}
}
