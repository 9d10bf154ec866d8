// Package bootstrap wires configuration, platform services and transports
// into a running server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"medid-server-go/internal/domain/analysis"
	domainauth "medid-server-go/internal/domain/auth"
	"medid-server-go/internal/domain/druginfo"
	"medid-server-go/internal/domain/druginfo/cache"
	"medid-server-go/internal/domain/eventbus"
	"medid-server-go/internal/domain/history"
	domainimage "medid-server-go/internal/domain/image"
	"medid-server-go/internal/domain/recovery"
	"medid-server-go/internal/domain/vision"
	"medid-server-go/internal/platform/awsclient"
	platformconfig "medid-server-go/internal/platform/config"
	platformerrors "medid-server-go/internal/platform/errors"
	platformlogging "medid-server-go/internal/platform/logging"
	platformobservability "medid-server-go/internal/platform/observability"
	platformstorage "medid-server-go/internal/platform/storage"
	"medid-server-go/internal/transport/agent"
	httptransport "medid-server-go/internal/transport/http"
	"medid-server-go/internal/transport/http/medication"
	"medid-server-go/internal/transport/http/ops"
	mcptransport "medid-server-go/internal/transport/mcp"
	"medid-server-go/internal/transport/ws"
)

// Options tune a Run.
type Options struct {
	// ConfigPath overrides the YAML config location.
	ConfigPath string
	// LogOutput replaces the console log writer; stdio MCP mode sends logs
	// to stderr so stdout stays a clean protocol stream.
	LogOutput io.Writer
	// Env replaces the process environment when non-nil.
	Env map[string]string
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	opts                  Options
	config                *platformconfig.Config
	logger                *platformlogging.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	registry              *platformobservability.Registry
	db                    *gorm.DB
	drugs                 *druginfo.Service
	pipeline              *domainimage.Pipeline
	vision                *vision.Client
	bus                   *eventbus.AsyncEventBus
	history               *history.Service
	analysis              *analysis.Service
	recovery              *recovery.Service
	tokens                *domainauth.AuthToken
	agent                 *agent.Handler
	ws                    *ws.Server
}

// Run starts the HTTP server and blocks until a shutdown signal arrives.
func Run(ctx context.Context, opts Options) error {
	state, err := initialise(ctx, opts)
	if err != nil {
		return err
	}
	defer state.close()

	config := state.config
	logger := state.logger
	logBootstrapGraph(InitGraph(), logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	logger.InfoTag("BOOT", "%s %s ready on %s:%d", analysis.ServiceName, analysis.ServiceVersion, config.Server.IP, config.Server.Port)
	return waitForShutdown(signalCtx, cancel, logger, group)
}

// ServeStdio exposes the tools over MCP on stdin/stdout until EOF.
func ServeStdio(ctx context.Context, opts Options) error {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	state, err := initialise(ctx, opts)
	if err != nil {
		return err
	}
	defer state.close()

	state.logger.InfoTag("MCP", "serving tools on stdio")
	return newMCPServer(state).ServeStdio()
}

// IssueToken returns a signed bearer token for subject using the configured secret.
func IssueToken(opts Options, subject, scope string) (string, error) {
	cfg, err := newLoader(opts).Load()
	if err != nil {
		return "", err
	}
	tokens, err := domainauth.NewAuthToken(cfg.Server.Auth.Secret)
	if err != nil {
		return "", err
	}
	return tokens.WithTTL(cfg.Server.Auth.TTL).GenerateToken(subject, scope)
}

func initialise(ctx context.Context, opts Options) (*appState, error) {
	state := &appState{opts: opts}
	if err := executeInitSteps(ctx, InitGraph(), state); err != nil {
		state.close()
		return nil, err
	}
	if state.config == nil || state.logger == nil || state.analysis == nil {
		state.close()
		return nil, platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger/analysis not initialised",
		)
	}
	return state, nil
}

// close releases everything the init steps opened, in reverse order.
func (s *appState) close() {
	if s.ws != nil {
		s.ws.Stop()
	}
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.drugs != nil {
		if err := s.drugs.Close(context.Background()); err != nil {
			s.logger.WarnTag("CACHE", "label cache did not close cleanly: %v", err)
		}
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil {
			s.logger.WarnTag("STORAGE", "database did not close cleanly: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.observabilityShutdown(shutdownCtx); err != nil {
			s.logger.WarnTag("BOOT", "observability did not shut down cleanly: %v", err)
		}
		cancel()
	}
	if s.logger != nil {
		s.logger.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "initialisation graph")
	for _, step := range steps {
		deps := "-"
		if len(step.DependsOn) > 0 {
			deps = strings.Join(step.DependsOn, ", ")
		}
		logger.InfoTag("BOOT", "  %s (%s) <- %s", step.ID, step.Title, deps)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
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
			ID:        "storage:init-database",
			Title:     "Open database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "druginfo:init-service",
			Title:     "Initialise drug label service",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindDrugInfo,
			Execute:   initDrugInfoStep,
		},
		{
			ID:        "vision:init-client",
			Title:     "Initialise vision client",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindVision,
			Execute:   initVisionStep,
		},
		{
			ID:        "events:init-bus",
			Title:     "Start event bus",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "history:init-recorder",
			Title:     "Subscribe analysis history",
			DependsOn: []string{"storage:init-database", "events:init-bus"},
			Kind:      platformerrors.KindStorage,
			Execute:   initHistoryStep,
		},
		{
			ID:        "analysis:init-service",
			Title:     "Initialise analysis workflow",
			DependsOn: []string{"observability:setup-hooks", "druginfo:init-service", "vision:init-client", "events:init-bus"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initAnalysisStep,
		},
		{
			ID:        "recovery:init-service",
			Title:     "Initialise recovery plan service",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindRecovery,
			Execute:   initRecoveryStep,
		},
		{
			ID:        "auth:init-tokens",
			Title:     "Initialise bearer token auth",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindConfig,
			Execute:   initAuthStep,
		},
		{
			ID:        "agent:init-handler",
			Title:     "Initialise agent envelope handler",
			DependsOn: []string{"analysis:init-service", "recovery:init-service"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initAgentStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	config, err := newLoader(state.opts).Load()
	if err != nil {
		return err
	}
	state.config = config
	return nil
}

func newLoader(opts Options) *platformconfig.Loader {
	loader := platformconfig.NewLoader()
	if opts.ConfigPath != "" {
		loader = loader.WithPath(opts.ConfigPath)
	}
	if opts.Env != nil {
		loader = loader.WithDotEnv(false).WithEnv(opts.Env)
	}
	return loader
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
		Console:  state.opts.LogOutput,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger
	logger.InfoTag("BOOT", "logging ready [%s] environment=%s", state.config.Log.Level, state.config.Environment)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	cfg := platformobservability.Config{
		Enabled: state.config.Observability.Enabled || state.config.Debug,
	}
	shutdown, err := platformobservability.Setup(ctx, cfg, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	state.registry = platformobservability.Default()
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	if state.config.Storage.Driver == "none" {
		state.logger.InfoTag("STORAGE", "database disabled")
		return nil
	}
	db, err := platformstorage.Open(platformstorage.Config{
		DSN:   state.config.Storage.DSN,
		Debug: state.config.Debug,
	})
	if err != nil {
		return err
	}
	state.db = db
	state.logger.InfoTag("STORAGE", "database ready at %s", state.config.Storage.DSN)
	return nil
}

func initDrugInfoStep(_ context.Context, state *appState) error {
	cfg := state.config.DrugInfo
	redis := cfg.Cache.Redis
	labelCache, err := cache.New(cache.Config{
		Driver: cfg.Cache.Driver,
		TTL:    cfg.Cache.TTL,
		Redis: &cache.RedisConfig{
			Addr:     redis.Addr,
			Username: redis.Username,
			Password: redis.Password,
			DB:       redis.DB,
			Prefix:   redis.Prefix,
		},
	}, cache.Dependencies{SQLiteDB: state.db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindDrugInfo, "druginfo:init-service", "failed to create label cache", err)
	}
	client := druginfo.NewClient(cfg.BaseURL, cfg.Timeout, state.logger)
	state.drugs = druginfo.NewService(client, labelCache, state.logger)
	state.logger.InfoTag("DRUGINFO", "label service ready (cache=%s)", cfg.Cache.Driver)
	return nil
}

func initVisionStep(ctx context.Context, state *appState) error {
	cfg := state.config
	pipeline, err := domainimage.NewPipeline(domainimage.Options{Config: cfg.Image, Logger: state.logger})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindImage, "vision:init-client", "failed to create image pipeline", err)
	}
	provider, err := vision.New(ctx, vision.Options{Vision: cfg.Vision, AWS: cfg.AWS, Logger: state.logger})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindVision, "vision:init-client", "failed to create vision provider", err)
	}
	state.pipeline = pipeline
	state.vision = vision.NewClient(provider, cfg.Vision.Prompt, state.logger)
	state.logger.InfoTag("VISION", "provider %s model %s", provider.Name(), provider.Model())
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.NewAsyncEventBus(0, state.logger)
	bus.Start()
	state.bus = bus
	return eventbus.SetupEventHandlers(bus, eventbus.NewLoggingHandler(state.logger))
}

func initHistoryStep(_ context.Context, state *appState) error {
	if state.db == nil {
		state.logger.InfoTag("HISTORY", "analysis history disabled without storage")
		return nil
	}
	state.history = history.NewService(platformstorage.NewAnalysisRepository(state.db), state.logger)
	return state.history.Subscribe(state.bus)
}

func initAnalysisStep(_ context.Context, state *appState) error {
	svc, err := analysis.NewService(analysis.Options{
		Pipeline: state.pipeline,
		Vision:   state.vision,
		Drugs:    state.drugs,
		Config:   state.config,
		Logger:   state.logger,
		Registry: state.registry,
		Events:   state.bus,
	})
	if err != nil {
		return err
	}
	state.analysis = svc
	return nil
}

func initRecoveryStep(ctx context.Context, state *appState) error {
	cfg := state.config
	var client recovery.ObjectGetter
	if cfg.Recovery.Bucket != "" {
		awsCfg, err := awsclient.Load(ctx, cfg.AWS)
		if err != nil {
			return err
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWS.Endpoint != ""
		})
	} else {
		state.logger.WarnTag("RECOVERY", "S3_BUCKET_NAME is not set; recovery plans will report a configuration error")
	}
	state.recovery = recovery.NewService(client, cfg.Recovery.Bucket, cfg.Recovery.Key, state.logger)
	return nil
}

func initAuthStep(_ context.Context, state *appState) error {
	auth := state.config.Server.Auth
	if !auth.Enabled {
		return nil
	}
	tokens, err := domainauth.NewAuthToken(auth.Secret)
	if err != nil {
		return err
	}
	state.tokens = tokens.WithTTL(auth.TTL)
	return nil
}

func initAgentStep(_ context.Context, state *appState) error {
	state.agent = agent.NewHandler(agent.Options{
		Analyzer: state.analysis,
		Drugs:    state.drugs,
		Recovery: state.recovery,
		Config:   state.config,
		Logger:   state.logger,
	})
	return nil
}

func newMCPServer(state *appState) *mcptransport.Server {
	return mcptransport.NewServer(mcptransport.Options{
		Analyzer: state.analysis,
		Drugs:    state.drugs,
		Recovery: state.recovery,
		Logger:   state.logger,
	})
}

func newWebSocketServer(state *appState) *ws.Server {
	var authorize func(*http.Request) error
	if state.tokens != nil {
		authorize = httptransport.VerifyRequest(state.tokens)
	}
	// base64 inflates the image by 4/3; leave headroom for the JSON frame.
	readLimit := int64(state.config.Image.MaxSize)*4/3 + 64<<10
	return ws.NewServer(ws.Options{
		Config: state.config.WebSocket,
		Dispatcher: ws.ToolDispatcher{
			Analyzer: state.analysis,
			Drugs:    state.drugs,
		},
		ReadLimit: readLimit,
		Authorize: authorize,
		Logger:    state.logger,
	})
}

// buildRouter mounts every route on a fresh engine.
func buildRouter(ctx context.Context, state *appState) (*gin.Engine, error) {
	var authMiddleware gin.HandlerFunc
	if state.tokens != nil {
		authMiddleware = httptransport.BearerAuth(state.tokens, state.logger)
	}
	httpRouter, err := httptransport.Build(httptransport.Options{
		Config:         state.config,
		Logger:         state.logger,
		AuthMiddleware: authMiddleware,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	})

	medicationService, err := medication.NewService(medication.Options{
		Config:   state.config,
		Logger:   state.logger,
		Analyzer: state.analysis,
		Drugs:    state.drugs,
		Recovery: state.recovery,
		Agent:    state.agent,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "medication:new-service", "failed to create medication service", err)
	}
	medicationService.Register(ctx, httpRouter.Secured)

	opsService := ops.NewService(ops.Options{
		Health:   state.analysis,
		History:  state.history,
		Registry: state.registry,
		Cache:    state.drugs,
		Logger:   state.logger,
	})
	opsService.RegisterPublic(httpRouter.API)
	opsService.Register(httpRouter.Secured)

	if state.config.MCP.Enabled {
		path := strings.TrimRight(state.config.MCP.Path, "/")
		router.Any(path+"/*any", gin.WrapH(newMCPServer(state).SSEHandler(path)))
	}

	if state.config.WebSocket.Enabled {
		state.ws = newWebSocketServer(state)
		router.GET(state.config.WebSocket.Path, gin.WrapH(state.ws.Handler()))
	}

	httptransport.MountDocs(router, state.logger)
	return router, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	router, err := buildRouter(groupCtx, state)
	if err != nil {
		return nil, err
	}
	config := state.config
	logger := state.logger

	httpServer := &http.Server{
		Addr:              config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", httpServer.Addr)
		logger.InfoTag("HTTP", "API reference at http://%s/docs", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "graceful shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutting down: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "shutdown finished with error: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("BOOT", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	if _, err := startHTTPServer(state, g, groupCtx); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	if state.history != nil {
		retention := state.config.History
		g.Go(func() error {
			return state.history.RunRetention(groupCtx, retention.Retention, retention.PurgeInterval)
		})
	}
	return nil
}
