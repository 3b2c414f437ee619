package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/OCAP2/locationmarker/internal/config"
	"github.com/OCAP2/locationmarker/internal/dispatcher"
	"github.com/OCAP2/locationmarker/internal/geo"
	"github.com/OCAP2/locationmarker/internal/logging"
	"github.com/OCAP2/locationmarker/internal/marker"
	"github.com/OCAP2/locationmarker/internal/monitor"
	intOtel "github.com/OCAP2/locationmarker/internal/otel"
	"github.com/OCAP2/locationmarker/internal/provider"
	"github.com/OCAP2/locationmarker/internal/render"
	"github.com/OCAP2/locationmarker/internal/session"
	"github.com/OCAP2/locationmarker/internal/storage"
	"github.com/OCAP2/locationmarker/pkg/core"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const ServiceName = "markerd"

// defaultTrack is replayed when provider.track is empty: a walk around
// the Brandenburg Gate.
const defaultTrack = `[[13.3777,52.5163],[13.3790,52.5170],[13.3805,52.5166],[13.3800,52.5155],[13.3782,52.5152],[13.3777,52.5163]]`

var (
	SessionStartTime = time.Now()

	LogFilePath string
	LogFile     *os.File

	// SlogManager owns the handler chain; Logger is rebuilt on every Setup
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider

	Sessions = session.NewContext()

	storageBackend   storage.Backend
	eventDispatcher  *dispatcher.Dispatcher
	viewport         *geo.Viewport
	locationProvider *provider.Calm
	hub              *render.Broadcast
	redisClient      *redis.Client
	engine           *marker.Engine
	monitorService   *monitor.Service
)

// setup loads config and brings up logging and telemetry. Anything that
// fails here is logged and the process carries on with defaults.
func setup(configDir string) {
	SlogManager = logging.NewSlogManager(ServiceName)
	SlogManager.Setup(logging.Options{Level: "info"})
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	LogFilePath = logging.LogFilePath(logsDir, ServiceName, SessionStartTime)

	// keep the previous run's log around
	if _, err := os.Stat(LogFilePath); err == nil {
		_ = os.Rename(LogFilePath, LogFilePath+".old")
	}

	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var logWriter io.Writer
		if LogFile != nil {
			logWriter = LogFile
		}
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logWriter,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath)
		}
	}

	// Re-setup logging with file output, session attributes and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	opts := logging.Options{
		Level:  viper.GetString("logLevel"),
		Format: viper.GetString("logFormat"),
		OTel:   otelLogProvider,
	}
	if LogFile != nil {
		opts.File = LogFile
	}
	SlogManager.SetContext(Sessions.Attrs)
	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)
}

// createSource builds the raw fix feed the provider reads from
func createSource(cfg config.ProviderConfig) (provider.Source, error) {
	switch cfg.Source {
	case "websocket":
		return provider.NewWebsocketSource(cfg.URL, Logger), nil

	case "replay", "":
		raw := cfg.Track
		if raw == "" {
			raw = defaultTrack
		}
		track, err := geo.ParseTrack(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid replay track: %w", err)
		}
		replay := provider.NewTrackReplay(track, cfg.Accuracy, cfg.Interval)
		replay.Loop = cfg.Loop
		Logger.Info("Replaying track", "points", len(replay.Steps), "length", geo.TrackLength(track))
		return replay, nil

	default:
		return nil, fmt.Errorf("unknown provider source: %s", cfg.Source)
	}
}

func initViewport(cfg config.ViewportConfig) *geo.Viewport {
	v := geo.NewViewport(cfg.TileSize)
	v.SetZoom(cfg.Zoom)
	v.SetBearing(cfg.Bearing, 0, nil)
	v.SetTrackingMode(core.TrackingFollow)
	if cfg.Attached {
		v.Attach()
	}
	return v
}

// serve wires the marker and runs until ctx is cancelled
func serve(ctx context.Context) error {
	if err := config.Validate(); err != nil {
		return err
	}

	var err error
	params := config.GetMarkerParams()
	viewport = initViewport(config.GetViewportConfig())

	dispatchCfg := config.GetDispatcherConfig()
	opts := []dispatcher.Option{dispatcher.Buffered(dispatchCfg.BufferSize)}
	if dispatchCfg.Blocking {
		opts = append(opts, dispatcher.Blocking())
	}
	eventDispatcher, err = dispatcher.New(Logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	if err := initStorage(); err != nil {
		return err
	}

	providerCfg := config.GetProviderConfig()
	source, err := createSource(providerCfg)
	if err != nil {
		return err
	}
	grant, ok := core.ParseAuthorizationStatus(providerCfg.Grant)
	if !ok {
		Logger.Warn("Unknown provider grant, denying", "grant", providerCfg.Grant)
		grant = core.AuthorizationDenied
	}
	locationProvider = provider.NewCalm(source,
		provider.WithDistanceFilter(providerCfg.DistanceFilter),
		provider.WithGrant(grant),
		provider.WithLogger(Logger),
	)

	hub = render.NewBroadcast(params, inboundHandler(eventDispatcher, viewport, Logger), Logger)
	renderers := render.Fanout{hub, render.NewLog(Logger, slog.LevelDebug, params)}
	redisCfg := config.GetRedisConfig()
	if redisClient = render.OpenRedis(redisCfg.Addr, redisCfg.Password, redisCfg.DB); redisClient != nil {
		renderers = append(renderers, render.NewPublish(redisClient, redisCfg.Channel, params, Logger))
		Logger.Info("Publishing geometry to Redis", "addr", redisCfg.Addr, "channel", redisCfg.Channel)
	}
	renderer := storage.NewRecorder(renderers, storageBackend, Sessions, params, Logger)

	engine, err = marker.New(marker.Dependencies{
		Params:     params,
		Projection: viewport,
		Camera:     viewport,
		Renderer:   renderer,
		Locations:  locationProvider,
		Logger:     Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create marker: %w", err)
	}

	startMonitor()

	registerMarkerHandlers(eventDispatcher, handlerDeps{
		Engine:   engine,
		Provider: locationProvider,
		Backend:  storageBackend,
		Viewport: viewport,
		Logger:   Logger,
	})

	router := newRouter(routerDeps{
		Hub:        hub,
		Dispatcher: eventDispatcher,
		Viewport:   viewport,
		Geometry:   engine.Geometry,
		Monitor:    monitorService,
		Logger:     Logger,
		Release:    viper.GetString("logLevel") != "debug",
	})
	server := &http.Server{
		Addr:              viper.GetString("listenAddr"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		Logger.Info("Render server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	locationProvider.SetDelegate(dispatchDelegate{d: eventDispatcher, logger: Logger})
	if grant == core.AuthorizationAlways {
		locationProvider.RequestAlwaysAuthorization()
	} else {
		locationProvider.RequestWhenInUseAuthorization()
	}

	select {
	case <-ctx.Done():
		Logger.Info("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			Logger.Error("Render server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		Logger.Warn("Render server shutdown", "error", err)
	}
	shutdown(shutdownCtx)
	return nil
}

// queueReporter is implemented by backends that buffer writes
type queueReporter interface {
	QueueLengths() map[string]int
}

func startMonitor() {
	cfg := config.GetMonitorConfig()
	if !cfg.Enabled {
		return
	}
	deps := monitor.Dependencies{
		Sessions: Sessions,
		Geometry: engine.Geometry,
		Clients:  hub.Clients,
		Interval: cfg.Interval,
		Logger:   Logger,
	}
	if cfg.StatusFile != "" {
		deps.StatusPath = filepath.Join(viper.GetString("logsDir"), cfg.StatusFile)
	}
	if q, ok := storageBackend.(queueReporter); ok {
		deps.Queues = q.QueueLengths
	}
	monitorService = monitor.NewService(deps)
	if err := monitorService.Start(); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
	}
}

// closeLane drains the dispatcher lane before closing the marker, so no
// queued handler runs against a closed engine. Either may be nil.
func closeLane(lane *dispatcher.Dispatcher, m interface{ Close() }) {
	if lane != nil {
		lane.Close()
	}
	if m != nil {
		m.Close()
	}
}

// shutdown tears the marker down in dependency order: queued events drain,
// the engine stops the provider, then storage and telemetry flush.
func shutdown(ctx context.Context) {
	if monitorService != nil {
		monitorService.Stop()
	}
	var m interface{ Close() }
	if engine != nil {
		m = engine
	}
	closeLane(eventDispatcher, m)
	if hub != nil {
		_ = hub.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			Logger.Warn("Failed to close Redis client", "error", err)
		}
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush OTel logs", "error", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	flag.Parse()

	setup(*configDir)
	Logger.Info("Starting up...")

	args := flag.Args()
	command := "serve"
	if len(args) > 0 {
		command = strings.ToLower(args[0])
	}

	var err error
	switch command {
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = serve(ctx)
	case "sessions":
		err = listSessions(os.Stdout)
	case "export":
		if len(args) < 2 {
			fmt.Println("No session IDs provided.")
			return
		}
		err = exportSessions(args[1:], viper.GetString("logsDir"))
	default:
		err = fmt.Errorf("unknown command: %s", command)
	}

	if err != nil {
		Logger.Error("markerd failed", "command", command, "error", err)
		os.Exit(1)
	}
}
