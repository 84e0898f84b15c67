package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goforj/godump"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/approach-monitor/internal/adsb"
	"github.com/yegors/approach-monitor/internal/api"
	"github.com/yegors/approach-monitor/internal/archive"
	"github.com/yegors/approach-monitor/internal/config"
	"github.com/yegors/approach-monitor/internal/display"
	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/internal/monitor"
	"github.com/yegors/approach-monitor/internal/notify"
	"github.com/yegors/approach-monitor/internal/simulation"
	"github.com/yegors/approach-monitor/internal/storage/sqlite"
	"github.com/yegors/approach-monitor/internal/weather"
	"github.com/yegors/approach-monitor/internal/websocket"
	"github.com/yegors/approach-monitor/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	var (
		configPath string
		once       bool
		noConsole  bool
		dumpConfig bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	pflag.BoolVar(&once, "once", false, "Run a single analysis cycle and exit")
	pflag.BoolVar(&noConsole, "no-console", false, "Disable the terminal report")
	pflag.BoolVar(&dumpConfig, "dump-config", false, "Print the resolved configuration and exit")
	pflag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(configPath)
	if err != nil {
		if configPath != "" {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		// No file anywhere; run the built-in Sao Paulo setup
		fmt.Fprintf(os.Stderr, "No configuration file found, using defaults\n")
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if dumpConfig {
		godump.Dump(cfg)
		return
	}
	if noConsole {
		cfg.Console.Enabled = false
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting approach monitor",
		logger.String("version", Version),
		logger.String("config_path", configPath),
		logger.String("source", cfg.ADSB.SourceType),
		logger.Int("airports", len(cfg.Airports)))

	if err := run(cfg, once, log); err != nil {
		log.Error("Approach monitor failed", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Approach monitor stopped")
}

func run(cfg *config.Config, once bool, log *logger.Logger) error {
	airports := cfg.AirportProfiles()

	// Telemetry source
	adsbClient := adsb.NewClient(cfg.ADSB, log)
	if cfg.ADSB.SourceType == adsb.SourceSimulated {
		adsbClient.SetGenerator(simulation.NewService(airports, cfg.Simulation, log))
	}

	// Weather source
	weatherService := weather.NewService(weather.NewClient(cfg.Weather, log), log)
	weatherService.SetLocationTimeout(cfg.Weather.LocationTimeout())

	engine := inference.NewEngine(airports, cfg.Inference.Params, inference.NewHistory(cfg.HistoryConfig()), log)

	svc := monitor.NewService(engine, adsbClient, weatherService, cfg.WeatherLocations(), monitor.Options{
		Interval:         cfg.CycleInterval(),
		TelemetryTimeout: time.Duration(cfg.ADSB.RequestTimeoutSeconds) * time.Second,
	}, log)

	// Storage
	if cfg.Storage.Enabled {
		if err := os.MkdirAll(cfg.Storage.SQLiteBasePath, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		dbPath := sqlite.DailyPath(cfg.Storage.SQLiteBasePath, time.Now())
		log.Info("Using daily database", logger.String("path", dbPath))

		storage, err := sqlite.NewCycleStorage(dbPath, log)
		if err != nil {
			return fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		defer storage.Close()
		svc.SetStore(storage)
	}

	// Publishers, in the order they see each report
	if cfg.Console.Enabled {
		console := display.NewConsole(os.Stdout, cfg.Console.ClearScreen)
		svc.AddPublisher("console", monitor.PublisherFunc(console.Render))
	}

	if cfg.Archive.Enabled {
		writer, err := archive.NewWriter(cfg.Archive.Dir, log)
		if err != nil {
			return fmt.Errorf("failed to create archive writer: %w", err)
		}
		svc.AddPublisher("archive", monitor.PublisherFunc(func(r *inference.Report) error {
			_, err := writer.Write(r)
			return err
		}))
	}

	if cfg.Notifications.Enabled {
		notifier := notify.NewNotifier(log)
		svc.AddPublisher("notifications", monitor.PublisherFunc(func(r *inference.Report) error {
			notifier.Process(r)
			return nil
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		if _, err := svc.RunCycle(ctx); monitor.Policy(err) != monitor.ActionShutdown {
			return err
		}
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)

	if cfg.Server.Enabled {
		wsServer := websocket.NewServer(svc.Latest, log)
		svc.AddPublisher("websocket", monitor.PublisherFunc(func(r *inference.Report) error {
			wsServer.BroadcastReport(r)
			return nil
		}))

		handler := api.NewHandler(svc, airports, wsServer.ClientCount, log)
		router := api.NewRouter(handler, wsServer.HandleConnection, log)

		server := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router.Routes(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}

		eg.Go(func() error {
			wsServer.Run(ctx)
			return nil
		})

		eg.Go(func() error {
			log.Info("Starting HTTP server", logger.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server: %w", err)
			}
			return nil
		})

		eg.Go(func() error {
			<-ctx.Done()
			log.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	eg.Go(func() error {
		return svc.Run(ctx)
	})

	return eg.Wait()
}
