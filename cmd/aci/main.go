package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teilomillet/aci/config"
	"github.com/teilomillet/aci/errors"
	"github.com/teilomillet/aci/intent"
	"github.com/teilomillet/aci/internal/demo"
	"github.com/teilomillet/aci/server"
	"github.com/teilomillet/aci/server/metrics"
	"github.com/teilomillet/aci/server/processing"
	"github.com/teilomillet/aci/server/provider"
)

var (
	configFile = flag.String("config", "", "Path to configuration file (defaults are used when empty)")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
	withDemo   = flag.Bool("demo", true, "Register the demo project intents")
	weatherURL = flag.String("weather-url", demo.DefaultWeatherURL, "Forecast API used by the demo weather intent, empty to disable")
)

const Version = "v0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("aci %s\n", Version)
		os.Exit(0)
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFile(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid default config: %v", err)
	}

	if *validate {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	level := zap.NewAtomicLevel()
	logger, err := newLogger(cfg.Logging, level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	errors.SetLogger(logger)

	if err := run(cfg, level, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func newLogger(cfg config.LoggingConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level.SetLevel(lvl)

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "text" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

func run(cfg *config.Config, level zap.AtomicLevel, logger *zap.Logger) error {
	m := metrics.NewMetrics()

	backend, err := provider.New(cfg, logger, m.Registry())
	if err != nil {
		return fmt.Errorf("create model backend: %w", err)
	}

	proc := processing.NewProcessor(&cfg.Processing)
	gen := provider.Generation(cfg.LLM)

	opts := append([]intent.Option{
		intent.WithLogger(logger.Named("intent")),
		intent.WithObserver(m),
		intent.WithPostProcessor(proc),
	}, backend.Options()...)

	dispatcher, err := intent.New(intent.Config{
		Model:       gen.Model,
		Temperature: gen.Temperature,
		Seed:        gen.Seed,
		MaxTokens:   gen.MaxTokens,
		ToolChoice:  gen.ToolChoice,
		Client:      backend.Model,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	if *withDemo {
		repo := demo.NewRepository()
		demo.Seed(repo, time.Now())

		var weather *demo.WeatherClient
		if *weatherURL != "" {
			weather = demo.NewWeatherClient(demo.WeatherConfig{BaseURL: *weatherURL}, logger.Named("weather"))
		}
		demo.Register(dispatcher, repo, weather)
	}
	logger.Info("Intents registered", zap.Strings("intents", dispatcher.Intents()))

	var watcher config.Watcher = config.NewStaticWatcher(cfg)
	if *configFile != "" {
		cw, err := config.NewConfigWatcher(*configFile, logger)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		watcher = cw
	}
	defer watcher.Close()

	srv, err := server.NewServer(watcher, server.Components{
		Dispatcher: dispatcher,
		Backend:    backend,
		Metrics:    m,
		Processor:  proc,
		LogLevel:   &level,
	}, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}
