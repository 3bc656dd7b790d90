package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/courier-http/courier/internal/auth"
	"github.com/courier-http/courier/internal/config"
	"github.com/courier-http/courier/internal/handler"
	"github.com/courier-http/courier/internal/logging"
	"github.com/courier-http/courier/internal/server"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/courier.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and manifest, then exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Courier %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.NewLoader().Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewWithOptions(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	srv, err := server.New(cfg)
	if err != nil {
		logging.Error("Failed to build server", zap.Error(err))
		os.Exit(1)
	}

	// Applications embed the server package and register their own
	// handlers; the standalone binary ships a health target so the
	// default manifest resolves.
	srv.RegisterLogic("Healthcheck", func(_ *auth.Result, _ handler.Params, _ string) (interface{}, error) {
		return map[string]string{"status": "ok"}, nil
	})

	if cfg.Manifest != "" {
		if err := srv.LoadManifest(cfg.Manifest); err != nil {
			logging.Error("Failed to load route manifest",
				zap.String("manifest", cfg.Manifest),
				zap.Error(err),
			)
			os.Exit(1)
		}
	}

	if *validateOnly {
		fmt.Println("Configuration and manifest are valid")
		os.Exit(0)
	}

	logging.Info("Starting Courier",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("manifest", cfg.Manifest),
		zap.String("address", cfg.Server.Address),
	)

	watch := []string{*configPath}
	if cfg.Manifest != "" {
		watch = append(watch, cfg.Manifest)
	}
	if err := srv.Run(watch...); err != nil {
		logging.Error("Server error", zap.Error(err))
		os.Exit(1)
	}
}
