package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/collector"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/config"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/logger"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/mqtt"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/storage"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/transform"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/validator"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.InitFromConfig(cfg.Logger.Level, cfg.Logger.FilePath,
		cfg.Logger.MaxSize, cfg.Logger.MaxBackups, cfg.Logger.Console); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Close()

	store, err := storage.New(cfg.Database)
	if err != nil {
		logger.Error("failed to initialize storage: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	if cfg.Database.InitSchema {
		if err := store.InitSchema(); err != nil {
			logger.Error("schema initialization failed: %v", err)
			os.Exit(1)
		}
	}

	qualityPolicy, err := collector.ParseQualityPolicy(cfg.Collector.QualityPolicy)
	if err != nil {
		logger.Warn("%v", err)
	}

	devicePolicy, err := collector.ParseDeviceIDPolicy(cfg.Collector.DeviceIDPolicy)
	if err != nil {
		logger.Warn("%v", err)
	}

	normalizer, err := transform.FromConfig(cfg.Transform)
	if err != nil {
		logger.Error("failed to load payload normalizer: %v", err)
		os.Exit(1)
	}

	opts := collector.Options{
		Retry: collector.RetryPolicy{
			MaxAttempts: cfg.Collector.RetryAttempts,
			Delay:       cfg.Collector.RetryDelay,
		},
		Quality:  qualityPolicy,
		DeviceID: devicePolicy,
		Ranges:   validator.FromConfig(cfg.Collector.Ranges),
	}
	if normalizer != nil {
		opts.Normalize = normalizer.Normalize
	}

	if cfg.Archive.Enabled {
		archive, err := storage.NewArchive(cfg.Archive.Path)
		if err != nil {
			logger.Error("failed to open measurement archive: %v", err)
			os.Exit(1)
		}
		defer archive.Close()
		opts.Archive = archive
	}

	col := collector.New(store, opts)

	client, err := mqtt.NewClient(cfg.MQTT)
	if err != nil {
		logger.Error("failed to initialize MQTT client: %v", err)
		os.Exit(1)
	}

	svc := collector.NewService(client, col, cfg.MQTT.Topic, cfg.Collector.Backoff)
	svc.Start()

	// Hot-reload the tunable collector policies on config file change;
	// broker and database settings need a restart
	err = config.WatchConfig(configPath, func(newCfg *config.Config) error {
		if level, err := logger.ParseLogLevel(newCfg.Logger.Level); err == nil {
			logger.SetLevel(level)
		}

		policy, err := collector.ParseQualityPolicy(newCfg.Collector.QualityPolicy)
		if err != nil {
			logger.Warn("%v", err)
		}
		col.SetQualityPolicy(policy)
		col.SetRanges(validator.FromConfig(newCfg.Collector.Ranges))

		logger.Info("collector policies reloaded; broker and database changes take effect after restart")
		return nil
	})
	if err != nil {
		logger.Warn("config watch unavailable: %v", err)
	}

	// Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	svc.Stop()
	logger.Info("service shut down")
}
