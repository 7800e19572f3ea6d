package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cexintel/config"
	"cexintel/internal/dashboard"
	"cexintel/internal/store"
	"cexintel/logger"
)

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	address := flag.String("address", "", "Listen address override")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	dashCfg := cfg.Dashboard
	dashCfg.Enabled = true
	if *address != "" {
		dashCfg.Address = *address
	}

	srv := dashboard.NewServer(dashCfg, store.New(cfg.Store.Root))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.WithFields(logger.Fields{
		"service": cfg.Cexintel.Name,
		"address": srv.Address(),
	}).Info("starting dashboard")

	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("dashboard server failed")
		os.Exit(1)
	}
	log.Info("dashboard stopped")
}
