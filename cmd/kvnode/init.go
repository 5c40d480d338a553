package main

import (
	"log/slog"
	"os"

	"kvring/pkg/config"
)

// initConfig загружает конфиг ноды; секции gateway (http, cluster) не проверяются.
func initConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.ValidateNode()
}

// initLogger настраивает глобальный slog.Logger (JSON или текстовый).
func initLogger(cfg *config.Config) error {
	logger, err := config.NewLogger(cfg.Logger, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)
	return nil
}
