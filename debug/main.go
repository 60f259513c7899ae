package main

import (
	"os"

	"github.com/emrgen/revision/internal/config"
	"github.com/emrgen/revision/internal/server"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()
	cfg.LogLevel = "debug"
	config.SetupLogging(cfg)

	if port := os.Getenv("HTTP_PORT"); port != "" {
		cfg.HTTPPort = port
	}
	if port := os.Getenv("GRPC_PORT"); port != "" {
		cfg.GRPCPort = port
	}

	if err := server.Start(cfg); err != nil {
		logrus.Errorf("error starting server: %v", err)
		os.Exit(1)
	}
}
