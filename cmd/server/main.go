package main

import (
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/config"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/server"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{}))
		logger.Fatal("Invalid configuration", "err", err)
	}

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Log.Debug,
		JSON:  cfg.Log.JSON,
	})
	logger.Init(consoleLogger)

	server.Init(cfg)
}
