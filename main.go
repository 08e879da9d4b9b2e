package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/MangalKhundongbam/exe-semge/cmd"
	"github.com/MangalKhundongbam/exe-semge/internal/config"
	"github.com/MangalKhundongbam/exe-semge/internal/logger"
)

func main() {
	// .env is optional; the environment alone is enough
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		// Commands retry config.Load and report the error themselves
		cfg = nil
	} else if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	mainLog := logger.WithComponent("main")
	mainLog.Debug().Str("version", cmd.Version()).Msg("Starting semge")

	cmd.Execute(cfg)
}
