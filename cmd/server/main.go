package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/server"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML config file (default $"+config.FileEnv+")")
	port := pflag.StringP("port", "p", "", "Server port")
	host := pflag.String("host", "", "Listen host")
	shell := pflag.String("shell", "", "Default shell for spawned sessions")
	dev := pflag.Bool("dev", false, "Development mode (console logs, debug level)")
	pflag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv(config.FileEnv)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override file and environment.
	flags := pflag.CommandLine
	if flags.Changed("port") {
		cfg.Server.Port = *port
	}
	if flags.Changed("host") {
		cfg.Server.Host = *host
	}
	if flags.Changed("shell") {
		cfg.Terminal.DefaultShell = *shell
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
