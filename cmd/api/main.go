package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"erdemo.org/responder-simulator/internal/appconf"
	"erdemo.org/responder-simulator/internal/logging"
)

func main() {
	cfg := appconf.Default()
	var apiKeysFlag, envFlag, configFile string

	flag.IntVar(&cfg.Port, "port", cfg.Port, "API server port")
	flag.StringVar(&envFlag, "env", cfg.Env.String(), "Environment (development|test|production)")
	flag.StringVar(&apiKeysFlag, "api-keys", "", "Comma Separated API Keys guarding /api/clear")
	flag.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Requests per second per client, negative disables limiting")
	flag.StringVar(&cfg.Store.Kind, "store", cfg.Store.Kind, "Mission store (memory|redis|sqlite)")
	flag.DurationVar(&cfg.Simulator.Delay, "delay", cfg.Simulator.Delay, "Delay between simulation ticks")
	flag.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (debug|info|warn|error)")
	flag.StringVar(&configFile, "config", "", "Optional config file (yaml, json or toml)")
	flag.Parse()

	cfg.Env = appconf.EnvFlagToEnvironment(envFlag)
	if apiKeysFlag != "" {
		cfg.ApiKeys = splitAPIKeys(apiKeysFlag)
	}

	cfg, err := appconf.Load(cfg, configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger, logFile := newLogger(cfg, os.Stdout)
	if logFile != nil {
		defer logging.SafeCloseWithLogging(logFile, logger, "log_file")
	}

	svc, err := buildService(cfg, logger)
	if err != nil {
		logging.LogError(logger, "failed to initialize simulator", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, svc); err != nil {
		logging.LogError(logger, "server exited with error", err)
		svc.Close()
		os.Exit(1)
	}
}
