package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pgwire/pgwire/internal/api"
	"github.com/pgwire/pgwire/internal/checker"
	"github.com/pgwire/pgwire/internal/config"
	"github.com/pgwire/pgwire/internal/metrics"
)

func main() {
	configPath := flag.String("config", "configs/pgwire-check.yaml", "path to configuration file")
	once := flag.Bool("once", false, "run a single check round against every target and exit")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("pgwire-check starting...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Configuration loaded from %s (%d targets)", *configPath, len(cfg.Targets))

	m := metrics.New()
	chk := checker.NewChecker(cfg, m)

	if *once {
		chk.CheckAllOnce()
		failed := false
		for name, status := range chk.GetAllStatuses() {
			log.Printf("%s: %s (consecutive failures: %d)", name, status.Status, status.ConsecutiveFailures)
			if status.Status == checker.StatusUnhealthy {
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
		return
	}

	chk.Start()

	apiServer := api.NewServer(chk, cfg)
	if err := apiServer.Start(); err != nil {
		log.Fatalf("Failed to start API server: %v", err)
	}

	configWatcher, err := config.NewWatcher(*configPath, func(newCfg *config.Config) {
		log.Printf("Reloading configuration...")
		chk.Reload(newCfg)
	})
	if err != nil {
		log.Printf("Warning: config hot-reload not available: %v", err)
	}

	log.Printf("pgwire-check ready - API:%s:%d", cfg.Listen.APIBind, cfg.Listen.APIPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %s, shutting down...", sig)

	if configWatcher != nil {
		configWatcher.Stop()
	}
	apiServer.Stop()
	chk.Stop()

	log.Printf("pgwire-check stopped")
}
