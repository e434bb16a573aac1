package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/agent-observatory/backend/internal/config"
	"github.com/agent-observatory/backend/internal/engine"
	"github.com/agent-observatory/backend/internal/frontend"
	"github.com/agent-observatory/backend/internal/health"
	"github.com/agent-observatory/backend/internal/session"
	"github.com/agent-observatory/backend/internal/ws"
)

func main() {
	devMode := flag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	store := session.NewStore()
	broadcaster := ws.NewBroadcaster()
	eng := engine.New(cfg, store, broadcaster)
	broadcaster.SetSnapshotFunc(eng.Snapshot)

	frontendDir := ""
	if *devMode {
		exe, _ := os.Executable()
		frontendDir = filepath.Join(filepath.Dir(exe), "..", "..", "frontend")
		// If running with go run, the exe path is in a temp dir, use CWD instead
		if _, err := os.Stat(frontendDir); os.IsNotExist(err) {
			cwd, _ := os.Getwd()
			frontendDir = filepath.Join(cwd, "..", "frontend")
		}
	}

	// Embedded frontend handler: when built with -tags embed, serves from
	// the binary. Otherwise falls back to serving from the filesystem.
	var embeddedHandler http.Handler
	if !*devMode {
		embeddedHandler = frontend.Handler()
		if embeddedHandler == nil {
			cwd, _ := os.Getwd()
			fallback := filepath.Join(cwd, "..", "frontend")
			if _, err := os.Stat(fallback); err == nil {
				log.Printf("No embedded frontend, falling back to: %s", fallback)
				embeddedHandler = http.FileServer(http.Dir(fallback))
			}
		}
	}

	server := ws.NewServer(eng, broadcaster, health.NewProbe(), frontendDir, *devMode, embeddedHandler, cfg.Server.AllowedOrigins)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go eng.Run(ctx)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	// SIGHUP re-reads the config file and applies it live; SIGINT/SIGTERM
	// shut down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				reloaded, err := config.Load(*configPath)
				if err != nil {
					log.Printf("Config reload failed: %v", err)
					continue
				}
				if *port > 0 {
					reloaded.Server.Port = *port
				}
				eng.SetConfig(reloaded)
				log.Println("Configuration reloaded")
				continue
			}
			log.Println("Shutting down...")
			cancel()
			os.Exit(0)
		}
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
