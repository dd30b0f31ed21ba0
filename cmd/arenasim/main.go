// Command arenasim runs the Idle Arena game server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/idle-arena/internal/api"
	"github.com/talgya/idle-arena/internal/balance"
	"github.com/talgya/idle-arena/internal/entropy"
	"github.com/talgya/idle-arena/internal/game"
	"github.com/talgya/idle-arena/internal/persistence"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("idle arena server starting")

	dbPath := envOr("ARENASIM_DB", "data/arena.db")
	apiPort := 8080
	if p := os.Getenv("ARENASIM_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			apiPort = n
		}
	}

	// ── Balance ───────────────────────────────────────────────────────
	cfg := balance.Default()
	if path := os.Getenv("ARENASIM_BALANCE"); path != "" {
		var err error
		cfg, err = balance.Load(path)
		if err != nil {
			slog.Error("failed to load balance config", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("balance config loaded", "path", path)
	}

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Entropy ───────────────────────────────────────────────────────
	var src entropy.Source
	switch {
	case os.Getenv("ARENASIM_SEED") != "":
		seed, err := strconv.ParseUint(os.Getenv("ARENASIM_SEED"), 10, 64)
		if err != nil {
			slog.Error("invalid ARENASIM_SEED", "error", err)
			os.Exit(1)
		}
		src = entropy.NewSeeded(seed)
		slog.Info("entropy: seeded (deterministic run)", "seed", seed)
	case os.Getenv("RANDOM_ORG_API_KEY") != "":
		src = entropy.NewClient(os.Getenv("RANDOM_ORG_API_KEY"))
		slog.Info("entropy: random.org with crypto fallback")
	default:
		src = entropy.Crypto{}
		slog.Info("entropy: crypto/rand")
	}

	g := game.New(db, cfg, src, logger)

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("ARENASIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("ARENASIM_ADMIN_KEY not set; admin endpoints disabled")
	}
	server := &api.Server{Game: g, Port: apiPort, AdminKey: adminKey}
	server.Start()

	// ── World loop ────────────────────────────────────────────────────
	// Boss spawns and event rolls happen on a coarse ticker; player
	// actions drive everything else.
	stop := make(chan struct{})
	go worldLoop(g, stop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Idle Arena is live: http://localhost:%d/api/v1/status\n", apiPort)
	fmt.Println("Ctrl+C to stop.")

	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	close(stop)
}

// worldLoop drives the time-based systems once a minute.
func worldLoop(g *game.Game, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if boss, err := g.SpawnBossIfDue(now); err != nil {
				slog.Error("boss spawn check failed", "error", err)
			} else if boss != nil {
				slog.Info("boss spawned by world loop", "boss", boss.ID, "name", boss.Name)
			}
			if ev, err := g.CheckEventSpawn(now); err != nil {
				slog.Error("event spawn check failed", "error", err)
			} else if ev != nil {
				slog.Info("event spawned by world loop", "event", ev.ID, "type", ev.Type)
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
