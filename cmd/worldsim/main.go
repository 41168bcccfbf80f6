// Command worldsim runs the Crossroads religion and resource simulation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/talgya/crossroads/internal/api"
	"github.com/talgya/crossroads/internal/config"
	"github.com/talgya/crossroads/internal/ecs"
	"github.com/talgya/crossroads/internal/engine"
	"github.com/talgya/crossroads/internal/persistence"
	"github.com/talgya/crossroads/internal/religion"
	"github.com/talgya/crossroads/internal/resource"
	"github.com/talgya/crossroads/internal/world"
)

func main() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if os.Getenv("WORLDSIM_DEBUG") != "" {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("Crossroads — religion and resource simulation")

	// ── Config ────────────────────────────────────────────────────────
	cfgPath := os.Getenv("WORLDSIM_CONFIG")
	if cfgPath == "" {
		cfgPath = "worldsim.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.Path)

	// ── Load or Generate World State ─────────────────────────────────
	w := ecs.NewWorld()
	eng := engine.NewEngine(w)
	eng.Interval = cfg.Engine.TickInterval
	eng.SetSpeed(cfg.Engine.Speed)

	runID := uuid.NewString()
	fresh := !db.HasWorldState()

	if !fresh {
		slog.Info("found saved world state, loading...")
		meta, err := db.LoadWorldState(w)
		if err != nil {
			slog.Error("failed to load world state", "error", err)
			os.Exit(1)
		}
		eng.SetTick(meta.Tick)
		eng.Clock = engine.NewClock(meta.Elapsed)
		slog.Info("world state restored",
			"tick", meta.Tick,
			"sim_time", engine.SimTime(meta.Elapsed),
			"previous_run", meta.RunID,
			"religions", ecs.Count[religion.Attributes](w),
			"deposits", ecs.Count[resource.Attributes](w),
		)
	} else {
		slog.Info("no saved state found, generating new world...")
		counts := world.Populate(w, world.GenConfig{
			Seed:      cfg.World.Seed,
			Religions: cfg.World.Religions,
			Deposits:  cfg.World.Deposits,
		})
		for _, k := range resource.Kinds {
			slog.Info("deposits", "kind", k, "count", counts.Deposits[k])
		}
		slog.Info("world generated", "religions", counts.Religions, "seed", cfg.World.Seed)
	}

	// ── Scheduler ─────────────────────────────────────────────────────
	config.Publish(w, cfg.Simulation)
	if cfg.Simulation == nil {
		slog.Warn("config has no simulation section — nothing will run until one is added")
	}

	eng.Scheduler.Register(religion.NewSystem(w, religion.Options{
		Interval: cfg.Religion.Interval,
		Workers:  cfg.Religion.Workers,
	}))
	eng.Scheduler.Register(resource.NewSystem(w, resource.Options{
		Interval:         cfg.Resource.Interval,
		RegenerationRate: cfg.Resource.RegenerationRate,
		Workers:          cfg.Resource.Workers,
	}))

	save := func(f engine.Frame) error {
		return db.SaveWorldState(f.World, persistence.Meta{Tick: f.Tick, Elapsed: f.Elapsed, RunID: runID})
	}

	// Save on fresh generation only (loaded worlds are already saved).
	if fresh {
		eng.Do(func(f engine.Frame) {
			if err := save(f); err != nil {
				slog.Error("initial save failed", "error", err)
			}
		})
	}

	// Auto-save on sim time, not wall time, so speed changes scale it.
	var autosave engine.Countdown
	eng.OnTick = func(f engine.Frame) {
		if cfg.Storage.AutosaveInterval <= 0 || !autosave.Tick(eng.Interval, cfg.Storage.AutosaveInterval) {
			return
		}
		start := time.Now()
		if err := save(f); err != nil {
			slog.Error("auto-save failed", "error", err)
			return
		}
		slog.Info("auto-saved", "tick", f.Tick, "sim_time", engine.SimTime(f.Elapsed), "took", time.Since(start))
	}

	// ── Config Watcher ────────────────────────────────────────────────
	watcher, err := config.Watch(cfgPath, w)
	if err != nil {
		slog.Warn("config hot reload disabled", "error", err)
	} else {
		defer watcher.Close()
		go func() {
			// Toggles are republished by the watcher itself; speed is
			// the only engine setting that applies live.
			for c := range watcher.Reloaded {
				if c.Engine.Speed != eng.Speed() {
					eng.SetSpeed(c.Engine.Speed)
					slog.Info("speed changed via config", "speed", c.Engine.Speed)
				}
			}
		}()
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("WORLDSIM_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Eng:      eng,
		DB:       db,
		RunID:    runID,
		Port:     cfg.API.Port,
		AdminKey: cfg.API.AdminKey,
	}
	srv := apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nCrossroads is alive: %d religions, %d deposits.\n",
		ecs.Count[religion.Attributes](w), ecs.Count[resource.Attributes](w))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	if t := eng.Tick(); t > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", t, engine.SimTime(eng.Clock.ElapsedTime()))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	eng.Do(func(f engine.Frame) {
		if err := save(f); err != nil {
			slog.Error("final save failed", "error", err)
		}
	})

	fmt.Println("Simulation stopped. World state saved.")
}
