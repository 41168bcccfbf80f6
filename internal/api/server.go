// Package api provides the HTTP API for observing and steering the world.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/crossroads/internal/config"
	"github.com/talgya/crossroads/internal/ecs"
	"github.com/talgya/crossroads/internal/engine"
	"github.com/talgya/crossroads/internal/persistence"
	"github.com/talgya/crossroads/internal/religion"
	"github.com/talgya/crossroads/internal/resource"
)

// Server serves the world state over HTTP.
type Server struct {
	Eng      *engine.Engine
	DB       *persistence.DB
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	started time.Time
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}

	// Admin writes are cheap but republish world-wide toggles; keep them rare.
	adminLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/religions", s.handleReligions)
	mux.HandleFunc("/api/v1/resources", s.handleResources)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/flags", RateLimitMiddleware(adminLimiter, s.adminOnly(s.handleFlags)))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no WORLDSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	speed := s.Eng.Speed()
	var status map[string]any
	s.Eng.View(func(f engine.Frame) {
		religions := ecs.Count[religion.Attributes](f.World)
		deposits := ecs.Count[resource.Attributes](f.World)
		flags, present := ecs.TryGet[config.Simulation](f.World)

		systems := make([]map[string]any, 0, len(s.Eng.Scheduler.Systems()))
		for _, sub := range s.Eng.Scheduler.Systems() {
			entry := map[string]any{
				"name":    sub.Name(),
				"enabled": present && sub.Enabled(flags),
			}
			if st, ok := sub.(interface {
				Runs() int64
				Applied() int64
			}); ok {
				entry["runs"] = st.Runs()
				entry["applied"] = st.Applied()
			}
			systems = append(systems, entry)
		}

		status = map[string]any{
			"name":           "Crossroads",
			"run_id":         s.RunID,
			"tick":           f.Tick,
			"sim_time":       engine.SimTime(f.Elapsed),
			"speed":          speed,
			"armed":          f.Armed,
			"config_present": present,
			"flags":          flags,
			"entities":       f.World.Len(),
			"religions":      religions,
			"deposits":       deposits,
			"summary": fmt.Sprintf("%s religions, %s deposits",
				humanize.Comma(int64(religions)), humanize.Comma(int64(deposits))),
			"systems": systems,
			"started": humanize.Time(s.started),
		}
	})
	writeJSON(w, status)
}

func (s *Server) handleReligions(w http.ResponseWriter, r *http.Request) {
	var summary religion.Summary
	s.Eng.View(func(f engine.Frame) {
		summary = religion.Summarize(f.World)
	})
	writeJSON(w, summary)
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	type kindEntry struct {
		Kind        string  `json:"kind"`
		Total       float64 `json:"total"`
		Display     string  `json:"display"`
		Regenerates bool    `json:"regenerates"`
	}

	var totals map[resource.Kind]float64
	s.Eng.View(func(f engine.Frame) {
		totals = resource.Totals(f.World)
	})

	entries := make([]kindEntry, 0, len(resource.Kinds))
	for _, k := range resource.Kinds {
		entries = append(entries, kindEntry{
			Kind:        k.String(),
			Total:       totals[k],
			Display:     humanize.CommafWithDigits(totals[k], 2),
			Regenerates: k.Regenerates(),
		})
	}
	writeJSON(w, entries)
}

// handleFlags reads or replaces the world's toggle singleton. Omitted
// fields keep their current value; "remove" withdraws the singleton so the
// scheduler stops running anything.
func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	world := s.Eng.World

	if r.Method == http.MethodPost {
		var req struct {
			EnableReligionSystem *bool `json:"enable_religion_system"`
			EnableResourceSystem *bool `json:"enable_resource_system"`
			Remove               bool  `json:"remove"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		if req.Remove {
			config.Publish(world, nil)
			slog.Info("simulation toggles removed via API")
		} else {
			cur, _ := ecs.TryGet[config.Simulation](world)
			if req.EnableReligionSystem != nil {
				cur.EnableReligionSystem = *req.EnableReligionSystem
			}
			if req.EnableResourceSystem != nil {
				cur.EnableResourceSystem = *req.EnableResourceSystem
			}
			config.Publish(world, &cur)
			slog.Info("simulation toggles changed via API",
				"religion", cur.EnableReligionSystem,
				"resource", cur.EnableResourceSystem,
			)
		}
	}

	flags, present := ecs.TryGet[config.Simulation](world)
	writeJSON(w, map[string]any{
		"present":    present,
		"simulation": flags,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var (
		tick uint64
		err  error
	)
	s.Eng.Do(func(f engine.Frame) {
		tick = f.Tick
		err = s.DB.SaveWorldState(f.World, persistence.Meta{Tick: f.Tick, Elapsed: f.Elapsed, RunID: s.RunID})
	})
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    tick,
		"message": "snapshot saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
