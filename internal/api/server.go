// Package api provides the HTTP API for the arena.
// GET endpoints are public (read-only observation).
// Game action endpoints are POST, rate limited per IP.
// Admin endpoints require a bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/engine"
	"github.com/talgya/idle-arena/internal/game"
	"github.com/talgya/idle-arena/internal/persistence"
)

// Server serves the game over HTTP.
type Server struct {
	Game     *game.Game
	Port     int
	AdminKey string // Bearer token for admin endpoints. Empty = admin disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	actionLimiter := NewRateLimiter(600, time.Minute)

	mux := http.NewServeMux()

	// Public read endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/boss", s.handleBoss)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/market/book", s.handleBook)
	mux.HandleFunc("/api/v1/market/trades", s.handleTrades)

	// Agent registration and per-agent routes.
	mux.HandleFunc("/api/v1/agents", RateLimitMiddleware(actionLimiter, s.handleCreateAgent))
	mux.HandleFunc("/api/v1/agent/", RateLimitMiddleware(actionLimiter, s.handleAgentRoutes))

	// Game actions.
	mux.HandleFunc("/api/v1/pvp/attack", RateLimitMiddleware(actionLimiter, s.handleAttack))
	mux.HandleFunc("/api/v1/dungeon/run", RateLimitMiddleware(actionLimiter, s.handleDungeonRun))
	mux.HandleFunc("/api/v1/boss/attack", RateLimitMiddleware(actionLimiter, s.handleBossAttack))
	mux.HandleFunc("/api/v1/boss/claim", RateLimitMiddleware(actionLimiter, s.handleBossClaim))
	mux.HandleFunc("/api/v1/market/order", RateLimitMiddleware(actionLimiter, s.handleSubmitOrder))
	mux.HandleFunc("/api/v1/market/cancel", RateLimitMiddleware(actionLimiter, s.handleCancelOrder))
	mux.HandleFunc("/api/v1/events/respond", RateLimitMiddleware(actionLimiter, s.handleEventRespond))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/admin/spawn-boss", s.adminOnly(s.handleSpawnBoss))
	mux.HandleFunc("/api/v1/admin/spawn-event", s.adminOnly(s.handleSpawnEvent))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed
// origins. Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
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

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no ARENASIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	status := map[string]any{
		"name": "Idle Arena",
		"time": now.UTC().Format(time.RFC3339),
	}
	if boss, err := s.Game.CurrentBoss(now); err == nil {
		status["boss"] = boss
	}
	if events, err := s.Game.ActiveEvents(now); err == nil {
		status["events"] = events
	}
	writeJSON(w, status)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	a, err := s.Game.CreateAgent(strings.TrimSpace(body.Name), time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, a)
}

// handleAgentRoutes dispatches /api/v1/agent/:id and its action
// subroutes (click, tick, prestige, targets, orders).
func (s *Server) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/agent/"), "/")
	id, err := uuid.Parse(parts[0])
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}
	now := time.Now()

	switch action {
	case "":
		a, err := s.Game.Agent(id)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, a)
	case "click":
		if !requirePost(w, r) {
			return
		}
		res, err := s.Game.Click(id, now)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, res)
	case "tick":
		if !requirePost(w, r) {
			return
		}
		res, err := s.Game.IdleTick(id, now)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, res)
	case "prestige":
		if !requirePost(w, r) {
			return
		}
		res, err := s.Game.Prestige(id, now)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, res)
	case "targets":
		targets, err := s.Game.FindTargets(id, now, 20)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, map[string]any{"targets": targets})
	case "orders":
		orders, err := s.Game.OpenOrders(id)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, map[string]any{"orders": orders})
	default:
		http.Error(w, "unknown agent route", http.StatusNotFound)
	}
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var body struct {
		AttackerID uuid.UUID `json:"attacker_id"`
		DefenderID uuid.UUID `json:"defender_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := s.Game.Attack(body.AttackerID, body.DefenderID, time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleDungeonRun(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var body struct {
		AgentID uuid.UUID `json:"agent_id"`
		Floor   int       `json:"floor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := s.Game.RunDungeon(body.AgentID, body.Floor, nil, time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleBoss(w http.ResponseWriter, r *http.Request) {
	boss, err := s.Game.CurrentBoss(time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, boss)
}

func (s *Server) handleBossAttack(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var body struct {
		AgentID uuid.UUID `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := s.Game.AttackBoss(body.AgentID, time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleBossClaim(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var body struct {
		AgentID uuid.UUID `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	summary, err := s.Game.ClaimBossRewards(body.AgentID, nil, time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, summary)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.Game.Book()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, book)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.Game.RecentTrades(50)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, map[string]any{"trades": trades})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var body struct {
		AgentID  uuid.UUID `json:"agent_id"`
		Side     string    `json:"side"`
		Price    float64   `json:"price"`
		Quantity float64   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	side := engine.Side(body.Side)
	if side != engine.SideBuy && side != engine.SideSell {
		http.Error(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}
	if body.Price <= 0 || body.Quantity <= 0 {
		http.Error(w, "price and quantity must be positive", http.StatusBadRequest)
		return
	}

	result, err := s.Game.SubmitOrder(body.AgentID, side, body.Price, body.Quantity, time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var body struct {
		AgentID uuid.UUID `json:"agent_id"`
		OrderID uuid.UUID `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	order, err := s.Game.CancelOrder(body.AgentID, body.OrderID, time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, order)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.Game.ActiveEvents(time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, map[string]any{"events": events})
}

func (s *Server) handleEventRespond(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var body struct {
		AgentID uuid.UUID `json:"agent_id"`
		EventID uuid.UUID `json:"event_id"`
		Choice  string    `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := s.Game.RespondToEvent(body.AgentID, body.EventID, body.Choice, time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleSpawnBoss(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	boss, err := s.Game.SpawnBoss(time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, boss)
}

func (s *Server) handleSpawnEvent(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var body struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Type == "" {
		http.Error(w, "type required", http.StatusBadRequest)
		return
	}

	ev, err := s.Game.SpawnEvent(body.Type, time.Now())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, ev)
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// writeGameError maps game sentinels onto HTTP status codes. Unknown
// errors are 500s with the detail kept server-side.
func writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, game.ErrOnCooldown),
		errors.Is(err, game.ErrAttackBlocked),
		errors.Is(err, game.ErrPvPDisabled),
		errors.Is(err, game.ErrFloorLocked),
		errors.Is(err, game.ErrNotEnoughEnergy),
		errors.Is(err, game.ErrPrestigeLocked),
		errors.Is(err, game.ErrEventClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, game.ErrAlreadyResponded):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, game.ErrOrderTooSmall),
		errors.Is(err, game.ErrBadChoice):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, game.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, game.ErrNoActiveBoss):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		slog.Error("internal error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
