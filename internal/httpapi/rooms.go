package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"example.com/resistance/internal/game"
	"example.com/resistance/internal/store"
)

type RoomStates interface {
	Load(ctx context.Context, code string) (game.PublicState, bool, error)
}

type GameResults interface {
	ListByRoom(ctx context.Context, roomCode string, limit int) ([]store.GameResult, error)
	Stats(ctx context.Context) (store.Stats, error)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// RoomsHandler serves read-only room views. Either backend may be nil, in which
// case its routes answer 503.
type RoomsHandler struct {
	States  RoomStates
	Results GameResults
	Log     *slog.Logger
}

func (h *RoomsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms/{code}", h.Room)
	mux.HandleFunc("GET /api/rooms/{code}/games", h.Games)
	mux.HandleFunc("GET /api/stats", h.Stats)
}

func (h *RoomsHandler) Room(w http.ResponseWriter, r *http.Request) {
	if h.States == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "room state mirror is disabled")
		return
	}
	code, ok := roomCode(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid room code")
		return
	}

	st, found, err := h.States.Load(r.Context(), code)
	if err != nil {
		h.logger().Error("load room state", "room", code, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load room")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "room not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *RoomsHandler) Games(w http.ResponseWriter, r *http.Request) {
	if h.Results == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "results ledger is disabled")
		return
	}
	code, ok := roomCode(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid room code")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	games, err := h.Results.ListByRoom(r.Context(), code, limit)
	if err != nil {
		h.logger().Error("list games", "room", code, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list games")
		return
	}
	if games == nil {
		games = []store.GameResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"roomCode": code, "games": games})
}

func (h *RoomsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.Results == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "results ledger is disabled")
		return
	}
	st, err := h.Results.Stats(r.Context())
	if err != nil {
		h.logger().Error("game stats", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *RoomsHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

func roomCode(r *http.Request) (string, bool) {
	code := strings.ToUpper(r.PathValue("code"))
	if len(code) != game.RoomCodeLength {
		return "", false
	}
	for _, c := range code {
		if !strings.ContainsRune(game.RoomCodeChars, c) {
			return "", false
		}
	}
	return code, true
}
