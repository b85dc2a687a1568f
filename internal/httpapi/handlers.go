package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"github.com/DoyleJ11/mafia-backend/internal/hub"
	"github.com/DoyleJ11/mafia-backend/internal/room"
	"github.com/DoyleJ11/mafia-backend/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type startRequest struct {
	Players []string `json:"players"`
}

type startResponse struct {
	GameID string `json:"gameId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StartSession hands a frozen roster to the room.
func StartSession(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad json"})
			return
		}

		gameID, err := start(r.Context(), h, chi.URLParam(r, "roomID"), req.Players)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, startResponse{GameID: gameID})
	}
}

// start retries once when it raced an idle room being evicted.
func start(ctx context.Context, h *hub.Hub, roomID string, roster []string) (string, error) {
	for attempt := 0; ; attempt++ {
		rm, err := h.Room(ctx, roomID)
		if err != nil {
			return "", err
		}
		gameID, err := rm.StartSession(ctx, roster)
		if errors.Is(err, room.ErrRoomClosed) && attempt == 0 {
			continue
		}
		return gameID, err
	}
}

func CurrentPhase(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, err := h.Active(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		view, err := rm.CurrentPhase(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, room.ErrSessionExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no game in progress"})
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
