package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/mafia-backend/internal/hub"
	"github.com/DoyleJ11/mafia-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func SetupRoutes(h *hub.Hub, m *ws.Manager, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	r := chi.NewRouter()

	// Public routes
	r.Post("/rooms/{roomID}/sessions", StartSession(h, logger))
	r.Get("/rooms/{roomID}/phase", CurrentPhase(h, logger))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, m, logger))
	return r
}
