package game

import (
	"log/slog"
	"net/http"
)

type Server struct {
	svc *Service
	hub *Hub
	log *slog.Logger
}

func NewServer(svc *Service, hub *Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, hub: hub, log: log}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
}
