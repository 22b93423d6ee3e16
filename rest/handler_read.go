package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/txflow/logger"
	"go.uber.org/zap"
)

func (s *Server) HandleEventDetail(w http.ResponseWriter, r *http.Request) {
	if !s.hasBackend(w) {
		return
	}
	id := mux.Vars(r)["id"]
	ev, err := s.backend.EventDetail(r.Context(), id)
	s.respondRead(w, "event", id, ev, ev == nil, err)
}

func (s *Server) HandleUserProfile(w http.ResponseWriter, r *http.Request) {
	if !s.hasBackend(w) {
		return
	}
	address := mux.Vars(r)["address"]
	profile, err := s.backend.UserProfile(r.Context(), address)
	s.respondRead(w, "user", address, profile, profile == nil, err)
}

func (s *Server) HandleEventPasses(w http.ResponseWriter, r *http.Request) {
	if !s.hasBackend(w) {
		return
	}
	address := mux.Vars(r)["address"]
	page, err := s.backend.EventPasses(r.Context(), address)
	s.respondRead(w, "event passes", address, page, page == nil, err)
}

func (s *Server) HandleGachaReceipt(w http.ResponseWriter, r *http.Request) {
	if !s.hasBackend(w) {
		return
	}
	address := mux.Vars(r)["address"]
	has, err := s.backend.HasGachaReceipt(r.Context(), address)
	s.respondRead(w, "gacha receipt", address, map[string]bool{"hasReceipt": has}, false, err)
}

func (s *Server) hasBackend(w http.ResponseWriter) bool {
	if s.backend == nil {
		respondWithError(w, http.StatusServiceUnavailable, "backend is not configured")
		return false
	}
	return true
}

func (s *Server) respondRead(w http.ResponseWriter, what, key string, value any, missing bool, err error) {
	if err != nil {
		logger.Error("error reading from backend", zap.String("resource", what), zap.String("key", key), zap.Error(err))
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	if missing {
		respondWithError(w, http.StatusNotFound, what+" not found")
		return
	}
	respondWithJSON(w, http.StatusOK, value)
}
