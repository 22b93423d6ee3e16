package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/txflow/flows"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{"flows": s.catalog.Names()})
}

// HandleCreateFlow creates the flow named in the path from the json input in the body.
// With ?start=true the first step is submitted right away.
func (s *Server) HandleCreateFlow(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	defer r.Body.Close()
	input := map[string]any{}
	dec := json.NewDecoder(r.Body)
	// ledger ids are UInt64 and do not survive a float64 round trip
	dec.UseNumber()
	if err := dec.Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid flow input: "+err.Error())
		return
	}
	snap, err := s.flowService.Create(r.Context(), name, input)
	if err != nil {
		logger.Error("error creating flow", zap.String("name", name), zap.Error(err))
		respondWithFlowError(w, err, nil)
		return
	}
	if r.URL.Query().Get("start") == "true" {
		snap, err = s.flowService.Start(r.Context(), snap.ID)
		if err != nil {
			respondWithFlowError(w, err, &snap)
			return
		}
	}
	respondWithJSON(w, http.StatusCreated, snap)
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := s.flowService.Get(r.Context(), id)
	if err != nil {
		respondWithFlowError(w, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, snap)
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.flowService.Delete(r.Context(), id); err != nil {
		logger.Error("error deleting flow", zap.String("id", id), zap.Error(err))
		respondWithFlowError(w, err, nil)
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleStartFlow(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.flowService.Start)
}

func (s *Server) HandleContinueFlow(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.flowService.Continue)
}

func (s *Server) HandleRetryFlow(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.flowService.Retry)
}

func (s *Server) HandleResetFlow(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.flowService.Reset)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (model.FlowSnapshot, error)) {
	id := mux.Vars(r)["id"]
	snap, err := fn(r.Context(), id)
	if err != nil {
		logger.Info("flow transition rejected", zap.String("id", id), zap.String("uri", r.RequestURI), zap.Error(err))
		respondWithFlowError(w, err, &snap)
		return
	}
	respondWithJSON(w, http.StatusAccepted, snap)
}

func (s *Server) HandleGachaResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := s.flowService.Get(r.Context(), id)
	if err != nil {
		respondWithFlowError(w, err, nil)
		return
	}
	result, ok := flows.RevealResult(snap)
	if !ok {
		respondWithError(w, http.StatusNotFound, "flow has no revealed item")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
