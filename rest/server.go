package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/txflow/flows"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/restapi"
	"github.com/mohitkumar/txflow/service"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port        int
	flowService *service.FlowService
	catalog     *flows.Catalog
	backend     *restapi.Client
}

func NewServer(httpPort int, flowService *service.FlowService, catalog *flows.Catalog, backend *restapi.Client) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		flowService: flowService,
		catalog:     catalog,
		backend:     backend,
		Port:        httpPort,
	}
	s.Handler = s.Router()
	return s, nil
}

func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/catalog", s.HandleCatalog).Methods(http.MethodGet)

	router.HandleFunc("/flows/{name}", s.HandleCreateFlow).Methods(http.MethodPost)
	router.HandleFunc("/flows/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flows/{id}", s.HandleDeleteFlow).Methods(http.MethodDelete)
	router.HandleFunc("/flows/{id}/start", s.HandleStartFlow).Methods(http.MethodPost)
	router.HandleFunc("/flows/{id}/continue", s.HandleContinueFlow).Methods(http.MethodPost)
	router.HandleFunc("/flows/{id}/retry", s.HandleRetryFlow).Methods(http.MethodPost)
	router.HandleFunc("/flows/{id}/reset", s.HandleResetFlow).Methods(http.MethodPost)
	router.HandleFunc("/flows/{id}/result", s.HandleGachaResult).Methods(http.MethodGet)

	router.HandleFunc("/events/{id}", s.HandleEventDetail).Methods(http.MethodGet)
	router.HandleFunc("/users/{address}", s.HandleUserProfile).Methods(http.MethodGet)
	router.HandleFunc("/users/{address}/event-passes", s.HandleEventPasses).Methods(http.MethodGet)
	router.HandleFunc("/users/{address}/gacha-receipt", s.HandleGachaReceipt).Methods(http.MethodGet)

	router.HandleFunc("/classify", s.HandleClassify).Methods(http.MethodPost)
	router.HandleFunc("/metrics", s.HandleMetrics).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	return router
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("http request", zap.String("method", r.Method), zap.String("uri", r.RequestURI))
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNoContent)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithFlowError maps service errors to status codes.
func respondWithFlowError(w http.ResponseWriter, err error, snap *model.FlowSnapshot) {
	var stateErr *model.FlowStateError
	switch {
	case errors.Is(err, service.ErrFlowNotFound), errors.Is(err, flows.ErrUnknownFlow):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &stateErr):
		body := map[string]any{"error": err.Error()}
		if snap != nil {
			body["flow"] = snap
		}
		respondWithJSON(w, http.StatusConflict, body)
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
