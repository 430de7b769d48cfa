package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sessionq/internal/api"
	"sessionq/internal/config"
	"sessionq/internal/logging"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	return &apiServer{
		bind:     bind,
		logger:   logger,
		daemon:   d,
		queueSvc: d.service,
	}, nil
}

// newHTTPServer builds a fresh server for each start; a shut down
// http.Server cannot serve again.
func (s *apiServer) newHTTPServer() *http.Server {
	return &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/items", s.handleList)
	mux.HandleFunc("POST /api/items", s.handleSubmit)
	mux.HandleFunc("GET /api/items/{id}", s.handleGet)
	mux.HandleFunc("POST /api/claim", s.handleClaim)
	mux.HandleFunc("POST /api/items/{id}/finalize", s.handleFinalize)
	mux.HandleFunc("GET /api/count", s.handleCount)
	mux.HandleFunc("GET /api/journal", s.handleJournal)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := s.newHTTPServer()
	s.listener = listener
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// address reports the bound listener address, falling back to the configured
// bind before start and "" when the API is disabled.
func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleList(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.queueSvc.List())
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	item, ok := s.queueSvc.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.queueSvc.Submit(req))
}

func (s *apiServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req api.ClaimRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.queueSvc.Claim(req))
}

func (s *apiServer) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req api.FinalizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.ItemID = r.PathValue("id")
	s.writeJSON(w, http.StatusOK, s.queueSvc.Finalize(req))
}

func (s *apiServer) handleCount(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.queueSvc.Count())
}

func (s *apiServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := api.JournalRequest{
		ItemID:     strings.TrimSpace(query.Get("item")),
		Key:        strings.TrimSpace(query.Get("key")),
		ConsumerID: strings.TrimSpace(query.Get("consumer")),
		Kind:       strings.TrimSpace(query.Get("kind")),
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = limit
	}

	resp, err := s.queueSvc.Journal(r.Context(), req)
	switch {
	case errors.Is(err, api.ErrJournalDisabled):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, api.ErrInvalidKind):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, resp)
	}
}

// decode reads a JSON body into dst. An empty body leaves dst at its zero value.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
