// Package server exposes the triage engine's operations as a JSON HTTP API.
// It is a thin wrapper: all decision logic lives in the engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sortdesk/mailtriage/internal/common"
	"github.com/sortdesk/mailtriage/internal/engine"
	"github.com/sortdesk/mailtriage/internal/model"
)

const dateLayout = "2006-01-02"

// Engine is the contract the API needs from the triage engine.
type Engine interface {
	Train(ctx context.Context, since time.Time, limit int) (*engine.TrainResult, error)
	Label(ctx context.Context, items []engine.LabelItem) (*engine.LabelResult, error)
	Process(ctx context.Context, since time.Time) (*engine.ProcessResult, error)
	Recovery(ctx context.Context, since time.Time) (*engine.RecoveryResult, error)
	Promote(ctx context.Context, messageID string, newLabel model.Label) (*engine.PromoteResult, error)
}

// Server serves the triage API.
type Server struct {
	engine Engine
}

// New creates a server around the given engine.
func New(eng Engine) *Server {
	return &Server{engine: eng}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/train", s.handleTrain)
	mux.HandleFunc("POST /api/label", s.handleLabel)
	mux.HandleFunc("POST /api/process", s.handleProcess)
	mux.HandleFunc("POST /api/recovery", s.handleRecovery)
	mux.HandleFunc("POST /api/promote", s.handlePromote)
	return logRequests(mux)
}

// ListenAndServe runs the API until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type trainRequest struct {
	StartDate string `json:"start_date"`
	Limit     int    `json:"limit"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	since, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.engine.Train(r.Context(), since, req.Limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type labelRequest struct {
	Items []engine.LabelItem `json:"items"`
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no items provided"))
		return
	}

	result, err := s.engine.Label(r.Context(), req.Items)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type dateRequest struct {
	StartDate string `json:"start_date"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	since, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.engine.Process(r.Context(), since)
	if err != nil && result == nil {
		writeEngineError(w, err)
		return
	}
	if err != nil {
		// Partial success with ledger inconsistencies: return what moved and
		// flag the failure.
		slog.Error("Process completed with errors", "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecovery(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	since, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.engine.Recovery(r.Context(), since)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type promoteRequest struct {
	EmailID     string `json:"email_id"`
	NewPriority string `json:"new_priority"`
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	label, err := model.ParseLabel(req.NewPriority)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("provide email_id and valid new_priority"))
		return
	}

	result, err := s.engine.Promote(r.Context(), req.EmailID, label)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("provide start_date")
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_date format, want YYYY-MM-DD: %w", err)
	}
	return t, nil
}

// writeEngineError maps engine errors onto HTTP statuses: user mistakes and
// invalid transitions are 4xx, everything else is a 500.
func writeEngineError(w http.ResponseWriter, err error) {
	var userErr *common.UserError
	switch {
	case errors.As(err, &userErr):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, common.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, common.ErrInsufficientData):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		slog.Info("Handled request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
