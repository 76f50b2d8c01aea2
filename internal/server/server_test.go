package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sortdesk/mailtriage/internal/common"
	"github.com/sortdesk/mailtriage/internal/engine"
	"github.com/sortdesk/mailtriage/internal/model"
)

// stubEngine returns canned results and records the arguments it was called
// with.
type stubEngine struct {
	trainResult    *engine.TrainResult
	labelResult    *engine.LabelResult
	processResult  *engine.ProcessResult
	recoveryResult *engine.RecoveryResult
	promoteResult  *engine.PromoteResult
	err            error

	lastSince   time.Time
	lastLimit   int
	lastItems   []engine.LabelItem
	lastMessage string
	lastLabel   model.Label
}

func (s *stubEngine) Train(_ context.Context, since time.Time, limit int) (*engine.TrainResult, error) {
	s.lastSince, s.lastLimit = since, limit
	return s.trainResult, s.err
}

func (s *stubEngine) Label(_ context.Context, items []engine.LabelItem) (*engine.LabelResult, error) {
	s.lastItems = items
	return s.labelResult, s.err
}

func (s *stubEngine) Process(_ context.Context, since time.Time) (*engine.ProcessResult, error) {
	s.lastSince = since
	return s.processResult, s.err
}

func (s *stubEngine) Recovery(_ context.Context, since time.Time) (*engine.RecoveryResult, error) {
	s.lastSince = since
	return s.recoveryResult, s.err
}

func (s *stubEngine) Promote(_ context.Context, messageID string, newLabel model.Label) (*engine.PromoteResult, error) {
	s.lastMessage, s.lastLabel = messageID, newLabel
	return s.promoteResult, s.err
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestTrainEndpoint(t *testing.T) {
	stub := &stubEngine{trainResult: &engine.TrainResult{
		Message: "Collected 1 samples for labeling",
		Samples: []engine.SampleItem{{EmailID: "a@example.com", Subject: "Hello"}},
	}}
	handler := New(stub).Handler()

	rec := postJSON(t, handler, "/api/train", map[string]any{
		"start_date": "2024-03-01",
		"limit":      5,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, stub.lastLimit)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), stub.lastSince)

	result := decodeBody[engine.TrainResult](t, rec)
	require.Len(t, result.Samples, 1)
	assert.Equal(t, "a@example.com", result.Samples[0].EmailID)
}

func TestTrainEndpointRejectsBadDates(t *testing.T) {
	handler := New(&stubEngine{}).Handler()

	for _, date := range []string{"", "03/01/2024", "2024-13-40"} {
		rec := postJSON(t, handler, "/api/train", map[string]any{"start_date": date, "limit": 5})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "date %q", date)
	}
}

func TestTrainEndpointRejectsUnknownFields(t *testing.T) {
	handler := New(&stubEngine{}).Handler()

	rec := postJSON(t, handler, "/api/train", map[string]any{
		"start_date": "2024-03-01",
		"limit":      5,
		"surprise":   true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLabelEndpoint(t *testing.T) {
	stub := &stubEngine{labelResult: &engine.LabelResult{Stored: 2, Retrained: true, MLReady: true}}
	handler := New(stub).Handler()

	rec := postJSON(t, handler, "/api/label", map[string]any{
		"items": []map[string]string{
			{"email_id": "a@example.com", "label": "HIGH"},
			{"email_id": "b@example.com", "label": "LOW"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.lastItems, 2)
	assert.Equal(t, "a@example.com", stub.lastItems[0].EmailID)

	result := decodeBody[engine.LabelResult](t, rec)
	assert.True(t, result.Retrained)
	assert.True(t, result.MLReady)
}

func TestLabelEndpointRejectsEmptyBatch(t *testing.T) {
	handler := New(&stubEngine{}).Handler()

	rec := postJSON(t, handler, "/api/label", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessEndpoint(t *testing.T) {
	stub := &stubEngine{processResult: &engine.ProcessResult{
		MovedCounts: model.MoveCounts{High: 1, Medium: 2, Low: 3},
		Items:       []engine.ProcessItem{},
		MLReady:     true,
	}}
	handler := New(stub).Handler()

	rec := postJSON(t, handler, "/api/process", map[string]any{"start_date": "2024-03-01"})
	require.Equal(t, http.StatusOK, rec.Code)

	// The wire format uses the label names as count keys.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.JSONEq(t, `{"HIGH":1,"MEDIUM":2,"LOW":3}`, string(raw["moved_counts"]))
	assert.JSONEq(t, `true`, string(raw["ml_ready"]))
}

func TestProcessEndpointReturnsPartialResults(t *testing.T) {
	stub := &stubEngine{
		processResult: &engine.ProcessResult{
			MovedCounts: model.MoveCounts{High: 1},
			Items:       []engine.ProcessItem{{EmailID: "a@example.com", Priority: "HIGH"}},
			Failed:      1,
		},
		err: fmt.Errorf("ledger write failed after move: %s", "b@example.com"),
	}
	handler := New(stub).Handler()

	rec := postJSON(t, handler, "/api/process", map[string]any{"start_date": "2024-03-01"})
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeBody[engine.ProcessResult](t, rec)
	assert.Equal(t, 1, result.MovedCounts.High)
	assert.Equal(t, 1, result.Failed)
}

func TestRecoveryEndpoint(t *testing.T) {
	stub := &stubEngine{recoveryResult: &engine.RecoveryResult{
		Items: []engine.RecoveryItem{{EmailID: "a@example.com", GmailLink: "link"}},
	}}
	handler := New(stub).Handler()

	rec := postJSON(t, handler, "/api/recovery", map[string]any{"start_date": "2024-03-01"})
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeBody[engine.RecoveryResult](t, rec)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "a@example.com", result.Items[0].EmailID)
}

func TestPromoteEndpoint(t *testing.T) {
	stub := &stubEngine{promoteResult: &engine.PromoteResult{Message: "Email promoted to HIGH"}}
	handler := New(stub).Handler()

	rec := postJSON(t, handler, "/api/promote", map[string]any{
		"email_id":     "a@example.com",
		"new_priority": "HIGH",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@example.com", stub.lastMessage)
	assert.Equal(t, model.LabelHigh, stub.lastLabel)
}

func TestPromoteEndpointRejectsBadPriority(t *testing.T) {
	handler := New(&stubEngine{}).Handler()

	rec := postJSON(t, handler, "/api/promote", map[string]any{
		"email_id":     "a@example.com",
		"new_priority": "WHENEVER",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"user error", common.NewUserError("limit must be a positive integer", nil), http.StatusBadRequest},
		{"invalid transition", fmt.Errorf("wrapped: %w", common.ErrInvalidTransition), http.StatusConflict},
		{"not found", fmt.Errorf("wrapped: %w", common.ErrNotFound), http.StatusNotFound},
		{"insufficient data", fmt.Errorf("wrapped: %w", common.ErrInsufficientData), http.StatusBadRequest},
		{"internal", errors.New("sqlite exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(&stubEngine{err: tt.err}).Handler()

			rec := postJSON(t, handler, "/api/promote", map[string]any{
				"email_id":     "a@example.com",
				"new_priority": "HIGH",
			})
			assert.Equal(t, tt.wantStatus, rec.Code)

			body := decodeBody[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := New(&stubEngine{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/process", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
