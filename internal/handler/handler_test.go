package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deca/lifetrack-voice/internal/executor"
	"github.com/deca/lifetrack-voice/internal/history"
	"github.com/deca/lifetrack-voice/internal/intent"
	"github.com/deca/lifetrack-voice/internal/nlu"
	"github.com/deca/lifetrack-voice/internal/session"
	"github.com/deca/lifetrack-voice/internal/storage/memory"
)

type stubCapture struct {
	transcript string
}

func (s *stubCapture) Available() bool                          { return true }
func (s *stubCapture) StartListening(ctx context.Context) error { return nil }
func (s *stubCapture) StopListening(ctx context.Context) (string, error) {
	return s.transcript, nil
}
func (s *stubCapture) Transcript() string { return s.transcript }
func (s *stubCapture) Processing() bool   { return false }
func (s *stubCapture) Close() error       { return nil }

type stubUnderstander struct{}

func (stubUnderstander) UnderstandTranscript(ctx context.Context, transcript string) (*nlu.Result, error) {
	return &nlu.Result{
		Actions: []intent.Action{intent.ParseAction(map[string]any{
			"intent":     "log_sleep",
			"sleepHours": 8,
		})},
		Transcript: transcript,
	}, nil
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stores := memory.NewStores()
	dc := executor.DomainContext{
		Schedule: stores.Schedule, Transactions: stores.Transactions, Workouts: stores.Workouts,
		Food: stores.Food, CheckIns: stores.CheckIns, Goals: stores.Goals,
	}
	hist := history.NewManager(t.TempDir(), 10, time.Hour)
	controller := session.New(&stubCapture{transcript: "log 8 hours of sleep"}, stubUnderstander{}, executor.New(), dc, hist, nil)

	h := NewHandler(controller, hist)
	r := gin.New()
	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.POST("/voice/start", h.StartVoice)
		api.POST("/voice/stop", h.StopVoice)
		api.POST("/voice/cancel", h.CancelVoice)
		api.GET("/voice/status", h.VoiceStatus)
		api.POST("/voice/text", h.TextCommand)
		api.GET("/voice/history", h.History)
		api.DELETE("/voice/history", h.ClearHistory)
	}
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	w := do(testRouter(t), http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestVoiceStartStopFlow(t *testing.T) {
	r := testRouter(t)

	if w := do(r, http.MethodPost, "/api/voice/start", ""); w.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", w.Code, w.Body.String())
	}

	status := do(r, http.MethodGet, "/api/voice/status", "")
	if !strings.Contains(status.Body.String(), `"listening"`) {
		t.Errorf("status body = %s", status.Body.String())
	}

	stop := do(r, http.MethodPost, "/api/voice/stop", "")
	if stop.Code != http.StatusOK {
		t.Fatalf("stop status = %d: %s", stop.Code, stop.Body.String())
	}
	if !strings.Contains(stop.Body.String(), "Logged sleep") {
		t.Errorf("stop body = %s", stop.Body.String())
	}
}

func TestStopWithoutSessionConflicts(t *testing.T) {
	w := do(testRouter(t), http.MethodPost, "/api/voice/stop", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestTextCommand(t *testing.T) {
	r := testRouter(t)

	w := do(r, http.MethodPost, "/api/voice/text", `{"text":"log 8 hours of sleep"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Logged sleep") {
		t.Errorf("body = %s", w.Body.String())
	}

	bad := do(r, http.MethodPost, "/api/voice/text", `{}`)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("missing text status = %d, want 400", bad.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	r := testRouter(t)

	do(r, http.MethodPost, "/api/voice/text", `{"text":"log 8 hours of sleep"}`)

	w := do(r, http.MethodGet, "/api/voice/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "log 8 hours of sleep") {
		t.Errorf("body = %s", w.Body.String())
	}

	if w := do(r, http.MethodDelete, "/api/voice/history", ""); w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	after := do(r, http.MethodGet, "/api/voice/history", "")
	if strings.Contains(after.Body.String(), "log 8 hours") {
		t.Errorf("history survived clear: %s", after.Body.String())
	}
}
