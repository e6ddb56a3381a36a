package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deca/lifetrack-voice/internal/intent"
)

func newTestClient(url string) *Client {
	return NewClient(url, "test-key", "en", "UTC")
}

func TestUnderstandTranscript(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice/understand" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"actions": []any{
				map[string]any{"intent": "log_sleep", "sleepHours": 8},
			},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).UnderstandTranscript(context.Background(), "  log 8 hours sleep  ")
	if err != nil {
		t.Fatalf("UnderstandTranscript() error: %v", err)
	}
	if len(result.Actions) != 1 || result.Actions[0].Intent != intent.IntentLogSleep {
		t.Fatalf("actions = %v", result.Actions)
	}
	if gotBody["transcript"] != "log 8 hours sleep" {
		t.Errorf("transcript not trimmed: %q", gotBody["transcript"])
	}
	if gotBody["lang"] != "en" || gotBody["timezone"] != "UTC" {
		t.Errorf("lang/timezone missing from request: %v", gotBody)
	}
	if gotBody["today"] == "" {
		t.Error("today missing from request")
	}
}

func TestUnderstandTranscriptEmptySkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).UnderstandTranscript(context.Background(), "   \t ")
	if err != nil {
		t.Fatalf("UnderstandTranscript() error: %v", err)
	}
	if calls.Load() != 0 {
		t.Error("empty transcript should not hit the service")
	}
	if len(result.Actions) != 1 || result.Actions[0].Intent != intent.IntentUnknown {
		t.Errorf("actions = %v, want single unknown", result.Actions)
	}
}

func TestUnderstandTranscriptNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := newTestClient(srv.URL).UnderstandTranscript(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error from unreachable service")
	}
	if !strings.Contains(err.Error(), "could not reach the voice service") {
		t.Errorf("error not translated: %v", err)
	}
}

func TestSubmitAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice/submit" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["audio"] != "UklGRg==" || body["mimeType"] != "audio/wav" {
			t.Errorf("submit body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{"jobId": "job-1", "status": "pending"})
	}))
	defer srv.Close()

	submit, err := newTestClient(srv.URL).SubmitAudio(context.Background(), "UklGRg==", "audio/wav")
	if err != nil {
		t.Fatalf("SubmitAudio() error: %v", err)
	}
	if submit.JobID != "job-1" || submit.Status != "pending" {
		t.Errorf("submit = %+v", submit)
	}
}

func TestPollForResultCompleted(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice/jobs/job-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if polls.Add(1) < 3 {
			json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "completed",
			"result": map[string]any{
				"transcript": "add gym at six",
				"actions": []any{
					map[string]any{"intent": "add_schedule", "items": []any{map[string]any{"title": "gym"}}},
				},
			},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).PollForResult(context.Background(), "job-1", PollOptions{
		Timeout:  2 * time.Second,
		Interval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("PollForResult() error: %v", err)
	}
	if polls.Load() != 3 {
		t.Errorf("polls = %d, want 3", polls.Load())
	}
	if result.Transcript != "add gym at six" {
		t.Errorf("transcript = %q", result.Transcript)
	}
	if len(result.Actions) != 1 || result.Actions[0].Intent != intent.IntentAddSchedule {
		t.Errorf("actions = %v", result.Actions)
	}
}

func TestPollForResultFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "failed", "error": "transcription unavailable"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).PollForResult(context.Background(), "job-1", PollOptions{
		Timeout:  time.Second,
		Interval: 10 * time.Millisecond,
	})
	if err == nil || err.Error() != "transcription unavailable" {
		t.Fatalf("err = %v, want backend error string", err)
	}
}

func TestPollForResultNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).PollForResult(context.Background(), "gone", PollOptions{
		Timeout:  time.Second,
		Interval: 10 * time.Millisecond,
	})
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestPollForResultTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	}))
	defer srv.Close()

	start := time.Now()
	_, err := newTestClient(srv.URL).PollForResult(context.Background(), "slow", PollOptions{
		Timeout:  100 * time.Millisecond,
		Interval: 20 * time.Millisecond,
	})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("poll loop hung for %v", elapsed)
	}
}

func TestPollForResultContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(srv.URL).PollForResult(ctx, "job", PollOptions{
		Timeout:  5 * time.Second,
		Interval: 20 * time.Millisecond,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
