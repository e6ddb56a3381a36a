package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deca/lifetrack-voice/internal/capture"
	"github.com/deca/lifetrack-voice/internal/executor"
	"github.com/deca/lifetrack-voice/internal/history"
	"github.com/deca/lifetrack-voice/internal/intent"
	"github.com/deca/lifetrack-voice/internal/nlu"
	"github.com/deca/lifetrack-voice/internal/storage/memory"
)

// fakeCapture is a scriptable capture session.
type fakeCapture struct {
	transcript string
	startErr   error
	stopErr    error

	starts  int32
	stops   int32
	closes  int32
	actions []intent.Action
	taken   bool
}

func (f *fakeCapture) Available() bool { return true }

func (f *fakeCapture) StartListening(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	atomic.AddInt32(&f.starts, 1)
	return nil
}

func (f *fakeCapture) StopListening(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.stops, 1)
	if f.stopErr != nil {
		return "", f.stopErr
	}
	return f.transcript, nil
}

func (f *fakeCapture) Transcript() string { return f.transcript }
func (f *fakeCapture) Processing() bool   { return false }

func (f *fakeCapture) Close() error {
	atomic.AddInt32(&f.closes, 1)
	return nil
}

// fakeResolvingCapture additionally resolves its own actions, the way the
// record-and-upload path does.
type fakeResolvingCapture struct {
	fakeCapture
}

func (f *fakeResolvingCapture) TakeActions() ([]intent.Action, bool) {
	if f.taken || f.actions == nil {
		return nil, false
	}
	f.taken = true
	return f.actions, true
}

// fakeUnderstander maps transcripts to canned action lists.
type fakeUnderstander struct {
	calls   int32
	err     error
	actions map[string][]intent.Action
}

func (f *fakeUnderstander) UnderstandTranscript(ctx context.Context, transcript string) (*nlu.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	actions, ok := f.actions[transcript]
	if !ok {
		actions = []intent.Action{intent.Unknown()}
	}
	return &nlu.Result{Actions: actions, Transcript: transcript}, nil
}

func action(t *testing.T, payload map[string]any) intent.Action {
	t.Helper()
	a := intent.ParseAction(payload)
	if a.Intent == intent.IntentUnknown {
		t.Fatalf("test payload did not parse: %v", payload)
	}
	return a
}

func testController(cap capture.Session, und Understander) (*Controller, *memory.Stores, *int32) {
	stores := memory.NewStores()
	dc := executor.DomainContext{
		Schedule:     stores.Schedule,
		Transactions: stores.Transactions,
		Workouts:     stores.Workouts,
		Food:         stores.Food,
		CheckIns:     stores.CheckIns,
		Goals:        stores.Goals,
	}
	var invalidations int32
	c := New(cap, und, executor.New(), dc, nil, func() {
		atomic.AddInt32(&invalidations, 1)
	})
	return c, stores, &invalidations
}

func TestStartStopRoundTrip(t *testing.T) {
	cap := &fakeCapture{transcript: "add gym at 6pm and log 8 hours of sleep"}
	und := &fakeUnderstander{actions: map[string][]intent.Action{
		"add gym at 6pm and log 8 hours of sleep": {
			action(t, map[string]any{"intent": "add_schedule", "items": []any{map[string]any{"title": "gym", "startTime": "18:00"}}}),
			action(t, map[string]any{"intent": "log_sleep", "sleepHours": 8}),
		},
	}}
	c, stores, invalidations := testController(cap, und)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if c.State() != StateListening {
		t.Fatalf("state = %q after Start", c.State())
	}

	summary, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if summary.Message != "Done: Added to schedule: gym, Logged sleep" {
		t.Errorf("message = %q", summary.Message)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %q after Stop", c.State())
	}

	items, _ := stores.Schedule.List(ctx)
	if len(items) != 1 || items[0].Title != "gym" {
		t.Errorf("schedule = %+v", items)
	}
	if atomic.LoadInt32(invalidations) != 1 {
		t.Errorf("invalidations = %d, want 1", *invalidations)
	}
}

func TestSingleSuccessMessageIsVerbatim(t *testing.T) {
	cap := &fakeCapture{transcript: "log 8 hours of sleep"}
	und := &fakeUnderstander{actions: map[string][]intent.Action{
		"log 8 hours of sleep": {action(t, map[string]any{"intent": "log_sleep", "sleepHours": 8})},
	}}
	c, _, _ := testController(cap, und)
	ctx := context.Background()

	c.Start(ctx)
	summary, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if summary.Message != "Logged sleep" {
		t.Errorf("message = %q, want verbatim action message", summary.Message)
	}
}

func TestPartialFailureSurfacesFirstReason(t *testing.T) {
	cap := &fakeCapture{transcript: "delete yoga and log 8 hours of sleep"}
	und := &fakeUnderstander{actions: map[string][]intent.Action{
		"delete yoga and log 8 hours of sleep": {
			action(t, map[string]any{"intent": "delete_schedule", "itemTitle": "yoga"}),
			action(t, map[string]any{"intent": "log_sleep", "sleepHours": 8}),
		},
	}}
	c, _, _ := testController(cap, und)
	ctx := context.Background()

	c.Start(ctx)
	summary, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if summary.Message != "No matching schedule item found (1 succeeded)" {
		t.Errorf("message = %q", summary.Message)
	}
	if len(summary.Succeeded) != 1 || len(summary.Failed) != 1 {
		t.Errorf("counts = %d/%d", len(summary.Succeeded), len(summary.Failed))
	}
}

func TestDoubleStartIsNoOp(t *testing.T) {
	cap := &fakeCapture{transcript: "x"}
	c, _, _ := testController(cap, &fakeUnderstander{})
	ctx := context.Background()

	c.Start(ctx)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}
	if atomic.LoadInt32(&cap.starts) != 1 {
		t.Errorf("starts = %d, want 1", cap.starts)
	}
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	cap := &fakeCapture{}
	c, _, _ := testController(cap, &fakeUnderstander{})

	summary, err := c.Stop(context.Background())
	if err != nil || summary != nil {
		t.Errorf("Stop() while idle = %v, %v", summary, err)
	}
	if atomic.LoadInt32(&cap.stops) != 0 {
		t.Error("capture stopped without an active session")
	}
}

func TestEmptyTranscriptShortCircuits(t *testing.T) {
	cap := &fakeCapture{transcript: "   "}
	und := &fakeUnderstander{}
	c, _, invalidations := testController(cap, und)
	ctx := context.Background()

	c.Start(ctx)
	summary, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if summary.Message != NotUnderstoodMessage {
		t.Errorf("message = %q", summary.Message)
	}
	if atomic.LoadInt32(&und.calls) != 0 {
		t.Error("understanding called for empty transcript")
	}
	if atomic.LoadInt32(invalidations) != 0 {
		t.Error("invalidate fired with nothing executed")
	}
}

func TestAllUnknownShortCircuits(t *testing.T) {
	cap := &fakeCapture{transcript: "mumble mumble"}
	c, stores, _ := testController(cap, &fakeUnderstander{})
	ctx := context.Background()

	c.Start(ctx)
	summary, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if summary.Message != NotUnderstoodMessage {
		t.Errorf("message = %q", summary.Message)
	}
	if items, _ := stores.Schedule.List(ctx); len(items) != 0 {
		t.Error("unknown actions mutated the domain")
	}
}

func TestStartFailureStaysIdle(t *testing.T) {
	cap := &fakeCapture{startErr: capture.ErrPermissionDenied}
	c, _, _ := testController(cap, &fakeUnderstander{})

	err := c.Start(context.Background())
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("Start() error = %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %q after failed start", c.State())
	}
}

func TestUnderstandFailureReturnsToIdle(t *testing.T) {
	cap := &fakeCapture{transcript: "add gym"}
	und := &fakeUnderstander{err: errors.New("could not reach the voice service; check your connection and try again")}
	c, _, _ := testController(cap, und)
	ctx := context.Background()

	c.Start(ctx)
	if _, err := c.Stop(ctx); err == nil {
		t.Fatal("Stop() should surface the understanding error")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %q after failed run", c.State())
	}
}

func TestResolvingCaptureSkipsUnderstander(t *testing.T) {
	cap := &fakeResolvingCapture{fakeCapture: fakeCapture{transcript: "log 8 hours of sleep"}}
	cap.actions = []intent.Action{action(t, map[string]any{"intent": "log_sleep", "sleepHours": 8})}
	und := &fakeUnderstander{}
	c, stores, _ := testController(cap, und)
	ctx := context.Background()

	c.Start(ctx)
	summary, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if summary.Message != "Logged sleep" {
		t.Errorf("message = %q", summary.Message)
	}
	if atomic.LoadInt32(&und.calls) != 0 {
		t.Error("understander called although capture resolved actions itself")
	}
	if ci, ok, _ := stores.CheckIns.GetByDate(ctx, today()); !ok || ci.SleepHours != 8 {
		t.Errorf("check-in = %+v (found=%v)", ci, ok)
	}
}

func today() string {
	return time.Now().Format("2006-01-02")
}

func TestCancelWhileListeningReleasesCapture(t *testing.T) {
	cap := &fakeCapture{transcript: "add gym"}
	und := &fakeUnderstander{}
	c, _, _ := testController(cap, und)
	ctx := context.Background()

	c.Start(ctx)
	c.Cancel()

	if c.State() != StateIdle {
		t.Errorf("state = %q after Cancel", c.State())
	}
	if atomic.LoadInt32(&cap.closes) != 1 {
		t.Errorf("closes = %d, want 1", cap.closes)
	}
	if atomic.LoadInt32(&und.calls) != 0 {
		t.Error("cancelled session still ran understanding")
	}

	// The controller is reusable afterwards.
	if err := c.Start(ctx); err != nil {
		t.Fatalf("restart after Cancel: %v", err)
	}
}

func TestRunTranscriptBypassesCapture(t *testing.T) {
	cap := &fakeCapture{}
	und := &fakeUnderstander{actions: map[string][]intent.Action{
		"spent 4.50 on coffee": {action(t, map[string]any{
			"intent": "add_transaction", "amount": 4.5, "description": "coffee", "category": "Food",
		})},
	}}
	c, stores, _ := testController(cap, und)

	summary, err := c.RunTranscript(context.Background(), "spent 4.50 on coffee")
	if err != nil {
		t.Fatalf("RunTranscript() error: %v", err)
	}
	if summary.Message != "Added expense: coffee ($4.50)" {
		t.Errorf("message = %q", summary.Message)
	}
	if atomic.LoadInt32(&cap.stops) != 0 {
		t.Error("capture touched by the text path")
	}
	txs, _ := stores.Transactions.List(context.Background())
	if len(txs) != 1 {
		t.Errorf("transactions = %d", len(txs))
	}
}

func TestRunTranscriptRejectedWhileListening(t *testing.T) {
	cap := &fakeCapture{transcript: "x"}
	c, _, _ := testController(cap, &fakeUnderstander{})
	ctx := context.Background()

	c.Start(ctx)
	if _, err := c.RunTranscript(ctx, "add gym"); err == nil {
		t.Error("text command should be rejected while a voice session is active")
	}
}

func TestHistoryRecordsRuns(t *testing.T) {
	cap := &fakeCapture{transcript: "log 8 hours of sleep"}
	und := &fakeUnderstander{actions: map[string][]intent.Action{
		"log 8 hours of sleep": {action(t, map[string]any{"intent": "log_sleep", "sleepHours": 8})},
	}}
	stores := memory.NewStores()
	dc := executor.DomainContext{
		Schedule: stores.Schedule, Transactions: stores.Transactions, Workouts: stores.Workouts,
		Food: stores.Food, CheckIns: stores.CheckIns, Goals: stores.Goals,
	}
	hist := history.NewManager(t.TempDir(), 10, time.Hour)
	c := New(cap, und, executor.New(), dc, hist, nil)
	ctx := context.Background()

	c.Start(ctx)
	if _, err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	records := hist.Recent(0)
	if len(records) != 1 {
		t.Fatalf("history records = %d", len(records))
	}
	if records[0].Transcript != "log 8 hours of sleep" || records[0].Succeeded != 1 {
		t.Errorf("record = %+v", records[0])
	}
}
