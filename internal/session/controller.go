// Package session owns the capture → understand → execute lifecycle and
// presents one state machine to the UI: idle → listening → processing → idle.
package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/deca/lifetrack-voice/internal/capture"
	"github.com/deca/lifetrack-voice/internal/executor"
	"github.com/deca/lifetrack-voice/internal/history"
	"github.com/deca/lifetrack-voice/internal/intent"
	"github.com/deca/lifetrack-voice/internal/nlu"
	"github.com/deca/lifetrack-voice/pkg/types"
)

// State is the controller's lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
)

// NotUnderstoodMessage is shown when nothing usable came out of a run.
const NotUnderstoodMessage = "No speech captured or not understood"

// Understander is the slice of the nlu client the controller drives directly
// (the recorder path runs its own submit/poll instead).
type Understander interface {
	UnderstandTranscript(ctx context.Context, transcript string) (*nlu.Result, error)
}

// Controller sequences one capture session through understanding and
// execution. Only one capture may be active per controller.
type Controller struct {
	capture    capture.Session
	nlu        Understander
	exec       *executor.Executor
	domain     executor.DomainContext
	history    *history.Manager
	invalidate func()

	mu          sync.Mutex
	state       State
	discarded   bool
	lastSummary *types.Summary
}

// New creates a controller. history and invalidate may be nil.
func New(backend capture.Session, und Understander, exec *executor.Executor, domain executor.DomainContext, hist *history.Manager, invalidate func()) *Controller {
	return &Controller{
		capture:    backend,
		nlu:        und,
		exec:       exec,
		domain:     domain,
		history:    hist,
		invalidate: invalidate,
		state:      StateIdle,
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the live partial transcript, when the capture back-end
// produces one.
func (c *Controller) Transcript() string {
	return c.capture.Transcript()
}

// LastSummary returns the outcome of the most recent completed run.
func (c *Controller) LastSummary() *types.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSummary
}

// Start begins listening. It is a no-op unless the controller is idle; a
// failed start (permission denial, recognizer handshake) leaves it idle with
// the error surfaced to the caller.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return nil
	}

	if err := c.capture.StartListening(ctx); err != nil {
		log.Printf("Capture failed to start: %v", err)
		return err
	}
	c.state = StateListening
	c.discarded = false
	return nil
}

// Stop finalizes the capture and runs the rest of the pipeline. It is a
// no-op unless the controller is listening. Whatever happens, the controller
// is idle again when Stop returns.
func (c *Controller) Stop(ctx context.Context) (*types.Summary, error) {
	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return nil, nil
	}
	c.state = StateProcessing
	c.mu.Unlock()

	summary, err := c.runPipeline(ctx)

	c.mu.Lock()
	discarded := c.discarded
	c.state = StateIdle
	if !discarded && summary != nil {
		c.lastSummary = summary
	}
	c.mu.Unlock()

	if discarded {
		// The caller abandoned the run; mutations already happened but the
		// result is not reported.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.notifyChanged(summary)
	return summary, nil
}

func (c *Controller) runPipeline(ctx context.Context) (*types.Summary, error) {
	transcript, err := c.capture.StopListening(ctx)
	if err != nil {
		return nil, err
	}

	var actions []intent.Action
	if provider, ok := c.capture.(capture.ActionProvider); ok {
		if resolved, ok := provider.TakeActions(); ok {
			actions = resolved
		}
	}
	if actions == nil {
		if strings.TrimSpace(transcript) == "" {
			return &types.Summary{Message: NotUnderstoodMessage}, nil
		}
		result, err := c.nlu.UnderstandTranscript(ctx, transcript)
		if err != nil {
			return nil, err
		}
		actions = result.Actions
	}

	if allUnknown(actions) {
		return &types.Summary{Message: NotUnderstoodMessage}, nil
	}

	results := c.exec.ExecuteAll(ctx, actions, c.domain)
	summary := aggregate(actions, results)

	if c.history != nil {
		c.history.Append(transcript, intentTags(actions), *summary)
	}
	return summary, nil
}

// RunTranscript executes a typed (or externally transcribed) command without
// a capture session. It shares the idle/processing guard with voice runs.
func (c *Controller) RunTranscript(ctx context.Context, transcript string) (*types.Summary, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, fmt.Errorf("a voice session is already active")
	}
	c.state = StateProcessing
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
	}()

	if strings.TrimSpace(transcript) == "" {
		return &types.Summary{Message: NotUnderstoodMessage}, nil
	}

	result, err := c.nlu.UnderstandTranscript(ctx, transcript)
	if err != nil {
		return nil, err
	}
	if allUnknown(result.Actions) {
		return &types.Summary{Message: NotUnderstoodMessage}, nil
	}

	results := c.exec.ExecuteAll(ctx, result.Actions, c.domain)
	summary := aggregate(result.Actions, results)

	c.mu.Lock()
	c.lastSummary = summary
	c.mu.Unlock()

	if c.history != nil {
		c.history.Append(transcript, intentTags(result.Actions), *summary)
	}
	c.notifyChanged(summary)
	return summary, nil
}

// Cancel abandons the current run. While listening, the capture is
// force-stopped without understanding or executing anything. While
// processing, the in-flight run completes but its result is discarded.
func (c *Controller) Cancel() {
	c.mu.Lock()
	state := c.state
	if state == StateProcessing {
		c.discarded = true
	}
	if state == StateListening {
		c.state = StateIdle
	}
	c.mu.Unlock()

	if state == StateListening {
		if err := c.capture.Close(); err != nil {
			log.Printf("Failed to release capture on cancel: %v", err)
		}
	}
}

func (c *Controller) notifyChanged(summary *types.Summary) {
	// Domain collections may have changed; let dependent views reload.
	if c.invalidate != nil && len(summary.Succeeded) > 0 {
		c.invalidate()
	}
}

func allUnknown(actions []intent.Action) bool {
	for _, a := range actions {
		if a.Intent != intent.IntentUnknown {
			return false
		}
	}
	return true
}

func intentTags(actions []intent.Action) []string {
	tags := make([]string, 0, len(actions))
	for _, a := range actions {
		tags = append(tags, string(a.Intent))
	}
	return tags
}

func aggregate(actions []intent.Action, results []types.ActionResult) *types.Summary {
	summary := &types.Summary{}
	for i, result := range results {
		if result.Success {
			summary.Succeeded = append(summary.Succeeded, result.Message)
			continue
		}
		tag := "unknown"
		if i < len(actions) {
			tag = string(actions[i].Intent)
		}
		summary.Failed = append(summary.Failed, types.Failure{Action: tag, Reason: result.Message})
	}

	switch {
	case len(summary.Failed) == 0 && len(summary.Succeeded) == 1:
		summary.Message = summary.Succeeded[0]
	case len(summary.Failed) == 0:
		summary.Message = "Done: " + strings.Join(summary.Succeeded, ", ")
	case len(summary.Succeeded) == 0:
		summary.Message = summary.Failed[0].Reason
	default:
		summary.Message = fmt.Sprintf("%s (%d succeeded)", summary.Failed[0].Reason, len(summary.Succeeded))
	}
	return summary
}
