package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/deca/lifetrack-voice/internal/intent"
	"github.com/deca/lifetrack-voice/internal/nlu"
)

// Understander is the slice of the nlu client the recorder needs.
type Understander interface {
	SubmitAudio(ctx context.Context, audioBase64, mimeType string) (*nlu.SubmitResponse, error)
	PollForResult(ctx context.Context, jobID string, opts nlu.PollOptions) (*nlu.Result, error)
}

// Archiver stores a finished capture somewhere durable. Best effort only.
type Archiver interface {
	UploadCapture(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ActionProvider is implemented by sessions that resolve actions themselves
// during StopListening instead of handing a transcript upstream.
type ActionProvider interface {
	TakeActions() ([]intent.Action, bool)
}

// RecorderSession captures raw audio and, on stop, pushes it through the
// understanding service's submit/poll job protocol itself. There are no
// partial transcripts on this path and results take a few seconds.
type RecorderSession struct {
	source     Source
	nlu        Understander
	archiver   Archiver
	sampleRate int
	poll       nlu.PollOptions

	mu         sync.Mutex
	listening  bool
	processing bool
	transcript string
	actions    []intent.Action
	pcm        bytes.Buffer
	stop       chan struct{}
	done       chan struct{}
}

// NewRecorderSession creates a record-then-upload capture session. archiver
// may be nil.
func NewRecorderSession(source Source, understander Understander, archiver Archiver, sampleRate int, poll nlu.PollOptions) *RecorderSession {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &RecorderSession{
		source:     source,
		nlu:        understander,
		archiver:   archiver,
		sampleRate: sampleRate,
		poll:       poll,
	}
}

// Available reports whether a recording device is present.
func (s *RecorderSession) Available() bool { return s.source != nil }

// Processing reports whether the post-stop understanding round-trip is running.
func (s *RecorderSession) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Transcript returns the transcript of the last completed capture. The
// recorder has no partial results while listening.
func (s *RecorderSession) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// StartListening acquires the microphone and begins buffering audio. Calling
// it while already listening is a no-op.
func (s *RecorderSession) StartListening(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return nil
	}
	if s.source == nil {
		return ErrNoDevice
	}

	if err := s.source.Open(ctx); err != nil {
		return err
	}

	s.pcm.Reset()
	s.transcript = ""
	s.actions = nil
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.listening = true

	go s.recordLoop(s.stop, s.done)
	return nil
}

func (s *RecorderSession) recordLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, 4096)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := s.source.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.pcm.Write(buf[:n])
			s.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("Recording read failed: %v", err)
			}
			return
		}
	}
}

// StopListening finalizes the recording, releases the microphone, and runs
// the captured audio through the understanding job itself. The transcript (if
// the backend produced one) is returned; parsed actions are held for
// TakeActions.
func (s *RecorderSession) StopListening(ctx context.Context) (string, error) {
	s.mu.Lock()
	if !s.listening {
		transcript := s.transcript
		s.mu.Unlock()
		return transcript, nil
	}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.source.Close()

	s.mu.Lock()
	s.listening = false
	audio := EncodeWAV(s.pcm.Bytes(), s.sampleRate)
	s.pcm.Reset()
	if len(audio) <= 44 {
		// Header only: nothing was captured.
		s.actions = []intent.Action{intent.Unknown()}
		s.mu.Unlock()
		return "", nil
	}
	s.processing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}()

	if s.archiver != nil {
		if url, err := s.archiver.UploadCapture(ctx, audio, "audio/wav"); err != nil {
			log.Printf("Capture archive failed: %v", err)
		} else {
			log.Printf("Capture archived: %s", url)
		}
	}

	encoded := base64.StdEncoding.EncodeToString(audio)
	submit, err := s.nlu.SubmitAudio(ctx, encoded, "audio/wav")
	if err != nil {
		return "", fmt.Errorf("failed to submit recording: %w", err)
	}

	result, err := s.nlu.PollForResult(ctx, submit.JobID, s.poll)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.transcript = result.Transcript
	s.actions = result.Actions
	s.mu.Unlock()
	return result.Transcript, nil
}

// TakeActions hands over the actions resolved during the last stop, once.
func (s *RecorderSession) TakeActions() ([]intent.Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actions == nil {
		return nil, false
	}
	actions := s.actions
	s.actions = nil
	return actions, true
}

// Close discards an in-progress recording and releases the microphone.
func (s *RecorderSession) Close() error {
	s.mu.Lock()
	if !s.listening {
		s.mu.Unlock()
		return nil
	}
	stop, done := s.stop, s.done
	s.listening = false
	s.mu.Unlock()

	close(stop)
	<-done
	s.pcm.Reset()
	return s.source.Close()
}
