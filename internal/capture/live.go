package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const defaultChunkSize = 3200 // 0.2s at 16kHz 16-bit mono

// LiveConfig configures the streaming recognizer connection.
type LiveConfig struct {
	URL        string
	APIKey     string
	SampleRate int
	ChunkSize  int
}

// LiveSession streams microphone PCM to the recognizer over WebSocket and
// collects partial transcript updates as they arrive. Results are
// near-real-time; StopListening simply hands the last transcript upstream.
type LiveSession struct {
	cfg    LiveConfig
	source Source
	dialer *websocket.Dialer

	mu         sync.Mutex
	writeMu    sync.Mutex
	listening  bool
	transcript string
	conn       *websocket.Conn
	stopSend   chan struct{}
	senderDone chan struct{}
	readerDone chan struct{}
}

// NewLiveSession creates a streaming capture session over the given source.
func NewLiveSession(cfg LiveConfig, source Source) *LiveSession {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	return &LiveSession{
		cfg:    cfg,
		source: source,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Available reports whether the platform exposes a live recognizer.
func (s *LiveSession) Available() bool {
	return s.cfg.URL != "" && s.source != nil
}

// Processing is always false on the live path: understanding happens upstream.
func (s *LiveSession) Processing() bool { return false }

// Transcript returns the latest partial transcript.
func (s *LiveSession) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// StartListening acquires the microphone, connects to the recognizer, and
// begins streaming. Calling it while already listening is a no-op. If the
// recognizer rejects the setup, everything is torn down and the session
// remains idle.
func (s *LiveSession) StartListening(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return nil
	}
	if !s.Available() {
		return ErrUnsupported
	}

	if err := s.source.Open(ctx); err != nil {
		return err
	}

	conn, err := s.connect(ctx)
	if err != nil {
		s.source.Close()
		return err
	}

	s.conn = conn
	s.transcript = ""
	s.stopSend = make(chan struct{})
	s.senderDone = make(chan struct{})
	s.readerDone = make(chan struct{})
	s.listening = true

	go s.readLoop(conn, s.readerDone)
	go s.sendLoop(conn, s.stopSend, s.senderDone)
	return nil
}

// StopListening stops streaming, releases the microphone, and returns the
// last known transcript.
func (s *LiveSession) StopListening(ctx context.Context) (string, error) {
	s.mu.Lock()
	if !s.listening {
		transcript := s.transcript
		s.mu.Unlock()
		return transcript, nil
	}
	conn := s.conn
	stopSend, senderDone, readerDone := s.stopSend, s.senderDone, s.readerDone
	s.mu.Unlock()

	close(stopSend)
	<-senderDone

	s.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	// Give the recognizer a moment to flush a final result.
	select {
	case <-readerDone:
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
	}

	s.teardown()

	s.mu.Lock()
	transcript := s.transcript
	s.mu.Unlock()
	return transcript, nil
}

// Close force-stops an abandoned session and releases all resources.
func (s *LiveSession) Close() error {
	s.mu.Lock()
	listening := s.listening
	stopSend := s.stopSend
	s.mu.Unlock()
	if listening {
		select {
		case <-stopSend:
		default:
			close(stopSend)
		}
	}
	s.teardown()
	return nil
}

func (s *LiveSession) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.listening {
		s.source.Close()
		s.listening = false
	}
}

// connect dials the recognizer and performs the config handshake. The session
// only counts as listening once the server acknowledges the config frame.
func (s *LiveSession) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if s.cfg.APIKey != "" {
		header.Add("Authorization", "Bearer "+s.cfg.APIKey)
	}

	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to recognizer: %w", err)
	}

	setup := map[string]any{
		"user": map[string]any{"uid": uuid.New().String()},
		"audio": map[string]any{
			"format":      "pcm",
			"sample_rate": s.cfg.SampleRate,
			"bits":        16,
			"channel":     1,
			"codec":       "raw",
		},
		"request": map[string]any{
			"model_name":     "asr",
			"enable_punc":    true,
			"enable_partial": true,
		},
	}
	setupJSON, err := json.Marshal(setup)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to marshal recognizer config: %w", err)
	}

	configFrame := buildFrame(msgTypeFullClientRequest, flagNoSequence, serializationJSON, compressionNone, 0, setupJSON)
	if err := conn.WriteMessage(websocket.BinaryMessage, configFrame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send recognizer config: %w", err)
	}

	_, ack, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("recognizer did not confirm start: %w", err)
	}
	msgType, _, payload, err := parseFrame(ack)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bad recognizer handshake: %w", err)
	}
	if msgType == msgTypeServerError {
		conn.Close()
		return nil, fmt.Errorf("recognizer rejected session: %s", string(payload))
	}

	return conn, nil
}

func (s *LiveSession) sendLoop(conn *websocket.Conn, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, s.cfg.ChunkSize)
	sequence := int32(2) // 0-1 are reserved by the protocol
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := s.source.Read(buf)
		if n > 0 {
			frame := buildFrame(msgTypeAudioOnlyRequest, flagPosSequence, serializationNone, compressionNone, sequence, buf[:n])
			s.writeMu.Lock()
			werr := conn.WriteMessage(websocket.BinaryMessage, frame)
			s.writeMu.Unlock()
			if werr != nil {
				log.Printf("Failed to stream audio frame: %v", werr)
				return
			}
			sequence++
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("Audio source read failed: %v", err)
			}
			return
		}
	}
}

func (s *LiveSession) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Recognizer stream ended: %v", err)
			}
			return
		}

		msgType, _, payload, err := parseFrame(message)
		if err != nil {
			log.Printf("Failed to parse recognizer frame: %v", err)
			continue
		}
		if msgType != msgTypeFullServerResponse || len(payload) == 0 {
			continue
		}

		var response struct {
			Result struct {
				Text string `json:"text"`
			} `json:"result"`
		}
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}
		if response.Result.Text != "" {
			s.mu.Lock()
			s.transcript = response.Result.Text
			s.mu.Unlock()
		}
	}
}
