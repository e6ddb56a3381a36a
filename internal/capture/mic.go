package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FFmpegSource acquires the default microphone through an ffmpeg child
// process emitting raw s16le PCM on stdout.
type FFmpegSource struct {
	command    string
	sampleRate int

	mu      sync.Mutex
	stdout  io.ReadCloser
	process *os.Process
	waitErr <-chan error
}

// NewFFmpegSource creates a source. command defaults to "ffmpeg" on PATH.
func NewFFmpegSource(command string, sampleRate int) *FFmpegSource {
	if command == "" {
		command = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &FFmpegSource{command: command, sampleRate: sampleRate}
}

func defaultInputArgs() (format, device string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

// Open spawns ffmpeg and waits briefly to catch immediate device failures.
func (s *FFmpegSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process != nil {
		return nil
	}

	format, device := defaultInputArgs()
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", format,
		"-i", device,
		"-ac", "1",
		"-ar", strconv.Itoa(s.sampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s not installed", ErrUnsupported, s.command)
		}
		return fmt.Errorf("failed to start capture process: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case <-waitErr:
		return classifyDeviceError(stderr.String())
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	s.stdout = stdout
	s.process = cmd.Process
	s.waitErr = waitErr
	return nil
}

// Read returns the next PCM chunk from the capture process.
func (s *FFmpegSource) Read(buf []byte) (int, error) {
	s.mu.Lock()
	stdout := s.stdout
	s.mu.Unlock()
	if stdout == nil {
		return 0, errors.New("capture source is not open")
	}
	return stdout.Read(buf)
}

// Close interrupts the capture process and releases the device. Safe to call
// more than once.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process == nil {
		return nil
	}

	_ = s.process.Signal(os.Interrupt)
	select {
	case <-s.waitErr:
	case <-time.After(2 * time.Second):
		_ = s.process.Kill()
		<-s.waitErr
	}

	s.stdout = nil
	s.process = nil
	s.waitErr = nil
	return nil
}

// classifyDeviceError maps the capture process's complaint to one of the
// sentinel device errors.
func classifyDeviceError(stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "not authorized"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(stderr))
	case strings.Contains(msg, "no such"), strings.Contains(msg, "not found"), strings.Contains(msg, "cannot find"):
		return fmt.Errorf("%w: %s", ErrNoDevice, strings.TrimSpace(stderr))
	case strings.Contains(msg, "busy"), strings.Contains(msg, "in use"):
		return fmt.Errorf("%w: %s", ErrDeviceBusy, strings.TrimSpace(stderr))
	default:
		return fmt.Errorf("capture process exited: %s", strings.TrimSpace(stderr))
	}
}
