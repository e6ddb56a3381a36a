// Package capture produces the user's utterance as either a live transcript
// (streaming recognizer) or a recorded audio payload (record-then-upload).
// Both implementations sit behind the Session interface and must release the
// microphone on stop, on error, and on Close.
package capture

import (
	"context"
	"encoding/binary"
	"errors"
)

// Classified device acquisition failures. The UI maps each to an actionable
// message instead of one generic capture error.
var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoDevice         = errors.New("no microphone found")
	ErrDeviceBusy       = errors.New("microphone is in use by another application")
	ErrUnsupported      = errors.New("speech capture is not supported on this platform")
)

// Session is one capture back-end. StartListening is idempotent while already
// listening; StopListening returns the final transcript, empty if none.
type Session interface {
	Available() bool
	StartListening(ctx context.Context) error
	StopListening(ctx context.Context) (string, error)
	Transcript() string
	Processing() bool
	Close() error
}

// Source abstracts the platform microphone. Open acquires the device and is
// where permission errors surface; Read returns raw PCM frames; Close
// releases the device and must be safe to call more than once.
type Source interface {
	Open(ctx context.Context) error
	Read(buf []byte) (int, error)
	Close() error
}

// Select picks the capture back-end once per process: the live recognizer
// when it self-reports available, the recorder otherwise.
func Select(live, recorder Session) Session {
	if live != nil && live.Available() {
		return live
	}
	return recorder
}

// wavHeader builds the 44-byte RIFF header for 16-bit mono PCM.
func wavHeader(dataLen, sampleRate int) []byte {
	h := make([]byte, 44)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataLen))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(h[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(h[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(h[34:36], 16)                   // bits per sample
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataLen))
	return h
}

// EncodeWAV wraps raw PCM samples in a WAV container.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	out := make([]byte, 0, 44+len(pcm))
	out = append(out, wavHeader(len(pcm), sampleRate)...)
	return append(out, pcm...)
}
