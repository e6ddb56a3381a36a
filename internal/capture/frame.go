package capture

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
)

// Binary frame protocol spoken by the streaming recognizer. Every frame is a
// 4-byte header, an optional big-endian sequence number, a payload size, and
// the payload itself.
const (
	protocolVersion = 0x1
	headerSize      = 0x1 // in 4-byte words

	msgTypeFullClientRequest  = 0x1
	msgTypeAudioOnlyRequest   = 0x2
	msgTypeFullServerResponse = 0x9
	msgTypeServerError        = 0xF

	flagNoSequence  = 0x0
	flagPosSequence = 0x1

	serializationNone = 0x0
	serializationJSON = 0x1

	compressionNone = 0x0
	compressionGzip = 0x1
)

func buildFrame(msgType, flags, serialization, compression byte, sequence int32, payload []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Write([]byte{
		(protocolVersion << 4) | headerSize,
		(msgType << 4) | flags,
		(serialization << 4) | compression,
		0x0, // reserved
	})
	if flags == flagPosSequence {
		binary.Write(buf, binary.BigEndian, sequence)
	}
	binary.Write(buf, binary.BigEndian, int32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

func parseFrame(frame []byte) (msgType byte, sequence int32, payload []byte, err error) {
	if len(frame) < 8 {
		return 0, 0, nil, fmt.Errorf("frame too short: %d bytes", len(frame))
	}

	msgType = (frame[1] >> 4) & 0x0F
	flags := frame[1] & 0x0F
	compression := frame[2] & 0x0F

	offset := 4
	if flags == flagPosSequence {
		if len(frame) < 12 {
			return 0, 0, nil, fmt.Errorf("sequenced frame too short: %d bytes", len(frame))
		}
		sequence = int32(binary.BigEndian.Uint32(frame[4:8]))
		offset = 8
	}

	size := int32(binary.BigEndian.Uint32(frame[offset : offset+4]))
	payload = frame[offset+4:]
	if int(size) >= 0 && int(size) <= len(payload) {
		payload = payload[:size]
	}

	if compression == compressionGzip {
		payload, err = gunzip(payload)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("failed to decompress payload: %w", err)
		}
	}
	return msgType, sequence, payload, nil
}

func gunzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
