// Package ipc defines the framed protocol between xsh remote clients and the
// xsh daemon.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Frame tags. Client-to-daemon tags are in 0x01-0x0F, daemon-to-client tags
// in 0x10-0x1F.
const (
	TagRequest   byte = 0x01 // C→S: JSON Request
	TagStdinData byte = 0x02 // C→S: raw stdin bytes
	TagStdinEOF  byte = 0x03 // C→S: stdin closed, no payload
	TagSignal    byte = 0x04 // C→S: JSON SignalMsg

	TagStdoutData byte = 0x10 // S→C: raw stdout bytes
	TagStderrData byte = 0x11 // S→C: raw stderr bytes
	TagExit       byte = 0x12 // S→C: JSON ExitResult
)

// MaxFrame bounds a single payload so a corrupt header cannot force a huge
// allocation.
const MaxFrame = 16 << 20

// Request asks the daemon to run one command line.
type Request struct {
	Line string            `json:"line"`
	Cwd  string            `json:"cwd"`
	Env  map[string]string `json:"env,omitempty"`
}

// ExitResult ends a response.
type ExitResult struct {
	Code  int    `json:"code"`
	Stop  bool   `json:"stop,omitempty"` // the line ran the exit builtin or failed fatally
	Error string `json:"error,omitempty"`
}

// SignalMsg carries a signal name from client to daemon.
type SignalMsg struct {
	Signal string `json:"signal"`
}

// WriteFrame writes [tag:1][len:4 big-endian][payload].
func WriteFrame(w io.Writer, tag byte, payload []byte) error {
	var header [5]byte
	header[0] = tag
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one frame and returns its tag and payload.
func ReadFrame(r io.Reader) (byte, []byte, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(header[1:])
	if length > MaxFrame {
		return 0, nil, fmt.Errorf("frame of %d bytes exceeds limit", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read frame payload: %w", err)
	}
	return header[0], payload, nil
}

// WriteJSON writes a frame with a JSON payload.
func WriteJSON(w io.Writer, tag byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return WriteFrame(w, tag, data)
}
