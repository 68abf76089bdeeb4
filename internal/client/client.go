// Package client sends command lines to the xsh daemon and relays their
// standard streams.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/marcelocantos/xsh/internal/ipc"
)

// Relay sends req over conn, pumps stdin to the daemon and copies the
// daemon's output frames to stdout and stderr until the exit frame.
func Relay(ctx context.Context, conn net.Conn, req *ipc.Request,
	stdin io.Reader, stdout, stderr io.Writer) (ipc.ExitResult, error) {

	// The stdin pump and signal forwarding both write frames.
	w := &frameSender{w: conn}

	if err := w.json(ipc.TagRequest, req); err != nil {
		return ipc.ExitResult{Code: 2}, fmt.Errorf("send request: %w", err)
	}

	// The pump may still be blocked reading stdin when the line finishes;
	// its frames then fail on the closed connection.
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := stdin.Read(buf)
			if n > 0 {
				if w.frame(ipc.TagStdinData, buf[:n]) != nil {
					return
				}
			}
			if err != nil {
				w.frame(ipc.TagStdinEOF, nil)
				return
			}
		}
	}()

	stop := context.AfterFunc(ctx, func() {
		w.json(ipc.TagSignal, ipc.SignalMsg{Signal: "INT"})
	})
	defer stop()

	for {
		tag, payload, err := ipc.ReadFrame(conn)
		if err != nil {
			return ipc.ExitResult{Code: 2}, fmt.Errorf("read daemon frame: %w", err)
		}
		switch tag {
		case ipc.TagStdoutData:
			stdout.Write(payload)
		case ipc.TagStderrData:
			stderr.Write(payload)
		case ipc.TagExit:
			var res ipc.ExitResult
			if err := json.Unmarshal(payload, &res); err != nil {
				return ipc.ExitResult{Code: 2}, fmt.Errorf("unmarshal exit: %w", err)
			}
			return res, nil
		}
	}
}

// Connect dials a running daemon.
func Connect() (net.Conn, error) {
	sockPath, err := ipc.SocketPath()
	if err != nil {
		return nil, err
	}
	return net.Dial("unix", sockPath)
}

var spawnDelays = []time.Duration{
	10 * time.Millisecond,
	20 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
	500 * time.Millisecond,
}

// ConnectOrSpawn connects to the daemon, starting `selfPath daemon` in its
// own session first if none is running.
func ConnectOrSpawn(ctx context.Context, selfPath string) (net.Conn, error) {
	if conn, err := Connect(); err == nil {
		return conn, nil
	}

	cmd := exec.Command(selfPath, "daemon")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn daemon: %w", err)
	}
	cmd.Process.Release()

	for _, d := range spawnDelays {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
		if conn, err := Connect(); err == nil {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("daemon did not start within timeout")
}

// frameSender writes whole frames from concurrent goroutines.
type frameSender struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *frameSender) frame(tag byte, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ipc.WriteFrame(s.w, tag, payload)
}

func (s *frameSender) json(tag byte, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ipc.WriteJSON(s.w, tag, v)
}
