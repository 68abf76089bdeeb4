// Package daemon runs command lines on behalf of xsh remote clients.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marcelocantos/xsh/internal/cli"
	"github.com/marcelocantos/xsh/internal/ipc"
)

// Server accepts connections on a unix socket and runs one command line per
// connection, relaying the stages' standard streams as frames.
type Server struct {
	shell       *cli.Shell
	idleTimeout time.Duration

	mu        sync.Mutex
	idleTimer *time.Timer
	active    sync.WaitGroup

	// Lines run one at a time: the working directory is process-wide and
	// cd must not leak between clients mid-line.
	runMu sync.Mutex
}

// New creates a daemon server that runs lines through shell.
func New(shell *cli.Shell, idleTimeout time.Duration) *Server {
	return &Server{
		shell:       shell,
		idleTimeout: idleTimeout,
	}
}

// Run listens on the standard socket path and calls Serve.
func (s *Server) Run(ctx context.Context) error {
	sockPath, err := ipc.SocketPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(sockPath), 0700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := cleanStaleSocket(sockPath); err != nil {
		return err
	}

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if err := os.Chmod(sockPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	if err := writePidFile(); err != nil {
		ln.Close()
		return fmt.Errorf("write pid: %w", err)
	}
	defer func() {
		os.Remove(sockPath)
		if pidPath, err := ipc.PidPath(); err == nil {
			os.Remove(pidPath)
		}
	}()

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or no connection
// arrives for the idle timeout. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	idleCtx, idleCancel := context.WithCancel(ctx)
	defer idleCancel()

	s.mu.Lock()
	s.idleTimer = time.AfterFunc(s.idleTimeout, idleCancel)
	s.mu.Unlock()

	go func() {
		<-idleCtx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-idleCtx.Done():
				s.active.Wait()
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		s.resetIdle()

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			defer conn.Close()
			defer s.resetIdle()
			s.handleConnection(idleCtx, conn)
		}()
	}
}

func (s *Server) resetIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idleTimer != nil {
		s.idleTimer.Reset(s.idleTimeout)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	tag, payload, err := ipc.ReadFrame(conn)
	if err != nil {
		writeExit(conn, 2, fmt.Sprintf("read request: %v", err))
		return
	}
	if tag != ipc.TagRequest {
		writeExit(conn, 2, fmt.Sprintf("expected request frame (0x%02x), got 0x%02x", ipc.TagRequest, tag))
		return
	}
	var req ipc.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		writeExit(conn, 2, fmt.Sprintf("unmarshal request: %v", err))
		return
	}

	reqCtx, reqCancel := context.WithCancel(ctx)
	defer reqCancel()

	// Stages read a real pipe so a child's exit never waits on client input.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		writeExit(conn, 3, fmt.Sprintf("pipe: %v", err))
		return
	}
	defer stdinR.Close()
	go s.demux(conn, stdinW, reqCancel)

	out := &frameSink{conn: conn}
	result := s.runLine(reqCtx, req, stdinR, out.stream(ipc.TagStdoutData), out.stream(ipc.TagStderrData))
	out.exit(result)
}

// demux feeds stdin frames into w and turns INT signals into cancellation.
func (s *Server) demux(conn net.Conn, w *os.File, cancel context.CancelFunc) {
	defer w.Close()
	for {
		tag, p, err := ipc.ReadFrame(conn)
		if err != nil {
			return
		}
		switch tag {
		case ipc.TagStdinData:
			if _, err := w.Write(p); err != nil {
				// Nobody reads stdin any more; keep serving signals.
				w.Close()
			}
		case ipc.TagStdinEOF:
			w.Close()
		case ipc.TagSignal:
			var sig ipc.SignalMsg
			if json.Unmarshal(p, &sig) == nil && sig.Signal == "INT" {
				cancel()
			}
		}
	}
}

func (s *Server) runLine(ctx context.Context, req ipc.Request, stdin io.Reader, stdout, stderr io.Writer) ipc.ExitResult {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if req.Cwd != "" {
		if err := os.Chdir(req.Cwd); err != nil {
			return ipc.ExitResult{Code: 1, Error: fmt.Sprintf("cwd: %v", err)}
		}
	}

	eng := *s.shell.Engine
	eng.Env = ipc.Environ(req.Env)
	sh := &cli.Shell{Engine: &eng, History: s.shell.History, Rules: s.shell.Rules}

	code, stop, _ := sh.Exec(ctx, req.Line, stdin, stdout, stderr)
	return ipc.ExitResult{Code: code, Stop: stop}
}

func writeExit(conn net.Conn, code int, msg string) {
	(&frameSink{conn: conn}).exit(ipc.ExitResult{Code: code, Error: msg})
}
