package daemon

import (
	"io"
	"sync"

	"github.com/marcelocantos/xsh/internal/ipc"
)

// frameSink multiplexes a line's output streams and its exit result onto
// one connection. Stages write concurrently, so every frame is written
// whole under mu.
type frameSink struct {
	mu   sync.Mutex
	conn io.Writer
	err  error // first write failure; later writes are dropped
}

// stream returns a writer whose data arrives at the client tagged tag.
func (fs *frameSink) stream(tag byte) io.Writer {
	return &taggedStream{sink: fs, tag: tag}
}

func (fs *frameSink) send(tag byte, p []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.err != nil {
		return fs.err
	}
	// Large writes are split so no frame exceeds what the client accepts.
	for len(p) > 0 {
		n := min(len(p), ipc.MaxFrame)
		if err := ipc.WriteFrame(fs.conn, tag, p[:n]); err != nil {
			fs.err = err
			return err
		}
		p = p[n:]
	}
	return nil
}

// exit writes the final frame of a connection.
func (fs *frameSink) exit(res ipc.ExitResult) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.err != nil {
		return fs.err
	}
	return ipc.WriteJSON(fs.conn, ipc.TagExit, res)
}

type taggedStream struct {
	sink *frameSink
	tag  byte
}

func (ts *taggedStream) Write(p []byte) (int, error) {
	if err := ts.sink.send(ts.tag, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
