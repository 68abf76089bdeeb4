package ipc

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		tag     byte
		payload []byte
	}{
		{"request", TagRequest, []byte(`{"line":"ls | wc -l"}`)},
		{"stdin data", TagStdinData, []byte("hello world")},
		{"stdin eof", TagStdinEOF, nil},
		{"stdout data", TagStdoutData, []byte("output here")},
		{"exit", TagExit, []byte(`{"code":0}`)},
		{"empty payload", TagStderrData, []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.tag, tt.payload); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}
			gotTag, gotPayload, err := ReadFrame(&buf)
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if gotTag != tt.tag {
				t.Errorf("tag = 0x%02x, want 0x%02x", gotTag, tt.tag)
			}
			if !bytes.Equal(gotPayload, tt.payload) {
				t.Errorf("payload = %q, want %q", gotPayload, tt.payload)
			}
		})
	}
}

func TestRequestFrame(t *testing.T) {
	req := Request{
		Line: "cat notes | sort > sorted",
		Cwd:  "/tmp",
		Env:  map[string]string{"HOME": "/home/test"},
	}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, TagRequest, req); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	tag, payload, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if tag != TagRequest {
		t.Errorf("tag = 0x%02x, want 0x%02x", tag, TagRequest)
	}
	var got Request
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Line != req.Line || got.Cwd != req.Cwd || got.Env["HOME"] != "/home/test" {
		t.Errorf("request = %+v, want %+v", got, req)
	}
}

func TestExitResultStop(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, TagExit, ExitResult{Code: 3, Stop: true}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	_, payload, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	var got ExitResult
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Code != 3 || !got.Stop {
		t.Errorf("exit = %+v, want code 3 with stop", got)
	}
}

func TestSequentialFrames(t *testing.T) {
	var buf bytes.Buffer
	frames := []struct {
		tag     byte
		payload []byte
	}{
		{TagStdoutData, []byte("line 1\n")},
		{TagStderrData, []byte("xsh: command not found: nope\n")},
		{TagStdoutData, []byte("line 2\n")},
		{TagExit, []byte(`{"code":1}`)},
	}
	for _, f := range frames {
		if err := WriteFrame(&buf, f.tag, f.payload); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	for i, want := range frames {
		tag, payload, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("frame %d: ReadFrame: %v", i, err)
		}
		if tag != want.tag || !bytes.Equal(payload, want.payload) {
			t.Errorf("frame %d = (0x%02x, %q), want (0x%02x, %q)", i, tag, payload, want.tag, want.payload)
		}
	}
	if _, _, err := ReadFrame(&buf); err != io.EOF {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	if _, _, err := ReadFrame(bytes.NewReader([]byte{0x01, 0x00, 0x00})); err == nil {
		t.Error("expected error for truncated header")
	}

	var buf bytes.Buffer
	buf.Write([]byte{TagStdoutData, 0x00, 0x00, 0x00, 0x0a})
	buf.WriteString("abc")
	if _, _, err := ReadFrame(&buf); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	r := bytes.NewReader([]byte{TagStdoutData, 0xff, 0xff, 0xff, 0xff})
	if _, _, err := ReadFrame(r); err == nil {
		t.Error("expected error for oversized frame")
	}
}

func TestCaptureEnv(t *testing.T) {
	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("LC_ALL", "C")
	t.Setenv("XSH_DEBUG", "1")
	t.Setenv("SECRET_TOKEN", "hunter2")

	env := CaptureEnv()
	if env["PATH"] != "/usr/bin:/bin" || env["LC_ALL"] != "C" || env["XSH_DEBUG"] != "1" {
		t.Errorf("missing forwarded variables: %v", env)
	}
	if _, ok := env["SECRET_TOKEN"]; ok {
		t.Error("SECRET_TOKEN should not be forwarded")
	}
}

func TestEnviron(t *testing.T) {
	if got := Environ(nil); got != nil {
		t.Errorf("Environ(nil) = %v, want nil", got)
	}
	got := Environ(map[string]string{"PATH": "/bin", "HOME": "/root"})
	want := []string{"HOME=/root", "PATH=/bin"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Environ = %v, want %v", got, want)
	}
}

func TestSocketPathUsesRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	path, err := SocketPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != "/run/user/1000/xsh/daemon.sock" {
		t.Errorf("SocketPath = %q", path)
	}
}
