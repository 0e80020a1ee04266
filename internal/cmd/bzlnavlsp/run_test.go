package bzlnavlsp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := RunWithIO(context.Background(), []string{"-version"}, strings.NewReader(""), &stdout, &stderr)

	if code != 0 {
		t.Errorf("RunWithIO(-version) returned %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "bzlnav-lsp") {
		t.Errorf("RunWithIO(-version) output = %q, want to contain 'bzlnav-lsp'", stdout.String())
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := RunWithIO(context.Background(), []string{"-help"}, strings.NewReader(""), &stdout, &stderr)

	if code != 0 {
		t.Errorf("RunWithIO(-help) returned %d, want 0", code)
	}
	if !strings.Contains(stderr.String(), "JSON-RPC") {
		t.Errorf("RunWithIO(-help) stderr = %q, want usage text", stderr.String())
	}
}

func TestRun_EOFStopsServer(t *testing.T) {
	t.Setenv("BZLNAV_CONFIG", "")
	var stdout, stderr bytes.Buffer
	code := RunWithIO(context.Background(), nil, strings.NewReader(""), &stdout, &stderr)

	if code != 0 {
		t.Errorf("RunWithIO with closed stdin returned %d, want 0\nstderr: %s", code, stderr.String())
	}
}

// safeBuffer collects stderr from the server goroutine.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_Session(t *testing.T) {
	t.Setenv("BZLNAV_CONFIG", "")

	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()

	var stderr safeBuffer
	done := make(chan int, 1)
	go func() {
		done <- RunWithIO(context.Background(), nil, serverIn, serverOut, &stderr)
	}()

	send := func(body string) {
		t.Helper()
		if _, err := fmt.Fprintf(clientOut, "Content-Length: %d\r\n\r\n%s", len(body), body); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}
	reader := textproto.NewReader(bufio.NewReader(clientIn))
	recv := func() string {
		t.Helper()
		mime, err := reader.ReadMIMEHeader()
		if err != nil {
			t.Fatalf("reading response header: %v", err)
		}
		var length int
		if _, err := fmt.Sscanf(mime.Get("Content-Length"), "%d", &length); err != nil {
			t.Fatalf("bad Content-Length: %v", err)
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(reader.R, body); err != nil {
			t.Fatalf("reading response body: %v", err)
		}
		return string(body)
	}

	send(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	resp := recv()
	if !strings.Contains(resp, `"capabilities"`) {
		t.Errorf("initialize response = %s, want capabilities", resp)
	}
	if !strings.Contains(resp, "bzlnav-lsp") {
		t.Errorf("initialize response = %s, want the server name", resp)
	}

	send(`{"jsonrpc":"2.0","method":"initialized","params":{}}`)

	send(`{"jsonrpc":"2.0","id":2,"method":"shutdown"}`)
	resp = recv()
	if !strings.Contains(resp, `"id":2`) {
		t.Errorf("shutdown response = %s, want id 2", resp)
	}

	send(`{"jsonrpc":"2.0","method":"exit"}`)
	if err := clientOut.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("RunWithIO returned %d, want 0\nstderr: %s", code, stderr.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after exit")
	}
}
