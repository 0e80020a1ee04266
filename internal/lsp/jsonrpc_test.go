package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
)

func TestReadRequest(t *testing.T) {
	input := "Content-Length: 52\r\n\r\n{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"test\",\"params\":{}}"

	conn := NewConn(&mockConn{
		Reader: strings.NewReader(input),
		Writer: io.Discard,
	}, nil)

	req, err := conn.readRequest()
	if err != nil {
		t.Fatalf("readRequest failed: %v", err)
	}

	if req.Method != "test" {
		t.Errorf("Method = %q, want %q", req.Method, "test")
	}
	if req.ID == nil {
		t.Error("ID should not be nil")
	}
}

func TestReadRequest_MissingContentLength(t *testing.T) {
	conn := NewConn(&mockConn{
		Reader: strings.NewReader("Content-Type: application/json\r\n\r\n{}"),
		Writer: io.Discard,
	}, nil)

	if _, err := conn.readRequest(); err == nil {
		t.Fatal("readRequest should fail without Content-Length")
	}
}

func TestWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	conn := NewConn(&mockConn{
		Reader: strings.NewReader(""),
		Writer: &buf,
	}, nil)

	id := json.RawMessage(`1`)
	resp := &Response{
		JSONRPC: "2.0",
		ID:      &id,
		Result:  map[string]string{"status": "ok"},
	}

	if err := conn.writeMessage(resp); err != nil {
		t.Fatalf("writeMessage failed: %v", err)
	}

	header, body, ok := strings.Cut(buf.String(), "\r\n\r\n")
	if !ok {
		t.Fatalf("output %q has no header separator", buf.String())
	}
	length, err := strconv.Atoi(strings.TrimPrefix(header, "Content-Length: "))
	if err != nil {
		t.Fatalf("parsing header %q: %v", header, err)
	}
	if length != len(body) {
		t.Errorf("Content-Length = %d, want %d", length, len(body))
	}
	if !strings.Contains(body, `"result"`) {
		t.Error("output should contain result field")
	}
}

func TestNotify(t *testing.T) {
	var buf bytes.Buffer
	conn := NewConn(&mockConn{
		Reader: strings.NewReader(""),
		Writer: &buf,
	}, nil)

	err := conn.Notify(context.Background(), "window/logMessage", map[string]string{"message": "hi"})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `"method":"window/logMessage"`) {
		t.Errorf("output %q should contain the method", output)
	}
	if strings.Contains(output, `"id"`) {
		t.Errorf("notification %q should carry no id", output)
	}
}

func TestResponseError(t *testing.T) {
	err := &ResponseError{
		Code:    CodeMethodNotFound,
		Message: "method not found",
	}

	if err.Error() != "jsonrpc error -32601: method not found" {
		t.Errorf("Error() = %q, want %q", err.Error(), "jsonrpc error -32601: method not found")
	}
}

func TestHandlerFunc(t *testing.T) {
	called := false
	h := HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		called = true
		return "ok", nil
	})

	result, err := h.Handle(context.Background(), &Request{Method: "test"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "ok" {
		t.Errorf("result = %v, want %q", result, "ok")
	}
}

// TestRun_RoundTrip drives the read loop over pipes: a notification that
// must produce no response, then a request whose response the client
// reads back.
func TestRun_RoundTrip(t *testing.T) {
	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()
	defer clientOut.Close()

	conn := NewConn(&mockConn{Reader: serverIn, Writer: serverOut}, HandlerFunc(
		func(ctx context.Context, req *Request) (any, error) {
			return "pong", nil
		}))
	go func() {
		_ = conn.Run(context.Background())
	}()

	send := func(body string) {
		t.Helper()
		if _, err := fmt.Fprintf(clientOut, "Content-Length: %d\r\n\r\n%s", len(body), body); err != nil {
			t.Fatalf("sending %q: %v", body, err)
		}
	}
	send(`{"jsonrpc":"2.0","method":"noise"}`)
	send(`{"jsonrpc":"2.0","id":7,"method":"ping"}`)

	reader := textproto.NewReader(bufio.NewReader(clientIn))
	mime, err := reader.ReadMIMEHeader()
	if err != nil {
		t.Fatalf("reading response header: %v", err)
	}
	length, err := strconv.Atoi(mime.Get("Content-Length"))
	if err != nil {
		t.Fatalf("bad Content-Length %q: %v", mime.Get("Content-Length"), err)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(reader.R, body); err != nil {
		t.Fatalf("reading response body: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("parsing response %q: %v", body, err)
	}
	if resp.ID == nil || string(*resp.ID) != "7" {
		t.Errorf("response id = %v, want 7", resp.ID)
	}
	if resp.Result != "pong" {
		t.Errorf("result = %v, want %q", resp.Result, "pong")
	}
}

type mockConn struct {
	io.Reader
	io.Writer
}

func (m *mockConn) Close() error {
	return nil
}
