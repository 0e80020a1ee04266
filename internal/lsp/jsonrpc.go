// Package lsp implements a Language Server Protocol server for Bazel
// label navigation.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"sync"
)

// Request is a JSON-RPC request or notification.
type Request struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"` // nil for notifications
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *ResponseError   `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC error.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ErrMethodNotFound is returned for methods the server does not
// implement.
var ErrMethodNotFound = &ResponseError{
	Code:    CodeMethodNotFound,
	Message: "method not found",
}

// Handler processes incoming requests.
type Handler interface {
	Handle(ctx context.Context, req *Request) (result any, err error)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

// Conn speaks Content-Length framed JSON-RPC over an
// io.ReadWriteCloser, as editors expect on stdio.
type Conn struct {
	rwc     io.ReadWriteCloser
	headers *textproto.Reader
	writeMu sync.Mutex

	handler Handler
}

// NewConn creates a connection dispatching to handler.
func NewConn(rwc io.ReadWriteCloser, handler Handler) *Conn {
	return &Conn{
		rwc:     rwc,
		headers: textproto.NewReader(bufio.NewReader(rwc)),
		handler: handler,
	}
}

// Run reads and handles messages until EOF or error. Requests are
// handled concurrently; responses are serialized by the write lock.
func (c *Conn) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := c.readRequest()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading request: %w", err)
		}

		go c.handleRequest(ctx, req)
	}
}

func (c *Conn) readRequest() (*Request, error) {
	mime, err := c.headers.ReadMIMEHeader()
	if err != nil {
		return nil, err
	}
	lengthValue := mime.Get("Content-Length")
	if lengthValue == "" {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	contentLength, err := strconv.Atoi(lengthValue)
	if err != nil {
		return nil, fmt.Errorf("invalid Content-Length: %w", err)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.headers.R, body); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("parsing request: %w", err)
	}
	return &req, nil
}

func (c *Conn) handleRequest(ctx context.Context, req *Request) {
	result, err := c.handler.Handle(ctx, req)

	// Notifications get no response.
	if req.ID == nil {
		return
	}

	resp := Response{JSONRPC: "2.0", ID: req.ID}
	if err != nil {
		rpcErr, ok := err.(*ResponseError)
		if !ok {
			rpcErr = &ResponseError{Code: CodeInternalError, Message: err.Error()}
		}
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	_ = c.writeMessage(&resp)
}

// Notify sends a notification to the client.
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	req := Request{JSONRPC: "2.0", Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling params: %w", err)
		}
		req.Params = data
	}
	return c.writeMessage(&req)
}

func (c *Conn) writeMessage(msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := fmt.Fprintf(c.rwc, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := c.rwc.Write(body); err != nil {
		return fmt.Errorf("writing body: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.rwc.Close()
}
