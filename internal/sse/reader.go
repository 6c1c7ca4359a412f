// Package sse reads the backend's text/event-stream responses. Each event
// carries one or more `data: <json>` lines; payloads hold incremental
// content, progress fields and a terminal done marker.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Frame is one decoded data payload.
type Frame struct {
	// Content is nil when the payload has no content field. An empty string
	// is a real, if no-op, delta.
	Content *string
	Status  string
	Message string
	Done    bool
	Error   bool
	Raw     json.RawMessage

	errText string
}

// Delta returns the content, or "" when absent.
func (f Frame) Delta() string {
	if f.Content == nil {
		return ""
	}
	return *f.Content
}

// Result is what a stream produced once it stopped.
type Result struct {
	// FullText is the terminal frame's full_response when present, otherwise
	// the concatenation of every content delta.
	FullText string
	// Terminal is the raw terminal payload, nil when the stream ended early.
	Terminal json.RawMessage
	// Done is false when the stream closed without a terminal frame.
	Done bool
}

// Decode unmarshals the terminal payload into v. It is a no-op when the
// stream ended without one.
func (r Result) Decode(v any) error {
	if len(r.Terminal) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Terminal, v); err != nil {
		return fmt.Errorf("decode terminal frame: %w", err)
	}
	return nil
}

// StreamError is an error frame sent by the server. It aborts the stream.
type StreamError struct {
	Message string
	Raw     json.RawMessage
}

func (e *StreamError) Error() string {
	return "stream error: " + e.Message
}

// Handler receives incremental output from Read.
type Handler struct {
	// OnDelta runs for every non-empty content delta, in order.
	OnDelta func(delta string)
	// OnProgress runs for frames carrying a status or message.
	OnProgress func(status, message string)
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger malformed lines are reported to.
func WithLogger(l *zerolog.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// Reader is a pull iterator over the frames of one stream. It is finite and
// not restartable.
type Reader struct {
	scanner *bufio.Scanner
	logger  *zerolog.Logger

	dataLines [][]byte
	pending   []Frame
	aggregate strings.Builder
	result    Result
	eof       bool
	finished  bool
	err       error
}

// NewReader wraps body. The caller still owns closing it.
func NewReader(body io.Reader, opts ...Option) *Reader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	r := &Reader{scanner: scanner}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		nop := zerolog.Nop()
		r.logger = &nop
	}
	return r
}

// Next returns the next frame in arrival order. After the terminal frame, or
// when the body ends, it returns io.EOF. An error frame yields *StreamError,
// and every later call returns the same error.
func (r *Reader) Next() (Frame, error) {
	for {
		if r.finished {
			if r.err != nil {
				return Frame{}, r.err
			}
			return Frame{}, io.EOF
		}
		if len(r.pending) > 0 {
			f := r.pending[0]
			r.pending = r.pending[1:]
			return r.apply(f)
		}
		if r.eof {
			r.finish(Result{FullText: r.aggregate.String()}, nil)
			continue
		}
		if err := r.fill(); err != nil {
			r.finish(Result{FullText: r.aggregate.String()}, fmt.Errorf("read stream: %w", err))
		}
	}
}

// Result returns the outcome so far. It is final once Next returned io.EOF.
func (r *Reader) Result() Result {
	if !r.finished {
		return Result{FullText: r.aggregate.String()}
	}
	return r.result
}

func (r *Reader) apply(f Frame) (Frame, error) {
	switch {
	case f.Error:
		err := &StreamError{Message: f.errText, Raw: f.Raw}
		r.finish(Result{FullText: r.aggregate.String()}, err)
		return Frame{}, err
	case f.Done:
		res := Result{FullText: r.aggregate.String(), Terminal: f.Raw, Done: true}
		if full := gjson.GetBytes(f.Raw, "full_response"); full.Exists() && full.Type != gjson.Null {
			res.FullText = full.String()
		}
		r.finish(res, nil)
		return f, nil
	}
	if f.Content != nil {
		r.aggregate.WriteString(*f.Content)
	}
	return f, nil
}

func (r *Reader) finish(res Result, err error) {
	r.finished = true
	r.result = res
	r.err = err
	r.pending = nil
}

// fill scans until at least one event has been decoded or the body ends.
func (r *Reader) fill() error {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		// Blank line indicates end of current event
		if len(bytes.TrimSpace(line)) == 0 {
			r.flushEvent()
			if len(r.pending) > 0 {
				return nil
			}
			continue
		}
		if bytes.HasPrefix(line, []byte(":")) {
			continue
		}
		if bytes.HasPrefix(line, []byte("data:")) {
			payload := bytes.TrimPrefix(line, []byte("data:"))
			if len(payload) > 0 && payload[0] == ' ' {
				payload = payload[1:]
			}
			cp := make([]byte, len(payload))
			copy(cp, payload)
			r.dataLines = append(r.dataLines, cp)
		}
		// event:, id: and retry: fields carry nothing for these streams
	}
	r.eof = true
	// Flush any trailing event without terminating blank line
	r.flushEvent()
	return r.scanner.Err()
}

// flushEvent decodes every data line of the current event on its own, so a
// bad line never takes its neighbours down with it.
func (r *Reader) flushEvent() {
	for _, raw := range r.dataLines {
		if f, ok := r.decode(raw); ok {
			r.pending = append(r.pending, f)
		}
	}
	r.dataLines = r.dataLines[:0]
}

func (r *Reader) decode(raw []byte) (Frame, bool) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return Frame{}, false
	}
	if bytes.Equal(payload, []byte("[DONE]")) {
		return Frame{Done: true}, true
	}
	if !gjson.ValidBytes(payload) {
		r.logger.Warn().Str("line", truncate(payload, 200)).Msg("Skipping malformed SSE data line")
		return Frame{}, false
	}
	parsed := gjson.ParseBytes(payload)
	if !parsed.IsObject() {
		r.logger.Warn().Str("line", truncate(payload, 200)).Msg("Skipping non-object SSE payload")
		return Frame{}, false
	}

	f := Frame{
		Status:  parsed.Get("status").String(),
		Message: parsed.Get("message").String(),
		Done:    parsed.Get("done").Type == gjson.True,
		Raw:     json.RawMessage(payload),
	}
	if c := parsed.Get("content"); c.Exists() && c.Type != gjson.Null {
		s := c.String()
		f.Content = &s
	}

	errField := parsed.Get("error")
	if errField.Type == gjson.True || (errField.Type == gjson.String && errField.Str != "") {
		f.Error = true
		f.errText = firstNonEmpty(
			parsed.Get("message").String(),
			parsed.Get("detail").String(),
			errField.Str,
			"unknown stream error",
		)
	}
	return f, true
}

// Read drains body, reporting deltas and progress to h, and returns the
// final result. A server error frame is returned as *StreamError; a body
// that ends without a terminal frame is not an error.
func Read(ctx context.Context, body io.Reader, h Handler, opts ...Option) (Result, error) {
	r := NewReader(body, opts...)
	for {
		if err := ctx.Err(); err != nil {
			return r.Result(), err
		}
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return r.Result(), nil
		}
		if err != nil {
			return r.Result(), err
		}
		if (f.Status != "" || f.Message != "") && h.OnProgress != nil {
			h.OnProgress(f.Status, f.Message)
		}
		if !f.Done && f.Delta() != "" && h.OnDelta != nil {
			h.OnDelta(f.Delta())
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
