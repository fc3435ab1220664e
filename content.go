package aeris

import (
	"bytes"
	"context"
	"io"
)

// Content is the tagged variant described in spec.md §3: a request or
// response body that may be fully buffered, streamed, sourced from the
// host server's receive callable, multipart, form-encoded, an SSE event
// source, or spooled to disk.
//
// Go has no sum types, so Content is an interface with a private marker
// method; each concrete type below is one spec.md variant.
type Content interface {
	// ContentType returns the media type of the content, or "" if
	// unknown (e.g. a Streamed content with no declared type).
	ContentType() string

	content()
}

// InMemoryContent is a fully buffered body of known length.
type InMemoryContent struct {
	Type string
	Data []byte
}

func (c *InMemoryContent) ContentType() string { return c.Type }
func (*InMemoryContent) content()              {}

// NewReader returns a fresh reader over the buffered data.
func (c *InMemoryContent) NewReader() io.Reader { return bytes.NewReader(c.Data) }

// ChunkSource opens a fresh read stream for a Streamed content. It is
// restartable only if the underlying producer itself is (spec.md §3).
type ChunkSource func(ctx context.Context) (io.ReadCloser, error)

// StreamedContent is an async-sourced body whose length may be unknown.
type StreamedContent struct {
	Type            string
	Open            ChunkSource
	DeclaredLength  *int64 // nil when unknown
}

func (c *StreamedContent) ContentType() string { return c.Type }
func (*StreamedContent) content()              {}

// ReceiveEvent is one message delivered by the host server's receive
// callable (spec.md §6): either an http.request body chunk or an
// http.disconnect notice.
type ReceiveEvent struct {
	Type        string // "http.request" | "http.disconnect"
	Body        []byte
	MoreBody    bool
}

// ReceiveFunc is the host server's async receive callable.
type ReceiveFunc func(ctx context.Context) (ReceiveEvent, error)

// ASGIContent reads chunks directly from the host server's receive
// callable until MoreBody is false or a disconnect event arrives, in
// which case reading fails with *MessageAbortedError (spec.md §3).
type ASGIContent struct {
	Type    string
	Receive ReceiveFunc
}

func (c *ASGIContent) ContentType() string { return c.Type }
func (*ASGIContent) content()              {}

// Reader returns an io.Reader that pulls chunks from c.Receive on demand.
func (c *ASGIContent) Reader(ctx context.Context) io.Reader {
	return &asgiReader{ctx: ctx, receive: c.Receive}
}

type asgiReader struct {
	ctx      context.Context
	receive  ReceiveFunc
	buf      []byte
	done     bool
}

func (r *asgiReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.done {
			return 0, io.EOF
		}

		ev, err := r.receive(r.ctx)
		if err != nil {
			return 0, err
		}

		if ev.Type == "http.disconnect" {
			return 0, &MessageAbortedError{}
		}

		r.buf = ev.Body
		r.done = !ev.MoreBody
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// FormPart is one part of a parsed multipart body (spec.md §4.7).
type FormPart struct {
	Name        string
	Data        []byte // set when the part was buffered in memory
	File        *SpooledFile
	ContentType string
	FileName    string
	Charset     string
}

// IsFile reports whether the part carries file content rather than a
// plain field value.
func (p *FormPart) IsFile() bool { return p.File != nil }

// Value returns the part's value as a string, reading its spooled file if
// it has one.
func (p *FormPart) Value() string {
	if p.File != nil {
		b, _ := p.File.ReadAll()
		return string(b)
	}
	return string(p.Data)
}

// MultipartContent is the parsed result of a multipart/form-data body.
type MultipartContent struct {
	Type  string
	Parts []*FormPart
}

func (c *MultipartContent) ContentType() string { return c.Type }
func (*MultipartContent) content()              {}

// ByName returns every part with the given field name.
func (c *MultipartContent) ByName(name string) []*FormPart {
	var out []*FormPart
	for _, p := range c.Parts {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// FormContent is a parsed application/x-www-form-urlencoded body.
type FormContent struct {
	Values map[string][]string
}

func (c *FormContent) ContentType() string { return "application/x-www-form-urlencoded" }
func (*FormContent) content()              {}

// Get returns the first value for key, or "".
func (c *FormContent) Get(key string) string {
	if vs := c.Values[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// SSEEvent is one Server-Sent Events frame (spec.md §6).
type SSEEvent struct {
	ID      string
	Event   string
	Data    string
	Retry   int // milliseconds; 0 means "omit"
	Comment string
}

// SSEEventSource lazily yields SSEEvents until ctx is done or the source
// is exhausted (returns io.EOF).
type SSEEventSource func(ctx context.Context) (*SSEEvent, error)

// ServerSentEventsContent is a lazily-produced SSE stream.
type ServerSentEventsContent struct {
	Next SSEEventSource
}

func (c *ServerSentEventsContent) ContentType() string { return "text/event-stream" }
func (*ServerSentEventsContent) content()              {}

// SpooledFileContent is a file-backed body after the in-memory spool
// threshold was exceeded (spec.md §3, §4.7).
type SpooledFileContent struct {
	Name     string
	FileName string
	Type     string
	Handle   *SpooledFile
	Size     int64
}

func (c *SpooledFileContent) ContentType() string { return c.Type }
func (*SpooledFileContent) content()              {}
