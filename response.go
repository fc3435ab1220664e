package aeris

import (
	"bytes"
	"encoding/json"

	"github.com/BurntSushi/toml"
	"github.com/aofei/mimesniffer"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"
)

// Response is the per-call outgoing message: a status, a header list, and
// a Content body (spec.md §3). Auto-wrap (spec.md §4.3) builds these from
// handler return values; handlers may also build one directly.
type Response struct {
	Status int
	Header Header
	Body   Content

	written bool
}

// newResponse returns a zero Response ready for reset.
func newResponse() *Response { return &Response{} }

// reset rebinds resp to a fresh in-flight response, for reuse out of a
// sync.Pool.
func (resp *Response) reset() {
	resp.Status = 200
	resp.Header = resp.Header[:0]
	resp.Body = nil
	resp.written = false
}

// SetCookie appends a Set-Cookie header. Invalid cookies are silently
// dropped, matching the host framework's SetCookie behavior.
func (resp *Response) SetCookie(c *Cookie) {
	if v := c.String(); v != "" {
		resp.Header.Add("Set-Cookie", v)
	}
}

// NoContent builds a 204 response with no body (the auto-wrap result for a
// handler returning nil, spec.md §4.3).
func NoContent() *Response {
	return &Response{Status: 204}
}

// Text builds a 200 text/plain response.
func Text(body string) *Response {
	return &Response{
		Status: 200,
		Header: Header{{Name: "Content-Type", Value: "text/plain; charset=utf-8"}},
		Body:   &InMemoryContent{Type: "text/plain; charset=utf-8", Data: []byte(body)},
	}
}

// JSON builds a 200 application/json response by marshaling v with
// encoding/json (the body-binder's own decode counterpart, JSONBinder, is
// likewise stdlib-based; spec.md §4.2 names no third-party JSON codec and
// none appears across the example pack, so this is the one Content-Type
// kept on the standard library — see DESIGN.md).
func JSON(v interface{}) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status: 200,
		Header: Header{{Name: "Content-Type", Value: "application/json"}},
		Body:   &InMemoryContent{Type: "application/json", Data: data},
	}, nil
}

// Bytes builds a response from a raw byte body. If contentType is empty it
// is sniffed from the body's first bytes (github.com/aofei/mimesniffer),
// matching the host framework's Response.Write sniffing behavior.
func Bytes(contentType string, body []byte) *Response {
	if contentType == "" {
		contentType = mimesniffer.Sniff(body)
	}
	return &Response{
		Status: 200,
		Header: Header{{Name: "Content-Type", Value: contentType}},
		Body:   &InMemoryContent{Type: contentType, Data: body},
	}
}

// MsgPack builds a 200 application/msgpack response, encoding v with
// github.com/vmihailenco/msgpack/v5.
func MsgPack(v interface{}) (*Response, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status: 200,
		Header: Header{{Name: "Content-Type", Value: "application/msgpack"}},
		Body:   &InMemoryContent{Type: "application/msgpack", Data: data},
	}, nil
}

// YAML builds a 200 application/yaml response, encoding v with
// gopkg.in/yaml.v3.
func YAML(v interface{}) (*Response, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status: 200,
		Header: Header{{Name: "Content-Type", Value: "application/yaml"}},
		Body:   &InMemoryContent{Type: "application/yaml", Data: data},
	}, nil
}

// TOML builds a 200 application/toml response, encoding v with
// github.com/BurntSushi/toml.
func TOML(v interface{}) (*Response, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return &Response{
		Status: 200,
		Header: Header{{Name: "Content-Type", Value: "application/toml"}},
		Body:   &InMemoryContent{Type: "application/toml", Data: buf.Bytes()},
	}, nil
}

// Protobuf builds a 200 application/x-protobuf response, encoding msg with
// google.golang.org/protobuf.
func Protobuf(msg proto.Message) (*Response, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status: 200,
		Header: Header{{Name: "Content-Type", Value: "application/x-protobuf"}},
		Body:   &InMemoryContent{Type: "application/x-protobuf", Data: data},
	}, nil
}

// Redirect builds a redirect response with the given status (expected to
// be a 3xx) and Location header.
func Redirect(status int, location string) *Response {
	return &Response{
		Status: status,
		Header: Header{{Name: "Location", Value: location}},
	}
}

// EventStream builds a text/event-stream response over a lazily-produced
// SSE source (spec.md §6).
func EventStream(source SSEEventSource) *Response {
	return &Response{
		Status: 200,
		Header: Header{{Name: "Content-Type", Value: "text/event-stream"}, {Name: "Cache-Control", Value: "no-cache"}},
		Body:   &ServerSentEventsContent{Next: source},
	}
}

// Problem builds a response from an error via statusForError, rendering a
// minimal JSON body ({"error": message}); used by the orchestrator's
// default exception handler. For the 500 (unexpected error) case, the
// message is replaced with a generic one unless showDetails is set
// (spec.md §7: "mapped to 500 with a generic body or, when
// show_error_details is enabled, a textual trace"); expected 4xx errors
// always carry their real message.
func Problem(err error, showDetails bool) *Response {
	status := statusForError(err)
	message := err.Error()
	if status == 0 {
		status = 500
	}
	if status == 500 && !showDetails {
		message = "internal server error"
	}
	data, _ := json.Marshal(map[string]string{"error": message})
	resp := &Response{
		Status: status,
		Header: Header{{Name: "Content-Type", Value: "application/json"}},
		Body:   &InMemoryContent{Type: "application/json", Data: data},
	}
	if challenge, ok := err.(*AuthenticateChallengeError); ok {
		resp.Header.Add("WWW-Authenticate", challenge.WWWAuthenticate())
	}
	if csrfErr, ok := err.(*CSRFError); ok {
		resp.Header.Add("Reason", csrfErr.Reason)
	}
	return resp
}
