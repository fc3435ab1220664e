package aeris

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// Request is the per-call façade over one HTTP (or WebSocket handshake)
// request. It exclusively owns its own state for the lifetime of the call;
// middlewares borrow and mutate it sequentially, never concurrently
// (spec.md §3 "Ownership").
type Request struct {
	App *Application

	Method string

	// URL is the parsed request-target. RawPath and RootPath are kept
	// separate from URL.Path so that mount forwarding never has to
	// mutate them (spec.md §4.1 "Mounts", invariant 8).
	URL      *URL
	RawPath  string
	RootPath string
	Proto    string

	Header     Header
	PathParams map[string]string

	Body          Content
	ContentLength int64

	ClientAddr string
	ServerAddr string
	TLS        bool

	Services *ServiceContainer
	Identity *Identity

	// WS is set once a WebSocket handshake has been accepted for this
	// exchange; nil for ordinary HTTP requests.
	WS *WebSocket

	// Values holds arbitrary per-request state set by middlewares and
	// read back later in the same pipeline (e.g. a resolved tenant, a
	// trace id).
	Values map[string]interface{}

	ctx        context.Context
	httpReq    *http.Request
	cookies    map[string]string
	cookiesSet bool
	query      map[string][]string
	querySet   bool
	pusher     http.Pusher
}

// Push initiates an HTTP/2 server push for target, mirroring the host
// framework's Response.Push. It returns http.ErrNotSupported when the
// underlying connection isn't HTTP/2 or the client disabled server push.
func (req *Request) Push(target string, opts *http.PushOptions) error {
	if req.pusher == nil {
		return http.ErrNotSupported
	}
	return req.pusher.Push(target, opts)
}

// newRequest returns a zero Request ready for reset.
func newRequest() *Request {
	return &Request{}
}

// reset rebinds req to a fresh incoming *http.Request, for reuse out of a
// sync.Pool (spec.md §7 "Per-request state is exclusively owned by the
// handling task").
func (req *Request) reset(app *Application, r *http.Request) {
	req.App = app
	req.Method = r.Method
	req.URL = ParseURL(r.URL.RequestURI())
	req.RawPath = r.URL.Path
	req.RootPath = ""
	req.Proto = r.Proto
	req.ContentLength = r.ContentLength
	req.ClientAddr = r.RemoteAddr
	req.ServerAddr = r.Host
	req.TLS = r.TLS != nil
	req.Identity = nil
	req.PathParams = nil
	req.WS = nil

	req.Header = req.Header[:0]
	for name, values := range r.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	req.Body = &ASGIContent{
		Type: req.Header.Get("Content-Type"),
		Receive: func(ctx context.Context) (ReceiveEvent, error) {
			buf := make([]byte, 32*1024)
			n, err := r.Body.Read(buf)
			if err != nil && err != io.EOF {
				return ReceiveEvent{}, err
			}
			return ReceiveEvent{Type: "http.request", Body: buf[:n], MoreBody: err == nil}, nil
		},
	}

	if req.Values != nil {
		for k := range req.Values {
			delete(req.Values, k)
		}
	} else {
		req.Values = make(map[string]interface{})
	}

	req.ctx = r.Context()
	req.httpReq = r
	req.cookies = nil
	req.cookiesSet = false
	req.query = nil
	req.querySet = false
}

// Context returns the request's context, derived from the underlying
// *http.Request and cancelled on client disconnect.
func (req *Request) Context() context.Context { return req.ctx }

// Path is the application-relative path the router should match against:
// RawPath with RootPath stripped, per spec.md §4.1 ("The child computes
// its application-relative path by stripping root_path from path").
func (req *Request) Path() string {
	if req.RootPath == "" {
		return req.RawPath
	}
	return strings.TrimPrefix(req.RawPath, req.RootPath)
}

// Query returns the parsed query multimap, computed lazily and cached.
func (req *Request) Query() map[string][]string {
	if !req.querySet {
		req.query = req.URL.QueryMultimap()
		req.querySet = true
	}
	return req.query
}

// QueryValue returns the first query value for key, or "".
func (req *Request) QueryValue(key string) string {
	if vs := req.Query()[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Cookies returns the request's cookies as a name → value map, parsed
// lazily from the Cookie header.
func (req *Request) Cookies() map[string]string {
	if !req.cookiesSet {
		req.cookies = ParseCookieHeader(req.Header.Get("Cookie"))
		req.cookiesSet = true
	}
	return req.cookies
}

// Cookie returns the named cookie's value.
func (req *Request) Cookie(name string) (string, bool) {
	v, ok := req.Cookies()[name]
	return v, ok
}

// PathParam returns a captured route parameter.
func (req *Request) PathParam(name string) (string, bool) {
	v, ok := req.PathParams[name]
	return v, ok
}

// BodyBytes fully reads and buffers the request body. Subsequent calls
// return the same bytes.
func (req *Request) BodyBytes() ([]byte, error) {
	switch b := req.Body.(type) {
	case *InMemoryContent:
		return b.Data, nil
	case *ASGIContent:
		data, err := io.ReadAll(b.Reader(req.ctx))
		if err != nil {
			return nil, err
		}
		req.Body = &InMemoryContent{Type: b.Type, Data: data}
		return data, nil
	default:
		return nil, nil
	}
}


// HTTPRequest returns the underlying *http.Request, for protocol upgrades
// (used by the WebSocket handshake) and other host-server-level access.
func (req *Request) HTTPRequest() *http.Request { return req.httpReq }
