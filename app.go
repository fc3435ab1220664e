package aeris

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// LifespanHook runs once during Application startup or shutdown (spec.md
// §6 "lifespan.startup"/"lifespan.shutdown").
type LifespanHook func(ctx context.Context) error

type exceptionHandlerEntry struct {
	matches func(error) bool
	handle  func(err error, req *Request) (*Response, error)
}

// Application is the orchestrator: it owns the router, the service
// container, the middleware pipeline, and the object pool, and dispatches
// both ordinary HTTP requests and WebSocket upgrades through the same
// middleware-wrapped routing path (spec.md §4.9 "Application orchestrator").
//
// The host server boundary itself (connection accept, TLS termination,
// HTTP framing) is explicitly out of scope for the core; Application
// implements http.Handler only as the concrete adapter to Go's own host
// server, the same role Air.ServeHTTP played for the teacher.
type Application struct {
	mu      sync.Mutex
	started bool

	Router     *Router
	Services   *ServiceContainer
	Middleware *MiddlewarePipeline
	Forwarded  *ForwardedPolicy
	Pool       *Pool
	Logger     *Logger
	Config     Config

	onStartup         []LifespanHook
	onShutdown        []LifespanHook
	exceptionHandlers []exceptionHandlerEntry
}

// NewApplication builds an Application from cfg, wiring its own router
// (sized by cfg.RouteCacheSize), a fresh service container, an empty
// middleware pipeline, and a production logger at the configured
// verbosity.
func NewApplication(cfg Config) *Application {
	return &Application{
		Router:     NewRouter(cfg.RouteCacheSize),
		Services:   NewServiceContainer(),
		Middleware: NewMiddlewarePipeline(),
		Pool:       newPool(),
		Logger:     NewLogger(cfg.DebugMode),
		Config:     cfg,
	}
}

// OnStartup registers a hook to run once, in registration order, when
// Startup is called.
func (a *Application) OnStartup(hook LifespanHook) {
	a.onStartup = append(a.onStartup, hook)
}

// OnShutdown registers a hook to run once, in registration order, when
// Shutdown is called.
func (a *Application) OnShutdown(hook LifespanHook) {
	a.onShutdown = append(a.onShutdown, hook)
}

// RegisterExceptionHandler installs a handler tried, in registration
// order, before the default statusForError/Problem mapping (spec.md §7
// "exception handler registry").
func (a *Application) RegisterExceptionHandler(matches func(error) bool, handle func(err error, req *Request) (*Response, error)) {
	a.exceptionHandlers = append(a.exceptionHandlers, exceptionHandlerEntry{matches: matches, handle: handle})
}

// Handle normalizes fn into a Handler and registers it on the router.
func (a *Application) Handle(method, pattern string, fn interface{}) error {
	route, err := NewRoute(method, pattern, nil)
	if err != nil {
		return err
	}
	handler, err := Normalize(route, fn, a.Services)
	if err != nil {
		return err
	}
	route.Handler = handler
	return a.Router.Add(route)
}

// HandleNamed is Handle plus a name usable with Router.URLFor.
func (a *Application) HandleNamed(method, pattern, name string, fn interface{}) error {
	route, err := NewRoute(method, pattern, nil)
	if err != nil {
		return err
	}
	route.Name = name
	handler, err := Normalize(route, fn, a.Services)
	if err != nil {
		return err
	}
	route.Handler = handler
	return a.Router.Add(route)
}

// Use adapts fn via NormalizeMiddleware and registers it in the pipeline
// under category/priority.
func (a *Application) Use(category MiddlewareCategory, priority int, name string, fn interface{}) error {
	mw, err := NormalizeMiddleware(fn, a.Services)
	if err != nil {
		return err
	}
	return a.Middleware.Register(CategorizedMiddleware{Name: name, Category: category, Priority: priority, Func: mw})
}

// Mount registers child under prefix+"/*" so every request beneath prefix
// is forwarded to it with RootPath extended exactly once.
func (a *Application) Mount(prefix string, child *Application) error {
	route, err := NewRoute("*", strings.TrimSuffix(prefix, "/")+"/*", nil)
	if err != nil {
		return err
	}
	mount := &Mount{Prefix: prefix, App: child}
	route.Handler = mount.Handler()
	return a.Router.Add(route)
}

// Startup runs the registered startup hooks once, then freezes the
// service container and locks the middleware pipeline (spec.md §5
// "Shared-resource policy"). Subsequent calls are no-ops.
func (a *Application) Startup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	for _, hook := range a.onStartup {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	a.Services.Freeze()
	a.Middleware.Lock()
	a.started = true
	return nil
}

// Shutdown runs the registered shutdown hooks, in registration order.
func (a *Application) Shutdown(ctx context.Context) error {
	for _, hook := range a.onShutdown {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

// HandleRequest composes the middleware pipeline around route matching
// and dispatch, and is the codepath shared by ServeHTTP and Mount
// forwarding (serveWebSocket composes the pipeline around its own matched
// route and does not go through here). A panic anywhere in the pipeline or the
// handler is recovered here and turned into an ordinary error, so it maps
// to a 500 Response through errorResponse/Problem instead of propagating
// out to net/http and aborting the connection (spec.md §4.5 "500 any
// other uncaught exception").
func (a *Application) HandleRequest(req *Request) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("aeris: handler panicked: %v", r)
		}
	}()

	final := func(req *Request) (*Response, error) {
		match := a.Router.Match(req.Method, req.Path())
		if match == nil {
			return nil, NewHTTPError(http.StatusNotFound, "")
		}
		req.PathParams = match.Params
		return match.Route.Handler(req)
	}
	return a.Middleware.Compose(final)(req)
}

// ServeHTTP is the net/http entry point: it upgrades WebSocket requests
// separately, and otherwise pools a Request, runs the trust-bounded
// forwarded-header rewrite (when configured), dispatches through
// HandleRequest, and writes the resulting Response back to w.
func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isWebSocketUpgrade(r) {
		a.serveWebSocket(w, r)
		return
	}

	req := a.Pool.Request()
	defer a.Pool.Put(req)
	req.reset(a, r)
	req.Services = a.Services
	req.pusher, _ = w.(http.Pusher)

	if a.Forwarded != nil {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		resolved, err := a.Forwarded.Resolve(req.Header, r.RemoteAddr, scheme, r.Host)
		if err != nil {
			a.writeResponse(w, req.Context(), a.errorResponse(err, req))
			return
		}
		req.ClientAddr = resolved.ClientIP
		req.ServerAddr = resolved.Host
		req.TLS = resolved.Scheme == "https"
	}

	resp, err := a.HandleRequest(req)
	if err != nil {
		if _, aborted := err.(*MessageAbortedError); aborted {
			// The client disconnected mid-handler; no response can be
			// written and none should be (spec.md §4.5, §5
			// "Cancellation & timeouts").
			return
		}
		resp = a.errorResponse(err, req)
	}
	a.writeResponse(w, req.Context(), resp)
}

// ListenAndServeH2C serves the application over cleartext HTTP/2 (h2c),
// wrapping ServeHTTP in golang.org/x/net/http2/h2c.NewHandler the same way
// the host framework offered h2c when TLS was disabled. Request.Push (see
// request.go) only takes effect for clients that negotiated HTTP/2 through
// this path or through a TLS listener that supports http.Pusher.
func (a *Application) ListenAndServeH2C(addr string) error {
	h2s := &http2.Server{}
	server := &http.Server{Addr: addr, Handler: h2c.NewHandler(a, h2s)}
	return server.ListenAndServe()
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		httpguts.HeaderValuesContainsToken(r.Header["Connection"], "upgrade")
}

func (a *Application) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	match := a.Router.Match(r.Method, r.URL.Path)
	if match == nil {
		http.NotFound(w, r)
		return
	}

	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Errorw("websocket upgrade failed", "error", err.Error())
		return
	}

	req := a.Pool.Request()
	defer a.Pool.Put(req)
	req.reset(a, r)
	req.Services = a.Services
	req.PathParams = match.Params
	req.WS = newWebSocket(conn)

	h := a.Middleware.Compose(match.Route.Handler)
	if _, err := h(req); err != nil {
		a.Logger.Errorw("websocket handler failed", "error", err.Error())
		req.WS.Close(1011)
	}
}

// errorResponse maps err to a Response, trying registered exception
// handlers first and falling back to Problem. Errors with no mapped
// status (statusForError returns 0) are logged as unexpected (spec.md
// §7).
func (a *Application) errorResponse(err error, req *Request) *Response {
	for _, entry := range a.exceptionHandlers {
		if entry.matches(err) {
			if resp, handlerErr := entry.handle(err, req); handlerErr == nil {
				return resp
			}
		}
	}
	if statusForError(err) == 0 {
		a.Logger.Errorw("unhandled error", "error", err.Error(), "path", req.Path())
	}
	return Problem(err, a.Config.ShowErrorDetails)
}

// writeResponse serializes resp onto w, dispatching on the concrete
// Content variant (spec.md §3).
func (a *Application) writeResponse(w http.ResponseWriter, ctx context.Context, resp *Response) {
	header := w.Header()
	for _, field := range resp.Header {
		header.Add(field.Name, field.Value)
	}
	w.WriteHeader(resp.Status)

	switch body := resp.Body.(type) {
	case nil:
	case *InMemoryContent:
		w.Write(body.Data)
	case *StreamedContent:
		rc, err := body.Open(ctx)
		if err != nil {
			return
		}
		defer rc.Close()
		io.Copy(w, rc)
	case *SpooledFileContent:
		data, err := body.Handle.ReadAll()
		if err != nil {
			return
		}
		w.Write(data)
		body.Handle.Close()
	case *ServerSentEventsContent:
		flusher, canFlush := w.(http.Flusher)
		for {
			ev, err := body.Next(ctx)
			if err != nil {
				return
			}
			if err := WriteSSEEvent(w, ev); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}
