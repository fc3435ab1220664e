package aeris

import (
	"errors"
	"reflect"
	"sort"
	"sync"
)

// MiddlewareCategory buckets middleware into the fixed execution phases
// (spec.md §5): connection/init work runs first, then authentication, then
// authorization, then business logic, then outbound message shaping.
// Lower values run closer to the transport; higher values run closer to
// the handler.
type MiddlewareCategory int

const (
	CategoryInit     MiddlewareCategory = 10
	CategoryAuthn    MiddlewareCategory = 30
	CategoryAuthz    MiddlewareCategory = 40
	CategoryBusiness MiddlewareCategory = 50
	CategoryMessage  MiddlewareCategory = 60
)

// MiddlewareFunc wraps the next handler in the pipeline.
type MiddlewareFunc func(req *Request, next Handler) (*Response, error)

// CategorizedMiddleware is a middleware entry tagged with its execution
// phase and an intra-phase priority. Entries are folded right-to-left in
// (Category, Priority, registration order) order, so the lowest category's
// middleware is the outermost wrapper.
type CategorizedMiddleware struct {
	Name     string
	Category MiddlewareCategory
	Priority int
	Func     MiddlewareFunc
}

// MiddlewarePipeline holds the registered middleware for an Application or
// Mount and composes them into a single Handler. Registration is only
// permitted before Lock is called, mirroring the teacher's startup/runtime
// split for route and service registration.
type MiddlewarePipeline struct {
	mu      sync.Mutex
	entries []CategorizedMiddleware
	locked  bool
}

func NewMiddlewarePipeline() *MiddlewarePipeline {
	return &MiddlewarePipeline{}
}

func (p *MiddlewarePipeline) Register(cm CategorizedMiddleware) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locked {
		return errors.New("aeris: cannot register middleware after the pipeline has been locked")
	}
	if cm.Func == nil {
		return errors.New("aeris: middleware func must not be nil")
	}
	p.entries = append(p.entries, cm)
	return nil
}

func (p *MiddlewarePipeline) Lock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = true
}

// sorted returns entries ordered by Category then Priority, stable on
// registration order for ties.
func (p *MiddlewarePipeline) sorted() []CategorizedMiddleware {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CategorizedMiddleware, len(p.entries))
	copy(out, p.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Priority < out[j].Priority
	})
	return out
}

// Compose folds the pipeline around final right-to-left: h0 = final, the
// last sorted entry wraps h0, and each earlier entry wraps the result, so
// entries[0] (the lowest-category middleware) ends up outermost.
func (p *MiddlewarePipeline) Compose(final Handler) Handler {
	entries := p.sorted()
	h := final
	for i := len(entries) - 1; i >= 0; i-- {
		mw := entries[i]
		next := h
		h = func(req *Request) (*Response, error) {
			return mw.Func(req, next)
		}
	}
	return h
}

var handlerType = reflect.TypeOf(Handler(nil))

// NormalizeMiddleware adapts an arbitrary middleware function into a
// MiddlewareFunc, the same way Normalize adapts a route handler. fn must
// have the shape func(*Request, Handler[, P]) (R, error) or
// func(*Request, Handler[, P]) error (the latter yields a 204 response when
// it returns nil), where Handler is
// the "next" in the chain and P is an optional struct of services/scope
// values resolved the same way planStruct resolves a route handler's
// parameters (route captures are never available to middleware, since a
// middleware can run before routing has even matched).
func NormalizeMiddleware(fn interface{}, services *ServiceContainer) (MiddlewareFunc, error) {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()

	if fnType.Kind() != reflect.Func {
		return nil, errors.New("aeris: middleware must be a function")
	}
	if fnType.NumIn() < 2 || fnType.In(0) != requestPtrType || fnType.In(1) != handlerType {
		return nil, errors.New("aeris: middleware's first two parameters must be (*aeris.Request, aeris.Handler)")
	}
	if fnType.NumIn() > 3 {
		return nil, errors.New("aeris: middleware takes at most (*aeris.Request, aeris.Handler, params struct)")
	}
	if fnType.NumOut() < 1 || fnType.NumOut() > 2 {
		return nil, errors.New("aeris: middleware must return (result, error) or (error)")
	}
	if !fnType.Out(fnType.NumOut() - 1).Implements(errorType) {
		return nil, errors.New("aeris: middleware's last return value must be error")
	}

	var plan *structPlan
	if fnType.NumIn() == 3 {
		p, err := planStruct(fnType.In(2), nil, services)
		if err != nil {
			return nil, err
		}
		plan = p
	}

	hasResult := fnType.NumOut() == 2

	return func(req *Request, next Handler) (*Response, error) {
		args := []reflect.Value{reflect.ValueOf(req), reflect.ValueOf(next)}

		if plan != nil {
			dest := reflect.New(fnType.In(2))
			if err := bindStruct(plan, req, dest); err != nil {
				return nil, err
			}
			args = append(args, dest.Elem())
		}

		out := fnVal.Call(args)

		errVal := out[len(out)-1]
		if !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}

		if !hasResult {
			return NoContent(), nil
		}

		return autoWrap(out[0])
	}, nil
}
