package aeris

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingMiddleware(tag string, trace *[]string) MiddlewareFunc {
	return func(req *Request, next Handler) (*Response, error) {
		*trace = append(*trace, tag+":before")
		resp, err := next(req)
		*trace = append(*trace, tag+":after")
		return resp, err
	}
}

func TestMiddlewarePipelineOrdersByCategoryThenPriority(t *testing.T) {
	p := NewMiddlewarePipeline()
	var trace []string

	require.NoError(t, p.Register(CategorizedMiddleware{Name: "business", Category: CategoryBusiness, Func: recordingMiddleware("business", &trace)}))
	require.NoError(t, p.Register(CategorizedMiddleware{Name: "authz", Category: CategoryAuthz, Func: recordingMiddleware("authz", &trace)}))
	require.NoError(t, p.Register(CategorizedMiddleware{Name: "authn", Category: CategoryAuthn, Func: recordingMiddleware("authn", &trace)}))

	final := func(req *Request) (*Response, error) {
		trace = append(trace, "handler")
		return NoContent(), nil
	}

	h := p.Compose(final)
	_, err := h(requestFor(t, "/"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"authn:before", "authz:before", "business:before",
		"handler",
		"business:after", "authz:after", "authn:after",
	}, trace)
}

func TestMiddlewarePipelineRejectsRegistrationAfterLock(t *testing.T) {
	p := NewMiddlewarePipeline()
	p.Lock()
	err := p.Register(CategorizedMiddleware{Category: CategoryInit, Func: func(req *Request, next Handler) (*Response, error) { return next(req) }})
	assert.Error(t, err)
}

func TestNormalizeMiddlewareCallsNextAndWrapsResult(t *testing.T) {
	fn := func(req *Request, next Handler) (string, error) {
		_, err := next(req)
		if err != nil {
			return "", err
		}
		return "wrapped", nil
	}
	mw, err := NormalizeMiddleware(fn, nil)
	require.NoError(t, err)

	resp, err := mw(requestFor(t, "/"), func(req *Request) (*Response, error) { return NoContent(), nil })
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "wrapped", string(resp.Body.(*InMemoryContent).Data))
}

func TestNormalizeMiddlewareResolvesServiceParam(t *testing.T) {
	type params struct {
		Clock string
	}
	services := NewServiceContainer()
	require.NoError(t, services.RegisterSingleton("Clock", "fixed-clock"))

	fn := func(req *Request, next Handler, p params) (*Response, error) {
		req.Values["clock"] = p.Clock
		return next(req)
	}
	mw, err := NormalizeMiddleware(fn, services)
	require.NoError(t, err)

	req := requestFor(t, "/")
	req.Services = services
	req.Values = map[string]interface{}{}

	_, err = mw(req, func(req *Request) (*Response, error) { return NoContent(), nil })
	require.NoError(t, err)
	assert.Equal(t, "fixed-clock", req.Values["clock"])
}
