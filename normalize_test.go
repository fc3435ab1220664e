package aeris

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWrapsNilReturnAs204(t *testing.T) {
	fn := func(req *Request) error { return nil }
	h, err := Normalize(nil, fn, nil)
	require.NoError(t, err)

	resp, err := h(requestFor(t, "/"))
	require.NoError(t, err)
	assert.Equal(t, 204, resp.Status)
}

func TestNormalizeWrapsStringReturnAsText(t *testing.T) {
	fn := func(req *Request) (string, error) { return "hi", nil }
	h, err := Normalize(nil, fn, nil)
	require.NoError(t, err)

	resp, err := h(requestFor(t, "/"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestNormalizeWrapsStructReturnAsJSON(t *testing.T) {
	type cat struct {
		Name string `json:"name"`
	}
	fn := func(req *Request) (cat, error) { return cat{Name: "Tom"}, nil }
	h, err := Normalize(nil, fn, nil)
	require.NoError(t, err)

	resp, err := h(requestFor(t, "/"))
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestNormalizePassesThroughExplicitResponse(t *testing.T) {
	fn := func(req *Request) (*Response, error) { return Redirect(302, "/elsewhere"), nil }
	h, err := Normalize(nil, fn, nil)
	require.NoError(t, err)

	resp, err := h(requestFor(t, "/"))
	require.NoError(t, err)
	assert.Equal(t, 302, resp.Status)
}

func TestNormalizePropagatesHandlerError(t *testing.T) {
	fn := func(req *Request) error { return errors.New("boom") }
	h, err := Normalize(nil, fn, nil)
	require.NoError(t, err)

	_, err = h(requestFor(t, "/"))
	assert.EqualError(t, err, "boom")
}

func TestNormalizeBindsParamsStructFromRoute(t *testing.T) {
	route, err := NewRoute(http.MethodGet, "/cats/:cat_id", nil)
	require.NoError(t, err)

	type params struct {
		CatID string `route:"cat_id"`
	}
	fn := func(req *Request, p params) (string, error) { return p.CatID, nil }
	h, err := Normalize(route, fn, nil)
	require.NoError(t, err)

	req := requestFor(t, "/cats/7")
	req.PathParams = map[string]string{"cat_id": "7"}

	resp, err := h(req)
	require.NoError(t, err)
	body := resp.Body.(*InMemoryContent)
	assert.Equal(t, "7", string(body.Data))
}

func TestNormalizeRejectsMissingRequestParameter(t *testing.T) {
	fn := func(n int) error { return nil }
	_, err := Normalize(nil, fn, nil)
	assert.Error(t, err)
}

func requestFor(t *testing.T, target string) *Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	req := newRequest()
	req.reset(nil, r)
	return req
}
