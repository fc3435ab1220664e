package aeris

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountHandlerExtendsRootPathOnce(t *testing.T) {
	child := NewApplication(DefaultConfig())
	require.NoError(t, child.Handle(http.MethodGet, "/cats/:cat_id", func(req *Request) (string, error) {
		return req.RootPath, nil
	}))

	mount := &Mount{Prefix: "/sub", App: child}
	handler := mount.Handler()

	r := httptest.NewRequest(http.MethodGet, "/sub/cats/7", nil)
	req := newRequest()
	req.reset(nil, r)
	req.RootPath = ""

	resp, err := handler(req)
	require.NoError(t, err)
	assert.Equal(t, "/sub", string(resp.Body.(*InMemoryContent).Data))
}

func TestMountNeverMutatesRawPath(t *testing.T) {
	child := NewApplication(DefaultConfig())
	require.NoError(t, child.Handle(http.MethodGet, "/cats/:cat_id", func(req *Request) (string, error) {
		return req.RawPath, nil
	}))

	mount := &Mount{Prefix: "/sub", App: child}
	handler := mount.Handler()

	r := httptest.NewRequest(http.MethodGet, "/sub/cats/7", nil)
	req := newRequest()
	req.reset(nil, r)

	resp, err := handler(req)
	require.NoError(t, err)
	assert.Equal(t, "/sub/cats/7", string(resp.Body.(*InMemoryContent).Data))
}
