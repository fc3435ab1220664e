package aeris

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(*Request) (*Response, error) { return nil, nil }

func TestRouterMatchesLiteralPattern(t *testing.T) {
	r := NewRouter(16)
	route, err := NewRoute("GET", "/healthz", noopHandler)
	require.NoError(t, err)
	require.NoError(t, r.Add(route))

	m := r.Match("GET", "/healthz")
	require.NotNil(t, m)
	assert.Same(t, route, m.Route)
	assert.Empty(t, m.Params)

	assert.Nil(t, r.Match("GET", "/nope"))
}

func TestRouterMatchesColonCapture(t *testing.T) {
	r := NewRouter(16)
	route, err := NewRoute("GET", "/cats/:cat_id", noopHandler)
	require.NoError(t, err)
	require.NoError(t, r.Add(route))

	m := r.Match("GET", "/cats/7")
	require.NotNil(t, m)
	assert.Equal(t, "7", m.Params["cat_id"])
}

func TestRouterMatchesBraceCaptureWithConverter(t *testing.T) {
	r := NewRouter(16)
	route, err := NewRoute("GET", "/cats/{int:cat_id}", noopHandler)
	require.NoError(t, err)
	require.NoError(t, r.Add(route))

	assert.NotNil(t, r.Match("GET", "/cats/7"))
	assert.Nil(t, r.Match("GET", "/cats/seven"))
}

func TestRouterMatchesWildcard(t *testing.T) {
	r := NewRouter(16)
	route, err := NewRoute("GET", "/static/*", noopHandler)
	require.NoError(t, err)
	require.NoError(t, r.Add(route))

	m := r.Match("GET", "/static/css/app.css")
	require.NotNil(t, m)
	assert.Equal(t, "css/app.css", m.Params["*"])
}

func TestRouterDuplicateCaptureNameFailsCompile(t *testing.T) {
	_, err := NewRoute("GET", "/a/:id/b/:id", noopHandler)
	assert.Error(t, err)
}

func TestRouterDuplicateRouteRegistrationFails(t *testing.T) {
	r := NewRouter(16)
	route1, _ := NewRoute("GET", "/a/:id", noopHandler)
	route2, _ := NewRoute("GET", "/a/:other", noopHandler)

	require.NoError(t, r.Add(route1))
	assert.Error(t, r.Add(route2))
}

func TestRouterWildcardMethodMatchesAny(t *testing.T) {
	r := NewRouter(16)
	route, err := NewRoute("*", "/ping", noopHandler)
	require.NoError(t, err)
	require.NoError(t, r.Add(route))

	assert.NotNil(t, r.Match("GET", "/ping"))
	assert.NotNil(t, r.Match("POST", "/ping"))
}

func TestRouterFallback(t *testing.T) {
	r := NewRouter(16)
	fallback, err := NewRoute("GET", "/*", noopHandler)
	require.NoError(t, err)
	r.Fallback = fallback

	m := r.Match("GET", "/anything/goes")
	require.NotNil(t, m)
	assert.Same(t, fallback, m.Route)
}

func TestRouterCacheReturnsSameMatch(t *testing.T) {
	r := NewRouter(16)
	route, _ := NewRoute("GET", "/cats/:id", noopHandler)
	require.NoError(t, r.Add(route))

	first := r.Match("GET", "/cats/7")
	second := r.Match("GET", "/cats/7")
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Params, second.Params)
}

func TestURLForSubstitutesCaptures(t *testing.T) {
	r := NewRouter(16)
	route, _ := NewRoute("GET", "/cats/{cat_id}", noopHandler)
	route.Name = "cat-detail"
	require.NoError(t, r.Add(route))

	u, err := r.URLFor("cat-detail", map[string]string{"cat_id": "7"})
	require.NoError(t, err)
	assert.Equal(t, "/cats/7", u)
}

func TestURLForAppendsUnknownCapturesAsQuery(t *testing.T) {
	r := NewRouter(16)
	route, _ := NewRoute("GET", "/cats/{cat_id}", noopHandler)
	route.Name = "cat-detail"
	require.NoError(t, r.Add(route))

	u, err := r.URLFor("cat-detail", map[string]string{"cat_id": "7", "sort": "asc"})
	require.NoError(t, err)
	assert.Equal(t, "/cats/7?sort=asc", u)
}

func TestURLForUnknownNameFails(t *testing.T) {
	r := NewRouter(16)
	_, err := r.URLFor("missing", nil)
	assert.Error(t, err)
}

func TestURLResolverPrependsRootPathOnce(t *testing.T) {
	r := NewRouter(16)
	route, _ := NewRoute("GET", "/cats/{cat_id}", noopHandler)
	route.Name = "cat-detail"
	require.NoError(t, r.Add(route))

	resolver := &URLResolver{Router: r, RootPath: "/sub"}
	u, err := resolver.For("cat-detail", map[string]string{"cat_id": "7"})
	require.NoError(t, err)
	assert.Equal(t, "/sub/cats/7", u)
}

func TestURLResolverAbsoluteForPrependsSchemeAndHost(t *testing.T) {
	r := NewRouter(16)
	route, _ := NewRoute("GET", "/cats/{cat_id}", noopHandler)
	route.Name = "cat-detail"
	require.NoError(t, r.Add(route))

	resolver := &URLResolver{Router: r, RootPath: "/sub", Scheme: "https", Host: "example.com"}
	u, err := resolver.AbsoluteFor("cat-detail", map[string]string{"cat_id": "7"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/sub/cats/7", u)
}

func TestUnescapeDecodesPercentAndPlus(t *testing.T) {
	assert.Equal(t, "Hello, world", unescape("Hello%2C+world"))
}

func TestUnescapeLeavesMalformedSequenceAsIs(t *testing.T) {
	assert.Equal(t, "100%", unescape("100%"))
}
