package aeris

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoContentIs204WithNoBody(t *testing.T) {
	resp := NoContent()
	assert.Equal(t, 204, resp.Status)
	assert.Nil(t, resp.Body)
}

func TestTextSetsContentType(t *testing.T) {
	resp := Text("hello")
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestJSONMarshalsBody(t *testing.T) {
	resp, err := JSON(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	body := resp.Body.(*InMemoryContent)
	assert.JSONEq(t, `{"n":1}`, string(body.Data))
}

func TestBytesSniffsContentTypeWhenOmitted(t *testing.T) {
	resp := Bytes("", []byte("<html><body>hi</body></html>"))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestMsgPackRoundTrips(t *testing.T) {
	resp, err := MsgPack(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "application/msgpack", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Body.(*InMemoryContent).Data)
}

func TestYAMLEncodesBody(t *testing.T) {
	resp, err := YAML(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body.(*InMemoryContent).Data), "n: 1")
}

func TestTOMLEncodesBody(t *testing.T) {
	resp, err := TOML(struct{ N int }{N: 1})
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body.(*InMemoryContent).Data), "N = 1")
}

func TestRedirectSetsLocation(t *testing.T) {
	resp := Redirect(302, "/cats/7")
	assert.Equal(t, 302, resp.Status)
	assert.Equal(t, "/cats/7", resp.Header.Get("Location"))
}

func TestProblemMapsErrorToStatus(t *testing.T) {
	resp := Problem(NewHTTPError(404, "not found"), false)
	assert.Equal(t, 404, resp.Status)
}

func TestProblemAddsWWWAuthenticateForChallenge(t *testing.T) {
	resp := Problem(&AuthenticateChallengeError{Scheme: "Bearer", Realm: "api"}, false)
	assert.Equal(t, 401, resp.Status)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
}

func TestProblemHidesDetailsForUnexpectedErrorByDefault(t *testing.T) {
	resp := Problem(errors.New("leaked secret path"), false)
	assert.Equal(t, 500, resp.Status)
	assert.NotContains(t, string(resp.Body.(*InMemoryContent).Data), "leaked secret path")
}

func TestProblemShowsDetailsWhenEnabled(t *testing.T) {
	resp := Problem(errors.New("leaked secret path"), true)
	assert.Equal(t, 500, resp.Status)
	assert.Contains(t, string(resp.Body.(*InMemoryContent).Data), "leaked secret path")
}

func TestProblemAddsReasonHeaderForCSRFError(t *testing.T) {
	resp := Problem(&CSRFError{Reason: "Missing anti-forgery token cookie"}, false)
	assert.Equal(t, 401, resp.Status)
	assert.Equal(t, "Missing anti-forgery token cookie", resp.Header.Get("Reason"))
}

func TestSetCookieAppendsHeader(t *testing.T) {
	resp := NoContent()
	resp.SetCookie(&Cookie{Name: "sid", Value: "abc"})
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "sid=abc")
}
