package aeris

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCookieStringSerializesAttributes(t *testing.T) {
	c := &Cookie{
		Name:     "foo",
		Value:    "bar",
		Path:     "/",
		Domain:   "example.com",
		Expires:  time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC),
		MaxAge:   3600,
		Secure:   true,
		HTTPOnly: true,
		SameSite: SameSiteLax,
	}

	s := c.String()
	assert.Contains(t, s, "foo=bar")
	assert.Contains(t, s, "Path=/")
	assert.Contains(t, s, "Domain=example.com")
	assert.Contains(t, s, "Max-Age=3600")
	assert.Contains(t, s, "HttpOnly")
	assert.Contains(t, s, "Secure")
	assert.Contains(t, s, "SameSite=Lax")
}

func TestCookieStringRejectsInvalidName(t *testing.T) {
	c := &Cookie{Name: "bad name;", Value: "x"}
	assert.Equal(t, "", c.String())
}

func TestCookieStringQuotesValueWithSpaceOrComma(t *testing.T) {
	c := &Cookie{Name: "foo", Value: "bar baz"}
	assert.Equal(t, `foo="bar baz"`, c.String())
}

func TestCookieStringNegativeMaxAgeExpiresImmediately(t *testing.T) {
	c := &Cookie{Name: "foo", Value: "bar", MaxAge: -1}
	assert.Contains(t, c.String(), "Max-Age=0")
}

func TestParseCookieHeaderSplitsNameValuePairs(t *testing.T) {
	cookies := ParseCookieHeader(`foo=bar; baz="qux"; empty=`)
	assert.Equal(t, "bar", cookies["foo"])
	assert.Equal(t, "qux", cookies["baz"])
	assert.Equal(t, "", cookies["empty"])
}

func TestParseCookieHeaderIgnoresInvalidNames(t *testing.T) {
	cookies := ParseCookieHeader(`"bad"=1; good=2`)
	assert.NotContains(t, cookies, `"bad"`)
	assert.Equal(t, "2", cookies["good"])
}

func TestParseSetCookieHeaderParsesAttributes(t *testing.T) {
	c := ParseSetCookieHeader("session=abc123; Path=/; Domain=example.com; Max-Age=60; Secure; HttpOnly; SameSite=Strict")
	assert.Equal(t, "session", c.Name)
	assert.Equal(t, "abc123", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, 60, c.MaxAge)
	assert.True(t, c.Secure)
	assert.True(t, c.HTTPOnly)
	assert.Equal(t, SameSiteStrict, c.SameSite)
}

func TestParseSetCookieHeaderParsesExpires(t *testing.T) {
	c := ParseSetCookieHeader("session=abc123; Expires=Wed, 09 Jun 2021 10:18:14 GMT")
	assert.Equal(t, 2021, c.Expires.Year())
}

func TestParseSetCookieHeaderRejectsMalformedPair(t *testing.T) {
	assert.Nil(t, ParseSetCookieHeader(`"bad"=1`))
}

func TestValidCookieDomainAcceptsPlainHostAndRejectsTrailingHyphen(t *testing.T) {
	assert.True(t, validCookieDomain("example.com"))
	assert.True(t, validCookieDomain(".example.com"))
	assert.False(t, validCookieDomain("example-.com"))
	assert.False(t, validCookieDomain(""))
}
