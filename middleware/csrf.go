// Package middleware holds the outbound-shaping middlewares of spec.md's
// "CSRF/cache/HSTS/gzip" component: CSRF double-submit protection,
// Cache-Control shaping, the secure-headers/HSTS gas, and gzip response
// compression, each adapted from the teacher's gases package into the
// aeris.MiddlewareFunc shape.
package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"time"

	"aeris.dev/aeris"
)

// CSRFConfig configures CSRF double-submit-cookie protection, the same
// knobs as the teacher's gases.CSRFConfig.
type CSRFConfig struct {
	// TokenLength is the number of random bytes in a generated token.
	// Zero defaults to 32.
	TokenLength int

	// HeaderName is the request header clients echo the token back in.
	// Zero value defaults to "X-CSRF-Token".
	HeaderName string

	// CookieName names the cookie the token is stored in. Defaults to
	// "aftoken".
	CookieName string

	// CookieMaxAge is the lifetime, in seconds, of the CSRF cookie.
	// Defaults to 86400 (24h).
	CookieMaxAge int

	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool

	// Skip, if non-nil, bypasses CSRF checking for requests it returns
	// true for (e.g. non-browser API clients authenticated by bearer
	// token).
	Skip func(req *aeris.Request) bool
}

func (c *CSRFConfig) fill() {
	if c.TokenLength == 0 {
		c.TokenLength = 32
	}
	if c.HeaderName == "" {
		c.HeaderName = "X-CSRF-Token"
	}
	if c.CookieName == "" {
		c.CookieName = "aftoken"
	}
	if c.CookieMaxAge == 0 {
		c.CookieMaxAge = 86400
	}
}

// CSRF returns a double-submit-cookie CSRF middleware: a per-session token
// is minted and stored in a cookie, then compared in constant time against
// the value the client echoes back in HeaderName on every unsafe method
// (anything but GET/HEAD/OPTIONS/TRACE). The missing-cookie and
// invalid-token rejections are distinct 401s carrying a Reason header
// (spec.md §6 "CSRF", scenario S4): a missing cookie on an unsafe method
// is never papered over by silently minting a fresh one, since that would
// mask the very condition being checked for.
func CSRF(config CSRFConfig) aeris.MiddlewareFunc {
	config.fill()

	return func(req *aeris.Request, next aeris.Handler) (*aeris.Response, error) {
		if config.Skip != nil && config.Skip(req) {
			return next(req)
		}

		token, hasCookie := req.Cookie(config.CookieName)

		if !isSafeMethod(req.Method) {
			if !hasCookie {
				return nil, &aeris.CSRFError{Reason: "Missing anti-forgery token cookie"}
			}
			clientToken := req.Header.Get(config.HeaderName)
			if clientToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(clientToken)) != 1 {
				return nil, &aeris.CSRFError{Reason: "Invalid anti-forgery token"}
			}
		} else if !hasCookie {
			var err error
			token, err = randomToken(config.TokenLength)
			if err != nil {
				return nil, err
			}
		}

		resp, err := next(req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = aeris.NoContent()
		}

		resp.SetCookie(&aeris.Cookie{
			Name:     config.CookieName,
			Value:    token,
			Path:     config.CookiePath,
			Domain:   config.CookieDomain,
			Expires:  time.Now().Add(time.Duration(config.CookieMaxAge) * time.Second),
			Secure:   config.CookieSecure,
			HTTPOnly: config.CookieHTTPOnly,
		})
		resp.Header.Add("Vary", "Cookie")
		return resp, nil
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case "GET", "HEAD", "OPTIONS", "TRACE":
		return true
	default:
		return false
	}
}

// randomToken returns a URL-safe base64 string over n random bytes. Go has
// no third-party CSRF-token generator in the retrieval pack, so this uses
// crypto/rand directly rather than the teacher's seeded math/rand
// (DESIGN.md: a security-sensitive token generator is one of the few
// places worth diverging from the teacher's own choice).
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
