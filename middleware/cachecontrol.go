package middleware

import (
	"fmt"
	"strings"

	"aeris.dev/aeris"
)

// CacheControlConfig builds a Cache-Control header value, covering the
// directives spec.md's cache middleware names.
type CacheControlConfig struct {
	Public  bool
	Private bool
	NoStore bool
	NoCache bool

	// MaxAge is seconds; negative means omit the directive.
	MaxAge int

	Immutable    bool
	MustRevalidate bool

	// Skip, if non-nil, bypasses cache shaping for requests it returns
	// true for.
	Skip func(req *aeris.Request) bool
}

// CacheControl returns a middleware that sets Cache-Control (and, for
// NoStore, the legacy Pragma: no-cache) on every response that doesn't
// already carry one, so a handler's own explicit header always wins.
func CacheControl(config CacheControlConfig) aeris.MiddlewareFunc {
	value := config.build()

	return func(req *aeris.Request, next aeris.Handler) (*aeris.Response, error) {
		resp, err := next(req)
		if err != nil {
			return nil, err
		}
		if config.Skip != nil && config.Skip(req) {
			return resp, nil
		}
		if resp == nil {
			return resp, nil
		}
		if resp.Header.Has("Cache-Control") {
			return resp, nil
		}

		resp.Header.Set("Cache-Control", value)
		if config.NoStore {
			resp.Header.Set("Pragma", "no-cache")
		}
		return resp, nil
	}
}

func (c CacheControlConfig) build() string {
	var parts []string
	switch {
	case c.NoStore:
		parts = append(parts, "no-store")
	case c.NoCache:
		parts = append(parts, "no-cache")
	default:
		if c.Public {
			parts = append(parts, "public")
		} else if c.Private {
			parts = append(parts, "private")
		}
		if c.MaxAge >= 0 {
			parts = append(parts, fmt.Sprintf("max-age=%d", c.MaxAge))
		}
		if c.MustRevalidate {
			parts = append(parts, "must-revalidate")
		}
		if c.Immutable {
			parts = append(parts, "immutable")
		}
	}
	return strings.Join(parts, ", ")
}
