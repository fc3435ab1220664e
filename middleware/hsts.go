package middleware

import (
	"fmt"

	"aeris.dev/aeris"
)

// SecureHeadersConfig is the HSTS/secure-headers gas config, carried over
// from the teacher's gases.SecureConfig with the same defaults.
type SecureHeadersConfig struct {
	// XSSProtection sets X-XSS-Protection. Default "1; mode=block".
	XSSProtection string

	// ContentTypeNosniff sets X-Content-Type-Options. Default "nosniff".
	ContentTypeNosniff string

	// FrameOptions sets X-Frame-Options. Default "SAMEORIGIN".
	FrameOptions string

	// HSTSMaxAge sets Strict-Transport-Security's max-age, in seconds.
	// Zero omits the header entirely; HSTS is only ever sent over TLS
	// or behind a trusted proxy that terminated TLS (checked via
	// req.TLS, which Application.ServeHTTP also sets when its
	// ForwardedPolicy accepts X-Forwarded-Proto: https from a known
	// proxy).
	HSTSMaxAge int

	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	ContentSecurityPolicy string
}

// DefaultSecureHeadersConfig mirrors gases.DefaultSecureConfig.
var DefaultSecureHeadersConfig = SecureHeadersConfig{
	XSSProtection:      "1; mode=block",
	ContentTypeNosniff: "nosniff",
	FrameOptions:       "SAMEORIGIN",
}

// SecureHeaders returns a middleware applying XSS/content-type/frame
// protections and, when configured and the request arrived over TLS (or a
// trusted proxy says it did), Strict-Transport-Security.
func SecureHeaders(config SecureHeadersConfig) aeris.MiddlewareFunc {
	return func(req *aeris.Request, next aeris.Handler) (*aeris.Response, error) {
		resp, err := next(req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return resp, nil
		}

		if config.XSSProtection != "" {
			resp.Header.Set("X-XSS-Protection", config.XSSProtection)
		}
		if config.ContentTypeNosniff != "" {
			resp.Header.Set("X-Content-Type-Options", config.ContentTypeNosniff)
		}
		if config.FrameOptions != "" {
			resp.Header.Set("X-Frame-Options", config.FrameOptions)
		}
		if config.ContentSecurityPolicy != "" {
			resp.Header.Set("Content-Security-Policy", config.ContentSecurityPolicy)
		}

		secure := req.TLS
		if secure && config.HSTSMaxAge != 0 {
			value := fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
			if config.HSTSIncludeSubdomains {
				value += "; includeSubDomains"
			}
			if config.HSTSPreload {
				value += "; preload"
			}
			resp.Header.Set("Strict-Transport-Security", value)
		}

		return resp, nil
	}
}
