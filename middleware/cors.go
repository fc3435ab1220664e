package middleware

import "aeris.dev/aeris"

// CORSConfig configures Cross-Origin Resource Sharing response headers,
// carried over from the teacher's gases.CORSConfig.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to access the resource. A "*"
	// entry allows any origin. Defaults to []string{"*"}.
	AllowOrigins []string

	AllowCredentials bool
	ExposeHeaders    []string
}

// CORS returns a middleware that sets Access-Control-Allow-Origin (and
// friends) for requests carrying an Origin header that matches
// AllowOrigins.
func CORS(config CORSConfig) aeris.MiddlewareFunc {
	allowOrigins := config.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}

	return func(req *aeris.Request, next aeris.Handler) (*aeris.Response, error) {
		resp, err := next(req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return resp, nil
		}

		resp.Header.Add("Vary", "Origin")

		if !req.Header.Has("Origin") {
			return resp, nil
		}
		origin := req.Header.Get("Origin")

		allowed := ""
		for _, o := range allowOrigins {
			if o == "*" || o == origin {
				allowed = o
				break
			}
		}
		if allowed == "" {
			return resp, nil
		}

		resp.Header.Set("Access-Control-Allow-Origin", allowed)
		if config.AllowCredentials {
			resp.Header.Set("Access-Control-Allow-Credentials", "true")
		}
		if len(config.ExposeHeaders) > 0 {
			exposed := config.ExposeHeaders[0]
			for _, h := range config.ExposeHeaders[1:] {
				exposed += ", " + h
			}
			resp.Header.Set("Access-Control-Expose-Headers", exposed)
		}
		return resp, nil
	}
}
