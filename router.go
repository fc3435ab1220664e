package aeris

import (
	"fmt"
	"regexp"
	"strings"
)

// Handler processes a matched request and produces a Response (spec.md §2).
type Handler func(ctx *Request) (*Response, error)

// segToken is one parsed path-pattern token (spec.md §4.1).
type segToken struct {
	literal string // non-empty for literal tokens
	isParam bool
	name    string // capture name, for param tokens
	conv    string // "uuid" | "int" | "float" | "str"
}

// Route is a compiled route: method, original pattern, handler, the ordered
// capture names, an optional name for URL generation, and the compiled
// matcher (spec.md §3 "Route").
type Route struct {
	Method  string
	Pattern string
	Handler Handler
	Params  []string
	Name    string

	literal string // lower-cased, set when the pattern has no captures
	re      *regexp.Regexp
	tokens  []segToken
}

// RouteMatch is the result of a successful lookup: the matched route and
// the captured path parameters, URL-decoded.
type RouteMatch struct {
	Route  *Route
	Params map[string]string
}

var convPattern = map[string]string{
	"uuid":  `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
	"int":   `[0-9]+`,
	"float": `[0-9]+(?:\.[0-9]+)?`,
	"str":   `[^/]+`,
}

// compilePattern parses a pattern per spec.md §4.1 ("Pattern syntax") into
// its tokens, its capture names in order, and (when it has no captures) the
// lower-cased literal fast path.
func compilePattern(pattern string) (tokens []segToken, names []string, literal string, isLiteral bool, err error) {
	isLiteral = true

	segments := strings.Split(pattern, "/")
	seen := map[string]bool{}

	for i, seg := range segments {
		if i > 0 {
			tokens = append(tokens, segToken{literal: "/"})
		}

		switch {
		case seg == "":
			// Leading slash (i == 0) or a trailing/duplicate slash;
			// the "/" token above already accounts for the boundary.
		case seg == "*":
			isLiteral = false
			if seen["*"] {
				return nil, nil, "", false, fmt.Errorf("aeris: duplicate capture name %q in pattern %q", "*", pattern)
			}
			seen["*"] = true
			names = append(names, "*")
			tokens = append(tokens, segToken{isParam: true, name: "*", conv: "any"})
		case strings.HasPrefix(seg, ":"):
			name := seg[1:]
			if name == "" {
				return nil, nil, "", false, fmt.Errorf("aeris: empty capture name in pattern %q", pattern)
			}
			if seen[name] {
				return nil, nil, "", false, fmt.Errorf("aeris: duplicate capture name %q in pattern %q", name, pattern)
			}
			seen[name] = true
			isLiteral = false
			names = append(names, name)
			tokens = append(tokens, segToken{isParam: true, name: name, conv: "str"})
		case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			inner := seg[1 : len(seg)-1]
			conv, name := "str", inner
			if idx := strings.Index(inner, ":"); idx >= 0 {
				conv, name = inner[:idx], inner[idx+1:]
				if _, ok := convPattern[conv]; !ok {
					return nil, nil, "", false, fmt.Errorf("aeris: unknown converter %q in pattern %q", conv, pattern)
				}
			}
			if name == "" {
				return nil, nil, "", false, fmt.Errorf("aeris: empty capture name in pattern %q", pattern)
			}
			if seen[name] {
				return nil, nil, "", false, fmt.Errorf("aeris: duplicate capture name %q in pattern %q", name, pattern)
			}
			seen[name] = true
			isLiteral = false
			names = append(names, name)
			tokens = append(tokens, segToken{isParam: true, name: name, conv: conv})
		default:
			tokens = append(tokens, segToken{literal: seg})
		}
	}

	if isLiteral {
		literal = strings.ToLower(pattern)
	}

	return tokens, names, literal, isLiteral, nil
}

// buildRegexp compiles tokens into an anchored, case-insensitive regexp.
func buildRegexp(tokens []segToken) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")

	for _, t := range tokens {
		if t.literal == "/" {
			b.WriteByte('/')
			continue
		}

		if t.isParam {
			if t.name == "*" {
				b.WriteString("(.+)")
			} else {
				b.WriteString("(")
				b.WriteString(convPattern[t.conv])
				b.WriteString(")")
			}
		} else {
			b.WriteString(regexp.QuoteMeta(t.literal))
		}
	}

	b.WriteByte('$')
	return regexp.Compile(b.String())
}

// NewRoute compiles pattern into a Route bound to handler.
func NewRoute(method, pattern string, handler Handler) (*Route, error) {
	tokens, names, literal, isLiteral, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	rt := &Route{
		Method:  strings.ToUpper(method),
		Pattern: pattern,
		Handler: handler,
		Params:  names,
		tokens:  tokens,
		literal: literal,
	}

	if !isLiteral {
		re, err := buildRegexp(tokens)
		if err != nil {
			return nil, err
		}
		rt.re = re
	}

	return rt, nil
}

// match reports whether rawPath matches the route, returning decoded
// captures keyed by parameter name.
func (rt *Route) match(rawPath string) (map[string]string, bool) {
	if rt.re == nil {
		return nil, strings.ToLower(rawPath) == rt.literal
	}

	groups := rt.re.FindStringSubmatch(rawPath)
	if groups == nil {
		return nil, false
	}

	params := make(map[string]string, len(rt.Params))
	for i, name := range rt.Params {
		params[name] = unescape(groups[i+1])
	}
	return params, true
}

// URLFor substitutes captures back into the original pattern (spec.md
// §4.1 "Named-route URL generation"). Captures not named by the pattern
// are appended as a percent-encoded query string.
func (rt *Route) URLFor(captures map[string]string) (string, error) {
	used := make(map[string]bool, len(rt.Params))
	var b strings.Builder

	for _, t := range rt.tokens {
		switch {
		case t.literal == "/":
			b.WriteByte('/')
		case t.isParam:
			v, ok := captures[t.name]
			if !ok {
				return "", fmt.Errorf("aeris: url_for missing capture %q for pattern %q", t.name, rt.Pattern)
			}
			used[t.name] = true
			b.WriteString(v)
		default:
			b.WriteString(t.literal)
		}
	}

	var extra []string
	for k, v := range captures {
		if !used[k] {
			extra = append(extra, queryEscape(k)+"="+queryEscape(v))
		}
	}
	if len(extra) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(extra, "&"))
	}

	return b.String(), nil
}

// Router is the registry of routes for one application or mount (spec.md
// §3 "Router"): a map from method to its routes, an optional fallback, a
// mount prefix, and a named-route index.
type Router struct {
	Prefix   string
	Fallback *Route

	routes map[string][]*Route
	seen   map[string]bool
	named  map[string]*Route
	cache  *routeMatchLRU
}

// NewRouter returns an empty Router with a bounded route-match cache of
// cacheSize entries (0 disables caching).
func NewRouter(cacheSize int) *Router {
	return &Router{
		routes: make(map[string][]*Route),
		seen:   make(map[string]bool),
		named:  make(map[string]*Route),
		cache:  newRouteMatchLRU(cacheSize),
	}
}

// normalizedPattern strips capture names so two routes that differ only in
// parameter naming are still recognized as ambiguous registrations.
func normalizedPattern(tokens []segToken) string {
	var b strings.Builder
	for _, t := range tokens {
		switch {
		case t.literal == "/":
			b.WriteByte('/')
		case t.isParam && t.name == "*":
			b.WriteByte('*')
		case t.isParam:
			b.WriteByte(':')
			b.WriteString(t.conv)
		default:
			b.WriteString(t.literal)
		}
	}
	return b.String()
}

// Add registers rt. Registering the same (method, pattern) twice, or two
// patterns that normalize to the same shape for the same method, fails
// (spec.md §3 "Route", "Duplicate (method, pattern) registration fails").
func (rt *Router) Add(route *Route) error {
	key := route.Method + " " + normalizedPattern(route.tokens)
	if rt.seen[key] {
		return fmt.Errorf("aeris: route [%s %s] is already registered", route.Method, route.Pattern)
	}
	rt.seen[key] = true

	rt.routes[route.Method] = append(rt.routes[route.Method], route)

	if route.Name != "" {
		if _, exists := rt.named[route.Name]; exists {
			return fmt.Errorf("aeris: route name %q is already registered", route.Name)
		}
		rt.named[route.Name] = route
	}

	return nil
}

// Match looks up the route for method and rawPath, consulting (and
// populating) the LRU match cache first.
func (rt *Router) Match(method, rawPath string) *RouteMatch {
	if m, ok := rt.cache.Get(method, rawPath); ok {
		return m
	}

	m := rt.matchUncached(method, rawPath)
	rt.cache.Put(method, rawPath, m)
	return m
}

func (rt *Router) matchUncached(method, rawPath string) *RouteMatch {
	candidates := make([]*Route, 0, len(rt.routes[method])+len(rt.routes["*"]))
	candidates = append(candidates, rt.routes[method]...)
	candidates = append(candidates, rt.routes["*"]...)

	for _, route := range candidates {
		if params, ok := route.match(rawPath); ok {
			return &RouteMatch{Route: route, Params: params}
		}
	}

	if rt.Fallback != nil {
		if params, ok := rt.Fallback.match(rawPath); ok {
			return &RouteMatch{Route: rt.Fallback, Params: params}
		}
	}

	return nil
}

// URLFor resolves a named route to a path with captures substituted
// (spec.md §4.1). It does not prepend root_path; see URLResolver for the
// per-request variant that does.
func (rt *Router) URLFor(name string, captures map[string]string) (string, error) {
	route, ok := rt.named[name]
	if !ok {
		return "", fmt.Errorf("aeris: no route named %q", name)
	}
	return route.URLFor(captures)
}

// URLResolver resolves named routes relative to a single request's
// scope.root_path (spec.md §4.1 "A URLResolver scoped to one request").
type URLResolver struct {
	Router   *Router
	RootPath string
	Scheme   string
	Host     string
}

// For returns the application-relative URL for name, with RootPath
// prepended exactly once.
func (u *URLResolver) For(name string, captures map[string]string) (string, error) {
	path, err := u.Router.URLFor(name, captures)
	if err != nil {
		return "", err
	}
	return joinMountPrefix(u.RootPath, path), nil
}

// AbsoluteFor additionally prepends scheme://host to For's result.
func (u *URLResolver) AbsoluteFor(name string, captures map[string]string) (string, error) {
	path, err := u.For(name, captures)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host + path, nil
}

func joinMountPrefix(prefix, path string) string {
	if prefix == "" {
		return path
	}
	if strings.HasSuffix(prefix, "/") {
		prefix = prefix[:len(prefix)-1]
	}
	return prefix + path
}

// unescape returns a normal string unescaped from s (percent-decoding and
// "+" as space), as used on route captures.
func unescape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			n++
			if i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2]) {
				return s
			}
			i += 2
		}
	}

	if n == 0 && strings.IndexByte(s, '+') < 0 {
		return s
	}

	t := make([]byte, len(s)-2*n)
	for i, j := 0, 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			t[j] = unhex(s[i+1])<<4 | unhex(s[i+2])
			j++
			i += 2
		case '+':
			t[j] = ' '
			j++
		default:
			t[j] = s[i]
			j++
		}
	}
	return string(t)
}

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func queryEscape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
