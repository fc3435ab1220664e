package aeris

import (
	"bytes"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SameSite is the SameSite attribute of a Cookie.
type SameSite int

// SameSite values.
const (
	SameSiteDefault SameSite = iota
	SameSiteLax
	SameSiteStrict
	SameSiteNone
)

// Cookie is an HTTP cookie, serialized to and parsed from the Cookie and
// Set-Cookie headers (spec.md §3, §6).
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Expires  time.Time
	MaxAge   int
	Secure   bool
	HTTPOnly bool
	SameSite SameSite
}

// String returns the Set-Cookie serialization of c, or "" if c.Name is
// invalid.
func (c *Cookie) String() string {
	if !validCookieName(c.Name) {
		return ""
	}

	buf := bytes.Buffer{}

	n := strings.Replace(c.Name, "\r", "-", -1)
	n = strings.Replace(n, "\n", "-", -1)
	v := sanitize(c.Value, validCookieValueByte)
	if strings.IndexByte(v, ' ') >= 0 || strings.IndexByte(v, ',') >= 0 {
		v = `"` + v + `"`
	}

	buf.WriteString(n)
	buf.WriteByte('=')
	buf.WriteString(v)

	if len(c.Path) > 0 {
		buf.WriteString("; Path=")
		buf.WriteString(sanitize(c.Path, func(b byte) bool {
			return 0x20 <= b && b < 0x7f && b != ';'
		}))
	}

	if validCookieDomain(c.Domain) {
		d := c.Domain
		if d[0] == '.' {
			d = d[1:]
		}

		buf.WriteString("; Domain=")
		buf.WriteString(d)
	}

	if c.Expires.Year() >= 1601 {
		buf.WriteString("; Expires=")
		buf2 := buf.Bytes()
		buf.Reset()
		buf.Write(c.Expires.UTC().AppendFormat(buf2, http.TimeFormat))
	}

	if c.MaxAge > 0 {
		buf.WriteString("; Max-Age=")
		buf2 := buf.Bytes()
		buf.Reset()
		buf.Write(strconv.AppendInt(buf2, int64(c.MaxAge), 10))
	} else if c.MaxAge < 0 {
		buf.WriteString("; Max-Age=0")
	}

	if c.HTTPOnly {
		buf.WriteString("; HttpOnly")
	}

	if c.Secure {
		buf.WriteString("; Secure")
	}

	switch c.SameSite {
	case SameSiteLax:
		buf.WriteString("; SameSite=Lax")
	case SameSiteStrict:
		buf.WriteString("; SameSite=Strict")
	case SameSiteNone:
		buf.WriteString("; SameSite=None")
	}

	return buf.String()
}

// ParseCookieHeader parses the value of a request's Cookie header into
// name/value pairs (the wire format has no Path/Domain/Expires; those only
// ever appear on Set-Cookie).
func ParseCookieHeader(value string) map[string]string {
	cookies := map[string]string{}
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, val, found := strings.Cut(part, "=")
		if !found {
			continue
		}

		name = strings.TrimSpace(name)
		val = strings.TrimSpace(val)
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}

		if validCookieName(name) {
			cookies[name] = val
		}
	}
	return cookies
}

// ParseSetCookieHeader parses a single Set-Cookie header value into a
// Cookie, following the attribute grammar in RFC 6265.
func ParseSetCookieHeader(value string) *Cookie {
	parts := strings.Split(value, ";")
	if len(parts) == 0 {
		return nil
	}

	nameValue := strings.TrimSpace(parts[0])
	name, val, found := strings.Cut(nameValue, "=")
	if !found || !validCookieName(strings.TrimSpace(name)) {
		return nil
	}

	c := &Cookie{Name: strings.TrimSpace(name), Value: strings.TrimSpace(val)}

	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		key, av, _ := strings.Cut(attr, "=")
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "path":
			c.Path = strings.TrimSpace(av)
		case "domain":
			c.Domain = strings.TrimSpace(av)
		case "expires":
			if t, err := http.ParseTime(strings.TrimSpace(av)); err == nil {
				c.Expires = t
			}
		case "max-age":
			if n, err := strconv.Atoi(strings.TrimSpace(av)); err == nil {
				c.MaxAge = n
			}
		case "secure":
			c.Secure = true
		case "httponly":
			c.HTTPOnly = true
		case "samesite":
			switch strings.ToLower(strings.TrimSpace(av)) {
			case "lax":
				c.SameSite = SameSiteLax
			case "strict":
				c.SameSite = SameSiteStrict
			case "none":
				c.SameSite = SameSiteNone
			}
		}
	}

	return c
}

func validCookieValueByte(b byte) bool {
	return 0x20 <= b && b < 0x7f && b != '"' && b != ';' && b != '\\'
}

// validCookieName reports whether n is a valid cookie name token.
func validCookieName(n string) bool {
	return n != "" && strings.IndexFunc(n, func(r rune) bool {
		return !strings.ContainsRune(
			"!#$%&'*+-."+
				"0123456789"+
				"ABCDEFGHIJKLMNOPQRSTUWVXYZ"+
				"^_`"+
				"abcdefghijklmnopqrstuvwxyz"+
				"|~",
			r,
		)
	}) < 0
}

// validCookieDomain reports whether d is a valid cookie domain attribute.
func validCookieDomain(d string) bool {
	if l := len(d); l == 0 || l > 255 {
		return false
	}

	if net.ParseIP(d) != nil && !strings.Contains(d, ":") {
		return true
	}

	if d[0] == '.' {
		d = d[1:]
	}

	ok := false
	last := byte('.')
	partlen := 0
	for i := 0; i < len(d); i++ {
		c := d[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
			ok = true
			partlen++
		case '0' <= c && c <= '9':
			partlen++
		case c == '-':
			if last == '.' {
				return false
			}
			partlen++
		case c == '.':
			if last == '.' || last == '-' {
				return false
			}
			if partlen > 63 || partlen == 0 {
				return false
			}
			partlen = 0
		default:
			return false
		}
		last = c
	}

	if last == '-' || partlen > 63 {
		return false
	}

	return ok
}

// sanitize strips bytes from s that fail valid.
func sanitize(s string, valid func(byte) bool) string {
	ok := true
	for i := 0; i < len(s); i++ {
		if !valid(s[i]) {
			ok = false
			break
		}
	}

	if ok {
		return s
	}

	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if b := s[i]; valid(b) {
			buf = append(buf, b)
		}
	}

	return string(buf)
}
