package aeris

import "strings"

// HeaderField is one (name, value) pair of an ordered header list. Name
// comparisons elsewhere are case-insensitive; the original case is kept
// here for faithful re-serialization.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered sequence of header fields. Name lookup is
// case-insensitive; multiple values for the same name are preserved in
// registration order, matching spec.md §3's "ordered sequence of
// (name-bytes, value-bytes)".
type Header []HeaderField

// NewHeader returns an empty Header.
func NewHeader() Header {
	return Header{}
}

// Add appends a new field, keeping any existing values for name.
func (h *Header) Add(name, value string) {
	*h = append(*h, HeaderField{Name: name, Value: value})
}

// Set replaces all existing values for name with a single value.
func (h *Header) Set(name, value string) {
	h.Delete(name)
	h.Add(name, value)
}

// Delete removes every field whose name matches name case-insensitively.
func (h *Header) Delete(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*h = out
}

// Get returns the first value for name, or "" if absent.
func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name, in registration order.
func (h Header) Values(name string) []string {
	var vs []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			vs = append(vs, f.Value)
		}
	}
	return vs
}

// Has reports whether any field has the given name.
func (h Header) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Count returns how many fields have the given name.
func (h Header) Count(name string) int {
	n := 0
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	copy(out, h)
	return out
}
