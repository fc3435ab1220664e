package aeris

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Converter turns a raw captured/query string into a typed Go value
// (spec.md §4.2). CanConvert is checked in registration order; the first
// converter that claims a target type handles it.
type Converter interface {
	CanConvert(target reflect.Type) bool
	Convert(raw string, target reflect.Type) (reflect.Value, error)
}

// ConverterRegistry is the ordered, first-wins list of Converters used by
// binders to turn path captures and query values into typed parameters.
type ConverterRegistry struct {
	converters []Converter
}

// NewConverterRegistry returns a registry preloaded with the built-in
// converters described in spec.md §4.2, in the order they should be tried.
func NewConverterRegistry() *ConverterRegistry {
	r := &ConverterRegistry{}
	r.Register(boolConverter{})
	r.Register(intConverter{})
	r.Register(floatConverter{})
	r.Register(uuidConverter{})
	r.Register(dateConverter{})
	r.Register(bytesConverter{})
	r.Register(enumConverter{})
	r.Register(collectionConverter{registry: r})
	r.Register(stringConverter{})
	return r
}

// Register appends conv to the end of the registry's try order.
func (r *ConverterRegistry) Register(conv Converter) {
	r.converters = append(r.converters, conv)
}

// Convert locates the first matching converter for target and applies it.
func (r *ConverterRegistry) Convert(raw string, target reflect.Type) (reflect.Value, error) {
	for _, conv := range r.converters {
		if conv.CanConvert(target) {
			return conv.Convert(raw, target)
		}
	}
	return reflect.Value{}, fmt.Errorf("aeris: no converter registered for type %s", target)
}

var uuidType = reflect.TypeOf(uuid.UUID{})
var timeType = reflect.TypeOf(time.Time{})

// boolConverter handles "true"|"1"|"false"|"0", case-insensitive.
type boolConverter struct{}

func (boolConverter) CanConvert(t reflect.Type) bool { return t.Kind() == reflect.Bool }

func (boolConverter) Convert(raw string, t reflect.Type) (reflect.Value, error) {
	switch strings.ToLower(raw) {
	case "true", "1":
		return reflect.ValueOf(true), nil
	case "false", "0":
		return reflect.ValueOf(false), nil
	}
	return reflect.Value{}, fmt.Errorf("aeris: %q is not a valid bool", raw)
}

type intConverter struct{}

func (intConverter) CanConvert(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func (intConverter) Convert(raw string, t reflect.Type) (reflect.Value, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("aeris: %q is not a valid int", raw)
	}
	v := reflect.New(t).Elem()
	v.SetInt(n)
	return v, nil
}

type floatConverter struct{}

func (floatConverter) CanConvert(t reflect.Type) bool {
	return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
}

func (floatConverter) Convert(raw string, t reflect.Type) (reflect.Value, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("aeris: %q is not a valid float", raw)
	}
	v := reflect.New(t).Elem()
	v.SetFloat(f)
	return v, nil
}

type uuidConverter struct{}

func (uuidConverter) CanConvert(t reflect.Type) bool { return t == uuidType }

func (uuidConverter) Convert(raw string, t reflect.Type) (reflect.Value, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("aeris: %q is not a valid UUID", raw)
	}
	return reflect.ValueOf(id), nil
}

// dateTimeFormats are the three ISO-8601 forms spec.md §4.2 names, tried in
// order of specificity.
var dateTimeFormats = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type dateConverter struct{}

func (dateConverter) CanConvert(t reflect.Type) bool { return t == timeType }

func (dateConverter) Convert(raw string, t reflect.Type) (reflect.Value, error) {
	for _, layout := range dateTimeFormats {
		if ts, err := time.Parse(layout, raw); err == nil {
			return reflect.ValueOf(ts), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("aeris: %q is not a valid ISO-8601 date or datetime", raw)
}

// bytesConverter decodes url-safe-base64 into a byte slice.
type bytesConverter struct{}

func (bytesConverter) CanConvert(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func (bytesConverter) Convert(raw string, t reflect.Type) (reflect.Value, error) {
	b, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(raw)
	if err != nil {
		if b2, err2 := base64.URLEncoding.DecodeString(raw); err2 == nil {
			return reflect.ValueOf(b2), nil
		}
		return reflect.Value{}, fmt.Errorf("aeris: %q is not valid url-safe-base64", raw)
	}
	return reflect.ValueOf(b), nil
}

// enumStringer is implemented by generated/hand-written enum types that
// expose their member names, mirroring Python's Enum "by name or by value"
// lookup (spec.md §4.2).
type enumStringer interface {
	fmt.Stringer
}

type enumConverter struct{}

func (enumConverter) CanConvert(t reflect.Type) bool {
	if t.Kind() != reflect.String && t.Kind() != reflect.Int {
		return false
	}
	return t.Implements(reflect.TypeOf((*enumStringer)(nil)).Elem()) ||
		reflect.PtrTo(t).Implements(reflect.TypeOf((*enumStringer)(nil)).Elem())
}

func (enumConverter) Convert(raw string, t reflect.Type) (reflect.Value, error) {
	// By-value (underlying string/int literal) first, then by-name via
	// String() on each zero-initialized candidate isn't enumerable
	// through reflection alone in Go, so enum types register their
	// members through EnumValues (see RegisterEnum) consulted here.
	if values, ok := registeredEnums[t]; ok {
		lowerRaw := strings.ToLower(raw)
		for _, v := range values {
			if v.raw == raw {
				return v.value, nil
			}
		}
		for _, v := range values {
			if strings.ToLower(v.name) == lowerRaw {
				return v.value, nil
			}
		}
	}

	v := reflect.New(t).Elem()
	if t.Kind() == reflect.String {
		v.SetString(raw)
		return v, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("aeris: %q is not a valid enum value for %s", raw, t)
	}
	v.SetInt(n)
	return v, nil
}

type enumMember struct {
	raw   string
	name  string
	value reflect.Value
}

var registeredEnums = map[reflect.Type][]enumMember{}

// RegisterEnum associates a Go type with its members so enumConverter can
// resolve a capture by raw value or by case-insensitive name (spec.md
// §4.2 "enum (by value or by name)"). members maps the raw wire value to
// a human name, e.g. {"0": "Pending", "1": "Active"}.
func RegisterEnum(t reflect.Type, members map[string]string) {
	entries := make([]enumMember, 0, len(members))
	for raw, name := range members {
		v := reflect.New(t).Elem()
		switch t.Kind() {
		case reflect.String:
			v.SetString(raw)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, _ := strconv.ParseInt(raw, 10, 64)
			v.SetInt(n)
		}
		entries = append(entries, enumMember{raw: raw, name: name, value: v})
	}
	registeredEnums[t] = entries
}

// LiteralConverter implements Python's Literal[...] (spec.md §4.2): exact
// match, falling back to case-insensitive string match, against a fixed
// set of allowed values for one parameter. Unlike the other converters it
// is bound to a specific parameter rather than a Go type, since Go has no
// literal-type equivalent; binders that declare allowed values attach one
// directly instead of going through the registry.
type LiteralConverter struct {
	Allowed []string
}

func (c *LiteralConverter) Convert(raw string) (string, error) {
	for _, a := range c.Allowed {
		if a == raw {
			return a, nil
		}
	}
	lowerRaw := strings.ToLower(raw)
	for _, a := range c.Allowed {
		if strings.ToLower(a) == lowerRaw {
			return a, nil
		}
	}
	return "", fmt.Errorf("aeris: %q is not one of %v", raw, c.Allowed)
}

// stringConverter is the converter of last resort: plain, url-decoded
// string.
type stringConverter struct{}

func (stringConverter) CanConvert(t reflect.Type) bool { return t.Kind() == reflect.String }

func (stringConverter) Convert(raw string, t reflect.Type) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	v.SetString(raw)
	return v, nil
}

// collectionConverter implements the two-stage "list/tuple/set of T"
// conversion: split on commas, convert each element with the registry,
// collect into a slice (spec.md §4.2).
type collectionConverter struct {
	registry *ConverterRegistry
}

func (collectionConverter) CanConvert(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8
}

func (c collectionConverter) Convert(raw string, t reflect.Type) (reflect.Value, error) {
	elemType := t.Elem()
	out := reflect.MakeSlice(t, 0, 0)

	if raw == "" {
		return out, nil
	}

	for _, part := range strings.Split(raw, ",") {
		ev, err := c.registry.Convert(strings.TrimSpace(part), elemType)
		if err != nil {
			return reflect.Value{}, err
		}
		out = reflect.Append(out, ev)
	}

	return out, nil
}
