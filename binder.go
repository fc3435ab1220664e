package aeris

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"mime"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
)

// bindSource identifies where a struct field's value comes from, resolved
// once per field by the precedence rules in spec.md §4.3.
type bindSource int

const (
	sourceRoute bindSource = iota
	sourceQuery
	sourceHeader
	sourceCookie
	sourceBody
	sourceRequest
	sourceWebSocket
	sourceServices
	sourceIdentity
	sourceClientInfo
	sourceServerInfo
	sourceRequestURL
	sourceRequestMethod
	sourceServiceByName
	sourceServiceByType
	sourceFiles
)

func (s bindSource) String() string {
	switch s {
	case sourceRoute:
		return "route"
	case sourceQuery:
		return "query"
	case sourceHeader:
		return "header"
	case sourceCookie:
		return "cookie"
	case sourceBody:
		return "body"
	case sourceServiceByName, sourceServiceByType:
		return "service"
	default:
		return "scope"
	}
}

// fieldBinder is the resolved plan for one struct field of a handler's
// parameter type (spec.md §3 "Binder", §4.3 "Handler normalizer").
type fieldBinder struct {
	index      int
	name       string // wire name: tag value or field name
	source     bindSource
	required   bool
	hasDefault bool
	defaultRaw string
	bodyKind   string // "json" | "form" | "xml" | "msgpack" | "protobuf" | "text" | "bytes" | "multi" | "" for non-body
}

// structPlan is the cached, per-type binder plan; computed once and
// reused across requests once the application is frozen (spec.md §7
// "Router, middleware list, exception-handler map, and service bindings
// are frozen after startup; they may be read concurrently without
// locks").
type structPlan struct {
	fields    []fieldBinder
	bodyField int // index into fields of the one body binder, or -1
}

var validate = validator.New()

// planStruct inspects paramType (which must be a struct) and resolves a
// Binder source for each exported field following the precedence rules of
// spec.md §4.3. routeParams is the set of capture names declared by the
// route the handler is attached to (nil for middlewares not bound to a
// single route). services is consulted for precedence rules 4 and 5.
func planStruct(paramType reflect.Type, routeParams []string, services *ServiceContainer) (*structPlan, error) {
	if paramType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("aeris: handler parameter type %s must be a struct", paramType)
	}

	routeSet := make(map[string]bool, len(routeParams))
	for _, p := range routeParams {
		routeSet[p] = true
	}

	plan := &structPlan{bodyField: -1}

	for i := 0; i < paramType.NumField(); i++ {
		f := paramType.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}

		fb, err := resolveField(f, i, routeSet, services)
		if err != nil {
			return nil, err
		}

		if fb.bodyKind != "" {
			if plan.bodyField != -1 {
				return nil, fmt.Errorf("aeris: handler parameter %s declares more than one body binder", paramType)
			}
			plan.bodyField = len(plan.fields)
		}

		plan.fields = append(plan.fields, fb)
	}

	return plan, nil
}

var simpleKinds = map[reflect.Kind]bool{
	reflect.String: true, reflect.Bool: true,
	reflect.Int: true, reflect.Int8: true, reflect.Int16: true, reflect.Int32: true, reflect.Int64: true,
	reflect.Uint: true, reflect.Uint8: true, reflect.Uint16: true, reflect.Uint32: true, reflect.Uint64: true,
	reflect.Float32: true, reflect.Float64: true,
}

func isSimpleType(t reflect.Type) bool {
	if t == uuidType || t == timeType {
		return true
	}
	if simpleKinds[t.Kind()] {
		return true
	}
	if t.Kind() == reflect.Slice {
		elem := t.Elem()
		return elem.Kind() != reflect.Uint8 && (simpleKinds[elem.Kind()] || elem == uuidType)
	}
	return false
}

// resolveField applies spec.md §4.3's numbered precedence rules to one
// struct field.
func resolveField(f reflect.StructField, index int, routeSet map[string]bool, services *ServiceContainer) (fieldBinder, error) {
	name := f.Name
	required := true
	defaultRaw := ""
	hasDefault := false

	if tag, ok := f.Tag.Lookup("aeris"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			name = parts[0]
		}
		for _, opt := range parts[1:] {
			if opt == "optional" {
				required = false
			}
			if strings.HasPrefix(opt, "default=") {
				required = false
				hasDefault = true
				defaultRaw = strings.TrimPrefix(opt, "default=")
			}
		}
	}

	fb := fieldBinder{index: index, name: name, required: required, hasDefault: hasDefault, defaultRaw: defaultRaw}

	// Source tags take the same ",optional" suffix as the aeris tag.
	tagName := func(tag string) string {
		parts := strings.Split(tag, ",")
		for _, opt := range parts[1:] {
			if opt == "optional" {
				fb.required = false
			}
		}
		return parts[0]
	}

	// Rule 1/2: explicit typed-holder wrapper types.
	switch f.Type {
	case reflect.TypeOf(RequestHolder{}):
		fb.source = sourceRequest
		return fb, nil
	case reflect.TypeOf(WebSocketHolder{}):
		fb.source = sourceWebSocket
		return fb, nil
	case reflect.TypeOf(ServicesHolder{}):
		fb.source = sourceServices
		return fb, nil
	case reflect.TypeOf(IdentityHolder{}):
		fb.source = sourceIdentity
		return fb, nil
	case reflect.TypeOf(ClientInfoHolder{}):
		fb.source = sourceClientInfo
		return fb, nil
	case reflect.TypeOf(ServerInfoHolder{}):
		fb.source = sourceServerInfo
		return fb, nil
	case reflect.TypeOf(RequestURLHolder{}):
		fb.source = sourceRequestURL
		return fb, nil
	case reflect.TypeOf(RequestMethodHolder{}):
		fb.source = sourceRequestMethod
		return fb, nil
	case reflect.TypeOf(FilesHolder{}):
		fb.source = sourceFiles
		return fb, nil
	}

	if tag, ok := f.Tag.Lookup("route"); ok {
		fb.name = tagName(tag)
		fb.source = sourceRoute
		if !routeSet[fb.name] {
			return fb, fmt.Errorf("aeris: route binder names %q, which is not captured by the route pattern", tag)
		}
		return fb, nil
	}
	if tag, ok := f.Tag.Lookup("query"); ok {
		fb.name = tagName(tag)
		fb.source = sourceQuery
		return fb, nil
	}
	if tag, ok := f.Tag.Lookup("header"); ok {
		fb.name = tagName(tag)
		fb.source = sourceHeader
		return fb, nil
	}
	if tag, ok := f.Tag.Lookup("cookie"); ok {
		fb.name = tagName(tag)
		fb.source = sourceCookie
		return fb, nil
	}
	if kind, ok := f.Tag.Lookup("body"); ok {
		fb.source = sourceBody
		fb.bodyKind = kind
		return fb, nil
	}

	// Rule 3: scope parameter names.
	switch strings.ToLower(name) {
	case "request":
		fb.source = sourceRequest
		return fb, nil
	case "websocket":
		fb.source = sourceWebSocket
		return fb, nil
	case "services":
		fb.source = sourceServices
		return fb, nil
	}

	// Rule 4/5: service container.
	if services != nil {
		if services.HasName(name) {
			fb.source = sourceServiceByName
			return fb, nil
		}
		if services.HasType(f.Type) {
			fb.source = sourceServiceByType
			return fb, nil
		}
	}

	// Rule 6: route capture.
	if routeSet[name] {
		fb.source = sourceRoute
		return fb, nil
	}

	// Rule 7: simple type → query.
	if isSimpleType(f.Type) {
		fb.source = sourceQuery
		return fb, nil
	}

	// Rule 8: body model.
	fb.source = sourceBody
	fb.bodyKind = "json"
	return fb, nil
}

// Scope-parameter holder marker types (precedence rules 1/3, spec.md
// §4.2's RequestBinder/WebSocketBinder/IdentityBinder/ClientInfoBinder/
// ServerInfoBinder/RequestURLBinder/RequestMethodBinder/FilesBinder).
type RequestHolder struct{ Value *Request }
type WebSocketHolder struct{ Value *WebSocket }
type ServicesHolder struct{ Value *ServiceContainer }
type IdentityHolder struct{ Value *Identity }
type ClientInfoHolder struct{ Addr string }
type ServerInfoHolder struct{ Addr string }
type RequestURLHolder struct{ Value *URL }
type RequestMethodHolder struct{ Value string }
type FilesHolder struct{ Value []*FormPart }

// bindStruct populates dest (a pointer to a struct previously planned by
// planStruct) from req, following the resolved per-field sources.
func bindStruct(plan *structPlan, req *Request, dest reflect.Value) error {
	elem := dest.Elem()

	for _, fb := range plan.fields {
		field := elem.Field(fb.index)
		if err := bindField(fb, req, field); err != nil {
			return err
		}
	}

	if plan.bodyField >= 0 {
		if err := validate.Struct(elem.Addr().Interface()); err != nil {
			if _, ok := err.(*validator.InvalidValidationError); !ok {
				return &ValidationError{Cause: err}
			}
		}
	}

	return nil
}

func bindField(fb fieldBinder, req *Request, field reflect.Value) error {
	switch fb.source {
	case sourceRequest:
		field.Set(reflect.ValueOf(RequestHolder{Value: req}))
		return nil
	case sourceServices:
		field.Set(reflect.ValueOf(ServicesHolder{Value: req.Services}))
		return nil
	case sourceWebSocket:
		field.Set(reflect.ValueOf(WebSocketHolder{Value: req.WS}))
		return nil
	case sourceIdentity:
		field.Set(reflect.ValueOf(IdentityHolder{Value: req.Identity}))
		return nil
	case sourceClientInfo:
		field.Set(reflect.ValueOf(ClientInfoHolder{Addr: req.ClientAddr}))
		return nil
	case sourceServerInfo:
		field.Set(reflect.ValueOf(ServerInfoHolder{Addr: req.ServerAddr}))
		return nil
	case sourceRequestURL:
		field.Set(reflect.ValueOf(RequestURLHolder{Value: req.URL}))
		return nil
	case sourceRequestMethod:
		field.Set(reflect.ValueOf(RequestMethodHolder{Value: req.Method}))
		return nil
	case sourceFiles:
		var parts []*FormPart
		if mp, ok := req.Body.(*MultipartContent); ok {
			parts = mp.Parts
		}
		field.Set(reflect.ValueOf(FilesHolder{Value: parts}))
		return nil
	case sourceServiceByName:
		v, _, err := req.Services.ResolveByName(fb.name)
		if err != nil {
			return err
		}
		if v != nil {
			field.Set(reflect.ValueOf(v))
		}
		return nil
	case sourceServiceByType:
		v, _, err := req.Services.ResolveByType(field.Type())
		if err != nil {
			return err
		}
		if v != nil {
			field.Set(reflect.ValueOf(v))
		}
		return nil
	case sourceRoute:
		raw, ok := req.PathParams[fb.name]
		return convertScalarField(fb, raw, ok, field)
	case sourceQuery:
		values, ok := req.Query()[fb.name]
		if field.Kind() == reflect.Slice && field.Type().Elem().Kind() != reflect.Uint8 {
			return convertSliceField(fb, values, field)
		}
		raw := ""
		if ok && len(values) > 0 {
			raw = values[0]
		}
		return convertScalarField(fb, raw, ok && len(values) > 0, field)
	case sourceHeader:
		values := req.Header.Values(fb.name)
		if field.Kind() == reflect.Slice && field.Type().Elem().Kind() != reflect.Uint8 {
			return convertSliceField(fb, values, field)
		}
		raw := ""
		ok := len(values) > 0
		if ok {
			raw = values[0]
		}
		return convertScalarField(fb, raw, ok, field)
	case sourceCookie:
		raw, ok := req.Cookie(fb.name)
		return convertScalarField(fb, raw, ok, field)
	case sourceBody:
		return bindBodyField(fb, req, field)
	default:
		return nil
	}
}

var sharedConverters = NewConverterRegistry()

func convertScalarField(fb fieldBinder, raw string, found bool, field reflect.Value) error {
	if !found {
		if fb.hasDefault {
			raw, found = fb.defaultRaw, true
		} else if fb.required {
			return &MissingParameterError{Source: fb.source.String(), Name: fb.name}
		} else {
			return nil
		}
	}

	v, err := sharedConverters.Convert(raw, field.Type())
	if err != nil {
		return &InvalidRequestBodyError{Parameter: fb.name, Cause: err}
	}
	field.Set(v)
	return nil
}

func convertSliceField(fb fieldBinder, values []string, field reflect.Value) error {
	if len(values) == 0 {
		if fb.required && !fb.hasDefault {
			return &MissingParameterError{Source: fb.source.String(), Name: fb.name}
		}
		return nil
	}

	elemType := field.Type().Elem()
	out := reflect.MakeSlice(field.Type(), 0, len(values))
	for _, raw := range values {
		v, err := sharedConverters.Convert(raw, elemType)
		if err != nil {
			return &InvalidRequestBodyError{Parameter: fb.name, Cause: err}
		}
		out = reflect.Append(out, v)
	}
	field.Set(out)
	return nil
}

// idempotentMethods are skipped by the body-binder algorithm (spec.md
// §4.2 "Body-binder algorithm").
var idempotentMethods = map[string]bool{"GET": true, "HEAD": true, "TRACE": true}

func bindBodyField(fb fieldBinder, req *Request, field reflect.Value) error {
	if idempotentMethods[req.Method] {
		return nil
	}

	data, err := req.BodyBytes()
	if err != nil {
		return err
	}

	if len(data) == 0 {
		if fb.required {
			return &MissingBodyError{}
		}
		return nil
	}

	contentType := req.Header.Get("Content-Type")
	mt, _, _ := mime.ParseMediaType(contentType)

	kind := fb.bodyKind
	if kind == "multi" || kind == "" {
		kind = resolveMultiFormatBody(mt)
	}

	switch kind {
	case "json":
		if mt != "" && !strings.Contains(mt, "json") && fb.bodyKind == "json" && contentType != "" {
			return &UnsupportedMediaTypeError{ContentType: contentType}
		}
		return decodeJSONBody(data, field)
	case "form":
		return decodeFormBody(data, field)
	case "xml":
		if mt != "" && !strings.Contains(mt, "xml") {
			return &UnsupportedMediaTypeError{ContentType: contentType}
		}
		return decodeXMLBody(data, field)
	case "msgpack":
		if mt != "" && mt != "application/msgpack" && mt != "application/x-msgpack" {
			return &UnsupportedMediaTypeError{ContentType: contentType}
		}
		return decodeMsgPackBody(data, field)
	case "protobuf":
		if mt != "" && mt != "application/x-protobuf" && mt != "application/protobuf" {
			return &UnsupportedMediaTypeError{ContentType: contentType}
		}
		return decodeProtobufBody(data, field)
	case "text":
		field.SetString(string(data))
		return nil
	case "bytes":
		field.SetBytes(data)
		return nil
	default:
		return &UnsupportedMediaTypeError{ContentType: contentType}
	}
}

// resolveMultiFormatBody picks one decoder by content-type. A missing type
// selects JSON, an unrecognized text/* type selects text, and any other
// unrecognized type selects bytes. Only the selected decoder runs: when it
// fails, no other decoder is tried.
func resolveMultiFormatBody(mt string) string {
	switch {
	case mt == "application/json" || strings.HasSuffix(mt, "+json"):
		return "json"
	case mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data":
		return "form"
	case mt == "application/xml" || mt == "text/xml":
		return "xml"
	case mt == "application/msgpack" || mt == "application/x-msgpack":
		return "msgpack"
	case mt == "application/x-protobuf" || mt == "application/protobuf":
		return "protobuf"
	case strings.HasPrefix(mt, "text/"):
		return "text"
	case mt == "":
		return "json"
	default:
		return "bytes"
	}
}

func decodeJSONBody(data []byte, field reflect.Value) error {
	target := reflect.New(field.Type())
	if err := json.Unmarshal(data, target.Interface()); err != nil {
		return &InvalidRequestBodyError{Cause: err}
	}
	field.Set(target.Elem())
	return nil
}

// decodeXMLBody decodes with encoding/xml, which has no DTD or external
// entity resolution, so the XXE class of attacks named in spec.md §4.2
// has no code path to exploit here (see DESIGN.md).
func decodeXMLBody(data []byte, field reflect.Value) error {
	target := reflect.New(field.Type())
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	dec.Strict = true
	if err := dec.Decode(target.Interface()); err != nil {
		return &InvalidRequestBodyError{Cause: err}
	}
	field.Set(target.Elem())
	return nil
}

// decodeMsgPackBody decodes an application/msgpack body with
// github.com/vmihailenco/msgpack/v5, the counterpart of response.go's
// MsgPack writer (spec.md §4.2 "MultiFormatBodyBinder").
func decodeMsgPackBody(data []byte, field reflect.Value) error {
	target := reflect.New(field.Type())
	if err := msgpack.Unmarshal(data, target.Interface()); err != nil {
		return &InvalidRequestBodyError{Cause: err}
	}
	field.Set(target.Elem())
	return nil
}

// decodeProtobufBody decodes an application/x-protobuf body with
// google.golang.org/protobuf, the counterpart of response.go's Protobuf
// writer. The declared field type must implement proto.Message.
func decodeProtobufBody(data []byte, field reflect.Value) error {
	target := reflect.New(field.Type())
	msg, ok := target.Interface().(proto.Message)
	if !ok {
		return &InvalidRequestBodyError{Cause: fmt.Errorf("aeris: %s does not implement proto.Message", field.Type())}
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return &InvalidRequestBodyError{Cause: err}
	}
	field.Set(target.Elem())
	return nil
}

func decodeFormBody(data []byte, field reflect.Value) error {
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return &InvalidRequestBodyError{Cause: err}
	}

	// map[string][]string is the only supported map shape for a form
	// body, matching url.Values itself.
	if field.Type() == reflect.TypeOf(url.Values{}) {
		field.Set(reflect.ValueOf(values))
		return nil
	}

	target := reflect.New(field.Type()).Elem()
	for i := 0; i < target.NumField(); i++ {
		sf := target.Type().Field(i)
		key := sf.Tag.Get("form")
		if key == "" {
			key = sf.Name
		}
		vs := values[key]
		if len(vs) == 0 {
			continue
		}
		v, err := sharedConverters.Convert(vs[0], sf.Type)
		if err != nil {
			return &InvalidRequestBodyError{Parameter: key, Cause: err}
		}
		target.Field(i).Set(v)
	}
	field.Set(target)
	return nil
}
