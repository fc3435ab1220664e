package aeris

import (
	"errors"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()
var requestPtrType = reflect.TypeOf((*Request)(nil))
var responsePtrType = reflect.TypeOf((*Response)(nil))

// Normalize builds a Handler from an arbitrary handler function, resolving
// its second parameter's fields to binders and auto-wrapping its return
// value into a *Response (spec.md §4.3 "Handler normalizer").
//
// fn must have the shape func(*Request[, P]) (R, error) or
// func(*Request[, P]) error, where P is a struct type and R is anything:
// already a *Response (pass-through), a string (200 text/plain), nil (204),
// or any other value (200 application/json). Go has no runtime access to
// parameter names for arbitrary functions, so — unlike the dynamic
// per-parameter signature inspection of the source this spec distilled
// from — exactly one struct parameter carries the bindable fields, each
// resolved by name/tag the same way planStruct resolves route, query,
// header, cookie, body, service, and scope parameters.
func Normalize(route *Route, fn interface{}, services *ServiceContainer) (Handler, error) {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()

	if fnType.Kind() != reflect.Func {
		return nil, errors.New("aeris: handler must be a function")
	}
	if fnType.NumIn() < 1 || fnType.In(0) != requestPtrType {
		return nil, errors.New("aeris: handler's first parameter must be *aeris.Request")
	}
	if fnType.NumIn() > 2 {
		return nil, errors.New("aeris: handler takes at most (*aeris.Request, params struct)")
	}
	if fnType.NumOut() < 1 || fnType.NumOut() > 2 {
		return nil, errors.New("aeris: handler must return (result, error) or (error)")
	}
	if !fnType.Out(fnType.NumOut() - 1).Implements(errorType) {
		return nil, errors.New("aeris: handler's last return value must be error")
	}

	var plan *structPlan
	if fnType.NumIn() == 2 {
		var routeParams []string
		if route != nil {
			routeParams = route.Params
		}
		p, err := planStruct(fnType.In(1), routeParams, services)
		if err != nil {
			return nil, err
		}
		plan = p
	}

	hasResult := fnType.NumOut() == 2

	return func(req *Request) (*Response, error) {
		args := make([]reflect.Value, 0, 2)
		args = append(args, reflect.ValueOf(req))

		if plan != nil {
			dest := reflect.New(fnType.In(1))
			if err := bindStruct(plan, req, dest); err != nil {
				return nil, err
			}
			args = append(args, dest.Elem())
		}

		out := fnVal.Call(args)

		errVal := out[len(out)-1]
		if !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}

		if !hasResult {
			return NoContent(), nil
		}

		return autoWrap(out[0])
	}, nil
}

// autoWrap implements spec.md §4.3's return-value coercion: None → 204,
// str → 200 text, dict/model → 200 JSON, already a Response → pass-through.
func autoWrap(v reflect.Value) (*Response, error) {
	if v.Type() == responsePtrType {
		resp, _ := v.Interface().(*Response)
		if resp == nil {
			return NoContent(), nil
		}
		return resp, nil
	}

	if isNilable(v) && v.IsNil() {
		return NoContent(), nil
	}

	if v.Kind() == reflect.String {
		return Text(v.String()), nil
	}

	return JSON(v.Interface())
}

func isNilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return true
	default:
		return false
	}
}
