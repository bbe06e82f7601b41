package expect

import (
	"fmt"
	"math"
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined stands for an absent value, as opposed to nil which is an
// explicit null.
var Undefined any = undefined{}

var deepOpts = []cmp.Option{
	cmp.Exporter(func(reflect.Type) bool { return true }),
	cmpopts.EquateNaNs(),
}

// identical reports whether a and b are the same value: same dynamic type and
// equal, with NaN equal to itself and +0 distinct from -0. Reference kinds
// compare by address.
func identical(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Float32, reflect.Float64:
		fa, fb := va.Float(), vb.Float()
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		if fa == 0 && fb == 0 {
			return math.Signbit(fa) == math.Signbit(fb)
		}
		return fa == fb
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if !va.Type().Comparable() {
		return false
	}
	// Interface fields may still hold incomparable values.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

func deepEqual(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = reflect.DeepEqual(a, b)
		}
	}()
	return cmp.Equal(a, b, deepOpts...)
}

func diff(expected, received any) (d string) {
	defer func() {
		if recover() != nil {
			d = ""
		}
	}()
	return cmp.Diff(expected, received, deepOpts...)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

func truthy(v any) bool {
	if isNil(v) || v == Undefined {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.String:
		return rv.Len() > 0
	}
	return true
}

func toFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// text returns the string form of string-like subjects.
func text(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case error:
		return x.Error(), true
	case fmt.Stringer:
		if isNil(x) {
			return "", false
		}
		return x.String(), true
	}
	return "", false
}
