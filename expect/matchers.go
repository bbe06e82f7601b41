package expect

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
)

// ToBe passes when the subject is identical to x.
func (a Assertion) ToBe(x any) {
	a.check("ToBe", []any{x}, func(s any) (bool, error) {
		return identical(s, x), nil
	})
}

// ToEqual passes when the subject is structurally equal to x.
func (a Assertion) ToEqual(x any) {
	a.check("ToEqual", []any{x}, func(s any) (bool, error) {
		return deepEqual(s, x), nil
	})
}

// ToBeNull passes for nil.
func (a Assertion) ToBeNull() {
	a.check("ToBeNull", nil, func(s any) (bool, error) {
		return isNil(s), nil
	})
}

// ToBeUndefined passes for Undefined.
func (a Assertion) ToBeUndefined() {
	a.check("ToBeUndefined", nil, func(s any) (bool, error) {
		return s == Undefined, nil
	})
}

// ToBeDefined passes for anything but Undefined.
func (a Assertion) ToBeDefined() {
	a.check("ToBeDefined", nil, func(s any) (bool, error) {
		return s != Undefined, nil
	})
}

// ToBeTruthy passes for values that are not falsy.
func (a Assertion) ToBeTruthy() {
	a.check("ToBeTruthy", nil, func(s any) (bool, error) {
		return truthy(s), nil
	})
}

// ToBeFalsy passes for nil, Undefined, false, zero numbers, NaN, "" and nil
// references.
func (a Assertion) ToBeFalsy() {
	a.check("ToBeFalsy", nil, func(s any) (bool, error) {
		return !truthy(s), nil
	})
}

// ToBeNaN passes for a floating point NaN.
func (a Assertion) ToBeNaN() {
	a.check("ToBeNaN", nil, func(s any) (bool, error) {
		f, ok := toFloat(s)
		return ok && math.IsNaN(f), nil
	})
}

func (a Assertion) compare(matcher string, n any, cmp func(s, n float64) bool) {
	a.check(matcher, []any{n}, func(s any) (bool, error) {
		fs, ok := toFloat(s)
		if !ok {
			return false, &UsageError{Matcher: matcher, Reason: fmt.Sprintf("received value must be a number, got %T", s)}
		}
		fn, ok := toFloat(n)
		if !ok {
			return false, &UsageError{Matcher: matcher, Reason: fmt.Sprintf("expected value must be a number, got %T", n)}
		}
		return cmp(fs, fn), nil
	})
}

func (a Assertion) ToBeGreaterThan(n any) {
	a.compare("ToBeGreaterThan", n, func(s, n float64) bool { return s > n })
}

func (a Assertion) ToBeGreaterThanOrEqual(n any) {
	a.compare("ToBeGreaterThanOrEqual", n, func(s, n float64) bool { return s >= n })
}

func (a Assertion) ToBeLessThan(n any) {
	a.compare("ToBeLessThan", n, func(s, n float64) bool { return s < n })
}

func (a Assertion) ToBeLessThanOrEqual(n any) {
	a.compare("ToBeLessThanOrEqual", n, func(s, n float64) bool { return s <= n })
}

// ToBeCloseTo passes when the subject rounds to n at the given number of
// decimal digits (default 2): |n - subject| < 10^-precision / 2.
func (a Assertion) ToBeCloseTo(n any, precision ...int) {
	digits := 2
	if len(precision) > 0 {
		digits = precision[0]
	}
	a.compare("ToBeCloseTo", n, func(s, n float64) bool {
		if math.IsInf(s, 0) || math.IsInf(n, 0) {
			return s == n
		}
		return math.Abs(n-s) < math.Pow10(-digits)/2
	})
}

// ToMatch passes when the string form of the subject contains pattern, or
// matches it when pattern is a *regexp.Regexp.
func (a Assertion) ToMatch(pattern any) {
	a.check("ToMatch", []any{pattern}, func(s any) (bool, error) {
		str, ok := text(s)
		if !ok {
			return false, &UsageError{Matcher: "ToMatch", Reason: fmt.Sprintf("received value must be a string, got %T", s)}
		}
		switch p := pattern.(type) {
		case string:
			return strings.Contains(str, p), nil
		case *regexp.Regexp:
			return p.MatchString(str), nil
		}
		return false, &UsageError{Matcher: "ToMatch", Reason: fmt.Sprintf("expected value must be a string or *regexp.Regexp, got %T", pattern)}
	})
}

// ToContain passes when a string subject contains x as a substring, or a
// slice or array subject holds an element identical to x.
func (a Assertion) ToContain(x any) {
	a.contains("ToContain", x, identical)
}

// ToContainEqual is ToContain with structural element equality.
func (a Assertion) ToContainEqual(x any) {
	a.contains("ToContainEqual", x, deepEqual)
}

func (a Assertion) contains(matcher string, x any, eq func(a, b any) bool) {
	a.check(matcher, []any{x}, func(s any) (bool, error) {
		if str, ok := s.(string); ok {
			sub, ok := x.(string)
			if !ok {
				return false, &UsageError{Matcher: matcher, Reason: fmt.Sprintf("expected value must be a string when received is a string, got %T", x)}
			}
			return strings.Contains(str, sub), nil
		}
		if s == nil {
			return false, &UsageError{Matcher: matcher, Reason: "received value must be a string, slice or array, got nil"}
		}
		rv := reflect.ValueOf(s)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false, &UsageError{Matcher: matcher, Reason: fmt.Sprintf("received value must be a string, slice or array, got %T", s)}
		}
		for i := 0; i < rv.Len(); i++ {
			if eq(rv.Index(i).Interface(), x) {
				return true, nil
			}
		}
		return false, nil
	})
}

// ToHaveLength passes when len(subject) == n.
func (a Assertion) ToHaveLength(n int) {
	a.check("ToHaveLength", []any{n}, func(s any) (bool, error) {
		if s == nil {
			return false, &UsageError{Matcher: "ToHaveLength", Reason: "received value must have a length, got nil"}
		}
		rv := reflect.ValueOf(s)
		switch rv.Kind() {
		case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
			return rv.Len() == n, nil
		}
		return false, &UsageError{Matcher: "ToHaveLength", Reason: fmt.Sprintf("received value must have a length, got %T", s)}
	})
}

// ToThrow passes when invoking the subject panics or returns a non-nil
// error. The optional expected value narrows the match: a string must be
// contained in the message, a *regexp.Regexp must match it, an error must
// satisfy errors.Is or carry the same message.
func (a Assertion) ToThrow(expected ...any) {
	a.check("ToThrow", expected, func(s any) (bool, error) {
		var thrown error
		switch fn := s.(type) {
		case func():
			thrown = invoke(func() error { fn(); return nil })
		case func() error:
			thrown = invoke(fn)
		case error:
			if a.mode != rejects {
				return false, &UsageError{Matcher: "ToThrow", Reason: "received value must be a function"}
			}
			thrown = fn
		default:
			return false, &UsageError{Matcher: "ToThrow", Reason: fmt.Sprintf("received value must be a function, got %T", s)}
		}
		if thrown == nil {
			return false, nil
		}
		if len(expected) == 0 {
			return true, nil
		}
		switch want := expected[0].(type) {
		case string:
			return strings.Contains(thrown.Error(), want), nil
		case *regexp.Regexp:
			return want.MatchString(thrown.Error()), nil
		case error:
			return errors.Is(thrown, want) || thrown.Error() == want.Error(), nil
		}
		return false, &UsageError{Matcher: "ToThrow", Reason: fmt.Sprintf("expected value must be a string, *regexp.Regexp or error, got %T", expected[0])}
	})
}

// ThrownValue wraps a non-error panic value.
type ThrownValue struct {
	Value any
}

func (e *ThrownValue) Error() string {
	return fmt.Sprint(e.Value)
}

func invoke(fn func() error) (thrown error) {
	defer func() {
		if p := recover(); p != nil {
			if err, ok := p.(error); ok {
				thrown = err
				return
			}
			thrown = &ThrownValue{Value: p}
		}
	}()
	return fn()
}
