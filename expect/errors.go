package expect

import (
	"fmt"
	"strings"
)

// AssertionError reports a matcher whose predicate did not hold.
type AssertionError struct {
	Matcher  string
	Subject  any
	Expected []any
	Negated  bool
	Modifier string // "", "Resolves" or "Rejects"
	Message  string
	Diff     string
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Call())
	if e.Message != "" {
		b.WriteString("\n\n")
		b.WriteString(e.Message)
		return b.String()
	}
	b.WriteString("\n\n")
	if len(e.Expected) > 0 {
		prefix := "Expected: "
		if e.Negated {
			prefix = "Expected: not "
		}
		fmt.Fprintf(&b, "%s%s\n", prefix, formatList(e.Expected))
	}
	fmt.Fprintf(&b, "Received: %s", format(e.Subject))
	return b.String()
}

// Call renders the assertion the way it was written, e.g.
// Expect(received).Not().ToBe(expected).
func (e *AssertionError) Call() string {
	var b strings.Builder
	b.WriteString("Expect(received)")
	if e.Modifier != "" {
		b.WriteString("." + e.Modifier + "()")
	}
	if e.Negated {
		b.WriteString(".Not()")
	}
	b.WriteString("." + e.Matcher + "(")
	if len(e.Expected) > 0 {
		b.WriteString("expected")
	}
	b.WriteString(")")
	return b.String()
}

// UsageError reports a matcher applied to a subject or argument of the wrong
// shape. It fails the assertion whether or not it was negated.
type UsageError struct {
	Matcher string
	Reason  string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Matcher, e.Reason)
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case error:
		return fmt.Sprintf("error(%q)", x.Error())
	case undefined:
		return "undefined"
	case nil:
		return "nil"
	}
	return fmt.Sprintf("%#v", v)
}

func formatList(vs []any) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = format(v)
	}
	return strings.Join(parts, ", ")
}
