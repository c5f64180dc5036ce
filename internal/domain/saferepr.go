package domain

import (
	"fmt"
	"reflect"
	"strconv"
)

// DefaultReprBudget is the character budget for truncated value dumps.
const DefaultReprBudget = 240

// SafeRepr converts an arbitrary value to a bounded textual form. A fault
// raised while stringifying the value is caught and rendered as a
// bracketed diagnostic placeholder; the result is truncated to maxsize
// characters with a middle ellipsis preserving head and tail context.
func SafeRepr(v any, maxsize int) string {
	if maxsize <= 0 {
		maxsize = DefaultReprBudget
	}

	s, fault := tryRepr(v)
	if fault != nil {
		s = formatConversionFault(fault, v)
	}

	return ellipsize(s, maxsize)
}

// SafeFormat is the unbounded variant used when truncation is disabled.
// Conversion faults are still contained.
func SafeFormat(v any) string {
	s, fault := tryVerbose(v)
	if fault != nil {
		return formatConversionFault(fault, v)
	}

	return s
}

// safeMessage renders the failure payload the way the runtime would print
// it, without quoting, containing any conversion fault.
func safeMessage(v any) string {
	s, fault := tryMessage(v)
	if fault != nil {
		return formatConversionFault(fault, v)
	}

	return s
}

func tryRepr(v any) (s string, fault any) {
	defer func() {
		if p := recover(); p != nil {
			fault = p
		}
	}()

	switch x := v.(type) {
	case nil:
		return "nil", nil
	case string:
		return strconv.Quote(x), nil
	case error:
		return x.Error(), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return fmt.Sprintf("%+v", x), nil
	}
}

func tryMessage(v any) (s string, fault any) {
	defer func() {
		if p := recover(); p != nil {
			fault = p
		}
	}()

	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case error:
		return x.Error(), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return fmt.Sprintf("%v", x), nil
	}
}

func tryVerbose(v any) (s string, fault any) {
	defer func() {
		if p := recover(); p != nil {
			fault = p
		}
	}()

	switch x := v.(type) {
	case nil:
		return "nil", nil
	case string:
		return strconv.Quote(x), nil
	case error:
		return x.Error(), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return fmt.Sprintf("%#v", x), nil
	}
}

// formatConversionFault names the fault raised during conversion and the
// identity of the value being converted.
func formatConversionFault(fault any, v any) string {
	return fmt.Sprintf(
		"<[%s raised in conversion] %s object at 0x%x>",
		panicSummary(fault), typeName(v), objectID(v),
	)
}

// panicSummary renders a recovered panic value as "Kind: message",
// guarding against summaries that themselves fault.
func panicSummary(p any) string {
	s, fault := trySummary(p)
	if fault != nil {
		return "unpresentable failure"
	}

	return s
}

func trySummary(p any) (s string, fault any) {
	defer func() {
		if r := recover(); r != nil {
			fault = r
		}
	}()

	switch x := p.(type) {
	case nil:
		return "nil", nil
	case string:
		return x, nil
	case error:
		return typeName(x) + ": " + x.Error(), nil
	default:
		return fmt.Sprintf("%v", x), nil
	}
}

// typeName returns the bare type name of a value, without package path
// or pointer markers.
func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Name() != "" {
		return t.Name()
	}

	return t.String()
}

// objectID returns a stable identity for reference-like values and zero
// for plain values, which have no address of their own.
func objectID(v any) uintptr {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.Pointer()
	default:
		return 0
	}
}

// ellipsize truncates s to maxsize characters using a middle ellipsis so
// both head and tail context survive.
func ellipsize(s string, maxsize int) string {
	if len(s) <= maxsize {
		return s
	}

	// Budgets too small for the ellipsis itself degrade to a bare cut.
	if maxsize < 3 {
		return s[:maxsize]
	}

	i := (maxsize - 3) / 2
	j := maxsize - 3 - i

	return s[:i] + "..." + s[len(s)-j:]
}
