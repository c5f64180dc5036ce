package model

import "fmt"

// Style selects how much detail a rendered report carries.
type Style string

const (
	// StyleLong shows the full statement context, optional locals and
	// argument values, and a full location line per entry.
	StyleLong Style = "long"

	// StyleShort shows only the offending source line plus a compact
	// location per entry.
	StyleShort Style = "short"

	// StyleLine emits exactly one "path:line: summary" line per entry.
	StyleLine Style = "line"

	// StyleNone produces no per-entry body, only the summary lines.
	StyleNone Style = "no"

	// StyleNative re-emits the runtime's own raw chain text verbatim.
	StyleNative Style = "native"

	// StyleUnset means no explicit per-entry override was requested.
	StyleUnset Style = ""
)

// ParseStyle validates a user-supplied style name.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleLong, StyleShort, StyleLine, StyleNone, StyleNative:
		return Style(s), nil
	}

	return StyleUnset, fmt.Errorf("unknown report style %q (want long|short|line|no|native)", s)
}
