// Package model defines the data structures for failure capture and report rendering.
package model

// Path represents a file system path.
type Path string

// GeneratedPath is the synthetic marker used for routines whose source
// does not live in a regular file (runtime stubs, generated code).
const GeneratedPath Path = "<generated>"

func (p Path) String() string {
	return string(p)
}

// IsGenerated reports whether the path is the synthetic marker rather
// than a real file location.
func (p Path) IsGenerated() bool {
	return p == GeneratedPath || p == ""
}
