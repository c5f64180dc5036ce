package domain

import (
	"reflect"
	"runtime"
	"sync"
)

// HideMarkerName is the well-known binding that suppresses an entry from
// reports. Bindings with a leading '@' are markers, never user data.
const HideMarkerName = "@hide"

// Vars is the set of named values a call site exposes for diagnostics.
type Vars map[string]any

// Bindings is an immutable name-to-value snapshot taken at capture time.
// Later mutation of the originally bound variables is intentionally not
// reflected; the snapshot trades exact temporal fidelity for safety.
type Bindings struct {
	vals map[string]any
}

func newBindings(vars Vars) Bindings {
	if len(vars) == 0 {
		return Bindings{}
	}

	vals := make(map[string]any, len(vars))
	for name, v := range vars {
		vals[name] = v
	}

	return Bindings{vals: vals}
}

// Get returns the bound value for name.
func (b Bindings) Get(name string) (any, bool) {
	v, ok := b.vals[name]

	return v, ok
}

// Names returns all bound names in sorted order.
func (b Bindings) Names() []string {
	return sortedNames(b.vals)
}

// Len returns the number of bindings.
func (b Bindings) Len() int {
	return len(b.vals)
}

// HideMarker is the resolved value of the hide binding: either a fixed
// boolean or a predicate deciding per captured outcome.
type HideMarker struct {
	set   bool
	value bool
	pred  func(*Outcome) bool
}

// HideIf wraps a predicate for use as an @hide binding value.
func HideIf(pred func(*Outcome) bool) func(*Outcome) bool {
	return pred
}

func hideMarkerFrom(v any, ok bool) HideMarker {
	if !ok {
		return HideMarker{}
	}

	switch x := v.(type) {
	case bool:
		return HideMarker{set: true, value: x}
	case func(*Outcome) bool:
		return HideMarker{set: true, pred: x}
	default:
		// Any other non-nil marker value counts as "hide".
		return HideMarker{set: true, value: x != nil}
	}
}

func (h HideMarker) resolve(o *Outcome) bool {
	if !h.set {
		return false
	}

	if h.pred != nil {
		return h.pred(o)
	}

	return h.value
}

// ScopeTable records the bindings instrumented call sites expose. Go has
// no frame locals to reflect on, so functions deposit them explicitly:
//
//	unbind := reg.Scopes().Bind(domain.Vars{"x": x})
//	...
//	unbind() // on the success path only
//
// The unbind must not be deferred: a panicking call leaves its snapshot
// in place so capture still sees it. Bind stacks per function, so
// recursive calls each carry their own snapshot, innermost on top.
// Clear wipes residue once a captured failure has been rendered. The
// table is safe for concurrent use.
type ScopeTable struct {
	mu      sync.RWMutex
	locals  map[string][]Bindings
	args    map[string][]Bindings
	globals map[string]Bindings
}

// NewScopeTable constructs an empty ScopeTable.
func NewScopeTable() *ScopeTable {
	return &ScopeTable{
		locals:  make(map[string][]Bindings),
		args:    make(map[string][]Bindings),
		globals: make(map[string]Bindings),
	}
}

// Bind snapshots vars as the calling function's locals and returns the
// matching unbind, to call when the function returns normally.
func (s *ScopeTable) Bind(vars Vars) func() {
	function := callerFunction(2)

	s.mu.Lock()
	s.locals[function] = append(s.locals[function], newBindings(vars))
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		stack := s.locals[function]
		if len(stack) > 0 {
			s.locals[function] = stack[:len(stack)-1]
		}
		s.mu.Unlock()
	}
}

// BindArgs snapshots vars as the calling function's arguments and
// returns the matching unbind.
func (s *ScopeTable) BindArgs(vars Vars) func() {
	function := callerFunction(2)

	s.mu.Lock()
	s.args[function] = append(s.args[function], newBindings(vars))
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		stack := s.args[function]
		if len(stack) > 0 {
			s.args[function] = stack[:len(stack)-1]
		}
		s.mu.Unlock()
	}
}

// Clear drops every local and argument deposit, keeping globals.
// Call it after a captured failure has been rendered.
func (s *ScopeTable) Clear() {
	s.mu.Lock()
	s.locals = make(map[string][]Bindings)
	s.args = make(map[string][]Bindings)
	s.mu.Unlock()
}

// BindGlobals snapshots package-level bindings for every function in pkg.
func (s *ScopeTable) BindGlobals(pkg string, vars Vars) {
	s.mu.Lock()
	s.globals[pkg] = newBindings(vars)
	s.mu.Unlock()
}

// localsAt returns the locals snapshot for the given occurrence of
// function in a chain, counted from the innermost frame (0 = deepest).
func (s *ScopeTable) localsAt(function string, depth int) Bindings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return bindingAt(s.locals[function], depth)
}

func (s *ScopeTable) argsAt(function string, depth int) Bindings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return bindingAt(s.args[function], depth)
}

func (s *ScopeTable) globalsFor(function string) Bindings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.globals[packageOf(function)]
}

func bindingAt(stack []Bindings, depth int) Bindings {
	i := len(stack) - 1 - depth
	if i < 0 || i >= len(stack) {
		return Bindings{}
	}

	return stack[i]
}

func callerFunction(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "?"
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "?"
	}

	return fn.Name()
}

// safeEqual compares two binding snapshots, preferring a value's own
// Equal method when it has one. User comparisons may fault; the fault is
// returned rather than propagated.
func safeEqual(a, b Bindings) (eq bool, fault any) {
	defer func() {
		if p := recover(); p != nil {
			eq = false
			fault = p
		}
	}()

	if a.Len() != b.Len() {
		return false, nil
	}

	for _, name := range a.Names() {
		va, _ := a.Get(name)

		vb, ok := b.Get(name)
		if !ok {
			return false, nil
		}

		if eqer, ok := va.(interface{ Equal(other any) bool }); ok {
			if !eqer.Equal(vb) {
				return false, nil
			}

			continue
		}

		if !reflect.DeepEqual(va, vb) {
			return false, nil
		}
	}

	return true, nil
}
