package domain

import (
	"errors"
	"testing"
)

func TestScopeTableBindAndUnbind(t *testing.T) {
	scopes := NewScopeTable()
	self := callerFunction(1)

	unbind := scopes.Bind(Vars{"x": 1})

	got := scopes.localsAt(self, 0)
	if v, ok := got.Get("x"); !ok || v != 1 {
		t.Fatalf("expected x=1 bound, got %v ok=%v", v, ok)
	}

	unbind()

	if scopes.localsAt(self, 0).Len() != 0 {
		t.Errorf("expected no bindings after unbind")
	}
}

func TestScopeTableSnapshotsAtBindTime(t *testing.T) {
	scopes := NewScopeTable()
	self := callerFunction(1)

	x := 1
	scopes.Bind(Vars{"x": x})
	x = 2

	if v, _ := scopes.localsAt(self, 0).Get("x"); v != 1 {
		t.Errorf("binding should snapshot the value at deposit time, got %v", v)
	}
}

func TestScopeTableRecursiveDepths(t *testing.T) {
	scopes := NewScopeTable()

	var nest func(level int)
	fn := ""
	nest = func(level int) {
		if fn == "" {
			fn = callerFunction(1)
		}

		scopes.Bind(Vars{"level": level})

		if level < 2 {
			nest(level + 1)
		}
	}
	nest(0)

	// Depth counts from the innermost occurrence.
	for depth, want := range []int{2, 1, 0} {
		if v, _ := scopes.localsAt(fn, depth).Get("level"); v != want {
			t.Errorf("depth %d: level = %v, want %d", depth, v, want)
		}
	}
}

func TestScopeTableArgsAndGlobals(t *testing.T) {
	scopes := NewScopeTable()
	self := callerFunction(1)

	scopes.BindArgs(Vars{"n": 7})
	scopes.BindGlobals("github.com/mouse-blink/traceview/internal/domain", Vars{"limit": 10})

	if v, _ := scopes.argsAt(self, 0).Get("n"); v != 7 {
		t.Errorf("args: n = %v, want 7", v)
	}

	if v, _ := scopes.globalsFor(self).Get("limit"); v != 10 {
		t.Errorf("globals: limit = %v, want 10", v)
	}
}

func TestScopeTableClear(t *testing.T) {
	scopes := NewScopeTable()
	self := callerFunction(1)

	scopes.Bind(Vars{"x": 1})
	scopes.BindArgs(Vars{"y": 2})
	scopes.BindGlobals("github.com/mouse-blink/traceview/internal/domain", Vars{"z": 3})

	scopes.Clear()

	if scopes.localsAt(self, 0).Len() != 0 || scopes.argsAt(self, 0).Len() != 0 {
		t.Errorf("Clear should drop locals and args")
	}

	if scopes.globalsFor(self).Len() == 0 {
		t.Errorf("Clear should keep globals")
	}
}

func TestHideMarker(t *testing.T) {
	tests := []struct {
		name string
		v    any
		ok   bool
		want bool
	}{
		{name: "absent", v: nil, ok: false, want: false},
		{name: "true", v: true, ok: true, want: true},
		{name: "false", v: false, ok: true, want: false},
		{name: "non-bool value", v: "yes", ok: true, want: true},
		{name: "nil value", v: nil, ok: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hideMarkerFrom(tt.v, tt.ok).resolve(nil); got != tt.want {
				t.Errorf("resolve = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHideMarkerPredicate(t *testing.T) {
	pred := HideIf(func(o *Outcome) bool {
		return o != nil && o.Kind() == "errorString"
	})

	marker := hideMarkerFrom(pred, true)

	if marker.resolve(nil) {
		t.Errorf("predicate with nil outcome should not hide")
	}

	reg := newTestRegistry()
	o := ForLater(reg)
	if err := o.Fill(errors.New("x"), 0); err != nil {
		t.Fatalf("fill: %v", err)
	}

	if !marker.resolve(o) {
		t.Errorf("predicate should hide for a matching outcome")
	}
}

type touchyValue struct{}

func (touchyValue) Equal(other any) bool {
	panic("comparison not allowed")
}

func TestSafeEqual(t *testing.T) {
	a := newBindings(Vars{"x": 1})
	b := newBindings(Vars{"x": 1})
	c := newBindings(Vars{"x": 2})

	if eq, fault := safeEqual(a, b); !eq || fault != nil {
		t.Errorf("equal bindings: eq=%v fault=%v", eq, fault)
	}

	if eq, fault := safeEqual(a, c); eq || fault != nil {
		t.Errorf("unequal bindings: eq=%v fault=%v", eq, fault)
	}

	d := newBindings(Vars{"x": touchyValue{}})
	e := newBindings(Vars{"x": touchyValue{}})

	if _, fault := safeEqual(d, e); fault == nil {
		t.Errorf("expected the comparison fault to surface")
	}
}
