package cmd

import (
	"errors"
	"fmt"

	"github.com/mouse-blink/traceview/internal/domain"
)

// scenarios maps probe scenario names to their capture functions.
var scenarios = map[string]func(*domain.SourceRegistry) *domain.Outcome{
	"basic":     scenarioBasic,
	"chained":   scenarioChained,
	"wrapped":   scenarioWrapped,
	"recursive": scenarioRecursive,
	"hidden":    scenarioHidden,
}

// capture runs fn and converts its panic into a captured outcome.
func capture(reg *domain.SourceRegistry, fn func()) *domain.Outcome {
	var out *domain.Outcome

	func() {
		defer func() {
			if r := recover(); r != nil {
				out, _ = domain.FromRecovered(r, reg)
			}
		}()

		fn()
	}()

	return out
}

func scenarioBasic(reg *domain.SourceRegistry) *domain.Outcome {
	return capture(reg, func() {
		applyQuota(reg.Scopes(), "replicas", -3)
	})
}

func applyQuota(scopes *domain.ScopeTable, resource string, quota int) {
	unbind := scopes.BindArgs(domain.Vars{"resource": resource, "quota": quota})
	unbindLocals := scopes.Bind(domain.Vars{"applied": 0, "resource": resource, "quota": quota})

	if quota < 0 {
		panic(fmt.Errorf("quota for %s must not be negative, got %d", resource, quota))
	}

	unbindLocals()
	unbind()
}

func scenarioChained(reg *domain.SourceRegistry) *domain.Outcome {
	inner := capture(reg, func() {
		decodeRecord(reg.Scopes(), "{claims:")
	})

	outer := capture(reg, func() {
		verifyProfile(reg.Scopes(), "deploy-bot")
	})

	return outer.CausedBy(inner)
}

func decodeRecord(scopes *domain.ScopeTable, raw string) {
	scopes.Bind(domain.Vars{"raw": raw})

	panic(errors.New("record truncated at offset 8"))
}

func verifyProfile(scopes *domain.ScopeTable, owner string) {
	scopes.Bind(domain.Vars{"owner": owner})

	panic(domain.AssertionFailure{Msg: "profile checksum mismatch"})
}

func scenarioWrapped(reg *domain.SourceRegistry) *domain.Outcome {
	return capture(reg, func() {
		base := errors.New("connection refused")
		panic(fmt.Errorf("flushing report queue: %w", base))
	})
}

func scenarioRecursive(reg *domain.SourceRegistry) *domain.Outcome {
	return capture(reg, func() {
		drainBacklog(reg.Scopes(), 0, 8)
	})
}

func drainBacklog(scopes *domain.ScopeTable, step int, limit int) {
	unbind := scopes.Bind(domain.Vars{"phase": step % 3, "limit": limit})

	if step > limit {
		panic(errors.New("backlog drain never converges"))
	}

	drainBacklog(scopes, step+1, limit)
	unbind()
}

func scenarioHidden(reg *domain.SourceRegistry) *domain.Outcome {
	return capture(reg, func() {
		throughRetryShim(reg.Scopes())
	})
}

func throughRetryShim(scopes *domain.ScopeTable) {
	unbind := scopes.Bind(domain.Vars{
		domain.HideMarkerName: true,
		"attempt":             1,
	})

	rejectLease(scopes, "worker-7")
	unbind()
}

func rejectLease(scopes *domain.ScopeTable, holder string) {
	scopes.Bind(domain.Vars{"holder": holder})

	panic(fmt.Errorf("lease for %s already revoked", holder))
}
