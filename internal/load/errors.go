package load

import (
	"fmt"
	"strings"
)

// CyclicReferenceError names a reference chain that loops back on a
// location already being resolved (spec.md §7: CyclicReference(chain)).
type CyclicReferenceError struct {
	Chain []string
}

func (e *CyclicReferenceError) Error() string {
	return fmt.Sprintf("cyclic reference: %s", strings.Join(e.Chain, " -> "))
}

// DuplicateAliasError names a process alias (or, absent an alias, a
// process's own name) used twice at the same flow scope (spec.md §7:
// DuplicateAlias(scope, name)).
type DuplicateAliasError struct {
	Scope string
	Name  string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("duplicate alias %q at scope %q", e.Name, e.Scope)
}

// NotRootFlowError is returned when the root reference resolves to a
// Function rather than a Flow.
type NotRootFlowError struct {
	Ref string
}

func (e *NotRootFlowError) Error() string {
	return fmt.Sprintf("root reference %q does not resolve to a flow", e.Ref)
}
