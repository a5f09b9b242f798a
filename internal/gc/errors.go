package gc

import lumenerrors "github.com/lumen-lang/lumen/internal/errors"

// The three invariant-violation conditions §7/§9 name explicitly:
// positive refcount on decrement, valid phase transitions, and a
// var-ref detached at most once.

func invariantRefCountUnderflow(c Cell) error {
	return lumenerrors.InvariantViolation("ref_count underflow on release", map[string]interface{}{
		"type": c.header().Type.String(),
	})
}

func invariantPhaseTransition(from, to Phase) error {
	return lumenerrors.InvariantViolation("illegal GC phase transition", map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	})
}

func invariantDoubleDetach(v *VarRef) error {
	return lumenerrors.InvariantViolation("var-ref detached more than once", map[string]interface{}{
		"refCount": v.RefCount,
	})
}
