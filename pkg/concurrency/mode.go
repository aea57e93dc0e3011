// Package concurrency implements stratum's multi-granularity locking layer.
// It provides the lock mode lattice, hierarchical resource identifiers, and
// the scoped guards that application code uses to lock the global, database
// and collection levels in the correct order.
//
// Import graph: concurrency <- tracker <- engine code
package concurrency

// LockMode is one of the canonical lock modes of the mode lattice.
//
// S and X are "full" modes: S permits concurrent S/IS holders only; X
// excludes everyone else. IS and IX are intent modes taken on ancestor
// resources: IX on a database means some collection below it may be locked
// exclusively, IS means some collection below it may be locked shared.
type LockMode uint8

const (
	// ModeNone means no lock is held.
	ModeNone LockMode = iota

	// ModeIS is intent-shared: a descendant resource may be locked in S.
	ModeIS

	// ModeIX is intent-exclusive: a descendant resource may be locked in X.
	ModeIX

	// ModeS is shared: concurrent readers, no writers.
	ModeS

	// ModeX is exclusive: no other holders of any mode.
	ModeX

	lockModeCount
)

// String returns the conventional short name for the mode.
func (m LockMode) String() string {
	switch m {
	case ModeNone:
		return "NONE"
	case ModeIS:
		return "IS"
	case ModeIX:
		return "IX"
	case ModeS:
		return "S"
	case ModeX:
		return "X"
	default:
		return "INVALID"
	}
}

// IsValid reports whether m is one of the canonical modes (including None).
func (m LockMode) IsValid() bool {
	return m < lockModeCount
}

// IsIntent reports whether m is one of the intent modes (IS or IX).
func (m LockMode) IsIntent() bool {
	return m == ModeIS || m == ModeIX
}

// IsShared reports whether m is on the shared side of the lattice (IS or S).
// The intent ancestor for a shared-side mode is IS; for the exclusive side
// (IX, X) it is IX.
func (m LockMode) IsShared() bool {
	return m == ModeIS || m == ModeS
}

// compatibility[held][requested] reports whether a lock in `requested` mode
// may be granted while another context holds `held` on the same resource.
//
//	     NONE  IS    IX    S     X
//	NONE  yes   yes   yes   yes   yes
//	IS    yes   yes   yes   yes   no
//	IX    yes   yes   yes   no    no
//	S     yes   yes   no    yes   no
//	X     yes   no    no    no    no
var compatibility = [lockModeCount][lockModeCount]bool{
	ModeNone: {ModeNone: true, ModeIS: true, ModeIX: true, ModeS: true, ModeX: true},
	ModeIS:   {ModeNone: true, ModeIS: true, ModeIX: true, ModeS: true, ModeX: false},
	ModeIX:   {ModeNone: true, ModeIS: true, ModeIX: true, ModeS: false, ModeX: false},
	ModeS:    {ModeNone: true, ModeIS: true, ModeIX: false, ModeS: true, ModeX: false},
	ModeX:    {ModeNone: true, ModeIS: false, ModeIX: false, ModeS: false, ModeX: false},
}

// Compatible reports whether a requested mode can coexist with a held mode
// on the same resource when the two belong to different contexts.
func Compatible(held, requested LockMode) bool {
	return compatibility[held][requested]
}

// covered[requested][held] reports whether a context already holding `held`
// needs no new acquisition to operate at `requested`: the held mode grants
// at least the rights of the requested one.
var covered = [lockModeCount][lockModeCount]bool{
	ModeNone: {ModeNone: true, ModeIS: true, ModeIX: true, ModeS: true, ModeX: true},
	ModeIS:   {ModeIS: true, ModeIX: true, ModeS: true, ModeX: true},
	ModeIX:   {ModeIX: true, ModeX: true},
	ModeS:    {ModeS: true, ModeX: true},
	ModeX:    {ModeX: true},
}

// Covers reports whether holding `held` makes a request for `requested`
// redundant. Reentrant acquisition in a covered mode only bumps the
// reference count instead of going back to the conflict table.
func Covers(held, requested LockMode) bool {
	return covered[requested][held]
}

// IntentMode returns the mode that must be held on every ancestor resource
// before locking a resource in mode m: IS for the shared side (IS, S), IX
// for the exclusive side (IX, X).
func IntentMode(m LockMode) LockMode {
	if m.IsShared() {
		return ModeIS
	}
	return ModeIX
}
