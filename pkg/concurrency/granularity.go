package concurrency

import "sync/atomic"

// Storage engines that cannot lock below a given level have the intent
// modes upgraded transparently at that level: IS becomes S and IX becomes X.
// Callers above the guards are unaware of the substitution; the upgraded
// mode still satisfies every containment rule the requested one would.
//
// Both flags default to enabled and are expected to be set once at startup
// from the engine's configuration.

var (
	collectionLockingDisabled atomic.Bool
	documentLockingDisabled   atomic.Bool
)

// SetCollectionLockingEnabled controls whether the storage layer supports
// collection-level locking. When disabled, DBLock upgrades IS to S and IX
// to X.
func SetCollectionLockingEnabled(enabled bool) {
	collectionLockingDisabled.Store(!enabled)
}

// CollectionLockingEnabled reports whether collection-level locking is on.
func CollectionLockingEnabled() bool {
	return !collectionLockingDisabled.Load()
}

// SetDocumentLockingEnabled controls whether the storage layer supports
// document-level locking. When disabled, CollectionLock upgrades IS to S
// and IX to X.
func SetDocumentLockingEnabled(enabled bool) {
	documentLockingDisabled.Store(!enabled)
}

// DocumentLockingEnabled reports whether document-level locking is on.
func DocumentLockingEnabled() bool {
	return !documentLockingDisabled.Load()
}

// upgradeIntent maps IS to S and IX to X, leaving full modes untouched.
func upgradeIntent(mode LockMode) LockMode {
	switch mode {
	case ModeIS:
		return ModeS
	case ModeIX:
		return ModeX
	default:
		return mode
	}
}
