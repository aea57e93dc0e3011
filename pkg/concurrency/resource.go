package concurrency

import (
	"fmt"
	"strings"
)

// ResourceLevel identifies the hierarchy level a resource belongs to.
type ResourceLevel uint8

const (
	// LevelGlobal is the whole-system resource. There is exactly one.
	LevelGlobal ResourceLevel = iota

	// LevelDatabase is a database within the system.
	LevelDatabase

	// LevelCollection is a collection within a database.
	LevelCollection

	// LevelMutex is for auxiliary subsystem resources outside the
	// global/database/collection hierarchy.
	LevelMutex
)

// String returns a human-readable name for the level.
func (l ResourceLevel) String() string {
	switch l {
	case LevelGlobal:
		return "global"
	case LevelDatabase:
		return "database"
	case LevelCollection:
		return "collection"
	case LevelMutex:
		return "mutex"
	default:
		return "unknown"
	}
}

// ResourceID names a lockable resource at a given hierarchy level.
//
// ResourceIDs are immutable values with structural equality: two guards
// naming the same namespace always compute equal identifiers, so they
// contend on the same entry in the lock tracker. The zero value is the
// global resource.
type ResourceID struct {
	Level ResourceLevel
	Name  string
}

// ResourceGlobal is the single well-known whole-system resource.
var ResourceGlobal = ResourceID{Level: LevelGlobal}

// DatabaseResource returns the identifier for the database that owns the
// given namespace. A namespace is either a bare database name ("test") or a
// dotted "db.collection" pair ("test.users"); everything before the first
// dot names the database.
func DatabaseResource(ns string) ResourceID {
	db, _, _ := strings.Cut(ns, ".")
	return ResourceID{Level: LevelDatabase, Name: db}
}

// CollectionResource returns the identifier for a fully-qualified
// "db.collection" namespace.
func CollectionResource(ns string) ResourceID {
	return ResourceID{Level: LevelCollection, Name: ns}
}

// MutexResource returns an identifier for an auxiliary resource outside the
// hierarchy. Callers are responsible for any ordering discipline among
// mutex resources.
func MutexResource(name string) ResourceID {
	return ResourceID{Level: LevelMutex, Name: name}
}

// String returns "level/name" for logging and error messages.
func (r ResourceID) String() string {
	if r.Level == LevelGlobal {
		return "global"
	}
	return fmt.Sprintf("%s/%s", r.Level, r.Name)
}
