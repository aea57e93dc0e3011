package concurrency

import "fmt"

// invariant panics when a caller contract is violated. Hierarchy and relock
// preconditions are programming errors, not recoverable runtime conditions:
// proceeding past a violated invariant risks silent corruption, so the check
// is always compiled in and fails loudly.
func invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("concurrency: "+format, args...))
	}
}
