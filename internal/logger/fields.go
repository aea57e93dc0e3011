package logger

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so lock traffic can
// be aggregated and queried by resource, mode, and execution context.
const (
	KeyResource   = "resource"    // resource identifier ("db/test.users")
	KeyLevel      = "level"       // hierarchy level: global, database, collection, mutex
	KeyMode       = "mode"        // lock mode: IS, IX, S, X
	KeyNewMode    = "new_mode"    // target mode for relock operations
	KeyContextID  = "context_id"  // lock context (execution context) identifier
	KeyTimeout    = "timeout"     // bounded-wait timeout
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyHeld       = "held"        // number of locks held by a context
	KeyError      = "error"       // error message
)
