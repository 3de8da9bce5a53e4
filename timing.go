// FILE: lixenwraith/confschema/timing.go
package confschema

import "time"

// Core timing constants for production use.
const (
	SpinWaitInterval     = 5 * time.Millisecond   // CPU-friendly busy-wait quantum
	ShutdownTimeout      = 100 * time.Millisecond // Graceful watcher termination window
	DefaultDebounce      = 500 * time.Millisecond // File change coalescence period
	DefaultReloadTimeout = 5 * time.Second        // Maximum duration for a re-parse
)

// Derived timing relationships for internal use.
const (
	// shutdownPollCycles defines how many spin-wait cycles comprise a shutdown timeout
	shutdownPollCycles = int(ShutdownTimeout / SpinWaitInterval) // = 20 cycles

	// debounceSettleMultiplier ensures sufficient time for debounce to complete
	debounceSettleMultiplier = 3
)
