package domain

import "github.com/jonboulle/clockwork"

// clock is the package-level time source behind ProcessedAt stamping.
// Production code uses the real clock; tests and the fixture generator
// inject a fake via SetClock for deterministic output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
