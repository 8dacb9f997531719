package services

import "time"

// Clock supplies the current time to every decision that depends on it
// (schedule validation, due-work selection, claim and processed
// timestamps), so intake and dispatch are deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock implementation used by the
// binaries.
func SystemClock() Clock { return systemClock{} }
