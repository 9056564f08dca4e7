// Package system provides the wall clock used outside of tests.
package system

import "time"

// Clock implements inspect.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC so cached timestamps compare cleanly
// across processes.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
