// Package system provides clock implementations for the archiver.
package system

import (
	"time"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
)

var (
	_ archive.Clock = Clock{}
	_ archive.Clock = Fixed{}
)

// Clock implements archive.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a clock frozen at At. Used to pin the "current month" a scrape
// runs up to.
type Fixed struct {
	At time.Time
}

// Now returns At.
func (f Fixed) Now() time.Time {
	return f.At
}
