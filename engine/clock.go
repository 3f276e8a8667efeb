package engine

import "time"

// Clock abstracts wall-clock reads so time-window and deferral logic can be
// tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
