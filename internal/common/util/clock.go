package util

import "time"

type Clock interface {
	Now() time.Time
}

type DefaultClock struct{}

func (c *DefaultClock) Now() time.Time { return time.Now() }

// FrozenClock always reports the same instant. For tests.
type FrozenClock struct {
	T time.Time
}

func (c *FrozenClock) Now() time.Time { return c.T }
