// Package ident generates identifiers for users and rides.
package ident

import (
	"fmt"
	"math/rand"
	"time"
)

// Generator produces identifiers by combining wall-clock time at
// millisecond resolution with a random three-digit suffix. Two IDs
// collide only when generated within the same millisecond with the
// same suffix, which is acceptable at this system's request rate.
// The values are not ordered and must not be used for sorting.
type Generator struct {
	now  func() time.Time
	intn func(n int) int
}

// New creates a Generator backed by the system clock.
func New() *Generator {
	return &Generator{
		now:  time.Now,
		intn: rand.Intn,
	}
}

// NewWithSource creates a Generator with an injected clock and random
// source, for tests.
func NewWithSource(now func() time.Time, intn func(n int) int) *Generator {
	return &Generator{now: now, intn: intn}
}

// NextID returns a new identifier.
func (g *Generator) NextID() string {
	return fmt.Sprintf("%d%03d", g.now().UnixMilli(), g.intn(1000))
}
