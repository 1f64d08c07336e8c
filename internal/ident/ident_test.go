package ident

import (
	"testing"
	"time"
)

func TestNextID_ComposesMillisAndSuffix(t *testing.T) {
	t.Parallel()

	fixed := time.UnixMilli(1700000000123)
	gen := NewWithSource(func() time.Time { return fixed }, func(n int) int { return 7 })

	got := gen.NextID()
	want := "1700000000123007"
	if got != want {
		t.Errorf("expected id %s, got %s", want, got)
	}
}

func TestNextID_SuffixZeroPadded(t *testing.T) {
	t.Parallel()

	fixed := time.UnixMilli(1)
	gen := NewWithSource(func() time.Time { return fixed }, func(n int) int { return 0 })

	if got := gen.NextID(); got != "1000" {
		t.Errorf("expected id 1000, got %s", got)
	}
}

func TestNextID_DistinctAcrossMilliseconds(t *testing.T) {
	t.Parallel()

	ms := int64(0)
	gen := NewWithSource(func() time.Time {
		ms++
		return time.UnixMilli(ms)
	}, func(n int) int { return 42 })

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen.NextID()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
