package counters

import (
	"math"
	"time"
)

// Provider samples one counter. It runs on the scheduler goroutine and may be
// slow; an error or a panic leaves the previous sample in place.
type Provider[T any] func() (T, error)

// Sample is an immutable snapshot of a counter. It is always replaced as a
// whole, so readers never see previous and current from different refreshes.
type Sample[T any] struct {
	Previous  T
	Current   T
	Timestamp time.Time
}

// Number is the set of scalar types LerpScalar can interpolate.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Vector is a fixed-length sample such as per-core CPU load. Providers must
// return a fresh slice on every call. Vector registries copy it for readers.
type Vector []float64

// LerpFunc blends prev towards curr by frac, where frac is already clamped to [0,1].
type LerpFunc[T any] func(prev, curr T, frac float64) T

// LerpScalar interpolates numeric scalars. At frac 1 it returns curr exactly.
func LerpScalar[T Number](prev, curr T, frac float64) T {
	if frac >= 1 {
		return curr
	}
	if frac <= 0 {
		return prev
	}
	return T(float64(prev) + (float64(curr)-float64(prev))*frac)
}

// Clone returns a copy of v that shares no memory with it.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	return append(Vector(nil), v...)
}

// LerpVector interpolates component-wise. A missing previous component counts
// as zero, so the first sample of a vector eases in from zero like a scalar.
// The result is always a new slice.
func LerpVector(prev, curr Vector, frac float64) Vector {
	if frac >= 1 {
		return curr.Clone()
	}
	out := make(Vector, len(curr))
	for i, c := range curr {
		var p float64
		if i < len(prev) {
			p = prev[i]
		}
		if frac <= 0 {
			out[i] = p
			continue
		}
		out[i] = p + (c-p)*frac
	}
	return out
}

// Fraction returns how far now lies into [timestamp, timestamp+interval],
// clamped to [0,1].
func Fraction(timestamp time.Time, interval time.Duration, now time.Time) float64 {
	if interval <= 0 {
		return 1
	}
	elapsed := now.Sub(timestamp)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= interval {
		return 1
	}
	return float64(elapsed) / float64(interval)
}

// Ease returns the value of s at now, moving linearly from Previous to
// Current over one interval after Timestamp.
func Ease[T any](s Sample[T], interval time.Duration, now time.Time, lerp LerpFunc[T]) T {
	return lerp(s.Previous, s.Current, Fraction(s.Timestamp, interval, now))
}

// Normalize maps v into [0,1] relative to [min,max]. A degenerate range maps
// everything at or above min to 1. NaN maps to 0.
func Normalize(v, min, max float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if max <= min {
		if v >= min {
			return 1
		}
		return 0
	}
	f := (v - min) / (max - min)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
