// Package ladder implements the monotonically increasing price ladder, the
// IntervalTracker that maps a live price to a half-open interval of that
// ladder, and ladder construction.
package ladder

import "spotengine/internal/decimal"

// Ladder is a monotonically increasing vector of price stops,
// r0 < r1 < ... < r(n-1).
type Ladder []decimal.Decimal

// Make builds a Ladder of stopCount stops starting at firstRate and
// multiplying by factor at each step, each stop floored to tickSize (a zero
// tickSize disables flooring). factor must be > 1 for the ladder to be
// strictly increasing.
func Make(firstRate, factor decimal.Decimal, stopCount int, tickSize decimal.Decimal) Ladder {
	if stopCount <= 0 {
		return nil
	}
	l := make(Ladder, 0, stopCount)
	rate := firstRate
	for i := 0; i < stopCount; i++ {
		stop := rate
		if !tickSize.IsZero() {
			stop, _ = stop.TickFilter(tickSize)
		}
		l = append(l, stop)
		rate = rate.Mul(factor)
	}
	return l
}

// IndexOf returns the greatest index i with L[i] <= price, and whether such
// an index exists at all (false when price is below the first stop).
func (l Ladder) IndexOf(price decimal.Decimal) (int, bool) {
	found := -1
	for i, r := range l {
		if r.LessOrEqual(price) {
			found = i
		} else {
			break
		}
	}
	if found < 0 {
		return 0, false
	}
	return found, true
}

// Interval is the half-open price range [Front, Back) identified by the
// current price against the ladder.
type Interval struct {
	Front decimal.Decimal
	Back  decimal.Decimal
}

// IntervalTracker maps a live price to a half-open interval of an immutable
// ladder and emits an event only when the interval actually changes. It
// performs no I/O and is called from the market-data thread.
type IntervalTracker struct {
	ladder     Ladder
	hasIndex   bool
	index      int
}

// NewIntervalTracker builds a tracker over the given immutable ladder.
func NewIntervalTracker(l Ladder) *IntervalTracker {
	return &IntervalTracker{ladder: l}
}

// Update finds the greatest index i with ladder[i] <= price. If the index
// is undefined (price below the first stop) or equals the last stop (no
// following stop to form an interval), the price is clamped to the edge and
// treated as unchanged. If the index differs from the stored one, it is
// recorded and Interval(ladder[i], ladder[i+1]) is returned; otherwise
// Update returns ok=false.
func (t *IntervalTracker) Update(price decimal.Decimal) (Interval, bool) {
	i, found := t.ladder.IndexOf(price)
	if !found || i >= len(t.ladder)-1 {
		return Interval{}, false
	}
	if t.hasIndex && i == t.index {
		return Interval{}, false
	}
	t.index = i
	t.hasIndex = true
	return Interval{Front: t.ladder[i], Back: t.ladder[i+1]}, true
}

// Reset forgets the stored index, so the next Update always fires an event.
func (t *IntervalTracker) Reset() {
	t.hasIndex = false
	t.index = 0
}
