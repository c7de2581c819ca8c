// Package spawner implements the Spawner policy: given a fulfilled
// fragment, compute the counter-fragments ("spawns") to create and the
// slice of profit to take home.
package spawner

import (
	"spotengine/internal/decimal"
	"spotengine/internal/model"
)

// Spawn is a named pair associating a base amount to a rate: the target
// rate and size of a counter-fragment still to be created.
type Spawn struct {
	Rate decimal.Decimal
	Base decimal.Decimal
}

// Quote derives the quote-denominated size of the spawn at its rate.
func (s Spawn) Quote() decimal.Decimal {
	return s.Base.Mul(s.Rate)
}

// SumBase sums the base amounts of a slice of spawns.
func SumBase(spawns []Spawn) decimal.Decimal {
	total := decimal.Zero
	for _, s := range spawns {
		total = total.Add(s.Base)
	}
	return total
}

// SumQuote sums the quote amounts of a slice of spawns.
func SumQuote(spawns []Spawn) decimal.Decimal {
	total := decimal.Zero
	for _, s := range spawns {
		total = total.Add(s.Quote())
	}
	return total
}

// Result is the outcome of Spawner.ComputeResultingFragments: the
// counter-fragments to create, and the amount taken home as realized
// profit — quote after a Sell, base after a Buy.
type Result struct {
	Spawns    []Spawn
	TakenHome decimal.Decimal
}

// OrderLookup is the minimal capability a Spawner needs from the store: the
// ability to look up the order that spawned a fragment (its SpawningOrder),
// to find that order's fragmentsRate for break-even computations. Named independently of
// internal/store to avoid a package cycle.
type OrderLookup interface {
	GetOrder(id int64) (model.Order, error)
}

// Spawner is the policy capability: given a fulfilled fragment and the
// order that fulfilled it, compute the resulting counter-fragments. Kept as
// an interface, not an inheritance tree — NullSpawner, NaiveDownSpread and
// StableDownSpread are independent, interchangeable implementations
// selected at trader construction.
type Spawner interface {
	ComputeResultingFragments(filledFragment model.Fragment, order model.Order, lookup OrderLookup) (Result, error)
}
