package spawner

import (
	"fmt"

	"spotengine/internal/apperrors"
	"spotengine/internal/decimal"
	"spotengine/internal/ladder"
)

// ProportionsMap associates an upper rate bound to the proportions to apply
// when spreading down from a rate at or below that bound, so a spawner can
// use coarser or finer spreads depending on how high up the ladder the
// originating fragment sat.
type ProportionsMap []ProportionsEntry

// ProportionsEntry is one (maxRate, proportions) row of a ProportionsMap.
type ProportionsEntry struct {
	MaxRate     decimal.Decimal
	Proportions []decimal.Decimal
}

// proportionsFor returns the proportions to use when spreading down from
// fromRate: the first entry whose MaxRate is >= fromRate, or the last entry
// if fromRate exceeds every bound.
func (m ProportionsMap) proportionsFor(fromRate decimal.Decimal) []decimal.Decimal {
	for _, entry := range m {
		if fromRate.LessOrEqual(entry.MaxRate) {
			return entry.Proportions
		}
	}
	return m[len(m)-1].Proportions
}

// ProportionSpreader distributes an amount across the ladder stops
// strictly below a given rate, following a ProportionsMap. It
// encapsulates the pure ladder-proportional redistribution every
// down-spreading Spawner variant uses.
type ProportionSpreader struct {
	Ladder         ladder.Ladder
	Proportions    ProportionsMap
	AmountTickSize decimal.Decimal
}

func indexOfExact(l ladder.Ladder, rate decimal.Decimal) (int, bool) {
	for i, r := range l {
		if r.Equal(rate) {
			return i, true
		}
	}
	return 0, false
}

// stopsBelow returns the ladder stops strictly below fromRate, nearest
// first (descending), so proportions[0] lands on the nearest stop.
func (s ProportionSpreader) stopsBelow(fromRate decimal.Decimal) ([]decimal.Decimal, error) {
	idx, ok := indexOfExact(s.Ladder, fromRate)
	if !ok {
		return nil, apperrors.Wrap(apperrors.KindIntegrity, "spreader.stopsBelow",
			fmt.Errorf("rate %s does not match a ladder stop", fromRate))
	}
	stops := make([]decimal.Decimal, 0, idx)
	for i := idx - 1; i >= 0; i-- {
		stops = append(stops, s.Ladder[i])
	}
	return stops, nil
}

// spreadProportions assigns proportions[i] of amount to stops[i] for each
// i, converting to a base-denominated Spawn and applying the amount tick
// size. If there are more proportions than stops, the remaining
// proportions are accumulated onto the last spawn, matching the
// ladder-exhaustion fallback of the policy this spreader implements.
func spreadProportions(amount decimal.Decimal, amountIsQuote bool, stops []decimal.Decimal, proportions []decimal.Decimal, tick decimal.Decimal) ([]Spawn, decimal.Decimal) {
	makeSpawn := func(proportion, rate decimal.Decimal) Spawn {
		portion := amount.Mul(proportion)
		var base decimal.Decimal
		if amountIsQuote {
			base = portion.Div(rate)
		} else {
			base = portion
		}
		if !tick.IsZero() {
			base, _ = base.TickFilter(tick)
		}
		return Spawn{Rate: rate, Base: base}
	}

	spawnAmount := func(sp Spawn) decimal.Decimal {
		if amountIsQuote {
			return sp.Quote()
		}
		return sp.Base
	}

	var result []Spawn
	accumulated := decimal.Zero
	i := 0
	for i < len(stops) && i < len(proportions) {
		sp := makeSpawn(proportions[i], stops[i])
		accumulated = accumulated.Add(spawnAmount(sp))
		result = append(result, sp)
		i++
	}

	if len(result) > 0 && i < len(proportions) {
		remaining := decimal.Zero
		for _, p := range proportions[i:] {
			remaining = remaining.Add(p)
		}
		last := &result[len(result)-1]
		extra := makeSpawn(remaining, last.Rate)
		last.Base = last.Base.Add(extra.Base)
		accumulated = accumulated.Add(spawnAmount(extra))
	}

	return result, accumulated
}

// SpreadDownBase spreads a base-denominated amount downward from fromRate.
func (s ProportionSpreader) SpreadDownBase(amountBase, fromRate decimal.Decimal) ([]Spawn, decimal.Decimal, error) {
	stops, err := s.stopsBelow(fromRate)
	if err != nil {
		return nil, decimal.Zero, err
	}
	spawns, acc := spreadProportions(amountBase, false, stops, s.Proportions.proportionsFor(fromRate), s.AmountTickSize)
	return spawns, acc, nil
}

// SpreadDownQuote spreads a quote-denominated amount downward from
// fromRate, converting each portion to base via the target stop's rate.
func (s ProportionSpreader) SpreadDownQuote(amountQuote, fromRate decimal.Decimal) ([]Spawn, decimal.Decimal, error) {
	stops, err := s.stopsBelow(fromRate)
	if err != nil {
		return nil, decimal.Zero, err
	}
	spawns, acc := spreadProportions(amountQuote, true, stops, s.Proportions.proportionsFor(fromRate), s.AmountTickSize)
	return spawns, acc, nil
}
