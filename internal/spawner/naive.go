package spawner

import (
	"fmt"

	"spotengine/internal/apperrors"
	"spotengine/internal/decimal"
	"spotengine/internal/model"
)

// NaiveDownSpread always spreads down a Sell's proceeds following the same
// ladder proportions, then for each Buy spawns a single 100% Sell spawn
// back at the Sell order's original price.
//
// The implicit taken home is whatever quote was not redistributed after a
// Sell. This spawner is naive: it can exhaust a ladder stop by spreading it
// down repeatedly if price alternates between two neighbor stops for a
// while.
type NaiveDownSpread struct {
	Spreader ProportionSpreader
}

func (n NaiveDownSpread) ComputeResultingFragments(f model.Fragment, order model.Order, lookup OrderLookup) (Result, error) {
	switch f.Side {
	case model.Sell:
		spawns, _, err := n.Spreader.SpreadDownBase(f.BaseAmount, f.TargetRate)
		if err != nil {
			return Result{}, err
		}
		actualQuote := f.BaseAmount.Mul(order.ExecutionRate)
		takenHome := actualQuote.Sub(SumQuote(spawns))
		return Result{Spawns: spawns, TakenHome: takenHome}, nil

	case model.Buy:
		parent, err := lookup.GetOrder(f.SpawningOrder)
		if err != nil {
			return Result{}, apperrors.Wrap(apperrors.KindIntegrity, "naive.Buy", err)
		}
		return Result{
			Spawns:    []Spawn{{Rate: parent.FragmentsRate, Base: f.BaseAmount}},
			TakenHome: decimal.Zero,
		}, nil

	default:
		return Result{}, fmt.Errorf("spawner: invalid side %v", f.Side)
	}
}
