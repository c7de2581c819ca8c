package spawner

import (
	"fmt"

	"spotengine/internal/apperrors"
	"spotengine/internal/decimal"
	"spotengine/internal/model"
)

// StableDownSpread keeps every buy/sell cycle break-even on the asset it
// did not just trade, taking home only a configured fraction of the
// surplus at each step.
//
// After the initial Sell, it spawns Buy fragments for a proportion of the
// real quote amount the sale generated (the rest is taken home). The real
// quote amount is used deliberately, since the sale may have executed above
// its target rate. The Buy fragments are distributed down the ladder
// following the spreader's proportions, which must sum to 1 once the
// initial take-home fraction has been removed.
//
// After a Buy, it spawns a single Sell fragment at the parent order's rate,
// sized so that reselling recovers at least the quote spent on the Buy,
// with a further fraction of any excess taken home. After a subsequent
// Sell, it is symmetric: it spawns a single Buy fragment at the parent
// order's rate.
type StableDownSpread struct {
	Spreader ProportionSpreader

	// TakeHomeInitialSell, TakeHomeSubsequentSell and TakeHomeSubsequentBuy
	// are all expected to lie strictly within [0, 1].
	TakeHomeInitialSell    decimal.Decimal
	TakeHomeSubsequentSell decimal.Decimal
	TakeHomeSubsequentBuy  decimal.Decimal
}

func (s StableDownSpread) tickSize() decimal.Decimal {
	return s.Spreader.AmountTickSize
}

func (s StableDownSpread) ComputeResultingFragments(f model.Fragment, order model.Order, lookup OrderLookup) (Result, error) {
	switch f.Side {
	case model.Sell:
		if f.IsInitial() {
			return s.onFirstSell(f, order)
		}
		return s.onSubsequentSell(f, order, lookup)

	case model.Buy:
		if f.IsInitial() {
			return Result{}, apperrors.Wrap(apperrors.KindPolicy, "stable.Buy",
				fmt.Errorf("StableDownSpread cannot handle an initial Buy fragment"))
		}
		return s.onSubsequentBuy(f, order, lookup)

	default:
		return Result{}, fmt.Errorf("spawner: invalid side %v", f.Side)
	}
}

func (s StableDownSpread) onFirstSell(f model.Fragment, order model.Order) (Result, error) {
	actualQuote := f.BaseAmount.Mul(order.ExecutionRate)

	toSpread := actualQuote.Mul(decimal.New(1, 0).Sub(s.TakeHomeInitialSell))
	spawns, totalSpawnedQuote, err := s.Spreader.SpreadDownQuote(toSpread, f.TargetRate)
	if err != nil {
		return Result{}, err
	}

	takenHome := actualQuote.Sub(totalSpawnedQuote)
	return Result{Spawns: spawns, TakenHome: takenHome}, nil
}

func (s StableDownSpread) onSubsequentBuy(f model.Fragment, order model.Order, lookup OrderLookup) (Result, error) {
	parent, err := lookup.GetOrder(f.SpawningOrder)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindIntegrity, "stable.onSubsequentBuy", err)
	}
	parentSellRate := parent.FragmentsRate

	if parentSellRate.LessOrEqual(f.TargetRate) {
		return Result{}, apperrors.Wrap(apperrors.KindPolicy, "stable.onSubsequentBuy",
			fmt.Errorf("buy fragment rate %s must be strictly below its parent sell order's rate %s",
				f.TargetRate, parentSellRate))
	}

	actualBase := f.BaseAmount
	// breakEvenQuote: how much quote the next sell should provide to be
	// stable, priced at the current (lower) target rate.
	breakEvenQuote := actualBase.Mul(f.TargetRate)
	// breakEvenBase: the minimal base to sell at the parent's (higher) rate
	// to recover breakEvenQuote.
	breakEvenBase := breakEvenQuote.Div(parentSellRate)

	excessBase := actualBase.Sub(breakEvenBase)
	takenHomeBase := excessBase.Mul(s.TakeHomeSubsequentBuy)

	spawnBase, _ := actualBase.Sub(takenHomeBase).TickFilter(s.tickSize())
	takenHomeBase = actualBase.Sub(spawnBase)

	return Result{
		Spawns:    []Spawn{{Rate: parentSellRate, Base: spawnBase}},
		TakenHome: takenHomeBase,
	}, nil
}

func (s StableDownSpread) onSubsequentSell(f model.Fragment, order model.Order, lookup OrderLookup) (Result, error) {
	parent, err := lookup.GetOrder(f.SpawningOrder)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindIntegrity, "stable.onSubsequentSell", err)
	}
	parentBuyRate := parent.FragmentsRate

	if parentBuyRate.GreaterOrEqual(f.TargetRate) {
		return Result{}, apperrors.Wrap(apperrors.KindPolicy, "stable.onSubsequentSell",
			fmt.Errorf("sell fragment rate %s must be strictly above its parent buy order's rate %s",
				f.TargetRate, parentBuyRate))
	}

	actualQuote := f.BaseAmount.Mul(order.ExecutionRate)
	// breakEvenBase: how much base the next buy should provide to be
	// stable.
	breakEvenBase := f.BaseAmount
	// breakEvenQuote: the minimal quote to buy base with at the parent's
	// (lower) rate to recover breakEvenBase.
	breakEvenQuote := breakEvenBase.Mul(parentBuyRate)

	excessQuote := actualQuote.Sub(breakEvenQuote)
	takenHomeQuote := excessQuote.Mul(s.TakeHomeSubsequentSell)

	spawnQuote := actualQuote.Sub(takenHomeQuote)
	spawnBase := spawnQuote.Div(parentBuyRate)
	spawnBase, _ = spawnBase.TickFilter(s.tickSize())
	takenHomeQuote = actualQuote.Sub(spawnBase.Mul(parentBuyRate))

	return Result{
		Spawns:    []Spawn{{Rate: parentBuyRate, Base: spawnBase}},
		TakenHome: takenHomeQuote,
	}, nil
}
