package spawner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotengine/internal/decimal"
	"spotengine/internal/ladder"
	"spotengine/internal/model"
)

// fakeLookup resolves a fixed set of orders by id, standing in for the
// store.Store dependency a Spawner needs to find a spawned fragment's
// parent order.
type fakeLookup map[int64]model.Order

func (f fakeLookup) GetOrder(id int64) (model.Order, error) {
	o, ok := f[id]
	if !ok {
		return model.Order{}, assert.AnError
	}
	return o, nil
}

func rateLadder() ladder.Ladder {
	stops := make(ladder.Ladder, 0, 9)
	for i := 1; i <= 9; i++ {
		stops = append(stops, decimal.NewFromInt(int64(i)))
	}
	return stops
}

func TestNullSpawnerTakesEverythingHome(t *testing.T) {
	sellFrag := model.Fragment{Side: model.Sell, BaseAmount: decimal.MustParse("10")}
	sellOrder := model.Order{ExecutionRate: decimal.MustParse("5")}
	result, err := NullSpawner{}.ComputeResultingFragments(sellFrag, sellOrder, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Spawns)
	assert.Equal(t, "50.00000000", result.TakenHome.String())

	buyFrag := model.Fragment{Side: model.Buy, BaseAmount: decimal.MustParse("3")}
	result, err = NullSpawner{}.ComputeResultingFragments(buyFrag, model.Order{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "3.00000000", result.TakenHome.String())
}

func TestNaiveDownSpreadBuySpawnsBackAtParentRate(t *testing.T) {
	parent := model.Order{ID: 1, FragmentsRate: decimal.MustParse("5")}
	lookup := fakeLookup{1: parent}

	n := NaiveDownSpread{}
	buyFrag := model.Fragment{Side: model.Buy, BaseAmount: decimal.MustParse("10"), SpawningOrder: 1}
	result, err := n.ComputeResultingFragments(buyFrag, model.Order{}, lookup)
	require.NoError(t, err)
	require.Len(t, result.Spawns, 1)
	assert.Equal(t, "5.00000000", result.Spawns[0].Rate.String())
	assert.Equal(t, "10.00000000", result.Spawns[0].Base.String())
	assert.True(t, result.TakenHome.IsZero())
}

// TestStableDownSpreadInitialSell reproduces a ladder = [1..9], proportions
// [0.4, 0.6], initial take-home 0.4: a Sell fragment of 100 base targeting
// rate 5 that executes at 5 should spawn two Buy counter-fragments at
// rates 4 and 3, taking home 200 quote.
func TestStableDownSpreadInitialSell(t *testing.T) {
	s := StableDownSpread{
		Spreader: ProportionSpreader{
			Ladder: rateLadder(),
			Proportions: ProportionsMap{
				{MaxRate: decimal.NewFromInt(9), Proportions: []decimal.Decimal{decimal.MustParse("0.4"), decimal.MustParse("0.6")}},
			},
			AmountTickSize: decimal.Zero,
		},
		TakeHomeInitialSell: decimal.MustParse("0.4"),
	}

	fragment := model.Fragment{
		Side:          model.Sell,
		BaseAmount:    decimal.MustParse("100"),
		TargetRate:    decimal.NewFromInt(5),
		SpawningOrder: model.UnsetID,
	}
	order := model.Order{FragmentsRate: decimal.NewFromInt(5), ExecutionRate: decimal.NewFromInt(5)}

	result, err := s.ComputeResultingFragments(fragment, order, nil)
	require.NoError(t, err)
	require.Len(t, result.Spawns, 2)

	assert.Equal(t, "4.00000000", result.Spawns[0].Rate.String())
	assert.Equal(t, "3.00000000", result.Spawns[1].Rate.String())

	quotes := map[string]bool{result.Spawns[0].Quote().String(): true, result.Spawns[1].Quote().String(): true}
	assert.True(t, quotes["120.00000000"])
	assert.True(t, quotes["180.00000000"])

	assert.Equal(t, "200.00000000", result.TakenHome.String())
}

// TestStableDownSpreadSubsequentBuy continues the initial-sell scenario:
// the parent Sell executed at 5.05 with fragmentsRate 5; a Buy child of
// base 80 targeting rate 4 executes at 4. With kSubsBuy = 0.3, the excess
// base over break-even (16) yields a 4.8 base take-home and a single Sell
// spawn of 75.2 base back at the parent's rate.
func TestStableDownSpreadSubsequentBuy(t *testing.T) {
	parent := model.Order{ID: 1, FragmentsRate: decimal.NewFromInt(5)}
	lookup := fakeLookup{1: parent}

	s := StableDownSpread{
		Spreader:              ProportionSpreader{AmountTickSize: decimal.Zero},
		TakeHomeSubsequentBuy: decimal.MustParse("0.3"),
	}

	fragment := model.Fragment{
		Side:          model.Buy,
		BaseAmount:    decimal.MustParse("80"),
		TargetRate:    decimal.NewFromInt(4),
		SpawningOrder: 1,
	}
	order := model.Order{ExecutionRate: decimal.NewFromInt(4)}

	result, err := s.ComputeResultingFragments(fragment, order, lookup)
	require.NoError(t, err)
	require.Len(t, result.Spawns, 1)
	assert.Equal(t, "5.00000000", result.Spawns[0].Rate.String())
	assert.Equal(t, "75.20000000", result.Spawns[0].Base.String())
	assert.Equal(t, "4.80000000", result.TakenHome.String())
}

func TestStableDownSpreadRejectsInitialBuy(t *testing.T) {
	s := StableDownSpread{}
	fragment := model.Fragment{Side: model.Buy, SpawningOrder: model.UnsetID}
	_, err := s.ComputeResultingFragments(fragment, model.Order{}, nil)
	assert.Error(t, err)
}
