package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotengine/internal/apperrors"
	"spotengine/internal/decimal"
	"spotengine/internal/model"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func insertFragment(t *testing.T, st *SQLiteStore, pair model.Pair, side model.Side, rate string, amount string) {
	t.Helper()
	f := &model.Fragment{
		Base: pair.Base, Quote: pair.Quote, Side: side,
		BaseAmount: decimal.MustParse(amount), TargetRate: decimal.MustParse(rate),
		SpawningOrder: model.UnsetID, ComposedOrder: model.UnsetID,
	}
	require.NoError(t, st.InsertFragment(f))
}

// TestSellRatesAboveGroupsByDistinctRate seeds Sell fragments at rates
// {1,1,2,2,3,3} on DOGE/BUSD, plus noise on another pair, and checks that
// SellRatesAbove filters strictly and ignores the other pair.
func TestSellRatesAboveGroupsByDistinctRate(t *testing.T) {
	st := openTestStore(t)
	pair := model.Pair{Base: "DOGE", Quote: "BUSD"}
	other := model.Pair{Base: "ETH", Quote: "BUSD"}

	for _, r := range []string{"1", "1", "2", "2", "3", "3"} {
		insertFragment(t, st, pair, model.Sell, r, "10")
	}
	insertFragment(t, st, other, model.Sell, "2.5", "10")

	rates, err := st.SellRatesAbove(decimal.MustParse("1.5"), pair)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "2.00000000", rates[0].String())
	assert.Equal(t, "3.00000000", rates[1].String())

	rates, err = st.SellRatesAbove(decimal.MustParse("4"), pair)
	require.NoError(t, err)
	assert.Empty(t, rates)
}

// TestPrepareOrderComposesMatchingFragments reproduces composing a new
// order from the free fragments at a rate, then checks a second call at
// the same rate finds nothing left to compose.
func TestPrepareOrderComposesMatchingFragments(t *testing.T) {
	st := openTestStore(t)
	pair := model.Pair{Base: "DOGE", Quote: "BUSD"}
	insertFragment(t, st, pair, model.Sell, "2", "5")
	insertFragment(t, st, pair, model.Sell, "2", "7")

	order, err := st.PrepareOrder("trader1", model.Sell, decimal.MustParse("2"), pair)
	require.NoError(t, err)
	assert.Equal(t, model.Inactive, order.Status)
	assert.Equal(t, "12.00000000", order.BaseAmount.String())

	composing, err := st.FragmentsComposing(order)
	require.NoError(t, err)
	assert.Len(t, composing, 2)

	second, err := st.PrepareOrder("trader1", model.Sell, decimal.MustParse("2"), pair)
	require.NoError(t, err)
	assert.True(t, second.BaseAmount.IsZero())
}

func TestOnFillOrderIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	pair := model.Pair{Base: "DOGE", Quote: "BUSD"}
	order, err := st.PrepareOrder("trader1", model.Sell, decimal.MustParse("2"), pair)
	require.NoError(t, err)

	order.ExecutionRate = decimal.MustParse("2.01")
	order.FulfillTime = 1000
	order.ExchangeID = 55

	applied, err := st.OnFillOrder(order)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = st.OnFillOrder(order)
	require.NoError(t, err)
	assert.False(t, applied, "a second OnFillOrder for an already-fulfilled order must no-op")

	fresh, err := st.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Fulfilled, fresh.Status)
}

func TestDiscardOrderFreesFragmentsAndDeletesRow(t *testing.T) {
	st := openTestStore(t)
	pair := model.Pair{Base: "DOGE", Quote: "BUSD"}
	insertFragment(t, st, pair, model.Sell, "2", "5")

	order, err := st.PrepareOrder("trader1", model.Sell, decimal.MustParse("2"), pair)
	require.NoError(t, err)
	composing, err := st.FragmentsComposing(order)
	require.NoError(t, err)
	require.Len(t, composing, 1)

	require.NoError(t, st.DiscardOrder(&order))
	assert.Equal(t, model.UnsetID, order.ID)

	freed, err := st.GetFragment(composing[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnsetID, freed.ComposedOrder)
}

func TestGetOrderNotFoundAfterDiscard(t *testing.T) {
	st := openTestStore(t)
	pair := model.Pair{Base: "DOGE", Quote: "BUSD"}
	insertFragment(t, st, pair, model.Sell, "2", "5")
	order, err := st.PrepareOrder("trader1", model.Sell, decimal.MustParse("2"), pair)
	require.NoError(t, err)

	require.NoError(t, st.DiscardOrder(&order))

	_, err = st.GetOrder(order.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestInsertOrderRejectsDuplicatePrimaryKeyViolationAsConflict(t *testing.T) {
	st := openTestStore(t)
	o := model.Order{
		TraderName: "trader1", Base: "DOGE", Quote: "BUSD", Side: model.Sell,
		BaseAmount: decimal.Zero, FragmentsRate: decimal.MustParse("2"), ExecutionRate: decimal.Zero,
		ExchangeID: model.UnsetID, Status: model.Inactive, TakenHome: decimal.Zero,
	}
	require.NoError(t, st.InsertOrder(&o))

	dup := o
	dup.ID = o.ID
	_, err := st.db.Exec(`INSERT INTO orders (id, trader_name, base, quote, side, base_amount, fragments_rate, execution_rate, activation_time, fulfill_time, exchange_id, status, taken_home, fee, fee_asset) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		dup.ID, dup.TraderName, dup.Base, dup.Quote, int(dup.Side), dup.BaseAmount.String(), dup.FragmentsRate.String(),
		dup.ExecutionRate.String(), 0, 0, dup.ExchangeID, int(dup.Status), dup.TakenHome.String(), "0.00000000", "")
	require.Error(t, err)
	assert.ErrorIs(t, classifyWriteErr("test", err), apperrors.ErrConflict)
}

func TestLaunchCountIncrementsAcrossCalls(t *testing.T) {
	st := openTestStore(t)
	first, err := st.IncrementLaunchCount()
	require.NoError(t, err)
	second, err := st.IncrementLaunchCount()
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}

func TestBalanceSnapshotsListOldestFirst(t *testing.T) {
	st := openTestStore(t)
	zero := decimal.Zero
	_, err := st.InsertBalance(model.Balance{Time: 200, BaseBalance: zero, QuoteBalance: zero, BaseBuyPotential: zero, QuoteBuyPotential: zero, BaseSellPotential: zero, QuoteSellPotential: zero})
	require.NoError(t, err)
	_, err = st.InsertBalance(model.Balance{Time: 100, BaseBalance: zero, QuoteBalance: zero, BaseBuyPotential: zero, QuoteBuyPotential: zero, BaseSellPotential: zero, QuoteSellPotential: zero})
	require.NoError(t, err)

	snapshots, err := st.ListBalances()
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, int64(100), snapshots[0].Time)
	assert.Equal(t, int64(200), snapshots[1].Time)

	latest, err := st.LatestBalance()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(200), latest.Time)
}
