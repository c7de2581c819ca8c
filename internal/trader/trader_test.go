package trader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotengine/internal/decimal"
	"spotengine/internal/exchange"
	"spotengine/internal/exchange/mock"
	"spotengine/internal/ladder"
	"spotengine/internal/logging"
	"spotengine/internal/model"
	"spotengine/internal/spawner"
	"spotengine/internal/store"
)

func newTestTrader(t *testing.T) (*Trader, *store.SQLiteStore, *mock.Exchange, model.Pair) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ex := mock.New()
	pair := model.Pair{Base: "DOGE", Quote: "BUSD"}
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	tr := New("tester", pair, st, ex, spawner.NullSpawner{}, logger)
	return tr, st, ex, pair
}

// TestMakeAndFillProfitableOrdersSubmitsAtIntervalBound reproduces placing
// a profitable Sell at the ladder interval's front bound rather than the
// fragment's own target rate, and recording the resulting fulfillment.
func TestMakeAndFillProfitableOrdersSubmitsAtIntervalBound(t *testing.T) {
	tr, st, ex, pair := newTestTrader(t)
	ctx := context.Background()

	frag := &model.Fragment{
		Base: pair.Base, Quote: pair.Quote, Side: model.Sell,
		BaseAmount: decimal.MustParse("10"), TargetRate: decimal.MustParse("70"),
		SpawningOrder: model.UnsetID, ComposedOrder: model.UnsetID,
	}
	require.NoError(t, st.InsertFragment(frag))

	interval := ladder.Interval{Front: decimal.MustParse("60"), Back: decimal.MustParse("135")}

	ex.NextOrderReports = []exchange.OrderReport{{ExchangeID: 555, TransactTime: 1000}}
	ex.QueryResult["tester-1"] = exchange.OrderReport{
		Status:              exchange.StatusFilled,
		ExecutedQty:         decimal.MustParse("10"),
		CummulativeQuoteQty: decimal.MustParse("650"),
		TransactTime:        2000,
		Fills: []exchange.Fill{
			{Qty: "10.00000000", Price: "65.00000000", Commission: "0.00000000", CommissionAsset: "BUSD"},
		},
	}

	sellCount, buyCount, err := tr.MakeAndFillProfitableOrders(ctx, interval, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sellCount)
	assert.Equal(t, 0, buyCount)

	require.Len(t, ex.PlacedOrders, 1)
	assert.Equal(t, "60.00000000", ex.PlacedOrders[0].Price.String(), "must submit at the interval bound, not the fragment's target rate")

	fulfilled, err := st.SelectOrders(pair, model.Fulfilled)
	require.NoError(t, err)
	require.Len(t, fulfilled, 1)
	assert.True(t, fulfilled[0].ExecutionRate.GreaterOrEqual(interval.Front))
}

// TestCancelLiveOrdersReconcilesEveryLifecycleStatus seeds one order per
// lifecycle status a crash could leave behind and checks that, after
// reconciliation, only the already-Inactive order and the two orders the
// venue had actually filled survive.
func TestCancelLiveOrdersReconcilesEveryLifecycleStatus(t *testing.T) {
	tr, st, ex, pair := newTestTrader(t)
	ctx := context.Background()

	insert := func(status model.Status, rate string) model.Order {
		o := model.Order{
			TraderName: "tester", Base: pair.Base, Quote: pair.Quote, Side: model.Sell,
			BaseAmount: decimal.MustParse("1"), FragmentsRate: decimal.MustParse(rate),
			ExecutionRate: decimal.Zero, ExchangeID: model.UnsetID, Status: status, TakenHome: decimal.Zero,
		}
		require.NoError(t, st.InsertOrder(&o))
		return o
	}

	inactive := insert(model.Inactive, "1")
	sendingNeverReceived := insert(model.Sending, "2")
	sendingReceived := insert(model.Sending, "3")
	activeNotFulfilled := insert(model.Active, "4")
	activeFulfilledMarket := insert(model.Active, "5")
	activeFulfilledLimit := insert(model.Active, "6")
	cancellingNeverReceived := insert(model.Cancelling, "7")
	cancellingReceived := insert(model.Cancelling, "8")

	openNotFilled := exchange.OrderReport{Status: exchange.StatusNew, ExecutedQty: decimal.Zero}
	ex.QueryResult[sendingReceived.ClientID()] = openNotFilled
	ex.QueryResult[activeNotFulfilled.ClientID()] = openNotFilled
	ex.QueryResult[activeFulfilledMarket.ClientID()] = exchange.OrderReport{
		Status: exchange.StatusFilled, ExecutedQty: decimal.MustParse("1"),
		CummulativeQuoteQty: decimal.MustParse("5"), TransactTime: 1000,
	}
	ex.QueryResult[activeFulfilledLimit.ClientID()] = exchange.OrderReport{
		Status: exchange.StatusFilled, ExecutedQty: decimal.MustParse("1"),
		CummulativeQuoteQty: decimal.MustParse("6"), TransactTime: 1100,
	}
	ex.QueryResult[cancellingReceived.ClientID()] = exchange.OrderReport{Status: exchange.StatusCancelled}
	// sendingNeverReceived and cancellingNeverReceived are left unregistered,
	// so QueryOrder reports them unknown to the venue.

	cancelledCount, err := tr.CancelLiveOrders(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cancelledCount, 1)

	_, err = st.GetOrder(inactive.ID)
	assert.NoError(t, err, "an already-Inactive order is untouched by reconciliation")

	for _, discarded := range []model.Order{sendingNeverReceived, sendingReceived, activeNotFulfilled, cancellingNeverReceived, cancellingReceived} {
		_, err := st.GetOrder(discarded.ID)
		assert.Error(t, err, "order %d should have been discarded", discarded.ID)
	}

	fulfilled, err := st.SelectOrders(pair, model.Fulfilled)
	require.NoError(t, err)
	assert.Len(t, fulfilled, 2)

	remaining := 0
	for _, status := range []model.Status{model.Inactive, model.Sending, model.Active, model.Cancelling, model.Fulfilled} {
		orders, err := st.SelectOrders(pair, status)
		require.NoError(t, err)
		remaining += len(orders)
	}
	assert.Equal(t, 3, remaining)

	for _, f := range fulfilled {
		assert.True(t, f.FulfillTime >= f.ActivationTime)
	}
}
