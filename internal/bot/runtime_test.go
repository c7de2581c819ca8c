package bot

import (
	"context"
	"testing"
	"time"

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
	"spotengine/internal/trader"
	"spotengine/pkg/workerpool"
)

func TestParseMarketPrice(t *testing.T) {
	price, err := parseMarketPrice([]byte(`{"p":"65.50000000"}`))
	require.NoError(t, err)
	assert.Equal(t, "65.50000000", price.String())

	_, err = parseMarketPrice([]byte(`{"p":""}`))
	assert.Error(t, err)

	_, err = parseMarketPrice([]byte(`not-json`))
	assert.Error(t, err)
}

func TestParseUserEventIgnoresNonExecutionReportFrames(t *testing.T) {
	evt, err := parseUserEvent([]byte(`{"e":"outboundAccountPosition"}`))
	require.NoError(t, err)
	assert.Nil(t, evt)

	evt, err = parseUserEvent([]byte(`{"e":"executionReport","c":"tester-9","X":"FILLED"}`))
	require.NoError(t, err)
	require.NotNil(t, evt)
	assert.Equal(t, "FILLED", evt.OrderStatus)
}

func TestParseOrderIDFromClientID(t *testing.T) {
	id, ok := parseOrderIDFromClientID("tester-42", "tester")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	id, ok = parseOrderIDFromClientID("tester-42-a3", "tester")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = parseOrderIDFromClientID("other-42", "tester")
	assert.False(t, ok)
}

func newTestRuntime(t *testing.T) (*Runtime, *store.SQLiteStore, *mock.Exchange) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ex := mock.New()
	pair := model.Pair{Base: "DOGE", Quote: "BUSD"}
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	tr := trader.New("tester", pair, st, ex, spawner.NullSpawner{}, logger)
	l := ladder.Ladder{decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(4), decimal.NewFromInt(8)}
	tracker := ladder.NewIntervalTracker(l)
	pool := workerpool.New(workerpool.Config{Name: "TestPool", MaxWorkers: 2, MaxCapacity: 64}, logger)
	t.Cleanup(pool.Stop)

	stats := NewStatsWriter(st, ex, pair, logger)

	rt := New(Config{
		Trader: tr, Tracker: tracker, Client: ex, Store: st, Pair: pair,
		TraderName: "tester", Stats: stats, Pool: pool, Logger: logger,
	})
	return rt, st, ex
}

// TestRuntimeFillsProfitableOrderOnIntervalChange drives a market tick
// through the event loop and checks the batch filler places an order for
// the free Sell fragment the new interval makes profitable.
func TestRuntimeFillsProfitableOrderOnIntervalChange(t *testing.T) {
	rt, st, ex := newTestRuntime(t)
	pair := model.Pair{Base: "DOGE", Quote: "BUSD"}

	frag := &model.Fragment{
		Base: pair.Base, Quote: pair.Quote, Side: model.Sell,
		BaseAmount: decimal.MustParse("5"), TargetRate: decimal.NewFromInt(4),
		SpawningOrder: model.UnsetID, ComposedOrder: model.UnsetID,
	}
	require.NoError(t, st.InsertFragment(frag))

	ex.NextOrderReports = []exchange.OrderReport{{ExchangeID: 1, TransactTime: 10}}
	ex.QueryResult["tester-1"] = exchange.OrderReport{
		Status: exchange.StatusFilled, ExecutedQty: decimal.MustParse("5"),
		CummulativeQuoteQty: decimal.MustParse("12.5"), TransactTime: 20,
		Fills: []exchange.Fill{{Qty: "5.00000000", Price: "2.50000000", Commission: "0", CommissionAsset: "BUSD"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.Start(ctx))
	defer rt.Stop()

	ex.PushMarketMessage(rt.marketStreamName, []byte(`{"p":"2.50000000"}`))

	assert.Eventually(t, func() bool {
		fulfilled, err := st.SelectOrders(pair, model.Fulfilled)
		return err == nil && len(fulfilled) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// TestRuntimeCompletesOrderFromUserStreamEvent checks that a FILLED
// executionReport arriving on the user stream completes the matching
// locally-persisted order.
func TestRuntimeCompletesOrderFromUserStreamEvent(t *testing.T) {
	rt, st, _ := newTestRuntime(t)
	pair := model.Pair{Base: "DOGE", Quote: "BUSD"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.Start(ctx))
	defer rt.Stop()

	// Inserted after Start so startup reconciliation (which would otherwise
	// treat a pre-existing Active order as a crash leftover) never sees it.
	order := model.Order{
		TraderName: "tester", Base: pair.Base, Quote: pair.Quote, Side: model.Sell,
		BaseAmount: decimal.MustParse("3"), FragmentsRate: decimal.NewFromInt(5),
		ExecutionRate: decimal.Zero, ExchangeID: model.UnsetID, Status: model.Active, TakenHome: decimal.Zero,
	}
	require.NoError(t, st.InsertOrder(&order))

	payload := []byte(`{"e":"executionReport","c":"` + order.ClientID() + `","X":"FILLED","z":"3.00000000","Z":"15.00000000","n":"0.00000000","N":"BUSD","T":1000}`)
	ex := rt.client.(*mock.Exchange)
	ex.PushUserMessage(payload)

	assert.Eventually(t, func() bool {
		fresh, err := st.GetOrder(order.ID)
		return err == nil && fresh.Status == model.Fulfilled
	}, 2*time.Second, 10*time.Millisecond)
}

// TestRuntimeStopDoesNotReconnectStreams checks that an intended Stop does
// not trigger the stream reconnect path.
func TestRuntimeStopDoesNotReconnectStreams(t *testing.T) {
	rt, _, ex := newTestRuntime(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.Start(ctx))

	rt.Stop()
	ex.TriggerUnintendedClose()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, rt.intendedClose.Load())
}
