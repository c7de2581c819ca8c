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
	"spotengine/internal/logging"
	"spotengine/internal/model"
	"spotengine/internal/store"
)

func TestIsSameCalendarDay(t *testing.T) {
	ref := time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)
	sameDay := time.Date(2026, 3, 5, 1, 0, 0, 0, time.UTC)
	otherDay := time.Date(2026, 3, 4, 23, 59, 0, 0, time.UTC)

	assert.True(t, isSameCalendarDay(sameDay.UnixMilli(), ref))
	assert.False(t, isSameCalendarDay(otherDay.UnixMilli(), ref))
}

func TestNextMidnightIsStrictlyAfterNow(t *testing.T) {
	ref := time.Date(2026, 3, 5, 23, 59, 59, 0, time.UTC)
	mid := nextMidnight(ref)
	assert.True(t, mid.After(ref))
	assert.Equal(t, 0, mid.Hour())
	assert.Equal(t, 0, mid.Minute())
}

func newTestStatsWriter(t *testing.T) (*StatsWriter, *store.SQLiteStore, *mock.Exchange) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ex := mock.New()
	ex.Balances = []exchange.AssetBalance{
		{Asset: "DOGE", Free: decimal.MustParse("100")},
		{Asset: "BUSD", Free: decimal.MustParse("50")},
	}
	ex.AvgPrice["DOGEBUSD"] = decimal.MustParse("2")

	pair := model.Pair{Base: "DOGE", Quote: "BUSD"}
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	w := NewStatsWriter(st, ex, pair, logger)
	return w, st, ex
}

func TestStartWritesCatchUpSnapshotOnColdStart(t *testing.T) {
	w, st, _ := newTestStatsWriter(t)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	snapshots, err := st.ListBalances()
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "100.00000000", snapshots[0].BaseBalance.String())
	assert.Equal(t, "50.00000000", snapshots[0].QuoteBalance.String())
	assert.Equal(t, "200.00000000", snapshots[0].QuoteSellPotential.String())
	assert.Equal(t, "25.00000000", snapshots[0].BaseBuyPotential.String())
}

func TestStartSkipsCatchUpWhenTodayAlreadyHasASnapshot(t *testing.T) {
	w, st, _ := newTestStatsWriter(t)
	defer w.Stop()

	_, err := st.InsertBalance(model.Balance{
		Time: time.Now().UnixMilli(), BaseBalance: decimal.Zero, QuoteBalance: decimal.Zero,
		BaseSellPotential: decimal.Zero, QuoteBuyPotential: decimal.Zero,
		BaseBuyPotential: decimal.Zero, QuoteSellPotential: decimal.Zero,
	})
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))

	snapshots, err := st.ListBalances()
	require.NoError(t, err)
	assert.Len(t, snapshots, 1, "a same-day snapshot must not be duplicated on cold start")
}
