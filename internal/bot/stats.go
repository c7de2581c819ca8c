package bot

import (
	"context"
	"time"

	"spotengine/internal/decimal"
	"spotengine/internal/exchange"
	"spotengine/internal/logging"
	"spotengine/internal/model"
	"spotengine/internal/store"
)

// StatsWriter persists one Balance snapshot per calendar day. On a
// cold start it writes immediately if today has no snapshot yet
// ("catch-up"). Either way it then arms a timer for the next midnight and
// re-arms for 24h later after every firing, surviving spurious timer
// errors by logging and continuing rather than giving up.
type StatsWriter struct {
	st     store.Store
	client exchange.Client
	pair   model.Pair
	logger logging.ILogger

	timer  *time.Timer
	stopCh chan struct{}
}

// NewStatsWriter builds a StatsWriter for pair.
func NewStatsWriter(st store.Store, client exchange.Client, pair model.Pair, logger logging.ILogger) *StatsWriter {
	return &StatsWriter{
		st:     st,
		client: client,
		pair:   pair,
		logger: logger.WithField("component", "bot.stats"),
		stopCh: make(chan struct{}),
	}
}

// Start performs the catch-up check (if any) and arms the first timer.
func (w *StatsWriter) Start(ctx context.Context) error {
	latest, err := w.st.LatestBalance()
	if err != nil {
		return err
	}
	if latest == nil || !isSameCalendarDay(latest.Time, time.Now()) {
		if err := w.writeSnapshot(ctx); err != nil {
			w.logger.Error("catch-up balance snapshot failed", "error", err)
		}
	}
	w.arm(nextMidnight(time.Now()))
	return nil
}

// Stop cancels the pending timer; a snapshot already in flight is allowed
// to finish.
func (w *StatsWriter) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *StatsWriter) arm(at time.Time) {
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	w.timer = time.AfterFunc(d, w.fire)
}

func (w *StatsWriter) fire() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	if err := w.writeSnapshot(context.Background()); err != nil {
		w.logger.Error("balance snapshot failed, will retry at the next scheduled firing", "error", err)
	}
	w.arm(time.Now().Add(24 * time.Hour))
}

// writeSnapshot reads account balances and the current average price and
// persists one Balance row. BaseSellPotential/QuoteBuyPotential are the
// balances as-is (what could be sold/spent outright); QuoteSellPotential
// and BaseBuyPotential are what the other asset's balance converts to at
// the current average price.
func (w *StatsWriter) writeSnapshot(ctx context.Context) error {
	balances, err := w.client.GetAccountBalances(ctx)
	if err != nil {
		return err
	}

	var baseBal, quoteBal decimal.Decimal
	for _, b := range balances {
		switch b.Asset {
		case w.pair.Base:
			baseBal = b.Free
		case w.pair.Quote:
			quoteBal = b.Free
		}
	}

	avgPrice, err := w.client.GetCurrentAveragePrice(ctx, w.pair.Symbol())
	if err != nil {
		return err
	}

	snapshot := model.Balance{
		Time:              time.Now().UnixMilli(),
		BaseBalance:       baseBal,
		QuoteBalance:      quoteBal,
		BaseSellPotential: baseBal,
		QuoteBuyPotential: quoteBal,
	}
	if avgPrice.IsPositive() {
		snapshot.QuoteSellPotential = baseBal.Mul(avgPrice)
		snapshot.BaseBuyPotential = quoteBal.Div(avgPrice)
	}

	_, err = w.st.InsertBalance(snapshot)
	return err
}

func isSameCalendarDay(ms int64, ref time.Time) bool {
	t := time.UnixMilli(ms)
	y1, m1, d1 := t.Date()
	y2, m2, d2 := ref.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func nextMidnight(ref time.Time) time.Time {
	y, m, d := ref.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, ref.Location())
	return midnight.Add(24 * time.Hour)
}
