package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"spotengine/internal/apperrors"
	"spotengine/internal/decimal"
	"spotengine/internal/fulfillment"
	"spotengine/internal/ladder"
)

// marketTick is the normalized shape this engine needs out of a raw
// aggregate-trade market stream frame: the traded price.
type marketTick struct {
	Price string `json:"p"`
}

func parseMarketPrice(payload []byte) (decimal.Decimal, error) {
	var tick marketTick
	if err := json.Unmarshal(payload, &tick); err != nil {
		return decimal.Zero, fmt.Errorf("bot: decode market tick: %w", err)
	}
	if tick.Price == "" {
		return decimal.Zero, fmt.Errorf("bot: market tick carries no price field")
	}
	return decimal.Parse(tick.Price)
}

// onMarketMessage runs on the market-stream reader goroutine. It is the
// only thread allowed to update the IntervalTracker, and does so without
// any I/O; on an interval change it raises the change semaphore before
// posting the batch-fill work onto the event loop.
func (r *Runtime) onMarketMessage(payload []byte) {
	price, err := parseMarketPrice(payload)
	if err != nil {
		r.logger.Warn("failed to parse market stream payload", "error", err)
		return
	}

	interval, changed := r.tracker.Update(price)
	if !changed {
		return
	}

	atomic.AddInt32(&r.changeSemaphore, 1)
	r.post(func(ctx context.Context) {
		atomic.AddInt32(&r.changeSemaphore, -1)
		r.handleInterval(ctx, interval)
	})
}

func (r *Runtime) onMarketStreamClosed() {
	if r.intendedClose.Load() {
		return
	}
	r.logger.Warn("market stream closed unexpectedly, reconnecting")
	r.post(r.reconnectMarketStream)
}

func (r *Runtime) reconnectMarketStream(ctx context.Context) {
	if r.intendedClose.Load() {
		return
	}
	ok, err := r.client.OpenMarketStream(ctx, r.marketStreamName, r.onMarketMessage, r.onMarketStreamClosed)
	if err != nil || !ok {
		r.logger.Error("failed to reopen market stream, will retry", "error", err)
		time.AfterFunc(reconnectBackoff, func() { r.post(r.reconnectMarketStream) })
		return
	}
	r.logger.Info("market stream reconnected")
}

func (r *Runtime) onUserStreamClosed() {
	if r.intendedClose.Load() {
		return
	}
	r.logger.Warn("user stream closed unexpectedly, reconnecting")
	r.post(r.reconnectUserStream)
}

func (r *Runtime) reconnectUserStream(ctx context.Context) {
	if r.intendedClose.Load() {
		return
	}
	ok, err := r.client.OpenUserStream(ctx, r.onUserMessage, r.onUserStreamClosed)
	if err != nil || !ok {
		r.logger.Error("failed to reopen user stream, will retry", "error", err)
		time.AfterFunc(reconnectBackoff, func() { r.post(r.reconnectUserStream) })
		return
	}
	r.logger.Info("user stream reconnected")
}

// handleInterval is the profitable-orders batch filler entry point. The
// predicate reads the change semaphore so a newer interval event — one
// that arrived while this batch was still running — can pre-empt it.
func (r *Runtime) handleInterval(ctx context.Context, interval ladder.Interval) {
	predicate := func() bool { return atomic.LoadInt32(&r.changeSemaphore) == 0 }

	sellCount, buyCount, err := r.trader.MakeAndFillProfitableOrders(ctx, interval, predicate)
	if err != nil {
		r.logger.Error("profitable order batch failed", "error", err,
			"interval_front", interval.Front.String(), "interval_back", interval.Back.String())
		return
	}
	if sellCount > 0 || buyCount > 0 {
		r.logger.Info("filled profitable orders", "sell_count", sellCount, "buy_count", buyCount)
	}
}

// userEvent is the normalized shape this engine needs out of a raw
// user-stream executionReport frame.
type userEvent struct {
	EventType          string `json:"e"`
	ClientOrderID      string `json:"c"`
	OrderStatus        string `json:"X"`
	CumulativeQty      string `json:"z"`
	CumulativeQuoteQty string `json:"Z"`
	Commission         string `json:"n"`
	CommissionAsset    string `json:"N"`
	TransactionTime    int64  `json:"T"`
}

// parseUserEvent decodes payload and returns nil (no error) for any
// user-stream frame that isn't an executionReport — outboundAccountPosition
// and balanceUpdate frames arrive on the same stream and are not this
// engine's concern.
func parseUserEvent(payload []byte) (*userEvent, error) {
	var evt userEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("bot: decode user stream event: %w", err)
	}
	if evt.EventType != "executionReport" {
		return nil, nil
	}
	return &evt, nil
}

func (r *Runtime) onUserMessage(payload []byte) {
	evt, err := parseUserEvent(payload)
	if err != nil {
		r.logger.Warn("failed to parse user stream payload", "error", err)
		return
	}
	if evt == nil {
		return
	}
	r.post(func(ctx context.Context) {
		r.handleUserEvent(ctx, *evt)
	})
}

// handleUserEvent reconciles a completion report against the locally
// persisted order. Partial-fill reports are logged only — the engine's own
// query paths (Cancel, CancelLiveOrders) are what actually reconcile a
// partial fill, surfacing a policy error rather than silently resolving it.
func (r *Runtime) handleUserEvent(ctx context.Context, evt userEvent) {
	switch evt.OrderStatus {
	case "PARTIALLY_FILLED":
		r.logger.Debug("partial fill report received", "client_order_id", evt.ClientOrderID, "cumulative_qty", evt.CumulativeQty)
		return
	case "FILLED":
	default:
		return
	}

	id, ok := parseOrderIDFromClientID(evt.ClientOrderID, r.traderName)
	if !ok {
		r.logger.Warn("unrecognized client order id on user stream", "client_order_id", evt.ClientOrderID)
		return
	}

	order, err := r.st.GetOrder(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Already reconciled by a concurrent path (e.g. the
			// profitable-orders filler's own QueryOrder), or this event
			// belongs to an order this instance already discarded.
			r.logger.Debug("order from user stream not found locally", "order_id", id, "error", err)
			return
		}
		r.logger.Error("failed to look up order from user stream", "order_id", id, "error", err)
		return
	}

	total, err := fulfillment.FromExecutionReport(fulfillment.ExecutionReport{
		LastExecutedQty:      evt.CumulativeQty,
		LastExecutedQuoteQty: evt.CumulativeQuoteQty,
		Commission:           evt.Commission,
		CommissionAsset:      evt.CommissionAsset,
		TradeTime:            evt.TransactionTime,
	})
	if err != nil {
		r.logger.Error("failed to build fulfillment from user stream event", "order_id", id, "error", err)
		return
	}

	if _, err := r.trader.CompleteOrder(ctx, order, total); err != nil {
		r.logger.Error("failed to complete order from user stream", "order_id", id, "error", err)
	}
}

// parseOrderIDFromClientID extracts the persisted order id out of a
// "traderName-id" or "traderName-id-aN" (retry-attempt) client id.
func parseOrderIDFromClientID(clientID, traderName string) (int64, bool) {
	prefix := traderName + "-"
	if !strings.HasPrefix(clientID, prefix) {
		return 0, false
	}
	rest := clientID[len(prefix):]
	if idx := strings.Index(rest, "-a"); idx >= 0 {
		rest = rest[:idx]
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
