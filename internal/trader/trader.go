// Package trader is the order-lifecycle orchestrator tying together the
// Store, the exchange client, the fulfillment accumulator, and the
// Spawner policy.
package trader

import (
	"context"
	"fmt"

	"spotengine/internal/apperrors"
	"spotengine/internal/decimal"
	"spotengine/internal/exchange"
	"spotengine/internal/fulfillment"
	"spotengine/internal/ladder"
	"spotengine/internal/logging"
	"spotengine/internal/model"
	"spotengine/internal/spawner"
	"spotengine/internal/store"
)

// maxMarketOrderAttempts bounds the EXPIRED-retry loop in FillNewMarketOrder;
// a venue that keeps expiring a market order past this count is treated as
// unavailable rather than retried forever.
const maxMarketOrderAttempts = 5

// Trader orchestrates the order lifecycle for a single trader name and
// currency pair. It is not safe for concurrent use from more than one
// goroutine — the bot runtime's single event-loop goroutine owns it.
type Trader struct {
	name    string
	pair    model.Pair
	store   store.Store
	client  exchange.Client
	spawn   spawner.Spawner
	logger  logging.ILogger
	filters model.SymbolFilters
}

// New builds a Trader.
func New(name string, pair model.Pair, st store.Store, client exchange.Client, sp spawner.Spawner, logger logging.ILogger) *Trader {
	return &Trader{
		name:   name,
		pair:   pair,
		store:  st,
		client: client,
		spawn:  sp,
		logger: logger.WithField("component", "trader"),
	}
}

func (t *Trader) symbol() string { return t.pair.Symbol() }

// SetFilters records the venue's symbol filters, fetched once at startup via
// ExchangeClient.GetExchangeInformation. A zero-value SymbolFilters (the
// default until this is called) disables tick filtering: Decimal.TickFilter
// treats a zero tick as "no filter".
func (t *Trader) SetFilters(filters model.SymbolFilters) {
	t.filters = filters
}

// PlaceOrderForMatchingFragments prepares an order from free fragments at
// matchRate and submits it to the venue priced at submitPrice (which may
// differ from matchRate — see the LimitFok filter-compliance rationale in
// MakeAndFillProfitableOrders). Fails with apperrors.ErrNoFragments if no
// fragment matched.
func (t *Trader) PlaceOrderForMatchingFragments(ctx context.Context, execution model.Execution, side model.Side, matchRate, submitPrice decimal.Decimal) (model.Order, error) {
	order, err := t.store.PrepareOrder(t.name, side, matchRate, t.pair)
	if err != nil {
		return order, err
	}
	if order.BaseAmount.IsZero() {
		return order, apperrors.Wrap(apperrors.KindPolicy, "trader.PlaceOrderForMatchingFragments", apperrors.ErrNoFragments)
	}

	order.Status = model.Sending
	if err := t.store.UpdateOrder(order); err != nil {
		return order, err
	}

	report, err := t.submit(ctx, execution, order, submitPrice)
	if err != nil {
		return order, err
	}

	order.ExchangeID = report.ExchangeID
	order.ActivationTime = report.TransactTime
	order.Status = model.Active
	if err := t.store.UpdateOrder(order); err != nil {
		return order, err
	}
	return order, nil
}

func (t *Trader) submit(ctx context.Context, execution model.Execution, order model.Order, price decimal.Decimal) (exchange.OrderReport, error) {
	clientID := order.ClientID()
	switch execution {
	case model.Market:
		return t.client.PlaceMarket(ctx, t.symbol(), order.Side, order.BaseAmount, clientID)
	case model.Limit:
		return t.client.PlaceLimit(ctx, t.symbol(), order.Side, order.BaseAmount, price, clientID, exchange.GTC)
	case model.LimitFok:
		return t.client.PlaceLimit(ctx, t.symbol(), order.Side, order.BaseAmount, price, clientID, exchange.FOK)
	default:
		return exchange.OrderReport{}, fmt.Errorf("trader: unknown execution %v", execution)
	}
}

// FillNewMarketOrder persists order as Sending and retries market
// placement under successive attempt client ids until the venue returns a
// non-EXPIRED terminal state, then completes it. It makes at most
// maxMarketOrderAttempts attempts; if every one expires it returns a
// transient ErrMarketOrderNeverFilled and the order stays Sending.
func (t *Trader) FillNewMarketOrder(ctx context.Context, order model.Order) (model.Order, error) {
	order.Status = model.Sending
	if err := t.store.UpdateOrder(order); err != nil {
		return order, err
	}

	var report exchange.OrderReport
	var err error
	for attempt := 0; attempt < maxMarketOrderAttempts; attempt++ {
		report, err = t.client.PlaceMarket(ctx, t.symbol(), order.Side, order.BaseAmount, order.AttemptClientID(attempt))
		if err != nil {
			return order, err
		}
		if report.Status != exchange.StatusExpired {
			break
		}
		t.logger.Warn("market order expired, retrying", "order_id", order.ID, "attempt", attempt)
		if attempt == maxMarketOrderAttempts-1 {
			return order, apperrors.Wrap(apperrors.KindTransient, "trader.FillNewMarketOrder", apperrors.ErrMarketOrderNeverFilled)
		}
	}

	order.ExchangeID = report.ExchangeID
	order.ActivationTime = report.TransactTime
	order.Status = model.Active
	if err := t.store.UpdateOrder(order); err != nil {
		return order, err
	}

	total, err := fulfillmentFromFills(report)
	if err != nil {
		return order, err
	}

	if _, err := t.CompleteOrder(ctx, order, total); err != nil {
		return order, err
	}
	if err := t.store.ReloadOrder(&order); err != nil {
		return order, err
	}
	return order, nil
}

// fulfillmentFromFills folds a place-order response's fill entries into a
// single Fulfillment. Every fill but the last is valued at price*qty; the
// last fill takes whatever remains of the response's cumulative quote
// quantity, so the total quote equals that cumulative quantity.
func fulfillmentFromFills(report exchange.OrderReport) (model.Fulfillment, error) {
	if len(report.Fills) == 0 {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindIntegrity, "trader.fulfillmentFromFills",
			fmt.Errorf("order %s reported FILLED with zero fills", report.ClientOrderID))
	}

	total := model.Fulfillment{}
	remaining := report.CummulativeQuoteQty
	for i, f := range report.Fills {
		quoteQty := remaining
		if i < len(report.Fills)-1 {
			price, err := decimal.Parse(f.Price)
			if err != nil {
				return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "trader.fulfillmentFromFills", err)
			}
			qty, err := decimal.Parse(f.Qty)
			if err != nil {
				return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "trader.fulfillmentFromFills", err)
			}
			quoteQty = price.Mul(qty)
			remaining = remaining.Sub(quoteQty)
		}

		one, err := fulfillment.FromPlaceOrderFill(fulfillment.PlaceOrderFill{
			Qty:             f.Qty,
			QuoteQty:        quoteQty.String(),
			Commission:      f.Commission,
			CommissionAsset: f.CommissionAsset,
			Time:            report.TransactTime,
		})
		if err != nil {
			return model.Fulfillment{}, err
		}
		total, err = fulfillment.Accumulate(total, one)
		if err != nil {
			return model.Fulfillment{}, err
		}
	}
	return total, nil
}

// Cancel attempts to cancel order on the venue. If the venue reports the
// order FILLED when queried afterward, the fulfillment path owns it and it
// is left untouched (not discarded); the returned bool only reflects
// whether the cancel call itself succeeded. Any non-zero executedQty seen
// on a non-FILLED order is a partial fill this engine does not reconcile
// automatically — it fails KindPolicy rather than silently discarding
// inconsistent state.
func (t *Trader) Cancel(ctx context.Context, order *model.Order) (bool, error) {
	if order.ID == model.UnsetID {
		return false, fmt.Errorf("trader.Cancel: order has no persisted id")
	}

	order.Status = model.Cancelling
	if err := t.store.UpdateOrder(*order); err != nil {
		return false, err
	}

	symbol := order.Pair().Symbol()
	clientID := order.ClientID()

	ok, err := t.client.CancelOrder(ctx, symbol, clientID)
	if err != nil {
		return false, err
	}

	report, err := t.client.QueryOrder(ctx, symbol, clientID)
	if err != nil {
		return ok, err
	}

	if report.Status == exchange.StatusFilled {
		return ok, nil
	}

	if report.ExecutedQty.IsPositive() {
		t.logger.Error("partial fill encountered while cancelling order", "order_id", order.ID, "executed_qty", report.ExecutedQty.String())
		return false, apperrors.Wrap(apperrors.KindPolicy, "trader.Cancel", apperrors.ErrPartialFillUnhandled)
	}

	order.Status = model.Inactive
	if err := t.store.UpdateOrder(*order); err != nil {
		return ok, err
	}
	if err := t.store.DiscardOrder(order); err != nil {
		return ok, err
	}
	return ok, nil
}

// CancelLiveOrders enumerates persisted Sending, Active and Cancelling
// orders and reconciles each against the venue. It is run once at startup
// to cover the single unavoidable window in the lifecycle machine where
// status is written after the side effect (the Active transition). Returns
// the number of orders actually cancelled on the venue.
func (t *Trader) CancelLiveOrders(ctx context.Context) (int, error) {
	cancelledCount := 0

	for _, status := range []model.Status{model.Sending, model.Active, model.Cancelling} {
		orders, err := t.store.SelectOrders(t.pair, status)
		if err != nil {
			return cancelledCount, err
		}

		for i := range orders {
			order := orders[i]
			symbol := order.Pair().Symbol()
			clientID := order.ClientID()

			report, err := t.client.QueryOrder(ctx, symbol, clientID)
			if err != nil && apperrors.KindOf(err) == apperrors.KindVenueClient {
				// NOTEXISTING: never reached the venue, or already gone.
				if discErr := t.store.DiscardOrder(&order); discErr != nil {
					return cancelledCount, discErr
				}
				continue
			}
			if err != nil {
				return cancelledCount, err
			}

			switch report.Status {
			case exchange.StatusFilled:
				total, err := t.accumulateTradesFor(ctx, order, report)
				if err != nil {
					return cancelledCount, err
				}
				if _, err := t.CompleteOrder(ctx, order, total); err != nil {
					return cancelledCount, err
				}

			case exchange.StatusCancelled:
				if err := t.store.DiscardOrder(&order); err != nil {
					return cancelledCount, err
				}

			case exchange.StatusNew, exchange.StatusRejected, exchange.StatusExpired:
				ok, err := t.Cancel(ctx, &order)
				if err != nil {
					return cancelledCount, err
				}
				if ok {
					cancelledCount++
				}

			default:
				return cancelledCount, fmt.Errorf("trader.CancelLiveOrders: unexpected venue status %v for order %d", report.Status, order.ID)
			}
		}
	}

	return cancelledCount, nil
}

// accumulateTradesFor rebuilds a Fulfillment for order from the venue's
// account trade list, covering the case where the process crashed between
// the venue filling an order and this engine recording it.
func (t *Trader) accumulateTradesFor(ctx context.Context, order model.Order, report exchange.OrderReport) (model.Fulfillment, error) {
	trades, err := t.client.ListAccountTrades(ctx, order.Pair().Symbol(), order.ActivationTime, 0, 1000)
	if err != nil {
		return model.Fulfillment{}, err
	}

	total := model.Fulfillment{}
	for _, tr := range trades {
		if tr.Time < order.ActivationTime {
			continue
		}
		one, err := fulfillment.FromTradeListEntry(fulfillment.TradeListEntry{
			Qty:             tr.Qty,
			QuoteQty:        tr.QuoteQty,
			Commission:      tr.Commission,
			CommissionAsset: tr.CommissionAsset,
			Time:            tr.Time,
		})
		if err != nil {
			return model.Fulfillment{}, err
		}
		total, err = fulfillment.Accumulate(total, one)
		if err != nil {
			return model.Fulfillment{}, err
		}
	}

	if total.AmountBase.IsZero() {
		// Fall back to the order response's own executed totals if the
		// trade list query returned nothing usable (e.g. paging cursor
		// mismatch) — still better than failing the whole reconciliation.
		total.AmountBase = report.ExecutedQty
		total.AmountQuote = report.CummulativeQuoteQty
		total.LatestTrade = report.TransactTime
		total.TradeCount = 1
	}

	return total, nil
}

// CompleteOrder promotes order to Fulfilled with execution fields derived
// from fulfillment, persists idempotently, and spawns counter-fragments.
// Returns false if the order was already Fulfilled (no-op).
func (t *Trader) CompleteOrder(ctx context.Context, order model.Order, total model.Fulfillment) (bool, error) {
	if !total.AmountBase.Equal(order.BaseAmount) {
		return false, apperrors.Wrap(apperrors.KindIntegrity, "trader.CompleteOrder", apperrors.ErrFulfillmentBaseMismatch)
	}
	if total.AmountBase.IsZero() {
		return false, apperrors.Wrap(apperrors.KindIntegrity, "trader.CompleteOrder", apperrors.ErrUnpriceableOrder)
	}

	order.ExecutionRate = total.Price()
	order.FulfillTime = total.LatestTrade
	order.Fee = total.Fee
	order.FeeAsset = total.FeeAsset
	// takenHome is finalized below, once spawnFragments has recorded it on
	// each composing fragment; onFillOrder persists 0 as a placeholder.
	order.TakenHome = decimal.Zero

	applied, err := t.store.OnFillOrder(order)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	if err := t.store.ReloadOrder(&order); err != nil {
		return false, err
	}

	takenHome, err := t.spawnFragments(ctx, order)
	if err != nil {
		return true, err
	}

	order.TakenHome = takenHome
	if err := t.store.UpdateOrder(order); err != nil {
		return true, err
	}
	return true, nil
}

// spawnFragments asks the Spawner for counter-fragments from every
// fragment composing order, records each fragment's takenHome, groups the
// resulting spawns by rate summing base amounts, and inserts at most one
// new fragment per distinct rate. Spawns with non-positive base are
// discarded. It returns the sum of the fragments' takenHome.
func (t *Trader) spawnFragments(ctx context.Context, order model.Order) (decimal.Decimal, error) {
	fragments, err := t.store.FragmentsComposing(order)
	if err != nil {
		return decimal.Zero, err
	}

	grouped := make(map[string]decimal.Decimal)
	rates := make(map[string]decimal.Decimal)
	takenHome := decimal.Zero

	for _, f := range fragments {
		result, err := t.spawn.ComputeResultingFragments(f, order, t.store)
		if err != nil {
			return decimal.Zero, err
		}

		f.TakenHome = result.TakenHome
		takenHome = takenHome.Add(result.TakenHome)
		if err := t.store.UpdateFragment(f); err != nil {
			return decimal.Zero, err
		}

		for _, sp := range result.Spawns {
			key := sp.Rate.String()
			rates[key] = sp.Rate
			if acc, ok := grouped[key]; ok {
				grouped[key] = acc.Add(sp.Base)
			} else {
				grouped[key] = sp.Base
			}
		}
	}

	childSide := order.Side.Reverse()
	for key, base := range grouped {
		if !base.IsPositive() {
			continue
		}
		child := model.Fragment{
			Base:          order.Base,
			Quote:         order.Quote,
			BaseAmount:    base,
			TargetRate:    rates[key],
			Side:          childSide,
			TakenHome:     decimal.Zero,
			SpawningOrder: order.ID,
			ComposedOrder: model.UnsetID,
		}
		if err := t.store.InsertFragment(&child); err != nil {
			return decimal.Zero, err
		}
	}

	return takenHome, nil
}

// MakeAndFillProfitableOrders is the batch filler: given an observed
// ladder interval, it places and fills one Sell order per free-fragment
// rate strictly above interval.Front, and one Buy order per free-fragment
// rate strictly below interval.Back. predicate is consulted before every
// attempt so a newer interval event can pre-empt an in-flight batch.
func (t *Trader) MakeAndFillProfitableOrders(ctx context.Context, interval ladder.Interval, predicate func() bool) (sellCount, buyCount int, err error) {
	if predicate == nil {
		predicate = func() bool { return true }
	}

	sellRates, err := t.store.SellRatesAbove(interval.Front, t.pair)
	if err != nil {
		return 0, 0, err
	}
	for _, rate := range sellRates {
		if !predicate() {
			break
		}
		filled, err := t.fillOneProfitableOrder(ctx, model.Sell, rate, interval.Front)
		if err != nil {
			return sellCount, buyCount, err
		}
		if filled {
			sellCount++
		}
	}

	buyRates, err := t.store.BuyRatesBelow(interval.Back, t.pair)
	if err != nil {
		return sellCount, buyCount, err
	}
	for _, rate := range buyRates {
		if !predicate() {
			break
		}
		filled, err := t.fillOneProfitableOrder(ctx, model.Buy, rate, interval.Back)
		if err != nil {
			return sellCount, buyCount, err
		}
		if filled {
			buyCount++
		}
	}

	return sellCount, buyCount, nil
}

// fillOneProfitableOrder places a single LimitFok order, submitted at
// submitPrice rather than matchRate (matchRate may predate the venue's
// current price filter; submitPrice — the interval bound — is always
// filter-compliant and still profitable since it lies on the correct side
// of matchRate).
func (t *Trader) fillOneProfitableOrder(ctx context.Context, side model.Side, matchRate, submitPrice decimal.Decimal) (bool, error) {
	// The interval bound itself may not land on the venue's current price
	// tick; flooring here is what actually delivers the filter-compliance
	// guarantee the interval-bound rationale depends on.
	submitPrice, _ = submitPrice.TickFilter(t.filters.Price.Tick)
	order, err := t.PlaceOrderForMatchingFragments(ctx, model.LimitFok, side, matchRate, submitPrice)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindPolicy {
			// ErrNoFragments: a concurrent consumer of the same rate beat
			// us to it between the rate query and prepareOrder.
			return false, nil
		}
		return false, err
	}

	report, err := t.client.QueryOrder(ctx, order.Pair().Symbol(), order.ClientID())
	if err != nil {
		return false, err
	}

	switch report.Status {
	case exchange.StatusFilled:
		total, err := fulfillmentFromFills(exchange.OrderReport{
			Fills:               fillsFromReport(report),
			CummulativeQuoteQty: report.CummulativeQuoteQty,
			TransactTime:        report.TransactTime,
		})
		if err != nil {
			return false, err
		}
		if _, err := t.CompleteOrder(ctx, order, total); err != nil {
			return false, err
		}
		return true, nil

	case exchange.StatusExpired:
		if err := t.store.DiscardOrder(&order); err != nil {
			return false, err
		}
		return false, nil

	default:
		return false, fmt.Errorf("trader.fillOneProfitableOrder: unexpected LimitFok status %v", report.Status)
	}
}

func fillsFromReport(report exchange.OrderReport) []exchange.Fill {
	if len(report.Fills) > 0 {
		return report.Fills
	}
	// A queried (not freshly placed) order carries its totals but no
	// per-fill breakdown; synthesize a single fill so the accumulator has
	// something to fold.
	return []exchange.Fill{{
		Qty:   report.ExecutedQty.String(),
		Price: "0",
	}}
}
