// Package fulfillment is a pure accumulator that folds
// per-trade venue fills into a single order-level Fulfillment total, plus
// constructors that normalize the three venue payload shapes a fill can
// arrive in.
package fulfillment

import (
	"fmt"

	"spotengine/internal/apperrors"
	"spotengine/internal/decimal"
	"spotengine/internal/model"
)

// Accumulate folds b onto a, returning the combined total. a is the zero
// Fulfillment{} for the first trade of an order.
func Accumulate(a, b model.Fulfillment) (model.Fulfillment, error) {
	feeAsset := a.FeeAsset
	if feeAsset == "" {
		feeAsset = b.FeeAsset
	} else if b.FeeAsset != "" && b.FeeAsset != feeAsset {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindIntegrity, "fulfillment.Accumulate",
			fmt.Errorf("%w: %q vs %q", apperrors.ErrInconsistentFeeAsset, feeAsset, b.FeeAsset))
	}

	latest := a.LatestTrade
	if b.LatestTrade > latest {
		latest = b.LatestTrade
	}

	return model.Fulfillment{
		AmountBase:  a.AmountBase.Add(b.AmountBase),
		AmountQuote: a.AmountQuote.Add(b.AmountQuote),
		Fee:         a.Fee.Add(b.Fee),
		FeeAsset:    feeAsset,
		LatestTrade: latest,
		TradeCount:  a.TradeCount + b.TradeCount,
	}, nil
}

// TradeListEntry is the subset of a venue account-trade-list row this
// engine needs (Binance's GET /api/v3/myTrades shape).
type TradeListEntry struct {
	Qty         string
	QuoteQty    string
	Commission  string
	CommissionAsset string
	Time        int64
}

// FromTradeListEntry builds a single-trade Fulfillment from an account
// trade-list row.
func FromTradeListEntry(e TradeListEntry) (model.Fulfillment, error) {
	base, err := decimal.Parse(e.Qty)
	if err != nil {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "fulfillment.FromTradeListEntry", err)
	}
	quote, err := decimal.Parse(e.QuoteQty)
	if err != nil {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "fulfillment.FromTradeListEntry", err)
	}
	fee, err := decimal.Parse(e.Commission)
	if err != nil {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "fulfillment.FromTradeListEntry", err)
	}
	return model.Fulfillment{
		AmountBase:  base,
		AmountQuote: quote,
		Fee:         fee,
		FeeAsset:    e.CommissionAsset,
		LatestTrade: e.Time,
		TradeCount:  1,
	}, nil
}

// PlaceOrderFill is one entry of a place-order response's "fills" array.
// It carries no order-level cumulative quote quantity of its own; the
// caller patches QuoteQty in from the order response's cummulativeQuoteQty
// before calling FromPlaceOrderFill.
type PlaceOrderFill struct {
	Qty             string
	QuoteQty        string
	Commission      string
	CommissionAsset string
	Time            int64
}

// FromPlaceOrderFill builds a single-trade Fulfillment from a place-order
// response fill entry. Callers must have already set f.QuoteQty from the
// enclosing order response's cummulativeQuoteQty.
func FromPlaceOrderFill(f PlaceOrderFill) (model.Fulfillment, error) {
	base, err := decimal.Parse(f.Qty)
	if err != nil {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "fulfillment.FromPlaceOrderFill", err)
	}
	quote, err := decimal.Parse(f.QuoteQty)
	if err != nil {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "fulfillment.FromPlaceOrderFill", err)
	}
	fee, err := decimal.Parse(f.Commission)
	if err != nil {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "fulfillment.FromPlaceOrderFill", err)
	}
	return model.Fulfillment{
		AmountBase:  base,
		AmountQuote: quote,
		Fee:         fee,
		FeeAsset:    f.CommissionAsset,
		LatestTrade: f.Time,
		TradeCount:  1,
	}, nil
}

// ExecutionReport is the subset of a user-stream "executionReport" event
// this engine needs for a single trade fill (Binance field names: l =
// last executed quantity, Z/Y = cumulative/last quote quantity, n/N =
// commission/commission asset, T = trade time).
type ExecutionReport struct {
	LastExecutedQty      string
	LastExecutedQuoteQty string
	Commission           string
	CommissionAsset      string
	TradeTime            int64
}

// FromExecutionReport builds a single-trade Fulfillment from a user-stream
// execution report event.
func FromExecutionReport(e ExecutionReport) (model.Fulfillment, error) {
	base, err := decimal.Parse(e.LastExecutedQty)
	if err != nil {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "fulfillment.FromExecutionReport", err)
	}
	quote, err := decimal.Parse(e.LastExecutedQuoteQty)
	if err != nil {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "fulfillment.FromExecutionReport", err)
	}
	fee, err := decimal.Parse(e.Commission)
	if err != nil {
		return model.Fulfillment{}, apperrors.Wrap(apperrors.KindVenueClient, "fulfillment.FromExecutionReport", err)
	}
	return model.Fulfillment{
		AmountBase:  base,
		AmountQuote: quote,
		Fee:         fee,
		FeeAsset:    e.CommissionAsset,
		LatestTrade: e.TradeTime,
		TradeCount:  1,
	}, nil
}
