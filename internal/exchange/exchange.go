// Package exchange declares the ExchangeClient capability: the thin
// boundary the Trader uses to talk to a spot venue, independent of
// transport. Concrete adapters live in subpackages (binance for the real
// venue, mock for tests).
package exchange

import (
	"context"

	"spotengine/internal/decimal"
	"spotengine/internal/model"
)

// TimeInForce selects limit-order matching behavior.
type TimeInForce int

const (
	GTC TimeInForce = iota
	IOC
	FOK
)

// OrderStatus mirrors the venue's order lifecycle states relevant to this
// engine.
type OrderStatus int

const (
	StatusNew OrderStatus = iota
	StatusFilled
	StatusExpired
	StatusCancelled
	StatusRejected
	StatusUnknown
)

// Fill is one execution entry embedded in a place-order or query-order
// response.
type Fill struct {
	Price           string
	Qty             string
	Commission      string
	CommissionAsset string
	TradeID         int64
}

// OrderReport is the normalized shape every order-producing venue call
// returns: queryOrder, queryOrderByExchangeId, placeMarket, placeLimit.
type OrderReport struct {
	Symbol            string
	ClientOrderID     string
	ExchangeID        int64
	Status            OrderStatus
	TransactTime      int64
	ExecutedQty       decimal.Decimal
	CummulativeQuoteQty decimal.Decimal
	Fills             []Fill
}

// AssetBalance is one entry of an account balance snapshot.
type AssetBalance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// TradeListEntry is one row of the account trade-list, used by the
// fulfillment accumulator when reconciling after a restart.
type TradeListEntry struct {
	TradeID         int64
	Qty             string
	QuoteQty        string
	Commission      string
	CommissionAsset string
	Time            int64
	IsBuyer         bool
}

// MessageHandler receives raw stream payloads (market ticker or user-stream
// events); the caller is responsible for decoding the concrete shape it
// expects.
type MessageHandler func(payload []byte)

// UnintendedCloseHandler is invoked when a stream drops without the client
// having asked it to.
type UnintendedCloseHandler func()

// Client is the capability the Trader and Bot runtime depend on. All
// methods may return a KindTransient error (retry), KindVenueClient error
// (surface — filter violation, unknown order, quota), or propagate a
// lower-level transport error unwrapped.
type Client interface {
	QueryOrder(ctx context.Context, symbol, clientID string) (OrderReport, error)
	QueryOrderByExchangeID(ctx context.Context, symbol string, exchangeID int64) (OrderReport, error)

	PlaceMarket(ctx context.Context, symbol string, side model.Side, qty decimal.Decimal, clientID string) (OrderReport, error)
	PlaceLimit(ctx context.Context, symbol string, side model.Side, qty, price decimal.Decimal, clientID string, tif TimeInForce) (OrderReport, error)

	// CancelOrder reports false if the venue already considers the order
	// absent (-2011), rather than returning an error.
	CancelOrder(ctx context.Context, symbol, clientID string) (bool, error)
	CancelAllOpenOrders(ctx context.Context, symbol string) ([]string, error)
	ListOpenOrders(ctx context.Context, symbol string) ([]OrderReport, error)

	// ListAccountTrades pages through trade history; callers pass either a
	// fromTimeMs cursor or a fromTradeID cursor (mutually exclusive, zero
	// value means unset).
	ListAccountTrades(ctx context.Context, symbol string, fromTimeMs, fromTradeID int64, pageSize int) ([]TradeListEntry, error)

	GetCurrentAveragePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetAccountBalances(ctx context.Context) ([]AssetBalance, error)
	GetExchangeInformation(ctx context.Context, symbol string) (model.SymbolFilters, error)

	OpenUserStream(ctx context.Context, onMessage MessageHandler, onUnintendedClose UnintendedCloseHandler) (bool, error)
	OpenMarketStream(ctx context.Context, streamName string, onMessage MessageHandler, onUnintendedClose UnintendedCloseHandler) (bool, error)
	CloseUserStream() error
	CloseMarketStream(streamName string) error
}
