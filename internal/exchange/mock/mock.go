// Package mock provides an in-memory exchange.Client used by Trader tests:
// callers script responses onto queues and inspect what was submitted.
package mock

import (
	"context"
	"sync"

	"spotengine/internal/apperrors"
	"spotengine/internal/decimal"
	"spotengine/internal/exchange"
	"spotengine/internal/model"
)

// Exchange is a scriptable exchange.Client. Tests populate the
// NextOrderReports queue (consumed in order by PlaceMarket/PlaceLimit) and
// read back PlacedOrders/CancelledClientIDs to assert on what the Trader
// submitted.
type Exchange struct {
	mu sync.Mutex

	NextOrderReports []exchange.OrderReport
	NextErr          []error

	PlacedOrders       []PlacedOrder
	CancelledClientIDs []string
	CancelResult       bool
	CancelErr          error

	QueryResult map[string]exchange.OrderReport
	Filters     map[string]model.SymbolFilters
	AvgPrice    map[string]decimal.Decimal
	Balances    []exchange.AssetBalance
	Trades      map[string][]exchange.TradeListEntry

	userMsgHandler   exchange.MessageHandler
	userCloseHandler exchange.UnintendedCloseHandler
	marketHandlers   map[string]exchange.MessageHandler
}

// PlacedOrder records one call to PlaceMarket or PlaceLimit.
type PlacedOrder struct {
	Symbol   string
	Side     model.Side
	Qty      decimal.Decimal
	Price    decimal.Decimal
	ClientID string
	IsMarket bool
}

func New() *Exchange {
	return &Exchange{
		QueryResult:    make(map[string]exchange.OrderReport),
		Filters:        make(map[string]model.SymbolFilters),
		AvgPrice:       make(map[string]decimal.Decimal),
		Trades:         make(map[string][]exchange.TradeListEntry),
		marketHandlers: make(map[string]exchange.MessageHandler),
		CancelResult:   true,
	}
}

func (e *Exchange) nextScripted() (exchange.OrderReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var report exchange.OrderReport
	if len(e.NextOrderReports) > 0 {
		report = e.NextOrderReports[0]
		e.NextOrderReports = e.NextOrderReports[1:]
	}
	var err error
	if len(e.NextErr) > 0 {
		err = e.NextErr[0]
		e.NextErr = e.NextErr[1:]
	}
	return report, err
}

func (e *Exchange) PlaceMarket(ctx context.Context, symbol string, side model.Side, qty decimal.Decimal, clientID string) (exchange.OrderReport, error) {
	e.mu.Lock()
	e.PlacedOrders = append(e.PlacedOrders, PlacedOrder{Symbol: symbol, Side: side, Qty: qty, ClientID: clientID, IsMarket: true})
	e.mu.Unlock()
	return e.nextScripted()
}

func (e *Exchange) PlaceLimit(ctx context.Context, symbol string, side model.Side, qty, price decimal.Decimal, clientID string, tif exchange.TimeInForce) (exchange.OrderReport, error) {
	e.mu.Lock()
	e.PlacedOrders = append(e.PlacedOrders, PlacedOrder{Symbol: symbol, Side: side, Qty: qty, Price: price, ClientID: clientID})
	e.mu.Unlock()
	return e.nextScripted()
}

func (e *Exchange) QueryOrder(ctx context.Context, symbol, clientID string) (exchange.OrderReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.QueryResult[clientID]; ok {
		return r, nil
	}
	return exchange.OrderReport{}, apperrors.Wrap(apperrors.KindVenueClient, "mock.QueryOrder", apperrors.ErrUnknownOrder)
}

func (e *Exchange) QueryOrderByExchangeID(ctx context.Context, symbol string, exchangeID int64) (exchange.OrderReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.QueryResult {
		if r.ExchangeID == exchangeID {
			return r, nil
		}
	}
	return exchange.OrderReport{}, apperrors.Wrap(apperrors.KindVenueClient, "mock.QueryOrderByExchangeID", apperrors.ErrUnknownOrder)
}

func (e *Exchange) CancelOrder(ctx context.Context, symbol, clientID string) (bool, error) {
	e.mu.Lock()
	e.CancelledClientIDs = append(e.CancelledClientIDs, clientID)
	e.mu.Unlock()
	return e.CancelResult, e.CancelErr
}

func (e *Exchange) CancelAllOpenOrders(ctx context.Context, symbol string) ([]string, error) {
	return nil, nil
}

func (e *Exchange) ListOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	orders := make([]exchange.OrderReport, 0, len(e.QueryResult))
	for _, r := range e.QueryResult {
		orders = append(orders, r)
	}
	return orders, nil
}

func (e *Exchange) ListAccountTrades(ctx context.Context, symbol string, fromTimeMs, fromTradeID int64, pageSize int) ([]exchange.TradeListEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Trades[symbol], nil
}

func (e *Exchange) GetCurrentAveragePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.AvgPrice[symbol], nil
}

func (e *Exchange) GetAccountBalances(ctx context.Context) ([]exchange.AssetBalance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Balances, nil
}

func (e *Exchange) GetExchangeInformation(ctx context.Context, symbol string) (model.SymbolFilters, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Filters[symbol], nil
}

func (e *Exchange) OpenUserStream(ctx context.Context, onMessage exchange.MessageHandler, onUnintendedClose exchange.UnintendedCloseHandler) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userMsgHandler = onMessage
	e.userCloseHandler = onUnintendedClose
	return true, nil
}

func (e *Exchange) OpenMarketStream(ctx context.Context, streamName string, onMessage exchange.MessageHandler, onUnintendedClose exchange.UnintendedCloseHandler) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.marketHandlers[streamName] = onMessage
	return true, nil
}

func (e *Exchange) CloseUserStream() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userMsgHandler = nil
	e.userCloseHandler = nil
	return nil
}

func (e *Exchange) CloseMarketStream(streamName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.marketHandlers, streamName)
	return nil
}

// PushUserMessage feeds a raw payload to the registered user-stream handler,
// as if it had arrived over the wire.
func (e *Exchange) PushUserMessage(payload []byte) {
	e.mu.Lock()
	handler := e.userMsgHandler
	e.mu.Unlock()
	if handler != nil {
		handler(payload)
	}
}

// PushMarketMessage feeds a raw payload to the registered market-stream
// handler for streamName.
func (e *Exchange) PushMarketMessage(streamName string, payload []byte) {
	e.mu.Lock()
	handler := e.marketHandlers[streamName]
	e.mu.Unlock()
	if handler != nil {
		handler(payload)
	}
}

// TriggerUnintendedClose invokes the registered user-stream close handler,
// simulating a dropped connection.
func (e *Exchange) TriggerUnintendedClose() {
	e.mu.Lock()
	handler := e.userCloseHandler
	e.mu.Unlock()
	if handler != nil {
		handler()
	}
}

var _ exchange.Client = (*Exchange)(nil)
