// Package binance adapts the Binance spot REST/WebSocket API to the
// exchange.Client capability, using the adshao/go-binance/v2 SDK for
// signed REST calls and spotengine's own pkg/wsclient for the raw market
// and user data streams.
package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	binancesdk "github.com/adshao/go-binance/v2"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/time/rate"

	"spotengine/internal/apperrors"
	"spotengine/internal/config"
	"spotengine/internal/decimal"
	"spotengine/internal/exchange"
	"spotengine/internal/logging"
	"spotengine/internal/model"
	"spotengine/pkg/wsclient"
)

const (
	streamBaseURL = "wss://stream.binance.com:9443"
	listenKeyTTL  = 30 * time.Minute
)

// Exchange implements exchange.Client against the real Binance venue.
type Exchange struct {
	rest *binancesdk.Client

	receiveWindow int64
	logger        logging.ILogger
	limiter       *rate.Limiter
	retrier       failsafe.Executor[any]

	mu          sync.Mutex
	userStream  *wsclient.Client
	listenKey   string
	listenKeyStop chan struct{}
	marketStreams map[string]*wsclient.Client
}

// New builds a binance.Exchange from venue credentials and the configured
// receive window.
func New(cfg config.VenueConfig, receiveWindowSeconds int, logger logging.ILogger) *Exchange {
	client := binancesdk.NewClient(string(cfg.APIKey), string(cfg.SecretKey))
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	retryPolicy := retrypolicy.Builder[any]().
		WithBackoff(200*time.Millisecond, 5*time.Second).
		WithMaxRetries(4).
		Build()

	return &Exchange{
		rest:          client,
		receiveWindow: int64(receiveWindowSeconds) * 1000,
		logger:        logger.WithField("component", "exchange.binance"),
		// Binance spot weights out at 1200/min on the default tier; stay
		// comfortably under that for a single-symbol trader.
		limiter:       rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		retrier:       failsafe.NewExecutor[any](retryPolicy),
		marketStreams: make(map[string]*wsclient.Client),
	}
}

func (e *Exchange) wait(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return apperrors.Wrap(apperrors.KindTransient, "binance.wait", err)
	}
	return nil
}

func sideToSDK(s model.Side) binancesdk.SideType {
	if s == model.Buy {
		return binancesdk.SideTypeBuy
	}
	return binancesdk.SideTypeSell
}

func statusFromSDK(s binancesdk.OrderStatusType) exchange.OrderStatus {
	switch s {
	case binancesdk.OrderStatusTypeFilled:
		return exchange.StatusFilled
	case binancesdk.OrderStatusTypeExpired:
		return exchange.StatusExpired
	case binancesdk.OrderStatusTypeCanceled:
		return exchange.StatusCancelled
	case binancesdk.OrderStatusTypeRejected:
		return exchange.StatusRejected
	case binancesdk.OrderStatusTypeNew, binancesdk.OrderStatusTypePartiallyFilled:
		return exchange.StatusNew
	default:
		return exchange.StatusUnknown
	}
}

func classifyVenueErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*binancesdk.APIError); ok {
		switch apiErr.Code {
		case -1003, -1015:
			return apperrors.Wrap(apperrors.KindTransient, op, fmt.Errorf("%w: %v", apperrors.ErrQuotaExceeded, apiErr))
		case -1013, -2010:
			return apperrors.Wrap(apperrors.KindVenueClient, op, fmt.Errorf("%w: %v", apperrors.ErrFilterViolation, apiErr))
		case -2011, -2013:
			return apperrors.Wrap(apperrors.KindVenueClient, op, fmt.Errorf("%w: %v", apperrors.ErrUnknownOrder, apiErr))
		case -1021:
			return apperrors.Wrap(apperrors.KindTransient, op, apiErr)
		}
		return apperrors.Wrap(apperrors.KindVenueClient, op, apiErr)
	}
	return apperrors.Wrap(apperrors.KindTransient, op, err)
}

func toReport(symbol string, o *binancesdk.CreateOrderResponse) exchange.OrderReport {
	executed, _ := decimal.Parse(o.ExecutedQuantity)
	cumQuote, _ := decimal.Parse(o.CummulativeQuoteQuantity)

	fills := make([]exchange.Fill, 0, len(o.Fills))
	for _, f := range o.Fills {
		fills = append(fills, exchange.Fill{
			Price:           f.Price,
			Qty:             f.Quantity,
			Commission:      f.Commission,
			CommissionAsset: f.CommissionAsset,
			TradeID:         f.TradeID,
		})
	}

	return exchange.OrderReport{
		Symbol:              symbol,
		ClientOrderID:       o.ClientOrderID,
		ExchangeID:          o.OrderID,
		Status:              statusFromSDK(o.Status),
		TransactTime:        o.TransactTime,
		ExecutedQty:         executed,
		CummulativeQuoteQty: cumQuote,
		Fills:               fills,
	}
}

func toReportFromGet(o *binancesdk.Order) exchange.OrderReport {
	executed, _ := decimal.Parse(o.ExecutedQuantity)
	cumQuote, _ := decimal.Parse(o.CummulativeQuoteQuantity)
	return exchange.OrderReport{
		Symbol:              o.Symbol,
		ClientOrderID:       o.ClientOrderID,
		ExchangeID:          o.OrderID,
		Status:              statusFromSDK(o.Status),
		TransactTime:        o.Time,
		ExecutedQty:         executed,
		CummulativeQuoteQty: cumQuote,
	}
}

func (e *Exchange) QueryOrder(ctx context.Context, symbol, clientID string) (exchange.OrderReport, error) {
	if err := e.wait(ctx); err != nil {
		return exchange.OrderReport{}, err
	}
	o, err := e.rest.NewGetOrderService().Symbol(symbol).OrigClientOrderID(clientID).Do(ctx)
	if err != nil {
		return exchange.OrderReport{}, classifyVenueErr("binance.QueryOrder", err)
	}
	return toReportFromGet(o), nil
}

func (e *Exchange) QueryOrderByExchangeID(ctx context.Context, symbol string, exchangeID int64) (exchange.OrderReport, error) {
	if err := e.wait(ctx); err != nil {
		return exchange.OrderReport{}, err
	}
	o, err := e.rest.NewGetOrderService().Symbol(symbol).OrderID(exchangeID).Do(ctx)
	if err != nil {
		return exchange.OrderReport{}, classifyVenueErr("binance.QueryOrderByExchangeID", err)
	}
	return toReportFromGet(o), nil
}

func (e *Exchange) PlaceMarket(ctx context.Context, symbol string, side model.Side, qty decimal.Decimal, clientID string) (exchange.OrderReport, error) {
	if err := e.wait(ctx); err != nil {
		return exchange.OrderReport{}, err
	}
	var report *binancesdk.CreateOrderResponse
	err := e.retrier.RunWithExecution(func(exec failsafe.Execution[any]) error {
		var placeErr error
		report, placeErr = e.rest.NewCreateOrderService().
			Symbol(symbol).
			Side(sideToSDK(side)).
			Type(binancesdk.OrderTypeMarket).
			Quantity(qty.String()).
			NewClientOrderID(clientID).
			RecvWindow(e.receiveWindow).
			NewOrderRespType(binancesdk.NewOrderRespTypeFULL).
			Do(ctx)
		if placeErr != nil && apperrors.KindOf(classifyVenueErr("binance.PlaceMarket", placeErr)) == apperrors.KindTransient {
			return placeErr
		}
		if placeErr != nil {
			return failsafe.ErrExecutionAborted
		}
		return nil
	})
	if err != nil || report == nil {
		return exchange.OrderReport{}, classifyVenueErr("binance.PlaceMarket", err)
	}
	return toReport(symbol, report), nil
}

func (e *Exchange) PlaceLimit(ctx context.Context, symbol string, side model.Side, qty, price decimal.Decimal, clientID string, tif exchange.TimeInForce) (exchange.OrderReport, error) {
	if err := e.wait(ctx); err != nil {
		return exchange.OrderReport{}, err
	}

	sdkTIF := binancesdk.TimeInForceTypeGTC
	orderType := binancesdk.OrderTypeLimit
	switch tif {
	case exchange.IOC:
		sdkTIF = binancesdk.TimeInForceTypeIOC
	case exchange.FOK:
		sdkTIF = binancesdk.TimeInForceTypeFOK
		orderType = binancesdk.OrderTypeLimit
	}

	report, err := e.rest.NewCreateOrderService().
		Symbol(symbol).
		Side(sideToSDK(side)).
		Type(orderType).
		TimeInForce(sdkTIF).
		Quantity(qty.String()).
		Price(price.String()).
		NewClientOrderID(clientID).
		RecvWindow(e.receiveWindow).
		NewOrderRespType(binancesdk.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return exchange.OrderReport{}, classifyVenueErr("binance.PlaceLimit", err)
	}
	return toReport(symbol, report), nil
}

func (e *Exchange) CancelOrder(ctx context.Context, symbol, clientID string) (bool, error) {
	if err := e.wait(ctx); err != nil {
		return false, err
	}
	_, err := e.rest.NewCancelOrderService().Symbol(symbol).OrigClientOrderID(clientID).Do(ctx)
	if err != nil {
		wrapped := classifyVenueErr("binance.CancelOrder", err)
		if apperrors.KindOf(wrapped) == apperrors.KindVenueClient {
			return false, nil
		}
		return false, wrapped
	}
	return true, nil
}

func (e *Exchange) CancelAllOpenOrders(ctx context.Context, symbol string) ([]string, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	cancelled, err := e.rest.NewCancelOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, classifyVenueErr("binance.CancelAllOpenOrders", err)
	}
	ids := make([]string, 0, len(cancelled))
	for _, c := range cancelled {
		ids = append(ids, c.ClientOrderID)
	}
	return ids, nil
}

func (e *Exchange) ListOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderReport, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	orders, err := e.rest.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, classifyVenueErr("binance.ListOpenOrders", err)
	}
	reports := make([]exchange.OrderReport, 0, len(orders))
	for _, o := range orders {
		reports = append(reports, toReportFromGet(o))
	}
	return reports, nil
}

func (e *Exchange) ListAccountTrades(ctx context.Context, symbol string, fromTimeMs, fromTradeID int64, pageSize int) ([]exchange.TradeListEntry, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	svc := e.rest.NewListTradesService().Symbol(symbol).Limit(pageSize)
	if fromTradeID > 0 {
		svc = svc.FromID(fromTradeID)
	} else if fromTimeMs > 0 {
		svc = svc.StartTime(fromTimeMs)
	}
	trades, err := svc.Do(ctx)
	if err != nil {
		return nil, classifyVenueErr("binance.ListAccountTrades", err)
	}
	entries := make([]exchange.TradeListEntry, 0, len(trades))
	for _, t := range trades {
		entries = append(entries, exchange.TradeListEntry{
			TradeID:         t.ID,
			Qty:             t.Quantity,
			QuoteQty:        t.QuoteQuantity,
			Commission:      t.Commission,
			CommissionAsset: t.CommissionAsset,
			Time:            t.Time,
			IsBuyer:         t.IsBuyer,
		})
	}
	return entries, nil
}

func (e *Exchange) GetCurrentAveragePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := e.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	avg, err := e.rest.NewAveragePriceService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, classifyVenueErr("binance.GetCurrentAveragePrice", err)
	}
	return decimal.Parse(avg.Price)
}

func (e *Exchange) GetAccountBalances(ctx context.Context) ([]exchange.AssetBalance, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	account, err := e.rest.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, classifyVenueErr("binance.GetAccountBalances", err)
	}
	balances := make([]exchange.AssetBalance, 0, len(account.Balances))
	for _, b := range account.Balances {
		free, _ := decimal.Parse(b.Free)
		locked, _ := decimal.Parse(b.Locked)
		balances = append(balances, exchange.AssetBalance{Asset: b.Asset, Free: free, Locked: locked})
	}
	return balances, nil
}

func (e *Exchange) GetExchangeInformation(ctx context.Context, symbol string) (model.SymbolFilters, error) {
	if err := e.wait(ctx); err != nil {
		return model.SymbolFilters{}, err
	}
	info, err := e.rest.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return model.SymbolFilters{}, classifyVenueErr("binance.GetExchangeInformation", err)
	}
	if len(info.Symbols) == 0 {
		return model.SymbolFilters{}, apperrors.Wrap(apperrors.KindVenueClient, "binance.GetExchangeInformation", apperrors.ErrUnknownOrder)
	}
	sym := info.Symbols[0]

	filters := model.SymbolFilters{}
	if pf := sym.PriceFilter(); pf != nil {
		filters.Price.Min = decimal.MustParse(pf.MinPrice)
		filters.Price.Max = decimal.MustParse(pf.MaxPrice)
		filters.Price.Tick = decimal.MustParse(pf.TickSize)
	}
	if lf := sym.LotSizeFilter(); lf != nil {
		filters.Amount.Min = decimal.MustParse(lf.MinQuantity)
		filters.Amount.Max = decimal.MustParse(lf.MaxQuantity)
		filters.Amount.Tick = decimal.MustParse(lf.StepSize)
	}
	if nf := sym.MinNotionalFilter(); nf != nil {
		filters.MinimumNotional = decimal.MustParse(nf.MinNotional)
	}
	return filters, nil
}

// OpenUserStream creates a listen key via REST, opens a raw stream
// connection to it through pkg/wsclient, and keeps the key alive for as
// long as the stream is open.
func (e *Exchange) OpenUserStream(ctx context.Context, onMessage exchange.MessageHandler, onUnintendedClose exchange.UnintendedCloseHandler) (bool, error) {
	key, err := e.rest.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return false, classifyVenueErr("binance.OpenUserStream", err)
	}

	e.mu.Lock()
	e.listenKey = key
	stopKeepalive := make(chan struct{})
	e.listenKeyStop = stopKeepalive
	e.mu.Unlock()

	client := wsclient.New(fmt.Sprintf("%s/ws/%s", streamBaseURL, key), wsclient.MessageHandler(onMessage), wsclient.UnintendedCloseHandler(onUnintendedClose), e.logger)
	client.Start()

	e.mu.Lock()
	e.userStream = client
	e.mu.Unlock()

	go e.keepaliveLoop(key, stopKeepalive)

	return true, nil
}

func (e *Exchange) keepaliveLoop(key string, stop chan struct{}) {
	ticker := time.NewTicker(listenKeyTTL)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := e.rest.NewKeepaliveUserStreamService().ListenKey(key).Do(context.Background()); err != nil {
				e.logger.Warn("user stream listen key keepalive failed", "error", err)
			}
		}
	}
}

func (e *Exchange) OpenMarketStream(ctx context.Context, streamName string, onMessage exchange.MessageHandler, onUnintendedClose exchange.UnintendedCloseHandler) (bool, error) {
	client := wsclient.New(fmt.Sprintf("%s/ws/%s", streamBaseURL, streamName), wsclient.MessageHandler(onMessage), wsclient.UnintendedCloseHandler(onUnintendedClose), e.logger)
	client.Start()

	e.mu.Lock()
	e.marketStreams[streamName] = client
	e.mu.Unlock()

	return true, nil
}

func (e *Exchange) CloseUserStream() error {
	e.mu.Lock()
	client := e.userStream
	stop := e.listenKeyStop
	key := e.listenKey
	e.userStream = nil
	e.listenKeyStop = nil
	e.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if client != nil {
		client.Stop()
	}
	if key != "" {
		if _, err := e.rest.NewCloseUserStreamService().ListenKey(key).Do(context.Background()); err != nil {
			return classifyVenueErr("binance.CloseUserStream", err)
		}
	}
	return nil
}

func (e *Exchange) CloseMarketStream(streamName string) error {
	e.mu.Lock()
	client := e.marketStreams[streamName]
	delete(e.marketStreams, streamName)
	e.mu.Unlock()

	if client != nil {
		client.Stop()
	}
	return nil
}

var _ exchange.Client = (*Exchange)(nil)
