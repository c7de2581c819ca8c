// Command orderctl is an operator tool for placing, inspecting, and
// cancelling a single order by hand against a running trader's store and
// venue credentials, outside the normal event-loop-driven paths.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"spotengine/internal/config"
	"spotengine/internal/decimal"
	"spotengine/internal/exchange/binance"
	"spotengine/internal/logging"
	"spotengine/internal/model"
	"spotengine/internal/spawner"
	"spotengine/internal/store"
	"spotengine/internal/trader"
)

func main() {
	configPath := flag.String("config", "configs/engine.yaml", "Path to the engine configuration file")
	action := flag.String("action", "query", "One of: place, query, cancel")
	side := flag.String("side", "sell", "Order side: sell or buy")
	execution := flag.String("execution", "limit_fok", "Execution kind: market, limit, limit_fok")
	rate := flag.String("rate", "", "Target (matching) rate for place")
	price := flag.String("price", "", "Submit price, defaults to rate if omitted")
	orderID := flag.Int64("order-id", 0, "Order id for query/cancel")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.System.DBPath)
	if err != nil {
		zapLogger.Fatal("failed to open store", "error", err)
	}
	defer st.Close()

	correlationID := uuid.NewString()
	var logger logging.ILogger = zapLogger.WithField("correlation_id", correlationID)
	logger.Info("manual intervention started", "action", *action)

	client := binance.New(cfg.Venue, cfg.Trader.ReceiveWindowSeconds, logger)
	pair := model.Pair{Base: cfg.Trader.Base, Quote: cfg.Trader.Quote}
	tr := trader.New(cfg.Trader.Name, pair, st, client, spawner.NullSpawner{}, logger)

	ctx := context.Background()

	switch *action {
	case "place":
		if *rate == "" {
			logger.Fatal("place requires -rate")
		}
		matchRate := decimal.MustParse(*rate)
		submitPrice := matchRate
		if *price != "" {
			submitPrice = decimal.MustParse(*price)
		}
		order, err := tr.PlaceOrderForMatchingFragments(ctx, parseExecution(*execution), parseSide(*side), matchRate, submitPrice)
		if err != nil {
			logger.Fatal("place failed", "error", err)
		}
		printOrder(order)

	case "query":
		if *orderID == 0 {
			logger.Fatal("query requires -order-id")
		}
		order, err := st.GetOrder(*orderID)
		if err != nil {
			logger.Fatal("query failed", "error", err)
		}
		printOrder(order)

	case "cancel":
		if *orderID == 0 {
			logger.Fatal("cancel requires -order-id")
		}
		order, err := st.GetOrder(*orderID)
		if err != nil {
			logger.Fatal("query failed", "error", err)
		}
		cancelled, err := tr.Cancel(ctx, &order)
		if err != nil {
			logger.Fatal("cancel failed", "error", err)
		}
		fmt.Printf("cancelled: %v\n", cancelled)
		printOrder(order)

	default:
		logger.Fatal("unknown action", "action", *action)
	}
}

func parseSide(s string) model.Side {
	if s == "buy" {
		return model.Buy
	}
	return model.Sell
}

func parseExecution(s string) model.Execution {
	switch s {
	case "market":
		return model.Market
	case "limit":
		return model.Limit
	default:
		return model.LimitFok
	}
}

func printOrder(o model.Order) {
	fmt.Printf("id=%d status=%s side=%s base_amount=%s fragments_rate=%s execution_rate=%s exchange_id=%d\n",
		o.ID, o.Status, o.Side, o.BaseAmount.String(), o.FragmentsRate.String(), o.ExecutionRate.String(), o.ExchangeID)
}
