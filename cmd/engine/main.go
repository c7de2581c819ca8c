// Command engine runs the durable spot-trading bot: it loads its
// configuration, opens the store and venue client, rebuilds the ladder and
// spawner policy, and starts the event loop until an interrupt or
// terminate signal asks it to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spotengine/internal/bot"
	"spotengine/internal/config"
	"spotengine/internal/decimal"
	"spotengine/internal/exchange/binance"
	"spotengine/internal/ladder"
	"spotengine/internal/logging"
	"spotengine/internal/model"
	"spotengine/internal/spawner"
	"spotengine/internal/store"
	"spotengine/internal/trader"
	"spotengine/pkg/workerpool"
)

func main() {
	configPath := flag.String("config", "configs/engine.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	pair := model.Pair{Base: cfg.Trader.Base, Quote: cfg.Trader.Quote}
	logger.Info("starting engine", "trader", cfg.Trader.Name, "pair", pair.String())

	st, err := store.Open(cfg.System.DBPath)
	if err != nil {
		logger.Fatal("failed to open store", "error", err)
	}
	defer st.Close()

	launch, err := st.IncrementLaunchCount()
	if err != nil {
		logger.Error("failed to record launch count", "error", err)
	} else {
		logger.Info("launch count recorded", "launch", launch)
	}

	client := binance.New(cfg.Venue, cfg.Trader.ReceiveWindowSeconds, logger)

	sp, err := buildSpawner(cfg.Spawner)
	if err != nil {
		logger.Fatal("failed to build spawner", "error", err)
	}

	tr := trader.New(cfg.Trader.Name, pair, st, client, sp, logger)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
	filters, err := client.GetExchangeInformation(startupCtx, pair.Symbol())
	cancelStartup()
	if err != nil {
		logger.Fatal("failed to fetch symbol filters", "error", err)
	}
	tr.SetFilters(filters)

	var tracker *ladder.IntervalTracker
	if cfg.Spawner.Variant != "null" {
		l := ladder.Make(
			decimal.MustParse(cfg.Spawner.Ladder.FirstStop),
			decimal.MustParse(cfg.Spawner.Ladder.Factor),
			cfg.Spawner.Ladder.StopCount,
			tickSizeOrDefault(cfg.Spawner.Ladder.InternalTickSize),
		)
		tracker = ladder.NewIntervalTracker(l)
	} else {
		tracker = ladder.NewIntervalTracker(ladder.Ladder{})
	}

	pool := workerpool.New(workerpool.Config{
		Name:        "EngineEventPool",
		MaxWorkers:  4,
		MaxCapacity: 1000,
		NonBlocking: true,
	}, logger)
	defer pool.Stop()

	stats := bot.NewStatsWriter(st, client, pair, logger)

	runtime := bot.New(bot.Config{
		Trader:     tr,
		Tracker:    tracker,
		Client:     client,
		Store:      st,
		Pair:       pair,
		TraderName: cfg.Trader.Name,
		Stats:      stats,
		Pool:       pool,
		Logger:     logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runtime.Start(ctx); err != nil {
		logger.Fatal("failed to start engine", "error", err)
	}
	logger.Info("engine running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("received shutdown signal, stopping")

	done := make(chan struct{})
	go func() {
		runtime.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("engine shutdown timed out")
	}

	logger.Info("engine stopped")
}

func tickSizeOrDefault(s string) decimal.Decimal {
	if s == "" {
		return decimal.MustParse("0.00000001")
	}
	return decimal.MustParse(s)
}

func buildSpawner(cfg config.SpawnerConfig) (spawner.Spawner, error) {
	switch cfg.Variant {
	case "null":
		return spawner.NullSpawner{}, nil
	case "naive_down_spread":
		sp, err := newProportionSpreader(cfg)
		if err != nil {
			return nil, err
		}
		return spawner.NaiveDownSpread{Spreader: sp}, nil
	case "stable_down_spread":
		sp, err := newProportionSpreader(cfg)
		if err != nil {
			return nil, err
		}
		return spawner.StableDownSpread{
			Spreader:               sp,
			TakeHomeInitialSell:    decimal.MustParse(cfg.TakeHomeInitialSell),
			TakeHomeSubsequentSell: decimal.MustParse(cfg.TakeHomeSubsequentSell),
			TakeHomeSubsequentBuy:  decimal.MustParse(cfg.TakeHomeSubsequentBuy),
		}, nil
	default:
		return nil, fmt.Errorf("engine: unknown spawner variant %q", cfg.Variant)
	}
}

func newProportionSpreader(cfg config.SpawnerConfig) (spawner.ProportionSpreader, error) {
	l := ladder.Make(
		decimal.MustParse(cfg.Ladder.FirstStop),
		decimal.MustParse(cfg.Ladder.Factor),
		cfg.Ladder.StopCount,
		tickSizeOrDefault(cfg.Ladder.InternalTickSize),
	)

	proportions := make([]decimal.Decimal, 0, len(cfg.Proportions))
	for _, p := range cfg.Proportions {
		proportions = append(proportions, decimal.MustParse(p))
	}

	return spawner.ProportionSpreader{
		Ladder: l,
		Proportions: spawner.ProportionsMap{
			{MaxRate: l[len(l)-1], Proportions: proportions},
		},
		AmountTickSize: tickSizeOrDefault(cfg.Ladder.InternalTickSize),
	}, nil
}
