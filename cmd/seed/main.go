// Command seed seeds the initial, externally-funded Sell fragments a fresh
// trader starts trading from: it builds the same ladder the engine will
// use and distributes a base amount evenly across a window of stops.
package main

import (
	"flag"
	"fmt"
	"os"

	"spotengine/internal/config"
	"spotengine/internal/decimal"
	"spotengine/internal/ladder"
	"spotengine/internal/logging"
	"spotengine/internal/model"
	"spotengine/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/seed.yaml", "Path to seed configuration file")
	flag.Parse()

	cfg, err := config.LoadSeedConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load seed config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger("INFO")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	tickSize := decimal.MustParse("0.00000001")
	if cfg.Ladder.InternalTickSize != "" {
		tickSize = decimal.MustParse(cfg.Ladder.InternalTickSize)
	}
	l := ladder.Make(
		decimal.MustParse(cfg.Ladder.FirstStop),
		decimal.MustParse(cfg.Ladder.Factor),
		cfg.Ladder.StopCount,
		tickSize,
	)

	begin := cfg.Initial.SpawnBeginOffset
	end := cfg.Initial.SpawnEndOffset
	if end <= begin || begin < 0 || end > len(l) {
		logger.Fatal("invalid seeding window", "begin", begin, "end", end, "stop_count", len(l))
	}
	stops := l[begin:end]
	if len(stops) == 0 {
		logger.Fatal("seeding window contains no ladder stops")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open store", "error", err)
	}
	defer st.Close()

	amount := decimal.MustParse(cfg.Amount)
	perStop := amount.Div(decimal.NewFromInt(int64(len(stops))))

	pair := model.Pair{Base: cfg.Pair.Base, Quote: cfg.Pair.Quote}
	for _, rate := range stops {
		frag := &model.Fragment{
			Base:          pair.Base,
			Quote:         pair.Quote,
			BaseAmount:    perStop,
			TargetRate:    rate,
			Side:          model.Sell,
			TakenHome:     decimal.Zero,
			SpawningOrder: model.UnsetID,
			ComposedOrder: model.UnsetID,
		}
		if err := st.InsertFragment(frag); err != nil {
			logger.Fatal("failed to insert seed fragment", "rate", rate.String(), "error", err)
		}
		logger.Info("seeded fragment", "rate", rate.String(), "base_amount", perStop.String())
	}

	logger.Info("seeding complete", "pair", pair.String(), "fragments", len(stops), "total_base_amount", amount.String())
}
