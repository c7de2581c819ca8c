// Command balances prints every persisted daily Balance snapshot for a
// trader's store, oldest first.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"spotengine/internal/config"
	"spotengine/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/engine.yaml", "Path to the engine configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.System.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	snapshots, err := st.ListBalances()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list balances: %v\n", err)
		os.Exit(1)
	}

	if len(snapshots) == 0 {
		fmt.Println("no balance snapshots recorded yet")
		return
	}

	for _, b := range snapshots {
		fmt.Printf("%s  base=%s quote=%s  base_sell_potential=%s quote_buy_potential=%s  quote_sell_potential=%s base_buy_potential=%s\n",
			time.UnixMilli(b.Time).Format(time.RFC3339),
			b.BaseBalance.String(), b.QuoteBalance.String(),
			b.BaseSellPotential.String(), b.QuoteBuyPotential.String(),
			b.QuoteSellPotential.String(), b.BaseBuyPotential.String())
	}
}
