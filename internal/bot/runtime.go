// Package bot implements the single-threaded cooperative event loop tying
// the exchange's market and user streams to the Trader through the
// IntervalTracker. Stream-driven Trader and Store work runs on one
// goroutine, the loop goroutine started by Runtime.Start. The user-stream
// reader goroutine only posts normalized work items onto it; the
// market-stream reader goroutine updates the IntervalTracker itself and
// posts a work item when the interval changes.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"spotengine/internal/exchange"
	"spotengine/internal/ladder"
	"spotengine/internal/logging"
	"spotengine/internal/model"
	"spotengine/internal/store"
	"spotengine/internal/trader"
	"spotengine/pkg/workerpool"
)

// reconnectBackoff is the delay between failed attempts to reopen a stream
// after an unintended close.
const reconnectBackoff = 5 * time.Second

// Config collects a Runtime's dependencies.
type Config struct {
	Trader     *trader.Trader
	Tracker    *ladder.IntervalTracker
	Client     exchange.Client
	Store      store.Store
	Pair       model.Pair
	TraderName string
	Stats      *StatsWriter
	Pool       *workerpool.Pool
	Logger     logging.ILogger
}

// Runtime is the bot event loop: one Trader, one IntervalTracker, the
// "change semaphore" that lets a fresh interval event pre-empt an
// in-flight profitable-order batch, and a StatsWriter for the daily
// balance snapshot.
type Runtime struct {
	trader     *trader.Trader
	tracker    *ladder.IntervalTracker
	client     exchange.Client
	st         store.Store
	pair       model.Pair
	traderName string
	stats      *StatsWriter
	pool       *workerpool.Pool
	logger     logging.ILogger

	marketStreamName string

	events chan func(context.Context)

	changeSemaphore int32

	cancel        context.CancelFunc
	wg            sync.WaitGroup
	intendedClose atomic.Bool
}

// New builds a Runtime from cfg.
func New(cfg Config) *Runtime {
	return &Runtime{
		trader:           cfg.Trader,
		tracker:          cfg.Tracker,
		client:           cfg.Client,
		st:               cfg.Store,
		pair:             cfg.Pair,
		traderName:       cfg.TraderName,
		stats:            cfg.Stats,
		pool:             cfg.Pool,
		logger:           cfg.Logger.WithField("component", "bot.runtime"),
		marketStreamName: strings.ToLower(cfg.Pair.Symbol()) + "@aggTrade",
		events:           make(chan func(context.Context), 256),
	}
}

// Start launches the event loop goroutine, then runs the startup sequence
// — cancel/reconcile live orders, start the stats writer, reset the
// tracker, subscribe to both streams — on the calling goroutine. It
// returns once subscriptions are established; the loop keeps running
// until Stop.
func (r *Runtime) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.loop(loopCtx)

	cancelled, err := r.trader.CancelLiveOrders(loopCtx)
	if err != nil {
		return fmt.Errorf("bot: startup reconciliation failed: %w", err)
	}
	r.logger.Info("startup reconciliation complete", "orders_cancelled", cancelled)

	if err := r.stats.Start(loopCtx); err != nil {
		// A failed catch-up snapshot is logged by StatsWriter itself and is
		// not fatal to bringing the engine up.
		r.logger.Error("stats writer start failed", "error", err)
	}

	r.tracker.Reset()

	if ok, err := r.client.OpenMarketStream(loopCtx, r.marketStreamName, r.onMarketMessage, r.onMarketStreamClosed); err != nil || !ok {
		return fmt.Errorf("bot: failed to open market stream: %w", err)
	}
	if ok, err := r.client.OpenUserStream(loopCtx, r.onUserMessage, r.onUserStreamClosed); err != nil || !ok {
		return fmt.Errorf("bot: failed to open user stream: %w", err)
	}

	return nil
}

// Stop marks the close as intended (so stream drop handlers do not
// reconnect), tears down both streams and the stats writer, and waits for
// the event loop goroutine to drain and exit.
func (r *Runtime) Stop() {
	r.intendedClose.Store(true)
	if r.cancel != nil {
		r.cancel()
	}
	if err := r.client.CloseMarketStream(r.marketStreamName); err != nil {
		r.logger.Warn("error closing market stream", "error", err)
	}
	if err := r.client.CloseUserStream(); err != nil {
		r.logger.Warn("error closing user stream", "error", err)
	}
	r.stats.Stop()
	r.wg.Wait()
}

// loop is the single goroutine that owns every piece of mutable engine
// state; it runs posted work items strictly in the order they were
// enqueued.
func (r *Runtime) loop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.events:
			fn(ctx)
		}
	}
}

// post hands fn to the worker pool, which is responsible only for not
// blocking the calling stream-reader goroutine; fn itself still runs on
// the single loop goroutine once dequeued from events.
func (r *Runtime) post(fn func(context.Context)) {
	err := r.pool.Submit(func() {
		select {
		case r.events <- fn:
		case <-time.After(reconnectBackoff):
			r.logger.Error("event loop did not accept posted work item in time, dropping")
		}
	})
	if err != nil {
		r.logger.Error("failed to submit event to worker pool", "error", err)
	}
}
