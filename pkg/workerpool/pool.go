// Package workerpool wraps alitto/pond into the bounded pool the bot
// runtime uses to post market-stream and user-stream work items onto the
// single event-loop goroutine without blocking the stream reader.
package workerpool

import (
	"fmt"
	"time"

	"github.com/alitto/pond"

	"spotengine/internal/logging"
)

// Config configures a Pool.
type Config struct {
	Name        string
	MaxWorkers  int
	MaxCapacity int
	IdleTimeout time.Duration
	// NonBlocking, if true, makes Submit return an error instead of
	// blocking the caller when the pool is at capacity.
	NonBlocking bool
}

// Pool wraps a pond.WorkerPool with a name and a logger for panic recovery.
type Pool struct {
	pool   *pond.WorkerPool
	config Config
	logger logging.ILogger
}

// New builds a Pool, defaulting MaxWorkers/MaxCapacity/IdleTimeout when
// unset.
func New(cfg Config, logger logging.ILogger) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 64
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	pool := pond.New(
		cfg.MaxWorkers,
		cfg.MaxCapacity,
		pond.MinWorkers(1),
		pond.IdleTimeout(cfg.IdleTimeout),
		pond.PanicHandler(func(p interface{}) {
			logger.Error("worker pool panic recovered", "pool", cfg.Name, "panic", p)
		}),
	)

	return &Pool{
		pool:   pool,
		config: cfg,
		logger: logger.WithField("component", "workerpool").WithField("pool", cfg.Name),
	}
}

// Submit runs task on the pool. If the pool is NonBlocking and at capacity,
// it returns an error instead of queueing.
func (p *Pool) Submit(task func()) error {
	if p.config.NonBlocking {
		if !p.pool.TrySubmit(task) {
			return fmt.Errorf("workerpool %q is full (capacity %d)", p.config.Name, p.config.MaxCapacity)
		}
		return nil
	}
	p.pool.Submit(task)
	return nil
}

// Stop drains and stops the pool, waiting for in-flight tasks to complete.
func (p *Pool) Stop() {
	p.pool.StopAndWait()
}

// Stats reports pool utilization: running and idle workers and waiting
// tasks.
func (p *Pool) Stats() map[string]int {
	return map[string]int{
		"running_workers": p.pool.RunningWorkers(),
		"idle_workers":    p.pool.IdleWorkers(),
		"waiting_tasks":   int(p.pool.WaitingTasks()),
	}
}
