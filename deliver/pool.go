// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package deliver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/mailmq/storage"
	"golang.org/x/time/rate"
)

// PoolConfig holds worker pool settings.
type PoolConfig struct {
	Workers         int
	QueueSize       int
	Rate            float64 // sends per second, 0 = unlimited
	Burst           int
	SendTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type job struct {
	roleID   string
	route    storage.Route
	contents []*storage.Content
}

// Pool delivers group mail batches asynchronously so a slow recipient
// cannot stall the sync scan of other recipients. Failures are logged,
// never retried; the sync cursor has already advanced.
type Pool struct {
	cfg     PoolConfig
	router  *Router
	limiter *rate.Limiter
	queue   chan job
	logger  *slog.Logger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool creates and starts a delivery worker pool.
func NewPool(cfg PoolConfig, router *Router, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	}

	p := &Pool{
		cfg:     cfg,
		router:  router,
		limiter: limiter,
		queue:   make(chan job, cfg.QueueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	logger.Info("deliver pool started",
		slog.Int("workers", cfg.Workers),
		slog.Int("queue_size", cfg.QueueSize))

	return p
}

// Submit queues a delivery without blocking. If the queue is full the
// delivery is dropped and logged; group sync is at-most-once by design.
func (p *Pool) Submit(roleID string, route storage.Route, contents []*storage.Content) {
	select {
	case p.queue <- job{roleID: roleID, route: route, contents: contents}:
	default:
		p.logger.Error("deliver queue full, group mail dropped",
			slog.String("role_id", roleID),
			slog.Int("contents", len(contents)))
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.queue:
			p.process(j)
		}
	}
}

func (p *Pool) process(j job) {
	if p.limiter != nil {
		if err := p.limiter.Wait(p.ctx); err != nil {
			return // shutting down
		}
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.SendTimeout)
	defer cancel()

	if err := p.router.Deliver(ctx, j.roleID, j.route, j.contents); err != nil {
		p.logger.Error("group mail delivery failed",
			slog.String("role_id", j.roleID),
			slog.String("kind", string(j.route.Kind)),
			slog.String("error", err.Error()))
		return
	}

	p.logger.Debug("group mail delivered",
		slog.String("role_id", j.roleID),
		slog.Int("contents", len(j.contents)))
}

// Close stops the pool, waiting up to the shutdown timeout for in-flight
// deliveries to finish.
func (p *Pool) Close() error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timeout := p.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
		p.logger.Info("deliver pool stopped")
	case <-time.After(timeout):
		p.logger.Warn("deliver pool shutdown timeout",
			slog.Int("queue_depth", len(p.queue)))
	}

	return nil
}
