// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Scanner fires a rescan function after a start delay and then at a fixed
// interval on its own goroutine. An iteration still in flight when the
// next tick arrives is not stacked: the tick is skipped.
type Scanner struct {
	name     string
	delay    time.Duration
	interval time.Duration
	fn       func()
	logger   *slog.Logger

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScanner creates a scanner; call Start to begin firing.
func NewScanner(name string, delay, interval time.Duration, fn func(), logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scanner{
		name:     name,
		delay:    delay,
		interval: interval,
		fn:       fn,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the scan loop.
func (s *Scanner) Start() {
	s.logger.Info("scanner starting",
		slog.String("scanner", s.name),
		slog.Duration("delay", s.delay),
		slog.Duration("interval", s.interval))

	go s.loop()
}

func (s *Scanner) loop() {
	defer close(s.doneCh)

	select {
	case <-time.After(s.delay):
	case <-s.stopCh:
		return
	}

	s.fire()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fire()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scanner) fire() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("scan still running, skipping tick",
			slog.String("scanner", s.name))
		return
	}
	defer s.running.Store(false)

	s.fn()
}

// Stop prevents future firings and waits for the loop to exit. An
// in-flight iteration is allowed to finish.
func (s *Scanner) Stop() {
	close(s.stopCh)
	<-s.doneCh
}
