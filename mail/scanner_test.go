// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerFiresAfterDelayThenOnInterval(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var fires atomic.Int64
	s := NewScanner("test", 10*time.Millisecond, 20*time.Millisecond, func() {
		fires.Add(1)
	}, logger)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return fires.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestScannerStopBeforeDelay(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var fires atomic.Int64
	s := NewScanner("test", time.Hour, time.Hour, func() {
		fires.Add(1)
	}, logger)

	s.Start()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return before the start delay elapsed")
	}

	assert.Equal(t, int64(0), fires.Load())
}

func TestScannerStopWaitsForInFlightIteration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	s := NewScanner("test", time.Millisecond, time.Hour, func() {
		close(started)
		<-release
		finished.Store(true)
	}, logger)

	s.Start()
	<-started

	stopDone := make(chan struct{})
	go func() {
		s.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while an iteration was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopDone
	assert.True(t, finished.Load())
}
