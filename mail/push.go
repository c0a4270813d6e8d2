// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/mailmq/storage"
)

// deliver performs one bounded send attempt through the router.
func (s *Service) deliver(roleID string, route storage.Route, contents []*storage.Content) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	err := s.router.Deliver(ctx, roleID, route, contents)
	s.metrics.RecordDelivery(string(route.Kind), err == nil, float64(time.Since(start).Microseconds())/1000.0)
	return err
}

// Push drives one READY push record through a send attempt.
//
// The SENDING state is persisted before the attempt so a crash mid-send is
// observable. Missing content is a configuration error, not a transport
// failure: the push dies instead of burning retries.
func (s *Service) Push(p *storage.Push) {
	if p.State != storage.PushReady {
		return
	}

	p.State = storage.PushSending
	if err := s.store.Pushes().Save(p); err != nil {
		// Version conflict: another worker owns this record now.
		s.logger.Debug("push claim lost",
			slog.String("push_id", p.ID),
			slog.String("error", err.Error()))
		return
	}

	content, err := s.store.Contents().Get(p.ContentID)
	if err != nil {
		s.logger.Error("push content missing, giving up",
			slog.String("push_id", p.ID),
			slog.String("content_id", p.ContentID))
		p.State = storage.PushDie
		p.SendTime = time.Now()
		s.savePush(p)
		s.metrics.RecordDead("push")
		return
	}

	sendErr := s.deliver(p.Target.RoleID, p.Target.Route, []*storage.Content{content})
	now := time.Now()

	switch {
	case sendErr == nil:
		p.State = storage.PushCompleted
		s.logger.Info("push completed", slog.String("push_id", p.ID))
	case p.RetryCount >= s.cfg.MaxRetry:
		p.State = storage.PushDie
		s.logger.Error("push exhausted retries",
			slog.String("push_id", p.ID),
			slog.Int("retry_count", p.RetryCount))
		s.metrics.RecordDead("push")
	default:
		// The first attempt's failure is free: only count it against
		// the budget once a previous send timestamp exists.
		if !p.SendTime.IsZero() {
			p.RetryCount++
		}
		p.State = storage.PushRetrying
		s.logger.Warn("push failed, awaiting rescan",
			slog.String("push_id", p.ID),
			slog.Int("retry_count", p.RetryCount),
			slog.String("error", sendErr.Error()))
		s.metrics.RecordRetry("push")
	}

	p.SendTime = now
	s.savePush(p)
}

// Scan re-arms every RETRYING push back to READY and fires a send attempt
// for each. This is the sole mechanism that re-arms the push path.
func (s *Service) Scan() {
	rearm(s.logger, "push rescan",
		func() ([]*storage.Push, error) {
			return s.store.Pushes().ListByState(storage.PushRetrying)
		},
		func(p *storage.Push) { p.State = storage.PushReady },
		s.store.Pushes().SaveAll,
		s.Push,
	)
}

func (s *Service) savePush(p *storage.Push) {
	if err := s.store.Pushes().Save(p); err != nil {
		s.logger.Error("failed to persist push",
			slog.String("push_id", p.ID),
			slog.String("error", err.Error()))
	}
}
