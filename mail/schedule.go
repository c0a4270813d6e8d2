// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"errors"
	"log/slog"
	"time"

	"github.com/absmach/mailmq/storage"
)

// Schedule opens the scheduled delivery path for a push. Re-entry is
// idempotent: while a schedule record exists for the push, further calls
// are no-ops, so at most one schedule is ever active per push.
func (s *Service) Schedule(p *storage.Push) {
	if existing, err := s.store.Schedules().GetByPush(p.ID); err == nil {
		s.logger.Info("push already scheduled",
			slog.String("push_id", existing.PushID),
			slog.String("state", string(existing.State)))
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("failed to look up schedule",
			slog.String("push_id", p.ID),
			slog.String("error", err.Error()))
		return
	}

	sched := &storage.Schedule{
		PushID: p.ID,
		State:  storage.ScheduleSending,
	}
	if err := s.store.Schedules().Save(sched); err != nil {
		s.logger.Error("failed to create schedule",
			slog.String("push_id", p.ID),
			slog.String("error", err.Error()))
		return
	}

	s.logger.Info("push scheduled", slog.String("push_id", p.ID))

	// A schedule entering SENDING runs immediately; IDLE ones wait for
	// the rescan.
	s.RunSchedule(sched)
}

// RunSchedule performs one scheduled send attempt. A schedule whose push
// is gone, in an unexpected state, or missing its content is stale and is
// deleted defensively; the retry budget only applies to transport failures.
func (s *Service) RunSchedule(sched *storage.Schedule) {
	p, err := s.store.Pushes().Get(sched.PushID)
	if err != nil {
		s.logger.Warn("schedule references missing push, deleting",
			slog.String("push_id", sched.PushID))
		s.deleteSchedule(sched.PushID)
		return
	}

	if p.State != storage.PushScheduling {
		s.logger.Info("schedule state mismatch, deleting",
			slog.String("push_id", sched.PushID),
			slog.String("push_state", string(p.State)))
		s.deleteSchedule(sched.PushID)
		return
	}

	content, err := s.store.Contents().Get(p.ContentID)
	if err != nil {
		s.logger.Warn("schedule content missing, deleting",
			slog.String("push_id", sched.PushID),
			slog.String("content_id", p.ContentID))
		s.deleteSchedule(sched.PushID)
		return
	}

	sendErr := s.deliver(p.Target.RoleID, p.Target.Route, []*storage.Content{content})

	switch {
	case sendErr == nil:
		p.State = storage.PushCompleted
		s.deleteSchedule(sched.PushID)
		s.logger.Info("scheduled push completed", slog.String("push_id", p.ID))
	case sched.RetryCount >= s.cfg.MaxRetry:
		p.State = storage.PushDie
		s.deleteSchedule(sched.PushID)
		s.logger.Error("scheduled push exhausted retries",
			slog.String("push_id", p.ID),
			slog.Int("retry_count", sched.RetryCount))
		s.metrics.RecordDead("schedule")
	default:
		if !p.SendTime.IsZero() {
			sched.RetryCount++
		}
		sched.State = storage.ScheduleIdle
		if err := s.store.Schedules().Save(sched); err != nil {
			s.logger.Error("failed to persist schedule",
				slog.String("push_id", sched.PushID),
				slog.String("error", err.Error()))
		}
		s.logger.Warn("scheduled push failed, awaiting rescan",
			slog.String("push_id", p.ID),
			slog.Int("retry_count", sched.RetryCount),
			slog.String("error", sendErr.Error()))
		s.metrics.RecordRetry("schedule")
	}

	// The push's send timestamp is stamped on every attempt, whichever
	// branch was taken.
	p.SendTime = time.Now()
	s.savePush(p)
}

// ScanSchedules re-arms every IDLE schedule back to SENDING and runs each.
func (s *Service) ScanSchedules() {
	rearm(s.logger, "schedule rescan",
		func() ([]*storage.Schedule, error) {
			return s.store.Schedules().ListByState(storage.ScheduleIdle)
		},
		func(sched *storage.Schedule) { sched.State = storage.ScheduleSending },
		s.store.Schedules().SaveAll,
		s.RunSchedule,
	)
}

func (s *Service) deleteSchedule(pushID string) {
	if err := s.store.Schedules().Delete(pushID); err != nil {
		s.logger.Error("failed to delete schedule",
			slog.String("push_id", pushID),
			slog.String("error", err.Error()))
	}
}
