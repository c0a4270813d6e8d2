// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mail implements the mail delivery core: the push delivery state
// machine, the retry scheduler, and the group broadcast sync engine.
// Failures never escape as errors from the delivery paths; they resolve
// into persisted state transitions and log records.
package mail

import (
	"log/slog"
	"time"

	"github.com/absmach/mailmq/deliver"
	"github.com/absmach/mailmq/server/otel"
	"github.com/absmach/mailmq/storage"
	"github.com/google/uuid"
)

// Config holds delivery policy settings.
type Config struct {
	// MaxRetry bounds failed sends counted against a push. Once the
	// retry count reaches it, the push dies.
	MaxRetry int

	// SendTimeout bounds one blocking send attempt.
	SendTimeout time.Duration
}

// Service drives mail records through their lifecycles.
type Service struct {
	cfg     Config
	store   storage.Store
	router  *deliver.Router
	pool    *deliver.Pool
	metrics *otel.Metrics
	logger  *slog.Logger
}

// New creates the mail service. metrics may be nil.
func New(cfg Config, store storage.Store, router *deliver.Router, pool *deliver.Pool, metrics *otel.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		cfg:     cfg,
		store:   store,
		router:  router,
		pool:    pool,
		metrics: metrics,
		logger:  logger,
	}
}

// SubmitPush accepts a new single-recipient mail. The record is persisted
// in READY state (or SCHEDULING when scheduled) and the matching delivery
// path runs asynchronously; the caller only learns the assigned push ID.
func (s *Service) SubmitPush(target storage.Target, contentID string, scheduled bool) (string, error) {
	p := &storage.Push{
		ID:        uuid.NewString(),
		Target:    target,
		ContentID: contentID,
		State:     storage.PushReady,
		CreatedAt: time.Now(),
	}
	if scheduled {
		p.State = storage.PushScheduling
	}

	if err := s.store.Pushes().Save(p); err != nil {
		return "", err
	}

	s.logger.Info("push accepted",
		slog.String("push_id", p.ID),
		slog.String("role_id", target.RoleID),
		slog.String("state", string(p.State)))

	// Entry into READY triggers a send; SCHEDULING triggers scheduling.
	if scheduled {
		go s.Schedule(p)
	} else {
		go s.Push(p)
	}

	return p.ID, nil
}

// RequestSync accepts a group sync request for a role. The scan and any
// resulting delivery run asynchronously.
func (s *Service) RequestSync(roleID string, roleCreateTime time.Time, route storage.Route) {
	go s.Sync(roleID, roleCreateTime, route)
}

// CreateContent persists a new immutable content record and returns its ID.
func (s *Service) CreateContent(title, body, attachment string) (string, error) {
	content := &storage.Content{
		ID:         uuid.NewString(),
		Title:      title,
		Body:       body,
		Attachment: attachment,
		CreatedAt:  time.Now(),
	}
	if err := s.store.Contents().Save(content); err != nil {
		return "", err
	}
	return content.ID, nil
}

// PublishBroadcast appends a group broadcast record referencing the given
// content and returns its assigned sequence ID.
func (s *Service) PublishBroadcast(contentID string) (int64, error) {
	if _, err := s.store.Contents().Get(contentID); err != nil {
		return 0, err
	}

	b := &storage.Broadcast{
		ContentID: contentID,
		CreatedAt: time.Now(),
	}
	if err := s.store.Broadcasts().Create(b); err != nil {
		return 0, err
	}

	s.logger.Info("broadcast published",
		slog.Int64("broadcast_id", b.ID),
		slog.String("content_id", contentID))

	return b.ID, nil
}

// GetPush returns the persisted push record; delivery outcome is only
// observable through its state.
func (s *Service) GetPush(id string) (*storage.Push, error) {
	return s.store.Pushes().Get(id)
}

// GetContent returns a content record by ID.
func (s *Service) GetContent(id string) (*storage.Content, error) {
	return s.store.Contents().Get(id)
}
