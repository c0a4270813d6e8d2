// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"errors"
	"log/slog"
	"time"

	"github.com/absmach/mailmq/storage"
)

// Sync backfills a role with group broadcasts published since its
// registration, bounded above by the role's sync cursor. It is a
// historical catch-up, not a live tail: a record qualifies for delivery
// only when it was created after the role registered AND its ID sits
// below the cursor. The cursor is raised to the highest ID seen across
// all records, delivered or skipped, so no record is ever re-evaluated.
//
// Delivery runs on the worker pool; a failed delivery is logged and not
// retried, and the advanced cursor stays where it is.
func (s *Service) Sync(roleID string, roleCreateTime time.Time, route storage.Route) {
	cursor, err := s.store.RoleSyncs().Get(roleID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		cursor = &storage.RoleSync{RoleID: roleID, CreateTime: roleCreateTime}
	case err != nil:
		s.logger.Error("failed to load sync cursor",
			slog.String("role_id", roleID),
			slog.String("error", err.Error()))
		return
	}

	broadcasts, err := s.store.Broadcasts().List()
	if err != nil {
		s.logger.Error("failed to list broadcasts",
			slog.String("role_id", roleID),
			slog.String("error", err.Error()))
		return
	}
	if len(broadcasts) == 0 {
		return
	}

	var contentIDs []string
	for _, b := range broadcasts {
		if b.CreatedAt.After(roleCreateTime) && b.ID < cursor.SyncID {
			contentIDs = append(contentIDs, b.ContentID)
		}
		if b.ID > cursor.SyncID {
			cursor.SyncID = b.ID
		}
	}
	if len(contentIDs) == 0 {
		return
	}

	if err := s.store.RoleSyncs().Save(cursor); err != nil {
		s.logger.Error("failed to persist sync cursor",
			slog.String("role_id", roleID),
			slog.String("error", err.Error()))
		return
	}

	contents, err := s.store.Contents().GetAll(contentIDs)
	if err != nil {
		s.logger.Error("failed to resolve broadcast contents",
			slog.String("role_id", roleID),
			slog.String("error", err.Error()))
		return
	}
	if len(contents) == 0 {
		return
	}

	s.logger.Info("group sync queued",
		slog.String("role_id", roleID),
		slog.Int("contents", len(contents)),
		slog.Int64("sync_id", cursor.SyncID))
	s.metrics.RecordSyncBatch(len(contents))

	s.pool.Submit(roleID, route, contents)
}
