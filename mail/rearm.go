// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"log/slog"
)

// rearm is the shared bounded-retry re-arm step: load every record waiting
// in a retryable state, advance it to its actionable state, persist the
// batch, then run each record's action. Both the push rescan and the
// schedule rescan are instances of this.
//
// Double-processing across concurrent scans is closed downstream: each
// record's action re-persists with a version check and backs off on
// conflict, so arming here is allowed to race.
func rearm[T any](logger *slog.Logger, name string, load func() ([]T, error), advance func(T), saveAll func([]T) error, run func(T)) {
	records, err := load()
	if err != nil {
		logger.Error("rescan load failed",
			slog.String("scan", name),
			slog.String("error", err.Error()))
		return
	}
	if len(records) == 0 {
		return
	}

	logger.Info("rescan re-arming records",
		slog.String("scan", name),
		slog.Int("count", len(records)))

	for _, record := range records {
		advance(record)
	}
	if err := saveAll(records); err != nil {
		logger.Error("rescan persist failed",
			slog.String("scan", name),
			slog.String("error", err.Error()))
		return
	}

	for _, record := range records {
		run(record)
	}
}
