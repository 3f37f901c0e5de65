package core

import (
	"context"
	"time"
)

// Append re-reads the whole file at path, drops the rescued-data column and
// inserts every row into target. It returns the number of rows the store
// reports as inserted. Append does not check for a prior validation; callers
// that gate on one use AppendSession.
func (s *Service) Append(ctx context.Context, path string, target TableRef, settings ParseSettings) (int64, error) {
	if err := target.Validate(); err != nil {
		return 0, stageErr(StageAppend, err)
	}

	release, err := s.limiter.Acquire(ctx, StageAppend)
	if err != nil {
		return 0, stageErr(StageAppend, err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	logger := s.logger(ctx).With("path", path, "target", target.String())
	start := time.Now()

	table, err := s.store.ReadDelimitedFile(ctx, path, settings, 0)
	if err != nil {
		logger.Error("append could not read file", "error", err)
		return 0, stageErr(StageAppend, err)
	}
	table = table.WithoutRescued()

	inserted, err := s.store.BulkInsert(ctx, target, table)
	if err != nil {
		logger.Error("append failed", "rows", len(table.Rows), "error", err)
		return 0, stageErr(StageAppend, err)
	}

	logger.Info("append completed",
		"rows", inserted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return inserted, nil
}
