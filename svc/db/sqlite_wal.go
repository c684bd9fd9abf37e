package db

import (
	"context"
	"crosssync/svc/util"
	"database/sql"
	"fmt"
	"time"
)

const (
	walTruncatePages   = 1000
	checkpointInterval = 5 * time.Minute
)

// StartWALMaintenance checkpoints the WAL until ctx ends, then runs one final pass.
// done is closed after the final checkpoint.
func StartWALMaintenance(ctx context.Context, db *sql.DB, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = checkpointInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := checkpoint(context.Background(), db); err != nil {
					util.Error().Err(err).Msg("WAL checkpoint failed")
				}
			case <-ctx.Done():
				finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := checkpoint(finalCtx, db); err != nil {
					util.Error().Err(err).Msg("final WAL checkpoint failed")
				}
				cancel()
				return
			}
		}
	}()
	return done
}

func checkpoint(ctx context.Context, db *sql.DB) error {
	start := time.Now()
	var busy, logPages, done int
	err := db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &logPages, &done)
	if err != nil {
		return fmt.Errorf("PASSIVE checkpoint: %w", err)
	}
	util.Debug().
		Int("busy", busy).
		Int("log", logPages).
		Int("checkpointed", done).
		Msg("PASSIVE checkpoint result")
	if logPages > walTruncatePages || busy > 0 {
		util.Info().Int("log", logPages).Msg("escalating to TRUNCATE checkpoint")
		if err := db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logPages, &done); err != nil {
			return fmt.Errorf("TRUNCATE checkpoint: %w", err)
		}
	}
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("quick_check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("quick_check returned: %s", result)
	}
	util.Debug().Dur("duration", time.Since(start)).Msg("WAL checkpoint completed")
	return nil
}
