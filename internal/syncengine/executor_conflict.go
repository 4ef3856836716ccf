package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// conflict implements spec.md section 4.G's conflict(remote, local,
// stored): record and log only, no auto-merge (spec.md Non-goals) and no
// storage mutation.
func (e *Executor) conflict(ctx context.Context, action Action) error {
	rec := ConflictRecord{Key: action.Key, DetectedAt: time.Now()}

	logger := e.Session.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if action.Remote != nil {
		if body := action.Remote.Body(); body != nil {
			etag, err := body.ETag()
			if err != nil {
				logger.Error("re-deriving remote etag for conflict record failed",
					slog.String("file_key", action.Key),
					slog.String("error_kind", errorKind(err)),
					slog.Any("error", err),
				)
			}

			rec.RemoteETag = etag
		}
	}

	if action.Local != nil {
		etag, err := action.Local.CalcEtag()
		if err != nil {
			logger.Error("re-deriving local etag for conflict record failed",
				slog.String("file_key", action.Key),
				slog.String("error_kind", errorKind(err)),
				slog.Any("error", err),
			)
		}

		rec.LocalETag = etag
	}

	logger.Warn("conflict detected",
		slog.String("file_key", action.Key),
		slog.String("remote_etag", rec.RemoteETag),
		slog.String("local_etag", rec.LocalETag),
	)

	if e.Conflicts == nil {
		return nil
	}

	if err := e.Conflicts.RecordConflict(ctx, rec); err != nil {
		return fmt.Errorf("syncengine: recording conflict for %s: %w", action.Key, err)
	}

	return nil
}
