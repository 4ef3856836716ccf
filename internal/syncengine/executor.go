package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ConflictRecord is what Executor.conflict hands to a ConflictRecorder: the
// file key and the divergent etags that triggered the conflict, for
// spec.md section 4.G's "record/report only" behavior.
type ConflictRecord struct {
	Key         string
	RemoteETag  string
	LocalETag   string
	DetectedAt  time.Time
	Description string
}

// ConflictRecorder is the structured conflict channel spec.md section 4.G
// alludes to ("in a production implementation, a structured conflict
// channel"). No auto-merge is performed (spec.md Non-goals); this interface
// exists purely for reporting.
type ConflictRecorder interface {
	RecordConflict(ctx context.Context, rec ConflictRecord) error
}

// Executor runs the seven sync actions plus Nop (spec.md section 4.G). Each
// method is a side-effecting operation over the session and the action's
// captured data; any failure aborts the action and leaves partial on-disk/
// remote state for the next tick's producer to re-derive (spec.md section
// 7, "Propagation policy").
type Executor struct {
	Session   *Session
	Conflicts ConflictRecorder
}

// NewExecutor constructs an Executor over session, recording conflicts via
// recorder.
func NewExecutor(session *Session, recorder ConflictRecorder) *Executor {
	return &Executor{Session: session, Conflicts: recorder}
}

// Execute dispatches action to the method matching its Kind, under a
// per-action deadline (Session.ActionTimeout, default DefaultActionTimeout,
// SPEC_FULL.md section 5).
func (e *Executor) Execute(ctx context.Context, action Action) error {
	ctx, cancel := context.WithTimeout(ctx, e.Session.actionTimeout())
	defer cancel()

	logger := e.Session.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("executing action", slog.String("file_key", action.Key), slog.String("action", action.Kind.String()))

	err := e.dispatch(ctx, action)
	if err != nil {
		logger.Error("action failed",
			slog.String("file_key", action.Key),
			slog.String("action", action.Kind.String()),
			slog.String("error_kind", errorKind(err)),
			slog.Any("error", err),
		)
	}

	return err
}

func (e *Executor) dispatch(ctx context.Context, action Action) error {
	switch action.Kind {
	case ActionNop:
		return nil
	case ActionUpload:
		return e.upload(ctx, action)
	case ActionDownload:
		return e.download(ctx, action)
	case ActionDeleteLocal:
		return e.deleteLocal(ctx, action)
	case ActionDeleteRemote:
		return e.deleteRemote(ctx, action)
	case ActionSaveHistory:
		return e.saveHistory(ctx, action)
	case ActionDeleteHistory:
		return e.deleteHistory(ctx, action)
	case ActionConflict:
		return e.conflict(ctx, action)
	default:
		return fmt.Errorf("syncengine: unknown action kind %d", action.Kind)
	}
}

// errorKind classifies err for the structured "error_kind" log field
// (spec.md section 7's taxonomy). Best-effort: falls back to "unknown" when
// the error doesn't match a recognized sentinel.
func errorKind(err error) string {
	switch {
	case isInvariantViolation(err):
		return "invariant_violation"
	case isNotFoundError(err):
		return "not_found"
	case isPreconditionError(err):
		return "conflict"
	default:
		return "unknown"
	}
}
