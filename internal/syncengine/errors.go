package syncengine

import (
	"errors"

	"github.com/YAtOff/s3rsync/internal/history"
	"github.com/YAtOff/s3rsync/internal/objectstore"
)

func isInvariantViolation(err error) bool {
	return errors.Is(err, history.ErrEmptyHistory) || errors.Is(err, history.ErrTombstonedHistory)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, objectstore.ErrNotFound)
}

func isPreconditionError(err error) bool {
	return errors.Is(err, history.ErrPreconditionFailed) || errors.Is(err, objectstore.ErrPreconditionFailed)
}
