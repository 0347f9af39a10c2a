package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
)

const (
	maxAttempts  = 3
	baseBackoff  = 50 * time.Millisecond
	queryTimeout = 5 * time.Second
)

// Transaction runs fn inside a database transaction with a bounded timeout.
// Transient connectivity failures (sqlite busy/locked) retry the whole
// transaction with exponential backoff; logic errors never retry and roll
// back immediately.
func Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(baseBackoff << (attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		txCtx, cancel := context.WithTimeout(ctx, queryTimeout)
		err = db.WithContext(txCtx).Transaction(fn)
		cancel()

		if err == nil || !isTransient(err) {
			return err
		}
	}
	return apperrors.TransientStore("datastore unavailable, retries exhausted")
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "database is busy")
}
