// Package store provides durable persistence for tasks and their
// conversation ledgers on a relational database via GORM.
//
// All status writes are optimistic: they are conditional on the version the
// caller read, so two workers racing on the same task cannot both win. The
// ledger is append-only; no update or delete API for individual messages
// exists, and messages are removed only by cascading task deletion.
package store

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/stewardhq/steward/internal/domain"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
)

// Store wraps a GORM database handle with task-engine operations.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a Store around an open database handle.
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// AutoMigrate creates or updates the tasks and task_messages tables.
// Messages carry a CASCADE foreign key to their task; the instruction
// back-reference on tasks is weak (SET NULL) and owned by the instruction
// subsystem's migration.
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&domain.Task{}, &domain.TaskMessage{}); err != nil {
		return stewarderrors.Wrap(err, "migrate task tables")
	}
	return nil
}

// DB exposes the underlying handle for transactional composition in wiring
// code. Regular callers use the typed operations.
func (s *Store) DB() *gorm.DB {
	return s.db
}
