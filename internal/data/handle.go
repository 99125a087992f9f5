// Package data provides data access layer implementations.
// It handles database connections and data persistence.
package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "AvailGate/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// Handle is the authoritative record of a registered handle.
type Handle struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Handle    string    `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName maps the model to the handles table.
func (Handle) TableName() string {
	return "handles"
}

// HandleRepo is the authoritative-store repository for handles. It is
// the system of record every positive filter answer is resolved
// against.
type HandleRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewHandleRepo creates a new handle repository.
func NewHandleRepo(db *gorm.DB, logger log.Logger) *HandleRepo {
	return &HandleRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// Exists reports whether the handle is registered.
func (r *HandleRepo) Exists(ctx context.Context, handle string) (bool, error) {
	var id int64
	err := r.db.WithContext(ctx).
		Model(&Handle{}).
		Select("id").
		Where("handle = ?", handle).
		Take(&id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.ClassifyDBError(err, "handle lookup failed")
	}
	return true, nil
}

// Insert registers a handle. A duplicate is classified so callers can
// distinguish "taken" from an infrastructure failure.
func (r *HandleRepo) Insert(ctx context.Context, handle string) error {
	rec := &Handle{Handle: handle}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return pkgerrors.ClassifyDBError(err, fmt.Sprintf("failed to insert handle %q", handle))
	}
	return nil
}

// Count returns the total number of registered handles, used to size
// filter builds.
func (r *HandleRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Handle{}).Count(&count).Error; err != nil {
		return 0, pkgerrors.ClassifyDBError(err, "failed to count handles")
	}
	return count, nil
}

// PageHandles returns up to limit handles with IDs greater than
// afterID, in ID order. Filter builds iterate the full table with it.
func (r *HandleRepo) PageHandles(ctx context.Context, afterID int64, limit int) ([]Handle, error) {
	var page []Handle
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&page).Error
	if err != nil {
		return nil, pkgerrors.ClassifyDBError(err, "failed to page handles")
	}
	return page, nil
}
