// Package repo implements the data persistence layer for domain entities,
// backed by GORM.
//
// All functions are context-aware and accept a *gorm.DB handle, so they can
// run inside transactions. They hold no business rules: only persistence and
// query composition.
//
// Error semantics:
//   - Missing rows yield ErrNotFound (gorm.ErrRecordNotFound).
//   - Unique violations on inserts that care about them yield ErrDuplicate.
//   - Any other DB error is propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/genai-studio/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation recognises unique-constraint failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key") ||
		strings.Contains(low, "duplicate entry")
}

// GetOrCreateUser returns the user mapped to subjectID, inserting it first if
// it does not exist. The insert is a single conditional statement guarded by
// the unique index on subject_id, so concurrent first requests for the same
// subject converge on one row.
func GetOrCreateUser(ctx context.Context, db *gorm.DB, subjectID, email string) (*domain.User, error) {
	tx := db.WithContext(ctx)
	u := &domain.User{SubjectID: subjectID, Email: email}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}},
		DoNothing: true,
	}).Create(u).Error
	if err != nil {
		return nil, err
	}
	return FindUserBySubject(ctx, db, subjectID)
}

// FindUserBySubject fetches a user by identity-provider subject, or
// ErrNotFound.
func FindUserBySubject(ctx context.Context, db *gorm.DB, subjectID string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CountUsersBySubject returns how many rows exist for subjectID.
func CountUsersBySubject(ctx context.Context, db *gorm.DB, subjectID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).Where("subject_id = ?", subjectID).Count(&n).Error
	return n, err
}
