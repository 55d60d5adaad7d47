package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/domain"
)

// CreateGeneration inserts g, assigning a UUID and UTC creation time when
// they are unset.
func CreateGeneration(ctx context.Context, db *gorm.DB, g *domain.Generation) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(g).Error
}

// ListGenerations returns a user's records for one capability, newest first.
// limit <= 0 means no limit.
func ListGenerations(ctx context.Context, db *gorm.DB, userID uint, capability domain.Capability, limit int) ([]domain.Generation, error) {
	var out []domain.Generation
	q := db.WithContext(ctx).
		Where("user_id = ? AND capability = ?", userID, capability).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteGenerationsBefore removes records created before cutoff and reports
// how many rows were deleted.
func DeleteGenerationsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&domain.Generation{})
	return res.RowsAffected, res.Error
}
