package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/domain"
)

// GenerationsStats returns the number of a user's records for one capability
// and the newest CreatedAt among them, for ETag generation. When there are no
// rows, count is 0 and latest is nil.
func GenerationsStats(ctx context.Context, db *gorm.DB, userID uint, capability domain.Capability) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Generation{}).
		Where("user_id = ? AND capability = ?", userID, capability)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// avoid MAX() -> TEXT in SQLite
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
