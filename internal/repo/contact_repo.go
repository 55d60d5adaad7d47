package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/domain"
)

// CreateContactMessage stores a submitted contact form.
func CreateContactMessage(ctx context.Context, db *gorm.DB, m *domain.ContactMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(m).Error
}

// MarkContactDelivered flags a stored message as sent. Returns ErrNotFound if
// id does not exist.
func MarkContactDelivered(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Model(&domain.ContactMessage{}).
		Where("id = ?", id).
		Update("delivered", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
