package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/domain"
)

// GetCurrentSubscription returns the user's most recently created
// subscription regardless of status, or ErrNotFound.
func GetCurrentSubscription(ctx context.Context, db *gorm.DB, userID uint) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSubscription inserts an active subscription for userID starting now.
func CreateSubscription(ctx context.Context, db *gorm.DB, userID uint, planID, orderID string) (*domain.Subscription, error) {
	now := time.Now().UTC()
	s := &domain.Subscription{
		ID:             uuid.NewString(),
		UserID:         userID,
		PlanID:         planID,
		Status:         domain.SubscriptionActive,
		PaymentOrderID: orderID,
		StartedAt:      now,
		CreatedAt:      now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// CancelSubscription moves an active subscription to cancelled and stamps
// EndedAt. The update is guarded on status so a second cancel leaves the
// original EndedAt untouched; it reports whether a row changed. Returns
// ErrNotFound if id does not exist.
func CancelSubscription(ctx context.Context, db *gorm.DB, id string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("id = ? AND status = ?", id, domain.SubscriptionActive).
		Updates(map[string]any{
			"status":     domain.SubscriptionCancelled,
			"ended_at":   at.UTC(),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var n int64
	if err := db.WithContext(ctx).Model(&domain.Subscription{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrNotFound
	}
	return false, nil
}
