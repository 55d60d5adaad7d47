package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/domain"
)

// CreatePaymentOrder stores the local record of a provider order. Returns
// ErrDuplicate if the provider order id is already known.
func CreatePaymentOrder(ctx context.Context, db *gorm.DB, o *domain.PaymentOrder) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.OrderCreated
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetPaymentOrderByProviderID fetches the order the user created with the
// provider, or ErrNotFound.
func GetPaymentOrderByProviderID(ctx context.Context, db *gorm.DB, userID uint, providerOrderID string) (*domain.PaymentOrder, error) {
	var o domain.PaymentOrder
	err := db.WithContext(ctx).
		Where("user_id = ? AND provider_order_id = ?", userID, providerOrderID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdatePaymentOrderStatus sets the status of an order. Returns ErrNotFound
// if id does not exist.
func UpdatePaymentOrderStatus(ctx context.Context, db *gorm.DB, id string, status domain.OrderStatus) error {
	res := db.WithContext(ctx).Model(&domain.PaymentOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
