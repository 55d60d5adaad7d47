// Package services – BillingService
//
// BillingService creates payment-provider orders for a plan, captures
// approved orders into an active Subscription, and reads or cancels the
// caller's current subscription. Billing never creates users: a caller
// without a user row gets ErrUserNotFound.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/auth"
	"github.com/tbourn/genai-studio/internal/domain"
	"github.com/tbourn/genai-studio/internal/observability"
	"github.com/tbourn/genai-studio/internal/paypal"
	"github.com/tbourn/genai-studio/internal/repo"
)

const (
	paymentCapability = "payment_order"
	captureCapability = "payment_capture"

	providerStatusCompleted = "COMPLETED"
)

// PaymentProvider is the payment collaborator.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, value, currency, reference string) (paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (paypal.Order, error)
}

// OrderRequest is the body of the order-creation route. Amount accepts a
// JSON number or a numeric string.
type OrderRequest struct {
	PlanID string      `json:"planId"`
	Amount json.Number `json:"amount"`
}

// OrderResult is returned after creating (or replaying) an order.
type OrderResult struct {
	OrderID     string
	ApprovalURL string
	Replayed    bool
}

// BillingService implements the payment and subscription use-cases.
type BillingService struct {
	DB       *gorm.DB
	Users    *UserService
	Provider PaymentProvider

	Currency       string
	IdempotencyTTL time.Duration

	now func() time.Time
}

// NewBillingService constructs a BillingService.
func NewBillingService(db *gorm.DB, users *UserService, p PaymentProvider, currency string, idemTTL time.Duration) *BillingService {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &BillingService{
		DB:             db,
		Users:          users,
		Provider:       p,
		Currency:       strings.ToUpper(currency),
		IdempotencyTTL: idemTTL,
		now:            time.Now,
	}
}

// CreateOrder creates a provider order for req. When idemKey is set and was
// already used by this user, the stored order is returned instead of
// creating a new one.
//
// Errors: ErrUnauthorized, ErrBadRequest (wrapped), ErrUserNotFound,
// ErrCapabilityFailed (wrapped).
func (s *BillingService) CreateOrder(ctx context.Context, id auth.Identity, req OrderRequest, idemKey string) (OrderResult, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "CreateOrder",
		trace.WithAttributes(
			attribute.String("plan.id", req.PlanID),
			attribute.Bool("idempotent", idemKey != ""),
		),
	)
	defer span.End()

	if id.Subject == "" {
		observability.ObserveCapability(paymentCapability, observability.OutcomeUnauthorized, 0)
		return OrderResult{}, ErrUnauthorized
	}
	value, err := validateOrder(&req)
	if err != nil {
		observability.ObserveCapability(paymentCapability, observability.OutcomeBadRequest, 0)
		return OrderResult{}, err
	}
	uid, err := s.Users.Find(ctx, id.Subject)
	if err != nil {
		return OrderResult{}, err
	}

	if idemKey != "" {
		if res, ok := s.replay(ctx, uid, idemKey); ok {
			return res, nil
		}
	}

	start := time.Now()
	order, err := s.Provider.CreateOrder(ctx, value, s.Currency, uuid.NewString())
	took := time.Since(start)
	if err != nil {
		observability.ObserveCapability(paymentCapability, observability.OutcomeFailed, took)
		span.RecordError(err)
		return OrderResult{}, fmt.Errorf("%w: %s: %v", ErrCapabilityFailed, paymentCapability, err)
	}
	observability.ObserveCapability(paymentCapability, observability.OutcomeOK, took)

	lg := zerolog.Ctx(ctx)
	rec := &domain.PaymentOrder{
		UserID:          uid,
		PlanID:          req.PlanID,
		ProviderOrderID: order.ID,
		Amount:          value,
		Currency:        s.Currency,
		Status:          domain.OrderCreated,
		ApprovalURL:     order.ApprovalURL(),
	}
	if err := repo.CreatePaymentOrder(ctx, s.DB, rec); err != nil {
		observability.PersistenceFailures.WithLabelValues(paymentCapability).Inc()
		lg.Error().Err(err).Str("order_id", order.ID).Msg("payment order not stored")
	} else if idemKey != "" {
		if _, err := repo.CreateIdempotency(ctx, s.DB, uid, domain.IdempotencyScopePaymentOrder, idemKey, order.ID, 201, s.IdempotencyTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			lg.Warn().Err(err).Msg("idempotency record not stored")
		}
	}

	return OrderResult{OrderID: order.ID, ApprovalURL: order.ApprovalURL()}, nil
}

func (s *BillingService) replay(ctx context.Context, uid uint, key string) (OrderResult, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, uid, domain.IdempotencyScopePaymentOrder, key, s.now().UTC())
	if err != nil {
		return OrderResult{}, false
	}
	o, err := repo.GetPaymentOrderByProviderID(ctx, s.DB, uid, rec.ResourceID)
	if err != nil {
		return OrderResult{}, false
	}
	return OrderResult{OrderID: o.ProviderOrderID, ApprovalURL: o.ApprovalURL, Replayed: true}, true
}

// CaptureOrder captures an approved order and activates a subscription for
// its plan. Capturing an already-completed order returns the current
// subscription without calling the provider again.
func (s *BillingService) CaptureOrder(ctx context.Context, id auth.Identity, orderID string) (*domain.Subscription, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "CaptureOrder",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	if id.Subject == "" {
		return nil, ErrUnauthorized
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrBadRequest)
	}
	uid, err := s.Users.Find(ctx, id.Subject)
	if err != nil {
		return nil, err
	}
	order, err := repo.GetPaymentOrderByProviderID(ctx, s.DB, uid, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.Status == domain.OrderCompleted {
		return s.CurrentSubscription(ctx, id)
	}

	start := time.Now()
	captured, err := s.Provider.CaptureOrder(ctx, orderID)
	took := time.Since(start)
	if err == nil && captured.Status != providerStatusCompleted {
		err = fmt.Errorf("order status %q", captured.Status)
	}
	if err != nil {
		observability.ObserveCapability(captureCapability, observability.OutcomeFailed, took)
		span.RecordError(err)
		if uerr := repo.UpdatePaymentOrderStatus(ctx, s.DB, order.ID, domain.OrderFailed); uerr != nil {
			zerolog.Ctx(ctx).Warn().Err(uerr).Msg("could not mark order failed")
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCapabilityFailed, captureCapability, err)
	}
	observability.ObserveCapability(captureCapability, observability.OutcomeOK, took)

	var sub *domain.Subscription
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdatePaymentOrderStatus(ctx, tx, order.ID, domain.OrderCompleted); err != nil {
			return err
		}
		if cur, err := repo.GetCurrentSubscription(ctx, tx, uid); err == nil && cur.Status == domain.SubscriptionActive {
			if _, err := repo.CancelSubscription(ctx, tx, cur.ID, s.now()); err != nil {
				return err
			}
		}
		created, err := repo.CreateSubscription(ctx, tx, uid, order.PlanID, order.ProviderOrderID)
		if err != nil {
			return err
		}
		sub = created
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}
	return sub, nil
}

// CurrentSubscription returns the caller's latest subscription, or nil when
// there is none.
func (s *BillingService) CurrentSubscription(ctx context.Context, id auth.Identity) (*domain.Subscription, error) {
	if id.Subject == "" {
		return nil, ErrUnauthorized
	}
	uid, err := s.Users.Find(ctx, id.Subject)
	if err != nil {
		return nil, err
	}
	sub, err := repo.GetCurrentSubscription(ctx, s.DB, uid)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CancelSubscription moves the caller's current subscription to cancelled
// and stamps its end time. Cancelling an already-cancelled subscription
// succeeds and keeps the original end time.
func (s *BillingService) CancelSubscription(ctx context.Context, id auth.Identity) (*domain.Subscription, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "CancelSubscription")
	defer span.End()

	if id.Subject == "" {
		return nil, ErrUnauthorized
	}
	uid, err := s.Users.Find(ctx, id.Subject)
	if err != nil {
		return nil, err
	}
	sub, err := repo.GetCurrentSubscription(ctx, s.DB, uid)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	changed, err := repo.CancelSubscription(ctx, s.DB, sub.ID, s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	span.SetAttributes(attribute.Bool("changed", changed))
	return repo.GetCurrentSubscription(ctx, s.DB, uid)
}

// validateOrder checks planId and amount and returns the amount formatted
// with two decimals.
func validateOrder(req *OrderRequest) (string, error) {
	req.PlanID = strings.TrimSpace(req.PlanID)
	if req.PlanID == "" {
		return "", fmt.Errorf("%w: planId is required", ErrBadRequest)
	}
	raw := strings.TrimSpace(req.Amount.String())
	if raw == "" {
		return "", fmt.Errorf("%w: amount is required", ErrBadRequest)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%w: amount must be a positive number", ErrBadRequest)
	}
	// Providers take two decimals; anything that rounds to zero is no charge.
	cents := math.Round(v * 100)
	if cents <= 0 {
		return "", fmt.Errorf("%w: amount must be at least 0.01", ErrBadRequest)
	}
	return strconv.FormatFloat(cents/100, 'f', 2, 64), nil
}
