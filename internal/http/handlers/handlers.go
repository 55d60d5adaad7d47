// Package handlers – wiring
//
// Handlers are transport-thin: they read the identity attached by the auth
// middleware, bind JSON, call one service method and translate the result
// (or error) into an HTTP response.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/genai-studio/internal/auth"
	"github.com/tbourn/genai-studio/internal/domain"
	"github.com/tbourn/genai-studio/internal/imagegen"
	"github.com/tbourn/genai-studio/internal/services"
)

// GenerationService runs the generation pipelines and lists stored videos.
type GenerationService interface {
	Code(ctx context.Context, id auth.Identity, req services.TextRequest) (services.TextReply, error)
	Conversation(ctx context.Context, id auth.Identity, req services.TextRequest) (services.TextReply, error)
	Images(ctx context.Context, id auth.Identity, req services.ImageRequest) ([]imagegen.Image, error)
	Video(ctx context.Context, id auth.Identity, req services.VideoRequest) (imagegen.Video, error)
	ListVideos(ctx context.Context, id auth.Identity, limit int) ([]domain.Generation, error)
	VideosStats(ctx context.Context, id auth.Identity) (int64, *time.Time, error)
}

// ContactService handles the contact form.
type ContactService interface {
	Submit(ctx context.Context, id auth.Identity, req services.ContactRequest) (services.ContactResult, error)
}

// BillingService handles payment orders and subscriptions.
type BillingService interface {
	CreateOrder(ctx context.Context, id auth.Identity, req services.OrderRequest, idemKey string) (services.OrderResult, error)
	CaptureOrder(ctx context.Context, id auth.Identity, orderID string) (*domain.Subscription, error)
	CurrentSubscription(ctx context.Context, id auth.Identity) (*domain.Subscription, error)
	CancelSubscription(ctx context.Context, id auth.Identity) (*domain.Subscription, error)
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	gen     GenerationService
	contact ContactService
	billing BillingService
}

// New constructs Handlers bound to the given services.
func New(gen GenerationService, contact ContactService, billing BillingService) *Handlers {
	return &Handlers{gen: gen, contact: contact, billing: billing}
}
