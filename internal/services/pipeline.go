// Package services – Pipeline
//
// Every generation route runs the same five steps: auth gate, input
// validation, one external capability call, best-effort persistence and
// response shaping. Pipeline implements that sequence once; a Capability
// descriptor supplies the per-route pieces.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/genai-studio/internal/auth"
	"github.com/tbourn/genai-studio/internal/domain"
	"github.com/tbourn/genai-studio/internal/observability"
)

// Capability describes one route. Req is the decoded request, Out the raw
// collaborator result and Res the response body.
type Capability[Req, Out, Res any] struct {
	// Name labels metrics, spans and logs.
	Name string
	// Validate checks and may normalize req in place. Errors should wrap
	// ErrBadRequest.
	Validate func(req *Req) error
	// Invoke calls the external collaborator exactly once.
	Invoke func(ctx context.Context, req Req) (Out, error)
	// Record maps a successful call to the row to store. A nil record skips
	// persistence.
	Record func(req Req, out Out) *domain.Generation
	// Shape builds the response body.
	Shape func(req Req, out Out) Res
}

// RecordStore persists generation records on behalf of an identity.
type RecordStore interface {
	SaveGeneration(ctx context.Context, id auth.Identity, g *domain.Generation) error
}

// Pipeline runs a Capability.
type Pipeline[Req, Out, Res any] struct {
	Cap   Capability[Req, Out, Res]
	Store RecordStore
}

// NewPipeline returns a Pipeline for c that stores records in store.
func NewPipeline[Req, Out, Res any](c Capability[Req, Out, Res], store RecordStore) *Pipeline[Req, Out, Res] {
	return &Pipeline[Req, Out, Res]{Cap: c, Store: store}
}

// Run executes the pipeline for the identity resolved at the HTTP boundary.
//
// Errors:
//   - ErrUnauthorized when id has no subject; nothing else runs.
//   - ErrBadRequest (wrapped) when validation fails; the collaborator is not called.
//   - ErrCapabilityFailed (wrapped) when the collaborator fails; nothing is stored.
//
// Persistence failures never change the result; they are logged and counted
// in persistence_failures_total.
func (p *Pipeline[Req, Out, Res]) Run(ctx context.Context, id auth.Identity, req Req) (Res, error) {
	var zero Res
	name := p.Cap.Name

	tr := otel.Tracer("services/Pipeline")
	ctx, span := tr.Start(ctx, name,
		trace.WithAttributes(attribute.String("capability", name)),
	)
	defer span.End()

	// 1. auth gate
	if id.Subject == "" {
		observability.ObserveCapability(name, observability.OutcomeUnauthorized, 0)
		span.SetStatus(codes.Error, "unauthorized")
		return zero, ErrUnauthorized
	}

	// 2. validation
	if p.Cap.Validate != nil {
		if err := p.Cap.Validate(&req); err != nil {
			observability.ObserveCapability(name, observability.OutcomeBadRequest, 0)
			span.SetStatus(codes.Error, "bad request")
			if !errors.Is(err, ErrBadRequest) {
				err = fmt.Errorf("%w: %v", ErrBadRequest, err)
			}
			return zero, err
		}
	}

	// 3. external capability
	start := time.Now()
	out, err := p.Cap.Invoke(ctx, req)
	took := time.Since(start)
	if err != nil {
		observability.ObserveCapability(name, observability.OutcomeFailed, took)
		span.RecordError(err)
		span.SetStatus(codes.Error, "capability failed")
		return zero, fmt.Errorf("%w: %s: %v", ErrCapabilityFailed, name, err)
	}
	observability.ObserveCapability(name, observability.OutcomeOK, took)

	// 4. best-effort persistence
	if p.Cap.Record != nil && p.Store != nil {
		if rec := p.Cap.Record(req, out); rec != nil {
			if err := p.Store.SaveGeneration(ctx, id, rec); err != nil {
				observability.PersistenceFailures.WithLabelValues(name).Inc()
				span.AddEvent("persistence failed", trace.WithAttributes(attribute.String("error", err.Error())))
				zerolog.Ctx(ctx).Error().Err(err).
					Str("capability", name).
					Str("subject", id.Subject).
					Msg("generation record not stored")
			}
		}
	}

	// 5. response
	return p.Cap.Shape(req, out), nil
}
