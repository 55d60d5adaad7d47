package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/observability"
	"github.com/tbourn/genai-studio/internal/repo"
)

// RetentionJob periodically deletes generation records older than MaxAge
// and expired idempotency keys.
type RetentionJob struct {
	DB     *gorm.DB
	MaxAge time.Duration

	now func() time.Time
}

// NewRetentionJob returns a job keeping generations for days days; days <= 0
// means 30, matching the RETENTION_DAYS default.
func NewRetentionJob(db *gorm.DB, days int) *RetentionJob {
	if days <= 0 {
		days = 30
	}
	return &RetentionJob{
		DB:     db,
		MaxAge: time.Duration(days) * 24 * time.Hour,
		now:    time.Now,
	}
}

// Start runs one sweep immediately and then one per interval until ctx is
// cancelled.
func (j *RetentionJob) Start(ctx context.Context, interval time.Duration) {
	lg := zerolog.Ctx(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lg.Info().Dur("interval", interval).Dur("max_age", j.MaxAge).Msg("retention job started")

	if err := j.RunOnce(ctx); err != nil {
		lg.Error().Err(err).Msg("retention sweep failed")
	}
	for {
		select {
		case <-ctx.Done():
			lg.Info().Msg("retention job stopped")
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				lg.Error().Err(err).Msg("retention sweep failed")
			}
		}
	}
}

// RunOnce performs a single sweep.
func (j *RetentionJob) RunOnce(ctx context.Context) error {
	ctx, span := otel.Tracer("services/RetentionJob").Start(ctx, "RunOnce")
	defer span.End()

	now := j.now().UTC()
	gens, err := repo.DeleteGenerationsBefore(ctx, j.DB, now.Add(-j.MaxAge))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete generations: %w", err)
	}
	keys, err := repo.DeleteExpiredIdempotency(ctx, j.DB, now)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete idempotency: %w", err)
	}

	observability.RetentionDeleted.WithLabelValues("generations").Add(float64(gens))
	observability.RetentionDeleted.WithLabelValues("idempotency").Add(float64(keys))
	span.SetAttributes(
		attribute.Int64("deleted.generations", gens),
		attribute.Int64("deleted.idempotency", keys),
	)
	if gens > 0 || keys > 0 {
		zerolog.Ctx(ctx).Info().
			Int64("generations", gens).
			Int64("idempotency", keys).
			Msg("retention sweep")
	}
	return nil
}
