package chatlog

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MikeSquared-Agency/labguard/internal/store"
)

// IdentityStore looks up internal primary keys by external handle. It must
// return store.ErrNotFound when no record matches.
type IdentityStore interface {
	UserIDByExternalID(ctx context.Context, externalID string) (int64, error)
	ManualIDByExternalID(ctx context.Context, externalID string) (int64, error)
}

// Resolver maps external user and manual handles to durable-store keys.
// A handle that does not resolve yields nil; it is never an error.
type Resolver struct {
	ids     IdentityStore
	logger  *slog.Logger
	metrics *metrics
}

func NewResolver(ids IdentityStore, logger *slog.Logger) *Resolver {
	return &Resolver{ids: ids, logger: logger, metrics: newMetrics()}
}

func (r *Resolver) ResolveUser(ctx context.Context, externalID string) *int64 {
	return r.resolve(ctx, "user", externalID, r.ids.UserIDByExternalID)
}

func (r *Resolver) ResolveManual(ctx context.Context, externalID string) *int64 {
	return r.resolve(ctx, "manual", externalID, r.ids.ManualIDByExternalID)
}

func (r *Resolver) resolve(ctx context.Context, kind, externalID string, lookup func(context.Context, string) (int64, error)) *int64 {
	if externalID == "" {
		return nil
	}

	id, err := lookup(ctx, externalID)
	switch {
	case err == nil:
		return &id
	case errors.Is(err, store.ErrNotFound):
		r.logger.Warn("identifier not found, storing chat log with null key",
			"kind", kind,
			"external_id", externalID,
		)
	default:
		r.logger.Error("identifier lookup failed, storing chat log with null key",
			"kind", kind,
			"external_id", externalID,
			"error", err,
		)
	}
	r.metrics.resolutionMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	return nil
}
