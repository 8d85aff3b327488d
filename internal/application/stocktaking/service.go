package stocktaking

import (
	"context"

	"github.com/wms/stocktaking/internal/domain/shared"
	"go.uber.org/zap"
)

// CodeGenerator issues human-readable sheet codes
type CodeGenerator interface {
	NextSheetCode() string
}

// eventPublisher publishes and clears the pending events of aggregates
// after they were persisted.
type eventPublisher struct {
	bus    shared.EventBus
	logger *zap.Logger
}

func (p eventPublisher) publish(ctx context.Context, aggregates ...shared.AggregateRoot) {
	for _, agg := range aggregates {
		events := agg.GetDomainEvents()
		agg.ClearDomainEvents()
		if p.bus == nil || len(events) == 0 {
			continue
		}
		if err := p.bus.Publish(ctx, events...); err != nil {
			p.logger.Warn("failed to publish domain events",
				zap.String("aggregate_id", agg.GetID().String()),
				zap.Int("events", len(events)),
				zap.Error(err),
			)
		}
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
