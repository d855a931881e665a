package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Ameur-sidahmed/Stocks-backend/applog"
	"github.com/Ameur-sidahmed/Stocks-backend/model"
	"github.com/Ameur-sidahmed/Stocks-backend/store"
)

// fail turns err into a *model.Error. Typed errors pass through unchanged;
// anything else is classified as transient or internal and logged.
func (s *Service) fail(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)

	var merr *model.Error
	if errors.As(err, &merr) {
		return merr
	}

	if errors.Is(err, store.ErrInvalidValue) {
		applog.Warn(ctx, s.logger, op+" rejected by data store", zap.Error(err))
		return model.Validation("value out of range", nil)
	}

	span.SetStatus(codes.Error, op)
	if store.IsTransient(err) {
		applog.Warn(ctx, s.logger, op+" failed, data store unavailable", zap.Error(err))
		return model.Transient(err)
	}
	applog.Error(ctx, s.logger, op+" failed", zap.Error(err))
	return model.Internal(err)
}
