package composables

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/devotee-admin/hierarchy/pkg/constants"
)

// UseLogger returns the request scoped logger, or nil when none is bound.
func UseLogger(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	switch typed := ctx.Value(constants.LoggerKey).(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return nil
	}
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, requestID)
}

func UseRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(constants.RequestIDKey).(string)
	return v, ok && v != ""
}

// WithInitiator binds the acting administrator. Authorization happens upstream;
// the id is only carried into audit records.
func WithInitiator(ctx context.Context, initiatorID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.InitiatorKey, initiatorID)
}

func UseInitiator(ctx context.Context) uuid.UUID {
	v, _ := ctx.Value(constants.InitiatorKey).(uuid.UUID)
	return v
}
