package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/devotee-admin/hierarchy/pkg/composables"
)

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger := composables.UseLogger(ctx)
	if logger == nil {
		return
	}
	logger.WithFields(fields).Log(level, msg)
}

// logRejection records a refused write. Rejections are expected administrative
// outcomes and are logged at warn; anything without a code is an internal error.
func logRejection(ctx context.Context, op string, err error, fields logrus.Fields) {
	if err == nil {
		return
	}
	code := ErrorCode(err)
	recordRejection(code)

	level := logrus.WarnLevel
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.Status >= 500 {
		level = logrus.ErrorLevel
	}

	out := logrus.Fields{
		"operation":  op,
		"error_code": code,
		"error":      err.Error(),
	}
	if requestID, ok := composables.UseRequestID(ctx); ok {
		out["request_id"] = requestID
	}
	for k, v := range fields {
		out[k] = v
	}
	logWithFields(ctx, level, "hierarchy write rejected", out)
}
