package constants

import (
	"github.com/go-playground/validator/v10"
)

type ContextKey string

const (
	AppKey       ContextKey = "app"
	LoggerKey    ContextKey = "logger"
	TxKey        ContextKey = "tx"
	PoolKey      ContextKey = "pool"
	RequestStart ContextKey = "requestStart"
	RequestIDKey ContextKey = "requestID"
	InitiatorKey ContextKey = "initiatorID"
)

var Validate = validator.New(validator.WithRequiredStructEnabled())
