package constants

import (
	"github.com/go-playground/validator/v10"
)

type ContextKey string

const (
	TxKey        ContextKey = "tx"
	PoolKey      ContextKey = "pool"
	LoggerKey    ContextKey = "logger"
	ParamsKey    ContextKey = "params"
	AppKey       ContextKey = "app"
	TenantIDKey  ContextKey = "tenant_id"
	UserKey      ContextKey = "user"
	RequestStart ContextKey = "request_start"
)

var Validate = validator.New(validator.WithRequiredStructEnabled())
