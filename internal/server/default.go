package server

import (
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/devotee-admin/hierarchy/pkg/application"
	"github.com/devotee-admin/hierarchy/pkg/configuration"
	"github.com/devotee-admin/hierarchy/pkg/httpapi"
	"github.com/devotee-admin/hierarchy/pkg/middleware"
	"github.com/devotee-admin/hierarchy/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	middlewares := []mux.MiddlewareFunc{
		middleware.Cors(middleware.CORSConfig{
			AllowedOrigins: conf.CORS.AllowedOrigins,
			MaxAge:         conf.CORS.MaxAge,
			Headers:        []string{conf.RequestIDHeader, conf.InitiatorHeader},
		}),
		middleware.WithLogger(options.Logger, middleware.DefaultLoggerOptions(conf)),
		middleware.WithPool(options.Pool),
	}

	if conf.RateLimit.Enabled {
		var store limiter.Store
		var err error

		switch conf.RateLimit.Storage {
		case "redis":
			store, err = middleware.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
				store = middleware.NewMemoryStore()
			}
		default:
			store = middleware.NewMemoryStore()
		}

		middlewares = append(middlewares, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerPeriod: conf.RateLimit.GlobalRPS,
			Store:             store,
			RealIPHeader:      conf.RealIPHeader,
		}))
	}

	app.RegisterMiddleware(middlewares...)

	return server.NewHTTPServer(app, httpapi.NotFound(), httpapi.MethodNotAllowed()), nil
}
