package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/devotee-admin/hierarchy/pkg/composables"
	"github.com/devotee-admin/hierarchy/pkg/httpapi"
)

const limiterPrefix = "hierarchy:limiter"

type RateLimitConfig struct {
	RequestsPerPeriod int
	// Period defaults to one second.
	Period time.Duration
	Store  limiter.Store
	// RealIPHeader is trusted for the client address when set.
	RealIPHeader string
}

func NewMemoryStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          limiterPrefix,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	})
}

// NewRedisStore shares counters between replicas. url is a redis:// URL.
func NewRedisStore(url string) (limiter.Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix: limiterPrefix,
	})
}

// RateLimit caps requests per caller. Callers are keyed by initiator when one
// is bound to the request, otherwise by client address, so WithLogger must run
// first.
func RateLimit(cfg RateLimitConfig) mux.MiddlewareFunc {
	period := cfg.Period
	if period <= 0 {
		period = time.Second
	}
	instance := limiter.New(cfg.Store, limiter.Rate{
		Period: period,
		Limit:  int64(cfg.RequestsPerPeriod),
	})

	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(func(r *http.Request) string {
			if id := composables.UseInitiator(r.Context()); id != uuid.Nil {
				return "initiator:" + id.String()
			}
			if cfg.RealIPHeader != "" {
				if ip := r.Header.Get(cfg.RealIPHeader); ip != "" {
					return "ip:" + ip
				}
			}
			return "ip:" + limiter.GetIP(r).String()
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			_ = httpapi.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", map[string]string{
				"limit": strconv.Itoa(cfg.RequestsPerPeriod),
			})
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			composables.UseLogger(r.Context()).WithError(err).Error("rate limiter store failed")
			_ = httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "internal error", nil)
		}),
	)
	return mw.Handler
}
