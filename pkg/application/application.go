package application

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/devotee-admin/hierarchy/pkg/eventbus"
)

type Controller interface {
	Register(r *mux.Router)
	Key() string
}

type Module interface {
	Register(app Application) error
	Name() string
}

// Worker is a long running background loop owned by a module, such as an
// outbox relay. Run returns when ctx is done.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBus
	Logger() *logrus.Logger
	Controllers() []Controller
	Middleware() []mux.MiddlewareFunc
	Workers() []Worker
	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterWorkers(workers ...Worker)
	RegisterServices(services ...any)
	Service(service any) any
	// StartWorkers runs every registered worker in its own goroutine and
	// returns a func that waits for all of them to stop.
	StartWorkers(ctx context.Context) (wait func())
}

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	EventBus eventbus.EventBus
	Logger   *logrus.Logger
}

func New(opts *ApplicationOptions) Application {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	bus := opts.EventBus
	if bus == nil {
		bus = eventbus.New(logger)
	}
	return &application{
		pool:        opts.Pool,
		bus:         bus,
		logger:      logger,
		controllers: make(map[string]Controller),
		services:    make(map[reflect.Type]any),
	}
}

type application struct {
	pool        *pgxpool.Pool
	bus         eventbus.EventBus
	logger      *logrus.Logger
	services    map[reflect.Type]any
	controllers map[string]Controller
	middleware  []mux.MiddlewareFunc
	workers     []Worker
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) EventPublisher() eventbus.EventBus {
	return app.bus
}

func (app *application) Logger() *logrus.Logger {
	return app.logger
}

func (app *application) Middleware() []mux.MiddlewareFunc {
	return app.middleware
}

// Controllers are returned in key order so route registration is stable.
func (app *application) Controllers() []Controller {
	keys := make([]string, 0, len(app.controllers))
	for k := range app.controllers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Controller, 0, len(keys))
	for _, k := range keys {
		out = append(out, app.controllers[k])
	}
	return out
}

func (app *application) Workers() []Worker {
	return app.workers
}

func (app *application) RegisterControllers(controllers ...Controller) {
	for _, c := range controllers {
		app.controllers[c.Key()] = c
	}
}

func (app *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	app.middleware = append(app.middleware, middleware...)
}

func (app *application) RegisterWorkers(workers ...Worker) {
	app.workers = append(app.workers, workers...)
}

// RegisterServices registers services by their pointer's element type.
func (app *application) RegisterServices(services ...any) {
	for _, service := range services {
		app.services[reflect.TypeOf(service).Elem()] = service
	}
}

// Service looks a service up by type; pass a zero value, e.g. services.HierarchyService{}.
func (app *application) Service(service any) any {
	serviceType := reflect.TypeOf(service)
	svc, ok := app.services[serviceType]
	if !ok {
		panic(fmt.Sprintf("service %s not found", serviceType.Name()))
	}
	return svc
}

func (app *application) StartWorkers(ctx context.Context) func() {
	var wg sync.WaitGroup
	for _, w := range app.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			log := app.logger.WithField("worker", w.Name)
			log.Info("worker started")
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("worker stopped")
				return
			}
			log.Info("worker stopped")
		}(w)
	}
	return wg.Wait
}
