package hierarchy

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/handlers"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/infrastructure/persistence"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/presentation/controllers"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
	personpersistence "github.com/devotee-admin/hierarchy/modules/person/infrastructure/persistence"
	"github.com/devotee-admin/hierarchy/pkg/application"
	"github.com/devotee-admin/hierarchy/pkg/configuration"
	"github.com/devotee-admin/hierarchy/pkg/outbox"
	eventbusdispatcher "github.com/devotee-admin/hierarchy/pkg/outbox/dispatchers/eventbus"
)

type ModuleOptions struct {
	Hierarchy configuration.HierarchyOptions
	Outbox    configuration.OutboxOptions
}

func NewModule(opts *ModuleOptions) application.Module {
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	table, err := outbox.ParseIdentifier(m.options.Hierarchy.OutboxTable)
	if err != nil {
		return fmt.Errorf("hierarchy: outbox table: %w", err)
	}

	svc := services.NewHierarchyService(
		persistence.NewHierarchyRepository(),
		persistence.NewPersonDirectory(personpersistence.NewPersonRepository()),
		services.NewPoolTransactor(),
		persistence.NewOutboxEventSink(outbox.NewPublisher(), table),
		m.options.Hierarchy.DiscoveryMaxNodes,
	)
	app.RegisterServices(svc)
	app.RegisterControllers(controllers.NewHierarchyAPIController(app))

	log := app.Logger().WithField("component", "hierarchy")
	var store handlers.AuditStore
	if m.options.Hierarchy.AuditLogEnabled {
		store = persistence.NewAuditLogRepository()
	}
	handlers.NewAuditHandler(log.WithField("handler", "audit"), store, app.DB()).Register(app.EventPublisher())

	if app.DB() == nil {
		log.Warn("hierarchy: no database pool; outbox workers not started")
		return nil
	}
	return m.registerOutboxWorkers(app, table, log)
}

func (m *Module) registerOutboxWorkers(app application.Application, table pgx.Identifier, log *logrus.Entry) error {
	conf := m.options.Outbox
	outboxLog := log.WithField("outbox_table", outbox.TableLabel(table))

	if conf.RelayEnabled {
		relay, err := outbox.NewRelay(app.DB(), table, eventbusdispatcher.New(app.EventPublisher()), outbox.RelayOptions{
			PollInterval:    conf.RelayPollInterval,
			BatchSize:       conf.RelayBatchSize,
			LockTTL:         conf.RelayLockTTL,
			MaxAttempts:     conf.RelayMaxAttempts,
			SingleActive:    conf.RelaySingleActive,
			LastErrorMaxLen: conf.LastErrorMaxBytes,
			DispatchTimeout: conf.RelayDispatchTimeout,
			Logger:          outboxLog.WithField("worker", "relay"),
		})
		if err != nil {
			return fmt.Errorf("hierarchy: outbox relay: %w", err)
		}
		app.RegisterWorkers(application.Worker{Name: "hierarchy.outbox.relay", Run: relay.Run})
	}

	if conf.CleanerEnabled {
		cleaner, err := outbox.NewCleaner(app.DB(), table, outbox.CleanerOptions{
			Interval:      conf.CleanerInterval,
			Retention:     conf.CleanerRetention,
			DeadRetention: conf.CleanerDeadRetention,
			MaxAttempts:   conf.RelayMaxAttempts,
			Logger:        outboxLog.WithField("worker", "cleaner"),
		})
		if err != nil {
			return fmt.Errorf("hierarchy: outbox cleaner: %w", err)
		}
		app.RegisterWorkers(application.Worker{Name: "hierarchy.outbox.cleaner", Run: cleaner.Run})
	}
	return nil
}

func (m *Module) Name() string {
	return "hierarchy"
}
