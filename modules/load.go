package modules

import (
	"github.com/devotee-admin/hierarchy/modules/hierarchy"
	"github.com/devotee-admin/hierarchy/modules/person"
	"github.com/devotee-admin/hierarchy/pkg/application"
	"github.com/devotee-admin/hierarchy/pkg/configuration"
)

// BuiltInModules lists the modules the server loads, in registration order.
func BuiltInModules(conf *configuration.Configuration) []application.Module {
	return []application.Module{
		person.NewModule(),
		hierarchy.NewModule(&hierarchy.ModuleOptions{
			Hierarchy: conf.Hierarchy,
			Outbox:    conf.Outbox,
		}),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
