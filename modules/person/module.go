package person

import (
	"github.com/devotee-admin/hierarchy/modules/person/infrastructure/persistence"
	"github.com/devotee-admin/hierarchy/modules/person/services"
	"github.com/devotee-admin/hierarchy/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.RegisterServices(
		services.NewPersonService(persistence.NewPersonRepository()),
	)
	return nil
}

func (m *Module) Name() string {
	return "person"
}
