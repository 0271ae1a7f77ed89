package modules

import (
	"github.com/jacksonlee411/leadimport/modules/leadimport"
	"github.com/jacksonlee411/leadimport/pkg/application"
)

// BuiltInModules returns the modules the server registers by default.
func BuiltInModules(opts *leadimport.ModuleOptions) []application.Module {
	return []application.Module{
		leadimport.NewModule(opts),
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
