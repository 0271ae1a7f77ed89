package leadimport

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/connection"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
	"github.com/jacksonlee411/leadimport/modules/leadimport/infrastructure/google"
	"github.com/jacksonlee411/leadimport/modules/leadimport/infrastructure/persistence"
	"github.com/jacksonlee411/leadimport/modules/leadimport/infrastructure/statestore"
	"github.com/jacksonlee411/leadimport/modules/leadimport/presentation/controllers"
	"github.com/jacksonlee411/leadimport/modules/leadimport/services"
	"github.com/jacksonlee411/leadimport/pkg/application"
	"github.com/jacksonlee411/leadimport/pkg/configuration"
	"github.com/jacksonlee411/leadimport/pkg/middleware"
)

type ModuleOptions struct {
	Google          configuration.GoogleOptions
	OAuth           configuration.OAuthOptions
	Import          configuration.ImportOptions
	IntegrationsURL string
	// Redis backs the OAuth state store when OAuth.StateStore is "redis".
	Redis      *redis.Client
	Authorizer middleware.Authorizer
	Logger     *logrus.Logger
	// Provider replaces the Google adapter, mainly for tests.
	Provider spreadsheet.Provider
}

// OptionsFromConfig fills the module options from the loaded configuration.
func OptionsFromConfig(cfg *configuration.Configuration) *ModuleOptions {
	return &ModuleOptions{
		Google:          cfg.Google,
		OAuth:           cfg.OAuth,
		Import:          cfg.Import,
		IntegrationsURL: cfg.IntegrationsURL(),
		Logger:          cfg.Logger(),
	}
}

func NewModule(opts *ModuleOptions) application.Module {
	return &Module{opts: opts}
}

type Module struct {
	opts *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	if m.opts.Authorizer == nil {
		return fmt.Errorf("leadimport: authorizer is required")
	}
	logger := m.opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	states, err := m.stateStore()
	if err != nil {
		return err
	}
	provider := m.opts.Provider
	if provider == nil {
		provider = google.NewProvider(google.Options{Google: m.opts.Google})
	}

	app.Migrations().RegisterSchema(persistence.MigrationsFS, persistence.MigrationsDir)

	connectionService := services.NewConnectionService(
		persistence.NewConnectionRepository(),
		states,
		provider,
		app.EventPublisher(),
		services.ConnectionOptions{
			StateTTL:        m.opts.OAuth.StateTTL,
			RefreshSkew:     m.opts.OAuth.RefreshSkew,
			ProviderTimeout: m.opts.Import.ProviderTimeout,
		},
	)
	importService := services.NewImportService(
		connectionService,
		provider,
		persistence.NewBatchRepository(),
		persistence.NewContactRepository(),
		app.EventPublisher(),
		services.ImportOptions{ImportOptions: m.opts.Import},
	)
	services.SubscribeObservers(app.EventPublisher(), logger)

	app.RegisterServices(connectionService, importService)
	app.RegisterControllers(
		controllers.NewLeadImportsController(app, controllers.ControllerOptions{
			IntegrationsURL: m.opts.IntegrationsURL,
			Authorizer:      m.opts.Authorizer,
		}),
	)
	return nil
}

func (m *Module) stateStore() (connection.StateStore, error) {
	switch m.opts.OAuth.StateStore {
	case "", "memory":
		return statestore.NewMemoryStore(), nil
	case "redis":
		if m.opts.Redis == nil {
			return nil, fmt.Errorf("leadimport: OAUTH_STATE_STORE=redis requires a redis client")
		}
		return statestore.NewRedisStore(m.opts.Redis, m.opts.OAuth.StateKeyPrefix), nil
	default:
		return nil, fmt.Errorf("leadimport: unknown state store %q", m.opts.OAuth.StateStore)
	}
}

func (m *Module) Name() string {
	return "leadimport"
}
