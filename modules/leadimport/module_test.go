package leadimport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/leadimport/modules/leadimport/infrastructure/google"
	"github.com/jacksonlee411/leadimport/modules/leadimport/services"
	"github.com/jacksonlee411/leadimport/pkg/application"
	"github.com/jacksonlee411/leadimport/pkg/authz"
	"github.com/jacksonlee411/leadimport/pkg/configuration"
	"github.com/jacksonlee411/leadimport/pkg/eventbus"
)

func newApp() application.Application {
	return application.New(&application.ApplicationOptions{
		EventBus: eventbus.NewEventPublisher(logrus.New()),
		Logger:   logrus.New(),
	})
}

func newAuthorizer(t *testing.T) *authz.Service {
	t.Helper()
	svc, err := authz.NewService(authz.Config{Mode: authz.ModeEnforce})
	require.NoError(t, err)
	return svc
}

func TestModule_RegistersServicesAndRoutes(t *testing.T) {
	app := newApp()
	m := NewModule(&ModuleOptions{
		Google:          configuration.GoogleOptions{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://api.test/callback"},
		IntegrationsURL: "http://app.test/settings/integrations",
		Authorizer:      newAuthorizer(t),
		Provider:        google.NewProvider(google.Options{}),
	})
	require.Equal(t, "leadimport", m.Name())
	require.NoError(t, m.Register(app))

	require.NotNil(t, app.Service(services.ConnectionService{}))
	require.NotNil(t, app.Service(services.ImportService{}))
	require.Len(t, app.Controllers(), 1)

	r := mux.NewRouter()
	for _, c := range app.Controllers() {
		c.Register(r)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lead-imports/google/callback?error=access_denied", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "http://app.test/settings/integrations?error=access_denied", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lead-imports/batches/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestModule_StateStoreSelection(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cases := []struct {
		name    string
		store   string
		redis   *redis.Client
		wantErr bool
	}{
		{"default memory", "", nil, false},
		{"redis", "redis", client, false},
		{"redis without client", "redis", nil, true},
		{"unknown", "etcd", nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewModule(&ModuleOptions{
				OAuth:      configuration.OAuthOptions{StateStore: tc.store, StateKeyPrefix: "test:"},
				Redis:      tc.redis,
				Authorizer: newAuthorizer(t),
			})
			err := m.Register(newApp())
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestModule_RequiresAuthorizer(t *testing.T) {
	require.Error(t, NewModule(&ModuleOptions{}).Register(newApp()))
}
