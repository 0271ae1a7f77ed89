package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/leadimport/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the env files found in the working directory. When none are
// present it retries from the nearest parent holding a go.mod, so tests run
// from package directories pick up the repository .env files.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root, ok := moduleRoot(); ok {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		path := name
		if dir != "" {
			path = filepath.Join(dir, name)
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			out = append(out, path)
		}
	}
	return out
}

func moduleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"leadimport"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.Password, d.SSLMode,
	)
}

type GoogleOptions struct {
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

type OAuthOptions struct {
	StateTTL       time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	RefreshSkew    time.Duration `env:"OAUTH_REFRESH_SKEW" envDefault:"5m"`
	StateStore     string        `env:"OAUTH_STATE_STORE" envDefault:"memory"` // memory or redis
	StateKeyPrefix string        `env:"OAUTH_STATE_KEY_PREFIX" envDefault:"leadimport:oauth-state:"`
}

func (o *OAuthOptions) Validate() error {
	if o.StateTTL <= 0 {
		return fmt.Errorf("OAUTH_STATE_TTL must be positive, got %s", o.StateTTL)
	}
	if o.RefreshSkew < 0 {
		return fmt.Errorf("OAUTH_REFRESH_SKEW must be non-negative, got %s", o.RefreshSkew)
	}
	switch o.StateStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("OAUTH_STATE_STORE must be 'memory' or 'redis', got '%s'", o.StateStore)
	}
	return nil
}

type ImportOptions struct {
	ProviderTimeout  time.Duration `env:"IMPORT_PROVIDER_TIMEOUT" envDefault:"60s"`
	FinalizeTimeout  time.Duration `env:"IMPORT_FINALIZE_TIMEOUT" envDefault:"15s"`
	SampleRows       int           `env:"IMPORT_SAMPLE_ROWS" envDefault:"5"`
	StoredErrors     int           `env:"IMPORT_STORED_ERRORS" envDefault:"100"`
	ReturnedErrors   int           `env:"IMPORT_RETURNED_ERRORS" envDefault:"10"`
	BatchListDefault int           `env:"IMPORT_BATCH_LIST_DEFAULT" envDefault:"20"`
	BatchListMax     int           `env:"IMPORT_BATCH_LIST_MAX" envDefault:"100"`
	DefaultSource    string        `env:"IMPORT_DEFAULT_SOURCE" envDefault:"GoogleSheets"`
}

func (o *ImportOptions) Validate() error {
	if o.ProviderTimeout <= 0 {
		return fmt.Errorf("IMPORT_PROVIDER_TIMEOUT must be positive, got %s", o.ProviderTimeout)
	}
	if o.SampleRows < 0 || o.StoredErrors < 0 || o.ReturnedErrors < 0 {
		return fmt.Errorf("import limits must be non-negative")
	}
	if o.BatchListMax < 1 || o.BatchListDefault < 1 || o.BatchListDefault > o.BatchListMax {
		return fmt.Errorf("invalid batch list limits: default=%d max=%d", o.BatchListDefault, o.BatchListMax)
	}
	return nil
}

type IdentityOptions struct {
	UserHeader   string `env:"IDENTITY_USER_HEADER" envDefault:"X-User-ID"`
	TenantHeader string `env:"IDENTITY_TENANT_HEADER" envDefault:"X-Tenant-ID"`
	RoleHeader   string `env:"IDENTITY_ROLE_HEADER" envDefault:"X-User-Role"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"leadimport"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.GlobalRPS > 1000000 {
		return fmt.Errorf("rate limit GlobalRPS too high, maximum is 1,000,000, got %d", r.GlobalRPS)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type AuthzOptions struct {
	// Empty paths select the embedded lead import policy.
	ModelPath  string `env:"AUTHZ_MODEL_PATH"`
	PolicyPath string `env:"AUTHZ_POLICY_PATH"`
	Mode       string `env:"AUTHZ_MODE" envDefault:"enforce"`
}

type Configuration struct {
	Database      DatabaseOptions
	Google        GoogleOptions
	OAuth         OAuthOptions
	Import        ImportOptions
	Identity      IdentityOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	Authz         AuthzOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	// Browser facing application the OAuth callback redirects back to.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath     string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	// Looked up on every request; a random uuidv4 is generated when absent.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// Looked up on every request; request.RemoteAddr is used when absent.
	RealIPHeader string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`

	RLSEnforce string `env:"RLS_ENFORCE" envDefault:"disabled"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

// IntegrationsURL is the frontend page the OAuth callback lands on.
func (c *Configuration) IntegrationsURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/settings/integrations"
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

func (c *Configuration) validate() error {
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.OAuth.Validate(); err != nil {
		return fmt.Errorf("oauth configuration error: %w", err)
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	return c.validateRLS()
}

func (c *Configuration) validateRLS() error {
	mode := strings.ToLower(strings.TrimSpace(c.RLSEnforce))
	if mode == "" {
		mode = "disabled"
	}
	switch mode {
	case "disabled", "enforce":
	default:
		return fmt.Errorf("invalid RLS_ENFORCE=%q (expected disabled|enforce)", c.RLSEnforce)
	}

	if mode == "enforce" && strings.EqualFold(strings.TrimSpace(c.Database.User), "postgres") {
		return fmt.Errorf("RLS_ENFORCE=enforce requires a non-superuser DB_USER (postgres will bypass RLS)")
	}

	c.RLSEnforce = mode
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
