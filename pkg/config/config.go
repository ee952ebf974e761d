package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Pricing      PricingConfig
	Orders       OrdersConfig
	Sessions     SessionsConfig
	RateLimit    RateLimitConfig
	Dedupe       DedupeConfig
	Eventing     EventingConfig
	Documents    DocumentsConfig
	Mail         MailConfig
	Branding     BrandingConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validateBackends(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"CONTRACTOR_APP_ENV" required:"true"`
	Port            string        `envconfig:"CONTRACTOR_APP_PORT" required:"true"`
	LogLevel        string        `envconfig:"CONTRACTOR_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"CONTRACTOR_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"CONTRACTOR_SHUTDOWN_TIMEOUT" default:"30s"`
	// CORSOrigins lists browser origins allowed to call the API, mainly the
	// customer-facing proposal page that posts public accepts.
	CORSOrigins []string `envconfig:"CONTRACTOR_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"CONTRACTOR_DB_DSN"`

	LegacyHost     string `envconfig:"CONTRACTOR_DB_HOST"`
	LegacyPort     int    `envconfig:"CONTRACTOR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CONTRACTOR_DB_USER"`
	LegacyPassword string `envconfig:"CONTRACTOR_DB_PASSWORD"`
	LegacyName     string `envconfig:"CONTRACTOR_DB_NAME"`
	LegacySSLMode  string `envconfig:"CONTRACTOR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CONTRACTOR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CONTRACTOR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONTRACTOR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CONTRACTOR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CONTRACTOR_REDIS_URL"`
	Address      string        `envconfig:"CONTRACTOR_REDIS_ADDR"`
	Password     string        `envconfig:"CONTRACTOR_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONTRACTOR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONTRACTOR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONTRACTOR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONTRACTOR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONTRACTOR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONTRACTOR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"CONTRACTOR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CONTRACTOR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CONTRACTOR_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PricingConfig struct {
	TaxRatePct string `envconfig:"CONTRACTOR_PRICING_TAX_RATE_PCT" default:"0"`
	Currency   string `envconfig:"CONTRACTOR_PRICING_CURRENCY" default:"USD"`
}

type OrdersConfig struct {
	NumberPrefix   string `envconfig:"CONTRACTOR_ORDERS_NUMBER_PREFIX" default:"ORD"`
	SequenceDigits int    `envconfig:"CONTRACTOR_ORDERS_SEQUENCE_DIGITS" default:"4"`
	Timezone       string `envconfig:"CONTRACTOR_ORDERS_TIMEZONE" default:"UTC"`
}

// Location resolves the timezone used to pick the order-number calendar day.
func (o OrdersConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(o.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading orders timezone %q: %w", name, err)
	}
	return loc, nil
}

type SessionsConfig struct {
	TTL time.Duration `envconfig:"CONTRACTOR_SESSIONS_TTL" default:"24h"`
}

type RateLimitConfig struct {
	Backend      string        `envconfig:"CONTRACTOR_RATE_LIMIT_BACKEND" default:"memory"`
	AcceptLimit  int           `envconfig:"CONTRACTOR_RATE_LIMIT_ACCEPT_LIMIT" default:"5"`
	AcceptWindow time.Duration `envconfig:"CONTRACTOR_RATE_LIMIT_ACCEPT_WINDOW" default:"1m"`
}

type DedupeConfig struct {
	Backend string        `envconfig:"CONTRACTOR_DEDUPE_BACKEND" default:"memory"`
	TTL     time.Duration `envconfig:"CONTRACTOR_DEDUPE_TTL" default:"24h"`
}

type EventingConfig struct {
	SubscriberTimeout time.Duration `envconfig:"CONTRACTOR_EVENTING_SUBSCRIBER_TIMEOUT" default:"45s"`
	Async             bool          `envconfig:"CONTRACTOR_EVENTING_ASYNC" default:"true"`
}

type DocumentsConfig struct {
	RenderTimeout time.Duration `envconfig:"CONTRACTOR_DOCUMENTS_RENDER_TIMEOUT" default:"30s"`
}

type MailConfig struct {
	Host      string        `envconfig:"CONTRACTOR_MAIL_HOST"`
	Port      int           `envconfig:"CONTRACTOR_MAIL_PORT" default:"587"`
	Username  string        `envconfig:"CONTRACTOR_MAIL_USERNAME"`
	Password  string        `envconfig:"CONTRACTOR_MAIL_PASSWORD"`
	From      string        `envconfig:"CONTRACTOR_MAIL_FROM" default:"orders@example.com"`
	TLSPolicy string        `envconfig:"CONTRACTOR_MAIL_TLS_POLICY" default:"opportunistic"`
	Timeout   time.Duration `envconfig:"CONTRACTOR_MAIL_TIMEOUT" default:"15s"`
}

// Enabled reports whether an SMTP relay was configured.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != ""
}

type BrandingConfig struct {
	CompanyName string `envconfig:"CONTRACTOR_BRANDING_COMPANY_NAME" default:"Cabinet Works"`
	HeaderText  string `envconfig:"CONTRACTOR_BRANDING_HEADER_TEXT" default:"Manufacturer Order"`
	FooterText  string `envconfig:"CONTRACTOR_BRANDING_FOOTER_TEXT"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CONTRACTOR_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CONTRACTOR_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CONTRACTOR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CONTRACTOR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"CONTRACTOR_PUBSUB_ORDERS_TOPIC"`
}

// Enabled reports whether accepted orders should be relayed to Pub/Sub.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.OrdersTopic) != ""
}

type BigQueryConfig struct {
	Dataset             string `envconfig:"CONTRACTOR_BIGQUERY_DATASET"`
	AcceptedOrdersTable string `envconfig:"CONTRACTOR_BIGQUERY_ACCEPTED_ORDERS_TABLE" default:"accepted_orders"`
}

// Enabled reports whether accepted orders should be streamed to BigQuery.
func (b BigQueryConfig) Enabled() bool {
	return strings.TrimSpace(b.Dataset) != ""
}

func (c *Config) validateBackends() error {
	for name, backend := range map[string]string{
		EnvRateLimitBackend: c.RateLimit.Backend,
		EnvDedupeBackend:    c.Dedupe.Backend,
	} {
		switch strings.ToLower(strings.TrimSpace(backend)) {
		case BackendMemory:
		case BackendRedis:
			if !c.Redis.Enabled() {
				return fmt.Errorf("%s=redis requires %s or %s", name, EnvRedisURL, EnvRedisAddr)
			}
		default:
			return fmt.Errorf("%s must be one of %s|%s, got %q", name, BackendMemory, BackendRedis, backend)
		}
	}
	if (c.PubSub.Enabled() || c.BigQuery.Enabled()) && strings.TrimSpace(c.GCP.ProjectID) == "" {
		return fmt.Errorf("%s is required when Pub/Sub or BigQuery export is enabled", EnvGCPProjectID)
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
