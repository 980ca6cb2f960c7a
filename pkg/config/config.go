package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Rides         RidesConfig
	Invitations   InvitationsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Rides.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CRIDE_APP_ENV" required:"true"`
	Port         string `envconfig:"CRIDE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CRIDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CRIDE_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"CRIDE_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"CRIDE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CRIDE_DB_DSN"`
	Driver string `envconfig:"CRIDE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CRIDE_DB_HOST"`
	LegacyPort     int    `envconfig:"CRIDE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CRIDE_DB_USER"`
	LegacyPassword string `envconfig:"CRIDE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CRIDE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CRIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRIDE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRIDE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CRIDE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CRIDE_REDIS_ADDR"`
	Password     string        `envconfig:"CRIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret               string `envconfig:"CRIDE_JWT_SECRET" required:"true"`
	Issuer               string `envconfig:"CRIDE_JWT_ISSUER" required:"true"`
	ExpirationMinutes    int    `envconfig:"CRIDE_JWT_EXPIRATION_MINUTES" required:"true"`
	VerificationTTLHours int    `envconfig:"CRIDE_JWT_VERIFICATION_TTL_HOURS" default:"72"`
}

// VerificationTTL returns how long an email confirmation token stays valid.
func (j JWTConfig) VerificationTTL() time.Duration {
	if j.VerificationTTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(j.VerificationTTLHours) * time.Hour
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CRIDE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CRIDE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CRIDE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CRIDE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CRIDE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CRIDE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CRIDE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CRIDE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CRIDE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CRIDE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CRIDE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CRIDE_AUTO_MIGRATE" default:"false"`
}

// RidesConfig holds the timing and capacity rules applied to rides.
type RidesConfig struct {
	MinLeadTime  time.Duration `envconfig:"CRIDE_RIDES_MIN_LEAD_TIME" default:"20m"`
	JoinGrace    time.Duration `envconfig:"CRIDE_RIDES_JOIN_GRACE" default:"10m"`
	SweepGrace   time.Duration `envconfig:"CRIDE_RIDES_SWEEP_GRACE" default:"5s"`
	MinSeats     int           `envconfig:"CRIDE_RIDES_MIN_SEATS" default:"1"`
	MaxSeats     int           `envconfig:"CRIDE_RIDES_MAX_SEATS" default:"15"`
	JoinAttempts uint64        `envconfig:"CRIDE_RIDES_JOIN_ATTEMPTS" default:"5"`
	JoinBackoff  time.Duration `envconfig:"CRIDE_RIDES_JOIN_BACKOFF" default:"20ms"`
}

func (r RidesConfig) validate() error {
	if r.MinSeats < 1 || r.MaxSeats < r.MinSeats {
		return fmt.Errorf("invalid ride seat bounds [%d, %d]", r.MinSeats, r.MaxSeats)
	}
	if r.JoinAttempts == 0 {
		return fmt.Errorf("%s must be positive", EnvRidesJoinAttempts)
	}
	return nil
}

type InvitationsConfig struct {
	InitialQuota int `envconfig:"CRIDE_INVITATIONS_INITIAL_QUOTA" default:"10"`
	CodeLength   int `envconfig:"CRIDE_INVITATIONS_CODE_LENGTH" default:"10"`
	MaxAttempts  int `envconfig:"CRIDE_INVITATIONS_MAX_ATTEMPTS" default:"50"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CRIDE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CRIDE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CRIDE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"CRIDE_PUBSUB_NOTIFICATION_TOPIC" default:"cride-notification-events"`
	DomainTopic       string `envconfig:"CRIDE_PUBSUB_DOMAIN_TOPIC" default:"cride-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CRIDE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CRIDE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CRIDE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"CRIDE_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CRIDE_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"CRIDE_CRON_LOCK_TTL" default:"2m"`
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
