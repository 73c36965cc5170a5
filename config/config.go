package config

import (
	"fmt"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName    string `env:"APP_NAME" env-default:"siasn-sync"`
	Port       int    `env:"PORT" env-default:"3000"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs bool   `env:"PRETTY_LOGS" env-default:"false"`

	// Data directory for the bulk store, spreadsheet, documents, and session artifacts
	DataDir string `env:"DATA_DIR" env-default:"data"`
	// Selection file holding one participant number per line
	SelectionFilePath string `env:"SELECTION_FILE_PATH" env-default:"data/selected_no_peserta.txt"`

	// Scheduler interval between sync cycles, in minutes
	ScheduleMinutes int `env:"SCHEDULE_MINUTES" env-default:"15" validate:"gt=0"`
	// Document pool width
	DownloadWorkers int `env:"DOWNLOAD_WORKERS" env-default:"10" validate:"gt=0"`

	// SIASN API
	APIBaseURL string `env:"API_BASE_URL" env-default:"https://api-siasn.bkn.go.id/siasn-instansi/pengadaan/usulan/monitoring"`
	// Pertek document endpoint; the opaque record id is appended as a path segment
	PertekDocumentURL string `env:"PERTEK_DOCUMENT_URL" env-default:""`
	// SK document endpoint
	SKDocumentURL string `env:"SK_DOCUMENT_URL" env-default:""`
	// Bulk fetch page size
	FetchPageSize int `env:"FETCH_PAGE_SIZE" env-default:"500" validate:"gt=0"`
	// Delay between bulk fetch pages
	FetchPageDelay time.Duration `env:"FETCH_PAGE_DELAY" env-default:"300ms"`
	// Delay between gap-fill point lookups
	LookupDelay time.Duration `env:"LOOKUP_DELAY" env-default:"200ms"`
	// Optional tgl_usulan filter for the bulk fetch (YYYY-MM-DD)
	FetchTglUsulan string `env:"FETCH_TGL_USULAN" env-default:""`
	// Optional periode filter for the bulk fetch
	FetchPeriode string `env:"FETCH_PERIODE" env-default:""`
	// HTTP client timeout
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" env-default:"60s"`

	// SSO login
	SSOURL         string `env:"SSO_URL" env-default:""`
	SSORedirectURL string `env:"SSO_REDIRECT_URL" env-default:""`
	SSOUsername    string `env:"SSO_USERNAME" env-default:""`
	SSOPassword    string `env:"SSO_PASSWORD" env-default:""`
	// CSS selectors for the login form
	SSOUsernameSelector string        `env:"SSO_USERNAME_SELECTOR" env-default:"#username"`
	SSOPasswordSelector string        `env:"SSO_PASSWORD_SELECTOR" env-default:"#password"`
	SSOLoginSelector    string        `env:"SSO_LOGIN_SELECTOR" env-default:"#kc-login"`
	SSOWaitTimeout      time.Duration `env:"SSO_WAIT_TIMEOUT" env-default:"30s"`
	BrowserHeadless     bool          `env:"BROWSER_HEADLESS" env-default:"true"`

	// TOTP provider
	TOTPURL     string        `env:"TOTP_URL" env-default:"http://host.docker.internal:8001/totp"`
	TOTPTimeout time.Duration `env:"TOTP_TIMEOUT" env-default:"5s"`

	// Google Drive archive
	DriveEnabled         bool   `env:"DRIVE_ENABLED" env-default:"false"`
	DriveCredentialsPath string `env:"DRIVE_CREDENTIALS_PATH" env-default:"config/drive/credentials.json"`
	// Folder receiving the converted monitoring spreadsheet
	DriveSheetFolderID string `env:"DRIVE_SHEET_FOLDER_ID" env-default:""`
	// Folder receiving Pertek PDFs
	DrivePertekFolderID string `env:"DRIVE_PERTEK_FOLDER_ID" env-default:""`
	// Folder receiving SK PDFs
	DriveSKFolderID string `env:"DRIVE_SK_FOLDER_ID" env-default:""`

	// Database (optional run history). Disabled when DB_HOST is empty.
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                int           `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"siasn_sync"`
	DatabaseSSLMode             string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`

	// Kafka run events (optional). Disabled when KAFKA_ENABLED is false.
	KafkaEnabled      bool   `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaRunTopic     string `env:"KAFKA_RUN_TOPIC" env-default:"siasn-sync-runs"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads configuration from the environment, optionally seeded from a
// dotenv file. A missing dotenv file is not an error.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		_ = godotenv.Load(dotenvPath)
	}

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DatabaseEnabled reports whether the optional run history store is configured.
func (c *Config) DatabaseEnabled() bool {
	return c.DatabaseHost != ""
}

// Interval returns the scheduler interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.ScheduleMinutes) * time.Minute
}
