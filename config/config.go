package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"heureka-stats/models"
)

// ErrInvalidConfig marks problems the user has to fix in the configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Output drivers.
const (
	DriverCSV      = "csv"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Email    string
	Password string
	Country  string
	EshopID  string
	DateFrom string
	DateTo   string

	TableName       string
	IncrementalLoad bool
	OutputDriver    string
	OutputDir       string
	SQLitePath      string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ChromeBin        string
	Headless         bool
	ArtifactsDir     string
	LoginAttempts    int
	FetchAttempts    int
	RetryBaseDelayMs int
	RateLimitMs      int
	StepTimeoutSec   int
	HTTPTimeoutSec   int

	LogLevel    string
	LogFile     string
	MetricsAddr string
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		IncrementalLoad: true,
		OutputDriver:    DriverCSV,
		OutputDir:       "./output",
		SQLitePath:      "./output/heureka.db",

		PostgresHost:    "localhost",
		PostgresPort:    "5432",
		PostgresUser:    "heureka",
		PostgresDB:      "heureka",
		PostgresSSLMode: "disable",

		Headless:         true,
		ArtifactsDir:     "./artifacts",
		LoginAttempts:    3,
		FetchAttempts:    3,
		RetryBaseDelayMs: 2000,
		RateLimitMs:      500,
		StepTimeoutSec:   20,
		HTTPTimeoutSec:   30,

		LogLevel: "info",
	}
}

// Parameters is the shape of the component configuration file.
type Parameters struct {
	Credentials struct {
		Email         string `yaml:"email"`
		Password      string `yaml:"#password"`
		PlainPassword string `yaml:"password"`
	} `yaml:"credentials"`
	ReportSettings struct {
		EshopID  string `yaml:"eshop_id"`
		DateFrom string `yaml:"date_from"`
		DateTo   string `yaml:"date_to"`
	} `yaml:"report_settings"`
	Destination struct {
		TableName       string `yaml:"table_name"`
		IncrementalLoad *bool  `yaml:"incremental_load"`
	} `yaml:"destination"`
	Country string `yaml:"country"`
}

// file accepts the parameters either wrapped in "parameters" or at top level.
type file struct {
	Wrapped    *Parameters `yaml:"parameters"`
	Parameters `yaml:",inline"`
}

// Load builds the configuration from defaults, the optional config file at
// path and the environment, in increasing order of precedence. A .env file
// in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Defaults()

	if path != "" {
		p, err := readFile(path)
		if err != nil {
			return nil, err
		}
		fromFile := Config{
			Email:     p.Credentials.Email,
			Password:  firstNonEmpty(p.Credentials.Password, p.Credentials.PlainPassword),
			Country:   p.Country,
			EshopID:   p.ReportSettings.EshopID,
			DateFrom:  p.ReportSettings.DateFrom,
			DateTo:    p.ReportSettings.DateTo,
			TableName: p.Destination.TableName,
		}
		if err := mergo.Merge(&cfg, fromFile, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("config: merge %s: %w", path, err)
		}
		if p.Destination.IncrementalLoad != nil {
			cfg.IncrementalLoad = *p.Destination.IncrementalLoad
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func readFile(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	if f.Wrapped != nil {
		return f.Wrapped, nil
	}
	return &f.Parameters, nil
}

func applyEnv(c *Config) {
	c.Email = getEnv("HEUREKA_EMAIL", c.Email)
	c.Password = getEnv("HEUREKA_PASSWORD", c.Password)
	c.Country = getEnv("HEUREKA_COUNTRY", c.Country)
	c.EshopID = getEnv("HEUREKA_ESHOP_ID", c.EshopID)
	c.DateFrom = getEnv("DATE_FROM", c.DateFrom)
	c.DateTo = getEnv("DATE_TO", c.DateTo)

	c.TableName = getEnv("TABLE_NAME", c.TableName)
	c.IncrementalLoad = getEnvBool("INCREMENTAL_LOAD", c.IncrementalLoad)
	c.OutputDriver = getEnv("OUTPUT_DRIVER", c.OutputDriver)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)

	c.PostgresHost = getEnv("POSTGRES_HOST", c.PostgresHost)
	c.PostgresPort = getEnv("POSTGRES_PORT", c.PostgresPort)
	c.PostgresUser = getEnv("POSTGRES_USER", c.PostgresUser)
	c.PostgresPassword = getEnv("POSTGRES_PASSWORD", c.PostgresPassword)
	c.PostgresDB = getEnv("POSTGRES_DB", c.PostgresDB)
	c.PostgresSSLMode = getEnv("POSTGRES_SSLMODE", c.PostgresSSLMode)

	c.ChromeBin = getEnv("CHROME_BIN", c.ChromeBin)
	c.Headless = getEnvBool("HEADLESS", c.Headless)
	c.ArtifactsDir = getEnv("ARTIFACTS_DIR", c.ArtifactsDir)
	c.LoginAttempts = getEnvInt("LOGIN_ATTEMPTS", c.LoginAttempts)
	c.FetchAttempts = getEnvInt("FETCH_ATTEMPTS", c.FetchAttempts)
	c.RetryBaseDelayMs = getEnvInt("RETRY_BASE_DELAY_MS", c.RetryBaseDelayMs)
	c.RateLimitMs = getEnvInt("RATE_LIMIT_MS", c.RateLimitMs)
	c.StepTimeoutSec = getEnvInt("STEP_TIMEOUT_SEC", c.StepTimeoutSec)
	c.HTTPTimeoutSec = getEnvInt("HTTP_TIMEOUT_SEC", c.HTTPTimeoutSec)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
}

// Validate reports every missing required parameter at once.
func (c *Config) Validate() error {
	var missing []string
	for _, p := range []struct {
		name  string
		value string
	}{
		{"email", c.Email},
		{"#password", c.Password},
		{"eshop_id", c.EshopID},
		{"date_from", c.DateFrom},
		{"date_to", c.DateTo},
		{"country", c.Country},
	} {
		if strings.TrimSpace(p.value) == "" {
			missing = append(missing, p.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required parameters: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}

	switch c.OutputDriver {
	case DriverCSV, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: unknown output driver %q", ErrInvalidConfig, c.OutputDriver)
	}
	if c.LoginAttempts < 1 || c.FetchAttempts < 1 {
		return fmt.Errorf("%w: login and fetch attempts must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Table returns the output table name, the shop id unless set explicitly.
func (c *Config) Table() string {
	if c.TableName != "" {
		return c.TableName
	}
	return c.EshopID
}

// Credentials returns the merchant login.
func (c *Config) Credentials() models.Credentials {
	return models.Credentials{Email: c.Email, Password: c.Password}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
