package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "ASKGOV"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabaseDriver  = "sqlite"
	defaultDatabasePath    = "askgov.db"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultCookieName      = "app_session"
	defaultSessionIssuer   = "askgov-auth"
	defaultSearchDriver    = "opensearch"
	defaultSearchIndex     = "faq"
	defaultBackfillChunk   = 500
	databaseDriverSQLite   = "sqlite"
	databaseDriverPostgres = "postgres"
	searchDriverOpenSearch = "opensearch"
	searchDriverMemory     = "memory"
)

// AppConfig captures runtime configuration for the API server and the backfill command.
type AppConfig struct {
	HTTPAddress       string
	LogLevel          string
	LogFormat         string
	DatabaseDriver    string
	DatabasePath      string
	DatabaseDSN       string
	SessionSecret     string
	SessionIssuer     string
	SessionCookieName string
	SearchDriver      string
	SearchAddresses   []string
	SearchUsername    string
	SearchPassword    string
	SearchIndex       string
	BackfillChunkSize int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("auth.issuer", defaultSessionIssuer)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("search.driver", defaultSearchDriver)
	configViper.SetDefault("search.index", defaultSearchIndex)
	configViper.SetDefault("backfill.chunk_size", defaultBackfillChunk)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		LogLevel:          configViper.GetString("log.level"),
		LogFormat:         configViper.GetString("log.format"),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:      configViper.GetString("database.path"),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		SessionSecret:     configViper.GetString("auth.signing_secret"),
		SessionIssuer:     configViper.GetString("auth.issuer"),
		SessionCookieName: configViper.GetString("auth.cookie_name"),
		SearchDriver:      strings.ToLower(strings.TrimSpace(configViper.GetString("search.driver"))),
		SearchAddresses:   splitAddresses(configViper.GetStringSlice("search.addresses")),
		SearchUsername:    configViper.GetString("search.username"),
		SearchPassword:    configViper.GetString("search.password"),
		SearchIndex:       configViper.GetString("search.index"),
		BackfillChunkSize: configViper.GetInt("backfill.chunk_size"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// splitAddresses accepts both list values and a comma separated env string.
func splitAddresses(raw []string) []string {
	addresses := make([]string, 0, len(raw))
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				addresses = append(addresses, trimmed)
			}
		}
	}
	return addresses
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	switch c.DatabaseDriver {
	case databaseDriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case databaseDriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	switch c.SearchDriver {
	case searchDriverOpenSearch:
		if len(c.SearchAddresses) == 0 {
			return fmt.Errorf("search.addresses is required for the opensearch driver")
		}
	case searchDriverMemory:
	default:
		return fmt.Errorf("search.driver %q is not supported", c.SearchDriver)
	}
	if strings.TrimSpace(c.SearchIndex) == "" {
		return fmt.Errorf("search.index is required")
	}
	if c.BackfillChunkSize <= 0 {
		return fmt.Errorf("backfill.chunk_size must be positive")
	}
	return nil
}
