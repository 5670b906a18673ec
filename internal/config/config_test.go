package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("search.driver", "memory")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("expected default address, got %q", cfg.HTTPAddress)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database defaults: %s %s", cfg.DatabaseDriver, cfg.DatabasePath)
	}
	if cfg.SearchIndex != "faq" || cfg.BackfillChunkSize != 500 {
		t.Fatalf("unexpected search defaults: %s %d", cfg.SearchIndex, cfg.BackfillChunkSize)
	}
	if cfg.SessionCookieName != defaultCookieName || cfg.SessionIssuer != defaultSessionIssuer {
		t.Fatalf("unexpected session defaults: %s %s", cfg.SessionCookieName, cfg.SessionIssuer)
	}
}

func TestLoadSplitsSearchAddresses(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("search.addresses", "http://search-1:9200, http://search-2:9200,")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.SearchAddresses) != 2 || cfg.SearchAddresses[1] != "http://search-2:9200" {
		t.Fatalf("unexpected addresses: %#v", cfg.SearchAddresses)
	}
}

func TestLoadValidatesDrivers(t *testing.T) {
	testCases := []struct {
		name     string
		settings map[string]any
		message  string
	}{
		{
			name:     "missing secret",
			settings: map[string]any{"search.driver": "memory"},
			message:  "auth.signing_secret",
		},
		{
			name:     "postgres without dsn",
			settings: map[string]any{"auth.signing_secret": "s", "search.driver": "memory", "database.driver": "postgres"},
			message:  "database.dsn",
		},
		{
			name:     "unknown database driver",
			settings: map[string]any{"auth.signing_secret": "s", "search.driver": "memory", "database.driver": "mysql"},
			message:  "database.driver",
		},
		{
			name:     "opensearch without addresses",
			settings: map[string]any{"auth.signing_secret": "s"},
			message:  "search.addresses",
		},
		{
			name:     "unknown search driver",
			settings: map[string]any{"auth.signing_secret": "s", "search.driver": "solr"},
			message:  "search.driver",
		},
		{
			name:     "non-positive chunk",
			settings: map[string]any{"auth.signing_secret": "s", "search.driver": "memory", "backfill.chunk_size": 0},
			message:  "backfill.chunk_size",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.settings {
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), testCase.message) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.message, err)
			}
		})
	}
}
