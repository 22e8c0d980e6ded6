package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackend_Validate(t *testing.T) {
	tests := []struct {
		name        string
		backend     Backend
		wantMissing []string
	}{
		{
			name:        "both missing",
			backend:     Backend{},
			wantMissing: []string{EnvBackendURL, EnvBackendAnonKey},
		},
		{
			name:        "blank url",
			backend:     Backend{URL: "   ", AnonKey: "key"},
			wantMissing: []string{EnvBackendURL},
		},
		{
			name:        "blank key",
			backend:     Backend{URL: "https://example.supabase.co", AnonKey: "\t"},
			wantMissing: []string{EnvBackendAnonKey},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.backend.Validate()
			require.Error(t, err)
			require.True(t, IsConfigurationError(err))

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			require.Equal(t, tt.wantMissing, cfgErr.Missing)
		})
	}
}

func TestBackend_ValidateOK(t *testing.T) {
	b := Backend{URL: "https://example.supabase.co/", AnonKey: "anon"}
	require.NoError(t, b.Validate())
	require.Equal(t, "https://example.supabase.co", b.BaseURL())
}

func TestBackend_ValidateRelativeURL(t *testing.T) {
	err := Backend{URL: "example.supabase.co", AnonKey: "anon"}.Validate()
	require.True(t, IsConfigurationError(err))
	require.ErrorContains(t, err, "invalid backend configuration: SUPABASE_URL must be an absolute URL")

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Empty(t, cfgErr.Missing)
	require.Equal(t, []string{EnvBackendURL}, cfgErr.Variables())
}

func TestIsConfigurationError_Wrapped(t *testing.T) {
	err := fmt.Errorf("startup: %w", &ConfigurationError{Missing: []string{EnvBackendURL}})
	require.True(t, IsConfigurationError(err))
	require.Contains(t, err.Error(), "SUPABASE_URL must be set")
	require.False(t, IsConfigurationError(errors.New("boom")))
}

func TestFromLookup(t *testing.T) {
	env := map[string]string{
		EnvBackendURL:     "https://x.supabase.co",
		EnvBackendAnonKey: "anon-key",
	}
	b := FromLookup(func(k string) string { return env[k] })
	require.Equal(t, "https://x.supabase.co", b.URL)
	require.Equal(t, "anon-key", b.AnonKey)
}

func TestPostgres_Validate(t *testing.T) {
	err := Postgres{}.Validate()
	require.True(t, IsConfigurationError(err))
	require.Contains(t, err.Error(), EnvPostgresConnString)
	require.Contains(t, err.Error(), EnvJWTSecret)

	env := map[string]string{
		EnvPostgresConnString: "postgres://localhost/propertyos",
		EnvJWTSecret:          "secret",
	}
	p := PostgresFromLookup(func(k string) string { return env[k] })
	require.NoError(t, p.Validate())
}

func TestMemory_Validate(t *testing.T) {
	var v Validator = Memory{}
	require.NoError(t, v.Validate())
}
