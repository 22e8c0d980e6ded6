package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Environment variables holding the hosted backend connection parameters.
const (
	EnvBackendURL     = "SUPABASE_URL"
	EnvBackendAnonKey = "SUPABASE_ANON_KEY"
)

// ConfigurationError reports backend connection parameters that are unset, blank or malformed.
// It marks a deployment fault, not an authentication failure.
type ConfigurationError struct {
	Missing []string
	Invalid []InvalidVariable
}

// InvalidVariable names a parameter that is set but unusable.
type InvalidVariable struct {
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing backend configuration: %s must be set", strings.Join(e.Missing, " and ")))
	}
	for _, v := range e.Invalid {
		parts = append(parts, fmt.Sprintf("invalid backend configuration: %s %s", v.Name, v.Reason))
	}
	return strings.Join(parts, "; ")
}

// Variables returns the names of every missing or invalid parameter, missing first.
func (e *ConfigurationError) Variables() []string {
	names := append([]string(nil), e.Missing...)
	for _, v := range e.Invalid {
		names = append(names, v.Name)
	}
	return names
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// Backend holds the endpoint and access key of the hosted data service.
type Backend struct {
	// URL is the project endpoint, e.g. https://abcd.supabase.co
	URL string

	// AnonKey is the public access key sent with every request.
	AnonKey string
}

// FromEnv reads the backend parameters from the process environment.
// It does not validate; call Validate before use.
func FromEnv() Backend {
	return FromLookup(os.Getenv)
}

// FromLookup reads the backend parameters using the given lookup function.
func FromLookup(getenv func(string) string) Backend {
	return Backend{
		URL:     getenv(EnvBackendURL),
		AnonKey: getenv(EnvBackendAnonKey),
	}
}

// Validate returns a *ConfigurationError naming every blank parameter, or the URL when it is
// not absolute.
func (b Backend) Validate() error {
	var missing []string
	if strings.TrimSpace(b.URL) == "" {
		missing = append(missing, EnvBackendURL)
	}
	if strings.TrimSpace(b.AnonKey) == "" {
		missing = append(missing, EnvBackendAnonKey)
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}

	u, err := url.Parse(strings.TrimSpace(b.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigurationError{Invalid: []InvalidVariable{{
			Name:   EnvBackendURL,
			Reason: "must be an absolute URL such as https://your-project.supabase.co",
		}}}
	}

	return nil
}

// BaseURL returns the endpoint without surrounding whitespace or trailing slash.
func (b Backend) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(b.URL), "/")
}
