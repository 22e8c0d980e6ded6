package config

import (
	"strings"
)

// Environment variables holding the direct database connection parameters.
const (
	EnvPostgresConnString = "POSTGRES_CONNECTION_STRING"
	EnvJWTSecret          = "SUPABASE_JWT_SECRET"
)

// Validator is implemented by every backend parameter set.
type Validator interface {
	Validate() error
}

// Postgres holds the parameters of the direct database backend: the connection string takes the
// place of the endpoint and the JWT secret the place of the access key.
type Postgres struct {
	ConnString string
	JWTSecret  string
}

// PostgresFromLookup reads the database parameters using the given lookup function.
func PostgresFromLookup(getenv func(string) string) Postgres {
	return Postgres{
		ConnString: getenv(EnvPostgresConnString),
		JWTSecret:  getenv(EnvJWTSecret),
	}
}

// Validate returns a *ConfigurationError naming every blank parameter.
func (p Postgres) Validate() error {
	var missing []string
	if strings.TrimSpace(p.ConnString) == "" {
		missing = append(missing, EnvPostgresConnString)
	}
	if strings.TrimSpace(p.JWTSecret) == "" {
		missing = append(missing, EnvJWTSecret)
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// Memory is the parameter set of the in-memory backend, which needs none.
type Memory struct{}

func (Memory) Validate() error { return nil }
