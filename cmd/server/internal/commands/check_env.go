package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/wolfeidau/propertyos/internal/config"
)

// DefaultEnvFile is read by the server on startup and checked by check-env.
const DefaultEnvFile = ".env.local"

// previewLength is how much of each value check-env prints.
const previewLength = 30

// ErrMissingEnv is returned by check-env when a required variable is unset or blank.
var ErrMissingEnv = errors.New("required environment variables are missing")

type CheckEnvCmd struct {
	File    string `help:"env file to check" default:".env.local"`
	Backend string `help:"backend whose variables are required (rest or postgres)" default:"rest" enum:"rest,postgres" env:"PROPERTYOS_BACKEND"`
}

func (c *CheckEnvCmd) Run(globals *Globals) error {
	return c.check(os.Stdout)
}

func (c *CheckEnvCmd) check(w io.Writer) error {
	fmt.Fprintln(w, "Checking backend environment variables...")
	fmt.Fprintln(w)

	values, err := godotenv.Read(c.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(w, "✗ %s file not found!\n", c.File)
			fmt.Fprintln(w, "  Create it by copying .env.example:")
			fmt.Fprintf(w, "  cp .env.example %s\n", c.File)
			return fmt.Errorf("%s: %w", c.File, ErrMissingEnv)
		}
		return fmt.Errorf("failed to read %s: %w", c.File, err)
	}

	missing := 0
	for _, name := range requiredEnv(c.Backend) {
		value := strings.TrimSpace(values[name])
		if value == "" {
			fmt.Fprintf(w, "✗ %s is missing or empty\n", name)
			missing++
			continue
		}
		fmt.Fprintf(w, "✓ %s is set\n", name)
		fmt.Fprintf(w, "  Value: %s...\n", preview(value))
	}
	fmt.Fprintln(w)

	if missing > 0 {
		fmt.Fprintf(w, "Please add your backend credentials to %s\n", c.File)
		return ErrMissingEnv
	}

	fmt.Fprintln(w, "All environment variables are configured!")
	fmt.Fprintln(w, "Remember to restart the server if you just added these values.")
	return nil
}

func requiredEnv(backend string) []string {
	if backend == "postgres" {
		return []string{config.EnvPostgresConnString, config.EnvJWTSecret}
	}
	return []string{config.EnvBackendURL, config.EnvBackendAnonKey}
}

func preview(value string) string {
	runes := []rune(value)
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return string(runes)
}
