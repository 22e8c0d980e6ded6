package memory

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/store"
	"gopkg.in/yaml.v3"
)

// Seed describes the initial contents of an in-memory store.
type Seed struct {
	Users         []SeedUser                   `yaml:"users"`
	Organizations []SeedOrganization           `yaml:"organizations"`
	Memberships   []SeedMembership             `yaml:"memberships"`
	Rows          map[string][]map[string]any `yaml:"rows"`
}

// SeedUser is an identity and the access token that resolves to it.
type SeedUser struct {
	ID    string `yaml:"id"`
	Email string `yaml:"email"`
	Token string `yaml:"token"`
}

type SeedOrganization struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedMembership struct {
	OrganizationID string    `yaml:"organization_id"`
	UserID         string    `yaml:"user_id"`
	Role           string    `yaml:"role"`
	CreatedAt      time.Time `yaml:"created_at"`
}

// LoadSeedFile reads a YAML seed file.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	return &seed, nil
}

// Apply loads the seed into s, bypassing row policies.
func (seed *Seed) Apply(s *Store) error {
	for _, u := range seed.Users {
		if u.Token == "" {
			return fmt.Errorf("seed user %q has no token", u.ID)
		}
		s.AddUser(u.Token, models.Identity{ID: u.ID, Email: u.Email})
	}

	for _, o := range seed.Organizations {
		if err := s.AddRows(store.TableOrganizations, store.Row{"id": o.ID, "name": o.Name}); err != nil {
			return fmt.Errorf("seed organization %q: %w", o.ID, err)
		}
	}

	for _, m := range seed.Memberships {
		s.AddMembership(models.Membership{
			OrganizationID: m.OrganizationID,
			UserID:         m.UserID,
			Role:           models.Role(m.Role),
			CreatedAt:      m.CreatedAt,
		})
	}

	for table, rows := range seed.Rows {
		for _, r := range rows {
			if err := s.AddRows(store.Table(table), store.Row(r)); err != nil {
				return fmt.Errorf("seed %s: %w", table, err)
			}
		}
	}

	log.Debug().
		Int("users", len(seed.Users)).
		Int("organizations", len(seed.Organizations)).
		Int("memberships", len(seed.Memberships)).
		Msg("Applied memory store seed")

	return nil
}
