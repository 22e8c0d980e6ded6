package postgres

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"2_add_index.sql":      {Data: []byte("CREATE INDEX x ON y (z);")},
		"1_initial_schema.sql": {Data: []byte("CREATE TABLE y (z INT);")},
		"README.md":            {Data: []byte("ignored")},
	}

	migrations, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	require.Equal(t, 1, migrations[0].version)
	require.Equal(t, "1_initial_schema.sql", migrations[0].name)
	require.Equal(t, 2, migrations[1].version)
}

func TestLoadMigrations_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{name: "no separator", fsys: fstest.MapFS{"initial.sql": {Data: []byte("")}}},
		{name: "bad version", fsys: fstest.MapFS{"one_initial.sql": {Data: []byte("")}}},
		{name: "duplicate version", fsys: fstest.MapFS{
			"1_a.sql": {Data: []byte("")},
			"1_b.sql": {Data: []byte("")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadMigrations(tt.fsys)
			require.Error(t, err)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	require.NoError(t, err)

	migrations, err := loadMigrations(sub)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	require.Equal(t, 1, migrations[0].version)
	require.Contains(t, migrations[0].content, "ENABLE ROW LEVEL SECURITY")
	require.Contains(t, migrations[0].content, AuthenticatedRole)
}
