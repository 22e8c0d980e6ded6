package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/propertyos/internal/auth"
	"github.com/wolfeidau/propertyos/internal/config"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/store"
)

// AuthenticatedRole is the database role every request runs as; row policies are written against it.
const AuthenticatedRole = "propertyos_authenticated"

// TokenAudience is the aud claim of user access tokens.
const TokenAudience = "authenticated"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Config holds configuration for the direct database backend.
type Config struct {
	Backend     config.Postgres
	Pool        PoolConfig
	AutoMigrate bool
}

// Store implements store.Store directly against the backend's Postgres database.
//
// Access tokens are verified locally with the project JWT secret. Every operation runs in its own
// transaction as AuthenticatedRole with the caller's user id in request.jwt.claim.sub, so the same
// row policies the hosted data API applies are enforced by the database.
type Store struct {
	pool     *pgxpool.Pool
	verifier *auth.TokenVerifier
}

// New connects to the database described by cfg. It fails with a *config.ConfigurationError
// when the connection string or JWT secret is unset or blank.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Backend.Validate(); err != nil {
		return nil, err
	}

	verifier, err := auth.NewTokenVerifier([]byte(cfg.Backend.JWTSecret), TokenAudience)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.EnvJWTSecret, err)
	}

	poolCfg := cfg.Pool
	poolCfg.ConnString = cfg.Backend.ConnString

	pool, err := NewPool(ctx, &poolCfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	log.Info().
		Int32("max_conns", poolCfg.MaxConns).
		Bool("auto_migrate", cfg.AutoMigrate).
		Msg("Postgres store initialized")

	return NewStore(pool, verifier), nil
}

// NewStore creates a store over an existing pool.
func NewStore(pool *pgxpool.Pool, verifier *auth.TokenVerifier) *Store {
	return &Store{pool: pool, verifier: verifier}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// User verifies the access token and returns the identity it was issued to.
func (s *Store) User(ctx context.Context, cred store.Credential) (*models.Identity, error) {
	if cred.IsAnonymous() {
		return nil, store.ErrNoUser
	}

	identity, _, err := s.verifier.Verify(cred.AccessToken)
	if err != nil {
		return nil, store.ErrNoUser
	}

	return identity, nil
}

// Select returns the rows of q.Table visible to the caller.
func (s *Store) Select(ctx context.Context, cred store.Credential, q store.Query) ([]store.Row, error) {
	query, args, err := selectSQL(q)
	if err != nil {
		return nil, err
	}

	var out []store.Row
	err = s.asCaller(ctx, "select", q.Table, cred, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}

		raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
		if err != nil {
			return err
		}

		out = make([]store.Row, 0, len(raw))
		for _, data := range raw {
			var row store.Row
			if err := json.Unmarshal(data, &row); err != nil {
				return fmt.Errorf("failed to decode row: %w", err)
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Count returns the number of visible rows matching q.
func (s *Store) Count(ctx context.Context, cred store.Credential, q store.Query) (*int64, error) {
	query, args, err := countSQL(q)
	if err != nil {
		return nil, err
	}

	var n int64
	err = s.asCaller(ctx, "count", q.Table, cred, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, args...).Scan(&n)
	})
	if err != nil {
		return nil, err
	}

	return &n, nil
}

// Insert creates one row; row policies decide whether the caller may write it.
func (s *Store) Insert(ctx context.Context, cred store.Credential, table store.Table, row store.Row) (store.Row, error) {
	query, args, err := insertSQL(table, row)
	if err != nil {
		return nil, err
	}

	var stored store.Row
	err = s.asCaller(ctx, "insert", table, cred, func(tx pgx.Tx) error {
		var data []byte
		if err := tx.QueryRow(ctx, query, args...).Scan(&data); err != nil {
			return err
		}
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to decode inserted row: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// asCaller runs fn in a transaction scoped to the caller's identity.
// Anonymous callers and unverifiable tokens run with an empty subject, which no policy matches.
func (s *Store) asCaller(ctx context.Context, op string, table store.Table, cred store.Credential, fn func(tx pgx.Tx) error) error {
	subject := ""
	if !cred.IsAnonymous() {
		identity, _, err := s.verifier.Verify(cred.AccessToken)
		if err != nil {
			log.Ctx(ctx).Debug().Err(err).Msg("Postgres store: running with anonymous subject")
		} else {
			subject = identity.ID
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPostgresError(op, table, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	if _, err := tx.Exec(ctx, "SELECT set_config('request.jwt.claim.sub', $1, true)", subject); err != nil {
		return mapPostgresError(op, table, err)
	}
	if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+pgx.Identifier{AuthenticatedRole}.Sanitize()); err != nil {
		return mapPostgresError(op, table, err)
	}

	if err := fn(tx); err != nil {
		return mapPostgresError(op, table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPostgresError(op, table, err)
	}

	return nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func where(b sq.SelectBuilder, filters []store.Filter) sq.SelectBuilder {
	for _, f := range filters {
		switch f.Op {
		case store.OpEq:
			b = b.Where(sq.Eq{ident(f.Column): f.Value})
		case store.OpIn:
			b = b.Where(sq.Eq{ident(f.Column): f.Value.([]string)})
		}
	}
	return b
}

// selectSQL renders q as a single query returning one JSON object per row, keyed by column.
func selectSQL(q store.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	cols := q.SelectedColumns()
	pairs := make([]string, 0, len(cols))
	for _, c := range cols {
		// column names come from the schema registry
		pairs = append(pairs, "'"+c+"', "+ident(c))
	}

	b := where(psql.Select("json_build_object("+strings.Join(pairs, ", ")+")").From(ident(string(q.Table))), q.Filters)
	for _, o := range q.Order {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		b = b.OrderBy(ident(o.Column) + " " + dir)
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	return b.ToSql()
}

func countSQL(q store.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	return where(psql.Select("count(*)").From(ident(string(q.Table))), q.Filters).ToSql()
}

func insertSQL(table store.Table, row store.Row) (string, []any, error) {
	if err := store.ValidateRow(table, row); err != nil {
		return "", nil, err
	}
	if len(row) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no columns", table)
	}

	cols := slices.Sorted(maps.Keys(row))
	quoted := make([]string, 0, len(cols))
	values := make([]any, 0, len(cols))
	for _, c := range cols {
		quoted = append(quoted, ident(c))
		values = append(values, row[c])
	}

	tableIdent := ident(string(table))
	return psql.Insert(tableIdent).
		Columns(quoted...).
		Values(values...).
		Suffix("RETURNING row_to_json(" + tableIdent + ")").
		ToSql()
}
