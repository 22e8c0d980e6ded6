package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/propertyos/internal/models"
)

// Sentinel errors for common error conditions
var (
	// ErrNoUser is returned by Store.User when the credential does not identify a user.
	// It is an expected outcome for anonymous requests, not a failure.
	ErrNoUser = errors.New("no authenticated user")

	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
)

// Credential is the caller's opaque access token as forwarded from the session cookie or
// Authorization header. The zero value is the anonymous caller.
type Credential struct {
	AccessToken string
}

// IsAnonymous reports whether the credential carries no token.
func (c Credential) IsAnonymous() bool {
	return c.AccessToken == ""
}

// Row is a single record as returned by the backend, keyed by column name.
type Row map[string]any

// Store is the hosted multi-tenant data service as seen by this application.
//
// Every call carries the caller's credential; visibility and write permission are enforced by
// the backend's row policies relative to that credential, never by filters added here.
type Store interface {
	// User resolves the identity behind a credential.
	// Returns ErrNoUser if the credential is anonymous, expired or unknown.
	User(ctx context.Context, cred Credential) (*models.Identity, error)

	// Select returns the rows of q.Table visible to the caller.
	Select(ctx context.Context, cred Credential, q Query) ([]Row, error)

	// Count returns the number of rows matching q visible to the caller, or nil when the
	// backend did not report a count.
	Count(ctx context.Context, cred Credential, q Query) (*int64, error)

	// Insert creates one row and returns it as stored.
	Insert(ctx context.Context, cred Credential, table Table, row Row) (Row, error)
}
