package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/authn"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/propertyos/internal/config"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/store"
)

// DefaultCookieName is the cookie the hosted auth provider's browser client stores the access token in.
const DefaultCookieName = "sb-access-token"

type contextKey string

const sessionContextKey contextKey = "session"

// Session is the per-request view of the caller.
type Session struct {
	Credential store.Credential
	Identity   *models.Identity // nil for anonymous callers
}

// Authenticated reports whether the caller was resolved to an identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.Identity != nil
}

// CredentialFromRequest extracts the caller's access token, preferring an
// Authorization bearer header over the session cookie. The token is forwarded, never decoded.
func CredentialFromRequest(r *http.Request, cookieName string) store.Credential {
	if token, ok := authn.BearerToken(r); ok && strings.TrimSpace(token) != "" {
		return store.Credential{AccessToken: strings.TrimSpace(token)}
	}

	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return store.Credential{}
	}

	return store.Credential{AccessToken: strings.TrimSpace(cookie.Value)}
}

// Resolver maps a request credential to the identity issued by the auth provider.
type Resolver struct {
	store store.Store
}

// NewResolver creates a resolver over st. It fails with a *config.ConfigurationError
// when the backend parameters are unset or blank.
func NewResolver(cfg config.Validator, st store.Store) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errors.New("session: store is required")
	}
	return &Resolver{store: st}, nil
}

// Resolve returns the identity behind cred, or nil when the caller is anonymous or the
// credential is no longer recognized. Only backend failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, cred store.Credential) (*models.Identity, error) {
	if cred.IsAnonymous() {
		return nil, nil
	}

	identity, err := r.store.User(ctx, cred)
	if err != nil {
		if errors.Is(err, store.ErrNoUser) {
			log.Ctx(ctx).Debug().Msg("Session: credential not recognized")
			return nil, nil
		}
		return nil, err
	}

	return identity, nil
}

// WithSession adds the session to the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// FromContext retrieves the session from the context.
// Returns an anonymous session if none was stored.
func FromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok || s == nil {
		return &Session{}
	}
	return s
}

// IdentityFromContext returns the resolved identity, or nil for anonymous callers.
func IdentityFromContext(ctx context.Context) *models.Identity {
	return FromContext(ctx).Identity
}

// Middleware resolves the caller once per request and stores the session on the request context.
//
// Anonymous and unrecognized callers pass through with an empty identity. A backend failure
// while resolving is logged and the request continues anonymously, with the credential retained
// so downstream reads still carry it.
func Middleware(resolver *Resolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred := CredentialFromRequest(r, cookieName)

			identity, err := resolver.Resolve(r.Context(), cred)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("Session: failed to resolve identity")
			}

			if identity != nil {
				log.Ctx(r.Context()).Debug().
					Str("user_id", identity.ID).
					Msg("Session: authenticated")
			}

			ctx := WithSession(r.Context(), &Session{Credential: cred, Identity: identity})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity redirects anonymous callers to redirectTo.
func RequireIdentity(redirectTo string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !FromContext(r.Context()).Authenticated() {
				log.Ctx(r.Context()).Debug().Str("path", r.URL.Path).Msg("Session: identity required")
				http.Redirect(w, r, redirectTo, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
