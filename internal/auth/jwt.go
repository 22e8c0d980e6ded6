package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/propertyos/internal/models"
)

// ErrInvalidToken is returned when an access token fails verification.
var ErrInvalidToken = errors.New("invalid access token")

// AccessTokenClaims are the claims the hosted auth provider puts in user access tokens.
type AccessTokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier verifies HS256 access tokens signed with the project's JWT secret.
type TokenVerifier struct {
	secret   []byte
	audience string
	leeway   time.Duration
}

// NewTokenVerifier creates a verifier for tokens signed with secret.
// audience is matched against the aud claim when non-empty ("authenticated" for user tokens).
func NewTokenVerifier(secret []byte, audience string) (*TokenVerifier, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 bytes")
	}

	return &TokenVerifier{
		secret:   secret,
		audience: audience,
		leeway:   30 * time.Second,
	}, nil
}

// Verify parses and validates tokenStr and returns the identity it carries.
func (v *TokenVerifier) Verify(tokenStr string) (*models.Identity, *AccessTokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		log.Debug().Err(err).Msg("Access token verification failed")
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !parsed.Valid {
		return nil, nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	// row policies compare the subject against uuid columns
	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}

	return &models.Identity{ID: sub.String(), Email: claims.Email}, claims, nil
}

// IssueAccessToken creates an HS256 access token for identity.
// It is used by the development seed tooling and tests; production tokens come from the auth provider.
func IssueAccessToken(secret []byte, identity models.Identity, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &AccessTokenClaims{
		Email: identity.Email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
