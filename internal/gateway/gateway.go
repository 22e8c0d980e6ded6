package gateway

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/propertyos/internal/auth"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/store"
	"github.com/wolfeidau/propertyos/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PropertiesPath is the listing view invalidated after a property is created.
const PropertiesPath = "/dashboard/properties"

// IdentityResolver resolves the caller behind a credential. It returns nil for anonymous callers.
type IdentityResolver interface {
	Resolve(ctx context.Context, cred store.Credential) (*models.Identity, error)
}

// Invalidator is told when a rendered view no longer reflects the store.
type Invalidator interface {
	Invalidate(ctx context.Context, path string)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, string) {}

// Option configures a Gateway.
type Option func(*Gateway)

// WithInvalidator sets where view invalidations are sent after writes.
func WithInvalidator(inv Invalidator) Option {
	return func(g *Gateway) {
		g.invalidator = inv
	}
}

// Gateway mediates every read and write against the multi-tenant store.
//
// Reads are forwarded with the caller's credential and rely on the store's row policies for
// visibility. Writes are attributed to an organization the caller administers, chosen here and
// never taken from caller input.
type Gateway struct {
	store       store.Store
	resolver    IdentityResolver
	invalidator Invalidator
}

// New creates a gateway over st.
func New(st store.Store, resolver IdentityResolver, opts ...Option) *Gateway {
	g := &Gateway{
		store:       st,
		resolver:    resolver,
		invalidator: nopInvalidator{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Read returns the rows of table visible to the caller that match filters.
// No organization filter is added.
func (g *Gateway) Read(ctx context.Context, cred store.Credential, table store.Table, filters ...store.Filter) ([]store.Row, error) {
	return g.ReadQuery(ctx, cred, store.From(table).Where(filters...))
}

// ReadQuery runs q with the caller's credential.
func (g *Gateway) ReadQuery(ctx context.Context, cred store.Credential, q store.Query) ([]store.Row, error) {
	rows, err := g.store.Select(ctx, cred, q)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListProperties returns the caller's visible properties, most recently updated first.
func (g *Gateway) ListProperties(ctx context.Context, cred store.Credential) ListResult {
	rows, err := g.ReadQuery(ctx, cred, store.From(store.TableProperties).OrderBy("updated_at", true))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to list properties")
		return ListResult{Data: []models.Property{}, Error: err.Error()}
	}

	properties, err := store.DecodeRows[models.Property](rows)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to decode properties")
		return ListResult{Data: []models.Property{}, Error: err.Error()}
	}

	return ListResult{Data: properties}
}

// CreateProperty inserts one property on behalf of the caller's managing organization.
//
// The caller must be signed in and hold an admin or owner membership. Input is normalized and
// validated before any write; organization_id is always the chosen membership's organization.
// After a successful insert the properties listing is invalidated once.
func (g *Gateway) CreateProperty(ctx context.Context, cred store.Credential, in models.PropertyInput) Result {
	metrics := telemetry.GetMetrics()

	property, err := g.createProperty(ctx, cred, in)
	if err != nil {
		res := ResultFromError(err)
		attrs := metric.WithAttributes(attribute.String("code", string(res.Code)))
		switch res.Code {
		case CodeUnauthenticated, CodePermissionDenied:
			metrics.PropertyCreateDenialsTotal.Add(ctx, 1, attrs)
			log.Ctx(ctx).Info().Str("code", string(res.Code)).Msg("Property create denied")
		default:
			metrics.PropertyCreateErrorsTotal.Add(ctx, 1, attrs)
			log.Ctx(ctx).Warn().Err(err).Str("code", string(res.Code)).Msg("Property create failed")
		}
		return res
	}

	metrics.PropertyCreatesTotal.Add(ctx, 1)

	g.invalidator.Invalidate(ctx, PropertiesPath)

	return Result{Success: true, Code: CodeOK, Property: property}
}

func (g *Gateway) createProperty(ctx context.Context, cred store.Credential, in models.PropertyInput) (*models.Property, error) {
	identity, err := g.resolver.Resolve(ctx, cred)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrAuthenticationRequired
	}

	membership, err := g.ManagingMembership(ctx, cred, identity)
	if err != nil {
		return nil, err
	}

	np, err := NormalizePropertyInput(in)
	if err != nil {
		return nil, err
	}
	np.OrganizationID = membership.OrganizationID

	row, err := store.EncodeRow(np)
	if err != nil {
		return nil, fmt.Errorf("failed to encode property: %w", err)
	}
	row["organization_id"] = membership.OrganizationID

	stored, err := g.store.Insert(ctx, cred, store.TableProperties, row)
	if err != nil {
		return nil, err
	}

	var property models.Property
	if err := store.DecodeRow(stored, &property); err != nil {
		return nil, fmt.Errorf("failed to decode created property: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("property_id", property.ID).
		Str("organization_id", property.OrganizationID).
		Str("user_id", identity.ID).
		Msg("Property created")

	return &property, nil
}

// ManagingMembership returns the membership a write by identity is attributed to.
//
// Among the identity's memberships allowed to create properties, owner is preferred over admin,
// then the earliest joined, then the lowest organization id. Returns ErrAuthorizationDenied when
// there is none.
func (g *Gateway) ManagingMembership(ctx context.Context, cred store.Credential, identity *models.Identity) (*models.Membership, error) {
	roles := auth.RolesWith(auth.PermPropertiesCreate)
	roleNames := make([]string, 0, len(roles))
	for _, r := range roles {
		roleNames = append(roleNames, string(r))
	}

	rows, err := g.store.Select(ctx, cred, store.From(store.TableOrganizationMembers).
		Select("organization_id", "user_id", "role", "created_at").
		Where(store.Eq("user_id", identity.ID), store.In("role", roleNames...)))
	if err != nil {
		return nil, err
	}

	memberships, err := store.DecodeRows[models.Membership](rows)
	if err != nil {
		return nil, fmt.Errorf("failed to decode memberships: %w", err)
	}

	chosen := chooseMembership(memberships)
	if chosen == nil {
		return nil, ErrAuthorizationDenied
	}

	log.Ctx(ctx).Debug().
		Str("organization_id", chosen.OrganizationID).
		Str("role", string(chosen.Role)).
		Int("candidates", len(memberships)).
		Msg("Selected managing membership")

	return chosen, nil
}

// rolePrecedence orders managing roles, lowest first.
var rolePrecedence = map[models.Role]int{
	models.RoleOwner: 0,
	models.RoleAdmin: 1,
}

func chooseMembership(memberships []models.Membership) *models.Membership {
	qualifying := slices.DeleteFunc(slices.Clone(memberships), func(m models.Membership) bool {
		return m.OrganizationID == "" || !auth.HasPermission(m.Role, auth.PermPropertiesCreate)
	})
	if len(qualifying) == 0 {
		return nil
	}

	slices.SortFunc(qualifying, func(a, b models.Membership) int {
		return cmp.Or(
			cmp.Compare(precedence(a.Role), precedence(b.Role)),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.OrganizationID, b.OrganizationID),
		)
	})

	return &qualifying[0]
}

func precedence(r models.Role) int {
	if p, ok := rolePrecedence[r]; ok {
		return p
	}
	return len(rolePrecedence)
}
