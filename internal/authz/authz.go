// Package authz decides whether a caller may read an organization's analytics.
//
// It is shared by the HTTP server and the MCP server so both surfaces apply
// the same scoping rules (both import this package; neither imports the other).
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/quire/internal/auth"
	"github.com/ashita-ai/quire/internal/model"
)

// ErrForbidden is returned when the caller's token does not cover the
// requested organization.
var ErrForbidden = errors.New("authz: no access to this organization")

// ErrUnauthenticated is returned when no claims are present.
var ErrUnauthenticated = errors.New("authz: authentication required")

// OrgLookup resolves an organization by ID. Implementations return an error
// wrapping storage.ErrNotFound when it does not exist.
type OrgLookup interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (model.Organization, error)
}

// CheckOrgAccess verifies that claims may read orgID and that the
// organization exists. Access is checked before existence so callers
// cannot probe for other tenants' IDs.
func CheckOrgAccess(ctx context.Context, claims *auth.Claims, orgID uuid.UUID, orgs OrgLookup) error {
	if claims == nil {
		return ErrUnauthenticated
	}
	if !claims.CanAccessOrg(orgID) {
		return ErrForbidden
	}
	if orgs == nil {
		return nil
	}
	if _, err := orgs.GetOrganization(ctx, orgID); err != nil {
		return fmt.Errorf("authz: resolve organization %s: %w", orgID, err)
	}
	return nil
}
