// Package auth defines the verified principal model and the token
// verifier the HTTP layer consumes. Token issuance lives outside the
// registry; the bundled static verifier covers local deployments.
package auth

import (
	"context"

	"github.com/codeops-dev/registry/pkg/apperrors"
)

// Team role names recognized by the writer check.
const (
	RoleOwner      = "owner"
	RoleMaintainer = "maintainer"
	RoleMember     = "member"
	RoleViewer     = "viewer"

	// RoleAdmin is a global role granting access to every team.
	RoleAdmin = "admin"
)

// Principal is a verified caller identity.
type Principal struct {
	UserID    string            `json:"userId"`
	Email     string            `json:"email"`
	Roles     []string          `json:"roles"`
	TeamIDs   []string          `json:"teamIds"`
	TeamRoles map[string]string `json:"teamRoles"`
}

// IsAdmin reports whether the principal carries the global admin role.
func (p *Principal) IsAdmin() bool {
	for _, r := range p.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// CanRead reports whether the principal may read team data.
func (p *Principal) CanRead(teamID string) bool {
	if p.IsAdmin() {
		return true
	}
	for _, id := range p.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}

// CanWrite reports whether the principal may mutate team data.
func (p *Principal) CanWrite(teamID string) bool {
	if p.IsAdmin() {
		return true
	}
	switch p.TeamRoles[teamID] {
	case RoleOwner, RoleMaintainer:
		return true
	}
	return false
}

// Verifier resolves a bearer token into a principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

type principalKey struct{}

// WithPrincipal stores the principal on the request context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom retrieves the verified principal from the context.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// RequireRead returns an authorization error unless the principal may
// read the team.
func RequireRead(p *Principal, teamID string) error {
	if p == nil || !p.CanRead(teamID) {
		return apperrors.Authorizationf("reader access to team %s denied", teamID)
	}
	return nil
}

// RequireWrite returns an authorization error unless the principal may
// mutate the team.
func RequireWrite(p *Principal, teamID string) error {
	if p == nil || !p.CanWrite(teamID) {
		return apperrors.Authorizationf("writer access to team %s denied", teamID)
	}
	return nil
}
