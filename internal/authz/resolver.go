package authz

import (
	"github.com/frahmantamala/workpermit/internal/directory"
	"github.com/frahmantamala/workpermit/internal/grant"
)

type Reason string

const (
	ReasonIdentityGrant   Reason = "identity_grant"
	ReasonOrgRoleGrant    Reason = "org_role_grant"
	ReasonDepartmentGrant Reason = "department_grant"
	ReasonSubtreeGrant    Reason = "department_subtree_grant"
	ReasonTenantManager   Reason = "tenant_manager"
	ReasonNoGrant         Reason = "no_matching_grant"
	ReasonOtherTenant     Reason = "other_tenant"
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
	// GrantID is the grant that matched, zero for manager or denial.
	GrantID int64 `json:"grant_id,omitempty"`
}

// Resolver answers eligibility for one tenant and role type against a fixed
// snapshot of grants and the department tree. Build a new one per request;
// it holds no cache beyond its own lifetime.
type Resolver struct {
	tenantID int64
	roleType grant.RoleType

	identityGrants   map[int64]int64
	roleGrants       map[int64]int64
	departmentGrants []grant.Grant
	tree             *directory.Tree
}

// NewResolver keeps only the grants for tenantID and roleType. tree may be
// nil when no department grant includes its subtree.
func NewResolver(tenantID int64, roleType grant.RoleType, grants []grant.Grant, tree *directory.Tree) *Resolver {
	r := &Resolver{
		tenantID:       tenantID,
		roleType:       roleType,
		identityGrants: make(map[int64]int64),
		roleGrants:     make(map[int64]int64),
		tree:           tree,
	}
	if r.tree == nil {
		r.tree = directory.NewTree(nil)
	}

	for _, g := range grants {
		if g.TenantID != tenantID || g.RoleType != roleType {
			continue
		}
		switch s := g.Scope.(type) {
		case grant.ScopeIdentity:
			r.identityGrants[s.IdentityID] = g.ID
		case grant.ScopeRole:
			r.roleGrants[s.OrgRoleID] = g.ID
		case grant.ScopeDepartment:
			r.departmentGrants = append(r.departmentGrants, g)
		}
	}
	return r
}

// NeedsTree reports whether any grant requires subtree containment, so the
// caller can skip loading departments otherwise.
func NeedsTree(grants []grant.Grant) bool {
	for _, g := range grants {
		if s, ok := g.Scope.(grant.ScopeDepartment); ok && s.IncludeSubtree {
			return true
		}
	}
	return false
}

// Decide applies the rules in order: direct identity grant, org role grant,
// department grant (exact or subtree), tenant manager. Grants whose target
// no longer exists simply never match.
func (r *Resolver) Decide(identity *directory.Identity, memberships []directory.Membership) Decision {
	if identity == nil {
		return Decision{Reason: ReasonNoGrant}
	}
	if identity.TenantID != r.tenantID {
		return Decision{Reason: ReasonOtherTenant}
	}

	if id, ok := r.identityGrants[identity.ID]; ok {
		return Decision{Allowed: true, Reason: ReasonIdentityGrant, GrantID: id}
	}

	for _, m := range memberships {
		if m.IdentityID != identity.ID || m.OrgRoleID == nil {
			continue
		}
		if id, ok := r.roleGrants[*m.OrgRoleID]; ok {
			return Decision{Allowed: true, Reason: ReasonOrgRoleGrant, GrantID: id}
		}
	}

	for _, m := range memberships {
		if m.IdentityID != identity.ID {
			continue
		}
		if d, ok := r.matchDepartment(m.DepartmentID); ok {
			return d
		}
	}

	if identity.IsTenantManager() {
		return Decision{Allowed: true, Reason: ReasonTenantManager}
	}
	return Decision{Reason: ReasonNoGrant}
}

func (r *Resolver) matchDepartment(departmentID int64) (Decision, bool) {
	for _, g := range r.departmentGrants {
		s := g.Scope.(grant.ScopeDepartment)
		if s.DepartmentID == departmentID {
			return Decision{Allowed: true, Reason: ReasonDepartmentGrant, GrantID: g.ID}, true
		}
	}
	for _, g := range r.departmentGrants {
		s := g.Scope.(grant.ScopeDepartment)
		if s.IncludeSubtree && r.tree.IsAncestorOrSelf(s.DepartmentID, departmentID) {
			return Decision{Allowed: true, Reason: ReasonSubtreeGrant, GrantID: g.ID}, true
		}
	}
	return Decision{}, false
}
