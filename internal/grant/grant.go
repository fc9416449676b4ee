package grant

import (
	"fmt"
	"time"

	errors "github.com/frahmantamala/workpermit/internal"
	grantDatamodel "github.com/frahmantamala/workpermit/internal/core/datamodel/grant"
)

type RoleType string

const (
	RoleEngineer RoleType = "engineer"
	RoleISG      RoleType = "isg"
)

var RoleTypes = []RoleType{RoleEngineer, RoleISG}

func ParseRoleType(s string) (RoleType, error) {
	switch RoleType(s) {
	case RoleEngineer, RoleISG:
		return RoleType(s), nil
	}
	return "", errors.ErrInvalidRoleType
}

func (r RoleType) Valid() bool {
	return r == RoleEngineer || r == RoleISG
}

type ScopeKind string

const (
	ScopeKindIdentity   ScopeKind = "identity"
	ScopeKindRole       ScopeKind = "role"
	ScopeKindDepartment ScopeKind = "department"
)

// Scope is what a grant targets: one person, everyone holding an org role,
// or the members of a department (optionally its whole subtree).
type Scope interface {
	Kind() ScopeKind
	// Key is the canonical form used for duplicate detection.
	Key() string
	isScope()
}

type ScopeIdentity struct {
	IdentityID int64
}

func (ScopeIdentity) Kind() ScopeKind { return ScopeKindIdentity }
func (s ScopeIdentity) Key() string   { return fmt.Sprintf("identity:%d", s.IdentityID) }
func (ScopeIdentity) isScope()        {}

type ScopeRole struct {
	OrgRoleID int64
}

func (ScopeRole) Kind() ScopeKind { return ScopeKindRole }
func (s ScopeRole) Key() string   { return fmt.Sprintf("role:%d", s.OrgRoleID) }
func (ScopeRole) isScope()        {}

type ScopeDepartment struct {
	DepartmentID   int64
	IncludeSubtree bool
}

func (ScopeDepartment) Kind() ScopeKind { return ScopeKindDepartment }
func (s ScopeDepartment) Key() string {
	if s.IncludeSubtree {
		return fmt.Sprintf("department:%d:subtree", s.DepartmentID)
	}
	return fmt.Sprintf("department:%d", s.DepartmentID)
}
func (ScopeDepartment) isScope() {}

// NewScope builds a scope from the three optional targets. Exactly one must
// be set and positive.
func NewScope(identityID, orgRoleID, departmentID *int64, includeSubtree bool) (Scope, error) {
	set := 0
	for _, v := range []*int64{identityID, orgRoleID, departmentID} {
		if v != nil {
			if *v <= 0 {
				return nil, errors.ErrInvalidScope
			}
			set++
		}
	}
	if set != 1 {
		return nil, errors.ErrInvalidScope
	}

	switch {
	case identityID != nil:
		return ScopeIdentity{IdentityID: *identityID}, nil
	case orgRoleID != nil:
		return ScopeRole{OrgRoleID: *orgRoleID}, nil
	default:
		return ScopeDepartment{DepartmentID: *departmentID, IncludeSubtree: includeSubtree}, nil
	}
}

func validScope(scope Scope) bool {
	switch s := scope.(type) {
	case ScopeIdentity:
		return s.IdentityID > 0
	case ScopeRole:
		return s.OrgRoleID > 0
	case ScopeDepartment:
		return s.DepartmentID > 0
	}
	return false
}

type Grant struct {
	ID        int64
	TenantID  int64
	RoleType  RoleType
	Scope     Scope
	CreatedBy *int64
	CreatedAt time.Time
}

func (g *Grant) ToResponse() GrantResponse {
	resp := GrantResponse{
		ID:        g.ID,
		RoleType:  string(g.RoleType),
		ScopeKind: string(g.Scope.Kind()),
		CreatedAt: g.CreatedAt,
	}
	switch s := g.Scope.(type) {
	case ScopeIdentity:
		resp.IdentityID = &s.IdentityID
	case ScopeRole:
		resp.OrgRoleID = &s.OrgRoleID
	case ScopeDepartment:
		resp.DepartmentID = &s.DepartmentID
		resp.IncludeSubtree = s.IncludeSubtree
	}
	return resp
}

func ToDataModel(g *Grant) *grantDatamodel.ApprovalGrant {
	row := &grantDatamodel.ApprovalGrant{
		ID:        g.ID,
		TenantID:  g.TenantID,
		RoleType:  string(g.RoleType),
		ScopeKey:  g.Scope.Key(),
		CreatedBy: g.CreatedBy,
		CreatedAt: g.CreatedAt,
	}
	switch s := g.Scope.(type) {
	case ScopeIdentity:
		id := s.IdentityID
		row.ProfileID = &id
	case ScopeRole:
		id := s.OrgRoleID
		row.OrgRoleID = &id
	case ScopeDepartment:
		id := s.DepartmentID
		row.DepartmentID = &id
		row.IncludeSubtree = s.IncludeSubtree
	}
	return row
}

// FromDataModel reports false for rows whose scope columns do not describe
// exactly one target; callers skip them.
func FromDataModel(row *grantDatamodel.ApprovalGrant) (*Grant, bool) {
	scope, err := NewScope(row.ProfileID, row.OrgRoleID, row.DepartmentID, row.IncludeSubtree)
	if err != nil {
		return nil, false
	}
	return &Grant{
		ID:        row.ID,
		TenantID:  row.TenantID,
		RoleType:  RoleType(row.RoleType),
		Scope:     scope,
		CreatedBy: row.CreatedBy,
		CreatedAt: row.CreatedAt,
	}, true
}
