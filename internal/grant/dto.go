package grant

import "time"

type CreateGrantDTO struct {
	RoleType       string `json:"role_type" validate:"required,oneof=engineer isg"`
	IdentityID     *int64 `json:"identity_id,omitempty"`
	OrgRoleID      *int64 `json:"org_role_id,omitempty"`
	DepartmentID   *int64 `json:"department_id,omitempty"`
	IncludeSubtree bool   `json:"include_subtree"`
}

func (d CreateGrantDTO) Scope() (Scope, error) {
	return NewScope(d.IdentityID, d.OrgRoleID, d.DepartmentID, d.IncludeSubtree)
}

type GrantResponse struct {
	ID             int64     `json:"id"`
	RoleType       string    `json:"role_type"`
	ScopeKind      string    `json:"scope_kind"`
	IdentityID     *int64    `json:"identity_id,omitempty"`
	OrgRoleID      *int64    `json:"org_role_id,omitempty"`
	DepartmentID   *int64    `json:"department_id,omitempty"`
	IncludeSubtree bool      `json:"include_subtree"`
	CreatedAt      time.Time `json:"created_at"`
}

type GrantsResponse struct {
	Grants []GrantResponse `json:"grants"`
}

type CreateGrantResponse struct {
	ID int64 `json:"id"`
}
