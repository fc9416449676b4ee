package grant

import "time"

// ApprovalGrant is the flat storage shape of a grant. Exactly one of
// ProfileID, OrgRoleID and DepartmentID is set. ScopeKey is the canonical
// scope string backing the (tenant_id, role_type, scope_key) unique index.
type ApprovalGrant struct {
	ID             int64     `gorm:"primaryKey"`
	TenantID       int64     `gorm:"column:tenant_id;not null;uniqueIndex:ux_approval_grants_scope"`
	RoleType       string    `gorm:"column:role_type;not null;uniqueIndex:ux_approval_grants_scope"`
	ScopeKey       string    `gorm:"column:scope_key;not null;uniqueIndex:ux_approval_grants_scope"`
	ProfileID      *int64    `gorm:"column:profile_id"`
	OrgRoleID      *int64    `gorm:"column:org_role_id"`
	DepartmentID   *int64    `gorm:"column:department_id"`
	IncludeSubtree bool      `gorm:"column:include_subtree;not null;default:false"`
	CreatedBy      *int64    `gorm:"column:created_by"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ApprovalGrant) TableName() string {
	return "approval_grants"
}
