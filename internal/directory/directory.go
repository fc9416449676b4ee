package directory

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("directory: record not found")

type PlatformRole string

const (
	PlatformRoleManager PlatformRole = "tenant_manager"
	PlatformRoleMember  PlatformRole = "member"
)

type IdentifierKind int

const (
	IdentifierEmployeeNo IdentifierKind = iota
	IdentifierNationalID
)

func (k IdentifierKind) String() string {
	if k == IdentifierNationalID {
		return "national_id"
	}
	return "employee_no"
}

// ClassifyIdentifier decides by shape alone: exactly 11 ASCII digits is a
// national ID, anything else is an employee number.
func ClassifyIdentifier(identifier string) IdentifierKind {
	if len(identifier) != 11 {
		return IdentifierEmployeeNo
	}
	for i := 0; i < len(identifier); i++ {
		if identifier[i] < '0' || identifier[i] > '9' {
			return IdentifierEmployeeNo
		}
	}
	return IdentifierNationalID
}

type Identity struct {
	ID           int64
	TenantID     int64
	NationalID   string
	EmployeeNo   string
	FullName     string
	PlatformRole PlatformRole
}

func (i *Identity) IsTenantManager() bool {
	return i.PlatformRole == PlatformRoleManager
}

// MatchesSignature compares verbatim against the stored identifiers. Empty
// stored values never match.
func (i *Identity) MatchesSignature(signature string) bool {
	if signature == "" {
		return false
	}
	return (i.NationalID != "" && signature == i.NationalID) ||
		(i.EmployeeNo != "" && signature == i.EmployeeNo)
}

// Membership places an identity in a department, optionally holding an org
// role there.
type Membership struct {
	IdentityID   int64
	DepartmentID int64
	OrgRoleID    *int64
}

type OrgRole struct {
	ID          int64
	TenantID    int64
	Name        string
	LevelWeight int
}

type Department struct {
	ID       int64
	TenantID int64
	Name     string
	ParentID *int64
}

// Directory is the read-only view of people, departments and job titles that
// this service consumes. Profile and org-chart editing live elsewhere.
type Directory interface {
	GetIdentity(ctx context.Context, id int64) (*Identity, error)
	FindIdentity(ctx context.Context, tenantID int64, kind IdentifierKind, identifier string) (*Identity, error)
	ListIdentities(ctx context.Context, tenantID int64) ([]Identity, error)
	Memberships(ctx context.Context, tenantID, identityID int64) ([]Membership, error)
	TenantMemberships(ctx context.Context, tenantID int64) ([]Membership, error)
	DepartmentTree(ctx context.Context, tenantID int64) (*Tree, error)
	OrgRoles(ctx context.Context, tenantID int64) ([]OrgRole, error)
}
