package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	datamodel "github.com/frahmantamala/workpermit/internal/core/datamodel/directory"
	"github.com/frahmantamala/workpermit/internal/directory"
)

const profileColumns = "id, tenant_id, national_id, employee_no, full_name, platform_role"

type DirectoryRepository struct {
	db *sqlx.DB
}

func NewDirectoryRepository(db *sqlx.DB) directory.Directory {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) GetIdentity(ctx context.Context, id int64) (*directory.Identity, error) {
	var row datamodel.Profile
	err := r.db.GetContext(ctx, &row, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrNotFound
		}
		return nil, fmt.Errorf("get identity %d: %w", id, err)
	}
	return toIdentity(row), nil
}

func (r *DirectoryRepository) FindIdentity(ctx context.Context, tenantID int64, kind directory.IdentifierKind, identifier string) (*directory.Identity, error) {
	column := "employee_no"
	if kind == directory.IdentifierNationalID {
		column = "national_id"
	}

	var row datamodel.Profile
	query := "SELECT " + profileColumns + " FROM profiles WHERE tenant_id = $1 AND " + column + " = $2 LIMIT 1"
	err := r.db.GetContext(ctx, &row, query, tenantID, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrNotFound
		}
		return nil, fmt.Errorf("find identity by %s: %w", kind, err)
	}
	return toIdentity(row), nil
}

func (r *DirectoryRepository) ListIdentities(ctx context.Context, tenantID int64) ([]directory.Identity, error) {
	var rows []datamodel.Profile
	err := r.db.SelectContext(ctx, &rows, "SELECT "+profileColumns+" FROM profiles WHERE tenant_id = $1 ORDER BY full_name", tenantID)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	out := make([]directory.Identity, 0, len(rows))
	for _, row := range rows {
		out = append(out, *toIdentity(row))
	}
	return out, nil
}

func (r *DirectoryRepository) Memberships(ctx context.Context, tenantID, identityID int64) ([]directory.Membership, error) {
	var rows []datamodel.DepartmentMember
	err := r.db.SelectContext(ctx, &rows,
		"SELECT profile_id, department_id, org_role_id FROM department_members WHERE tenant_id = $1 AND profile_id = $2",
		tenantID, identityID)
	if err != nil {
		return nil, fmt.Errorf("list memberships for identity %d: %w", identityID, err)
	}
	return toMemberships(rows), nil
}

func (r *DirectoryRepository) TenantMemberships(ctx context.Context, tenantID int64) ([]directory.Membership, error) {
	var rows []datamodel.DepartmentMember
	err := r.db.SelectContext(ctx, &rows,
		"SELECT profile_id, department_id, org_role_id FROM department_members WHERE tenant_id = $1",
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list tenant memberships: %w", err)
	}
	return toMemberships(rows), nil
}

func (r *DirectoryRepository) DepartmentTree(ctx context.Context, tenantID int64) (*directory.Tree, error) {
	var rows []datamodel.Department
	err := r.db.SelectContext(ctx, &rows,
		"SELECT id, tenant_id, name, parent_id FROM departments WHERE tenant_id = $1",
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("load department tree: %w", err)
	}

	departments := make([]directory.Department, 0, len(rows))
	for _, row := range rows {
		departments = append(departments, directory.Department{
			ID:       row.ID,
			TenantID: row.TenantID,
			Name:     row.Name,
			ParentID: row.ParentID,
		})
	}
	return directory.NewTree(departments), nil
}

func (r *DirectoryRepository) OrgRoles(ctx context.Context, tenantID int64) ([]directory.OrgRole, error) {
	var rows []datamodel.OrgRole
	err := r.db.SelectContext(ctx, &rows,
		"SELECT id, tenant_id, name, level_weight FROM org_roles WHERE tenant_id = $1 ORDER BY level_weight DESC, name",
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list org roles: %w", err)
	}

	roles := make([]directory.OrgRole, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, directory.OrgRole{
			ID:          row.ID,
			TenantID:    row.TenantID,
			Name:        row.Name,
			LevelWeight: row.LevelWeight,
		})
	}
	return roles, nil
}

func toIdentity(row datamodel.Profile) *directory.Identity {
	id := &directory.Identity{
		ID:           row.ID,
		TenantID:     row.TenantID,
		FullName:     row.FullName,
		PlatformRole: directory.PlatformRole(row.PlatformRole),
	}
	if row.NationalID != nil {
		id.NationalID = *row.NationalID
	}
	if row.EmployeeNo != nil {
		id.EmployeeNo = *row.EmployeeNo
	}
	return id
}

func toMemberships(rows []datamodel.DepartmentMember) []directory.Membership {
	out := make([]directory.Membership, 0, len(rows))
	for _, row := range rows {
		out = append(out, directory.Membership{
			IdentityID:   row.ProfileID,
			DepartmentID: row.DepartmentID,
			OrgRoleID:    row.OrgRoleID,
		})
	}
	return out
}
