package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	grantDatamodel "github.com/frahmantamala/workpermit/internal/core/datamodel/grant"
	"github.com/frahmantamala/workpermit/internal/grant"
)

const scopeIndex = "ux_approval_grants_scope"

type GrantRepository struct {
	db *gorm.DB
}

func NewGrantRepository(db *gorm.DB) grant.RepositoryAPI {
	return &GrantRepository{db: db}
}

func (r *GrantRepository) Create(ctx context.Context, row *grantDatamodel.ApprovalGrant) error {
	err := r.db.WithContext(ctx).Create(row).Error
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return errors.ErrDuplicateGrant.WithCause(err)
	}
	return fmt.Errorf("create approval grant: %w", err)
}

func (r *GrantRepository) Delete(ctx context.Context, tenantID, id int64) error {
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&grantDatamodel.ApprovalGrant{}).Error
	if err != nil {
		return fmt.Errorf("delete approval grant %d: %w", id, err)
	}
	return nil
}

func (r *GrantRepository) List(ctx context.Context, tenantID int64, roleType string) ([]*grantDatamodel.ApprovalGrant, error) {
	var rows []*grantDatamodel.ApprovalGrant
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if roleType != "" {
		query = query.Where("role_type = ?", roleType)
	}
	if err := query.Order("role_type ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list approval grants: %w", err)
	}
	return rows, nil
}

// isUniqueViolation covers PostgreSQL, gorm's translated error and SQLite,
// which reports the constraint only in its message.
func isUniqueViolation(err error) bool {
	if retry.IsUniqueViolation(err, scopeIndex) || stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
