package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	permitDatamodel "github.com/frahmantamala/workpermit/internal/core/datamodel/permit"
	"github.com/frahmantamala/workpermit/internal/permit"
)

type PermitRepository struct {
	db *gorm.DB
}

func NewPermitRepository(db *gorm.DB) *PermitRepository {
	return &PermitRepository{db: db}
}

var _ permit.RepositoryAPI = (*PermitRepository)(nil)

func (r *PermitRepository) Create(ctx context.Context, p *permit.WorkPermit) error {
	row := permit.ToDataModel(p)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create permit: %w", err)
	}

	p.ID = row.ID
	for i := range p.Coworkers {
		p.Coworkers[i].ID = row.Coworkers[i].ID
	}
	return nil
}

func (r *PermitRepository) GetByID(ctx context.Context, tenantID, id int64) (*permit.WorkPermit, error) {
	var row permitDatamodel.WorkPermit
	err := r.db.WithContext(ctx).
		Preload("Coworkers", orderByID).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&row).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPermitNotFound
		}
		return nil, fmt.Errorf("get permit %d: %w", id, err)
	}
	return permit.FromDataModel(&row), nil
}

func (r *PermitRepository) List(ctx context.Context, tenantID int64, filter permit.ListFilter, limit, offset int) ([]*permit.WorkPermit, error) {
	query := r.db.WithContext(ctx).
		Preload("Coworkers", orderByID).
		Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.CreatorID > 0 {
		query = query.Where("creator_id = ?", filter.CreatorID)
	}

	var rows []*permitDatamodel.WorkPermit
	err := query.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list permits: %w", err)
	}

	out := make([]*permit.WorkPermit, 0, len(rows))
	for _, row := range rows {
		out = append(out, permit.FromDataModel(row))
	}
	return out, nil
}

// Delete refuses approved permits. The status guard on the final delete
// catches an approval that lands between the read and the write.
func (r *PermitRepository) Delete(ctx context.Context, tenantID, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockPermit(tx, tenantID, id)
		if err != nil {
			return err
		}
		if row.Status == string(permit.StatusApproved) {
			return errors.ErrInvalidPermitStatus
		}

		if err := tx.Where("permit_id = ?", id).Delete(&permitDatamodel.WorkPermitCoworker{}).Error; err != nil {
			return fmt.Errorf("delete coworkers of permit %d: %w", id, err)
		}

		res := tx.Where("tenant_id = ? AND id = ? AND status <> ?", tenantID, id, string(permit.StatusApproved)).
			Delete(&permitDatamodel.WorkPermit{})
		if res.Error != nil {
			return fmt.Errorf("delete permit %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete permit %d: %w", id, retry.ErrConflict)
		}
		return nil
	})
}

// Transition is a compare-and-set on the status, approval and rejection
// columns. The row is locked where the database supports it, and the update
// only matches if those columns still hold the values fn saw.
func (r *PermitRepository) Transition(ctx context.Context, tenantID, id int64, fn func(p *permit.WorkPermit) error) (*permit.WorkPermit, error) {
	var out *permit.WorkPermit
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockPermit(tx, tenantID, id)
		if err != nil {
			return err
		}

		current := permit.FromDataModel(row)
		if err := fn(current); err != nil {
			return err
		}
		next := permit.ToDataModel(current)

		query := tx.Model(&permitDatamodel.WorkPermit{}).
			Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, row.Status)
		query = whereUnchanged(query, "engineer_approved_by", row.EngineerApprovedBy)
		query = whereUnchanged(query, "isg_approved_by", row.IsgApprovedBy)
		query = whereUnchanged(query, "rejected_by", row.RejectedBy)

		res := query.Updates(map[string]interface{}{
			"status":               next.Status,
			"engineer_approved_by": next.EngineerApprovedBy,
			"engineer_approved_at": next.EngineerApprovedAt,
			"isg_approved_by":      next.IsgApprovedBy,
			"isg_approved_at":      next.IsgApprovedAt,
			"rejected_by":          next.RejectedBy,
			"rejected_at":          next.RejectedAt,
			"rejection_reason":     next.RejectionReason,
			"updated_at":           next.UpdatedAt,
		})
		if res.Error != nil {
			return fmt.Errorf("update permit %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("update permit %d: %w", id, retry.ErrConflict)
		}

		var coworkers []permitDatamodel.WorkPermitCoworker
		if err := tx.Where("permit_id = ?", id).Order("id ASC").Find(&coworkers).Error; err != nil {
			return fmt.Errorf("load coworkers of permit %d: %w", id, err)
		}
		next.Coworkers = coworkers
		out = permit.FromDataModel(next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lockPermit(tx *gorm.DB, tenantID, id int64) (*permitDatamodel.WorkPermit, error) {
	var row permitDatamodel.WorkPermit
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&row).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPermitNotFound
		}
		return nil, fmt.Errorf("lock permit %d: %w", id, err)
	}
	return &row, nil
}

func whereUnchanged(query *gorm.DB, column string, value *int64) *gorm.DB {
	if value == nil {
		return query.Where(column + " IS NULL")
	}
	return query.Where(column+" = ?", *value)
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
