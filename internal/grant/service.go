package grant

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	grantDatamodel "github.com/frahmantamala/workpermit/internal/core/datamodel/grant"
)

type RepositoryAPI interface {
	// Create fails with internal.ErrDuplicateGrant when the
	// (tenant, role_type, scope_key) triple already exists.
	Create(ctx context.Context, row *grantDatamodel.ApprovalGrant) error
	// Delete succeeds when nothing matches.
	Delete(ctx context.Context, tenantID, id int64) error
	List(ctx context.Context, tenantID int64, roleType string) ([]*grantDatamodel.ApprovalGrant, error)
}

type Service struct {
	repo   RepositoryAPI
	retry  retry.Policy
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, policy retry.Policy, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		retry:  policy,
		logger: logger,
	}
}

// AddGrant stores a new rule and returns its id. Not retried: a transient
// failure after commit would turn the retry into a DuplicateGrant.
func (s *Service) AddGrant(ctx context.Context, tenantID int64, roleType RoleType, scope Scope, createdBy int64) (int64, error) {
	if !roleType.Valid() {
		return 0, errors.ErrInvalidRoleType
	}
	if scope == nil || !validScope(scope) {
		return 0, errors.ErrInvalidScope
	}

	g := &Grant{
		TenantID:  tenantID,
		RoleType:  roleType,
		Scope:     scope,
		CreatedAt: time.Now(),
	}
	if createdBy > 0 {
		g.CreatedBy = &createdBy
	}

	row := ToDataModel(g)
	if err := s.repo.Create(ctx, row); err != nil {
		if stderrors.Is(err, errors.ErrDuplicateGrant) || isDuplicate(err) {
			s.logger.Warn("duplicate approval grant rejected",
				"tenant_id", tenantID,
				"role_type", roleType,
				"scope", scope.Key())
			return 0, errors.ErrDuplicateGrant
		}
		s.logger.Error("failed to create approval grant", "error", err, "tenant_id", tenantID)
		return 0, err
	}

	s.logger.Info("approval grant added",
		"grant_id", row.ID,
		"tenant_id", tenantID,
		"role_type", roleType,
		"scope", scope.Key())
	return row.ID, nil
}

// RemoveGrant is idempotent; a grant already gone (including by cascade) is
// not an error.
func (s *Service) RemoveGrant(ctx context.Context, tenantID, id int64) error {
	err := retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		return s.repo.Delete(ctx, tenantID, id)
	})
	if err != nil {
		s.logger.Error("failed to remove approval grant", "error", err, "grant_id", id, "tenant_id", tenantID)
		return err
	}

	s.logger.Info("approval grant removed", "grant_id", id, "tenant_id", tenantID)
	return nil
}

// ListGrants returns the tenant's grants, optionally narrowed to one role
// type. Malformed rows are skipped.
func (s *Service) ListGrants(ctx context.Context, tenantID int64, roleType *RoleType) ([]Grant, error) {
	filter := ""
	if roleType != nil {
		if !roleType.Valid() {
			return nil, errors.ErrInvalidRoleType
		}
		filter = string(*roleType)
	}

	var rows []*grantDatamodel.ApprovalGrant
	err := retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		var err error
		rows, err = s.repo.List(ctx, tenantID, filter)
		return err
	})
	if err != nil {
		s.logger.Error("failed to list approval grants", "error", err, "tenant_id", tenantID)
		return nil, err
	}

	grants := make([]Grant, 0, len(rows))
	for _, row := range rows {
		g, ok := FromDataModel(row)
		if !ok {
			s.logger.Warn("skipping malformed approval grant", "grant_id", row.ID, "tenant_id", tenantID)
			continue
		}
		grants = append(grants, *g)
	}
	return grants, nil
}

func isDuplicate(err error) bool {
	return retry.IsUniqueViolation(err, "")
}
