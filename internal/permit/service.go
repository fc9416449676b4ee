package permit

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	"github.com/frahmantamala/workpermit/internal/core/events"
	"github.com/frahmantamala/workpermit/internal/directory"
	"github.com/frahmantamala/workpermit/internal/grant"
	"github.com/frahmantamala/workpermit/pkg/logger"
)

type ListFilter struct {
	Status    Status
	CreatorID int64
}

type RepositoryAPI interface {
	// Create stores the permit and its coworkers, filling in ids.
	Create(ctx context.Context, p *WorkPermit) error
	// GetByID returns internal.ErrPermitNotFound for missing permits and for
	// permits of another tenant.
	GetByID(ctx context.Context, tenantID, id int64) (*WorkPermit, error)
	List(ctx context.Context, tenantID int64, filter ListFilter, limit, offset int) ([]*WorkPermit, error)
	// Delete removes a permit that is not approved.
	Delete(ctx context.Context, tenantID, id int64) error
	// Transition applies fn to the current state and writes the result only
	// if the row has not changed since it was read. A lost race is reported
	// as retry.ErrConflict. Errors returned by fn abort without writing.
	Transition(ctx context.Context, tenantID, id int64, fn func(p *WorkPermit) error) (*WorkPermit, error)
}

type Authorizer interface {
	IsAuthorized(ctx context.Context, tenantID int64, roleType grant.RoleType, identityID int64) (bool, error)
}

type Recorder interface {
	RecordSubmission(outcome string)
	RecordApproval(roleType, outcome string)
	RecordRejection()
}

type Service struct {
	repo       RepositoryAPI
	validator  *SubmissionValidator
	authorizer Authorizer
	directory  directory.Directory
	publisher  events.Publisher
	metrics    Recorder
	retry      retry.Policy
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(
	repo RepositoryAPI,
	dir directory.Directory,
	authorizer Authorizer,
	publisher events.Publisher,
	metrics Recorder,
	policy retry.Policy,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		validator:  NewSubmissionValidator(dir, policy, logger),
		authorizer: authorizer,
		directory:  dir,
		publisher:  publisher,
		metrics:    metrics,
		retry:      policy,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) CreatePermit(ctx context.Context, actor errors.Actor, dto CreatePermitDTO) (*WorkPermit, error) {
	log := logger.FromOr(ctx, s.logger)

	p, err := s.validator.Validate(ctx, actor.TenantID, actor.IdentityID, dto)
	if err != nil {
		log.Warn("permit submission rejected", "error", err, "creator_id", actor.IdentityID)
		s.recordSubmission(submissionOutcome(err))
		return nil, err
	}

	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := s.repo.Create(ctx, p); err != nil {
		log.Error("failed to create permit", "error", err, "creator_id", actor.IdentityID)
		s.recordSubmission("error")
		return nil, err
	}

	s.recordSubmission("accepted")
	s.publish(ctx, events.NewPermitSubmittedEvent(p.ID, p.TenantID, p.CreatorID, len(p.Coworkers)))

	log.Info("permit submitted",
		"permit_id", p.ID,
		"creator_id", p.CreatorID,
		"coworkers", len(p.Coworkers))
	return p, nil
}

func (s *Service) GetPermit(ctx context.Context, tenantID, id int64) (*WorkPermit, error) {
	var p *WorkPermit
	err := retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByID(ctx, tenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListPermits(ctx context.Context, tenantID int64, filter ListFilter, limit, offset int) ([]*WorkPermit, error) {
	if filter.Status != "" && filter.Status != StatusPending && filter.Status != StatusApproved && filter.Status != StatusRejected {
		return nil, errors.NewValidationFieldError("status", "status must be pending, approved or rejected", errors.ErrCodeValidationFailed)
	}

	var permits []*WorkPermit
	err := retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		var err error
		permits, err = s.repo.List(ctx, tenantID, filter, limit, offset)
		return err
	})
	if err != nil {
		logger.FromOr(ctx, s.logger).Error("failed to list permits", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	return permits, nil
}

// ApprovePermit signs the role's slot as actor. The eligibility check runs
// first, so an ineligible actor sees Unauthorized even when the slot is
// already signed. The write itself is a compare-and-set retried on conflict.
func (s *Service) ApprovePermit(ctx context.Context, actor errors.Actor, permitID int64, roleType grant.RoleType) (*WorkPermit, error) {
	log := logger.FromOr(ctx, s.logger).With("permit_id", permitID, "role_type", roleType, "actor_id", actor.IdentityID)

	if !roleType.Valid() {
		return nil, errors.ErrInvalidRoleType
	}

	allowed, err := s.authorizer.IsAuthorized(ctx, actor.TenantID, roleType, actor.IdentityID)
	if err != nil {
		log.Error("approval eligibility check failed", "error", err)
		s.recordApproval(roleType, "error")
		return nil, err
	}
	if !allowed {
		log.Warn("approval denied: actor not eligible")
		s.recordApproval(roleType, "unauthorized")
		return nil, errors.ErrUnauthorized
	}

	var updated *WorkPermit
	var approvedAt time.Time
	err = retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		approvedAt = s.now()
		var err error
		updated, err = s.repo.Transition(ctx, actor.TenantID, permitID, func(p *WorkPermit) error {
			return p.Approve(roleType, actor.IdentityID, approvedAt)
		})
		return err
	})
	if err != nil {
		outcome := "error"
		switch {
		case stderrors.Is(err, errors.ErrAlreadyApproved):
			outcome = "already_approved"
			log.Info("approval slot already signed")
		case stderrors.Is(err, errors.ErrPermitNotFound):
			outcome = "not_found"
		case stderrors.Is(err, errors.ErrInvalidPermitStatus):
			outcome = "invalid_status"
		default:
			log.Error("failed to record approval", "error", err)
		}
		s.recordApproval(roleType, outcome)
		return nil, err
	}

	s.recordApproval(roleType, "approved")
	s.publish(ctx, events.NewPermitSlotApprovedEvent(updated.ID, updated.TenantID, string(roleType), actor.IdentityID, approvedAt, string(updated.Status)))
	if updated.Status == StatusApproved {
		s.publish(ctx, events.NewPermitApprovedEvent(updated.ID, updated.TenantID, updated.CreatorID, *updated.Engineer.By, *updated.ISG.By))
	}

	log.Info("permit slot approved", "status", updated.Status)
	return updated, nil
}

// RejectPermit is restricted to tenant managers and only applies to pending
// permits.
func (s *Service) RejectPermit(ctx context.Context, actor errors.Actor, permitID int64, reason string) (*WorkPermit, error) {
	log := logger.FromOr(ctx, s.logger).With("permit_id", permitID, "actor_id", actor.IdentityID)

	identity, err := s.actorIdentity(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !identity.IsTenantManager() {
		return nil, errors.ErrManagerRequired
	}

	var updated *WorkPermit
	err = retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.Transition(ctx, actor.TenantID, permitID, func(p *WorkPermit) error {
			return p.Reject(actor.IdentityID, reason, s.now())
		})
		return err
	})
	if err != nil {
		log.Warn("permit rejection failed", "error", err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordRejection()
	}
	s.publish(ctx, events.NewPermitRejectedEvent(updated.ID, updated.TenantID, actor.IdentityID, updated.RejectionReason))
	log.Info("permit rejected")
	return updated, nil
}

// DeletePermit lets the creator or a tenant manager remove a permit that has
// not reached approved.
func (s *Service) DeletePermit(ctx context.Context, actor errors.Actor, permitID int64) error {
	identity, err := s.actorIdentity(ctx, actor)
	if err != nil {
		return err
	}

	p, err := s.GetPermit(ctx, actor.TenantID, permitID)
	if err != nil {
		return err
	}
	if err := p.CanDelete(identity); err != nil {
		return err
	}

	err = retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		return s.repo.Delete(ctx, actor.TenantID, permitID)
	})
	if err != nil {
		logger.FromOr(ctx, s.logger).Error("failed to delete permit", "error", err, "permit_id", permitID)
		return err
	}

	logger.FromOr(ctx, s.logger).Info("permit deleted", "permit_id", permitID, "actor_id", actor.IdentityID)
	return nil
}

func (s *Service) actorIdentity(ctx context.Context, actor errors.Actor) (*directory.Identity, error) {
	var identity *directory.Identity
	err := retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		var err error
		identity, err = s.directory.GetIdentity(ctx, actor.IdentityID)
		return err
	})
	if stderrors.Is(err, directory.ErrNotFound) {
		return nil, errors.ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("load actor %d: %w", actor.IdentityID, err)
	}
	if identity.TenantID != actor.TenantID {
		return nil, errors.ErrTenantMismatch
	}
	return identity, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func (s *Service) recordSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(outcome)
	}
}

func (s *Service) recordApproval(roleType grant.RoleType, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordApproval(string(roleType), outcome)
	}
}

func submissionOutcome(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrIdentityMismatch):
		return "identity_mismatch"
	case stderrors.Is(err, errors.ErrUnknownCoworker):
		return "unknown_coworker"
	case stderrors.Is(err, errors.ErrValidationFailed):
		return "invalid"
	}
	return "error"
}
