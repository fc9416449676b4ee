package permit

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	"github.com/frahmantamala/workpermit/internal/core/common/validation"
	"github.com/frahmantamala/workpermit/internal/directory"
)

// SubmissionValidator turns a submission into an unsaved permit, or explains
// why it cannot be accepted. Checks run in order: request shape, checklists,
// creator signature, coworkers.
type SubmissionValidator struct {
	directory directory.Directory
	retry     retry.Policy
	logger    *slog.Logger
}

func NewSubmissionValidator(dir directory.Directory, policy retry.Policy, logger *slog.Logger) *SubmissionValidator {
	return &SubmissionValidator{
		directory: dir,
		retry:     policy,
		logger:    logger,
	}
}

func (v *SubmissionValidator) Validate(ctx context.Context, tenantID, creatorID int64, dto CreatePermitDTO) (*WorkPermit, error) {
	if appErr := validation.Struct(dto); appErr != nil {
		return nil, appErr
	}

	jobTypes := NewChecklist(dto.JobTypes, dto.JobTypesOther)
	hazards := NewChecklist(dto.Hazards, dto.HazardsOther)
	ppe := NewChecklist(dto.PPE, dto.PPEOther)
	precautions := NewChecklist(dto.Precautions, dto.PrecautionsOther)

	if appErr := validateChecklists(map[string]Checklist{
		"job_types":   jobTypes,
		"hazards":     hazards,
		"ppe":         ppe,
		"precautions": precautions,
	}); appErr != nil {
		return nil, appErr
	}

	creator, err := v.identity(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if creator.TenantID != tenantID {
		return nil, errors.ErrTenantMismatch
	}
	if !creator.MatchesSignature(dto.SignatureIdentity) {
		return nil, errors.ErrIdentityMismatch
	}

	coworkers, err := v.resolveCoworkers(ctx, tenantID, creator.ID, dto.Coworkers)
	if err != nil {
		return nil, err
	}

	return &WorkPermit{
		TenantID:          tenantID,
		CreatorID:         creatorID,
		WorkDate:          dto.WorkDate,
		EstimatedHours:    dto.EstimatedHours,
		DepartmentText:    strings.TrimSpace(dto.DepartmentText),
		CompanyText:       strings.TrimSpace(dto.CompanyText),
		ProjectRef:        strings.TrimSpace(dto.ProjectRef),
		WorkDescription:   strings.TrimSpace(dto.WorkDescription),
		JobTypes:          jobTypes,
		Hazards:           hazards,
		PPE:               ppe,
		Precautions:       precautions,
		SignatureIdentity: dto.SignatureIdentity,
		Status:            StatusPending,
		Coworkers:         coworkers,
	}, nil
}

// checklistOrder keeps error details stable.
var checklistOrder = []string{"job_types", "hazards", "ppe", "precautions"}

func validateChecklists(lists map[string]Checklist) *errors.AppError {
	builder := validation.NewValidator()
	for _, name := range checklistOrder {
		c := lists[name]
		builder.Field(name, c.Items).NotEmpty(errors.ErrCodeEmptyChecklist)
		builder.Field(name+"_other", c.Other).RequiredIf(
			c.HasOther(),
			fmt.Sprintf("%s_other is required when %q is selected", name, OtherOption),
			errors.ErrCodeMissingOtherText,
		)
	}
	return builder.Validate()
}

func (v *SubmissionValidator) identity(ctx context.Context, id int64) (*directory.Identity, error) {
	var identity *directory.Identity
	err := retry.Do(ctx, v.retry, v.logger, func(ctx context.Context) error {
		var err error
		identity, err = v.directory.GetIdentity(ctx, id)
		return err
	})
	if stderrors.Is(err, directory.ErrNotFound) {
		return nil, errors.ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("load creator %d: %w", id, err)
	}
	return identity, nil
}

// resolveCoworkers looks every row up by the kind of identifier it carries.
// The first row that does not resolve inside the tenant, or that resolves to
// the creator, fails the whole submission.
func (v *SubmissionValidator) resolveCoworkers(ctx context.Context, tenantID, creatorID int64, rows []CoworkerDTO) ([]Coworker, error) {
	out := make([]Coworker, 0, len(rows))
	for i, row := range rows {
		identifier := strings.TrimSpace(row.Identifier)
		kind := directory.ClassifyIdentifier(identifier)

		var identity *directory.Identity
		err := retry.Do(ctx, v.retry, v.logger, func(ctx context.Context) error {
			var err error
			identity, err = v.directory.FindIdentity(ctx, tenantID, kind, identifier)
			return err
		})
		field := fmt.Sprintf("coworkers[%d].identifier", i)
		if stderrors.Is(err, directory.ErrNotFound) {
			return nil, errors.ErrUnknownCoworker.WithDetails(errors.ValidationErrors{
				Errors: []errors.ValidationError{{
					Field:   field,
					Message: fmt.Sprintf("no %s %q in this tenant", kind, identifier),
					Code:    string(errors.ErrCodeUnknownCoworker),
				}},
			})
		}
		if err != nil {
			return nil, fmt.Errorf("resolve coworker %d: %w", i, err)
		}
		if identity.ID == creatorID {
			return nil, errors.NewValidationFieldError(field, "the permit creator cannot be listed as a coworker", errors.ErrCodeCoworkerIsCreator)
		}

		out = append(out, Coworker{
			IdentityID:     identity.ID,
			FullName:       strings.TrimSpace(row.FullName),
			Location:       strings.TrimSpace(row.Location),
			IdentifierKind: kind,
			Identifier:     identifier,
		})
	}
	return out, nil
}
