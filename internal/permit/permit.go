package permit

import (
	"strings"
	"time"

	errors "github.com/frahmantamala/workpermit/internal"
	permitDatamodel "github.com/frahmantamala/workpermit/internal/core/datamodel/permit"
	"github.com/frahmantamala/workpermit/internal/directory"
	"github.com/frahmantamala/workpermit/internal/grant"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// OtherOption is the checklist entry that requires a free-text explanation.
const OtherOption = "Other"

// Checklist is a set of selected options plus the explanation that goes with
// OtherOption.
type Checklist struct {
	Items []string `json:"items"`
	Other string   `json:"other,omitempty"`
}

// NewChecklist trims entries, drops blanks and duplicates, and discards the
// explanation when OtherOption is not selected.
func NewChecklist(items []string, other string) Checklist {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}

	c := Checklist{Items: out}
	if c.HasOther() {
		c.Other = strings.TrimSpace(other)
	}
	return c
}

func (c Checklist) HasOther() bool {
	for _, item := range c.Items {
		if item == OtherOption {
			return true
		}
	}
	return false
}

// Slot is one approval signature. Both fields are set together.
type Slot struct {
	By *int64     `json:"by"`
	At *time.Time `json:"at"`
}

func (s Slot) Filled() bool {
	return s.By != nil
}

// DeriveStatus is the only place a non-rejected status is computed.
func DeriveStatus(engineer, isg Slot) Status {
	if engineer.Filled() && isg.Filled() {
		return StatusApproved
	}
	return StatusPending
}

type Coworker struct {
	ID             int64                    `json:"id"`
	IdentityID     int64                    `json:"identity_id"`
	FullName       string                   `json:"full_name"`
	Location       string                   `json:"location"`
	IdentifierKind directory.IdentifierKind `json:"-"`
	Identifier     string                   `json:"identifier"`
	IsApproved     bool                     `json:"is_approved"`
	ApprovedAt     *time.Time               `json:"approved_at,omitempty"`
}

type WorkPermit struct {
	ID              int64
	TenantID        int64
	CreatorID       int64
	WorkDate        time.Time
	EstimatedHours  float64
	DepartmentText  string
	CompanyText     string
	ProjectRef      string
	WorkDescription string

	JobTypes    Checklist
	Hazards     Checklist
	PPE         Checklist
	Precautions Checklist

	SignatureIdentity string
	Status            Status
	Engineer          Slot
	ISG               Slot

	RejectedBy      *int64
	RejectedAt      *time.Time
	RejectionReason string

	Coworkers []Coworker
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *WorkPermit) slot(role grant.RoleType) *Slot {
	switch role {
	case grant.RoleEngineer:
		return &p.Engineer
	case grant.RoleISG:
		return &p.ISG
	}
	return nil
}

// Approve signs the role's slot. It never overwrites an existing signature,
// and the resulting status depends only on which slots are filled, so the
// order of the two approvals does not matter. Eligibility is checked by the
// caller before the transition.
func (p *WorkPermit) Approve(role grant.RoleType, approverID int64, at time.Time) error {
	slot := p.slot(role)
	if slot == nil {
		return errors.ErrInvalidRoleType
	}
	if p.Status == StatusRejected {
		return errors.ErrInvalidPermitStatus
	}
	if slot.Filled() {
		return errors.ErrAlreadyApproved
	}

	by, when := approverID, at
	slot.By, slot.At = &by, &when
	p.Status = DeriveStatus(p.Engineer, p.ISG)
	p.UpdatedAt = at
	return nil
}

// Reject is the out-of-band manager action. Approved permits stay approved.
func (p *WorkPermit) Reject(rejectedBy int64, reason string, at time.Time) error {
	if p.Status != StatusPending {
		return errors.ErrInvalidPermitStatus
	}
	by, when := rejectedBy, at
	p.Status = StatusRejected
	p.RejectedBy, p.RejectedAt = &by, &when
	p.RejectionReason = strings.TrimSpace(reason)
	p.UpdatedAt = at
	return nil
}

// CanDelete allows the creator or a tenant manager to remove a permit that
// has not been approved.
func (p *WorkPermit) CanDelete(actor *directory.Identity) error {
	if p.Status == StatusApproved {
		return errors.ErrInvalidPermitStatus
	}
	if actor.ID != p.CreatorID && !actor.IsTenantManager() {
		return errors.ErrNotPermitOwner
	}
	return nil
}

func (p *WorkPermit) ToResponse() PermitResponse {
	resp := PermitResponse{
		ID:                 p.ID,
		TenantID:           p.TenantID,
		CreatorID:          p.CreatorID,
		WorkDate:           p.WorkDate,
		EstimatedHours:     p.EstimatedHours,
		DepartmentText:     p.DepartmentText,
		CompanyText:        p.CompanyText,
		ProjectRef:         p.ProjectRef,
		WorkDescription:    p.WorkDescription,
		JobTypes:           p.JobTypes,
		Hazards:            p.Hazards,
		PPE:                p.PPE,
		Precautions:        p.Precautions,
		Status:             string(p.Status),
		EngineerApprovedBy: p.Engineer.By,
		EngineerApprovedAt: p.Engineer.At,
		IsgApprovedBy:      p.ISG.By,
		IsgApprovedAt:      p.ISG.At,
		RejectedBy:         p.RejectedBy,
		RejectedAt:         p.RejectedAt,
		RejectionReason:    p.RejectionReason,
		Coworkers:          p.Coworkers,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if resp.Coworkers == nil {
		resp.Coworkers = []Coworker{}
	}
	return resp
}

func ToDataModel(p *WorkPermit) *permitDatamodel.WorkPermit {
	row := &permitDatamodel.WorkPermit{
		ID:                 p.ID,
		TenantID:           p.TenantID,
		CreatorID:          p.CreatorID,
		WorkDate:           p.WorkDate,
		EstimatedHours:     p.EstimatedHours,
		DepartmentText:     p.DepartmentText,
		CompanyText:        p.CompanyText,
		ProjectRef:         p.ProjectRef,
		WorkDescription:    p.WorkDescription,
		JobTypes:           p.JobTypes.Items,
		JobTypesOther:      p.JobTypes.Other,
		Hazards:            p.Hazards.Items,
		HazardsOther:       p.Hazards.Other,
		PPE:                p.PPE.Items,
		PPEOther:           p.PPE.Other,
		Precautions:        p.Precautions.Items,
		PrecautionsOther:   p.Precautions.Other,
		SignatureIdentity:  p.SignatureIdentity,
		Status:             string(p.Status),
		EngineerApprovedBy: p.Engineer.By,
		EngineerApprovedAt: p.Engineer.At,
		IsgApprovedBy:      p.ISG.By,
		IsgApprovedAt:      p.ISG.At,
		RejectedBy:         p.RejectedBy,
		RejectedAt:         p.RejectedAt,
		RejectionReason:    p.RejectionReason,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	for _, c := range p.Coworkers {
		cw := permitDatamodel.WorkPermitCoworker{
			ID:         c.ID,
			PermitID:   p.ID,
			ProfileID:  c.IdentityID,
			FullName:   c.FullName,
			Location:   c.Location,
			IsApproved: c.IsApproved,
			ApprovedAt: c.ApprovedAt,
		}
		identifier := c.Identifier
		if c.IdentifierKind == directory.IdentifierNationalID {
			cw.NationalID = &identifier
		} else {
			cw.EmployeeNo = &identifier
		}
		row.Coworkers = append(row.Coworkers, cw)
	}
	return row
}

func FromDataModel(row *permitDatamodel.WorkPermit) *WorkPermit {
	p := &WorkPermit{
		ID:                row.ID,
		TenantID:          row.TenantID,
		CreatorID:         row.CreatorID,
		WorkDate:          row.WorkDate,
		EstimatedHours:    row.EstimatedHours,
		DepartmentText:    row.DepartmentText,
		CompanyText:       row.CompanyText,
		ProjectRef:        row.ProjectRef,
		WorkDescription:   row.WorkDescription,
		JobTypes:          Checklist{Items: row.JobTypes, Other: row.JobTypesOther},
		Hazards:           Checklist{Items: row.Hazards, Other: row.HazardsOther},
		PPE:               Checklist{Items: row.PPE, Other: row.PPEOther},
		Precautions:       Checklist{Items: row.Precautions, Other: row.PrecautionsOther},
		SignatureIdentity: row.SignatureIdentity,
		Status:            Status(row.Status),
		Engineer:          Slot{By: row.EngineerApprovedBy, At: row.EngineerApprovedAt},
		ISG:               Slot{By: row.IsgApprovedBy, At: row.IsgApprovedAt},
		RejectedBy:        row.RejectedBy,
		RejectedAt:        row.RejectedAt,
		RejectionReason:   row.RejectionReason,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	for _, cw := range row.Coworkers {
		c := Coworker{
			ID:         cw.ID,
			IdentityID: cw.ProfileID,
			FullName:   cw.FullName,
			Location:   cw.Location,
			IsApproved: cw.IsApproved,
			ApprovedAt: cw.ApprovedAt,
		}
		if cw.NationalID != nil {
			c.IdentifierKind, c.Identifier = directory.IdentifierNationalID, *cw.NationalID
		} else if cw.EmployeeNo != nil {
			c.IdentifierKind, c.Identifier = directory.IdentifierEmployeeNo, *cw.EmployeeNo
		}
		p.Coworkers = append(p.Coworkers, c)
	}
	return p
}
