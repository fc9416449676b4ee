package permit

import "time"

type CoworkerDTO struct {
	FullName   string `json:"full_name" validate:"required,max=200"`
	Location   string `json:"location" validate:"max=200"`
	Identifier string `json:"identifier" validate:"required,max=64"`
}

type CreatePermitDTO struct {
	WorkDate        time.Time `json:"work_date" validate:"required"`
	EstimatedHours  float64   `json:"estimated_hours" validate:"gt=0,lte=24"`
	DepartmentText  string    `json:"department_text" validate:"max=200"`
	CompanyText     string    `json:"company_text" validate:"max=200"`
	ProjectRef      string    `json:"project_ref" validate:"max=100"`
	WorkDescription string    `json:"work_description" validate:"max=2000"`

	JobTypes         []string `json:"job_types"`
	JobTypesOther    string   `json:"job_types_other"`
	Hazards          []string `json:"hazards"`
	HazardsOther     string   `json:"hazards_other"`
	PPE              []string `json:"ppe"`
	PPEOther         string   `json:"ppe_other"`
	Precautions      []string `json:"precautions"`
	PrecautionsOther string   `json:"precautions_other"`

	SignatureIdentity string        `json:"signature_identity" validate:"required"`
	Coworkers         []CoworkerDTO `json:"coworkers" validate:"dive"`
}

type RejectPermitDTO struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type PermitResponse struct {
	ID                 int64      `json:"id"`
	TenantID           int64      `json:"tenant_id"`
	CreatorID          int64      `json:"creator_id"`
	WorkDate           time.Time  `json:"work_date"`
	EstimatedHours     float64    `json:"estimated_hours"`
	DepartmentText     string     `json:"department_text"`
	CompanyText        string     `json:"company_text"`
	ProjectRef         string     `json:"project_ref"`
	WorkDescription    string     `json:"work_description"`
	JobTypes           Checklist  `json:"job_types"`
	Hazards            Checklist  `json:"hazards"`
	PPE                Checklist  `json:"ppe"`
	Precautions        Checklist  `json:"precautions"`
	Status             string     `json:"status"`
	EngineerApprovedBy *int64     `json:"engineer_approved_by"`
	EngineerApprovedAt *time.Time `json:"engineer_approved_at"`
	IsgApprovedBy      *int64     `json:"isg_approved_by"`
	IsgApprovedAt      *time.Time `json:"isg_approved_at"`
	RejectedBy         *int64     `json:"rejected_by,omitempty"`
	RejectedAt         *time.Time `json:"rejected_at,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	Coworkers          []Coworker `json:"coworkers"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type PermitsResponse struct {
	Permits []PermitResponse `json:"permits"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}
