package permit

import "time"

// WorkPermit stores each checklist as a JSON array through gorm's json
// serializer.
type WorkPermit struct {
	ID                 int64      `gorm:"primaryKey"`
	TenantID           int64      `gorm:"column:tenant_id;not null;index"`
	CreatorID          int64      `gorm:"column:creator_id;not null;index"`
	WorkDate           time.Time  `gorm:"column:work_date;not null"`
	EstimatedHours     float64    `gorm:"column:estimated_hours;not null"`
	DepartmentText     string     `gorm:"column:department_text"`
	CompanyText        string     `gorm:"column:company_text"`
	ProjectRef         string     `gorm:"column:project_ref"`
	WorkDescription    string     `gorm:"column:work_description"`
	JobTypes           []string   `gorm:"column:job_types;serializer:json;not null"`
	JobTypesOther      string     `gorm:"column:job_types_other"`
	Hazards            []string   `gorm:"column:hazards;serializer:json;not null"`
	HazardsOther       string     `gorm:"column:hazards_other"`
	PPE                []string   `gorm:"column:ppe;serializer:json;not null"`
	PPEOther           string     `gorm:"column:ppe_other"`
	Precautions        []string   `gorm:"column:precautions;serializer:json;not null"`
	PrecautionsOther   string     `gorm:"column:precautions_other"`
	SignatureIdentity  string     `gorm:"column:signature_identity;not null"`
	Status             string     `gorm:"column:status;not null;default:pending"`
	EngineerApprovedBy *int64     `gorm:"column:engineer_approved_by"`
	EngineerApprovedAt *time.Time `gorm:"column:engineer_approved_at"`
	IsgApprovedBy      *int64     `gorm:"column:isg_approved_by"`
	IsgApprovedAt      *time.Time `gorm:"column:isg_approved_at"`
	RejectedBy         *int64     `gorm:"column:rejected_by"`
	RejectedAt         *time.Time `gorm:"column:rejected_at"`
	RejectionReason    string     `gorm:"column:rejection_reason"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`

	Coworkers []WorkPermitCoworker `gorm:"foreignKey:PermitID;constraint:OnDelete:CASCADE"`
}

func (WorkPermit) TableName() string {
	return "work_permits"
}

type WorkPermitCoworker struct {
	ID         int64      `gorm:"primaryKey"`
	PermitID   int64      `gorm:"column:permit_id;not null;index"`
	ProfileID  int64      `gorm:"column:profile_id;not null"`
	FullName   string     `gorm:"column:full_name;not null"`
	Location   string     `gorm:"column:location"`
	NationalID *string    `gorm:"column:national_id"`
	EmployeeNo *string    `gorm:"column:employee_no"`
	IsApproved bool       `gorm:"column:is_approved;not null;default:false"`
	ApprovedAt *time.Time `gorm:"column:approved_at"`
}

func (WorkPermitCoworker) TableName() string {
	return "work_permit_coworkers"
}
