package directory

import "time"

type Profile struct {
	ID           int64     `gorm:"primaryKey" db:"id"`
	TenantID     int64     `gorm:"column:tenant_id;not null;index" db:"tenant_id"`
	NationalID   *string   `gorm:"column:national_id" db:"national_id"`
	EmployeeNo   *string   `gorm:"column:employee_no" db:"employee_no"`
	FullName     string    `gorm:"column:full_name;not null" db:"full_name"`
	PlatformRole string    `gorm:"column:platform_role;not null;default:member" db:"platform_role"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" db:"created_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

type Department struct {
	ID        int64     `gorm:"primaryKey" db:"id"`
	TenantID  int64     `gorm:"column:tenant_id;not null;index" db:"tenant_id"`
	Name      string    `gorm:"column:name;not null" db:"name"`
	ParentID  *int64    `gorm:"column:parent_id;index" db:"parent_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" db:"created_at"`
}

func (Department) TableName() string {
	return "departments"
}

type OrgRole struct {
	ID          int64     `gorm:"primaryKey" db:"id"`
	TenantID    int64     `gorm:"column:tenant_id;not null;index" db:"tenant_id"`
	Name        string    `gorm:"column:name;not null" db:"name"`
	LevelWeight int       `gorm:"column:level_weight;not null;default:0" db:"level_weight"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" db:"created_at"`
}

func (OrgRole) TableName() string {
	return "org_roles"
}

type DepartmentMember struct {
	ID           int64     `gorm:"primaryKey" db:"id"`
	TenantID     int64     `gorm:"column:tenant_id;not null;index" db:"tenant_id"`
	ProfileID    int64     `gorm:"column:profile_id;not null;index" db:"profile_id"`
	DepartmentID int64     `gorm:"column:department_id;not null;index" db:"department_id"`
	OrgRoleID    *int64    `gorm:"column:org_role_id" db:"org_role_id"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" db:"created_at"`
}

func (DepartmentMember) TableName() string {
	return "department_members"
}
