package model

// DepartmentName is one of the institute's fixed departments.
type DepartmentName string

const (
	DeptCADD      DepartmentName = "CADD"
	DeptLivewire  DepartmentName = "LIVEWIRE"
	DeptDreamzone DepartmentName = "DREAMZONE"
	DeptSynergy   DepartmentName = "SYNERGY"
)

// swagger:model Department
type Department struct {
	UUIDBase
	Name        DepartmentName `gorm:"size:20;uniqueIndex;not null" json:"name"`
	Code        string         `gorm:"size:10;not null" json:"code"`
	Description string         `gorm:"size:255" json:"description"`
}

func (Department) TableName() string {
	return "departments"
}

// DefaultDepartments is the seed written on first migration.
func DefaultDepartments() []Department {
	return []Department{
		{Name: DeptCADD, Code: "CADD", Description: "CADD Centre"},
		{Name: DeptLivewire, Code: "LW", Description: "Livewire"},
		{Name: DeptDreamzone, Code: "DZ", Description: "Dreamzone"},
		{Name: DeptSynergy, Code: "SY", Description: "Synergy"},
	}
}
