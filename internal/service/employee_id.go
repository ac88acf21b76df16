package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
)

const maxEmployeeSequence = 999

var departmentCodes = map[model.DepartmentName]string{
	model.DeptCADD:      "CADD",
	model.DeptLivewire:  "LW",
	model.DeptDreamzone: "DZ",
	model.DeptSynergy:   "SY",
}

// DepartmentCode maps a department name to its employee-id prefix.
func DepartmentCode(name model.DepartmentName) (string, error) {
	code, ok := departmentCodes[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", util.ErrDepartmentCodeUnknown, name)
	}
	return code, nil
}

func formatEmployeeID(code string, n int) string {
	return fmt.Sprintf("%s-%03d", code, n)
}

// EmployeeIDAllocator hands out {CODE}-NNN identifiers per department. The
// unique index on employee_id stays the authority; callers retry on
// util.ErrEmployeeIDTaken.
type EmployeeIDAllocator struct {
	Users       UserStore
	Departments DepartmentStore
	Sequence    Sequence
}

func NewEmployeeIDAllocator(users UserStore, departments DepartmentStore, seq Sequence) *EmployeeIDAllocator {
	if seq == nil {
		seq = ScanSequence{}
	}
	return &EmployeeIDAllocator{Users: users, Departments: departments, Sequence: seq}
}

// Preview returns the id the next teacher would most likely get. It never
// consumes a sequence number.
func (a *EmployeeIDAllocator) Preview(ctx context.Context, departmentID string) (string, *model.Department, error) {
	dept, err := a.Departments.FindByID(ctx, departmentID)
	if err != nil {
		return "", nil, err
	}
	code, err := DepartmentCode(dept.Name)
	if err != nil {
		return "", nil, err
	}
	max, err := a.Users.MaxEmployeeSequence(ctx, code)
	if err != nil {
		return "", nil, err
	}
	if max+1 > maxEmployeeSequence {
		return "", nil, util.ErrEmployeeIDExhausted
	}
	return formatEmployeeID(code, max+1), dept, nil
}

func (a *EmployeeIDAllocator) Allocate(ctx context.Context, dept *model.Department) (string, error) {
	code, err := DepartmentCode(dept.Name)
	if err != nil {
		return "", err
	}

	floor, err := a.Users.MaxEmployeeSequence(ctx, code)
	if err != nil {
		return "", err
	}
	n, err := a.Sequence.Next(ctx, code, floor)
	if err != nil {
		return "", err
	}

	// second probe for a concurrent allocation of the same number
	exists, err := a.Users.EmployeeIDExists(ctx, formatEmployeeID(code, n))
	if err != nil {
		return "", err
	}
	if exists {
		if n, err = a.Sequence.Next(ctx, code, n); err != nil {
			return "", err
		}
	}

	if n > maxEmployeeSequence {
		return "", util.ErrEmployeeIDExhausted
	}
	return formatEmployeeID(code, n), nil
}

// Release returns employeeID to the department sequence after its insert
// failed for a reason other than a collision.
func (a *EmployeeIDAllocator) Release(ctx context.Context, dept *model.Department, employeeID string) error {
	code, err := DepartmentCode(dept.Name)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimPrefix(employeeID, code+"-"))
	if err != nil {
		return fmt.Errorf("release %s: %w", employeeID, err)
	}
	return a.Sequence.Release(ctx, code, n)
}
