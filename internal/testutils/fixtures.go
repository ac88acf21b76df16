package testutils

import (
	"context"
	"testing"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"gorm.io/gorm"
)

type userOptions struct {
	name         string
	email        string
	passwordHash string
	role         model.UserRole
	departmentID string
	employeeID   string
	inactive     bool
}

type UserOption func(*userOptions)

func WithEmail(email string) UserOption {
	return func(o *userOptions) { o.email = email }
}

func WithName(name string) UserOption {
	return func(o *userOptions) { o.name = name }
}

func WithPasswordHash(hash string) UserOption {
	return func(o *userOptions) { o.passwordHash = hash }
}

func AsAdmin() UserOption {
	return func(o *userOptions) { o.role = model.Admin }
}

func AsTeacher(departmentID, employeeID string) UserOption {
	return func(o *userOptions) {
		o.role = model.Teacher
		o.departmentID = departmentID
		o.employeeID = employeeID
	}
}

func Inactive() UserOption {
	return func(o *userOptions) { o.inactive = true }
}

// CreateTestUser inserts a user row directly, bypassing the services.
func CreateTestUser(t *testing.T, db *gorm.DB, opts ...UserOption) *model.UserRecord {
	t.Helper()

	o := &userOptions{
		name:         "Test User",
		email:        "user@x.test",
		passwordHash: "$2a$04$invalidinvalidinvalidinvalidinvalidinvalidinvalidinv",
		role:         model.Admin,
	}
	for _, opt := range opts {
		opt(o)
	}

	var rec *model.UserRecord
	if o.role == model.Teacher {
		rec = model.NewTeacherRecord(o.name, o.email, o.passwordHash, model.TeacherProfile{
			DepartmentID: o.departmentID,
			EmployeeID:   o.employeeID,
		})
	} else {
		rec = model.NewAdminRecord(o.name, o.email, o.passwordHash)
	}

	ctx := context.Background()
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	if o.inactive {
		if err := db.Model(rec).Update("active", false).Error; err != nil {
			t.Fatalf("Failed to deactivate test user: %v", err)
		}
		rec.Active = false
	}
	return rec
}
