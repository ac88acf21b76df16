package service

import (
	"context"
	"time"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/repository"
)

// UserStore is the persistence contract the account services depend on.
// repository.UserRepository is the production implementation.
type UserStore interface {
	Create(ctx context.Context, rec *model.UserRecord) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByEmployeeID(ctx context.Context, employeeID string) (*model.User, error)
	FindCredentials(ctx context.Context, id string) (*model.Credentials, error)
	FindByResetHash(ctx context.Context, hash string) (*model.User, *model.Credentials, error)
	UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter repository.UserFilter, page, pageSize int) ([]*model.User, int64, error)
	CountByRole(ctx context.Context, role model.UserRole) (int64, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	EmployeeIDExists(ctx context.Context, employeeID string) (bool, error)
	MaxEmployeeSequence(ctx context.Context, code string) (int, error)

	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
	RecordLogin(ctx context.Context, id string, at time.Time, refreshHash string) error
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	Lock(ctx context.Context, id string, until time.Time) (bool, error)
	ClearLock(ctx context.Context, id string) error
	SetOTP(ctx context.Context, id string, hash string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, id string) error
	SetPasswordReset(ctx context.Context, id string, hash string, expiresAt time.Time) error
	ReplacePassword(ctx context.Context, id string, hash string, change repository.PasswordChange) error
}

type DepartmentStore interface {
	FindByID(ctx context.Context, id string) (*model.Department, error)
	List(ctx context.Context) ([]model.Department, error)
}

var (
	_ UserStore       = (*repository.UserRepository)(nil)
	_ DepartmentStore = (*repository.DepartmentRepository)(nil)
)

// ClientInfo identifies the client a token is issued to.
type ClientInfo struct {
	UserAgent string
	IP        string
}
