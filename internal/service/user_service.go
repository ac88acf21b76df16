package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/repository"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/logger"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/monitoring"
	"go.uber.org/zap"
)

const teacherCreateAttempts = 3

// UserService holds the admin-side account operations.
type UserService struct {
	Users       UserStore
	Departments DepartmentStore
	Allocator   *EmployeeIDAllocator
	Hasher      *util.PasswordHasher
	Notifier    Notifier
}

func NewUserService(users UserStore, departments DepartmentStore, allocator *EmployeeIDAllocator, hasher *util.PasswordHasher, notifier Notifier) *UserService {
	return &UserService{
		Users:       users,
		Departments: departments,
		Allocator:   allocator,
		Hasher:      hasher,
		Notifier:    notifier,
	}
}

// CreatedAccount is a freshly provisioned account and whether its welcome
// email reached the notifier.
type CreatedAccount struct {
	User      *model.User
	EmailSent bool
}

type TeacherInput struct {
	Name         string
	Email        string
	DepartmentID string
	Profile      model.TeacherProfile
}

// createTeacher allocates an employee id and inserts the record built for it,
// retrying when a concurrent allocation won the same id.
func createTeacher(ctx context.Context, users UserStore, allocator *EmployeeIDAllocator, dept *model.Department, build func(employeeID string) (*model.UserRecord, error)) (*model.User, error) {
	var lastErr error
	for attempt := 0; attempt < teacherCreateAttempts; attempt++ {
		employeeID, err := allocator.Allocate(ctx, dept)
		if err != nil {
			return nil, err
		}
		rec, err := build(employeeID)
		if err != nil {
			releaseEmployeeID(ctx, allocator, dept, employeeID)
			return nil, err
		}
		user, err := users.Create(ctx, rec)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, util.ErrEmployeeIDTaken) {
			releaseEmployeeID(ctx, allocator, dept, employeeID)
			return nil, err
		}
		logger.Log.Debug("Employee id taken, retrying", zap.String("employeeId", employeeID))
		lastErr = err
	}
	return nil, lastErr
}

func releaseEmployeeID(ctx context.Context, allocator *EmployeeIDAllocator, dept *model.Department, employeeID string) {
	if err := allocator.Release(ctx, dept, employeeID); err != nil {
		logger.Log.Warn("Employee id not released", zap.String("employeeId", employeeID), zap.Error(err))
	}
}

func validateAccountInput(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = util.NormalizeEmail(email)
	if err := util.ValidateName(name); err != nil {
		return "", "", err
	}
	if !util.IsEmail(email) {
		return "", "", util.Validation("please provide a valid email address")
	}
	return name, email, nil
}

func (s *UserService) CreateTeacher(ctx context.Context, in TeacherInput) (*CreatedAccount, error) {
	name, email, err := validateAccountInput(in.Name, in.Email)
	if err != nil {
		return nil, err
	}
	if in.DepartmentID == "" {
		return nil, util.Validation("department is required for teachers")
	}
	if in.Profile.Experience != nil && *in.Profile.Experience < 0 {
		return nil, util.Validation("experience cannot be negative")
	}

	dept, err := s.Departments.FindByID(ctx, in.DepartmentID)
	if err != nil {
		return nil, err
	}
	exists, err := s.Users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, util.ErrEmailTaken
	}

	var password string
	user, err := createTeacher(ctx, s.Users, s.Allocator, dept, func(employeeID string) (*model.UserRecord, error) {
		pw, err := InitialTeacherPassword(employeeID, name)
		if err != nil {
			return nil, err
		}
		password = pw
		hash, err := s.Hasher.Hash(pw)
		if err != nil {
			return nil, err
		}
		profile := in.Profile
		profile.DepartmentID = dept.ID
		profile.EmployeeID = employeeID
		return model.NewTeacherRecord(name, email, hash, profile), nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Teacher created",
		zap.String("userId", user.ID),
		zap.String("employeeId", user.EmployeeID),
		zap.String("department", string(dept.Name)),
	)
	return &CreatedAccount{User: user, EmailSent: s.welcome(ctx, user, password)}, nil
}

func (s *UserService) CreateAdmin(ctx context.Context, name, email string) (*CreatedAccount, error) {
	name, email, err := validateAccountInput(name, email)
	if err != nil {
		return nil, err
	}
	exists, err := s.Users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, util.ErrEmailTaken
	}

	password, err := InitialAdminPassword(name)
	if err != nil {
		return nil, err
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user, err := s.Users.Create(ctx, model.NewAdminRecord(name, email, hash))
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Admin created", zap.String("userId", user.ID))
	return &CreatedAccount{User: user, EmailSent: s.welcome(ctx, user, password)}, nil
}

func (s *UserService) welcome(ctx context.Context, user *model.User, password string) bool {
	if err := s.Notifier.SendWelcome(ctx, user, password); err != nil {
		monitoring.RecordAuthEvent(monitoring.EventNotifierError)
		logger.Log.Warn("Welcome email not delivered", zap.String("userId", user.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *UserService) PreviewEmployeeID(ctx context.Context, departmentID string) (string, *model.Department, error) {
	return s.Allocator.Preview(ctx, departmentID)
}

func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.Users.FindByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context, filter repository.UserFilter, page, pageSize int) ([]*model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.Users.List(ctx, filter, page, pageSize)
}

// SetActive toggles an account. Deactivation also ends its session.
func (s *UserService) SetActive(ctx context.Context, actorID, id string, active bool) error {
	if actorID == id && !active {
		return util.Validation("you cannot deactivate your own account")
	}
	if err := s.Users.SetActive(ctx, id, active); err != nil {
		return err
	}
	logger.Log.Info("User status changed",
		zap.String("userId", id),
		zap.String("by", actorID),
		zap.Bool("active", active),
	)
	return nil
}

func (s *UserService) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return util.Validation("you cannot delete your own account")
	}
	if err := s.Users.Delete(ctx, id); err != nil {
		return err
	}
	logger.Log.Info("User deleted", zap.String("userId", id), zap.String("by", actorID))
	return nil
}

type RoleCounts struct {
	Admins   int64 `json:"admins"`
	Teachers int64 `json:"teachers"`
	Total    int64 `json:"total"`
}

func (s *UserService) CountByRole(ctx context.Context) (*RoleCounts, error) {
	admins, err := s.Users.CountByRole(ctx, model.Admin)
	if err != nil {
		return nil, err
	}
	teachers, err := s.Users.CountByRole(ctx, model.Teacher)
	if err != nil {
		return nil, err
	}
	return &RoleCounts{Admins: admins, Teachers: teachers, Total: admins + teachers}, nil
}

// InitialTeacherPassword builds {employee-id}@{Firstname}{NNNN}.
func InitialTeacherPassword(employeeID, name string) (string, error) {
	digits, err := util.RandomDigits(util.InitialPasswordDigit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s@%s%s", employeeID, firstName(name), digits), nil
}

// InitialAdminPassword builds Admin@{Firstname}{NNNN}.
func InitialAdminPassword(name string) (string, error) {
	digits, err := util.RandomDigits(util.InitialPasswordDigit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Admin@%s%s", firstName(name), digits), nil
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "User"
	}
	runes := []rune(strings.ToLower(fields[0]))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
