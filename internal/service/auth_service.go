package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/config"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/logger"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/monitoring"
	"go.uber.org/zap"
)

// AuthResult is what a successful authentication hands back to the HTTP layer.
// RefreshToken is only set by Login.
type AuthResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	Users       UserStore
	Departments DepartmentStore
	Allocator   *EmployeeIDAllocator
	Hasher      *util.PasswordHasher
	Signer      *util.TokenSigner
	Policy      config.PolicyConfig
	Now         func() time.Time
}

func NewAuthService(
	users UserStore,
	departments DepartmentStore,
	allocator *EmployeeIDAllocator,
	hasher *util.PasswordHasher,
	signer *util.TokenSigner,
	policy config.PolicyConfig,
) *AuthService {
	return &AuthService{
		Users:       users,
		Departments: departments,
		Allocator:   allocator,
		Hasher:      hasher,
		Signer:      signer,
		Policy:      policy,
		Now:         time.Now,
	}
}

type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	Role         model.UserRole
	DepartmentID string
	// Caller is the authenticated requester, if any.
	Caller *util.Claims
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput, client ClientInfo) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := util.NormalizeEmail(in.Email)
	if err := util.ValidateName(name); err != nil {
		return nil, err
	}
	if !util.IsEmail(email) {
		return nil, util.Validation("please provide a valid email address")
	}
	if err := util.ValidatePasswordLength(in.Password); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = model.Teacher
	}
	if !role.Valid() {
		return nil, util.Validation("role must be admin or teacher")
	}
	if role == model.Admin {
		if err := s.guardAdminRegistration(ctx, in.Caller); err != nil {
			return nil, err
		}
	}

	exists, err := s.Users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, util.ErrEmailTaken
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var user *model.User
	if role == model.Teacher {
		if in.DepartmentID == "" {
			return nil, util.Validation("department is required for teachers")
		}
		dept, err := s.Departments.FindByID(ctx, in.DepartmentID)
		if err != nil {
			return nil, err
		}
		user, err = createTeacher(ctx, s.Users, s.Allocator, dept, func(employeeID string) (*model.UserRecord, error) {
			return model.NewTeacherRecord(name, email, hash, model.TeacherProfile{
				DepartmentID: dept.ID,
				EmployeeID:   employeeID,
			}), nil
		})
	} else {
		user, err = s.Users.Create(ctx, model.NewAdminRecord(name, email, hash))
	}
	if err != nil {
		return nil, err
	}

	token, err := s.Signer.Issue(util.AccessToken, user.ID, user.Role, util.Fingerprint(client.UserAgent, client.IP))
	if err != nil {
		return nil, err
	}

	logger.Log.Info("User registered",
		zap.String("userId", user.ID),
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)),
	)
	return &AuthResult{User: user, AccessToken: token}, nil
}

// guardAdminRegistration allows admin sign-up only for existing admins, or
// for the very first admin of a fresh installation.
func (s *AuthService) guardAdminRegistration(ctx context.Context, caller *util.Claims) error {
	if caller != nil && caller.Role == model.Admin {
		return nil
	}
	admins, err := s.Users.CountByRole(ctx, model.Admin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if admins > 0 {
		return util.ErrForbidden
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, identifier, password string, client ClientInfo) (*AuthResult, error) {
	kind, id := util.ClassifyIdentifier(identifier)
	if kind == util.IdentifierInvalid {
		return nil, util.ErrMalformedID
	}
	if password == "" {
		return nil, util.Validation("please provide email and password")
	}

	var (
		user *model.User
		err  error
	)
	if kind == util.IdentifierEmployeeID {
		user, err = s.Users.FindByEmployeeID(ctx, id)
	} else {
		user, err = s.Users.FindByEmail(ctx, id)
	}
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			s.Hasher.VerifyDecoy(password)
			logger.Log.Debug("Login for unknown identifier", zap.String("ip", client.IP))
			monitoring.RecordAuthEvent(monitoring.EventLoginFailure)
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}

	creds, err := s.Users.FindCredentials(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if creds.LockedUntil != nil {
		if creds.LockedAt(now) {
			remaining := int(math.Ceil(creds.LockedUntil.Sub(now).Minutes()))
			logger.Log.Info("Login refused for locked account",
				zap.String("userId", user.ID),
				zap.String("ip", client.IP),
			)
			return nil, &util.LockedError{RemainingMinutes: remaining}
		}
		if err := s.Users.ClearLock(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	if !user.Active {
		return nil, util.ErrAccountInactive
	}

	ok, err := s.Hasher.Verify(password, creds.PasswordHash)
	if err != nil {
		logger.Log.Error("Password digest unusable", zap.String("userId", user.ID), zap.Error(err))
	}
	if !ok {
		return nil, s.recordFailure(ctx, user, client, now)
	}

	fingerprint := util.Fingerprint(client.UserAgent, client.IP)
	access, err := s.Signer.Issue(util.AccessToken, user.ID, user.Role, fingerprint)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Signer.Issue(util.RefreshToken, user.ID, user.Role, fingerprint)
	if err != nil {
		return nil, err
	}
	if err := s.Users.RecordLogin(ctx, user.ID, now, util.SHA256Hex(refresh)); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	monitoring.RecordAuthEvent(monitoring.EventLoginSuccess)
	logger.Log.Info("User logged in",
		zap.String("userId", user.ID),
		zap.String("email", user.Email),
		zap.String("ip", client.IP),
	)
	return &AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, user *model.User, client ClientInfo, now time.Time) error {
	monitoring.RecordAuthEvent(monitoring.EventLoginFailure)

	attempts, err := s.Users.IncrementFailedAttempts(ctx, user.ID)
	if err != nil {
		return err
	}
	logger.Log.Info("Failed login attempt",
		zap.String("userId", user.ID),
		zap.String("ip", client.IP),
		zap.Int("attempts", attempts),
	)

	if attempts >= s.Policy.MaxFailedAttempts {
		installed, err := s.Users.Lock(ctx, user.ID, now.Add(s.Policy.LockoutDuration))
		if err != nil {
			return err
		}
		if installed {
			monitoring.RecordAuthEvent(monitoring.EventLockout)
			logger.Log.Warn("Account locked after repeated failures",
				zap.String("userId", user.ID),
				zap.String("email", user.Email),
				zap.String("ip", client.IP),
			)
		}
	}
	return util.ErrInvalidCredentials
}

// Refresh mints a new access token from a refresh token. The refresh token
// itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, util.ErrInvalidRefreshToken
	}
	claims, err := s.Signer.Parse(util.RefreshToken, refreshToken)
	if err != nil {
		logger.Log.Debug("Refresh token rejected", zap.Error(err))
		return nil, util.ErrInvalidRefreshToken
	}

	creds, err := s.Users.FindCredentials(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			return nil, util.ErrInvalidRefreshToken
		}
		return nil, err
	}
	if creds.RefreshTokenHash == nil || !util.EqualHash(util.SHA256Hex(refreshToken), *creds.RefreshTokenHash) {
		return nil, util.ErrInvalidRefreshToken
	}

	user, err := s.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, util.ErrInvalidRefreshToken
	}

	fingerprint := util.Fingerprint(client.UserAgent, client.IP)
	if fingerprint != claims.Fingerprint {
		logger.Log.Warn("Refresh token used from a different client",
			zap.String("userId", user.ID),
			zap.String("ip", client.IP),
		)
	}

	access, err := s.Signer.Issue(util.AccessToken, user.ID, user.Role, fingerprint)
	if err != nil {
		return nil, err
	}
	monitoring.RecordAuthEvent(monitoring.EventRefresh)
	return &AuthResult{User: user, AccessToken: access}, nil
}

// ValidateSession rejects access tokens whose account was deleted or
// deactivated, or that were issued before the last password change. Token
// timestamps have second resolution, so the change time is truncated.
func (s *AuthService) ValidateSession(ctx context.Context, claims *util.Claims) error {
	user, err := s.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			return util.ErrInvalidCredentials
		}
		return err
	}
	if !user.Active {
		return util.ErrAccountInactive
	}

	creds, err := s.Users.FindCredentials(ctx, user.ID)
	if err != nil {
		return err
	}
	if creds.PasswordChangedAt != nil && claims.IssuedAt != nil &&
		claims.IssuedAt.Time.Before(creds.PasswordChangedAt.Truncate(time.Second)) {
		return util.ErrInvalidCredentials
	}
	return nil
}

// Logout drops the stored refresh token of userID. Unknown users are ignored.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if err := s.Users.SetRefreshTokenHash(ctx, userID, nil); err != nil && !errors.Is(err, util.ErrUserNotFound) {
		return err
	}
	monitoring.RecordAuthEvent(monitoring.EventLogout)
	logger.Log.Info("User logged out", zap.String("userId", userID))
	return nil
}

// LogoutWithRefreshToken ends the session a refresh token belongs to, for
// clients whose access token already expired. Invalid tokens are ignored.
func (s *AuthService) LogoutWithRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.Signer.Parse(util.RefreshToken, refreshToken)
	if err != nil {
		return nil
	}
	creds, err := s.Users.FindCredentials(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if creds.RefreshTokenHash == nil || !util.EqualHash(util.SHA256Hex(refreshToken), *creds.RefreshTokenHash) {
		return nil
	}
	return s.Logout(ctx, claims.UserID)
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return s.Users.FindByID(ctx, userID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd model.ProfileUpdate) (*model.User, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if err := util.ValidateName(name); err != nil {
			return nil, err
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email := util.NormalizeEmail(*upd.Email)
		if !util.IsEmail(email) {
			return nil, util.Validation("please provide a valid email address")
		}
		upd.Email = &email
	}
	if upd.Experience != nil && *upd.Experience < 0 {
		return nil, util.Validation("experience cannot be negative")
	}
	return s.Users.UpdateProfile(ctx, userID, upd)
}
