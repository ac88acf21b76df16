package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/config"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/repository"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/logger"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/monitoring"
	"go.uber.org/zap"
)

// PasswordService owns every path that replaces a password: direct change,
// OTP-mediated change, OTP reset and the link reset.
type PasswordService struct {
	Users       UserStore
	OTP         *OTPManager
	Hasher      *util.PasswordHasher
	Notifier    Notifier
	Throttle    Throttle
	Policy      config.PolicyConfig
	FrontendURL string
	Now         func() time.Time
}

func NewPasswordService(
	users UserStore,
	otp *OTPManager,
	hasher *util.PasswordHasher,
	notifier Notifier,
	throttle Throttle,
	policy config.PolicyConfig,
	frontendURL string,
) *PasswordService {
	return &PasswordService{
		Users:       users,
		OTP:         otp,
		Hasher:      hasher,
		Notifier:    notifier,
		Throttle:    throttle,
		Policy:      policy,
		FrontendURL: strings.TrimRight(frontendURL, "/"),
		Now:         time.Now,
	}
}

func checkNewPassword(newPassword, confirm string) error {
	if newPassword != confirm {
		return util.Validation("new password and confirm password do not match")
	}
	return nil
}

func (s *PasswordService) ChangePassword(ctx context.Context, userID, current, newPassword, confirm string) error {
	if current == "" || newPassword == "" || confirm == "" {
		return util.Validation("all password fields are required")
	}
	if err := checkNewPassword(newPassword, confirm); err != nil {
		return err
	}
	if err := util.ValidatePasswordLength(newPassword); err != nil {
		return err
	}

	creds, err := s.Users.FindCredentials(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.Hasher.Verify(current, creds.PasswordHash)
	if err != nil && !errors.Is(err, util.ErrCredentialUnavailable) {
		return err
	}
	if !ok {
		return util.ErrIncorrectPassword
	}
	if same, _ := s.Hasher.Verify(newPassword, creds.PasswordHash); same {
		return util.Validation("new password must be different from the current password")
	}

	if err := s.replace(ctx, userID, newPassword, repository.PasswordChange{}); err != nil {
		return err
	}
	monitoring.RecordAuthEvent(monitoring.EventPasswordChange)
	logger.Log.Info("Password changed", zap.String("userId", userID))
	return nil
}

func (s *PasswordService) replace(ctx context.Context, userID, password string, change repository.PasswordChange) error {
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return err
	}
	change.At = s.Now()
	return s.Users.ReplacePassword(ctx, userID, hash, change)
}

// issueOTP stores a fresh code and hands it to the notifier. A delivery
// failure is reported through the returned bool, never as an error.
func (s *PasswordService) issueOTP(ctx context.Context, user *model.User, purpose OTPPurpose) (bool, error) {
	code, err := s.OTP.Issue(ctx, user.ID)
	if err != nil {
		return false, err
	}
	monitoring.RecordAuthEvent(monitoring.EventOTPIssued)

	if err := s.Notifier.SendOTP(ctx, user, code, purpose); err != nil {
		monitoring.RecordAuthEvent(monitoring.EventNotifierError)
		logger.Log.Warn("OTP delivery failed",
			zap.String("userId", user.ID),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
		return false, nil
	}
	return true, nil
}

func (s *PasswordService) allowOTP(ctx context.Context, userID string) bool {
	allowed, err := s.Throttle.Allow(ctx, userID, s.Policy.OTPResendCooldown)
	if err != nil {
		// an unavailable throttle must not block password recovery
		logger.Log.Warn("OTP throttle unavailable", zap.Error(err))
		return true
	}
	return allowed
}

// RequestPasswordChangeOTP reports whether the code was delivered.
func (s *PasswordService) RequestPasswordChangeOTP(ctx context.Context, userID string) (bool, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !s.allowOTP(ctx, user.ID) {
		return false, util.ErrTooManyRequests
	}
	return s.issueOTP(ctx, user, PurposePasswordChange)
}

// VerifyPasswordChangeOTP checks the code without consuming it.
func (s *PasswordService) VerifyPasswordChangeOTP(ctx context.Context, userID, code string) error {
	if len(code) != util.OTPLength {
		return util.Validation("OTP must be %d digits", util.OTPLength)
	}
	creds, err := s.Users.FindCredentials(ctx, userID)
	if err != nil {
		return err
	}
	if !s.OTP.Valid(creds, code) {
		return util.ErrInvalidOTP
	}
	return nil
}

func (s *PasswordService) VerifyOTPAndChangePassword(ctx context.Context, userID, code, newPassword, confirm string) error {
	if code == "" || newPassword == "" || confirm == "" {
		return util.Validation("OTP, new password and confirm password are required")
	}
	if err := checkNewPassword(newPassword, confirm); err != nil {
		return err
	}
	if err := util.ValidatePasswordLength(newPassword); err != nil {
		return err
	}

	creds, err := s.Users.FindCredentials(ctx, userID)
	if err != nil {
		return err
	}
	if !s.OTP.Valid(creds, code) {
		return util.ErrInvalidOTP
	}

	// Accounts created with a generated password may have a digest that
	// cannot be compared; the check is skipped for them.
	same, err := s.Hasher.Verify(newPassword, creds.PasswordHash)
	switch {
	case err != nil:
		logger.Log.Debug("Skipping password reuse check", zap.String("userId", userID), zap.Error(err))
	case same:
		return util.Validation("new password must be different from the current password")
	}

	if err := s.replace(ctx, userID, newPassword, repository.PasswordChange{ConsumeOTP: *creds.OTPHash}); err != nil {
		return err
	}
	monitoring.RecordAuthEvent(monitoring.EventPasswordChange)
	logger.Log.Info("Password changed with OTP", zap.String("userId", userID))
	return nil
}

// activeUserByEmail resolves the target of a forgotten-password request.
// Any failure to find an active account is reported as util.ErrUserNotFound.
func (s *PasswordService) activeUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = util.NormalizeEmail(email)
	if !util.IsEmail(email) {
		return nil, util.ErrUserNotFound
	}
	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, util.ErrUserNotFound
	}
	return user, nil
}

// ForgotPasswordOTP sends a reset code when email belongs to an active
// account. It has no observable result so callers cannot tell the cases apart.
func (s *PasswordService) ForgotPasswordOTP(ctx context.Context, email string) {
	user, err := s.activeUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, util.ErrUserNotFound) {
			logger.Log.Error("Forgot password lookup failed", zap.Error(err))
		}
		return
	}
	if !s.allowOTP(ctx, user.ID) {
		logger.Log.Debug("Forgot password OTP throttled", zap.String("userId", user.ID))
		return
	}
	if _, err := s.issueOTP(ctx, user, PurposeForgotPassword); err != nil {
		logger.Log.Error("Forgot password OTP failed", zap.String("userId", user.ID), zap.Error(err))
	}
}

// resetCredentials loads the credentials behind a forgotten-password request,
// collapsing every failure into util.ErrInvalidOTP.
func (s *PasswordService) resetCredentials(ctx context.Context, email, code string) (*model.User, *model.Credentials, error) {
	if len(code) != util.OTPLength {
		return nil, nil, util.ErrInvalidOTP
	}
	user, err := s.activeUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, util.ErrUserNotFound) {
			return nil, nil, err
		}
		return nil, nil, util.ErrInvalidOTP
	}
	creds, err := s.Users.FindCredentials(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if !s.OTP.Valid(creds, code) {
		return nil, nil, util.ErrInvalidOTP
	}
	return user, creds, nil
}

func (s *PasswordService) VerifyForgotPasswordOTP(ctx context.Context, email, code string) error {
	_, _, err := s.resetCredentials(ctx, email, code)
	return err
}

func (s *PasswordService) ResetPasswordWithOTP(ctx context.Context, email, code, newPassword, confirm string) error {
	if email == "" || code == "" || newPassword == "" || confirm == "" {
		return util.Validation("email, OTP, new password and confirm password are required")
	}
	if err := checkNewPassword(newPassword, confirm); err != nil {
		return err
	}
	if err := util.ValidatePasswordComplexity(newPassword); err != nil {
		return err
	}

	user, creds, err := s.resetCredentials(ctx, email, code)
	if err != nil {
		return err
	}
	change := repository.PasswordChange{ConsumeOTP: *creds.OTPHash, Unlock: true}
	if err := s.replace(ctx, user.ID, newPassword, change); err != nil {
		return err
	}
	monitoring.RecordAuthEvent(monitoring.EventPasswordReset)
	logger.Log.Info("Password reset with OTP", zap.String("userId", user.ID))
	return nil
}

// ForgotPasswordLink mails a single-use reset link. Like ForgotPasswordOTP it
// has no observable result.
func (s *PasswordService) ForgotPasswordLink(ctx context.Context, email string) {
	user, err := s.activeUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, util.ErrUserNotFound) {
			logger.Log.Error("Forgot password lookup failed", zap.Error(err))
		}
		return
	}

	token, err := util.RandomToken(util.ResetTokenBytes)
	if err != nil {
		logger.Log.Error("Reset token generation failed", zap.Error(err))
		return
	}
	if err := s.Users.SetPasswordReset(ctx, user.ID, util.SHA256Hex(token), s.Now().Add(s.Policy.ResetLinkTTL)); err != nil {
		logger.Log.Error("Reset token store failed", zap.String("userId", user.ID), zap.Error(err))
		return
	}

	link := fmt.Sprintf("%s/reset-password/%s", s.FrontendURL, token)
	if err := s.Notifier.SendResetLink(ctx, user, link); err != nil {
		monitoring.RecordAuthEvent(monitoring.EventNotifierError)
		logger.Log.Warn("Reset link delivery failed", zap.String("userId", user.ID), zap.Error(err))
	}
}

func (s *PasswordService) ResetPasswordWithToken(ctx context.Context, token, password string) error {
	if err := util.ValidatePasswordLength(password); err != nil {
		return err
	}
	if token == "" {
		return util.ErrInvalidResetToken
	}

	digest := util.SHA256Hex(token)
	user, creds, err := s.Users.FindByResetHash(ctx, digest)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			return util.ErrInvalidResetToken
		}
		return err
	}
	if creds.PasswordResetExpiresAt == nil || !s.Now().Before(*creds.PasswordResetExpiresAt) {
		return util.ErrInvalidResetToken
	}

	if err := s.replace(ctx, user.ID, password, repository.PasswordChange{ConsumeReset: digest, Unlock: true}); err != nil {
		return err
	}
	monitoring.RecordAuthEvent(monitoring.EventPasswordReset)
	logger.Log.Info("Password reset with link", zap.String("userId", user.ID))
	return nil
}
