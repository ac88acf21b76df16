package service

import (
	"context"
	"fmt"
	"time"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/logger"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/mailer"
	"go.uber.org/zap"
)

type OTPPurpose string

const (
	PurposePasswordChange OTPPurpose = "password_change"
	PurposeForgotPassword OTPPurpose = "forgot_password"
)

// Notifier delivers credential material to the account owner. Every method
// returns an error wrapping util.ErrNotifierFailure when delivery fails.
type Notifier interface {
	SendWelcome(ctx context.Context, user *model.User, password string) error
	SendOTP(ctx context.Context, user *model.User, code string, purpose OTPPurpose) error
	SendResetLink(ctx context.Context, user *model.User, link string) error
}

type EmailService struct {
	Sender       mailer.Sender
	Templates    *mailer.Templates
	AppName      string
	LoginURL     string
	OTPTTL       time.Duration
	ResetLinkTTL time.Duration
}

func NewEmailService(sender mailer.Sender, templates *mailer.Templates, appName, frontendURL string, otpTTL, resetTTL time.Duration) *EmailService {
	loginURL := ""
	if frontendURL != "" {
		loginURL = frontendURL + "/login"
	}
	return &EmailService{
		Sender:       sender,
		Templates:    templates,
		AppName:      appName,
		LoginURL:     loginURL,
		OTPTTL:       otpTTL,
		ResetLinkTTL: resetTTL,
	}
}

func (s *EmailService) deliver(to, subject, name string, data interface{}) error {
	body, err := s.Templates.Render(name, data)
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrNotifierFailure, err)
	}
	if err := mailer.SendHTML(s.Sender, to, subject, body); err != nil {
		logger.Log.Warn("Email delivery failed",
			zap.String("template", name),
			zap.String("to", to),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", util.ErrNotifierFailure, err)
	}
	return nil
}

func (s *EmailService) SendWelcome(_ context.Context, user *model.User, password string) error {
	data := mailer.WelcomeData{
		AppName:  s.AppName,
		Name:     user.Name,
		LoginID:  user.Email,
		Password: password,
		LoginURL: s.LoginURL,
	}
	if user.IsTeacher() {
		data.EmployeeID = user.EmployeeID
	}
	return s.deliver(user.Email, "Welcome to "+s.AppName, mailer.TemplateWelcome, data)
}

func (s *EmailService) SendOTP(_ context.Context, user *model.User, code string, purpose OTPPurpose) error {
	subject, action := "Password change verification code", "confirm your password change"
	if purpose == PurposeForgotPassword {
		subject, action = "Password reset code", "reset your password"
	}
	return s.deliver(user.Email, subject, mailer.TemplateOTP, mailer.OTPData{
		AppName:          s.AppName,
		Name:             user.Name,
		Purpose:          action,
		Code:             code,
		ExpiresInMinutes: int(s.OTPTTL / time.Minute),
	})
}

func (s *EmailService) SendResetLink(_ context.Context, user *model.User, link string) error {
	return s.deliver(user.Email, "Password reset request", mailer.TemplateResetLink, mailer.ResetLinkData{
		AppName:          s.AppName,
		Name:             user.Name,
		Link:             link,
		ExpiresInMinutes: int(s.ResetLinkTTL / time.Minute),
	})
}
