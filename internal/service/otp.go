package service

import (
	"context"
	"time"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
)

// OTPManager issues and checks six-digit one-time codes. Only the sha-256 of
// a code is stored; issuing a new code overwrites the previous one.
type OTPManager struct {
	Store UserStore
	TTL   time.Duration
	Now   func() time.Time
}

func NewOTPManager(store UserStore, ttl time.Duration) *OTPManager {
	return &OTPManager{Store: store, TTL: ttl, Now: time.Now}
}

func (m *OTPManager) Issue(ctx context.Context, userID string) (string, error) {
	code, err := util.RandomDigits(util.OTPLength)
	if err != nil {
		return "", err
	}
	if err := m.Store.SetOTP(ctx, userID, util.SHA256Hex(code), m.Now().Add(m.TTL)); err != nil {
		return "", err
	}
	return code, nil
}

// Valid reports whether code matches the stored, unexpired OTP. It does not
// consume the code.
func (m *OTPManager) Valid(creds *model.Credentials, code string) bool {
	if creds.OTPHash == nil || creds.OTPExpiresAt == nil {
		return false
	}
	if len(code) != util.OTPLength {
		return false
	}
	if !m.Now().Before(*creds.OTPExpiresAt) {
		return false
	}
	return util.EqualHash(util.SHA256Hex(code), *creds.OTPHash)
}

func (m *OTPManager) Clear(ctx context.Context, userID string) error {
	return m.Store.ClearOTP(ctx, userID)
}
