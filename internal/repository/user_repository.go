package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"gorm.io/gorm"
)

var publicColumns = []string{
	"id", "created_at", "updated_at", "name", "email", "role",
	"department_id", "employee_id", "phone", "address", "joining_date",
	"qualification", "experience", "specialization", "active", "last_login_at",
}

var credentialColumns = []string{
	"id", "password_hash", "password_changed_at", "refresh_token_hash", "password_reset_hash",
	"password_reset_expires_at", "otp_hash", "otp_expires_at",
	"failed_attempts", "locked_until",
}

// UserRepository is the User Store. Plain reads never load credential
// columns; credential reads go through FindCredentials.
type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) users(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&model.UserRecord{})
}

func (r *UserRepository) Create(ctx context.Context, rec *model.UserRecord) (*model.User, error) {
	rec.Email = util.NormalizeEmail(rec.Email)

	if err := r.DB.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, r.classifyConflict(ctx, err, rec.Email)
		}
		return nil, err
	}
	return rec.Public(), nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var rec model.UserRecord
	err := r.users(ctx).Select(publicColumns).Where(query, args...).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return rec.Public(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email = ?", util.NormalizeEmail(email))
}

func (r *UserRepository) FindByEmployeeID(ctx context.Context, employeeID string) (*model.User, error) {
	return r.findOne(ctx, "employee_id = ?", strings.ToUpper(employeeID))
}

// FindCredentials is the only read that returns password and token hashes.
func (r *UserRepository) FindCredentials(ctx context.Context, id string) (*model.Credentials, error) {
	var rec model.UserRecord
	err := r.users(ctx).Select(credentialColumns).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return rec.Secrets(), nil
}

// FindByResetHash resolves an in-flight link reset by the hash of its token.
func (r *UserRepository) FindByResetHash(ctx context.Context, hash string) (*model.User, *model.Credentials, error) {
	var rec model.UserRecord
	err := r.DB.WithContext(ctx).Where("password_reset_hash = ?", hash).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrUserNotFound
		}
		return nil, nil, err
	}
	return rec.Public(), rec.Secrets(), nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		email := util.NormalizeEmail(*upd.Email)
		upd.Email = &email
	}

	cols := upd.Columns(current.Role == model.Teacher)
	if len(cols) == 0 {
		return current, nil
	}

	if err := r.users(ctx).Where("id = ?", id).Updates(cols).Error; err != nil {
		if isDuplicateKey(err) {
			email := ""
			if upd.Email != nil {
				email = *upd.Email
			}
			return nil, r.classifyConflict(ctx, err, email)
		}
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) update(ctx context.Context, id string, cols map[string]interface{}) error {
	res := r.users(ctx).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	cols := map[string]interface{}{"active": active}
	if !active {
		cols["refresh_token_hash"] = nil
	}
	return r.update(ctx, id, cols)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&model.UserRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrUserNotFound
	}
	return nil
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role         model.UserRole
	DepartmentID string
	Active       *bool
	Search       string
}

func (f UserFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Role != "" {
		db = db.Where("role = ?", f.Role)
	}
	if f.DepartmentID != "" {
		db = db.Where("department_id = ?", f.DepartmentID)
	}
	if f.Active != nil {
		db = db.Where("active = ?", *f.Active)
	}
	if f.Search != "" {
		term := "%" + strings.ToLower(f.Search) + "%"
		db = db.Where("LOWER(name) LIKE ? OR email LIKE ? OR employee_id LIKE ?", term, term, strings.ToUpper(term))
	}
	return db
}

func (r *UserRepository) List(ctx context.Context, filter UserFilter, page, pageSize int) ([]*model.User, int64, error) {
	var total int64
	if err := r.users(ctx).Scopes(filter.scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []model.UserRecord
	err := r.users(ctx).Scopes(filter.scope).
		Select(publicColumns).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&recs).Error
	if err != nil {
		return nil, 0, err
	}

	users := make([]*model.User, 0, len(recs))
	for i := range recs {
		users = append(users, recs[i].Public())
	}
	return users, total, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role model.UserRole) (int64, error) {
	var count int64
	err := r.users(ctx).Where("role = ?", role).Count(&count).Error
	return count, err
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.users(ctx).Where("email = ?", util.NormalizeEmail(email)).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) EmployeeIDExists(ctx context.Context, employeeID string) (bool, error) {
	var count int64
	err := r.users(ctx).Where("employee_id = ?", employeeID).Count(&count).Error
	return count > 0, err
}

// MaxEmployeeSequence returns the largest numeric suffix among teacher ids
// of the form CODE-N, or 0 when there are none.
func (r *UserRepository) MaxEmployeeSequence(ctx context.Context, code string) (int, error) {
	var ids []string
	err := r.users(ctx).
		Where("role = ? AND employee_id LIKE ?", model.Teacher, code+"-%").
		Pluck("employee_id", &ids).Error
	if err != nil {
		return 0, err
	}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(code) + `-(\d+)$`)
	max := 0
	for _, id := range ids {
		m := pattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

// Credential writes.

func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	return r.update(ctx, id, map[string]interface{}{"refresh_token_hash": hash})
}

// RecordLogin closes a successful authentication in a single write: the
// failure counter and lock are cleared and the new session installed.
func (r *UserRepository) RecordLogin(ctx context.Context, id string, at time.Time, refreshHash string) error {
	return r.update(ctx, id, map[string]interface{}{
		"failed_attempts":    0,
		"locked_until":       nil,
		"last_login_at":      at,
		"refresh_token_hash": refreshHash,
	})
}

// IncrementFailedAttempts bumps the counter atomically and returns the new value.
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	res := r.users(ctx).Where("id = ?", id).
		UpdateColumn("failed_attempts", gorm.Expr("failed_attempts + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, util.ErrUserNotFound
	}

	var attempts []int
	if err := r.users(ctx).Where("id = ?", id).Pluck("failed_attempts", &attempts).Error; err != nil {
		return 0, err
	}
	if len(attempts) == 0 {
		return 0, util.ErrUserNotFound
	}
	return attempts[0], nil
}

// Lock sets locked_until only if no lock is installed yet. It reports whether
// this call installed the lock.
func (r *UserRepository) Lock(ctx context.Context, id string, until time.Time) (bool, error) {
	res := r.users(ctx).Where("id = ? AND locked_until IS NULL", id).
		UpdateColumn("locked_until", until)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClearLock ends an expired lockout and resets the failure counter.
func (r *UserRepository) ClearLock(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]interface{}{
		"failed_attempts": 0,
		"locked_until":    nil,
	})
}

func (r *UserRepository) SetOTP(ctx context.Context, id string, hash string, expiresAt time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"otp_hash":       hash,
		"otp_expires_at": expiresAt,
	})
}

func (r *UserRepository) ClearOTP(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]interface{}{
		"otp_hash":       nil,
		"otp_expires_at": nil,
	})
}

func (r *UserRepository) SetPasswordReset(ctx context.Context, id string, hash string, expiresAt time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"password_reset_hash":       hash,
		"password_reset_expires_at": expiresAt,
	})
}

// PasswordChange describes what else is cleared when a password is replaced.
// ConsumeOTP and ConsumeReset carry the digest that must still be stored for
// the write to apply, so a code or link is redeemed at most once.
type PasswordChange struct {
	ConsumeOTP   string
	ConsumeReset string
	Unlock       bool
	// At stamps password_changed_at; access tokens issued earlier stop working.
	At time.Time
}

// ReplacePassword installs a new digest and ends the current session.
func (r *UserRepository) ReplacePassword(ctx context.Context, id string, hash string, change PasswordChange) error {
	cols := map[string]interface{}{
		"password_hash":      hash,
		"refresh_token_hash": nil,
	}
	if !change.At.IsZero() {
		cols["password_changed_at"] = change.At
	}
	query := r.users(ctx).Where("id = ?", id)
	if change.ConsumeOTP != "" {
		cols["otp_hash"] = nil
		cols["otp_expires_at"] = nil
		query = query.Where("otp_hash = ?", change.ConsumeOTP)
	}
	if change.ConsumeReset != "" {
		cols["password_reset_hash"] = nil
		cols["password_reset_expires_at"] = nil
		query = query.Where("password_reset_hash = ?", change.ConsumeReset)
	}
	if change.Unlock {
		cols["failed_attempts"] = 0
		cols["locked_until"] = nil
	}

	res := query.Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		switch {
		case change.ConsumeOTP != "":
			return util.ErrInvalidOTP
		case change.ConsumeReset != "":
			return util.ErrInvalidResetToken
		}
		return util.ErrUserNotFound
	}
	return nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

func (r *UserRepository) classifyConflict(ctx context.Context, err error, email string) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "employee_id"):
		return util.ErrEmployeeIDTaken
	case strings.Contains(msg, "email"):
		return util.ErrEmailTaken
	}
	if email != "" {
		if exists, probeErr := r.EmailExists(ctx, email); probeErr == nil && exists {
			return util.ErrEmailTaken
		}
	}
	return fmt.Errorf("%w: %v", util.ErrConflict, err)
}
