package model

import (
	"time"
)

type UserRole string

const (
	Admin   UserRole = "admin"
	Teacher UserRole = "teacher"
)

func (r UserRole) Valid() bool {
	return r == Admin || r == Teacher
}

// UserRecord is the persisted row of the users table. It never leaves the
// repository package: reads hand out User or Credentials instead.
type UserRecord struct {
	UUIDBase
	Name  string   `gorm:"size:50;not null"`
	Email string   `gorm:"size:100;uniqueIndex;not null"`
	Role  UserRole `gorm:"size:20;not null;default:'teacher';index"`

	// Teacher-only columns; NULL for admins.
	DepartmentID   *string `gorm:"size:36;index"`
	EmployeeID     *string `gorm:"size:10;uniqueIndex"`
	Phone          *string `gorm:"size:20"`
	Address        *string `gorm:"size:255"`
	JoiningDate    *time.Time
	Qualification  *string `gorm:"size:100"`
	Experience     *int
	Specialization *string `gorm:"size:100"`

	Active      bool `gorm:"not null;default:true"`
	LastLoginAt *time.Time

	PasswordHash           string     `gorm:"size:100;not null"`
	PasswordChangedAt      *time.Time
	RefreshTokenHash       *string    `gorm:"size:64"`
	PasswordResetHash      *string    `gorm:"size:64;index"`
	PasswordResetExpiresAt *time.Time
	OTPHash                *string    `gorm:"column:otp_hash;size:64"`
	OTPExpiresAt           *time.Time `gorm:"column:otp_expires_at"`
	FailedAttempts         int        `gorm:"not null;default:0"`
	LockedUntil            *time.Time
}

func (UserRecord) TableName() string {
	return "users"
}

// TeacherProfile only exists on teacher accounts.
type TeacherProfile struct {
	DepartmentID   string     `json:"department"`
	EmployeeID     string     `json:"employeeId"`
	Phone          *string    `json:"phone,omitempty"`
	Address        *string    `json:"address,omitempty"`
	JoiningDate    *time.Time `json:"joiningDate,omitempty"`
	Qualification  *string    `json:"qualification,omitempty"`
	Experience     *int       `json:"experience,omitempty"`
	Specialization *string    `json:"specialization,omitempty"`
}

// User is the public view of an account. It carries no credential material,
// so it is always safe to serialise.
// swagger:model User
type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        UserRole   `json:"role"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	*TeacherProfile
}

func (u *User) IsTeacher() bool {
	return u.Role == Teacher && u.TeacherProfile != nil
}

// Credentials holds the secret half of an account. Only the account services
// read it; it has no JSON representation.
type Credentials struct {
	UserID                 string     `json:"-"`
	PasswordHash           string     `json:"-"`
	PasswordChangedAt      *time.Time `json:"-"`
	RefreshTokenHash       *string    `json:"-"`
	PasswordResetHash      *string    `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`
	OTPHash                *string    `json:"-"`
	OTPExpiresAt           *time.Time `json:"-"`
	FailedAttempts         int        `json:"-"`
	LockedUntil            *time.Time `json:"-"`
}

// LockedAt reports whether the account refuses authentication at now.
func (c *Credentials) LockedAt(now time.Time) bool {
	return c.LockedUntil != nil && now.Before(*c.LockedUntil)
}

// Public projects a stored row into its public view.
func (r *UserRecord) Public() *User {
	u := &User{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		Role:        r.Role,
		Active:      r.Active,
		LastLoginAt: r.LastLoginAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Role == Teacher {
		p := &TeacherProfile{
			Phone:          r.Phone,
			Address:        r.Address,
			JoiningDate:    r.JoiningDate,
			Qualification:  r.Qualification,
			Experience:     r.Experience,
			Specialization: r.Specialization,
		}
		if r.DepartmentID != nil {
			p.DepartmentID = *r.DepartmentID
		}
		if r.EmployeeID != nil {
			p.EmployeeID = *r.EmployeeID
		}
		u.TeacherProfile = p
	}
	return u
}

// Secrets projects a stored row into its credential half.
func (r *UserRecord) Secrets() *Credentials {
	return &Credentials{
		UserID:                 r.ID,
		PasswordHash:           r.PasswordHash,
		PasswordChangedAt:      r.PasswordChangedAt,
		RefreshTokenHash:       r.RefreshTokenHash,
		PasswordResetHash:      r.PasswordResetHash,
		PasswordResetExpiresAt: r.PasswordResetExpiresAt,
		OTPHash:                r.OTPHash,
		OTPExpiresAt:           r.OTPExpiresAt,
		FailedAttempts:         r.FailedAttempts,
		LockedUntil:            r.LockedUntil,
	}
}

// NewAdminRecord builds the row for an admin account.
func NewAdminRecord(name, email, passwordHash string) *UserRecord {
	return &UserRecord{
		Name:         name,
		Email:        email,
		Role:         Admin,
		Active:       true,
		PasswordHash: passwordHash,
	}
}

// NewTeacherRecord builds the row for a teacher account; department and
// employee id are mandatory by construction.
func NewTeacherRecord(name, email, passwordHash string, profile TeacherProfile) *UserRecord {
	dept := profile.DepartmentID
	eid := profile.EmployeeID
	return &UserRecord{
		Name:           name,
		Email:          email,
		Role:           Teacher,
		Active:         true,
		PasswordHash:   passwordHash,
		DepartmentID:   &dept,
		EmployeeID:     &eid,
		Phone:          profile.Phone,
		Address:        profile.Address,
		JoiningDate:    profile.JoiningDate,
		Qualification:  profile.Qualification,
		Experience:     profile.Experience,
		Specialization: profile.Specialization,
	}
}

// ProfileUpdate carries the editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name           *string
	Email          *string
	Phone          *string
	Address        *string
	JoiningDate    *time.Time
	Qualification  *string
	Experience     *int
	Specialization *string
}

func (p ProfileUpdate) Columns(teacher bool) map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Email != nil {
		cols["email"] = *p.Email
	}
	if !teacher {
		return cols
	}
	if p.Phone != nil {
		cols["phone"] = *p.Phone
	}
	if p.Address != nil {
		cols["address"] = *p.Address
	}
	if p.JoiningDate != nil {
		cols["joining_date"] = *p.JoiningDate
	}
	if p.Qualification != nil {
		cols["qualification"] = *p.Qualification
	}
	if p.Experience != nil {
		cols["experience"] = *p.Experience
	}
	if p.Specialization != nil {
		cols["specialization"] = *p.Specialization
	}
	return cols
}
