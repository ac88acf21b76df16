package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/config"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/repository"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/testutils"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeNotifier records what would have been mailed.
type fakeNotifier struct {
	mu        sync.Mutex
	fail      bool
	welcomes  map[string]string
	otps      map[string][]string
	links     map[string]string
	purposes  map[string]OTPPurpose
	sentCount int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		welcomes: map[string]string{},
		otps:     map[string][]string{},
		links:    map[string]string{},
		purposes: map[string]OTPPurpose{},
	}
}

func (n *fakeNotifier) SendWelcome(_ context.Context, user *model.User, password string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("%w: smtp down", util.ErrNotifierFailure)
	}
	n.sentCount++
	n.welcomes[user.Email] = password
	return nil
}

func (n *fakeNotifier) SendOTP(_ context.Context, user *model.User, code string, purpose OTPPurpose) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("%w: smtp down", util.ErrNotifierFailure)
	}
	n.sentCount++
	n.otps[user.Email] = append(n.otps[user.Email], code)
	n.purposes[user.Email] = purpose
	return nil
}

func (n *fakeNotifier) SendResetLink(_ context.Context, user *model.User, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("%w: smtp down", util.ErrNotifierFailure)
	}
	n.sentCount++
	n.links[user.Email] = link
	return nil
}

func (n *fakeNotifier) lastOTP(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.otps[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

func (n *fakeNotifier) resetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	link := n.links[email]
	if i := strings.LastIndex(link, "/reset-password/"); i >= 0 {
		return link[i+len("/reset-password/"):]
	}
	return ""
}

func (n *fakeNotifier) sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sentCount
}

var testPolicy = config.PolicyConfig{
	MaxFailedAttempts: 5,
	LockoutDuration:   2 * time.Hour,
	OTPTTL:            10 * time.Minute,
	OTPResendCooldown: time.Minute,
	ResetLinkTTL:      10 * time.Minute,
	AccessTokenTTL:    2 * time.Hour,
	RefreshTokenTTL:   7 * 24 * time.Hour,
}

var testClient = ClientInfo{UserAgent: "test-agent", IP: "10.0.0.1"}

type testEnv struct {
	db          *gorm.DB
	users       *repository.UserRepository
	departments *repository.DepartmentRepository
	clock       *testClock
	notifier    *fakeNotifier
	hasher      *util.PasswordHasher
	signer      *util.TokenSigner
	allocator   *EmployeeIDAllocator
	auth        *AuthService
	passwords   *PasswordService
	accounts    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutils.SetupTestDB(t)
	clock := newTestClock()
	users := repository.NewUserRepository(db)
	departments := repository.NewDepartmentRepository(db)
	hasher := util.NewPasswordHasher(bcrypt.MinCost)
	notifier := newFakeNotifier()
	signer := util.NewTokenSigner(util.TokenSignerOptions{
		AccessSecret:  "test-access-secret-test-access-secret",
		RefreshSecret: "test-refresh-secret-test-refresh-secret",
		Issuer:        "cdc-attendance",
		Audience:      "cdc-attendance-users",
		AccessTTL:     testPolicy.AccessTokenTTL,
		RefreshTTL:    testPolicy.RefreshTokenTTL,
		Now:           clock.Now,
	})

	allocator := NewEmployeeIDAllocator(users, departments, nil)

	auth := NewAuthService(users, departments, allocator, hasher, signer, testPolicy)
	auth.Now = clock.Now

	otp := NewOTPManager(users, testPolicy.OTPTTL)
	otp.Now = clock.Now
	throttle := NewMemoryThrottle()
	throttle.Now = clock.Now
	passwords := NewPasswordService(users, otp, hasher, notifier, throttle, testPolicy, "https://app.test/")
	passwords.Now = clock.Now

	return &testEnv{
		db:          db,
		users:       users,
		departments: departments,
		clock:       clock,
		notifier:    notifier,
		hasher:      hasher,
		signer:      signer,
		allocator:   allocator,
		auth:        auth,
		passwords:   passwords,
		accounts:    NewUserService(users, departments, allocator, hasher, notifier),
	}
}

// userWithPassword inserts an account whose password is known.
func (e *testEnv) userWithPassword(t *testing.T, password string, opts ...testutils.UserOption) *model.UserRecord {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return testutils.CreateTestUser(t, e.db, append(opts, testutils.WithPasswordHash(hash))...)
}

func (e *testEnv) credentials(t *testing.T, id string) *model.Credentials {
	t.Helper()
	creds, err := e.users.FindCredentials(context.Background(), id)
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	return creds
}

func (e *testEnv) department(t *testing.T, name model.DepartmentName) model.Department {
	t.Helper()
	return testutils.Department(t, e.db, name)
}

func isLocked(err error) (*util.LockedError, bool) {
	var locked *util.LockedError
	ok := errors.As(err, &locked)
	return locked, ok
}
