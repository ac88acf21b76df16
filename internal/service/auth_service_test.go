package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/testutils"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginWithEmailAndEmployeeID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lw := env.department(t, model.DeptLivewire)
	rec := env.userWithPassword(t, "Teach1!pass",
		testutils.WithEmail("alice@x.test"),
		testutils.AsTeacher(lw.ID, "LW-003"),
	)

	res, err := env.auth.Login(ctx, "ALICE@x.test", "Teach1!pass", testClient)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, res.User.ID)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	require.NotNil(t, res.User.LastLoginAt)
	assert.Equal(t, env.clock.Now(), *res.User.LastLoginAt)

	claims, err := env.signer.Parse(util.AccessToken, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, claims.UserID)
	assert.Equal(t, model.Teacher, claims.Role)
	assert.Equal(t, util.Fingerprint(testClient.UserAgent, testClient.IP), claims.Fingerprint)

	creds := env.credentials(t, rec.ID)
	require.NotNil(t, creds.RefreshTokenHash)
	assert.Equal(t, util.SHA256Hex(res.RefreshToken), *creds.RefreshTokenHash)

	res, err = env.auth.Login(ctx, "lw-003", "Teach1!pass", testClient)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, res.User.ID)
}

func TestLoginRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.userWithPassword(t, "Right1!pass", testutils.WithEmail("a@x.test"))
	env.userWithPassword(t, "Right1!pass", testutils.WithEmail("off@x.test"), testutils.Inactive())

	_, err := env.auth.Login(ctx, "not-an-id", "whatever", testClient)
	assert.ErrorIs(t, err, util.ErrMalformedID)

	_, err = env.auth.Login(ctx, "a@x.test", "", testClient)
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = env.auth.Login(ctx, "nobody@x.test", "Right1!pass", testClient)
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	_, err = env.auth.Login(ctx, "a@x.test", "Wrong1!pass", testClient)
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	_, err = env.auth.Login(ctx, "off@x.test", "Right1!pass", testClient)
	assert.ErrorIs(t, err, util.ErrAccountInactive)
}

func TestLoginLockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := env.userWithPassword(t, "Right1!pass", testutils.WithEmail("a@x.test"))

	for i := 1; i <= testPolicy.MaxFailedAttempts; i++ {
		_, err := env.auth.Login(ctx, "a@x.test", "wrong-password", testClient)
		require.ErrorIs(t, err, util.ErrInvalidCredentials, "attempt %d", i)
	}

	creds := env.credentials(t, rec.ID)
	assert.Equal(t, testPolicy.MaxFailedAttempts, creds.FailedAttempts)
	require.NotNil(t, creds.LockedUntil)

	// the right password does not help while locked
	_, err := env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	locked, ok := isLocked(err)
	require.True(t, ok, "expected a lock, got %v", err)
	assert.Equal(t, 120, locked.RemainingMinutes)
	assert.ErrorIs(t, err, util.ErrAccountLocked)

	env.clock.Advance(30*time.Minute + 10*time.Second)
	_, err = env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	locked, ok = isLocked(err)
	require.True(t, ok)
	assert.Equal(t, 90, locked.RemainingMinutes)

	// a further failure while locked neither extends the lock nor counts
	lockedUntil := *env.credentials(t, rec.ID).LockedUntil
	_, err = env.auth.Login(ctx, "a@x.test", "wrong-password", testClient)
	_, ok = isLocked(err)
	require.True(t, ok)
	assert.WithinDuration(t, lockedUntil, *env.credentials(t, rec.ID).LockedUntil, time.Millisecond)

	env.clock.Advance(90 * time.Minute)
	res, err := env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, res.User.ID)

	creds = env.credentials(t, rec.ID)
	assert.Zero(t, creds.FailedAttempts)
	assert.Nil(t, creds.LockedUntil)
}

func TestLoginExpiredLockStartsFreshCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := env.userWithPassword(t, "Right1!pass", testutils.WithEmail("a@x.test"))

	for i := 0; i < testPolicy.MaxFailedAttempts; i++ {
		_, _ = env.auth.Login(ctx, "a@x.test", "wrong-password", testClient)
	}
	env.clock.Advance(testPolicy.LockoutDuration + time.Second)

	_, err := env.auth.Login(ctx, "a@x.test", "wrong-password", testClient)
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	creds := env.credentials(t, rec.ID)
	assert.Equal(t, 1, creds.FailedAttempts)
	assert.Nil(t, creds.LockedUntil)
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := env.userWithPassword(t, "Right1!pass", testutils.WithEmail("a@x.test"))

	for i := 0; i < testPolicy.MaxFailedAttempts-1; i++ {
		_, _ = env.auth.Login(ctx, "a@x.test", "wrong-password", testClient)
	}
	_, err := env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	require.NoError(t, err)
	assert.Zero(t, env.credentials(t, rec.ID).FailedAttempts)

	_, err = env.auth.Login(ctx, "a@x.test", "wrong-password", testClient)
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	assert.Nil(t, env.credentials(t, rec.ID).LockedUntil)
}

func TestRefreshAndLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := env.userWithPassword(t, "Right1!pass", testutils.WithEmail("a@x.test"))

	login, err := env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	res, err := env.auth.Refresh(ctx, login.RefreshToken, testClient)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, res.User.ID)
	assert.NotEmpty(t, res.AccessToken)
	assert.Empty(t, res.RefreshToken)

	// a different client still gets a token; the drift is only logged
	_, err = env.auth.Refresh(ctx, login.RefreshToken, ClientInfo{UserAgent: "other", IP: "10.9.9.9"})
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, login.AccessToken, testClient)
	assert.ErrorIs(t, err, util.ErrInvalidRefreshToken)

	_, err = env.auth.Refresh(ctx, "", testClient)
	assert.ErrorIs(t, err, util.ErrInvalidRefreshToken)

	require.NoError(t, env.auth.Logout(ctx, rec.ID))
	_, err = env.auth.Refresh(ctx, login.RefreshToken, testClient)
	assert.ErrorIs(t, err, util.ErrInvalidRefreshToken)

	assert.NoError(t, env.auth.Logout(ctx, "missing"))
	assert.NoError(t, env.auth.Logout(ctx, ""))
}

func TestRefreshTokenReplacedByNewLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.userWithPassword(t, "Right1!pass", testutils.WithEmail("a@x.test"))

	first, err := env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	second, err := env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, first.RefreshToken, testClient)
	assert.ErrorIs(t, err, util.ErrInvalidRefreshToken)
	_, err = env.auth.Refresh(ctx, second.RefreshToken, testClient)
	assert.NoError(t, err)
}

func TestRefreshExpiredAndDeactivated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := env.userWithPassword(t, "Right1!pass", testutils.WithEmail("a@x.test"))

	login, err := env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	require.NoError(t, err)

	require.NoError(t, env.users.SetActive(ctx, rec.ID, false))
	_, err = env.auth.Refresh(ctx, login.RefreshToken, testClient)
	assert.ErrorIs(t, err, util.ErrInvalidRefreshToken)

	require.NoError(t, env.users.SetActive(ctx, rec.ID, true))
	login, err = env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	require.NoError(t, err)

	env.clock.Advance(testPolicy.RefreshTokenTTL + time.Second)
	_, err = env.auth.Refresh(ctx, login.RefreshToken, testClient)
	assert.ErrorIs(t, err, util.ErrInvalidRefreshToken)
}

func TestLogoutWithRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := env.userWithPassword(t, "Right1!pass", testutils.WithEmail("a@x.test"))

	login, err := env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	require.NoError(t, err)

	assert.NoError(t, env.auth.LogoutWithRefreshToken(ctx, "garbage"))
	assert.NotNil(t, env.credentials(t, rec.ID).RefreshTokenHash)

	require.NoError(t, env.auth.LogoutWithRefreshToken(ctx, login.RefreshToken))
	assert.Nil(t, env.credentials(t, rec.ID).RefreshTokenHash)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lw := env.department(t, model.DeptLivewire)

	// the first admin of an empty installation needs no caller
	res, err := env.auth.Register(ctx, RegisterInput{
		Name: "Root", Email: "root@x.test", Password: "password1", Role: model.Admin,
	}, testClient)
	require.NoError(t, err)
	assert.Equal(t, model.Admin, res.User.Role)
	assert.NotEmpty(t, res.AccessToken)
	assert.Empty(t, res.RefreshToken)
	assert.Nil(t, res.User.TeacherProfile)

	_, err = env.auth.Register(ctx, RegisterInput{
		Name: "Second", Email: "second@x.test", Password: "password1", Role: model.Admin,
	}, testClient)
	assert.ErrorIs(t, err, util.ErrForbidden)

	caller := &util.Claims{UserID: res.User.ID, Role: model.Admin}
	_, err = env.auth.Register(ctx, RegisterInput{
		Name: "Second", Email: "second@x.test", Password: "password1", Role: model.Admin, Caller: caller,
	}, testClient)
	require.NoError(t, err)

	teacher, err := env.auth.Register(ctx, RegisterInput{
		Name: "Tina", Email: "tina@x.test", Password: "password1", DepartmentID: lw.ID,
	}, testClient)
	require.NoError(t, err)
	assert.Equal(t, model.Teacher, teacher.User.Role)
	require.NotNil(t, teacher.User.TeacherProfile)
	assert.Equal(t, "LW-001", teacher.User.EmployeeID)
	assert.Equal(t, lw.ID, teacher.User.DepartmentID)

	_, err = env.auth.Login(ctx, "LW-001", "password1", testClient)
	assert.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutils.CreateTestUser(t, env.db, testutils.WithEmail("taken@x.test"))

	cases := map[string]RegisterInput{
		"short name":     {Name: "A", Email: "a@x.test", Password: "password1"},
		"bad email":      {Name: "Al", Email: "nope", Password: "password1"},
		"long password":  {Name: "Al", Email: "a@x.test", Password: "Aa1!" + strings.Repeat("x", 80)},
		"short password": {Name: "Al", Email: "a@x.test", Password: "short"},
		"bad role":       {Name: "Al", Email: "a@x.test", Password: "password1", Role: "root"},
		"no department":  {Name: "Al", Email: "a@x.test", Password: "password1", Role: model.Teacher},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.auth.Register(ctx, in, testClient)
			assert.ErrorIs(t, err, util.ErrValidation)
		})
	}

	_, err := env.auth.Register(ctx, RegisterInput{
		Name: "Al", Email: "TAKEN@x.test", Password: "password1", Role: model.Admin,
		Caller: &util.Claims{Role: model.Admin},
	}, testClient)
	assert.ErrorIs(t, err, util.ErrEmailTaken)

	_, err = env.auth.Register(ctx, RegisterInput{
		Name: "Al", Email: "al@x.test", Password: "password1", DepartmentID: "missing",
	}, testClient)
	assert.ErrorIs(t, err, util.ErrDepartmentNotFound)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lw := env.department(t, model.DeptLivewire)
	rec := testutils.CreateTestUser(t, env.db, testutils.WithEmail("t@x.test"), testutils.AsTeacher(lw.ID, "LW-001"))

	name := "  Tina Turner "
	specialization := "Revit"
	user, err := env.auth.UpdateProfile(ctx, rec.ID, model.ProfileUpdate{Name: &name, Specialization: &specialization})
	require.NoError(t, err)
	assert.Equal(t, "Tina Turner", user.Name)
	assert.Equal(t, "Revit", *user.Specialization)

	negative := -1
	_, err = env.auth.UpdateProfile(ctx, rec.ID, model.ProfileUpdate{Experience: &negative})
	assert.ErrorIs(t, err, util.ErrValidation)

	bad := "not-an-email"
	_, err = env.auth.UpdateProfile(ctx, rec.ID, model.ProfileUpdate{Email: &bad})
	assert.ErrorIs(t, err, util.ErrValidation)

	profile, err := env.auth.GetProfile(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tina Turner", profile.Name)
}

func TestValidateSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := env.userWithPassword(t, "Right1!pass", testutils.WithEmail("a@x.test"))

	claimsOf := func(token string) *util.Claims {
		t.Helper()
		claims, err := env.signer.Parse(util.AccessToken, token)
		require.NoError(t, err)
		return claims
	}

	before, err := env.auth.Login(ctx, "a@x.test", "Right1!pass", testClient)
	require.NoError(t, err)
	require.NoError(t, env.auth.ValidateSession(ctx, claimsOf(before.AccessToken)))

	env.clock.Advance(time.Second)
	require.NoError(t, env.passwords.ChangePassword(ctx, rec.ID, "Right1!pass", "Other1!pass", "Other1!pass"))
	assert.ErrorIs(t, env.auth.ValidateSession(ctx, claimsOf(before.AccessToken)), util.ErrInvalidCredentials)

	after, err := env.auth.Login(ctx, "a@x.test", "Other1!pass", testClient)
	require.NoError(t, err)
	require.NoError(t, env.auth.ValidateSession(ctx, claimsOf(after.AccessToken)))

	require.NoError(t, env.users.SetActive(ctx, rec.ID, false))
	assert.ErrorIs(t, env.auth.ValidateSession(ctx, claimsOf(after.AccessToken)), util.ErrAccountInactive)

	require.NoError(t, env.users.Delete(ctx, rec.ID))
	assert.ErrorIs(t, env.auth.ValidateSession(ctx, claimsOf(after.AccessToken)), util.ErrInvalidCredentials)
}
