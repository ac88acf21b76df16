package service

import (
	"context"
	"testing"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/repository"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/testutils"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTeacherAllocatesNextEmployeeID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lw := env.department(t, model.DeptLivewire)
	testutils.CreateTestUser(t, env.db, testutils.WithEmail("one@x.test"), testutils.AsTeacher(lw.ID, "LW-001"))
	testutils.CreateTestUser(t, env.db, testutils.WithEmail("two@x.test"), testutils.AsTeacher(lw.ID, "LW-002"))

	preview, dept, err := env.accounts.PreviewEmployeeID(ctx, lw.ID)
	require.NoError(t, err)
	assert.Equal(t, "LW-003", preview)
	assert.Equal(t, model.DeptLivewire, dept.Name)

	experience := 3
	created, err := env.accounts.CreateTeacher(ctx, TeacherInput{
		Name:         "alice smith",
		Email:        "Alice@X.test",
		DepartmentID: lw.ID,
		Profile:      model.TeacherProfile{Experience: &experience},
	})
	require.NoError(t, err)
	assert.True(t, created.EmailSent)
	assert.Equal(t, "LW-003", created.User.EmployeeID)
	assert.Equal(t, "alice@x.test", created.User.Email)
	assert.Equal(t, 3, *created.User.Experience)

	password := env.notifier.welcomes["alice@x.test"]
	assert.Regexp(t, `^LW-003@Alice\d{4}$`, password)

	res, err := env.auth.Login(ctx, "LW-003", password, testClient)
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, res.User.ID)
}

func TestCreateTeacherFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lw := env.department(t, model.DeptLivewire)
	testutils.CreateTestUser(t, env.db, testutils.WithEmail("taken@x.test"))

	_, err := env.accounts.CreateTeacher(ctx, TeacherInput{Name: "Al", Email: "al@x.test"})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = env.accounts.CreateTeacher(ctx, TeacherInput{Name: "Al", Email: "al@x.test", DepartmentID: "missing"})
	assert.ErrorIs(t, err, util.ErrDepartmentNotFound)

	_, err = env.accounts.CreateTeacher(ctx, TeacherInput{Name: "Al", Email: "taken@x.test", DepartmentID: lw.ID})
	assert.ErrorIs(t, err, util.ErrEmailTaken)

	negative := -2
	_, err = env.accounts.CreateTeacher(ctx, TeacherInput{
		Name: "Al", Email: "al@x.test", DepartmentID: lw.ID,
		Profile: model.TeacherProfile{Experience: &negative},
	})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestCreateTeacherSequenceExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sy := env.department(t, model.DeptSynergy)
	testutils.CreateTestUser(t, env.db, testutils.WithEmail("last@x.test"), testutils.AsTeacher(sy.ID, "SY-999"))

	_, _, err := env.accounts.PreviewEmployeeID(ctx, sy.ID)
	assert.ErrorIs(t, err, util.ErrEmployeeIDExhausted)

	_, err = env.accounts.CreateTeacher(ctx, TeacherInput{Name: "Al", Email: "al@x.test", DepartmentID: sy.ID})
	assert.ErrorIs(t, err, util.ErrEmployeeIDExhausted)
}

func TestCreateTeacherWithoutDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dz := env.department(t, model.DeptDreamzone)
	env.notifier.fail = true

	created, err := env.accounts.CreateTeacher(ctx, TeacherInput{Name: "Dan", Email: "dan@x.test", DepartmentID: dz.ID})
	require.NoError(t, err)
	assert.False(t, created.EmailSent)
	assert.Equal(t, "DZ-001", created.User.EmployeeID)

	user, err := env.accounts.GetUser(ctx, created.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "dan@x.test", user.Email)
}

func TestCreateAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.accounts.CreateAdmin(ctx, "bob marley", "bob@x.test")
	require.NoError(t, err)
	assert.True(t, created.EmailSent)
	assert.Equal(t, model.Admin, created.User.Role)
	assert.Nil(t, created.User.TeacherProfile)

	password := env.notifier.welcomes["bob@x.test"]
	assert.Regexp(t, `^Admin@Bob\d{4}$`, password)

	_, err = env.auth.Login(ctx, "bob@x.test", password, testClient)
	assert.NoError(t, err)

	_, err = env.accounts.CreateAdmin(ctx, "Bob Again", "BOB@x.test")
	assert.ErrorIs(t, err, util.ErrEmailTaken)
}

func TestInitialPasswords(t *testing.T) {
	pw, err := InitialTeacherPassword("CADD-042", "  zara  khan")
	require.NoError(t, err)
	assert.Regexp(t, `^CADD-042@Zara\d{4}$`, pw)

	pw, err = InitialAdminPassword("")
	require.NoError(t, err)
	assert.Regexp(t, `^Admin@User\d{4}$`, pw)

	assert.Equal(t, "Élodie", firstName("éLODIE durand"))
}

func TestSetActiveAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutils.CreateTestUser(t, env.db, testutils.WithEmail("admin@x.test"))
	target := env.userWithPassword(t, "Right1!pass", testutils.WithEmail("t@x.test"))

	assert.ErrorIs(t, env.accounts.SetActive(ctx, admin.ID, admin.ID, false), util.ErrValidation)
	assert.NoError(t, env.accounts.SetActive(ctx, admin.ID, admin.ID, true))

	require.NoError(t, env.accounts.SetActive(ctx, admin.ID, target.ID, false))
	_, err := env.auth.Login(ctx, "t@x.test", "Right1!pass", testClient)
	assert.ErrorIs(t, err, util.ErrAccountInactive)

	require.NoError(t, env.accounts.SetActive(ctx, admin.ID, target.ID, true))
	_, err = env.auth.Login(ctx, "t@x.test", "Right1!pass", testClient)
	assert.NoError(t, err)

	assert.ErrorIs(t, env.accounts.SetActive(ctx, admin.ID, "missing", false), util.ErrUserNotFound)

	assert.ErrorIs(t, env.accounts.Delete(ctx, admin.ID, admin.ID), util.ErrValidation)
	require.NoError(t, env.accounts.Delete(ctx, admin.ID, target.ID))
	_, err = env.accounts.GetUser(ctx, target.ID)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestListUsersAndCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lw := env.department(t, model.DeptLivewire)
	testutils.CreateTestUser(t, env.db, testutils.WithEmail("admin@x.test"))
	testutils.CreateTestUser(t, env.db, testutils.WithEmail("t1@x.test"), testutils.AsTeacher(lw.ID, "LW-001"))
	testutils.CreateTestUser(t, env.db, testutils.WithEmail("t2@x.test"), testutils.AsTeacher(lw.ID, "LW-002"))

	users, total, err := env.accounts.ListUsers(ctx, repository.UserFilter{Role: model.Teacher}, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 2)

	users, total, err = env.accounts.ListUsers(ctx, repository.UserFilter{}, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, users, 1)

	counts, err := env.accounts.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, RoleCounts{Admins: 1, Teachers: 2, Total: 3}, *counts)
}
