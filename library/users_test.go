package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndVerify(t *testing.T) {
	db := tempDB(t)
	loginTime := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	setToday(db, loginTime)

	id, err := db.RegisterUser("alice", "s3cret", "Alice Zhang", "555-0100", "alice@example.com")
	require.NoError(t, err)

	u, err := db.VerifyUser("alice", "s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, RoleUser, u.Role)
	assert.True(t, u.Active)
	require.True(t, u.LastLogin.Valid, "login must stamp last_login")
	assert.Equal(t, loginTime, u.LastLogin.Time)

	// The stamp persists.
	got, err := db.GetUser(id)
	require.NoError(t, err)
	assert.True(t, got.LastLogin.Valid)

	_, err = db.VerifyUser("alice", "wrong", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.VerifyUser("nobody", "s3cret", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterValidation(t *testing.T) {
	db := tempDB(t)

	_, err := db.RegisterUser("", "pw", "X", "", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = db.RegisterUser("someone", "", "X", "", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = db.RegisterUser("dup", "pw", "X", "", "")
	require.NoError(t, err)
	_, err = db.RegisterUser("dup", "pw2", "Y", "", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestVerifyRoleFilter(t *testing.T) {
	db := tempDB(t)
	_, err := db.CreateUser("boss", "pw", RoleAdmin, "Boss", "", "")
	require.NoError(t, err)
	seedUser(t, db, "worker")

	u, err := db.VerifyUser("boss", "pw", RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, u.Role)

	_, err = db.VerifyUser("worker", "secret", RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisabledUserCannotLogin(t *testing.T) {
	db := tempDB(t)
	id := seedUser(t, db, "banned")

	require.NoError(t, db.SetUserStatus(id, false))
	_, err := db.VerifyUser("banned", "secret", "")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SetUserStatus(id, true))
	_, err = db.VerifyUser("banned", "secret", "")
	assert.NoError(t, err)
}

func TestAdminAccountGuards(t *testing.T) {
	db := tempDB(t)
	adminID, err := db.CreateUser("admin", "pw", RoleAdmin, "Admin", "", "")
	require.NoError(t, err)

	err = db.SetUserStatus(adminID, false)
	assert.ErrorIs(t, err, ErrValidation)

	err = db.ResetPassword(adminID, "newpw")
	assert.ErrorIs(t, err, ErrValidation)

	err = db.SetUserStatus(404, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetPassword(t *testing.T) {
	db := tempDB(t)
	id := seedUser(t, db, "forgetful")

	require.NoError(t, db.ResetPassword(id, "brandnew"))

	_, err := db.VerifyUser("forgetful", "secret", "")
	assert.ErrorIs(t, err, ErrNotFound, "old password must stop working")

	_, err = db.VerifyUser("forgetful", "brandnew", "")
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	db := tempDB(t)
	id := seedUser(t, db, "careful")

	err := db.ChangePassword(id, "wrong-old", "next")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, db.ChangePassword(id, "secret", "next"))
	_, err = db.VerifyUser("careful", "next", "")
	assert.NoError(t, err)

	err = db.ChangePassword(404, "secret", "next")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUserInfo(t *testing.T) {
	db := tempDB(t)
	id := seedUser(t, db, "mover")

	require.NoError(t, db.UpdateUserInfo(id, "New Name", "555-0199", "new@example.com"))

	u, err := db.GetUser(id)
	require.NoError(t, err)
	assert.Equal(t, "New Name", u.RealName)
	assert.Equal(t, "555-0199", u.Phone)
	assert.Equal(t, "new@example.com", u.Email)

	err = db.UpdateUserInfo(404, "X", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchUsers(t *testing.T) {
	db := tempDB(t)
	id := seedUser(t, db, "findme")
	seedUser(t, db, "someoneelse")

	byID, err := db.SearchUsers(UserByID, itoa(id))
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "findme", byID[0].Username)

	byName, err := db.SearchUsers(UserByUsername, "find")
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	_, err = db.SearchUsers(UserByID, "abc")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = db.SearchUsers(UserSearchKind("email"), "x")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListUsersNewestFirst(t *testing.T) {
	db := tempDB(t)
	seedUser(t, db, "older")
	seedUser(t, db, "newer")

	users, err := db.ListUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "newer", users[0].Username)
}
