package library

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// userColumns deliberately excludes the password hash; credential
// checks go through VerifyUser.
var userColumns = []any{
	"user_id", "username", "role", "real_name", "phone", "email",
	"status", "created_at", "last_login",
}

const selectUser = `SELECT user_id, username, role, real_name, phone, email,
    status, created_at, last_login FROM users`

// RegisterUser creates a regular account. Passwords are stored as
// bcrypt hashes; the original system kept them in plaintext, which is a
// flagged policy change, not a behavior change.
func (d *Database) RegisterUser(username, password, realName, phone, email string) (int64, error) {
	return d.CreateUser(username, password, RoleUser, realName, phone, email)
}

// CreateUser inserts an account with an explicit role. Used by
// RegisterUser and by the seeding tool to create the admin account.
func (d *Database) CreateUser(username, password, role, realName, phone, email string) (int64, error) {
	if username == "" {
		return 0, fmt.Errorf("%w: username must not be empty", ErrValidation)
	}
	if password == "" {
		return 0, fmt.Errorf("%w: password must not be empty", ErrValidation)
	}
	if role != RoleAdmin && role != RoleUser {
		return 0, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	tx, err := d.db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE username=?)`, username).Scan(&exists); err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%q: %w", username, ErrUsernameTaken)
	}

	res, err := tx.Exec(`INSERT INTO users (username, password, role, real_name, phone, email)
        VALUES (?, ?, ?, ?, ?, ?)`,
		username, string(hash), role, realName, phone, email)
	if err != nil {
		return 0, fmt.Errorf("register user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	return id, tx.Commit()
}

// VerifyUser checks credentials for an active account and stamps the
// last-login time on success. A non-empty role restricts the match to
// that role. Bad username, bad password, wrong role and disabled
// account are indistinguishable to the caller.
func (d *Database) VerifyUser(username, password, role string) (*User, error) {
	var u User
	var hash string
	err := d.db.QueryRow(`SELECT user_id, username, password, role, real_name, phone, email,
        status, created_at, last_login FROM users WHERE username=? AND status=1`, username).
		Scan(&u.ID, &u.Username, &hash, &u.Role, &u.RealName, &u.Phone, &u.Email,
			&u.Active, &u.CreatedAt, &u.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if role != "" && u.Role != role {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}

	now := d.now()
	if _, err := d.db.Exec(`UPDATE users SET last_login=? WHERE user_id=?`, now, u.ID); err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}
	u.LastLogin = sql.NullTime{Time: now, Valid: true}

	return &u, nil
}

// GetUser fetches a single account.
func (d *Database) GetUser(id int64) (*User, error) {
	var u User
	err := d.db.Get(&u, selectUser+` WHERE user_id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all accounts, newest first.
func (d *Database) ListUsers() ([]*User, error) {
	var users []*User
	if err := d.db.Select(&users, selectUser+` ORDER BY user_id DESC`); err != nil {
		return nil, err
	}
	return users, nil
}

// SearchUsers runs one of the fixed account searches.
func (d *Database) SearchUsers(kind UserSearchKind, keyword string) ([]*User, error) {
	ds := dialect.From("users").Select(userColumns...).Order(goqu.I("user_id").Desc())

	switch kind {
	case UserByID:
		id, err := strconv.ParseInt(keyword, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: user id must be numeric", ErrValidation)
		}
		ds = ds.Where(goqu.C("user_id").Eq(id))
	case UserByUsername:
		ds = ds.Where(goqu.C("username").Like("%" + keyword + "%"))
	default:
		return nil, fmt.Errorf("%w: unknown user search kind %q", ErrValidation, kind)
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	var users []*User
	if err := d.db.Select(&users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

// SetUserStatus enables or disables an account. Admin accounts cannot
// be disabled.
func (d *Database) SetUserStatus(id int64, active bool) error {
	tx, err := d.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	role, err := userRole(tx, id)
	if err != nil {
		return err
	}
	if role == RoleAdmin {
		return fmt.Errorf("%w: cannot change the status of an admin account", ErrValidation)
	}

	if _, err := tx.Exec(`UPDATE users SET status=? WHERE user_id=?`, active, id); err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	return tx.Commit()
}

// ResetPassword replaces an account's credential. Admin accounts cannot
// be reset this way.
func (d *Database) ResetPassword(id int64, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: password must not be empty", ErrValidation)
	}

	tx, err := d.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	role, err := userRole(tx, id)
	if err != nil {
		return err
	}
	if role == RoleAdmin {
		return fmt.Errorf("%w: cannot reset the password of an admin account", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := tx.Exec(`UPDATE users SET password=? WHERE user_id=?`, string(hash), id); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return tx.Commit()
}

// ChangePassword verifies the old credential before storing the new one.
func (d *Database) ChangePassword(id int64, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password must not be empty", ErrValidation)
	}

	var hash string
	err := d.db.QueryRow(`SELECT password FROM users WHERE user_id=?`, id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)) != nil {
		return fmt.Errorf("%w: old password is incorrect", ErrValidation)
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := d.db.Exec(`UPDATE users SET password=? WHERE user_id=?`, string(newHash), id); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// UpdateUserInfo edits an account's contact fields.
func (d *Database) UpdateUserInfo(id int64, realName, phone, email string) error {
	res, err := d.db.Exec(`UPDATE users SET real_name=?, phone=?, email=? WHERE user_id=?`,
		realName, phone, email, id)
	if err != nil {
		return fmt.Errorf("update user info: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

func userRole(tx *sqlx.Tx, id int64) (string, error) {
	var role string
	err := tx.QueryRow(`SELECT role FROM users WHERE user_id=?`, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return role, nil
}
