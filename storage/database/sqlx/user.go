package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/user"
)

const userColumns = `id, email, full_name, username, avatar_url, role, status, password_hash, created_at, updated_at, last_login`

var userOrderings = []string{"created_at", "updated_at", "last_login", "email", "full_name", "username"}

type userRow struct {
	ID           string      `db:"id"`
	Email        string      `db:"email"`
	FullName     null.String `db:"full_name"`
	Username     null.String `db:"username"`
	AvatarURL    null.String `db:"avatar_url"`
	Role         string      `db:"role"`
	Status       string      `db:"status"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Email:        usr.Email,
		FullName:     null.NewString(usr.FullName, usr.FullName != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		AvatarURL:    null.NewString(usr.AvatarURL, usr.AvatarURL != ""),
		Role:         usr.Role,
		Status:       usr.Status,
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		FullName:     r.FullName.String,
		Username:     r.Username.String,
		AvatarURL:    r.AvatarURL.String,
		Role:         r.Role,
		Status:       r.Status,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

// getExec uses the executor passed by the service (e.g. a transaction) when it supports sqlx.
func (repo userRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return repo.db
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += ` AND id::text NOT IN (?)`
		args = append(args, ids)
	}
	q += `)`

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	var exists bool
	exe := repo.getExec(exec)
	if err = sqlx.GetContext(ctx, exe, &exists, exe.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	row := newUserRow(usr)
	q := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :email, :full_name, :username, :avatar_url, :role, :status, :password_hash, :created_at, :updated_at, :last_login)`

	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var where []string
	var args []interface{}

	if filter != nil {
		// users with FullName, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, `(full_name ILIKE ? OR username ILIKE ? OR email ILIKE ?)`)
			args = append(args, val, val, val)
		}
		if filter.Role != "" {
			where = append(where, `role = ?`)
			args = append(args, filter.Role)
		}
		if filter.Status != "" {
			where = append(where, `status = ?`)
			args = append(args, filter.Status)
		}
	}

	q := `SELECT ` + userColumns + ` FROM users` + whereClause(where) + orderByClause(ordering, userOrderings...)

	exe := repo.getExec(exec)
	var rows []userRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var where []string
	var args []interface{}

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		where = append(where, `id = ?`)
		args = append(args, filter.ID)
	}
	if filter.Email != "" {
		where = append(where, `email = ?`)
		args = append(args, filter.Email)
	}
	if len(where) == 0 {
		return user.User{}, user.ErrNotFound
	}

	exe := repo.getExec(exec)
	var row userRow
	q := `SELECT ` + userColumns + ` FROM users` + whereClause(where)
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := newUserRow(usr)
	q := `UPDATE users SET
		email = :email, full_name = :full_name, username = :username, avatar_url = :avatar_url, role = :role,
		status = :status, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.user(), nil
}

// DeleteUsersByID deletes users. Their enrollments & lesson progress go along by cascade.
func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	q, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, valid)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(n), nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func orderByClause(ordering []core.DBOrdering, allowed ...string) string {
	ordering = core.CleanOrderings(ordering, allowed...)
	if len(ordering) == 0 {
		return ""
	}
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		list = append(list, ord.String())
	}
	return " ORDER BY " + strings.Join(list, ", ")
}
