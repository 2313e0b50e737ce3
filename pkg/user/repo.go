package user

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"

	"lostfound/pkg/apperror"
	"lostfound/pkg/common"
	"lostfound/pkg/logger"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{
		db: db,
	}
}

func (r *UserRepo) Add(ctx context.Context, u *User) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users(email, password) VALUES($1, $2) RETURNING id", u.Email, u.Password).
		Scan(&userID)
	if isUniqueViolation(err) {
		return ``, fmt.Errorf("user/repo: %w", apperror.Conflict("email already registered"))
	}
	if err != nil {
		return ``, fmt.Errorf("user/repo: user wasn't added: %w", err)
	}
	if userID == "" {
		return ``, fmt.Errorf("user/repo: user wasn't added, empty id returned")
	}
	return userID, nil
}

// GetByEmailAndPass returns the user only if pass matches the stored hash.
func (r *UserRepo) GetByEmailAndPass(ctx context.Context, email string, pass string) (*User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, email, password FROM users where email=$1", email)
	u := new(User)
	err := row.Scan(&u.Id, &u.Email, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user/repo: %w", apperror.Unauthorized("invalid email or password"))
	}
	if err != nil {
		return nil, fmt.Errorf("user/repo: row scan failed: %w", err)
	}
	if len(u.Password) < 8 {
		return nil, fmt.Errorf("user/repo: stored password of %s is malformed", u.Id)
	}
	// User found by email, now check if passwords are the same
	salt := string(u.Password[0:8])
	if !bytes.Equal(common.HashPass(pass, salt), u.Password) {
		return nil, fmt.Errorf("user/repo: password is invalid: %w", apperror.Unauthorized("invalid email or password"))
	}
	return u, nil
}

func (r *UserRepo) EmailExists(ctx context.Context, email string) bool {
	row := r.db.QueryRowContext(ctx, "SELECT id FROM users where email=$1", email)
	u := new(User)
	if err := row.Scan(&u.Id); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Log(ctx).Errorf("user/repo: could not scan row: %v", err)
		}
		return false
	}
	return true
}

func (r *UserRepo) GetById(ctx context.Context, uid string) (*User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, email FROM users where id=$1", uid)
	u := new(User)
	err := row.Scan(&u.Id, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user/repo: %w", apperror.NotFound("user", uid))
	}
	if err != nil {
		return nil, fmt.Errorf("user/repo: could not scan row: %w", err)
	}
	return u, nil
}

// UpdateEmail changes the sign-in email of the user.
func (r *UserRepo) UpdateEmail(ctx context.Context, uid string, email string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET email=$1 WHERE id=$2", email, uid)
	if isUniqueViolation(err) {
		return fmt.Errorf("user/repo: %w", apperror.Conflict("email already registered"))
	}
	if err != nil {
		return fmt.Errorf("user/repo: failed updating email: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user/repo: failed updating email: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user/repo: %w", apperror.NotFound("user", uid))
	}
	return nil
}

// Returns all users. Used only for seeding the DB.
func (r *UserRepo) GetAll(ctx context.Context) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, email, password FROM users")
	if err != nil {
		return nil, fmt.Errorf("user/repo: failed executing query for getting all users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u := new(User)
		err := rows.Scan(&u.Id, &u.Email, &u.Password)
		if err != nil {
			return nil, fmt.Errorf("user/repo: could not scan row: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

const schema = `CREATE TABLE IF NOT EXISTS users (
	id       SERIAL PRIMARY KEY,
	email    TEXT UNIQUE NOT NULL,
	password BYTEA NOT NULL
)`

// Migrate creates the users table when it is missing.
func (r *UserRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("user/repo: migration failed: %w", err)
	}
	return nil
}
