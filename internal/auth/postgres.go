package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var _ UserStore = (*PGStore)(nil)

// PGStore implements UserStore using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, username, hashed_password, disabled, created_at from users where username=$1`, username)
	var (
		u        User
		disabled sql.NullBool
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &disabled, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if disabled.Valid {
		v := disabled.Bool
		u.Disabled = &v
	}
	return &u, nil
}

func (s *PGStore) Create(ctx context.Context, u *User) error {
	var disabled sql.NullBool
	if u.Disabled != nil {
		disabled = sql.NullBool{Bool: *u.Disabled, Valid: true}
	}
	row := s.db.QueryRowContext(ctx,
		`insert into users(username, hashed_password, disabled) values($1,$2,$3) returning id, created_at`,
		u.Username, u.PasswordHash, disabled,
	)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (s *PGStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set hashed_password=$2 where username=$1`, username, passwordHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
