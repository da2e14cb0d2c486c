package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"posthub.org/internal/posts"
)

type Store struct {
	db *sql.DB
}

var _ posts.Service = (*Store)(nil)

// Open connects to Postgres through the pgx database/sql driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const postColumns = `id, title, content, created_at, username`

func (s *Store) Create(ctx context.Context, username, title, content string) (posts.Post, error) {
	if err := posts.ValidateNew(username, title, content); err != nil {
		return posts.Post{}, err
	}
	var p posts.Post
	err := s.db.QueryRowContext(ctx, `
		insert into posts(title, content, username)
		values ($1,$2,$3)
		returning `+postColumns,
		title, content, username,
	).Scan(&p.ID, &p.Title, &p.Content, &p.CreatedAt, &p.Username)
	if err != nil {
		return posts.Post{}, err
	}
	return p, nil
}

func (s *Store) Update(ctx context.Context, username string, id int64, patch posts.Patch) (posts.Post, error) {
	if patch.Empty() {
		return posts.Post{}, posts.ErrNothingToUpdate
	}
	// Blank fields arrive as NULL and keep the stored value.
	var p posts.Post
	err := s.db.QueryRowContext(ctx, `
		update posts
		set title = coalesce($3, title), content = coalesce($4, content)
		where id=$1 and username=$2
		returning `+postColumns,
		id, username, nullIfBlank(patch.Title), nullIfBlank(patch.Content),
	).Scan(&p.ID, &p.Title, &p.Content, &p.CreatedAt, &p.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return posts.Post{}, posts.ErrNotFound
	}
	if err != nil {
		return posts.Post{}, err
	}
	return p, nil
}

func (s *Store) Get(ctx context.Context, username string, id int64) (posts.Post, error) {
	var p posts.Post
	err := s.db.QueryRowContext(ctx,
		`select `+postColumns+` from posts where id=$1 and username=$2`, id, username,
	).Scan(&p.ID, &p.Title, &p.Content, &p.CreatedAt, &p.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return posts.Post{}, posts.ErrNotFound
	}
	if err != nil {
		return posts.Post{}, err
	}
	return p, nil
}

func (s *Store) List(ctx context.Context, username string, page posts.Page) ([]posts.Post, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+postColumns+`
		from posts
		where username=$1
		order by id asc
		offset $2
		limit $3
	`, username, page.Skip, page.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []posts.Post{}
	for rows.Next() {
		var p posts.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.CreatedAt, &p.Username); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s *Store) Count(ctx context.Context, username string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `select count(id) from posts where username=$1`, username).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, username string, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from posts where id=$1 and username=$2`, id, username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return posts.ErrNotFound
	}
	return nil
}

// --- helpers ---
func nullIfBlank(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
