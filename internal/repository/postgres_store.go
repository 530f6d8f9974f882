package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/nicnocquee/bluesky-later/internal/models"
)

const postColumns = `id, content, scheduled_for, scheduled_tz, status, error, url, image, created_at, updated_at`

type postgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) PostStore {
	return &postgresStore{db: db}
}

// EnsureSchema creates the posts and credentials tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			scheduled_for TIMESTAMPTZ NOT NULL,
			scheduled_tz TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			error TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			image JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_status_scheduled_for ON posts (status, scheduled_for)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id BIGSERIAL PRIMARY KEY,
			identifier TEXT NOT NULL,
			password TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *postgresStore) GetPendingDuePosts(ctx context.Context) ([]*models.Post, error) {
	now := time.Now().UTC()
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE (status = $1 AND scheduled_for <= $2)
		   OR (status = $3 AND updated_at <= $4)
		ORDER BY scheduled_for ASC`
	rows, err := s.db.QueryContext(ctx, query,
		models.PostStatusPending, now,
		models.PostStatusProcessing, now.Add(-staleProcessingCutoff),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

func (s *postgresStore) ClaimDuePosts(ctx context.Context) ([]*models.Post, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE (status = $1 AND scheduled_for <= $2)
		   OR (status = $3 AND updated_at <= $4)
		ORDER BY scheduled_for ASC
		FOR UPDATE SKIP LOCKED`
	rows, err := tx.QueryContext(ctx, query,
		models.PostStatusPending, now,
		models.PostStatusProcessing, now.Add(-staleProcessingCutoff),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	posts, err := scanPosts(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if len(posts) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	for _, p := range posts {
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3`,
			models.PostStatusProcessing, now, p.ID,
		); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, p := range posts {
		p.Status = models.PostStatusProcessing
		p.UpdatedAt = now
	}
	return posts, nil
}

func (s *postgresStore) ClaimPost(ctx context.Context, id int64) (*models.Post, error) {
	now := time.Now().UTC()
	query := `
		UPDATE posts SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4 AND scheduled_for <= $5
		RETURNING ` + postColumns
	row := s.db.QueryRowContext(ctx, query,
		models.PostStatusProcessing, now, id, models.PostStatusPending, now,
	)
	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (s *postgresStore) GetAllPosts(ctx context.Context) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY scheduled_for ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

func (s *postgresStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (s *postgresStore) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	image, err := marshalImage(post.Image)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO posts (content, scheduled_for, scheduled_tz, status, url, image)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + postColumns
	created, err := scanPost(s.db.QueryRowContext(ctx, query,
		post.Content,
		post.ScheduledFor.UTC(),
		post.ScheduledTz,
		models.PostStatusPending,
		post.URL,
		image,
	))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return created, nil
}

func (s *postgresStore) UpdatePost(ctx context.Context, id int64, changes *PostChanges) error {
	query, args, err := buildUpdate(id, changes, pgPlaceholder)
	if err != nil {
		return err
	}
	if query == "" {
		return nil
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (s *postgresStore) DeletePost(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (s *postgresStore) GetCredentials(ctx context.Context) (*models.Credentials, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, identifier, password, created_at FROM credentials ORDER BY id ASC LIMIT 1`)

	var c models.Credentials
	err := row.Scan(&c.ID, &c.Identifier, &c.Password, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &c, nil
}

// SetCredentials replaces the single credential record: delete then insert,
// never two rows.
func (s *postgresStore) SetCredentials(ctx context.Context, identifier, password string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		slog.Info(err.Error())
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credentials (identifier, password) VALUES ($1, $2)`,
		identifier, password,
	); err != nil {
		slog.Info(err.Error())
		return err
	}
	return tx.Commit()
}

func (s *postgresStore) DeleteCredentials(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials`)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	var errMsg, url, tz sql.NullString
	var image []byte

	err := row.Scan(
		&p.ID,
		&p.Content,
		&p.ScheduledFor,
		&tz,
		&p.Status,
		&errMsg,
		&url,
		&image,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ScheduledTz = tz.String
	p.Error = errMsg.String
	p.URL = url.String
	if len(image) > 0 {
		var img models.PostImage
		if err := json.Unmarshal(image, &img); err != nil {
			return nil, fmt.Errorf("decode image column: %w", err)
		}
		p.Image = &img
	}
	return &p, nil
}

func scanPosts(rows *sql.Rows) ([]*models.Post, error) {
	var posts []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func marshalImage(image *models.PostImage) ([]byte, error) {
	if image == nil {
		return nil, nil
	}
	b, err := json.Marshal(image)
	if err != nil {
		return nil, fmt.Errorf("encode image column: %w", err)
	}
	return b, nil
}

func pgPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// buildUpdate assembles a partial UPDATE for the non-nil fields of changes.
// Returns an empty query when there is nothing to update.
func buildUpdate(id int64, changes *PostChanges, placeholder func(int) string) (string, []any, error) {
	if changes == nil {
		return "", nil, nil
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = %s", column, placeholder(len(args))))
	}

	if changes.Content != nil {
		add("content", *changes.Content)
	}
	if changes.ScheduledFor != nil {
		add("scheduled_for", changes.ScheduledFor.UTC())
	}
	if changes.ScheduledTz != nil {
		add("scheduled_tz", *changes.ScheduledTz)
	}
	if changes.Status != nil {
		add("status", *changes.Status)
	}
	if changes.Error != nil {
		add("error", *changes.Error)
	}
	if changes.URL != nil {
		add("url", *changes.URL)
	}
	if changes.Image != nil {
		b, err := json.Marshal(changes.Image)
		if err != nil {
			return "", nil, fmt.Errorf("encode image column: %w", err)
		}
		add("image", b)
	}
	if len(sets) == 0 {
		return "", nil, nil
	}

	add("updated_at", time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE posts SET %s WHERE id = %s",
		strings.Join(sets, ", "), placeholder(len(args)))
	return query, args, nil
}
