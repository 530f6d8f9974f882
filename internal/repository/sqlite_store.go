package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nicnocquee/bluesky-later/internal/models"
	_ "modernc.org/sqlite"
)

// sqliteStore is the embedded backend: a file-local database so scheduled
// posts and credentials never leave the process host. Timestamps are stored
// as unix milliseconds.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database file at path and prepares
// the schema.
func NewSQLiteStore(path string) (PostStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc/sqlite handles one writer at a time; a single connection keeps
	// claim transactions serialized.
	db.SetMaxOpenConns(1)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			scheduled_for INTEGER NOT NULL,
			scheduled_tz TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			error TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			image TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_status_scheduled_for ON posts (status, scheduled_for)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identifier TEXT NOT NULL,
			password TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	return &sqliteStore{db: db}, nil
}

const sqlitePostColumns = `id, content, scheduled_for, scheduled_tz, status, error, url, image, created_at, updated_at`

func (s *sqliteStore) GetPendingDuePosts(ctx context.Context) ([]*models.Post, error) {
	now := nowMillis()
	query := `
		SELECT ` + sqlitePostColumns + `
		FROM posts
		WHERE (status = ? AND scheduled_for <= ?)
		   OR (status = ? AND updated_at <= ?)
		ORDER BY scheduled_for ASC`
	rows, err := s.db.QueryContext(ctx, query,
		models.PostStatusPending, now,
		models.PostStatusProcessing, now-staleProcessingCutoff.Milliseconds(),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()
	return scanSQLitePosts(rows)
}

func (s *sqliteStore) ClaimDuePosts(ctx context.Context) ([]*models.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := nowMillis()
	query := `
		SELECT ` + sqlitePostColumns + `
		FROM posts
		WHERE (status = ? AND scheduled_for <= ?)
		   OR (status = ? AND updated_at <= ?)
		ORDER BY scheduled_for ASC`
	rows, err := tx.QueryContext(ctx, query,
		models.PostStatusPending, now,
		models.PostStatusProcessing, now-staleProcessingCutoff.Milliseconds(),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	posts, err := scanSQLitePosts(rows)
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
			`UPDATE posts SET status = ?, updated_at = ? WHERE id = ?`,
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
		p.UpdatedAt = time.UnixMilli(now).UTC()
	}
	return posts, nil
}

func (s *sqliteStore) ClaimPost(ctx context.Context, id int64) (*models.Post, error) {
	now := nowMillis()
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET status = ?, updated_at = ? WHERE id = ? AND status = ? AND scheduled_for <= ?`,
		models.PostStatusProcessing, now, id, models.PostStatusPending, now,
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetPost(ctx, id)
}

func (s *sqliteStore) GetAllPosts(ctx context.Context) ([]*models.Post, error) {
	query := `SELECT ` + sqlitePostColumns + ` FROM posts ORDER BY scheduled_for ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()
	return scanSQLitePosts(rows)
}

func (s *sqliteStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + sqlitePostColumns + ` FROM posts WHERE id = ?`
	post, err := scanSQLitePost(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (s *sqliteStore) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	image, err := marshalImage(post.Image)
	if err != nil {
		return nil, err
	}

	now := nowMillis()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (content, scheduled_for, scheduled_tz, status, url, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		post.Content,
		post.ScheduledFor.UTC().UnixMilli(),
		post.ScheduledTz,
		models.PostStatusPending,
		post.URL,
		nullableBytes(image),
		now,
		now,
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetPost(ctx, id)
}

func (s *sqliteStore) UpdatePost(ctx context.Context, id int64, changes *PostChanges) error {
	if changes == nil {
		return nil
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if changes.Content != nil {
		add("content", *changes.Content)
	}
	if changes.ScheduledFor != nil {
		add("scheduled_for", changes.ScheduledFor.UTC().UnixMilli())
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
			return fmt.Errorf("encode image column: %w", err)
		}
		add("image", b)
	}
	if len(sets) == 0 {
		return nil
	}

	add("updated_at", nowMillis())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE posts SET %s WHERE id = ?", strings.Join(sets, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (s *sqliteStore) DeletePost(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (s *sqliteStore) GetCredentials(ctx context.Context) (*models.Credentials, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, identifier, password, created_at FROM credentials ORDER BY id ASC LIMIT 1`)

	var c models.Credentials
	var createdAt int64
	err := row.Scan(&c.ID, &c.Identifier, &c.Password, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &c, nil
}

func (s *sqliteStore) SetCredentials(ctx context.Context, identifier, password string) error {
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
		`INSERT INTO credentials (identifier, password, created_at) VALUES (?, ?, ?)`,
		identifier, password, nowMillis(),
	); err != nil {
		slog.Info(err.Error())
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) DeleteCredentials(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials`)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func scanSQLitePost(row rowScanner) (*models.Post, error) {
	var p models.Post
	var scheduledFor, createdAt, updatedAt int64
	var errMsg, url, tz sql.NullString
	var image []byte

	err := row.Scan(
		&p.ID,
		&p.Content,
		&scheduledFor,
		&tz,
		&p.Status,
		&errMsg,
		&url,
		&image,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ScheduledFor = time.UnixMilli(scheduledFor).UTC()
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
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

func scanSQLitePosts(rows *sql.Rows) ([]*models.Post, error) {
	var posts []*models.Post
	for rows.Next() {
		p, err := scanSQLitePost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
