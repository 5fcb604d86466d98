package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/book-expert/post-speech-service/internal/core"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteDirPermissions = 0o750

// SQLiteStore implements core.RecordStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLite opens (or creates) the posts database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	dirErr := os.MkdirAll(filepath.Dir(path), sqliteDirPermissions)
	if dirErr != nil {
		return nil, fmt.Errorf("failed to create directory for '%s': %w", path, dirErr)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", path, err)
	}

	store := &SQLiteStore{db: db, mu: sync.RWMutex{}}

	schemaErr := store.initSchema()
	if schemaErr != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to initialize schema: %w", schemaErr)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		voice TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);
	`

	_, err := s.db.Exec(schema)

	return err
}

// Get loads the post stored under id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, text, voice, url, created_at, updated_at FROM posts WHERE id = ?`, id)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: '%s'", core.ErrPostNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get post '%s': %w", id, err)
	}

	return post, nil
}

// Put inserts post or replaces the stored version with the same id.
func (s *SQLiteStore) Put(ctx context.Context, post *core.Post) error {
	validationErr := validatePost(post)
	if validationErr != nil {
		return validationErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := post.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	updatedAt := post.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, status, text, voice, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			text = excluded.text,
			voice = excluded.voice,
			url = excluded.url,
			updated_at = excluded.updated_at`,
		post.ID, string(post.Status), post.Text, post.Voice, post.URL, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to put post '%s': %w", post.ID, err)
	}

	return nil
}

// List returns every stored post ordered by creation time.
func (s *SQLiteStore) List(ctx context.Context) ([]*core.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, text, voice, url, created_at, updated_at FROM posts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []*core.Post{}

	for rows.Next() {
		post, scanErr := scanPost(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan post: %w", scanErr)
		}

		posts = append(posts, post)
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", rowsErr)
	}

	return posts, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*core.Post, error) {
	var (
		post   core.Post
		status string
	)

	err := row.Scan(&post.ID, &status, &post.Text, &post.Voice, &post.URL, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	post.Status = core.Status(status)

	return &post, nil
}
