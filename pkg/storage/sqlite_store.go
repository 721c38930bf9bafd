package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"xhsdl/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	extracted_at TEXT NOT NULL DEFAULT '',
	data         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS comments (
	post_id   TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	author    TEXT NOT NULL,
	content   TEXT NOT NULL,
	timestamp TEXT NOT NULL DEFAULT '',
	likes     TEXT NOT NULL DEFAULT '',
	replies   TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (post_id, seq)
);`

// SQLiteStore keeps posts and their comments in SQLite
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates) the database at path with WAL journaling
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mkdir store: %w", err)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return initSQLite(db)
}

// OpenSQLiteMemory opens a private in-memory database
func OpenSQLiteMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	return initSQLite(db)
}

func initSQLite(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// LoadAll implements Store
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM posts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}

	posts := []models.Post{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan post: %w", err)
		}
		var p models.Post
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode post %s: %w", id, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range posts {
		comments, err := s.comments(ctx, s.db, posts[i].ID)
		if err != nil {
			return nil, err
		}
		posts[i].Comments = comments
	}
	return posts, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) comments(ctx context.Context, q querier, postID string) ([]models.Comment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT author, content, timestamp, likes, replies FROM comments WHERE post_id = ? ORDER BY seq`, postID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		var replies string
		if err := rows.Scan(&c.Author, &c.Content, &c.Timestamp, &c.Likes, &replies); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		if err := json.Unmarshal([]byte(replies), &c.Replies); err != nil {
			return nil, fmt.Errorf("decode replies: %w", err)
		}
		if len(c.Replies) == 0 {
			c.Replies = nil
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Upsert implements Store
func (s *SQLiteStore) Upsert(ctx context.Context, post models.Post) (models.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Post{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stored, err := s.comments(ctx, tx, post.ID)
	if err != nil {
		return models.Post{}, err
	}
	merged := Merge(models.Post{Comments: stored}, post)

	shallow := merged
	shallow.Comments = nil
	data, err := json.Marshal(shallow)
	if err != nil {
		return models.Post{}, fmt.Errorf("encode post: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (id, title, author, url, extracted_at, data) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			url = excluded.url,
			extracted_at = excluded.extracted_at,
			data = excluded.data`,
		merged.ID, merged.Title, merged.Author, merged.URL, merged.ExtractedAt.Format(time.RFC3339), string(data))
	if err != nil {
		return models.Post{}, fmt.Errorf("upsert post: %w", err)
	}

	if len(post.Comments) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ?`, merged.ID); err != nil {
			return models.Post{}, fmt.Errorf("replace comments: %w", err)
		}
		for i, c := range merged.Comments {
			replies, err := json.Marshal(c.Replies)
			if err != nil {
				return models.Post{}, fmt.Errorf("encode replies: %w", err)
			}
			if c.Replies == nil {
				replies = []byte("[]")
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO comments (post_id, seq, author, content, timestamp, likes, replies) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				merged.ID, i, c.Author, c.Content, c.Timestamp, c.Likes, string(replies))
			if err != nil {
				return models.Post{}, fmt.Errorf("insert comment: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Post{}, fmt.Errorf("commit: %w", err)
	}
	return merged, nil
}

// Clear implements Store
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM comments`); err != nil {
		return fmt.Errorf("clear comments: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return fmt.Errorf("clear posts: %w", err)
	}
	return nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
