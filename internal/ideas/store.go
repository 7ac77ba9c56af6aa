package ideas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrIdeaNotFound is returned by Get for unknown IDs.
var ErrIdeaNotFound = errors.New("idea not found")

// Idea is one generated idea and its grade.
type Idea struct {
	ID        string
	Seq       int64 // insertion order, used in export file names
	Topic     string
	Text      string
	Grade     string // raw grading feedback
	Score     float64
	Round     int
	CreatedAt time.Time
}

// ExportName is the file name an idea is exported under.
func (i Idea) ExportName() string {
	return fmt.Sprintf("idea_%d_score_%.1f.txt", i.Seq, i.Score)
}

// Store persists ideas in SQLite and exports each one as a text file.
type Store struct {
	db        *sql.DB
	mu        sync.Mutex
	exportDir string
}

const createIdeasTable = `
CREATE TABLE IF NOT EXISTS ideas (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	topic TEXT NOT NULL,
	text TEXT NOT NULL,
	grade TEXT NOT NULL DEFAULT '',
	score REAL NOT NULL DEFAULT 0,
	round INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ideas_score ON ideas(score DESC);
`

// OpenStore opens (creating if needed) the database at dbPath. exportDir may
// be empty to disable file export.
func OpenStore(dbPath, exportDir string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ideas directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ideas db: %w", err)
	}
	if _, err := db.Exec(createIdeasTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ideas db: %w", err)
	}
	return &Store{db: db, exportDir: exportDir}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores idea, filling ID, Seq and CreatedAt, and exports it.
func (s *Store) Save(ctx context.Context, idea *Idea) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idea.ID == "" {
		idea.ID = uuid.NewString()
	}
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ideas (id, topic, text, grade, score, round, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		idea.ID, idea.Topic, idea.Text, idea.Grade, idea.Score, idea.Round, idea.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save idea: %w", err)
	}
	if idea.Seq, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("save idea: %w", err)
	}

	if s.exportDir != "" {
		if err := s.export(*idea); err != nil {
			return err
		}
	}
	logging.Ideas("saved idea %d (score %.1f)", idea.Seq, idea.Score)
	return nil
}

func (s *Store) export(idea Idea) error {
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(s.exportDir, idea.ExportName())
	if err := os.WriteFile(path, []byte(idea.Text), 0644); err != nil {
		return fmt.Errorf("export idea: %w", err)
	}
	return nil
}

// Top returns up to n ideas with the highest score, oldest first on ties.
func (s *Store) Top(ctx context.Context, n int) ([]Idea, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, topic, text, grade, score, round, created_at FROM ideas ORDER BY score DESC, seq ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query top ideas: %w", err)
	}
	defer rows.Close()

	var out []Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, idea)
	}
	return out, rows.Err()
}

// Get returns the idea with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Idea, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, id, topic, text, grade, score, round, created_at FROM ideas WHERE id = ?`, id)
	idea, err := scanIdea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Idea{}, fmt.Errorf("%w: %s", ErrIdeaNotFound, id)
	}
	return idea, err
}

// Count returns the number of stored ideas.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ideas`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ideas: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdea(sc scanner) (Idea, error) {
	var idea Idea
	if err := sc.Scan(&idea.Seq, &idea.ID, &idea.Topic, &idea.Text, &idea.Grade, &idea.Score, &idea.Round, &idea.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Idea{}, err
		}
		return Idea{}, fmt.Errorf("scan idea: %w", err)
	}
	return idea, nil
}
