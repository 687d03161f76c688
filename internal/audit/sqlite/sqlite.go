package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/opsgate/internal/audit"
)

// Sink writes audit events to a SQLite database.
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite audit sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS audit_events(
		occurred_at TIMESTAMP NOT NULL,
		type TEXT NOT NULL,
		operator TEXT,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		detail TEXT
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Sink) Send(ctx context.Context, e audit.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events(occurred_at, type, operator, kind, subject, detail) VALUES(?, ?, ?, ?, ?, ?)`,
		e.OccurredAt, string(e.Type), e.Operator, e.Kind, e.Subject, e.Detail)
	return err
}

func (s *Sink) Close() error { return s.db.Close() }
