// Package migrations embeds the schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

// Files is the migration directory rooted at its .sql files.
var Files = mustSub(embedded, "sql")

type Status struct {
	Version   int64  `json:"version"`
	Name      string `json:"name"`
	Applied   bool   `json:"applied"`
	AppliedAt string `json:"applied_at,omitempty"`
}

type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, Files)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return &Runner{provider: p}, nil
}

// Up applies every pending migration and returns the names applied.
func (r *Runner) Up(ctx context.Context) ([]string, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	applied := make([]string, 0, len(results))
	for _, res := range results {
		applied = append(applied, res.Source.Path)
	}
	return applied, nil
}

func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}
	out := make([]Status, 0, len(statuses))
	for _, st := range statuses {
		s := Status{
			Version: st.Source.Version,
			Name:    st.Source.Path,
			Applied: st.State == goose.StateApplied,
		}
		if s.Applied && !st.AppliedAt.IsZero() {
			s.AppliedAt = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, s)
	}
	return out, nil
}

// Pending returns the names of migrations not yet applied.
func (r *Runner) Pending(ctx context.Context) ([]string, error) {
	statuses, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, s := range statuses {
		if !s.Applied {
			pending = append(pending, s.Name)
		}
	}
	return pending, nil
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
