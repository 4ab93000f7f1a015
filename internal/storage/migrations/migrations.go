// Package migrations holds the embedded schema of the persistent stores and
// applies it in lexical file order. Every file is idempotent, so the runners
// apply everything on each start.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// PostgresExecer runs one multi-statement script. *pgxpool.Pool satisfies it.
type PostgresExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ClickHouseExecer runs one statement. clickhouse driver.Conn satisfies it.
type ClickHouseExecer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// File is one migration script.
type File struct {
	Name string
	SQL  string
}

// Load returns the non-empty .sql files of dir, sorted by name.
func Load(fsys fs.FS, dir string) ([]File, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		files = append(files, File{Name: e.Name(), SQL: string(data)})
	}
	return files, nil
}

// RunPostgres applies the account and chain state schema.
func RunPostgres(ctx context.Context, db PostgresExecer, log logrus.FieldLogger) error {
	files, err := Load(Schema, postgresDir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, err := db.Exec(ctx, f.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.Name, err)
		}
		log.WithField("file", f.Name).Debug("postgres migration applied")
	}
	return nil
}

// RunClickHouse applies the transaction log schema. The driver rejects
// multi-statement queries, so each file is split on semicolons.
func RunClickHouse(ctx context.Context, db ClickHouseExecer, log logrus.FieldLogger) error {
	files, err := Load(Schema, clickhouseDir)
	if err != nil {
		return err
	}
	for _, f := range files {
		stmts, err := SplitStatements(f.SQL)
		if err != nil {
			return fmt.Errorf("migration %s: %w", f.Name, err)
		}
		for _, stmt := range stmts {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", f.Name, err)
			}
		}
		log.WithFields(logrus.Fields{
			"file":       f.Name,
			"statements": len(stmts),
		}).Debug("clickhouse migration applied")
	}
	return nil
}

// SplitStatements drops "--" comment lines and splits on semicolons. A
// semicolon inside a quoted literal is an error rather than a silent
// mis-split.
func SplitStatements(sql string) ([]string, error) {
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if t := strings.TrimSpace(line); t == "" || strings.HasPrefix(t, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	body := b.String()

	quoted := false
	for i := 0; i < len(body); i++ {
		switch {
		case body[i] == '\'' && quoted && i+1 < len(body) && body[i+1] == '\'':
			i++
		case body[i] == '\'':
			quoted = !quoted
		case body[i] == ';' && quoted:
			return nil, fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}

	var stmts []string
	for _, part := range strings.Split(body, ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}
