package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "skysurvey/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("submission history opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendSubmission(ctx context.Context, e SubmissionEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions(run_id, group_id, field, status, response, request_number, submit_at, expire_at, sub_requests, recorded_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.RunID, e.GroupID, e.Field, e.Status, nullStr(e.Response), nullStr(e.RequestNumber),
		e.Submit.UTC().Format(time.RFC3339Nano), e.Expire.UTC().Format(time.RFC3339Nano),
		e.SubRequests, e.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) RecentSubmissions(ctx context.Context, n int) ([]SubmissionEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, group_id, field, status, response, request_number, submit_at, expire_at, sub_requests, recorded_at
		 FROM submissions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubmissionEntry
	for rows.Next() {
		var (
			e                         SubmissionEntry
			resp, reqNum              sql.NullString
			submitAt, expireAt, recAt string
		)
		if err := rows.Scan(&e.RunID, &e.GroupID, &e.Field, &e.Status, &resp, &reqNum,
			&submitAt, &expireAt, &e.SubRequests, &recAt); err != nil {
			return nil, err
		}
		e.Response = resp.String
		e.RequestNumber = reqNum.String
		e.Submit = parseTime(submitAt)
		e.Expire = parseTime(expireAt)
		e.RecordedAt = parseTime(recAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
