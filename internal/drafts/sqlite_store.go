// Package drafts keeps in-progress answers on local disk so a restarted
// client can resume an attempt that has not been submitted yet.
package drafts

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

type draftRow struct {
	QuestionID string `db:"question_id"`
	ChoiceID   string `db:"choice_id"`
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "drafts.db"
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open drafts database %s", path)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init drafts schema")
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS answer_drafts (
			enrollment_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			choice_id TEXT NOT NULL,
			updated_at_unix INTEGER NOT NULL,
			PRIMARY KEY (enrollment_id, question_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_answer_drafts_updated_at ON answer_drafts(updated_at_unix);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the saved selections of one enrollment keyed by question.
func (s *SQLiteStore) Load(ctx context.Context, enrollmentID string) (map[string]string, error) {
	var rows []draftRow
	err := s.db.SelectContext(
		ctx,
		&rows,
		`SELECT question_id, choice_id FROM answer_drafts WHERE enrollment_id = ?`,
		enrollmentID,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "load drafts for enrollment %s", enrollmentID)
	}

	drafts := make(map[string]string, len(rows))
	for _, row := range rows {
		drafts[row.QuestionID] = row.ChoiceID
	}
	return drafts, nil
}

func (s *SQLiteStore) Save(ctx context.Context, enrollmentID, questionID, choiceID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO answer_drafts (enrollment_id, question_id, choice_id, updated_at_unix)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(enrollment_id, question_id) DO UPDATE SET
			choice_id = excluded.choice_id,
			updated_at_unix = excluded.updated_at_unix`,
		enrollmentID,
		questionID,
		choiceID,
		s.now().UTC().UnixNano(),
	)
	return errors.Wrapf(err, "save draft for enrollment %s", enrollmentID)
}

func (s *SQLiteStore) Clear(ctx context.Context, enrollmentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM answer_drafts WHERE enrollment_id = ?`, enrollmentID)
	return errors.Wrapf(err, "clear drafts for enrollment %s", enrollmentID)
}

// Prune drops drafts not touched since before cutoff and returns how many
// rows were removed.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM answer_drafts WHERE updated_at_unix < ?`, cutoff.UTC().UnixNano())
	if err != nil {
		return 0, errors.Wrap(err, "prune drafts")
	}
	return result.RowsAffected()
}
