package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/telekom/inquiry-pipeline/pkg/inquiry"
)

// SubmissionStore writes accepted inquiries to the submissions table.
type SubmissionStore struct {
	db *DB
}

var _ inquiry.SubmissionStore = (*SubmissionStore)(nil)

func (s *SubmissionStore) Save(ctx context.Context, rec inquiry.SubmissionRecord) error {
	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal submission payload")
	}
	var session sql.NullString
	if rec.SessionID != "" {
		session = sql.NullString{String: rec.SessionID, Valid: true}
	}
	query := `INSERT INTO submissions(id, form_type, locale, payload, identity, session_id, created_at) VALUES(?,?,?,?,?,?,?)`
	if _, err := s.db.readWriteDB.ExecContext(ctx, query,
		rec.ID, rec.FormType, rec.Locale, string(payloadJSON), rec.Identity, session, toMillis(rec.CreatedAt)); err != nil {
		return errors.Wrap(err, "failed to insert submission to db")
	}
	return nil
}

// Get loads a stored submission by id.
func (s *SubmissionStore) Get(ctx context.Context, id string) (inquiry.SubmissionRecord, error) {
	query := `SELECT id, form_type, locale, payload, identity, session_id, created_at FROM submissions WHERE id=?`
	var (
		rec         inquiry.SubmissionRecord
		payloadJSON []byte
		session     sql.NullString
		createdMs   int64
	)
	err := s.db.readDB.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.FormType, &rec.Locale, &payloadJSON, &rec.Identity, &session, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return inquiry.SubmissionRecord{}, inquiry.ErrSubmissionNotFound
	}
	if err != nil {
		return inquiry.SubmissionRecord{}, errors.Wrap(err, "failed to select submission")
	}
	if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
		return inquiry.SubmissionRecord{}, errors.Wrap(err, "failed to unmarshal submission payload")
	}
	rec.SessionID = session.String
	rec.CreatedAt = fromMillis(createdMs)
	return rec, nil
}

// Count returns the number of stored submissions.
func (s *SubmissionStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.readDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count submissions")
	}
	return n, nil
}
