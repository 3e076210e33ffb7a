package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/telekom/inquiry-pipeline/pkg/delivery"
)

// SQLiteStore is the durable delivery.Store on the failed_emails table.
type SQLiteStore struct {
	db *DB
}

var _ delivery.Store = (*SQLiteStore)(nil)

const deliveryColumns = `id, email_type, payload, error, retry_count, status, created_at, updated_at`

func (s *SQLiteStore) Enqueue(ctx context.Context, channel delivery.Channel, payload delivery.Payload, cause error) (delivery.Record, error) {
	if !channel.Valid() {
		return delivery.Record{}, errors.Wrapf(delivery.ErrUnknownChannel, "enqueue channel %q", channel)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return delivery.Record{}, errors.Wrap(err, "failed to marshal payload for db insertion")
	}
	now := s.db.now().UTC()
	rec := delivery.Record{
		ID:        uuid.NewString(),
		Channel:   channel,
		Payload:   payload,
		Status:    delivery.StatusPending,
		CreatedAt: now.Truncate(time.Millisecond),
		UpdatedAt: now.Truncate(time.Millisecond),
	}
	if cause != nil {
		rec.LastError = cause.Error()
	}

	query := `INSERT INTO failed_emails(` + deliveryColumns + `) VALUES(?,?,?,?,0,?,?,?)`
	if _, err := s.db.readWriteDB.ExecContext(ctx, query,
		rec.ID, rec.Channel, string(payloadJSON), rec.LastError, rec.Status, toMillis(now), toMillis(now)); err != nil {
		return delivery.Record{}, errors.Wrap(err, "failed to insert failed delivery to db")
	}
	return rec, nil
}

func (s *SQLiteStore) FetchPending(ctx context.Context, limit int) ([]delivery.Record, error) {
	query := `SELECT ` + deliveryColumns + ` FROM failed_emails WHERE status=? ORDER BY created_at ASC, rowid ASC`
	args := []any{delivery.StatusPending}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

func (s *SQLiteStore) List(ctx context.Context, status delivery.Status, limit int) ([]delivery.Record, error) {
	query := `SELECT ` + deliveryColumns + ` FROM failed_emails`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// Get returns a single record.
func (s *SQLiteStore) Get(ctx context.Context, id string) (delivery.Record, error) {
	recs, err := s.query(ctx, `SELECT `+deliveryColumns+` FROM failed_emails WHERE id=?`, id)
	if err != nil {
		return delivery.Record{}, err
	}
	if len(recs) == 0 {
		return delivery.Record{}, delivery.ErrNotFound
	}
	return recs[0], nil
}

func (s *SQLiteStore) MarkSent(ctx context.Context, id string) error {
	query := `UPDATE failed_emails SET status=?, updated_at=? WHERE id=? AND status=?`
	res, err := s.db.readWriteDB.ExecContext(ctx, query,
		delivery.StatusSent, toMillis(s.db.now()), id, delivery.StatusPending)
	if err != nil {
		return errors.Wrap(err, "failed to mark delivery as sent")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to mark delivery as sent")
	}
	if n == 0 {
		return s.notPendingReason(ctx, id)
	}
	return nil
}

// MarkFailed runs as a single UPDATE so the increment and the status change
// cannot interleave with another writer.
func (s *SQLiteStore) MarkFailed(ctx context.Context, id, lastErr string, maxRetries int) (delivery.Outcome, error) {
	query := `UPDATE failed_emails
    SET retry_count=retry_count+1,
        error=?,
        status=CASE WHEN retry_count+1 >= ? THEN ? ELSE ? END,
        updated_at=?
    WHERE id=? AND status=?
    RETURNING retry_count, status`
	var out delivery.Outcome
	err := s.db.readWriteDB.QueryRowContext(ctx, query,
		lastErr, maxRetries, delivery.StatusFailed, delivery.StatusPending, toMillis(s.db.now()),
		id, delivery.StatusPending).Scan(&out.RetryCount, &out.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return delivery.Outcome{}, s.notPendingReason(ctx, id)
	}
	if err != nil {
		return delivery.Outcome{}, errors.Wrap(err, "failed to mark delivery as failed")
	}
	return out, nil
}

// Purge removes sent and failed records last updated before olderThan.
func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM failed_emails WHERE status IN (?, ?) AND updated_at<?`
	res, err := s.db.readWriteDB.ExecContext(ctx, query, delivery.StatusSent, delivery.StatusFailed, toMillis(olderThan))
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge failed deliveries")
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) notPendingReason(ctx context.Context, id string) error {
	var status string
	err := s.db.readWriteDB.QueryRowContext(ctx, `SELECT status FROM failed_emails WHERE id=?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return delivery.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "failed to look up delivery status")
	}
	return delivery.ErrNotPending
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]delivery.Record, error) {
	rows, err := s.db.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select failed deliveries from db")
	}
	defer rows.Close()

	var recs []delivery.Record
	for rows.Next() {
		var (
			rec                  delivery.Record
			payloadJSON          []byte
			createdMs, updatedMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.Channel, &payloadJSON, &rec.LastError,
			&rec.RetryCount, &rec.Status, &createdMs, &updatedMs); err != nil {
			return nil, errors.Wrap(err, "failed to scan failed delivery")
		}
		if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal payload of delivery %s", rec.ID)
		}
		rec.CreatedAt = fromMillis(createdMs)
		rec.UpdatedAt = fromMillis(updatedMs)
		recs = append(recs, rec)
	}
	return recs, errors.Wrap(rows.Err(), "failed to iterate failed deliveries")
}
