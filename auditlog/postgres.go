package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PostgresStore appends to the audit_log table. The table is insert-only;
// nothing in this package updates or deletes rows.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		encoded, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = encoded
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, action, account_id, email, ip, user_agent, outcome, reason, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, string(e.Action), e.AccountID, e.Email, e.IP, e.UserAgent,
		string(e.Outcome), e.Reason, meta, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, q Query) ([]Entry, error) {
	q = q.Normalize()

	var (
		where []string
		args  []any
	)
	if q.AccountID != "" {
		args = append(args, q.AccountID)
		where = append(where, "account_id = $"+strconv.Itoa(len(args)))
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		where = append(where, "occurred_at >= $"+strconv.Itoa(len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		where = append(where, "occurred_at <= $"+strconv.Itoa(len(args)))
	}

	query := `SELECT id, action, account_id, email, ip, user_agent, outcome, reason, metadata, occurred_at FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, q.Limit)
	query += " ORDER BY occurred_at DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			action  string
			outcome string
			meta    []byte
		)
		if err := rows.Scan(&e.ID, &action, &e.AccountID, &e.Email, &e.IP, &e.UserAgent,
			&outcome, &e.Reason, &meta, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		e.Action = Action(action)
		e.Outcome = Outcome(outcome)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
			if len(e.Metadata) == 0 {
				e.Metadata = nil
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}
