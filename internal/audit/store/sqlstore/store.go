// Package sqlstore persists audit entries in the audit.CollectionName table.
// The same queries run on postgres (pgx) and sqlite (modernc).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"admissions/internal/audit"
	"admissions/internal/platform/database"
)

const columns = `id, timestamp_ms, action, severity, user_id, user_email, user_role,
	ip_address, user_agent, resource_type, resource_id, request_id,
	details, success, error_message`

// Store implements audit.Store on database/sql.
type Store struct {
	db     *sql.DB
	driver string
}

// New wraps db. driver selects the placeholder style.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// FromPool builds a Store on an opened database pool.
func FromPool(p *database.Pool) *Store {
	return New(p.DB(), p.Driver())
}

func (s *Store) Add(ctx context.Context, e audit.Entry) error {
	details := []byte("{}")
	if len(e.Details) > 0 {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	query := s.rebind(`
		INSERT INTO ` + audit.CollectionName + ` (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`)
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Timestamp,
		string(e.Action),
		string(e.Severity),
		e.UserID,
		e.UserEmail,
		e.UserRole,
		e.IPAddress,
		e.UserAgent,
		e.ResourceType,
		e.ResourceID,
		e.RequestID,
		string(details),
		e.Succeeded(),
		e.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, "$"+strconv.Itoa(len(args))))
	}
	if filter.UserID != "" {
		add("user_id = %s", filter.UserID)
	}
	if filter.Action != "" {
		add("action = %s", string(filter.Action))
	}
	if !filter.From.IsZero() {
		add("timestamp_ms >= %s", filter.From.UnixMilli())
	}
	if !filter.To.IsZero() {
		add("timestamp_ms <= %s", filter.To.UnixMilli())
	}

	var b strings.Builder
	b.WriteString("SELECT " + columns + " FROM " + audit.CollectionName)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	// seq is assigned by the database on insert, so entries sharing a
	// millisecond keep their write order.
	b.WriteString(" ORDER BY timestamp_ms DESC, seq DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func (s *Store) AnonymizeUser(ctx context.Context, userID, replacementID, replacementEmail string) (int, error) {
	query := s.rebind(`UPDATE ` + audit.CollectionName + ` SET user_id = $1, user_email = $2 WHERE user_id = $3`)
	res, err := s.db.ExecContext(ctx, query, replacementID, replacementEmail, userID)
	if err != nil {
		return 0, fmt.Errorf("anonymize audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("anonymize audit entries: %w", err)
	}
	return int(n), nil
}

func scanEntry(rows *sql.Rows) (audit.Entry, error) {
	var (
		e        audit.Entry
		action   string
		severity string
		details  string
		success  bool
	)
	err := rows.Scan(
		&e.ID,
		&e.Timestamp,
		&action,
		&severity,
		&e.UserID,
		&e.UserEmail,
		&e.UserRole,
		&e.IPAddress,
		&e.UserAgent,
		&e.ResourceType,
		&e.ResourceID,
		&e.RequestID,
		&details,
		&success,
		&e.ErrorMessage,
	)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("scan audit entry: %w", err)
	}
	e.Action = audit.Action(action)
	e.Severity = audit.Severity(severity)
	e.Success = audit.Bool(success)
	if details != "" && details != "{}" {
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return audit.Entry{}, fmt.Errorf("unmarshal audit details: %w", err)
		}
	}
	return e, nil
}

// rebind rewrites $n placeholders to ? for sqlite. Every query here uses each
// placeholder once, in order.
func (s *Store) rebind(query string) string {
	if s.driver != database.DriverSQLite {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
