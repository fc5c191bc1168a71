package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/obfuscator/internal/logging"
)

// JobStatus is the outcome of an obfuscation job.
type JobStatus string

const (
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Event is one audit trail record. It never carries cell values.
type Event struct {
	ID          uuid.UUID     `json:"id"`
	Source      string        `json:"source"`
	Destination string        `json:"destination,omitempty"`
	Format      string        `json:"format,omitempty"`
	Fields      []string      `json:"fields"`
	Rows        int           `json:"rows"`
	InputBytes  int           `json:"inputBytes"`
	OutputBytes int           `json:"outputBytes"`
	InputHash   string        `json:"inputHash,omitempty"`
	OutputHash  string        `json:"outputHash,omitempty"`
	Status      JobStatus     `json:"status"`
	ErrorCode   string        `json:"errorCode,omitempty"`
	IPAddress   string        `json:"ipAddress,omitempty"`
	UserAgent   string        `json:"userAgent,omitempty"`
	Duration    time.Duration `json:"durationNs"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Auditor records job outcomes.
type Auditor interface {
	Record(ctx context.Context, e Event) error
}

// LogAuditor writes audit events to the structured log.
type LogAuditor struct{}

func (LogAuditor) Record(ctx context.Context, e Event) error {
	attrs := []any{
		"audit_id", e.ID.String(),
		"source", e.Source,
		"fields", e.Fields,
		"status", e.Status,
		"rows", e.Rows,
		"input_bytes", e.InputBytes,
		"output_bytes", e.OutputBytes,
		"duration", e.Duration,
	}
	if e.Destination != "" {
		attrs = append(attrs, "destination", e.Destination)
	}
	if e.Format != "" {
		attrs = append(attrs, "format", e.Format)
	}
	if e.InputHash != "" {
		attrs = append(attrs, "input_hash", e.InputHash, "output_hash", e.OutputHash)
	}
	if e.ErrorCode != "" {
		attrs = append(attrs, "error_code", e.ErrorCode)
	}
	if e.IPAddress != "" {
		attrs = append(attrs, "ip", e.IPAddress)
	}
	logging.FromContext(ctx).Info("obfuscation audit", attrs...)
	return nil
}

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx used by PgAuditor.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgAuditor stores audit events in the obfuscation_audit table.
type PgAuditor struct {
	db DBTX
}

// NewPgAuditor creates an auditor over db. Call EnsureSchema once at startup.
func NewPgAuditor(db DBTX) *PgAuditor {
	return &PgAuditor{db: db}
}

const createAuditTable = `
CREATE TABLE IF NOT EXISTS obfuscation_audit (
	id           UUID PRIMARY KEY,
	source       TEXT NOT NULL,
	destination  TEXT,
	format       TEXT,
	fields       TEXT[] NOT NULL,
	rows         INTEGER NOT NULL DEFAULT 0,
	input_bytes  BIGINT NOT NULL DEFAULT 0,
	output_bytes BIGINT NOT NULL DEFAULT 0,
	input_hash   TEXT,
	output_hash  TEXT,
	status       TEXT NOT NULL,
	error_code   TEXT,
	ip_address   TEXT,
	user_agent   TEXT,
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS obfuscation_audit_created_at_idx ON obfuscation_audit (created_at DESC);`

// EnsureSchema creates the audit table if it does not exist.
func (a *PgAuditor) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.Exec(ctx, createAuditTable); err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

const insertAuditEvent = `
INSERT INTO obfuscation_audit (
	id, source, destination, format, fields, rows, input_bytes, output_bytes,
	input_hash, output_hash, status, error_code, ip_address, user_agent, duration_ms, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

// Record inserts e.
func (a *PgAuditor) Record(ctx context.Context, e Event) error {
	_, err := a.db.Exec(ctx, insertAuditEvent,
		pgtype.UUID{Bytes: e.ID, Valid: true},
		e.Source,
		toPgText(e.Destination),
		toPgText(e.Format),
		e.Fields,
		e.Rows,
		int64(e.InputBytes),
		int64(e.OutputBytes),
		toPgText(e.InputHash),
		toPgText(e.OutputHash),
		string(e.Status),
		toPgText(e.ErrorCode),
		toPgText(e.IPAddress),
		toPgText(e.UserAgent),
		e.Duration.Milliseconds(),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const selectRecentAudit = `
SELECT id, source, destination, format, fields, rows, input_bytes, output_bytes,
	input_hash, output_hash, status, error_code, ip_address, user_agent, duration_ms, created_at
FROM obfuscation_audit
ORDER BY created_at DESC
LIMIT $1`

// Recent returns up to limit events, newest first.
func (a *PgAuditor) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(ctx, selectRecentAudit, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan audit events: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.CollectableRow) (Event, error) {
	var (
		e                                   Event
		id                                  pgtype.UUID
		dest, format, inHash, outHash       pgtype.Text
		status                              string
		errCode, ip, ua                     pgtype.Text
		rowCount                            int32
		inBytes, outBytes, durationMillisec int64
	)
	err := row.Scan(&id, &e.Source, &dest, &format, &e.Fields, &rowCount, &inBytes, &outBytes,
		&inHash, &outHash, &status, &errCode, &ip, &ua, &durationMillisec, &e.CreatedAt)
	if err != nil {
		return Event{}, err
	}
	e.ID = uuid.UUID(id.Bytes)
	e.Destination = dest.String
	e.Format = format.String
	e.Rows = int(rowCount)
	e.InputBytes = int(inBytes)
	e.OutputBytes = int(outBytes)
	e.InputHash = inHash.String
	e.OutputHash = outHash.String
	e.Status = JobStatus(status)
	e.ErrorCode = errCode.String
	e.IPAddress = ip.String
	e.UserAgent = ua.String
	e.Duration = time.Duration(durationMillisec) * time.Millisecond
	return e, nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// Lister is implemented by auditors that can return recent events.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// record writes e and logs, rather than returns, any failure.
func record(ctx context.Context, a Auditor, e Event) {
	if a == nil {
		return
	}
	if err := a.Record(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("audit record failed",
			slog.String("audit_id", e.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
