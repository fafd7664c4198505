package auditevent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Events live in one table per domain, named <prefix><domainID>. The table
// is created on first write, the same way the original per-tenant collections
// came into existence. Invalid records share a single side table with a
// fixed name so it can never collide with a domain table.
const invalidRecordsTable = "audit_invalid_records"

const pgUndefinedTable = "42P01"

// Query holds store-level bounds derived from validated ListParams.
// All ID bounds address the same total order as insertion order.
type Query struct {
	Limit     int
	After     *uuid.UUID // exclusive lower bound (pagination cursor)
	FromID    *uuid.UUID // inclusive lower bound (time window start)
	ToID      *uuid.UUID // inclusive upper bound (time window end)
	Type      string
	UserLogin string
}

// Repository is the persistence boundary for audit events.
type Repository interface {
	Save(ctx context.Context, event *AuditEvent) error
	SaveInvalid(ctx context.Context, reason string, payload map[string]any) error
	Find(ctx context.Context, domain string, q Query) ([]AuditEvent, error)
	DeleteByDomain(ctx context.Context, domain string) error
	DomainTables(ctx context.Context) ([]string, error)
	EnsureUserLoginIndex(ctx context.Context, table string) error
	PurgeExpired(ctx context.Context, table string) (int64, error)
}

type postgresRepository struct {
	pool        *pgxpool.Pool
	tablePrefix string
	ttlDays     int
}

func NewRepository(pool *pgxpool.Pool, tablePrefix string, ttlDays int) Repository {
	return &postgresRepository{
		pool:        pool,
		tablePrefix: tablePrefix,
		ttlDays:     ttlDays,
	}
}

// ValidDomain reports whether a domain ID may name a tenant table.
// `$` is reserved by the store layer and empty domains have no home.
func ValidDomain(domain string) bool {
	return domain != "" && !strings.Contains(domain, "$")
}

// tableFor resolves a domain to its table name, rejecting domains that
// cannot name one. The invalid-records table is reserved even when a prefix
// and domain combination would spell it out.
func (r *postgresRepository) tableFor(domain string) (string, error) {
	if !ValidDomain(domain) {
		return "", fmt.Errorf("invalid domain %q", domain)
	}
	name := r.tablePrefix + domain
	if name == invalidRecordsTable {
		return "", fmt.Errorf("domain %q is reserved", domain)
	}
	return name, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Save persists one event into its domain's table, creating the table on
// first write. The event ID is assigned here when absent.
func (r *postgresRepository) Save(ctx context.Context, event *AuditEvent) error {
	table, err := r.tableFor(event.DomainID)
	if err != nil {
		return fmt.Errorf("saving audit event: %w", err)
	}
	if event.ID == uuid.Nil {
		event.ID = NewEventID()
	}
	event.Recorded = TimeFromID(event.ID)

	err = r.insert(ctx, table, event)
	if isUndefinedTable(err) {
		if err := r.createDomainTable(ctx, table, event.DomainID); err != nil {
			return err
		}
		err = r.insert(ctx, table, event)
	}
	return err
}

func (r *postgresRepository) insert(ctx context.Context, table string, event *AuditEvent) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, user_login, occurred, user_ip, success, event_type, params, links)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, ident(table))

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.UserLogin, event.Occurred, event.UserIP,
		event.Success, event.Type, orEmpty(event.Params), orEmpty(event.Links))
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

func (r *postgresRepository) createDomainTable(ctx context.Context, table, domain string) error {
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id         uuid PRIMARY KEY,
			user_login text NOT NULL,
			occurred   timestamptz NOT NULL,
			user_ip    text NOT NULL,
			success    boolean NOT NULL,
			event_type text NOT NULL,
			params     jsonb NOT NULL DEFAULT '{}',
			links      jsonb NOT NULL DEFAULT '{}'
		)`, ident(table))

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating domain table for %q: %w", domain, err)
	}
	return nil
}

// SaveInvalid diverts a malformed event into the invalid-records table.
// Payload keys are transliterated because the original producers used `$`
// and `.` in field names, which the original store could not hold.
func (r *postgresRepository) SaveInvalid(ctx context.Context, reason string, payload map[string]any) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, received, reason, payload) VALUES ($1, $2, $3, $4)`,
		ident(invalidRecordsTable))

	_, err := r.pool.Exec(ctx, query, NewEventID(), time.Now().UTC(), reason, sanitizeFieldNames(payload))
	if err != nil {
		return fmt.Errorf("inserting invalid record: %w", err)
	}
	return nil
}

// sanitizeFieldNames rewrites reserved characters in field names to safe
// placeholder tokens, recursing into nested objects.
func sanitizeFieldNames(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		k = strings.ReplaceAll(k, "$", "__dollar__")
		k = strings.ReplaceAll(k, ".", "__dot__")
		if nested, ok := v.(map[string]any); ok {
			v = sanitizeFieldNames(nested)
		}
		out[k] = v
	}
	return out
}

// Find returns up to q.Limit events from the domain's table in ascending ID
// order. A domain whose table does not exist yet simply has no events.
func (r *postgresRepository) Find(ctx context.Context, domain string, q Query) ([]AuditEvent, error) {
	table, err := r.tableFor(domain)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}

	var conditions []string
	var args []any
	argIdx := 1

	if q.After != nil {
		conditions = append(conditions, fmt.Sprintf("id > $%d", argIdx))
		args = append(args, *q.After)
		argIdx++
	}
	if q.FromID != nil {
		conditions = append(conditions, fmt.Sprintf("id >= $%d", argIdx))
		args = append(args, *q.FromID)
		argIdx++
	}
	if q.ToID != nil {
		conditions = append(conditions, fmt.Sprintf("id <= $%d", argIdx))
		args = append(args, *q.ToID)
		argIdx++
	}
	if q.Type != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argIdx))
		args = append(args, q.Type)
		argIdx++
	}
	if q.UserLogin != "" {
		conditions = append(conditions, fmt.Sprintf("user_login = $%d", argIdx))
		args = append(args, q.UserLogin)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT id, user_login, occurred, user_ip, success, event_type, params, links
		 FROM %s%s ORDER BY id ASC LIMIT $%d`, ident(table), where, argIdx)
	args = append(args, q.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		e := AuditEvent{DomainID: domain}
		if err := rows.Scan(&e.ID, &e.UserLogin, &e.Occurred, &e.UserIP,
			&e.Success, &e.Type, &e.Params, &e.Links); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		e.Recorded = TimeFromID(e.ID)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading audit events: %w", err)
	}

	return events, nil
}

// DeleteByDomain removes all events for a domain. The table itself stays.
func (r *postgresRepository) DeleteByDomain(ctx context.Context, domain string) error {
	table, err := r.tableFor(domain)
	if err != nil {
		return fmt.Errorf("deleting audit events: %w", err)
	}

	_, err = r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, ident(table)))
	if err != nil {
		if isUndefinedTable(err) {
			return nil
		}
		return fmt.Errorf("deleting audit events for %q: %w", domain, err)
	}
	return nil
}

// DomainTables lists every per-domain event table currently present.
func (r *postgresRepository) DomainTables(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tablename FROM pg_tables
		 WHERE schemaname = current_schema() AND tablename LIKE $1 AND tablename <> $2
		 ORDER BY tablename`,
		r.tablePrefix+"%", invalidRecordsTable)
	if err != nil {
		return nil, fmt.Errorf("listing domain tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// EnsureUserLoginIndex creates the user_login lookup index on one domain
// table. Safe to call repeatedly and from concurrent instances.
func (r *postgresRepository) EnsureUserLoginIndex(ctx context.Context, table string) error {
	query := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_login)`,
		ident(table+"_user_login_idx"), ident(table))

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating user_login index on %s: %w", table, err)
	}
	return nil
}

// PurgeExpired deletes records older than the retention period from one
// domain table. The cutoff gets one grace day so a record is never dropped
// before its full TTL has elapsed.
func (r *postgresRepository) PurgeExpired(ctx context.Context, table string) (int64, error) {
	cutoff := CursorFromTime(time.Now().UTC().AddDate(0, 0, -(r.ttlDays + 1)))

	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id < $1`, ident(table)), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging expired records from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
