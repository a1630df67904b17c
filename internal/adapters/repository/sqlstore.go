package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/pkg/metrics"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// overallRowID is the primary key of the single benchmark_overall row.
const overallRowID = 1

// SQLStore implements Store on database/sql for SQLite and PostgreSQL.
//
// Every write is a single statement, so each upsert is atomic on its own.
// Callers that write several rows get no cross-row atomicity.
type SQLStore struct {
	db           *sql.DB
	dialect      dialect
	maxOpenConns int
	now          func() time.Time
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database, applies driver pragmas and creates the schema.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDriver, driver)
	}

	s := &SQLStore{dialect: d, now: time.Now}
	if driver == DriverSQLite {
		s.maxOpenConns = 1
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := openDB(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrPersistence, err)
	}
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	s.db = db

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", ErrPersistence, err)
	}
	for _, p := range d.pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: pragma %q: %w", ErrPersistence, p, err)
		}
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, q := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%w: migrate: %w", ErrPersistence, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Driver returns the configured driver name.
func (s *SQLStore) Driver() string { return s.dialect.driver }

func (s *SQLStore) observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(op, float64(time.Since(start).Milliseconds()), err)
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// SaveDiagnostic inserts or replaces the tenant's diagnostic in one statement.
func (s *SQLStore) SaveDiagnostic(ctx context.Context, d model.Diagnostic) (out model.Diagnostic, err error) {
	const op = "save_diagnostic"
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	raw, err := encodeResponses(d.Responses)
	if err != nil {
		return model.Diagnostic{}, persistErr(op, err)
	}
	completed := s.now().UTC()

	q := s.dialect.rebind(`INSERT INTO diagnostics (tenant_id, responses, answered, score, level, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			responses = excluded.responses,
			answered = excluded.answered,
			score = excluded.score,
			level = excluded.level,
			completed_at = excluded.completed_at
		RETURNING id`)
	var id int64
	err = s.db.QueryRowContext(ctx, q,
		d.TenantID, raw, len(d.Responses), d.Score, string(d.Level), completed.UnixNano(),
	).Scan(&id)
	if err != nil {
		return model.Diagnostic{}, persistErr(op, err)
	}

	d.ID = id
	d.CompletedAt = completed
	return d, nil
}

// GetDiagnostic returns the tenant's diagnostic.
func (s *SQLStore) GetDiagnostic(ctx context.Context, tenantID string) (out model.Diagnostic, err error) {
	const op = "get_diagnostic"
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNotFound) {
			s.observe(op, start, nil)
			return
		}
		s.observe(op, start, err)
	}()

	q := s.dialect.rebind(`SELECT id, tenant_id, responses, score, level, completed_at
		FROM diagnostics WHERE tenant_id = ?`)
	out, err = scanDiagnostic(s.db.QueryRowContext(ctx, q, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Diagnostic{}, ErrNotFound
	}
	if err != nil {
		return model.Diagnostic{}, persistErr(op, err)
	}
	return out, nil
}

// DeleteDiagnostic removes the tenant's diagnostic. Snapshot rows are not touched.
func (s *SQLStore) DeleteDiagnostic(ctx context.Context, tenantID string) (err error) {
	const op = "delete_diagnostic"
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM diagnostics WHERE tenant_id = ?`), tenantID)
	if err != nil {
		return persistErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDiagnostics returns up to limit diagnostics after offset, newest first.
func (s *SQLStore) ListDiagnostics(ctx context.Context, limit, offset int) (out []model.Diagnostic, err error) {
	const op = "list_diagnostics"
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	if limit < 1 {
		return []model.Diagnostic{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	q := s.dialect.rebind(`SELECT id, tenant_id, responses, score, level, completed_at
		FROM diagnostics ORDER BY completed_at DESC, id DESC LIMIT ? OFFSET ?`)
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	out = make([]model.Diagnostic, 0, limit)
	for rows.Next() {
		d, err := scanDiagnostic(rows)
		if err != nil {
			return nil, persistErr(op, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return out, nil
}

// CountDiagnostics returns the number of stored diagnostics.
func (s *SQLStore) CountDiagnostics(ctx context.Context) (n int, err error) {
	const op = "count_diagnostics"
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diagnostics`).Scan(&n); err != nil {
		return 0, persistErr(op, err)
	}
	return n, nil
}

// CountAnsweredAtLeast counts diagnostics with at least threshold answers.
func (s *SQLStore) CountAnsweredAtLeast(ctx context.Context, threshold int) (n int, err error) {
	const op = "count_answered"
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	q := s.dialect.rebind(`SELECT COUNT(*) FROM diagnostics WHERE answered >= ?`)
	if err := s.db.QueryRowContext(ctx, q, threshold).Scan(&n); err != nil {
		return 0, persistErr(op, err)
	}
	return n, nil
}

// ListScores returns tenant id to stored overall score.
func (s *SQLStore) ListScores(ctx context.Context) (out map[string]float64, err error) {
	const op = "list_scores"
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id, score FROM diagnostics`)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	out = make(map[string]float64)
	for rows.Next() {
		var (
			tenant string
			score  float64
		)
		if err := rows.Scan(&tenant, &score); err != nil {
			return nil, persistErr(op, err)
		}
		out[tenant] = score
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return out, nil
}

// ListDiagnosticsWithResponses returns diagnostics whose decoded response set
// has at least one answer. Rows with undecodable responses fail the call.
func (s *SQLStore) ListDiagnosticsWithResponses(ctx context.Context) (out []model.DiagnosticResponses, err error) {
	const op = "list_with_responses"
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT id, tenant_id, responses, score
		FROM diagnostics WHERE responses IS NOT NULL AND responses <> '' AND responses <> '{}'
		ORDER BY id`)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	out = make([]model.DiagnosticResponses, 0)
	for rows.Next() {
		var (
			d   model.DiagnosticResponses
			raw string
		)
		if err := rows.Scan(&d.ID, &d.TenantID, &raw, &d.Score); err != nil {
			return nil, persistErr(op, err)
		}
		d.Responses, err = decodeResponses(raw)
		if err != nil {
			return nil, persistErr(op, fmt.Errorf("tenant %q: %w", d.TenantID, err))
		}
		if len(d.Responses) == 0 {
			continue
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return out, nil
}

// UpsertDimensionSnapshot writes one dimension row with a refreshed timestamp.
func (s *SQLStore) UpsertDimensionSnapshot(ctx context.Context, snap model.DimensionSnapshot) (err error) {
	const op = "upsert_dimension"
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	q := s.dialect.rebind(`INSERT INTO benchmark_dimensions (dimension, average, min_score, max_score, diagnostics_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (dimension) DO UPDATE SET
			average = excluded.average,
			min_score = excluded.min_score,
			max_score = excluded.max_score,
			diagnostics_count = excluded.diagnostics_count,
			updated_at = excluded.updated_at`)
	_, err = s.db.ExecContext(ctx, q,
		snap.Dimension, snap.Average, snap.Min, snap.Max, snap.Count, s.timestamp(snap.UpdatedAt),
	)
	if err != nil {
		return persistErr(op, err)
	}
	return nil
}

// UpsertOverallSnapshot writes the single overall row.
func (s *SQLStore) UpsertOverallSnapshot(ctx context.Context, snap model.OverallSnapshot) (err error) {
	const op = "upsert_overall"
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	q := s.dialect.rebind(`INSERT INTO benchmark_overall (id, average, min_score, max_score, diagnostics_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			average = excluded.average,
			min_score = excluded.min_score,
			max_score = excluded.max_score,
			diagnostics_count = excluded.diagnostics_count,
			updated_at = excluded.updated_at`)
	_, err = s.db.ExecContext(ctx, q,
		overallRowID, snap.Average, snap.Min, snap.Max, snap.Count, s.timestamp(snap.UpdatedAt),
	)
	if err != nil {
		return persistErr(op, err)
	}
	return nil
}

// ListDimensionSnapshots returns every stored dimension row ordered by name.
func (s *SQLStore) ListDimensionSnapshots(ctx context.Context) (out []model.DimensionSnapshot, err error) {
	const op = "list_dimensions"
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT dimension, average, min_score, max_score, diagnostics_count, updated_at
		FROM benchmark_dimensions ORDER BY dimension`)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	out = make([]model.DimensionSnapshot, 0)
	for rows.Next() {
		var (
			snap    model.DimensionSnapshot
			updated int64
		)
		if err := rows.Scan(&snap.Dimension, &snap.Average, &snap.Min, &snap.Max, &snap.Count, &updated); err != nil {
			return nil, persistErr(op, err)
		}
		snap.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return out, nil
}

// GetOverallSnapshot returns the overall row.
func (s *SQLStore) GetOverallSnapshot(ctx context.Context) (snap model.OverallSnapshot, err error) {
	const op = "get_overall"
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNotFound) {
			s.observe(op, start, nil)
			return
		}
		s.observe(op, start, err)
	}()

	q := s.dialect.rebind(`SELECT average, min_score, max_score, diagnostics_count, updated_at
		FROM benchmark_overall WHERE id = ?`)
	var updated int64
	err = s.db.QueryRowContext(ctx, q, overallRowID).Scan(&snap.Average, &snap.Min, &snap.Max, &snap.Count, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OverallSnapshot{}, ErrNotFound
	}
	if err != nil {
		return model.OverallSnapshot{}, persistErr(op, err)
	}
	snap.UpdatedAt = time.Unix(0, updated).UTC()
	return snap, nil
}

func (s *SQLStore) timestamp(t time.Time) int64 {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().UnixNano()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiagnostic(r rowScanner) (model.Diagnostic, error) {
	var (
		d         model.Diagnostic
		raw       string
		level     string
		completed int64
	)
	if err := r.Scan(&d.ID, &d.TenantID, &raw, &d.Score, &level, &completed); err != nil {
		return model.Diagnostic{}, err
	}
	responses, err := decodeResponses(raw)
	if err != nil {
		return model.Diagnostic{}, err
	}
	d.Responses = responses
	d.Level = model.Level(level)
	d.CompletedAt = time.Unix(0, completed).UTC()
	return d, nil
}
