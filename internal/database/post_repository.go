package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/brandpulse/internal/domain"
	"github.com/pscheid92/brandpulse/internal/metrics"
)

// postColumns must match the Scan order in scanRecord.
const postColumns = `identity, text, brand, ts, source, label, confidence, model_version, method, schema_version, created_at`

// PostRepo implements domain.PostRepository backed by PostgreSQL.
type PostRepo struct {
	pool *pgxpool.Pool
}

func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

func scanRecord(row pgx.Row) (domain.PersistedRecord, error) {
	var r domain.PersistedRecord
	err := row.Scan(
		&r.Identity, &r.Text, &r.Brand, &r.Timestamp, &r.Source,
		&r.Result.Label, &r.Result.Confidence, &r.Result.ModelVersion, &r.Result.Method,
		&r.SchemaVersion, &r.CreatedAt,
	)
	if err != nil {
		return domain.PersistedRecord{}, err
	}
	r.Timestamp = r.Timestamp.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

// observe records operation metrics. Deferred at the top of each method.
func observe(operation string, start time.Time, err *error) {
	status := "ok"
	if *err != nil {
		status = "error"
	}
	metrics.StorageOpsTotal.WithLabelValues(operation, status).Inc()
	metrics.StorageOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Save inserts the (post, result) pair as one row. The identity conflict
// target makes the write idempotent: a duplicate save leaves the original
// record untouched and returns it with inserted=false.
func (r *PostRepo) Save(ctx context.Context, post domain.Post, result domain.SentimentResult) (rec domain.PersistedRecord, inserted bool, err error) {
	defer observe("save", time.Now(), &err)

	rec, err = scanRecord(r.pool.QueryRow(ctx, `
		INSERT INTO posts (identity, text, brand, ts, source, label, confidence, model_version, method, schema_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (identity) DO NOTHING
		RETURNING `+postColumns,
		post.Identity, post.Text, post.Brand, post.Timestamp.UTC(), post.Source,
		result.Label, result.Confidence, result.ModelVersion, result.Method,
		domain.RecordSchemaVersion,
	))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.PersistedRecord{}, false, fmt.Errorf("failed to save post: %w", err)
	}

	// Conflict: the identity already exists. Return the original record.
	rec, err = r.GetByID(ctx, post.Identity)
	if err != nil {
		return domain.PersistedRecord{}, false, fmt.Errorf("failed to load record after conflict: %w", err)
	}
	return rec, false, nil
}

func (r *PostRepo) GetByID(ctx context.Context, identity string) (rec domain.PersistedRecord, err error) {
	defer observe("get_by_id", time.Now(), &err)

	rec, err = scanRecord(r.pool.QueryRow(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE identity = $1
	`, identity))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PersistedRecord{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.PersistedRecord{}, fmt.Errorf("failed to load record: %w", err)
	}
	return rec, nil
}

// Query pages records newest-first with identity as the stable tiebreaker so
// equal timestamps cannot reshuffle across pages.
func (r *PostRepo) Query(ctx context.Context, filter domain.QueryFilter, page, pageSize int) (records []domain.PersistedRecord, total int64, err error) {
	defer observe("query", time.Now(), &err)

	where, args := buildFilter(filter)

	if err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	offset := (page - 1) * pageSize
	args = append(args, pageSize, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM posts%s
		ORDER BY ts DESC, identity ASC
		LIMIT $%d OFFSET $%d
	`, postColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan post row: %w", scanErr)
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate post rows: %w", err)
	}

	return records, total, nil
}

// AggregateSnapshot groups every persisted record into (brand, window, label)
// rows. This is the ground truth the aggregation engine reconciles against.
func (r *PostRepo) AggregateSnapshot(ctx context.Context, granularity domain.Granularity) (rowsOut []domain.AggregateRow, err error) {
	defer observe("aggregate_snapshot", time.Now(), &err)

	rows, err := r.pool.Query(ctx, `
		SELECT brand,
		       date_trunc($1, ts AT TIME ZONE 'UTC') AT TIME ZONE 'UTC' AS window_start,
		       label,
		       COUNT(*),
		       AVG(confidence)
		FROM posts
		GROUP BY brand, window_start, label
		ORDER BY window_start, brand, label
	`, granularity.Interval())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.AggregateRow
		if scanErr := rows.Scan(&row.Brand, &row.WindowStart, &row.Label, &row.Count, &row.MeanConfidence); scanErr != nil {
			err = fmt.Errorf("failed to scan aggregate row: %w", scanErr)
			return nil, err
		}
		row.WindowStart = row.WindowStart.UTC()
		rowsOut = append(rowsOut, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aggregate rows: %w", err)
	}

	return rowsOut, nil
}

func (r *PostRepo) HealthCheck(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// buildFilter translates a QueryFilter into a WHERE clause and args.
func buildFilter(filter domain.QueryFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Brand != nil {
		args = append(args, *filter.Brand)
		clauses = append(clauses, fmt.Sprintf("brand = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		clauses = append(clauses, fmt.Sprintf("ts >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		clauses = append(clauses, fmt.Sprintf("ts < $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}

	where := " WHERE " + clauses[0]
	for _, clause := range clauses[1:] {
		where += " AND " + clause
	}
	return where, args
}
