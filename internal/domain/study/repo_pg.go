package study

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryable abstracts pgxpool.Pool and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// -- Import Repository --

const importColumns = `id, record_id, arm, source_name, delimiter, patient_name, event_count, events, created_at`

type importRepoPG struct {
	pool *pgxpool.Pool
}

func NewImportRepo(pool *pgxpool.Pool) ImportRepository {
	return &importRepoPG{pool: pool}
}

func (r *importRepoPG) Create(ctx context.Context, imp *Import) error {
	imp.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO import (id, record_id, arm, source_name, delimiter, patient_name, event_count, events)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		imp.ID, imp.RecordID, imp.Arm, imp.SourceName, imp.Delimiter,
		imp.PatientName, imp.EventCount, imp.Events,
	)
	return err
}

func (r *importRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Import, error) {
	return scanImport(r.pool.QueryRow(ctx,
		`SELECT `+importColumns+` FROM import WHERE id = $1`, id))
}

func (r *importRepoPG) List(ctx context.Context, limit, offset int) ([]*Import, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM import`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, record_id, arm, source_name, delimiter, patient_name, event_count, created_at
		FROM import ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var imports []*Import
	for rows.Next() {
		var imp Import
		if err := rows.Scan(&imp.ID, &imp.RecordID, &imp.Arm, &imp.SourceName,
			&imp.Delimiter, &imp.PatientName, &imp.EventCount, &imp.CreatedAt); err != nil {
			return nil, 0, err
		}
		imports = append(imports, &imp)
	}
	return imports, total, rows.Err()
}

func (r *importRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM import WHERE id = $1`, id)
	return err
}

func scanImport(row pgx.Row) (*Import, error) {
	var imp Import
	err := row.Scan(&imp.ID, &imp.RecordID, &imp.Arm, &imp.SourceName, &imp.Delimiter,
		&imp.PatientName, &imp.EventCount, &imp.Events, &imp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// -- Record Repository --

const recordColumns = `id, import_id, record_id, arm, instrument, day_index, day, payload, created_at, updated_at`

type recordRepoPG struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) Replace(ctx context.Context, importID uuid.UUID, entries []*RecordEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM record WHERE import_id = $1`, importID); err != nil {
		return err
	}
	for _, entry := range entries {
		entry.ID = uuid.New()
		entry.ImportID = importID
		if err := insertRecord(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertRecord(ctx context.Context, q queryable, entry *RecordEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO record (id, import_id, record_id, arm, instrument, day_index, day, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ImportID, entry.RecordID, entry.Arm, entry.Instrument,
		entry.DayIndex, entry.Day, entry.Payload,
	)
	return err
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*RecordEntry, error) {
	return scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM record WHERE id = $1`, id))
}

func (r *recordRepoPG) ListByImport(ctx context.Context, importID uuid.UUID) ([]*RecordEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+` FROM record
		WHERE import_id = $1 ORDER BY day_index, instrument`, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*RecordEntry
	for rows.Next() {
		entry, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *recordRepoPG) UpdatePayload(ctx context.Context, entry *RecordEntry) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE record SET payload = $2, updated_at = NOW() WHERE id = $1`,
		entry.ID, entry.Payload,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (*RecordEntry, error) {
	var entry RecordEntry
	err := row.Scan(&entry.ID, &entry.ImportID, &entry.RecordID, &entry.Arm,
		&entry.Instrument, &entry.DayIndex, &entry.Day, &entry.Payload,
		&entry.CreatedAt, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func scanRecordRow(rows pgx.Rows) (*RecordEntry, error) {
	var entry RecordEntry
	err := rows.Scan(&entry.ID, &entry.ImportID, &entry.RecordID, &entry.Arm,
		&entry.Instrument, &entry.DayIndex, &entry.Day, &entry.Payload,
		&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
