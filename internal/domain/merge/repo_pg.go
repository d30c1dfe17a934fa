package merge

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebase/carebase/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *recordRepoPG) Reassign(ctx context.Context, e TableEntry, keepID, unwantedID uuid.UUID) (int64, error) {
	// A raw statement on purpose: the rewrite must touch soft-deleted rows
	// too, and must not trip whole-record validation just to move one key.
	query := `UPDATE ` + e.Table + `
		SET ` + e.FK() + ` = $1, updated_at = now()
		WHERE ` + e.FK() + ` = $2`
	if e.ExtraWhere != "" {
		query += ` AND ` + e.ExtraWhere
	}

	tag, err := r.conn(ctx).Exec(ctx, query, keepID, unwantedID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *recordRepoPG) RedirectMerged(ctx context.Context, e TableEntry) ([]RedirectedRecord, error) {
	query := `UPDATE ` + e.Table + `
		SET ` + e.FK() + ` = patients.merged_into_id, updated_at = now()
		FROM patients
		WHERE patients.id = ` + e.Table + `.` + e.FK() + `
			AND patients.merged_into_id IS NOT NULL`
	if e.ExtraWhere != "" {
		query += ` AND ` + e.ExtraWhere
	}
	query += ` RETURNING ` + e.Table + `.id, patients.merged_into_id`

	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RedirectedRecord
	for rows.Next() {
		var rec RedirectedRecord
		if err := rows.Scan(&rec.ID, &rec.PatientID); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *recordRepoPG) PatientLinkedTables(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT c.table_name
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = current_schema()
			AND t.table_type = 'BASE TABLE'
			AND c.column_name = 'patient_id'
		ORDER BY c.table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
