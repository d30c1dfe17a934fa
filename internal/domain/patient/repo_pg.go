package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, display_id, first_name, last_name, date_of_birth, sex,
	merged_into_id, visibility_status, created_at, updated_at, deleted_at`

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id).
		Scan(&p.ID, &p.DisplayID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Sex,
			&p.MergedIntoID, &p.VisibilityStatus, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) MarkMerged(ctx context.Context, unwantedID, keepID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients
		SET merged_into_id = $2, visibility_status = $3, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND merged_into_id IS NULL`,
		unwantedID, keepID, VisibilityMerged)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type additionalDataRepoPG struct{ pool *pgxpool.Pool }

func NewAdditionalDataRepoPG(pool *pgxpool.Pool) AdditionalDataRepository {
	return &additionalDataRepoPG{pool: pool}
}

func (r *additionalDataRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const padCols = `id, patient_id, merged_into_id,
	passport, driving_license, birth_certificate, place_of_birth, title,
	marital_status, blood_type, primary_contact_number, secondary_contact_number,
	emergency_contact_name, emergency_contact_number, religion_id,
	nationality_id, ethnicity_id,
	created_at, updated_at, deleted_at`

func scanAdditionalData(row pgx.Row) (*AdditionalData, error) {
	var a AdditionalData
	err := row.Scan(&a.ID, &a.PatientID, &a.MergedIntoID,
		&a.Passport, &a.DrivingLicense, &a.BirthCertificate, &a.PlaceOfBirth, &a.Title,
		&a.MaritalStatus, &a.BloodType, &a.PrimaryContactNumber, &a.SecondaryContactNumber,
		&a.EmergencyContactName, &a.EmergencyContactNumber, &a.ReligionID,
		&a.NationalityID, &a.EthnicityID,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	return &a, err
}

func (r *additionalDataRepoPG) ListLiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*AdditionalData, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+padCols+`
		FROM patient_additional_data
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at ASC, id ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*AdditionalData
	for rows.Next() {
		a, err := scanAdditionalData(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *additionalDataRepoPG) UpdateValues(ctx context.Context, id uuid.UUID, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		if !IsAttributeKey(key) {
			return fmt.Errorf("unknown additional-data attribute %q", key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	set := ""
	args := []interface{}{id}
	for i, key := range keys {
		if i > 0 {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", key, i+2)
		args = append(args, values[key])
	}

	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient_additional_data SET `+set+`, updated_at = now() WHERE id = $1`,
		args...)
	return err
}

func (r *additionalDataRepoPG) MergeInto(ctx context.Context, ids []uuid.UUID, canonicalID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_additional_data
		SET deleted_at = now(), merged_into_id = $1, updated_at = now()
		WHERE id = ANY($2) AND deleted_at IS NULL`,
		canonicalID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *additionalDataRepoPG) CountPatientsWithDuplicates(ctx context.Context) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT patient_id
			FROM patient_additional_data
			WHERE deleted_at IS NULL
			GROUP BY patient_id
			HAVING COUNT(*) > 1
		) dup`).Scan(&count)
	return count, err
}

func (r *additionalDataRepoPG) ListPatientsWithDuplicates(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_id
		FROM patient_additional_data
		WHERE deleted_at IS NULL AND patient_id > $1
		GROUP BY patient_id
		HAVING COUNT(*) > 1
		ORDER BY patient_id ASC
		LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
