package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient id resolves to no row at all
// (soft-deleted rows are still found: a merged-away patient must remain
// addressable).
var ErrNotFound = errors.New("patient not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// MarkMerged tombstones the unwanted patient: merged_into_id, MERGED
	// visibility and the soft-delete timestamp in one write. The field is
	// write-once, so a patient already merged is left untouched and the
	// affected-row count comes back 0.
	MarkMerged(ctx context.Context, unwantedID, keepID uuid.UUID) (int64, error)
}

type AdditionalDataRepository interface {
	// ListLiveByPatient returns the non-deleted rows for one patient,
	// ordered by updated_at ascending. Reconciliation depends on this
	// ordering; do not change it.
	ListLiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*AdditionalData, error)
	// UpdateValues writes the given attribute columns on one row and bumps
	// updated_at.
	UpdateValues(ctx context.Context, id uuid.UUID, values map[string]string) error
	// MergeInto soft-deletes the given rows and points their merged_into_id
	// at the canonical row, as a single batched write.
	MergeInto(ctx context.Context, ids []uuid.UUID, canonicalID uuid.UUID) (int64, error)
	CountPatientsWithDuplicates(ctx context.Context) (int, error)
	// ListPatientsWithDuplicates pages through patient ids having more than
	// one live row, ascending, starting strictly after the cursor.
	ListPatientsWithDuplicates(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}
