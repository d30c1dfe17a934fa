package merge

import (
	"context"

	"github.com/google/uuid"
)

// RedirectedRecord is one row whose patient reference a maintenance pass
// moved onto a surviving identity.
type RedirectedRecord struct {
	ID        uuid.UUID
	PatientID uuid.UUID
}

// RecordRepository executes the registry-driven bulk rewrites. Table and
// column names always come from the static registry, never from callers.
type RecordRepository interface {
	// Reassign moves every row of the entry's table, soft-deleted ones
	// included, from the unwanted patient to the keep patient. History must
	// follow the surviving identity.
	Reassign(ctx context.Context, e TableEntry, keepID, unwantedID uuid.UUID) (int64, error)
	// RedirectMerged rewrites rows still pointing at any merged-away
	// patient onto that patient's merged_into_id, returning the touched
	// rows with their new patient reference.
	RedirectMerged(ctx context.Context, e TableEntry) ([]RedirectedRecord, error)
	// PatientLinkedTables lists the live schema's tables carrying a
	// patient_id column, for the coverage guard.
	PatientLinkedTables(ctx context.Context) ([]string, error)
}
