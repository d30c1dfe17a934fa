package merge

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebase/carebase/internal/domain/patient"
)

// TxRunner executes fn inside one database transaction. Production wiring
// uses db.TxRunner; tests substitute a passthrough.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

// Result reports the affected-row counts per entity type for one merge.
type Result struct {
	Updates map[string]int `json:"updates"`
}

// Merger executes an explicit merge of one patient identity into another.
// Everything happens in a single transaction: the unwanted patient is
// tombstoned, every registered patient-owned table has its foreign keys
// rewritten, and the surviving patient's additional data is reconciled down
// to one canonical record.
type Merger struct {
	tx         TxRunner
	patients   patient.Repository
	pads       patient.AdditionalDataRepository
	records    RecordRepository
	reconciler *Reconciler
	log        zerolog.Logger
}

func NewMerger(tx TxRunner, patients patient.Repository, pads patient.AdditionalDataRepository,
	records RecordRepository, reconciler *Reconciler, log zerolog.Logger) *Merger {
	return &Merger{
		tx:         tx,
		patients:   patients,
		pads:       pads,
		records:    records,
		reconciler: reconciler,
		log:        log,
	}
}

// Merge folds the unwanted patient into the keep patient. Safe to re-run:
// a second call finds nothing left under the unwanted id and reports zero
// counts apart from the Patient tombstone no-op.
func (m *Merger) Merge(ctx context.Context, keepID, unwantedID uuid.UUID) (*Result, error) {
	if keepID == unwantedID {
		return nil, invalidParamf("cannot merge a patient record into itself")
	}

	m.log.Info().
		Str("keep_patient_id", keepID.String()).
		Str("unwanted_patient_id", unwantedID.String()).
		Msg("patient merge starting")

	var result *Result
	err := m.tx(ctx, func(ctx context.Context) error {
		keep, err := m.patients.GetByID(ctx, keepID)
		if errors.Is(err, patient.ErrNotFound) {
			return invalidParamf("patient to keep (id %s) does not exist", keepID)
		}
		if err != nil {
			return err
		}
		if keep.MergedIntoID != nil {
			return invalidParamf("patient to keep (id %s) has itself been merged into %s",
				keepID, *keep.MergedIntoID)
		}

		unwanted, err := m.patients.GetByID(ctx, unwantedID)
		if errors.Is(err, patient.ErrNotFound) {
			return invalidParamf("patient to merge (id %s) does not exist", unwantedID)
		}
		if err != nil {
			return err
		}
		if unwanted.MergedIntoID != nil && *unwanted.MergedIntoID != keepID {
			return invalidParamf("patient to merge (id %s) was already merged into %s",
				unwantedID, *unwanted.MergedIntoID)
		}

		updates := map[string]int{}

		if _, err := m.patients.MarkMerged(ctx, unwantedID, keepID); err != nil {
			return err
		}
		updates["Patient"] = 1

		for _, entry := range SimpleTypes() {
			n, err := m.records.Reassign(ctx, entry, keepID, unwantedID)
			if err != nil {
				return err
			}
			if n > 0 {
				updates[entry.Name] = int(n)
			}
		}

		// Additional data gets the same rewrite, then an immediate
		// reconcile so the keep patient comes out with one canonical row
		// even when both sides had their own.
		padEntry, ok := entryByName("PatientAdditionalData")
		if !ok {
			return errors.New("PatientAdditionalData missing from merge registry")
		}
		n, err := m.records.Reassign(ctx, padEntry, keepID, unwantedID)
		if err != nil {
			return err
		}
		if n > 0 {
			updates[padEntry.Name] = int(n)
		}

		live, err := m.pads.ListLiveByPatient(ctx, keepID)
		if err != nil {
			return err
		}
		if len(live) > 0 {
			if _, err := m.reconciler.Reconcile(ctx, keepID); err != nil {
				return err
			}
		}

		result = &Result{Updates: updates}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Str("keep_patient_id", keepID.String()).
		Str("unwanted_patient_id", unwantedID.String()).
		Interface("updates", result.Updates).
		Msg("patient merge finished")

	return result, nil
}
