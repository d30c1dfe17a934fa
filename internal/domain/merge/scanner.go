package merge

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebase/carebase/internal/domain/patient"
)

// SweepTotals summarizes one reconciliation sweep across the population.
type SweepTotals struct {
	Patients    int `json:"patients"`
	Deleted     int `json:"deleted"`
	Unmergeable int `json:"unmergeable"`
	Errors      int `json:"errors"`
}

// Scanner finds every patient holding more than one live additional-data
// row and reconciles them in bounded batches. Pagination is keyed on the
// last processed patient id rather than an offset, so concurrent inserts and
// deletes cannot skip or repeat patients.
type Scanner struct {
	tx         TxRunner
	pads       patient.AdditionalDataRepository
	reconciler *Reconciler
	batchSize  int
	log        zerolog.Logger
}

func NewScanner(tx TxRunner, pads patient.AdditionalDataRepository, reconciler *Reconciler, batchSize int, log zerolog.Logger) *Scanner {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Scanner{tx: tx, pads: pads, reconciler: reconciler, batchSize: batchSize, log: log}
}

// CountAffected reports how many patients currently have duplicate rows.
// Sizing and observability only; the sweep itself re-selects per batch.
func (s *Scanner) CountAffected(ctx context.Context) (int, error) {
	return s.pads.CountPatientsWithDuplicates(ctx)
}

// Sweep reconciles every affected patient once. One patient's failure is
// counted and logged, never retried within the pass, and never blocks the
// rest: the cursor advances regardless of outcome. Re-running is harmless
// since resolved patients no longer match the duplicate selection.
func (s *Scanner) Sweep(ctx context.Context) (*SweepTotals, error) {
	affected, err := s.pads.CountPatientsWithDuplicates(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("affected_patients", affected).Msg("additional-data sweep starting")

	totals := &SweepTotals{}
	cursor := uuid.Nil

	for {
		if err := ctx.Err(); err != nil {
			return totals, err
		}

		ids, err := s.pads.ListPatientsWithDuplicates(ctx, cursor, s.batchSize)
		if err != nil {
			return totals, err
		}

		for _, id := range ids {
			cursor = id

			// Each patient reconciles in its own transaction, so a killed
			// sweep leaves every processed patient fully resolved.
			var tally *Tally
			err := s.tx(ctx, func(ctx context.Context) error {
				var err error
				tally, err = s.reconciler.Reconcile(ctx, id)
				return err
			})
			if err != nil {
				totals.Errors++
				s.log.Error().Err(err).
					Str("patient_id", id.String()).
					Msg("reconciling patient additional data failed")
				continue
			}
			totals.Patients++
			totals.Deleted += tally.Deleted
			totals.Unmergeable += tally.Unmergeable
		}

		if len(ids) < s.batchSize {
			break
		}
	}

	s.log.Info().
		Int("patients", totals.Patients).
		Int("deleted", totals.Deleted).
		Int("unmergeable", totals.Unmergeable).
		Int("errors", totals.Errors).
		Msg("additional-data sweep finished")

	return totals, nil
}
