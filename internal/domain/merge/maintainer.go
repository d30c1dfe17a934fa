package merge

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxChainDepth bounds how many redirect rounds a single pass will issue per
// type while chasing merge chains.
const maxChainDepth = 10

// Maintainer repairs stragglers: records that arrived from a disconnected
// client referencing a patient who was merged away before the client
// delivered its queued writes. It redirects such records onto the surviving
// identity and re-reconciles additional data wherever a redirect may have
// reintroduced duplicates. The pass is convergent; with no stragglers it is
// a no-op, so running it more often than needed costs nothing.
type Maintainer struct {
	tx         TxRunner
	records    RecordRepository
	reconciler *Reconciler
	log        zerolog.Logger
}

func NewMaintainer(tx TxRunner, records RecordRepository, reconciler *Reconciler, log zerolog.Logger) *Maintainer {
	return &Maintainer{tx: tx, records: records, reconciler: reconciler, log: log}
}

// Run redirects stragglers for every registered type and returns the
// records-affected count per type. A failure on one type is logged and
// skipped; the other types' redirects are independent and still run.
// Patient rows themselves need no repair here: merged_into_id is written
// once by the merger and never drifts.
func (m *Maintainer) Run(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}

	for _, entry := range SimpleTypes() {
		records, err := m.redirectChain(ctx, entry)
		if err != nil {
			m.log.Error().Err(err).Str("type", entry.Name).Msg("straggler redirect failed")
			continue
		}
		if len(records) > 0 {
			counts[entry.Name] = len(records)
		}
	}

	padEntry, _ := entryByName("PatientAdditionalData")
	padRecords, err := m.redirectChain(ctx, padEntry)
	if err != nil {
		m.log.Error().Err(err).Str("type", padEntry.Name).Msg("straggler redirect failed")
	} else if len(padRecords) > 0 {
		counts[padEntry.Name] = len(padRecords)

		// A redirected row may collide with the keep patient's own record;
		// reconcile each distinct target once.
		seen := map[uuid.UUID]bool{}
		for _, rec := range padRecords {
			if seen[rec.PatientID] {
				continue
			}
			seen[rec.PatientID] = true

			err := m.tx(ctx, func(ctx context.Context) error {
				_, err := m.reconciler.Reconcile(ctx, rec.PatientID)
				return err
			})
			if err != nil {
				m.log.Error().Err(err).
					Str("patient_id", rec.PatientID.String()).
					Msg("reconciling redirected additional data failed")
			}
		}
	}

	m.log.Info().Interface("records_affected", counts).Msg("merge maintenance pass finished")
	return counts, nil
}

// redirectChain re-issues the redirect until it matches nothing, so a record
// caught behind a merge chain (A into B, B into C) lands on the final
// surviving identity within one pass instead of waiting for the next. Rows
// are deduplicated by id; only their final target is kept.
func (m *Maintainer) redirectChain(ctx context.Context, entry TableEntry) ([]RedirectedRecord, error) {
	final := map[uuid.UUID]uuid.UUID{}
	var order []uuid.UUID

	for i := 0; i < maxChainDepth; i++ {
		records, err := m.records.RedirectMerged(ctx, entry)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			break
		}
		for _, rec := range records {
			if _, ok := final[rec.ID]; !ok {
				order = append(order, rec.ID)
			}
			final[rec.ID] = rec.PatientID
		}
	}

	out := make([]RedirectedRecord, 0, len(order))
	for _, id := range order {
		out = append(out, RedirectedRecord{ID: id, PatientID: final[id]})
	}
	return out, nil
}
