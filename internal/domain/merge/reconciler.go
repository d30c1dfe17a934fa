package merge

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebase/carebase/internal/domain/patient"
	"github.com/carebase/carebase/internal/platform/settings"
)

// Tally reports the outcome of reconciling one patient's additional data.
type Tally struct {
	Unmergeable int      `json:"unmergeable"`
	Deleted     int      `json:"deleted"`
	UpdatedKeys []string `json:"updated_keys,omitempty"`
	Blank       int      `json:"blank"`
}

// Reconciler folds a patient's duplicate additional-data rows into a single
// canonical record. Offline-first clients each create their own row before
// first sync, so duplicates are a normal, recurring condition rather than a
// one-off corruption.
type Reconciler struct {
	pads     patient.AdditionalDataRepository
	settings settings.Provider
	log      zerolog.Logger
}

func NewReconciler(pads patient.AdditionalDataRepository, s settings.Provider, log zerolog.Logger) *Reconciler {
	return &Reconciler{pads: pads, settings: s, log: log}
}

// Reconcile resolves the live additional-data rows for one patient, oldest
// first. The first row with any populated attribute becomes canonical; every
// later row is either folded into it (blank, or populated without conflict
// while the mergePopulatedRecords setting is on) or left live as
// unmergeable. Folding is sequential: each accepted row updates the
// accumulated state the next row is judged against.
//
// Callers must only invoke this for patients known to have at least one row;
// zero rows is an IntegrityError.
func (r *Reconciler) Reconcile(ctx context.Context, patientID uuid.UUID) (*Tally, error) {
	rows, err := r.pads.ListLiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, integrityf("no additional-data rows for patient %s", patientID)
	}

	// Read fresh on every call: an operator may toggle this between runs.
	mergePopulated := r.settings.MergePopulatedRecords(ctx)

	canonical := rows[0]
	for _, row := range rows {
		if len(row.Values()) > 0 {
			canonical = row
			break
		}
	}

	existing := canonical.Values()
	tally := &Tally{}
	var mergeable []uuid.UUID
	var contributed []string

	for _, row := range rows {
		if row.ID == canonical.ID {
			continue
		}

		vals := row.Values()
		if len(vals) == 0 {
			tally.Blank++
			mergeable = append(mergeable, row.ID)
			continue
		}

		if !mergePopulated {
			tally.Unmergeable++
			continue
		}

		var conflicts []string
		for _, key := range patient.AttributeKeys {
			v, ok := vals[key]
			if !ok {
				continue
			}
			if have, ok := existing[key]; ok && have != v {
				conflicts = append(conflicts, key)
			}
		}
		if len(conflicts) > 0 {
			// The whole row is rejected; partial-row merges would tear
			// related fields apart. Left live for manual review.
			tally.Unmergeable++
			r.log.Warn().
				Str("patient_id", patientID.String()).
				Str("record_id", row.ID.String()).
				Str("conflicting_keys", strings.Join(conflicts, ",")).
				Msg("additional-data record conflicts with canonical, skipping")
			continue
		}

		for _, key := range patient.AttributeKeys {
			v, ok := vals[key]
			if !ok {
				continue
			}
			if _, ok := existing[key]; !ok {
				existing[key] = v
				contributed = append(contributed, key)
			}
		}
		mergeable = append(mergeable, row.ID)
	}

	if len(contributed) > 0 {
		newValues := make(map[string]string, len(contributed))
		for _, key := range contributed {
			newValues[key] = existing[key]
		}
		if err := r.pads.UpdateValues(ctx, canonical.ID, newValues); err != nil {
			return nil, err
		}
		tally.UpdatedKeys = contributed
	}

	if len(mergeable) > 0 {
		if _, err := r.pads.MergeInto(ctx, mergeable, canonical.ID); err != nil {
			return nil, err
		}
		tally.Deleted = len(mergeable)
	}

	return tally, nil
}
