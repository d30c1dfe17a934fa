package merge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebase/carebase/internal/domain/patient"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// -- Mock Settings Provider --

type mockSettings struct {
	mergePopulated bool
	reads          int
}

func (m *mockSettings) MergePopulatedRecords(_ context.Context) bool {
	m.reads++
	return m.mergePopulated
}

// -- Mock Patient Repository --

type mockPatientRepo struct {
	patients map[uuid.UUID]*patient.Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*patient.Patient)}
}

func (m *mockPatientRepo) add(p *patient.Patient) *patient.Patient {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.VisibilityStatus == "" {
		p.VisibilityStatus = patient.VisibilityCurrent
	}
	m.patients[p.ID] = p
	return p
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) MarkMerged(_ context.Context, unwantedID, keepID uuid.UUID) (int64, error) {
	p, ok := m.patients[unwantedID]
	if !ok || p.MergedIntoID != nil {
		return 0, nil
	}
	now := time.Now()
	p.MergedIntoID = &keepID
	p.VisibilityStatus = patient.VisibilityMerged
	p.DeletedAt = &now
	return 1, nil
}

// -- Mock Additional Data Repository --

type mockPADRepo struct {
	rows map[uuid.UUID]*patient.AdditionalData

	updateErr    error
	failPatients map[uuid.UUID]error
}

func newMockPADRepo() *mockPADRepo {
	return &mockPADRepo{
		rows:         make(map[uuid.UUID]*patient.AdditionalData),
		failPatients: make(map[uuid.UUID]error),
	}
}

func (m *mockPADRepo) add(patientID uuid.UUID, updatedAt time.Time, values map[string]string) *patient.AdditionalData {
	row := &patient.AdditionalData{
		ID:        uuid.New(),
		PatientID: patientID,
		UpdatedAt: updatedAt,
	}
	for k, v := range values {
		row.Set(k, v)
	}
	m.rows[row.ID] = row
	return row
}

func (m *mockPADRepo) live(patientID uuid.UUID) []*patient.AdditionalData {
	var out []*patient.AdditionalData
	for _, row := range m.rows {
		if row.PatientID == patientID && row.DeletedAt == nil {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (m *mockPADRepo) ListLiveByPatient(_ context.Context, patientID uuid.UUID) ([]*patient.AdditionalData, error) {
	if err := m.failPatients[patientID]; err != nil {
		return nil, err
	}
	return m.live(patientID), nil
}

func (m *mockPADRepo) UpdateValues(_ context.Context, id uuid.UUID, values map[string]string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	row, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("no row %s", id)
	}
	for k, v := range values {
		if !row.Set(k, v) {
			return fmt.Errorf("unknown attribute %q", k)
		}
	}
	row.UpdatedAt = time.Now()
	return nil
}

func (m *mockPADRepo) MergeInto(_ context.Context, ids []uuid.UUID, canonicalID uuid.UUID) (int64, error) {
	var n int64
	now := time.Now()
	for _, id := range ids {
		row, ok := m.rows[id]
		if !ok || row.DeletedAt != nil {
			continue
		}
		row.DeletedAt = &now
		row.MergedIntoID = &canonicalID
		n++
	}
	return n, nil
}

func (m *mockPADRepo) duplicatePatients() []uuid.UUID {
	counts := make(map[uuid.UUID]int)
	for _, row := range m.rows {
		if row.DeletedAt == nil {
			counts[row.PatientID]++
		}
	}
	var out []uuid.UUID
	for id, n := range counts {
		if n > 1 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (m *mockPADRepo) CountPatientsWithDuplicates(_ context.Context) (int, error) {
	return len(m.duplicatePatients()), nil
}

func (m *mockPADRepo) ListPatientsWithDuplicates(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range m.duplicatePatients() {
		if after != uuid.Nil && id.String() <= after.String() {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// -- Mock Record Repository --

type fakeRecord struct {
	id        uuid.UUID
	patientID uuid.UUID
}

type mockRecordRepo struct {
	// rows per table name, as the persisted rows a redirect would rewrite
	tables   map[string][]*fakeRecord
	patients *mockPatientRepo
	// additional-data rows live in the PAD repo; rewrites on that table
	// must show through it
	pads *mockPADRepo

	failTables map[string]error
	linked     []string
}

func newMockRecordRepo(patients *mockPatientRepo) *mockRecordRepo {
	return &mockRecordRepo{
		tables:     make(map[string][]*fakeRecord),
		patients:   patients,
		failTables: make(map[string]error),
	}
}

func (m *mockRecordRepo) add(table string, patientID uuid.UUID) *fakeRecord {
	rec := &fakeRecord{id: uuid.New(), patientID: patientID}
	m.tables[table] = append(m.tables[table], rec)
	return rec
}

func (m *mockRecordRepo) Reassign(_ context.Context, e TableEntry, keepID, unwantedID uuid.UUID) (int64, error) {
	if err := m.failTables[e.Table]; err != nil {
		return 0, err
	}
	var n int64
	if e.Table == "patient_additional_data" && m.pads != nil {
		for _, row := range m.pads.rows {
			if row.PatientID == unwantedID {
				row.PatientID = keepID
				n++
			}
		}
		return n, nil
	}
	for _, rec := range m.tables[e.Table] {
		if rec.patientID == unwantedID {
			rec.patientID = keepID
			n++
		}
	}
	return n, nil
}

func (m *mockRecordRepo) RedirectMerged(_ context.Context, e TableEntry) ([]RedirectedRecord, error) {
	if err := m.failTables[e.Table]; err != nil {
		return nil, err
	}
	var out []RedirectedRecord
	if e.Table == "patient_additional_data" && m.pads != nil {
		for _, row := range m.pads.rows {
			p, ok := m.patients.patients[row.PatientID]
			if !ok || p.MergedIntoID == nil {
				continue
			}
			row.PatientID = *p.MergedIntoID
			out = append(out, RedirectedRecord{ID: row.ID, PatientID: row.PatientID})
		}
		return out, nil
	}
	for _, rec := range m.tables[e.Table] {
		p, ok := m.patients.patients[rec.patientID]
		if !ok || p.MergedIntoID == nil {
			continue
		}
		rec.patientID = *p.MergedIntoID
		out = append(out, RedirectedRecord{ID: rec.id, PatientID: rec.patientID})
	}
	return out, nil
}

func (m *mockRecordRepo) PatientLinkedTables(_ context.Context) ([]string, error) {
	return m.linked, nil
}

// passthroughTx runs fn without a real transaction.
func passthroughTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
