package merge

// Strategy says how a patient-owned entity type is handled when two patient
// identities merge.
type Strategy string

const (
	// StrategySimple types only need their patient foreign key redirected.
	StrategySimple Strategy = "simple"
	// StrategySpecific types carry bespoke reconciliation beyond a key
	// rewrite and are skipped by the generic fan-out.
	StrategySpecific Strategy = "specific"
)

// TableEntry declares merge coverage for one entity type. FKColumn defaults
// to patient_id; ExtraWhere narrows the redirect for types whose patient
// reference is scoped (polymorphic keys, sub-type filters) and must be
// declared explicitly per type, never inferred.
type TableEntry struct {
	Name       string
	Table      string
	FKColumn   string
	ExtraWhere string
	Strategy   Strategy
}

// FK returns the entry's foreign-key column, defaulting to patient_id.
func (e TableEntry) FK() string {
	if e.FKColumn == "" {
		return "patient_id"
	}
	return e.FKColumn
}

// Any table with a patient reference must appear here (or in excludedTables).
// The coverage test fails the build for any patient-linked table that is
// missing, so adding a table to the schema forces a decision about its merge
// strategy.
var registry = []TableEntry{
	{Name: "Patient", Table: "patients", Strategy: StrategySpecific},
	{Name: "PatientAdditionalData", Table: "patient_additional_data", Strategy: StrategySpecific},

	{Name: "Encounter", Table: "encounters", Strategy: StrategySimple},
	{Name: "PatientAllergy", Table: "patient_allergies", Strategy: StrategySimple},
	{Name: "PatientFamilyHistory", Table: "patient_family_histories", Strategy: StrategySimple},
	{Name: "PatientCondition", Table: "patient_conditions", Strategy: StrategySimple},
	{Name: "PatientIssue", Table: "patient_issues", Strategy: StrategySimple},
	{Name: "PatientSecondaryID", Table: "patient_secondary_ids", Strategy: StrategySimple},
	{Name: "PatientCarePlan", Table: "patient_care_plans", Strategy: StrategySimple},
	{Name: "PatientCommunication", Table: "patient_communications", Strategy: StrategySimple},
	{Name: "PatientContact", Table: "patient_contacts", Strategy: StrategySimple},
	{Name: "Appointment", Table: "appointments", Strategy: StrategySimple},
	{Name: "DocumentMetadata", Table: "document_metadata", Strategy: StrategySimple},
	{Name: "CertificateNotification", Table: "certificate_notifications", Strategy: StrategySimple},
	{Name: "UserRecentlyViewedPatient", Table: "user_recently_viewed_patients", Strategy: StrategySimple},

	// Notes attach to many record types through a polymorphic key, so the
	// redirect is scoped to patient-owned notes only.
	{Name: "Note", Table: "notes", FKColumn: "record_id",
		ExtraWhere: "record_type = 'Patient'", Strategy: StrategySimple},
}

// excludedTables reference patients but deliberately keep their original id
// after a merge.
var excludedTables = []string{
	"access_logs", // audit history must reflect the identity actually accessed
}

// SimpleTypes returns the entries whose merge handling is a foreign-key
// redirect.
func SimpleTypes() []TableEntry {
	var out []TableEntry
	for _, e := range registry {
		if e.Strategy == StrategySimple {
			out = append(out, e)
		}
	}
	return out
}

// SpecificTypes returns the entries requiring bespoke merge handling.
func SpecificTypes() []TableEntry {
	var out []TableEntry
	for _, e := range registry {
		if e.Strategy == StrategySpecific {
			out = append(out, e)
		}
	}
	return out
}

func entryByName(name string) (TableEntry, bool) {
	for _, e := range registry {
		if e.Name == name {
			return e, true
		}
	}
	return TableEntry{}, false
}

// MissingCoverage returns the schema tables that reference patients but have
// no declared merge strategy. A non-empty result means a new patient-owned
// table was added without deciding how merges treat it, which would leave
// orphaned references behind; CI must fail on it.
func MissingCoverage(schemaTables []string) []string {
	covered := make(map[string]bool, len(registry)+len(excludedTables))
	for _, e := range registry {
		covered[e.Table] = true
	}
	for _, t := range excludedTables {
		covered[t] = true
	}

	var missing []string
	for _, t := range schemaTables {
		if !covered[t] {
			missing = append(missing, t)
		}
	}
	return missing
}
