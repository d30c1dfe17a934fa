package patient

import (
	"time"

	"github.com/google/uuid"
)

type VisibilityStatus string

const (
	VisibilityCurrent    VisibilityStatus = "current"
	VisibilityHistorical VisibilityStatus = "historical"
	// VisibilityMerged marks a patient whose identity has been subsumed by
	// another. Set exactly when MergedIntoID becomes non-nil, never reversed.
	VisibilityMerged VisibilityStatus = "merged"
)

// Patient maps to the patients table.
type Patient struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	DisplayID        string           `db:"display_id" json:"display_id"`
	FirstName        string           `db:"first_name" json:"first_name"`
	LastName         string           `db:"last_name" json:"last_name"`
	DateOfBirth      *time.Time       `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Sex              *string          `db:"sex" json:"sex,omitempty"`
	MergedIntoID     *uuid.UUID       `db:"merged_into_id" json:"merged_into_id,omitempty"`
	VisibilityStatus VisibilityStatus `db:"visibility_status" json:"visibility_status"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time       `db:"deleted_at" json:"deleted_at,omitempty"`
}

// AdditionalData maps to patient_additional_data. A patient should end up
// with at most one live row; offline clients that each created their own row
// before first sync leave duplicates behind, which reconciliation folds back
// into a single canonical record.
type AdditionalData struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	MergedIntoID *uuid.UUID `db:"merged_into_id" json:"merged_into_id,omitempty"`

	Passport               *string `db:"passport" json:"passport,omitempty"`
	DrivingLicense         *string `db:"driving_license" json:"driving_license,omitempty"`
	BirthCertificate       *string `db:"birth_certificate" json:"birth_certificate,omitempty"`
	PlaceOfBirth           *string `db:"place_of_birth" json:"place_of_birth,omitempty"`
	Title                  *string `db:"title" json:"title,omitempty"`
	MaritalStatus          *string `db:"marital_status" json:"marital_status,omitempty"`
	BloodType              *string `db:"blood_type" json:"blood_type,omitempty"`
	PrimaryContactNumber   *string `db:"primary_contact_number" json:"primary_contact_number,omitempty"`
	SecondaryContactNumber *string `db:"secondary_contact_number" json:"secondary_contact_number,omitempty"`
	EmergencyContactName   *string `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactNumber *string `db:"emergency_contact_number" json:"emergency_contact_number,omitempty"`
	ReligionID             *string `db:"religion_id" json:"religion_id,omitempty"`
	NationalityID          *string `db:"nationality_id" json:"nationality_id,omitempty"`
	EthnicityID            *string `db:"ethnicity_id" json:"ethnicity_id,omitempty"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// AttributeKeys lists the mergeable demographic attributes by column name,
// in column order. Metadata columns (id, patient_id, merged_into_id,
// timestamps) are deliberately absent: they are never carried across records
// during reconciliation.
var AttributeKeys = []string{
	"passport",
	"driving_license",
	"birth_certificate",
	"place_of_birth",
	"title",
	"marital_status",
	"blood_type",
	"primary_contact_number",
	"secondary_contact_number",
	"emergency_contact_name",
	"emergency_contact_number",
	"religion_id",
	"nationality_id",
	"ethnicity_id",
}

func (a *AdditionalData) field(key string) **string {
	switch key {
	case "passport":
		return &a.Passport
	case "driving_license":
		return &a.DrivingLicense
	case "birth_certificate":
		return &a.BirthCertificate
	case "place_of_birth":
		return &a.PlaceOfBirth
	case "title":
		return &a.Title
	case "marital_status":
		return &a.MaritalStatus
	case "blood_type":
		return &a.BloodType
	case "primary_contact_number":
		return &a.PrimaryContactNumber
	case "secondary_contact_number":
		return &a.SecondaryContactNumber
	case "emergency_contact_name":
		return &a.EmergencyContactName
	case "emergency_contact_number":
		return &a.EmergencyContactNumber
	case "religion_id":
		return &a.ReligionID
	case "nationality_id":
		return &a.NationalityID
	case "ethnicity_id":
		return &a.EthnicityID
	default:
		return nil
	}
}

// Values returns the populated attributes: keys whose value is neither nil
// nor the empty string.
func (a *AdditionalData) Values() map[string]string {
	vals := make(map[string]string)
	for _, key := range AttributeKeys {
		if p := *a.field(key); p != nil && *p != "" {
			vals[key] = *p
		}
	}
	return vals
}

// Value returns one attribute and whether it is populated.
func (a *AdditionalData) Value(key string) (string, bool) {
	f := a.field(key)
	if f == nil || *f == nil || **f == "" {
		return "", false
	}
	return **f, true
}

// Set assigns an attribute by key, reporting false for unknown keys.
func (a *AdditionalData) Set(key, value string) bool {
	f := a.field(key)
	if f == nil {
		return false
	}
	v := value
	*f = &v
	return true
}

// IsAttributeKey reports whether key names a mergeable attribute column.
func IsAttributeKey(key string) bool {
	for _, k := range AttributeKeys {
		if k == key {
			return true
		}
	}
	return false
}
