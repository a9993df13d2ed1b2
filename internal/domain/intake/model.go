package intake

import (
	"errors"
	"fmt"
)

// ErrUnknownField is returned when a field name is not part of Record.
var ErrUnknownField = errors.New("unknown field")

// Field names as they appear on the wire.
const (
	FieldFirstName         = "firstName"
	FieldMiddleName        = "middleName"
	FieldLastName          = "lastName"
	FieldEmail             = "email"
	FieldPhone             = "phone"
	FieldDOB               = "dob"
	FieldGender            = "gender"
	FieldAddress           = "address"
	FieldProvince          = "province"
	FieldDistrict          = "district"
	FieldSubdistrict       = "subdistrict"
	FieldPostalCode        = "postalCode"
	FieldPreferredLanguage = "preferredLanguage"
	FieldNationality       = "nationality"
	FieldEmergencyName     = "emergencyName"
	FieldEmergencyRelation = "emergencyRelation"
	FieldReligion          = "religion"
)

// FieldNames lists every Record field in form order.
var FieldNames = []string{
	FieldFirstName, FieldMiddleName, FieldLastName, FieldEmail, FieldPhone,
	FieldDOB, FieldGender, FieldAddress, FieldProvince, FieldDistrict,
	FieldSubdistrict, FieldPostalCode, FieldPreferredLanguage, FieldNationality,
	FieldEmergencyName, FieldEmergencyRelation, FieldReligion,
}

// Gender values accepted by validation.
const (
	GenderFemale = "female"
	GenderMale   = "male"
	GenderOther  = "other"
)

// Record is one patient's in-progress answers. All values are kept as the
// raw strings the patient typed; dob uses the yyyy-mm-dd date input format.
type Record struct {
	FirstName         string `json:"firstName"`
	MiddleName        string `json:"middleName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	DOB               string `json:"dob"`
	Gender            string `json:"gender"`
	Address           string `json:"address"`
	Province          string `json:"province"`
	District          string `json:"district"`
	Subdistrict       string `json:"subdistrict"`
	PostalCode        string `json:"postalCode"`
	PreferredLanguage string `json:"preferredLanguage"`
	Nationality       string `json:"nationality"`
	EmergencyName     string `json:"emergencyName"`
	EmergencyRelation string `json:"emergencyRelation"`
	Religion          string `json:"religion"`
}

func (r *Record) field(name string) (*string, bool) {
	switch name {
	case FieldFirstName:
		return &r.FirstName, true
	case FieldMiddleName:
		return &r.MiddleName, true
	case FieldLastName:
		return &r.LastName, true
	case FieldEmail:
		return &r.Email, true
	case FieldPhone:
		return &r.Phone, true
	case FieldDOB:
		return &r.DOB, true
	case FieldGender:
		return &r.Gender, true
	case FieldAddress:
		return &r.Address, true
	case FieldProvince:
		return &r.Province, true
	case FieldDistrict:
		return &r.District, true
	case FieldSubdistrict:
		return &r.Subdistrict, true
	case FieldPostalCode:
		return &r.PostalCode, true
	case FieldPreferredLanguage:
		return &r.PreferredLanguage, true
	case FieldNationality:
		return &r.Nationality, true
	case FieldEmergencyName:
		return &r.EmergencyName, true
	case FieldEmergencyRelation:
		return &r.EmergencyRelation, true
	case FieldReligion:
		return &r.Religion, true
	}
	return nil, false
}

// With returns a copy of r with field set to value. r is not modified.
func (r Record) With(field, value string) (Record, error) {
	p, ok := r.field(field)
	if !ok {
		return r, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	*p = value
	return r, nil
}

// Get returns the value of field, or "" for unknown names.
func (r Record) Get(field string) string {
	if p, ok := r.field(field); ok {
		return *p
	}
	return ""
}

// Fields returns every field keyed by wire name. It is the form_update data
// payload: always the complete record, never a diff.
func (r Record) Fields() map[string]string {
	out := make(map[string]string, len(FieldNames))
	for _, name := range FieldNames {
		out[name] = r.Get(name)
	}
	return out
}

// IsBlank reports whether every field is empty.
func (r Record) IsBlank() bool {
	return r == Record{}
}
