package intake

import (
	"regexp"
	"strings"
)

// DefaultRegion is the phone numbering region assumed when none is configured.
const DefaultRegion = "TH"

// ErrorMap maps field names to human-readable validation messages. An empty
// map means the record may be submitted.
type ErrorMap map[string]string

// Message keys used by the catalogue.
const (
	msgFirstNameRequired = "firstName.required"
	msgLastNameRequired  = "lastName.required"
	msgDOBRequired       = "dob.required"
	msgGenderRequired    = "gender.required"
	msgPhoneRequired     = "phone.required"
	msgPhoneInvalid      = "phone.invalid"
	msgEmailRequired     = "email.required"
	msgEmailInvalid      = "email.invalid"
)

// Messages holds validation messages per language.
var Messages = map[string]map[string]string{
	"en": {
		msgFirstNameRequired: "first name is required",
		msgLastNameRequired:  "last name is required",
		msgDOBRequired:       "date of birth is required",
		msgGenderRequired:    "gender is required",
		msgPhoneRequired:     "phone number is required",
		msgPhoneInvalid:      "phone number format is invalid",
		msgEmailRequired:     "email is required",
		msgEmailInvalid:      "email is invalid",
	},
	"th": {
		msgFirstNameRequired: "ต้องระบุชื่อ",
		msgLastNameRequired:  "ต้องระบุนามสกุล",
		msgDOBRequired:       "ต้องระบุวันเกิด",
		msgGenderRequired:    "ต้องเลือกเพศ",
		msgPhoneRequired:     "ต้องระบุเบอร์โทร",
		msgPhoneInvalid:      "รูปแบบเบอร์ไม่ถูกต้อง",
		msgEmailRequired:     "ต้องระบุอีเมล",
		msgEmailInvalid:      "อีเมลไม่ถูกต้อง",
	},
}

var (
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigits = regexp.MustCompile(`\D`)
)

// Validator checks a Record before submission.
type Validator struct {
	Region   string // phone numbering region, "TH" when empty
	Language string // message language, "en" when empty or unknown
}

func (v Validator) region() string {
	if v.Region == "" {
		return DefaultRegion
	}
	return v.Region
}

// Validate applies every rule and collects all failures.
func (v Validator) Validate(r Record) ErrorMap {
	msgs, ok := Messages[v.Language]
	if !ok {
		msgs = Messages["en"]
	}
	region := v.region()

	errs := ErrorMap{}
	if strings.TrimSpace(r.FirstName) == "" {
		errs[FieldFirstName] = msgs[msgFirstNameRequired]
	}
	if strings.TrimSpace(r.LastName) == "" {
		errs[FieldLastName] = msgs[msgLastNameRequired]
	}
	if r.DOB == "" {
		errs[FieldDOB] = msgs[msgDOBRequired]
	}
	switch r.Gender {
	case GenderFemale, GenderMale, GenderOther:
	default:
		errs[FieldGender] = msgs[msgGenderRequired]
	}
	if strings.TrimSpace(r.Phone) == "" {
		errs[FieldPhone] = msgs[msgPhoneRequired]
	} else if !IsValidPhone(r.Phone, region) {
		errs[FieldPhone] = msgs[msgPhoneInvalid]
	}
	if strings.TrimSpace(r.Email) == "" {
		errs[FieldEmail] = msgs[msgEmailRequired]
	} else if !IsValidEmail(r.Email) {
		errs[FieldEmail] = msgs[msgEmailInvalid]
	}
	return errs
}

// Validate checks r with the default region and English messages.
func (r Record) Validate() ErrorMap {
	return Validator{}.Validate(r)
}

// IsValidEmail applies a pragmatic local@domain.tld shape check.
func IsValidEmail(email string) bool {
	s := strings.ToLower(strings.TrimSpace(email))
	return s != "" && emailRe.MatchString(s)
}

// IsValidPhone checks the digit count of phone. For TH it accepts
// 0XXXXXXXXX, 66XXXXXXXXX (with or without +) and bare 9-digit numbers; any
// other region accepts 8 to 15 digits.
func IsValidPhone(phone, region string) bool {
	digits := nonDigits.ReplaceAllString(phone, "")
	if digits == "" {
		return false
	}

	if strings.EqualFold(region, "TH") {
		switch {
		case len(digits) == 10 && strings.HasPrefix(digits, "0"):
			return true
		case len(digits) == 11 && strings.HasPrefix(digits, "66"):
			return true
		case len(digits) == 9:
			return true
		}
		return false
	}

	return len(digits) >= 8 && len(digits) <= 15
}

// NormalizePhoneE164 returns phone in +<country><number> form, or "" when the
// number is not valid for region.
func NormalizePhoneE164(phone, region string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	if !IsValidPhone(digits, region) {
		return ""
	}

	if strings.EqualFold(region, "TH") {
		switch len(digits) {
		case 10:
			return "+66" + digits[1:]
		case 11:
			return "+" + digits
		default:
			return "+66" + digits
		}
	}
	return "+" + digits
}
