package model

// CategoryKind enumerates the document categories the portal asks for.
// CategoryUnrecognized carries any other form field name verbatim.
type CategoryKind int

const (
	CategoryUnrecognized CategoryKind = iota
	CategoryW2
	CategoryDriversLicense
	CategorySocialSecurityCard
	CategoryForm1095
	CategoryForm1099
	CategoryForm1099NEC
	CategoryForm1098
	CategoryForm1098T
	CategoryForm1098E
	CategoryK1
	CategoryVoidedCheck
	CategoryOther
	CategoryUnknown // file found in storage without metadata
)

// UnknownFieldName tags files listed straight from storage
const UnknownFieldName = "unknown"

var categoryKeys = map[string]CategoryKind{
	"w2":                 CategoryW2,
	"driversLicense":     CategoryDriversLicense,
	"socialSecurityCard": CategorySocialSecurityCard,
	"ssnCard":            CategorySocialSecurityCard,
	"form1095":           CategoryForm1095,
	"form1099":           CategoryForm1099,
	"form1099NEC":        CategoryForm1099NEC,
	"form1098":           CategoryForm1098,
	"form1098T":          CategoryForm1098T,
	"form1098E":          CategoryForm1098E,
	"k1":                 CategoryK1,
	"voidedCheck":        CategoryVoidedCheck,
	"other":              CategoryOther,
	UnknownFieldName:     CategoryUnknown,
}

var categoryLabels = map[CategoryKind]string{
	CategoryW2:                 "W2 - Payroll Document",
	CategoryDriversLicense:     "Driver's License",
	CategorySocialSecurityCard: "Social Security Card",
	CategoryForm1095:           "1095 - Health Coverage",
	CategoryForm1099:           "1099 Form",
	CategoryForm1099NEC:        "1099 NEC - Miscellaneous Income",
	CategoryForm1098:           "1098 - Mortgage Interest",
	CategoryForm1098T:          "1098-T - Tuition Statement",
	CategoryForm1098E:          "1098-E - Student Loan Interest",
	CategoryK1:                 "K1 Form - LLC/Partnership",
	CategoryVoidedCheck:        "Bank Info (Voided Check)",
	CategoryOther:              "Other Documents",
	CategoryUnknown:            "Document",
}

// Category is a document category parsed from a form field name.
// The zero value is an unrecognized category with an empty key.
type Category struct {
	kind CategoryKind
	key  string
}

// ParseCategory maps a form field name to its category. Field names outside
// the known set yield CategoryUnrecognized and keep the raw key.
func ParseCategory(key string) Category {
	return Category{kind: categoryKeys[key], key: key}
}

// Kind returns the category variant
func (c Category) Kind() CategoryKind { return c.kind }

// Key returns the form field name the category was parsed from
func (c Category) Key() string { return c.key }

// Known reports whether the field name is one of the portal's categories
func (c Category) Known() bool { return c.kind != CategoryUnrecognized }

// Label is the human readable name; unrecognized keys display as-is
func (c Category) Label() string {
	if label, ok := categoryLabels[c.kind]; ok {
		return label
	}
	return c.key
}

func (c Category) String() string { return c.Label() }

// MarshalText keeps the raw field name on the wire
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.key), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	*c = ParseCategory(string(text))
	return nil
}
