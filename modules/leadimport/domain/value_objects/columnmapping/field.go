package columnmapping

// Field is a canonical contact attribute spreadsheet headers map onto.
type Field string

const (
	FirstName Field = "firstName"
	LastName  Field = "lastName"
	Email     Field = "email"
	Phone     Field = "phone"
	Company   Field = "company"
	Notes     Field = "notes"
)

// Fields lists canonical fields in matching priority order.
var Fields = []Field{FirstName, LastName, Email, Phone, Company, Notes}

func (f Field) String() string {
	return string(f)
}

func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}
