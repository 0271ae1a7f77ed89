package columnmapping

import "strings"

// Entry lists the header synonyms recognised for one field.
type Entry struct {
	Field   Field
	Aliases []string
}

// AliasTable is an immutable header synonym table. Entries keep their
// declaration order, which is the matching priority.
type AliasTable struct {
	order   []Field
	aliases map[Field]map[string]struct{}
}

// IsZero reports whether t was never built with NewAliasTable.
func (t AliasTable) IsZero() bool {
	return t.aliases == nil
}

func NewAliasTable(entries ...Entry) AliasTable {
	t := AliasTable{aliases: make(map[Field]map[string]struct{}, len(entries))}
	for _, e := range entries {
		set, ok := t.aliases[e.Field]
		if !ok {
			set = make(map[string]struct{}, len(e.Aliases))
			t.aliases[e.Field] = set
			t.order = append(t.order, e.Field)
		}
		for _, a := range e.Aliases {
			if n := normalize(a); n != "" {
				set[n] = struct{}{}
			}
		}
	}
	return t
}

func DefaultAliases() AliasTable {
	return NewAliasTable(
		Entry{FirstName, []string{"first name", "firstname", "first", "given name", "givenname"}},
		Entry{LastName, []string{"last name", "lastname", "last", "surname", "family name", "familyname"}},
		Entry{Email, []string{"email", "e-mail", "email address", "emailaddress"}},
		Entry{Phone, []string{"phone", "telephone", "mobile", "cell", "phone number", "phonenumber"}},
		Entry{Company, []string{"company", "organization", "org", "business", "company name", "companyname"}},
		Entry{Notes, []string{"notes", "note", "comments", "comment", "description"}},
	)
}

// WithAliases returns a copy of t with extra synonyms for f. A field new to
// the table is appended at the lowest priority.
func (t AliasTable) WithAliases(f Field, aliases ...string) AliasTable {
	entries := make([]Entry, 0, len(t.order)+1)
	for _, field := range t.order {
		entries = append(entries, Entry{Field: field, Aliases: t.list(field)})
	}
	entries = append(entries, Entry{Field: f, Aliases: aliases})
	return NewAliasTable(entries...)
}

func (t AliasTable) list(f Field) []string {
	out := make([]string, 0, len(t.aliases[f]))
	for a := range t.aliases[f] {
		out = append(out, a)
	}
	return out
}

func (t AliasTable) Matches(f Field, header string) bool {
	_, ok := t.aliases[f][normalize(header)]
	return ok
}

// Suggest maps each header to the first field, in priority order, whose
// aliases contain it and which no earlier header has claimed. The result
// never maps two headers to the same field.
func (t AliasTable) Suggest(headers []string) Mapping {
	out := make(Mapping, len(headers))
	claimed := make(map[Field]bool, len(t.order))
	for _, header := range headers {
		if _, seen := out[header]; seen {
			continue
		}
		n := normalize(header)
		if n == "" {
			continue
		}
		for _, f := range t.order {
			if claimed[f] {
				continue
			}
			if _, ok := t.aliases[f][n]; ok {
				out[header] = f
				claimed[f] = true
				break
			}
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
