package columnmapping

import (
	"fmt"
	"sort"
)

// Mapping assigns spreadsheet headers to canonical fields. Headers absent
// from the mapping are ignored during import.
type Mapping map[string]Field

// FromStrings converts a wire mapping. Empty targets mean "unmapped" and are
// dropped; unknown targets are reported per header.
func FromStrings(raw map[string]string) (Mapping, map[string]string) {
	m := make(Mapping, len(raw))
	var problems map[string]string
	for header, target := range raw {
		if target == "" {
			continue
		}
		f, ok := ParseField(target)
		if !ok {
			if problems == nil {
				problems = map[string]string{}
			}
			problems[header] = fmt.Sprintf("unknown field %q", target)
			continue
		}
		m[header] = f
	}
	return m, problems
}

func (m Mapping) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for header, f := range m {
		out[header] = string(f)
	}
	return out
}

// HeaderFor returns the header mapped to f, picking the lexically first when
// a caller supplied mapping targets f more than once.
func (m Mapping) HeaderFor(f Field) (string, bool) {
	headers := make([]string, 0, 1)
	for header, target := range m {
		if target == f {
			headers = append(headers, header)
		}
	}
	if len(headers) == 0 {
		return "", false
	}
	sort.Strings(headers)
	return headers[0], true
}

func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
