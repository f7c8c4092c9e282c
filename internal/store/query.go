package store

import "strings"

// MatchKind selects the matching rule applied for one query parameter.
type MatchKind int

const (
	// MatchExact compares the stored string field for case-sensitive
	// equality. Used for ids, codes, and enum fields.
	MatchExact MatchKind = iota
	// MatchText matches case-insensitive substring containment against a
	// flat string field.
	MatchText
	// MatchBool matches a stored boolean against "true"/"false" values.
	MatchBool
	// MatchReference matches FHIR reference fields. A "Type/id" value must
	// match resource type and id; a bare id matches the id segment alone.
	MatchReference
	// MatchHumanName matches case-insensitive substring containment against
	// FHIR HumanName entries (family plus each given name).
	MatchHumanName
	// MatchIdentifier matches the value of any FHIR Identifier entry exactly.
	MatchIdentifier
	// MatchNestedID compares the "id" of an embedded object field, as used
	// by OpenLMIS nested references like a facility's geographicZone.
	MatchNestedID
)

// ParamSpec binds a query parameter name to a record field and a match rule.
type ParamSpec struct {
	Kind  MatchKind
	Field string
}

// FieldSpecs maps query parameter names to their matching rules for one
// resource type. Parameters without an entry never filter; the real
// OpenLMIS and FHIR gateways tolerate unsupported search parameters.
type FieldSpecs map[string]ParamSpec

// Filter returns the subsequence of records matching every query parameter
// (AND across parameter names), where a parameter with multiple values
// matches if any value does (OR within a parameter). Record order is
// preserved; with no recognized parameters the input is returned unchanged.
func Filter(records []Record, params map[string][]string, specs FieldSpecs) []Record {
	out := records
	for name, values := range params {
		spec, ok := specs[name]
		if !ok || len(values) == 0 {
			continue
		}
		kept := out[:0:0]
		for _, rec := range out {
			if matchAny(rec, spec, values) {
				kept = append(kept, rec)
			}
		}
		out = kept
	}
	return out
}

// Slice applies a stable count/offset window after filtering. A count <= 0
// means no limit; offsets beyond the end yield an empty slice.
func Slice(records []Record, count, offset int) []Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []Record{}
	}
	records = records[offset:]
	if count > 0 && count < len(records) {
		records = records[:count]
	}
	return records
}

func matchAny(rec Record, spec ParamSpec, values []string) bool {
	for _, v := range values {
		if matchOne(rec, spec, v) {
			return true
		}
	}
	return false
}

func matchOne(rec Record, spec ParamSpec, value string) bool {
	field := rec[spec.Field]
	switch spec.Kind {
	case MatchExact:
		s, ok := field.(string)
		return ok && s == value
	case MatchText:
		s, ok := field.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(value))
	case MatchBool:
		b, ok := field.(bool)
		if !ok {
			return false
		}
		return b == strings.EqualFold(value, "true")
	case MatchReference:
		return matchReference(field, value)
	case MatchHumanName:
		return matchHumanName(field, value)
	case MatchIdentifier:
		return matchIdentifier(field, value)
	case MatchNestedID:
		obj, ok := field.(map[string]any)
		if !ok {
			return false
		}
		id, ok := obj["id"].(string)
		return ok && id == value
	}
	return false
}

// matchReference matches a stored reference field against the query value.
// The field may be a single {"reference": "Type/id"} object, a list of them,
// or a plain reference string.
func matchReference(field any, value string) bool {
	for _, ref := range referenceStrings(field) {
		if value == ref {
			return true
		}
		// Bare id: match the id segment regardless of resource type.
		if !strings.Contains(value, "/") {
			if _, id, ok := strings.Cut(ref, "/"); ok && id == value {
				return true
			}
		}
	}
	return false
}

func referenceStrings(field any) []string {
	switch v := field.(type) {
	case string:
		return []string{v}
	case map[string]any:
		if ref, ok := v["reference"].(string); ok {
			return []string{ref}
		}
	case []any:
		var refs []string
		for _, item := range v {
			refs = append(refs, referenceStrings(item)...)
		}
		return refs
	}
	return nil
}

// matchHumanName searches family and given names of each HumanName entry.
func matchHumanName(field any, value string) bool {
	names, ok := field.([]any)
	if !ok {
		return false
	}
	needle := strings.ToLower(value)
	for _, n := range names {
		name, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if family, ok := name["family"].(string); ok &&
			strings.Contains(strings.ToLower(family), needle) {
			return true
		}
		if given, ok := name["given"].([]any); ok {
			for _, g := range given {
				if s, ok := g.(string); ok &&
					strings.Contains(strings.ToLower(s), needle) {
					return true
				}
			}
		}
	}
	return false
}

func matchIdentifier(field any, value string) bool {
	idents, ok := field.([]any)
	if !ok {
		return false
	}
	for _, i := range idents {
		ident, ok := i.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := ident["value"].(string); ok && v == value {
			return true
		}
	}
	return false
}
