// Package rule defines the tuple-store Rule entity backing the policy
// engine. Rules live in a generic 7-column table (ptype, v0..v6) so the
// schema stays uniform across policy and grouping rules.
package rule

// Type discriminates the two rule shapes held in the tuple store.
type Type string

const (
	// TypePolicy marks a permission rule:
	// (role, domain, resource, action, effect, condition).
	TypePolicy Type = "p"

	// TypeGrouping marks a role-membership rule: (user, role, domain).
	TypeGrouping Type = "g"
)

// Rule is a single row of the tuple store. The meaning of V0..V6 depends
// on PType:
//
//	p: V0=role  V1=domain  V2=resource  V3=action  V4=effect  V5=condition
//	g: V0=user  V1=role    V2=domain
//
// Unused slots are empty strings, never NULL, so equality and uniqueness
// stay trivial. Rules are never mutated in place; changes are
// delete+insert pairs.
type Rule struct {
	PType Type   `json:"ptype" db:"ptype"`
	V0    string `json:"v0" db:"v0"`
	V1    string `json:"v1" db:"v1"`
	V2    string `json:"v2" db:"v2"`
	V3    string `json:"v3" db:"v3"`
	V4    string `json:"v4" db:"v4"`
	V5    string `json:"v5" db:"v5"`
	V6    string `json:"v6" db:"v6"`
}

// Values returns V0..V6 as a slice, for field-index filtering.
func (r *Rule) Values() []string {
	return []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5, r.V6}
}

// Equal reports whether two rules are identical in every column.
func (r *Rule) Equal(o *Rule) bool {
	return r.PType == o.PType &&
		r.V0 == o.V0 && r.V1 == o.V1 && r.V2 == o.V2 &&
		r.V3 == o.V3 && r.V4 == o.V4 && r.V5 == o.V5 && r.V6 == o.V6
}

// Policy builds a policy rule tuple.
func Policy(role, domain, resource, action, effect, condition string) *Rule {
	return &Rule{
		PType: TypePolicy,
		V0:    role,
		V1:    domain,
		V2:    resource,
		V3:    action,
		V4:    effect,
		V5:    condition,
	}
}

// Grouping builds a role-membership rule tuple.
func Grouping(user, role, domain string) *Rule {
	return &Rule{
		PType: TypeGrouping,
		V0:    user,
		V1:    role,
		V2:    domain,
	}
}

// Filter selects rules by type and by exact match on any subset of the
// value columns. A nil field matches anything; a pointer to the empty
// string matches only the empty column.
type Filter struct {
	PType Type
	V0    *string
	V1    *string
	V2    *string
	V3    *string
	V4    *string
	V5    *string
	V6    *string
}

// Fields returns the filter's value constraints indexed by column.
func (f *Filter) Fields() [7]*string {
	return [7]*string{f.V0, f.V1, f.V2, f.V3, f.V4, f.V5, f.V6}
}

// Matches reports whether r satisfies every constraint of the filter.
func (f *Filter) Matches(r *Rule) bool {
	if f.PType != "" && r.PType != f.PType {
		return false
	}
	values := r.Values()
	for i, want := range f.Fields() {
		if want != nil && values[i] != *want {
			return false
		}
	}
	return true
}

// FieldValue returns a pointer suitable for a Filter field. The empty
// string is a real constraint here, unlike the nil "match anything".
func FieldValue(s string) *string { return &s }
