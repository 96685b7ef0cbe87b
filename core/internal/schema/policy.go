package schema

import "github.com/hbcbh1999/subzero-go/core/internal/value"

// Policy is a declarative row-security predicate scoped to a (role,
// action) pair via Permissions.Policies' PolicyKey, matching spec.md §3:
//
//	Policy { restrictive: bool, using: optional list<Condition>, check: optional list<Condition> }
//
// A permissive policy (Restrictive == false) contributes to an OR group;
// a restrictive one is AND-combined with everything else, matching
// PostgreSQL row-security semantics (spec.md GLOSSARY "Policy").
type Policy struct {
	Restrictive bool
	Using       []value.Condition // nil means "not applicable", not "no predicate"
	Check       []value.Condition
}

// HasUsing reports whether the policy defines a USING clause.
func (p Policy) HasUsing() bool { return p.Using != nil }

// HasCheck reports whether the policy defines a WITH CHECK clause.
func (p Policy) HasCheck() bool { return p.Check != nil }

// DenyAllPolicy is the default-deny fallback subzero-core/src/permissions.rs
// substitutes when no permissive policy exists for a (role, action) pair:
// both USING and CHECK become `false`.
func DenyAllPolicy() Policy {
	return Policy{
		Restrictive: false,
		Using:       []value.Condition{value.Raw("false")},
		Check:       []value.Condition{value.Raw("false")},
	}
}
