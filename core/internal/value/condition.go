package value

// LogicOperator is the boolean combinator of a ConditionTree.
type LogicOperator int

const (
	And LogicOperator = iota
	Or
)

// ConditionKind discriminates the Condition variants from spec.md §3.
type ConditionKind int

const (
	CondSingle ConditionKind = iota
	CondGroup
	CondForeign
	CondRaw
)

// Condition is a node in the WHERE predicate tree. It mirrors subzero's
// `Condition` enum (src/api.rs), with `Foreign` and `Raw` added per
// spec.md (used by the resolver's join-predicate threading and the
// permission engine's default-deny respectively).
type Condition struct {
	Kind   ConditionKind
	Negate bool

	// CondSingle
	Field  Field
	Filter Filter

	// CondGroup
	Tree ConditionTree

	// CondForeign
	LeftQi, RightQi       Qi
	LeftField, RightField Field

	// CondRaw
	SQL string
}

// ConditionTree is an ordered list of Conditions combined with one
// LogicOperator, matching spec.md §3.
type ConditionTree struct {
	Operator   LogicOperator
	Conditions []Condition
}

func Single(field Field, filter Filter, negate bool) Condition {
	return Condition{Kind: CondSingle, Field: field, Filter: filter, Negate: negate}
}

func Group(negate bool, tree ConditionTree) Condition {
	return Condition{Kind: CondGroup, Negate: negate, Tree: tree}
}

func Foreign(leftQi Qi, leftField Field, rightQi Qi, rightField Field) Condition {
	return Condition{Kind: CondForeign, LeftQi: leftQi, LeftField: leftField, RightQi: rightQi, RightField: rightField}
}

func Raw(sql string) Condition {
	return Condition{Kind: CondRaw, SQL: sql}
}

// Equal performs the structural-equality comparison the Permission
// Engine needs for de-duplication (spec.md §4.3 "De-duplication"). Go
// has no derived PartialEq so this is hand-rolled, matching the set of
// fields that participate in each variant.
func (c Condition) Equal(o Condition) bool {
	if c.Kind != o.Kind || c.Negate != o.Negate {
		return false
	}
	switch c.Kind {
	case CondSingle:
		return c.Field.equal(o.Field) && c.Filter.equal(o.Filter)
	case CondGroup:
		return c.Tree.Equal(o.Tree)
	case CondForeign:
		return c.LeftQi == o.LeftQi && c.RightQi == o.RightQi && c.LeftField.equal(o.LeftField) && c.RightField.equal(o.RightField)
	case CondRaw:
		return c.SQL == o.SQL
	}
	return false
}

func (t ConditionTree) Equal(o ConditionTree) bool {
	if t.Operator != o.Operator || len(t.Conditions) != len(o.Conditions) {
		return false
	}
	for i := range t.Conditions {
		if !t.Conditions[i].Equal(o.Conditions[i]) {
			return false
		}
	}
	return true
}

func (f Filter) equal(o Filter) bool {
	if f.Kind != o.Kind {
		return false
	}
	switch f.Kind {
	case FilterOp:
		return f.Op == o.Op && f.Val == o.Val
	case FilterIn:
		if f.List.Cast != o.List.Cast || len(f.List.Items) != len(o.List.Items) {
			return false
		}
		for i := range f.List.Items {
			if f.List.Items[i] != o.List.Items[i] {
				return false
			}
		}
		return true
	case FilterIs:
		return f.Tri == o.Tri
	case FilterFts:
		if f.FtsOp != o.FtsOp || f.Val != o.Val {
			return false
		}
		if (f.FtsLang == nil) != (o.FtsLang == nil) {
			return false
		}
		return f.FtsLang == nil || *f.FtsLang == *o.FtsLang
	case FilterCol:
		return f.ColQi == o.ColQi && f.ColField.equal(o.ColField)
	case FilterEnv:
		return f.Op == o.Op && f.Env == o.Env
	}
	return false
}

func (f Field) equal(o Field) bool {
	if f.Name != o.Name || len(f.JSONPath) != len(o.JSONPath) {
		return false
	}
	for i := range f.JSONPath {
		if f.JSONPath[i] != o.JSONPath[i] {
			return false
		}
	}
	return true
}

// DedupConditions removes structurally-equal duplicates while preserving
// the first occurrence's order, per spec.md §4.3.
func DedupConditions(conds []Condition) []Condition {
	out := make([]Condition, 0, len(conds))
	for _, c := range conds {
		dup := false
		for _, seen := range out {
			if seen.Equal(c) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}
