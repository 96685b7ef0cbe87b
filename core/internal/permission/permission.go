// Package permission is the Permission Engine: it computes the USING
// (visibility) and CHECK (new-row) predicates from the catalog's
// policies and appends them to the IR, gates column/row privileges,
// and enforces the safe-function allow-list — spec.md §4.3. Grounded
// on original_source/subzero-core/src/permissions.rs
// (`insert_policy_conditions`, `check_privileges`,
// `check_safe_functions`), generalized to the permissive/restrictive
// OR/AND split spec.md §4.3 specifies explicitly (the Rust source
// folds both into one OR group; this Go port follows the spec text,
// which is the more complete description of PostgreSQL row-security
// semantics).
package permission

import (
	"github.com/hbcbh1999/subzero-go/core/internal/apperr"
	"github.com/hbcbh1999/subzero-go/core/internal/ir"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

// Apply walks q (and every sub-select) inserting USING/CHECK policy
// conditions and gating privileges for role against cat. When
// cat.UseInternalPermissions is false, every check is skipped — the
// database enforces its own grants/policies (spec.md §4.3 "native
// policies" mode).
func Apply(q *ir.Query, cat *schema.Catalog, role schema.Role, safeFunctions map[string]bool) error {
	if !cat.UseInternalPermissions {
		return nil
	}
	if err := checkSafeFunctions(q, safeFunctions); err != nil {
		return err
	}
	return applyNode(q, cat, role)
}

// applyNode gates privileges and attaches USING/CHECK predicates for one
// node, then recurses into its embedded sub-selects. RETURNING-bearing
// mutations additionally layer Select policies on top of their own
// action's policies, since a mutation's RETURNING clause reads back rows
// the same way a SELECT would.
func applyNode(q *ir.Query, cat *schema.Catalog, role schema.Role) error {
	target := targetQi(q)
	obj, ok := cat.GetObject(target.Schema, target.Name)
	if !ok {
		return apperr.UnknownRelation(target.Name)
	}

	action := actionFor(q)
	if err := gatePrivileges(q, cat, role, action); err != nil {
		return err
	}

	usingSources := []schema.Action{action}
	applySelectToo := q.IsMutation() && len(q.Returning) > 0
	if applySelectToo {
		usingSources = []schema.Action{schema.ActionSelect, action}
	}

	usingCond := buildUsing(obj, role, usingSources)
	if usingCond != nil {
		appendWhere(q, *usingCond)
	}

	if q.Kind == ir.NodeInsert || q.Kind == ir.NodeUpdate {
		checkSources := []schema.Action{action}
		checkCond := buildCheck(obj, role, checkSources)
		if checkCond != nil {
			appendCheck(q, *checkCond)
		}
		if applySelectToo {
			selectCheck := buildCheck(obj, role, []schema.Action{schema.ActionSelect})
			if selectCheck != nil {
				appendCheck(q, *selectCheck)
			}
		}
		if q.Kind == ir.NodeInsert && len(q.OnConflict) > 0 && q.MergeDuplicates {
			updateCheck := buildCheck(obj, role, []schema.Action{schema.ActionUpdate})
			if updateCheck != nil {
				appendCheck(q, *updateCheck)
			}
		}
	}

	for i := range q.SubSelects {
		if err := applyNode(q.SubSelects[i].Query, cat, role); err != nil {
			return err
		}
	}
	for i := range q.Select {
		if q.Select[i].Kind == ir.ItemSubSelect {
			if err := applyNode(q.Select[i].SubSelect.Query, cat, role); err != nil {
				return err
			}
		}
	}
	return nil
}

// targetQi returns the Qi naming the object privileges/policies are
// checked against: FuncName for a function call (Qi is unused on that
// node kind), otherwise Qi itself.
func targetQi(q *ir.Query) schema.Qi {
	if q.Kind == ir.NodeFunctionCall {
		return q.FuncName
	}
	return q.Qi
}

func actionFor(q *ir.Query) schema.Action {
	switch q.Kind {
	case ir.NodeInsert:
		return schema.ActionInsert
	case ir.NodeUpdate:
		return schema.ActionUpdate
	case ir.NodeDelete:
		return schema.ActionDelete
	case ir.NodeFunctionCall:
		return schema.ActionExecute
	default:
		return schema.ActionSelect
	}
}

// buildUsing implements spec.md §4.3 "Security quals (USING)": default
// deny when no permissive policy applies, else restrictive USING
// conjuncts AND-combined with a single Or-group over the permissive
// USING conjuncts.
func buildUsing(obj *schema.Object, role schema.Role, actions []schema.Action) *value.Condition {
	policies := obj.PoliciesFor(role, actions...)
	return combinePolicies(policies, func(p schema.Policy) []value.Condition { return p.Using })
}

// buildCheck implements spec.md §4.3 "With-check (CHECK)": same
// permissive/restrictive split, preferring each policy's Check over
// its Using when Check is absent.
func buildCheck(obj *schema.Object, role schema.Role, actions []schema.Action) *value.Condition {
	policies := obj.PoliciesFor(role, actions...)
	return combinePolicies(policies, func(p schema.Policy) []value.Condition {
		if p.HasCheck() {
			return p.Check
		}
		return p.Using
	})
}

func combinePolicies(policies []schema.Policy, pick func(schema.Policy) []value.Condition) *value.Condition {
	var restrictive, permissive []value.Condition
	for _, p := range policies {
		conds := pick(p)
		if conds == nil {
			continue
		}
		if p.Restrictive {
			restrictive = append(restrictive, conds...)
		} else {
			permissive = append(permissive, conds...)
		}
	}

	if len(permissive) == 0 {
		out := value.Group(false, value.ConditionTree{Operator: value.And, Conditions: schema.DenyAllPolicy().Using})
		return &out
	}

	orGroup := value.Group(false, value.ConditionTree{Operator: value.Or, Conditions: value.DedupConditions(permissive)})
	all := append(append([]value.Condition(nil), value.DedupConditions(restrictive)...), orGroup)
	combined := value.Group(false, value.ConditionTree{Operator: value.And, Conditions: all})
	return &combined
}

func appendWhere(q *ir.Query, cond value.Condition) {
	if q.Where == nil {
		q.Where = &value.ConditionTree{Operator: value.And, Conditions: []value.Condition{cond}}
		return
	}
	q.Where.Conditions = value.DedupConditions(append(q.Where.Conditions, cond))
}

// appendCheck stores the with-check predicate in the Insert/Update
// node's Check list, kept separate from Where so the Formatter never
// conflates a visibility qual with a new-row qual.
func appendCheck(q *ir.Query, cond value.Condition) {
	q.Check = append(q.Check, cond)
	q.Check = value.DedupConditions(q.Check)
}

// gatePrivileges checks the action-level grant for q's node kind —
// against the request's actual column list for Insert/Update
// (`q.Columns`, populated by the URL Parser's body normalization) —
// then the select-privilege grant against whatever columns will
// actually be read back: the RETURNING set for a mutation/function
// call that has one, or the plain projection otherwise.
func gatePrivileges(q *ir.Query, cat *schema.Catalog, role schema.Role, action schema.Action) error {
	target := targetQi(q)
	switch q.Kind {
	case ir.NodeFunctionCall:
		if err := cat.HasExecutePrivileges(role, target.Schema, target.Name); err != nil {
			return apperr.PermissionDenied(err.Error())
		}
	case ir.NodeInsert:
		if err := cat.HasInsertPrivileges(role, target.Schema, target.Name, writeColumns(q.Columns)); err != nil {
			return apperr.PermissionDenied(err.Error())
		}
	case ir.NodeUpdate:
		if err := cat.HasUpdatePrivileges(role, target.Schema, target.Name, writeColumns(q.Columns)); err != nil {
			return apperr.PermissionDenied(err.Error())
		}
	case ir.NodeDelete:
		if err := cat.HasDeletePrivileges(role, target.Schema, target.Name); err != nil {
			return apperr.PermissionDenied(err.Error())
		}
	}

	cols := selectColumns(q.Select)
	if q.IsMutation() || q.Kind == ir.NodeFunctionCall {
		if len(q.Returning) > 0 {
			cols = schema.SpecificColumns(q.Returning)
		} else {
			cols = schema.SpecificColumns(nil)
		}
	}
	if err := cat.HasSelectPrivileges(role, target.Schema, target.Name, cols); err != nil {
		return apperr.PermissionDenied(err.Error())
	}
	return nil
}

// writeColumns treats an empty request column list (no body keys at
// all, e.g. a DEFAULT VALUES-style insert) as "no specific columns to
// check" rather than "every column", since ColumnSet.Contains with an
// empty want-list is vacuously true either way.
func writeColumns(cols []string) schema.ColumnSet {
	return schema.SpecificColumns(cols)
}

// selectColumns mirrors permissions.rs's get_select_columns: Star
// propagates to "all columns"; otherwise the field/function names
// referenced directly in the projection (sub-selects are checked
// independently when the recursion reaches them).
func selectColumns(items []ir.SelectItem) schema.ColumnSet {
	var cols []string
	for _, item := range items {
		switch item.Kind {
		case ir.ItemStar:
			return schema.AllColumns()
		case ir.ItemSimple, ir.ItemFunc:
			cols = append(cols, item.Field.Name)
			for _, p := range item.Partitions {
				cols = append(cols, p.Name)
			}
			for _, o := range item.Orders {
				cols = append(cols, o.Field.Name)
			}
		}
	}
	return schema.SpecificColumns(cols)
}

// checkSafeFunctions enforces spec.md §4.3 "Function safety": every
// function referenced in a select item (FuncName select items only;
// nested FunctionParam::Func forms are out of scope for this IR, which
// does not model nested function arguments as a distinct node type)
// must appear in safeFunctions.
func checkSafeFunctions(q *ir.Query, safeFunctions map[string]bool) error {
	if safeFunctions == nil {
		return nil
	}
	var walkErr error
	q.Walk(func(n *ir.Query) {
		if walkErr != nil {
			return
		}
		for _, item := range n.Select {
			if item.Kind == ir.ItemFunc && !safeFunctions[item.FuncName] {
				walkErr = apperr.ParseRequest("Unsafe functions called", "calling: '"+item.FuncName+"' is not allowed")
				return
			}
		}
	})
	return walkErr
}
