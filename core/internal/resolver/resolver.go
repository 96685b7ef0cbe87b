// Package resolver is the Relational Resolver: given a Catalog, it
// binds each SubSelect's Join (Parent/Child/Many), threads the join's
// predicates into the child node, assigns self-join aliases, computes
// mutation returning sets, and expands `*` against the role's granted
// columns — spec.md §4.2.
package resolver

import (
	"fmt"
	"sort"

	"github.com/hbcbh1999/subzero-go/core/internal/apperr"
	"github.com/hbcbh1999/subzero-go/core/internal/ir"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

// Resolve walks q and every embedded SubSelect, binding joins,
// threading predicates, computing returning sets and expanding stars,
// all relative to role's granted columns in cat.
func Resolve(q *ir.Query, cat *schema.Catalog, role schema.Role) error {
	return resolveNode(q, cat, role, 0)
}

func resolveNode(q *ir.Query, cat *schema.Catalog, role schema.Role, depth int) error {
	if err := expandStars(q, cat, role); err != nil {
		return err
	}
	for i := range q.Select {
		item := &q.Select[i]
		if item.Kind != ir.ItemSubSelect {
			continue
		}
		if err := resolveSubSelect(q, item.SubSelect, cat, role, depth+1); err != nil {
			return err
		}
	}
	if q.IsMutation() || q.Kind == ir.NodeFunctionCall {
		computeReturning(q)
	}
	return nil
}

func resolveSubSelect(parent *ir.Query, sub *ir.SubSelect, cat *schema.Catalog, role schema.Role, depth int) error {
	if depth > 10 {
		return apperr.ParseRequest("Maximum depth of 10 exceeded", sub.Alias)
	}
	origin := parent.Qi
	target := sub.Query.Qi.Name
	if sub.Query.Qi.Schema == "" {
		sub.Query.Qi.Schema = origin.Schema
	}

	join, err := bindJoin(cat, origin, target, sub.Hint)
	if err != nil {
		return err
	}
	sub.Join = join

	selfJoin := joinTable(join).Name == joinReferencedTable(join).Name
	if selfJoin {
		sub.Query.TableAlias = selfJoinAlias(depth)
	} else if join.Kind == ir.JoinParent && sub.Hint != "" && sub.Hint != join.FK.ReferencedTable.Name {
		sub.Query.Qi = join.FK.ReferencedTable
	}

	threadPredicates(effectiveQi(parent), sub, join)

	if join.Kind == ir.JoinMany {
		sub.Query.JoinTables = append(sub.Query.JoinTables, join.Junction)
	}

	return resolveNode(sub.Query, cat, role, depth)
}

func joinTable(j ir.Join) schema.Qi {
	switch j.Kind {
	case ir.JoinMany:
		return j.ChildFK.Table
	default:
		return j.FK.Table
	}
}

func joinReferencedTable(j ir.Join) schema.Qi {
	switch j.Kind {
	case ir.JoinMany:
		return j.ChildFK.ReferencedTable
	default:
		return j.FK.ReferencedTable
	}
}

var selfJoinSuffixes = [...]string{"_0", "_1", "_2", "_3", "_4", "_5", "_6", "_7", "_8", "_9"}

func selfJoinAlias(depth int) string {
	if depth < len(selfJoinSuffixes) {
		return selfJoinSuffixes[depth]
	}
	return fmt.Sprintf("_%d", depth)
}

// bindJoin picks the Join for origin -> target, optionally
// disambiguated by hint, per spec.md §4.2.
func bindJoin(cat *schema.Catalog, origin schema.Qi, target, hint string) (ir.Join, error) {
	if hint != "" {
		return bindJoinWithHint(cat, origin, target, hint)
	}
	return bindJoinWithoutHint(cat, origin, target)
}

func bindJoinWithoutHint(cat *schema.Catalog, origin schema.Qi, target string) (ir.Join, error) {
	if _, ok := cat.GetObject(origin.Schema, target); ok {
		childFKs := cat.ChildForeignKeys(origin.Schema, origin.Name, target)
		parentFKs := cat.ParentForeignKeys(origin.Schema, origin.Name, target)

		total := len(childFKs) + len(parentFKs)
		if total == 1 {
			if len(childFKs) == 1 {
				return ir.Join{Kind: ir.JoinChild, FK: childFKs[0]}, nil
			}
			return ir.Join{Kind: ir.JoinParent, FK: parentFKs[0]}, nil
		}
		if total == 0 {
			junctions := cat.JunctionCandidates(origin.Schema, origin.Name, target)
			if len(junctions) == 1 {
				j := junctions[0]
				fk1 := findFKTo(j, origin.Name)
				fk2 := findFKTo(j, target)
				return ir.Join{Kind: ir.JoinMany, Junction: j.Name, ParentFK: fk1, ChildFK: fk2}, nil
			}
			if len(junctions) == 0 {
				return ir.Join{}, apperr.NoRelBetween(origin.Name, target)
			}
			return ir.Join{}, ambiguous(origin.Name, target, junctionCandidateDetails(junctions))
		}
		return ir.Join{}, ambiguous(origin.Name, target, fkCandidateDetails(append(childFKs, parentFKs...)))
	}

	// target is not an object: try an FK name or single-column FK on origin.
	obj, ok := cat.GetObject(origin.Schema, origin.Name)
	if !ok {
		return ir.Join{}, apperr.UnknownRelation(origin.Name)
	}
	for _, fk := range obj.ForeignKeys {
		if fk.Name == target {
			return ir.Join{Kind: ir.JoinChild, FK: fk}, nil
		}
	}
	for _, fk := range obj.ForeignKeys {
		if len(fk.Columns) == 1 && fk.Columns[0] == target {
			return ir.Join{Kind: ir.JoinChild, FK: fk}, nil
		}
	}
	return ir.Join{}, apperr.NoRelBetween(origin.Name, target)
}

func bindJoinWithHint(cat *schema.Catalog, origin schema.Qi, target, hint string) (ir.Join, error) {
	targetObj, targetIsObject := cat.GetObject(origin.Schema, target)

	if targetIsObject {
		for _, fk := range targetObj.ForeignKeys {
			if fk.Name == hint && fk.ReferencedTable.Name == origin.Name {
				return ir.Join{Kind: ir.JoinParent, FK: fk}, nil
			}
		}
	}
	if originObj, ok := cat.GetObject(origin.Schema, origin.Name); ok {
		for _, fk := range originObj.ForeignKeys {
			if fk.Name == hint && fk.ReferencedTable.Name == target {
				return ir.Join{Kind: ir.JoinChild, FK: fk}, nil
			}
		}
	}
	if hintObj, ok := cat.GetObject(origin.Schema, hint); ok {
		fk1 := findFKTo(hintObj, origin.Name)
		fk2 := findFKTo(hintObj, target)
		if fk1.Name != "" && fk2.Name != "" {
			return ir.Join{Kind: ir.JoinMany, Junction: hintObj.Name, ParentFK: fk1, ChildFK: fk2}, nil
		}
	}

	// hint names a column shared by an FK connecting origin<->target.
	var candidates []ir.Join
	if originObj, ok := cat.GetObject(origin.Schema, origin.Name); ok {
		for _, fk := range originObj.ForeignKeys {
			if fk.ReferencedTable.Name == target && containsCol(fk.Columns, hint) {
				candidates = append(candidates, ir.Join{Kind: ir.JoinChild, FK: fk})
			}
		}
	}
	if targetIsObject {
		for _, fk := range targetObj.ForeignKeys {
			if fk.ReferencedTable.Name == origin.Name && containsCol(fk.Columns, hint) {
				candidates = append(candidates, ir.Join{Kind: ir.JoinParent, FK: fk})
			}
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	if len(candidates) == 0 {
		return ir.Join{}, apperr.NoRelBetween(origin.Name, target)
	}
	return ir.Join{}, ambiguous(origin.Name, target, "multiple matches for hint "+hint)
}

func containsCol(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

func findFKTo(obj *schema.Object, targetName string) schema.ForeignKey {
	for _, fk := range obj.ForeignKeys {
		if fk.ReferencedTable.Name == targetName {
			return fk
		}
	}
	return schema.ForeignKey{}
}

func ambiguous(origin, target, hint string) *apperr.Error {
	return apperr.AmbiguousRelBetween(origin, target, hint, nil)
}

func fkCandidateDetails(fks []schema.ForeignKey) string {
	var names []string
	for _, fk := range fks {
		names = append(names, fk.Name)
	}
	sort.Strings(names)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func junctionCandidateDetails(objs []*schema.Object) string {
	var names []string
	for _, o := range objs {
		names = append(names, o.Name.Name)
	}
	sort.Strings(names)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// effectiveQi returns the Qi a node's join predicates must reference:
// its TableAlias when set (a self-join occurrence), otherwise its real
// Qi, matching how the Formatter qualifies bare column references
// against whichever name actually appears in that node's FROM clause.
func effectiveQi(q *ir.Query) schema.Qi {
	if q.TableAlias != "" {
		return schema.Qi{Schema: q.Qi.Schema, Name: q.TableAlias}
	}
	return q.Qi
}

// threadPredicates appends the deferred join predicates to the child
// query's where_, spec.md §4.2 "Predicate threading".
func threadPredicates(parentQi schema.Qi, sub *ir.SubSelect, join ir.Join) {
	var conds []value.Condition
	switch join.Kind {
	case ir.JoinParent:
		for i, col := range join.FK.Columns {
			ref := join.FK.ReferencedColumns[i]
			conds = append(conds, value.Single(
				value.Field{Name: ref},
				value.NewColFilter(value.Qi{Schema: parentQi.Schema, Name: parentQi.Name}, value.Field{Name: col}),
				false,
			))
		}
	case ir.JoinChild:
		for i, col := range join.FK.Columns {
			ref := join.FK.ReferencedColumns[i]
			conds = append(conds, value.Single(
				value.Field{Name: col},
				value.NewColFilter(value.Qi{Schema: parentQi.Schema, Name: parentQi.Name}, value.Field{Name: ref}),
				false,
			))
		}
	case ir.JoinMany:
		for i, col := range join.ParentFK.Columns {
			ref := join.ParentFK.ReferencedColumns[i]
			conds = append(conds, value.Foreign(
				value.Qi{Schema: parentQi.Schema, Name: parentQi.Name}, value.Field{Name: ref},
				value.Qi{Schema: parentQi.Schema, Name: join.Junction.Name}, value.Field{Name: col},
			))
		}
		for i, col := range join.ChildFK.Columns {
			ref := join.ChildFK.ReferencedColumns[i]
			conds = append(conds, value.Single(
				value.Field{Name: ref},
				value.NewColFilter(value.Qi{Schema: parentQi.Schema, Name: join.Junction.Name}, value.Field{Name: col}),
				false,
			))
		}
	}
	if len(conds) == 0 {
		return
	}
	if sub.Query.Where == nil {
		sub.Query.Where = &value.ConditionTree{Operator: value.And, Conditions: conds}
	} else {
		sub.Query.Where.Conditions = append(sub.Query.Where.Conditions, conds...)
	}
}

// computeReturning computes the de-duplicated union of fields the
// mutation must emit so sub-select joins can match, spec.md §4.2
// "Returning sets".
func computeReturning(q *ir.Query) {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if name == "*" {
			out = []string{"*"}
			return
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, item := range q.Select {
		switch item.Kind {
		case ir.ItemStar:
			add("*")
		case ir.ItemSimple, ir.ItemFunc:
			add(item.Field.Name)
		case ir.ItemSubSelect:
			for _, col := range joinColumnsNeeded(item.SubSelect.Join) {
				add(col)
			}
		}
	}
	if len(out) == 1 && out[0] == "*" {
		q.Returning = []string{"*"}
		return
	}
	sort.Strings(out)
	q.Returning = out
}

func joinColumnsNeeded(j ir.Join) []string {
	switch j.Kind {
	case ir.JoinChild:
		return j.FK.ReferencedColumns
	case ir.JoinMany:
		// The parent side's own columns — the ones ParentFK references on
		// the mutated row — are what a re-join through the junction table
		// needs, not the junction-to-target FK.
		return j.ParentFK.ReferencedColumns
	case ir.JoinParent:
		return j.FK.Columns
	}
	return nil
}

// expandStars replaces Star select items with the role's permitted
// column set for Action::Select on q's relation, spec.md §4.2 "Star
// expansion". It also expands any "*" left in Returning.
func expandStars(q *ir.Query, cat *schema.Catalog, role schema.Role) error {
	cols := cat.GetColumnsWithPrivileges(role, schema.ActionSelect, q.Qi.Schema, q.Qi.Name)

	var expanded []ir.SelectItem
	for _, item := range q.Select {
		if item.Kind != ir.ItemStar {
			expanded = append(expanded, item)
			continue
		}
		for _, name := range sortedColumnNames(cols, cat, q.Qi) {
			expanded = append(expanded, ir.SelectItem{Kind: ir.ItemSimple, Field: value.Field{Name: name}})
		}
	}
	q.Select = expanded

	if len(q.Returning) == 1 && q.Returning[0] == "*" {
		q.Returning = sortedColumnNames(cols, cat, q.Qi)
	}
	return nil
}

func sortedColumnNames(cols schema.ColumnSet, cat *schema.Catalog, qi schema.Qi) []string {
	if cols.All {
		obj, ok := cat.GetObject(qi.Schema, qi.Name)
		if !ok {
			return nil
		}
		names := make([]string, 0, len(obj.Columns))
		for name := range obj.Columns {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}
	names := append([]string(nil), cols.Columns...)
	sort.Strings(names)
	return names
}
