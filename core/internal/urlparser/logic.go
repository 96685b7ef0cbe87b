package urlparser

import (
	"strings"

	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

// parseLogicValue parses one `and`/`or`/`not.and`/`not.or` query-string
// entry (root-level or under a tree path) into a Group Condition,
// spec.md §4.1 "logic_tree_path".
func parseLogicValue(key, raw string) (value.Condition, error) {
	negate := false
	leaf := key
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		leaf = key[idx+1:]
	}
	if strings.HasSuffix(key, "not.and") || strings.HasSuffix(key, "not.or") {
		negate = true
		leaf = strings.TrimPrefix(leaf, "not.")
	}
	op := value.And
	if leaf == "or" {
		op = value.Or
	}
	tree, err := parseLogicGroupValue(raw)
	if err != nil {
		return value.Condition{}, err
	}
	tree.Operator = op
	return value.Group(negate, tree), nil
}

// parseLogicGroupValue parses the parenthesized comma list of logic
// conditions, e.g. `(id.eq.11,id.eq.12,and(a.eq.1,b.eq.2))`.
func parseLogicGroupValue(raw string) (value.ConditionTree, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	items := splitTopLevel(s, ',')

	var conds []value.Condition
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		cond, err := parseLogicItem(item)
		if err != nil {
			return value.ConditionTree{}, err
		}
		conds = append(conds, cond)
	}
	return value.ConditionTree{Conditions: conds}, nil
}

// parseLogicItem parses one element of a logic-tree list: either a
// nested `and(...)`/`or(...)`/`not.and(...)`/`not.or(...)` group, or a
// simple `field.op.value` condition (optionally `not.field.op.value`).
func parseLogicItem(item string) (value.Condition, error) {
	negate := false
	s := item
	if strings.HasPrefix(s, "not.") {
		negate = true
		s = s[len("not."):]
	}
	if p := strings.Index(s, "("); p >= 0 && strings.HasSuffix(s, ")") {
		head := s[:p]
		if head == "and" || head == "or" {
			inner, err := parseLogicGroupValue(s[p:])
			if err != nil {
				return value.Condition{}, err
			}
			op := value.And
			if head == "or" {
				op = value.Or
			}
			inner.Operator = op
			return value.Group(negate, inner), nil
		}
	}

	first := strings.Index(s, ".")
	if first < 0 {
		return value.Condition{}, parseError("malformed logic condition", item, 0)
	}
	fname, opVal := s[:first], s[first+1:]
	f, err := parseField(fname)
	if err != nil {
		return value.Condition{}, err
	}
	filter, err := parseFilterValue(opVal)
	if err != nil {
		return value.Condition{}, err
	}
	return value.Single(f, filter, negate), nil
}
