// Package urlparser is the URL Parser: it turns the HTTP request surface
// (path tail, query-string pairs, headers, body) into the initial IR
// Query for one request, before the Relational Resolver or Permission
// Engine have touched it — spec.md §4.1. Grounded on
// original_source/src/api.rs's request grammar and
// original_source/lib/src/frontend/postgrest.rs's method dispatch.
package urlparser

import (
	"strconv"
	"strings"

	"github.com/hbcbh1999/subzero-go/core/internal/apperr"
	"github.com/hbcbh1999/subzero-go/core/internal/ir"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

// maxDepth bounds embedded sub-select nesting, spec.md §4.1 "Depth guard".
const maxDepth = 10

// selfJoinSuffixes is the fixed alias suffix table for self-joins,
// spec.md §4.1 / §4.2.
var selfJoinSuffixes = [...]string{"_0", "_1", "_2", "_3", "_4", "_5", "_6", "_7", "_8", "_9"}

// KV is one ordered query-string pair. Duplicates and order are
// preserved: spec.md §3 "query-string keys are processed in the order
// the HTTP transport delivers".
type KV struct {
	Key   string
	Value string
}

// Method is the subset of HTTP methods the parser dispatches on.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPatch  Method = "PATCH"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// Preferences is the decoded `Prefer` header, spec.md §4.1.
type Preferences struct {
	Resolution string // "merge-duplicates" | "ignore-duplicates" | ""
	Return     string // "representation" | "minimal" | "headers-only" | ""
	Count      string // "exact" | "planned" | "estimated" | ""
}

// Request is everything the URL Parser needs, decoupled from any
// concrete HTTP library — the host (serv) is responsible for filling
// this in from its transport of choice.
type Request struct {
	Schema      string
	Root        string
	Method      Method
	Params      []KV // query string, order-preserved, duplicates preserved
	Body        []byte
	Accept      string
	ContentType string // drives spec.md §4.1 "Body" normalization; empty defaults to JSON
	Prefer      string
	MaxRows     *int64 // nil means unbounded
}

// Parse builds the initial Query for req against cat, without
// resolving joins or applying permissions — those are the Relational
// Resolver's and Permission Engine's jobs.
func Parse(req Request, cat *schema.Catalog) (*ir.Query, Preferences, error) {
	prefs := parsePreferences(req.Prefer)

	schemaName := req.Schema
	obj, isFunc := cat.GetObject(schemaName, req.Root)
	_ = obj
	isFunc = isFunc && obj.Kind == schema.KindFunction

	qi := schema.Qi{Schema: schemaName, Name: req.Root}

	grouped, err := groupParams(req.Params)
	if err != nil {
		return nil, prefs, err
	}

	var q *ir.Query
	switch req.Method {
	case MethodGet:
		if isFunc {
			q, err = parseFunctionCall(qi, grouped, nil, prefs)
		} else {
			q = ir.NewSelect(qi)
			err = applyReadClauses(q, grouped)
		}
	case MethodPost:
		if isFunc {
			q, err = parseFunctionCall(qi, grouped, req.Body, prefs)
		} else {
			q, err = parseInsert(qi, grouped, req.Body, req.ContentType, false)
		}
	case MethodPut:
		q, err = parseInsert(qi, grouped, req.Body, req.ContentType, true)
	case MethodPatch:
		q, err = parseUpdate(qi, grouped, req.Body, req.ContentType)
	case MethodDelete:
		q = ir.NewDelete(qi)
		err = applyMutationFilters(q, grouped)
	default:
		err = parseError("unsupported method", "", 0)
	}
	if err != nil {
		return nil, prefs, err
	}

	if err := applySelect(q, grouped, 0); err != nil {
		return nil, prefs, err
	}

	if req.MaxRows != nil {
		clampLimit(q, *req.MaxRows)
	}

	return q, prefs, nil
}

func clampLimit(q *ir.Query, maxRows int64) {
	if q.Kind != ir.NodeSelect && q.Kind != ir.NodeFunctionCall {
		return
	}
	if q.Limit == nil || *q.Limit > maxRows {
		v := maxRows
		q.Limit = &v
	}
	for i := range q.SubSelects {
		clampLimit(q.SubSelects[i].Query, maxRows)
	}
}

func parsePreferences(header string) Preferences {
	var p Preferences
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		switch key {
		case "resolution":
			if val == "merge-duplicates" || val == "ignore-duplicates" {
				p.Resolution = val
			}
		case "return":
			if val == "representation" || val == "minimal" || val == "headers-only" {
				p.Return = val
			}
		case "count":
			if val == "exact" || val == "planned" || val == "estimated" {
				p.Count = val
			}
		}
	}
	return p
}

// groupedParams buckets query-string pairs by their dotted tree path
// prefix ("" for root), preserving per-path order, so each node's
// select/filters/order/etc. can be parsed against only the keys that
// target it.
type groupedParams struct {
	root     []KV
	children map[string][]KV // path -> pairs whose path equals it
	order    []string        // first-seen order of child paths
}

func groupParams(params []KV) (*groupedParams, error) {
	g := &groupedParams{children: map[string][]KV{}}
	for _, kv := range params {
		path, _ := splitTreePathKey(kv.Key)
		if path == "" {
			g.root = append(g.root, kv)
			continue
		}
		if _, ok := g.children[path]; !ok {
			g.order = append(g.order, path)
		}
		g.children[path] = append(g.children[path], kv)
	}
	return g, nil
}

// splitTreePathKey splits a key like "tasks.id" into ("tasks", "id") or
// "id" into ("", "id"). The suffix after the last dot is the field /
// reserved-word part; everything before is the tree path. A negated
// logic key keeps its "not." with the leaf: "tasks.not.or" splits into
// ("tasks", "not.or") and "not.or" into ("", "not.or").
func splitTreePathKey(key string) (path, leaf string) {
	for _, neg := range []string{"not.and", "not.or"} {
		if key == neg {
			return "", key
		}
		if strings.HasSuffix(key, "."+neg) {
			return key[:len(key)-len(neg)-1], neg
		}
	}
	idx := strings.LastIndex(key, ".")
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}

func applySelect(q *ir.Query, g *groupedParams, depth int) error {
	selectVal, ok := firstValue(g.root, "select")
	if !ok {
		selectVal = "*"
	}
	items, err := parseSelectList(selectVal, depth)
	if err != nil {
		return err
	}
	q.Select = items

	for i := range q.Select {
		item := &q.Select[i]
		if item.Kind != ir.ItemSubSelect {
			continue
		}
		sub := item.SubSelect
		path := sub.Alias
		if path == "" {
			path = sub.Query.Qi.Name
		}
		childGroup := childGroupFor(g, path)
		if err := applyReadClauses(sub.Query, childGroup); err != nil {
			return err
		}
		if err := applySelect(sub.Query, childGroup, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// childGroupFor narrows g to the keys whose tree path starts with
// prefix, re-rooting them one level.
func childGroupFor(g *groupedParams, prefix string) *groupedParams {
	out := &groupedParams{children: map[string][]KV{}}
	out.root = g.children[prefix]
	for _, childPath := range g.order {
		if childPath == prefix || !strings.HasPrefix(childPath, prefix+".") {
			continue
		}
		rest := strings.TrimPrefix(childPath, prefix+".")
		if _, ok := out.children[rest]; !ok {
			out.order = append(out.order, rest)
		}
		out.children[rest] = g.children[childPath]
	}
	return out
}

func firstValue(kvs []KV, key string) (string, bool) {
	for _, kv := range kvs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

var reservedRootKeys = map[string]bool{
	"select": true, "columns": true, "on_conflict": true, "groupby": true,
	"order": true, "limit": true, "offset": true, "and": true, "or": true,
}

func isReservedLeaf(leaf string) bool {
	if reservedRootKeys[leaf] {
		return true
	}
	return leaf == "order" || leaf == "limit" || leaf == "offset"
}

// applyReadClauses parses order/limit/offset/groupby and the filter
// set (everything not reserved) for one node from its own kv bucket.
func applyReadClauses(q *ir.Query, g *groupedParams) error {
	if err := applyFilters(q, g.root); err != nil {
		return err
	}
	if v, ok := firstValue(g.root, "order"); ok {
		terms, err := parseOrder(v)
		if err != nil {
			return err
		}
		q.Order = terms
	}
	if v, ok := firstValue(g.root, "limit"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return parseError("invalid limit", "limit", 0)
		}
		q.Limit = &n
	}
	if v, ok := firstValue(g.root, "offset"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return parseError("invalid offset", "offset", 0)
		}
		q.Offset = &n
	}
	if v, ok := firstValue(g.root, "groupby"); ok {
		for _, col := range strings.Split(v, ",") {
			col = strings.TrimSpace(col)
			if col == "" {
				continue
			}
			f, err := parseField(col)
			if err != nil {
				return err
			}
			q.GroupBy = append(q.GroupBy, ir.GroupByTerm{Field: f})
		}
	}
	return nil
}

// applyMutationFilters applies only the root-level predicate keys,
// rejecting order/limit/offset which are not allowed on mutations
// (spec.md §7 LimitOffsetNotAllowed / OrderNotAllowed); PATCH and
// DELETE both go through this check.
func applyMutationFilters(q *ir.Query, g *groupedParams) error {
	for _, kv := range g.root {
		switch kv.Key {
		case "order":
			return apperr.OrderNotAllowed()
		case "limit", "offset":
			return apperr.LimitOffsetNotAllowed()
		}
	}
	return applyFilters(q, g.root)
}

func applyFilters(q *ir.Query, kvs []KV) error {
	var top []value.Condition
	for _, kv := range kvs {
		if isLogicKey(kv.Key) {
			cond, err := parseLogicValue(kv.Key, kv.Value)
			if err != nil {
				return err
			}
			top = append(top, cond)
			continue
		}
		leaf := kv.Key
		if idx := strings.LastIndex(kv.Key, "."); idx >= 0 {
			leaf = kv.Key[idx+1:]
		}
		if isReservedLeaf(leaf) || kv.Key == "select" || kv.Key == "columns" || kv.Key == "on_conflict" || kv.Key == "groupby" {
			continue
		}
		cond, err := parseFieldFilter(kv.Key, kv.Value)
		if err != nil {
			return err
		}
		top = append(top, cond)
	}
	if len(top) == 0 {
		return nil
	}
	tree := value.ConditionTree{Operator: value.And, Conditions: top}
	if q.Where == nil {
		q.Where = &tree
	} else {
		q.Where.Conditions = append(q.Where.Conditions, tree.Conditions...)
	}
	return nil
}

func isLogicKey(key string) bool {
	leaf := key
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		leaf = key[idx+1:]
	}
	return leaf == "and" || leaf == "or" || strings.HasSuffix(key, ".not.and") || strings.HasSuffix(key, ".not.or") || key == "not.and" || key == "not.or"
}

func parseFieldFilter(key, val string) (value.Condition, error) {
	_, leaf := splitTreePathKey(key)
	negate := false
	rest := val
	if strings.HasPrefix(rest, "not.") {
		negate = true
	}
	f, err := parseField(leaf)
	if err != nil {
		return value.Condition{}, err
	}
	filter, err := parseFilterValue(val)
	if err != nil {
		return value.Condition{}, err
	}
	return value.Single(f, filter, negate), nil
}
