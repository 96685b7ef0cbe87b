// Package ir is the recursive Query Tree the Relational Resolver builds
// and the SQL Formatter renders — spec.md §3 "IR (Query Tree)". It is a
// direct Go rendering of subzero's `Query`/`QueryNode` enum
// (original_source/src/api.rs), using the tagged-union-via-Kind
// discriminant pattern established in package value, since Go has no
// sum types.
package ir

import (
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

// NodeKind discriminates the QueryNode variants.
type NodeKind int

const (
	NodeSelect NodeKind = iota
	NodeInsert
	NodeUpdate
	NodeDelete
	NodeFunctionCall
)

// JoinKind discriminates how a SubSelect attaches to its parent, matching
// subzero's `Join` enum (Parent/Child/Many).
type JoinKind int

const (
	// JoinParent: the embedding (origin) table holds the foreign key
	// pointing at the embedded row (a to-one embed).
	JoinParent JoinKind = iota
	// JoinChild: the embedded table holds the foreign key pointing at
	// the embedding row (a to-many embed).
	JoinChild
	// JoinMany: a junction/many-to-many embed routed through a bridge table.
	JoinMany
)

// Join threads the foreign-key relationship a SubSelect is embedded
// through, resolved by the Relational Resolver from the Catalog.
type Join struct {
	Kind JoinKind

	// JoinParent / JoinChild
	FK schema.ForeignKey

	// JoinMany: two FKs chained through Junction.
	Junction schema.Qi
	ParentFK schema.ForeignKey
	ChildFK  schema.ForeignKey
}

// SelectItemKind discriminates SelectItem variants.
type SelectItemKind int

const (
	ItemStar SelectItemKind = iota
	ItemSimple
	ItemFunc
	ItemSubSelect
)

// SelectItem is one projected output column, matching subzero's
// `SelectItem` enum plus the embedded-resource form added as a fourth
// variant here (subzero nests embeds as a parallel `sub_selects` list;
// keeping them in SelectItem lets the formatter preserve projection
// order exactly as requested, matching spec.md's ordering invariant).
type SelectItem struct {
	Kind SelectItemKind

	// ItemSimple / ItemFunc
	Field    value.Field
	Alias    string // "" means no AS alias
	Cast     string // "" means no cast
	FuncName string // ItemFunc only, e.g. "count", "avg"

	// ItemFunc window modifiers: `fn(args)-p(field,...)-o(order_term,...)`.
	// Both nil means a plain (non-windowed) call.
	Partitions []value.Field
	Orders     []OrderTerm

	// ItemSubSelect
	SubSelect *SubSelect
}

// SubSelect is an embedded resource: a nested Query plus the Join that
// attaches it to its parent, matching subzero's `SubSelect { query, alias,
// hint, join }`.
type SubSelect struct {
	Query *Query
	Alias string
	Hint  string // optional relationship hint from the request, e.g. "films!director"
	Join  Join
}

// OrderDirection / OrderNulls mirror PostgREST's `order=col.asc.nullslast`.
type OrderDirection int

const (
	OrderAsc OrderDirection = iota
	OrderDesc
)

type OrderNulls int

const (
	NullsDefault OrderNulls = iota
	NullsFirst
	NullsLast
)

// OrderTerm is one element of an ORDER BY list.
type OrderTerm struct {
	Field     value.Field
	Direction OrderDirection
	Nulls     OrderNulls
}

// GroupByTerm is one element of a GROUP BY list, parsed by the URL
// Parser from the request's `groupby=` parameter; no grouping is
// inferred from aggregate select items.
type GroupByTerm struct {
	Field value.Field
}

// Query is the top-level node of the tree: one table/view/function
// target with the projection, filters, and mutation payload that apply
// to it, matching subzero's `Query { node: QueryNode, sub_selects }`
// flattened into a single struct since Go idiomatically embeds the
// variant fields rather than boxing a separate enum payload.
type Query struct {
	Kind NodeKind
	Qi   schema.Qi

	// TableAlias, when non-empty, is the SQL alias this node's FROM
	// clause must bind its relation to — used for self-joins, where the
	// same underlying table appears at two different tree depths and
	// needs a distinct name to disambiguate (spec.md §4.2 "Self-join
	// aliasing"). Qi always names the real relation; TableAlias never
	// replaces it.
	TableAlias string

	// Shared by Select/Insert/Update/Delete: the projection and
	// embedded sub-selects attached to this node's FROM/result set.
	Select     []SelectItem
	SubSelects []SubSelect

	// JoinTables lists extra tables the resolver must add to this
	// node's FROM clause beyond its own relation — populated when a
	// Many join routes through a junction table (spec.md §4.2
	// "Any Many pushes the junction table into join_tables[] of the
	// child").
	JoinTables []schema.Qi

	// Shared by every node kind: the filter predicate tree. The URL
	// Parser fills it from request filters, the Relational Resolver
	// appends join predicates and the Permission Engine appends USING
	// predicates; CHECK predicates go to Check instead.
	Where *value.ConditionTree

	// NodeSelect only.
	Order      []OrderTerm
	GroupBy    []GroupByTerm
	Limit      *int64
	Offset     *int64
	SingularRow bool // Accept: application/vnd.pgrst.object+json

	// NodeInsert / NodeUpdate only.
	Payload      value.Payload
	Columns      []string // body/`columns=` column list, in request order
	OnConflict   []string // Insert upsert target columns, empty means none
	MergeDuplicates bool  // Prefer: resolution=merge-duplicates vs ignore-duplicates

	// NodeFunctionCall only.
	FuncName   schema.Qi
	FuncArgs   []FunctionArg
	ReturnsSet bool // whether the function is a set-returning function

	// Returning is the column list (after privilege clamping) the
	// mutation/function result should project, per spec.md §4.2
	// "Returning-set computation".
	Returning []string

	// Check holds the with-check predicates the Permission Engine
	// attaches to Insert/Update nodes (spec.md §4.3 "With-check"),
	// kept separate from Where so the Formatter never conflates a
	// visibility qual with a new-row qual.
	Check []value.Condition
}

// FunctionArgKind discriminates positional vs named (and JSON body)
// function-call argument binding forms (spec.md §2 "Function-call
// argument binding").
type FunctionArgKind int

const (
	ArgNamed FunctionArgKind = iota
	ArgJSONBody
	ArgUnnamedJSON
)

// FunctionArg is one bound argument to an RPC call.
type FunctionArg struct {
	Kind  FunctionArgKind
	Name  string // ArgNamed only
	Value value.SingleVal
	Cast  string
}

// NewSelect constructs an empty NodeSelect Query for the given target.
func NewSelect(qi schema.Qi) *Query {
	return &Query{Kind: NodeSelect, Qi: qi}
}

// NewInsert constructs an empty NodeInsert Query for the given target.
func NewInsert(qi schema.Qi, payload value.Payload) *Query {
	return &Query{Kind: NodeInsert, Qi: qi, Payload: payload}
}

// NewUpdate constructs an empty NodeUpdate Query for the given target.
func NewUpdate(qi schema.Qi, payload value.Payload) *Query {
	return &Query{Kind: NodeUpdate, Qi: qi, Payload: payload}
}

// NewDelete constructs an empty NodeDelete Query for the given target.
func NewDelete(qi schema.Qi) *Query {
	return &Query{Kind: NodeDelete, Qi: qi}
}

// NewFunctionCall constructs an empty NodeFunctionCall Query.
func NewFunctionCall(fn schema.Qi) *Query {
	return &Query{Kind: NodeFunctionCall, FuncName: fn}
}

// IsMutation reports whether the node's execution requires a writable
// transaction and participates in the `data_changed` preference.
func (q *Query) IsMutation() bool {
	switch q.Kind {
	case NodeInsert, NodeUpdate, NodeDelete:
		return true
	default:
		return false
	}
}

// Walk calls fn for q and every embedded sub-select's nested Query,
// depth-first, matching the traversal the Permission Engine and
// Formatter both need to visit every node in the tree exactly once
// (spec.md §4.3 "recurses into sub_selects"). Embeds are attached as
// ItemSubSelect entries in Select (the resolver's projection-order-
// preserving form); SubSelects is walked too for any node built
// without going through a SelectItem.
func (q *Query) Walk(fn func(*Query)) {
	if q == nil {
		return
	}
	fn(q)
	for i := range q.SubSelects {
		q.SubSelects[i].Query.Walk(fn)
	}
	for i := range q.Select {
		if q.Select[i].Kind == ItemSubSelect && q.Select[i].SubSelect != nil {
			q.Select[i].SubSelect.Query.Walk(fn)
		}
	}
}
