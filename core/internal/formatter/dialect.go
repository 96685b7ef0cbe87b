// Package formatter is the SQL Formatter: it renders a fully resolved
// and permission-annotated ir.Query into one composite, parameterized
// SQL statement — spec.md §4.4. Grounded on
// original_source/subzero-core/src/formatter/base.rs's `fmt_main_query_internal`/
// `fmt_query`/`fmt_select_item`/`fmt_condition_tree` shape, adapted from
// Rust macro-shared dialect code into a Go interface (`Dialect`) the
// postgres/mysql/clickhouse subpackages implement, matching spec.md's
// framing of the formatter as "parameterized over a small set of
// dialect hooks" rather than three independent renderers.
package formatter

// Dialect is the small set of backend-specific rendering hooks spec.md
// §4.4 calls out: parameter placeholder syntax, JSON access syntax,
// identifier quote character, and aggregation operators. Everything
// else — section ordering, CTE names, embedding shape — is shared.
type Dialect interface {
	// Name identifies the dialect for diagnostics.
	Name() string

	// Placeholder renders the positional-parameter marker for the given
	// 1-based ordinal, optionally informed by the parameter's SQL cast
	// (e.g. Postgres can render "$1::int4").
	Placeholder(ordinal int, cast string) string

	// QuoteIdent quotes one identifier segment in the dialect's native
	// style (double quotes for Postgres/ClickHouse, backticks for MySQL).
	QuoteIdent(name string) string

	// JSONArrayAgg wraps a row-producing subquery alias into a JSON
	// array aggregate expression coalesced to an empty array.
	JSONArrayAgg(rowExpr string) string

	// JSONAggText aggregates rowExpr into a JSON array rendered as text,
	// used by the ApplicationJSON body projection.
	JSONAggText(rowExpr string) string

	// JSONAggSingular aggregates rowExpr and extracts the first element
	// as text (or SQL NULL's text representation), used by the
	// SingularJSON body projection.
	JSONAggSingular(rowExpr string) string

	// RowToJSON renders the parent-embed projection for a lateral-joined
	// alias: a JSON object built from all of the alias's columns.
	RowToJSON(alias string) string

	// JSONPath renders a JSON path access chain starting from base
	// (already-quoted column reference), e.g. `data->'a'->>'b'`.
	JSONPath(base string, ops []JSONStep) string

	// BoolAnd renders the boolean-AND aggregate used for
	// constraints_satisfied over the mutation's affected rows.
	BoolAnd(expr string) string
}

// JSONStep is formatter's dialect-facing mirror of value.JsonOperation,
// kept free of a direct value.JsonOperationKind/JsonOperand dependency
// so Dialect implementations don't need to import package value just to
// pattern-match two fields.
type JSONStep struct {
	AsText bool // true for ->>, false for ->
	Key    string
	IsIndex bool
	Index  string
}
