// Package postgres is the reference Dialect implementation: PostgreSQL's
// native `$1`/`$1::type` placeholders, double-quoted identifiers,
// `json_agg`/`row_to_json` aggregation, and native
// `->`/`->>` JSON path operators — the dialect
// original_source/subzero-core/src/formatter/base.rs targets directly
// (the Rust crate's "base" module *is* the Postgres formatter; MySQL
// and ClickHouse are the ones that override it). Cast names are chosen
// to match what jackc/pgx/v5's simple-query protocol accepts verbatim
// in a `::cast` suffix, since the eventual driver layer (serv/db.go)
// executes this dialect's output through pgx.
package postgres

import (
	"strconv"
	"strings"

	"github.com/hbcbh1999/subzero-go/core/internal/formatter"
)

// Dialect is the PostgreSQL Dialect.
type Dialect struct{}

// New returns the PostgreSQL dialect.
func New() formatter.Dialect { return Dialect{} }

func (Dialect) Name() string { return "postgresql" }

func (Dialect) Placeholder(ordinal int, cast string) string {
	p := "$" + strconv.Itoa(ordinal)
	if cast != "" {
		p += "::" + cast
	}
	return p
}

func (Dialect) QuoteIdent(name string) string {
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) JSONArrayAgg(rowExpr string) string {
	return "coalesce((select json_agg(" + rowExpr + ")"
}

func (Dialect) JSONAggText(rowExpr string) string {
	return "coalesce(json_agg(" + rowExpr + "), '[]')::character varying"
}

func (Dialect) JSONAggSingular(rowExpr string) string {
	return "coalesce((json_agg(" + rowExpr + ")->0)::text, 'null')"
}

func (d Dialect) RowToJSON(alias string) string {
	return "row_to_json(" + d.QuoteIdent(alias) + ".*)"
}

func (d Dialect) JSONPath(base string, ops []formatter.JSONStep) string {
	var sb strings.Builder
	sb.WriteString("to_jsonb(" + base + ")")
	for i, op := range ops {
		arrow := "->"
		if op.AsText && i == len(ops)-1 {
			arrow = "->>"
		}
		if op.IsIndex {
			sb.WriteString(arrow + op.Index)
		} else {
			sb.WriteString(arrow + "'" + strings.ReplaceAll(op.Key, "'", "''") + "'")
		}
	}
	return sb.String()
}

func (Dialect) BoolAnd(expr string) string {
	return "bool_and(" + expr + ")"
}
