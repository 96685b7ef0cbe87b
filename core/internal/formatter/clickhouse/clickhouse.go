// Package clickhouse is a Dialect for ClickHouse, grounded on
// original_source/subzero-core/src/formatter/clickhouse.rs: named,
// type-tagged placeholders (`{p1:String}`, matching ClickHouse's HTTP
// and native protocol parameter binding), double-quoted identifiers
// (ClickHouse accepts the same ANSI quoting Postgres does), and
// `JSON_VALUE` for JSON path access. The Rust source rejects the exact
// `count=exact` Prefer value outright ("not implemented yet for
// clickhouse") rather than silently degrading it; callers building a
// Request against this dialect must not set ExactCount — spec.md's
// engine-agnostic Formatter layer can't enforce that itself, so
// core.Compile rejects the preference before calling Format when this
// dialect is selected.
package clickhouse

import (
	"strconv"
	"strings"

	"github.com/hbcbh1999/subzero-go/core/internal/formatter"
)

// Dialect is the ClickHouse Dialect.
type Dialect struct{}

// New returns the ClickHouse dialect.
func New() formatter.Dialect { return Dialect{} }

func (Dialect) Name() string { return "clickhouse" }

func (Dialect) Placeholder(ordinal int, cast string) string {
	dataType := cast
	if dataType == "" {
		dataType = "String"
	}
	return "{p" + strconv.Itoa(ordinal) + ":" + dataType + "}"
}

func (Dialect) QuoteIdent(name string) string {
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) JSONArrayAgg(rowExpr string) string {
	return "coalesce((select groupArray(" + rowExpr + ")"
}

func (Dialect) JSONAggText(rowExpr string) string {
	return "coalesce(toJSONString(groupArray(" + rowExpr + ")), '[]')"
}

func (Dialect) JSONAggSingular(rowExpr string) string {
	return "coalesce(toJSONString(arrayElement(groupArray(" + rowExpr + "), 1)), 'null')"
}

func (d Dialect) RowToJSON(alias string) string {
	return "toJSONString(" + d.QuoteIdent(alias) + ")"
}

func (d Dialect) JSONPath(base string, ops []formatter.JSONStep) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, op := range ops {
		if op.IsIndex {
			sb.WriteString("[" + op.Index + "]")
		} else {
			sb.WriteString("." + op.Key)
		}
	}
	return "JSON_VALUE(" + base + ", " + strconv.Quote(sb.String()) + ")"
}

func (Dialect) BoolAnd(expr string) string {
	return "min(" + expr + ")"
}
