// Package mysql is a Dialect for MySQL/MariaDB, grounded on
// original_source/subzero-core/src/formatter/mysql.rs: backtick-quoted
// identifiers, positional `?` placeholders (MySQL has no native
// parameter cast syntax, so Cast is ignored at bind time), and
// `json_arrayagg`/`json_extract` in place of Postgres's
// `json_agg`/`row_to_json`/native `->`/`->>` operators. Kept thin
// relative to postgres — MySQL's driver (go-sql-driver/mysql) has no
// query-building helpers of its own, so the dialect is pure string
// rendering; the actual connection and statement execution happens in
// the host's db layer.
package mysql

import (
	"strconv"
	"strings"

	"github.com/hbcbh1999/subzero-go/core/internal/formatter"
)

// Dialect is the MySQL Dialect.
type Dialect struct{}

// New returns the MySQL dialect.
func New() formatter.Dialect { return Dialect{} }

func (Dialect) Name() string { return "mysql" }

func (Dialect) Placeholder(ordinal int, cast string) string {
	_ = ordinal
	_ = cast
	return "?"
}

func (Dialect) QuoteIdent(name string) string {
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (Dialect) JSONArrayAgg(rowExpr string) string {
	return "coalesce((select json_arrayagg(" + rowExpr + ")"
}

func (Dialect) JSONAggText(rowExpr string) string {
	return "coalesce(json_arrayagg(" + rowExpr + "), '[]')"
}

func (Dialect) JSONAggSingular(rowExpr string) string {
	return "coalesce(json_extract(json_arrayagg(" + rowExpr + "),'$[0]'), 'null')"
}

func (d Dialect) RowToJSON(alias string) string {
	return "json_object(" + d.QuoteIdent(alias) + ".*)"
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
	return "json_extract(" + base + ", " + strconv.Quote(sb.String()) + ")"
}

func (Dialect) BoolAnd(expr string) string {
	return "min(" + expr + ")"
}
