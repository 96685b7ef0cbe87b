// Package snippet is the Dynamic Snippet: an ordered sequence of SQL
// text fragments interleaved with parameter placeholders, which the
// Formatter assembles into the final `(sql_text, params, param_types)`
// triple handed to the database driver — spec.md §3 "Dynamic Snippet".
//
// Grounded on subzero-core's `SqlSnippet`/`Parameters` accumulator
// pattern (original_source/subzero-core/src/formatter/base.rs): the
// formatter never concatenates raw strings with interpolated values; it
// always appends either a literal fragment or a placeholder bound to an
// out-of-band parameter, so SQL injection is structurally impossible.
package snippet

import (
	"strconv"
	"strings"
)

// Param is one bound query parameter plus its optional SQL type cast,
// used by the driver layer to send typed parameters (e.g. pgx's OID
// hints) rather than relying on implicit coercion.
type Param struct {
	Value string
	Cast  string // "" means "let the driver infer"
}

// Snippet accumulates fragments and parameters in emission order. The
// zero value is ready to use.
type Snippet struct {
	fragments []string
	params    []Param
}

// New returns an empty Snippet.
func New() *Snippet { return &Snippet{} }

// Raw appends a literal SQL fragment verbatim (identifiers, keywords,
// already-quoted literals). Never pass request-derived values here —
// use Bind instead.
func (s *Snippet) Raw(sql string) *Snippet {
	s.fragments = append(s.fragments, sql)
	return s
}

// Bind appends a placeholder for a request-derived value and records
// the parameter, returning the 1-based ordinal assigned to it (useful
// for dialects that need to reference an earlier placeholder, e.g.
// MySQL's duplicate `?` positions).
func (s *Snippet) Bind(p Param) int {
	s.params = append(s.params, p)
	ordinal := len(s.params)
	s.fragments = append(s.fragments, placeholderMarker)
	return ordinal
}

// placeholderMarker is a sentinel the Render pass substitutes with the
// dialect-specific placeholder syntax ($1, ?, etc.) — kept distinct from
// any legal SQL text so it can never collide with a Raw fragment.
const placeholderMarker = "\x00PARAM\x00"

// Append concatenates another Snippet's fragments and parameters onto
// s, renumbering nothing (ordinals are reassigned at Render time).
func (s *Snippet) Append(other *Snippet) *Snippet {
	s.fragments = append(s.fragments, other.fragments...)
	s.params = append(s.params, other.params...)
	return s
}

// Join concatenates parts with sep between them, e.g. joining a column
// list with ", ".
func Join(parts []*Snippet, sep string) *Snippet {
	out := New()
	for i, p := range parts {
		if i > 0 {
			out.Raw(sep)
		}
		out.Append(p)
	}
	return out
}

// PlaceholderFunc renders the dialect's placeholder syntax for the
// given 1-based parameter ordinal (e.g. Postgres "$1", MySQL/SQLite
// "?", ClickHouse "{p1:String}" when a cast is known).
type PlaceholderFunc func(ordinal int, cast string) string

// Render walks the fragments, substituting each placeholderMarker with
// placeholder(ordinal, cast), and returns the finished SQL text
// alongside the parameter values in emission order.
func (s *Snippet) Render(placeholder PlaceholderFunc) (string, []string) {
	var sb strings.Builder
	paramIdx := 0
	values := make([]string, 0, len(s.params))
	for _, frag := range s.fragments {
		if frag == placeholderMarker {
			paramIdx++
			p := s.params[paramIdx-1]
			sb.WriteString(placeholder(paramIdx, p.Cast))
			values = append(values, p.Value)
			continue
		}
		sb.WriteString(frag)
	}
	return sb.String(), values
}

// ParamCount reports how many Bind calls have been made so far, useful
// for dialects that must pre-compute a placeholder offset (e.g. when
// concatenating the env CTE's parameters before the main query's).
func (s *Snippet) ParamCount() int { return len(s.params) }

// Params exposes the accumulated parameters, e.g. for a caller that
// wants to inspect casts before rendering.
func (s *Snippet) Params() []Param {
	out := make([]Param, len(s.params))
	copy(out, s.params)
	return out
}

// QuoteIdent double-quotes a SQL identifier, escaping embedded quotes —
// the one piece of identifier rendering shared by every ANSI-ish
// dialect (Postgres and ClickHouse); MySQL's dialect has its own
// backtick-quoting QuoteIdent instead.
func QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a SQL string literal, doubling embedded
// quotes, for the rare case a fragment must embed a literal directly
// (e.g. a column default) rather than bind it as a parameter.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatInt is a small helper so dialects don't reach for fmt just to
// stringify a LIMIT/OFFSET integer.
func FormatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
