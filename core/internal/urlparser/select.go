package urlparser

import (
	"strconv"
	"strings"

	"github.com/hbcbh1999/subzero-go/core/internal/ir"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

// itemScanner walks a select= value rune-by-rune, implementing the
// select_item grammar from spec.md §4.1.
type itemScanner struct {
	src []rune
	pos int
}

func newItemScanner(s string) *itemScanner { return &itemScanner{src: []rune(s)} }

func (s *itemScanner) eof() bool { return s.pos >= len(s.src) }
func (s *itemScanner) peek() rune {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}
func (s *itemScanner) col() int { return s.pos + 1 }

func (s *itemScanner) errf(ctx string) error {
	return parseError("unexpected character in select list", ctx, s.col())
}

// parseSelectList parses a top-level select= value into SelectItems,
// enforcing the depth guard on nested sub-selects.
func parseSelectList(src string, depth int) ([]ir.SelectItem, error) {
	s := newItemScanner(src)
	items, err := parseItemList(s, depth)
	if err != nil {
		return nil, err
	}
	if !s.eof() {
		return nil, s.errf("trailing input after select list")
	}
	return items, nil
}

func parseItemList(s *itemScanner, depth int) ([]ir.SelectItem, error) {
	var items []ir.SelectItem
	for {
		skipSpace(s)
		item, err := parseSelectItem(s, depth)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		skipSpace(s)
		if s.peek() == ',' {
			s.pos++
			continue
		}
		break
	}
	return items, nil
}

func skipSpace(s *itemScanner) {
	for !s.eof() && s.peek() == ' ' {
		s.pos++
	}
}

// parseSelectItem dispatches on the `*`, simple-field, function-call,
// and sub-select forms.
func parseSelectItem(s *itemScanner, depth int) (ir.SelectItem, error) {
	start := s.pos
	alias := tryParseAlias(s)

	skipSpace(s)
	if s.peek() == '*' {
		s.pos++
		return ir.SelectItem{Kind: ir.ItemStar}, nil
	}
	if s.peek() == '$' {
		s.pos++
		return parseFuncItem(s, alias)
	}

	name, err := parseFieldName(s)
	if err != nil {
		s.pos = start
		return ir.SelectItem{}, err
	}

	skipSpace(s)
	if s.peek() == '(' || s.peek() == '!' {
		return parseSubSelectItem(s, alias, name, depth)
	}

	path, err := parseJSONPath(s)
	if err != nil {
		return ir.SelectItem{}, err
	}
	cast := tryParseCast(s)

	return ir.SelectItem{
		Kind:  ir.ItemSimple,
		Field: value.Field{Name: name, JSONPath: path},
		Alias: alias,
		Cast:  cast,
	}, nil
}

// parseSubSelectItem parses `tablename (hint)? ( items )`.
func parseSubSelectItem(s *itemScanner, alias, tableName string, depth int) (ir.SelectItem, error) {
	if depth+1 > maxDepth {
		return ir.SelectItem{}, parseError("Maximum depth of 10 exceeded", tableName, s.col())
	}
	hint := ""
	if s.peek() == '!' {
		s.pos++
		h, err := parseFieldName(s)
		if err != nil {
			return ir.SelectItem{}, err
		}
		hint = h
	}
	skipSpace(s)
	if s.peek() != '(' {
		return ir.SelectItem{}, s.errf("expected '(' opening embedded resource")
	}
	s.pos++
	items, err := parseItemList(s, depth+1)
	if err != nil {
		return ir.SelectItem{}, err
	}
	skipSpace(s)
	if s.peek() != ')' {
		return ir.SelectItem{}, s.errf("expected ')' closing embedded resource")
	}
	s.pos++

	child := ir.NewSelect(schema.Qi{Name: tableName})
	child.Select = items

	subAlias := alias
	if subAlias == "" {
		subAlias = tableName
	}
	return ir.SelectItem{
		Kind: ir.ItemSubSelect,
		SubSelect: &ir.SubSelect{
			Query: child,
			Alias: subAlias,
			Hint:  hint,
		},
	}, nil
}

// parseFuncItem parses `$fn(arg,...)`, a computed-column/aggregate
// select item.
func parseFuncItem(s *itemScanner, alias string) (ir.SelectItem, error) {
	name, err := parseFieldName(s)
	if err != nil {
		return ir.SelectItem{}, err
	}
	skipSpace(s)
	if s.peek() != '(' {
		return ir.SelectItem{}, s.errf("expected '(' after function name")
	}
	s.pos++
	var fields []value.Field
	skipSpace(s)
	if s.peek() != ')' {
		for {
			skipSpace(s)
			fname, err := parseFieldName(s)
			if err != nil {
				return ir.SelectItem{}, err
			}
			path, err := parseJSONPath(s)
			if err != nil {
				return ir.SelectItem{}, err
			}
			fields = append(fields, value.Field{Name: fname, JSONPath: path})
			skipSpace(s)
			if s.peek() == ',' {
				s.pos++
				continue
			}
			break
		}
	}
	if s.peek() != ')' {
		return ir.SelectItem{}, s.errf("expected ')' closing function call")
	}
	s.pos++

	partitions, err := tryParsePartitionClause(s)
	if err != nil {
		return ir.SelectItem{}, err
	}
	orders, err := tryParseOrderClause(s)
	if err != nil {
		return ir.SelectItem{}, err
	}

	cast := tryParseCast(s)
	var field value.Field
	if len(fields) > 0 {
		field = fields[0]
	}
	return ir.SelectItem{
		Kind: ir.ItemFunc, FuncName: name, Field: field, Alias: alias, Cast: cast,
		Partitions: partitions, Orders: orders,
	}, nil
}

// matchModifierPrefix consumes a `-<letter>(` window-function modifier
// prefix (e.g. `-p(`, `-o(`) if present, reporting whether it matched.
func matchModifierPrefix(s *itemScanner, letter rune) bool {
	if s.peek() != '-' || s.pos+2 >= len(s.src) || s.src[s.pos+1] != letter || s.src[s.pos+2] != '(' {
		return false
	}
	s.pos += 3
	return true
}

// tryParsePartitionClause parses an optional `-p(field,...)` window
// partition clause following a function call's closing paren.
func tryParsePartitionClause(s *itemScanner) ([]value.Field, error) {
	if !matchModifierPrefix(s, 'p') {
		return nil, nil
	}
	var fields []value.Field
	skipSpace(s)
	if s.peek() != ')' {
		for {
			skipSpace(s)
			fname, err := parseFieldName(s)
			if err != nil {
				return nil, err
			}
			fields = append(fields, value.Field{Name: fname})
			skipSpace(s)
			if s.peek() == ',' {
				s.pos++
				continue
			}
			break
		}
	}
	if s.peek() != ')' {
		return nil, s.errf("expected ')' closing partition clause")
	}
	s.pos++
	return fields, nil
}

// tryParseOrderClause parses an optional `-o(order_term,...)` window
// order clause following a function call's closing paren (and any
// partition clause), reusing the root order= grammar.
func tryParseOrderClause(s *itemScanner) ([]ir.OrderTerm, error) {
	if !matchModifierPrefix(s, 'o') {
		return nil, nil
	}
	start := s.pos
	for !s.eof() && s.peek() != ')' {
		s.pos++
	}
	if s.eof() {
		return nil, s.errf("expected ')' closing order clause")
	}
	inner := string(s.src[start:s.pos])
	s.pos++
	return parseOrder(inner)
}

// tryParseAlias consumes a leading `identifier:` (not `::`), restoring
// position if what follows isn't really an alias.
func tryParseAlias(s *itemScanner) string {
	start := s.pos
	skipSpace(s)
	aliasStart := s.pos
	for !s.eof() && isIdentRune(s.peek()) {
		s.pos++
	}
	if s.pos == aliasStart {
		s.pos = start
		return ""
	}
	if s.eof() || s.peek() != ':' || (s.pos+1 < len(s.src) && s.src[s.pos+1] == ':') {
		s.pos = start
		return ""
	}
	alias := string(s.src[aliasStart:s.pos])
	s.pos++ // consume ':'
	return alias
}

// tryParseCast consumes a trailing `::identifier`.
func tryParseCast(s *itemScanner) string {
	if s.eof() || s.peek() != ':' || s.pos+1 >= len(s.src) || s.src[s.pos+1] != ':' {
		return ""
	}
	s.pos += 2
	start := s.pos
	for !s.eof() && isIdentRune(s.peek()) {
		s.pos++
	}
	return string(s.src[start:s.pos])
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// parseFieldName parses a quoted or bare identifier: bare identifiers
// allow letters, digits, `_`, space, and a dash not followed by `>`
// (so `->` inside a bare name still terminates it), per spec.md §4.1.
func parseFieldName(s *itemScanner) (string, error) {
	if s.peek() == '"' {
		return parseQuotedIdent(s)
	}
	start := s.pos
	for !s.eof() {
		c := s.peek()
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == ' ' {
			s.pos++
			continue
		}
		if c == '-' {
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == '>' {
				break
			}
			s.pos++
			continue
		}
		break
	}
	if s.pos == start {
		return "", s.errf("expected field name")
	}
	return strings.TrimRight(string(s.src[start:s.pos]), " "), nil
}

func parseQuotedIdent(s *itemScanner) (string, error) {
	s.pos++ // consume opening quote
	var sb strings.Builder
	for {
		if s.eof() {
			return "", s.errf("unterminated quoted identifier")
		}
		c := s.peek()
		if c == '"' {
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == '"' {
				sb.WriteRune('"')
				s.pos += 2
				continue
			}
			s.pos++
			break
		}
		sb.WriteRune(c)
		s.pos++
	}
	return sb.String(), nil
}

// parseJSONPath parses zero or more `(-> | ->>)` steps.
func parseJSONPath(s *itemScanner) ([]value.JsonOperation, error) {
	var ops []value.JsonOperation
	for !s.eof() && s.peek() == '-' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '>' {
		s.pos += 2
		kind := value.JArrow
		if !s.eof() && s.peek() == '>' {
			kind = value.J2Arrow
			s.pos++
		}
		if !s.eof() && (s.peek() == '-' || s.peek() == '0' || s.peek() <= '9' && s.peek() >= '1') && s.peek() != '"' {
			start := s.pos
			if s.peek() == '-' {
				s.pos++
			}
			for !s.eof() && s.peek() >= '0' && s.peek() <= '9' {
				s.pos++
			}
			ops = append(ops, value.JsonOperation{Kind: kind, Operand: value.JIdx(string(s.src[start:s.pos]))})
			continue
		}
		name, err := parseFieldName(s)
		if err != nil {
			return nil, err
		}
		ops = append(ops, value.JsonOperation{Kind: kind, Operand: value.JKey(name)})
	}
	return ops, nil
}

// parseField parses a bare `field` (name + optional json_path) from a
// plain string, used outside the select-item scanner (order/groupby).
func parseField(src string) (value.Field, error) {
	s := newItemScanner(src)
	name, err := parseFieldName(s)
	if err != nil {
		return value.Field{}, err
	}
	path, err := parseJSONPath(s)
	if err != nil {
		return value.Field{}, err
	}
	return value.Field{Name: name, JSONPath: path}, nil
}

// parseOrder parses `order=col.asc.nullslast,col2.desc`.
func parseOrder(src string) ([]ir.OrderTerm, error) {
	var terms []ir.OrderTerm
	for _, part := range strings.Split(src, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segs := strings.Split(part, ".")
		f, err := parseField(segs[0])
		if err != nil {
			return nil, err
		}
		term := ir.OrderTerm{Field: f}
		for _, seg := range segs[1:] {
			switch seg {
			case "asc":
				term.Direction = ir.OrderAsc
			case "desc":
				term.Direction = ir.OrderDesc
			case "nullsfirst":
				term.Nulls = ir.NullsFirst
			case "nullslast":
				term.Nulls = ir.NullsLast
			default:
				return nil, parseError("invalid order term", part, 0)
			}
		}
		terms = append(terms, term)
	}
	return terms, nil
}

// mustAtoi is a tiny helper kept local to this file to avoid importing
// strconv in call sites that only need it here.
func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
