package urlparser

import (
	"strings"

	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

// ftsOps is the set of full-text-search operator names PostgREST
// recognizes as a filter op, spec.md §4.1 grammar's `fts_op`.
var ftsOps = map[string]bool{"fts": true, "plfts": true, "phfts": true, "wfts": true}

// parseFilterValue parses a query-string filter value:
// `[not.] (op.value | in.(v,...) | is.(true|false|null|unknown) | fts_op([lang])?.value)`.
func parseFilterValue(raw string) (value.Filter, error) {
	s := raw
	if strings.HasPrefix(s, "not.") {
		s = s[len("not."):]
	}
	idx := strings.Index(s, ".")
	if idx < 0 {
		return value.Filter{}, parseError("malformed filter", raw, 0)
	}
	op := s[:idx]
	rest := s[idx+1:]

	// fts_op may carry a parenthesized language before the final dot:
	// `fts(english).value`.
	baseOp := op
	if p := strings.Index(op, "("); p >= 0 {
		baseOp = op[:p]
	}

	switch {
	case op == "in":
		return value.NewInFilter(parseListVal(rest)), nil
	case op == "is":
		tri, err := parseTrilean(rest)
		if err != nil {
			return value.Filter{}, err
		}
		return value.NewIsFilter(tri), nil
	case ftsOps[baseOp]:
		var lang *value.SingleVal
		if p := strings.Index(op, "("); p >= 0 && strings.HasSuffix(op, ")") {
			l := op[p+1 : len(op)-1]
			lang = &value.SingleVal{Text: l}
		}
		return value.NewFtsFilter(baseOp, lang, value.SingleVal{Text: rest}), nil
	default:
		return value.NewOpFilter(op, value.SingleVal{Text: rest}), nil
	}
}

func parseListVal(raw string) value.ListVal {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	items := splitTopLevel(s, ',')
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return value.ListVal{Items: items}
}

func parseTrilean(raw string) (value.Trilean, error) {
	switch raw {
	case "true":
		return value.TriTrue, nil
	case "false":
		return value.TriFalse, nil
	case "null":
		return value.TriNull, nil
	case "unknown":
		return value.TriUnknown, nil
	default:
		return 0, parseError("invalid is. operand", raw, 0)
	}
}

// splitTopLevel splits s on sep, ignoring occurrences inside balanced
// parentheses, used for both `in.(...)` lists and logic-tree groups.
func splitTopLevel(s string, sep rune) []string {
	var out []string
	depth := 0
	start := 0
	runes := []rune(s)
	for i, r := range runes {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, string(runes[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, string(runes[start:]))
	return out
}
