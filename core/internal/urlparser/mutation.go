package urlparser

import (
	"encoding/csv"
	"encoding/json"
	"sort"
	"strings"

	"github.com/hbcbh1999/subzero-go/core/internal/apperr"
	"github.com/hbcbh1999/subzero-go/core/internal/ir"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

// normalizedBody is the outcome of normalizeBody's Content-Type-driven
// normalization: a canonical JSON array of homogeneous objects plus
// the resolved column list, spec.md §4.1 "Body".
type normalizedBody struct {
	JSON    string
	Columns []string
}

// normalizeBody dispatches on contentType, implementing spec.md §4.1
// "Body": JSON object/array with matching keys, or CSV with a header
// row / `columns=` override.
func normalizeBody(contentType string, body []byte, columnsOverride string) (normalizedBody, error) {
	base := contentType
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = base[:idx]
	}
	base = strings.TrimSpace(base)

	switch base {
	case "application/json", "application/vnd.pgrst.object+json", "":
		return normalizeJSONBody(body, columnsOverride)
	case "text/csv":
		return normalizeCSVBody(body, columnsOverride)
	default:
		return normalizedBody{}, apperr.ContentType("Content-Type not acceptable: " + contentType)
	}
}

func normalizeJSONBody(body []byte, columnsOverride string) (normalizedBody, error) {
	if len(body) == 0 {
		return normalizedBody{JSON: "[]"}, nil
	}
	var asArray []map[string]json.RawMessage
	if err := json.Unmarshal(body, &asArray); err == nil {
		return finishJSONBody(asArray, body, columnsOverride)
	}
	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(body, &asObject); err != nil {
		return normalizedBody{}, apperr.InvalidBody("invalid JSON payload")
	}
	arr, _ := json.Marshal([]map[string]json.RawMessage{asObject})
	return finishJSONBody([]map[string]json.RawMessage{asObject}, arr, columnsOverride)
}

func finishJSONBody(rows []map[string]json.RawMessage, canonical []byte, columnsOverride string) (normalizedBody, error) {
	if columnsOverride != "" {
		cols := splitColumns(columnsOverride)
		return normalizedBody{JSON: string(canonical), Columns: cols}, nil
	}
	if len(rows) == 0 {
		return normalizedBody{JSON: string(canonical)}, nil
	}
	first := keysOf(rows[0])
	for _, row := range rows[1:] {
		if !sameKeySet(first, keysOf(row)) {
			return normalizedBody{}, apperr.InvalidBody("All object keys must match")
		}
	}
	return normalizedBody{JSON: string(canonical), Columns: first}, nil
}

func keysOf(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sameKeySet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func splitColumns(v string) []string {
	var out []string
	for _, c := range strings.Split(v, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// normalizeCSVBody parses CSV text into a canonical JSON array, using
// columnsOverride as the header when provided, else the first row.
func normalizeCSVBody(body []byte, columnsOverride string) (normalizedBody, error) {
	r := csv.NewReader(strings.NewReader(string(body)))
	records, err := r.ReadAll()
	if err != nil {
		return normalizedBody{}, apperr.InvalidBody("invalid CSV payload")
	}
	if len(records) == 0 {
		return normalizedBody{JSON: "[]"}, nil
	}
	header := records[0]
	dataRows := records[1:]
	if columnsOverride != "" {
		header = splitColumns(columnsOverride)
		dataRows = records
	}
	rows := make([]map[string]string, 0, len(dataRows))
	for _, rec := range dataRows {
		row := map[string]string{}
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	b, _ := json.Marshal(rows)
	return normalizedBody{JSON: string(b), Columns: header}, nil
}

func parseInsert(qi schema.Qi, g *groupedParams, body []byte, contentType string, isPut bool) (*ir.Query, error) {
	columnsOverride, _ := firstValue(g.root, "columns")
	nb, err := normalizeBody(contentType, body, columnsOverride)
	if err != nil {
		return nil, err
	}
	q := ir.NewInsert(qi, value.Payload{Text: nb.JSON})
	q.Columns = append([]string(nil), nb.Columns...)

	if isPut {
		if err := validatePutFilters(g.root); err != nil {
			return nil, err
		}
		pk := pkColumnsFromFilters(g.root)
		q.OnConflict = pk
		q.MergeDuplicates = true
	}
	return q, nil
}

// validatePutFilters checks that every root-level filter of a PUT is an
// `eq` filter. It does not compare the filtered columns with the
// table's primary key: a missing or extra key column is not rejected.
func validatePutFilters(kvs []KV) error {
	for _, kv := range kvs {
		if reservedRootKeys[kv.Key] {
			continue
		}
		if !strings.HasPrefix(kv.Value, "eq.") {
			return apperr.InvalidFilters()
		}
	}
	return nil
}

func pkColumnsFromFilters(kvs []KV) []string {
	var cols []string
	for _, kv := range kvs {
		if reservedRootKeys[kv.Key] {
			continue
		}
		cols = append(cols, kv.Key)
	}
	sort.Strings(cols)
	return cols
}

func parseUpdate(qi schema.Qi, g *groupedParams, body []byte, contentType string) (*ir.Query, error) {
	columnsOverride, _ := firstValue(g.root, "columns")
	nb, err := normalizeBody(contentType, body, columnsOverride)
	if err != nil {
		return nil, err
	}
	q := ir.NewUpdate(qi, value.Payload{Text: nb.JSON})
	q.Columns = append([]string(nil), nb.Columns...)
	if err := applyMutationFilters(q, g); err != nil {
		return nil, err
	}
	return q, nil
}

// parseFunctionCall builds a FunctionCall node; args come from the
// query string for GET, from the JSON body for POST (spec.md §4.1
// "Function calls").
func parseFunctionCall(qi schema.Qi, g *groupedParams, body []byte, prefs Preferences) (*ir.Query, error) {
	q := ir.NewFunctionCall(qi)
	if body == nil {
		for _, kv := range g.root {
			if reservedRootKeys[kv.Key] {
				continue
			}
			q.FuncArgs = append(q.FuncArgs, ir.FunctionArg{
				Kind: ir.ArgNamed, Name: kv.Key, Value: value.SingleVal{Text: kv.Value},
			})
		}
		return q, applyReadClauses(q, g)
	}
	q.FuncArgs = append(q.FuncArgs, ir.FunctionArg{
		Kind:  ir.ArgJSONBody,
		Value: value.SingleVal{Text: string(body)},
	})
	return q, applyReadClauses(q, g)
}
