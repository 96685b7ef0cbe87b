// Package formatter's formatter.go is the shared renderer every Dialect
// plugs into: it assembles the five logical sections spec.md §4.4 calls
// out (env CTE, main query CTE, count CTE, body projection, outer
// select) from a resolved and permission-annotated ir.Query, and
// renders the request/filter/condition grammar that feeds them.
// Grounded on original_source/subzero-core/src/formatter/base.rs's
// `fmt_main_query_internal`/`fmt_env_query`/`fmt_query`/`fmt_count_query`/
// `fmt_condition_tree`/`fmt_select_item`/`fmt_sub_select_item` macros,
// translated from Rust's Snippet-as-string-concatenation style into
// repeated snippet.Snippet.Append calls.
package formatter

import (
	"fmt"
	"sort"

	"github.com/hbcbh1999/subzero-go/core/internal/apperr"
	"github.com/hbcbh1999/subzero-go/core/internal/ir"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/snippet"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

// ContentType is the negotiated Accept type driving body projection,
// spec.md §4.4's "(return_representation, accept_content_type, node)"
// matrix.
type ContentType int

const (
	ApplicationJSON ContentType = iota
	SingularJSON
	TextCSV
)

// Request is everything Format needs beyond the resolved Query: the
// schema the relation lives in, the method (to decide whether a
// mutation should echo a representation back), the negotiated response
// shape, whether an exact count was requested, and the GUC-settable
// request environment (role, headers, claims — spec.md §9).
type Request struct {
	Schema              string
	Method              string
	AcceptContentType   ContentType
	ReturnRepresentation bool
	ExactCount          bool
	Env                 map[string]string
}

// Result is the finished statement: SQL text with dialect placeholders
// substituted, and bound parameter values in positional order.
type Result struct {
	SQL    string
	Params []string
}

// Format renders q into one composite statement against dialect d,
// matching fmt_main_query_internal's five sections: an env CTE, the
// main query CTE (_subzero_query), a count CTE (_subzero_count_query),
// and an outer select producing page_total/total_result_set/body/
// constraints_satisfied/response_headers/response_status.
func Format(q *ir.Query, req Request, d Dialect) (Result, error) {
	s := snippet.New()

	bodySQL, err := bodyProjection(req, d)
	if err != nil {
		return Result{}, err
	}
	checkConstraints := q.Kind == ir.NodeInsert || q.Kind == ir.NodeUpdate

	s.Raw("with env as materialized (")
	s.Append(fmtEnvQuery(req.Env, d))
	s.Raw(") , ")

	mainQuery, err := fmtQuery(req.Schema, req.ReturnRepresentation, "_subzero_query", q, d)
	if err != nil {
		return Result{}, err
	}
	s.Append(mainQuery)
	s.Raw(" , ")

	if req.ExactCount {
		countQuery, err := fmtCountQuery(req.Schema, "_subzero_count_query", q, d)
		if err != nil {
			return Result{}, err
		}
		s.Append(countQuery)
	} else {
		s.Raw("_subzero_count_query as (select 1)")
	}

	s.Raw(" select pg_catalog.count(_subzero_t) as page_total, ")
	if req.ExactCount {
		s.Raw("(select pg_catalog.count(*) from _subzero_count_query)")
	} else {
		s.Raw("null::bigint")
	}
	s.Raw(" as total_result_set, ")
	s.Raw(bodySQL)
	s.Raw(" as body, ")
	if checkConstraints {
		s.Raw("(select " + d.BoolAnd("coalesce(_subzero_check__constraint,true)") + " from subzero_source) as constraints_satisfied, ")
	} else {
		s.Raw("true as constraints_satisfied, ")
	}
	s.Raw("nullif(current_setting('response.headers', true), '') as response_headers, ")
	s.Raw("nullif(current_setting('response.status', true), '') as response_status ")
	s.Raw("from (select * from _subzero_query) _subzero_t")

	sql, params := s.Render(d.Placeholder)
	return Result{SQL: sql, Params: params}, nil
}

// bodyProjection picks the body_snippet arm of fmt_main_query_internal's
// match — the FunctionCall scalar/set-returning arms are handled by the
// caller passing ReturnRepresentation=false for a non-representation
// mutation, so this function only needs the row-shape arms.
func bodyProjection(req Request, d Dialect) (string, error) {
	if !req.ReturnRepresentation {
		return "''", nil
	}
	switch req.AcceptContentType {
	case ApplicationJSON:
		return d.JSONAggText("_subzero_t"), nil
	case SingularJSON:
		return d.JSONAggSingular("_subzero_t"), nil
	case TextCSV:
		return `(select coalesce(string_agg(a.k, ','), '')
			from (
				select json_object_keys(r)::text as k
				from (
					select row_to_json(hh) as r from _subzero_query as hh limit 1
				) s
			) a)
			|| chr(10) ||
			coalesce(string_agg(substring(_subzero_t::text, 2, length(_subzero_t::text) - 2), chr(10)), '')`, nil
	default:
		return "", apperr.ContentType("None of these Content-Types are available")
	}
}

func fmtEnvQuery(env map[string]string, d Dialect) *snippet.Snippet {
	s := snippet.New()
	s.Raw("select ")
	if len(env) == 0 {
		s.Raw("null")
		return s
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			s.Raw(",")
		}
		s.Bind(snippet.Param{Value: env[k]})
		s.Raw(" as " + d.QuoteIdent(k))
	}
	return s
}

// fmtQuery mirrors fmt_query: it dispatches on q.Kind to build an
// optional CTE fragment (e.g. "subzero_source as (...)") plus the outer
// select text, then wraps both into "wrapName as ( cte , select ... )".
func fmtQuery(schemaName string, returnRepresentation bool, wrapName string, q *ir.Query, d Dialect) (*snippet.Snippet, error) {
	var cte, body *snippet.Snippet
	var err error

	switch q.Kind {
	case ir.NodeSelect:
		body, err = fmtSelectNode(schemaName, q, d)
	case ir.NodeInsert:
		cte, body, err = fmtInsertNode(schemaName, returnRepresentation, q, d)
	case ir.NodeUpdate:
		cte, body, err = fmtUpdateNode(schemaName, returnRepresentation, q, d)
	case ir.NodeDelete:
		cte, body, err = fmtDeleteNode(schemaName, returnRepresentation, q, d)
	case ir.NodeFunctionCall:
		cte, body, err = fmtFunctionCallNode(schemaName, returnRepresentation, q, d)
	}
	if err != nil {
		return nil, err
	}

	out := snippet.New()
	if wrapName != "" {
		out.Raw(" ")
		if cte != nil {
			out.Append(cte)
			out.Raw(" , ")
		}
		out.Raw(wrapName + " as ( ")
		out.Append(body)
		out.Raw(" )")
		return out, nil
	}
	if cte != nil {
		out.Raw(" ")
		out.Append(cte)
	}
	out.Append(body)
	return out, nil
}

func ownQi(q *ir.Query) schema.Qi {
	if q.TableAlias != "" {
		return schema.Qi{Name: q.TableAlias}
	}
	return q.Qi
}

func fmtSelectNode(schemaName string, q *ir.Query, d Dialect) (*snippet.Snippet, error) {
	qi := schema.Qi{Schema: schemaName, Name: q.Qi.Name}
	aliasedQi := ownQi(q)

	s := snippet.New()
	s.Raw(" select ")
	selectList, err := fmtSelectList(aliasedQi, schemaName, q, d)
	if err != nil {
		return nil, err
	}
	s.Append(selectList)
	s.Raw(" from ")
	if q.TableAlias != "" {
		s.Raw(fmtQi(qi, d) + " as " + d.QuoteIdent(q.TableAlias))
	} else {
		s.Raw(fmtQi(qi, d))
	}
	for _, jt := range q.JoinTables {
		s.Raw(", " + fmtQi(schema.Qi{Schema: schemaName, Name: jt.Name}, d))
	}
	s.Raw(" ")
	if err := appendEmbedJoins(s, schemaName, aliasedQi, q, d); err != nil {
		return nil, err
	}
	s.Raw(" ")
	if q.Where != nil && len(q.Where.Conditions) > 0 {
		s.Raw("where ")
		cond, err := fmtConditionTree(aliasedQi, *q.Where, d)
		if err != nil {
			return nil, err
		}
		s.Append(cond)
	}
	s.Raw(" ")
	if g := fmtGroupBy(aliasedQi, q.GroupBy, d); g != "" {
		s.Raw(g + " ")
	}
	if o := fmtOrder(q.Order, d); o != "" {
		s.Raw(o + " ")
	}
	if q.Limit != nil {
		s.Raw(fmt.Sprintf("limit %s ", snippet.FormatInt(*q.Limit)))
	}
	if q.Offset != nil {
		s.Raw(fmt.Sprintf("offset %s ", snippet.FormatInt(*q.Offset)))
	}
	return s, nil
}

// fmtSelectList renders q.Select (including embedded ItemSubSelect
// entries in request order) against qi, with embed lateral/subquery
// text appended as additional FROM-clause joins the caller threads in
// separately via appendEmbedJoins.
func fmtSelectList(qi schema.Qi, schemaName string, q *ir.Query, d Dialect) (*snippet.Snippet, error) {
	parts := make([]*snippet.Snippet, 0, len(q.Select))
	for _, item := range q.Select {
		if item.Kind == ir.ItemSubSelect {
			part, _, err := fmtSubSelectItem(schemaName, qi, item.SubSelect, d)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
			continue
		}
		part, err := fmtSelectItem(qi, item, d)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		s := snippet.New()
		s.Raw(fmtQi(qi, d) + ".*")
		return s, nil
	}
	return snippet.Join(parts, ", "), nil
}

func appendEmbedJoins(s *snippet.Snippet, schemaName string, qi schema.Qi, q *ir.Query, d Dialect) error {
	for _, item := range q.Select {
		if item.Kind != ir.ItemSubSelect {
			continue
		}
		_, joins, err := fmtSubSelectItem(schemaName, qi, item.SubSelect, d)
		if err != nil {
			return err
		}
		for _, j := range joins {
			s.Append(j)
			s.Raw(" ")
		}
	}
	return nil
}

// fmtSubSelectItem mirrors fmt_sub_select_item: a Parent join renders a
// row_to_json projection plus a lateral join fragment; Child/Many
// render a coalesced json_agg subquery inline in the projection with no
// extra join fragment.
func fmtSubSelectItem(schemaName string, parentQi schema.Qi, sub *ir.SubSelect, d Dialect) (proj *snippet.Snippet, joins []*snippet.Snippet, err error) {
	childSchema := sub.Query.Qi.Schema
	if childSchema == "" {
		childSchema = schemaName
	}

	switch sub.Join.Kind {
	case ir.JoinParent:
		aliasOrName := sub.Alias
		if aliasOrName == "" {
			aliasOrName = sub.Join.FK.ReferencedTable.Name
		}
		localTable := parentQi.Name + "_" + aliasOrName
		subQuery, err := fmtQuery(childSchema, true, "", sub.Query, d)
		if err != nil {
			return nil, nil, err
		}
		proj = snippet.New()
		proj.Raw(d.RowToJSON(localTable) + " as " + d.QuoteIdent(aliasOrName))
		join := snippet.New()
		join.Raw("left join lateral (")
		join.Append(subQuery)
		join.Raw(") as " + d.QuoteIdent(localTable) + " on true")
		return proj, []*snippet.Snippet{join}, nil

	case ir.JoinChild:
		aliasOrName := sub.Alias
		if aliasOrName == "" {
			aliasOrName = sub.Join.FK.Table.Name
		}
		localTable := sub.Join.FK.Table.Name
		subQuery, err := fmtQuery(childSchema, true, "", sub.Query, d)
		if err != nil {
			return nil, nil, err
		}
		proj = snippet.New()
		proj.Raw(d.JSONArrayAgg(d.QuoteIdent(localTable)+".*") + " from (")
		proj.Append(subQuery)
		proj.Raw(") as " + d.QuoteIdent(localTable) + "), '[]') as " + d.QuoteIdent(aliasOrName))
		return proj, nil, nil

	default: // ir.JoinMany
		aliasOrName := sub.Alias
		if aliasOrName == "" {
			aliasOrName = sub.Join.ChildFK.ReferencedTable.Name
		}
		localTable := sub.Join.ChildFK.ReferencedTable.Name
		subQuery, err := fmtQuery(childSchema, true, "", sub.Query, d)
		if err != nil {
			return nil, nil, err
		}
		proj = snippet.New()
		proj.Raw(d.JSONArrayAgg(d.QuoteIdent(localTable)+".*") + " from (")
		proj.Append(subQuery)
		proj.Raw(") as " + d.QuoteIdent(localTable) + "), '[]') as " + d.QuoteIdent(aliasOrName))
		return proj, nil, nil
	}
}

func fmtInsertNode(schemaName string, returnRepresentation bool, q *ir.Query, d Dialect) (cte, body *snippet.Snippet, err error) {
	qi := schema.Qi{Schema: schemaName, Name: q.Qi.Name}
	qiSource := schema.Qi{Name: "subzero_source"}

	returnedColumns := "1"
	if len(q.Returning) > 0 {
		returnedColumns = renderReturningList(q.Returning, d)
	}
	intoColumns := ""
	selectColumns := ""
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			quoted[i] = d.QuoteIdent(c)
		}
		intoColumns = "(" + joinStrings(quoted, ",") + ")"
		selectColumns = joinStrings(quoted, ",")
	}

	cte = snippet.New()
	cte.Append(fmtBody(q.Payload))
	cte.Raw(", subzero_source as ( insert into " + fmtQi(qi, d) + " " + intoColumns)
	cte.Raw(" select " + selectColumns + " from json_populate_recordset(null::" + fmtQi(qi, d) + ", (select val from subzero_body)) _ ")
	if err := appendUpsertClause(cte, q, d); err != nil {
		return nil, nil, err
	}
	cte.Raw(" returning " + returnedColumns)
	if len(q.Check) > 0 {
		checkExpr, err := fmtConditions(qi, q.Check, d)
		if err != nil {
			return nil, nil, err
		}
		cte.Raw(", ")
		cte.Append(checkExpr)
		cte.Raw(" as _subzero_check__constraint ")
	} else {
		cte.Raw(", true as _subzero_check__constraint ")
	}
	cte.Raw(")")

	body = snippet.New()
	if returnRepresentation {
		body.Raw(" select ")
		selectList, err := fmtSelectList(qiSource, schemaName, q, d)
		if err != nil {
			return nil, nil, err
		}
		body.Append(selectList)
		body.Raw(" from " + d.QuoteIdent("subzero_source") + " ")
		if err := appendEmbedJoins(body, schemaName, qiSource, q, d); err != nil {
			return nil, nil, err
		}
		if q.Where != nil && len(q.Where.Conditions) > 0 {
			body.Raw(" where ")
			cond, err := fmtConditionTree(qiSource, *q.Where, d)
			if err != nil {
				return nil, nil, err
			}
			body.Append(cond)
		}
	} else {
		body.Raw(" select * from " + d.QuoteIdent("subzero_source"))
	}
	return cte, body, nil
}

func appendUpsertClause(s *snippet.Snippet, q *ir.Query, d Dialect) error {
	if len(q.OnConflict) == 0 {
		return nil
	}
	quoted := make([]string, len(q.OnConflict))
	for i, c := range q.OnConflict {
		quoted[i] = d.QuoteIdent(c)
	}
	s.Raw(" on conflict(" + joinStrings(quoted, ", ") + ") ")
	if !q.MergeDuplicates || len(q.Columns) == 0 {
		s.Raw("do nothing")
		return nil
	}
	sets := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		ident := d.QuoteIdent(c)
		sets[i] = ident + " = excluded." + ident
	}
	s.Raw("do update set " + joinStrings(sets, ", "))
	return nil
}

func fmtUpdateNode(schemaName string, returnRepresentation bool, q *ir.Query, d Dialect) (cte, body *snippet.Snippet, err error) {
	qi := schema.Qi{Schema: schemaName, Name: q.Qi.Name}
	qiSource := schema.Qi{Name: "subzero_source"}

	returnedColumns := "1"
	if len(q.Returning) > 0 {
		returnedColumns = renderReturningList(q.Returning, d)
	}

	cte = snippet.New()
	if len(q.Columns) == 0 {
		sel := "null"
		if len(q.Returning) > 0 {
			sel = renderReturningListAgainst(q.Qi.Name, q.Returning, d)
		}
		cte.Raw(" subzero_source as (select " + sel + ", true as _subzero_check__constraint from " + fmtQi(qi, d) + " where false )")
		body, err := emptySourceBody(returnRepresentation, schemaName, q, d, qiSource)
		return cte, body, err
	}

	setCols := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		ident := d.QuoteIdent(c)
		setCols[i] = ident + " = _." + ident
	}

	cte.Append(fmtBody(q.Payload))
	cte.Raw(", subzero_source as ( update " + fmtQi(qi, d) + " set " + joinStrings(setCols, ","))
	cte.Raw(" from (select * from json_populate_recordset(null::" + fmtQi(qi, d) + ", (select val from subzero_body))) _ ")
	if q.Where != nil && len(q.Where.Conditions) > 0 {
		cte.Raw(" where ")
		cond, err := fmtConditionTree(qi, *q.Where, d)
		if err != nil {
			return nil, nil, err
		}
		cte.Append(cond)
	}
	cte.Raw(" returning " + returnedColumns)
	if len(q.Check) > 0 {
		checkExpr, err := fmtConditions(qi, q.Check, d)
		if err != nil {
			return nil, nil, err
		}
		cte.Raw(", ")
		cte.Append(checkExpr)
		cte.Raw(" as _subzero_check__constraint ")
	} else {
		cte.Raw(", true as _subzero_check__constraint ")
	}
	cte.Raw(")")

	body, err = fmtMutationBody(returnRepresentation, schemaName, q, qiSource, d)
	return cte, body, err
}

func fmtDeleteNode(schemaName string, returnRepresentation bool, q *ir.Query, d Dialect) (cte, body *snippet.Snippet, err error) {
	qi := schema.Qi{Schema: schemaName, Name: q.Qi.Name}
	qiSource := schema.Qi{Name: "subzero_source"}

	returnedColumns := "1"
	if len(q.Returning) > 0 {
		returnedColumns = renderReturningList(q.Returning, d)
	}

	cte = snippet.New()
	cte.Raw(" subzero_source as ( delete from " + fmtQi(qi, d) + " ")
	if q.Where != nil && len(q.Where.Conditions) > 0 {
		cte.Raw("where ")
		cond, err := fmtConditionTree(qi, *q.Where, d)
		if err != nil {
			return nil, nil, err
		}
		cte.Append(cond)
	}
	cte.Raw(" returning " + returnedColumns + " )")

	body, err = fmtMutationBody(returnRepresentation, schemaName, q, qiSource, d)
	return cte, body, err
}

func fmtMutationBody(returnRepresentation bool, schemaName string, q *ir.Query, qiSource schema.Qi, d Dialect) (*snippet.Snippet, error) {
	body := snippet.New()
	if !returnRepresentation {
		body.Raw(" select * from " + d.QuoteIdent("subzero_source"))
		return body, nil
	}
	body.Raw(" select ")
	selectList, err := fmtSelectList(qiSource, schemaName, q, d)
	if err != nil {
		return nil, err
	}
	body.Append(selectList)
	body.Raw(" from " + d.QuoteIdent("subzero_source") + " ")
	if err := appendEmbedJoins(body, schemaName, qiSource, q, d); err != nil {
		return nil, err
	}
	if q.Where != nil && len(q.Where.Conditions) > 0 {
		body.Raw(" where ")
		cond, err := fmtConditionTree(qiSource, *q.Where, d)
		if err != nil {
			return nil, err
		}
		body.Append(cond)
	}
	return body, nil
}

func emptySourceBody(returnRepresentation bool, schemaName string, q *ir.Query, d Dialect, qiSource schema.Qi) (*snippet.Snippet, error) {
	return fmtMutationBody(returnRepresentation, schemaName, q, qiSource, d)
}

// fmtFunctionCallNode renders an RPC call: a subzero_source CTE
// invoking the function (set-returning functions use `from func(...)`,
// scalar calls wrap the single value in a one-row `select`), then an
// outer select the same shape as the other mutation kinds'.
func fmtFunctionCallNode(schemaName string, returnRepresentation bool, q *ir.Query, d Dialect) (cte, body *snippet.Snippet, err error) {
	fn := q.FuncName
	if fn.Schema == "" {
		fn = schema.Qi{Schema: schemaName, Name: fn.Name}
	}
	qiSource := schema.Qi{Name: "subzero_source"}

	call := snippet.New()
	call.Raw(fmtQi(fn, d) + "(")
	for i, arg := range q.FuncArgs {
		if i > 0 {
			call.Raw(", ")
		}
		if arg.Kind == ir.ArgNamed && arg.Name != "" {
			call.Raw(d.QuoteIdent(arg.Name) + " := ")
		}
		if arg.Cast != "" {
			call.Raw("cast(")
			call.Bind(snippet.Param{Value: arg.Value.Text, Cast: arg.Cast})
			call.Raw(" as " + arg.Cast + ")")
		} else {
			call.Bind(snippet.Param{Value: arg.Value.Text})
		}
	}
	call.Raw(")")

	cte = snippet.New()
	if q.ReturnsSet {
		cte.Raw(" subzero_source as ( select * from ")
		cte.Append(call)
		cte.Raw(" as subzero_scalar_source )")
	} else {
		cte.Raw(" subzero_source as ( select ")
		cte.Append(call)
		cte.Raw(" as subzero_scalar )")
	}

	body, err = fmtMutationBody(returnRepresentation, schemaName, q, qiSource, d)
	return cte, body, err
}

func fmtBody(p value.Payload) *snippet.Snippet {
	s := snippet.New()
	s.Raw(" subzero_payload as ( select ")
	s.Bind(snippet.Param{Value: p.Text, Cast: "json"})
	s.Raw("::json as json_data ), subzero_body as ( select case when json_typeof(json_data) = 'array' then json_data else json_build_array(json_data) end as val from subzero_payload )")
	return s
}

func renderReturningList(cols []string, d Dialect) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if c == "*" {
			parts[i] = "*"
		} else {
			parts[i] = d.QuoteIdent(c)
		}
	}
	return joinStrings(parts, ",")
}

func renderReturningListAgainst(table string, cols []string, d Dialect) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if c == "*" {
			parts[i] = table + ".*"
		} else {
			parts[i] = table + "." + c
		}
	}
	return joinStrings(parts, ",")
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func fmtCountQuery(schemaName, wrapName string, q *ir.Query, d Dialect) (*snippet.Snippet, error) {
	s := snippet.New()
	s.Raw(" " + wrapName + " as ( ")

	switch q.Kind {
	case ir.NodeSelect:
		qi := schema.Qi{Schema: schemaName, Name: q.Qi.Name}
		s.Raw("select 1 from " + fmtQi(qi, d))
		for _, jt := range q.JoinTables {
			s.Raw(", " + fmtQi(schema.Qi{Schema: schemaName, Name: jt.Name}, d))
		}
		s.Raw(" ")
		if q.Where != nil && len(q.Where.Conditions) > 0 {
			s.Raw("where ")
			cond, err := fmtConditionTree(qi, *q.Where, d)
			if err != nil {
				return nil, err
			}
			s.Append(cond)
		}
	default:
		s.Raw("select 1 from " + d.QuoteIdent("subzero_source"))
	}
	s.Raw(" )")
	return s, nil
}

// fmtConditionTree mirrors fmt_condition_tree: join the rendered
// conditions with " and ", whatever the tree's own operator (no
// grouping parens — the caller wraps in a Group condition when parens
// are needed; fmtConditionTreeWithOp honors the operator).
func fmtConditionTree(qi schema.Qi, t value.ConditionTree, d Dialect) (*snippet.Snippet, error) {
	return fmtConditions(qi, t.Conditions, d)
}

func fmtConditions(qi schema.Qi, conds []value.Condition, d Dialect) (*snippet.Snippet, error) {
	if len(conds) == 0 {
		return snippet.New(), nil
	}
	parts := make([]*snippet.Snippet, len(conds))
	for i, c := range conds {
		p, err := fmtCondition(qi, c, d)
		if err != nil {
			return nil, err
		}
		parts[i] = p
	}
	return snippet.Join(parts, " and "), nil
}

func fmtCondition(qi schema.Qi, c value.Condition, d Dialect) (*snippet.Snippet, error) {
	s := snippet.New()
	switch c.Kind {
	case value.CondSingle:
		field := fmtField(qi, c.Field, d)
		filterSnip, err := fmtFilter(c.Filter, d)
		if err != nil {
			return nil, err
		}
		if c.Negate {
			s.Raw("not(" + field + " ")
			s.Append(filterSnip)
			s.Raw(")")
		} else {
			s.Raw(field + " ")
			s.Append(filterSnip)
		}
	case value.CondForeign:
		leftQi := schema.Qi{Schema: c.LeftQi.Schema, Name: c.LeftQi.Name}
		rightQi := schema.Qi{Schema: c.RightQi.Schema, Name: c.RightQi.Name}
		s.Raw(fmtField(leftQi, c.LeftField, d) + " = " + fmtField(rightQi, c.RightField, d))
	case value.CondGroup:
		inner, err := fmtConditionTreeWithOp(qi, c.Tree, d)
		if err != nil {
			return nil, err
		}
		if c.Negate {
			s.Raw("not(")
			s.Append(inner)
			s.Raw(")")
		} else {
			s.Raw("(")
			s.Append(inner)
			s.Raw(")")
		}
	case value.CondRaw:
		s.Raw(c.SQL)
	}
	return s, nil
}

// fmtConditionTreeWithOp is fmtConditionTree but honors the tree's own
// logic operator instead of always defaulting to "and" — used inside a
// Group, where the operator was chosen deliberately (e.g. the
// permissive-policy OR-group the permission engine builds).
func fmtConditionTreeWithOp(qi schema.Qi, t value.ConditionTree, d Dialect) (*snippet.Snippet, error) {
	if len(t.Conditions) == 0 {
		return snippet.New(), nil
	}
	sep := " and "
	if t.Operator == value.Or {
		sep = " or "
	}
	parts := make([]*snippet.Snippet, len(t.Conditions))
	for i, c := range t.Conditions {
		p, err := fmtCondition(qi, c, d)
		if err != nil {
			return nil, err
		}
		parts[i] = p
	}
	return snippet.Join(parts, sep), nil
}

func fmtFilter(f value.Filter, d Dialect) (*snippet.Snippet, error) {
	s := snippet.New()
	switch f.Kind {
	case value.FilterOp:
		s.Raw(f.Op + " ")
		s.Bind(snippet.Param{Value: f.Val.Text, Cast: f.Val.Cast})
	case value.FilterIn:
		s.Raw("= any(")
		s.Bind(snippet.Param{Value: joinStrings(f.List.Items, ","), Cast: f.List.Cast})
		s.Raw(")")
	case value.FilterIs:
		s.Raw("is " + trileanText(f.Tri))
	case value.FilterFts:
		fn := "to_tsquery"
		switch f.FtsOp {
		case "plfts":
			fn = "plainto_tsquery"
		case "phfts":
			fn = "phraseto_tsquery"
		case "wfts":
			fn = "websearch_to_tsquery"
		}
		s.Raw("@@ " + fn + "(")
		if f.FtsLang != nil {
			s.Bind(snippet.Param{Value: f.FtsLang.Text})
			s.Raw(",")
		}
		s.Bind(snippet.Param{Value: f.Val.Text, Cast: f.Val.Cast})
		s.Raw(")")
	case value.FilterCol:
		s.Raw("= " + fmtField(schema.Qi{Schema: f.ColQi.Schema, Name: f.ColQi.Name}, f.ColField, d))
	case value.FilterEnv:
		s.Raw(f.Op + " " + fmtEnvVar(f.Env, d))
	}
	return s, nil
}

func trileanText(t value.Trilean) string {
	switch t {
	case value.TriTrue:
		return "true"
	case value.TriFalse:
		return "false"
	case value.TriNull:
		return "null"
	default:
		return "unknown"
	}
}

func fmtEnvVar(e value.EnvVar, d Dialect) string {
	return "(select " + d.QuoteIdent(e.Name) + " from env)"
}

func fmtField(qi schema.Qi, f value.Field, d Dialect) string {
	base := fmtQi(qi, d)
	sep := "."
	if base == "" {
		sep = ""
	}
	ident := d.QuoteIdent(f.Name)
	if len(f.JSONPath) == 0 {
		return base + sep + ident
	}
	steps := make([]JSONStep, len(f.JSONPath))
	for i, op := range f.JSONPath {
		steps[i] = JSONStep{
			AsText:  op.Kind == value.J2Arrow,
			Key:     op.Operand.Key,
			IsIndex: op.Operand.IsIndex,
			Index:   op.Operand.IndexVal,
		}
	}
	return d.JSONPath(base+sep+ident, steps)
}

func fmtSelectItem(qi schema.Qi, item ir.SelectItem, d Dialect) (*snippet.Snippet, error) {
	s := snippet.New()
	switch item.Kind {
	case ir.ItemStar:
		s.Raw(fmtQi(qi, d) + ".*")
	case ir.ItemSimple:
		field := fmtField(qi, item.Field, d)
		if item.Cast != "" {
			s.Raw("cast(" + field + " as " + item.Cast + ")")
		} else {
			s.Raw(field)
		}
		s.Raw(fmtAs(item.Field.Name, item.Alias, d))
	case ir.ItemFunc:
		s.Raw(d.QuoteIdent(item.FuncName) + "(" + fmtField(qi, item.Field, d) + ")")
		s.Raw(fmtWindowOver(qi, item, d))
		s.Raw(fmtAs(item.FuncName, item.Alias, d))
	}
	return s, nil
}

// fmtWindowOver renders the OVER(...) clause for an ItemFunc select item
// carrying partition and/or order window modifiers; an item with neither
// renders as a plain (non-windowed) call.
func fmtWindowOver(qi schema.Qi, item ir.SelectItem, d Dialect) string {
	if len(item.Partitions) == 0 && len(item.Orders) == 0 {
		return ""
	}
	var clauses []string
	if len(item.Partitions) > 0 {
		parts := make([]string, len(item.Partitions))
		for i, f := range item.Partitions {
			parts[i] = fmtField(qi, f, d)
		}
		clauses = append(clauses, "partition by "+joinStrings(parts, ", "))
	}
	if len(item.Orders) > 0 {
		terms := make([]string, len(item.Orders))
		for i, t := range item.Orders {
			dir := "asc"
			if t.Direction == ir.OrderDesc {
				dir = "desc"
			}
			nulls := ""
			switch t.Nulls {
			case ir.NullsFirst:
				nulls = "nulls first"
			case ir.NullsLast:
				nulls = "nulls last"
			}
			terms[i] = joinStrings(filterEmpty([]string{fmtField(qi, t.Field, d), dir, nulls}), " ")
		}
		clauses = append(clauses, "order by "+joinStrings(terms, ", "))
	}
	return " over (" + joinStrings(clauses, " ") + ")"
}

func fmtAs(name, alias string, d Dialect) string {
	if alias == "" {
		return ""
	}
	return " as " + d.QuoteIdent(alias)
}

func fmtGroupBy(qi schema.Qi, terms []ir.GroupByTerm, d Dialect) string {
	if len(terms) == 0 {
		return ""
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = fmtFieldPlain(qi, t.Field, d)
	}
	return "group by " + joinStrings(parts, ", ")
}

func fmtFieldPlain(qi schema.Qi, f value.Field, d Dialect) string {
	base := fmtQiPlain(qi, d)
	sep := "."
	if base == "" {
		sep = ""
	}
	return base + sep + d.QuoteIdent(f.Name)
}

func fmtQiPlain(qi schema.Qi, d Dialect) string {
	if qi.Schema == "" && qi.Name == "" {
		return ""
	}
	if qi.Schema == "" {
		return d.QuoteIdent(qi.Name)
	}
	return d.QuoteIdent(qi.Schema) + "." + d.QuoteIdent(qi.Name)
}

func fmtOrder(terms []ir.OrderTerm, d Dialect) string {
	if len(terms) == 0 {
		return ""
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		dir := ""
		if t.Direction == ir.OrderDesc {
			dir = "desc"
		} else {
			dir = "asc"
		}
		nulls := ""
		switch t.Nulls {
		case ir.NullsFirst:
			nulls = "nulls first"
		case ir.NullsLast:
			nulls = "nulls last"
		}
		parts[i] = joinStrings(filterEmpty([]string{fmtFieldPlain(schema.Qi{}, t.Field, d), dir, nulls}), " ")
	}
	return "order by " + joinStrings(parts, ", ")
}

func filterEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func fmtQi(qi schema.Qi, d Dialect) string {
	if qi.Schema == "" && qi.Name == "" {
		return ""
	}
	if qi.Schema == "" {
		return d.QuoteIdent(qi.Name)
	}
	return d.QuoteIdent(qi.Schema) + "." + d.QuoteIdent(qi.Name)
}
