package formatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hbcbh1999/subzero-go/core/internal/ir"
	"github.com/hbcbh1999/subzero-go/core/internal/formatter/mysql"
	"github.com/hbcbh1999/subzero-go/core/internal/formatter/postgres"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

func TestFormat_SimpleSelect(t *testing.T) {
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "tasks"})
	q.Select = []ir.SelectItem{
		{Kind: ir.ItemSimple, Field: value.Field{Name: "id"}},
		{Kind: ir.ItemSimple, Field: value.Field{Name: "title"}},
	}
	q.Where = &value.ConditionTree{
		Operator: value.And,
		Conditions: []value.Condition{
			value.Single(value.Field{Name: "title"}, value.NewOpFilter("eq", value.SingleVal{Text: "buy milk"}), false),
		},
	}

	res, err := Format(q, Request{Schema: "api", Method: "GET", AcceptContentType: ApplicationJSON, ReturnRepresentation: true}, postgres.New())
	require.NoError(t, err)
	require.Contains(t, res.SQL, `"api"."tasks"`)
	require.Contains(t, res.SQL, `"title" eq $`)
	require.Equal(t, []string{"buy milk"}, res.Params)
}

func TestFormat_SelectWithChildEmbed(t *testing.T) {
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "actors"})
	q.Select = []ir.SelectItem{
		{Kind: ir.ItemSimple, Field: value.Field{Name: "id"}},
		{
			Kind: ir.ItemSubSelect,
			SubSelect: &ir.SubSelect{
				Alias: "films",
				Query: ir.NewSelect(schema.Qi{Schema: "api", Name: "films"}),
				Join: ir.Join{
					Kind: ir.JoinChild,
					FK:   schema.ForeignKey{Table: schema.Qi{Schema: "api", Name: "films"}, ReferencedTable: schema.Qi{Schema: "api", Name: "actors"}},
				},
			},
		},
	}
	q.Select[1].SubSelect.Query.Select = []ir.SelectItem{{Kind: ir.ItemSimple, Field: value.Field{Name: "title"}}}

	res, err := Format(q, Request{Schema: "api", Method: "GET", AcceptContentType: ApplicationJSON, ReturnRepresentation: true}, postgres.New())
	require.NoError(t, err)
	require.Contains(t, res.SQL, "json_agg")
	require.Contains(t, res.SQL, `as "films"`)
}

func TestFormat_MySQLOrderAndGroupByUseBacktickQuoting(t *testing.T) {
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "tasks"})
	q.Select = []ir.SelectItem{
		{Kind: ir.ItemSimple, Field: value.Field{Name: "status"}},
	}
	q.GroupBy = []ir.GroupByTerm{{Field: value.Field{Name: "status"}}}
	q.Order = []ir.OrderTerm{{Field: value.Field{Name: "status"}, Direction: ir.OrderAsc}}

	res, err := Format(q, Request{Schema: "api", Method: "GET", AcceptContentType: ApplicationJSON, ReturnRepresentation: true}, mysql.New())
	require.NoError(t, err)
	require.Contains(t, res.SQL, "group by `api`.`tasks`.`status`")
	require.Contains(t, res.SQL, "order by `status` asc")
	require.NotContains(t, res.SQL, `"status"`)
}

func TestFormat_WindowFunctionRendersOverClause(t *testing.T) {
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "tasks"})
	q.Select = []ir.SelectItem{
		{
			Kind:       ir.ItemFunc,
			FuncName:   "rank",
			Alias:      "r",
			Partitions: []value.Field{{Name: "project_id"}},
			Orders:     []ir.OrderTerm{{Field: value.Field{Name: "created_at"}, Direction: ir.OrderDesc}},
		},
	}

	res, err := Format(q, Request{Schema: "api", Method: "GET", AcceptContentType: ApplicationJSON, ReturnRepresentation: true}, postgres.New())
	require.NoError(t, err)
	require.Contains(t, res.SQL, `over (partition by "api"."tasks"."project_id" order by "api"."tasks"."created_at" desc)`)
}

func TestFormat_PlainFunctionHasNoOverClause(t *testing.T) {
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "tasks"})
	q.Select = []ir.SelectItem{
		{Kind: ir.ItemFunc, FuncName: "count", Field: value.Field{Name: "id"}, Alias: "c"},
	}

	res, err := Format(q, Request{Schema: "api", Method: "GET", AcceptContentType: ApplicationJSON, ReturnRepresentation: true}, postgres.New())
	require.NoError(t, err)
	require.NotContains(t, res.SQL, "over (")
}

func TestFormat_Insert(t *testing.T) {
	q := ir.NewInsert(schema.Qi{Schema: "api", Name: "tasks"}, value.Payload{Text: `{"title":"x"}`})
	q.Columns = []string{"title"}
	q.Returning = []string{"id", "title"}

	res, err := Format(q, Request{Schema: "api", Method: "POST", AcceptContentType: ApplicationJSON, ReturnRepresentation: true}, postgres.New())
	require.NoError(t, err)
	require.Contains(t, res.SQL, "insert into")
	require.Contains(t, res.SQL, "subzero_source")
	require.Contains(t, strings.ToLower(res.SQL), "returning")
}

func TestFormat_DeniedPolicyRendersFalse(t *testing.T) {
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "private"})
	q.Select = []ir.SelectItem{{Kind: ir.ItemSimple, Field: value.Field{Name: "id"}}}
	q.Where = &value.ConditionTree{
		Operator: value.And,
		Conditions: []value.Condition{
			value.Group(false, value.ConditionTree{Operator: value.And, Conditions: []value.Condition{value.Raw("false")}}),
		},
	}

	res, err := Format(q, Request{Schema: "api", Method: "GET", AcceptContentType: ApplicationJSON, ReturnRepresentation: true}, postgres.New())
	require.NoError(t, err)
	require.Contains(t, res.SQL, "(false)")
}

func TestFormat_UnsupportedContentType(t *testing.T) {
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "tasks"})
	_, err := Format(q, Request{Schema: "api", Method: "GET", AcceptContentType: ContentType(99), ReturnRepresentation: true}, postgres.New())
	require.Error(t, err)
}
