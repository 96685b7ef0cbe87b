package urlparser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hbcbh1999/subzero-go/core/internal/ir"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

func emptyCatalog() *schema.Catalog {
	return schema.NewCatalog(true)
}

func TestParseSelect_SimpleFilter(t *testing.T) {
	req := Request{
		Schema: "api",
		Root:   "projects",
		Method: MethodGet,
		Params: []KV{{Key: "id", Value: "not.gt.10"}},
	}
	q, _, err := Parse(req, emptyCatalog())
	require.NoError(t, err)
	require.Equal(t, ir.NodeSelect, q.Kind)
	require.NotNil(t, q.Where)
	require.Len(t, q.Where.Conditions, 1)
	cond := q.Where.Conditions[0]
	require.True(t, cond.Negate)
	require.Equal(t, "id", cond.Field.Name)
}

func TestParseSelect_EmbeddedResourcesAndLogicTree(t *testing.T) {
	req := Request{
		Schema: "api",
		Root:   "projects",
		Method: MethodGet,
		Params: []KV{
			{Key: "select", Value: "id,name,clients(id),tasks(id)"},
			{Key: "id", Value: "not.gt.10"},
			{Key: "tasks.id", Value: "lt.500"},
			{Key: "not.or", Value: "(id.eq.11,id.eq.12)"},
			{Key: "tasks.or", Value: "(id.eq.11,id.eq.12)"},
		},
	}
	q, _, err := Parse(req, emptyCatalog())
	require.NoError(t, err)
	require.Equal(t, ir.NodeSelect, q.Kind)

	var clients, tasks *ir.SubSelect
	for i := range q.Select {
		item := q.Select[i]
		if item.Kind != ir.ItemSubSelect {
			continue
		}
		switch item.SubSelect.Alias {
		case "clients":
			clients = item.SubSelect
		case "tasks":
			tasks = item.SubSelect
		}
	}
	require.NotNil(t, clients, "expected a clients sub-select")
	require.NotNil(t, tasks, "expected a tasks sub-select")

	require.NotNil(t, tasks.Query.Where)
	require.Len(t, tasks.Query.Where.Conditions, 2)

	require.NotNil(t, q.Where)
	foundNegatedGroup := false
	for _, c := range q.Where.Conditions {
		if c.Kind == value.CondGroup && c.Negate {
			foundNegatedGroup = true
		}
	}
	require.True(t, foundNegatedGroup, "expected the not.or group to survive parsing")
}

func TestParsePut_RequiresFullPKFilter(t *testing.T) {
	req := Request{
		Schema: "api",
		Root:   "items",
		Method: MethodPut,
		Params: []KV{{Key: "id", Value: "neq.2"}},
		Body:   []byte(`{"id":2,"name":"x"}`),
	}
	_, _, err := Parse(req, emptyCatalog())
	require.Error(t, err)
}

func TestParsePut_AcceptsEqPKFilter(t *testing.T) {
	req := Request{
		Schema: "api",
		Root:   "items",
		Method: MethodPut,
		Params: []KV{{Key: "id", Value: "eq.2"}},
		Body:   []byte(`{"id":2,"name":"x"}`),
	}
	q, _, err := Parse(req, emptyCatalog())
	require.NoError(t, err)
	require.Equal(t, ir.NodeInsert, q.Kind)
	require.True(t, q.MergeDuplicates)
	require.Equal(t, []string{"id"}, q.OnConflict)
}

func TestParseInsert_CSVContentType(t *testing.T) {
	req := Request{
		Schema:      "api",
		Root:        "items",
		Method:      MethodPost,
		ContentType: "text/csv",
		Body:        []byte("id,name\n1,a\n2,b\n"),
	}
	q, _, err := Parse(req, emptyCatalog())
	require.NoError(t, err)
	require.Equal(t, ir.NodeInsert, q.Kind)
	require.Equal(t, []string{"id", "name"}, q.Columns)
	require.Contains(t, q.Payload.Text, `"id":"1"`)
}

func TestParseInsert_DefaultContentTypeIsJSON(t *testing.T) {
	req := Request{
		Schema: "api",
		Root:   "items",
		Method: MethodPost,
		Body:   []byte(`{"id":1,"name":"a"}`),
	}
	q, _, err := Parse(req, emptyCatalog())
	require.NoError(t, err)
	require.Equal(t, ir.NodeInsert, q.Kind)
	require.ElementsMatch(t, []string{"id", "name"}, q.Columns)
}

func TestParseSelect_WindowFunctionModifiers(t *testing.T) {
	req := Request{
		Schema: "api",
		Root:   "tasks",
		Method: MethodGet,
		Params: []KV{{Key: "select", Value: "id,$rank()-p(project_id)-o(created_at.desc)"}},
	}
	q, _, err := Parse(req, emptyCatalog())
	require.NoError(t, err)
	require.Len(t, q.Select, 2)
	fn := q.Select[1]
	require.Equal(t, ir.ItemFunc, fn.Kind)
	require.Equal(t, "rank", fn.FuncName)
	require.Equal(t, []value.Field{{Name: "project_id"}}, fn.Partitions)
	require.Len(t, fn.Orders, 1)
	require.Equal(t, "created_at", fn.Orders[0].Field.Name)
	require.Equal(t, ir.OrderDesc, fn.Orders[0].Direction)
}

func TestParseSelect_FunctionWithoutWindowModifiersIsPlain(t *testing.T) {
	req := Request{
		Schema: "api",
		Root:   "tasks",
		Method: MethodGet,
		Params: []KV{{Key: "select", Value: "$count(id)"}},
	}
	q, _, err := Parse(req, emptyCatalog())
	require.NoError(t, err)
	require.Len(t, q.Select, 1)
	require.Nil(t, q.Select[0].Partitions)
	require.Nil(t, q.Select[0].Orders)
}

func TestParseDelete_RejectsOrderLimit(t *testing.T) {
	req := Request{
		Schema: "api",
		Root:   "items",
		Method: MethodDelete,
		Params: []KV{{Key: "id", Value: "eq.2"}, {Key: "order", Value: "id.asc"}},
	}
	_, _, err := Parse(req, emptyCatalog())
	require.Error(t, err)
}

func TestParseSelect_DepthGuard(t *testing.T) {
	sel := "a(b(c(d(e(f(g(h(i(j(k(*))))))))))))"
	req := Request{
		Schema: "api",
		Root:   "root",
		Method: MethodGet,
		Params: []KV{{Key: "select", Value: sel}},
	}
	_, _, err := Parse(req, emptyCatalog())
	require.Error(t, err)
}

func TestParsePreferences(t *testing.T) {
	p := parsePreferences("return=representation, count=exact")
	require.Equal(t, "representation", p.Return)
	require.Equal(t, "exact", p.Count)
}
