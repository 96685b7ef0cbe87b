package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hbcbh1999/subzero-go/core/internal/ir"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

func buildCatalog() *schema.Catalog {
	cat := schema.NewCatalog(true)

	clients := &schema.Object{Kind: schema.KindTable, Name: schema.Qi{Schema: "api", Name: "clients"},
		Columns: map[string]schema.Column{"id": {Name: "id", PrimaryKey: true}}}
	cat.AddObject("api", clients)

	projects := &schema.Object{Kind: schema.KindTable, Name: schema.Qi{Schema: "api", Name: "projects"},
		Columns: map[string]schema.Column{
			"id":        {Name: "id", PrimaryKey: true},
			"client_id": {Name: "client_id"},
		},
		ForeignKeys: []schema.ForeignKey{{
			Name: "projects_client_id_fkey", Table: schema.Qi{Schema: "api", Name: "projects"},
			Columns: []string{"client_id"},
			ReferencedTable: schema.Qi{Schema: "api", Name: "clients"}, ReferencedColumns: []string{"id"},
		}},
	}
	cat.AddObject("api", projects)

	tasks := &schema.Object{Kind: schema.KindTable, Name: schema.Qi{Schema: "api", Name: "tasks"},
		Columns: map[string]schema.Column{
			"id":         {Name: "id", PrimaryKey: true},
			"project_id": {Name: "project_id"},
		},
		ForeignKeys: []schema.ForeignKey{{
			Name: "tasks_project_id_fkey", Table: schema.Qi{Schema: "api", Name: "tasks"},
			Columns: []string{"project_id"},
			ReferencedTable: schema.Qi{Schema: "api", Name: "projects"}, ReferencedColumns: []string{"id"},
		}},
	}
	cat.AddObject("api", tasks)

	users := &schema.Object{Kind: schema.KindTable, Name: schema.Qi{Schema: "api", Name: "users"},
		Columns: map[string]schema.Column{"id": {Name: "id", PrimaryKey: true}}}
	cat.AddObject("api", users)

	usersTasks := &schema.Object{Kind: schema.KindTable, Name: schema.Qi{Schema: "api", Name: "users_tasks"},
		Columns: map[string]schema.Column{"user_id": {Name: "user_id"}, "task_id": {Name: "task_id"}},
		ForeignKeys: []schema.ForeignKey{
			{Name: "user_id_fk", Table: schema.Qi{Schema: "api", Name: "users_tasks"}, Columns: []string{"user_id"},
				ReferencedTable: schema.Qi{Schema: "api", Name: "users"}, ReferencedColumns: []string{"id"}},
			{Name: "task_id_fk", Table: schema.Qi{Schema: "api", Name: "users_tasks"}, Columns: []string{"task_id"},
				ReferencedTable: schema.Qi{Schema: "api", Name: "tasks"}, ReferencedColumns: []string{"id"}},
		},
	}
	cat.AddObject("api", usersTasks)

	for _, obj := range []*schema.Object{clients, projects, tasks, users, usersTasks} {
		obj.Permissions = schema.NewPermissions()
		obj.Permissions.Grants[schema.RolePublic] = schema.Grant{
			Select: true, ColsSelect: schema.AllColumns(),
		}
	}
	return cat
}

func TestResolve_ParentAndChildJoin(t *testing.T) {
	cat := buildCatalog()
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "projects"})
	q.Select = []ir.SelectItem{
		{Kind: ir.ItemSimple, Field: value.Field{Name: "id"}},
		{Kind: ir.ItemSubSelect, SubSelect: &ir.SubSelect{
			Query: ir.NewSelect(schema.Qi{Name: "clients"}),
			Alias: "clients",
		}},
		{Kind: ir.ItemSubSelect, SubSelect: &ir.SubSelect{
			Query: ir.NewSelect(schema.Qi{Name: "tasks"}),
			Alias: "tasks",
		}},
	}
	err := Resolve(q, cat, schema.RolePublic)
	require.NoError(t, err)

	var clientsSub, tasksSub *ir.SubSelect
	for _, item := range q.Select {
		if item.Kind != ir.ItemSubSelect {
			continue
		}
		switch item.SubSelect.Alias {
		case "clients":
			clientsSub = item.SubSelect
		case "tasks":
			tasksSub = item.SubSelect
		}
	}
	require.NotNil(t, clientsSub)
	require.Equal(t, ir.JoinParent, clientsSub.Join.Kind)
	require.NotNil(t, tasksSub)
	require.Equal(t, ir.JoinChild, tasksSub.Join.Kind)
	require.NotNil(t, tasksSub.Query.Where)
}

func TestResolve_ManyToMany(t *testing.T) {
	cat := buildCatalog()
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "users"})
	q.Select = []ir.SelectItem{
		{Kind: ir.ItemSubSelect, SubSelect: &ir.SubSelect{
			Query: ir.NewSelect(schema.Qi{Name: "tasks"}),
			Alias: "tasks",
		}},
	}
	err := Resolve(q, cat, schema.RolePublic)
	require.NoError(t, err)

	sub := q.Select[0].SubSelect
	require.Equal(t, ir.JoinMany, sub.Join.Kind)
	require.Equal(t, "users_tasks", sub.Join.Junction.Name)
	require.Len(t, sub.Query.JoinTables, 1)
}

func TestResolve_ManyToManyMutationReturning(t *testing.T) {
	cat := buildCatalog()
	for _, name := range []string{"users"} {
		obj, _ := cat.GetObject("api", name)
		obj.Permissions.Grants[schema.RolePublic] = schema.Grant{
			Select: true, Insert: true,
			ColsSelect: schema.AllColumns(), ColsInsert: schema.AllColumns(),
		}
	}

	q := ir.NewInsert(schema.Qi{Schema: "api", Name: "users"}, value.Payload{Text: `{"id":1}`})
	q.Select = []ir.SelectItem{
		{Kind: ir.ItemSubSelect, SubSelect: &ir.SubSelect{
			Query: ir.NewSelect(schema.Qi{Name: "tasks"}),
			Alias: "tasks",
		}},
	}
	err := Resolve(q, cat, schema.RolePublic)
	require.NoError(t, err)

	sub := q.Select[0].SubSelect
	require.Equal(t, ir.JoinMany, sub.Join.Kind)
	require.Equal(t, []string{"id"}, sub.Join.ParentFK.ReferencedColumns)
	// The returning set must carry the parent's own PK column (via
	// ParentFK.ReferencedColumns) so the many-to-many embed can re-join the
	// mutated row, even though "id" is never named directly in Select.
	require.Equal(t, []string{"id"}, q.Returning)
}

func TestResolve_StarExpansion(t *testing.T) {
	cat := buildCatalog()
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "clients"})
	q.Select = []ir.SelectItem{{Kind: ir.ItemStar}}
	err := Resolve(q, cat, schema.RolePublic)
	require.NoError(t, err)
	require.Len(t, q.Select, 1)
	require.Equal(t, ir.ItemSimple, q.Select[0].Kind)
	require.Equal(t, "id", q.Select[0].Field.Name)
}

func TestResolve_NoRelationError(t *testing.T) {
	cat := buildCatalog()
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "clients"})
	q.Select = []ir.SelectItem{
		{Kind: ir.ItemSubSelect, SubSelect: &ir.SubSelect{
			Query: ir.NewSelect(schema.Qi{Name: "users"}),
			Alias: "users",
		}},
	}
	err := Resolve(q, cat, schema.RolePublic)
	require.Error(t, err)
}
