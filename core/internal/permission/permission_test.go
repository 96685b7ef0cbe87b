package permission

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hbcbh1999/subzero-go/core/internal/ir"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/value"
)

func catalogWithPolicies() *schema.Catalog {
	cat := schema.NewCatalog(true)

	tasks := &schema.Object{
		Kind: schema.KindTable,
		Name: schema.Qi{Schema: "api", Name: "tasks"},
		Columns: map[string]schema.Column{
			"id":      {Name: "id", PrimaryKey: true},
			"title":   {Name: "title"},
			"team_id": {Name: "team_id"},
			"secret":  {Name: "secret"},
		},
	}
	tasks.Permissions = schema.NewPermissions()
	tasks.Permissions.Grants[schema.RolePublic] = schema.Grant{
		Select: true, Insert: true, Update: true, Delete: true,
		ColsSelect: schema.SpecificColumns([]string{"id", "title", "team_id"}),
		ColsInsert: schema.SpecificColumns([]string{"title", "team_id"}),
		ColsUpdate: schema.SpecificColumns([]string{"title"}),
	}
	ownTeam := value.Single(value.Field{Name: "team_id"}, value.NewOpFilter("eq", value.SingleVal{Text: "42"}), false)
	tasks.Permissions.Policies[schema.PolicyKey{Role: schema.RolePublic, Action: schema.ActionSelect}] = []schema.Policy{
		{Restrictive: false, Using: []value.Condition{ownTeam}},
	}
	tasks.Permissions.Policies[schema.PolicyKey{Role: schema.RolePublic, Action: schema.ActionInsert}] = []schema.Policy{
		{Restrictive: false, Check: []value.Condition{ownTeam}},
	}
	cat.AddObject("api", tasks)

	private := &schema.Object{
		Kind:    schema.KindTable,
		Name:    schema.Qi{Schema: "api", Name: "private"},
		Columns: map[string]schema.Column{"id": {Name: "id", PrimaryKey: true}},
	}
	private.Permissions = schema.NewPermissions()
	private.Permissions.Grants[schema.RolePublic] = schema.Grant{Select: true, ColsSelect: schema.AllColumns()}
	cat.AddObject("api", private)

	return cat
}

func TestApply_PermissivePolicyBecomesOrGroup(t *testing.T) {
	cat := catalogWithPolicies()
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "tasks"})
	q.Select = []ir.SelectItem{{Kind: ir.ItemSimple, Field: value.Field{Name: "title"}}}

	err := Apply(q, cat, schema.RolePublic, nil)
	require.NoError(t, err)
	require.NotNil(t, q.Where)
	require.Len(t, q.Where.Conditions, 1)
	require.Equal(t, value.CondGroup, q.Where.Conditions[0].Kind)
	require.Equal(t, value.And, q.Where.Conditions[0].Tree.Operator)
}

func TestApply_NoPolicyDeniesAll(t *testing.T) {
	cat := catalogWithPolicies()
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "private"})
	q.Select = []ir.SelectItem{{Kind: ir.ItemSimple, Field: value.Field{Name: "id"}}}

	err := Apply(q, cat, schema.RolePublic, nil)
	require.NoError(t, err)
	require.NotNil(t, q.Where)
	group := q.Where.Conditions[0]
	require.Equal(t, value.CondGroup, group.Kind)
	require.Equal(t, value.CondRaw, group.Tree.Conditions[0].Kind)
	require.Equal(t, "false", group.Tree.Conditions[0].SQL)
}

func TestApply_InsertGetsCheckFromPolicy(t *testing.T) {
	cat := catalogWithPolicies()
	q := ir.NewInsert(schema.Qi{Schema: "api", Name: "tasks"}, value.Payload{})

	err := Apply(q, cat, schema.RolePublic, nil)
	require.NoError(t, err)
	require.Len(t, q.Check, 1)
	require.Equal(t, value.CondGroup, q.Check[0].Kind)
}

func TestApply_InsufficientColumnPrivilegeDenied(t *testing.T) {
	cat := catalogWithPolicies()
	q := ir.NewInsert(schema.Qi{Schema: "api", Name: "tasks"}, value.Payload{})
	q.Returning = []string{"secret"}

	err := Apply(q, cat, schema.RolePublic, nil)
	require.Error(t, err)
}

func TestApply_InsertRejectsUngrantedColumn(t *testing.T) {
	cat := catalogWithPolicies()
	q := ir.NewInsert(schema.Qi{Schema: "api", Name: "tasks"}, value.Payload{})
	q.Columns = []string{"title", "secret"}

	err := Apply(q, cat, schema.RolePublic, nil)
	require.Error(t, err)
}

func TestApply_UnsafeFunctionRejected(t *testing.T) {
	cat := catalogWithPolicies()
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "tasks"})
	q.Select = []ir.SelectItem{{Kind: ir.ItemFunc, FuncName: "pg_sleep", Field: value.Field{Name: "id"}}}

	err := Apply(q, cat, schema.RolePublic, map[string]bool{"count": true})
	require.Error(t, err)
}

func TestApply_SafeFunctionAllowed(t *testing.T) {
	cat := catalogWithPolicies()
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "tasks"})
	q.Select = []ir.SelectItem{{Kind: ir.ItemFunc, FuncName: "count", Field: value.Field{Name: "id"}}}

	err := Apply(q, cat, schema.RolePublic, map[string]bool{"count": true})
	require.NoError(t, err)
}

func TestApply_NativePermissionsSkipsEverything(t *testing.T) {
	cat := catalogWithPolicies()
	cat.UseInternalPermissions = false
	q := ir.NewSelect(schema.Qi{Schema: "api", Name: "private"})

	err := Apply(q, cat, schema.RolePublic, nil)
	require.NoError(t, err)
	require.Nil(t, q.Where)
}
