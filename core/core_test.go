package core_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hbcbh1999/subzero-go/core"
	"github.com/hbcbh1999/subzero-go/core/internal/formatter"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/urlparser"
)

func tasksCatalog(useInternal bool) *schema.Catalog {
	cat := schema.NewCatalog(useInternal)
	cat.AddObject("api", &schema.Object{
		Kind: schema.KindTable,
		Name: schema.Qi{Schema: "api", Name: "tasks"},
		Columns: map[string]schema.Column{
			"id":    {Name: "id", DataType: "int8", PrimaryKey: true},
			"title": {Name: "title", DataType: "text"},
		},
		Permissions: schema.Permissions{
			Grants: map[schema.Role]schema.Grant{
				schema.RolePublic: {Select: true, Insert: true, ColsSelect: schema.AllColumns(), ColsInsert: schema.AllColumns()},
			},
			Policies: map[schema.PolicyKey][]schema.Policy{},
		},
	})
	return cat
}

func TestCompile_SimpleSelect(t *testing.T) {
	cat := tasksCatalog(true)
	cfg := &core.Config{DBType: "postgresql", UseInternalPermissions: true}

	req := core.Request{
		Schema: "api",
		Root:   "tasks",
		Method: core.MethodGet,
		Params: nil,
	}

	out, err := core.Compile(cfg, cat, schema.RolePublic, req, formatter.ApplicationJSON, nil)
	require.NoError(t, err)
	require.Contains(t, out.SQL, `"api"."tasks"`)
}

func TestCompile_UnsupportedDBType(t *testing.T) {
	cat := tasksCatalog(true)
	cfg := &core.Config{DBType: "oracle"}

	_, err := core.Compile(cfg, cat, schema.RolePublic, core.Request{Schema: "api", Root: "tasks", Method: core.MethodGet}, formatter.ApplicationJSON, nil)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "oracle"))
}

func TestCompile_PreferencesRoundTrip(t *testing.T) {
	cat := tasksCatalog(true)
	cfg := &core.Config{DBType: "postgresql", UseInternalPermissions: true}

	req := core.Request{
		Schema: "api",
		Root:   "tasks",
		Method: core.MethodGet,
		Prefer: "return=representation,resolution=merge-duplicates",
	}

	out, err := core.Compile(cfg, cat, schema.RolePublic, req, formatter.ApplicationJSON, nil)
	require.NoError(t, err)

	want := urlparser.Preferences{Resolution: "merge-duplicates", Return: "representation"}
	if diff := cmp.Diff(want, out.Preferences); diff != "" {
		t.Errorf("Preferences mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_ClickhouseRejectsExactCount(t *testing.T) {
	cat := tasksCatalog(true)
	cfg := &core.Config{DBType: "clickhouse"}

	req := core.Request{Schema: "api", Root: "tasks", Method: core.MethodGet, Prefer: "count=exact"}
	_, err := core.Compile(cfg, cat, schema.RolePublic, req, formatter.ApplicationJSON, nil)
	require.Error(t, err)
}
