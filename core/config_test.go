package core_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/hbcbh1999/subzero-go/core"
)

func TestReadInConfigFS_BasicFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	err := afero.WriteFile(fs, "/app/config/subzero.yaml", []byte(`
db_type: postgresql
db_schemas: [api]
db_anon_role: anon
use_internal_permissions: true
`), 0o644)
	require.NoError(t, err)

	cfg, err := core.ReadInConfigFS("/app/config/subzero.yaml", fs)
	require.NoError(t, err)
	require.Equal(t, "postgresql", cfg.DBType)
	require.Equal(t, []string{"api"}, cfg.DBSchemas)
	require.Equal(t, "anon", cfg.DBAnonRole)
	require.True(t, cfg.UseInternalPermissions)
}

func TestNewConfigFromYAML(t *testing.T) {
	cfg, err := core.NewConfigFromYAML(`
db_type: mysql
db_schemas:
  - api
  - v2
`)
	require.NoError(t, err)
	require.Equal(t, "mysql", cfg.DBType)
	require.Equal(t, []string{"api", "v2"}, cfg.DBSchemas)
}

func TestGetConfigName_DefaultsToDev(t *testing.T) {
	t.Setenv("GO_ENV", "")
	require.Equal(t, "dev", core.GetConfigName())
}

func TestGetConfigName_Production(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	require.Equal(t, "prod", core.GetConfigName())
}
