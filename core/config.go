package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the compiler-level configuration: the catalog connection
// facts, the role/anonymous-role story, and the knobs spec.md §4.3/§9
// name as process-wide (internal-permissions switch, safe function
// allow-list, max row cap). Adapted from the teacher's `core.Config`
// (graphjin's GraphQL-table config) to this compiler's REST/RLS domain
// — the viper-backed load/inherit/env-override machinery is kept
// verbatim since it's ambient config-loading infrastructure, not
// GraphQL-specific.
type Config struct {
	// DBType selects which dialect/driver backs this compiler:
	// "postgresql" | "mysql" | "clickhouse".
	DBType string `mapstructure:"db_type" yaml:"db_type" validate:"required,oneof=postgresql mysql clickhouse" jsonschema:"title=Database Type,enum=postgresql,enum=mysql,enum=clickhouse"`

	// DBSchemas is the ordered list of schemas exposed to clients —
	// spec.md §3 "schema/profile selection". A single entry skips
	// Accept-Profile/Content-Profile negotiation entirely.
	DBSchemas []string `mapstructure:"db_schemas" yaml:"db_schemas" validate:"required,min=1,dive,required" jsonschema:"title=Database Schemas"`

	// DBMaxRows caps LIMIT when the client doesn't specify one, nil
	// means unbounded.
	DBMaxRows *int64 `mapstructure:"db_max_rows" yaml:"db_max_rows" jsonschema:"title=Default Row Limit"`

	// DBAnonRole is the role assumed for unauthenticated requests. If
	// empty and no JWT role claim resolves, the request is rejected
	// before compilation (spec.md §3 "Anonymous-role gating").
	DBAnonRole string `mapstructure:"db_anon_role" yaml:"db_anon_role" jsonschema:"title=Anonymous Role"`

	// RoleClaimKey is the JSONPath into the decoded JWT claims that
	// names the active role, e.g. "$.role" or "$.app_metadata.role".
	RoleClaimKey string `mapstructure:"role_claim_key" yaml:"role_claim_key" jsonschema:"title=Role Claim Key,default=$.role"`

	// JWTSecret signs/verifies the bearer token; empty disables JWT
	// decoding entirely (every request runs as DBAnonRole).
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret" jsonschema:"title=JWT Secret"`

	// UseInternalPermissions toggles the Permission Engine's USING/CHECK
	// predicate injection. When false, the compiler trusts the
	// database's own grants/policies (spec.md §4.3 "Native permissions
	// opt-out").
	UseInternalPermissions bool `mapstructure:"use_internal_permissions" yaml:"use_internal_permissions" jsonschema:"title=Use Internal Permissions,default=true"`

	// SafeFunctions, when non-empty, is the allow-list the Permission
	// Engine's safe-function pre-pass checks every ItemFunc select item
	// against (spec.md §4.3 "Safe function allow-list"). An empty list
	// allows no function: every ItemFunc select item is rejected.
	SafeFunctions []string `mapstructure:"safe_functions" yaml:"safe_functions" jsonschema:"title=Safe Functions"`

	// SchemaHeaderName is the response header used to echo the selected
	// schema when DBSchemas has more than one entry, e.g.
	// "Content-Profile".
	SchemaHeaderName string `mapstructure:"schema_header_name" yaml:"schema_header_name" jsonschema:"title=Schema Header Name,default=Content-Profile"`

	// Production lowers serv's log level to warn (Debug, when also set,
	// takes precedence).
	Production bool `mapstructure:"production" yaml:"production" jsonschema:"title=Production Mode,default=false"`

	// Debug raises serv's log level to debug.
	Debug bool `mapstructure:"debug" yaml:"debug" jsonschema:"title=Debug,default=false"`

	// CatalogPollDuration is how often serv refreshes its schema
	// snapshot (spec.md §9 "Global state").
	CatalogPollDuration time.Duration `mapstructure:"catalog_poll_duration" yaml:"catalog_poll_duration" jsonschema:"title=Catalog Poll Duration,default=10s"`

	// ConfigPath is the directory ReadInConfig resolved this Config
	// from — useful for relative-path resolution elsewhere (e.g. TLS
	// cert paths), not itself user-settable via a config file.
	ConfigPath string `mapstructure:"-" yaml:"-" jsonschema:"-"`
}

// Validate checks the required fields a Config must carry before a
// Service can be built from it — db_type must name a supported
// dialect and at least one schema must be configured. Grounded on the
// validator-tag-driven config validation pattern the toolbox-family
// example repos use ahead of their own service bootstrap.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ReadInConfig reads the named config file (and any file it
// `inherits:` from) plus SZ_-prefixed environment overrides, the
// same precedence the teacher's readInConfig implements.
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is ReadInConfig against an injected afero.Fs, for
// callers (such as tests) that don't want to touch the real
// filesystem.
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	cp := filepath.Dir(configFile)
	vi := newViper(cp, filepath.Base(configFile))

	if fs != nil {
		vi.SetFs(fs)
	}

	if err := vi.ReadInConfig(); err != nil {
		return nil, err
	}

	if pcf := vi.GetString("inherits"); pcf != "" {
		cf := vi.ConfigFileUsed()
		vi = newViper(cp, pcf)
		if fs != nil {
			vi.SetFs(fs)
		}

		if err := vi.ReadInConfig(); err != nil {
			return nil, err
		}

		if v := vi.GetString("inherits"); v != "" {
			return nil, fmt.Errorf("inherited config '%s' cannot itself inherit '%s'", pcf, v)
		}

		vi.SetConfigFile(cf)

		if err := vi.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "SZ_") {
			kv := strings.SplitN(e, "=", 2)
			if len(kv) == 2 {
				vi.Set(strings.ToLower(strings.TrimPrefix(kv[0], "SZ_")), kv[1])
			}
		}
	}

	c := &Config{ConfigPath: filepath.Dir(vi.ConfigFileUsed())}
	if err := vi.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func newViper(configPath, configFile string) *viper.Viper {
	vi := viper.New()

	if filepath.Ext(configFile) != "" {
		vi.SetConfigFile(filepath.Join(configPath, configFile))
	} else {
		vi.SetConfigName(configFile)
		vi.AddConfigPath(configPath)
		vi.AddConfigPath("./config")
	}
	return vi
}

// GetConfigName mirrors the teacher's GO_ENV-driven config-name
// selection (dev/stage/test/prod), kept identical since it's ambient
// process-environment convention, not domain logic.
func GetConfigName() string {
	ge := strings.TrimSpace(strings.ToLower(os.Getenv("GO_ENV")))
	switch ge {
	case "production", "prod":
		return "prod"
	case "staging", "stage":
		return "stage"
	case "testing", "test":
		return "test"
	case "development", "dev", "":
		return "dev"
	default:
		return ge
	}
}

// NewConfigFromYAML parses config text directly (no filesystem
// access), the alternate path the teacher's wasm build uses
// gopkg.in/yaml.v3 for directly rather than going through viper.
func NewConfigFromYAML(text string) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal([]byte(text), &c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
