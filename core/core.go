// Package core is the public compiler entrypoint: it wires the URL
// Parser, Relational Resolver, Permission Engine and SQL Formatter into
// one pure function — spec.md §1 "the compiler is a stateless pipeline
// from one HTTP request to one SQL statement". Grounded on the
// teacher's core/core.go (graphjin's GraphQL-to-SQL compiler entrypoint,
// which follows the same "parse, resolve against catalog, compile"
// shape), adapted so the pipeline stages are this compiler's own
// packages instead of graphjin's.
package core

import (
	"fmt"

	"github.com/hbcbh1999/subzero-go/core/internal/apperr"
	"github.com/hbcbh1999/subzero-go/core/internal/formatter"
	"github.com/hbcbh1999/subzero-go/core/internal/formatter/clickhouse"
	"github.com/hbcbh1999/subzero-go/core/internal/formatter/postgres"
	fmtmysql "github.com/hbcbh1999/subzero-go/core/internal/formatter/mysql"
	"github.com/hbcbh1999/subzero-go/core/internal/permission"
	"github.com/hbcbh1999/subzero-go/core/internal/resolver"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
	"github.com/hbcbh1999/subzero-go/core/internal/urlparser"
)

// Request is everything one HTTP call contributes to compilation,
// re-exported from urlparser.Request so callers of this package never
// need to import an internal package directly.
type Request = urlparser.Request

// Method re-exports urlparser.Method.
type Method = urlparser.Method

const (
	MethodGet    = urlparser.MethodGet
	MethodPost   = urlparser.MethodPost
	MethodPatch  = urlparser.MethodPatch
	MethodPut    = urlparser.MethodPut
	MethodDelete = urlparser.MethodDelete
)

// Catalog re-exports schema.Catalog — the introspected model a host
// builds once per CatalogPollDuration tick and hands to every Compile
// call (spec.md §9 "Global state").
type Catalog = schema.Catalog

// Role re-exports schema.Role.
type Role = schema.Role

// Compiled is the result of one Compile call: the rendered SQL plus
// enough request-shape facts for the caller's Request/Response Glue
// stage (package respond) to compute status/Content-Range after
// execution.
type Compiled struct {
	SQL               string
	Params            []string
	NodeKind          int // mirrors respond.NodeKind without importing it (kept import-free on purpose, see DESIGN.md)
	UpdateColumnCount int
	TopLevelOffset    int64
	Preferences       urlparser.Preferences
}

// dialectFor resolves a Config.DBType name to its formatter.Dialect,
// the one place DBType's string value is interpreted.
func dialectFor(dbType string) (formatter.Dialect, error) {
	switch dbType {
	case "postgresql", "postgres", "":
		return postgres.New(), nil
	case "mysql":
		return fmtmysql.New(), nil
	case "clickhouse":
		return clickhouse.New(), nil
	default:
		return nil, fmt.Errorf("subzero: unsupported db_type %q", dbType)
	}
}

// Compile runs the full pipeline — Parse, Resolve, Apply, Format — for
// one request against cat as role, producing the single composite SQL
// statement a host executes and feeds to package respond.
func Compile(cfg *Config, cat *schema.Catalog, role schema.Role, req urlparser.Request, accept formatter.ContentType, env map[string]string) (*Compiled, error) {
	dialect, err := dialectFor(cfg.DBType)
	if err != nil {
		return nil, err
	}

	q, prefs, err := urlparser.Parse(req, cat)
	if err != nil {
		return nil, err
	}

	if cfg.DBType == "clickhouse" && prefs.Count == "exact" {
		// subzero-core's clickhouse.rs hard-rejects count=exact; enforced
		// here since the Dialect interface has no preference-validation
		// hook of its own (see DESIGN.md "formatter" Open decisions).
		return nil, apperr.ContentType("exact counts are not supported against clickhouse")
	}

	if err := resolver.Resolve(q, cat, role); err != nil {
		return nil, err
	}

	if cat.UseInternalPermissions {
		safe := map[string]bool{}
		for _, fn := range cfg.SafeFunctions {
			safe[fn] = true
		}
		if err := permission.Apply(q, cat, role, safe); err != nil {
			return nil, err
		}
	}

	fReq := formatter.Request{
		Schema:               req.Schema,
		Method:               string(req.Method),
		AcceptContentType:    accept,
		ReturnRepresentation: prefs.Return == "representation",
		ExactCount:           prefs.Count == "exact",
		Env:                  env,
	}

	result, err := formatter.Format(q, fReq, dialect)
	if err != nil {
		return nil, err
	}

	var topLevelOffset int64
	if q.Offset != nil {
		topLevelOffset = *q.Offset
	}

	return &Compiled{
		SQL:               result.SQL,
		Params:            result.Params,
		NodeKind:          int(q.Kind),
		UpdateColumnCount: len(q.Columns),
		TopLevelOffset:    topLevelOffset,
		Preferences:       prefs,
	}, nil
}
