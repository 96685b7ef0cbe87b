// Package serv is the ambient hosting layer: it owns the HTTP surface,
// the live DB connection, the polled Catalog snapshot, JWT auth and the
// prepared-statement cache — everything spec.md's Non-goals keep out of
// package core so the compiler itself stays a pure function. Grounded on
// the teacher's serv package bootstrap sequence (serv/init.go), whose
// log-level mapping, config validation and lazy initFS/initConfig/initDB
// shape is kept and generalized from GraphJin's table config to this
// compiler's Catalog.
package serv

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/hbcbh1999/subzero-go/core"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
)

// logLevel mirrors the teacher's logLevelNone/Debug/Error/Warn/Info
// ladder, kept identical since it's ambient logging convention rather
// than domain logic.
type logLevel int

const (
	logLevelNone logLevel = iota
	logLevelError
	logLevelWarn
	logLevelInfo
	logLevelDebug
)

// Logger is the minimal structured-logging surface Service needs. A
// host wires in whatever concrete logger it likes (zerolog, zap,
// log/slog) behind this interface — matches the teacher's pattern of
// depending on a thin logging seam rather than importing one logging
// library directly into serv.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

// Service is the long-lived process state: one per running instance.
// The Catalog is held behind an atomic.Pointer so CatalogPollDuration
// refreshes never race an in-flight Compile call (spec.md §9 "Global
// state" — a reload swaps the pointer, it never mutates in place).
type Service struct {
	conf     *core.Config
	log      Logger
	logLevel logLevel

	db    DB
	cache *StatementCache
	auth  *Authenticator

	catalog atomic.Pointer[schema.Catalog]

	hostPort string
}

// NewService builds a Service from cfg, wiring the DB driver, JWT
// authenticator and statement cache but without yet starting to serve —
// callers call Listen (server.go) once ready. Mirrors the teacher's
// NewGraphJinService two-phase construct-then-initialize shape.
func NewService(cfg *core.Config, log Logger) (*Service, error) {
	s := &Service{conf: cfg, log: log}
	initLogLevel(s)
	validateConf(s)

	if err := s.initDB(); err != nil {
		return nil, fmt.Errorf("subzero: init db: %w", err)
	}

	s.cache = NewStatementCache(256)
	s.auth = NewAuthenticator(cfg.JWTSecret, cfg.RoleClaimKey, cfg.DBAnonRole)

	if err := s.initHostPort(); err != nil {
		return nil, err
	}

	s.catalog.Store(schema.NewCatalog(cfg.UseInternalPermissions))
	return s, nil
}

// Catalog returns the currently active schema snapshot. Safe to call
// concurrently with SetCatalog.
func (s *Service) Catalog() *schema.Catalog { return s.catalog.Load() }

// SetCatalog atomically swaps in a freshly introspected snapshot — the
// operation a CatalogPollDuration ticker (or an explicit reload
// webhook) calls.
func (s *Service) SetCatalog(cat *schema.Catalog) { s.catalog.Store(cat) }

// RefreshCatalog re-introspects the live DB and swaps the Catalog
// pointer, the operation a CatalogPollDuration ticker drives.
func (s *Service) RefreshCatalog(ctx context.Context) error {
	cat, err := Introspect(ctx, s.db, s.conf.DBSchemas, s.conf.UseInternalPermissions)
	if err != nil {
		return fmt.Errorf("subzero: refresh catalog: %w", err)
	}
	s.SetCatalog(cat)
	return nil
}

func initLogLevel(s *Service) {
	switch strings.ToLower(levelName(s.conf)) {
	case "debug":
		s.logLevel = logLevelDebug
	case "error":
		s.logLevel = logLevelError
	case "warn":
		s.logLevel = logLevelWarn
	case "info":
		s.logLevel = logLevelInfo
	default:
		s.logLevel = logLevelNone
	}
}

func levelName(cfg *core.Config) string {
	if cfg.Debug {
		return "debug"
	}
	if cfg.Production {
		return "warn"
	}
	return "info"
}

// validateConf mirrors the teacher's anon-role validation: a
// deployment with no anonymous role configured gets its unauthenticated
// requests blocked outright rather than silently running them as an
// undefined role.
func validateConf(s *Service) {
	if s.conf.DBAnonRole == "" {
		s.log.Warn("no db_anon_role configured: unauthenticated requests will be rejected")
	}
}

func (s *Service) initDB() error {
	if s.db != nil {
		return nil
	}
	db, err := newDB(s.conf)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Service) initHostPort() error {
	if s.hostPort != "" {
		return nil
	}
	if hp := os.Getenv("SZ_HOST_PORT"); hp != "" {
		s.hostPort = hp
		return nil
	}
	s.hostPort = "0.0.0.0:3000"
	return nil
}
