package serv

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hbcbh1999/subzero-go/core"
	"github.com/hbcbh1999/subzero-go/core/internal/apperr"
	"github.com/hbcbh1999/subzero-go/core/internal/formatter"
	"github.com/hbcbh1999/subzero-go/core/internal/respond"
	"github.com/hbcbh1999/subzero-go/core/internal/urlparser"
)

// Router builds the chi mux: one catch-all route per REST verb against
// `/{root}` (the schema comes from the profile headers), CORS via rs/cors and chi's request-id/recoverer
// middleware — the same "thin router, fat handler" shape the teacher
// uses for its GraphQL POST endpoint, generalized from one endpoint to
// the five REST verbs this compiler dispatches on.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "Prefer", "Accept-Profile", "Content-Profile", "Range"},
		ExposedHeaders:   []string{"Content-Range", "Preference-Applied"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Route("/{root}", func(sub chi.Router) {
		sub.Get("/", s.handleRequest(urlparser.MethodGet))
		sub.Post("/", s.handleRequest(urlparser.MethodPost))
		sub.Patch("/", s.handleRequest(urlparser.MethodPatch))
		sub.Put("/", s.handleRequest(urlparser.MethodPut))
		sub.Delete("/", s.handleRequest(urlparser.MethodDelete))
	})

	return r
}

// handleRequest adapts net/http's request/response surface into package
// core's Compile call and package respond's Finalize call — the glue
// postgrest.rs's `handle` function performs inline, split here across
// Request building (this file), compilation (package core) and
// response assembly (package respond) the way spec.md §4 lays the
// pipeline stages out.
func (s *Service) handleRequest(method urlparser.Method) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		root := chi.URLParam(r, "root")

		schemaName, err := respond.SelectSchema(s.conf.DBSchemas, respond.Method(method), r.Header.Get("Accept-Profile"), r.Header.Get("Content-Profile"))
		if err != nil {
			writeError(w, err)
			return
		}

		role, err := s.auth.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, err)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, apperr.InvalidBody(err.Error()))
			return
		}

		req := urlparser.Request{
			Schema:      schemaName,
			Root:        root,
			Method:      method,
			Params:      paramsFromQuery(r.URL.RawQuery),
			Body:        body,
			Accept:      r.Header.Get("Accept"),
			ContentType: r.Header.Get("Content-Type"),
			Prefer:      r.Header.Get("Prefer"),
			MaxRows:     s.conf.DBMaxRows,
		}

		accept := acceptContentType(r.Header.Get("Accept"))

		compiled, err := core.Compile(s.conf, s.Catalog(), role, req, accept, envFromHeaders(r.Header))
		if err != nil {
			writeError(w, err)
			return
		}

		dbRow, err := s.db.Exec(r.Context(), compiled.SQL, compiled.Params)
		if err != nil {
			writeError(w, apperr.Internal(err, "query execution failed"))
			return
		}

		kind := respond.NodeKind(compiled.NodeKind)
		representation := representationFor(compiled.Preferences.Return)
		resolution := resolutionFor(compiled.Preferences.Resolution)

		outcome, err := respond.Finalize(
			respond.Method(method), kind, compiled.UpdateColumnCount, compiled.TopLevelOffset,
			respond.QueryResult{
				PageTotal:            dbRow.PageTotal,
				TotalResultSet:       dbRow.TotalResultSet,
				Body:                 dbRow.Body,
				ConstraintsSatisfied: dbRow.ConstraintsSatisfied,
				ResponseHeaders:      dbRow.ResponseHeaders,
				ResponseStatus:       dbRow.ResponseStatus,
			},
			resolution, representation, s.conf.SchemaHeaderName, schemaName, len(s.conf.DBSchemas) > 1,
		)
		if err != nil {
			writeError(w, err)
			return
		}

		if !dbRow.ConstraintsSatisfied {
			writeError(w, apperr.PermissionDenied("row-level check constraint violated"))
			return
		}

		for _, h := range outcome.Headers {
			w.Header().Set(h[0], h[1])
		}
		w.WriteHeader(outcome.Status)
		_, _ = w.Write([]byte(outcome.Body))
	}
}

func paramsFromQuery(rawQuery string) []urlparser.KV {
	var out []urlparser.KV
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		if uk, err := url.QueryUnescape(k); err == nil {
			k = uk
		}
		if uv, err := url.QueryUnescape(v); err == nil {
			v = uv
		}
		out = append(out, urlparser.KV{Key: k, Value: v})
	}
	return out
}

func envFromHeaders(h http.Header) map[string]string {
	env := map[string]string{}
	for k := range h {
		if !strings.HasPrefix(k, "X-Subzero-") {
			continue
		}
		env[strings.TrimPrefix(k, "X-Subzero-")] = h.Get(k)
	}
	return env
}

func acceptContentType(accept string) formatter.ContentType {
	switch {
	case strings.Contains(accept, "vnd.pgrst.object"):
		return formatter.SingularJSON
	case strings.Contains(accept, "text/csv"):
		return formatter.TextCSV
	default:
		return formatter.ApplicationJSON
	}
}

func representationFor(pref string) respond.Representation {
	switch pref {
	case "representation":
		return respond.RepresentationFull
	case "minimal":
		return respond.RepresentationMinimal
	case "headers-only":
		return respond.RepresentationHeadersOnly
	default:
		return respond.RepresentationNone
	}
}

func resolutionFor(pref string) respond.Resolution {
	switch pref {
	case "merge-duplicates":
		return respond.ResolutionMergeDuplicates
	case "ignore-duplicates":
		return respond.ResolutionIgnoreDuplicates
	default:
		return respond.ResolutionNone
	}
}

func writeError(w http.ResponseWriter, err error) {
	ae, ok := err.(*apperr.Error)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
		return
	}
	for _, h := range ae.Headers() {
		w.Header().Set(h[0], h[1])
	}
	w.WriteHeader(ae.StatusCode())
	_, _ = w.Write(ae.JSONBody())
}

// Listen starts the HTTP server and blocks until ctx is cancelled.
func (s *Service) Listen(ctx context.Context) error {
	srv := &http.Server{Addr: s.hostPort, Handler: s.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("listening", "addr", s.hostPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
