// Package respond is the Request/Response Glue (spec.md §4.5): it
// turns the single executed row the Formatter's composite statement
// produces (page_total, total_result_set, body, constraints_satisfied,
// response_headers, response_status) into the HTTP status code,
// Content-Range, Preference-Applied and GUC-sourced headers a host must
// send back. Grounded on
// original_source/lib/src/frontend/postgrest.rs's `handle` function
// (the orchestration glue spec.md's distillation dropped, supplemented
// per SPEC_FULL.md §3) — schema/profile selection, Content-Range's
// documented INSERT/DELETE asymmetry, the status code table, and
// `response.headers` GUC parsing all port that function's post-query
// logic one-to-one.
package respond

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hbcbh1999/subzero-go/core/internal/apperr"
)

// Method is the subset of HTTP methods the response logic branches on.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPatch  Method = "PATCH"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// NodeKind is the minimal query-shape discriminant respond needs,
// decoupled from package ir so this package can be exercised without
// importing the whole compiler core.
type NodeKind int

const (
	NodeOther NodeKind = iota
	NodeInsert
	NodeUpdate
	NodeDelete
)

// Representation mirrors PostgREST's `Prefer: return=representation`.
type Representation int

const (
	RepresentationNone Representation = iota
	RepresentationFull
	RepresentationMinimal
	RepresentationHeadersOnly
)

// Resolution mirrors `Prefer: resolution=merge-duplicates|ignore-duplicates`.
type Resolution int

const (
	ResolutionNone Resolution = iota
	ResolutionMergeDuplicates
	ResolutionIgnoreDuplicates
)

// QueryResult is the single row the Formatter's composite statement
// returns, decoded by the host's driver layer.
type QueryResult struct {
	PageTotal         int64
	TotalResultSet    *int64 // nil when count wasn't requested (Formatter emits SQL NULL)
	Body              string
	ConstraintsSatisfied bool
	ResponseHeaders   *string // raw GUC text, nil if unset
	ResponseStatus    *string // raw GUC text, nil if unset
}

// Outcome describes what a host must send back to the client.
type Outcome struct {
	Status  int
	Headers [][2]string
	Body    string
}

// Finalize assembles the Outcome from the executed QueryResult and
// request-shape facts, porting postgrest.rs's `handle` post-query
// section (content_type/content_range/status/Preference-Applied/GUC
// header application) verbatim in structure.
func Finalize(method Method, kind NodeKind, updateColumnCount int, topLevelOffset int64, res QueryResult, resolution Resolution, representation Representation, schemaHeaderName, schemaName string, multiSchema bool) (Outcome, error) {
	var headers [][2]string
	if multiSchema {
		headers = append(headers, [2]string{schemaHeaderName, schemaName})
	}

	contentRange := contentRangeHeader(method, kind, topLevelOffset, res.PageTotal, res.TotalResultSet)
	headers = append(headers, [2]string{"Content-Range", contentRange})

	if res.ResponseHeaders != nil {
		guc, err := ApplyGucHeaders(*res.ResponseHeaders)
		if err != nil {
			return Outcome{}, err
		}
		headers = append(headers, guc...)
	}

	status := statusFor(method, kind, updateColumnCount, topLevelOffset, res.PageTotal, res.TotalResultSet, representation)

	if resolution != ResolutionNone {
		var val string
		if resolution == ResolutionMergeDuplicates {
			val = "resolution=merge-duplicates"
		} else {
			val = "resolution=ignore-duplicates"
		}
		headers = append(headers, [2]string{"Preference-Applied", val})
	}

	if res.ResponseStatus != nil {
		parsed, err := strconv.Atoi(*res.ResponseStatus)
		if err != nil {
			return Outcome{}, apperr.GucStatus()
		}
		status = parsed
	}

	return Outcome{Status: status, Headers: headers, Body: res.Body}, nil
}

// contentRangeHeader mirrors content_range_header plus the
// method/node-kind dispatch in postgrest.rs's `handle`: POST+Insert
// always passes the empty range 1..0, so it reports "*/total"
// regardless of how many rows came back (the range header doesn't
// describe returned rows for inserts);
// DELETE's range is offset by topLevelOffset against page_total minus
// one; everything else is the general upper/lower-bound case.
func contentRangeHeader(method Method, kind NodeKind, topLevelOffset, pageTotal int64, total *int64) string {
	switch {
	case method == MethodPost && kind == NodeInsert:
		return rangeString(1, 0, total)
	case method == MethodDelete && kind == NodeDelete:
		return rangeString(1, topLevelOffset+pageTotal-1, total)
	default:
		return rangeString(topLevelOffset, topLevelOffset+pageTotal-1, total)
	}
}

func rangeString(lower, upper int64, total *int64) string {
	rangePart := "*"
	if !(total != nil && *total == 0) && lower <= upper {
		rangePart = strconv.FormatInt(lower, 10) + "-" + strconv.FormatInt(upper, 10)
	}
	totalPart := "*"
	if total != nil {
		totalPart = strconv.FormatInt(*total, 10)
	}
	return rangePart + "/" + totalPart
}

// statusFor ports the `status` match arm of postgrest.rs's `handle`:
// INSERT is always 201; DELETE/UPDATE with a representation=full
// preference echo 200 instead of the default 204; a PATCH update that
// touched zero rows despite naming columns to write is a 404 (the
// target row didn't exist); everything else falls through to the
// general range-derived status.
func statusFor(method Method, kind NodeKind, updateColumnCount int, topLevelOffset, pageTotal int64, total *int64, representation Representation) int {
	switch {
	case method == MethodPost && kind == NodeInsert:
		return 201
	case method == MethodDelete && kind == NodeDelete && representation == RepresentationFull:
		return 200
	case method == MethodDelete && kind == NodeDelete:
		return 204
	case method == MethodPatch && kind == NodeUpdate && pageTotal == 0 && updateColumnCount > 0:
		return 404
	case method == MethodPatch && kind == NodeUpdate && representation == RepresentationFull:
		return 200
	case method == MethodPatch && kind == NodeUpdate:
		return 204
	case method == MethodPut && kind == NodeInsert && representation == RepresentationFull:
		return 200
	case method == MethodPut && kind == NodeInsert:
		return 204
	default:
		return rangeStatus(topLevelOffset, topLevelOffset+pageTotal-1, total)
	}
}

func rangeStatus(lower, upper int64, total *int64) int {
	switch {
	case total != nil && lower > *total:
		return 416
	case total != nil && (1+upper-lower) < *total:
		return 206
	default:
		return 200
	}
}

// ApplyGucHeaders parses the `response.headers` GUC text per spec.md
// §3 "`response.headers` GUC parsing": a JSON array of single-key
// objects whose values are strings. Any other shape — not an array,
// a multi-key object, a non-string value — collapses to GucHeaders,
// matching postgrest.rs's all-or-nothing parse.
func ApplyGucHeaders(raw string) ([][2]string, error) {
	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, apperr.GucHeaders()
	}
	var out [][2]string
	for _, obj := range items {
		if len(obj) != 1 {
			return nil, apperr.GucHeaders()
		}
		for k, v := range obj {
			s, ok := v.(string)
			if !ok {
				return nil, apperr.GucHeaders()
			}
			out = append(out, [2]string{k, s})
		}
	}
	return out, nil
}

// SelectSchema implements spec.md §3's schema/profile selection
// precedence: single-schema deployments never negotiate; otherwise
// mutating methods prefer Content-Profile, read methods prefer
// Accept-Profile, and an unlisted profile is rejected outright.
func SelectSchema(schemas []string, method Method, acceptProfile, contentProfile string) (string, error) {
	if len(schemas) == 0 {
		return "", apperr.UnacceptableSchema(schemas)
	}
	if len(schemas) == 1 {
		return schemas[0], nil
	}

	isMutating := method == MethodPost || method == MethodPatch || method == MethodPut || method == MethodDelete

	if isMutating && contentProfile != "" {
		if contains(schemas, contentProfile) {
			return contentProfile, nil
		}
		return "", apperr.UnacceptableSchema(schemas)
	}
	if acceptProfile != "" {
		if contains(schemas, acceptProfile) {
			return acceptProfile, nil
		}
		return "", apperr.UnacceptableSchema(schemas)
	}
	return schemas[0], nil
}

func contains(items []string, target string) bool {
	for _, it := range items {
		if strings.EqualFold(it, target) {
			return true
		}
	}
	return false
}
