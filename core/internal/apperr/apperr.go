// Package apperr is the Go analogue of subzero-core/src/error.rs: a single
// error taxonomy with an HTTP status, a display message and, for some
// variants, structured JSON details the host can forward verbatim.
package apperr

import (
	"encoding/json"
	"fmt"
)

// Kind enumerates the error variants from spec.md §7.
type Kind int

const (
	KindInternal Kind = iota
	KindParseRequest
	KindInvalidBody
	KindInvalidFilters
	KindUnacceptableSchema
	KindUnknownRelation
	KindNotFound
	KindNoRelBetween
	KindAmbiguousRelBetween
	KindNoRpc
	KindContentType
	KindLimitOffsetNotAllowed
	KindOrderNotAllowed
	KindJwtTokenInvalid
	KindPermissionDenied
	KindSingularity
	KindGucHeaders
	KindGucStatus
	KindUnsupportedVerb
	KindPutMatchingPk
)

var statusByKind = map[Kind]int{
	KindInternal:              500,
	KindParseRequest:          400,
	KindInvalidBody:           400,
	KindInvalidFilters:        405,
	KindUnacceptableSchema:    406,
	KindUnknownRelation:       400,
	KindNotFound:              404,
	KindNoRelBetween:          400,
	KindAmbiguousRelBetween:   300,
	KindNoRpc:                 404,
	KindContentType:           415,
	KindLimitOffsetNotAllowed: 400,
	KindOrderNotAllowed:       400,
	KindJwtTokenInvalid:       401,
	KindPermissionDenied:      403,
	KindSingularity:           406,
	KindGucHeaders:            500,
	KindGucStatus:             500,
	KindUnsupportedVerb:       405,
	KindPutMatchingPk:         400,
}

// Error is the error type every core package returns. It never wraps an
// opaque cause at the edges of the parser/resolver/formatter — callers
// compare against Kind, not against error strings.
type Error struct {
	Kind    Kind
	Message string
	Details string
	// Extra carries variant-specific structured data (e.g. AmbiguousRelBetween's
	// candidate list) rendered by JSONBody.
	Extra map[string]interface{}
	cause error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// StatusCode returns the HTTP status the host should respond with.
func (e *Error) StatusCode() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return 500
}

// Headers returns extra response headers the host must set, per spec.md §7:
// JwtTokenInvalid carries a WWW-Authenticate challenge.
func (e *Error) Headers() [][2]string {
	h := [][2]string{{"Content-Type", "application/json"}}
	if e.Kind == KindJwtTokenInvalid {
		h = append(h, [2]string{
			"WWW-Authenticate",
			fmt.Sprintf("Bearer error=\"invalid_token\", error_description=\"%s\"", e.Message),
		})
	}
	return h
}

// JSONBody renders {"message": ..., "details": ..., "hint": ...} the way
// the host serializes errors, per spec.md §7.
func (e *Error) JSONBody() json.RawMessage {
	body := map[string]interface{}{"message": e.Message}
	if e.Details != "" {
		body["details"] = e.Details
	}
	for k, v := range e.Extra {
		body[k] = v
	}
	b, _ := json.Marshal(body)
	return b
}

func new(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func ParseRequest(message, details string) *Error {
	return &Error{Kind: KindParseRequest, Message: message, Details: details}
}

func InvalidBody(message string) *Error {
	return new(KindInvalidBody, message)
}

func InvalidFilters() *Error {
	return new(KindInvalidFilters, "Filters must include all and only primary key columns with 'eq' operators")
}

func UnacceptableSchema(schemas []string) *Error {
	msg := "The schema must be one of the following: "
	for i, s := range schemas {
		if i > 0 {
			msg += ", "
		}
		msg += s
	}
	return new(KindUnacceptableSchema, msg)
}

func UnknownRelation(relation string) *Error {
	return new(KindUnknownRelation, fmt.Sprintf("Unknown relation '%s'", relation))
}

func NotFound(target string) *Error {
	return new(KindNotFound, fmt.Sprintf("Entry '%s' not found", target))
}

func NoRelBetween(origin, target string) *Error {
	return new(KindNoRelBetween, fmt.Sprintf(
		"Could not find foreign keys between these entities. No relationship found between %s and %s",
		origin, target))
}

// AmbiguousRelBetween reports every candidate join so the client can pick
// a disambiguating hint, per spec.md Error Handling Design.
func AmbiguousRelBetween(origin, target, relHint string, compressed []map[string]interface{}) *Error {
	return &Error{
		Kind:    KindAmbiguousRelBetween,
		Message: fmt.Sprintf("Could not embed because more than one relationship was found for '%s' and '%s'", origin, target),
		Extra: map[string]interface{}{
			"details": compressed,
			"hint":    fmt.Sprintf("Try changing '%s' to one of the following: %s. Find the desired relationship in the 'details' key.", target, relHint),
		},
	}
}

func NoRpc(schema, procName string, argumentKeys []string, hasPreferSingleObject bool, contentType string, isInvPost bool) *Error {
	prms := "(" + join(argumentKeys, ", ") + ")"
	var msgPart string
	switch {
	case hasPreferSingleObject:
		msgPart = " function with a single json or jsonb parameter"
	case isInvPost && contentType == "text/csv":
		msgPart = " function with a single unnamed text parameter"
	case isInvPost && contentType == "application/json":
		msgPart = fmt.Sprintf("%s function or the %s.%s function with a single unnamed json or jsonb parameter", prms, schema, procName)
	default:
		msgPart = prms + " function"
	}
	return &Error{
		Kind:    KindNoRpc,
		Message: fmt.Sprintf("Could not find the %s.%s%s in the schema cache", schema, procName, msgPart),
		Extra: map[string]interface{}{
			"hint": "If a new function was created in the database with this name and parameters, try reloading the schema cache.",
		},
	}
}

func ContentType(message string) *Error {
	return new(KindContentType, message)
}

func LimitOffsetNotAllowed() *Error {
	return new(KindLimitOffsetNotAllowed, "Range header and limit/offset querystring parameters are not allowed")
}

func OrderNotAllowed() *Error {
	return new(KindOrderNotAllowed, "order querystring parameter not allowed")
}

func JwtTokenInvalid(message string) *Error {
	return new(KindJwtTokenInvalid, message)
}

func PermissionDenied(details string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: "Permission denied", Details: details}
}

func Singularity(count int64, contentType string) *Error {
	return &Error{
		Kind:    KindSingularity,
		Message: "JSON object requested, multiple (or no) rows returned",
		Details: fmt.Sprintf("Results contain %d rows, %s requires 1 row", count, contentType),
	}
}

func GucHeaders() *Error {
	return new(KindGucHeaders, "response.headers guc must be a JSON array composed of objects with a single key and a string value")
}

func GucStatus() *Error {
	return new(KindGucStatus, "response.status guc must be a valid status code")
}

func UnsupportedVerb() *Error {
	return new(KindUnsupportedVerb, "Unsupported HTTP verb")
}

func PutMatchingPk() *Error {
	return new(KindPutMatchingPk, "Payload values do not match URL in primary key column(s)")
}

// Internal wraps a lower-level cause (I/O, JSON, driver errors) while
// preserving it for errors.As/errors.Unwrap.
func Internal(cause error, message string) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

func join(items []string, sep string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += sep
		}
		out += s
	}
	return out
}
