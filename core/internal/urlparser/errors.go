package urlparser

import (
	"fmt"

	"github.com/hbcbh1999/subzero-go/core/internal/apperr"
)

// parseError builds a ParseRequest error carrying the 1-based column
// of the failure and the parameter name it occurred in, per spec.md
// §4.1 "Errors": "report the 1-based column of the first failure and
// a short context string naming the parameter."
func parseError(message, param string, col int) *apperr.Error {
	details := param
	if col > 0 {
		details = fmt.Sprintf("%s (column %d)", param, col)
	}
	return apperr.ParseRequest(message, details)
}
