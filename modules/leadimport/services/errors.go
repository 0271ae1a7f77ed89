package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jacksonlee411/leadimport/pkg/serrors"
)

var (
	ErrNotConnected = serrors.NewError(
		"LEADIMPORT_NOT_CONNECTED",
		"No Google connection. Please connect your Google account first.",
		"LeadImport.Errors.NotConnected",
	)
	ErrInvalidState = serrors.NewError(
		"LEADIMPORT_INVALID_STATE",
		"authorization state is invalid or expired",
		"LeadImport.Errors.InvalidState",
	)
	ErrExchangeFailed = serrors.NewError(
		"LEADIMPORT_TOKEN_EXCHANGE_FAILED",
		"authorization code exchange failed",
		"LeadImport.Errors.TokenExchangeFailed",
	)
	ErrExternalService = serrors.NewError(
		"LEADIMPORT_EXTERNAL_SERVICE",
		"Failed to read spreadsheet. Please check the ID and try again.",
		"LeadImport.Errors.ExternalService",
	)
	ErrImportFailed = serrors.NewError(
		"LEADIMPORT_IMPORT_FAILED",
		"Import failed. Please try again.",
		"LeadImport.Errors.ImportFailed",
	)
)

const CodeValidation = "LEADIMPORT_VALIDATION"

// ValidationError reports malformed input per field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// external keeps the provider failure for logs while matching
// ErrExternalService for callers.
func external(cause error) error {
	return fmt.Errorf("%w: %w", ErrExternalService, cause)
}
