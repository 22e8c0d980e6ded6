package gateway

import (
	"errors"

	"github.com/wolfeidau/propertyos/internal/config"
	"github.com/wolfeidau/propertyos/internal/models"
)

// Messages shown to callers for the two access failures.
const (
	MessageAuthenticationRequired = "You need to sign in to add properties."
	MessageAuthorizationDenied    = "You need to belong to an organization as admin or owner to add properties."
	MessageInvalidInput           = "Please correct the highlighted fields."
)

var (
	// ErrAuthenticationRequired is returned when an operation needs an identity and the caller has none.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrAuthorizationDenied is returned when the caller holds no admin or owner membership.
	ErrAuthorizationDenied = errors.New("authorization denied: admin or owner membership required")
)

// Code classifies the outcome of a gateway operation.
type Code string

const (
	CodeOK               Code = "ok"
	CodeConfiguration    Code = "configuration"
	CodeUnauthenticated  Code = "unauthenticated"
	CodePermissionDenied Code = "permission_denied"
	CodeInvalidInput     Code = "invalid_input"
	CodeStoreFailure     Code = "store_failure"
)

// Result is the outcome of a create. Error carries a message suitable for display;
// store failures carry the backend's message verbatim.
type Result struct {
	Success     bool             `json:"success"`
	Error       string           `json:"error,omitempty"`
	Code        Code             `json:"code"`
	FieldErrors []FieldError     `json:"field_errors,omitempty"`
	Property    *models.Property `json:"property,omitempty"`
}

// ListResult is the outcome of a property listing.
type ListResult struct {
	Data  []models.Property `json:"data"`
	Error string            `json:"error,omitempty"`
}

// ResultFromError classifies err into a failed Result.
func ResultFromError(err error) Result {
	var fieldErrs FieldErrors

	switch {
	case err == nil:
		return Result{Success: true, Code: CodeOK}
	case config.IsConfigurationError(err):
		return Result{Code: CodeConfiguration, Error: err.Error()}
	case errors.Is(err, ErrAuthenticationRequired):
		return Result{Code: CodeUnauthenticated, Error: MessageAuthenticationRequired}
	case errors.Is(err, ErrAuthorizationDenied):
		return Result{Code: CodePermissionDenied, Error: MessageAuthorizationDenied}
	case errors.As(err, &fieldErrs):
		return Result{Code: CodeInvalidInput, Error: MessageInvalidInput, FieldErrors: fieldErrs}
	default:
		return Result{Code: CodeStoreFailure, Error: err.Error()}
	}
}
