// Package errors provides explicit, human-readable error types for geometa.
// Every error carries a Reason and a Suggestion so that CLI output and logs are
// actionable without reading source.
//
// Expected negative results (a value that is not a geometry, a function the
// engine lacks) are sentinel errors in their own packages, not these types.
package errors

import (
	"errors"
	"fmt"
)

// GeometaError is the base error type for all geometa errors.
type GeometaError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error for exit code mapping.
type ErrorCode int

const (
	CodeValidation ErrorCode = 1
	CodeConfig     ErrorCode = 2
	CodeEngine     ErrorCode = 3
	CodeInternal   ErrorCode = 4
)

func (e *GeometaError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *GeometaError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error's category.
func (e *GeometaError) ErrorCode() ErrorCode {
	return e.Code
}

// CodeOf returns the code of the first geometa error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var c interface{ ErrorCode() ErrorCode }
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return CodeInternal
}

// ErrEngineQueryFailed is returned when the engine rejects or fails a statement.
type ErrEngineQueryFailed struct {
	GeometaError
	Engine    string
	Operation string
}

// NewEngineQueryFailed creates a new ErrEngineQueryFailed.
func NewEngineQueryFailed(engine, operation string, cause error) *ErrEngineQueryFailed {
	return &ErrEngineQueryFailed{
		GeometaError: GeometaError{
			Code:       CodeEngine,
			Message:    fmt.Sprintf("%s failed on %s", operation, engine),
			Reason:     "the engine returned an error",
			Suggestion: "check engine connectivity with 'geometa capabilities' and review the engine log",
			Cause:      cause,
		},
		Engine:    engine,
		Operation: operation,
	}
}

// ErrDatabaseUnavailable is returned when the engine cannot be reached.
type ErrDatabaseUnavailable struct {
	GeometaError
}

// NewDatabaseUnavailable creates a new ErrDatabaseUnavailable.
func NewDatabaseUnavailable(reason string) *ErrDatabaseUnavailable {
	return &ErrDatabaseUnavailable{
		GeometaError: GeometaError{
			Code:       CodeEngine,
			Message:    "database unavailable",
			Reason:     reason,
			Suggestion: "verify engine.driver and engine.dsn in geometa.yaml",
		},
	}
}

// ErrUnknownObjectType is returned for object types without a shadow table.
type ErrUnknownObjectType struct {
	GeometaError
	ObjectType string
}

// NewUnknownObjectType creates a new ErrUnknownObjectType.
func NewUnknownObjectType(objectType string) *ErrUnknownObjectType {
	return &ErrUnknownObjectType{
		GeometaError: GeometaError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("unknown object type: %s", objectType),
			Reason:     "only comment, post, term and user metadata are mirrored",
			Suggestion: "use one of: comment, post, term, user",
		},
		ObjectType: objectType,
	}
}

// ErrInvalidFunctionName is returned when a function name is not a plain SQL
// identifier.
type ErrInvalidFunctionName struct {
	GeometaError
	Name string
}

// NewInvalidFunctionName creates a new ErrInvalidFunctionName.
func NewInvalidFunctionName(name string) *ErrInvalidFunctionName {
	return &ErrInvalidFunctionName{
		GeometaError: GeometaError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("invalid function name: %q", name),
			Reason:     "function names must be letters, digits and underscores, not starting with a digit",
			Suggestion: "check known_functions in the extensions file",
		},
		Name: name,
	}
}

// ErrMigrationFailed is returned when a schema statement cannot be applied.
type ErrMigrationFailed struct {
	GeometaError
	Migration string
}

// NewMigrationFailed creates a new ErrMigrationFailed.
func NewMigrationFailed(migration string, cause error) *ErrMigrationFailed {
	return &ErrMigrationFailed{
		GeometaError: GeometaError{
			Code:       CodeEngine,
			Message:    fmt.Sprintf("migration failed: %s", migration),
			Reason:     "the engine rejected a schema statement",
			Suggestion: "run 'geometa install' with --debug to see the failing statement",
			Cause:      cause,
		},
		Migration: migration,
	}
}

// ErrSettingsUnavailable is returned when the settings store cannot be read or
// written.
type ErrSettingsUnavailable struct {
	GeometaError
	Key string
}

// NewSettingsUnavailable creates a new ErrSettingsUnavailable.
func NewSettingsUnavailable(key string, cause error) *ErrSettingsUnavailable {
	return &ErrSettingsUnavailable{
		GeometaError: GeometaError{
			Code:       CodeEngine,
			Message:    fmt.Sprintf("settings entry %q unavailable", key),
			Reason:     "the settings table could not be read or written",
			Suggestion: "run 'geometa install' to create the settings table",
			Cause:      cause,
		},
		Key: key,
	}
}

// ErrConfigInvalid is returned when configuration fails validation.
type ErrConfigInvalid struct {
	GeometaError
	Field string
}

// NewConfigInvalid creates a new ErrConfigInvalid.
func NewConfigInvalid(field, reason string) *ErrConfigInvalid {
	return &ErrConfigInvalid{
		GeometaError: GeometaError{
			Code:       CodeConfig,
			Message:    "invalid configuration",
			Reason:     fmt.Sprintf("field '%s': %s", field, reason),
			Suggestion: "see geometa.example.yaml for the supported keys",
		},
		Field: field,
	}
}

// ErrUnsupportedDriver is returned for an engine driver geometa cannot open.
type ErrUnsupportedDriver struct {
	GeometaError
	Driver string
}

// NewUnsupportedDriver creates a new ErrUnsupportedDriver.
func NewUnsupportedDriver(driver string) *ErrUnsupportedDriver {
	return &ErrUnsupportedDriver{
		GeometaError: GeometaError{
			Code:       CodeConfig,
			Message:    fmt.Sprintf("unsupported engine driver: %s", driver),
			Reason:     "no adapter is registered for this driver",
			Suggestion: "use one of: mysql, postgres, sqlite, duckdb",
		},
		Driver: driver,
	}
}

// ErrConfirmationRequired is returned when a destructive command runs
// without confirmation.
type ErrConfirmationRequired struct {
	GeometaError
	Action string
}

// NewConfirmationRequired creates a new ErrConfirmationRequired.
func NewConfirmationRequired(action, effect string) *ErrConfirmationRequired {
	return &ErrConfirmationRequired{
		GeometaError: GeometaError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("%s requires confirmation", action),
			Reason:     effect,
			Suggestion: "run with --confirm to acknowledge the destructive change",
		},
		Action: action,
	}
}
