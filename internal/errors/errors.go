// Package errors provides centralized error definitions and error handling utilities
// for heist. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors.
//
// Domain-specific errors follow the planner's failure taxonomy:
//   - ProtocolError: framing violations, unknown signals, exhausted mailboxes.
//     Always fatal; they indicate a logic bug, not transient load.
//   - PlanningError: a planning step could not reserve enough capacity.
//     Recovered locally by discarding the attempted transaction.
//   - DiscoveryError: a worker program is missing, a required unlock is
//     unreachable, or no target is eligible. Fatal to the current cycle.
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewProtocolError("unexpected marker", errors.ErrBadMagic).WithIdentity(42)
//
//	if errors.Is(err, errors.ErrBadMagic) { ... }
//
//	var protoErr *errors.ProtocolError
//	if errors.As(err, &protoErr) { ... }
//
//	if errors.IsFatal(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Protocol sentinel errors
var (
	// ErrBadMagic indicates a frame that does not start with the protocol marker.
	ErrBadMagic = New("protocol marker mismatch")
	// ErrBadFrame indicates a frame field with the wrong type.
	ErrBadFrame = New("malformed signal frame")
	// ErrUnknownSignal indicates a signal code with no registered handler.
	ErrUnknownSignal = New("no handler for signal")
	// ErrBufferExhausted indicates a mailbox without room for a whole signal.
	ErrBufferExhausted = New("protocol buffer exhausted")
	// ErrHandlerConflict indicates a second, different handler for one code.
	ErrHandlerConflict = New("handler already registered")
)

// Planning sentinel errors
var (
	// ErrInfeasible indicates a planning step that could not reserve enough capacity.
	ErrInfeasible = New("not enough capacity")
)

// Discovery sentinel errors
var (
	// ErrScriptMissing indicates a worker program that is missing or reports no cost.
	ErrScriptMissing = New("script missing or does not compile")
	// ErrNoTarget indicates that no eligible target exists.
	ErrNoTarget = New("could not find best target")
	// ErrPortsUnreachable indicates a host needing more port openers than exist.
	ErrPortsUnreachable = New("required ports cannot be opened")
	// ErrServerIncomplete indicates a server snapshot lacking target metadata.
	ErrServerIncomplete = New("server properties not defined")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrNotFound indicates a missing resource.
	ErrNotFound = New("not found")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// HeistError is the base interface for all heist errors.
type HeistError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsFatal returns true if the error must stop the current cycle or process.
	IsFatal() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
	fatal    bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsFatal returns whether the error is fatal.
func (e *baseError) IsFatal() bool {
	return e.fatal
}

func formatWithContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ProtocolError represents a violation of the signal protocol.
//
// Example:
//
//	err := errors.NewProtocolError("unexpected marker", errors.ErrBadMagic).WithIdentity(7)
//	fmt.Println(err) // "protocol error [identity=7]: unexpected marker: protocol marker mismatch"
type ProtocolError struct {
	baseError
	Identity int
	Code     int
	hasID    bool
	hasCode  bool
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(message string, cause error) *ProtocolError {
	return &ProtocolError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityCritical,
			fatal:    true,
		},
	}
}

// WithIdentity records the mailbox identity involved.
func (e *ProtocolError) WithIdentity(id int) *ProtocolError {
	e.Identity = id
	e.hasID = true
	return e
}

// WithCode records the signal code involved.
func (e *ProtocolError) WithCode(code int) *ProtocolError {
	e.Code = code
	e.hasCode = true
	return e
}

// Error returns the formatted error message.
func (e *ProtocolError) Error() string {
	var parts []string
	if e.hasID {
		parts = append(parts, fmt.Sprintf("identity=%d", e.Identity))
	}
	if e.hasCode {
		parts = append(parts, fmt.Sprintf("code=%d", e.Code))
	}
	return formatWithContext("protocol error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ProtocolError) Is(target error) bool {
	if _, ok := target.(*ProtocolError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PlanningError represents a planning step that could not be satisfied.
//
// Example:
//
//	err := errors.NewPlanningError("hack reservation short", errors.ErrInfeasible).WithStep("hwgw")
type PlanningError struct {
	baseError
	Step   string
	Target string
}

// NewPlanningError creates a new PlanningError.
func NewPlanningError(message string, cause error) *PlanningError {
	return &PlanningError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityInfo,
			fatal:    false,
		},
	}
}

// WithStep adds the planning step name.
func (e *PlanningError) WithStep(step string) *PlanningError {
	e.Step = step
	return e
}

// WithTarget adds the target hostname.
func (e *PlanningError) WithTarget(hostname string) *PlanningError {
	e.Target = hostname
	return e
}

// Error returns the formatted error message.
func (e *PlanningError) Error() string {
	var parts []string
	if e.Step != "" {
		parts = append(parts, fmt.Sprintf("step=%s", e.Step))
	}
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}
	return formatWithContext("planning error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *PlanningError) Is(target error) bool {
	if _, ok := target.(*PlanningError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DiscoveryError represents a resource-discovery failure: a missing worker
// program, an unreachable unlock or no eligible target.
//
// Example:
//
//	err := errors.NewDiscoveryError("cannot cost script", errors.ErrScriptMissing).
//	    WithHost("n00dles").WithScript("hack.js")
type DiscoveryError struct {
	baseError
	Host   string
	Script string
}

// NewDiscoveryError creates a new DiscoveryError.
func NewDiscoveryError(message string, cause error) *DiscoveryError {
	return &DiscoveryError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
			fatal:    true,
		},
	}
}

// WithHost adds the hostname to the error context.
func (e *DiscoveryError) WithHost(hostname string) *DiscoveryError {
	e.Host = hostname
	return e
}

// WithScript adds the script name to the error context.
func (e *DiscoveryError) WithScript(script string) *DiscoveryError {
	e.Script = script
	return e
}

// Error returns the formatted error message.
func (e *DiscoveryError) Error() string {
	var parts []string
	if e.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", e.Host))
	}
	if e.Script != "" {
		parts = append(parts, fmt.Sprintf("script=%s", e.Script))
	}
	return formatWithContext("discovery error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *DiscoveryError) Is(target error) bool {
	if _, ok := target.(*DiscoveryError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("server", "foodnstuff")
//	fmt.Println(err) // "server 'foodnstuff' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if errors.Is(target, ErrNotFound) {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("must be zero or positive").WithField("delay").WithValue(-5)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithContext("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsFatal returns true if the error must abort the current planning cycle
// (or the whole process, for protocol violations). Planning infeasibility
// is the only recoverable domain error.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var heistErr HeistError
	if As(err, &heistErr) {
		return heistErr.IsFatal()
	}

	// Unknown errors are treated as fatal; nothing is retried implicitly.
	return true
}

// IsProtocolViolation returns true if err is or wraps a ProtocolError.
func IsProtocolViolation(err error) bool {
	var protoErr *ProtocolError
	return As(err, &protoErr)
}

// IsInfeasible returns true if err reports a planning step that could not
// reserve the capacity it needed.
func IsInfeasible(err error) bool {
	var planErr *PlanningError
	return As(err, &planErr) || Is(err, ErrInfeasible)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement HeistError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var heistErr HeistError
	if As(err, &heistErr) {
		return heistErr.Severity()
	}

	return SeverityError
}
