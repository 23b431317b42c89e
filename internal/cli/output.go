package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/pxflux/internal/billing"
	"github.com/roach88/pxflux/internal/engine"
	"github.com/roach88/pxflux/internal/handlers"
	"github.com/roach88/pxflux/internal/tree"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // everything settled
	ExitFailure      = 1 // a handler, pin, cascade or scenario failed
	ExitCommandError = 2 // bad input file, unusable config or store
)

// ExitError carries the exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, ExitFailure when none.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error codes of JSON error responses.
const (
	CodeInvalidPin      = "E_INVALID_PIN"
	CodeNotMember       = "E_NOT_MEMBER"
	CodeUnauthenticated = "E_UNAUTHENTICATED"
	CodeBillingDisabled = "E_BILLING_DISABLED"
	CodeCascadeLimit    = "E_CASCADE_LIMIT"
	CodeCascadeFailed   = "E_CASCADE_FAILED"
	CodeCriticalOp      = "E_CRITICAL_OP"
	CodeNotFound        = "E_NOT_FOUND"
	CodeTestFailed      = "E_TEST_FAILED"
	CodeCommand         = "E_COMMAND"
	CodeHandler         = "E_HANDLER"
)

// errorCode classifies err by the sentinel or typed error it wraps.
func errorCode(err error) string {
	switch {
	case errors.Is(err, handlers.ErrInvalidPin):
		return CodeInvalidPin
	case errors.Is(err, handlers.ErrNotMember):
		return CodeNotMember
	case errors.Is(err, handlers.ErrUnauthenticated), errors.Is(err, billing.ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, handlers.ErrBillingDisabled):
		return CodeBillingDisabled
	case engine.IsRoundsExceeded(err):
		return CodeCascadeLimit
	case engine.IsCritical(err):
		return CodeCriticalOp
	case errors.Is(err, tree.ErrNotFound):
		return CodeNotFound
	case GetExitCode(err) == ExitCommandError:
		return CodeCommand
	}
	return CodeHandler
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes why a command failed.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Failed lists the trigger paths or scenarios that failed.
	Failed []string `json:"failed,omitempty"`
}

// Printer writes command results as text or as a JSON Response.
type Printer struct {
	Format string
	Out    io.Writer
}

// JSON reports whether results are written as JSON.
func (p *Printer) JSON() bool {
	return p.Format == "json"
}

// Result writes data. Text mode prints it with its default format.
func (p *Printer) Result(data any) error {
	if p.JSON() {
		return p.respond(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(p.Out, data)
	return err
}

// Fail reports err and returns it unchanged so the exit code survives.
// Text mode leaves the message to the caller of Execute.
func (p *Printer) Fail(err error) error {
	if err == nil || !p.JSON() {
		return err
	}
	if werr := p.respond(Response{
		Status: "error",
		Error:  &ResponseError{Code: errorCode(err), Message: err.Error()},
	}); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}

// Partial writes data with an error status when failure is set. Used by
// commands that finish their work before reporting what went wrong.
func (p *Printer) Partial(data any, failure *ResponseError) error {
	r := Response{Status: "ok", Data: data}
	if failure != nil {
		r.Status = "error"
		r.Error = failure
	}
	return p.respond(r)
}

func (p *Printer) respond(r Response) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
