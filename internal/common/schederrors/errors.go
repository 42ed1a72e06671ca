// Package schederrors contains the error types returned by the scheduling packages.
// Callers should look for these types with errors.As rather than matching on messages;
// ExitCodeFromError maps them to process exit codes for the command-line tools.
//
// If multiple errors occur in some function (e.g., several invalid jobs in one instance),
// that function should return an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual errors.
package schederrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidArgument is returned on invalid configuration or input, e.g., fewer than two machines
// or a job requiring more machines than exist. These are not recoverable.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "machines"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message to include with the error message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for field %q", err.Value, err.Name)
	} else {
		return fmt.Sprintf("value %v is invalid for field %q; %s", err.Value, err.Name, err.Message)
	}
}

// ErrInvariantViolation signals that an internal consistency check failed, e.g., the capacity
// tracker ran out of events while searching for a feasible time. It always indicates a bug.
type ErrInvariantViolation struct {
	Operation string
	Message   string
}

func (err *ErrInvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", err.Operation, err.Message)
}

// ErrAreaOverflow is returned when the total area of a set of jobs does not fit in 64 bits.
type ErrAreaOverflow struct {
	NumJobs  int
	Machines int
}

func (err *ErrAreaOverflow) Error() string {
	return fmt.Sprintf("area of %d job(s) on %d machines overflows uint64", err.NumJobs, err.Machines)
}

// ErrAlreadyScheduled is returned when a single-use scheduler is asked to schedule a second time.
type ErrAlreadyScheduled struct {
	Machines int
}

func (err *ErrAlreadyScheduled) Error() string {
	return fmt.Sprintf("scheduler for %d machines has already been used; create a new one per batch", err.Machines)
}

// InvariantViolationf returns an *ErrInvariantViolation with a stack trace attached.
func InvariantViolationf(operation string, format string, args ...interface{}) error {
	return errors.WithStack(&ErrInvariantViolation{
		Operation: operation,
		Message:   fmt.Sprintf(format, args...),
	})
}

const (
	ExitCodeOK                 = 0
	ExitCodeUnknown            = 1
	ExitCodeInvalidArgument    = 2
	ExitCodeInvariantViolation = 3
	ExitCodeAreaOverflow       = 4
)

// ExitCodeFromError maps error types to process exit codes.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitCodeOK
	}

	// Using {} scopes just to re-use the "e" variable name for each case.
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return ExitCodeInvalidArgument
		}
	}
	{
		var e *ErrInvariantViolation
		if errors.As(err, &e) {
			return ExitCodeInvariantViolation
		}
	}
	{
		var e *ErrAreaOverflow
		if errors.As(err, &e) {
			return ExitCodeAreaOverflow
		}
	}
	return ExitCodeUnknown
}
