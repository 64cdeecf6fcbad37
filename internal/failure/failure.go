// Package failure classifies errors raised by the jet/MET engine.
//
// Two kinds exist. FatalConfig means the setup cannot produce trustworthy
// physics output (wrong calibration file count, out-of-range table bin,
// a required event collection missing) and the run must stop. Degraded means
// an optional input was unusable and the engine continues with that feature
// switched off. Deciding what to do with either kind is left to the caller;
// nothing in this module exits the process.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the classification of an Error.
type Kind int

const (
	// FatalConfig marks a broken setup that must terminate the run.
	FatalConfig Kind = iota + 1
	// Degraded marks an unusable optional input; processing continues.
	Degraded
)

func (k Kind) String() string {
	switch k {
	case FatalConfig:
		return "fatal-config"
	case Degraded:
		return "degraded"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error carries the kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalConfig error for op.
func Fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: FatalConfig, Op: op, Err: err}
}

// Fatalf builds a FatalConfig error from a format string.
func Fatalf(op, format string, args ...interface{}) error {
	return &Error{Kind: FatalConfig, Op: op, Err: fmt.Errorf(format, args...)}
}

// Degrade wraps err as a Degraded error for op.
func Degrade(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: Degraded, Op: op, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsFatal reports whether err is, or wraps, a FatalConfig error.
func IsFatal(err error) bool {
	k, ok := KindOf(err)
	return ok && k == FatalConfig
}

// IsDegraded reports whether err is, or wraps, a Degraded error.
func IsDegraded(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Degraded
}
