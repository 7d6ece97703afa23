package player

import (
	"errors"
	"fmt"
)

// Kind categorizes player errors. None of these are recoverable mid-session;
// every failure aborts playback and the guaranteed mute pass is the only
// recovery mechanism.
type Kind string

const (
	// KindConfiguration covers errors detectable at or before session start:
	// unmapped instruments, unknown controller or rotation-unit names,
	// malformed grooves, sync rates the tick grid cannot divide.
	KindConfiguration Kind = "CONFIGURATION"

	// KindDevice covers endpoint resolution and open failures.
	KindDevice Kind = "DEVICE"

	// KindLifecycle covers misuse of the public state machine, such as
	// Play before Open or a double Open.
	KindLifecycle Kind = "LIFECYCLE"

	// KindProtocol covers malformed message construction and send failures.
	// These are defects and are surfaced immediately.
	KindProtocol Kind = "PROTOCOL"
)

// Error is a player error with its kind attached.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or "" if err is not a player error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
