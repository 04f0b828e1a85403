package chat

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for the caller's recovery policy.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindAuth
	KindNetwork
	KindConflictOrNotFound
	KindChannel
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindConflictOrNotFound:
		return "conflict_or_not_found"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a ValidationError: bad input rejected before any network call.
func Validation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

// Auth builds an AuthError for rejected or expired credentials.
func Auth(op string, err error) *Error {
	return &Error{Kind: KindAuth, Op: op, Msg: "not authorized", Err: err}
}

// Network builds a NetworkError for failed or timed-out requests.
func Network(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// ConflictOrNotFound builds an error for targets that are already gone.
func ConflictOrNotFound(op string, err error) *Error {
	return &Error{Kind: KindConflictOrNotFound, Op: op, Err: err}
}

// Channel builds a ChannelError for realtime connection failures.
func Channel(op string, err error) *Error {
	return &Error{Kind: KindChannel, Op: op, Err: err}
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as k.
func IsKind(err error, k ErrorKind) bool {
	return err != nil && KindOf(err) == k
}
