package browser

import (
	"context"
	"errors"
	"strings"

	"github.com/playwright-community/playwright-go"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindElementNotFound
	KindTimeout
	KindInteractionBlocked
	KindUnexpectedPrompt
	KindSessionFatal
)

func (k Kind) String() string {
	switch k {
	case KindElementNotFound:
		return "element_not_found"
	case KindTimeout:
		return "timeout"
	case KindInteractionBlocked:
		return "interaction_blocked"
	case KindUnexpectedPrompt:
		return "unexpected_prompt"
	case KindSessionFatal:
		return "session_fatal"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every Client and Element operation.
type Error struct {
	Kind     Kind
	Op       string
	Selector string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Selector != "" {
		msg += " " + e.Selector
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, op, selector string, err error) *Error {
	return &Error{Kind: kind, Op: op, Selector: selector, Err: err}
}

func NotFound(op, selector string) *Error {
	return NewError(KindElementNotFound, op, selector, nil)
}

// KindOf reports the kind of err, KindUnknown when err carries none.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

func IsFatal(err error) bool {
	return KindOf(err) == KindSessionFatal
}

// Classify wraps a raw playwright error into an *Error with the closest kind.
func Classify(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}

	msg := strings.ToLower(err.Error())
	kind := KindUnknown
	switch {
	case errors.Is(err, playwright.ErrTargetClosed),
		strings.Contains(msg, "browser has been closed"),
		strings.Contains(msg, "browser has disconnected"),
		strings.Contains(msg, "connection closed"):
		kind = KindSessionFatal
	case strings.Contains(msg, "intercepts pointer events"),
		strings.Contains(msg, "not editable"),
		strings.Contains(msg, "element is disabled"),
		strings.Contains(msg, "readonly"):
		kind = KindInteractionBlocked
	case strings.Contains(msg, "dialog"):
		kind = KindUnexpectedPrompt
	case errors.Is(err, playwright.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case strings.Contains(msg, "no element"), strings.Contains(msg, "not attached"):
		kind = KindElementNotFound
	}
	return &Error{Kind: kind, Op: op, Selector: selector, Err: err}
}
