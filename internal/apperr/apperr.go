// Package apperr defines the error taxonomy shared by services and
// controllers. Services return these; controllers translate them to HTTP.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidInput: missing or malformed request fields. Nothing persisted.
	KindInvalidInput
	// KindNotFound: referenced resource missing, or caller does not own it.
	KindNotFound
	// KindOffTopic: message rejected by the topic guard. Carries the bound topic.
	KindOffTopic
	// KindConflict: resource already exists; the returned id is authoritative.
	KindConflict
	// KindAlreadySubmitted: quiz is completed, no re-scoring.
	KindAlreadySubmitted
	// KindProviderUnavailable: the AI provider timed out or errored. Retryable.
	KindProviderUnavailable
)

// Error is the typed error all services return for expected failures.
type Error struct {
	Kind  Kind
	Msg   string
	Topic string // bound topic, set for KindOffTopic
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// OffTopic builds the rejection error for a chat bound to topic.
func OffTopic(topic string) *Error {
	return &Error{
		Kind:  KindOffTopic,
		Msg:   fmt.Sprintf("message is off-topic for this chat, stay on '%s'", topic),
		Topic: topic,
	}
}

// KindOf extracts the Kind from err, or KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// As returns the typed error inside err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
