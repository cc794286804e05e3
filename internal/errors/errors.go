package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeResourceExhausted  = Code(codes.ResourceExhausted)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeFailedPrecondition: http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeResourceExhausted:  http.StatusTooManyRequests,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
}

// Kind is the machine-stable error identifier returned to clients.
type Kind string

const (
	KindInvalidSession       Kind = "INVALID_SESSION"
	KindQuestionNotInSession Kind = "QUESTION_NOT_IN_SESSION"
	KindQuestionNotFound     Kind = "QUESTION_NOT_FOUND"
	KindNoQuestions          Kind = "NO_QUESTIONS_AVAILABLE"
	KindInsufficientCoins    Kind = "INSUFFICIENT_COINS"
	KindSessionNotFound      Kind = "SESSION_NOT_FOUND"
	KindUserNotFound         Kind = "USER_NOT_FOUND"
	KindValidation           Kind = "VALIDATION_ERROR"
	KindAuthentication       Kind = "AUTHENTICATION_ERROR"
	KindInvalidToken         Kind = "INVALID_TOKEN"
	KindTokenExpired         Kind = "TOKEN_EXPIRED"
	KindRateLimited          Kind = "RATE_LIMITED"
	KindInternal             Kind = "INTERNAL"
)

var kind2code = map[Kind]Code{
	KindInvalidSession:       CodeInvalidArgument,
	KindQuestionNotInSession: CodeInvalidArgument,
	KindQuestionNotFound:     CodeNotFound,
	KindNoQuestions:          CodeNotFound,
	KindInsufficientCoins:    CodeFailedPrecondition,
	KindSessionNotFound:      CodeNotFound,
	KindUserNotFound:         CodeNotFound,
	KindValidation:           CodeInvalidArgument,
	KindAuthentication:       CodeUnauthenticated,
	KindInvalidToken:         CodeUnauthenticated,
	KindTokenExpired:         CodeUnauthenticated,
	KindRateLimited:          CodeResourceExhausted,
	KindInternal:             CodeInternal,
}

var kind2message = map[Kind]string{
	KindInvalidSession:       "Invalid session",
	KindQuestionNotInSession: "Question not part of session",
	KindQuestionNotFound:     "Question not found",
	KindNoQuestions:          "No questions available",
	KindInsufficientCoins:    "Insufficient coins",
	KindSessionNotFound:      "Session not found",
	KindUserNotFound:         "User not found",
	KindValidation:           "Validation failed",
	KindAuthentication:       "Authentication failed",
	KindInvalidToken:         "Invalid token",
	KindTokenExpired:         "Token has expired",
	KindRateLimited:          "Too many requests, please try again later",
	KindInternal:             "Internal server error",
}

type Error struct {
	Code    Code   `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	err     error
}

// New returns an error of the given kind with its default code and message.
func New(kind Kind, opts ...Option) *Error {
	code, ok := kind2code[kind]
	if !ok {
		code = CodeInternal
	}

	e := &Error{
		Code:    code,
		Kind:    kind,
		Message: kind2message[kind],
	}
	if e.Message == "" {
		e.Message = codes.Code(code).String()
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("kind: %s, message: %s", e.Kind, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an *Error of the same kind, so callers can match on sentinel kinds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

func Internal(err error) *Error {
	return New(KindInternal, WithCause(err))
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Convert(err).Kind
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}
