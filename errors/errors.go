// Package errors is the error type used throughout oauthkit: a message with a
// call stack, a gRPC code and an optional context prefix.
//
// Sentinels are declared once with a code:
//
//	var ErrAccessToken = errors.NewC("access token error", codes.Unauthenticated)
//
// and returned with a fresh stack and context:
//
//	return nil, errors.WrapPrefix(ErrAccessToken, "oauth2: refresh token missing", 0)
//
// The result still matches the sentinel:
//
//	if errors.Is(err, ErrAccessToken) { ... }
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MaxStackDepth bounds the frames captured per error.
var MaxStackDepth = 32

// Error carries an underlying error, the stack it was raised from and the
// gRPC code describing it. The HTTP status is derived from the code unless
// set explicitly.
type Error struct {
	Err error

	prefix string
	code   codes.Code
	status int
	stack  []uintptr
}

// Frame is one entry of an error's call stack.
type Frame struct {
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s\n\t%s:%d\n", f.Function, f.File, f.Line)
}

// capture records the stack of the caller of the exported function invoking
// it, skipping skip further frames.
func capture(skip int) []uintptr {
	pcs := make([]uintptr, MaxStackDepth)
	return pcs[:runtime.Callers(3+skip, pcs)]
}

func asError(e interface{}) error {
	if err, ok := e.(error); ok {
		return err
	}
	return fmt.Errorf("%v", e)
}

// New returns an Error with codes.Unknown. Non-error values are formatted
// with %v.
func New(e interface{}) *Error {
	return &Error{Err: asError(e), code: codes.Unknown, stack: capture(0)}
}

// NewC returns an Error with the given code, the usual way to declare a
// sentinel.
func NewC(e interface{}, code codes.Code) *Error {
	return &Error{Err: asError(e), code: code, stack: capture(0)}
}

// Errorf is fmt.Errorf with a stack. The code is taken from any wrapped
// error.
func Errorf(format string, a ...interface{}) *Error {
	err := fmt.Errorf(format, a...)
	return &Error{Err: err, code: Code(err), stack: capture(0)}
}

// Codef is Errorf with an explicit code.
func Codef(code codes.Code, format string, a ...interface{}) *Error {
	return &Error{Err: fmt.Errorf(format, a...), code: code, stack: capture(0)}
}

// Wrap returns e as an *Error. An *Error is returned as is; anything else
// gets a stack starting skip frames above the caller.
func Wrap(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	if err, ok := e.(*Error); ok {
		return err
	}
	err := asError(e)
	return &Error{Err: err, code: Code(err), stack: capture(skip)}
}

// Mark returns a copy of e whose stack starts at the caller. Use it to
// return a sentinel.
func Mark(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	return derive(e, "", skip)
}

// WrapPrefix is Mark with a message prefix. Prefixes accumulate outermost
// first.
func WrapPrefix(e interface{}, prefix string, skip int) *Error {
	if e == nil {
		return nil
	}
	return derive(e, prefix, skip)
}

func derive(e interface{}, prefix string, skip int) *Error {
	out := &Error{prefix: prefix, stack: capture(skip + 1)}
	if err, ok := e.(*Error); ok {
		out.Err, out.code, out.status = err.Err, err.code, err.status
		if err.prefix != "" {
			out.prefix = joinPrefix(prefix, err.prefix)
		}
		return out
	}
	out.Err = asError(e)
	out.code = Code(out.Err)
	return out
}

func joinPrefix(outer, inner string) string {
	if outer == "" {
		return inner
	}
	return outer + ": " + inner
}

// WithCode returns a copy of err carrying code.
func WithCode(err error, code codes.Code) *Error {
	if err == nil {
		return nil
	}
	return derive(err, "", 0).WithCode(code)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func (err *Error) Error() string {
	if err.prefix == "" {
		return err.Err.Error()
	}
	return err.prefix + ": " + err.Err.Error()
}

func (err *Error) Unwrap() error {
	return err.Err
}

// Is matches errors derived from the same sentinel. Mark and WrapPrefix copy
// the underlying error into a new *Error, so identity alone is not enough.
func (err *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if err == t {
		return true
	}
	if err.Err == nil || t.Err == nil {
		return false
	}
	return stderrors.Is(err.Err, t.Err)
}

// Code returns the gRPC code.
func (err *Error) Code() codes.Code {
	return err.code
}

// WithCode sets the gRPC code.
func (err *Error) WithCode(code codes.Code) *Error {
	err.code = code
	return err
}

var httpStatuses = map[codes.Code]int{
	codes.OK:                 http.StatusOK,
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.OutOfRange:         http.StatusBadRequest,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.NotFound:           http.StatusNotFound,
	codes.AlreadyExists:      http.StatusConflict,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.FailedPrecondition: http.StatusPreconditionFailed,
	codes.Unimplemented:      http.StatusNotImplemented,
	codes.Unavailable:        http.StatusServiceUnavailable,
}

// HTTPStatusCode returns the explicit status, else the one mapped from the
// code, else 500.
func (err *Error) HTTPStatusCode() int {
	if err.status != 0 {
		return err.status
	}
	if s, ok := httpStatuses[err.code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WithHTTPStatusCode overrides the status mapped from the code.
func (err *Error) WithHTTPStatusCode(code int) *Error {
	err.status = code
	return err
}

// GRPCStatus lets grpc/status recover the code.
func (err *Error) GRPCStatus() *status.Status {
	return status.New(err.code, err.Error())
}

// Frames resolves the captured stack.
func (err *Error) Frames() []Frame {
	if len(err.stack) == 0 {
		return nil
	}
	frames := make([]Frame, 0, len(err.stack))
	it := runtime.CallersFrames(err.stack)
	for {
		f, more := it.Next()
		frames = append(frames, Frame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return frames
}

// ErrorStack returns the message followed by the stack.
func (err *Error) ErrorStack() string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteByte('\n')
	for _, f := range err.Frames() {
		sb.WriteString(f.String())
	}
	return sb.String()
}

// ShortStack renders at most n frames, after skipping skip, as
// "pkg.Func:line" entries joined by " < ". Suited to a single log field.
func (err *Error) ShortStack(skip, n int) string {
	frames := err.Frames()
	if skip >= len(frames) {
		return ""
	}
	frames = frames[skip:]
	if n > 0 && n < len(frames) {
		frames = frames[:n]
	}
	parts := make([]string, len(frames))
	for i, f := range frames {
		fn := f.Function
		if i := strings.LastIndexByte(fn, '/'); i >= 0 {
			fn = fn[i+1:]
		}
		parts[i] = fmt.Sprintf("%s:%d", fn, f.Line)
	}
	return strings.Join(parts, " < ")
}

// Code returns the gRPC code of the first error in err's chain exposing one,
// codes.OK for nil and codes.Unknown otherwise.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var ce interface{ Code() codes.Code }
	if stderrors.As(err, &ce) {
		return ce.Code()
	}
	return codes.Unknown
}

// HTTPStatusCode returns the HTTP status of the first error in err's chain
// exposing one, 200 for nil and 500 otherwise.
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var he interface{ HTTPStatusCode() int }
	if stderrors.As(err, &he) {
		return he.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
