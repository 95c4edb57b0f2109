package spec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes generation errors for clearer handling and messaging.
type ErrorCode string

const (
	IoError                   ErrorCode = "IoError"
	ParseError                ErrorCode = "ParseError"
	UnresolvedReferenceError  ErrorCode = "UnresolvedReferenceError"
	UnsupportedReferenceError ErrorCode = "UnsupportedReferenceError"
	OperationModelError       ErrorCode = "OperationModelError"
	EmitError                 ErrorCode = "EmitError"
)

// Sentinel errors for errors.Is checks. A *SpecError matches the sentinel of its Code.
var (
	ErrIO                   = errors.New("spec: io error")
	ErrParse                = errors.New("spec: parse error")
	ErrUnresolvedReference  = errors.New("spec: unresolved reference")
	ErrUnsupportedReference = errors.New("spec: unsupported reference")
	ErrCircularReference    = errors.New("spec: circular reference")
	ErrOperationModel       = errors.New("spec: operation model error")
	ErrEmit                 = errors.New("spec: emit error")
)

var codeSentinels = map[ErrorCode]error{
	IoError:                   ErrIO,
	ParseError:                ErrParse,
	UnresolvedReferenceError:  ErrUnresolvedReference,
	UnsupportedReferenceError: ErrUnsupportedReference,
	OperationModelError:       ErrOperationModel,
	EmitError:                 ErrEmit,
}

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // document id: file path or URL
	JSONPointer string // e.g. "/paths/~1pets/get"
	Ref         string // raw $ref text, when the error concerns a reference
	Method      string
	Path        string
	Circular    bool
	Cause       error
}

func (e *SpecError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Location != "" {
		b.WriteString(" (in ")
		b.WriteString(e.Location)
		if e.JSONPointer != "" {
			b.WriteString("#")
			b.WriteString(e.JSONPointer)
		}
		b.WriteString(")")
	}
	if e.Cause != nil && !strings.Contains(e.Message, e.Cause.Error()) {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *SpecError) Unwrap() error { return e.Cause }

// Is reports whether target is the sentinel matching the error code.
func (e *SpecError) Is(target error) bool {
	if e.Circular && target == ErrCircularReference {
		return true
	}
	if s, ok := codeSentinels[e.Code]; ok {
		return s == target
	}
	return false
}

func ioErr(location string, cause error, format string, args ...any) *SpecError {
	return &SpecError{Code: IoError, Message: fmt.Sprintf(format, args...), Location: location, Cause: cause}
}

func parseErr(location, pointer string, format string, args ...any) *SpecError {
	return &SpecError{Code: ParseError, Message: fmt.Sprintf(format, args...), Location: location, JSONPointer: pointer}
}

// NewOperationError wraps cause as an OperationModelError for the given operation.
func NewOperationError(method, path string, cause error) *SpecError {
	e := &SpecError{
		Code:    OperationModelError,
		Message: fmt.Sprintf("model operation %s %s", strings.ToUpper(method), path),
		Method:  method,
		Path:    path,
		Cause:   cause,
	}
	var se *SpecError
	if errors.As(cause, &se) {
		e.Location = se.Location
		e.JSONPointer = se.JSONPointer
	}
	return e
}

// NewEmitError reports a model construct the emitter cannot render.
func NewEmitError(origin Origin, format string, args ...any) *SpecError {
	return &SpecError{
		Code:        EmitError,
		Message:     fmt.Sprintf(format, args...),
		Location:    origin.Doc,
		JSONPointer: origin.Pointer,
	}
}
