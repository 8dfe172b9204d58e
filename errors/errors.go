package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDefine Phase = "define" // schema definition and layout compilation
	PhaseParse  Phase = "parse"  // stream parsing
	PhaseCreate Phase = "create" // whole-buffer decoding
	PhasePack   Phase = "pack"   // serialization
	PhaseDump   Phase = "dump"   // readable output conversion
)

// Kind categorizes the error
type Kind string

const (
	KindNeedMore      Kind = "need_more"      // buffer ends before the record does
	KindBadLen        Kind = "bad_len"        // length outside the permitted range
	KindBadFormat     Kind = "bad_format"     // bytes that cannot form a valid record
	KindBadValue      Kind = "bad_value"      // field value unusable for packing
	KindBadDefinition Kind = "bad_definition" // schema definition rejected
	KindFieldMissing  Kind = "field_missing"
	KindFieldUnknown  Kind = "field_unknown"
)

// ErrNeedMore signals that parsing stopped because the buffer ends before the
// record does. Stream loops treat it as a retry condition: append more bytes
// and parse again. It never indicates corrupt data.
var ErrNeedMore = &Error{
	Phase:  PhaseParse,
	Kind:   KindNeedMore,
	Detail: "buffer too short",
}

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string // schema type name, e.g. "lldp_tlv"
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Type != "" {
		b.WriteByte(' ')
		b.WriteString(e.Type)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Empty fields on the target
// act as wildcards, so errors.Is(err, &Error{Kind: KindBadLen}) matches any
// bad_len error regardless of phase or type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && e.Kind != t.Kind {
		return false
	}
	if t.Phase != "" && e.Phase != t.Phase {
		return false
	}
	if t.Type != "" && e.Type != t.Type {
		return false
	}
	return true
}

// IsNeedMore reports whether err signals an incomplete input buffer
func IsNeedMore(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == KindNeedMore
}

// IsBadLen reports whether err signals a length outside the permitted range
func IsBadLen(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == KindBadLen
}

// IsBadFormat reports whether err signals bytes that cannot form a valid record
func IsBadFormat(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == KindBadFormat
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the schema type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// BadLen creates a length-out-of-range error
func BadLen(phase Phase, typ string, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBadLen,
		Type:   typ,
		Detail: fmt.Sprintf(format, args...),
	}
}

// BadFormat creates an error for bytes that cannot form a valid record
func BadFormat(phase Phase, typ string, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBadFormat,
		Type:   typ,
		Detail: fmt.Sprintf(format, args...),
	}
}

// BadValue creates an error for a field value that cannot be packed
func BadValue(phase Phase, path []string, value any, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBadValue,
		Path:   path,
		Detail: fmt.Sprintf(format, args...),
		Value:  value,
	}
}

// Definition creates a schema definition error. The schema package panics
// with these at definition time, mirroring regexp.MustCompile.
func Definition(typ string, format string, args ...any) *Error {
	return &Error{
		Phase:  PhaseDefine,
		Kind:   KindBadDefinition,
		Type:   typ,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Corrupted creates the error raised when a whole-buffer decode runs out of
// data partway through a record
func Corrupted(typ string) *Error {
	return &Error{
		Phase:  PhaseCreate,
		Kind:   KindBadLen,
		Type:   typ,
		Detail: "cannot unpack: data is truncated or corrupted",
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// FieldUnknown creates an unknown field error
func FieldUnknown(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldUnknown,
		Path:   path,
		Detail: fmt.Sprintf("unknown field %q", fieldName),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Problem is a single fault found while loading a schema catalog
type Problem struct {
	Type  string // schema type the fault belongs to
	Field string // offending field, empty when the fault is type-wide
	Err   error
}

// DefinitionsError is returned when a catalog load rejects one or more
// schema definitions
type DefinitionsError struct {
	Problems []Problem
}

// NewDefinitionsError creates an error from the collected problems
func NewDefinitionsError(problems ...Problem) *DefinitionsError {
	return &DefinitionsError{Problems: problems}
}

func (e *DefinitionsError) Error() string {
	if len(e.Problems) == 0 {
		return "[define] bad_definition: no problems recorded"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d schema definition problem(s):\n", len(e.Problems)))

	// Group by type for cleaner output
	byType := make(map[string][]string)
	var typeOrder []string
	for _, p := range e.Problems {
		if _, exists := byType[p.Type]; !exists {
			typeOrder = append(typeOrder, p.Type)
		}
		msg := p.Err.Error()
		if p.Field != "" {
			msg = "field " + p.Field + ": " + msg
		}
		byType[p.Type] = append(byType[p.Type], msg)
	}

	for _, typ := range typeOrder {
		b.WriteString("\n  ")
		b.WriteString(typ)
		b.WriteString(":\n")
		for _, msg := range byType[typ] {
			b.WriteString("    - ")
			b.WriteString(msg)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *DefinitionsError) Is(target error) bool {
	_, ok := target.(*DefinitionsError)
	return ok
}
