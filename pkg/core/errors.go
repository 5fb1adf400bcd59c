package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a generation failure.
type ErrorKind int

// Error kinds, grouped by the phase that detects them.
const (
	KindUnknown ErrorKind = iota

	// Schema errors, detected while building the model.
	KindDuplicateEntity
	KindFieldConflict
	KindInvalidRelationship
	KindInvalidSingular
	KindInvalidGenerator
	KindInheritanceCycle
	KindUnknownEntity

	// Generation errors, detected while detokenising.
	KindUnknownGenerator
	KindDetokenisationFailed
	KindUniqueGenerationFailed
	KindUnknownField

	// Wiring errors, detected while connecting relationships.
	KindMissingTable
	KindInsufficientRows
	KindInsufficientChildren
	KindUnresolvedPath

	// Trigger and stream errors.
	KindMalformedIndex
	KindEmptyQuery
	KindInvalidRange
)

var kindNames = map[ErrorKind]string{
	KindUnknown:                "unknown",
	KindDuplicateEntity:        "duplicate entity",
	KindFieldConflict:          "field conflict",
	KindInvalidRelationship:    "invalid relationship",
	KindInvalidSingular:        "invalid singular relationship",
	KindInvalidGenerator:       "invalid generator",
	KindInheritanceCycle:       "inheritance cycle",
	KindUnknownEntity:          "unknown entity",
	KindUnknownGenerator:       "unknown generator",
	KindDetokenisationFailed:   "detokenisation failed",
	KindUniqueGenerationFailed: "unique generation failed",
	KindUnknownField:           "unknown field",
	KindMissingTable:           "missing table",
	KindInsufficientRows:       "insufficient rows",
	KindInsufficientChildren:   "insufficient children",
	KindUnresolvedPath:         "unresolved path",
	KindMalformedIndex:         "malformed index",
	KindEmptyQuery:             "empty query",
	KindInvalidRange:           "invalid range",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Category returns the phase group of the kind: schema, generation, wiring or trigger.
func (k ErrorKind) Category() string {
	switch {
	case k >= KindDuplicateEntity && k <= KindUnknownEntity:
		return "schema"
	case k >= KindUnknownGenerator && k <= KindUnknownField:
		return "generation"
	case k >= KindMissingTable && k <= KindUnresolvedPath:
		return "wiring"
	case k >= KindMalformedIndex && k <= KindInvalidRange:
		return "trigger"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced by model construction and generation.
// It carries enough identity to locate the offending schema definition.
type Error struct {
	Kind         ErrorKind
	Entity       string
	Field        string
	Relationship string
	Msg          string
	Err          error
}

// Errorf creates an error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Entity != "" {
		fmt.Fprintf(&b, ": entity %q", e.Entity)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	if e.Relationship != "" {
		fmt.Fprintf(&b, " (relationship %s)", e.Relationship)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
// This lets the Err* sentinels below be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// WithEntity returns a copy of e with the entity set if it was empty.
func (e *Error) WithEntity(entity string) *Error {
	c := *e
	if c.Entity == "" {
		c.Entity = entity
	}
	return &c
}

// WithField returns a copy of e with the field set if it was empty.
func (e *Error) WithField(field string) *Error {
	c := *e
	if c.Field == "" {
		c.Field = field
	}
	return &c
}

// Sentinels for errors.Is comparisons.
var (
	ErrDuplicateEntity        = &Error{Kind: KindDuplicateEntity}
	ErrFieldConflict          = &Error{Kind: KindFieldConflict}
	ErrInvalidRelationship    = &Error{Kind: KindInvalidRelationship}
	ErrInvalidSingular        = &Error{Kind: KindInvalidSingular}
	ErrUnknownGenerator       = &Error{Kind: KindUnknownGenerator}
	ErrDetokenisationFailed   = &Error{Kind: KindDetokenisationFailed}
	ErrUniqueGenerationFailed = &Error{Kind: KindUniqueGenerationFailed}
	ErrMissingTable           = &Error{Kind: KindMissingTable}
	ErrInsufficientRows       = &Error{Kind: KindInsufficientRows}
	ErrInsufficientChildren   = &Error{Kind: KindInsufficientChildren}
	ErrUnresolvedPath         = &Error{Kind: KindUnresolvedPath}
	ErrMalformedIndex         = &Error{Kind: KindMalformedIndex}
	ErrEmptyQuery             = &Error{Kind: KindEmptyQuery}
)

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return errors.Is(err, &Error{Kind: kind})
}
