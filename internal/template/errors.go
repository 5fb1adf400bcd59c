package template

import "fmt"

// Error is the base interface for all template errors.
type Error interface {
	error
	Position() Position
}

// baseError provides common error functionality.
type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }
func (e *baseError) Error() string {
	if e.pos.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.pos.File, e.pos.Line, e.pos.Column, e.msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// LexError represents an error during lexical analysis.
type LexError struct {
	baseError
}

// NewLexError creates a new lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{baseError: baseError{pos: pos, msg: msg}}
}

// ParseError represents a malformed token.
type ParseError struct {
	baseError
}

// NewParseErrorf creates a new parser error with formatting.
func NewParseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// ResolveError wraps a failure reported by the environment for one token.
type ResolveError struct {
	baseError
	Cause error
}

// WrapResolveError wraps an environment error as a resolve error.
func WrapResolveError(pos Position, token string, cause error) *ResolveError {
	return &ResolveError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("cannot resolve [%s]", token)},
		Cause:     cause,
	}
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %v", e.baseError.Error(), e.Cause)
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// DepthError reports tokens still present after the maximum number of passes.
type DepthError struct {
	Depth     int
	Remaining string
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("tokens remain after %d passes: %q", e.Depth, e.Remaining)
}
