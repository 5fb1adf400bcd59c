package template

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template token types.
const (
	TokenText TokenType = iota // Literal text
	TokenRef                   // Token content (between [ and ])
	TokenEOF                   // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenRef:
		return "REF"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Lexer splits a template into text and innermost [token] spans.
// A '[' that is followed by another '[' before its ']' is literal text, so
// "[[a]]" lexes as text "[", ref "a", text "]" and resolves on a later pass.
type Lexer struct {
	input    string
	file     string
	pos      int // current position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{
		input: input,
		file:  file,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	return tokens, nil
}

func (l *Lexer) nextToken() (Token, error) {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}, nil
	}

	if l.atTokenStart() {
		return l.scanRef()
	}

	return l.scanText()
}

// atTokenStart reports whether the '[' at the current position opens an
// innermost token. An unclosed '[' is a lex error.
func (l *Lexer) atTokenStart() bool {
	if l.peek() != '[' {
		return false
	}
	rest := l.input[l.pos+1:]
	closeIdx := strings.IndexByte(rest, ']')
	if closeIdx < 0 {
		// no closer: let scanRef report it
		return true
	}
	openIdx := strings.IndexByte(rest, '[')
	return openIdx < 0 || openIdx > closeIdx
}

func (l *Lexer) scanText() (Token, error) {
	l.markStart()
	start := l.pos

	for l.pos < len(l.input) {
		if l.atTokenStart() {
			break
		}
		l.advance()
	}

	if l.pos == start {
		return Token{}, NewLexError(l.position(), "unexpected state in lexer")
	}

	return Token{
		Type:  TokenText,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}, nil
}

func (l *Lexer) scanRef() (Token, error) {
	l.markStart()

	// Skip [
	l.advance()
	start := l.pos

	for l.pos < len(l.input) {
		if l.peek() == ']' {
			content := strings.TrimSpace(l.input[start:l.pos])
			l.advance()
			if content == "" {
				return Token{}, NewLexError(l.startPosition(), "empty token '[]'")
			}
			return Token{
				Type:  TokenRef,
				Value: content,
				Pos:   l.startPosition(),
			}, nil
		}
		l.advance()
	}

	return Token{}, NewLexError(l.startPosition(), "unclosed token: missing ']'")
}

// Helper methods

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

func (l *Lexer) startPosition() Position {
	return Position{File: l.file, Line: l.lastLine, Column: l.lastCol}
}
