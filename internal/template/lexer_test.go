package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_PlainText(t *testing.T) {
	input := "no tokens here"
	lexer := NewLexer(input, "User.name")

	tokens, err := lexer.Tokenize()
	require.NoError(t, err, "unexpected error")

	require.Len(t, tokens, 2, "expected 2 tokens") // TEXT + EOF

	assert.Equal(t, TokenText, tokens[0].Type, "expected TEXT")
	assert.Equal(t, input, tokens[0].Value, "expected input value")
	assert.Equal(t, TokenEOF, tokens[1].Type, "expected EOF")
}

func TestLexer_Tokens(t *testing.T) {
	type tok struct {
		typ TokenType
		val string
	}
	tests := []struct {
		name     string
		input    string
		expected []tok
	}{
		{
			name:  "email template",
			input: "[!firstname].[!lastname]@[server].[tld]",
			expected: []tok{
				{TokenRef, "!firstname"},
				{TokenText, "."},
				{TokenRef, "!lastname"},
				{TokenText, "@"},
				{TokenRef, "server"},
				{TokenText, "."},
				{TokenRef, "tld"},
				{TokenEOF, ""},
			},
		},
		{
			name:  "whitespace inside token is trimmed",
			input: "id-[ uuid ]",
			expected: []tok{
				{TokenText, "id-"},
				{TokenRef, "uuid"},
				{TokenEOF, ""},
			},
		},
		{
			name:  "nested brackets resolve innermost first",
			input: "[[kind]]",
			expected: []tok{
				{TokenText, "["},
				{TokenRef, "kind"},
				{TokenText, "]"},
				{TokenEOF, ""},
			},
		},
		{
			name:  "stray closer is text",
			input: "a]b",
			expected: []tok{
				{TokenText, "a]b"},
				{TokenEOF, ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := NewLexer(tt.input, "").Tokenize()
			require.NoError(t, err)
			require.Len(t, tokens, len(tt.expected), "wrong number of tokens")
			for i, exp := range tt.expected {
				assert.Equal(t, exp.typ, tokens[i].Type, "token[%d] type", i)
				if exp.typ != TokenEOF {
					assert.Equal(t, exp.val, tokens[i].Value, "token[%d] value", i)
				}
			}
		})
	}
}

func TestLexer_Positions(t *testing.T) {
	tokens, err := NewLexer("ab\n[x]", "User.bio").Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	assert.Equal(t, Position{File: "User.bio", Line: 1, Column: 1}, tokens[0].Pos)
	assert.Equal(t, Position{File: "User.bio", Line: 2, Column: 1}, tokens[1].Pos)
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{name: "unclosed", input: "abc [name", errMsg: "unclosed token"},
		{name: "unclosed nested", input: "[[name", errMsg: "unclosed token"},
		{name: "empty", input: "a [ ] b", errMsg: "empty token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLexer(tt.input, "").Tokenize()
			require.Error(t, err)
			var lexErr *LexError
			require.ErrorAs(t, err, &lexErr)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestTokenType_String(t *testing.T) {
	assert.Equal(t, "TEXT", TokenText.String())
	assert.Equal(t, "REF", TokenRef.String())
	assert.Equal(t, "EOF", TokenEOF.String())
	assert.Equal(t, "UNKNOWN", TokenType(99).String())
}
