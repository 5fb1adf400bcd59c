package template

import "strings"

// Parse lexes and parses input into nodes.
func Parse(input, file string) ([]Node, error) {
	tokens, err := NewLexer(input, file).Tokenize()
	if err != nil {
		return nil, err
	}
	return ParseTokens(tokens)
}

// ParseTokens converts lexer tokens into nodes.
func ParseTokens(tokens []Token) ([]Node, error) {
	nodes := make([]Node, 0, len(tokens))
	for _, tok := range tokens {
		switch tok.Type {
		case TokenText:
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})
		case TokenRef:
			n, err := parseRef(tok)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		case TokenEOF:
			return nodes, nil
		}
	}
	return nodes, nil
}

// parseRef reads the modifier prefix of a token and builds the matching node.
func parseRef(tok Token) (Node, error) {
	content := tok.Value
	base := refBase{nodeBase: nodeBase{pos: tok.Pos}}
	var mode byte

	for len(content) > 0 {
		c := content[0]
		if c == '~' {
			base.Slug = true
			content = content[1:]
			continue
		}
		if c != '!' && c != '?' && c != '*' {
			break
		}
		if mode != 0 {
			return nil, NewParseErrorf(tok.Pos, "conflicting modifiers %q and %q in [%s]", mode, c, tok.Value)
		}
		mode = c
		content = content[1:]
	}

	name := strings.TrimSpace(content)
	if name == "" {
		return nil, NewParseErrorf(tok.Pos, "token [%s] has no name", tok.Value)
	}

	switch mode {
	case '!':
		return &FieldRef{refBase: base, Name: name}, nil
	case '?':
		path := strings.Split(name, ".")
		for _, seg := range path {
			if seg == "" {
				return nil, NewParseErrorf(tok.Pos, "lookup [%s] has an empty path segment", tok.Value)
			}
		}
		return &LookupRef{refBase: base, Path: path}, nil
	case '*':
		return &ArrayFetch{refBase: base, Name: name}, nil
	default:
		return &GeneratorRef{refBase: base, Name: name}, nil
	}
}
