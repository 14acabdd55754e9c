package compiler

import (
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for autopilot scripts
// ---------------------------------------------------------------------------

// Lexer walks script source left to right, producing keyword/atom tokens.
// Line comments (`//`) are stripped. Characters that match nothing are
// dropped silently; the language raises no lexical errors.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given source text.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
	} else {
		r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
		l.ch = r
		l.pos = l.readPos
		l.readPos += size

		if r == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current source position.
func (l *Lexer) position() Position {
	return Position{Line: l.line, Column: l.col}
}

// twoCharOps are the multi-character operators matched greedily before
// single-character operators.
var twoCharOps = map[string]bool{
	"<=": true, ">=": true, "==": true, "!=": true, "&&": true, "||": true,
}

func isOpChar(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '<', '>', '=', '!', '&', '|':
		return true
	}
	return false
}

func isPunct(r rune) bool {
	switch r {
	case '{', '}', '(', ')', ',', '.':
		return true
	}
	return false
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// next scans one token. ok is false at end of input.
func (l *Lexer) next() (Token, bool) {
	for {
		// Skip whitespace
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		// Line comment: // to end of line
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		break
	}

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{}, false

	case isIdentStart(l.ch):
		start := l.pos
		for isIdentPart(l.ch) {
			l.readChar()
		}
		text := l.input[start:l.pos]
		kind := TokenAtom
		if IsKeyword(text) {
			kind = TokenKeyword
		}
		return Token{Kind: kind, Text: text, Pos: pos}, true

	case isDigit(l.ch):
		// Number with optional fraction. The fraction dot binds to the
		// number only when a digit follows, so `WAIT 2.` still ends in
		// a statement terminator.
		start := l.pos
		for isDigit(l.ch) {
			l.readChar()
		}
		if l.ch == '.' && isDigit(l.peekChar()) {
			l.readChar()
			for isDigit(l.ch) {
				l.readChar()
			}
		}
		return Token{Kind: TokenAtom, Text: l.input[start:l.pos], Pos: pos}, true

	case l.ch == '"':
		// Quoted string; the quotes stay in the atom text so later
		// stages can tell strings from identifiers.
		start := l.pos
		l.readChar()
		for l.ch != '"' && l.ch != 0 {
			l.readChar()
		}
		if l.ch == '"' {
			l.readChar()
		}
		return Token{Kind: TokenAtom, Text: l.input[start:l.pos], Pos: pos}, true

	case isOpChar(l.ch):
		if two := string(l.ch) + string(l.peekChar()); twoCharOps[two] {
			l.readChar()
			l.readChar()
			return Token{Kind: TokenAtom, Text: two, Pos: pos}, true
		}
		ch := l.ch
		l.readChar()
		return Token{Kind: TokenAtom, Text: string(ch), Pos: pos}, true

	case isPunct(l.ch) || l.ch == ':':
		ch := l.ch
		l.readChar()
		return Token{Kind: TokenAtom, Text: string(ch), Pos: pos}, true

	default:
		// Unknown character: drop it and keep scanning.
		l.readChar()
		return l.next()
	}
}

// Tokenize returns all tokens from the source text.
func Tokenize(src string) []Token {
	l := NewLexer(src)
	var tokens []Token
	for {
		tok, ok := l.next()
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}
