package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the autopilot script lexer
// ---------------------------------------------------------------------------

// TokenKind classifies a token. The script language only distinguishes
// keywords from everything else: numbers, strings, identifiers, operators
// and punctuation are all atoms.
type TokenKind int

const (
	TokenAtom TokenKind = iota
	TokenKeyword
)

// Position locates a token in the source text (1-based).
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// Token is a single classified lexeme.
type Token struct {
	Kind TokenKind
	Text string
	Pos  Position
}

// Is reports whether the token is the named keyword.
func (t Token) Is(keyword string) bool {
	return t.Kind == TokenKeyword && t.Text == keyword
}

// IsAtom reports whether the token is an atom with the given text.
func (t Token) IsAtom(text string) bool {
	return t.Kind == TokenAtom && t.Text == text
}

func (t Token) String() string {
	if t.Kind == TokenKeyword {
		return fmt.Sprintf("KEYWORD(%s)", t.Text)
	}
	return fmt.Sprintf("ATOM(%s)", t.Text)
}

// Keywords are case-sensitive and fixed. A token spelled like a keyword is
// always classified as one, so script variables must avoid these names.
var keywords = map[string]bool{
	"PRINT":       true,
	"WAIT":        true,
	"LOCK":        true,
	"TO":          true,
	"STAGE":       true,
	"CLEARSCREEN": true,
	"IF":          true,
	"ELSE":        true,
	"UNTIL":       true,
	"AT":          true,
	"DECLARE":     true,
	"PARAMETER":   true,
	"SET":         true,
}

// statementKeywords are the keywords that can begin a statement. Expression
// gathering stops when one of these is seen at the top nesting level.
var statementKeywords = map[string]bool{
	"PRINT":       true,
	"WAIT":        true,
	"LOCK":        true,
	"SET":         true,
	"DECLARE":     true,
	"STAGE":       true,
	"CLEARSCREEN": true,
	"IF":          true,
	"ELSE":        true,
	"UNTIL":       true,
}

// IsKeyword reports whether s spells a language keyword.
func IsKeyword(s string) bool {
	return keywords[s]
}
