// Package expr evaluates autopilot script expressions over a captured
// token sequence. Named symbols resolve through an Env lookup, never by
// textual substitution, so a variable can never collide with a substring
// of another token.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Env resolves named symbols and function calls during evaluation.
// Resolve is tried for bare identifiers (including compound names such as
// ETA:APOAPSIS); Call handles builtins like ROUND and HEADING.
type Env interface {
	Resolve(name string) (float64, bool)
	Call(name string, args []float64) (float64, bool)
}

// Eval evaluates the token sequence against env and returns a number.
// Relational and logical operators yield 0 or 1.
func Eval(tokens []string, env Env) (float64, error) {
	p := &parser{tokens: tokens, env: env}
	v, err := p.parseOr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("expr: unexpected %q", p.tokens[p.pos])
	}
	return v, nil
}

// parser is a recursive-descent evaluator, one level per precedence tier.
type parser struct {
	tokens []string
	env    Env
	pos    int
}

func (p *parser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	if t != "" {
		p.pos++
	}
	return t
}

func (p *parser) expect(text string) error {
	if p.peek() != text {
		return fmt.Errorf("expr: expected %q, got %q", text, p.peek())
	}
	p.pos++
	return nil
}

func truthy(v float64) bool { return v != 0 }

func bool01(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (p *parser) parseOr() (float64, error) {
	left, err := p.parseAnd()
	if err != nil {
		return 0, err
	}
	for p.peek() == "||" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return 0, err
		}
		left = bool01(truthy(left) || truthy(right))
	}
	return left, nil
}

func (p *parser) parseAnd() (float64, error) {
	left, err := p.parseEquality()
	if err != nil {
		return 0, err
	}
	for p.peek() == "&&" {
		p.next()
		right, err := p.parseEquality()
		if err != nil {
			return 0, err
		}
		left = bool01(truthy(left) && truthy(right))
	}
	return left, nil
}

func (p *parser) parseEquality() (float64, error) {
	left, err := p.parseCompare()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != "==" && op != "!=" {
			return left, nil
		}
		p.next()
		right, err := p.parseCompare()
		if err != nil {
			return 0, err
		}
		if op == "==" {
			left = bool01(left == right)
		} else {
			left = bool01(left != right)
		}
	}
}

func (p *parser) parseCompare() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != "<" && op != ">" && op != "<=" && op != ">=" {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		switch op {
		case "<":
			left = bool01(left < right)
		case ">":
			left = bool01(left > right)
		case "<=":
			left = bool01(left <= right)
		case ">=":
			left = bool01(left >= right)
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != "+" && op != "-" {
			return left, nil
		}
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != "*" && op != "/" {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == "*" {
			left *= right
		} else {
			if right == 0 {
				return 0, fmt.Errorf("expr: division by zero")
			}
			left /= right
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	switch p.peek() {
	case "-":
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case "!":
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return bool01(!truthy(v)), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (float64, error) {
	tok := p.next()
	switch {
	case tok == "":
		return 0, fmt.Errorf("expr: unexpected end of expression")

	case tok == "(":
		v, err := p.parseOr()
		if err != nil {
			return 0, err
		}
		if err := p.expect(")"); err != nil {
			return 0, err
		}
		return v, nil

	case isNumber(tok):
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, fmt.Errorf("expr: bad number %q", tok)
		}
		return v, nil

	case strings.HasPrefix(tok, `"`):
		return 0, fmt.Errorf("expr: string %s is not a number", tok)

	case isIdent(tok):
		return p.parseSymbol(tok)

	default:
		return 0, fmt.Errorf("expr: unexpected token %q", tok)
	}
}

// parseSymbol resolves an identifier: a compound name (ETA:APOAPSIS), a
// function call, or a plain environment lookup.
func (p *parser) parseSymbol(name string) (float64, error) {
	// Compound symbol: IDENT : IDENT
	if p.peek() == ":" && p.pos+1 < len(p.tokens) && isIdent(p.tokens[p.pos+1]) {
		p.next() // :
		name = name + ":" + p.next()
	}

	if p.peek() == "(" {
		p.next()
		var args []float64
		if p.peek() != ")" {
			for {
				arg, err := p.parseOr()
				if err != nil {
					return 0, err
				}
				args = append(args, arg)
				if p.peek() == "," {
					p.next()
					continue
				}
				break
			}
		}
		if err := p.expect(")"); err != nil {
			return 0, err
		}
		v, ok := p.env.Call(name, args)
		if !ok {
			return 0, fmt.Errorf("expr: unknown function %s/%d", name, len(args))
		}
		return v, nil
	}

	v, ok := p.env.Resolve(name)
	if !ok {
		return 0, fmt.Errorf("expr: unresolved symbol %q", name)
	}
	return v, nil
}

func isNumber(s string) bool {
	return s != "" && (s[0] >= '0' && s[0] <= '9')
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
