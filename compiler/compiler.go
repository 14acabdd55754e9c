package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Compiler: single-pass statement compiler with backpatching
// ---------------------------------------------------------------------------

// CompileError describes a malformed script with a best-effort position.
type CompileError struct {
	Message string
	Pos     Position
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s at %s", e.Message, e.Pos)
}

type blockKind int

const (
	blockIf blockKind = iota
	blockElse
	blockUntil
)

// openBlock tracks one unclosed IF/ELSE/UNTIL block. patchIndex is the
// jump instruction whose destination is still unresolved; loopStart is the
// condition-check position for UNTIL loops.
type openBlock struct {
	kind       blockKind
	patchIndex int
	loopStart  int
	openedAt   Position
}

// closedIf records the most recently closed IF at a given nesting depth so
// a following ELSE can chain to it. Tracking the depth keeps a nested IF
// that closes just before the outer one from stealing the ELSE.
type closedIf struct {
	patchIndex int
	depth      int
}

// Compiler consumes a token sequence and emits a Program.
type Compiler struct {
	tokens []Token
	pos    int
	code   Program
	blocks []openBlock
	lastIf *closedIf
}

// Compile lexes and compiles script source into a program. All jump
// destinations are resolved on success; unbalanced blocks and stray
// closing braces are compile errors.
func Compile(source string) (Program, error) {
	c := &Compiler{tokens: Tokenize(source)}
	if err := c.run(); err != nil {
		return nil, err
	}
	return c.code, nil
}

func (c *Compiler) run() error {
	for c.pos < len(c.tokens) {
		tok := c.tokens[c.pos]

		var err error
		switch {
		case tok.Is("PRINT"):
			err = c.compilePrint()
		case tok.Is("LOCK"):
			err = c.compileLock()
		case tok.Is("SET"):
			err = c.compileSet()
		case tok.Is("DECLARE"):
			err = c.compileDeclare()
		case tok.Is("WAIT"):
			err = c.compileWait()
		case tok.Is("STAGE"):
			err = c.compileSimple(OpStage)
		case tok.Is("CLEARSCREEN"):
			err = c.compileSimple(OpClear)
		case tok.Is("IF"):
			err = c.compileIf()
		case tok.Is("ELSE"):
			err = c.compileElse()
		case tok.Is("UNTIL"):
			err = c.compileUntil()
		case tok.IsAtom("}"):
			err = c.closeBlock()
		default:
			// Stray tokens outside statement recognition are skipped.
			c.pos++
		}
		if err != nil {
			return err
		}
	}

	if len(c.blocks) > 0 {
		b := c.blocks[len(c.blocks)-1]
		return &CompileError{Message: "unclosed block", Pos: b.openedAt}
	}
	return nil
}

func (c *Compiler) emit(in Instruction) int {
	c.code = append(c.code, in)
	return len(c.code) - 1
}

func (c *Compiler) peek() (Token, bool) {
	if c.pos >= len(c.tokens) {
		return Token{}, false
	}
	return c.tokens[c.pos], true
}

// errorAt builds a CompileError at the current position, falling back to
// the last token when input ran out.
func (c *Compiler) errorAt(format string, args ...interface{}) error {
	pos := Position{Line: 1, Column: 1}
	if c.pos < len(c.tokens) {
		pos = c.tokens[c.pos].Pos
	} else if len(c.tokens) > 0 {
		pos = c.tokens[len(c.tokens)-1].Pos
	}
	return &CompileError{Message: fmt.Sprintf(format, args...), Pos: pos}
}

// expectAtom consumes the given atom or fails.
func (c *Compiler) expectAtom(text, context string) error {
	tok, ok := c.peek()
	if !ok || !tok.IsAtom(text) {
		return c.errorAt("%s requires %q", context, text)
	}
	c.pos++
	return nil
}

// expectIdent consumes an identifier atom and returns its text.
func (c *Compiler) expectIdent(context string) (string, error) {
	tok, ok := c.peek()
	if !ok || tok.Kind != TokenAtom || !isIdentStart([]rune(tok.Text)[0]) {
		return "", c.errorAt("%s requires an identifier", context)
	}
	c.pos++
	return tok.Text, nil
}

// gatherExpr collects expression tokens until one of the stop atoms, the
// AT keyword, or a statement-starting keyword is seen at paren depth 0.
// The stopping token is not consumed.
func (c *Compiler) gatherExpr(stops ...string) []string {
	var out []string
	depth := 0
	for c.pos < len(c.tokens) {
		tok := c.tokens[c.pos]
		if depth == 0 {
			if tok.Kind == TokenKeyword && (statementKeywords[tok.Text] || tok.Text == "AT") {
				break
			}
			stopped := false
			for _, s := range stops {
				if tok.IsAtom(s) {
					stopped = true
					break
				}
			}
			if stopped {
				break
			}
		}
		if tok.IsAtom("(") {
			depth++
		} else if tok.IsAtom(")") {
			depth--
		}
		out = append(out, tok.Text)
		c.pos++
	}
	return out
}

// terminate consumes the `.` statement terminator.
func (c *Compiler) terminate(context string) error {
	tok, ok := c.peek()
	if !ok || !tok.IsAtom(".") {
		return c.errorAt("%s must end with '.'", context)
	}
	c.pos++
	return nil
}

// PRINT <expr> [AT (<x>, <y>)] .
func (c *Compiler) compilePrint() error {
	c.lastIf = nil
	c.pos++ // PRINT

	expr := c.gatherExpr(".", "{", "}")
	if len(expr) == 0 {
		return c.errorAt("PRINT requires an expression")
	}

	var at *PrintAt
	if tok, ok := c.peek(); ok && tok.Is("AT") {
		c.pos++
		if err := c.expectAtom("(", "PRINT AT"); err != nil {
			return err
		}
		x := c.gatherExpr(",", ")")
		if err := c.expectAtom(",", "PRINT AT"); err != nil {
			return err
		}
		y := c.gatherExpr(")", ",")
		if err := c.expectAtom(")", "PRINT AT"); err != nil {
			return err
		}
		if len(x) == 0 || len(y) == 0 {
			return c.errorAt("PRINT AT requires two coordinates")
		}
		at = &PrintAt{X: x, Y: y}
	}

	if err := c.terminate("PRINT"); err != nil {
		return err
	}
	c.emit(Instruction{Op: OpPrint, Expr: expr, At: at})
	return nil
}

// LOCK <target> TO <expr> .
func (c *Compiler) compileLock() error {
	c.lastIf = nil
	c.pos++ // LOCK

	target, err := c.expectIdent("LOCK")
	if err != nil {
		return err
	}
	tok, ok := c.peek()
	if !ok || !tok.Is("TO") {
		return c.errorAt("LOCK requires TO")
	}
	c.pos++

	expr := c.gatherExpr(".", "{", "}")
	if len(expr) == 0 {
		return c.errorAt("LOCK requires an expression")
	}
	if err := c.terminate("LOCK"); err != nil {
		return err
	}
	c.emit(Instruction{Op: OpLock, Target: target, Expr: expr})
	return nil
}

// SET <name> TO <expr> .
func (c *Compiler) compileSet() error {
	c.lastIf = nil
	c.pos++ // SET

	name, err := c.expectIdent("SET")
	if err != nil {
		return err
	}
	tok, ok := c.peek()
	if !ok || !tok.Is("TO") {
		return c.errorAt("SET requires TO")
	}
	c.pos++

	expr := c.gatherExpr(".", "{", "}")
	if len(expr) == 0 {
		return c.errorAt("SET requires an expression")
	}
	if err := c.terminate("SET"); err != nil {
		return err
	}
	c.emit(Instruction{Op: OpSetVar, Target: name, Expr: expr})
	return nil
}

// DECLARE PARAMETER <name> .   Initializes the variable to 0.
func (c *Compiler) compileDeclare() error {
	c.lastIf = nil
	c.pos++ // DECLARE

	tok, ok := c.peek()
	if !ok || !tok.Is("PARAMETER") {
		return c.errorAt("DECLARE requires PARAMETER")
	}
	c.pos++

	name, err := c.expectIdent("DECLARE PARAMETER")
	if err != nil {
		return err
	}
	if err := c.terminate("DECLARE PARAMETER"); err != nil {
		return err
	}
	c.emit(Instruction{Op: OpSetVar, Target: name, Expr: []string{"0"}})
	return nil
}

// WAIT <seconds> .  or  WAIT UNTIL <expr> .
func (c *Compiler) compileWait() error {
	c.lastIf = nil
	c.pos++ // WAIT

	if tok, ok := c.peek(); ok && tok.Is("UNTIL") {
		c.pos++
		cond := c.gatherExpr(".", "{", "}")
		if len(cond) == 0 {
			return c.errorAt("WAIT UNTIL requires a condition")
		}
		if err := c.terminate("WAIT UNTIL"); err != nil {
			return err
		}
		// Poll once per scheduler re-entry: test, suspend on false,
		// re-test from the top on the next invocation.
		s := len(c.code)
		c.emit(Instruction{Op: OpJumpTrue, Expr: cond, Dest: s + 3})
		c.emit(Instruction{Op: OpYield})
		c.emit(Instruction{Op: OpJump, Dest: s})
		return nil
	}

	tok, ok := c.peek()
	if !ok || tok.Kind != TokenAtom {
		return c.errorAt("WAIT requires a duration")
	}
	seconds, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return c.errorAt("WAIT requires a numeric duration, got %q", tok.Text)
	}
	c.pos++
	if err := c.terminate("WAIT"); err != nil {
		return err
	}
	c.emit(Instruction{Op: OpWait, Seconds: seconds})
	return nil
}

// STAGE . / CLEARSCREEN .
func (c *Compiler) compileSimple(op Opcode) error {
	c.lastIf = nil
	keyword := c.tokens[c.pos].Text
	c.pos++
	if err := c.terminate(keyword); err != nil {
		return err
	}
	c.emit(Instruction{Op: op})
	return nil
}

// IF <expr> { ... }
func (c *Compiler) compileIf() error {
	c.lastIf = nil
	openedAt := c.tokens[c.pos].Pos
	c.pos++ // IF

	cond := c.gatherExpr("{", ".", "}")
	if len(cond) == 0 {
		return c.errorAt("IF requires a condition")
	}
	if err := c.expectAtom("{", "IF"); err != nil {
		return err
	}

	patch := c.emit(Instruction{Op: OpJumpFalse, Expr: cond, Dest: -1})
	c.blocks = append(c.blocks, openBlock{kind: blockIf, patchIndex: patch, openedAt: openedAt})
	return nil
}

// ELSE { ... }  Valid only immediately after a closed IF at this depth.
func (c *Compiler) compileElse() error {
	if c.lastIf == nil || c.lastIf.depth != len(c.blocks) {
		return c.errorAt("ELSE without a matching IF")
	}
	openedAt := c.tokens[c.pos].Pos
	c.pos++ // ELSE
	if err := c.expectAtom("{", "ELSE"); err != nil {
		return err
	}

	// Skip the else branch when the IF branch was taken, and redirect the
	// IF's false-jump into the else body.
	patch := c.emit(Instruction{Op: OpJump, Dest: -1})
	c.code[c.lastIf.patchIndex].Dest = patch + 1
	c.blocks = append(c.blocks, openBlock{kind: blockElse, patchIndex: patch, openedAt: openedAt})
	c.lastIf = nil
	return nil
}

// UNTIL <expr> { ... }
func (c *Compiler) compileUntil() error {
	c.lastIf = nil
	openedAt := c.tokens[c.pos].Pos
	c.pos++ // UNTIL

	cond := c.gatherExpr("{", ".", "}")
	if len(cond) == 0 {
		return c.errorAt("UNTIL requires a condition")
	}
	if err := c.expectAtom("{", "UNTIL"); err != nil {
		return err
	}

	start := len(c.code)
	c.emit(Instruction{Op: OpJumpTrue, Expr: cond, Dest: -1})
	c.blocks = append(c.blocks, openBlock{kind: blockUntil, patchIndex: start, loopStart: start, openedAt: openedAt})
	return nil
}

// closeBlock handles `}`, patching the block's pending jump.
func (c *Compiler) closeBlock() error {
	if len(c.blocks) == 0 {
		return c.errorAt("unmatched '}'")
	}
	c.pos++ // }

	b := c.blocks[len(c.blocks)-1]
	c.blocks = c.blocks[:len(c.blocks)-1]

	switch b.kind {
	case blockIf:
		c.code[b.patchIndex].Dest = len(c.code)
		c.lastIf = &closedIf{patchIndex: b.patchIndex, depth: len(c.blocks)}
	case blockElse:
		c.code[b.patchIndex].Dest = len(c.code)
	case blockUntil:
		// Suspend once per iteration, then retest from the top.
		c.emit(Instruction{Op: OpYield})
		c.emit(Instruction{Op: OpJump, Dest: b.loopStart})
		c.code[b.patchIndex].Dest = len(c.code)
	}
	return nil
}
