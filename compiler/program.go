package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode and instruction definitions
// ---------------------------------------------------------------------------

// Opcode identifies one virtual machine operation.
type Opcode int

const (
	OpPrint     Opcode = iota // evaluate expr, emit to the console
	OpLock                    // evaluate expr, write to an actuator channel
	OpSetVar                  // evaluate expr, store under Target
	OpWait                    // arm the wait timer with Seconds
	OpYield                   // suspend the current execution batch
	OpStage                   // trigger stage separation
	OpClear                   // clear the console
	OpJump                    // pc = Dest
	OpJumpTrue                // pc = Dest when expr is truthy
	OpJumpFalse               // pc = Dest when expr is falsy
)

var opcodeNames = map[Opcode]string{
	OpPrint:     "PRINT",
	OpLock:      "LOCK",
	OpSetVar:    "SET_VAR",
	OpWait:      "WAIT",
	OpYield:     "YIELD",
	OpStage:     "STAGE",
	OpClear:     "CLEAR",
	OpJump:      "JMP",
	OpJumpTrue:  "JMP_TRUE",
	OpJumpFalse: "JMP_FALSE",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP(%d)", int(op))
}

// PrintAt is the optional `AT (x, y)` position hint on a PRINT statement.
// Both coordinates are captured expressions, evaluated at run time.
type PrintAt struct {
	X []string
	Y []string
}

// Instruction is one compiled operation. Instructions are immutable once
// compilation completes; only the compiler patches Dest fields, and only
// before returning the program.
type Instruction struct {
	Op      Opcode
	Target  string   // LOCK / SET_VAR destination identifier
	Expr    []string // captured expression tokens
	Seconds float64  // WAIT literal duration
	Dest    int      // absolute jump index; len(program) means program end
	At      *PrintAt // optional PRINT position hint
}

func (in Instruction) String() string {
	var b strings.Builder
	b.WriteString(in.Op.String())
	if in.Target != "" {
		fmt.Fprintf(&b, " %s", in.Target)
	}
	if len(in.Expr) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(in.Expr, " "))
	}
	switch in.Op {
	case OpWait:
		fmt.Fprintf(&b, " %g", in.Seconds)
	case OpJump, OpJumpTrue, OpJumpFalse:
		fmt.Fprintf(&b, " -> %d", in.Dest)
	}
	if in.At != nil {
		fmt.Fprintf(&b, " at (%s, %s)", strings.Join(in.At.X, " "), strings.Join(in.At.Y, " "))
	}
	return b.String()
}

// Program is an ordered, 0-indexed instruction sequence. Every jump
// destination lies in [0, len]; len denotes program end.
type Program []Instruction

// Disassemble renders the program one instruction per line.
func (p Program) Disassemble() string {
	var b strings.Builder
	for i, in := range p {
		fmt.Fprintf(&b, "%-4d %s\n", i, in.String())
	}
	return b.String()
}
