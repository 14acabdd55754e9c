package compiler

import (
	"strings"
	"testing"
)

func mustCompile(t *testing.T, source string) Program {
	t.Helper()
	program, err := Compile(source)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return program
}

func compileError(t *testing.T, source string) *CompileError {
	t.Helper()
	_, err := Compile(source)
	if err == nil {
		t.Fatalf("expected compile error for %q", source)
	}
	cerr, ok := err.(*CompileError)
	if !ok {
		t.Fatalf("error type = %T, want *CompileError", err)
	}
	return cerr
}

func TestCompileLock(t *testing.T) {
	program := mustCompile(t, "LOCK THROTTLE TO 1 .")
	if len(program) != 1 {
		t.Fatalf("got %d instructions", len(program))
	}
	in := program[0]
	if in.Op != OpLock || in.Target != "THROTTLE" {
		t.Errorf("instruction = %v", in)
	}
	if len(in.Expr) != 1 || in.Expr[0] != "1" {
		t.Errorf("expr = %v", in.Expr)
	}
}

func TestCompileSetAndDeclare(t *testing.T) {
	program := mustCompile(t, "SET X TO 2 + 3 . DECLARE PARAMETER P .")
	if len(program) != 2 {
		t.Fatalf("got %d instructions", len(program))
	}
	if program[0].Op != OpSetVar || program[0].Target != "X" {
		t.Errorf("first = %v", program[0])
	}
	if strings.Join(program[0].Expr, " ") != "2 + 3" {
		t.Errorf("expr = %v", program[0].Expr)
	}
	if program[1].Op != OpSetVar || program[1].Target != "P" {
		t.Errorf("second = %v", program[1])
	}
	if len(program[1].Expr) != 1 || program[1].Expr[0] != "0" {
		t.Errorf("DECLARE PARAMETER should initialize to 0, got %v", program[1].Expr)
	}
}

func TestCompileWait(t *testing.T) {
	program := mustCompile(t, "WAIT 2.5 .")
	if len(program) != 1 || program[0].Op != OpWait {
		t.Fatalf("got %v", program)
	}
	if program[0].Seconds != 2.5 {
		t.Errorf("seconds = %g", program[0].Seconds)
	}
}

func TestCompileWaitUntilSpinConstruct(t *testing.T) {
	program := mustCompile(t, "WAIT UNTIL ALTITUDE > 1000 .")
	if len(program) != 3 {
		t.Fatalf("got %d instructions:\n%s", len(program), program.Disassemble())
	}
	if program[0].Op != OpJumpTrue || program[0].Dest != 3 {
		t.Errorf("instruction 0 = %v, want JMP_TRUE -> 3", program[0])
	}
	if program[1].Op != OpYield {
		t.Errorf("instruction 1 = %v, want YIELD", program[1])
	}
	if program[2].Op != OpJump || program[2].Dest != 0 {
		t.Errorf("instruction 2 = %v, want JMP -> 0", program[2])
	}
}

func TestCompileStageAndClearscreen(t *testing.T) {
	program := mustCompile(t, "STAGE . CLEARSCREEN .")
	if program[0].Op != OpStage || program[1].Op != OpClear {
		t.Errorf("got %v", program)
	}
}

func TestCompilePrintAt(t *testing.T) {
	program := mustCompile(t, "PRINT ALTITUDE AT (3, 2 + 2) .")
	if len(program) != 1 || program[0].Op != OpPrint {
		t.Fatalf("got %v", program)
	}
	at := program[0].At
	if at == nil {
		t.Fatal("missing position hint")
	}
	if strings.Join(at.X, " ") != "3" || strings.Join(at.Y, " ") != "2 + 2" {
		t.Errorf("at = (%v, %v)", at.X, at.Y)
	}
}

func TestCompileIfElse(t *testing.T) {
	program := mustCompile(t, `IF X > 0 { PRINT "yes" . } ELSE { PRINT "no" . }`)
	// 0: JMP_FALSE -> 3 (else body), 1: PRINT, 2: JMP -> 4, 3: PRINT
	if len(program) != 4 {
		t.Fatalf("got %d instructions:\n%s", len(program), program.Disassemble())
	}
	if program[0].Op != OpJumpFalse || program[0].Dest != 3 {
		t.Errorf("instruction 0 = %v, want JMP_FALSE -> 3", program[0])
	}
	if program[2].Op != OpJump || program[2].Dest != 4 {
		t.Errorf("instruction 2 = %v, want JMP -> 4", program[2])
	}
}

func TestCompileIfWithoutElse(t *testing.T) {
	program := mustCompile(t, `IF X > 0 { STAGE . } PRINT "after" .`)
	if program[0].Op != OpJumpFalse || program[0].Dest != 2 {
		t.Errorf("instruction 0 = %v, want JMP_FALSE -> 2", program[0])
	}
}

func TestCompileUntilLoop(t *testing.T) {
	program := mustCompile(t, "UNTIL N >= 3 { SET N TO N + 1 . }")
	// 0: JMP_TRUE -> 4, 1: SET_VAR, 2: YIELD, 3: JMP -> 0
	if len(program) != 4 {
		t.Fatalf("got %d instructions:\n%s", len(program), program.Disassemble())
	}
	if program[0].Op != OpJumpTrue || program[0].Dest != 4 {
		t.Errorf("instruction 0 = %v, want JMP_TRUE -> 4", program[0])
	}
	if program[2].Op != OpYield {
		t.Errorf("instruction 2 = %v, want YIELD", program[2])
	}
	if program[3].Op != OpJump || program[3].Dest != 0 {
		t.Errorf("instruction 3 = %v, want JMP -> 0", program[3])
	}
}

func TestNestedIfElseChainsToOuter(t *testing.T) {
	// The inner IF closes just before the outer one; the ELSE must still
	// chain to the outer IF.
	program := mustCompile(t, `IF A { IF B { PRINT 1 . } } ELSE { PRINT 2 . }`)
	// 0: JMP_FALSE(A) -> 4, 1: JMP_FALSE(B) -> 3, 2: PRINT 1,
	// 3: JMP -> 5, 4: PRINT 2
	if len(program) != 5 {
		t.Fatalf("got %d instructions:\n%s", len(program), program.Disassemble())
	}
	if program[0].Dest != 4 {
		t.Errorf("outer JMP_FALSE dest = %d, want 4 (else body)", program[0].Dest)
	}
	if program[1].Dest != 3 {
		t.Errorf("inner JMP_FALSE dest = %d, want 3", program[1].Dest)
	}
	if program[3].Op != OpJump || program[3].Dest != 5 {
		t.Errorf("instruction 3 = %v, want JMP -> 5", program[3])
	}
}

func TestElseInsideNestedBlock(t *testing.T) {
	program := mustCompile(t, `IF A { IF B { PRINT 1 . } ELSE { PRINT 2 . } }`)
	// 0: JMP_FALSE(A) -> 5, 1: JMP_FALSE(B) -> 3, 2: PRINT 1,
	// 3: JMP -> 5, 4: PRINT 2  ... inner JMP_FALSE re-patched to 4.
	if len(program) != 5 {
		t.Fatalf("got %d instructions:\n%s", len(program), program.Disassemble())
	}
	if program[1].Dest != 4 {
		t.Errorf("inner JMP_FALSE dest = %d, want 4 (else body)", program[1].Dest)
	}
	if program[0].Dest != 5 {
		t.Errorf("outer JMP_FALSE dest = %d, want 5", program[0].Dest)
	}
}

func TestAllJumpDestinationsInRange(t *testing.T) {
	source := `
		DECLARE PARAMETER TARGET .
		SET TARGET TO 80000 .
		LOCK THROTTLE TO 1 .
		STAGE .
		UNTIL APOAPSIS > TARGET {
			IF FUEL < 0.05 {
				STAGE .
			}
			PRINT APOAPSIS .
		}
		LOCK THROTTLE TO 0 .
		WAIT UNTIL ALTITUDE > 70000 .
		PRINT "coasting" .
	`
	program := mustCompile(t, source)
	for i, in := range program {
		switch in.Op {
		case OpJump, OpJumpTrue, OpJumpFalse:
			if in.Dest < 0 || in.Dest > len(program) {
				t.Errorf("instruction %d: dest %d out of range [0, %d]", i, in.Dest, len(program))
			}
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"lock without TO", "LOCK THROTTLE 1 ."},
		{"lock without target", "LOCK ."},
		{"set without TO", "SET X 5 ."},
		{"declare without parameter", "DECLARE X ."},
		{"wait without duration", "WAIT ."},
		{"wait with bad duration", "WAIT fast ."},
		{"print empty", "PRINT ."},
		{"missing terminator", "STAGE"},
		{"stray close brace", "}"},
		{"unclosed if", "IF X { STAGE ."},
		{"unclosed until", "UNTIL X { STAGE ."},
		{"else without if", "ELSE { STAGE . }"},
		{"else after non-if statement", "IF X { STAGE . } WAIT 1 . ELSE { STAGE . }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cerr := compileError(t, tt.source)
			if cerr.Message == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	cerr := compileError(t, "STAGE .\nLOCK THROTTLE 1 .")
	if cerr.Pos.Line != 2 {
		t.Errorf("error line = %d, want 2", cerr.Pos.Line)
	}
}

func TestDisassembleRoundsTrips(t *testing.T) {
	program := mustCompile(t, "LOCK THROTTLE TO 1 . WAIT 2 .")
	text := program.Disassemble()
	if !strings.Contains(text, "LOCK THROTTLE") || !strings.Contains(text, "WAIT") {
		t.Errorf("disassembly missing content:\n%s", text)
	}
}
