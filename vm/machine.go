package vm

import (
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/ascent-sim/ascent/compiler"
	"github.com/ascent-sim/ascent/expr"
)

// stepBudget bounds the instructions executed per Tick so a tight
// non-yielding script cannot stall the host's real-time loop.
const stepBudget = 20

// Machine executes one compiled autopilot program against a flight state.
// It exclusively owns its program, variable store, and scheduling state;
// the host drives it by calling Tick once per simulation frame.
type Machine struct {
	state   FlightState
	console Console
	log     commonlog.Logger

	program   compiler.Program
	pc        int
	running   bool
	waitTimer float64
	vars      *VarStore
}

// New creates a machine bound to the given collaborators.
func New(state FlightState, console Console) *Machine {
	return &Machine{
		state:   state,
		console: console,
		log:     commonlog.GetLogger("ascent.vm"),
		vars:    NewVarStore(),
	}
}

// Run compiles source and arms the machine at the first instruction.
// A compile error leaves the machine not running, surfaces the message on
// the console, and is returned to the caller; the host is never crashed
// by bad script text.
func (m *Machine) Run(source string) error {
	program, err := compiler.Compile(source)
	if err != nil {
		m.running = false
		m.log.Errorf("compile failed: %s", err.Error())
		m.console.Emit("compile error: "+err.Error(), nil)
		return err
	}

	m.program = program
	m.vars.Reset()
	m.pc = 0
	m.waitTimer = 0
	m.running = true
	return nil
}

// Running reports whether the machine has an active program.
func (m *Machine) Running() bool {
	return m.running
}

// Stop halts execution without unwinding anything. Blocks and loops are
// baked into jump targets, so aborting mid-block is always safe.
func (m *Machine) Stop() {
	m.running = false
}

// Vars exposes the machine's variable store.
func (m *Machine) Vars() *VarStore {
	return m.vars
}

// Program returns the currently loaded program.
func (m *Machine) Program() compiler.Program {
	return m.program
}

// Tick advances the machine by one scheduler invocation. dt is the
// simulated time elapsed since the previous call. At most stepBudget
// instructions execute; the batch ends early at a yield point, a wait,
// or program end.
func (m *Machine) Tick(dt float64) {
	if !m.running {
		return
	}
	if m.waitTimer > 0 {
		m.waitTimer -= dt
		return
	}

	for steps := 0; steps < stepBudget; steps++ {
		if m.pc >= len(m.program) {
			m.finish()
			return
		}

		inst := m.program[m.pc]
		switch inst.Op {
		case compiler.OpYield:
			m.pc++
			return

		case compiler.OpWait:
			m.waitTimer = inst.Seconds
			m.pc++
			return

		case compiler.OpPrint:
			m.execPrint(inst)
			m.pc++

		case compiler.OpLock:
			m.execLock(inst)
			m.pc++

		case compiler.OpSetVar:
			m.vars.Set(inst.Target, m.eval(inst.Expr))
			m.pc++

		case compiler.OpStage:
			if !m.state.SeparateStage() {
				m.log.Info("STAGE with no stages remaining")
			}
			m.pc++

		case compiler.OpClear:
			m.console.Clear()
			m.pc++

		case compiler.OpJump:
			m.pc = inst.Dest

		case compiler.OpJumpTrue:
			if truthy(m.eval(inst.Expr)) {
				m.pc = inst.Dest
			} else {
				m.pc++
			}

		case compiler.OpJumpFalse:
			if !truthy(m.eval(inst.Expr)) {
				m.pc = inst.Dest
			} else {
				m.pc++
			}
		}
	}
}

func truthy(v float64) bool { return v != 0 }

func (m *Machine) finish() {
	m.running = false
	m.log.Info("program complete")
	m.console.Emit("program complete", nil)
}

// eval evaluates captured expression tokens. Any failure yields 0 so a
// malformed print or condition cannot halt the run.
func (m *Machine) eval(tokens []string) float64 {
	env := &flightEnv{tel: m.state.Telemetry(), state: m.state, vars: m.vars}
	v, err := expr.Eval(tokens, env)
	if err != nil {
		m.log.Debugf("expression %q: %s", strings.Join(tokens, " "), err.Error())
		return 0
	}
	return v
}

func (m *Machine) execPrint(inst compiler.Instruction) {
	var at *PrintPos
	if inst.At != nil {
		at = &PrintPos{X: int(m.eval(inst.At.X)), Y: int(m.eval(inst.At.Y))}
	}

	// A lone quoted string prints verbatim; everything else evaluates to
	// a number.
	if len(inst.Expr) == 1 && strings.HasPrefix(inst.Expr[0], `"`) {
		m.console.Emit(strings.Trim(inst.Expr[0], `"`), at)
		return
	}
	m.console.Emit(formatNumber(m.eval(inst.Expr)), at)
}

func (m *Machine) execLock(inst compiler.Instruction) {
	v := m.eval(inst.Expr)
	switch inst.Target {
	case "THROTTLE":
		m.state.SetThrottle(clamp01(v))
	case "STEERING":
		m.state.SetSteering(v)
	default:
		// Accepted syntactically, no runtime effect.
		m.log.Warningf("LOCK %s: unknown actuator channel, ignored", inst.Target)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
