package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/ascent-sim/ascent/sim"
	"github.com/ascent-sim/ascent/vm"
)

// workerRequest is a unit of work executed on the simulation goroutine.
type workerRequest struct {
	fn   func(m *vm.Machine, v *sim.Vessel) error
	done chan error
}

// Worker serializes all machine and vessel access through one goroutine.
// The machine is single-threaded and the sim discipline is strictly
// sequential per frame (script tick, then physics step), so every command
// handler must go through the worker to avoid races.
type Worker struct {
	machine *vm.Machine
	vessel  *sim.Vessel
	dt      float64

	onFrame   func(TelemetryFrame)
	onStopped func()

	requests chan workerRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts its goroutine. onFrame is called
// after every simulation frame; onStopped fires once when a running
// program stops. Both run on the worker goroutine.
func NewWorker(machine *vm.Machine, vessel *sim.Vessel, dt float64, onFrame func(TelemetryFrame), onStopped func()) *Worker {
	w := &Worker{
		machine:   machine,
		vessel:    vessel,
		dt:        dt,
		onFrame:   onFrame,
		onStopped: onStopped,
		requests:  make(chan workerRequest, 16),
		quit:      make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop drives the fixed-cadence frame cycle and processes requests
// between frames.
func (w *Worker) loop() {
	ticker := time.NewTicker(time.Duration(w.dt * float64(time.Second)))
	defer ticker.Stop()

	wasRunning := false
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
			// A request may have started a program; observe it now so a
			// script that finishes within its first frame still reports
			// the stop transition.
			wasRunning = w.machine.Running()

		case <-ticker.C:
			// Evaluate script, then advance physics.
			w.machine.Tick(w.dt)
			w.vessel.Step(w.dt)
			if w.onFrame != nil {
				w.onFrame(w.frame())
			}
			running := w.machine.Running()
			if wasRunning && !running && w.onStopped != nil {
				w.onStopped()
			}
			wasRunning = running

		case <-w.quit:
			return
		}
	}
}

// execute runs fn, converting panics into errors so a bad request cannot
// kill the worker goroutine.
func (w *Worker) execute(fn func(*vm.Machine, *sim.Vessel) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: panic: %v", r)
		}
	}()
	return fn(w.machine, w.vessel)
}

// Do runs fn on the worker goroutine and waits for its result.
func (w *Worker) Do(fn func(*vm.Machine, *sim.Vessel) error) error {
	req := workerRequest{fn: fn, done: make(chan error, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return fmt.Errorf("worker: stopped")
	}
	select {
	case err := <-req.done:
		return err
	case <-w.quit:
		return fmt.Errorf("worker: stopped")
	}
}

// frame snapshots the current flight state. Runs on the worker goroutine.
func (w *Worker) frame() TelemetryFrame {
	tel := w.vessel.Telemetry()
	return TelemetryFrame{
		Time:           w.vessel.Elapsed(),
		Altitude:       tel.Altitude,
		Apoapsis:       tel.Apoapsis,
		Periapsis:      tel.Periapsis,
		Velocity:       tel.Velocity,
		TimeToApoapsis: tel.TimeToApoapsis,
		Throttle:       w.vessel.Throttle(),
		FuelFraction:   w.vessel.FuelFraction(),
		Stages:         w.vessel.RemainingStages(),
		Running:        w.machine.Running(),
	}
}

// Stop shuts the worker down. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
