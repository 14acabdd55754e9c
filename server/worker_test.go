package server

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ascent-sim/ascent/sim"
	"github.com/ascent-sim/ascent/vm"
)

type nullConsole struct{}

func (nullConsole) Emit(string, *vm.PrintPos) {}
func (nullConsole) Clear()                    {}

func newTestWorker(t *testing.T, onFrame func(TelemetryFrame), onStopped func()) (*Worker, *vm.Machine) {
	t.Helper()
	vessel := sim.NewVessel(sim.Config{
		DryMass:         4000,
		FuelCapacity:    8000,
		Stages:          2,
		MaxThrust:       240000,
		ExhaustVelocity: 3000,
		BodyRadius:      600000,
		GravParam:       3.5316e12,
	})
	machine := vm.New(vessel, nullConsole{})
	w := NewWorker(machine, vessel, 0.005, onFrame, onStopped)
	t.Cleanup(w.Stop)
	return w, machine
}

func TestWorkerDoRunsOnWorkerAndReturnsError(t *testing.T) {
	w, _ := newTestWorker(t, nil, nil)

	ran := false
	if err := w.Do(func(m *vm.Machine, v *sim.Vessel) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran {
		t.Error("request did not run")
	}

	want := errors.New("boom")
	if err := w.Do(func(m *vm.Machine, v *sim.Vessel) error { return want }); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestWorkerDoRecoversPanic(t *testing.T) {
	w, _ := newTestWorker(t, nil, nil)

	err := w.Do(func(m *vm.Machine, v *sim.Vessel) error { panic("bad request") })
	if err == nil {
		t.Fatal("expected error from panicking request")
	}

	// The worker must survive and keep serving.
	if err := w.Do(func(m *vm.Machine, v *sim.Vessel) error { return nil }); err != nil {
		t.Errorf("worker dead after panic: %v", err)
	}
}

func TestWorkerEmitsFrames(t *testing.T) {
	var mu sync.Mutex
	var frames []TelemetryFrame
	newTestWorker(t, func(f TelemetryFrame) {
		mu.Lock()
		frames = append(frames, f)
		mu.Unlock()
	}, nil)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(frames)
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d frames after 2s", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if frames[0].Running {
		t.Error("frame reports running with no program loaded")
	}
	if frames[2].Time <= frames[0].Time {
		t.Errorf("time not advancing: %g then %g", frames[0].Time, frames[2].Time)
	}
}

func TestWorkerFiresOnStoppedOnce(t *testing.T) {
	var mu sync.Mutex
	stopped := 0
	w, _ := newTestWorker(t, nil, func() {
		mu.Lock()
		stopped++
		mu.Unlock()
	})

	if err := w.Do(func(m *vm.Machine, v *sim.Vessel) error {
		return m.Run("SET X TO 1 .")
	}); err != nil {
		t.Fatalf("run: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := stopped
		mu.Unlock()
		if n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("onStopped never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Give the worker a few more frames; the callback must not repeat.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if stopped != 1 {
		t.Errorf("onStopped fired %d times", stopped)
	}
}

func TestWorkerDoAfterStop(t *testing.T) {
	w, _ := newTestWorker(t, nil, nil)
	w.Stop()
	if err := w.Do(func(m *vm.Machine, v *sim.Vessel) error { return nil }); err == nil {
		t.Error("expected error after Stop")
	}
}
