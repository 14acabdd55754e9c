// Ascent CLI - the main entry point for the flight-control sandbox
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"github.com/xyproto/env/v2"

	"github.com/ascent-sim/ascent/compiler"
	"github.com/ascent-sim/ascent/manifest"
	"github.com/ascent-sim/ascent/scriptstore"
	"github.com/ascent-sim/ascent/server"
	"github.com/ascent-sim/ascent/sim"
	"github.com/ascent-sim/ascent/vm"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose logging")
	check := flag.Bool("check", false, "Compile the script and report errors, don't run it")
	disasm := flag.Bool("disasm", false, "Compile the script and print its disassembly")
	serve := flag.Bool("serve", false, "Start the mission-control websocket host")
	listen := flag.String("listen", "", "Listen address for --serve (overrides the manifest)")
	manifestDir := flag.String("manifest", "", "Directory containing ascent.toml (default: search upward from cwd)")
	dbPath := flag.String("db", "", "Script library path (overrides the manifest)")
	maxTime := flag.Float64("max-time", 600, "Simulated seconds before a headless run is cut off")
	saveAs := flag.String("save", "", "Save the script into the library under this name instead of running it")
	list := flag.Bool("list", false, "List the scripts in the library")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ascent [options] [script.apt]\n\n")
		fmt.Fprintf(os.Stderr, "Runs an autopilot script against the sandbox vessel.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ascent launch.apt              # Headless run\n")
		fmt.Fprintf(os.Stderr, "  ascent -check launch.apt       # Compile only\n")
		fmt.Fprintf(os.Stderr, "  ascent -disasm launch.apt      # Show compiled instructions\n")
		fmt.Fprintf(os.Stderr, "  ascent -save launch launch.apt # Store in the script library\n")
		fmt.Fprintf(os.Stderr, "  ascent -serve                  # Mission-control host\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	man, err := loadManifest(*manifestDir)
	if err != nil {
		fail("%v", err)
	}
	if addr := env.Str("ASCENT_LISTEN", *listen); addr != "" {
		man.Server.Listen = addr
	}
	storePath := env.Str("ASCENT_DB", *dbPath)

	if *list {
		store := openStore(man, storePath, true)
		defer store.Close()
		names, err := store.List()
		if err != nil {
			fail("%v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	if *serve {
		store := openStore(man, storePath, false)
		if store != nil {
			defer store.Close()
		}
		if err := server.New(man, store).ListenAndServe(); err != nil {
			fail("%v", err)
		}
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fail("cannot read %s: %v", path, err)
	}
	source := string(data)

	if *saveAs != "" {
		store := openStore(man, storePath, true)
		defer store.Close()
		if err := store.Save(*saveAs, source); err != nil {
			fail("%v", err)
		}
		fmt.Printf("saved %s\n", *saveAs)
		return
	}

	if *check || *disasm {
		program, err := compiler.Compile(source)
		if err != nil {
			fail("%s: %v", path, err)
		}
		if *disasm {
			fmt.Print(program.Disassemble())
		} else {
			fmt.Printf("%s: %d instructions, ok\n", path, len(program))
		}
		return
	}

	runHeadless(man, storePath, path, source, *maxTime)
}

// loadManifest resolves the mission configuration: explicit directory,
// upward search, or built-in defaults.
func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir == "" {
		dir = env.Str("ASCENT_MANIFEST", "")
	}
	if dir != "" {
		return manifest.Load(dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	man, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if man == nil {
		man = manifest.Default()
	}
	return man, nil
}

// openStore opens the script library. When required is false a missing
// path yields nil rather than an error.
func openStore(man *manifest.Manifest, override string, required bool) *scriptstore.Store {
	path := override
	if path == "" {
		path = man.StorePath()
	}
	if path == "" {
		if required {
			fail("no script library configured")
		}
		return nil
	}
	store, err := scriptstore.Open(path)
	if err != nil {
		fail("%v", err)
	}
	return store
}

// stdoutConsole prints script output to the terminal.
type stdoutConsole struct{}

func (stdoutConsole) Emit(text string, at *vm.PrintPos) {
	if at != nil {
		fmt.Printf("[%d,%d] %s\n", at.X, at.Y, text)
	} else {
		fmt.Println(text)
	}
}

func (stdoutConsole) Clear() {
	fmt.Print("\033[2J\033[H")
}

// runHeadless simulates the flight as fast as possible: script tick, then
// physics step, once per configured interval of simulated time.
func runHeadless(man *manifest.Manifest, storePath, path, source string, maxTime float64) {
	vessel := sim.NewVessel(sim.Config{
		DryMass:         man.Vessel.DryMass,
		FuelCapacity:    man.Vessel.FuelCapacity,
		Stages:          man.Vessel.Stages,
		MaxThrust:       man.Vessel.MaxThrust,
		ExhaustVelocity: man.Vessel.ExhaustVelocity,
		BodyRadius:      man.Body.Radius,
		GravParam:       man.Body.GravParam,
	})
	machine := vm.New(vessel, stdoutConsole{})

	startedAt := time.Now()
	if err := machine.Run(source); err != nil {
		os.Exit(1)
	}

	dt := man.TickInterval()
	for machine.Running() && vessel.Elapsed() < maxTime {
		machine.Tick(dt)
		vessel.Step(dt)
	}

	outcome := "complete"
	if machine.Running() {
		machine.Stop()
		outcome = "cut off"
	}

	tel := vessel.Telemetry()
	fmt.Printf("\nT+%.1fs (%s)\n", vessel.Elapsed(), outcome)
	fmt.Printf("  altitude  %.0f m\n", tel.Altitude)
	fmt.Printf("  apoapsis  %.0f m\n", tel.Apoapsis)
	fmt.Printf("  periapsis %.0f m\n", tel.Periapsis)
	fmt.Printf("  velocity  %.1f m/s\n", tel.Velocity)
	fmt.Printf("  fuel      %.0f%%, %d stage(s) left\n", vessel.FuelFraction()*100, vessel.RemainingStages())

	if storePath != "" {
		store := openStore(man, storePath, true)
		defer store.Close()
		rec := scriptstore.FlightRecord{
			ID:        uuid.NewString(),
			Script:    path,
			StartedAt: startedAt,
			EndedAt:   time.Now(),
			Outcome:   outcome,
		}
		if err := store.RecordFlight(rec); err != nil {
			fail("%v", err)
		}
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
