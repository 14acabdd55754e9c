// Package server hosts the mission-control websocket endpoint: each
// connection gets its own sandboxed vessel and virtual machine, driven by
// a single worker goroutine, with telemetry and console output streamed
// as CBOR frames.
package server

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical encoding for deterministic frames.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("server: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Envelope types streamed to clients.
const (
	EnvelopeTelemetry = "telemetry"
	EnvelopeConsole   = "console"
	EnvelopeClear     = "clear"
	EnvelopeStatus    = "status"
	EnvelopeScript    = "script"
	EnvelopeScripts   = "scripts"
)

// TelemetryFrame is one per-tick flight snapshot.
type TelemetryFrame struct {
	Time           float64 `cbor:"time"`
	Altitude       float64 `cbor:"altitude"`
	Apoapsis       float64 `cbor:"apoapsis"`
	Periapsis      float64 `cbor:"periapsis"`
	Velocity       float64 `cbor:"velocity"`
	TimeToApoapsis float64 `cbor:"eta_apoapsis"`
	Throttle       float64 `cbor:"throttle"`
	FuelFraction   float64 `cbor:"fuel"`
	Stages         int     `cbor:"stages"`
	Running        bool    `cbor:"running"`
}

// ConsoleFrame is one line of script output.
type ConsoleFrame struct {
	Text       string `cbor:"text"`
	X          int    `cbor:"x,omitempty"`
	Y          int    `cbor:"y,omitempty"`
	Positioned bool   `cbor:"positioned,omitempty"`
}

// StatusFrame reports run-state changes and command results.
type StatusFrame struct {
	Running bool   `cbor:"running"`
	Message string `cbor:"message,omitempty"`
}

// ScriptFrame carries a stored script back to the client.
type ScriptFrame struct {
	Name   string `cbor:"name"`
	Source string `cbor:"source"`
}

// Envelope is one server-to-client wire message.
type Envelope struct {
	Type      string          `cbor:"type"`
	Telemetry *TelemetryFrame `cbor:"telemetry,omitempty"`
	Console   *ConsoleFrame   `cbor:"console,omitempty"`
	Status    *StatusFrame    `cbor:"status,omitempty"`
	Script    *ScriptFrame    `cbor:"script,omitempty"`
	Scripts   []string        `cbor:"scripts,omitempty"`
}

// Command is one client-to-server wire message.
type Command struct {
	Type   string `cbor:"type"` // run, stop, save, load, delete, list
	Name   string `cbor:"name,omitempty"`
	Source string `cbor:"source,omitempty"`
}

// MarshalEnvelope serializes an Envelope to CBOR bytes.
func MarshalEnvelope(e *Envelope) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalEnvelope deserializes an Envelope from CBOR bytes.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("server: unmarshal envelope: %w", err)
	}
	return &e, nil
}

// MarshalCommand serializes a Command to CBOR bytes.
func MarshalCommand(c *Command) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// UnmarshalCommand deserializes a Command from CBOR bytes.
func UnmarshalCommand(data []byte) (*Command, error) {
	var c Command
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("server: unmarshal command: %w", err)
	}
	return &c, nil
}
