package server

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"

	"github.com/ascent-sim/ascent/scriptstore"
	"github.com/ascent-sim/ascent/sim"
	"github.com/ascent-sim/ascent/vm"
)

// session is one mission-control connection with its own sandbox.
type session struct {
	id     string
	server *Server
	conn   *websocket.Conn
	worker *Worker
	send   chan Envelope
	closed chan struct{}
	log    commonlog.Logger

	// Worker-goroutine state for flight records.
	scriptName string
	startedAt  time.Time
}

func newSession(srv *Server, conn *websocket.Conn) *session {
	sess := &session{
		id:     uuid.NewString(),
		server: srv,
		conn:   conn,
		send:   make(chan Envelope, 64),
		closed: make(chan struct{}),
		log:    commonlog.GetLogger("ascent.server"),
	}

	man := srv.man
	vessel := sim.NewVessel(sim.Config{
		DryMass:         man.Vessel.DryMass,
		FuelCapacity:    man.Vessel.FuelCapacity,
		Stages:          man.Vessel.Stages,
		MaxThrust:       man.Vessel.MaxThrust,
		ExhaustVelocity: man.Vessel.ExhaustVelocity,
		BodyRadius:      man.Body.Radius,
		GravParam:       man.Body.GravParam,
	})
	machine := vm.New(vessel, &sessionConsole{sess: sess})
	sess.worker = NewWorker(machine, vessel, man.TickInterval(), sess.onFrame, sess.onStopped)
	return sess
}

// sessionConsole forwards script output into the session's send queue.
// It is called from the worker goroutine.
type sessionConsole struct {
	sess *session
}

func (c *sessionConsole) Emit(text string, at *vm.PrintPos) {
	frame := ConsoleFrame{Text: text}
	if at != nil {
		frame.X, frame.Y, frame.Positioned = at.X, at.Y, true
	}
	c.sess.push(Envelope{Type: EnvelopeConsole, Console: &frame})
}

func (c *sessionConsole) Clear() {
	c.sess.push(Envelope{Type: EnvelopeClear})
}

// push queues an envelope, dropping it when the client cannot keep up or
// the session is closing. The send channel is never closed, so late
// worker callbacks are safe.
func (s *session) push(env Envelope) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.send <- env:
	default:
		s.log.Debugf("session %s: dropping %s frame", s.id, env.Type)
	}
}

// onFrame runs on the worker goroutine once per simulation frame.
func (s *session) onFrame(frame TelemetryFrame) {
	s.push(Envelope{Type: EnvelopeTelemetry, Telemetry: &frame})
}

// onStopped runs on the worker goroutine when a program finishes.
func (s *session) onStopped() {
	s.push(Envelope{Type: EnvelopeStatus, Status: &StatusFrame{Running: false, Message: "program complete"}})
	s.recordFlight("complete")
}

func (s *session) recordFlight(outcome string) {
	if s.server.store == nil || s.scriptName == "" {
		return
	}
	rec := scriptstore.FlightRecord{
		ID:        uuid.NewString(),
		Script:    s.scriptName,
		StartedAt: s.startedAt,
		EndedAt:   time.Now(),
		Outcome:   outcome,
	}
	if err := s.server.store.RecordFlight(rec); err != nil {
		s.log.Errorf("session %s: flight record: %s", s.id, err.Error())
	}
	s.scriptName = ""
}

// readPump processes client commands until the connection closes.
func (s *session) readPump() {
	defer func() {
		s.worker.Stop()
		close(s.closed)
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := UnmarshalCommand(data)
		if err != nil {
			s.log.Warningf("session %s: %s", s.id, err.Error())
			continue
		}
		s.handleCommand(cmd)
	}
}

// writePump drains the send queue to the socket.
func (s *session) writePump() {
	defer s.conn.Close()
	for {
		select {
		case env := <-s.send:
			data, err := MarshalEnvelope(&env)
			if err != nil {
				s.log.Errorf("session %s: marshal: %s", s.id, err.Error())
				continue
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *session) handleCommand(cmd *Command) {
	switch cmd.Type {
	case "run":
		s.handleRun(cmd)

	case "stop":
		err := s.worker.Do(func(m *vm.Machine, v *sim.Vessel) error {
			if m.Running() {
				m.Stop()
				s.recordFlight("aborted")
			}
			return nil
		})
		if err != nil {
			s.pushStatus(false, err.Error())
			return
		}
		s.pushStatus(false, "stopped")

	case "save":
		if s.server.store == nil {
			s.pushStatus(false, "no script library configured")
			return
		}
		if err := s.server.store.Save(cmd.Name, cmd.Source); err != nil {
			s.pushStatus(false, err.Error())
			return
		}
		s.pushStatus(false, "saved "+cmd.Name)

	case "load":
		source, err := s.loadScript(cmd.Name)
		if err != nil {
			s.pushStatus(false, err.Error())
			return
		}
		s.push(Envelope{Type: EnvelopeScript, Script: &ScriptFrame{Name: cmd.Name, Source: source}})

	case "delete":
		if s.server.store == nil {
			s.pushStatus(false, "no script library configured")
			return
		}
		if err := s.server.store.Delete(cmd.Name); err != nil {
			s.pushStatus(false, err.Error())
			return
		}
		s.pushStatus(false, "deleted "+cmd.Name)

	case "list":
		if s.server.store == nil {
			s.pushStatus(false, "no script library configured")
			return
		}
		names, err := s.server.store.List()
		if err != nil {
			s.pushStatus(false, err.Error())
			return
		}
		s.push(Envelope{Type: EnvelopeScripts, Scripts: names})

	default:
		s.pushStatus(false, "unknown command "+cmd.Type)
	}
}

func (s *session) handleRun(cmd *Command) {
	source := cmd.Source
	name := cmd.Name
	if source == "" && name != "" {
		var err error
		source, err = s.loadScript(name)
		if err != nil {
			s.pushStatus(false, err.Error())
			return
		}
	}
	if name == "" {
		name = "(inline)"
	}

	err := s.worker.Do(func(m *vm.Machine, v *sim.Vessel) error {
		if err := m.Run(source); err != nil {
			return err
		}
		s.scriptName = name
		s.startedAt = time.Now()
		return nil
	})
	if err != nil {
		s.pushStatus(false, err.Error())
		return
	}
	s.pushStatus(true, "running "+name)
}

func (s *session) loadScript(name string) (string, error) {
	if name == "" {
		return "", errors.New("script name required")
	}
	if s.server.store == nil {
		return "", errors.New("no script library configured")
	}
	return s.server.store.Load(name)
}

func (s *session) pushStatus(running bool, message string) {
	s.push(Envelope{Type: EnvelopeStatus, Status: &StatusFrame{Running: running, Message: message}})
}
