package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"

	"github.com/ascent-sim/ascent/manifest"
	"github.com/ascent-sim/ascent/scriptstore"
)

// Server is the mission-control websocket host. Each connection runs an
// isolated sandbox: its own vessel, machine, and worker goroutine.
type Server struct {
	man      *manifest.Manifest
	store    *scriptstore.Store
	upgrader websocket.Upgrader
	log      commonlog.Logger
}

// New creates a Server. store may be nil to disable the script library.
func New(man *manifest.Manifest, store *scriptstore.Store) *Server {
	return &Server{
		man:   man,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		log: commonlog.GetLogger("ascent.server"),
	}
}

// Handler returns the HTTP handler serving the websocket endpoint at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe blocks serving the manifest's listen address.
func (s *Server) ListenAndServe() error {
	s.log.Noticef("mission control listening on %s", s.man.Server.Listen)
	return http.ListenAndServe(s.man.Server.Listen, s.Handler())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("websocket upgrade failed: %s", err.Error())
		return
	}

	sess := newSession(s, conn)
	s.log.Infof("session %s connected from %s", sess.id, r.RemoteAddr)

	go sess.writePump()
	sess.readPump()

	s.log.Infof("session %s disconnected", sess.id)
}
