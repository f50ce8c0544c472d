package daemon

import (
	"net"

	"github.com/sirupsen/logrus"
	"github.com/yiny1/simplefs/session"
	"github.com/yiny1/simplefs/vfs"
)

// Server listens for TCP connections and serves each with its own session,
// goroutine-per-connection, against a single shared Engine.
type Server struct {
	listener   net.Listener
	dispatcher *Dispatcher
	registry   *session.Registry
	log        *logrus.Entry
}

// Listen binds addr and returns a Server ready to Serve.
func Listen(addr string, engine *vfs.Engine, log *logrus.Entry) (*Server, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:   ln,
		dispatcher: NewDispatcher(engine, log),
		registry:   session.NewRegistry(),
		log:        log,
	}, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	id, sess := s.registry.Open()
	defer s.registry.Close(id)
	defer conn.Close()

	log := s.log.WithField("conn", id).WithField("remote", conn.RemoteAddr())
	log.Info("client connected")

	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			log.WithError(err).Debug("connection closed")
			return
		}

		result := s.dispatcher.Handle(sess, string(payload))
		if err := WriteFrame(conn, []byte(result.Text)); err != nil {
			log.WithError(err).Warn("write failed")
			return
		}
		if result.Close {
			return
		}
	}
}
