// Package live pushes regenerated documents to connected previews over
// WebSocket.
package live

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var logger = slog.Default().With("component", "live")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l.With("component", "live")
}

const (
	pingInterval = 54 * time.Second
	readTimeout  = 5 * time.Minute
	writeTimeout = 10 * time.Second
	sendBuffer   = 64
)

// Server handles WebSocket connections for live updates
type Server struct {
	upgrader   websocket.Upgrader
	prefix     string
	mu         sync.RWMutex
	sessions   map[string]*Session
	latest     map[string]Update
	selections chan Selection
}

// Session is one connected preview watching a page.
type Session struct {
	ID        string
	Page      string
	conn      *websocket.Conn
	sendChan  chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
	lastSeq   uint64
}

// NewServer creates a server answering under prefix, e.g. "/live/".
func NewServer(prefix string) *Server {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Server{
		upgrader: websocket.Upgrader{
			// Previews are served from the same dev server.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		prefix:     prefix,
		sessions:   make(map[string]*Session),
		latest:     make(map[string]Update),
		selections: make(chan Selection, 16),
	}
}

// ServeHTTP upgrades /<prefix>/<page> and streams updates of that page.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page := strings.TrimPrefix(r.URL.Path, s.prefix)
	if page == "" || page == r.URL.Path {
		http.Error(w, "page required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("upgrade failed", "page", page, "error", err)
		return
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Page:      page,
		conn:      conn,
		sendChan:  make(chan []byte, sendBuffer),
		closeChan: make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	latest, ok := s.latest[page]
	s.mu.Unlock()

	go sess.writer()
	sess.send(EncodeControl("HELLO", latest.Version))
	if ok {
		sess.send(EncodeUpdate(latest))
	}
	logger.Info("preview connected", "session", sess.ID, "page", page)

	go s.read(sess)
}

// Publish stamps u with the next version of its page, stores it and sends
// it to every session watching the page.
func (s *Server) Publish(u Update) Update {
	s.mu.Lock()
	u.Version = s.latest[u.Page].Version + 1
	s.latest[u.Page] = u
	var targets []*Session
	for _, sess := range s.sessions {
		if sess.Page == u.Page {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	frame := EncodeUpdate(u)
	for _, sess := range targets {
		if !sess.send(frame) {
			logger.Warn("send buffer full, dropping update", "session", sess.ID, "page", u.Page, "version", u.Version)
		}
	}
	return u
}

// Latest returns the most recent update of page.
func (s *Server) Latest(page string) (Update, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.latest[page]
	return u, ok
}

// Sessions counts the sessions watching page; an empty page counts all.
func (s *Server) Sessions(page string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.sessions {
		if page == "" || sess.Page == page {
			n++
		}
	}
	return n
}

// Selections delivers node keys picked in previews. Selections are dropped
// when nobody reads them.
func (s *Server) Selections() <-chan Selection {
	return s.selections
}

// Close disconnects every session.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.close()
	}
}

func (s *Server) remove(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	sess.close()
}

func (s *Server) read(sess *Session) {
	defer s.remove(sess)

	sess.conn.SetReadDeadline(time.Now().Add(readTimeout))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		messageType, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("unexpected close", "session", sess.ID, "error", err)
			}
			logger.Info("preview disconnected", "session", sess.ID, "page", sess.Page)
			return
		}
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			logger.Debug("ignoring message", "session", sess.ID, "type", messageType)
			continue
		}
		s.handleBinaryMessage(sess, data)
	}
}

func (s *Server) handleBinaryMessage(sess *Session, data []byte) {
	d := NewDecoder(bytes.NewReader(data[1:]))
	switch MessageType(data[0]) {
	case FrameControl:
		msg, err := d.ReadString()
		if err != nil {
			logger.Warn("bad control frame", "session", sess.ID, "error", err)
			return
		}
		switch msg {
		case "HELLO":
			seq, err := d.ReadUvarint()
			if err != nil {
				logger.Warn("bad HELLO", "session", sess.ID, "error", err)
				return
			}
			sess.lastSeq = seq
			if latest, ok := s.Latest(sess.Page); ok && latest.Version > seq {
				sess.send(EncodeUpdate(latest))
			}
		case "PING":
			sess.send(EncodeControl("PONG"))
		}

	case FrameSelect:
		key, err := d.ReadString()
		if err != nil {
			logger.Warn("bad select frame", "session", sess.ID, "error", err)
			return
		}
		select {
		case s.selections <- Selection{Session: sess.ID, Page: sess.Page, Key: key}:
		default:
		}

	default:
		logger.Debug("unknown frame", "session", sess.ID, "type", data[0])
	}
}

// send queues a frame without blocking. It reports false when the buffer
// is full or the session is closed.
func (sess *Session) send(frame []byte) bool {
	select {
	case <-sess.closeChan:
		return false
	default:
	}
	select {
	case sess.sendChan <- frame:
		return true
	default:
		return false
	}
}

func (sess *Session) close() {
	sess.closeOnce.Do(func() {
		close(sess.closeChan)
		sess.conn.Close()
	})
}

// writer handles writing messages to the WebSocket
func (sess *Session) writer() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-sess.sendChan:
			sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sess.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				logger.Warn("write failed", "session", sess.ID, "error", err)
				sess.close()
				return
			}

		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.close()
				return
			}

		case <-sess.closeChan:
			return
		}
	}
}
