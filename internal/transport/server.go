package transport

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"RoverLink/internal/util"
)

// EventKind classifies server events.
type EventKind int

const (
	EventConnect EventKind = iota
	EventText
	EventBinary
	EventDisconnect
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventText:
		return "text"
	case EventBinary:
		return "binary"
	case EventDisconnect:
		return "disconnect"
	}
	return "unknown"
}

// Event is one connection notification. Data is set for text and binary.
type Event struct {
	Kind   EventKind
	ConnID string
	Data   []byte
	Remote string
}

// ServerConfig tunes the WebSocket endpoint.
type ServerConfig struct {
	SendQueue       int
	Policy          Policy
	WriteTimeout    time.Duration
	PingInterval    time.Duration // 0 disables pings and read deadlines
	MaxMessageBytes int64
	FrameRate       float64 // inbound binary messages per second per connection, 0 for no limit
	FrameBurst      int
	EventBuffer     int
}

// Server accepts WebSocket connections and turns their traffic into Events.
// It implements the router's Sender.
type Server struct {
	cfg      ServerConfig
	upgrader websocket.Upgrader
	events   chan Event
	log      *logrus.Entry

	mu    sync.Mutex
	conns map[string]*conn

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	throttled atomic.Uint64
}

type conn struct {
	id      string
	ws      *websocket.Conn
	q       *queue
	limiter *rate.Limiter
	done    chan struct{}
	once    sync.Once
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.q.close()
		_ = c.ws.Close()
	})
}

// NewServer returns a server; mount it with http.Handle.
func NewServer(cfg ServerConfig) *Server {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	return &Server{
		cfg:      cfg,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		events:   make(chan Event, cfg.EventBuffer),
		log:      util.Component("transport"),
		conns:    map[string]*conn{},
		done:     make(chan struct{}),
	}
}

// Events is the stream of connection notifications. It is read by one goroutine.
func (s *Server) Events() <-chan Event { return s.events }

// ServeHTTP upgrades the request and starts the connection's goroutines.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &conn{
		id:   uuid.NewString(),
		ws:   ws,
		q:    newQueue(s.cfg.SendQueue, s.cfg.Policy),
		done: make(chan struct{}),
	}
	if s.cfg.FrameRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.cfg.FrameRate), max(s.cfg.FrameBurst, 1))
	}
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()

	s.log.WithFields(util.Fields{"conn_id": c.id, "remote": r.RemoteAddr}).Info("client connected")
	s.emit(Event{Kind: EventConnect, ConnID: c.id, Remote: r.RemoteAddr})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.writeLoop(c)
	}()
	go func() {
		defer s.wg.Done()
		s.readLoop(c)
	}()
}

func (s *Server) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Server) deadline() time.Time {
	if s.cfg.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.cfg.WriteTimeout)
}

func (s *Server) readLoop(c *conn) {
	defer func() {
		s.remove(c)
		s.log.WithField("conn_id", c.id).Info("client disconnected")
		s.emit(Event{Kind: EventDisconnect, ConnID: c.id})
	}()
	if s.cfg.MaxMessageBytes > 0 {
		c.ws.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	extend := func() {}
	if s.cfg.PingInterval > 0 {
		wait := 3 * s.cfg.PingInterval
		extend = func() { _ = c.ws.SetReadDeadline(time.Now().Add(wait)) }
		extend()
		c.ws.SetPongHandler(func(string) error {
			extend()
			return nil
		})
	}
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).WithField("conn_id", c.id).Debug("read failed")
			}
			return
		}
		extend()
		switch kind {
		case websocket.TextMessage:
			s.emit(Event{Kind: EventText, ConnID: c.id, Data: data})
		case websocket.BinaryMessage:
			if c.limiter != nil && !c.limiter.Allow() {
				s.throttled.Add(1)
				continue
			}
			s.emit(Event{Kind: EventBinary, ConnID: c.id, Data: data})
		}
	}
}

func (s *Server) writeLoop(c *conn) {
	var ping <-chan time.Time
	if s.cfg.PingInterval > 0 {
		t := time.NewTicker(s.cfg.PingInterval)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case <-c.done:
			return
		case <-c.q.ready:
			for _, it := range c.q.drain() {
				for _, m := range it {
					_ = c.ws.SetWriteDeadline(s.deadline())
					if err := c.ws.WriteMessage(m.kind, m.data); err != nil {
						s.log.WithError(err).WithField("conn_id", c.id).Warn("write failed, closing")
						c.close()
						return
					}
				}
			}
		case <-ping:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, s.deadline()); err != nil {
				s.log.WithError(err).WithField("conn_id", c.id).Warn("ping failed, marking connection as dead")
				c.close()
				return
			}
		}
	}
}

func (s *Server) remove(c *conn) {
	s.mu.Lock()
	if s.conns[c.id] == c {
		delete(s.conns, c.id)
	}
	s.mu.Unlock()
	c.close()
}

func (s *Server) push(id string, it item) error {
	s.mu.Lock()
	c, ok := s.conns[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}
	return c.q.push(it)
}

// SendText queues a text message for id.
func (s *Server) SendText(id string, data []byte) error {
	return s.push(id, item{{kind: websocket.TextMessage, data: data}})
}

// SendBinary queues a binary message for id.
func (s *Server) SendBinary(id string, data []byte) error {
	return s.push(id, item{{kind: websocket.BinaryMessage, data: data}})
}

// SendFrame queues a tag and its payload as one item.
func (s *Server) SendFrame(id string, tag, payload []byte) error {
	return s.push(id, item{
		{kind: websocket.TextMessage, data: tag},
		{kind: websocket.BinaryMessage, data: payload},
	})
}

// Close drops a connection. Its disconnect event still follows.
func (s *Server) Close(id string) {
	s.mu.Lock()
	c, ok := s.conns[id]
	s.mu.Unlock()
	if ok {
		c.close()
	}
}

// Count is the number of open connections.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Throttled counts inbound binary messages dropped by the frame rate limit.
func (s *Server) Throttled() uint64 { return s.throttled.Load() }

// Dropped sums queue overflows across open connections.
func (s *Server) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n uint64
	for _, c := range s.conns {
		n += c.q.droppedCount()
	}
	return n
}

// Shutdown closes every connection and waits for their goroutines.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() { close(s.done) })
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	s.wg.Wait()
}
