package transport

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"RoverLink/internal/model"
	"RoverLink/internal/parser"
	"RoverLink/internal/util"
)

// ClientConfig tunes the vehicle-side link.
type ClientConfig struct {
	URL              string
	VehicleID        string // sent in a register message on every connect
	Reconnect        time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	SendQueue        int
	Header           http.Header
}

// ClientHandlers receive link events on the client's read goroutine.
type ClientHandlers struct {
	OnText       func(data []byte)
	OnConnect    func()
	OnDisconnect func()
}

// Client keeps one WebSocket open to the base station, redialling after
// failures until Stop.
type Client struct {
	cfg      ClientConfig
	handlers ClientHandlers
	dialer   *websocket.Dialer
	log      *logrus.Entry

	connected atomic.Bool
	mu        sync.Mutex
	q         *queue

	sent    atomic.Uint64
	dials   atomic.Uint64
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewClient prepares a client; call Start to begin dialling.
func NewClient(cfg ClientConfig, h ClientHandlers) *Client {
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = 5 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = cfg.HandshakeTimeout
	return &Client{
		cfg:      cfg,
		handlers: h,
		dialer:   &d,
		log:      util.Component("link").WithField("vehicle_id", cfg.VehicleID),
		stop:     make(chan struct{}),
	}
}

// Start runs the connect loop in the background.
func (c *Client) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
}

// Stop closes the link and waits for the connect loop. It is idempotent.
func (c *Client) Stop() {
	c.stopped.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// IsConnected reports whether the link is currently up.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// Dials counts connection attempts.
func (c *Client) Dials() uint64 { return c.dials.Load() }

// Sent counts messages written to the socket.
func (c *Client) Sent() uint64 { return c.sent.Load() }

func (c *Client) push(it item) error {
	c.mu.Lock()
	q := c.q
	c.mu.Unlock()
	if q == nil || !c.connected.Load() {
		return ErrNotConnected
	}
	return q.push(it)
}

// SendText queues a text message.
func (c *Client) SendText(data []byte) error {
	return c.push(item{{kind: websocket.TextMessage, data: data}})
}

// SendBinary queues a binary message, such as a JPEG frame.
func (c *Client) SendBinary(data []byte) error {
	return c.push(item{{kind: websocket.BinaryMessage, data: data}})
}

// SendJSON encodes v and queues it as text.
func (c *Client) SendJSON(v any) error {
	data, err := parser.Encode(v)
	if err != nil {
		return err
	}
	return c.SendText(data)
}

func (c *Client) run() {
	for {
		c.dials.Add(1)
		ws, _, err := c.dialer.Dial(c.cfg.URL, c.cfg.Header)
		if err != nil {
			c.log.WithError(err).WithField("url", c.cfg.URL).Warn("connect failed")
		} else {
			c.serve(ws)
		}
		select {
		case <-c.stop:
			return
		case <-time.After(c.cfg.Reconnect):
		}
	}
}

func (c *Client) deadline() time.Time {
	if c.cfg.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.cfg.WriteTimeout)
}

// serve runs one connection until it fails or the client stops.
func (c *Client) serve(ws *websocket.Conn) {
	q := newQueue(c.cfg.SendQueue, DropOldest)
	if c.cfg.VehicleID != "" {
		reg, err := parser.Encode(parser.RegisterMessage(model.RoleVehicle, c.cfg.VehicleID))
		if err == nil {
			_ = q.push(item{{kind: websocket.TextMessage, data: reg}})
		}
	}
	ws.SetPingHandler(func(appData string) error {
		if err := ws.WriteControl(websocket.PongMessage, []byte(appData), c.deadline()); err != nil {
			c.log.WithError(err).Debug("pong failed")
		}
		return nil
	})

	c.mu.Lock()
	c.q = q
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.WithField("url", c.cfg.URL).Info("link up")
	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect()
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		select {
		case <-c.stop:
		case <-done:
		}
		_ = ws.Close()
	}()
	go func() {
		defer wg.Done()
		c.writeLoop(ws, q, done)
	}()

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		if kind == websocket.TextMessage && c.handlers.OnText != nil {
			c.handlers.OnText(data)
		}
	}

	c.connected.Store(false)
	q.close()
	close(done)
	wg.Wait()
	c.mu.Lock()
	c.q = nil
	c.mu.Unlock()
	c.log.Warn("link down")
	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect()
	}
}

func (c *Client) writeLoop(ws *websocket.Conn, q *queue, done <-chan struct{}) {
	var ping <-chan time.Time
	if c.cfg.PingInterval > 0 {
		t := time.NewTicker(c.cfg.PingInterval)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case <-done:
			return
		case <-q.ready:
			for _, it := range q.drain() {
				for _, m := range it {
					_ = ws.SetWriteDeadline(c.deadline())
					if err := ws.WriteMessage(m.kind, m.data); err != nil {
						c.log.WithError(err).Warn("write failed, dropping link")
						_ = ws.Close()
						return
					}
					c.sent.Add(1)
				}
			}
		case <-ping:
			if err := ws.WriteControl(websocket.PingMessage, nil, c.deadline()); err != nil {
				c.log.WithError(err).Warn("ping failed, marking link as dead")
				_ = ws.Close()
				return
			}
		}
	}
}
