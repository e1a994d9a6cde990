package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voicecue/log"
	"voicecue/metrics"
)

var (
	ErrConnection   = errors.New("connection failed")
	ErrEmit         = errors.New("emit failed")
	ErrNotConnected = errors.New("not connected")
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Cumulative chunks grow with the recording; one minute of 16kHz WAV
	// in base64 is a little under 2.6MB.
	maxMessageSize = 4 << 20

	defaultQueueSize = 64
)

// Emitter sends named events without waiting for delivery.
type Emitter interface {
	Emit(event string, payload any) error
}

// Handler receives the raw data of one inbound event.
type Handler func(data json.RawMessage)

type Options struct {
	Header    http.Header
	Dialer    *websocket.Dialer
	QueueSize int
	Metrics   *metrics.Metrics
}

// Conn is a long-lived websocket to the assistant service. Writes go through
// a queue drained by one goroutine; reads are dispatched to subscribers.
type Conn struct {
	ws       *websocket.Conn
	endpoint string
	metrics  *metrics.Metrics

	send       chan []byte
	closing    chan struct{}
	readDone   chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once

	mu       sync.RWMutex
	handlers map[string]map[uint64]Handler
	nextID   uint64

	sent     atomic.Int64
	received atomic.Int64
}

// Dial opens the session socket. Failures wrap ErrConnection.
func Dial(ctx context.Context, endpoint string, opts Options) (*Conn, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}

	ws, resp, err := dialer.DialContext(ctx, endpoint, opts.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%v (HTTP %d)", err, resp.StatusCode)
		}
		log.Connection(endpoint, false, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, endpoint, err)
	}
	log.Connection(endpoint, true, nil)

	c := newConn(ws, endpoint, opts)
	go c.readPump()
	go c.writePump()
	return c, nil
}

func newConn(ws *websocket.Conn, endpoint string, opts Options) *Conn {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Default
	}
	return &Conn{
		ws:         ws,
		endpoint:   endpoint,
		metrics:    m,
		send:       make(chan []byte, size),
		closing:    make(chan struct{}),
		readDone:   make(chan struct{}),
		writerDone: make(chan struct{}),
		handlers:   make(map[string]map[uint64]Handler),
	}
}

// Emit queues an event for the write goroutine and returns immediately.
// It fails with ErrEmit once the connection is closing or when the queue is full.
func (c *Conn) Emit(event string, payload any) error {
	frame, err := Marshal(event, payload)
	if err != nil {
		c.metrics.EmitErrors.WithLabelValues(event).Inc()
		return fmt.Errorf("%w: %v", ErrEmit, err)
	}

	select {
	case <-c.closing:
		c.metrics.EmitErrors.WithLabelValues(event).Inc()
		return fmt.Errorf("%w: %s: connection closed", ErrEmit, event)
	default:
	}

	select {
	case c.send <- frame:
		c.metrics.MessagesSent.WithLabelValues(event).Inc()
		return nil
	case <-c.closing:
		c.metrics.EmitErrors.WithLabelValues(event).Inc()
		return fmt.Errorf("%w: %s: connection closed", ErrEmit, event)
	default:
		c.metrics.EmitErrors.WithLabelValues(event).Inc()
		return fmt.Errorf("%w: %s: send queue full", ErrEmit, event)
	}
}

// Subscribe registers h for an inbound event. Every delivery runs h in its
// own goroutine; goroutines are started in arrival order but may finish in
// any order.
func (c *Conn) Subscribe(event string, h Handler) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[uint64]Handler)
	}
	c.handlers[event][id] = h
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers[event], id)
		c.mu.Unlock()
	}
}

// Done is closed when the read side of the connection has ended.
func (c *Conn) Done() <-chan struct{} { return c.readDone }

func (c *Conn) Endpoint() string { return c.endpoint }

// Stats returns the number of frames written and read so far.
func (c *Conn) Stats() (sent, received int64) {
	return c.sent.Load(), c.received.Load()
}

// Close flushes queued events, sends a close frame and releases the socket.
// Only the first call does any work; later calls return nil.
func (c *Conn) Close() error {
	c.shutdown()
	<-c.writerDone
	return nil
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() { close(c.closing) })
}

func (c *Conn) dispatch(env Envelope) {
	c.mu.RLock()
	hs := make([]Handler, 0, len(c.handlers[env.Event]))
	for _, h := range c.handlers[env.Event] {
		hs = append(hs, h)
	}
	c.mu.RUnlock()

	if len(hs) == 0 {
		log.Warnf("transport: no subscriber for %q", env.Event)
		return
	}
	for _, h := range hs {
		go h(env.Data)
	}
}

func (c *Conn) readPump() {
	defer func() {
		close(c.readDone)
		c.shutdown()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Errorf("transport: read from %s: %v", c.endpoint, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			log.Warnf("transport: ignoring message type %d", messageType)
			continue
		}

		env, err := Unmarshal(message)
		if err != nil {
			log.Warnf("transport: %v", err)
			continue
		}
		c.received.Add(1)
		c.metrics.MessagesReceived.WithLabelValues(env.Event).Inc()
		c.dispatch(env)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		close(c.writerDone)
	}()

	write := func(frame []byte) bool {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Errorf("transport: write to %s: %v", c.endpoint, err)
			return false
		}
		c.sent.Add(1)
		return true
	}

	for {
		select {
		case frame := <-c.send:
			if !write(frame) {
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.closing:
			c.flush(write)
			return
		}
	}
}

// flush drains what Emit had already accepted, then says goodbye and waits
// briefly for the peer to close its side.
func (c *Conn) flush(write func([]byte) bool) {
	for {
		select {
		case frame := <-c.send:
			if !write(frame) {
				return
			}
			continue
		default:
		}
		break
	}

	select {
	case <-c.readDone:
		return
	default:
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		return
	}
	select {
	case <-c.readDone:
	case <-time.After(time.Second):
	}
}
