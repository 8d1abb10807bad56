// Package stream implements the downstream transport for published
// CaptureResults: a gorilla/websocket broadcast hub. The core's result
// sink is a plain Go channel (spec §6); this package is the concrete
// "downstream consumer" that drains it and fans results out to viewers,
// inverting the agent's usual outbound-websocket-client role into a
// server that the pipeline publishes through.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/screenpipe/agent/internal/core"
	"github.com/screenpipe/agent/internal/logging"
)

var log = logging.L("stream")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	clientSendBuf  = 4 // drop-oldest beyond this depth rather than block the hub
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireWindowOcrResult is the JSON wire shape for one WindowOcrResult, with
// the window image base64-encoded as a PNG.
type wireWindowOcrResult struct {
	WindowName string              `json:"windowName"`
	AppName    string              `json:"appName"`
	ImagePNG   string              `json:"imagePng"`
	Text       string              `json:"text"`
	TextJSON   []map[string]string `json:"textJson"`
	Focused    bool                `json:"focused"`
}

type wireCaptureResult struct {
	FrameNumber      uint64                 `json:"frameNumber"`
	Timestamp        time.Time              `json:"timestamp"`
	ImagePNG         string                 `json:"imagePng"`
	WindowOcrResults []wireWindowOcrResult  `json:"windowOcrResults"`
}

// client is one connected viewer.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub drains a core.CaptureResult channel and broadcasts each result, as
// JSON, to every connected viewer. A slow client has its oldest buffered
// frame dropped rather than blocking the broadcast loop, so the hub never
// backpressures the dispatcher that feeds it.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	results <-chan core.CaptureResult
	done    chan struct{}
	stopped sync.Once
}

// NewHub returns a Hub that will drain results once Run is called.
func NewHub(results <-chan core.CaptureResult) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		results: results,
		done:    make(chan struct{}),
	}
}

// Run drains the result channel until it closes or the hub is stopped,
// broadcasting each CaptureResult to all connected clients. Intended to be
// run in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case result, ok := <-h.results:
			if !ok {
				log.Info("result channel closed, stopping hub")
				h.closeAll()
				return
			}
			h.broadcast(result)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop closes the hub and disconnects all viewers.
func (h *Hub) Stop() {
	h.stopped.Do(func() { close(h.done) })
}

// ServeHTTP upgrades the connection to a WebSocket and registers it as a
// viewer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuf)}
	h.addClient(c)
	defer h.removeClient(c)

	go c.writePump()
	c.readPump()
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		close(c.send)
		c.conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		c.conn.Close()
	}
}

func (h *Hub) broadcast(result core.CaptureResult) {
	payload, err := encodeResult(result)
	if err != nil {
		log.Error("failed to encode capture result", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Drop the oldest buffered frame to make room rather than
			// block the broadcast loop for one slow viewer.
			select {
			case <-c.send:
			default:
			}
			select {
			case c.send <- payload:
			default:
			}
		}
	}
}

func encodeResult(result core.CaptureResult) ([]byte, error) {
	wire := wireCaptureResult{
		FrameNumber: result.FrameNumber,
		Timestamp:   result.Timestamp,
		ImagePNG:    encodePNGBase64(result.Image),
	}
	for _, w := range result.WindowOcrResults {
		wire.WindowOcrResults = append(wire.WindowOcrResults, wireWindowOcrResult{
			WindowName: w.WindowName,
			AppName:    w.AppName,
			ImagePNG:   encodeRGBABase64(w.Image),
			Text:       w.Text,
			TextJSON:   w.TextJSON,
			Focused:    w.Focused,
		})
	}
	return json.Marshal(wire)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Viewers are read-only consumers; any inbound message (besides
		// pongs, handled above) just keeps the deadline fresh until the
		// connection drops.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
