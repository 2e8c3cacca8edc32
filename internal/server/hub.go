package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// message is the envelope pushed to browsers: "init" once on connect and
// "update" after every published state.
type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans state updates out to websocket clients. Each client has one
// writer goroutine, so a slow browser never blocks the others.
type hub struct {
	mu        sync.Mutex
	clients   map[*client]struct{}
	broadcast chan []byte
	done      chan struct{}
}

func newHub() *hub {
	return &hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
	}
}

func (h *hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client too slow, dropping")
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// publish queues msg for every client without blocking the caller.
func (h *hub) publish(typ string, data any) {
	b, err := json.Marshal(message{Type: typ, Data: data})
	if err != nil {
		log.Error().Err(err).Str("type", typ).Msg("encode websocket message")
		return
	}
	select {
	case h.broadcast <- b:
	default:
		log.Warn().Str("type", typ).Msg("websocket broadcast queue full")
	}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// remove must not be called with h.mu held.
func (h *hub) remove(c *client) {
	h.mu.Lock()
	h.drop(c)
	h.mu.Unlock()
}

func (h *hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) close() {
	close(h.done)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
