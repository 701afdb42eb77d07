package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"vidstream/internal/events"
)

type registration struct {
	conn *websocket.Conn
	name string
	send chan []byte
}

// Hub pushes engagement events to every connected websocket client.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]string
	sendChans map[*websocket.Conn]chan []byte

	register   chan registration
	unregister chan *websocket.Conn
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]string),
		sendChans:  make(map[*websocket.Conn]chan []byte),
		register:   make(chan registration),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and relays feed until ctx ends or feed closes.
func (h *Hub) Run(ctx context.Context, feed <-chan events.Event) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case r := <-h.register:
			h.mu.Lock()
			h.clients[r.conn] = r.name
			h.sendChans[r.conn] = r.send
			h.mu.Unlock()
			log.Printf("ws client %s connected", r.name)

		case conn := <-h.unregister:
			h.mu.Lock()
			if name, ok := h.clients[conn]; ok {
				h.drop(conn)
				log.Printf("ws client %s disconnected", name)
			}
			h.mu.Unlock()

		case evt, ok := <-feed:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				log.Println("ws marshal:", err)
				continue
			}

			h.mu.Lock()
			for conn, sendChan := range h.sendChans {
				select {
				case sendChan <- data:
				default:
					log.Printf("ws client %s send channel full, removing", h.clients[conn])
					h.drop(conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// drop requires h.mu.
func (h *Hub) drop(conn *websocket.Conn) {
	if sendChan, ok := h.sendChans[conn]; ok {
		close(sendChan)
		delete(h.sendChans, conn)
	}
	delete(h.clients, conn)
	_ = conn.Close()
}

func (h *Hub) shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		h.drop(conn)
	}
}
