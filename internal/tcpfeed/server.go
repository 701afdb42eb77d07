package tcpfeed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"

	"vidstream/internal/events"
)

// Server writes every engagement event as one JSON line to each connected TCP client.
type Server struct {
	addr string

	mu      sync.Mutex
	clients map[net.Conn]struct{}

	feed <-chan events.Event
}

func New(addr string, feed <-chan events.Event) *Server {
	return &Server{
		addr:    addr,
		clients: make(map[net.Conn]struct{}),
		feed:    feed,
	}
}

// Start listens on the configured address and blocks until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	log.Printf("TCP feed listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.broadcastLoop()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.closeAll()
				return nil
			}
			log.Println("tcp accept:", err)
			continue
		}
		s.addClient(conn)
		log.Printf("TCP client connected: %s", conn.RemoteAddr().String())

		go s.readLoop(conn)
	}
}

func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) addClient(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[conn] = struct{}{}
}

func (s *Server) removeClient(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, conn)
	_ = conn.Close()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		_ = conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) readLoop(conn net.Conn) {
	// client không gửi gì; chỉ đọc để biết khi nào disconnect
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
	}
	s.removeClient(conn)
	log.Printf("TCP client disconnected: %s", conn.RemoteAddr().String())
}

func (s *Server) broadcastLoop() {
	for evt := range s.feed {
		b, err := json.Marshal(evt)
		if err != nil {
			log.Println("tcp marshal:", err)
			continue
		}
		// newline-delimited JSON
		b = append(b, '\n')

		s.mu.Lock()
		for conn := range s.clients {
			if _, err := conn.Write(b); err != nil {
				delete(s.clients, conn)
				_ = conn.Close()
			}
		}
		s.mu.Unlock()
	}
}
