// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// hub broadcasts samples to connected WebSocket clients. Writes to a
// gorilla connection must not be concurrent, so each client carries
// its own write lock.
type hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newHub(log *slog.Logger) *hub {
	return &hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// serve accepts WebSocket clients on /ws until ctx is cancelled.
func (h *hub) serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	h.log.Info("serving live feed", "addr", addr)
	err := srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		h.log.Error("live feed server failed", "err", err)
	}
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("failed to upgrade connection", "err", err)
		return
	}
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info("client connected", "remote", r.RemoteAddr)

	// The read loop only notices disconnects; clients do not send.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(c)
				return
			}
		}
	}()
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

// broadcast sends a sample to all clients. Failures are left for the
// read loop to clean up.
func (h *hub) broadcast(s sample) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.mu.Lock()
		c.conn.WriteMessage(websocket.TextMessage, b)
		c.mu.Unlock()
	}
}
