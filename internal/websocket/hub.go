// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/vigil/internal/alerting"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// Message types sent over the alert stream.
const (
	MessageTypeAlert = "alert"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

// Message is one frame on the alert stream.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of connected alert stream clients and fans broadcast
// messages out to them.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]bool
	broadcast chan Message

	Register   chan *Client
	Unregister chan *Client
}

// NewHub creates an empty hub. Run must be started before clients connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run processes client lifecycle and broadcast traffic until ctx is
// cancelled, then closes every connected client and returns ctx.Err().
//
// Lifecycle events take priority over broadcasts so the client set is
// settled before a message fans out. Go's select picks randomly among ready
// channels, so the priority is enforced with staged non-blocking checks.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SetWSConnections(total)
	logging.Info().Int("total_clients", total).Msg("Alert stream client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SetWSConnections(total)
	logging.Info().Int("total_clients", total).Msg("Alert stream client disconnected")
}

// broadcastToClients delivers a message to every client in connection order.
// A client whose send queue is full is dropped on the spot; a stalled reader
// must never hold up the stream for everyone else.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.RecordWSMessage()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.RecordWSError("slow_client")
		logging.Warn().Uint64("client_id", client.id).Msg("Dropping slow alert stream client")
	}

	if len(toRemove) > 0 {
		metrics.SetWSConnections(len(h.clients))
	}
}

// shutdown closes all connected clients.
func (h *Hub) shutdown() {
	h.mu.Lock()
	closed := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.SetWSConnections(0)

	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", closed).
		Msg("Alert stream hub stopped")
}

// BroadcastAlert queues an alert for delivery to every connected client.
// When the queue is full the alert is dropped: the stream is a best-effort
// mirror of the alerting pipeline, never a backpressure source.
func (h *Hub) BroadcastAlert(alert alerting.Alert) {
	message := Message{Type: MessageTypeAlert, Data: alert}

	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("title", alert.Title).Msg("Broadcast queue full, dropping alert")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AlertSink adapts the hub to the alerting.Notifier interface so dispatched
// alerts stream to connected operators.
type AlertSink struct {
	hub *Hub
}

// NewAlertSink wraps the hub as a notifier.
func NewAlertSink(hub *Hub) *AlertSink {
	return &AlertSink{hub: hub}
}

// Name identifies the sink in logs and metrics.
func (s *AlertSink) Name() string {
	return "websocket"
}

// Send queues the alert for broadcast. It never blocks and never fails; a
// full queue drops the alert.
func (s *AlertSink) Send(ctx context.Context, alert alerting.Alert) error {
	s.hub.BroadcastAlert(alert)
	return nil
}
