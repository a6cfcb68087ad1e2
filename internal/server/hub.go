// Package server coordinates client registration, event dispatch into the room
// registry, and fan-out delivery for the Roomcast WebSocket system via the Hub
// type.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomcast/internal/registry"
)

// inboundEvent carries one raw frame from a client's read pump into the hub
// loop, which owns all decoding and registry access.
type inboundEvent struct {
	client *Client
	data   []byte
}

// Hub owns the registry and the set of live connections. Its Run loop is the
// single goroutine that mutates the client map and invokes registry
// operations, so every inbound event is fully handled (state mutated, fan-out
// delivered) before the next one is looked at.
type Hub struct {
	registry       *registry.Registry
	log            *slog.Logger
	maxMessageSize int64

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub around the given registry. The returned Hub is ready
// to manage WebSocket connections once Run is started.
func NewHub(reg *registry.Registry, cfg *Config, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:       reg,
		log:            log,
		maxMessageSize: cfg.MaxMessageSize,
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		inbound:        make(chan inboundEvent),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and inbound room events. This method should be called in a
// separate goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}

			h.clients[client.id] = client
			h.log.Info("client registered", "conn", client.id, "addr", client.addr, "total", len(h.clients))

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

			h.deliver(h.registry.Connect(client.id))

		case client := <-h.unregister:
			if current, ok := h.clients[client.id]; ok && current == client {
				delete(h.clients, client.id)
				client.closed = true
				close(client.send)
				h.log.Info("client unregistered", "conn", client.id, "addr", client.addr, "total", len(h.clients))
				h.deliver(h.registry.Disconnect(client.id))
			}

		case in := <-h.inbound:
			h.handleInbound(in)
		}
	}
}

// handleInbound decodes one frame and dispatches it to the matching registry
// operation. Malformed frames and invalid payloads answer the sender with the
// error event and touch no state.
func (h *Hub) handleInbound(in inboundEvent) {
	var frame Frame
	if err := json.Unmarshal(in.data, &frame); err != nil {
		h.reject(in.client, "invalid frame: expected an {event, payload} object")
		return
	}

	switch frame.Event {
	case eventCreateRoom:
		req, err := decodeRoomRequest(frame.Payload)
		if err != nil {
			h.reject(in.client, err.Error())
			return
		}
		h.deliver(h.registry.CreateRoom(in.client.id, req.Name, req.RoomName))

	case eventJoinRoom:
		req, err := decodeRoomRequest(frame.Payload)
		if err != nil {
			h.reject(in.client, err.Error())
			return
		}
		h.deliver(h.registry.JoinRoom(in.client.id, req.Name, req.RoomName))

	case eventStartRoom:
		roomName, err := decodeStartRequest(frame.Payload)
		if err != nil {
			h.reject(in.client, err.Error())
			return
		}
		h.deliver(h.registry.StartRoom(in.client.id, roomName))

	case eventLeaveRoom:
		h.deliver(h.registry.LeaveRoom(in.client.id))

	case eventMessage:
		req, err := decodeMessageRequest(frame.Payload)
		if err != nil {
			h.reject(in.client, err.Error())
			return
		}
		h.deliver(h.registry.Message(in.client.id, req.Text))

	default:
		h.reject(in.client, "unsupported event")
	}
}

func (h *Hub) reject(c *Client, reason string) {
	h.log.Warn("rejected frame", "conn", c.id, "reason", reason)
	h.deliver([]registry.Outbound{{To: []string{c.id}, Event: registry.EventError, Payload: reason}})
}

// deliver pushes each instruction's encoded frame into the target clients'
// send buffers. A client whose buffer is full is dropped and disconnected
// from the registry; the fan-out that disconnect produces is delivered in the
// same pass, repeating until no client stalls.
func (h *Hub) deliver(outs []registry.Outbound) {
	pending := outs
	for len(pending) > 0 {
		var stalled []*Client
		for _, out := range pending {
			data, err := encodeFrame(out.Event, out.Payload)
			if err != nil {
				h.log.Error("dropping undeliverable event", "event", out.Event, "error", err)
				continue
			}
			for _, client := range h.targets(out) {
				if client.closed {
					continue
				}
				select {
				case client.send <- data:
				default:
					stalled = append(stalled, client)
				}
			}
		}

		pending = nil
		for _, client := range stalled {
			if client.closed {
				continue
			}
			h.drop(client)
			pending = append(pending, h.registry.Disconnect(client.id)...)
		}
	}
}

func (h *Hub) targets(out registry.Outbound) []*Client {
	if out.Broadcast {
		targets := make([]*Client, 0, len(h.clients))
		for _, client := range h.clients {
			targets = append(targets, client)
		}
		return targets
	}

	targets := make([]*Client, 0, len(out.To))
	for _, id := range out.To {
		if client, ok := h.clients[id]; ok {
			targets = append(targets, client)
		}
	}
	return targets
}

// drop removes a client that can no longer keep up with delivery.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client.id)
	client.closed = true
	close(client.send)
	if client.conn != nil {
		_ = client.conn.Close()
	}
	h.log.Warn("client dropped due to full send buffer", "conn", client.id, "addr", client.addr)
}

// shutdownClients gracefully closes all active client connections.
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections", "total", len(h.clients))

	for _, client := range h.clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Error("error closing client connection", "addr", client.addr, "error", err)
			}
		}
	}
}

// Shutdown initiates graceful shutdown of the hub and waits for all client
// goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached; some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
