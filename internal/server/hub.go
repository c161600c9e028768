// Package server coordinates client registration, room-scoped broadcast
// fanout, and connection cleanup for the Huddle WebSocket system via the Hub
// type.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// Hub manages all WebSocket client connections and fans events out to room
// members. It owns the session registry and the room store as explicit,
// process-lifetime services.
//
// Protocol transitions (join, message, typing, close-room, disconnect) are
// serialized by dispatchMu. Holding it across the state mutation and the
// resulting sends keeps every client's event stream in global transition
// order: a joiner always sees role and replay before any later fanout, and
// a participants list always reflects the membership change that produced
// it.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	registry   *Registry
	rooms      *RoomStore
	dispatchMu sync.Mutex
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance with its registry, room
// store, and lifecycle channels. The returned Hub is ready to manage
// WebSocket connections once Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		registry:   NewRegistry(),
		rooms:      NewRoomStore(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Registry returns the hub's session registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Rooms returns the hub's room store.
func (h *Hub) Rooms() *RoomStore {
	return h.rooms
}

func (h *Hub) safeSend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	if payload == nil {
		return false
	}

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	// Check if client is still registered and not closed
	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// sendEvent delivers a single event to one client, skipping it when the
// client's channel is not writable. Callers hold dispatchMu.
func (h *Hub) sendEvent(client *Client, event any) bool {
	return h.safeSend(client, marshalEvent(event))
}

// broadcastTo fans an event out to a member snapshot. Members whose channel
// is closed are skipped; members whose send buffer is full are evicted from
// the hub. Callers hold dispatchMu.
func (h *Hub) broadcastTo(members []*Client, event any) {
	payload := marshalEvent(event)
	if payload == nil {
		return
	}

	var clientsToRemove []*Client
	for _, member := range members {
		if h.safeSend(member, payload) {
			continue
		}
		h.mutex.RLock()
		registered := h.clients[member]
		h.mutex.RUnlock()
		if registered {
			clientsToRemove = append(clientsToRemove, member)
		}
	}

	h.removeFailedClients(clientsToRemove)
}

// dispatch routes one raw inbound frame under the transition lock.
func (h *Hub) dispatch(client *Client, raw []byte) outcome {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	return h.dispatchLocked(client, raw)
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and disconnect cleanup. This method should be called in a
// separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s registered from %s. Total clients: %d", client.id, client.addr, clientCount)

			// Tests register pump-less clients without a live connection.
			if client.conn != nil {
				h.wg.Add(2)
				go func() {
					defer h.wg.Done()
					client.writePump()
				}()
				go func() {
					defer h.wg.Done()
					client.readPump()
				}()
			}

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// unregisterClient removes a client from the hub and runs session/room
// cleanup exactly once. Safe to call for clients that were already removed.
func (h *Hub) unregisterClient(client *Client) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	h.unregisterClientLocked(client)
}

// unregisterClientLocked is the dispatchMu-held form of unregisterClient,
// used by transitions that evict members mid-flight (close-room, send
// buffer overflow).
func (h *Hub) unregisterClientLocked(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	log.Printf("Client %s unregistered from %s. Total clients: %d", client.id, client.addr, clientCount)

	h.handleDisconnect(client)
}

// removeFailedClients evicts clients whose send buffer overflowed during a
// fanout, closing their channels and cleaning up their room membership.
// Callers hold dispatchMu.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	for _, client := range clientsToRemove {
		log.Printf("Client %s from %s removed due to full send buffer", client.id, client.addr)
		h.unregisterClientLocked(client)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	// Close all client connections
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
