// Package feed streams simulator events to WebSocket clients.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/sim"
	"github.com/pthm-cable/ecosys/systems"
	"github.com/pthm-cable/ecosys/telemetry"
)

// Frame types.
const (
	FrameState  = "state"
	FrameReset  = "reset"
	FrameAnimal = "animal"
	FrameRegion = "region"
	FrameWindow = "window"
)

// Frame is one message on the feed.
type Frame struct {
	Type   string                 `json:"type"`
	Seq    uint64                 `json:"seq"`
	Time   float64                `json:"time"`
	State  *sim.State             `json:"state,omitempty"`
	Animal *sim.AnimalInfo        `json:"animal,omitempty"`
	Region *sim.RegionEntry       `json:"region,omitempty"`
	Window *telemetry.WindowStats `json:"window,omitempty"`
}

type client struct {
	id      string
	conn    *websocket.Conn
	out     chan []byte
	dropped atomic.Uint64
}

// Hub is a simulator observer that fans frames out to WebSocket
// clients. Frames are serialized once in the simulator's goroutine and
// queued per client; a client whose queue is full misses frames rather
// than stalling the simulation.
type Hub struct {
	upgrader websocket.Upgrader
	buffer   int
	every    int

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte // latest full state frame, sent to new clients
	closed  bool

	seq   atomic.Uint64
	steps int
	now   float64
}

var _ sim.Observer = (*Hub)(nil)

// NewHub creates a hub. Full state is published every cfg.Every steps.
func NewHub(cfg config.FeedConfig) *Hub {
	buffer := cfg.ClientBuffer
	if buffer < 1 {
		buffer = 1
	}
	every := cfg.Every
	if every < 1 {
		every = 1
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		buffer:  buffer,
		every:   every,
		clients: make(map[*client]struct{}),
	}
}

// OnRegister publishes the full state.
func (h *Hub) OnRegister(s sim.State) {
	h.publishState(FrameState, s)
}

// OnReset publishes the fresh state.
func (h *Hub) OnReset(s sim.State) {
	h.steps = 0
	h.publishState(FrameReset, s)
}

// OnAnimalAdded publishes the new animal.
func (h *Hub) OnAnimalAdded(s sim.State, a sim.AnimalInfo) {
	h.now = s.Time
	h.publish(Frame{Type: FrameAnimal, Time: s.Time, Animal: &a}, false)
}

// OnRegionSet publishes the replaced region.
func (h *Hub) OnRegionSet(row, col int, _ sim.MapInfo, r systems.RegionInfo) {
	h.publish(Frame{Type: FrameRegion, Time: h.now, Region: &sim.RegionEntry{Row: row, Col: col, RegionInfo: r}}, false)
}

// OnAdvanced publishes the full state every configured number of steps.
func (h *Hub) OnAdvanced(s sim.State, _ float64) {
	h.now = s.Time
	h.steps++
	if h.steps%h.every == 0 {
		h.publishState(FrameState, s)
	}
}

// PublishWindow sends a telemetry window to clients.
func (h *Hub) PublishWindow(w telemetry.WindowStats) {
	h.publish(Frame{Type: FrameWindow, Time: w.WindowEnd, Window: &w}, false)
}

func (h *Hub) publishState(typ string, s sim.State) {
	h.now = s.Time
	h.publish(Frame{Type: typ, Time: s.Time, State: &s}, true)
}

// publish serializes f and queues it for every client. Full-state
// frames are also kept for clients that join later.
func (h *Hub) publish(f Frame, keep bool) {
	f.Seq = h.seq.Add(1)
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("feed: marshal frame", "type", f.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if keep {
		h.last = data
	}
	for c := range h.clients {
		select {
		case c.out <- data:
		default:
			c.dropped.Add(1)
		}
	}
}

// join registers a client, primed with the latest full state.
func (h *Hub) join(conn *websocket.Conn) *client {
	c := &client{id: uuid.NewString(), conn: conn, out: make(chan []byte, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	if h.last != nil {
		c.out <- h.last
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// StateHandler serves the latest full state frame as JSON.
func (h *Hub) StateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.mu.Lock()
		last := h.last
		h.mu.Unlock()
		if last == nil {
			http.Error(rw, "no state yet", http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write(last)
	}
}

// Handler upgrades the request to a WebSocket and streams frames until
// the client goes away. Messages from the client are ignored.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := h.join(conn)
		if c == nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
		defer h.leave(c)
		slog.Info("feed client joined", "session", c.id, "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: only watches for the client going away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		slog.Info("feed client left", "session", c.id, "dropped", c.dropped.Load())
	}
}
