package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sunpeak/console-api/pkg/metrics"
)

// Hub tracks the open push channels of this process, keyed by user id. A
// user may hold several connections (multiple tabs, the bell CLI); every one
// of them receives each event.
type Hub struct {
	clients map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	outbound   chan userFrame

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

type userFrame struct {
	userID  int64
	payload []byte
}

func NewHub(logger zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan userFrame, 256),
		logger:     logger.With().Str("component", "realtime-hub").Logger(),
		metrics:    m,
	}
}

// Run owns the client registry; all map access happens on this goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for client := range conns {
					close(client.send)
				}
			}
			return

		case client := <-h.register:
			conns := h.clients[client.userID]
			if conns == nil {
				conns = make(map[*Client]bool)
				h.clients[client.userID] = conns
			}
			conns[client] = true
			h.metrics.WSConnections.Inc()
			h.logger.Debug().Int64("user_id", client.userID).Msg("client registered")

		case client := <-h.unregister:
			if conns, ok := h.clients[client.userID]; ok {
				if conns[client] {
					delete(conns, client)
					close(client.send)
					h.metrics.WSConnections.Dec()
				}
				if len(conns) == 0 {
					delete(h.clients, client.userID)
				}
			}
			h.logger.Debug().Int64("user_id", client.userID).Msg("client unregistered")

		case frame := <-h.outbound:
			for client := range h.clients[frame.userID] {
				select {
				case client.send <- frame.payload:
					h.metrics.PushDelivered.Inc()
				default:
					// Slow consumer: drop the frame rather than block
					// delivery to everyone else.
					h.metrics.PushDropped.Inc()
					h.logger.Warn().Int64("user_id", frame.userID).Msg("send buffer full, frame dropped")
				}
			}
		}
	}
}

// SendToUser queues one payload for every open connection of the user.
// Callers are never blocked by slow websocket peers.
func (h *Hub) SendToUser(userID int64, payload []byte) {
	h.outbound <- userFrame{userID: userID, payload: payload}
}
