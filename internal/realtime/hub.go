package realtime

import (
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
)

// Authenticator resolves the request's credentials into an actor before
// the websocket upgrade. Identity always comes from the server side,
// never from anything the client claims after connecting.
type Authenticator func(r *http.Request) (models.Actor, error)

// deliveryRecorder counts push outcomes and tracks the live session
// gauge.
type deliveryRecorder interface {
	ObserveDelivery(outcome string)
	SetLiveSessions(count int)
}

// Hub fans committed transition events out to live sessions. Broadcast
// never blocks on a slow consumer: each session has a bounded buffer
// and overflow drops the event for that session only.
type Hub struct {
	registry   *Registry
	logger     *zap.Logger
	metrics    deliveryRecorder
	sendBuffer int
}

// HubOption configures the hub.
type HubOption func(*Hub)

// WithDeliveryRecorder wires push delivery metrics.
func WithDeliveryRecorder(metrics deliveryRecorder) HubOption {
	return func(h *Hub) { h.metrics = metrics }
}

// WithSendBuffer sets the per-session outbound buffer size.
func WithSendBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.sendBuffer = size
		}
	}
}

// NewHub constructs a hub over the given registry.
func NewHub(registry *Registry, logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		registry:   registry,
		logger:     logger,
		sendBuffer: 16,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Registry exposes the hub's session registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Broadcast queues the event on every session the targets resolve to,
// once per session. Returns how many sessions accepted the event.
func (h *Hub) Broadcast(targets Targets, event Event) int {
	if targets.Empty() {
		return 0
	}
	delivered := 0
	for _, session := range h.registry.Collect(targets) {
		if session.TrySend(event) {
			delivered++
			h.record("delivered")
			continue
		}
		h.record("dropped")
		h.logger.Debug("live event dropped",
			zap.String("event", event.Event),
			zap.String("user_id", session.Actor.ID))
	}
	return delivered
}

// Handler returns the websocket endpoint. Authentication runs before
// the upgrade; an unauthenticated request is refused with 401 and never
// becomes a connection.
func (h *Hub) Handler(authenticate Authenticator) http.Handler {
	wsHandler := websocket.Handler(h.serve)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		actor, err := authenticate(r)
		if err != nil || actor.ID == "" {
			h.logger.Debug("websocket unauthorized", zap.Error(err))
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		r = r.WithContext(withActor(r.Context(), actor))
		wsHandler.ServeHTTP(w, r)
	})
}

func (h *Hub) serve(conn *websocket.Conn) {
	defer conn.Close()

	actor, ok := actorFromContext(conn.Request().Context())
	if !ok {
		return
	}

	session := NewSession(actor, h.sendBuffer)
	h.registry.Add(session)
	h.gauge()
	defer func() {
		session.Close()
		h.registry.Remove(session)
		h.gauge()
	}()

	// The feed is push only. The read loop exists to notice the peer
	// going away.
	go func() {
		defer session.Close()
		for {
			var discard string
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				if err != io.EOF {
					h.logger.Debug("websocket read ended", zap.Error(err))
				}
				return
			}
		}
	}()

	for {
		select {
		case <-session.Done():
			return
		case event := <-session.Outbound():
			if err := websocket.JSON.Send(conn, event); err != nil {
				h.logger.Debug("websocket write failed",
					zap.String("user_id", actor.ID), zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) record(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveDelivery(outcome)
	}
}

func (h *Hub) gauge() {
	if h.metrics != nil {
		h.metrics.SetLiveSessions(h.registry.Count())
	}
}
