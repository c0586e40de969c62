package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dm-chat-service/internal/journal"
	"dm-chat-service/internal/models"
	"dm-chat-service/internal/presence"
	"dm-chat-service/internal/store"
	"dm-chat-service/pkg/apperr"
	"dm-chat-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// StatusFeed streams presence transitions published by other instances.
type StatusFeed interface {
	Subscribe(ctx context.Context) <-chan *models.StatusUpdate
}

// HubOptions carries the collaborators a hub needs. Journal and Feed may be
// nil; a nil journal is replaced with a no-op.
type HubOptions struct {
	Registry   *presence.Registry
	Store      store.Store
	Journal    journal.Journal
	Feed       StatusFeed
	RateLimit  int
	RateWindow time.Duration
	Logger     *logger.Logger

	// AllowedOrigins is the handshake origin allow-list; localhost is always
	// accepted for development.
	AllowedOrigins []string

	// InstanceID ties the hub to the status mirror publishing on its behalf.
	// Defaults to a fresh uuid.
	InstanceID string
}

// Hub owns the connection tables and routes events between clients. The
// tables and the presence registry are the only mutable shared state in the
// realtime core; everything routed through them is immutable once built.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool

	registry *presence.Registry
	pipeline *Pipeline
	store    store.Store
	journal  journal.Journal
	feed     StatusFeed

	// instanceID marks status updates this hub published so they are not
	// replayed to local clients when they echo back off the feed.
	instanceID string

	rateLimit  int
	rateWindow time.Duration
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Logger
}

func NewHub(opts HubOptions) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.InstanceID == "" {
		opts.InstanceID = uuid.New().String()
	}

	h := &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		registry:    opts.Registry,
		store:       opts.Store,
		journal:     opts.Journal,
		feed:        opts.Feed,
		instanceID:  opts.InstanceID,
		rateLimit:   opts.RateLimit,
		rateWindow:  opts.RateWindow,
		upgrader:    newUpgrader(opts.AllowedOrigins),
		ctx:         ctx,
		cancel:      cancel,
		log:         opts.Logger,
	}
	h.pipeline = NewPipeline(opts.Store, opts.Registry, opts.Journal, opts.Logger)
	return h
}

// InstanceID identifies this hub on the cross-instance status channel.
func (h *Hub) InstanceID() string { return h.instanceID }

// Run forwards remote presence transitions to local clients until Stop is
// called. Local transitions are broadcast directly at register/deregister
// time, so updates originating here are skipped.
func (h *Hub) Run() {
	if h.feed == nil {
		<-h.ctx.Done()
		return
	}

	updates := h.feed.Subscribe(h.ctx)
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Origin == h.instanceID {
				continue
			}
			ev, err := NewEvent(EventUserStatusChanged, &StatusChangedPayload{
				UserID: update.UserID,
				Status: string(update.Status),
			})
			if err != nil {
				continue
			}
			h.broadcastExceptUser(update.UserID, ev)

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// registerClient admits an authenticated client: it joins the user's identity
// channel and, on the user's offline -> online transition, broadcasts the
// online status to everyone else.
func (h *Hub) registerClient(c *Client) {
	userID := c.UserID()

	h.mu.Lock()
	h.clients[c] = true
	if h.userClients[userID] == nil {
		h.userClients[userID] = make(map[*Client]bool)
	}
	h.userClients[userID][c] = true
	h.mu.Unlock()

	h.log.Info("client registered", "clientID", c.id, "userID", userID)

	if first := h.registry.Register(h.ctx, c.id, userID); first {
		h.broadcastStatus(userID, models.UserOnline)
	}
}

// unregisterClient removes a client. Safe to call from multiple close paths;
// only the first call for a still-registered client has effect. When the last
// connection for the user is gone, the offline status is broadcast exactly
// once.
func (h *Hub) unregisterClient(c *Client) {
	userID := c.UserID()

	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	if set := h.userClients[userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.userClients, userID)
		}
	}
	h.mu.Unlock()

	c.close()

	h.log.Info("client unregistered", "clientID", c.id, "userID", userID)

	if last := h.registry.Deregister(h.ctx, c.id, userID); last {
		h.broadcastStatus(userID, models.UserOffline)
	}
}

func (h *Hub) broadcastStatus(userID string, status models.UserStatus) {
	ev, err := NewEvent(EventUserStatusChanged, &StatusChangedPayload{
		UserID: userID,
		Status: string(status),
	})
	if err != nil {
		return
	}
	h.broadcastExceptUser(userID, ev)
}

// sendToUser delivers ev to every live connection on the user's identity
// channel. Delivery is attempted for all targets; one failed target never
// aborts the others. Offline users are silently skipped.
func (h *Hub) sendToUser(userID string, ev *Event) {
	for _, c := range h.userConnections(userID) {
		if err := c.SendEvent(ev); err != nil {
			h.log.Debug("failed to deliver event",
				"type", string(ev.Type), "clientID", c.id, "userID", userID, "error", err)
		}
	}
}

// broadcastExceptUser delivers ev to every connection not belonging to userID.
func (h *Hub) broadcastExceptUser(userID string, ev *Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.UserID() != userID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.SendEvent(ev); err != nil {
			h.log.Debug("failed to deliver broadcast",
				"type", string(ev.Type), "clientID", c.id, "error", err)
		}
	}
}

// broadcastExceptClient delivers ev to every connection other than c.
func (h *Hub) broadcastExceptClient(except *Client, ev *Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.SendEvent(ev); err != nil {
			h.log.Debug("failed to deliver broadcast",
				"type", string(ev.Type), "clientID", c.id, "error", err)
		}
	}
}

func (h *Hub) userConnections(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.userClients[userID]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	return targets
}

// dispatch routes one inbound event to its handler. A handler failure is
// reported to the originating connection only and never crashes the pump or
// touches other connections.
func (h *Hub) dispatch(c *Client, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("panic in event handler",
				"clientID", c.id, "userID", c.UserID(), "panic", r)
			c.sendError(apperr.CodeInternal, "internal server error")
		}
	}()

	if !c.limiter.allow() {
		c.sendError(apperr.CodeRateLimited, "too many events, slow down")
		return
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.sendError(apperr.CodeInvalidData, "malformed event")
		return
	}

	switch ev.Type {
	case EventSendMessage:
		h.handleSendMessage(c, ev.Data)
	case EventEditMessage:
		h.handleEditMessage(c, ev.Data)
	case EventDeleteMessage:
		h.handleDeleteMessage(c, ev.Data)
	case EventMarkMessageRead:
		h.handleMarkRead(c, ev.Data)
	case EventUpdateStatus:
		h.handleUpdateStatus(c, ev.Data)
	case EventStartTyping:
		h.handleTyping(c, ev.Data, true)
	case EventStopTyping:
		h.handleTyping(c, ev.Data, false)
	default:
		c.sendError(apperr.CodeInvalidData, "unknown event type")
	}
}
