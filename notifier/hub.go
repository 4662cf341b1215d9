package notifier

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultQueueSize is the number of messages buffered per subscriber before it is dropped.
const DefaultQueueSize = 64

// Hub tracks open sessions, each owned by one client, and publishes messages to the
// sessions of the owning client. Every session has its own queue and writer goroutine,
// so publishing never waits on a subscriber.
type Hub struct {
	sender    *Sender
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
	queueSize int

	lock        sync.RWMutex
	subscribers map[string]*subscriber
}

type subscriber struct {
	session Session
	owner   string
	queue   chan []byte
	stop    chan struct{}
	once    sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.stop) })
}

type HubOption func(*Hub)

// WithCheckOrigin overrides the same-origin check applied during the upgrade.
func WithCheckOrigin(check func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = check
	}
}

func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

func NewHub(logger zerolog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		sender:      NewSender(logger),
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		logger:      logger,
		queueSize:   DefaultQueueSize,
		subscribers: make(map[string]*subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register starts delivering messages published for owner to s. Registering an id
// again replaces the earlier session.
func (h *Hub) Register(s Session, owner string) {
	sub := &subscriber{
		session: s,
		owner:   owner,
		queue:   make(chan []byte, h.queueSize),
		stop:    make(chan struct{}),
	}
	h.lock.Lock()
	previous := h.subscribers[s.ID()]
	h.subscribers[s.ID()] = sub
	h.lock.Unlock()

	if previous != nil {
		previous.close()
	}
	go h.deliver(sub)
}

func (h *Hub) Unregister(id string) {
	h.lock.Lock()
	sub, ok := h.subscribers[id]
	delete(h.subscribers, id)
	h.lock.Unlock()
	if ok {
		sub.close()
	}
}

func (h *Hub) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.subscribers)
}

// Publish queues v for every session of owner and returns how many sessions it was
// queued for. A session whose queue is full is dropped.
func (h *Hub) Publish(owner string, v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("[publish] marshal failed")
		return 0
	}

	h.lock.RLock()
	var targets []*subscriber
	for _, sub := range h.subscribers {
		if sub.owner == owner {
			targets = append(targets, sub)
		}
	}
	h.lock.RUnlock()

	queued := 0
	for _, sub := range targets {
		select {
		case sub.queue <- data:
			queued++
		default:
			h.logger.Warn().Str("session", sub.session.ID()).Str("owner", owner).Msg("subscriber too slow, dropping session")
			h.remove(sub)
		}
	}
	return queued
}

// remove unregisters sub unless it was already replaced.
func (h *Hub) remove(sub *subscriber) {
	h.lock.Lock()
	if current, ok := h.subscribers[sub.session.ID()]; ok && current == sub {
		delete(h.subscribers, sub.session.ID())
	}
	h.lock.Unlock()
	sub.close()
}

func (h *Hub) deliver(sub *subscriber) {
	defer closeSession(sub.session)
	for {
		select {
		case <-sub.stop:
			return
		case data := <-sub.queue:
			if !h.sender.Send(sub.session, string(data)) {
				h.remove(sub)
				return
			}
		}
	}
}

func closeSession(s Session) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

// Subscribe upgrades the request and keeps the session registered for owner until the
// peer goes away. Subscribers only receive; inbound frames are discarded.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, owner string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	session := NewConnSession(conn)
	h.Register(session, owner)
	h.logger.Debug().Str("session", session.ID()).Str("owner", owner).Msg("subscriber connected")

	defer func() {
		h.Unregister(session.ID())
		_ = session.Close()
		h.logger.Debug().Str("session", session.ID()).Msg("subscriber disconnected")
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
