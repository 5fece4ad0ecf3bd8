package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

// Message is the envelope written to websocket subscribers.
type Message struct {
	Type         string                `json:"type"`
	Progress     *models.ProgressEvent `json:"progress,omitempty"`
	Notification *models.Notification  `json:"notification,omitempty"`
}

const (
	MessageProgress     = "progress"
	MessageNotification = "notification"
)

// writeWait bounds a single write to a subscriber. A client that stops
// reading is dropped once it elapses.
const writeWait = 10 * time.Second

// subscriber guards its connection with its own lock since gorilla
// connections allow one concurrent writer.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub fans progress events and notifications out to websocket subscribers
// of a video.
type Hub struct {
	logger    *slog.Logger
	writeWait time.Duration

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}

	upgrader websocket.Upgrader
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:    logger,
		writeWait: writeWait,
		subs:      make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request, sends current as the first message and keeps
// the subscription until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, videoID string, current models.ProgressEvent) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := &subscriber{conn: conn}
	h.mu.Lock()
	if h.subs[videoID] == nil {
		h.subs[videoID] = make(map[*subscriber]struct{})
	}
	h.subs[videoID][sub] = struct{}{}
	h.mu.Unlock()

	if err := h.write(sub, Message{Type: MessageProgress, Progress: &current}); err != nil {
		h.remove(videoID, sub)
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(videoID, sub)
}

// PublishProgress implements the lifecycle progress sink.
func (h *Hub) PublishProgress(evt models.ProgressEvent) {
	h.broadcast(evt.ID, Message{Type: MessageProgress, Progress: &evt})
}

func (h *Hub) Notify(_ context.Context, n models.Notification) {
	if n.VideoID == "" {
		return
	}
	h.broadcast(n.VideoID, Message{Type: MessageNotification, Notification: &n})
}

func (h *Hub) broadcast(videoID string, msg Message) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subs[videoID]))
	for s := range h.subs[videoID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if err := h.write(s, msg); err != nil {
			h.logger.Debug("dropping websocket subscriber", "video_id", videoID, "error", err)
			h.remove(videoID, s)
		}
	}
}

func (h *Hub) write(s *subscriber, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

func (h *Hub) remove(videoID string, s *subscriber) {
	h.mu.Lock()
	delete(h.subs[videoID], s)
	if len(h.subs[videoID]) == 0 {
		delete(h.subs, videoID)
	}
	h.mu.Unlock()
	_ = s.conn.Close()
}
