package api

import (
	"bufio"
	"encoding/json"
	"sync"
	"time"

	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Notification is a transient, dismissible composer event pushed to the
// dashboard
type Notification struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"` // "message_sent", "message_failed", "message_scheduled"
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Time    time.Time              `json:"time"`
}

// NotificationHandler pushes composer events over SSE and WebSocket
type NotificationHandler struct {
	subscribers map[string]chan Notification
	mu          sync.RWMutex
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler() *NotificationHandler {
	return &NotificationHandler{
		subscribers: make(map[string]chan Notification),
	}
}

// subscribe registers a new notification channel and returns its id
func (h *NotificationHandler) subscribe() (string, chan Notification) {
	subscriberID := uuid.New().String()
	messageChan := make(chan Notification, 10)

	h.mu.Lock()
	h.subscribers[subscriberID] = messageChan
	h.mu.Unlock()

	return subscriberID, messageChan
}

// unsubscribe removes and closes a subscriber channel
func (h *NotificationHandler) unsubscribe(subscriberID string) {
	h.mu.Lock()
	if ch, ok := h.subscribers[subscriberID]; ok {
		delete(h.subscribers, subscriberID)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *NotificationHandler) subscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// HandleSSE streams notifications over Server-Sent Events
func (h *NotificationHandler) HandleSSE(c *fiber.Ctx) error {
	// Set headers for SSE
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	// The stream writer runs on the connection after this handler
	// returns and the fiber Ctx goes back to the pool, so everything
	// the closure needs is captured here. The subscription itself is
	// made inside the writer so the channel lives exactly as long as
	// the stream.
	ctx := c.Context()
	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		h.streamNotifications(w, ctx.Done())
	}))

	return nil
}

// streamNotifications is the SSE write loop. It returns when the request
// is done or the client stops reading, unregistering the subscriber on
// the way out.
func (h *NotificationHandler) streamNotifications(w *bufio.Writer, done <-chan struct{}) {
	subscriberID, messageChan := h.subscribe()
	defer h.unsubscribe(subscriberID)

	utils.Log.Info("SSE subscriber connected: %s", subscriberID)
	defer utils.Log.Info("SSE subscriber disconnected: %s", subscriberID)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case notification := <-messageChan:
			data, _ := json.Marshal(notification)
			if _, err := w.WriteString("data: " + string(data) + "\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}

		case <-ticker.C:
			// Keep-alive comment; a failed flush means the client is gone
			if _, err := w.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// HandleWebSocket streams notifications over a WebSocket connection
func (h *NotificationHandler) HandleWebSocket(c *websocket.Conn) {
	subscriberID, messageChan := h.subscribe()

	defer func() {
		h.unsubscribe(subscriberID)
		c.Close()
		utils.Log.Info("WebSocket subscriber disconnected: %s", subscriberID)
	}()

	utils.Log.Info("WebSocket subscriber connected: %s", subscriberID)

	for notification := range messageChan {
		if err := c.WriteJSON(notification); err != nil {
			utils.Log.Error("Failed to send WebSocket notification: %v", err)
			break
		}
	}
}

// BroadcastNotification sends a notification to all subscribers
func (h *NotificationHandler) BroadcastNotification(notification Notification) {
	notification.ID = uuid.New().String()
	notification.Time = time.Now()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for subscriberID, ch := range h.subscribers {
		select {
		case ch <- notification:
			// Sent successfully
		default:
			// Channel full, skip this subscriber
			utils.Log.Warn("Notification channel full for subscriber %s", subscriberID)
		}
	}
}

// NotifyMessageSent announces a successful immediate send
func (h *NotificationHandler) NotifyMessageSent(recipient string) {
	h.BroadcastNotification(Notification{
		Type:    "message_sent",
		Message: "Message sent",
		Data: map[string]interface{}{
			"recipient": recipient,
		},
	})
}

// NotifyMessageScheduled announces a queued deferred send
func (h *NotificationHandler) NotifyMessageScheduled(recipient string) {
	h.BroadcastNotification(Notification{
		Type:    "message_scheduled",
		Message: "Message scheduled",
		Data: map[string]interface{}{
			"recipient": recipient,
		},
	})
}

// NotifyMessageFailed announces a transport failure; the draft is kept
func (h *NotificationHandler) NotifyMessageFailed(recipient, reason string) {
	h.BroadcastNotification(Notification{
		Type:    "message_failed",
		Message: "Message could not be sent",
		Data: map[string]interface{}{
			"recipient": recipient,
			"reason":    reason,
		},
	})
}
