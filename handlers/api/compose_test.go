package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dashmail/composer"
	"dashmail/storage"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
)

// stubTransport records payloads handed to Send. entered and release,
// when set, let a test hold a submit open at a known point.
type stubTransport struct {
	mu      sync.Mutex
	calls   []*composer.Payload
	err     error
	entered chan struct{}
	release chan struct{}
}

func (t *stubTransport) Send(p *composer.Payload) error {
	if t.entered != nil {
		t.entered <- struct{}{}
	}
	if t.release != nil {
		<-t.release
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.calls = append(t.calls, p)
	return nil
}

func (t *stubTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

const testUploadCap = 2048

// newTestApp wires the composer routes the way main does, with a stub
// transport and a bcrypt-free identity middleware.
func newTestApp(t *testing.T) (*fiber.App, *stubTransport, *NotificationHandler) {
	t.Helper()

	blobs, err := storage.NewFileBlobStore(t.TempDir(), "/api/attachments")
	if err != nil {
		t.Fatalf("NewFileBlobStore failed: %v", err)
	}
	outbox, err := storage.OpenOutbox(t.TempDir())
	if err != nil {
		t.Fatalf("OpenOutbox failed: %v", err)
	}
	t.Cleanup(func() { outbox.Close() })

	manager := composer.NewSessionManager(blobs, testUploadCap, 0, time.Hour)
	t.Cleanup(manager.Shutdown)

	transport := &stubTransport{}
	notifications := NewNotificationHandler()
	templates := composer.NewDefaultStore()
	compose := NewComposeHandler(manager, templates)
	schedule := NewScheduleHandler(manager)
	attachments := NewAttachmentHandler(manager, utils.NewMemoryCache(t.TempDir()))
	submit := NewSubmitHandler(manager, outbox, transport, notifications)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userId", "alice")
		c.Locals("username", "alice")
		return c.Next()
	})

	app.Post("/api/compose", compose.HandleOpen)
	app.Get("/api/compose/:session_id", compose.HandleState)
	app.Delete("/api/compose/:session_id", compose.HandleClose)
	app.Post("/api/compose/:session_id/template", compose.HandleSelectTemplate)
	app.Post("/api/compose/:session_id/field", compose.HandleField)
	app.Patch("/api/compose/:session_id", compose.HandleUpdate)
	app.Post("/api/compose/:session_id/schedule/preview", schedule.HandlePreview)
	app.Post("/api/compose/:session_id/schedule", schedule.HandleConfirm)
	app.Post("/api/compose/:session_id/attachments", attachments.HandleUpload)
	app.Delete("/api/compose/:session_id/attachments/:attachment_id", attachments.HandleRemove)
	app.Post("/api/compose/:session_id/submit", submit.HandleSubmit)

	return app, transport, notifications
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any) (int, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp.StatusCode, out
}

func openSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := doJSON(t, app, "POST", "/api/compose", nil)
	if status != http.StatusOK {
		t.Fatalf("Open returned %d: %v", status, body)
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatal("Open returned no session id")
	}
	return id
}

func TestComposeFlow(t *testing.T) {
	app, transport, _ := newTestApp(t)
	id := openSession(t, app)

	t.Run("select template", func(t *testing.T) {
		status, body := doJSON(t, app, "POST", "/api/compose/"+id+"/template", map[string]string{"key": "meetingSchedule"})
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		subject, _ := body["subject"].(string)
		if !strings.Contains(subject, "{{meeting_title}}") {
			t.Errorf("Expected placeholder in subject, got %q", subject)
		}
	})

	t.Run("unknown template is 404", func(t *testing.T) {
		status, _ := doJSON(t, app, "POST", "/api/compose/"+id+"/template", map[string]string{"key": "bogus"})
		if status != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", status)
		}
	})

	t.Run("field edit re-renders", func(t *testing.T) {
		status, body := doJSON(t, app, "POST", "/api/compose/"+id+"/field", map[string]any{
			"name": "meeting_title", "value": "Sync", "revision": 1,
		})
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		if applied, _ := body["applied"].(bool); !applied {
			t.Error("Expected edit to apply")
		}
		if subject, _ := body["subject"].(string); subject != "Meeting Scheduled: Sync" {
			t.Errorf("Expected rendered subject, got %q", subject)
		}
	})

	t.Run("stale field edit is reported unapplied", func(t *testing.T) {
		doJSON(t, app, "POST", "/api/compose/"+id+"/field", map[string]any{
			"name": "meeting_title", "value": "Newer", "revision": 5,
		})
		status, body := doJSON(t, app, "POST", "/api/compose/"+id+"/field", map[string]any{
			"name": "meeting_title", "value": "Older", "revision": 3,
		})
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		if applied, _ := body["applied"].(bool); applied {
			t.Error("Expected stale edit to be discarded")
		}
	})

	t.Run("submit without recipient is 422", func(t *testing.T) {
		status, body := doJSON(t, app, "POST", "/api/compose/"+id+"/submit", nil)
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("Expected 422, got %d: %v", status, body)
		}
		if _, ok := body["fields"]; !ok {
			t.Error("Expected field-level errors in response")
		}
		if transport.callCount() != 0 {
			t.Errorf("Validation failure must not reach the transport, got %d calls", transport.callCount())
		}
	})

	t.Run("submit valid draft", func(t *testing.T) {
		status, body := doJSON(t, app, "PATCH", "/api/compose/"+id, map[string]any{
			"recipient": "asha@example.com",
		})
		if status != http.StatusOK {
			t.Fatalf("Patch returned %d: %v", status, body)
		}

		status, body = doJSON(t, app, "POST", "/api/compose/"+id+"/submit", nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		if outcome, _ := body["outcome"].(string); outcome != "sent" {
			t.Errorf("Expected outcome sent, got %q", outcome)
		}
		if state, _ := body["state"].(string); state != "empty" {
			t.Errorf("Expected empty state after send, got %q", state)
		}
		if transport.callCount() != 1 {
			t.Errorf("Expected 1 transport call, got %d", transport.callCount())
		}
	})

	t.Run("close forgets the session", func(t *testing.T) {
		status, _ := doJSON(t, app, "DELETE", "/api/compose/"+id, nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d", status)
		}
		status, _ = doJSON(t, app, "GET", "/api/compose/"+id, nil)
		if status != http.StatusNotFound {
			t.Errorf("Expected 404 after close, got %d", status)
		}
	})
}

func TestSubmitTransportFailure(t *testing.T) {
	app, transport, _ := newTestApp(t)
	transport.err = errors.New("connection refused")
	id := openSession(t, app)

	doJSON(t, app, "PATCH", "/api/compose/"+id, map[string]any{
		"recipient": "asha@example.com", "subject": "Hello", "body": "Body",
	})

	status, body := doJSON(t, app, "POST", "/api/compose/"+id+"/submit", nil)
	if status != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d: %v", status, body)
	}
	if retry, _ := body["retry"].(bool); !retry {
		t.Error("Expected retry flag in failure response")
	}

	// The draft survives for retry.
	status, body = doJSON(t, app, "GET", "/api/compose/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	draft, _ := body["draft"].(map[string]any)
	if recipient, _ := draft["recipient"].(string); recipient != "asha@example.com" {
		t.Errorf("Expected preserved recipient, got %q", recipient)
	}

	transport.err = nil
	status, _ = doJSON(t, app, "POST", "/api/compose/"+id+"/submit", nil)
	if status != http.StatusOK {
		t.Errorf("Expected retry to succeed, got %d", status)
	}
}

func TestSubmitAfterCloseIsSilent(t *testing.T) {
	app, transport, notifications := newTestApp(t)
	transport.entered = make(chan struct{})
	transport.release = make(chan struct{})
	_, events := notifications.subscribe()

	id := openSession(t, app)
	doJSON(t, app, "PATCH", "/api/compose/"+id, map[string]any{
		"recipient": "asha@example.com", "subject": "Hello", "body": "Body",
	})

	type result struct {
		status  int
		outcome string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		req := httptest.NewRequest("POST", "/api/compose/"+id+"/submit", nil)
		resp, err := app.Test(req, -1)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer resp.Body.Close()
		var out map[string]any
		json.NewDecoder(resp.Body).Decode(&out)
		outcome, _ := out["outcome"].(string)
		done <- result{status: resp.StatusCode, outcome: outcome}
	}()
	<-transport.entered

	// Close the session while the transport call is still running.
	if status, body := doJSON(t, app, "DELETE", "/api/compose/"+id, nil); status != http.StatusOK {
		t.Fatalf("Close returned %d: %v", status, body)
	}
	close(transport.release)

	res := <-done
	if res.err != nil {
		t.Fatalf("Submit request failed: %v", res.err)
	}
	if res.status != http.StatusOK {
		t.Errorf("Expected 200, got %d", res.status)
	}
	if res.outcome != composer.OutcomeDiscarded {
		t.Errorf("Expected discarded outcome, got %q", res.outcome)
	}

	// The completion belongs to a session the user walked away from;
	// nothing is broadcast for it.
	select {
	case n := <-events:
		t.Errorf("Expected no notification after close, got %s", n.Type)
	default:
	}
}

func TestScheduleEndpoints(t *testing.T) {
	app, transport, _ := newTestApp(t)
	id := openSession(t, app)

	t.Run("preview reports the UTC instant", func(t *testing.T) {
		status, body := doJSON(t, app, "POST", "/api/compose/"+id+"/schedule/preview", map[string]any{
			"date": "2024-05-01", "time": "09:00", "offset_minutes": -330,
		})
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		if at, _ := body["utc_instant"].(string); at != "2024-05-01T03:30:00Z" {
			t.Errorf("Expected 2024-05-01T03:30:00Z, got %q", at)
		}
	})

	t.Run("malformed selection is 400", func(t *testing.T) {
		status, _ := doJSON(t, app, "POST", "/api/compose/"+id+"/schedule/preview", map[string]any{
			"date": "bogus", "time": "09:00", "offset_minutes": 0,
		})
		if status != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", status)
		}
	})

	t.Run("confirmed schedule queues the submit", func(t *testing.T) {
		doJSON(t, app, "PATCH", "/api/compose/"+id, map[string]any{
			"recipient": "asha@example.com", "subject": "Hello", "body": "Body",
		})
		status, _ := doJSON(t, app, "POST", "/api/compose/"+id+"/schedule", map[string]any{
			"date": "2030-05-01", "time": "09:00", "offset_minutes": 0,
		})
		if status != http.StatusOK {
			t.Fatalf("Confirm returned %d", status)
		}

		status, body := doJSON(t, app, "POST", "/api/compose/"+id+"/submit", nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		if outcome, _ := body["outcome"].(string); outcome != "scheduled" {
			t.Errorf("Expected outcome scheduled, got %q", outcome)
		}
		if transport.callCount() != 0 {
			t.Errorf("Scheduled submit must not hit the direct transport, got %d calls", transport.callCount())
		}
	})
}

func TestAttachmentEndpoints(t *testing.T) {
	app, _, _ := newTestApp(t)
	id := openSession(t, app)

	upload := func(t *testing.T, filename string, size int) (int, map[string]any) {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("attachments", filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := part.Write(bytes.Repeat([]byte("x"), size)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		mw.Close()

		req := httptest.NewRequest("POST", "/api/compose/"+id+"/attachments", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
		defer resp.Body.Close()
		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return resp.StatusCode, out
	}

	t.Run("upload under the cap", func(t *testing.T) {
		status, body := upload(t, "small.txt", testUploadCap-1)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		atts, _ := body["attachments"].([]any)
		if len(atts) != 1 {
			t.Fatalf("Expected 1 staged attachment, got %d", len(atts))
		}
		att, _ := atts[0].(map[string]any)
		if url, _ := att["preview_url"].(string); url == "" {
			t.Error("Expected a preview URL")
		}
	})

	t.Run("upload at the cap is 413", func(t *testing.T) {
		status, _ := upload(t, "big.bin", testUploadCap)
		if status != http.StatusRequestEntityTooLarge {
			t.Errorf("Expected 413, got %d", status)
		}
	})

	t.Run("remove staged attachment", func(t *testing.T) {
		status, body := doJSON(t, app, "GET", "/api/compose/"+id, nil)
		if status != http.StatusOK {
			t.Fatalf("State returned %d", status)
		}
		draft, _ := body["draft"].(map[string]any)
		atts, _ := draft["attachments"].([]any)
		if len(atts) != 1 {
			t.Fatalf("Expected 1 attachment on draft, got %d", len(atts))
		}
		att, _ := atts[0].(map[string]any)
		attID, _ := att["id"].(string)

		status, _ = doJSON(t, app, "DELETE", fmt.Sprintf("/api/compose/%s/attachments/%s", id, attID), nil)
		if status != http.StatusOK {
			t.Errorf("Expected 200, got %d", status)
		}
	})
}
