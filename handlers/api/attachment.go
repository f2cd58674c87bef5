package api

import (
	"errors"
	"fmt"
	"io"
	"time"

	"dashmail/composer"
	"dashmail/models"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// AttachmentHandler handles staged-attachment uploads and downloads plus
// the read-side proxy for stored attachment descriptors
type AttachmentHandler struct {
	manager *composer.SessionManager
	cache   *utils.MemoryCache
}

// NewAttachmentHandler creates a new attachment handler
func NewAttachmentHandler(manager *composer.SessionManager, cache *utils.MemoryCache) *AttachmentHandler {
	return &AttachmentHandler{
		manager: manager,
		cache:   cache,
	}
}

func (h *AttachmentHandler) getSession(c *fiber.Ctx) (*composer.Session, error) {
	session, ok := h.manager.Get(c.Params("session_id"), CurrentUserID(c))
	if !ok {
		return nil, utils.NotFoundError(Localize(c, "error_session_not_found"), nil)
	}
	return session, nil
}

// HandleUpload stages one or more uploaded files on the session. Files at
// or over the size cap are rejected and never staged.
func (h *AttachmentHandler) HandleUpload(c *fiber.Ctx) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return utils.BadRequestError("Multipart form is required", err)
	}
	files := form.File["attachments"]
	if len(files) == 0 {
		return utils.BadRequestError("No files provided", nil)
	}

	var staged []models.Attachment
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			return utils.BadRequestError(fmt.Sprintf("Failed to open %s", header.Filename), err)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return utils.BadRequestError(fmt.Sprintf("Failed to read %s", header.Filename), err)
		}

		att, err := session.AddAttachment(header.Filename, header.Header.Get("Content-Type"), data)
		if err != nil {
			var verr *composer.ValidationError
			if errors.As(err, &verr) {
				return utils.PayloadTooLargeError(Localize(c, "error_attachment_too_large"), err).
					WithContext("filename", header.Filename)
			}
			return sessionError(c, err)
		}
		staged = append(staged, att)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"attachments": staged,
	})
}

// HandleRemove removes a staged attachment and releases its preview
// resource. Removing an unknown id is a no-op.
func (h *AttachmentHandler) HandleRemove(c *fiber.Ctx) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}
	if err := session.RemoveAttachment(c.Params("attachment_id")); err != nil {
		return sessionError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleDownload serves a staged attachment for download
func (h *AttachmentHandler) HandleDownload(c *fiber.Ctx) error {
	return h.serveStaged(c, "attachment")
}

// HandlePreview serves a staged attachment for inline display
func (h *AttachmentHandler) HandlePreview(c *fiber.Ctx) error {
	return h.serveStaged(c, "inline")
}

func (h *AttachmentHandler) serveStaged(c *fiber.Ctx, disposition string) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}

	attachmentID := c.Params("attachment_id")
	var meta *models.Attachment
	for _, att := range session.Draft().Attachments {
		if att.ID == attachmentID {
			a := att
			meta = &a
			break
		}
	}
	if meta == nil {
		return utils.NotFoundError(Localize(c, "error_attachment_not_found"), nil)
	}

	data, err := session.AttachmentData(attachmentID)
	if err != nil {
		return utils.NotFoundError(Localize(c, "error_attachment_not_found"), err)
	}

	c.Set("Content-Type", meta.ContentType)
	c.Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, meta.Filename))
	c.Set("Content-Length", fmt.Sprintf("%d", len(data)))
	return c.Send(data)
}

// HandleProxyDownload fetches a stored attachment descriptor's binary and
// streams it as a download. Failures surface to the user; there is no
// automatic retry.
func (h *AttachmentHandler) HandleProxyDownload(c *fiber.Ctx) error {
	var req models.RemoteAttachment
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}
	if req.URL == "" || req.Name == "" {
		return utils.BadRequestError("Attachment name and url are required", nil)
	}

	data, ok := h.cache.GetBytes("proxy:" + req.URL)
	if !ok {
		status, body, err := fasthttp.GetTimeout(nil, req.URL, 15*time.Second)
		if err != nil {
			return utils.BadGatewayError(Localize(c, "error_attachment_fetch"), err)
		}
		if status != fasthttp.StatusOK {
			return utils.BadGatewayError(Localize(c, "error_attachment_fetch"), fmt.Errorf("upstream status %d", status))
		}
		data = body
		h.cache.Set("proxy:"+req.URL, data, 5*time.Minute)
	}

	c.Set("Content-Type", composer.DetectContentType(req.Name))
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", req.Name))
	c.Set("Content-Length", fmt.Sprintf("%d", len(data)))
	return c.Send(data)
}
