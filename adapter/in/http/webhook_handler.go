package http

import (
	"github.com/gofiber/fiber/v2"

	"draft_server/core/service/intake"
	"draft_server/pkg/logger"
)

// WebhookHandler receives Microsoft Graph change notifications. The
// provider expects a fast 202; all real work runs on the worker pool.
type WebhookHandler struct {
	intake *intake.Service
}

func NewWebhookHandler(intakeSvc *intake.Service) *WebhookHandler {
	return &WebhookHandler{intake: intakeSvc}
}

func (h *WebhookHandler) Register(app *fiber.App) {
	app.Post("/webhook/graph", h.GraphWebhook)
	app.Get("/webhook/graph", h.GraphValidation)
	app.Get("/webhook/metrics", h.GetMetrics)
}

// GraphWebhook accepts a notification batch. Always 202: surfacing an
// error would only make the provider hammer us with retries of the
// same bad payload.
func (h *WebhookHandler) GraphWebhook(c *fiber.Ctx) error {
	// Subscription handshakes can also arrive as POST with a
	// validationToken query parameter.
	if token := c.Query("validationToken"); token != "" {
		c.Set("Content-Type", "text/plain")
		return c.SendString(token)
	}

	var batch intake.NotificationBatch
	if err := c.BodyParser(&batch); err != nil {
		logger.WithError(err).Warn("[GraphWebhook] Failed to parse notification batch")
		return c.SendStatus(fiber.StatusAccepted)
	}

	queued := h.intake.HandleBatch(c.Context(), &batch)
	logger.Debug("[GraphWebhook] Batch handled: %d/%d queued", queued, len(batch.Value))

	return c.SendStatus(fiber.StatusAccepted)
}

// GraphValidation answers the subscription validation handshake: Graph
// requires the token echoed back as plain text.
func (h *WebhookHandler) GraphValidation(c *fiber.Ctx) error {
	token := c.Query("validationToken")
	if token != "" {
		c.Set("Content-Type", "text/plain")
		return c.SendString(token)
	}
	return c.SendStatus(fiber.StatusOK)
}

// GetMetrics exposes intake counters.
func (h *WebhookHandler) GetMetrics(c *fiber.Ctx) error {
	return c.JSON(h.intake.Metrics().Snapshot())
}
