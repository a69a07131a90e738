package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"draft_server/core/domain"
)

// SubscriptionDisconnector tears down a client's mailbox subscription
// when the client is deactivated.
type SubscriptionDisconnector interface {
	Disconnect(ctx context.Context, clientID uuid.UUID) error
}

// ClientHandler exposes dashboard CRUD for clients.
type ClientHandler struct {
	clients       domain.ClientRepository
	subscriptions SubscriptionDisconnector
}

func NewClientHandler(clients domain.ClientRepository, subscriptions SubscriptionDisconnector) *ClientHandler {
	return &ClientHandler{clients: clients, subscriptions: subscriptions}
}

func (h *ClientHandler) Register(router fiber.Router) {
	clients := router.Group("/clients")
	clients.Get("/", h.List)
	clients.Post("/", h.Create)
	clients.Get("/:id", h.Get)
	clients.Put("/:id", h.Update)
	clients.Delete("/:id", h.Deactivate)
}

type clientRequest struct {
	Email           string `json:"email"`
	Company         string `json:"company"`
	TenantID        string `json:"tenant_id"`
	AIEnabled       bool   `json:"ai_enabled"`
	ResponseStyle   string `json:"response_style"`
	ResponseLength  string `json:"response_length"`
	ResponseTone    string `json:"response_tone"`
	AutoRespond     bool   `json:"auto_respond"`
	RequireApproval bool   `json:"require_approval"`
	BusinessContext string `json:"business_context"`

	BusinessHoursEnabled  bool   `json:"business_hours_enabled"`
	BusinessHoursStart    string `json:"business_hours_start"`
	BusinessHoursEnd      string `json:"business_hours_end"`
	BusinessHoursTimezone string `json:"business_hours_timezone"`
}

func (r *clientRequest) apply(c *domain.Client) {
	c.Email = r.Email
	c.Company = r.Company
	c.TenantID = r.TenantID
	c.AIEnabled = r.AIEnabled
	c.Style = domain.ParseStyle(r.ResponseStyle)
	c.Length = domain.ParseLength(r.ResponseLength)
	c.Tone = r.ResponseTone
	c.AutoRespond = r.AutoRespond
	c.RequireApproval = r.RequireApproval
	c.BusinessContext = r.BusinessContext
	c.BusinessHours = domain.BusinessHours{
		Enabled:  r.BusinessHoursEnabled,
		Start:    r.BusinessHoursStart,
		End:      r.BusinessHoursEnd,
		Timezone: r.BusinessHoursTimezone,
	}
}

func (h *ClientHandler) List(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)

	clients, err := h.clients.List(activeOnly)
	if err != nil {
		return InternalErrorResponse(c, err, "list clients")
	}
	return SuccessResponse(c, fiber.Map{"clients": clients, "total": len(clients)})
}

func (h *ClientHandler) Get(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid client id")
	}

	client, err := h.clients.GetByID(id)
	if err != nil {
		return InternalErrorResponse(c, err, "get client")
	}
	if client == nil {
		return ErrorResponse(c, fiber.StatusNotFound, "client not found")
	}
	return SuccessResponse(c, client)
}

func (h *ClientHandler) Create(c *fiber.Ctx) error {
	var req clientRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" {
		return ErrorResponse(c, fiber.StatusBadRequest, "email is required")
	}

	client := &domain.Client{IsActive: true}
	req.apply(client)

	if err := h.clients.Create(client); err != nil {
		return InternalErrorResponse(c, err, "create client")
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

func (h *ClientHandler) Update(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid client id")
	}

	client, err := h.clients.GetByID(id)
	if err != nil {
		return InternalErrorResponse(c, err, "get client")
	}
	if client == nil {
		return ErrorResponse(c, fiber.StatusNotFound, "client not found")
	}

	var req clientRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.apply(client)

	if err := h.clients.Update(client); err != nil {
		return InternalErrorResponse(c, err, "update client")
	}
	return SuccessResponse(c, client)
}

// Deactivate soft-deletes the client and tears down its webhook
// subscription so notifications stop arriving for a disabled mailbox.
func (h *ClientHandler) Deactivate(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid client id")
	}

	if err := h.subscriptions.Disconnect(c.Context(), id); err != nil {
		return InternalErrorResponse(c, err, "disconnect subscription")
	}
	if err := h.clients.Deactivate(id); err != nil {
		return InternalErrorResponse(c, err, "deactivate client")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
