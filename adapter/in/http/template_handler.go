package http

import (
	"github.com/gofiber/fiber/v2"

	"draft_server/core/domain"
)

// TemplateHandler exposes dashboard CRUD for reply templates.
type TemplateHandler struct {
	templates domain.TemplateRepository
}

func NewTemplateHandler(templates domain.TemplateRepository) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

func (h *TemplateHandler) Register(router fiber.Router) {
	templates := router.Group("/templates")
	templates.Get("/", h.List)
	templates.Post("/", h.Create)
	templates.Get("/:id", h.Get)
	templates.Put("/:id", h.Update)
	templates.Delete("/:id", h.Delete)
}

type templateRequest struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Triggers string `json:"triggers"`
	Body     string `json:"body"`
	IsActive bool   `json:"is_active"`
}

func (h *TemplateHandler) List(c *fiber.Ctx) error {
	clientID, err := parseUUID(c.Query("client_id"))
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "client_id is required")
	}

	var (
		templates []*domain.ReplyTemplate
		listErr   error
	)
	if c.QueryBool("active", false) {
		templates, listErr = h.templates.ListActiveByClient(clientID)
	} else {
		templates, listErr = h.templates.ListByClient(clientID)
	}
	if listErr != nil {
		return InternalErrorResponse(c, listErr, "list templates")
	}
	return SuccessResponse(c, fiber.Map{"templates": templates, "total": len(templates)})
}

func (h *TemplateHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid template id")
	}

	tpl, err := h.templates.GetByID(id)
	if err != nil {
		return InternalErrorResponse(c, err, "get template")
	}
	if tpl == nil {
		return ErrorResponse(c, fiber.StatusNotFound, "template not found")
	}
	return SuccessResponse(c, tpl)
}

func (h *TemplateHandler) Create(c *fiber.Ctx) error {
	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}
	clientID, err := parseUUID(req.ClientID)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid client_id")
	}
	if req.Name == "" || req.Body == "" {
		return ErrorResponse(c, fiber.StatusBadRequest, "name and body are required")
	}

	tpl := &domain.ReplyTemplate{
		ClientID: clientID,
		Name:     req.Name,
		Category: domain.TemplateCategory(req.Category),
		Triggers: req.Triggers,
		Body:     req.Body,
		IsActive: req.IsActive,
	}
	if err := h.templates.Create(tpl); err != nil {
		return InternalErrorResponse(c, err, "create template")
	}
	return c.Status(fiber.StatusCreated).JSON(tpl)
}

func (h *TemplateHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid template id")
	}

	tpl, err := h.templates.GetByID(id)
	if err != nil {
		return InternalErrorResponse(c, err, "get template")
	}
	if tpl == nil {
		return ErrorResponse(c, fiber.StatusNotFound, "template not found")
	}

	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}
	tpl.Name = req.Name
	tpl.Category = domain.TemplateCategory(req.Category)
	tpl.Triggers = req.Triggers
	tpl.Body = req.Body
	tpl.IsActive = req.IsActive

	if err := h.templates.Update(tpl); err != nil {
		return InternalErrorResponse(c, err, "update template")
	}
	return SuccessResponse(c, tpl)
}

func (h *TemplateHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid template id")
	}

	if err := h.templates.Delete(id); err != nil {
		return InternalErrorResponse(c, err, "delete template")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
