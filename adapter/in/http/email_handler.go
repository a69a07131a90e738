package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"draft_server/core/domain"
)

// EmailHandler exposes pipeline state for the dashboard: listing,
// status polling, the generated responses per email, and the user
// actions that close a draft out (sent / rejected).
type EmailHandler struct {
	emails    domain.EmailRepository
	responses domain.ResponseRepository
}

func NewEmailHandler(emails domain.EmailRepository, responses domain.ResponseRepository) *EmailHandler {
	return &EmailHandler{emails: emails, responses: responses}
}

func (h *EmailHandler) Register(router fiber.Router) {
	emails := router.Group("/emails")
	emails.Get("/", h.List)
	emails.Get("/:id", h.Get)
	emails.Get("/:id/responses", h.ListResponses)
	emails.Post("/:id/responses/:rid/sent", h.MarkResponseSent)
	emails.Post("/:id/responses/:rid/reject", h.RejectResponse)
}

func (h *EmailHandler) List(c *fiber.Ctx) error {
	params := GetPaginationParams(c, 50)

	filter := &domain.EmailFilter{
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	if raw := c.Query("client_id"); raw != "" {
		clientID, err := parseUUID(raw)
		if err != nil {
			return ErrorResponse(c, fiber.StatusBadRequest, "invalid client_id")
		}
		filter.ClientID = &clientID
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.EmailStatus(raw)
		filter.Status = &status
	}

	emails, total, err := h.emails.List(filter)
	if err != nil {
		return InternalErrorResponse(c, err, "list emails")
	}
	return c.JSON(NewListResponse(emails, total, params.Offset, params.Limit))
}

func (h *EmailHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid email id")
	}

	email, err := h.emails.GetByID(id)
	if err != nil {
		return InternalErrorResponse(c, err, "get email")
	}
	if email == nil {
		return ErrorResponse(c, fiber.StatusNotFound, "email not found")
	}
	return SuccessResponse(c, email)
}

func (h *EmailHandler) ListResponses(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "invalid email id")
	}

	responses, err := h.responses.ListByEmailID(id)
	if err != nil {
		return InternalErrorResponse(c, err, "list responses")
	}
	return SuccessResponse(c, fiber.Map{"responses": responses, "total": len(responses)})
}

// MarkResponseSent records that the user sent the draft from their
// mailbox: the email takes the draft_created -> sent edge and the
// response is stamped with the send time.
func (h *EmailHandler) MarkResponseSent(c *fiber.Ctx) error {
	emailID, resp, err := h.resolveResponse(c)
	if resp == nil {
		return err
	}

	email, err := h.emails.GetByID(emailID)
	if err != nil {
		return InternalErrorResponse(c, err, "get email")
	}
	if email == nil {
		return ErrorResponse(c, fiber.StatusNotFound, "email not found")
	}
	if email.Status != domain.StatusDraftCreated {
		return ErrorResponse(c, fiber.StatusConflict, "email is not awaiting send")
	}

	if err := h.emails.UpdateStatus(emailID, domain.StatusDraftCreated, domain.StatusSent); err != nil {
		// Lost a race with another caller taking the same edge.
		return ErrorResponse(c, fiber.StatusConflict, "email is not awaiting send")
	}
	if err := h.responses.MarkSent(resp.ID, time.Now()); err != nil {
		return InternalErrorResponse(c, err, "mark response sent")
	}
	return SuccessResponse(c, fiber.Map{"email_id": emailID, "response_id": resp.ID, "status": domain.ResponseSent})
}

// RejectResponse discards a draft the user declined to send. The email
// row keeps its status; only the response is marked.
func (h *EmailHandler) RejectResponse(c *fiber.Ctx) error {
	emailID, resp, err := h.resolveResponse(c)
	if resp == nil {
		return err
	}

	if err := h.responses.UpdateStatus(resp.ID, domain.ResponseRejected); err != nil {
		return InternalErrorResponse(c, err, "reject response")
	}
	return SuccessResponse(c, fiber.Map{"email_id": emailID, "response_id": resp.ID, "status": domain.ResponseRejected})
}

// resolveResponse parses the :id/:rid pair and loads the response,
// verifying it belongs to the email in the path. A nil response means
// the error reply has already been written; the caller returns err.
func (h *EmailHandler) resolveResponse(c *fiber.Ctx) (int64, *domain.AIResponse, error) {
	emailID, err := parseID(c.Params("id"))
	if err != nil {
		return 0, nil, ErrorResponse(c, fiber.StatusBadRequest, "invalid email id")
	}
	responseID, err := parseID(c.Params("rid"))
	if err != nil {
		return 0, nil, ErrorResponse(c, fiber.StatusBadRequest, "invalid response id")
	}

	resp, err := h.responses.GetByID(responseID)
	if err != nil {
		return 0, nil, InternalErrorResponse(c, err, "get response")
	}
	if resp == nil || resp.EmailID != emailID {
		return 0, nil, ErrorResponse(c, fiber.StatusNotFound, "response not found")
	}
	return emailID, resp, nil
}
