package http

import (
	"errors"
	netHTTP "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"draft_server/core/domain"
)

type stubEmailRepo struct {
	emails map[int64]*domain.Email
}

func (s *stubEmailRepo) GetByID(id int64) (*domain.Email, error) {
	return s.emails[id], nil
}
func (s *stubEmailRepo) GetByMessageID(string) (*domain.Email, error) { return nil, nil }
func (s *stubEmailRepo) List(*domain.EmailFilter) ([]*domain.Email, int, error) {
	return nil, 0, nil
}
func (s *stubEmailRepo) Create(*domain.Email) (bool, error) { return true, nil }
func (s *stubEmailRepo) UpdateStatus(id int64, from, to domain.EmailStatus) error {
	email, ok := s.emails[id]
	if !ok || email.Status != from || !domain.CanTransition(from, to) {
		return errStatusConflict
	}
	email.Status = to
	return nil
}
func (s *stubEmailRepo) MarkProcessed(int64, time.Time) error { return nil }

var errStatusConflict = errors.New("status conflict")

type stubResponseRepo struct {
	responses map[int64]*domain.AIResponse
	sentAt    map[int64]time.Time
	statuses  map[int64]domain.ResponseStatus
}

func (s *stubResponseRepo) GetByID(id int64) (*domain.AIResponse, error) {
	return s.responses[id], nil
}
func (s *stubResponseRepo) ListByEmailID(int64) ([]*domain.AIResponse, error) { return nil, nil }
func (s *stubResponseRepo) Create(*domain.AIResponse) error                   { return nil }
func (s *stubResponseRepo) UpdateStatus(id int64, status domain.ResponseStatus) error {
	if s.statuses == nil {
		s.statuses = make(map[int64]domain.ResponseStatus)
	}
	s.statuses[id] = status
	return nil
}
func (s *stubResponseRepo) MarkSent(id int64, at time.Time) error {
	if s.sentAt == nil {
		s.sentAt = make(map[int64]time.Time)
	}
	s.sentAt[id] = at
	return nil
}

func newEmailApp(t *testing.T) (*fiber.App, *stubEmailRepo, *stubResponseRepo) {
	t.Helper()

	emails := &stubEmailRepo{emails: map[int64]*domain.Email{
		7: {ID: 7, ClientID: uuid.New(), MessageID: "msg-7", Status: domain.StatusDraftCreated},
	}}
	responses := &stubResponseRepo{responses: map[int64]*domain.AIResponse{
		3: {ID: 3, EmailID: 7, Status: domain.ResponseDraftCreated},
	}}

	app := fiber.New()
	NewEmailHandler(emails, responses).Register(app)
	return app, emails, responses
}

func TestMarkResponseSent(t *testing.T) {
	app, emails, responses := newEmailApp(t)

	req := httptest.NewRequest(netHTTP.MethodPost, "/emails/7/responses/3/sent", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != netHTTP.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := emails.emails[7].Status; got != domain.StatusSent {
		t.Errorf("email status = %s, want sent", got)
	}
	if _, ok := responses.sentAt[3]; !ok {
		t.Error("response must be stamped with the send time")
	}
}

func TestMarkResponseSentWrongEmailStatus(t *testing.T) {
	app, emails, responses := newEmailApp(t)
	emails.emails[7].Status = domain.StatusProcessing

	req := httptest.NewRequest(netHTTP.MethodPost, "/emails/7/responses/3/sent", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != netHTTP.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	if got := emails.emails[7].Status; got != domain.StatusProcessing {
		t.Errorf("email status = %s, want unchanged", got)
	}
	if len(responses.sentAt) != 0 {
		t.Error("response must not be stamped on a refused transition")
	}
}

func TestMarkResponseSentMismatchedResponse(t *testing.T) {
	app, _, responses := newEmailApp(t)
	responses.responses[9] = &domain.AIResponse{ID: 9, EmailID: 99}

	req := httptest.NewRequest(netHTTP.MethodPost, "/emails/7/responses/9/sent", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != netHTTP.StatusNotFound {
		t.Errorf("status = %d, want 404 for a response of another email", resp.StatusCode)
	}
}

func TestRejectResponse(t *testing.T) {
	app, emails, responses := newEmailApp(t)

	req := httptest.NewRequest(netHTTP.MethodPost, "/emails/7/responses/3/reject", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != netHTTP.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := responses.statuses[3]; got != domain.ResponseRejected {
		t.Errorf("response status = %s, want rejected", got)
	}
	if got := emails.emails[7].Status; got != domain.StatusDraftCreated {
		t.Errorf("email status = %s, want untouched by a reject", got)
	}
}
