package drafting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"draft_server/core/domain"
	"draft_server/core/port/out"
)

// --- fakes ---

type fakeClientRepo struct {
	clients map[uuid.UUID]*domain.Client
}

func (f *fakeClientRepo) GetByID(id uuid.UUID) (*domain.Client, error) {
	return f.clients[id], nil
}
func (f *fakeClientRepo) GetByEmail(string) (*domain.Client, error)         { return nil, nil }
func (f *fakeClientRepo) List(bool) ([]*domain.Client, error)               { return nil, nil }
func (f *fakeClientRepo) Create(*domain.Client) error                       { return nil }
func (f *fakeClientRepo) Update(*domain.Client) error                       { return nil }
func (f *fakeClientRepo) Deactivate(uuid.UUID) error                        { return nil }
func (f *fakeClientRepo) UpdateCredential(uuid.UUID, string, string, time.Time) error {
	return nil
}

type fakeEmailRepo struct {
	nextID      int64
	emails      map[int64]*domain.Email
	byMessageID map[string]int64
	transitions []string
}

func newFakeEmailRepo() *fakeEmailRepo {
	return &fakeEmailRepo{
		nextID:      1,
		emails:      make(map[int64]*domain.Email),
		byMessageID: make(map[string]int64),
	}
}

func (f *fakeEmailRepo) GetByID(id int64) (*domain.Email, error) { return f.emails[id], nil }
func (f *fakeEmailRepo) GetByMessageID(messageID string) (*domain.Email, error) {
	if id, ok := f.byMessageID[messageID]; ok {
		return f.emails[id], nil
	}
	return nil, nil
}
func (f *fakeEmailRepo) List(*domain.EmailFilter) ([]*domain.Email, int, error) {
	return nil, 0, nil
}

func (f *fakeEmailRepo) Create(email *domain.Email) (bool, error) {
	if _, exists := f.byMessageID[email.MessageID]; exists {
		return false, nil
	}
	email.ID = f.nextID
	f.nextID++
	f.emails[email.ID] = email
	f.byMessageID[email.MessageID] = email.ID
	return true, nil
}

func (f *fakeEmailRepo) UpdateStatus(id int64, from, to domain.EmailStatus) error {
	email, ok := f.emails[id]
	if !ok || email.Status != from || !domain.CanTransition(from, to) {
		return errors.New("email status conflict")
	}
	email.Status = to
	f.transitions = append(f.transitions, fmt.Sprintf("%s->%s", from, to))
	return nil
}

func (f *fakeEmailRepo) MarkProcessed(id int64, at time.Time) error {
	if email, ok := f.emails[id]; ok {
		email.ProcessedAt = &at
	}
	return nil
}

type fakeResponseRepo struct {
	responses []*domain.AIResponse
	createErr error
}

func (f *fakeResponseRepo) GetByID(int64) (*domain.AIResponse, error)          { return nil, nil }
func (f *fakeResponseRepo) ListByEmailID(int64) ([]*domain.AIResponse, error)  { return nil, nil }
func (f *fakeResponseRepo) UpdateStatus(int64, domain.ResponseStatus) error    { return nil }
func (f *fakeResponseRepo) MarkSent(int64, time.Time) error                    { return nil }
func (f *fakeResponseRepo) Create(resp *domain.AIResponse) error {
	if f.createErr != nil {
		return f.createErr
	}
	resp.ID = int64(len(f.responses) + 1)
	f.responses = append(f.responses, resp)
	return nil
}

type fakeTemplateRepo struct {
	templates []*domain.ReplyTemplate
	listErr   error
}

func (f *fakeTemplateRepo) GetByID(int64) (*domain.ReplyTemplate, error)              { return nil, nil }
func (f *fakeTemplateRepo) ListByClient(uuid.UUID) ([]*domain.ReplyTemplate, error)   { return nil, nil }
func (f *fakeTemplateRepo) Create(*domain.ReplyTemplate) error                        { return nil }
func (f *fakeTemplateRepo) Update(*domain.ReplyTemplate) error                        { return nil }
func (f *fakeTemplateRepo) Delete(int64) error                                        { return nil }
func (f *fakeTemplateRepo) ListActiveByClient(uuid.UUID) ([]*domain.ReplyTemplate, error) {
	return f.templates, f.listErr
}

type fakeSubscriptionRepo struct {
	subs map[string]*domain.WebhookSubscription
}

func (f *fakeSubscriptionRepo) GetBySubscriptionID(id string) (*domain.WebhookSubscription, error) {
	return f.subs[id], nil
}
func (f *fakeSubscriptionRepo) GetByClientID(uuid.UUID) (*domain.WebhookSubscription, error) {
	return nil, nil
}
func (f *fakeSubscriptionRepo) ListExpiring(time.Time) ([]*domain.WebhookSubscription, error) {
	return nil, nil
}
func (f *fakeSubscriptionRepo) Create(*domain.WebhookSubscription) error     { return nil }
func (f *fakeSubscriptionRepo) UpdateExpiration(int64, time.Time) error      { return nil }
func (f *fakeSubscriptionRepo) Deactivate(int64) error                       { return nil }
func (f *fakeSubscriptionRepo) DeactivateByClient(uuid.UUID) error           { return nil }

type fakeCredentials struct {
	cred *out.Credential
	err  error
}

func (f *fakeCredentials) Get(context.Context, uuid.UUID) (*out.Credential, error) {
	return f.cred, f.err
}
func (f *fakeCredentials) Refresh(context.Context, uuid.UUID) (*out.Credential, error) {
	return f.cred, f.err
}

type fakeMailbox struct {
	message    *out.MailboxMessage
	fetchErr   error
	draftID    string
	draftErr   error
	fetchCalls int
	draftCalls int
}

func (f *fakeMailbox) FetchMessage(_ context.Context, _ *out.Credential, _ string) (*out.MailboxMessage, error) {
	f.fetchCalls++
	return f.message, f.fetchErr
}

func (f *fakeMailbox) CreateDraftReply(_ context.Context, _ *out.Credential, _, _, _ string) (string, error) {
	f.draftCalls++
	return f.draftID, f.draftErr
}

func (f *fakeMailbox) RenewSubscription(context.Context, *out.Credential, string) (time.Time, error) {
	return time.Time{}, nil
}
func (f *fakeMailbox) DeleteSubscription(context.Context, *out.Credential, string) error {
	return nil
}

type fakeEngine struct {
	result *out.GenerationResult
	err    error
	calls  int
	lastGC *out.GenerationContext
}

func (f *fakeEngine) Generate(_ context.Context, gc *out.GenerationContext) (*out.GenerationResult, error) {
	f.calls++
	f.lastGC = gc
	return f.result, f.err
}

// --- fixture ---

type fixture struct {
	orch      *Orchestrator
	clients   *fakeClientRepo
	emails    *fakeEmailRepo
	responses *fakeResponseRepo
	templates *fakeTemplateRepo
	subs      *fakeSubscriptionRepo
	mailbox   *fakeMailbox
	engine    *fakeEngine

	client *domain.Client
	job    *out.DraftJob
}

func newFixture() *fixture {
	access, refresh := "enc-a", "enc-r"
	expiry := time.Now().Add(time.Hour)
	clientID := uuid.New()

	client := &domain.Client{
		ID:              clientID,
		Email:           "owner@acme.com",
		AIEnabled:       true,
		Style:           domain.StyleProfessional,
		Length:          domain.LengthMedium,
		IsActive:        true,
		AccessTokenEnc:  &access,
		RefreshTokenEnc: &refresh,
		TokenExpiresAt:  &expiry,
	}

	f := &fixture{
		clients:   &fakeClientRepo{clients: map[uuid.UUID]*domain.Client{clientID: client}},
		emails:    newFakeEmailRepo(),
		responses: &fakeResponseRepo{},
		templates: &fakeTemplateRepo{},
		subs: &fakeSubscriptionRepo{subs: map[string]*domain.WebhookSubscription{
			"sub-1": {ID: 1, ClientID: clientID, SubscriptionID: "sub-1", IsActive: true},
		}},
		mailbox: &fakeMailbox{
			message: &out.MailboxMessage{
				ID:          "msg-1",
				Subject:     "Need a quote",
				Body:        "How much for 50 seats?",
				BodyPreview: "How much for 50 seats?",
				FromEmail:   "customer@other.com",
				ReceivedAt:  time.Now(),
			},
			draftID: "draft-99",
		},
		engine: &fakeEngine{result: &out.GenerationResult{Content: "<p>Thanks!</p>", Confidence: 0.9}},
		client: client,
		job:    &out.DraftJob{ClientID: clientID, MessageID: "msg-1", SubscriptionID: "sub-1"},
	}

	f.orch = NewOrchestrator(
		f.clients, f.emails, f.responses, f.templates, f.subs,
		&fakeCredentials{cred: &out.Credential{AccessToken: "tok", Expiry: expiry}},
		f.mailbox, f.engine,
	)
	return f
}

// --- tests ---

func TestProcessNotificationSuccess(t *testing.T) {
	f := newFixture()

	if err := f.orch.ProcessNotification(context.Background(), f.job); err != nil {
		t.Fatalf("ProcessNotification() error = %v", err)
	}

	email, _ := f.emails.GetByMessageID("msg-1")
	if email == nil {
		t.Fatal("expected email row to be created")
	}
	if email.Status != domain.StatusDraftCreated {
		t.Errorf("email status = %q, want draft_created", email.Status)
	}
	if email.ProcessedAt == nil {
		t.Error("expected processed_at to be stamped")
	}

	if len(f.responses.responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(f.responses.responses))
	}
	resp := f.responses.responses[0]
	if resp.DraftID == nil || *resp.DraftID != "draft-99" {
		t.Errorf("response draft id = %v, want draft-99", resp.DraftID)
	}
	if resp.Confidence == nil || *resp.Confidence != 0.9 {
		t.Errorf("response confidence = %v, want 0.9", resp.Confidence)
	}
	if resp.Status != domain.ResponseDraftCreated {
		t.Errorf("response status = %q, want draft_created", resp.Status)
	}

	want := []string{"received->processing", "processing->draft_created"}
	if len(f.emails.transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", f.emails.transitions, want)
	}
	for i := range want {
		if f.emails.transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, f.emails.transitions[i], want[i])
		}
	}
}

func TestProcessNotificationGenerationFailure(t *testing.T) {
	f := newFixture()
	f.engine.err = errors.New("upstream down")

	err := f.orch.ProcessNotification(context.Background(), f.job)
	if err == nil {
		t.Fatal("expected error when generation fails")
	}

	email, _ := f.emails.GetByMessageID("msg-1")
	if email.Status != domain.StatusError {
		t.Errorf("email status = %q, want error", email.Status)
	}
	if len(f.responses.responses) != 0 {
		t.Errorf("got %d responses, want none on generation failure", len(f.responses.responses))
	}
	if f.mailbox.draftCalls != 0 {
		t.Errorf("draft write-back was called %d times, want 0", f.mailbox.draftCalls)
	}
}

func TestProcessNotificationDraftWriteBackFailure(t *testing.T) {
	f := newFixture()
	f.mailbox.draftErr = errors.New("mailbox rejected draft")

	if err := f.orch.ProcessNotification(context.Background(), f.job); err == nil {
		t.Fatal("expected error when draft write-back fails")
	}

	email, _ := f.emails.GetByMessageID("msg-1")
	if email.Status != domain.StatusError {
		t.Errorf("email status = %q, want error", email.Status)
	}
	if len(f.responses.responses) != 0 {
		t.Error("no response row should exist without a mailbox draft")
	}
}

func TestProcessNotificationResponsePersistFailure(t *testing.T) {
	f := newFixture()
	f.responses.createErr = errors.New("insert failed")

	if err := f.orch.ProcessNotification(context.Background(), f.job); err == nil {
		t.Fatal("expected error when the response record cannot be written")
	}

	// The mailbox draft stays; the email is marked errored so the
	// inconsistency is visible.
	if f.mailbox.draftCalls != 1 {
		t.Errorf("draft calls = %d, want 1", f.mailbox.draftCalls)
	}
	email, _ := f.emails.GetByMessageID("msg-1")
	if email.Status != domain.StatusError {
		t.Errorf("email status = %q, want error", email.Status)
	}
}

func TestProcessNotificationDuplicateMessage(t *testing.T) {
	f := newFixture()

	if err := f.orch.ProcessNotification(context.Background(), f.job); err != nil {
		t.Fatalf("first run: %v", err)
	}
	engineCalls := f.engine.calls

	// Redelivery of the same message stops cleanly at the insert.
	if err := f.orch.ProcessNotification(context.Background(), f.job); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(f.emails.emails) != 1 {
		t.Errorf("got %d email rows, want 1", len(f.emails.emails))
	}
	if f.engine.calls != engineCalls {
		t.Error("duplicate delivery must not trigger another generation")
	}
	if len(f.responses.responses) != 1 {
		t.Errorf("got %d responses, want 1", len(f.responses.responses))
	}
}

func TestProcessNotificationSkipPaths(t *testing.T) {
	t.Run("ai disabled", func(t *testing.T) {
		f := newFixture()
		f.client.AIEnabled = false

		if err := f.orch.ProcessNotification(context.Background(), f.job); err != nil {
			t.Fatalf("ProcessNotification() error = %v", err)
		}
		if f.mailbox.fetchCalls != 0 {
			t.Error("disabled client must not reach the mailbox")
		}
		if len(f.emails.emails) != 0 {
			t.Error("disabled client must not create email rows")
		}
	})

	t.Run("no credential", func(t *testing.T) {
		f := newFixture()
		f.client.AccessTokenEnc = nil
		f.client.RefreshTokenEnc = nil
		f.client.TokenExpiresAt = nil

		if err := f.orch.ProcessNotification(context.Background(), f.job); err != nil {
			t.Fatalf("ProcessNotification() error = %v", err)
		}
		if f.mailbox.fetchCalls != 0 || len(f.emails.emails) != 0 {
			t.Error("client without credential must be skipped silently")
		}
	})

	t.Run("inactive client", func(t *testing.T) {
		f := newFixture()
		f.client.IsActive = false

		if err := f.orch.ProcessNotification(context.Background(), f.job); err != nil {
			t.Fatalf("ProcessNotification() error = %v", err)
		}
		if len(f.emails.emails) != 0 {
			t.Error("inactive client must be skipped")
		}
	})

	t.Run("inactive subscription", func(t *testing.T) {
		f := newFixture()
		f.subs.subs["sub-1"].IsActive = false

		if err := f.orch.ProcessNotification(context.Background(), f.job); err != nil {
			t.Fatalf("ProcessNotification() error = %v", err)
		}
		if len(f.emails.emails) != 0 {
			t.Error("revoked subscription must stop routing")
		}
	})

	t.Run("self-sent message", func(t *testing.T) {
		f := newFixture()
		f.mailbox.message.FromEmail = "Owner@Acme.com"

		if err := f.orch.ProcessNotification(context.Background(), f.job); err != nil {
			t.Fatalf("ProcessNotification() error = %v", err)
		}
		if len(f.emails.emails) != 0 {
			t.Error("self-sent mail must not create an email row")
		}
		if f.engine.calls != 0 {
			t.Error("self-sent mail must not be drafted")
		}
	})
}

func TestProcessNotificationBusinessHoursDeferral(t *testing.T) {
	f := newFixture()
	f.client.BusinessHours = domain.BusinessHours{
		Enabled: true, Start: "09:00", End: "17:00", Timezone: "UTC",
	}
	// Pin the clock to 03:00 UTC, outside the window.
	f.orch.now = func() time.Time {
		return time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	}

	if err := f.orch.ProcessNotification(context.Background(), f.job); err != nil {
		t.Fatalf("ProcessNotification() error = %v", err)
	}

	email, _ := f.emails.GetByMessageID("msg-1")
	if email == nil {
		t.Fatal("deferral still records the email")
	}
	if email.Status != domain.StatusReceived {
		t.Errorf("email status = %q, want received after deferral", email.Status)
	}
	if f.engine.calls != 0 {
		t.Error("deferred email must not be drafted")
	}
	if len(f.responses.responses) != 0 {
		t.Error("deferred email must have no response rows")
	}
}

func TestProcessNotificationTemplateErrorIsSoft(t *testing.T) {
	f := newFixture()
	f.templates.listErr = errors.New("template table unavailable")

	if err := f.orch.ProcessNotification(context.Background(), f.job); err != nil {
		t.Fatalf("ProcessNotification() error = %v", err)
	}
	if f.engine.calls != 1 {
		t.Error("generation must proceed without templates")
	}
	if len(f.engine.lastGC.Templates) != 0 {
		t.Error("failed template load must yield an empty template set")
	}
}
