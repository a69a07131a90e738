package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"draft_server/core/domain"
	"draft_server/core/port/out"
	"draft_server/pkg/apperr"
)

type fakeSubscriptionRepo struct {
	expiring []*domain.WebhookSubscription
	byClient map[uuid.UUID]*domain.WebhookSubscription
	listErr  error
	updated  map[int64]time.Time

	deactivated        []int64
	deactivatedClients []uuid.UUID
}

func (f *fakeSubscriptionRepo) GetBySubscriptionID(string) (*domain.WebhookSubscription, error) {
	return nil, nil
}
func (f *fakeSubscriptionRepo) GetByClientID(clientID uuid.UUID) (*domain.WebhookSubscription, error) {
	return f.byClient[clientID], nil
}
func (f *fakeSubscriptionRepo) ListExpiring(time.Time) ([]*domain.WebhookSubscription, error) {
	return f.expiring, f.listErr
}
func (f *fakeSubscriptionRepo) Create(*domain.WebhookSubscription) error { return nil }
func (f *fakeSubscriptionRepo) UpdateExpiration(id int64, at time.Time) error {
	if f.updated == nil {
		f.updated = make(map[int64]time.Time)
	}
	f.updated[id] = at
	return nil
}
func (f *fakeSubscriptionRepo) Deactivate(id int64) error {
	f.deactivated = append(f.deactivated, id)
	return nil
}
func (f *fakeSubscriptionRepo) DeactivateByClient(clientID uuid.UUID) error {
	f.deactivatedClients = append(f.deactivatedClients, clientID)
	return nil
}

type fakeCredentials struct {
	failFor map[uuid.UUID]error
}

func (f *fakeCredentials) Get(_ context.Context, clientID uuid.UUID) (*out.Credential, error) {
	if err, ok := f.failFor[clientID]; ok {
		return nil, err
	}
	return &out.Credential{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}, nil
}
func (f *fakeCredentials) Refresh(ctx context.Context, clientID uuid.UUID) (*out.Credential, error) {
	return f.Get(ctx, clientID)
}

type fakeMailbox struct {
	renewErrFor map[string]error
	newExpiry   time.Time
	renewCalls  int

	deleteErr   error
	deleteCalls []string
}

func (f *fakeMailbox) FetchMessage(context.Context, *out.Credential, string) (*out.MailboxMessage, error) {
	return nil, nil
}
func (f *fakeMailbox) CreateDraftReply(context.Context, *out.Credential, string, string, string) (string, error) {
	return "", nil
}
func (f *fakeMailbox) RenewSubscription(_ context.Context, _ *out.Credential, subID string) (time.Time, error) {
	f.renewCalls++
	if err, ok := f.renewErrFor[subID]; ok {
		return time.Time{}, err
	}
	return f.newExpiry, nil
}
func (f *fakeMailbox) DeleteSubscription(_ context.Context, _ *out.Credential, subID string) error {
	f.deleteCalls = append(f.deleteCalls, subID)
	return f.deleteErr
}

func sub(id int64, subID string) *domain.WebhookSubscription {
	return &domain.WebhookSubscription{
		ID:             id,
		ClientID:       uuid.New(),
		SubscriptionID: subID,
		ExpiresAt:      time.Now().Add(6 * time.Hour),
		IsActive:       true,
	}
}

func TestRenewExpiring(t *testing.T) {
	newExpiry := time.Now().Add(70 * time.Hour)
	repo := &fakeSubscriptionRepo{expiring: []*domain.WebhookSubscription{sub(1, "s1"), sub(2, "s2")}}
	mailbox := &fakeMailbox{newExpiry: newExpiry}

	svc := NewService(repo, &fakeCredentials{}, mailbox)

	renewed, err := svc.RenewExpiring(context.Background())
	if err != nil {
		t.Fatalf("RenewExpiring: %v", err)
	}
	if renewed != 2 {
		t.Errorf("renewed = %d, want 2", renewed)
	}
	if mailbox.renewCalls != 2 {
		t.Errorf("renew calls = %d, want 2", mailbox.renewCalls)
	}
	for _, id := range []int64{1, 2} {
		if got := repo.updated[id]; !got.Equal(newExpiry) {
			t.Errorf("subscription %d expiry = %v, want %v", id, got, newExpiry)
		}
	}
}

func TestRenewExpiringFailuresAreIsolated(t *testing.T) {
	a, b := sub(1, "s1"), sub(2, "s2")
	repo := &fakeSubscriptionRepo{expiring: []*domain.WebhookSubscription{a, b}}
	mailbox := &fakeMailbox{
		newExpiry:   time.Now().Add(70 * time.Hour),
		renewErrFor: map[string]error{"s1": errors.New("gone")},
	}

	svc := NewService(repo, &fakeCredentials{}, mailbox)

	renewed, err := svc.RenewExpiring(context.Background())
	if err != nil {
		t.Fatalf("RenewExpiring: %v", err)
	}
	if renewed != 1 {
		t.Errorf("renewed = %d, want 1", renewed)
	}
	if _, ok := repo.updated[a.ID]; ok {
		t.Error("failed subscription must not be updated")
	}
	if _, ok := repo.updated[b.ID]; !ok {
		t.Error("healthy subscription must still renew")
	}
}

func TestRenewExpiringDeadCredentialSkipsOnlyThatClient(t *testing.T) {
	a, b := sub(1, "s1"), sub(2, "s2")
	repo := &fakeSubscriptionRepo{expiring: []*domain.WebhookSubscription{a, b}}
	creds := &fakeCredentials{failFor: map[uuid.UUID]error{a.ClientID: errors.New("refresh rejected")}}
	mailbox := &fakeMailbox{newExpiry: time.Now().Add(70 * time.Hour)}

	svc := NewService(repo, creds, mailbox)

	renewed, err := svc.RenewExpiring(context.Background())
	if err != nil {
		t.Fatalf("RenewExpiring: %v", err)
	}
	if renewed != 1 {
		t.Errorf("renewed = %d, want 1", renewed)
	}
	if mailbox.renewCalls != 1 {
		t.Errorf("renew calls = %d, want 1 (dead credential never reaches the provider)", mailbox.renewCalls)
	}
}

func TestRenewExpiringListError(t *testing.T) {
	repo := &fakeSubscriptionRepo{listErr: errors.New("db down")}
	svc := NewService(repo, &fakeCredentials{}, &fakeMailbox{})

	if _, err := svc.RenewExpiring(context.Background()); err == nil {
		t.Error("expected list failure to surface")
	}
}

func TestRenewExpiringNothingToDo(t *testing.T) {
	svc := NewService(&fakeSubscriptionRepo{}, &fakeCredentials{}, &fakeMailbox{})

	renewed, err := svc.RenewExpiring(context.Background())
	if err != nil || renewed != 0 {
		t.Errorf("RenewExpiring() = (%d, %v), want (0, nil)", renewed, err)
	}
}

func TestRenewExpiringGoneUpstreamDeactivates(t *testing.T) {
	a, b := sub(1, "s1"), sub(2, "s2")
	repo := &fakeSubscriptionRepo{expiring: []*domain.WebhookSubscription{a, b}}
	mailbox := &fakeMailbox{
		newExpiry:   time.Now().Add(70 * time.Hour),
		renewErrFor: map[string]error{"s1": apperr.NotFound("graph resource")},
	}

	svc := NewService(repo, &fakeCredentials{}, mailbox)

	renewed, err := svc.RenewExpiring(context.Background())
	if err != nil {
		t.Fatalf("RenewExpiring: %v", err)
	}
	if renewed != 1 {
		t.Errorf("renewed = %d, want 1", renewed)
	}
	if len(repo.deactivated) != 1 || repo.deactivated[0] != a.ID {
		t.Errorf("deactivated = %v, want [%d] (provider no longer knows s1)", repo.deactivated, a.ID)
	}
	if _, ok := repo.updated[b.ID]; !ok {
		t.Error("healthy subscription must still renew")
	}
}

func TestDisconnect(t *testing.T) {
	clientID := uuid.New()
	s := sub(1, "s1")
	s.ClientID = clientID
	repo := &fakeSubscriptionRepo{byClient: map[uuid.UUID]*domain.WebhookSubscription{clientID: s}}
	mailbox := &fakeMailbox{}

	svc := NewService(repo, &fakeCredentials{}, mailbox)

	if err := svc.Disconnect(context.Background(), clientID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if len(mailbox.deleteCalls) != 1 || mailbox.deleteCalls[0] != "s1" {
		t.Errorf("delete calls = %v, want [s1]", mailbox.deleteCalls)
	}
	if len(repo.deactivatedClients) != 1 || repo.deactivatedClients[0] != clientID {
		t.Errorf("deactivated clients = %v, want [%s]", repo.deactivatedClients, clientID)
	}
}

func TestDisconnectWithoutSubscription(t *testing.T) {
	clientID := uuid.New()
	repo := &fakeSubscriptionRepo{}
	mailbox := &fakeMailbox{}

	svc := NewService(repo, &fakeCredentials{}, mailbox)

	if err := svc.Disconnect(context.Background(), clientID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if len(mailbox.deleteCalls) != 0 {
		t.Error("no provider call without a subscription row")
	}
	if len(repo.deactivatedClients) != 1 {
		t.Error("rows are still swept even without an active subscription")
	}
}

func TestDisconnectProviderFailureStillDeactivates(t *testing.T) {
	clientID := uuid.New()
	s := sub(1, "s1")
	s.ClientID = clientID
	repo := &fakeSubscriptionRepo{byClient: map[uuid.UUID]*domain.WebhookSubscription{clientID: s}}
	mailbox := &fakeMailbox{deleteErr: errors.New("upstream 503")}

	svc := NewService(repo, &fakeCredentials{}, mailbox)

	if err := svc.Disconnect(context.Background(), clientID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if len(repo.deactivatedClients) != 1 {
		t.Error("local deactivation must not depend on the provider delete")
	}
}
