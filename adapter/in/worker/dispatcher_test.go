package worker

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestParsePayloadDraftGenerate(t *testing.T) {
	clientID := uuid.New().String()
	msg := NewMessage(JobDraftGenerate, map[string]any{
		"client_id":       clientID,
		"message_id":      "msg-1",
		"subscription_id": "sub-1",
	})

	payload, err := ParsePayload[DraftGeneratePayload](msg)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload.ClientID != clientID {
		t.Errorf("client id = %q, want %q", payload.ClientID, clientID)
	}
	if payload.MessageID != "msg-1" || payload.SubscriptionID != "sub-1" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestParsePayloadIgnoresUnknownFields(t *testing.T) {
	msg := NewMessage(JobSubscriptionRenew, map[string]any{
		"renew_all": true,
		"extra":     "ignored",
	})

	payload, err := ParsePayload[SubscriptionRenewPayload](msg)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if !payload.RenewAll {
		t.Error("renew_all = false, want true")
	}
}

func TestHandlerUnknownJobTypeIsDropped(t *testing.T) {
	h := NewHandler(nil, nil)

	msg := NewMessage("bogus.job", nil)
	if err := h.Process(context.Background(), msg); err != nil {
		t.Errorf("unknown job type should be dropped without error, got %v", err)
	}
}

func TestNewMessageAssignsIdentity(t *testing.T) {
	a := NewMessage(JobDraftGenerate, nil)
	b := NewMessage(JobDraftGenerate, nil)
	if a.ID == "" || a.ID == b.ID {
		t.Error("messages must carry unique ids")
	}
	if a.CreatedAt.IsZero() {
		t.Error("created_at must be stamped")
	}
	if a.Retries != 0 {
		t.Error("new messages start with zero retries")
	}
}
