package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"draft_server/core/port/out"
	"draft_server/core/service/drafting"
)

// DraftProcessor hands draft.generate jobs to the orchestrator.
type DraftProcessor struct {
	orchestrator *drafting.Orchestrator
}

func NewDraftProcessor(orchestrator *drafting.Orchestrator) *DraftProcessor {
	return &DraftProcessor{orchestrator: orchestrator}
}

func (p *DraftProcessor) ProcessGenerate(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[DraftGeneratePayload](msg)
	if err != nil {
		return fmt.Errorf("parse draft payload: %w", err)
	}
	if payload.MessageID == "" {
		return fmt.Errorf("draft payload missing message id")
	}

	clientID, err := uuid.Parse(payload.ClientID)
	if err != nil {
		return fmt.Errorf("parse client id: %w", err)
	}

	return p.orchestrator.ProcessNotification(ctx, &out.DraftJob{
		ClientID:       clientID,
		MessageID:      payload.MessageID,
		SubscriptionID: payload.SubscriptionID,
	})
}
