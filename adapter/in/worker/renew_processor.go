package worker

import (
	"context"

	"draft_server/core/service/subscription"
)

// RenewProcessor hands subscription.renew jobs to the renewal service.
type RenewProcessor struct {
	svc *subscription.Service
}

func NewRenewProcessor(svc *subscription.Service) *RenewProcessor {
	return &RenewProcessor{svc: svc}
}

func (p *RenewProcessor) ProcessRenew(ctx context.Context, msg *Message) error {
	_, err := p.svc.RenewExpiring(ctx)
	return err
}
