package worker

import (
	"context"

	"github.com/goccy/go-json"

	"draft_server/pkg/logger"
)

// Handler routes pool messages to their processors.
type Handler struct {
	draftProcessor *DraftProcessor
	renewProcessor *RenewProcessor
}

func NewHandler(draftProcessor *DraftProcessor, renewProcessor *RenewProcessor) *Handler {
	return &Handler{
		draftProcessor: draftProcessor,
		renewProcessor: renewProcessor,
	}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobDraftGenerate:
		return h.draftProcessor.ProcessGenerate(ctx, msg)
	case JobSubscriptionRenew:
		return h.renewProcessor.ProcessRenew(ctx, msg)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

// ParsePayload decodes a message payload into a typed struct.
func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
