package out

import (
	"context"

	"draft_server/core/domain"
)

// GenerationContext is everything the engine needs to draft a reply.
type GenerationContext struct {
	BusinessContext string
	Style           domain.ResponseStyle
	Length          domain.ResponseLength
	Tone            string
	Templates       []*domain.ReplyTemplate // at most 3, matcher order

	Subject   string
	Body      string
	FromName  string
	FromEmail string
}

// GenerationResult is the engine's structured output. Confidence is the
// model's self-reported quality estimate in [0,1].
type GenerationResult struct {
	Content      string
	Confidence   float64
	TemplateUsed string
}

// GenerationEngine drafts a reply for one email. Transport and auth
// failures are returned as errors; a malformed model response is not an
// error — the engine falls back to treating the raw text as content.
type GenerationEngine interface {
	Generate(ctx context.Context, gc *GenerationContext) (*GenerationResult, error)
}
