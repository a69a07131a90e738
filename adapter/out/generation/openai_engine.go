// Package generation drafts reply content with the OpenAI chat API.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"draft_server/core/domain"
	"draft_server/core/port/out"
	"draft_server/pkg/logger"
)

const (
	DefaultModel = "gpt-4o-mini"

	// fallbackConfidence is assigned when the model ignores the JSON
	// format and returns plain text.
	fallbackConfidence = 0.75

	maxBodyChars = 4000
)

// Engine implements out.GenerationEngine on the OpenAI chat API,
// guarded by a circuit breaker so a dead upstream fails fast instead of
// stalling the worker pool.
type Engine struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

// Config for the engine.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewEngine(cfg Config) *Engine {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	log := logger.Default().WithField("component", "generation")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 || (counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
	})

	return &Engine{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: timeout,
		breaker: breaker,
		log:     log,
	}
}

// modelReply is the JSON shape requested from the model.
type modelReply struct {
	Reply      string  `json:"reply"`
	Confidence float64 `json:"confidence"`
}

// Generate drafts a reply for the email described by gc.
func (e *Engine) Generate(ctx context.Context, gc *out.GenerationContext) (*out.GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	temperature, maxTokens := samplingFor(gc.Style, gc.Length)

	req := openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(gc),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt(gc),
			},
		},
	}

	raw, err := e.breaker.Execute(func() (any, error) {
		resp, err := e.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty completion response")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, err
	}

	return e.parseResult(raw.(string), gc), nil
}

// parseResult decodes the structured model output. Anything the model
// returns that is not the requested JSON shape becomes a whole-text
// reply with the fallback confidence: a shaky answer for a human to
// review beats a dropped email.
func (e *Engine) parseResult(content string, gc *out.GenerationContext) *out.GenerationResult {
	var parsed modelReply
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && parsed.Reply != "" {
		confidence := parsed.Confidence
		if confidence < 0 || confidence > 1 {
			confidence = fallbackConfidence
		}
		return &out.GenerationResult{
			Content:      parsed.Reply,
			Confidence:   confidence,
			TemplateUsed: templateAttribution(parsed.Reply, gc.Templates),
		}
	}

	e.log.Debug("model returned unstructured output, using text fallback")
	return &out.GenerationResult{
		Content:      content,
		Confidence:   fallbackConfidence,
		TemplateUsed: templateAttribution(content, gc.Templates),
	}
}

// samplingFor maps the client's style and length settings to sampling
// knobs. Concise replies get a cold, short completion; casual replies
// run hotter.
func samplingFor(style domain.ResponseStyle, length domain.ResponseLength) (float32, int) {
	var temperature float32
	switch style {
	case domain.StyleConcise:
		temperature = 0.3
	case domain.StyleCasual:
		temperature = 0.9
	default:
		temperature = 0.7
	}

	var maxTokens int
	switch length {
	case domain.LengthShort:
		maxTokens = 256
	case domain.LengthLong:
		maxTokens = 1024
	default:
		maxTokens = 512
	}

	if style == domain.StyleConcise && maxTokens > 256 {
		maxTokens = 256
	}
	return temperature, maxTokens
}

func systemPrompt(gc *out.GenerationContext) string {
	var sb strings.Builder
	sb.WriteString("You are an email reply assistant drafting replies for a business mailbox.\n\n")
	fmt.Fprintf(&sb, "Style: %s\n", gc.Style)
	fmt.Fprintf(&sb, "Length: %s (short: 1-2 sentences, medium: 3-5 sentences, long: detailed response)\n", gc.Length)
	if gc.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", gc.Tone)
	}
	if gc.BusinessContext != "" {
		fmt.Fprintf(&sb, "\nBusiness context:\n%s\n", gc.BusinessContext)
	}

	if len(gc.Templates) > 0 {
		sb.WriteString("\nPrefer these reply templates when they fit the question:\n")
		for _, tpl := range gc.Templates {
			fmt.Fprintf(&sb, "--- Template %q ---\n%s\n", tpl.Name, tpl.Body)
		}
	}

	sb.WriteString(`
Write a natural, contextually appropriate reply body in HTML. Do not include a subject line or headers.
Respond with a JSON object: {"reply": "<html reply body>", "confidence": <0.0-1.0 quality estimate>}`)
	return sb.String()
}

func userPrompt(gc *out.GenerationContext) string {
	from := gc.FromEmail
	if gc.FromName != "" {
		from = fmt.Sprintf("%s <%s>", gc.FromName, gc.FromEmail)
	}
	return fmt.Sprintf("Original email from %s:\nSubject: %s\n\n%s\n\nGenerate a reply:",
		from, gc.Subject, truncate(gc.Body, maxBodyChars))
}

// templateAttribution reports which matched template the reply actually
// drew on, by a crude containment check on a distinctive prefix.
func templateAttribution(reply string, templates []*domain.ReplyTemplate) string {
	lower := strings.ToLower(reply)
	for _, tpl := range templates {
		probe := cutAtRune(strings.ToLower(strings.TrimSpace(tpl.Body)), 60)
		if probe != "" && strings.Contains(lower, probe) {
			return tpl.Name
		}
	}
	return ""
}

// cutAtRune shortens s to at most n bytes without splitting a rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return cutAtRune(s, max) + "..."
}

// Ensure interface compliance
var _ out.GenerationEngine = (*Engine)(nil)
