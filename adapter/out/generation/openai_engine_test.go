package generation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"draft_server/core/domain"
	"draft_server/core/port/out"
)

func testEngine() *Engine {
	return NewEngine(Config{APIKey: "test-key"})
}

func TestParseResult(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name           string
		content        string
		wantContent    string
		wantConfidence float64
	}{
		{
			name:           "structured reply",
			content:        `{"reply": "<p>Sure, happy to help.</p>", "confidence": 0.92}`,
			wantContent:    "<p>Sure, happy to help.</p>",
			wantConfidence: 0.92,
		},
		{
			name:           "confidence above range falls back",
			content:        `{"reply": "<p>ok</p>", "confidence": 7}`,
			wantContent:    "<p>ok</p>",
			wantConfidence: fallbackConfidence,
		},
		{
			name:           "negative confidence falls back",
			content:        `{"reply": "<p>ok</p>", "confidence": -0.2}`,
			wantContent:    "<p>ok</p>",
			wantConfidence: fallbackConfidence,
		},
		{
			name:           "plain text becomes whole-text fallback",
			content:        "Thanks for reaching out, we'll be in touch.",
			wantContent:    "Thanks for reaching out, we'll be in touch.",
			wantConfidence: fallbackConfidence,
		},
		{
			name:           "json without reply field falls back to raw text",
			content:        `{"answer": "wrong shape"}`,
			wantContent:    `{"answer": "wrong shape"}`,
			wantConfidence: fallbackConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.parseResult(tt.content, &out.GenerationContext{})
			if got.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", got.Content, tt.wantContent)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestSamplingFor(t *testing.T) {
	tests := []struct {
		style     domain.ResponseStyle
		length    domain.ResponseLength
		wantTemp  float32
		wantLimit int
	}{
		{domain.StyleProfessional, domain.LengthMedium, 0.7, 512},
		{domain.StyleProfessional, domain.LengthShort, 0.7, 256},
		{domain.StyleProfessional, domain.LengthLong, 0.7, 1024},
		{domain.StyleCasual, domain.LengthMedium, 0.9, 512},
		{domain.StyleConcise, domain.LengthShort, 0.3, 256},
		// Concise caps the completion regardless of the length setting.
		{domain.StyleConcise, domain.LengthLong, 0.3, 256},
		{domain.StyleConcise, domain.LengthMedium, 0.3, 256},
	}

	for _, tt := range tests {
		temp, limit := samplingFor(tt.style, tt.length)
		if temp != tt.wantTemp || limit != tt.wantLimit {
			t.Errorf("samplingFor(%s, %s) = (%v, %d), want (%v, %d)",
				tt.style, tt.length, temp, limit, tt.wantTemp, tt.wantLimit)
		}
	}
}

func TestTemplateAttribution(t *testing.T) {
	templates := []*domain.ReplyTemplate{
		{Name: "pricing", Body: "Our standard plan is $49/seat/month with volume discounts over 20 seats."},
		{Name: "meeting", Body: "I'd be glad to set up a call."},
	}

	reply := "<p>Our standard plan is $49/seat/month with volume discounts over 20 seats. Let me know!</p>"
	if got := templateAttribution(reply, templates); got != "pricing" {
		t.Errorf("templateAttribution() = %q, want pricing", got)
	}

	if got := templateAttribution("<p>Something else entirely.</p>", templates); got != "" {
		t.Errorf("templateAttribution() = %q, want empty", got)
	}

	if got := templateAttribution("anything", nil); got != "" {
		t.Errorf("templateAttribution() with no templates = %q, want empty", got)
	}
}

func TestSystemPromptIncludesPolicy(t *testing.T) {
	gc := &out.GenerationContext{
		BusinessContext: "We sell solar panels.",
		Style:           domain.StyleCasual,
		Length:          domain.LengthShort,
		Tone:            "friendly",
		Templates: []*domain.ReplyTemplate{
			{Name: "warranty", Body: "All panels carry a 25-year warranty."},
		},
	}

	prompt := systemPrompt(gc)
	for _, want := range []string{"casual", "short", "friendly", "We sell solar panels.", "warranty", "25-year warranty", `"confidence"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	// 3 bytes per rune; a 100-byte cut would land mid-rune.
	s := strings.Repeat("가", 100)
	got := truncate(s, 100)

	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated string must carry the ellipsis, got %q", got)
	}
	if got := truncate("plain ascii", 100); got != "plain ascii" {
		t.Errorf("short input must pass through, got %q", got)
	}
}

func TestTemplateAttributionMultibyteBody(t *testing.T) {
	// The 60-byte probe cut falls mid-rune for this body.
	body := "a" + strings.Repeat("가", 40)
	templates := []*domain.ReplyTemplate{{Name: "korean", Body: body}}

	if got := templateAttribution("<p>"+body+"</p>", templates); got != "korean" {
		t.Errorf("templateAttribution() = %q, want korean", got)
	}
}

func TestUserPromptTruncatesBody(t *testing.T) {
	gc := &out.GenerationContext{
		Subject:   "Big one",
		Body:      strings.Repeat("x", maxBodyChars+500),
		FromEmail: "a@b.com",
	}
	prompt := userPrompt(gc)
	if !strings.Contains(prompt, "...") {
		t.Error("expected oversized body to be truncated")
	}
	if len(prompt) > maxBodyChars+200 {
		t.Errorf("prompt length %d exceeds the truncation budget", len(prompt))
	}
}
