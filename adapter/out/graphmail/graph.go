// Package graphmail provides the Microsoft Graph mailbox gateway.
package graphmail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"draft_server/core/port/out"
	"draft_server/pkg/apperr"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// subscriptionLifetime is just under the Graph maximum (~3 days).
const subscriptionLifetime = 4230 * time.Minute

// Gateway implements out.MailboxGateway against the Graph API. It is
// stateless: every call carries the credential of the client whose
// mailbox it touches, so one gateway serves the whole fleet.
type Gateway struct {
	timeout time.Duration
}

// NewGateway creates a Graph gateway. timeout bounds each API call.
func NewGateway(timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{timeout: timeout}
}

// FetchMessage retrieves one message from the client's mailbox.
func (g *Gateway) FetchMessage(ctx context.Context, cred *out.Credential, messageID string) (*out.MailboxMessage, error) {
	var msg graphMessage
	err := g.get(ctx, cred, fmt.Sprintf("/me/messages/%s", messageID), &msg)
	if err != nil {
		return nil, err
	}
	return convertMessage(&msg), nil
}

// CreateDraftReply creates an unsent reply draft: Graph's createReply
// clones the thread into a draft, then a PATCH sets our subject, body
// and recipient. The draft stays in the Drafts folder for review.
func (g *Gateway) CreateDraftReply(ctx context.Context, cred *out.Credential, originalMessageID, subject, htmlBody string) (string, error) {
	var draft struct {
		ID string `json:"id"`
	}
	err := g.post(ctx, cred, fmt.Sprintf("/me/messages/%s/createReply", originalMessageID), nil, &draft)
	if err != nil {
		return "", fmt.Errorf("create reply draft: %w", err)
	}

	var original struct {
		From graphRecipient `json:"from"`
	}
	err = g.get(ctx, cred, fmt.Sprintf("/me/messages/%s?$select=from", originalMessageID), &original)
	if err != nil {
		return "", fmt.Errorf("resolve original sender: %w", err)
	}

	patch := map[string]any{
		"subject": subject,
		"body": graphBody{
			ContentType: "html",
			Content:     htmlBody,
		},
		"toRecipients": []graphRecipient{original.From},
	}
	if err := g.patch(ctx, cred, fmt.Sprintf("/me/messages/%s", draft.ID), patch); err != nil {
		return "", fmt.Errorf("fill reply draft: %w", err)
	}

	return draft.ID, nil
}

// RenewSubscription extends a change-notification subscription.
func (g *Gateway) RenewSubscription(ctx context.Context, cred *out.Credential, subscriptionID string) (time.Time, error) {
	body := map[string]string{
		"expirationDateTime": time.Now().Add(subscriptionLifetime).Format(time.RFC3339),
	}

	var resp struct {
		ExpirationDateTime string `json:"expirationDateTime"`
	}
	err := g.patchResult(ctx, cred, fmt.Sprintf("/subscriptions/%s", subscriptionID), body, &resp)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := time.Parse(time.RFC3339, resp.ExpirationDateTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiration: %w", err)
	}
	return exp, nil
}

// DeleteSubscription removes a subscription.
func (g *Gateway) DeleteSubscription(ctx context.Context, cred *out.Credential, subscriptionID string) error {
	req, err := g.newRequest(ctx, "DELETE", fmt.Sprintf("/subscriptions/%s", subscriptionID), nil)
	if err != nil {
		return err
	}
	return g.doRequest(ctx, cred, req, nil)
}

// HTTP helpers

func (g *Gateway) get(ctx context.Context, cred *out.Credential, path string, result any) error {
	req, err := g.newRequest(ctx, "GET", path, nil)
	if err != nil {
		return err
	}
	return g.doRequest(ctx, cred, req, result)
}

func (g *Gateway) post(ctx context.Context, cred *out.Credential, path string, body, result any) error {
	req, err := g.newRequest(ctx, "POST", path, body)
	if err != nil {
		return err
	}
	return g.doRequest(ctx, cred, req, result)
}

func (g *Gateway) patch(ctx context.Context, cred *out.Credential, path string, body any) error {
	return g.patchResult(ctx, cred, path, body, nil)
}

func (g *Gateway) patchResult(ctx context.Context, cred *out.Credential, path string, body, result any) error {
	req, err := g.newRequest(ctx, "PATCH", path, body)
	if err != nil {
		return err
	}
	return g.doRequest(ctx, cred, req, result)
}

func (g *Gateway) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, graphBaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (g *Gateway) doRequest(ctx context.Context, cred *out.Credential, req *http.Request, result any) error {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
	}))
	client.Timeout = g.timeout

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Callers distinguish a gone resource (message deleted,
		// subscription expired upstream) from transport failures.
		return apperr.NotFound("graph resource")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph API error: %d - %s", resp.StatusCode, string(body))
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// Graph API types

type graphMessage struct {
	ID               string           `json:"id"`
	ConversationID   string           `json:"conversationId"`
	Subject          string           `json:"subject"`
	BodyPreview      string           `json:"bodyPreview"`
	Body             graphBody        `json:"body"`
	From             graphRecipient   `json:"from"`
	ToRecipients     []graphRecipient `json:"toRecipients"`
	ReceivedDateTime string           `json:"receivedDateTime"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func convertMessage(msg *graphMessage) *out.MailboxMessage {
	m := &out.MailboxMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Subject:        msg.Subject,
		Body:           msg.Body.Content,
		BodyPreview:    msg.BodyPreview,
		FromName:       msg.From.EmailAddress.Name,
		FromEmail:      msg.From.EmailAddress.Address,
	}

	m.To = make([]string, len(msg.ToRecipients))
	for i, r := range msg.ToRecipients {
		m.To[i] = r.EmailAddress.Address
	}

	m.ReceivedAt, _ = time.Parse(time.RFC3339, msg.ReceivedDateTime)

	return m
}

// Ensure interface compliance
var _ out.MailboxGateway = (*Gateway)(nil)
