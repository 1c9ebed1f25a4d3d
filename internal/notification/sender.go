// Package notification delivers approval prompts and outcome messages
// through the WhatsApp template gateway.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parnurzeal/gorequest"
	"go.uber.org/zap"

	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/metrics"
)

// Template names known to the gateway.
const (
	TemplateApprovalPrompt  = "approval_prompt"
	TemplateApprovalOutcome = "approval_outcome"
)

// Button is one action button embedded in a template message.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Message is an outbound template message.
type Message struct {
	Phone    string   `json:"phone"`
	Template string   `json:"template"`
	Body     string   `json:"body"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// Sender delivers a message through a channel. Delivery is best-effort;
// callers never let a send failure affect approval state.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// WhatsAppSender posts template messages to the WhatsApp gateway API.
type WhatsAppSender struct {
	apiURL  string
	apiKey  string
	timeout time.Duration
}

// NewWhatsAppSender creates a gateway sender.
func NewWhatsAppSender(apiURL, apiKey string) *WhatsAppSender {
	return &WhatsAppSender{
		apiURL:  strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		timeout: 10 * time.Second,
	}
}

// Send posts one template message. Non-2xx gateway responses are errors.
func (s *WhatsAppSender) Send(ctx context.Context, msg Message) error {
	if msg.Phone == "" {
		return fmt.Errorf("message has no destination phone")
	}
	if msg.Template == "" {
		return fmt.Errorf("message has no template")
	}

	resp, body, errs := gorequest.New().
		Post(s.apiURL+"/v1/messages").
		Set("Authorization", "Bearer "+s.apiKey).
		Timeout(s.timeout).
		SendStruct(&msg).
		End()
	if len(errs) > 0 {
		metrics.MessagesSent.WithLabelValues(msg.Template, "error").Inc()
		return fmt.Errorf("post whatsapp message: %v", errs[0])
	}
	if resp.StatusCode >= 300 {
		metrics.MessagesSent.WithLabelValues(msg.Template, "rejected").Inc()
		return fmt.Errorf("whatsapp gateway returned %d: %s", resp.StatusCode, body)
	}

	metrics.MessagesSent.WithLabelValues(msg.Template, "sent").Inc()
	logger.Debug("whatsapp message sent",
		zap.String("template", msg.Template),
		zap.String("phone", maskPhone(msg.Phone)),
	)
	return nil
}

// NoopSender logs instead of sending, for environments without a gateway.
type NoopSender struct{}

// Send logs the message and succeeds.
func (NoopSender) Send(_ context.Context, msg Message) error {
	metrics.MessagesSent.WithLabelValues(msg.Template, "skipped").Inc()
	logger.Info("notification gateway disabled, message dropped",
		zap.String("template", msg.Template),
		zap.String("phone", maskPhone(msg.Phone)),
		zap.String("body", msg.Body),
	)
	return nil
}

var (
	_ Sender = (*WhatsAppSender)(nil)
	_ Sender = NoopSender{}
)

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
