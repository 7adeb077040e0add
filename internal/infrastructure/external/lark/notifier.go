package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"go.uber.org/zap"
)

// messageSender is satisfied by *SDKClient
type messageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Notifier implements port.ReviewNotifier with an interactive Lark card
type Notifier struct {
	sender        messageSender
	receiveID     string
	receiveIDType string
	reviewURL     string
	logger        *zap.Logger
}

var _ port.ReviewNotifier = (*Notifier)(nil)

// NewNotifier creates a review notifier
func NewNotifier(sender messageSender, cfg Config, logger *zap.Logger) *Notifier {
	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = "chat_id"
	}
	return &Notifier{
		sender:        sender,
		receiveID:     cfg.ReviewChatID,
		receiveIDType: idType,
		reviewURL:     strings.TrimRight(cfg.ReviewURL, "/"),
		logger:        logger,
	}
}

// NotifyPendingReview posts a card describing a document that waits for review
func (n *Notifier) NotifyPendingReview(ctx context.Context, doc *entity.Document) error {
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if n.receiveID == "" {
		return fmt.Errorf("review chat is not configured")
	}

	card, err := json.Marshal(n.buildCard(doc))
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, n.receiveIDType, n.receiveID, "interactive", string(card))
	if err != nil {
		return fmt.Errorf("failed to send review card: %w", err)
	}

	n.logger.Info("Review notification sent",
		zap.String("document_id", doc.ID),
		zap.String("message_id", messageID))
	return nil
}

func (n *Notifier) buildCard(doc *entity.Document) map[string]interface{} {
	fields := doc.Extracted
	vendor := fields.VendorName
	if vendor == "" {
		vendor = "Unknown"
	}

	lines := []string{
		fmt.Sprintf("**File:** %s", doc.FileName),
		fmt.Sprintf("**Vendor:** %s", vendor),
		fmt.Sprintf("**Amount:** $%.2f", fields.Amount),
		fmt.Sprintf("**Category:** %s", doc.Category),
		fmt.Sprintf("**Suggested path:** %s", fields.SuggestedPath),
	}
	if fields.Date != "" {
		lines = append(lines, fmt.Sprintf("**Date:** %s", fields.Date))
	}
	if doc.IsDuplicate {
		lines = append(lines, fmt.Sprintf("**Possible duplicate of:** %s", stringOrEmpty(doc.DuplicateOfID)))
	}

	template := "blue"
	title := "Document ready for review"
	if doc.IsDuplicate {
		template = "orange"
		title = "Possible duplicate document"
	}

	elements := []interface{}{
		map[string]interface{}{
			"tag":  "div",
			"text": map[string]interface{}{"tag": "lark_md", "content": strings.Join(lines, "\n")},
		},
	}
	if n.reviewURL != "" {
		elements = append(elements, map[string]interface{}{
			"tag": "action",
			"actions": []interface{}{map[string]interface{}{
				"tag":  "button",
				"text": map[string]interface{}{"tag": "plain_text", "content": "Open review queue"},
				"type": "primary",
				"url":  n.reviewURL + "/" + doc.ID,
			}},
		})
	}

	return map[string]interface{}{
		"config": map[string]interface{}{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"template": template,
			"title":    map[string]interface{}{"tag": "plain_text", "content": title},
		},
		"elements": elements,
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
