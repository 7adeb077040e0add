package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	idType, receiveID, msgType, content string
	err                                 error
}

func (f *fakeSender) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	f.idType, f.receiveID, f.msgType, f.content = receiveIDType, receiveID, msgType, content
	return "om_1", f.err
}

func TestNotifyPendingReview_SendsCard(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, Config{ReviewChatID: "oc_reviewers", ReviewURL: "https://books.example.com/review/"}, zap.NewNop())

	original := "doc-0"
	doc := &entity.Document{
		ID:            "doc-1",
		FileName:      "power.pdf",
		Category:      entity.FilingUtilityInvoices,
		IsDuplicate:   true,
		DuplicateOfID: &original,
		Extracted:     entity.ExtractedFields{VendorName: "Acme \"Power\"", Amount: 125.4, Date: "2026-02-03"},
	}
	require.NoError(t, n.NotifyPendingReview(context.Background(), doc))

	assert.Equal(t, "chat_id", sender.idType)
	assert.Equal(t, "oc_reviewers", sender.receiveID)
	assert.Equal(t, "interactive", sender.msgType)

	var card map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(sender.content), &card))
	assert.Equal(t, "orange", card["header"].(map[string]interface{})["template"])
	assert.Contains(t, sender.content, `Acme \"Power\"`)
	assert.Contains(t, sender.content, "$125.40")
	assert.Contains(t, sender.content, "https://books.example.com/review/doc-1")
}

func TestNotifyPendingReview_Errors(t *testing.T) {
	n := NewNotifier(&fakeSender{}, Config{}, zap.NewNop())
	assert.Error(t, n.NotifyPendingReview(context.Background(), &entity.Document{ID: "x"}))

	n = NewNotifier(&fakeSender{err: errors.New("code=99991663")}, Config{ReviewChatID: "oc"}, zap.NewNop())
	assert.Error(t, n.NotifyPendingReview(context.Background(), &entity.Document{ID: "x"}))
	assert.Error(t, n.NotifyPendingReview(context.Background(), nil))
}
