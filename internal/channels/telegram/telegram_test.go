package telegram

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chora-ai/chai/internal/channels"
	"github.com/chora-ai/chai/internal/model"
)

func TestHandleWebhookRejectsWrongSecret(t *testing.T) {
	queue := channels.NewInboundQueue(1)
	c, err := New(Config{Token: "t", Mode: ModeWebhook, WebhookSecret: "s3cret"}, queue)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	rec := httptest.NewRecorder()

	c.HandleWebhook(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleWebhookAcceptsUpdateAndQueues(t *testing.T) {
	queue := channels.NewInboundQueue(1)
	c, err := New(Config{Token: "t", Mode: ModeWebhook}, queue)
	require.NoError(t, err)

	body := `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()

	c.HandleWebhook(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	msg := <-queue.C()
	require.Equal(t, "42", msg.ConversationID)
	require.Equal(t, "hello", msg.Text)
	require.Equal(t, "telegram", msg.ChannelID)
}

func TestHandleWebhookReturnsServiceUnavailableOnFullQueue(t *testing.T) {
	queue := channels.NewInboundQueue(1)
	require.NoError(t, queue.Push(model.InboundMessage{ChannelID: "telegram", ConversationID: "1", Text: "filler"}))

	c, err := New(Config{Token: "t", Mode: ModeWebhook}, queue)
	require.NoError(t, err)

	body := `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()

	c.HandleWebhook(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
