package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	convmodels "chat-companion/backend/conversation/models"
)

func TestResolveEventTextMessage(t *testing.T) {
	var u update
	require.NoError(t, json.Unmarshal([]byte(`{
		"update_id": 7,
		"message": {
			"message_id": 42,
			"from": {"id": 1, "first_name": "Ana", "language_code": "en"},
			"chat": {"id": 10},
			"text": "hello there"
		}
	}`), &u))

	ev := resolveEvent(&u)
	assert.Equal(t, eventMessage, ev.kind)
	assert.Equal(t, convmodels.ModalityText, ev.modality)
	assert.Equal(t, int64(10), ev.chatID)
	assert.Equal(t, int64(42), ev.msgID)
	assert.Equal(t, "hello there", ev.text)
	assert.Equal(t, "Ana", ev.from.FirstName)
}

func TestResolveEventVoiceMessage(t *testing.T) {
	u := update{Message: &inboundMessage{
		MessageID: 1,
		From:      &peer{ID: 1},
		Chat:      chatRef{ID: 10},
		Voice:     &fileRef{FileID: "voice-file"},
	}}

	ev := resolveEvent(&u)
	assert.Equal(t, eventMessage, ev.kind)
	assert.Equal(t, convmodels.ModalityAudio, ev.modality)
	assert.Equal(t, "voice-file", ev.fileID)
}

func TestResolveEventPicksLargestPhoto(t *testing.T) {
	u := update{Message: &inboundMessage{
		MessageID: 1,
		From:      &peer{ID: 1},
		Chat:      chatRef{ID: 10},
		Caption:   "look at this",
		Photo: []photoSize{
			{FileID: "thumb", FileSize: 900},
			{FileID: "full", FileSize: 90000},
			{FileID: "medium", FileSize: 9000},
		},
	}}

	ev := resolveEvent(&u)
	assert.Equal(t, convmodels.ModalityPhoto, ev.modality)
	assert.Equal(t, "full", ev.fileID)
	assert.Equal(t, "look at this", ev.text)
}

func TestResolveEventCallback(t *testing.T) {
	u := update{CallbackQuery: &callbackQuery{
		ID:      "cb-1",
		From:    peer{ID: 1},
		Data:    "generate_audio",
		Message: &inboundMessage{Chat: chatRef{ID: 10}},
	}}

	ev := resolveEvent(&u)
	assert.Equal(t, eventCallback, ev.kind)
	assert.Equal(t, "cb-1", ev.callbackID)
	assert.Equal(t, "generate_audio", ev.callbackData)
	assert.Equal(t, int64(10), ev.chatID)
}

func TestResolveEventPayment(t *testing.T) {
	u := update{Message: &inboundMessage{
		MessageID: 1,
		From:      &peer{ID: 1},
		Chat:      chatRef{ID: 10},
		SuccessfulPayment: &successfulPayment{
			Currency:       "USD",
			TotalAmount:    999,
			InvoicePayload: "buy_500",
		},
	}}

	ev := resolveEvent(&u)
	assert.Equal(t, eventPayment, ev.kind)
	require.NotNil(t, ev.payment)
	assert.Equal(t, "buy_500", ev.payment.InvoicePayload)
}

func TestResolveEventIgnoresEmptyUpdate(t *testing.T) {
	assert.Equal(t, eventIgnored, resolveEvent(&update{}).kind)
	assert.Equal(t, eventIgnored, resolveEvent(&update{Message: &inboundMessage{
		From: &peer{ID: 1}, Chat: chatRef{ID: 10},
	}}).kind)
}

func TestCreditsFromPayload(t *testing.T) {
	assert.Equal(t, int64(100), creditsFromPayload("buy_100"))
	assert.Equal(t, int64(500), creditsFromPayload("credits_500"))
	assert.Equal(t, int64(0), creditsFromPayload("buy_"))
	assert.Equal(t, int64(0), creditsFromPayload("nonsense"))
	assert.Equal(t, int64(0), creditsFromPayload("buy_abc"))
}
