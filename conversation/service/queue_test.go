package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-companion/backend/ai"
	"chat-companion/backend/conversation/models"
	"chat-companion/backend/pkg/logger"
)

func newTestQueue(h *harness) *TurnQueue {
	log := logger.New(logger.Config{Level: "error"})
	q := NewTurnQueue(h.messages, h.orch, 3*time.Second, log)
	q.wait = func(ctx context.Context, d time.Duration) error { return nil }
	return q
}

func TestQueueRunsTurnForSettledBatch(t *testing.T) {
	h := newHarness(t)
	q := newTestQueue(h)
	h.seed("hello")
	h.generator.result = &ai.Result{Text: "hi"}

	q.attempt(h.request(), time.Now())

	assert.Equal(t, 1, h.generator.calls)
}

func TestQueueSkipsWhenNewerMessageArrived(t *testing.T) {
	h := newHarness(t)
	q := newTestQueue(h)
	start := time.Now()

	// A message lands after this attempt started; its own enqueue owns
	// the turn.
	h.messages.add(models.Message{
		ChatID: 10, BotID: 1, UserID: 1,
		Role: models.RoleUser, Modality: models.ModalityText,
		Content: "newer", Status: models.StatusNew,
		CreatedAt: start.Add(time.Second),
	})

	q.attempt(h.request(), start)

	assert.Zero(t, h.generator.calls)
}

func TestQueueNoOpOnEmptyBatch(t *testing.T) {
	h := newHarness(t)
	q := newTestQueue(h)

	q.attempt(h.request(), time.Now())

	assert.Zero(t, h.generator.calls)
}

func TestRapidMessagesCollapseIntoOneTurn(t *testing.T) {
	h := newHarness(t)
	q := newTestQueue(h)
	h.generator.result = &ai.Result{Text: "hi"}

	base := time.Now()
	h.messages.add(models.Message{
		ChatID: 10, BotID: 1, UserID: 1,
		Role: models.RoleUser, Modality: models.ModalityText,
		Content: "part one", Status: models.StatusNew,
		CreatedAt: base,
	})
	h.messages.add(models.Message{
		ChatID: 10, BotID: 1, UserID: 1,
		Role: models.RoleUser, Modality: models.ModalityText,
		Content: "part two", Status: models.StatusNew,
		CreatedAt: base.Add(50 * time.Millisecond),
	})

	// The first message's attempt started before the second arrived and
	// yields to it.
	q.attempt(h.request(), base.Add(10*time.Millisecond))
	require.Zero(t, h.generator.calls)

	// The second attempt survives its debounce window and batches both.
	q.attempt(h.request(), base.Add(100*time.Millisecond))
	require.Equal(t, 1, h.generator.calls)
	assert.Equal(t, "part one\npart two", h.generator.turn.Prompt)

	// Nothing left for a third attempt.
	q.attempt(h.request(), time.Now())
	assert.Equal(t, 1, h.generator.calls)
}
