package service

import (
	"context"
	"time"

	botmodels "chat-companion/backend/bots/models"
	"chat-companion/backend/conversation/repository"
	"chat-companion/backend/gateway"
	"chat-companion/backend/pkg/logger"
)

// TurnRequest carries everything one generation turn needs. Bot is an
// immutable snapshot taken when the webhook resolved the request, so a
// concurrent profile change never leaks into a running turn.
type TurnRequest struct {
	ChatID  int64
	UserID  int64
	Bot     botmodels.Profile
	Gateway gateway.MessagingGateway
}

// TurnQueue debounces rapid-fire messages into one turn. Every inbound
// message enqueues; each enqueue waits out the debounce window, then
// re-reads the chat's NEW messages newest first. If a message newer than
// this enqueue's start exists, another enqueue owns the turn and this
// one drops out. The survivor hands the whole batch to the orchestrator.
type TurnQueue struct {
	messages     repository.MessageRepository
	orchestrator *Orchestrator
	debounce     time.Duration
	log          *logger.Logger

	// wait is replaceable in tests.
	wait func(ctx context.Context, d time.Duration) error
}

func NewTurnQueue(messages repository.MessageRepository, orchestrator *Orchestrator, debounce time.Duration, log *logger.Logger) *TurnQueue {
	return &TurnQueue{
		messages:     messages,
		orchestrator: orchestrator,
		debounce:     debounce,
		log:          log,
		wait: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

// Enqueue schedules a turn attempt for the chat. It returns immediately;
// the attempt runs on its own goroutine.
func (q *TurnQueue) Enqueue(req TurnRequest) {
	start := time.Now()
	go q.attempt(req, start)
}

func (q *TurnQueue) attempt(req TurnRequest, start time.Time) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("turn attempt panicked", "chat_id", req.ChatID, "panic", r)
		}
	}()

	ctx := context.Background()
	if err := q.wait(ctx, q.debounce); err != nil {
		return
	}

	batch, err := q.messages.Unprocessed(req.ChatID)
	if err != nil {
		q.log.LogError(err, "reading unprocessed batch", "chat_id", req.ChatID)
		return
	}
	if len(batch) == 0 {
		// Another attempt already consumed the batch.
		return
	}

	// Newest message first. If it arrived after this attempt started,
	// its own enqueue restarted the clock and owns the turn.
	if batch[0].CreatedAt.After(start) {
		return
	}

	q.orchestrator.ProcessTurn(ctx, req, batch)
}
