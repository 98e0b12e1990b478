package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat-companion/backend/ai"
	"chat-companion/backend/conversation/models"
	"chat-companion/backend/conversation/repository"
	"chat-companion/backend/gateway"
	ledgermodels "chat-companion/backend/ledger/models"
	apperrors "chat-companion/backend/pkg/errors"
	"chat-companion/backend/pkg/logger"
)

// Turn lifecycle states, logged at each transition.
const (
	stateReceived   = "RECEIVED"
	stateBatched    = "BATCHED"
	stateDispatched = "DISPATCHED"
	stateCompleted  = "COMPLETED"
	stateFailed     = "FAILED"
)

// Placeholder texts shown while media generation runs. The animator
// cycles dots after them.
const (
	audioPlaceholder = "Generating audio, please wait"
	photoPlaceholder = "Selecting exclusive photo, please wait"

	audioDoneText = "Audio generated successfully."
	photoDoneText = "Photo selected successfully."
)

// Generator produces a result for one turn. Satisfied by ai.Dispatcher.
type Generator interface {
	Dispatch(ctx context.Context, modality models.Modality, turn ai.Turn) (*ai.Result, error)
}

// CreditLedger is the slice of the ledger the orchestrator needs.
type CreditLedger interface {
	Balance(userID int64, botID uint) (int64, error)
	Debit(chatID, userID int64, botID uint, cost int64, entryType string) error
}

// Costs are the per-modality credit deltas, negative for charges.
type Costs struct {
	Text  int64
	Audio int64
	Photo int64
}

// Orchestrator drives one turn end to end: batch, preflight, dispatch,
// deliver, persist, debit. Failures end in an apology and never escape.
type Orchestrator struct {
	messages  repository.MessageRepository
	tracker   *Tracker
	generator Generator
	ledger    CreditLedger
	animator  *Animator
	costs     Costs
	log       *logger.Logger
}

func NewOrchestrator(messages repository.MessageRepository, tracker *Tracker, generator Generator, ledger CreditLedger, animator *Animator, costs Costs, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		messages:  messages,
		tracker:   tracker,
		generator: generator,
		ledger:    ledger,
		animator:  animator,
		costs:     costs,
		log:       log,
	}
}

// ProcessTurn runs one turn for the batch. The batch arrives newest
// first from the queue.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest, batch []models.Message) {
	log := o.log.WithChat(req.ChatID).WithBot(req.Bot.ID)
	log.Info("turn", "state", stateReceived, "batch_size", len(batch))

	ids := make([]uint, len(batch))
	for i, m := range batch {
		ids[i] = m.ID
	}
	if err := o.messages.UpdateStatuses(ids, models.StatusPending); err != nil {
		log.LogError(err, "marking batch pending")
		return
	}
	log.Info("turn", "state", stateBatched)

	modality, err := o.resolveModality(req.ChatID)
	if err != nil {
		log.LogError(err, "resolving turn modality")
		o.fail(ctx, req, modality, ids, 0, log)
		return
	}

	cost := o.costFor(modality)
	if err := o.preflight(ctx, req, cost); err != nil {
		log.Warn("turn refused", "error", err.Error())
		o.finishBatch(ids, models.StatusError, log)
		return
	}

	turn, err := o.buildTurn(req, batch)
	if err != nil {
		log.LogError(err, "building turn")
		o.fail(ctx, req, modality, ids, 0, log)
		return
	}

	statusMsgID, err := o.announce(ctx, req, modality)
	if err != nil {
		// Announcement is cosmetic, generation still proceeds.
		log.Warn("sending status message failed", "error", err.Error())
	}

	log.Info("turn", "state", stateDispatched, "modality", string(modality))
	animCtx, cancelAnim := context.WithCancel(ctx)
	animDone := make(chan struct{})
	if statusMsgID != 0 {
		go func() {
			defer close(animDone)
			o.animator.Animate(animCtx, req.Gateway, req.ChatID, statusMsgID, placeholderBase(modality))
		}()
	} else {
		close(animDone)
	}

	started := time.Now()
	result, err := o.generator.Dispatch(ctx, modality, turn)
	cancelAnim()
	// The final text is written only after the last animation tick has
	// settled.
	<-animDone
	generationSeconds.WithLabelValues(string(modality)).Observe(time.Since(started).Seconds())

	if err != nil {
		log.LogError(err, "generation failed", "modality", string(modality))
		o.fail(ctx, req, modality, ids, statusMsgID, log)
		return
	}

	stored, err := o.deliver(ctx, req, modality, result, statusMsgID)
	if err != nil {
		log.LogError(err, "delivering result", "modality", string(modality))
		o.fail(ctx, req, modality, ids, statusMsgID, log)
		return
	}

	o.fillPlaceholder(req.ChatID, stored, log)
	o.finishBatch(ids, models.StatusDone, log)

	if cost != 0 {
		if err := o.ledger.Debit(req.ChatID, req.UserID, req.Bot.ID, cost, entryTypeFor(modality)); err != nil {
			log.LogError(err, "debiting turn", "modality", string(modality))
		}
	}

	turnsCompleted.WithLabelValues(string(modality)).Inc()
	log.Info("turn", "state", stateCompleted, "modality", string(modality))
}

// resolveModality consults the awaiting tracker and closes the record it
// consumes. A chat with no open record gets a plain text turn.
func (o *Orchestrator) resolveModality(chatID int64) (models.Modality, error) {
	pending, ok, err := o.tracker.Pending(chatID)
	if err != nil {
		return models.ModalityText, err
	}
	if !ok {
		return models.ModalityText, nil
	}
	if err := o.tracker.Clear(chatID); err != nil {
		return models.ModalityText, err
	}
	return pending, nil
}

func (o *Orchestrator) costFor(modality models.Modality) int64 {
	switch modality {
	case models.ModalityAudio:
		return o.costs.Audio
	case models.ModalityPhoto:
		return o.costs.Photo
	default:
		return o.costs.Text
	}
}

func entryTypeFor(modality models.Modality) string {
	switch modality {
	case models.ModalityAudio:
		return ledgermodels.TypeAudioGen
	case models.ModalityPhoto:
		return ledgermodels.TypePhotoGen
	default:
		return ledgermodels.TypeTextGen
	}
}

func placeholderBase(modality models.Modality) string {
	if modality == models.ModalityPhoto {
		return photoPlaceholder
	}
	return audioPlaceholder
}

// preflight refuses chargeable generation when the balance is spent.
// The debit itself happens only after a successful turn.
func (o *Orchestrator) preflight(ctx context.Context, req TurnRequest, cost int64) error {
	if cost >= 0 {
		return nil
	}
	balance, err := o.ledger.Balance(req.UserID, req.Bot.ID)
	if err != nil {
		return err
	}
	if balance > 0 {
		return nil
	}

	text := fmt.Sprintf("You don't have enough credits to continue. Current balance: %d.", balance)
	if _, err := req.Gateway.SendWithButtons(ctx, req.ChatID, text, purchaseButtons()); err != nil {
		o.log.Warn("sending balance notice failed", "chat_id", req.ChatID, "error", err.Error())
	}
	return fmt.Errorf("%w: balance %d", apperrors.ErrInsufficientCredits, balance)
}

func purchaseButtons() [][]gateway.Button {
	return [][]gateway.Button{
		{{Text: "Buy 100 credits", Data: "buy_100"}},
		{{Text: "Buy 500 credits", Data: "buy_500"}},
	}
}

// buildTurn assembles the full prompt context for the batch.
func (o *Orchestrator) buildTurn(req TurnRequest, batch []models.Message) (ai.Turn, error) {
	history, err := o.messages.History(req.ChatID, req.Bot.ID)
	if err != nil {
		return ai.Turn{}, err
	}

	chat := make([]ai.ChatMessage, 0, len(history))
	for _, m := range history {
		chat = append(chat, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}

	// Batch arrives newest first; the prompt reads oldest first.
	parts := make([]string, 0, len(batch))
	for i := len(batch) - 1; i >= 0; i-- {
		parts = append(parts, batch[i].Content)
	}

	return ai.Turn{
		ChatID:  req.ChatID,
		Bot:     req.Bot,
		Prompt:  strings.Join(parts, "\n"),
		History: chat,
	}, nil
}

// announce shows the user that work started: a typing indicator for text
// turns, an editable placeholder message for media turns.
func (o *Orchestrator) announce(ctx context.Context, req TurnRequest, modality models.Modality) (int64, error) {
	switch modality {
	case models.ModalityAudio, models.ModalityPhoto:
		return req.Gateway.Send(ctx, req.ChatID, placeholderBase(modality)+"...")
	default:
		return 0, req.Gateway.SendTyping(ctx, req.ChatID)
	}
}

// deliver sends the result to the user and returns the content to store
// on the assistant row.
func (o *Orchestrator) deliver(ctx context.Context, req TurnRequest, modality models.Modality, result *ai.Result, statusMsgID int64) (string, error) {
	switch modality {
	case models.ModalityAudio:
		if err := req.Gateway.SendVoice(ctx, req.ChatID, result.Audio); err != nil {
			return "", err
		}
		o.finalizeStatus(ctx, req, statusMsgID, audioDoneText)
		return result.Text, nil

	case models.ModalityPhoto:
		if err := req.Gateway.SendPhoto(ctx, req.ChatID, result.Photo.Data, result.Photo.Reaction); err != nil {
			return "", err
		}
		o.finalizeStatus(ctx, req, statusMsgID, photoDoneText)
		return result.Photo.Reaction, nil

	default:
		for _, sentence := range splitSentences(result.Text) {
			if _, err := req.Gateway.Send(ctx, req.ChatID, sentence); err != nil {
				return "", err
			}
		}
		return result.Text, nil
	}
}

func (o *Orchestrator) finalizeStatus(ctx context.Context, req TurnRequest, statusMsgID int64, text string) {
	if statusMsgID == 0 {
		return
	}
	if err := req.Gateway.Edit(ctx, req.ChatID, statusMsgID, text); err != nil {
		o.log.Warn("finalizing status message failed", "chat_id", req.ChatID, "error", err.Error())
	}
}

// fillPlaceholder writes the reply into the assistant row inserted at
// ingestion and flips it DONE, making it part of future context.
func (o *Orchestrator) fillPlaceholder(chatID int64, content string, log *logger.Logger) {
	placeholder, err := o.messages.LatestPlaceholder(chatID)
	if err != nil {
		log.LogError(err, "finding assistant placeholder")
		return
	}
	if placeholder == nil {
		log.Warn("no assistant placeholder to fill")
		return
	}
	if err := o.messages.UpdateContent(placeholder.ID, content); err != nil {
		log.LogError(err, "filling assistant placeholder")
		return
	}
	if err := o.messages.UpdateStatus(placeholder.ID, models.StatusDone); err != nil {
		log.LogError(err, "completing assistant placeholder")
	}
}

func (o *Orchestrator) finishBatch(ids []uint, status string, log *logger.Logger) {
	if err := o.messages.UpdateStatuses(ids, status); err != nil {
		log.LogError(err, "updating batch status", "status", status)
	}
}

// fail apologizes and parks the batch: text turns return to NEW so a
// later message retries them, media turns are terminal.
func (o *Orchestrator) fail(ctx context.Context, req TurnRequest, modality models.Modality, ids []uint, statusMsgID int64, log *logger.Logger) {
	apology := req.Bot.ApologyText
	if statusMsgID != 0 {
		if err := req.Gateway.Edit(ctx, req.ChatID, statusMsgID, apology); err != nil {
			log.Warn("editing apology failed", "error", err.Error())
		}
	} else if _, err := req.Gateway.Send(ctx, req.ChatID, apology); err != nil {
		log.Warn("sending apology failed", "error", err.Error())
	}

	status := models.StatusError
	if modality == models.ModalityText || modality == "" {
		status = models.StatusNew
	}
	o.finishBatch(ids, status, log)

	turnsFailed.WithLabelValues(string(modality)).Inc()
	log.Info("turn", "state", stateFailed, "modality", string(modality))
}

// splitSentences breaks a reply at sentence boundaries so long answers
// arrive as several natural messages. A boundary is terminal punctuation
// followed by whitespace.
func splitSentences(text string) []string {
	var parts []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && text[i+1] == ' ' {
			// Consume a run of terminal punctuation before cutting.
			end := i + 1
			j := end
			for j < len(text) && text[j] == ' ' {
				j++
			}
			if part := strings.TrimSpace(text[start:end]); part != "" {
				parts = append(parts, part)
			}
			start = j
			i = j - 1
		}
	}
	if part := strings.TrimSpace(text[start:]); part != "" {
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return []string{text}
	}
	return parts
}
