package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	botmodels "chat-companion/backend/bots/models"
	"chat-companion/backend/conversation/models"
	media "chat-companion/backend/media/service"
	apperrors "chat-companion/backend/pkg/errors"
	"chat-companion/backend/pkg/logger"
)

// Options tune the dispatcher's budgets.
type Options struct {
	// MaxPayloadBytes bounds the serialized completion request.
	MaxPayloadBytes int
	// CompletionRetries is the retry budget after the initial attempt.
	CompletionRetries int
	RetryBackoff      time.Duration
	AudioPollAttempts int
	AudioPollDelay    time.Duration
}

// DefaultOptions mirror production settings.
func DefaultOptions() Options {
	return Options{
		MaxPayloadBytes:   8 * 1024,
		CompletionRetries: 3,
		RetryBackoff:      2 * time.Second,
		AudioPollAttempts: 5,
		AudioPollDelay:    5 * time.Second,
	}
}

// Turn is everything the dispatcher needs to generate one reply. It
// carries the immutable bot profile; nothing here is shared state.
type Turn struct {
	ChatID  int64
	Bot     botmodels.Profile
	Prompt  string
	History []ChatMessage
}

// Photo is a resolved media asset with its caption material.
type Photo struct {
	Name     string
	Data     []byte
	Caption  string
	Reaction string
}

// Result is the outcome of one generation. Exactly one field is set,
// matching the requested modality.
type Result struct {
	Text  string
	Audio []byte
	Photo *Photo
}

// Dispatcher routes a turn to the backend matching its modality. It
// commits no persistent state; the orchestrator persists results and
// debits the ledger.
type Dispatcher struct {
	completion CompletionBackend
	speech     SpeechBackend
	caption    CaptionBackend
	catalog    *media.Catalog
	opts       Options
	log        *logger.Logger

	// wait is replaceable in tests to keep retry timing observable
	// without real sleeps.
	wait func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(completion CompletionBackend, speech SpeechBackend, caption CaptionBackend, catalog *media.Catalog, opts Options, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		completion: completion,
		speech:     speech,
		caption:    caption,
		catalog:    catalog,
		opts:       opts,
		log:        log,
		wait:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Dispatch generates a result for the turn's modality.
func (d *Dispatcher) Dispatch(ctx context.Context, modality models.Modality, turn Turn) (*Result, error) {
	switch modality {
	case models.ModalityAudio:
		return d.dispatchAudio(ctx, turn)
	case models.ModalityPhoto:
		return d.dispatchPhoto(ctx, turn)
	default:
		return d.dispatchText(ctx, turn)
	}
}

func (d *Dispatcher) dispatchText(ctx context.Context, turn Turn) (*Result, error) {
	payload := d.buildPayload(turn.Bot.PersonaPrompt, turn.History)
	text, err := d.completeWithRetry(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text}, nil
}

func (d *Dispatcher) dispatchAudio(ctx context.Context, turn Turn) (*Result, error) {
	// The voice note speaks the bot's own reply, not the raw user text.
	payload := d.buildPayload(turn.Bot.PersonaPrompt, turn.History)
	text, err := d.completeWithRetry(ctx, payload)
	if err != nil {
		return nil, err
	}

	job, err := d.speech.Synthesize(ctx, text, turn.Bot.VoiceID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < d.opts.AudioPollAttempts; attempt++ {
		if job.Status == SpeechStatusCompleted && job.Audio != nil {
			return &Result{Text: text, Audio: job.Audio}, nil
		}
		if job.Status == SpeechStatusFailed {
			return nil, fmt.Errorf("%w: synthesis job %s failed", apperrors.ErrExhaustedRetries, job.ID)
		}

		if err := d.wait(ctx, d.opts.AudioPollDelay); err != nil {
			return nil, err
		}
		job, err = d.speech.PollStatus(ctx, job.ID)
		if err != nil {
			return nil, err
		}
	}

	if job.Status == SpeechStatusCompleted && job.Audio != nil {
		return &Result{Text: text, Audio: job.Audio}, nil
	}
	return nil, fmt.Errorf("%w: synthesis did not complete in time", apperrors.ErrExhaustedRetries)
}

func (d *Dispatcher) dispatchPhoto(ctx context.Context, turn Turn) (*Result, error) {
	names, err := d.catalog.Names(ctx)
	if err != nil {
		return nil, err
	}

	answer, err := d.completeWithRetry(ctx, []ChatMessage{
		{Role: "system", Content: photoPickerPrompt(turn.Prompt, names)},
	})
	if err != nil {
		return nil, err
	}

	name := media.Resolve(names, firstPick(answer))
	data, err := d.catalog.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %q: %v", apperrors.ErrTransientBackend, name, err)
	}

	caption, err := d.caption.Caption(ctx, data)
	if err != nil {
		return nil, err
	}

	reaction, err := d.completeWithRetry(ctx, []ChatMessage{
		{Role: "system", Content: reactionPrompt(turn.Bot.PersonaPrompt, caption)},
	})
	if err != nil {
		return nil, err
	}

	return &Result{Photo: &Photo{Name: name, Data: data, Caption: caption, Reaction: reaction}}, nil
}

// completeWithRetry calls the completion backend with the configured
// budget: one initial attempt plus CompletionRetries, separated by the
// fixed backoff, retrying on transient failures and empty responses.
func (d *Dispatcher) completeWithRetry(ctx context.Context, messages []ChatMessage) (string, error) {
	attempts := 1 + d.opts.CompletionRetries
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := d.wait(ctx, d.opts.RetryBackoff); err != nil {
				return "", err
			}
		}

		text, err := d.completion.Complete(ctx, messages)
		if err == nil {
			return text, nil
		}

		if !errors.Is(err, apperrors.ErrTransientBackend) && !errors.Is(err, apperrors.ErrEmptyResult) {
			return "", err
		}
		lastErr = err
		d.log.Warn("completion attempt failed", "attempt", attempt+1, "error", err.Error())
	}

	return "", fmt.Errorf("%w: %v", apperrors.ErrExhaustedRetries, lastErr)
}

// buildPayload assembles system prompt plus history, evicting the oldest
// history messages until the serialized request fits the byte budget.
// The system prompt is never evicted.
func (d *Dispatcher) buildPayload(systemPrompt string, history []ChatMessage) []ChatMessage {
	system := ChatMessage{Role: "system", Content: systemPrompt}

	size := messageSize(system)
	for _, m := range history {
		size += messageSize(m)
	}

	for size > d.opts.MaxPayloadBytes && len(history) > 0 {
		size -= messageSize(history[0])
		history = history[1:]
	}

	payload := make([]ChatMessage, 0, len(history)+1)
	payload = append(payload, system)
	return append(payload, history...)
}

func messageSize(m ChatMessage) int {
	data, err := json.Marshal(m)
	if err != nil {
		return len(m.Role) + len(m.Content)
	}
	return len(data)
}

// firstPick extracts the first file name from a picker answer, which may
// list several separated by semicolons and carry bullet markers.
func firstPick(answer string) string {
	answer = strings.ReplaceAll(answer, "•", "")
	if idx := strings.IndexByte(answer, ';'); idx >= 0 {
		answer = answer[:idx]
	}
	return strings.TrimSpace(answer)
}

func photoPickerPrompt(description string, names []string) string {
	var b strings.Builder
	b.WriteString("You are the best photo picker based on a description software in the world.\n")
	b.WriteString("Task: Given a list of file names and a descriptive text, find the file name that best matches the description. ")
	b.WriteString("Return only the exact file name that matches the description.\n")
	b.WriteString("Description: ")
	b.WriteString(description)
	b.WriteString("\nList of Files:\n")
	for _, name := range names {
		b.WriteString("• ")
		b.WriteString(name)
		b.WriteByte('\n')
	}
	b.WriteString("Select the file name that best matches the description above. ")
	b.WriteString("If more than one could match, order by best match and separate files by semicolon. ")
	b.WriteString("If no match at all then reply with the most closest option, always return at least one filename.")
	return b.String()
}

func reactionPrompt(persona, caption string) string {
	return fmt.Sprintf(
		"%s\nYou just sent the user a photo of yourself described as: %q. "+
			"React to sharing it in character, in one or two short sentences. "+
			"Do not mention that the description exists.",
		persona, caption,
	)
}
