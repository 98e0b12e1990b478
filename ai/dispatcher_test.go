package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	botmodels "chat-companion/backend/bots/models"
	"chat-companion/backend/conversation/models"
	media "chat-companion/backend/media/service"
	apperrors "chat-companion/backend/pkg/errors"
	"chat-companion/backend/pkg/logger"
)

type fakeCompletion struct {
	replies []string
	errs    []error
	calls   int
	lastMsg []ChatMessage
}

func (f *fakeCompletion) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	i := f.calls
	f.calls++
	f.lastMsg = messages
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return f.replies[len(f.replies)-1], nil
}

type fakeSpeech struct {
	jobs  []*SpeechJob
	polls int
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text, voiceID string) (*SpeechJob, error) {
	return f.jobs[0], nil
}

func (f *fakeSpeech) PollStatus(ctx context.Context, jobID string) (*SpeechJob, error) {
	f.polls++
	idx := f.polls
	if idx >= len(f.jobs) {
		idx = len(f.jobs) - 1
	}
	return f.jobs[idx], nil
}

type fakeCaption struct{ caption string }

func (f *fakeCaption) Caption(ctx context.Context, image []byte) (string, error) {
	return f.caption, nil
}

type fakeAssets struct {
	files map[string][]byte
}

func (f *fakeAssets) List(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(f.files))
	for name := range f.files {
		out[name] = name
	}
	return out, nil
}

func (f *fakeAssets) Fetch(ctx context.Context, name string) ([]byte, error) {
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("no asset %q", name)
	}
	return data, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func testOptions() Options {
	return Options{
		MaxPayloadBytes:   8 * 1024,
		CompletionRetries: 3,
		RetryBackoff:      2 * time.Second,
		AudioPollAttempts: 5,
		AudioPollDelay:    5 * time.Second,
	}
}

// newTestDispatcher wires fakes and replaces the wait func with a
// recorder so retry timing is observable without sleeping.
func newTestDispatcher(completion CompletionBackend, speech SpeechBackend, caption CaptionBackend, assets *fakeAssets, opts Options) (*Dispatcher, *[]time.Duration) {
	var catalog *media.Catalog
	if assets != nil {
		catalog = media.NewCatalog(assets, time.Hour, 1, testLogger())
	}
	d := NewDispatcher(completion, speech, caption, catalog, opts, testLogger())

	waits := &[]time.Duration{}
	d.wait = func(ctx context.Context, dur time.Duration) error {
		*waits = append(*waits, dur)
		return nil
	}
	return d, waits
}

func testTurn(history ...ChatMessage) Turn {
	return Turn{
		ChatID: 1,
		Bot: botmodels.Profile{
			ID:            1,
			PersonaPrompt: "You are Mia.",
			VoiceID:       "mia-voice",
		},
		Prompt:  "hello",
		History: history,
	}
}

func TestTextDispatchReturnsCompletion(t *testing.T) {
	completion := &fakeCompletion{replies: []string{"hey there"}}
	d, _ := newTestDispatcher(completion, nil, nil, nil, testOptions())

	result, err := d.Dispatch(context.Background(), models.ModalityText, testTurn())
	require.NoError(t, err)
	assert.Equal(t, "hey there", result.Text)
	assert.Equal(t, 1, completion.calls)
}

func TestCompletionRetriesOnTransientThenSucceeds(t *testing.T) {
	transient := fmt.Errorf("%w: 503", apperrors.ErrTransientBackend)
	completion := &fakeCompletion{
		replies: []string{"", "", "finally"},
		errs:    []error{transient, transient, nil},
	}
	d, waits := newTestDispatcher(completion, nil, nil, nil, testOptions())

	result, err := d.Dispatch(context.Background(), models.ModalityText, testTurn())
	require.NoError(t, err)
	assert.Equal(t, "finally", result.Text)
	assert.Equal(t, 3, completion.calls)
	// Each retry is preceded by the fixed backoff.
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *waits)
}

func TestCompletionExhaustsRetryBudget(t *testing.T) {
	transient := fmt.Errorf("%w: 503", apperrors.ErrTransientBackend)
	completion := &fakeCompletion{
		replies: []string{""},
		errs:    []error{transient, transient, transient, transient, transient},
	}
	d, waits := newTestDispatcher(completion, nil, nil, nil, testOptions())

	_, err := d.Dispatch(context.Background(), models.ModalityText, testTurn())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExhaustedRetries)
	// One initial attempt plus three retries.
	assert.Equal(t, 4, completion.calls)
	assert.Len(t, *waits, 3)
}

func TestCompletionStopsOnTerminalError(t *testing.T) {
	terminal := errors.New("invalid api key")
	completion := &fakeCompletion{replies: []string{""}, errs: []error{terminal}}
	d, _ := newTestDispatcher(completion, nil, nil, nil, testOptions())

	_, err := d.Dispatch(context.Background(), models.ModalityText, testTurn())
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrExhaustedRetries)
	assert.Equal(t, 1, completion.calls)
}

func TestPayloadTrimsOldestButKeepsSystemPrompt(t *testing.T) {
	opts := testOptions()
	opts.MaxPayloadBytes = 400

	d, _ := newTestDispatcher(&fakeCompletion{replies: []string{"x"}}, nil, nil, nil, opts)

	long := strings.Repeat("a", 200)
	history := []ChatMessage{
		{Role: "USER", Content: "oldest " + long},
		{Role: "ASSISTANT", Content: "middle " + long},
		{Role: "USER", Content: "newest"},
	}

	payload := d.buildPayload("persona", history)

	total := 0
	for _, m := range payload {
		total += messageSize(m)
	}
	assert.LessOrEqual(t, total, opts.MaxPayloadBytes)

	require.NotEmpty(t, payload)
	assert.Equal(t, "system", payload[0].Role)
	assert.Equal(t, "persona", payload[0].Content)
	// Oldest history entries are the ones evicted.
	assert.Equal(t, "newest", payload[len(payload)-1].Content)
	for _, m := range payload[1:] {
		assert.NotContains(t, m.Content, "oldest")
	}
}

func TestAudioDispatchPollsUntilCompleted(t *testing.T) {
	completion := &fakeCompletion{replies: []string{"spoken reply"}}
	speech := &fakeSpeech{jobs: []*SpeechJob{
		{ID: "job-1", Status: SpeechStatusPending},
		{ID: "job-1", Status: SpeechStatusPending},
		{ID: "job-1", Status: SpeechStatusCompleted, Audio: []byte("ogg")},
	}}
	d, _ := newTestDispatcher(completion, speech, nil, nil, testOptions())

	result, err := d.Dispatch(context.Background(), models.ModalityAudio, testTurn())
	require.NoError(t, err)
	assert.Equal(t, []byte("ogg"), result.Audio)
	assert.Equal(t, "spoken reply", result.Text)
	assert.Equal(t, 2, speech.polls)
}

func TestAudioDispatchGivesUpAfterPollBudget(t *testing.T) {
	completion := &fakeCompletion{replies: []string{"spoken reply"}}
	speech := &fakeSpeech{jobs: []*SpeechJob{
		{ID: "job-1", Status: SpeechStatusPending},
	}}
	d, _ := newTestDispatcher(completion, speech, nil, nil, testOptions())

	_, err := d.Dispatch(context.Background(), models.ModalityAudio, testTurn())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExhaustedRetries)
	assert.Equal(t, 5, speech.polls)
}

func TestAudioDispatchFailsOnFailedJob(t *testing.T) {
	completion := &fakeCompletion{replies: []string{"spoken reply"}}
	speech := &fakeSpeech{jobs: []*SpeechJob{
		{ID: "job-1", Status: SpeechStatusFailed},
	}}
	d, _ := newTestDispatcher(completion, speech, nil, nil, testOptions())

	_, err := d.Dispatch(context.Background(), models.ModalityAudio, testTurn())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExhaustedRetries)
}

func TestPhotoDispatchResolvesFetchesAndReacts(t *testing.T) {
	// First completion picks the file, second produces the reaction.
	completion := &fakeCompletion{replies: []string{"beach_cat.jpg; other.jpg", "Hope you like it!"}}
	caption := &fakeCaption{caption: "a cat on the beach"}
	assets := &fakeAssets{files: map[string][]byte{
		"beach_cat.jpg": []byte("jpeg-bytes"),
		"other.jpg":     []byte("other-bytes"),
	}}
	d, _ := newTestDispatcher(completion, nil, caption, assets, testOptions())

	result, err := d.Dispatch(context.Background(), models.ModalityPhoto, testTurn())
	require.NoError(t, err)
	require.NotNil(t, result.Photo)
	assert.Equal(t, "beach_cat.jpg", result.Photo.Name)
	assert.Equal(t, []byte("jpeg-bytes"), result.Photo.Data)
	assert.Equal(t, "a cat on the beach", result.Photo.Caption)
	assert.Equal(t, "Hope you like it!", result.Photo.Reaction)
	assert.Equal(t, 2, completion.calls)
}
