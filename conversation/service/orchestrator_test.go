package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-companion/backend/ai"
	botmodels "chat-companion/backend/bots/models"
	"chat-companion/backend/conversation/models"
	gw "chat-companion/backend/gateway"
	ledgermodels "chat-companion/backend/ledger/models"
	"chat-companion/backend/pkg/logger"
)

// --- fakes ---

type fakeMessages struct {
	mu   sync.Mutex
	rows []models.Message
}

func (f *fakeMessages) add(m models.Message) uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = uint(len(f.rows) + 1)
	f.rows = append(f.rows, m)
	return m.ID
}

func (f *fakeMessages) Create(m *models.Message) error {
	m.ID = f.add(*m)
	return nil
}

func (f *fakeMessages) Unprocessed(chatID int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.ChatID == chatID && r.Status == models.StatusNew {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMessages) History(chatID int64, botID uint) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, r := range f.rows {
		if r.ChatID == chatID && r.BotID == botID && r.Status != models.StatusSuperseded {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMessages) UpdateStatus(id uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id-1].Status = status
	return nil
}

func (f *fakeMessages) UpdateContent(id uint, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id-1].Content = content
	return nil
}

func (f *fakeMessages) UpdateStatuses(ids []uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.rows[id-1].Status = status
	}
	return nil
}

func (f *fakeMessages) Supersede(chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ChatID == chatID {
			f.rows[i].Status = models.StatusSuperseded
		}
	}
	return nil
}

func (f *fakeMessages) LatestPlaceholder(chatID int64) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.ChatID == chatID && r.Role == models.RoleAssistant && r.Content == models.PlaceholderContent {
			row := r
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakeMessages) byID(id uint) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id-1]
}

type fakeAwaiting struct {
	mu   sync.Mutex
	open map[models.Modality]bool
}

func (f *fakeAwaiting) Exists(chatID int64, modality models.Modality) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open[modality], nil
}

func (f *fakeAwaiting) Create(input *models.AwaitingInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open == nil {
		f.open = make(map[models.Modality]bool)
	}
	f.open[input.Modality] = true
	return nil
}

func (f *fakeAwaiting) ClearChat(chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = nil
	return nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	result   *ai.Result
	err      error
	calls    int
	modality models.Modality
	turn     ai.Turn
}

func (f *fakeGenerator) Dispatch(ctx context.Context, modality models.Modality, turn ai.Turn) (*ai.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.modality = modality
	f.turn = turn
	return f.result, f.err
}

type debit struct {
	cost      int64
	entryType string
}

type fakeLedger struct {
	mu      sync.Mutex
	balance int64
	debits  []debit
}

func (f *fakeLedger) Balance(userID int64, botID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeLedger) Debit(chatID, userID int64, botID uint, cost int64, entryType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance += cost
	f.debits = append(f.debits, debit{cost: cost, entryType: entryType})
	return nil
}

type sentPhoto struct {
	data    []byte
	caption string
}

type fakeGateway struct {
	mu     sync.Mutex
	nextID int64

	sends   []string
	buttons []string
	edits   []string
	voices  [][]byte
	photos  []sentPhoto
	typing  int
}

func (f *fakeGateway) Send(ctx context.Context, chatID int64, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sends = append(f.sends, text)
	return f.nextID, nil
}

func (f *fakeGateway) SendWithButtons(ctx context.Context, chatID int64, text string, buttons [][]gw.Button) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.buttons = append(f.buttons, text)
	return f.nextID, nil
}

func (f *fakeGateway) Edit(ctx context.Context, chatID int64, messageID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeGateway) SendTyping(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

func (f *fakeGateway) SendVoice(ctx context.Context, chatID int64, audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voices = append(f.voices, audio)
	return nil
}

func (f *fakeGateway) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, sentPhoto{data: photo, caption: caption})
	return nil
}

func (f *fakeGateway) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	return nil, nil
}

func (f *fakeGateway) AnswerCallback(ctx context.Context, callbackID string) error {
	return nil
}

func (f *fakeGateway) lastEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return ""
	}
	return f.edits[len(f.edits)-1]
}

// --- harness ---

type harness struct {
	messages  *fakeMessages
	awaiting  *fakeAwaiting
	generator *fakeGenerator
	ledger    *fakeLedger
	gateway   *fakeGateway
	tracker   *Tracker
	orch      *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})

	h := &harness{
		messages:  &fakeMessages{},
		awaiting:  &fakeAwaiting{},
		generator: &fakeGenerator{},
		ledger:    &fakeLedger{balance: 50},
		gateway:   &fakeGateway{},
	}
	h.tracker = NewTracker(h.awaiting, log)
	h.orch = NewOrchestrator(
		h.messages,
		h.tracker,
		h.generator,
		h.ledger,
		NewAnimator(time.Millisecond, log),
		Costs{Text: -1, Audio: -5, Photo: -5},
		log,
	)
	return h
}

func (h *harness) request() TurnRequest {
	return TurnRequest{
		ChatID: 10,
		UserID: 1,
		Bot: botmodels.Profile{
			ID:            1,
			PersonaPrompt: "You are Mia.",
			ApologyText:   "Sorry, something went wrong.",
		},
		Gateway: h.gateway,
	}
}

// seed inserts a NEW user message and the assistant placeholder the
// webhook would have written, returning (userMsgID, placeholderID).
func (h *harness) seed(content string) (uint, uint) {
	userID := h.messages.add(models.Message{
		ChatID: 10, BotID: 1, UserID: 1,
		Role: models.RoleUser, Modality: models.ModalityText,
		Content: content, Status: models.StatusNew,
		CreatedAt: time.Now().UTC(),
	})
	placeholderID := h.messages.add(models.Message{
		ChatID: 10, BotID: 1, UserID: 1,
		Role: models.RoleAssistant, Modality: models.ModalityText,
		Content: models.PlaceholderContent, Status: models.StatusSuperseded,
		CreatedAt: time.Now().UTC(),
	})
	return userID, placeholderID
}

func (h *harness) runTurn(t *testing.T) {
	t.Helper()
	batch, err := h.messages.Unprocessed(10)
	require.NoError(t, err)
	require.NotEmpty(t, batch)
	h.orch.ProcessTurn(context.Background(), h.request(), batch)
}

// --- tests ---

func TestTextTurnDeliversAndDebits(t *testing.T) {
	h := newHarness(t)
	msgID, placeholderID := h.seed("tell me a story")
	h.generator.result = &ai.Result{Text: "Once upon a time. The end."}

	h.runTurn(t)

	assert.Equal(t, []string{"Once upon a time.", "The end."}, h.gateway.sends)
	assert.Equal(t, 1, h.gateway.typing)

	assert.Equal(t, models.StatusDone, h.messages.byID(msgID).Status)
	filled := h.messages.byID(placeholderID)
	assert.Equal(t, models.StatusDone, filled.Status)
	assert.Equal(t, "Once upon a time. The end.", filled.Content)

	require.Len(t, h.ledger.debits, 1)
	assert.Equal(t, int64(-1), h.ledger.debits[0].cost)
	assert.Equal(t, ledgermodels.TypeTextGen, h.ledger.debits[0].entryType)
}

func TestBatchedMessagesFormOnePrompt(t *testing.T) {
	h := newHarness(t)
	h.seed("first part")
	h.messages.add(models.Message{
		ChatID: 10, BotID: 1, UserID: 1,
		Role: models.RoleUser, Modality: models.ModalityText,
		Content: "second part", Status: models.StatusNew,
		CreatedAt: time.Now().UTC().Add(time.Millisecond),
	})
	h.generator.result = &ai.Result{Text: "ok"}

	h.runTurn(t)

	// Prompt reads oldest first even though the batch arrives newest
	// first.
	assert.Equal(t, "first part\nsecond part", h.generator.turn.Prompt)
	assert.Equal(t, 1, h.generator.calls)
}

func TestAwaitingAudioTurn(t *testing.T) {
	h := newHarness(t)
	_, placeholderID := h.seed("say something sweet")
	marked, err := h.tracker.Mark(10, 1, 1, models.ModalityAudio)
	require.NoError(t, err)
	require.True(t, marked)

	h.generator.result = &ai.Result{Text: "something sweet", Audio: []byte("ogg")}

	h.runTurn(t)

	assert.Equal(t, models.ModalityAudio, h.generator.modality)
	require.Len(t, h.gateway.voices, 1)
	assert.Equal(t, []byte("ogg"), h.gateway.voices[0])
	assert.Equal(t, audioDoneText, h.gateway.lastEdit())

	// The awaiting record is consumed; the next turn is plain text.
	_, open, err := h.tracker.Pending(10)
	require.NoError(t, err)
	assert.False(t, open)

	filled := h.messages.byID(placeholderID)
	assert.Equal(t, "something sweet", filled.Content)

	require.Len(t, h.ledger.debits, 1)
	assert.Equal(t, int64(-5), h.ledger.debits[0].cost)
	assert.Equal(t, ledgermodels.TypeAudioGen, h.ledger.debits[0].entryType)
}

func TestAwaitingPhotoTurn(t *testing.T) {
	h := newHarness(t)
	h.seed("photo of you at the beach")
	_, err := h.tracker.Mark(10, 1, 1, models.ModalityPhoto)
	require.NoError(t, err)

	h.generator.result = &ai.Result{Photo: &ai.Photo{
		Name: "beach.jpg", Data: []byte("jpeg"), Caption: "me at the beach",
		Reaction: "Just for you!",
	}}

	h.runTurn(t)

	require.Len(t, h.gateway.photos, 1)
	assert.Equal(t, []byte("jpeg"), h.gateway.photos[0].data)
	assert.Equal(t, "Just for you!", h.gateway.photos[0].caption)
	assert.Equal(t, photoDoneText, h.gateway.lastEdit())

	require.Len(t, h.ledger.debits, 1)
	assert.Equal(t, ledgermodels.TypePhotoGen, h.ledger.debits[0].entryType)
}

func TestFailedTextTurnReturnsBatchToNew(t *testing.T) {
	h := newHarness(t)
	msgID, _ := h.seed("hello?")
	h.generator.err = errors.New("backend down")

	h.runTurn(t)

	assert.Contains(t, h.gateway.sends, "Sorry, something went wrong.")
	assert.Equal(t, models.StatusNew, h.messages.byID(msgID).Status)
	assert.Empty(t, h.ledger.debits)
}

func TestFailedMediaTurnIsTerminal(t *testing.T) {
	h := newHarness(t)
	msgID, _ := h.seed("a photo please")
	_, err := h.tracker.Mark(10, 1, 1, models.ModalityPhoto)
	require.NoError(t, err)
	h.generator.err = errors.New("backend down")

	h.runTurn(t)

	assert.Equal(t, models.StatusError, h.messages.byID(msgID).Status)
	assert.Equal(t, "Sorry, something went wrong.", h.gateway.lastEdit())
	assert.Empty(t, h.ledger.debits)
}

func TestTurnRefusedWhenOutOfCredits(t *testing.T) {
	h := newHarness(t)
	msgID, _ := h.seed("hello?")
	h.ledger.balance = 0

	h.runTurn(t)

	assert.Zero(t, h.generator.calls)
	assert.Equal(t, models.StatusError, h.messages.byID(msgID).Status)
	require.Len(t, h.gateway.buttons, 1)
	assert.Contains(t, h.gateway.buttons[0], "balance: 0")
	assert.Empty(t, h.ledger.debits)
}

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"No terminal punctuation", []string{"No terminal punctuation"}},
		{"Spaced.   Out.", []string{"Spaced.", "Out."}},
		{"Version 2.0 is out. Nice!", []string{"Version 2.0 is out.", "Nice!"}},
		{"", []string{""}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, splitSentences(c.in), "input %q", c.in)
	}
}
