package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chat-companion/backend/ai"
	botmodels "chat-companion/backend/bots/models"
	botservice "chat-companion/backend/bots/service"
	convmodels "chat-companion/backend/conversation/models"
	convrepo "chat-companion/backend/conversation/repository"
	convservice "chat-companion/backend/conversation/service"
	"chat-companion/backend/gateway"
	ledgerservice "chat-companion/backend/ledger/service"
	userservice "chat-companion/backend/user/service"
	"chat-companion/backend/pkg/logger"
)

// Callback button payloads understood by the webhook.
const (
	callbackGenerateAudio = "generate_audio"
	callbackGeneratePhoto = "generate_photo"
	callbackAskCredit     = "ask_credit"
	callbackBuyPrefix     = "buy_"
)

const updateDedupTTL = 24 * time.Hour

// UpdateDeduper claims a platform update id exactly once within a TTL.
// The Redis client satisfies it; trouble reaching the store fails open.
type UpdateDeduper interface {
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// update is the platform webhook envelope.
type update struct {
	UpdateID      int64           `json:"update_id"`
	Message       *inboundMessage `json:"message"`
	CallbackQuery *callbackQuery  `json:"callback_query"`
}

type inboundMessage struct {
	MessageID         int64              `json:"message_id"`
	From              *peer              `json:"from"`
	Chat              chatRef            `json:"chat"`
	Text              string             `json:"text"`
	Caption           string             `json:"caption"`
	Voice             *fileRef           `json:"voice"`
	Photo             []photoSize        `json:"photo"`
	Document          *fileRef           `json:"document"`
	SuccessfulPayment *successfulPayment `json:"successful_payment"`
}

type peer struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LanguageCode string `json:"language_code"`
}

type chatRef struct {
	ID int64 `json:"id"`
}

type fileRef struct {
	FileID string `json:"file_id"`
}

type photoSize struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

type callbackQuery struct {
	ID      string          `json:"id"`
	From    peer            `json:"from"`
	Message *inboundMessage `json:"message"`
	Data    string          `json:"data"`
}

type successfulPayment struct {
	Currency                string `json:"currency"`
	TotalAmount             int64  `json:"total_amount"`
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
	ProviderPaymentChargeID string `json:"provider_payment_charge_id"`
}

// eventKind tags an update exactly once at ingestion. Downstream code
// switches on the tag and never re-inspects raw payload fields.
type eventKind int

const (
	eventIgnored eventKind = iota
	eventMessage
	eventCallback
	eventPayment
)

// inboundEvent is the resolved view of an update.
type inboundEvent struct {
	kind     eventKind
	chatID   int64
	from     peer
	modality convmodels.Modality

	// eventMessage
	msgID  int64
	text   string
	fileID string

	// eventCallback
	callbackID   string
	callbackData string

	// eventPayment
	payment *successfulPayment
}

// resolveEvent classifies the update. Photo messages pick the largest
// rendition the platform offers.
func resolveEvent(u *update) inboundEvent {
	if cb := u.CallbackQuery; cb != nil {
		ev := inboundEvent{kind: eventCallback, from: cb.From, callbackID: cb.ID, callbackData: cb.Data}
		if cb.Message != nil {
			ev.chatID = cb.Message.Chat.ID
		}
		return ev
	}

	m := u.Message
	if m == nil || m.From == nil {
		return inboundEvent{kind: eventIgnored}
	}

	ev := inboundEvent{chatID: m.Chat.ID, from: *m.From, msgID: m.MessageID}

	switch {
	case m.SuccessfulPayment != nil:
		ev.kind = eventPayment
		ev.payment = m.SuccessfulPayment
	case m.Voice != nil:
		ev.kind = eventMessage
		ev.modality = convmodels.ModalityAudio
		ev.fileID = m.Voice.FileID
	case len(m.Photo) > 0:
		ev.kind = eventMessage
		ev.modality = convmodels.ModalityPhoto
		best := m.Photo[0]
		for _, p := range m.Photo[1:] {
			if p.FileSize > best.FileSize {
				best = p
			}
		}
		ev.fileID = best.FileID
		ev.text = m.Caption
	case m.Document != nil:
		ev.kind = eventMessage
		ev.modality = convmodels.ModalityDocument
		ev.fileID = m.Document.FileID
	case m.Text != "":
		ev.kind = eventMessage
		ev.modality = convmodels.ModalityText
		ev.text = m.Text
	default:
		ev.kind = eventIgnored
	}
	return ev
}

// WebhookHandler ingests platform updates for every configured bot.
type WebhookHandler struct {
	profiles    *botservice.ProfileService
	users       *userservice.UserService
	ledger      *ledgerservice.Service
	messages    convrepo.MessageRepository
	tracker     *convservice.Tracker
	queue       *convservice.TurnQueue
	dedup       UpdateDeduper
	transcriber ai.TranscriptionBackend
	captioner   ai.CaptionBackend
	gatewayFor  func(token string) gateway.MessagingGateway
	secretToken string
	log         *logger.Logger
}

func NewWebhookHandler(
	profiles *botservice.ProfileService,
	users *userservice.UserService,
	ledger *ledgerservice.Service,
	messages convrepo.MessageRepository,
	tracker *convservice.Tracker,
	queue *convservice.TurnQueue,
	dedup UpdateDeduper,
	transcriber ai.TranscriptionBackend,
	captioner ai.CaptionBackend,
	gatewayFor func(token string) gateway.MessagingGateway,
	secretToken string,
	log *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		profiles:    profiles,
		users:       users,
		ledger:      ledger,
		messages:    messages,
		tracker:     tracker,
		queue:       queue,
		dedup:       dedup,
		transcriber: transcriber,
		captioner:   captioner,
		gatewayFor:  gatewayFor,
		secretToken: secretToken,
		log:         log,
	}
}

// Handle is the POST /webhook/:token/:botShortName endpoint. The
// platform expects 200 for every delivered update; anything else makes
// it redeliver, so processing errors are logged and acknowledged.
func (h *WebhookHandler) Handle(c *gin.Context) {
	bot, err := h.profiles.ByShortName(c.Param("botShortName"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown bot"})
		return
	}

	if c.Param("token") != bot.Token {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid token"})
		return
	}
	if h.secretToken != "" && c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != h.secretToken {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid secret token"})
		return
	}

	var u update
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
		return
	}

	log := logger.FromContext(c).WithBot(bot.ID)

	// Platforms redeliver updates on slow responses; the first claim of
	// an update id wins. Redis trouble fails open.
	key := fmt.Sprintf("update:%d:%d", bot.ID, u.UpdateID)
	if claimed, err := h.dedup.ClaimOnce(c.Request.Context(), key, updateDedupTTL); err != nil {
		log.Warn("update dedup unavailable", "error", err.Error())
	} else if !claimed {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	ev := resolveEvent(&u)
	if ev.kind == eventIgnored {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	gw := h.gatewayFor(bot.Token)
	log = log.WithChat(ev.chatID)

	switch ev.kind {
	case eventCallback:
		h.handleCallback(c, bot, gw, ev, log)
	case eventPayment:
		h.handlePayment(c, bot, gw, ev, log)
	default:
		h.handleMessage(c, bot, gw, ev, u.UpdateID, log)
	}
}

func (h *WebhookHandler) handleMessage(c *gin.Context, bot botmodels.Profile, gw gateway.MessagingGateway, ev inboundEvent, updateID int64, log *logger.Logger) {
	_, created, err := h.users.EnsureRegistered(ev.from.ID, bot.ID, ev.chatID, ev.from.FirstName, ev.from.LanguageCode)
	if err != nil {
		log.LogError(err, "registering user")
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	if banned, err := h.users.IsBanned(ev.from.ID, bot.ID); err != nil {
		log.LogError(err, "checking ban state")
	} else if banned {
		log.Info("dropping update from banned user", "user_id", ev.from.ID)
		c.JSON(http.StatusOK, gin.H{"status": "dropped"})
		return
	}

	switch strings.TrimSpace(ev.text) {
	case "/start":
		h.sendGreeting(c, gw, ev, created, log)
		return
	case "/reset":
		h.resetConversation(c, gw, ev, log)
		return
	}

	content, ok := h.resolveContent(c, gw, ev, log)
	if !ok {
		return
	}

	now := time.Now().UTC()
	userMsg := &convmodels.Message{
		ChatID:        ev.chatID,
		BotID:         bot.ID,
		UserID:        ev.from.ID,
		PlatformMsgID: ev.msgID,
		UpdateID:      updateID,
		Role:          convmodels.RoleUser,
		Modality:      ev.modality,
		Content:       content,
		Status:        convmodels.StatusNew,
		CreatedAt:     now,
	}
	if err := h.messages.Create(userMsg); err != nil {
		log.LogError(err, "storing inbound message")
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	// Reserve the assistant row now so replies land in order even when
	// turns interleave. It stays invisible to batching until filled.
	placeholder := &convmodels.Message{
		ChatID:    ev.chatID,
		BotID:     bot.ID,
		UserID:    ev.from.ID,
		Role:      convmodels.RoleAssistant,
		Modality:  convmodels.ModalityText,
		Content:   convmodels.PlaceholderContent,
		Status:    convmodels.StatusSuperseded,
		CreatedAt: now,
	}
	if err := h.messages.Create(placeholder); err != nil {
		log.LogError(err, "storing assistant placeholder")
	}

	h.queue.Enqueue(convservice.TurnRequest{
		ChatID:  ev.chatID,
		UserID:  ev.from.ID,
		Bot:     bot,
		Gateway: gw,
	})
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// resolveContent turns any inbound modality into text the completion
// backend can reason about. Voice is transcribed, photos are captioned.
func (h *WebhookHandler) resolveContent(c *gin.Context, gw gateway.MessagingGateway, ev inboundEvent, log *logger.Logger) (string, bool) {
	ctx := c.Request.Context()

	switch ev.modality {
	case convmodels.ModalityText:
		return ev.text, true

	case convmodels.ModalityAudio:
		audio, err := gw.DownloadFile(ctx, ev.fileID)
		if err != nil {
			log.LogError(err, "downloading voice note")
			c.JSON(http.StatusOK, gin.H{"status": "error"})
			return "", false
		}
		text, err := h.transcriber.Transcribe(ctx, audio)
		if err != nil {
			log.LogError(err, "transcribing voice note")
			c.JSON(http.StatusOK, gin.H{"status": "error"})
			return "", false
		}
		return text, true

	case convmodels.ModalityPhoto:
		image, err := gw.DownloadFile(ctx, ev.fileID)
		if err != nil {
			log.LogError(err, "downloading photo")
			c.JSON(http.StatusOK, gin.H{"status": "error"})
			return "", false
		}
		caption, err := h.captioner.Caption(ctx, image)
		if err != nil {
			log.LogError(err, "captioning photo")
			c.JSON(http.StatusOK, gin.H{"status": "error"})
			return "", false
		}
		content := fmt.Sprintf("I sent you a photo showing: %s", caption)
		if ev.text != "" {
			content = fmt.Sprintf("%s (my caption: %s)", content, ev.text)
		}
		return content, true

	default:
		// Documents are acknowledged but never enter the conversation.
		if _, err := gw.Send(ctx, ev.chatID, "Sorry, I can't open documents here."); err != nil {
			log.Warn("sending document notice failed", "error", err.Error())
		}
		c.JSON(http.StatusOK, gin.H{"status": "unsupported"})
		return "", false
	}
}

func (h *WebhookHandler) sendGreeting(c *gin.Context, gw gateway.MessagingGateway, ev inboundEvent, created bool, log *logger.Logger) {
	greeting := fmt.Sprintf("Hi %s! Send me a message and I'll reply.", ev.from.FirstName)
	if created {
		greeting += " You've received welcome credits to get started."
	}
	buttons := [][]gateway.Button{
		{{Text: "Voice message", Data: callbackGenerateAudio}},
		{{Text: "Exclusive photo", Data: callbackGeneratePhoto}},
	}
	if _, err := gw.SendWithButtons(c.Request.Context(), ev.chatID, greeting, buttons); err != nil {
		log.Warn("sending greeting failed", "error", err.Error())
	}
	c.JSON(http.StatusOK, gin.H{"status": "greeted"})
}

// resetConversation supersedes the chat's entire history and closes any
// open awaiting record. Nothing is deleted.
func (h *WebhookHandler) resetConversation(c *gin.Context, gw gateway.MessagingGateway, ev inboundEvent, log *logger.Logger) {
	if err := h.messages.Supersede(ev.chatID); err != nil {
		log.LogError(err, "superseding conversation")
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	if err := h.tracker.Clear(ev.chatID); err != nil {
		log.LogError(err, "clearing awaiting state on reset")
	}
	if _, err := gw.Send(c.Request.Context(), ev.chatID, "Conversation reset. Let's start fresh!"); err != nil {
		log.Warn("sending reset confirmation failed", "error", err.Error())
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (h *WebhookHandler) handleCallback(c *gin.Context, bot botmodels.Profile, gw gateway.MessagingGateway, ev inboundEvent, log *logger.Logger) {
	ctx := c.Request.Context()

	if err := gw.AnswerCallback(ctx, ev.callbackID); err != nil {
		log.Warn("answering callback failed", "error", err.Error())
	}

	switch {
	case ev.callbackData == callbackGenerateAudio:
		h.markAwaiting(c, bot, gw, ev, convmodels.ModalityAudio,
			"Tell me what you'd like to hear and I'll record it for you.", log)

	case ev.callbackData == callbackGeneratePhoto:
		h.markAwaiting(c, bot, gw, ev, convmodels.ModalityPhoto,
			"Describe the photo you'd like and I'll pick one for you.", log)

	case ev.callbackData == callbackAskCredit:
		balance, err := h.ledger.Balance(ev.from.ID, bot.ID)
		if err != nil {
			log.LogError(err, "reading balance")
			c.JSON(http.StatusOK, gin.H{"status": "error"})
			return
		}
		text := fmt.Sprintf("Your current balance is %d credits.", balance)
		buttons := [][]gateway.Button{
			{{Text: "Buy 100 credits", Data: "buy_100"}},
			{{Text: "Buy 500 credits", Data: "buy_500"}},
		}
		if _, err := gw.SendWithButtons(ctx, ev.chatID, text, buttons); err != nil {
			log.Warn("sending balance failed", "error", err.Error())
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})

	case strings.HasPrefix(ev.callbackData, callbackBuyPrefix):
		amount := strings.TrimPrefix(ev.callbackData, callbackBuyPrefix)
		text := fmt.Sprintf("To buy %s credits, complete the checkout the platform opens next.", amount)
		if _, err := gw.Send(ctx, ev.chatID, text); err != nil {
			log.Warn("sending purchase prompt failed", "error", err.Error())
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})

	default:
		log.Info("ignoring unknown callback", "data", ev.callbackData)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

// markAwaiting opens the awaiting record and prompts the user for the
// generation request. Repeated presses collapse into one open record.
func (h *WebhookHandler) markAwaiting(c *gin.Context, bot botmodels.Profile, gw gateway.MessagingGateway, ev inboundEvent, modality convmodels.Modality, prompt string, log *logger.Logger) {
	marked, err := h.tracker.Mark(ev.chatID, ev.from.ID, bot.ID, modality)
	if err != nil {
		log.LogError(err, "marking awaiting state", "modality", string(modality))
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	if !marked {
		prompt = "I'm already waiting for your request, go ahead and describe it."
	}
	if _, err := gw.Send(c.Request.Context(), ev.chatID, prompt); err != nil {
		log.Warn("sending awaiting prompt failed", "error", err.Error())
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *WebhookHandler) handlePayment(c *gin.Context, bot botmodels.Profile, gw gateway.MessagingGateway, ev inboundEvent, log *logger.Logger) {
	p := ev.payment
	credits := creditsFromPayload(p.InvoicePayload)
	if credits <= 0 {
		log.Warn("payment with unparseable payload", "payload", p.InvoicePayload)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	balance, err := h.ledger.RecordPayment(ledgerservice.PaymentInfo{
		ChatID:           ev.chatID,
		UserID:           ev.from.ID,
		BotID:            bot.ID,
		Credits:          credits,
		Currency:         p.Currency,
		AmountCents:      p.TotalAmount,
		InvoicePayload:   p.InvoicePayload,
		ProviderChargeID: p.ProviderPaymentChargeID,
		PlatformChargeID: p.TelegramPaymentChargeID,
	})
	if err != nil {
		log.LogError(err, "recording payment")
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	text := fmt.Sprintf("Payment received! %d credits added. Your balance is now %d credits.", credits, balance)
	if _, err := gw.Send(c.Request.Context(), ev.chatID, text); err != nil {
		log.Warn("sending payment confirmation failed", "error", err.Error())
	}
	log.Info("payment credited", "credits", credits, "balance", balance)
	c.JSON(http.StatusOK, gin.H{"status": "credited"})
}

// creditsFromPayload parses payloads like "buy_100" or "credits_500".
func creditsFromPayload(payload string) int64 {
	idx := strings.LastIndexByte(payload, '_')
	if idx < 0 || idx == len(payload)-1 {
		return 0
	}
	n, err := strconv.ParseInt(payload[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
