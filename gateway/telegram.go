package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"chat-companion/backend/pkg/logger"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramGateway talks to the Telegram Bot API over HTTPS. One
// instance per bot token.
type TelegramGateway struct {
	token   string
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func NewTelegramGateway(token string, log *logger.Logger) *TelegramGateway {
	return &TelegramGateway{
		token:   token,
		baseURL: telegramAPIBase,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// apiResponse is the Bot API envelope shared by every method.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

func (g *TelegramGateway) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", g.baseURL, g.token, method)
}

func (g *TelegramGateway) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, method)
}

func decodeResponse(resp *http.Response, method string) (json.RawMessage, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("%s rejected: %s", method, envelope.Description)
	}
	return envelope.Result, nil
}

func (g *TelegramGateway) Send(ctx context.Context, chatID int64, text string) (int64, error) {
	result, err := g.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return 0, err
	}

	var sent sentMessage
	if err := json.Unmarshal(result, &sent); err != nil {
		return 0, fmt.Errorf("decoding sent message: %w", err)
	}
	return sent.MessageID, nil
}

func (g *TelegramGateway) SendWithButtons(ctx context.Context, chatID int64, text string, buttons [][]Button) (int64, error) {
	keyboard := make([][]map[string]string, 0, len(buttons))
	for _, row := range buttons {
		encoded := make([]map[string]string, 0, len(row))
		for _, b := range row {
			encoded = append(encoded, map[string]string{
				"text":          b.Text,
				"callback_data": b.Data,
			})
		}
		keyboard = append(keyboard, encoded)
	}

	result, err := g.call(ctx, "sendMessage", map[string]any{
		"chat_id":      chatID,
		"text":         text,
		"reply_markup": map[string]any{"inline_keyboard": keyboard},
	})
	if err != nil {
		return 0, err
	}

	var sent sentMessage
	if err := json.Unmarshal(result, &sent); err != nil {
		return 0, fmt.Errorf("decoding sent message: %w", err)
	}
	return sent.MessageID, nil
}

func (g *TelegramGateway) Edit(ctx context.Context, chatID int64, messageID int64, text string) error {
	_, err := g.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	})
	return err
}

func (g *TelegramGateway) SendTyping(ctx context.Context, chatID int64) error {
	_, err := g.call(ctx, "sendChatAction", map[string]any{
		"chat_id": chatID,
		"action":  "typing",
	})
	return err
}

func (g *TelegramGateway) SendVoice(ctx context.Context, chatID int64, audio []byte) error {
	return g.upload(ctx, "sendVoice", chatID, "voice", "voice.ogg", audio, "")
}

func (g *TelegramGateway) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error {
	return g.upload(ctx, "sendPhoto", chatID, "photo", "photo.jpg", photo, caption)
}

// upload sends a file-bearing method as multipart form data.
func (g *TelegramGateway) upload(ctx context.Context, method string, chatID int64, field, filename string, data []byte, caption string) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return err
		}
	}

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.methodURL(method), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	_, err = decodeResponse(resp, method)
	return err
}

func (g *TelegramGateway) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	result, err := g.call(ctx, "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return nil, err
	}

	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(result, &file); err != nil {
		return nil, fmt.Errorf("decoding file info: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("file %s has no download path", fileID)
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", g.baseURL, g.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file %s: status %d", fileID, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (g *TelegramGateway) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := g.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
	})
	return err
}
