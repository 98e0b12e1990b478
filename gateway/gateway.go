// Package gateway abstracts the messaging platform the bot talks
// through. Production uses the Telegram Bot API; local development can
// swap in the websocket gateway without touching the turn pipeline.
package gateway

import "context"

// Button is one inline keyboard button. Data is the callback payload
// delivered back through the webhook when the button is pressed.
type Button struct {
	Text string
	Data string
}

// MessagingGateway is the outbound side of a chat platform.
type MessagingGateway interface {
	// Send delivers a text message and returns the platform message id,
	// which Edit can later rewrite.
	Send(ctx context.Context, chatID int64, text string) (int64, error)

	// SendWithButtons delivers a text message with an inline keyboard.
	SendWithButtons(ctx context.Context, chatID int64, text string, buttons [][]Button) (int64, error)

	// Edit rewrites a previously sent message in place.
	Edit(ctx context.Context, chatID int64, messageID int64, text string) error

	// SendTyping shows the platform's typing indicator.
	SendTyping(ctx context.Context, chatID int64) error

	// SendVoice delivers an OGG/Opus voice note.
	SendVoice(ctx context.Context, chatID int64, audio []byte) error

	// SendPhoto delivers an image with an optional caption.
	SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error

	// DownloadFile fetches an inbound attachment by its platform file id.
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)

	// AnswerCallback acknowledges a pressed inline button so the client
	// stops showing its spinner.
	AnswerCallback(ctx context.Context, callbackID string) error
}
