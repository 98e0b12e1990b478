package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chat-companion/backend/pkg/logger"
)

// WSGateway is a development stand-in for the real platform. Each
// connected websocket client claims a chat id; outbound traffic for
// that chat is delivered as JSON frames. It lets the whole turn
// pipeline run locally without Telegram.
type WSGateway struct {
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu      sync.RWMutex
	clients map[int64]*wsClient

	nextMessageID atomic.Int64
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// wsFrame is one outbound event on the dev socket.
type wsFrame struct {
	Type      string `json:"type"`
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`
	// Data carries voice/photo bytes base64-encoded.
	Data string `json:"data,omitempty"`
}

func NewWSGateway(log *logger.Logger) *WSGateway {
	return &WSGateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[int64]*wsClient),
	}
}

// Handler upgrades the request and registers the client under the
// chat_id query parameter. The read loop only drains control frames;
// inbound chat traffic still goes through the webhook endpoint.
func (g *WSGateway) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var chatID int64
		if _, err := fmt.Sscan(c.Query("chat_id"), &chatID); err != nil || chatID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id query parameter required"})
			return
		}

		conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			g.log.Error("websocket upgrade failed", "error", err.Error())
			return
		}

		client := &wsClient{conn: conn}
		g.mu.Lock()
		g.clients[chatID] = client
		g.mu.Unlock()
		g.log.Info("websocket client connected", "chat_id", chatID)

		go g.readLoop(chatID, client)
	}
}

func (g *WSGateway) readLoop(chatID int64, client *wsClient) {
	defer func() {
		g.mu.Lock()
		if g.clients[chatID] == client {
			delete(g.clients, chatID)
		}
		g.mu.Unlock()
		client.conn.Close()
		g.log.Info("websocket client disconnected", "chat_id", chatID)
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *WSGateway) client(chatID int64) (*wsClient, error) {
	g.mu.RLock()
	client, ok := g.clients[chatID]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no websocket client for chat %d", chatID)
	}
	return client, nil
}

func (g *WSGateway) deliver(chatID int64, frame wsFrame) error {
	client, err := g.client(chatID)
	if err != nil {
		return err
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.conn.WriteJSON(frame)
}

func (g *WSGateway) Send(ctx context.Context, chatID int64, text string) (int64, error) {
	id := g.nextMessageID.Add(1)
	return id, g.deliver(chatID, wsFrame{Type: "message", ChatID: chatID, MessageID: id, Text: text})
}

func (g *WSGateway) SendWithButtons(ctx context.Context, chatID int64, text string, buttons [][]Button) (int64, error) {
	// Buttons render as plain text hints on the dev socket.
	for _, row := range buttons {
		for _, b := range row {
			text += fmt.Sprintf("\n[%s -> %s]", b.Text, b.Data)
		}
	}
	return g.Send(ctx, chatID, text)
}

func (g *WSGateway) Edit(ctx context.Context, chatID int64, messageID int64, text string) error {
	return g.deliver(chatID, wsFrame{Type: "edit", ChatID: chatID, MessageID: messageID, Text: text})
}

func (g *WSGateway) SendTyping(ctx context.Context, chatID int64) error {
	return g.deliver(chatID, wsFrame{Type: "typing", ChatID: chatID})
}

func (g *WSGateway) SendVoice(ctx context.Context, chatID int64, audio []byte) error {
	id := g.nextMessageID.Add(1)
	return g.deliver(chatID, wsFrame{
		Type: "voice", ChatID: chatID, MessageID: id,
		Data: base64.StdEncoding.EncodeToString(audio),
	})
}

func (g *WSGateway) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error {
	id := g.nextMessageID.Add(1)
	return g.deliver(chatID, wsFrame{
		Type: "photo", ChatID: chatID, MessageID: id, Caption: caption,
		Data: base64.StdEncoding.EncodeToString(photo),
	})
}

func (g *WSGateway) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	return nil, fmt.Errorf("file download not supported on the dev gateway")
}

func (g *WSGateway) AnswerCallback(ctx context.Context, callbackID string) error {
	return nil
}
