package service

import (
	"context"
	"strings"
	"time"

	"chat-companion/backend/gateway"
	"chat-companion/backend/pkg/logger"
)

// Animator keeps a placeholder message visibly alive while generation
// runs, cycling trailing dots on every tick. It is purely cosmetic; the
// caller cancels the context the moment the result arrives and only
// then writes the final text, so no tick can race it.
type Animator struct {
	tick time.Duration
	log  *logger.Logger
}

func NewAnimator(tick time.Duration, log *logger.Logger) *Animator {
	return &Animator{tick: tick, log: log}
}

// Animate rewrites the message as base plus 0..3 dots until ctx is
// cancelled. Edit failures are logged and ignored; the platform rejects
// edits that do not change the text and that is fine here.
func (a *Animator) Animate(ctx context.Context, gw gateway.MessagingGateway, chatID, messageID int64, base string) {
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			text := base + strings.Repeat(".", n%4)
			if err := gw.Edit(ctx, chatID, messageID, text); err != nil {
				a.log.Debug("placeholder animation edit failed", "chat_id", chatID, "error", err.Error())
			}
		}
	}
}
