package tg

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

// AllowChats drops updates from chats outside ids. An empty list allows
// every chat.
func AllowChats(ids []int64, log zerolog.Logger) tgbot.Middleware {
	allowed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}

	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
			if len(allowed) == 0 {
				next(ctx, b, upd)
				return
			}
			chatID, ok := chatOf(upd)
			if !ok || !allowed[chatID] {
				log.Warn().Int64("chat_id", chatID).Msg("update from chat outside the allow list")
				return
			}
			next(ctx, b, upd)
		}
	}
}

func chatOf(upd *models.Update) (int64, bool) {
	switch {
	case upd == nil:
		return 0, false
	case upd.Message != nil:
		return upd.Message.Chat.ID, true
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message.Message != nil:
		return upd.CallbackQuery.Message.Message.Chat.ID, true
	}
	return 0, false
}
