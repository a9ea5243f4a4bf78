// Package notify delivers outbound chat messages. The Broadcaster fans a
// notice out to the configured logging chats and never lets a delivery
// failure escape: operational alerts must not take the caller down.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers one message to one chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Broadcaster struct {
	sender  Sender
	chatIDs []int64
	log     *zap.Logger
}

func NewBroadcaster(sender Sender, chatIDs []int64, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		sender:  sender,
		chatIDs: chatIDs,
		log:     log.Named("broadcast"),
	}
}

// Broadcast sends text to every logging chat. Failures are logged per
// chat and swallowed.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) {
	if b.sender == nil {
		return
	}
	for _, chatID := range b.chatIDs {
		if err := b.sender.SendMessage(ctx, chatID, text); err != nil {
			b.log.Warn("cant deliver notice",
				zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}
