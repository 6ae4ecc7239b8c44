package kanban

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Chat is the append-only team chat.
type Chat struct {
	messages List[ChatMessage]
	logger   *slog.Logger
	now      func() time.Time
}

// NewChat creates a chat over the shared message list.
func NewChat(messages List[ChatMessage], logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{messages: messages, logger: logger, now: time.Now}
}

// SetClock replaces the time source used for message timestamps.
func (c *Chat) SetClock(now func() time.Time) {
	c.now = now
}

// Send posts a message to sector. The general sector posts an untagged message.
func (c *Chat) Send(ctx context.Context, actor User, text string, sector Sector) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, required("text")
	}
	if sector == SectorGeneral {
		sector = ""
	}

	msg := ChatMessage{
		ID:        newID("msg"),
		SenderID:  actor.ID,
		Text:      text,
		Timestamp: c.now().Format(time.RFC3339),
		Sector:    sector,
	}
	err := c.messages.Mutate(ctx, func(messages []ChatMessage) ([]ChatMessage, error) {
		return append(messages, msg), nil
	})
	if err != nil {
		return ChatMessage{}, fmt.Errorf("failed to save chat message: %w", err)
	}
	c.logger.Debug("Chat message sent", "id", msg.ID, "sender", actor.ID, "sector", sector)
	return msg, nil
}

// View returns the messages visible in sector: everything for the general
// sector, otherwise the sector's messages plus untagged ones.
func (c *Chat) View(sector Sector) []ChatMessage {
	all := c.messages.Snapshot()
	if sector == "" || sector == SectorGeneral {
		return all
	}
	var result []ChatMessage
	for _, m := range all {
		if m.Sector == "" || m.Sector == sector {
			result = append(result, m)
		}
	}
	return result
}
