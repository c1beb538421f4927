// Package telegram provides the messaging transport for Iskra.
//
// Inbound Telegram updates are normalized into a single tagged Event variant
// (text, command, or button press) before they reach the orchestrator, so
// downstream code dispatches on one kind switch instead of probing the raw
// update shape. Outbound, the client exposes exactly the operations the
// orchestrator needs: plain text, text with a reply keyboard, text with a
// link button, and a typing indicator.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// EventKind tags the normalized inbound event variant.
type EventKind int

const (
	// KindText is an ordinary typed message.
	KindText EventKind = iota
	// KindCommand is a /slash command.
	KindCommand
	// KindButton is an inline-keyboard callback press.
	KindButton
)

// Event is a normalized inbound update.
type Event struct {
	Kind   EventKind
	UserID int64
	ChatID int64

	// Text is the message body (KindText) or callback data (KindButton).
	Text string

	// Command and Args are set for KindCommand: "/grant 42 30" parses to
	// Command "grant", Args "42 30".
	Command string
	Args    string
}

// EventHandler processes normalized inbound events.
type EventHandler func(ctx context.Context, evt Event)

// Config holds Telegram client configuration
type Config struct {
	Token string
}

// Client wraps the Telegram bot
type Client struct {
	bot     *bot.Bot
	handler EventHandler
}

// New creates a new Telegram client. The handler receives every normalized
// event from private chats; group and channel traffic is ignored.
func New(cfg Config, handler EventHandler) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is required")
	}

	c := &Client{handler: handler}

	b, err := bot.New(cfg.Token,
		bot.WithAllowedUpdates(bot.AllowedUpdates{"message", "callback_query"}),
		bot.WithDefaultHandler(c.handleUpdate),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram client: %w", err)
	}

	c.bot = b
	return c, nil
}

// Start begins long polling until ctx is cancelled. It blocks.
func (c *Client) Start(ctx context.Context) {
	slog.Info("starting Telegram long polling")
	c.bot.Start(ctx)
	slog.Info("Telegram polling stopped")
}

// SendText sends a plain text message to a chat.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendTextWithKeyboard sends a text message with a one-time reply keyboard of
// the given button labels, laid out as a single row.
func (c *Client) SendTextWithKeyboard(ctx context.Context, chatID int64, text string, buttons []string) error {
	row := make([]models.KeyboardButton, len(buttons))
	for i, label := range buttons {
		row[i] = models.KeyboardButton{Text: label}
	}

	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
		ReplyMarkup: &models.ReplyKeyboardMarkup{
			Keyboard:        [][]models.KeyboardButton{row},
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send keyboard message: %w", err)
	}
	return nil
}

// SendTextWithLinkButton sends a text message with a single inline button
// that opens the given URL (used for hosted payment pages).
func (c *Client) SendTextWithLinkButton(ctx context.Context, chatID int64, text, label, url string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: label, URL: url}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send link message: %w", err)
	}
	return nil
}

// SetTyping shows the "typing…" indicator while a completion call runs.
func (c *Client) SetTyping(ctx context.Context, chatID int64) {
	_, err := c.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil {
		slog.Warn("failed to set typing indicator", "chat_id", chatID, "err", err)
	}
}

// handleUpdate normalizes a raw update into an Event and dispatches it.
func (c *Client) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || c.handler == nil {
		return
	}

	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat.Type != models.ChatTypePrivate {
			return
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return
		}

		evt := Event{
			UserID: msg.From.ID,
			ChatID: msg.Chat.ID,
			Text:   text,
		}
		if name, args, ok := parseCommand(text); ok {
			evt.Kind = KindCommand
			evt.Command = name
			evt.Args = args
		} else {
			evt.Kind = KindText
		}
		c.handler(ctx, evt)

	case update.CallbackQuery != nil:
		cq := update.CallbackQuery

		// Acknowledge immediately so the client stops showing a spinner.
		if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: cq.ID,
		}); err != nil {
			slog.Warn("failed to answer callback query", "err", err)
		}

		chatID := callbackChatID(cq.Message)
		if chatID == 0 {
			return
		}
		c.handler(ctx, Event{
			Kind:   KindButton,
			UserID: cq.From.ID,
			ChatID: chatID,
			Text:   strings.TrimSpace(cq.Data),
		})
	}
}

// parseCommand splits "/grant 42 30" into ("grant", "42 30", true). A bot
// mention suffix ("/start@iskra_bot") is stripped. Non-commands return ok=false.
func parseCommand(text string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	rest := strings.TrimPrefix(text, "/")
	if rest == "" {
		return "", "", false
	}

	if idx := strings.IndexAny(rest, " \t"); idx >= 0 {
		name, args = rest[:idx], strings.TrimSpace(rest[idx+1:])
	} else {
		name = rest
	}
	if idx := strings.Index(name, "@"); idx >= 0 {
		name = name[:idx]
	}
	return strings.ToLower(name), args, name != ""
}

// callbackChatID extracts the chat ID from a callback's originating message.
func callbackChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return msg.Message.Chat.ID
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return msg.InaccessibleMessage.Chat.ID
	default:
		return 0
	}
}
