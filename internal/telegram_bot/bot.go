package telegram_bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"pdfqa/internal/config"
)

// maxMessageLength is the Telegram limit for a text message, in characters.
const maxMessageLength = 4096

// Bot sends operator notifications (failed runs, re-indexed assistants) to a
// single Telegram chat. A nil *Bot is a valid disabled bot.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewBot creates a new Telegram bot instance. It returns nil when
// notifications are disabled.
func NewBot(cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		logger.Info("Telegram bot is disabled (telegram.enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return newBot(botAPI, cfg.Telegram.ChatID, logger), nil
}

func newBot(api *tgbotapi.BotAPI, chatID int64, logger *zap.Logger) *Bot {
	return &Bot{api: api, chatID: chatID, logger: logger}
}

// Start answers /start and /help so an operator can discover the chat id to
// put into telegram.chat_id. It returns when ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil // Bot is disabled
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(update.Message)
			}
		}
	}
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if !message.IsCommand() {
		return
	}
	switch message.Command() {
	case "start", "help":
		b.sendMessage(message.Chat.ID, helpText(message.Chat.ID))
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help.")
	}
}

func helpText(chatID int64) string {
	return "This bot relays PDF assistant notifications: failed runs and re-indexed assistants.\n\n" +
		"Set telegram.chat_id to " + strconv.FormatInt(chatID, 10) + " to receive them in this chat."
}

// Notify sends text to the configured chat.
func (b *Bot) Notify(text string) error {
	if b == nil {
		return nil
	}
	if b.chatID == 0 {
		return errors.New("telegram.chat_id is not configured")
	}

	msg := tgbotapi.NewMessage(b.chatID, truncate(text, maxMessageLength))
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	b.logger.Debug("Notification sent", zap.Int64("chat_id", b.chatID))
	return nil
}

// sendMessage is a helper to send a simple text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}
