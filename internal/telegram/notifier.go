package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillm/ads-engine/internal/domain"
	"github.com/kirillm/ads-engine/pkg/utils"
)

// Notifier отправляет оператору уведомления о прогонах движка
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *utils.Logger
}

// NewNotifier создает новый notifier
func NewNotifier(token string, chatID int64, logger *utils.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("Telegram bot authorized: @%s", bot.Self.UserName)

	return &Notifier{
		api:    bot,
		chatID: chatID,
		logger: logger,
	}, nil
}

// NotifyRunCompleted отправляет итог завершенного прогона
func (n *Notifier) NotifyRunCompleted(run *domain.OrchestratorRun) {
	n.send(FormatRunSummary(run))
}

// NotifyRunFailed отправляет уведомление об упавшем прогоне
func (n *Notifier) NotifyRunFailed(userID int64, reason string) {
	n.send(FormatRunFailure(userID, reason))
}

// NotifyStartup отправляет приветствие при старте сервиса
func (n *Notifier) NotifyStartup() {
	n.send("🤖 Ads Orchestration Engine started!")
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Error("Failed to send telegram message: %v", err)
	}
}
