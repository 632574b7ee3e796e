package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"

	"golang-object-generation/internal/config"
	"golang-object-generation/internal/models"
	"golang-object-generation/internal/services/generation"
	"golang-object-generation/internal/utils"
)

// TelegramNotifier posts one message per settled generation task to the
// configured chat. Everything here is fire-and-forget; a lost notification
// never affects the task.
type TelegramNotifier struct {
	cfg     *config.TelegramConfig
	log     *logrus.Logger
	bot     *telebot.Bot
	limiter *rate.Limiter
	chatID  int64
}

func NewTelegramNotifier(cfg *config.TelegramConfig, log *logrus.Logger, bot *telebot.Bot) (*TelegramNotifier, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}
	perSecond := cfg.MaxGlobalRequestPerSecond
	if perSecond <= 0 {
		perSecond = 30
	}
	return &TelegramNotifier{
		cfg:     cfg,
		log:     log,
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
		chatID:  chatID,
	}, nil
}

func (n *TelegramNotifier) NotifyTaskSettled(result generation.CompletionResult, objectName string) {
	utils.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := n.limiter.Wait(ctx); err != nil {
			n.log.WithError(err).Warn("Skipped telegram notification, rate limit wait failed")
			return
		}

		var text string
		if result.Status == models.TaskStatusSucceeded {
			text = fmt.Sprintf("✅ Object %q generated (task %s, version %s, %d bytes)",
				objectName, result.TaskID, result.Version, len(result.Artifact))
		} else {
			text = fmt.Sprintf("❌ Object %q failed (task %s, version %s): %s",
				objectName, result.TaskID, result.Version, utils.TruncateString(result.Error, 300))
		}

		if _, err := n.bot.Send(telebot.ChatID(n.chatID), text); err != nil {
			n.log.WithError(err).Error("Failed to send telegram notification")
		}
	})
}
