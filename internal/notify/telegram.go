package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/seenimoa/optionpulse/internal/config"
	"github.com/seenimoa/optionpulse/internal/infra"
	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/pkg/models"
)

// ErrNoBotToken is returned when Telegram delivery is requested without a token.
var ErrNoBotToken = errors.New("telegram bot token not configured")

// sender is the part of *tgbotapi.BotAPI used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// CommandHandler answers a chat command such as /status. It returns the reply text.
type CommandHandler func(command, args string) string

// Telegram delivers alerts to Telegram chats. Entry and reversal alerts go to
// the signal chats; progress and exit alerts go to the exit chats, or to the
// signal chats when no exit chat is configured.
type Telegram struct {
	bot         *tgbotapi.BotAPI
	send        sender
	signalChats []int64
	exitChats   []int64
	limiter     *infra.RateLimiter
	log         zerolog.Logger
}

// NewTelegram connects to the Bot API and verifies the token.
func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	if cfg.BotToken == "" {
		return nil, ErrNoBotToken
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	t := newTelegram(bot, cfg)
	t.bot = bot
	t.log.Info().Str("bot", bot.Self.UserName).Msg("telegram connected")
	return t, nil
}

func newTelegram(s sender, cfg config.TelegramConfig) *Telegram {
	rate := cfg.MessagesPerSec
	if rate <= 0 {
		rate = 1
	}
	return &Telegram{
		send:        s,
		signalChats: cfg.SignalChatIDs,
		exitChats:   cfg.ExitChatIDs,
		limiter:     infra.PerSecond(rate),
		log:         logging.Component("telegram"),
	}
}

// Notify sends a formatted alert to every chat routed for its kind.
func (t *Telegram) Notify(ctx context.Context, a models.Alert) error {
	chats := t.chatsFor(a.Kind)
	if len(chats) == 0 {
		return nil
	}

	text := Format(a)
	var errs []error
	for _, chatID := range chats {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := t.send.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	if len(errs) > 0 {
		t.log.Warn().Str("kind", string(a.Kind)).Str("symbol", a.Symbol).
			Int("failed", len(errs)).Msg("telegram delivery failed")
	}
	return errors.Join(errs...)
}

func (t *Telegram) chatsFor(kind models.AlertKind) []int64 {
	if kind.IsEntry() || len(t.exitChats) == 0 {
		return t.signalChats
	}
	return t.exitChats
}

// Listen answers commands sent to the bot by configured chats until ctx is
// cancelled. Messages from other chats are ignored.
func (t *Telegram) Listen(ctx context.Context, h CommandHandler) error {
	if t.bot == nil {
		return ErrNoBotToken
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(up, h)
		}
	}
}

func (t *Telegram) handleUpdate(up tgbotapi.Update, h CommandHandler) {
	if up.Message == nil || !up.Message.IsCommand() {
		return
	}
	chatID := up.Message.Chat.ID
	if !t.allowed(chatID) {
		t.log.Debug().Int64("chat", chatID).Msg("ignoring command from unknown chat")
		return
	}

	reply := h(up.Message.Command(), up.Message.CommandArguments())
	if reply == "" {
		return
	}
	if _, err := t.send.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
		t.log.Warn().Err(err).Int64("chat", chatID).Msg("command reply failed")
	}
}

func (t *Telegram) allowed(chatID int64) bool {
	for _, id := range t.signalChats {
		if id == chatID {
			return true
		}
	}
	for _, id := range t.exitChats {
		if id == chatID {
			return true
		}
	}
	return false
}
