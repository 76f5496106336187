package bot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"fitness-bot/internal/coach"
	"fitness-bot/internal/payment"
	"fitness-bot/internal/profile"
	"fitness-bot/internal/program"
	"fitness-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of the Telegram API the handlers talk to.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Deps struct {
	Profiles *profile.Service
	Programs *program.Service
	Coach    *coach.Service
	// Payments may be nil; /buy then explains that purchases are unavailable.
	Payments *payment.StripeClient
}

type TelegramBot struct {
	bot    *tgbotapi.BotAPI
	api    sender
	deps   Deps
	logger *logger.Logger

	// running handlers and level watchers; Stop waits for them
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	watchMutex sync.Mutex
	watchers   map[int64]context.CancelFunc

	callbackURL string
}

func NewTelegramBot(token string, deps Deps, logger *logger.Logger) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	logger.Infow("Authorized on Telegram", "username", bot.Self.UserName)

	t := newTelegramBot(bot, deps, logger)
	t.bot = bot
	t.callbackURL = fmt.Sprintf("https://t.me/%s", bot.Self.UserName)
	return t, nil
}

func newTelegramBot(api sender, deps Deps, logger *logger.Logger) *TelegramBot {
	ctx, cancel := context.WithCancel(context.Background())
	return &TelegramBot{
		api:      api,
		deps:     deps,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		watchers: make(map[int64]context.CancelFunc),
	}
}

// Start begins receiving updates from Telegram via polling
func (t *TelegramBot) Start(ctx context.Context) error {
	// First, remove any existing webhook to ensure we can use polling
	t.logger.Info("Removing any existing webhook")
	_, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	t.logger.Info("Webhook removed, starting polling for updates")

	// Configure update channel
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	// Start receiving updates
	updates := t.bot.GetUpdatesChan(updateConfig)

	t.logger.Info("Started receiving Telegram updates")

	// Handle updates in a goroutine
	go t.handleUpdates(ctx, updates)

	return nil
}

// handleUpdates processes incoming updates from Telegram
func (t *TelegramBot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer t.wg.Done()
				t.handleUpdate(update)
			}(update)
		}
	}
}

func (t *TelegramBot) handleUpdate(update tgbotapi.Update) {
	// Add recovery for panics
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorw("Recovered from panic while processing update", "error", r, "update_id", update.UpdateID)
		}
	}()

	t.logger.Debugw("Received update", "update_id", update.UpdateID)

	ctx, cancel := context.WithTimeout(t.ctx, 2*time.Minute)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.From != nil:
		if update.Message.IsCommand() {
			t.handleCommand(ctx, update.Message)
		} else {
			t.handleMessage(ctx, update.Message)
		}
	case update.CallbackQuery != nil:
		t.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// Stop gracefully shuts down the bot
func (t *TelegramBot) Stop(ctx context.Context) error {
	// Stop receiving updates
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	t.cancel()

	// Allow time for handlers and watchers to complete
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (t *TelegramBot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Errorw("Failed to send message", "chat_id", chatID, "error", err)
	}
}

func uid(id int64) string {
	return strconv.FormatInt(id, 10)
}
