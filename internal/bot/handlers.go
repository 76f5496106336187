package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"fitness-bot/internal/coach"
	"fitness-bot/internal/models"
	"fitness-bot/internal/payment"
	"fitness-bot/internal/profile"
	"fitness-bot/internal/program"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const buyPrefix = "buy:"

// handleCommand processes bot commands
func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	args := strings.TrimSpace(message.CommandArguments())
	chatID := message.Chat.ID
	userID := message.From.ID
	locale := localeOf(message.From)

	t.logger.Infow("Handling command", "command", command, "user_id", userID)

	switch command {
	case "start":
		t.handleStart(ctx, message, locale)
	case "help":
		t.send(chatID, helpText(locale))
	case "profile":
		t.handleProfile(ctx, chatID, userID, locale)
	case "program":
		t.handleProgram(ctx, chatID, userID, locale)
	case "done":
		t.handleDone(ctx, chatID, userID, args, locale)
	case "reset":
		if _, err := t.deps.Profiles.ResetCompletedSets(ctx, uid(userID)); err != nil {
			t.replyError(chatID, userID, err, locale)
			return
		}
		t.send(chatID, pick(locale, "🔄 New cycle started. Every set earns XP again.", "🔄 Yeni döngü başladı. Her set yeniden XP kazandırır."))
	case "coach":
		t.handleAsk(ctx, chatID, userID, args, locale)
	case "generate", "revise":
		t.handleGenerate(ctx, chatID, userID, args, locale, command == "revise")
	case "credits":
		t.handleCredits(ctx, chatID, userID, locale)
	case "buy":
		t.handleBuy(ctx, chatID, userID, args, locale)
	default:
		// Unknown command
		t.send(chatID, pick(locale, "Unknown command. Use /help to see what I can do.", "Bilinmeyen komut. Neler yapabildiğimi görmek için /help yaz."))
	}
}

// handleMessage treats plain text as a question for the coach.
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if strings.TrimSpace(message.Text) == "" {
		return
	}
	t.handleAsk(ctx, message.Chat.ID, message.From.ID, message.Text, localeOf(message.From))
}

// handleCallbackQuery processes callback queries from inline keyboards
func (t *TelegramBot) handleCallbackQuery(ctx context.Context, callbackQuery *tgbotapi.CallbackQuery) {
	t.logger.Infow("Received callback query", "data", callbackQuery.Data)

	// Acknowledge the callback
	callback := tgbotapi.NewCallback(callbackQuery.ID, "")
	if _, err := t.api.Request(callback); err != nil {
		t.logger.Errorw("Failed to answer callback query", "error", err)
	}

	if callbackQuery.Message == nil || callbackQuery.From == nil {
		return
	}
	if product := strings.TrimPrefix(callbackQuery.Data, buyPrefix); product != callbackQuery.Data {
		t.handleBuy(ctx, callbackQuery.Message.Chat.ID, callbackQuery.From.ID, product, localeOf(callbackQuery.From))
	}
}

func (t *TelegramBot) handleStart(ctx context.Context, message *tgbotapi.Message, locale string) {
	chatID := message.Chat.ID
	userID := message.From.ID

	switch message.CommandArguments() {
	case "payment_success":
		t.send(chatID, pick(locale, "Thank you for your payment! Your purchase will be applied in a moment.", "Ödemen için teşekkürler! Satın alımın birazdan hesabına eklenecek."))
		return
	case "payment_cancel":
		t.send(chatID, pick(locale, "The payment was cancelled. You can try again with /buy.", "Ödeme iptal edildi. /buy ile tekrar deneyebilirsin."))
		return
	}

	name := strings.TrimSpace(message.From.FirstName + " " + message.From.LastName)
	p, err := t.deps.Profiles.Create(ctx, uid(userID), models.NewProfile{DisplayName: name})
	if errors.Is(err, profile.ErrAlreadyExists) {
		p, err = t.deps.Profiles.Get(ctx, uid(userID))
	}
	if err != nil {
		t.replyError(chatID, userID, err, locale)
		return
	}

	if _, err := t.deps.Profiles.UpdateActiveDays(ctx, uid(userID)); err != nil {
		t.logger.Errorw("Failed to update active days", "user_id", userID, "error", err)
	}
	t.watchLevel(userID, chatID, locale)

	t.send(chatID, welcomeText(locale, p.DisplayName)+"\n\n"+helpText(locale))
}

func (t *TelegramBot) handleProfile(ctx context.Context, chatID, userID int64, locale string) {
	p, err := t.deps.Profiles.Get(ctx, uid(userID))
	if err != nil {
		t.replyError(chatID, userID, err, locale)
		return
	}
	t.send(chatID, profileText(locale, p, t.deps.Profiles.XPPerLevel()))
}

func (t *TelegramBot) handleProgram(ctx context.Context, chatID, userID int64, locale string) {
	p, err := t.deps.Programs.Get(ctx, uid(userID))
	if err != nil {
		t.replyError(chatID, userID, err, locale)
		return
	}
	t.send(chatID, programText(locale, p))
}

// handleDone takes "/done <exerciseId> <set>" with a 1-based set number.
func (t *TelegramBot) handleDone(ctx context.Context, chatID, userID int64, args, locale string) {
	usage := pick(locale, "Usage: /done <exerciseId> <set>, e.g. /done 0190a1b2 1", "Kullanım: /done <egzersizId> <set>, örn. /done 0190a1b2 1")

	fields := strings.Fields(args)
	if len(fields) != 2 {
		t.send(chatID, usage)
		return
	}
	set, err := strconv.Atoi(fields[1])
	if err != nil || set < 1 {
		t.send(chatID, usage)
		return
	}

	exercise, ok := t.findExercise(ctx, userID, fields[0])
	if !ok {
		t.send(chatID, pick(locale, "I can't find that exercise in your program. See /program.", "Bu egzersizi programında bulamadım. /program'a bak."))
		return
	}
	if set > exercise.Sets {
		t.send(chatID, usage)
		return
	}

	// watchers do not survive restarts; make sure this user's level-ups are announced
	t.watchLevel(userID, chatID, locale)

	res, err := t.deps.Profiles.CompleteSet(ctx, uid(userID), exercise.ID, set-1)
	if err != nil {
		t.replyError(chatID, userID, err, locale)
		return
	}
	if _, err := t.deps.Profiles.UpdateActiveDays(ctx, uid(userID)); err != nil {
		t.logger.Errorw("Failed to update active days", "user_id", userID, "error", err)
	}

	t.send(chatID, setDoneText(locale, res, t.deps.Profiles.XPPerLevel()))
}

// findExercise matches the full id or an unambiguous id prefix, so users can type the short form. The local
// mirror is tried first; a miss falls back to a fresh read.
func (t *TelegramBot) findExercise(ctx context.Context, userID int64, ref string) (models.Exercise, bool) {
	if p, ok := t.deps.Programs.Mirror(uid(userID)); ok {
		if e, ok := matchExercise(p, ref); ok {
			return e, true
		}
	}
	p, err := t.deps.Programs.Get(ctx, uid(userID))
	if err != nil {
		return models.Exercise{}, false
	}
	return matchExercise(p, ref)
}

func matchExercise(p *models.Program, ref string) (models.Exercise, bool) {
	var (
		match models.Exercise
		found int
	)
	for _, d := range p.Days {
		for _, e := range d.Exercises {
			if e.ID == ref {
				return e, true
			}
			if strings.HasPrefix(e.ID, ref) {
				match = e
				found++
			}
		}
	}
	return match, found == 1
}

func (t *TelegramBot) handleAsk(ctx context.Context, chatID, userID int64, text, locale string) {
	if strings.TrimSpace(text) == "" {
		t.send(chatID, pick(locale, "Ask me anything, e.g. /coach how do I squat deeper?", "Bana istediğini sor, örn. /coach daha derin squat nasıl yaparım?"))
		return
	}

	t.typing(chatID)
	reply, err := t.deps.Coach.Ask(ctx, uid(userID), text, locale)
	if err != nil {
		t.replyError(chatID, userID, err, locale)
		return
	}
	t.send(chatID, reply)
}

func (t *TelegramBot) handleGenerate(ctx context.Context, chatID, userID int64, request, locale string, revise bool) {
	if strings.TrimSpace(request) == "" {
		t.send(chatID, pick(locale, "Tell me your goal, e.g. /generate 4 days, muscle gain", "Hedefini yaz, örn. /generate 4 gün, kas kazanımı"))
		return
	}

	t.typing(chatID)
	var (
		res *coach.Result
		err error
	)
	if revise {
		res, err = t.deps.Coach.ReviseProgram(ctx, uid(userID), request, locale)
	} else {
		res, err = t.deps.Coach.GenerateProgram(ctx, uid(userID), request, locale)
	}
	if err != nil {
		t.replyError(chatID, userID, err, locale)
		return
	}

	text := programText(locale, res.Program)
	if res.Credits != nil && !res.Credits.Unlimited {
		text += "\n" + pick(locale, "🎟 Credits left: ", "🎟 Kalan kredi: ") + strconv.Itoa(res.Credits.Remaining)
	}
	t.send(chatID, text)
}

func (t *TelegramBot) handleCredits(ctx context.Context, chatID, userID int64, locale string) {
	p, err := t.deps.Profiles.Get(ctx, uid(userID))
	if err != nil {
		t.replyError(chatID, userID, err, locale)
		return
	}

	text := creditsLine(locale, p)
	if !profile.CheckCredits(p).CanUse {
		text += "\n" + pick(locale, "Get more with /buy.", "Daha fazlası için /buy.")
	}
	t.send(chatID, text)
}

// handleBuy shows the product menu, or the checkout link when a product was chosen.
func (t *TelegramBot) handleBuy(ctx context.Context, chatID, userID int64, product, locale string) {
	if t.deps.Payments == nil || !t.deps.Payments.Enabled() {
		t.send(chatID, pick(locale, "Purchases are not available right now.", "Satın alma şu anda kullanılamıyor."))
		return
	}

	if product == "" {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(payment.ProductIDs()))
		for _, id := range payment.ProductIDs() {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(productLabel(locale, id), buyPrefix+id),
			))
		}
		msg := tgbotapi.NewMessage(chatID, pick(locale, "Choose a credit pack or a Premium plan:", "Bir kredi paketi veya Premium plan seç:"))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
		if _, err := t.api.Send(msg); err != nil {
			t.logger.Errorw("Failed to send product menu", "error", err)
		}
		return
	}

	if _, err := t.deps.Profiles.Get(ctx, uid(userID)); err != nil {
		t.replyError(chatID, userID, err, locale)
		return
	}

	var successURL, cancelURL string
	if t.callbackURL != "" {
		successURL = t.callbackURL + "?start=payment_success"
		cancelURL = t.callbackURL + "?start=payment_cancel"
	}

	_, checkoutURL, err := t.deps.Payments.CreateCheckoutSession(uid(userID), product, successURL, cancelURL)
	if err != nil {
		t.logger.Errorw("Failed to create Stripe session", "user_id", userID, "product", product, "error", err)
		t.send(chatID, pick(locale, "Sorry, the payment page could not be created. Please try again later.", "Üzgünüz, ödeme sayfası oluşturulamadı. Lütfen daha sonra tekrar dene."))
		return
	}

	// Send the payment link using URL directly from Stripe
	msg := tgbotapi.NewMessage(chatID, productLabel(locale, product))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(pick(locale, "Pay", "Öde"), checkoutURL),
		),
	)
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Errorw("Failed to send payment link", "error", err)
	}
}

// NotifyPurchase tells the buyer their purchase was applied. Telegram private chat ids equal user ids.
func (t *TelegramBot) NotifyPurchase(_ context.Context, p payment.Purchase) {
	chatID, err := strconv.ParseInt(p.UserID, 10, 64)
	if err != nil {
		return
	}

	switch {
	case p.Revoke:
		t.send(chatID, "Your Premium subscription has ended. / Premium aboneliğin sona erdi.")
	case p.Premium:
		t.send(chatID, "💎 Premium is active. Enjoy unlimited generations! / Premium aktif!")
	default:
		t.send(chatID, "🎟 +"+strconv.Itoa(p.Credits)+" credits / kredi")
	}
}

func (t *TelegramBot) typing(chatID int64) {
	if _, err := t.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		t.logger.Debugw("Failed to send typing action", "error", err)
	}
}

// replyError logs unexpected failures and sends the localized message for err.
func (t *TelegramBot) replyError(chatID, userID int64, err error, locale string) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		t.send(chatID, pick(locale, "Please use /start first.", "Lütfen önce /start yaz."))
		return
	case errors.Is(err, program.ErrNotFound):
		t.send(chatID, pick(locale, "You don't have a program yet. Create one with /generate.", "Henüz bir programın yok. /generate ile oluştur."))
		return
	}

	if coach.Classify(err) == coach.ClassGeneric {
		t.logger.Errorw("Request failed", "user_id", userID, "error", err)
	}
	t.send(chatID, coach.UserMessage(err, locale))
}
