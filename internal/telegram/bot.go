package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fame/internal/app"
	"fame/internal/config"
	"fame/internal/diet"
	"fame/internal/llm"
	"fame/internal/notify"
	"fame/internal/planner"
	"fame/internal/profile"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	// maxMessageLength is Telegram's limit for one text message.
	maxMessageLength = 4096

	planTimeout    = 3 * time.Minute
	commandTimeout = 30 * time.Second

	actionRedo = "redo"
	actionNext = "next"
)

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Bot wraps the Telegram API around the Fame use cases.
type Bot struct {
	api    botAPI
	app    *app.App
	cfg    *config.Config
	logger *zap.Logger
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, a *app.App, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("account", api.Self.UserName))

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
		}
		resp, err := api.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		logger.Info("webhook set", zap.String("description", resp.Description))
	}

	return newBot(api, a, cfg, logger), nil
}

func newBot(api botAPI, a *app.App, cfg *config.Config, logger *zap.Logger) *Bot {
	return &Bot{api: api, app: a, cfg: cfg, logger: logger}
}

// HandleWebhook receives one update from Telegram. Messages are processed
// on their own goroutine so Telegram gets its answer immediately.
func (b *Bot) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.logger.Warn("error parsing update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	switch {
	case update.CallbackQuery != nil:
		if !b.isAllowed(update.CallbackQuery.From) {
			return
		}
		go b.handleCallbackQuery(update.CallbackQuery)
	case update.Message != nil:
		if !b.isAllowed(update.Message.From) {
			return
		}
		go b.processMessage(update.Message)
	}
}

func (b *Bot) isAllowed(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	if b.cfg.AdminTelegramID != 0 && from.ID == b.cfg.AdminTelegramID {
		return true
	}
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if from.ID == id {
			return true
		}
	}
	b.logger.Warn("unauthorized access attempt", zap.Int64("telegram_id", from.ID), zap.String("username", from.UserName))
	return false
}

func userKey(u *tgbotapi.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	cmd, args := parseCommand(msg.Text)

	switch cmd {
	case "start", "help":
		b.handleStart(msg)
	case "diet":
		b.handleDiet(msg, args)
	case "avoid":
		b.handleAvoid(msg, args)
	case "region":
		b.handleRegion(msg, args)
	case "training":
		b.handleTraining(msg, args)
	case "provider":
		b.handleProvider(msg, args)
	case "email":
		b.handleEmail(msg, args)
	case "plan":
		b.handlePlanRequest(msg, args)
	case "show":
		b.handleShow(msg)
	case "delete":
		b.handleDelete(msg, args)
	case "metrics":
		b.handleMetricsRequest(msg)
	case "":
		if diet.IsURL(msg.Text) {
			b.handleDiet(msg, msg.Text)
			return
		}
		b.reply(msg.Chat.ID, helpText)
	default:
		b.reply(msg.Chat.ID, "🤔 Unknown command.\n\n"+helpText)
	}
}

const helpText = `🥗 Fame prepares your weekly meal plan from your nutritionist's diet.

/diet <text or link> - upload your diet (or just send the link)
/avoid funghi, olive - foods to avoid
/region <name> - prefer seasonal regional produce
/training <times per week> <days> - training schedule (/training off to disable)
/provider <gemini|openai|claude|groq> <api key> - your AI provider
/email <address> - where to send the plan
/plan [email] - plan next week
/show - show your latest plan
/delete <day> <lunch|dinner> - remove a meal from your latest plan`

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, err := b.app.Profile(ctx, userKey(msg.From), msg.From.UserName); err != nil {
		b.fail(msg.Chat.ID, "loading your profile", err)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("👋 Welcome %s!\n\n%s", msg.From.FirstName, helpText))
}

func (b *Bot) handleDiet(msg *tgbotapi.Message, args string) {
	if strings.TrimSpace(args) == "" {
		b.reply(msg.Chat.ID, "📄 Send /diet followed by your diet text or a link to it.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	userID := userKey(msg.From)
	if _, err := b.app.Profile(ctx, userID, msg.From.UserName); err != nil {
		b.fail(msg.Chat.ID, "loading your profile", err)
		return
	}
	d, err := b.app.ImportDiet(ctx, userID, args)
	if err != nil {
		b.fail(msg.Chat.ID, "importing your diet", err)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Diet saved (%d characters). Use /plan to generate next week's plan.", len([]rune(d.Content))))
}

func (b *Bot) handleAvoid(msg *tgbotapi.Message, args string) {
	b.updateProfile(msg, func(p *profile.Profile) string {
		p.SetDisliked(planner.ParseDisliked(args))
		if p.Disliked == "" {
			return "✅ No foods to avoid."
		}
		return "✅ Foods to avoid: " + p.Disliked
	})
}

func (b *Bot) handleRegion(msg *tgbotapi.Message, args string) {
	b.updateProfile(msg, func(p *profile.Profile) string {
		p.Region = strings.TrimSpace(args)
		if p.Region == "" {
			return "✅ Region cleared."
		}
		return "✅ Region set to " + p.Region
	})
}

func (b *Bot) handleTraining(msg *tgbotapi.Message, args string) {
	trains, freq, days, err := parseTraining(args)
	if err != nil {
		b.reply(msg.Chat.ID, "⚠️ "+err.Error()+"\nUsage: /training 3 lunedì, mercoledì, venerdì or /training off")
		return
	}
	b.updateProfile(msg, func(p *profile.Profile) string {
		p.Trains, p.TrainingFrequency, p.TrainingDays = trains, freq, days
		if !trains {
			return "✅ Training disabled."
		}
		return fmt.Sprintf("✅ Training %d times per week (%s).", freq, days)
	})
}

func (b *Bot) handleProvider(msg *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.reply(msg.Chat.ID, "Usage: /provider <gemini|openai|claude|groq> <api key>")
		return
	}
	id, ok := llm.ParseProviderID(fields[0])
	if !ok {
		b.reply(msg.Chat.ID, fmt.Sprintf("⚠️ Unsupported provider %q.", fields[0]))
		return
	}
	key := ""
	if len(fields) > 1 {
		key = fields[1]
		// The key should not linger in the chat history.
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
			b.logger.Warn("failed to delete provider message", zap.Error(err))
		}
	}
	b.updateProfile(msg, func(p *profile.Profile) string {
		p.APIProvider, p.APIKey = string(id), key
		if key == "" {
			return fmt.Sprintf("✅ Provider set to %s. Without an API key you will get a demo plan.", id)
		}
		return fmt.Sprintf("✅ Provider set to %s.", id)
	})
}

func (b *Bot) handleEmail(msg *tgbotapi.Message, args string) {
	to, err := notify.Recipients([]string{args})
	if err != nil {
		b.reply(msg.Chat.ID, "⚠️ Please send a valid address: /email nome@example.com")
		return
	}
	b.updateProfile(msg, func(p *profile.Profile) string {
		p.Email = to[0]
		return "✅ Plans will be sent to " + p.Email
	})
}

func (b *Bot) handleShow(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	plan, err := b.app.LatestPlan(ctx, userKey(msg.From))
	if err != nil {
		if errors.Is(err, app.ErrNoPlan) {
			b.reply(msg.Chat.ID, "🗓️ No plan yet. Use /plan to generate one.")
			return
		}
		b.fail(msg.Chat.ID, "loading your plan", err)
		return
	}
	b.sendPlan(msg.Chat.ID, plan)
}

func (b *Bot) handleDelete(msg *tgbotapi.Message, args string) {
	day, meal, err := parseMealRef(args)
	if err != nil {
		b.reply(msg.Chat.ID, "⚠️ "+err.Error()+"\nUsage: /delete monday lunch")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	userID := userKey(msg.From)
	latest, err := b.app.LatestPlan(ctx, userID)
	if err != nil {
		if errors.Is(err, app.ErrNoPlan) {
			b.reply(msg.Chat.ID, "🗓️ No plan yet. Use /plan to generate one.")
			return
		}
		b.fail(msg.Chat.ID, "loading your plan", err)
		return
	}
	week, err := latest.Week()
	if err != nil {
		b.fail(msg.Chat.ID, "loading your plan", err)
		return
	}

	plan, err := b.app.DeleteMeal(ctx, userID, week, day, meal)
	switch {
	case errors.Is(err, planner.ErrInvalidState):
		b.reply(msg.Chat.ID, "⚠️ This plan cannot be edited. Generate a new one with /plan.")
		return
	case errors.Is(err, planner.ErrNotFound):
		b.reply(msg.Chat.ID, fmt.Sprintf("⚠️ There is no %s on %s in your plan.", meal, day))
		return
	case err != nil:
		b.fail(msg.Chat.ID, "editing your plan", err)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("🗑️ Removed %s on %s.", meal, day))
	b.sendPlan(msg.Chat.ID, plan)
}

func (b *Bot) handlePlanRequest(msg *tgbotapi.Message, args string) {
	sentMsg, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, "🧑‍🍳 Thinking...\n(Reading your diet and generating your plan)"))
	if err != nil {
		b.logger.Warn("failed to send initial reply", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), planTimeout)
	defer cancel()

	userID := userKey(msg.From)
	email := strings.EqualFold(strings.TrimSpace(args), "email")
	nextMonday := b.app.NextWeek()

	exists, err := b.app.HasPlanForWeek(ctx, userID, nextMonday)
	if err != nil {
		b.logger.Warn("failed to check existing plan", zap.String("user_id", userID), zap.Error(err))
	}
	if exists {
		promptText := fmt.Sprintf("🗓️ A plan already exists for next week (starting %s).\nWhat would you like to do?",
			nextMonday.Format("2006-01-02"))
		edit := tgbotapi.NewEditMessageText(msg.Chat.ID, sentMsg.MessageID, promptText)
		keyboard := weekChoiceKeyboard(email)
		edit.ReplyMarkup = &keyboard
		b.send(edit)
		return
	}

	b.generateAndSendPlan(ctx, userID, msg.Chat.ID, sentMsg.MessageID, nextMonday, email)
}

func weekChoiceKeyboard(email bool) tgbotapi.InlineKeyboardMarkup {
	flag := ""
	if email {
		flag = "email"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Redo Next Week", actionRedo+"|"+flag),
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Plan Following Week", actionNext+"|"+flag),
		),
	)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	action, flag, _ := strings.Cut(query.Data, "|")

	var targetWeek time.Time
	switch action {
	case actionRedo:
		targetWeek = b.app.NextWeek()
	case actionNext:
		targetWeek = b.app.NextWeek().AddDate(0, 0, 7)
	default:
		return
	}

	// Answer callback to remove spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("failed to answer callback", zap.Error(err))
	}

	chatID, messageID := query.Message.Chat.ID, query.Message.MessageID
	b.send(tgbotapi.NewEditMessageText(chatID, messageID, "🧑‍🍳 Thinking..."))

	ctx, cancel := context.WithTimeout(context.Background(), planTimeout)
	defer cancel()
	b.generateAndSendPlan(ctx, userKey(query.From), chatID, messageID, targetWeek, flag == "email")
}

func (b *Bot) generateAndSendPlan(ctx context.Context, userID string, chatID int64, messageID int, week time.Time, email bool) {
	out, err := b.app.GenerateForUser(ctx, userID, app.GenerateOptions{Week: week, Email: email})
	if err != nil {
		var text string
		switch {
		case errors.Is(err, app.ErrNoDiet):
			text = "📄 Upload your diet first with /diet <text or link>."
		default:
			b.logger.Error("error generating plan", zap.String("user_id", userID), zap.Error(err))
			text = "❌ Error generating plan:\n" + err.Error()
		}
		b.send(tgbotapi.NewEditMessageText(chatID, messageID, text))
		return
	}

	header := fmt.Sprintf("✅ Plan for the week starting %s", out.Plan.WeekStart)
	if out.Result.Demo {
		header += "\nℹ️ This is a demo plan. Set your AI provider with /provider to get a personalised one."
	}
	b.send(tgbotapi.NewEditMessageText(chatID, messageID, header))
	b.sendPlan(chatID, out.Plan)

	if email {
		switch {
		case out.EmailErr != nil:
			b.reply(chatID, "⚠️ The plan could not be emailed: "+out.EmailErr.Error())
		default:
			b.reply(chatID, "📧 Sent to "+strings.Join(out.Recipients, ", "))
		}
	}
}

func (b *Bot) sendPlan(chatID int64, plan *planner.StoredPlan) {
	for _, part := range splitMessage(plan.Content, maxMessageLength) {
		b.reply(chatID, part)
	}
	for _, part := range splitMessage("🛒 Shopping List\n\n"+plan.ShoppingList, maxMessageLength) {
		b.reply(chatID, part)
	}
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if b.cfg.AdminTelegramID == 0 || msg.From.ID != b.cfg.AdminTelegramID {
		b.reply(msg.Chat.ID, "⛔ Access Denied: Admin only.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	report, err := b.app.Usage(ctx, 7)
	if err != nil {
		b.fail(msg.Chat.ID, "fetching metrics", err)
		return
	}
	b.reply(msg.Chat.ID, formatUsageReport(report))
}

func formatUsageReport(report *app.UsageReport) string {
	var sb strings.Builder
	sb.WriteString("📊 Usage & Health Report\n\n")

	sb.WriteString("🗓 Recent LLM Activity\n")
	if len(report.Daily) == 0 {
		sb.WriteString("No data yet\n")
	}
	for _, d := range report.Daily {
		fmt.Fprintf(&sb, "• %s: %d tokens (%d execs, %d demo)\n",
			d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.DemoExecutions)
	}

	h := report.Health
	sb.WriteString("\n🧠 System Health\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", h.AllocMB, h.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", h.Goroutines)
	fmt.Fprintf(&sb, "• Uptime: %s\n", h.Uptime)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", h.DataSize)
	return sb.String()
}

func (b *Bot) updateProfile(msg *tgbotapi.Message, apply func(p *profile.Profile) string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	p, err := b.app.Profile(ctx, userKey(msg.From), msg.From.UserName)
	if err != nil {
		b.fail(msg.Chat.ID, "loading your profile", err)
		return
	}
	text := apply(p)
	if err := b.app.SaveProfile(ctx, p); err != nil {
		b.fail(msg.Chat.ID, "saving your profile", err)
		return
	}
	b.reply(msg.Chat.ID, text)
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("failed to send telegram message", zap.Error(err))
	}
}

func (b *Bot) fail(chatID int64, action string, err error) {
	b.logger.Error("telegram command failed", zap.String("action", action), zap.Error(err))
	b.reply(chatID, fmt.Sprintf("❌ Error %s: %v", action, err))
}
