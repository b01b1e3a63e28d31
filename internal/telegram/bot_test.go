package telegram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fame/internal/app"
	"fame/internal/config"
	"fame/internal/database"
	"fame/internal/diet"
	"fame/internal/llm"
	"fame/internal/metrics"
	"fame/internal/notify"
	"fame/internal/planner"
	"fame/internal/profile"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	userID  int64 = 7
	adminID int64 = 99
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) HandleUpdate(r *http.Request) (*tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		return nil, err
	}
	return &update, nil
}

// texts returns the text of every message sent or edited since the last call.
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	f.sent = nil
	return out
}

func (f *fakeAPI) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewDB(filepath.Join(dir, "fame.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	cfg := &config.Config{
		DatabasePath:           filepath.Join(dir, "fame.db"),
		AdminTelegramID:        adminID,
		TelegramAllowedUserIDs: []int64{userID},
	}
	plans := planner.NewPlanRepository(db.SQL)
	a := app.NewApp(app.Dependencies{
		Profiles:  profile.NewRepository(db.SQL),
		Plans:     plans,
		Planner:   planner.NewPlanner(planner.NewPromptComposer(""), llm.NewClient(nil, time.Second, logger), plans, logger),
		Importer:  diet.NewImporter(nil),
		Metrics:   metrics.NewStore(db.SQL),
		Collector: metrics.NewProviderCollector(prometheus.NewRegistry()),
		Mailer:    notify.NewLogSender(logger),
		Config:    cfg,
		Logger:    logger,
	})

	api := &fakeAPI{}
	return newBot(api, a, cfg, logger), api
}

func message(from int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, UserName: "mario", FirstName: "Mario"},
		Chat:      &tgbotapi.Chat{ID: from},
		Text:      text,
	}
}

func joined(texts []string) string {
	return strings.Join(texts, "\n---\n")
}

func TestPlanConversation(t *testing.T) {
	b, api := newTestBot(t)

	b.processMessage(message(userID, "/start"))
	assert.Contains(t, joined(api.texts()), "Welcome Mario!")

	b.processMessage(message(userID, "/plan"))
	assert.Contains(t, joined(api.texts()), "Upload your diet first")

	b.processMessage(message(userID, "/diet Pranzo: 80g pasta\nCena: 150g pesce"))
	assert.Contains(t, joined(api.texts()), "Diet saved")

	b.processMessage(message(userID, "/avoid funghi, , olive"))
	assert.Equal(t, []string{"✅ Foods to avoid: funghi, olive"}, api.texts())

	b.processMessage(message(userID, "/plan"))
	out := joined(api.texts())
	assert.Contains(t, out, "✅ Plan for the week starting "+b.app.NextWeek().Format("2006-01-02"))
	assert.Contains(t, out, "demo plan")
	assert.Contains(t, out, "LUNEDÌ")
	assert.Contains(t, out, "🛒 Shopping List")

	// A second request asks which week to plan.
	b.processMessage(message(userID, "/plan"))
	edit, ok := api.last().(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Contains(t, edit.Text, "A plan already exists for next week")
	require.NotNil(t, edit.ReplyMarkup)
	assert.Equal(t, "next|", *edit.ReplyMarkup.InlineKeyboard[0][1].CallbackData)
	api.texts()

	b.handleCallbackQuery(&tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: message(userID, ""),
		Data:    "next|",
	})
	following := b.app.NextWeek().AddDate(0, 0, 7).Format("2006-01-02")
	assert.Contains(t, joined(api.texts()), "✅ Plan for the week starting "+following)

	b.processMessage(message(userID, "/show"))
	assert.Contains(t, joined(api.texts()), "LUNEDÌ")

	b.processMessage(message(userID, "/delete lunedì pranzo"))
	out = joined(api.texts())
	assert.Contains(t, out, "Removed lunch on monday")
	assert.Contains(t, out, planner.StaleShoppingListNote)

	b.processMessage(message(userID, "/delete monday lunch"))
	assert.Equal(t, []string{"⚠️ There is no lunch on monday in your plan."}, api.texts())

	b.processMessage(message(userID, "/delete someday"))
	assert.Contains(t, joined(api.texts()), "Usage: /delete monday lunch")
}

func TestProviderCommand(t *testing.T) {
	b, api := newTestBot(t)

	b.processMessage(message(userID, "/provider mistral abc"))
	assert.Contains(t, joined(api.texts()), "Unsupported provider")
	assert.Empty(t, api.requests)

	b.processMessage(message(userID, "/provider Claude sk-secret"))
	assert.Equal(t, []string{"✅ Provider set to claude."}, api.texts())
	require.Len(t, api.requests, 1)
	_, ok := api.requests[0].(tgbotapi.DeleteMessageConfig)
	assert.True(t, ok, "the message carrying the key is deleted")
}

func TestProfileCommands(t *testing.T) {
	b, api := newTestBot(t)

	b.processMessage(message(userID, "/email not-an-address"))
	assert.Contains(t, joined(api.texts()), "valid address")

	b.processMessage(message(userID, "/email mario@example.com"))
	assert.Equal(t, []string{"✅ Plans will be sent to mario@example.com"}, api.texts())

	b.processMessage(message(userID, "/region Toscana"))
	assert.Equal(t, []string{"✅ Region set to Toscana"}, api.texts())

	b.processMessage(message(userID, "/training 3 lunedì, giovedì"))
	assert.Equal(t, []string{"✅ Training 3 times per week (lunedì, giovedì)."}, api.texts())

	b.processMessage(message(userID, "/training off"))
	assert.Equal(t, []string{"✅ Training disabled."}, api.texts())

	b.processMessage(message(userID, "ciao"))
	assert.Contains(t, joined(api.texts()), "/plan [email]")
}

func TestMetricsCommand(t *testing.T) {
	b, api := newTestBot(t)

	b.processMessage(message(userID, "/metrics"))
	assert.Equal(t, []string{"⛔ Access Denied: Admin only."}, api.texts())

	b.processMessage(message(adminID, "/metrics"))
	out := joined(api.texts())
	assert.Contains(t, out, "📊 Usage & Health Report")
	assert.Contains(t, out, "No data yet")
}

func TestHandleWebhookRejectsStrangers(t *testing.T) {
	b, api := newTestBot(t)

	body, err := json.Marshal(tgbotapi.Update{Message: message(12345, "/start")})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	b.HandleWebhook(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body))))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, api.texts())

	w = httptest.NewRecorder()
	b.HandleWebhook(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmptyAllowlistAdmitsOnlyAdmin(t *testing.T) {
	b, _ := newTestBot(t)
	b.cfg.TelegramAllowedUserIDs = nil

	assert.True(t, b.isAllowed(&tgbotapi.User{ID: adminID}))
	assert.False(t, b.isAllowed(&tgbotapi.User{ID: userID}))
	assert.False(t, b.isAllowed(nil))
}

func TestFormatUsageReport(t *testing.T) {
	report := &app.UsageReport{
		Daily: []metrics.DailyUsage{
			{Date: "2024-01-10", TotalPrompt: 1200, TotalCompletion: 800, TotalExecution: 3, DemoExecutions: 1},
		},
		Health: metrics.SysHealth{AllocMB: 12, SysMB: 40, Goroutines: 9, Uptime: time.Hour, DataSize: "2.0 MB"},
	}
	out := formatUsageReport(report)
	assert.Contains(t, out, "• 2024-01-10: 2000 tokens (3 execs, 1 demo)")
	assert.Contains(t, out, "• RAM: 12MB (Alloc) / 40MB (Sys)")
	assert.Contains(t, out, "• Disk Data: 2.0 MB")
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text, cmd, args string
	}{
		{"/plan", "plan", ""},
		{"/Plan@FameBot email", "plan", "email"},
		{"/diet\nPranzo: pasta\nCena: pesce", "diet", "Pranzo: pasta\nCena: pesce"},
		{"  /avoid  funghi, olive ", "avoid", "funghi, olive"},
		{"https://example.com/dieta", "", "https://example.com/dieta"},
	}
	for _, tt := range tests {
		cmd, args := parseCommand(tt.text)
		assert.Equal(t, tt.cmd, cmd, tt.text)
		assert.Equal(t, tt.args, args, tt.text)
	}
}

func TestParseTraining(t *testing.T) {
	trains, freq, days, err := parseTraining("3 lun, mer, ven")
	require.NoError(t, err)
	assert.True(t, trains)
	assert.Equal(t, 3, freq)
	assert.Equal(t, "lun, mer, ven", days)

	trains, _, _, err = parseTraining("OFF")
	require.NoError(t, err)
	assert.False(t, trains)

	for _, bad := range []string{"", "many", "0 lun", "8"} {
		_, _, _, err := parseTraining(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseMealRef(t *testing.T) {
	day, meal, err := parseMealRef("Venerdì cena")
	require.NoError(t, err)
	assert.Equal(t, planner.Friday, day)
	assert.Equal(t, planner.Dinner, meal)

	day, meal, err = parseMealRef("sunday LUNCH")
	require.NoError(t, err)
	assert.Equal(t, planner.Sunday, day)
	assert.Equal(t, planner.Lunch, meal)

	_, _, err = parseMealRef("funday lunch")
	assert.ErrorContains(t, err, "unknown day")
	_, _, err = parseMealRef("monday brunch")
	assert.Error(t, err)
	_, _, err = parseMealRef("monday")
	assert.Error(t, err)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Nil(t, splitMessage("", 10))

	parts := splitMessage("line one\nline two\nline three", 18)
	assert.Equal(t, []string{"line one\nline two", "line three"}, parts)

	// No line break: the cut backs off to a rune boundary.
	parts = splitMessage("ààààà", 5)
	assert.Equal(t, []string{"àà", "àà", "à"}, parts)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 5)
	}
}
