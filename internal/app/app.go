package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fame/internal/config"
	"fame/internal/diet"
	"fame/internal/llm"
	"fame/internal/metrics"
	"fame/internal/notify"
	"fame/internal/planner"
	"fame/internal/profile"
	"fame/internal/storage"

	"go.uber.org/zap"
)

var (
	// ErrNoDiet is returned when a user asks for a plan before uploading a diet.
	ErrNoDiet = errors.New("no diet uploaded")

	// ErrNoPlan is returned when no stored plan matches the request.
	ErrNoPlan = errors.New("no plan found")
)

// persistTimeout bounds storing a generated plan once the provider chain is done.
const persistTimeout = 10 * time.Second

// Dependencies bundles the collaborators of App.
type Dependencies struct {
	Profiles  *profile.Repository
	Plans     *planner.PlanRepository
	Planner   *planner.Planner
	Importer  *diet.Importer
	Archive   *storage.PlanArchive
	Metrics   *metrics.Store
	Collector *metrics.ProviderCollector
	Mailer    notify.Sender
	Config    *config.Config
	Logger    *zap.Logger
}

// App holds the application's dependencies and implements the use cases
// shared by the CLI, the API and the Telegram bot.
type App struct {
	profiles  *profile.Repository
	plans     *planner.PlanRepository
	planner   *planner.Planner
	importer  *diet.Importer
	archive   *storage.PlanArchive
	metrics   *metrics.Store
	collector *metrics.ProviderCollector
	mailer    notify.Sender
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewApp creates and initializes a new App instance.
func NewApp(deps Dependencies) *App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &App{
		profiles:  deps.Profiles,
		plans:     deps.Plans,
		planner:   deps.Planner,
		importer:  deps.Importer,
		archive:   deps.Archive,
		metrics:   deps.Metrics,
		collector: deps.Collector,
		mailer:    deps.Mailer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateOptions tunes GenerateForUser.
type GenerateOptions struct {
	// Week is the Monday to plan; zero means the next Monday.
	Week time.Time
	// Email sends the plan to Recipients, or to the profile address when empty.
	Email      bool
	Recipients []string
}

// Outcome is the result of GenerateForUser.
type Outcome struct {
	Plan       *planner.StoredPlan
	Result     planner.GenerationResult
	Recipients []string
	EmailErr   error
}

// GenerateForUser generates, stores, archives and optionally emails the plan
// for a user's week. Provider failures never surface here; they degrade to
// demo content inside the planner.
func (a *App) GenerateForUser(ctx context.Context, userID string, opts GenerateOptions) (*Outcome, error) {
	p, err := a.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	d, err := a.profiles.LatestDiet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if d == nil || d.Content == "" {
		return nil, ErrNoDiet
	}

	week := opts.Week
	if week.IsZero() {
		week = planner.NextMonday(a.now())
	}

	req := p.Request(d.Content)
	req.WeekStart = week
	if a.cfg.FallbackProvider != "" {
		req.FallbackProvider = llm.ProviderID(a.cfg.FallbackProvider)
		req.FallbackCredential = a.cfg.FallbackAPIKey
	}

	result, meta, err := a.planner.GeneratePlan(ctx, req)
	if err != nil {
		return nil, err
	}

	// The provider chain may use up the caller's deadline before it falls
	// back to demo content; the result is stored regardless.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if a.metrics != nil {
		if err := a.metrics.RecordMeta(storeCtx, meta); err != nil {
			a.logger.Warn("failed to record usage metrics", zap.Error(err))
		}
	}
	if a.collector != nil {
		a.collector.ObserveGeneration(meta)
	}

	stored, err := a.plans.Replace(storeCtx, userID, week, result)
	if err != nil {
		return nil, fmt.Errorf("failed to store plan: %w", err)
	}
	a.archivePlan(stored, result.Demo)

	a.logger.Info("plan generated",
		zap.String("user_id", userID),
		zap.String("week_start", stored.WeekStart),
		zap.String("provider", meta.Provider),
		zap.String("model", meta.Model),
		zap.Bool("demo", meta.Demo),
		zap.Bool("structured", result.Structured),
		zap.Int("attempts", meta.Attempts))

	out := &Outcome{Plan: stored, Result: result}
	if opts.Email {
		out.Recipients, out.EmailErr = a.sendPlan(ctx, p, stored, opts.Recipients)
	}
	return out, nil
}

// sendPlan emails the plan best-effort. Errors are logged and returned for display only.
func (a *App) sendPlan(ctx context.Context, p *profile.Profile, plan *planner.StoredPlan, recipients []string) ([]string, error) {
	explicit := len(recipients) > 0
	if !explicit && p.Email != "" {
		recipients = []string{p.Email}
	}
	to, err := notify.Recipients(recipients)
	if err != nil {
		a.logger.Warn("plan not emailed", zap.String("user_id", p.ID), zap.Error(err))
		return nil, err
	}
	if a.mailer == nil {
		return nil, errors.New("no mail sender configured")
	}

	msg := notify.Message{
		To:      to,
		Subject: fmt.Sprintf("Your Shopping List for week starting %s", plan.WeekStart),
		Body: fmt.Sprintf("Hello %s,\n\nHere is your meal plan:\n\n%s\n\nShopping List:\n%s\n\nEnjoy your meals!",
			p.Username, plan.Content, plan.ShoppingList),
	}
	if err := a.mailer.Send(ctx, msg); err != nil {
		a.logger.Warn("failed to email plan", zap.String("user_id", p.ID), zap.Strings("to", to), zap.Error(err))
		return to, err
	}

	if explicit {
		for _, addr := range to {
			if err := a.profiles.AddFavoriteEmail(ctx, p.ID, addr); err != nil {
				a.logger.Warn("failed to remember email", zap.String("user_id", p.ID), zap.Error(err))
			}
		}
	}
	return to, nil
}

func (a *App) archivePlan(plan *planner.StoredPlan, demo bool) {
	if a.archive == nil {
		return
	}
	err := a.archive.Save(&storage.ArchivedPlan{
		UserID:       plan.UserID,
		WeekStart:    plan.WeekStart,
		Provider:     plan.Provider,
		Model:        plan.Model,
		Demo:         demo,
		Structured:   plan.Structured(),
		PlanText:     plan.Content,
		ShoppingList: plan.ShoppingList,
		Document:     []byte(plan.JSONContent),
	})
	if err != nil {
		a.logger.Warn("failed to archive plan", zap.String("user_id", plan.UserID), zap.Error(err))
	}
}

// DeleteMeal removes one meal from a stored plan and refreshes its archive copy.
func (a *App) DeleteMeal(ctx context.Context, userID string, week time.Time, day planner.Day, meal planner.MealType) (*planner.StoredPlan, error) {
	plan, err := a.planner.DeleteMeal(ctx, userID, week, day, meal)
	if err != nil {
		return nil, err
	}
	// Demo plans are stored without a provider.
	a.archivePlan(plan, plan.Provider == "")
	return plan, nil
}

// LatestPlan returns the user's most recent plan.
func (a *App) LatestPlan(ctx context.Context, userID string) (*planner.StoredPlan, error) {
	plan, err := a.plans.GetLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNoPlan
	}
	return plan, nil
}

// PlanForWeek returns the user's plan for week.
func (a *App) PlanForWeek(ctx context.Context, userID string, week time.Time) (*planner.StoredPlan, error) {
	plan, err := a.plans.GetByWeek(ctx, userID, week)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNoPlan
	}
	return plan, nil
}

// NextWeek returns the Monday a new generation targets by default.
func (a *App) NextWeek() time.Time {
	return planner.NextMonday(a.now())
}

// HasPlanForWeek reports whether a plan is already stored for week.
func (a *App) HasPlanForWeek(ctx context.Context, userID string, week time.Time) (bool, error) {
	return a.plans.ExistsForWeek(ctx, userID, week)
}

// ImportDiet stores a diet given as text, HTML or a link.
func (a *App) ImportDiet(ctx context.Context, userID, input string) (*profile.Diet, error) {
	d, err := a.importer.Import(ctx, input)
	if err != nil {
		return nil, err
	}
	source := string(d.Source)
	if d.URL != "" {
		source = d.URL
	}
	return a.profiles.SaveDiet(ctx, userID, d.Content, source)
}

// Profile loads a user's profile, creating it on first contact.
func (a *App) Profile(ctx context.Context, userID, username string) (*profile.Profile, error) {
	return a.profiles.GetOrCreate(ctx, userID, username)
}

// SaveProfile persists profile changes.
func (a *App) SaveProfile(ctx context.Context, p *profile.Profile) error {
	return a.profiles.Save(ctx, p)
}

// Export returns the archived JSON copy of a plan.
func (a *App) Export(userID string, week time.Time) (*storage.ArchivedPlan, error) {
	if a.archive == nil {
		return nil, errors.New("plan archive not configured")
	}
	return a.archive.Load(userID, week.Format("2006-01-02"))
}

// UsageReport summarizes provider usage and process health.
type UsageReport struct {
	Daily  []metrics.DailyUsage
	Health metrics.SysHealth
}

// Usage returns the provider usage of the last days and current health.
func (a *App) Usage(ctx context.Context, days int) (*UsageReport, error) {
	daily, err := a.metrics.GetDailyUsage(ctx, days)
	if err != nil {
		return nil, err
	}
	return &UsageReport{
		Daily:  daily,
		Health: metrics.GetSysHealth(a.cfg.DatabasePath, a.cfg.ArchivePath),
	}, nil
}

// CleanupMetrics deletes usage rows older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	return a.metrics.Cleanup(ctx, days)
}
