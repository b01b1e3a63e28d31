package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"fame/internal/app"
	"fame/internal/diet"
	"fame/internal/llm"
	"fame/internal/planner"
	"fame/internal/profile"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	requestTimeout  = 15 * time.Second
	generateTimeout = 3 * time.Minute
)

// Handler serves the plan and profile endpoints.
type Handler struct {
	app    *app.App
	logger *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(a *app.App, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{app: a, logger: logger}
}

type planResponse struct {
	WeekStart        string          `json:"week_start"`
	Plan             string          `json:"plan"`
	ShoppingList     string          `json:"shopping_list"`
	ShoppingListHTML string          `json:"shopping_list_html,omitempty"`
	Structured       bool            `json:"structured"`
	Document         json.RawMessage `json:"document,omitempty"`
	Provider         string          `json:"provider"`
	Model            string          `json:"model"`
	Demo             bool            `json:"demo,omitempty"`
	UpdatedAt        string          `json:"updated_at"`
	Recipients       []string        `json:"recipients,omitempty"`
	EmailError       string          `json:"email_error,omitempty"`
}

func newPlanResponse(p *planner.StoredPlan) planResponse {
	resp := planResponse{
		WeekStart:    p.WeekStart,
		Plan:         p.Content,
		ShoppingList: p.ShoppingList,
		Provider:     p.Provider,
		Model:        p.Model,
		UpdatedAt:    p.UpdatedAt,
	}
	if doc, ok := p.Document(); ok {
		resp.Structured = true
		resp.Document = json.RawMessage(p.JSONContent)
		resp.ShoppingListHTML = planner.FormatShoppingListHTML(doc.ShoppingList)
	}
	return resp
}

type generateRequest struct {
	Week       string   `json:"week"`
	Email      bool     `json:"email"`
	Recipients []string `json:"recipients"`
}

// GeneratePlan handles POST /api/v1/plans.
func (h *Handler) GeneratePlan(c *gin.Context) {
	var req generateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	opts := app.GenerateOptions{Email: req.Email || len(req.Recipients) > 0, Recipients: req.Recipients}
	if req.Week != "" {
		week, err := planner.ParseWeek(req.Week)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		opts.Week = week
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), generateTimeout)
	defer cancel()

	out, err := h.app.GenerateForUser(ctx, UserID(c), opts)
	if err != nil {
		h.fail(c, "failed to generate plan", err)
		return
	}

	resp := newPlanResponse(out.Plan)
	resp.Demo = out.Result.Demo
	resp.Recipients = out.Recipients
	if out.EmailErr != nil {
		resp.EmailError = out.EmailErr.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

// LatestPlan handles GET /api/v1/plans.
func (h *Handler) LatestPlan(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	plan, err := h.app.LatestPlan(ctx, UserID(c))
	if err != nil {
		h.fail(c, "failed to load plan", err)
		return
	}
	c.JSON(http.StatusOK, newPlanResponse(plan))
}

// GetPlan handles GET /api/v1/plans/:week.
func (h *Handler) GetPlan(c *gin.Context) {
	week, err := planner.ParseWeek(c.Param("week"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	plan, err := h.app.PlanForWeek(ctx, UserID(c), week)
	if err != nil {
		h.fail(c, "failed to load plan", err)
		return
	}
	c.JSON(http.StatusOK, newPlanResponse(plan))
}

// DeleteMeal handles DELETE /api/v1/plans/:week/meals/:day/:meal.
func (h *Handler) DeleteMeal(c *gin.Context) {
	week, err := planner.ParseWeek(c.Param("week"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, ok := planner.ParseDay(strings.ToLower(c.Param("day")))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown day " + c.Param("day")})
		return
	}
	meal, ok := planner.ParseMealType(strings.ToLower(c.Param("meal")))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meal must be lunch or dinner"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	plan, err := h.app.DeleteMeal(ctx, UserID(c), week, day, meal)
	if err != nil {
		h.fail(c, "failed to delete meal", err)
		return
	}
	c.JSON(http.StatusOK, newPlanResponse(plan))
}

type profileRequest struct {
	Email             *string `json:"email"`
	Region            *string `json:"region"`
	Disliked          *string `json:"disliked"`
	Trains            *bool   `json:"trains"`
	TrainingFrequency *int    `json:"training_frequency"`
	TrainingDays      *string `json:"training_days"`
	APIProvider       *string `json:"api_provider"`
	APIKey            *string `json:"api_key"`
	Diet              string  `json:"diet"`
}

type profileResponse struct {
	*profile.Profile
	Favorites []string `json:"favorite_emails"`
	HasAPIKey bool     `json:"has_api_key"`
	Diet      string   `json:"diet_source,omitempty"`
}

// UpdateProfile handles PUT /api/v1/profile. Only the fields present in the
// body change. A diet may be given as text, HTML or a link.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.APIProvider != nil && *req.APIProvider != "" {
		id, ok := llm.ParseProviderID(*req.APIProvider)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported provider " + *req.APIProvider})
			return
		}
		*req.APIProvider = string(id)
	}
	if req.TrainingFrequency != nil && *req.TrainingFrequency < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "training_frequency must not be negative"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout+diet.FetchTimeout)
	defer cancel()

	userID := UserID(c)
	p, err := h.app.Profile(ctx, userID, "")
	if err != nil {
		h.fail(c, "failed to load profile", err)
		return
	}

	// The diet goes first so a failed import leaves the profile untouched.
	var dietSource string
	if strings.TrimSpace(req.Diet) != "" {
		d, err := h.app.ImportDiet(ctx, userID, req.Diet)
		if err != nil {
			h.fail(c, "failed to import diet", err)
			return
		}
		dietSource = d.Source
	}

	applyProfile(p, req)
	if err := h.app.SaveProfile(ctx, p); err != nil {
		h.fail(c, "failed to save profile", err)
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		Profile:   p,
		Favorites: p.Favorites(),
		HasAPIKey: p.APIKey != "",
		Diet:      dietSource,
	})
}

func applyProfile(p *profile.Profile, req profileRequest) {
	if req.Email != nil {
		p.Email = strings.TrimSpace(*req.Email)
	}
	if req.Region != nil {
		p.Region = strings.TrimSpace(*req.Region)
	}
	if req.Disliked != nil {
		p.SetDisliked(planner.ParseDisliked(*req.Disliked))
	}
	if req.Trains != nil {
		p.Trains = *req.Trains
	}
	if req.TrainingFrequency != nil {
		p.TrainingFrequency = *req.TrainingFrequency
	}
	if req.TrainingDays != nil {
		p.TrainingDays = strings.TrimSpace(*req.TrainingDays)
	}
	if req.APIProvider != nil {
		p.APIProvider = *req.APIProvider
	}
	if req.APIKey != nil {
		p.APIKey = strings.TrimSpace(*req.APIKey)
	}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail maps domain errors to HTTP statuses.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrNoPlan), errors.Is(err, profile.ErrNotFound), errors.Is(err, planner.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, planner.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, app.ErrNoDiet), errors.Is(err, planner.ErrNotMonday), errors.Is(err, diet.ErrEmpty):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(msg, zap.String("user_id", UserID(c)), zap.String("request_id", RequestIDFrom(c)), zap.Error(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
