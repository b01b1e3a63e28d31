package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const timestampLayout = time.RFC3339

// StoredPlan is the persisted result of one generation for a (user, week) pair.
type StoredPlan struct {
	ID           int64  `db:"id"`
	UserID       string `db:"user_id"`
	WeekStart    string `db:"week_start"`
	Content      string `db:"content"`
	JSONContent  string `db:"json_content"`
	ShoppingList string `db:"shopping_list"`
	Provider     string `db:"provider"`
	Model        string `db:"model"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

// Week parses the stored week start.
func (p *StoredPlan) Week() (time.Time, error) {
	return time.Parse(isoDate, p.WeekStart)
}

// Structured reports whether the plan has JSON backing for partial edits.
func (p *StoredPlan) Structured() bool {
	return p.JSONContent != "" && p.JSONContent != EmptyRawJSON
}

// Document decodes the structured backing. ok is false for plain-text plans.
func (p *StoredPlan) Document() (doc Document, ok bool) {
	if !p.Structured() {
		return Document{}, false
	}
	doc, planPresent, err := decodeDocument(p.JSONContent)
	if err != nil || !planPresent {
		return Document{}, false
	}
	return doc, true
}

// PlanRepository is a database-backed repository for generated plans.
type PlanRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const planColumns = `id, user_id, week_start, content, json_content, shopping_list, provider, model, created_at, updated_at`

// Replace stores result as the only plan for (userID, weekStart), removing any previous one.
func (r *PlanRepository) Replace(ctx context.Context, userID string, weekStart time.Time, result GenerationResult) (*StoredPlan, error) {
	now := r.now().Format(timestampLayout)
	plan := &StoredPlan{
		UserID:       userID,
		WeekStart:    weekStart.Format(isoDate),
		Content:      result.PlanText,
		JSONContent:  result.RawJSON,
		ShoppingList: result.ShoppingListText,
		Provider:     string(result.Provider),
		Model:        result.Model,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if plan.JSONContent == "" {
		plan.JSONContent = EmptyRawJSON
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM plans WHERE user_id = ? AND week_start = ?`,
		plan.UserID, plan.WeekStart); err != nil {
		return nil, fmt.Errorf("failed to delete previous plan: %w", err)
	}

	res, err := tx.NamedExecContext(ctx, `
		INSERT INTO plans (user_id, week_start, content, json_content, shopping_list, provider, model, created_at, updated_at)
		VALUES (:user_id, :week_start, :content, :json_content, :shopping_list, :provider, :model, :created_at, :updated_at)`,
		plan)
	if err != nil {
		return nil, fmt.Errorf("failed to insert plan: %w", err)
	}
	if plan.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read plan id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit plan: %w", err)
	}
	return plan, nil
}

// GetByWeek returns the plan for (userID, weekStart), or nil when none exists.
func (r *PlanRepository) GetByWeek(ctx context.Context, userID string, weekStart time.Time) (*StoredPlan, error) {
	var plan StoredPlan
	err := r.db.GetContext(ctx, &plan,
		`SELECT `+planColumns+` FROM plans WHERE user_id = ? AND week_start = ?`,
		userID, weekStart.Format(isoDate))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan for user %s: %w", userID, err)
	}
	return &plan, nil
}

// GetLatestByUser returns the plan with the most recent week start, or nil.
func (r *PlanRepository) GetLatestByUser(ctx context.Context, userID string) (*StoredPlan, error) {
	var plan StoredPlan
	err := r.db.GetContext(ctx, &plan,
		`SELECT `+planColumns+` FROM plans WHERE user_id = ? ORDER BY week_start DESC, id DESC LIMIT 1`,
		userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest plan for user %s: %w", userID, err)
	}
	return &plan, nil
}

// ExistsForWeek reports whether a plan is stored for (userID, weekStart).
func (r *PlanRepository) ExistsForWeek(ctx context.Context, userID string, weekStart time.Time) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM plans WHERE user_id = ? AND week_start = ?`,
		userID, weekStart.Format(isoDate))
	if err != nil {
		return false, fmt.Errorf("failed to check plan existence: %w", err)
	}
	return n > 0, nil
}

// UpdateContent rewrites the three derived fields of a stored plan together.
func (r *PlanRepository) UpdateContent(ctx context.Context, id int64, planText, rawJSON, shoppingText string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE plans SET content = ?, json_content = ?, shopping_list = ?, updated_at = ? WHERE id = ?`,
		planText, rawJSON, shoppingText, r.now().Format(timestampLayout), id)
	if err != nil {
		return fmt.Errorf("failed to update plan %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update plan %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("plan %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Delete removes the plan for (userID, weekStart). Deleting a missing plan is not an error.
func (r *PlanRepository) Delete(ctx context.Context, userID string, weekStart time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM plans WHERE user_id = ? AND week_start = ?`,
		userID, weekStart.Format(isoDate))
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return nil
}
