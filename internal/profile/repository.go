package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no profile exists for a user id.
var ErrNotFound = errors.New("profile not found")

// Repository persists profiles and diets.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new profile repository.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const profileColumns = `id, username, email, region, trains, training_frequency, training_days,
	api_provider, api_key, disliked, favorite_emails, created_at`

// Get loads the profile for id.
func (r *Repository) Get(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := r.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	return &p, nil
}

// GetOrCreate loads the profile for id, creating a default one on first use.
func (r *Repository) GetOrCreate(ctx context.Context, id, username string) (*Profile, error) {
	p, err := r.Get(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p = &Profile{
		ID:             id,
		Username:       username,
		APIProvider:    "gemini",
		FavoriteEmails: "[]",
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Save inserts or updates p.
func (r *Repository) Save(ctx context.Context, p *Profile) error {
	if p.CreatedAt == "" {
		p.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if p.FavoriteEmails == "" {
		p.FavoriteEmails = "[]"
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (id, username, email, region, trains, training_frequency, training_days,
			api_provider, api_key, disliked, favorite_emails, created_at)
		VALUES (:id, :username, :email, :region, :trains, :training_frequency, :training_days,
			:api_provider, :api_key, :disliked, :favorite_emails, :created_at)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			region = excluded.region,
			trains = excluded.trains,
			training_frequency = excluded.training_frequency,
			training_days = excluded.training_days,
			api_provider = excluded.api_provider,
			api_key = excluded.api_key,
			disliked = excluded.disliked,
			favorite_emails = excluded.favorite_emails`, p)
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.ID, err)
	}
	return nil
}

// AddFavoriteEmail remembers email as a delivery address for id.
func (r *Repository) AddFavoriteEmail(ctx context.Context, id, email string) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	p.AddFavorite(email)
	if _, err := r.db.ExecContext(ctx,
		`UPDATE users SET favorite_emails = ? WHERE id = ?`, p.FavoriteEmails, id); err != nil {
		return fmt.Errorf("failed to update favorite emails: %w", err)
	}
	return nil
}

// SaveDiet stores a new diet for userID. The most recent upload is the active diet.
func (r *Repository) SaveDiet(ctx context.Context, userID, content, source string) (*Diet, error) {
	d := &Diet{
		UserID:     userID,
		Content:    content,
		Source:     source,
		UploadedAt: time.Now().UTC().Format(time.RFC3339),
	}
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO diets (user_id, content, source, uploaded_at)
		VALUES (:user_id, :content, :source, :uploaded_at)`, d)
	if err != nil {
		return nil, fmt.Errorf("failed to save diet: %w", err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read diet id: %w", err)
	}
	return d, nil
}

// LatestDiet returns the most recent diet of userID, or nil when none was uploaded.
func (r *Repository) LatestDiet(ctx context.Context, userID string) (*Diet, error) {
	var d Diet
	err := r.db.GetContext(ctx, &d, `
		SELECT id, user_id, content, source, uploaded_at FROM diets
		WHERE user_id = ? ORDER BY id DESC LIMIT 1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get diet for user %s: %w", userID, err)
	}
	return &d, nil
}
