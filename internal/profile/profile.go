package profile

import (
	"encoding/json"
	"strings"

	"fame/internal/llm"
	"fame/internal/planner"
)

// MaxFavoriteEmails is the number of recipient addresses remembered per user.
const MaxFavoriteEmails = 10

// Profile holds a user's preferences and provider settings.
type Profile struct {
	ID                string `db:"id" json:"id"`
	Username          string `db:"username" json:"username"`
	Email             string `db:"email" json:"email"`
	Region            string `db:"region" json:"region"`
	Trains            bool   `db:"trains" json:"trains"`
	TrainingFrequency int    `db:"training_frequency" json:"training_frequency"`
	TrainingDays      string `db:"training_days" json:"training_days"`
	APIProvider       string `db:"api_provider" json:"api_provider"`
	APIKey            string `db:"api_key" json:"-"`
	Disliked          string `db:"disliked" json:"disliked"`
	FavoriteEmails    string `db:"favorite_emails" json:"-"`
	CreatedAt         string `db:"created_at" json:"created_at"`
}

// Diet is an uploaded nutritionist diet.
type Diet struct {
	ID         int64  `db:"id"`
	UserID     string `db:"user_id"`
	Content    string `db:"content"`
	Source     string `db:"source"`
	UploadedAt string `db:"uploaded_at"`
}

// DislikedFoods returns the parsed list of foods to avoid.
func (p *Profile) DislikedFoods() []string {
	return planner.ParseDisliked(p.Disliked)
}

// SetDisliked stores foods as a normalized comma separated list.
func (p *Profile) SetDisliked(foods []string) {
	p.Disliked = strings.Join(planner.ParseDisliked(strings.Join(foods, ",")), ", ")
}

// Provider returns the configured provider, defaulting to Gemini.
func (p *Profile) Provider() llm.ProviderID {
	if p.APIProvider == "" {
		return llm.ProviderGemini
	}
	return llm.ProviderID(p.APIProvider)
}

// Favorites returns the remembered recipient addresses, oldest first.
// A corrupt value reads as empty.
func (p *Profile) Favorites() []string {
	if p.FavoriteEmails == "" {
		return nil
	}
	var emails []string
	if err := json.Unmarshal([]byte(p.FavoriteEmails), &emails); err != nil {
		return nil
	}
	return emails
}

// AddFavorite remembers email unless already present, keeping the most
// recent MaxFavoriteEmails addresses.
func (p *Profile) AddFavorite(email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		return
	}
	emails := p.Favorites()
	for _, e := range emails {
		if e == email {
			return
		}
	}
	emails = append(emails, email)
	if len(emails) > MaxFavoriteEmails {
		emails = emails[len(emails)-MaxFavoriteEmails:]
	}
	b, _ := json.Marshal(emails)
	p.FavoriteEmails = string(b)
}

// Request builds a generation request for weekStart from the profile and diet.
func (p *Profile) Request(diet string) planner.GenerationRequest {
	return planner.GenerationRequest{
		DietText:          diet,
		Disliked:          p.DislikedFoods(),
		Region:            p.Region,
		Trains:            p.Trains,
		TrainingFrequency: p.TrainingFrequency,
		TrainingDays:      p.TrainingDays,
		Provider:          p.Provider(),
		Credential:        p.APIKey,
	}
}
