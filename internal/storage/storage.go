package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no archived plan exists for a key.
var ErrNotFound = errors.New("archived plan not found")

var safeSegment = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ArchivedPlan is the JSON export of one generated plan.
type ArchivedPlan struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	WeekStart    string          `json:"week_start"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	Demo         bool            `json:"demo"`
	Structured   bool            `json:"structured"`
	CreatedAt    time.Time       `json:"created_at"`
	PlanText     string          `json:"plan_text"`
	ShoppingList string          `json:"shopping_list"`
	Document     json.RawMessage `json:"document"`
}

// PlanArchive keeps the latest archived plan per (user, week) as JSON files
// under basePath/<user>/<week>_<id>.json.
type PlanArchive struct {
	basePath string
}

// NewPlanArchive creates a PlanArchive and ensures the base directory exists.
func NewPlanArchive(basePath string) (*PlanArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", basePath, err)
	}
	return &PlanArchive{basePath: basePath}, nil
}

func (s *PlanArchive) userDir(userID string) (string, error) {
	if !safeSegment.MatchString(userID) {
		return "", fmt.Errorf("invalid user id %q for archive path", userID)
	}
	return filepath.Join(s.basePath, userID), nil
}

func validWeek(week string) error {
	if _, err := time.Parse("2006-01-02", week); err != nil {
		return fmt.Errorf("invalid week %q: %w", week, err)
	}
	return nil
}

// Save writes plan as the only archived version for its (user, week).
// ID and CreatedAt are filled when empty.
func (s *PlanArchive) Save(plan *ArchivedPlan) error {
	dir, err := s.userDir(plan.UserID)
	if err != nil {
		return err
	}
	if err := validWeek(plan.WeekStart); err != nil {
		return err
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	if len(plan.Document) == 0 {
		plan.Document = json.RawMessage("{}")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := s.RemoveStaleVersions(plan.UserID, plan.WeekStart); err != nil {
		return err
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archived plan: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", plan.WeekStart, plan.ID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write archived plan: %w", err)
	}
	return nil
}

func (s *PlanArchive) versions(userID, week string) ([]string, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	if err := validWeek(week); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(dir, week+"_*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob archived plans: %w", err)
	}
	return matches, nil
}

// Load retrieves the archived plan for (userID, week).
func (s *PlanArchive) Load(userID, week string) (*ArchivedPlan, error) {
	matches, err := s.versions(userID, week)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, userID, week)
	}

	data, err := os.ReadFile(matches[len(matches)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to read archived plan: %w", err)
	}
	var plan ArchivedPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archived plan: %w", err)
	}
	return &plan, nil
}

// Exists checks if a plan is archived for (userID, week).
func (s *PlanArchive) Exists(userID, week string) bool {
	matches, err := s.versions(userID, week)
	return err == nil && len(matches) > 0
}

// Weeks lists the archived weeks of userID in ascending order.
func (s *PlanArchive) Weeks(userID string) ([]string, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	seen := map[string]bool{}
	var weeks []string
	for _, e := range entries {
		week, _, ok := strings.Cut(e.Name(), "_")
		if !ok || e.IsDir() || seen[week] || validWeek(week) != nil {
			continue
		}
		seen[week] = true
		weeks = append(weeks, week)
	}
	sort.Strings(weeks)
	return weeks, nil
}

// RemoveStaleVersions removes every archived file for (userID, week).
func (s *PlanArchive) RemoveStaleVersions(userID, week string) error {
	matches, err := s.versions(userID, week)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("failed to remove stale file %s: %w", match, err)
		}
	}
	return nil
}
