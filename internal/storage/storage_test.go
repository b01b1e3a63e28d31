package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPlanArchive(t *testing.T) {
	tempDir := t.TempDir()

	archive, err := NewPlanArchive(filepath.Join(tempDir, "plans"))
	if err != nil {
		t.Fatalf("Failed to create PlanArchive: %v", err)
	}

	t.Run("CheckExists-False", func(t *testing.T) {
		if archive.Exists("42", "2024-01-08") {
			t.Error("Expected no archived plan")
		}
	})

	t.Run("Save", func(t *testing.T) {
		plan := &ArchivedPlan{
			UserID:       "42",
			WeekStart:    "2024-01-08",
			Provider:     "gemini",
			PlanText:     "primo piano",
			ShoppingList: "uova",
			Document:     json.RawMessage(`{"weekly_plan":{}}`),
		}
		if err := archive.Save(plan); err != nil {
			t.Fatalf("Failed to save plan: %v", err)
		}
		if plan.ID == "" || plan.CreatedAt.IsZero() {
			t.Errorf("Expected ID and CreatedAt to be set, got %+v", plan)
		}
		if !archive.Exists("42", "2024-01-08") {
			t.Error("Expected archived plan to exist")
		}
	})

	t.Run("SaveReplacesStaleVersion", func(t *testing.T) {
		if err := archive.Save(&ArchivedPlan{UserID: "42", WeekStart: "2024-01-08", PlanText: "secondo piano"}); err != nil {
			t.Fatalf("Failed to save plan: %v", err)
		}
		matches, _ := filepath.Glob(filepath.Join(tempDir, "plans", "42", "2024-01-08_*.json"))
		if len(matches) != 1 {
			t.Fatalf("Expected exactly one version, got %d", len(matches))
		}

		loaded, err := archive.Load("42", "2024-01-08")
		if err != nil {
			t.Fatalf("Failed to load plan: %v", err)
		}
		if loaded.PlanText != "secondo piano" {
			t.Errorf("Expected latest plan text, got %q", loaded.PlanText)
		}
		if string(loaded.Document) != "{}" {
			t.Errorf("Expected empty document, got %s", loaded.Document)
		}
	})

	t.Run("Weeks", func(t *testing.T) {
		if err := archive.Save(&ArchivedPlan{UserID: "42", WeekStart: "2024-01-01"}); err != nil {
			t.Fatalf("Failed to save plan: %v", err)
		}
		os.WriteFile(filepath.Join(tempDir, "plans", "42", "notes.txt"), []byte("x"), 0644)

		weeks, err := archive.Weeks("42")
		if err != nil {
			t.Fatalf("Weeks failed: %v", err)
		}
		if len(weeks) != 2 || weeks[0] != "2024-01-01" || weeks[1] != "2024-01-08" {
			t.Errorf("unexpected weeks %v", weeks)
		}

		weeks, err = archive.Weeks("7")
		if err != nil || weeks != nil {
			t.Errorf("Expected no weeks for unknown user, got %v, %v", weeks, err)
		}
	})

	t.Run("Load-NotFound", func(t *testing.T) {
		_, err := archive.Load("42", "2030-01-07")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RejectsUnsafeKeys", func(t *testing.T) {
		if err := archive.Save(&ArchivedPlan{UserID: "../etc", WeekStart: "2024-01-08"}); err == nil {
			t.Error("Expected error for unsafe user id")
		}
		if err := archive.Save(&ArchivedPlan{UserID: "42", WeekStart: "*"}); err == nil {
			t.Error("Expected error for invalid week")
		}
	})
}
