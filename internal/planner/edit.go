package planner

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidState is returned when a stored plan has no structured backing to edit.
	ErrInvalidState = errors.New("plan has no structured data to edit")

	// ErrNotFound is returned when the requested day or meal is not in the plan.
	ErrNotFound = errors.New("meal not found in plan")
)

// StaleShoppingListNote is appended to the shopping list after an edit.
const StaleShoppingListNote = "⚠️ Nota: la lista della spesa non è stata aggiornata dopo la modifica del piano."

// EditResult carries the re-derived views after a partial edit.
type EditResult struct {
	Document     Document
	RawJSON      string
	PlanText     string
	ShoppingText string
}

// DeleteMeal removes one meal from a stored structured plan. A day left
// without meals is removed as well. The shopping list is not recomputed;
// its text is flagged as possibly stale instead.
func DeleteMeal(rawJSON string, day Day, meal MealType) (EditResult, error) {
	trimmed := strings.TrimSpace(rawJSON)
	if trimmed == "" || trimmed == EmptyRawJSON {
		return EditResult{}, ErrInvalidState
	}

	doc, planPresent, err := decodeDocument(trimmed)
	if err != nil {
		return EditResult{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if !planPresent {
		return EditResult{}, ErrInvalidState
	}

	dp, ok := doc.WeeklyPlan[day]
	if !ok {
		return EditResult{}, fmt.Errorf("%w: no plan for %s", ErrNotFound, day)
	}
	switch {
	case meal == Lunch && dp.Lunch != nil:
		dp.Lunch = nil
	case meal == Dinner && dp.Dinner != nil:
		dp.Dinner = nil
	default:
		return EditResult{}, fmt.Errorf("%w: no %s on %s", ErrNotFound, meal, day)
	}

	if dp.Empty() {
		delete(doc.WeeklyPlan, day)
	} else {
		doc.WeeklyPlan[day] = dp
	}

	newRaw, err := doc.Marshal()
	if err != nil {
		return EditResult{}, fmt.Errorf("failed to serialise edited plan: %w", err)
	}

	return EditResult{
		Document:     doc,
		RawJSON:      newRaw,
		PlanText:     FormatPlan(doc.WeeklyPlan),
		ShoppingText: FormatShoppingList(doc.ShoppingList) + "\n\n" + StaleShoppingListNote,
	}, nil
}
