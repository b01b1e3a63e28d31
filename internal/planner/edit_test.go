package planner

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedDocument(t *testing.T) (Document, string) {
	t.Helper()
	n := Normalize(structuredResponse)
	require.True(t, n.Structured)
	return n.Document, n.RawJSON
}

func TestDeleteMealKeepsOtherMeal(t *testing.T) {
	before, raw := storedDocument(t)

	res, err := DeleteMeal(raw, Monday, Lunch)
	require.NoError(t, err)

	monday, ok := res.Document.WeeklyPlan[Monday]
	require.True(t, ok)
	assert.Nil(t, monday.Lunch)
	assert.Equal(t, before.WeeklyPlan[Monday].Dinner, monday.Dinner)
	assert.Equal(t, before.WeeklyPlan[Wednesday], res.Document.WeeklyPlan[Wednesday])
	assert.Equal(t, before.ShoppingList, res.Document.ShoppingList)

	assert.NotContains(t, res.PlanText, "Pasta e ceci")
	assert.Contains(t, res.PlanText, "Orata al forno")
	assert.Equal(t, FormatPlan(res.Document.WeeklyPlan), res.PlanText)
	assert.True(t, strings.HasSuffix(res.ShoppingText, StaleShoppingListNote))
	assert.True(t, strings.HasPrefix(res.ShoppingText, FormatShoppingList(before.ShoppingList)))

	reloaded := Normalize(res.RawJSON)
	assert.Equal(t, res.Document, reloaded.Document)
}

func TestDeleteMealRemovesEmptyDay(t *testing.T) {
	_, raw := storedDocument(t)

	res, err := DeleteMeal(raw, Wednesday, Lunch)
	require.NoError(t, err)

	_, ok := res.Document.WeeklyPlan[Wednesday]
	assert.False(t, ok)
	assert.NotContains(t, res.RawJSON, "wednesday")
	assert.Len(t, res.Document.WeeklyPlan, 1)
}

func TestDeleteMealLastMealOfPlan(t *testing.T) {
	raw := `{"weekly_plan": {"monday": {"lunch": {"title": "Soup"}}}}`

	res, err := DeleteMeal(raw, Monday, Lunch)
	require.NoError(t, err)
	assert.Equal(t, PlanUnavailable, res.PlanText)

	_, err = DeleteMeal(res.RawJSON, Monday, Lunch)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMealErrors(t *testing.T) {
	_, raw := storedDocument(t)

	tests := []struct {
		name string
		raw  string
		day  Day
		meal MealType
		want error
	}{
		{"empty raw", "", Monday, Lunch, ErrInvalidState},
		{"heuristic placeholder", EmptyRawJSON, Monday, Lunch, ErrInvalidState},
		{"not json", "Lunedì: pasta", Monday, Lunch, ErrInvalidState},
		{"no weekly plan", `{"shopping_list": {}}`, Monday, Lunch, ErrInvalidState},
		{"absent day", raw, Tuesday, Lunch, ErrNotFound},
		{"absent meal", raw, Wednesday, Dinner, ErrNotFound},
		{"unknown day", raw, Day("someday"), Lunch, ErrNotFound},
		{"unknown meal", raw, Monday, MealType("breakfast"), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeleteMeal(tt.raw, tt.day, tt.meal)
			if !errors.Is(err, tt.want) {
				t.Fatalf("DeleteMeal() error = %v, want %v", err, tt.want)
			}
		})
	}
}
