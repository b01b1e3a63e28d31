package planner

import (
	"strings"
	"testing"
)

func TestFormatPlanSingleMeal(t *testing.T) {
	plan := WeeklyPlan{
		Monday: {Lunch: &Meal{Title: "Soup", Description: "Hot", Focus: "Light", Servings: 2}},
	}
	want := "\n🗓️ **LUNEDÌ**\n🥗 **Pranzo:** Soup\n   📝 Hot\n   🎯 Light • 2 porzioni"
	if got := FormatPlan(plan); got != want {
		t.Errorf("FormatPlan() = %q, want %q", got, want)
	}
}

func TestFormatPlanOrder(t *testing.T) {
	meal := &Meal{Title: "T", Description: "D", Focus: "F", Servings: 1}
	plan := WeeklyPlan{}
	for i := len(Days) - 1; i >= 0; i-- {
		if Days[i] == Thursday {
			continue
		}
		plan[Days[i]] = DayPlan{Dinner: meal}
	}

	for run := 0; run < 5; run++ {
		out := FormatPlan(plan)
		if strings.Contains(out, "GIOVEDÌ") {
			t.Fatalf("absent day rendered:\n%s", out)
		}
		last := -1
		for _, d := range Days {
			if d == Thursday {
				continue
			}
			idx := strings.Index(out, "**"+strings.ToUpper(DayLabel(d))+"**")
			if idx <= last {
				t.Fatalf("day %s out of order in:\n%s", d, out)
			}
			last = idx
		}
	}
}

func TestFormatPlanLunchBeforeDinner(t *testing.T) {
	plan := WeeklyPlan{Friday: {
		Dinner: &Meal{Title: "Pizza", Description: "Margherita", Focus: "Convivialità", Servings: 3},
		Lunch:  &Meal{Title: "Insalata", Description: "Mista", Focus: "Verdure", Servings: 2},
	}}
	out := FormatPlan(plan)
	if strings.Index(out, "Pranzo") > strings.Index(out, "Cena") {
		t.Errorf("lunch should precede dinner:\n%s", out)
	}
	if !strings.Contains(out, "🍽️ **Cena:** Pizza") {
		t.Errorf("missing dinner line:\n%s", out)
	}
}

func TestFormatPlanEmpty(t *testing.T) {
	if got := FormatPlan(nil); got != PlanUnavailable {
		t.Errorf("FormatPlan(nil) = %q, want %q", got, PlanUnavailable)
	}
}

func TestFormatShoppingList(t *testing.T) {
	list := ShoppingList{
		GrainsLegumes:    {"Ceci"},
		DairyCheese:      {},
		VegetablesFruits: {"Mele", "Pere"},
	}
	want := "🥬 **VERDURA E FRUTTA** (2)\n• Mele\n• Pere\n\n🌾 **CEREALI E LEGUMI** (1)\n• Ceci"
	if got := FormatShoppingList(list); got != want {
		t.Errorf("FormatShoppingList() = %q, want %q", got, want)
	}

	if got := FormatShoppingList(ShoppingList{}); got != ShoppingListEmpty {
		t.Errorf("empty list = %q, want %q", got, ShoppingListEmpty)
	}
}

func TestFormatShoppingListHTML(t *testing.T) {
	out := FormatShoppingListHTML(ShoppingList{MeatFishEggs: {"<b>Uova</b> & pancetta"}})
	if !strings.Contains(out, "&lt;b&gt;Uova&lt;/b&gt; &amp; pancetta") {
		t.Errorf("item not escaped: %s", out)
	}
	if !strings.Contains(out, "#dc3545") || !strings.Contains(out, "CARNE, PESCE E UOVA") {
		t.Errorf("missing category style: %s", out)
	}
	if got := FormatShoppingListHTML(nil); got != shoppingListEmptyHTML {
		t.Errorf("empty list = %q", got)
	}
}
