package planner

import (
	"fmt"
	"html"
	"strings"
)

var dayLabels = map[Day]string{
	Monday:    "Lunedì",
	Tuesday:   "Martedì",
	Wednesday: "Mercoledì",
	Thursday:  "Giovedì",
	Friday:    "Venerdì",
	Saturday:  "Sabato",
	Sunday:    "Domenica",
}

// DayLabel returns the Italian name of d.
func DayLabel(d Day) string {
	return dayLabels[d]
}

type categoryStyle struct {
	Name  string
	Icon  string
	Color string
}

var categoryStyles = map[Category]categoryStyle{
	VegetablesFruits: {Name: "VERDURA E FRUTTA", Icon: "🥬", Color: "#28a745"},
	MeatFishEggs:     {Name: "CARNE, PESCE E UOVA", Icon: "🥩", Color: "#dc3545"},
	DairyCheese:      {Name: "FORMAGGI E LATTICINI", Icon: "🧀", Color: "#ffc107"},
	GrainsLegumes:    {Name: "CEREALI E LEGUMI", Icon: "🌾", Color: "#fd7e14"},
	PantryCondiments: {Name: "DISPENSA E CONDIMENTI", Icon: "🫙", Color: "#6f42c1"},
}

const (
	// ShoppingListEmpty is shown when a structured plan has no items at all.
	ShoppingListEmpty     = "Lista della spesa non disponibile"
	shoppingListEmptyHTML = "<p class='text-muted'>Lista della spesa non disponibile</p>"
)

// FormatPlan renders the weekly plan, Monday to Sunday, skipping absent days.
func FormatPlan(plan WeeklyPlan) string {
	var lines []string
	for _, d := range Days {
		dp, ok := plan[d]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("\n🗓️ **%s**", strings.ToUpper(dayLabels[d])))
		if dp.Lunch != nil {
			lines = append(lines, mealLines("🥗 **Pranzo:**", dp.Lunch, Lunch)...)
		}
		if dp.Dinner != nil {
			lines = append(lines, mealLines("🍽️ **Cena:**", dp.Dinner, Dinner)...)
		}
	}
	if len(lines) == 0 {
		return PlanUnavailable
	}
	return strings.Join(lines, "\n")
}

func mealLines(label string, m *Meal, t MealType) []string {
	servings := m.Servings
	if servings < 1 {
		servings = t.DefaultServings()
	}
	return []string{
		fmt.Sprintf("%s %s", label, orNA(m.Title)),
		fmt.Sprintf("   📝 %s", orNA(m.Description)),
		fmt.Sprintf("   🎯 %s • %d porzioni", orNA(m.Focus), servings),
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// FormatShoppingList renders the list grouped by category with item counts.
// Categories without items are omitted.
func FormatShoppingList(list ShoppingList) string {
	var groups []string
	for _, c := range Categories {
		items := list[c]
		if len(items) == 0 {
			continue
		}
		style := categoryStyles[c]
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s **%s** (%d)", style.Icon, style.Name, len(items))
		for _, item := range items {
			fmt.Fprintf(&sb, "\n• %s", item)
		}
		groups = append(groups, sb.String())
	}
	if len(groups) == 0 {
		return ShoppingListEmpty
	}
	return strings.Join(groups, "\n\n")
}

// FormatShoppingListHTML renders the list as HTML sections for web clients.
func FormatShoppingListHTML(list ShoppingList) string {
	var sb strings.Builder
	for _, c := range Categories {
		items := list[c]
		if len(items) == 0 {
			continue
		}
		style := categoryStyles[c]
		fmt.Fprintf(&sb, `<div class="shopping-category mb-4">`+
			`<h6 class="category-header" style="color: %s;">`+
			`<span class="category-icon">%s</span> %s `+
			`<span class="badge bg-light text-dark ms-2">%d</span></h6>`+
			`<div class="category-items">`,
			style.Color, style.Icon, html.EscapeString(style.Name), len(items))
		for _, item := range items {
			fmt.Fprintf(&sb, `<div class="shopping-item">`+
				`<span class="item-bullet" style="color: %s;">•</span>`+
				`<span class="item-text">%s</span></div>`,
				style.Color, html.EscapeString(item))
		}
		sb.WriteString(`</div></div>`)
	}
	if sb.Len() == 0 {
		return shoppingListEmptyHTML
	}
	return sb.String()
}
