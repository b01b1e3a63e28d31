package planner

import (
	"bytes"
	"encoding/json"
)

// Day is a canonical day-of-week key of the weekly plan.
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
	Sunday    Day = "sunday"
)

// Days lists the canonical days in plan order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseDay returns the canonical Day for s, if any.
func ParseDay(s string) (Day, bool) {
	for _, d := range Days {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// MealType selects lunch or dinner within a day.
type MealType string

const (
	Lunch  MealType = "lunch"
	Dinner MealType = "dinner"
)

// ParseMealType returns the MealType for s, if any.
func ParseMealType(s string) (MealType, bool) {
	switch MealType(s) {
	case Lunch, Dinner:
		return MealType(s), true
	}
	return "", false
}

// DefaultServings is used when a meal carries no valid serving count.
func (m MealType) DefaultServings() int {
	if m == Dinner {
		return 3
	}
	return 2
}

// Meal is a single planned meal.
type Meal struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Focus       string `json:"focus"`
	Servings    int    `json:"servings"`
}

// DayPlan holds the meals of one day.
type DayPlan struct {
	Lunch  *Meal `json:"lunch,omitempty"`
	Dinner *Meal `json:"dinner,omitempty"`
}

// Empty reports whether the day has no meals left.
func (d DayPlan) Empty() bool {
	return d.Lunch == nil && d.Dinner == nil
}

// Meal returns the meal of the given type, or nil.
func (d DayPlan) Meal(t MealType) *Meal {
	if t == Dinner {
		return d.Dinner
	}
	return d.Lunch
}

// WeeklyPlan maps days to their meals. Absent days have no plan.
type WeeklyPlan map[Day]DayPlan

// MarshalJSON writes days in canonical order.
func (w WeeklyPlan) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, d := range Days {
		dp, ok := w[d]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeMember(&buf, string(d), dp); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Category is a shopping-list section.
type Category string

const (
	VegetablesFruits Category = "vegetables_fruits"
	MeatFishEggs     Category = "meat_fish_eggs"
	DairyCheese      Category = "dairy_cheese"
	GrainsLegumes    Category = "grains_legumes"
	PantryCondiments Category = "pantry_condiments"
)

// Categories lists the shopping categories in presentation order.
var Categories = []Category{VegetablesFruits, MeatFishEggs, DairyCheese, GrainsLegumes, PantryCondiments}

func knownCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ShoppingList maps categories to item lines. Categories without items are
// not stored.
type ShoppingList map[Category][]string

// Len returns the total number of items.
func (s ShoppingList) Len() int {
	n := 0
	for _, items := range s {
		n += len(items)
	}
	return n
}

// MarshalJSON writes categories in canonical order.
func (s ShoppingList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, c := range Categories {
		items, ok := s[c]
		if !ok || len(items) == 0 {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeMember(&buf, string(c), items); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WeeklySummary is the provider's own summary of the week.
type WeeklySummary struct {
	TotalMeals         int    `json:"total_meals,omitempty"`
	DietaryFocus       string `json:"dietary_focus,omitempty"`
	SeasonalHighlights string `json:"seasonal_highlights,omitempty"`
}

// Document is the canonical structure persisted alongside the rendered
// texts. Every edit works on it; texts are always re-derived from it.
type Document struct {
	WeeklyPlan    WeeklyPlan     `json:"weekly_plan"`
	ShoppingList  ShoppingList   `json:"shopping_list"`
	WeeklySummary *WeeklySummary `json:"weekly_summary,omitempty"`
}

// Marshal serialises the document to its canonical JSON form.
func (d Document) Marshal() (string, error) {
	if d.WeeklyPlan == nil {
		d.WeeklyPlan = WeeklyPlan{}
	}
	if d.ShoppingList == nil {
		d.ShoppingList = ShoppingList{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeMember(buf *bytes.Buffer, key string, v interface{}) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}
