package planner

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	shoppingListMarker = "Shopping List:"

	// PlanUnavailable replaces an empty plan text.
	PlanUnavailable = "Piano settimanale non disponibile"

	// ShoppingListUnavailable replaces the shopping text of a plain-text response without a list.
	ShoppingListUnavailable = "Lista della spesa non disponibile - utilizzare il piano per creare manualmente"

	// EmptyRawJSON is persisted for results that have no structured backing.
	EmptyRawJSON = "{}"

	notAvailable = "N/A"
)

//go:embed plan_schema.json
var planSchemaJSON string

var planSchema = mustCompileSchema(planSchemaJSON)

func mustCompileSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("planner: invalid plan schema: %v", err))
	}
	return schema
}

// errParse marks a response that is not a structured plan.
var errParse = errors.New("response is not a structured plan")

// Normalized is the outcome of Normalize.
type Normalized struct {
	Document     Document
	Structured   bool
	PlanText     string
	ShoppingText string
	RawJSON      string
}

// Normalize turns a raw provider response into the canonical structure and
// its rendered texts. Structured JSON is preferred; anything else goes
// through the plain-text heuristics. It never fails.
func Normalize(raw string) Normalized {
	text := stripFences(strings.TrimSpace(raw))

	doc, _, err := decodeDocument(text)
	if err != nil {
		// Prose around an embedded plan object.
		if obj, ok := extractObject(text); ok {
			var planPresent bool
			doc, planPresent, err = decodeDocument(obj)
			if err == nil && !planPresent {
				err = errParse
			}
		}
	}
	if err == nil {
		rawJSON, mErr := doc.Marshal()
		if mErr == nil {
			return Normalized{
				Document:     doc,
				Structured:   true,
				PlanText:     FormatPlan(doc.WeeklyPlan),
				ShoppingText: FormatShoppingList(doc.ShoppingList),
				RawJSON:      rawJSON,
			}
		}
	}

	return normalizePlainText(strings.TrimSpace(raw))
}

func normalizePlainText(text string) Normalized {
	plan, shopping := text, ShoppingListUnavailable
	if before, after, found := strings.Cut(text, shoppingListMarker); found {
		plan = strings.TrimSpace(before)
		shopping = strings.TrimSpace(after)
	}
	if plan == "" {
		plan = PlanUnavailable
	}
	return Normalized{
		PlanText:     plan,
		ShoppingText: shopping,
		RawJSON:      EmptyRawJSON,
	}
}

// stripFences removes a surrounding ``` or ```json code fence.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractObject returns the text between the first '{' and the last '}'.
func extractObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	obj := s[start : end+1]
	return obj, obj != s
}

type rawDocument struct {
	WeeklyPlan    map[string]json.RawMessage `json:"weekly_plan"`
	ShoppingList  map[string]json.RawMessage `json:"shopping_list"`
	WeeklySummary map[string]interface{}     `json:"weekly_summary"`
}

// decodeDocument validates text against the plan schema and decodes it,
// applying field defaults. planPresent reports whether weekly_plan was set.
func decodeDocument(text string) (doc Document, planPresent bool, err error) {
	if text == "" {
		return Document{}, false, errParse
	}
	result, err := planSchema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return Document{}, false, fmt.Errorf("%w: %v", errParse, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Document{}, false, fmt.Errorf("%w: %s", errParse, strings.Join(msgs, "; "))
	}

	var raw rawDocument
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Document{}, false, fmt.Errorf("%w: %v", errParse, err)
	}
	if dec.More() {
		return Document{}, false, fmt.Errorf("%w: trailing data after object", errParse)
	}

	doc = Document{
		WeeklyPlan:    WeeklyPlan{},
		ShoppingList:  ShoppingList{},
		WeeklySummary: decodeSummary(raw.WeeklySummary),
	}

	for _, d := range Days {
		msg, ok := raw.WeeklyPlan[string(d)]
		if !ok {
			continue
		}
		if dp := decodeDay(msg); !dp.Empty() {
			doc.WeeklyPlan[d] = dp
		}
	}

	for key, msg := range raw.ShoppingList {
		c, ok := knownCategory(key)
		if !ok {
			continue
		}
		var values []interface{}
		if err := unmarshalNumber(msg, &values); err != nil {
			continue
		}
		var items []string
		for _, v := range values {
			if s := scalarString(v); strings.TrimSpace(s) != "" {
				items = append(items, s)
			}
		}
		if len(items) > 0 {
			doc.ShoppingList[c] = items
		}
	}

	return doc, raw.WeeklyPlan != nil, nil
}

// decodeDay keeps the meals that decode as objects. A day or meal of any
// other JSON type is dropped rather than failing the document.
func decodeDay(msg json.RawMessage) DayPlan {
	var meals map[string]json.RawMessage
	if err := json.Unmarshal(msg, &meals); err != nil {
		return DayPlan{}
	}
	var dp DayPlan
	for _, t := range []MealType{Lunch, Dinner} {
		m, ok := meals[string(t)]
		if !ok {
			continue
		}
		var fields map[string]interface{}
		if err := unmarshalNumber(m, &fields); err != nil || fields == nil {
			continue
		}
		meal := decodeMeal(fields, t)
		if t == Lunch {
			dp.Lunch = meal
		} else {
			dp.Dinner = meal
		}
	}
	return dp
}

func decodeMeal(fields map[string]interface{}, t MealType) *Meal {
	return &Meal{
		Title:       textOr(fields["title"], notAvailable),
		Description: textOr(fields["description"], notAvailable),
		Focus:       textOr(fields["focus"], notAvailable),
		Servings:    servingsOr(fields["servings"], t.DefaultServings()),
	}
}

func decodeSummary(m map[string]interface{}) *WeeklySummary {
	if len(m) == 0 {
		return nil
	}
	s := &WeeklySummary{
		TotalMeals:         servingsOr(m["total_meals"], 0),
		DietaryFocus:       scalarString(m["dietary_focus"]),
		SeasonalHighlights: scalarString(m["seasonal_highlights"]),
	}
	if *s == (WeeklySummary{}) {
		return nil
	}
	return s
}

func unmarshalNumber(msg json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(strings.NewReader(string(msg)))
	dec.UseNumber()
	return dec.Decode(v)
}

func scalarString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func textOr(v interface{}, def string) string {
	if s := scalarString(v); strings.TrimSpace(s) != "" {
		return s
	}
	return def
}

// servingsOr accepts positive whole numbers, given as JSON numbers or numeric strings.
func servingsOr(v interface{}, def int) int {
	var f float64
	switch x := v.(type) {
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return def
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return def
		}
		f = n
	default:
		return def
	}
	if f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return def
	}
	return int(f)
}
