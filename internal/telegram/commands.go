package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"fame/internal/planner"
)

// parseCommand splits "/cmd@bot args" into its lowercased command and the
// trimmed arguments. Text that is not a command yields an empty cmd.
func parseCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	head, rest := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest)
}

// parseTraining reads "off" or "<times per week> <days>".
func parseTraining(args string) (trains bool, freq int, days string, err error) {
	args = strings.TrimSpace(args)
	if strings.EqualFold(args, "off") || strings.EqualFold(args, "no") {
		return false, 0, "", nil
	}
	first, rest, _ := strings.Cut(args, " ")
	freq, err = strconv.Atoi(first)
	if err != nil || freq < 1 || freq > 7 {
		return false, 0, "", fmt.Errorf("training frequency must be a number between 1 and 7")
	}
	return true, freq, strings.TrimSpace(rest), nil
}

var dayAliases = map[string]planner.Day{
	"lunedì":    planner.Monday,
	"lunedi":    planner.Monday,
	"martedì":   planner.Tuesday,
	"martedi":   planner.Tuesday,
	"mercoledì": planner.Wednesday,
	"mercoledi": planner.Wednesday,
	"giovedì":   planner.Thursday,
	"giovedi":   planner.Thursday,
	"venerdì":   planner.Friday,
	"venerdi":   planner.Friday,
	"sabato":    planner.Saturday,
	"domenica":  planner.Sunday,
}

var mealAliases = map[string]planner.MealType{
	"pranzo": planner.Lunch,
	"cena":   planner.Dinner,
}

// parseMealRef reads "<day> <meal>", in English or Italian.
func parseMealRef(args string) (planner.Day, planner.MealType, error) {
	fields := strings.Fields(strings.ToLower(args))
	if len(fields) != 2 {
		return "", "", fmt.Errorf("expected a day and a meal")
	}
	day, ok := planner.ParseDay(fields[0])
	if !ok {
		if day, ok = dayAliases[fields[0]]; !ok {
			return "", "", fmt.Errorf("unknown day %q", fields[0])
		}
	}
	meal, ok := planner.ParseMealType(fields[1])
	if !ok {
		if meal, ok = mealAliases[fields[1]]; !ok {
			return "", "", fmt.Errorf("meal must be lunch or dinner")
		}
	}
	return day, meal, nil
}

// splitMessage cuts text into chunks of at most limit bytes, preferring line
// breaks and never splitting a UTF-8 sequence.
func splitMessage(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
