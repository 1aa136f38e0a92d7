// Package parser recovers an identification record from free-form VLM replies.
//
// Parsing never fails: unrecognised or malformed text simply yields fewer fields,
// with the primary label falling back to food.UnknownFood.
package parser

import (
	"regexp"
	"strings"

	"nutrilens-server-go/internal/domain/food"
)

// MaxLabelWords bounds how long a first-line fallback label may be.
const MaxLabelWords = 10

type field int

const (
	fieldNone field = iota
	fieldFoodItem
	fieldCalories
	fieldProtein
	fieldCarbohydrates
	fieldFat
)

var fieldNutrients = map[field]food.Nutrient{
	fieldCalories:      food.Calories,
	fieldProtein:       food.Protein,
	fieldCarbohydrates: food.Carbohydrates,
	fieldFat:           food.Fat,
}

var (
	labelPattern  = regexp.MustCompile(`(?i)^(food\s+items?|calories|protein|carbohydrates|fat)\s*:(.*)$`)
	bulletPattern = regexp.MustCompile(`^(?:[-*•]+\s*|\d+[.)]\s+)`)
	markerPattern = regexp.MustCompile(`^(?:[-*•#>]+\s*|\d+[.)]\s+)`)
	itemSeparator = regexp.MustCompile(`\s*[,;]\s*`)
	conjunction   = regexp.MustCompile(`(?i)^(?:and|&)\s+`)
	nutrientLabel = regexp.MustCompile(`(?i)\b(?:calories|protein|carbohydrates|fat)\s*:`)
)

const labelCutset = " \t[](){}\"'`*_"

// Parse extracts the food items and nutrient estimates from text.
// Description and RawText are always the unmodified input.
func Parse(text string) food.IdentificationRecord {
	rec := food.IdentificationRecord{
		PrimaryLabel:       food.UnknownFood,
		RawText:            text,
		Description:        text,
		EstimatedNutrients: map[food.Nutrient]string{},
	}

	lines := splitLines(text)
	values := map[field]string{}

	pending := fieldNone
	var parts []string
	flush := func() {
		if pending == fieldNone {
			return
		}
		sep := " "
		if pending == fieldFoodItem {
			sep = ", "
		}
		values[pending] = strings.Join(parts, sep)
		pending, parts = fieldNone, nil
	}

	for _, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			flush()
			continue
		}

		line := normalize(trimmed)
		if f, value, ok := matchField(line); ok {
			flush()
			if value == "" {
				pending = f
				values[f] = ""
				continue
			}
			values[f] = value
			continue
		}

		if pending != fieldNone && bulletPattern.MatchString(stripEmphasis(trimmed)) {
			if part := strings.Trim(line, labelCutset); part != "" {
				parts = append(parts, part)
			}
			continue
		}
		flush()
	}
	flush()

	for f, n := range fieldNutrients {
		if v := strings.TrimSpace(values[f]); v != "" {
			rec.EstimatedNutrients[n] = v
		}
	}

	if label := cleanLabel(values[fieldFoodItem]); label != "" {
		rec.PrimaryLabel = label
		rec.ItemLabels = splitItems(values[fieldFoodItem])
		return rec
	}

	if len(lines) > 0 {
		if label, ok := fallbackLabel(lines[0]); ok {
			rec.PrimaryLabel = label
		}
	}
	return rec
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func stripEmphasis(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	return strings.ReplaceAll(s, "__", "")
}

// normalize drops emphasis and leading list or heading markers.
func normalize(line string) string {
	line = strings.TrimSpace(stripEmphasis(line))
	for {
		next := strings.TrimSpace(markerPattern.ReplaceAllString(line, ""))
		if next == line {
			return line
		}
		line = next
	}
}

func matchField(line string) (field, string, bool) {
	m := labelPattern.FindStringSubmatch(line)
	if m == nil {
		return fieldNone, "", false
	}
	value := strings.Trim(strings.TrimSpace(m[2]), " \t*_")

	label := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
	switch label {
	case "food item", "food items":
		return fieldFoodItem, value, true
	case "calories":
		return fieldCalories, value, true
	case "protein":
		return fieldProtein, value, true
	case "carbohydrates":
		return fieldCarbohydrates, value, true
	case "fat":
		return fieldFat, value, true
	}
	return fieldNone, "", false
}

// cleanLabel strips brackets, quotes and trailing punctuation.
func cleanLabel(s string) string {
	for {
		next := strings.TrimRight(strings.Trim(s, labelCutset), ".!?:")
		if next == s {
			return s
		}
		s = next
	}
}

// splitItems splits on commas and semicolons only, so dish names such as
// "Fish and Chips" stay whole. A list-final "and" is dropped.
func splitItems(value string) []string {
	parts := itemSeparator.Split(value, -1)
	var items []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if len(parts) > 1 {
			part = conjunction.ReplaceAllString(part, "")
		}
		if item := cleanLabel(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func fallbackLabel(first string) (string, bool) {
	line := normalize(strings.TrimSpace(first))
	if line == "" {
		return "", false
	}
	if f, _, ok := matchField(line); ok && f != fieldFoodItem {
		return "", false
	}
	if nutrientLabel.MatchString(line) {
		return "", false
	}
	if _, after, found := strings.Cut(line, ":"); found {
		line = after
	}
	candidate := cleanLabel(strings.TrimSpace(line))
	words := len(strings.Fields(candidate))
	if words < 1 || words > MaxLabelWords {
		return "", false
	}
	return candidate, true
}
