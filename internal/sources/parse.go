package sources

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Commas, semicolons, brackets and the word "and" all delimit ingredients.
// "and" only splits when bounded by whitespace, a delimiter or the text ends,
// so "Sweet-and-Sour" and words with non-ASCII letters stay whole.
var ingredientSplit = regexp.MustCompile(`(?i)(?:^|[\s,;()\[\]])and(?:[\s,;()\[\]]|$)|[,;()\[\]]`)

// ParseIngredients splits a free-text ingredient list into trimmed entries,
// keeping the declared order. Bracketed sub-ingredients become entries of
// their own right after their parent. Open Food Facts allergen markup
// (_milk_), organic footnote stars and trailing periods are stripped.
func ParseIngredients(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	for _, part := range ingredientSplit.Split(text, -1) {
		part = strings.ReplaceAll(part, "_", "")
		part = strings.Trim(strings.TrimSpace(part), ".*")
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// numberValue coerces a decoded JSON value into a non-negative float.
// Providers send numbers as either JSON numbers or strings.
func numberValue(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// firstNumber returns the first key in m holding a usable number
func firstNumber(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := numberValue(v); ok {
				return &f
			}
		}
	}
	return nil
}

var gramsPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:g|gr|grams?)\b`)

// gramsIn finds a gram quantity in free text such as "1 cup (30 g)"
func gramsIn(text string) (float64, bool) {
	m := gramsPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// zeroOr returns v or a pointer to 0 when the provider omitted the value
func zeroOr(v *float64) *float64 {
	if v != nil {
		return v
	}
	z := 0.0
	return &z
}
