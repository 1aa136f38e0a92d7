package aggregate

import (
	"strings"

	"nutrilens-server-go/internal/domain/food"
)

const kJPerKcal = 4.184

// CanonicalUnit is the unit totals are reported in.
func CanonicalUnit(n food.Nutrient) string {
	if n == food.Calories {
		return "kcal"
	}
	return "g"
}

// Convert expresses a looked-up amount in the canonical unit for n. It reports false
// when the unit cannot be converted.
func Convert(n food.Nutrient, a food.Amount) (float64, bool) {
	if a.Source != food.SourceLookup {
		return 0, false
	}
	unit := strings.ToLower(strings.TrimSpace(a.Unit))
	if n == food.Calories {
		switch unit {
		case "kcal", "":
			return a.Value, true
		case "kj":
			return a.Value / kJPerKcal, true
		}
		return 0, false
	}
	switch unit {
	case "g", "":
		return a.Value, true
	case "mg":
		return a.Value / 1000, true
	case "µg", "ug", "mcg":
		return a.Value / 1e6, true
	}
	return 0, false
}

// Normalize converts every amount in rec to canonical units, dropping those that cannot be.
func Normalize(rec food.NutrientRecord) food.NutrientRecord {
	var out food.NutrientRecord
	for _, n := range food.AllNutrients {
		if v, ok := Convert(n, rec.Get(n)); ok {
			out.Set(n, food.Measured(v, CanonicalUnit(n)))
		}
	}
	return out
}
