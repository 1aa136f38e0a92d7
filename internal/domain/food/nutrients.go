package food

import (
	"math"
	"strconv"
	"strings"
)

type Nutrient string

const (
	Calories      Nutrient = "calories"
	Protein       Nutrient = "protein"
	Carbohydrates Nutrient = "carbohydrates"
	Fat           Nutrient = "fat"
)

// AllNutrients lists the recognised nutrients in display order.
var AllNutrients = []Nutrient{Calories, Protein, Carbohydrates, Fat}

var displayNames = map[Nutrient]string{
	Calories:      "Calories",
	Protein:       "Protein",
	Carbohydrates: "Carbohydrates",
	Fat:           "Fat",
}

// DisplayName is the key used for the nutrient in the response envelope.
func (n Nutrient) DisplayName() string {
	if name, ok := displayNames[n]; ok {
		return name
	}
	return string(n)
}

// NotAvailable is displayed for a nutrient no source could provide.
const NotAvailable = "N/A"

// Provenance says where an amount came from. The zero value means unavailable.
type Provenance string

const (
	SourceUnavailable Provenance = ""
	SourceLookup      Provenance = "lookup"
	SourceEstimate    Provenance = "estimate"
)

// String renders the provenance, using "unavailable" for the zero value.
func (p Provenance) String() string {
	if p == SourceUnavailable {
		return "unavailable"
	}
	return string(p)
}

// Amount is one nutrient value. A looked-up amount carries Value and Unit; an estimate
// carries only the model's free text in Estimate. The two shapes are never converted.
type Amount struct {
	Value    float64    `json:"value,omitempty"`
	Unit     string     `json:"unit,omitempty"`
	Estimate string     `json:"estimate,omitempty"`
	Source   Provenance `json:"source,omitempty"`
}

func Measured(value float64, unit string) Amount {
	return Amount{Value: value, Unit: unit, Source: SourceLookup}
}

func Estimated(text string) Amount {
	text = strings.TrimSpace(text)
	if text == "" {
		return Amount{}
	}
	return Amount{Estimate: text, Source: SourceEstimate}
}

func (a Amount) Available() bool {
	return a.Source != SourceUnavailable
}

const displayPrecision = 1e6

// Display renders "95 kcal", "30.25 g", "450 kcal (estimate)" or "N/A". Looked-up
// values are shown exactly; only float noise past displayPrecision decimals is dropped.
func (a Amount) Display() string {
	switch a.Source {
	case SourceLookup:
		trimmed := math.Round(a.Value*displayPrecision) / displayPrecision
		number := strconv.FormatFloat(trimmed, 'f', -1, 64)
		if a.Unit == "" {
			return number
		}
		return number + " " + a.Unit
	case SourceEstimate:
		return a.Estimate + " (estimate)"
	default:
		return NotAvailable
	}
}

// NutrientRecord holds one amount per recognised nutrient. Looked-up records are per
// 100 g serving.
type NutrientRecord struct {
	Calories      Amount `json:"calories"`
	Protein       Amount `json:"protein"`
	Carbohydrates Amount `json:"carbohydrates"`
	Fat           Amount `json:"fat"`
}

func (r NutrientRecord) Get(n Nutrient) Amount {
	switch n {
	case Calories:
		return r.Calories
	case Protein:
		return r.Protein
	case Carbohydrates:
		return r.Carbohydrates
	case Fat:
		return r.Fat
	}
	return Amount{}
}

func (r *NutrientRecord) Set(n Nutrient, a Amount) {
	switch n {
	case Calories:
		r.Calories = a
	case Protein:
		r.Protein = a
	case Carbohydrates:
		r.Carbohydrates = a
	case Fat:
		r.Fat = a
	}
}

// HasAny reports whether at least one nutrient is available.
func (r NutrientRecord) HasAny() bool {
	for _, n := range AllNutrients {
		if r.Get(n).Available() {
			return true
		}
	}
	return false
}
