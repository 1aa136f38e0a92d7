package food

type ItemStatus string

const (
	ItemFound       ItemStatus = "found"
	ItemNotFound    ItemStatus = "not_found"
	ItemUnavailable ItemStatus = "unavailable"
)

// ItemNutrients is the lookup outcome for one identified item.
type ItemNutrients struct {
	Name      string
	Status    ItemStatus
	Nutrients NutrientRecord
}

// AnalysisResult is the terminal output of a successful pipeline run.
type AnalysisResult struct {
	FoodItem    string
	Description string
	Nutrients   NutrientRecord
	Source      Provenance
	Items       []ItemNutrients
}

// Details is the fixed four-field nutrient block of the envelope.
type Details struct {
	Calories      string `json:"Calories"`
	Protein       string `json:"Protein"`
	Carbohydrates string `json:"Carbohydrates"`
	Fat           string `json:"Fat"`
}

func DetailsOf(r NutrientRecord) Details {
	return Details{
		Calories:      r.Calories.Display(),
		Protein:       r.Protein.Display(),
		Carbohydrates: r.Carbohydrates.Display(),
		Fat:           r.Fat.Display(),
	}
}

type ItemEnvelope struct {
	Name    string  `json:"name"`
	Status  string  `json:"status"`
	Details Details `json:"details"`
}

// Envelope is the outbound response body.
type Envelope struct {
	FoodItem    string         `json:"food_item"`
	Description string         `json:"description"`
	Details     Details        `json:"details"`
	Source      string         `json:"source"`
	Items       []ItemEnvelope `json:"items"`
}

func (r AnalysisResult) Envelope() Envelope {
	items := make([]ItemEnvelope, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, ItemEnvelope{
			Name:    it.Name,
			Status:  string(it.Status),
			Details: DetailsOf(it.Nutrients),
		})
	}
	foodItem := r.FoodItem
	if foodItem == "" {
		foodItem = UnknownFood
	}
	return Envelope{
		FoodItem:    foodItem,
		Description: r.Description,
		Details:     DetailsOf(r.Nutrients),
		Source:      r.Source.String(),
		Items:       items,
	}
}
