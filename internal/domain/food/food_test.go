package food

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAmountDisplay(t *testing.T) {
	tests := []struct {
		name string
		in   Amount
		want string
	}{
		{"integer lookup", Measured(95, "kcal"), "95 kcal"},
		{"fractional lookup", Measured(30.5, "g"), "30.5 g"},
		{"exact lookup", Measured(12.345, "g"), "12.345 g"},
		{"float sum noise dropped", Measured(0.1+0.2, "g"), "0.3 g"},
		{"estimate", Estimated("450 kcal"), "450 kcal (estimate)"},
		{"blank estimate", Estimated("   "), "N/A"},
		{"unavailable", Amount{}, "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Display(); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNutrientRecordGetSet(t *testing.T) {
	var r NutrientRecord
	if r.HasAny() {
		t.Fatal("zero record has no nutrients")
	}
	r.Set(Fat, Measured(3, "g"))
	if !r.HasAny() || r.Get(Fat).Value != 3 {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.Get(Nutrient("fiber")).Available() {
		t.Fatal("unknown nutrient must be unavailable")
	}
}

func TestEnvelopeAlwaysCarriesFourDetails(t *testing.T) {
	res := AnalysisResult{FoodItem: "Apple"}
	res.Nutrients.Set(Calories, Measured(95, "kcal"))

	data, err := json.Marshal(res.Envelope())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	for _, want := range []string{`"Calories":"95 kcal"`, `"Protein":"N/A"`, `"Carbohydrates":"N/A"`, `"Fat":"N/A"`, `"source":"unavailable"`, `"items":[]`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in %s", want, body)
		}
	}
}

func TestImageBlobDataURL(t *testing.T) {
	blob := ImageBlob{Data: []byte("abc"), MediaType: "image/png"}
	if got := blob.DataURL(); got != "data:image/png;base64,YWJj" {
		t.Fatalf("DataURL() = %q", got)
	}
}

func TestIdentificationRecordLabel(t *testing.T) {
	if (IdentificationRecord{}).Label() != UnknownFood {
		t.Fatal("empty label falls back to the sentinel")
	}
}
