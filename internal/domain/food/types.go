// Package food holds the value objects that flow through the analysis pipeline.
package food

import "encoding/base64"

// UnknownFood is the primary label used when nothing could be identified. It is a
// valid value, not an error, and is never sent to the nutrition database.
const UnknownFood = "Unknown Food"

// ImageBlob is one uploaded image. It is owned by a single request and never persisted.
type ImageBlob struct {
	Data      []byte
	MediaType string
	Format    string
}

// DataURL renders the blob as data:<media-type>;base64,<bytes>.
func (b ImageBlob) DataURL() string {
	return "data:" + b.MediaType + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}

// Base64 returns the raw payload in standard base64.
func (b ImageBlob) Base64() string {
	return base64.StdEncoding.EncodeToString(b.Data)
}

// GateDecision is the food gate verdict together with the score that produced it.
type GateDecision struct {
	IsFood bool
	Score  float64
}

// IdentificationRecord is what the VLM stage recovered from the model's reply.
type IdentificationRecord struct {
	PrimaryLabel       string
	ItemLabels         []string
	RawText            string
	Description        string
	EstimatedNutrients map[Nutrient]string
	Degraded           bool
}

// Label returns PrimaryLabel, or UnknownFood when it is empty.
func (r IdentificationRecord) Label() string {
	if r.PrimaryLabel == "" {
		return UnknownFood
	}
	return r.PrimaryLabel
}
