package models

// GenerateImageRequest is the body of POST /api/generate-image.
type GenerateImageRequest struct {
	Customization CustomizationRequest `json:"customization"`
	AIModel       string               `json:"ai_model,omitempty"`
}

// CustomizationRequest mirrors the customization form fields.
type CustomizationRequest struct {
	Style             string `json:"style"`
	ColorScheme       string `json:"color_scheme"`
	Elements          string `json:"elements"`
	Mood              string `json:"mood"`
	AdditionalDetails string `json:"additional_details,omitempty"`
}

// ToCustomization converts the request into a normalized snapshot.
func (r GenerateImageRequest) ToCustomization(defaultModel string) Customization {
	model := r.AIModel
	if model == "" {
		model = defaultModel
	}
	c := Customization{
		Style:             r.Customization.Style,
		ColorScheme:       r.Customization.ColorScheme,
		Elements:          r.Customization.Elements,
		Mood:              r.Customization.Mood,
		AdditionalDetails: r.Customization.AdditionalDetails,
		Model:             model,
	}
	c.Normalize()
	if c.Model == "" {
		c.Model = defaultModel
	}
	return c
}

// PaymentStatusUpdate is the payload delivered by the payment collaborator,
// either as a signed webhook body or as a Kafka record value.
type PaymentStatusUpdate struct {
	Serial  string `json:"serial"`
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
}
