package models

import "strings"

// MaxAdditionalDetails bounds the free-text customization field, in characters.
const MaxAdditionalDetails = 500

// Customization is the frozen input snapshot stored with a certificate.
// Field values are members of the catalog enumerations; only AdditionalDetails is free text.
type Customization struct {
	Style             string `json:"style"`
	ColorScheme       string `json:"color_scheme"`
	Elements          string `json:"elements"`
	Mood              string `json:"mood"`
	AdditionalDetails string `json:"additional_details,omitempty"`
	Model             string `json:"model"`
}

// Normalize trims surrounding whitespace and lowercases the enumerated fields.
func (c *Customization) Normalize() {
	c.Style = strings.ToLower(strings.TrimSpace(c.Style))
	c.ColorScheme = strings.ToLower(strings.TrimSpace(c.ColorScheme))
	c.Elements = strings.ToLower(strings.TrimSpace(c.Elements))
	c.Mood = strings.ToLower(strings.TrimSpace(c.Mood))
	c.AdditionalDetails = strings.TrimSpace(c.AdditionalDetails)
	c.Model = strings.ToLower(strings.TrimSpace(c.Model))
}
