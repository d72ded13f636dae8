// Package catalog holds the supported AI models and the closed customization
// enumerations. The default catalog is embedded; operators may point
// MODEL_CATALOG_PATH at a replacement file with the same shape.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"imrich/internal/certificate/models"
	dErrors "imrich/pkg/domain-errors"
)

//go:embed models.yaml
var embedded []byte

// Model describes one image backend selectable by clients.
type Model struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Provider      string `yaml:"provider"`
	UpstreamModel string `yaml:"upstream_model"`
	Description   string `yaml:"description"`
	DefaultSize   string `yaml:"default_size"`
}

// Catalog is immutable after Load.
type Catalog struct {
	DefaultModel string   `yaml:"default_model"`
	Models       []Model  `yaml:"models"`
	Styles       []string `yaml:"styles"`
	ColorSchemes []string `yaml:"color_schemes"`
	Elements     []string `yaml:"elements"`
	Moods        []string `yaml:"moods"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("embedded model catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from path, or returns the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and checks a catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode model catalog: %w", err)
	}
	if len(c.Models) == 0 {
		return nil, fmt.Errorf("model catalog has no models")
	}
	if _, ok := c.Model(c.DefaultModel); !ok {
		return nil, fmt.Errorf("default model %q is not in the catalog", c.DefaultModel)
	}
	for name, values := range map[string][]string{
		"styles": c.Styles, "color_schemes": c.ColorSchemes, "elements": c.Elements, "moods": c.Moods,
	} {
		if len(values) == 0 {
			return nil, fmt.Errorf("model catalog has no %s", name)
		}
	}
	return &c, nil
}

// Model looks up a model by id.
func (c *Catalog) Model(id string) (Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// List returns the public view of every model, in catalog order.
func (c *Catalog) List() []models.ModelInfo {
	out := make([]models.ModelInfo, 0, len(c.Models))
	for _, m := range c.Models {
		out = append(out, models.ModelInfo{
			ID:          m.ID,
			Name:        m.Name,
			Provider:    m.Provider,
			Description: m.Description,
		})
	}
	return out
}

// Validate checks a normalized customization against the enumerations.
// The first failing field is reported.
func (c *Catalog) Validate(cust models.Customization) error {
	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"style", cust.Style, c.Styles},
		{"color_scheme", cust.ColorScheme, c.ColorSchemes},
		{"elements", cust.Elements, c.Elements},
		{"mood", cust.Mood, c.Moods},
	}
	for _, chk := range checks {
		if chk.value == "" {
			return dErrors.New(dErrors.CodeInvalidInput, chk.field+" is required")
		}
		if !slices.Contains(chk.allowed, chk.value) {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported %s %q", chk.field, chk.value))
		}
	}
	if n := len([]rune(cust.AdditionalDetails)); n > models.MaxAdditionalDetails {
		return dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("additional_details must be at most %d characters", models.MaxAdditionalDetails))
	}
	if _, ok := c.Model(cust.Model); !ok {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported ai_model %q", cust.Model))
	}
	return nil
}
