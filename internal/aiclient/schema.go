package aiclient

import "strings"

// Schema is the subset of JSON Schema / OpenAPI both providers understand.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	PropertyOrdering     []string           `json:"propertyOrdering,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

type dialect int

const (
	dialectGemini dialect = iota
	dialectOpenAI
)

type field struct {
	name        string
	kind        string
	description string
}

var metricFields = []field{
	{"cvdRisk10Year", "number", "Estimated 10-year cardiovascular disease risk percentage (0-99)"},
	{"lifeExpectancy", "number", "Estimated life expectancy in years"},
	{"kidneyHealth", "number", "Score 0-100 (100 is perfect)"},
	{"visionHealth", "number", "Score 0-100 (100 is perfect)"},
	{"heartHealth", "number", "Score 0-100 (100 is perfect)"},
	{"nerveHealth", "number", "Score 0-100 (100 is perfect)"},
	{"vascularHealth", "number", "Score 0-100 (100 is perfect)"},
	{"explanation", "string", "Short medical explanation of this state"},
}

func responseSchema(d dialect) *Schema {
	return object(d, map[string]*Schema{
		"current":        metricsSchema(d, "Health state with the current profile"),
		"counterfactual": metricsSchema(d, "Health state after the proposed interventions"),
	}, []string{"current", "counterfactual"})
}

func metricsSchema(d dialect, description string) *Schema {
	props := make(map[string]*Schema, len(metricFields))
	names := make([]string, 0, len(metricFields))
	for _, f := range metricFields {
		props[f.name] = &Schema{Type: typeName(d, f.kind), Description: f.description}
		names = append(names, f.name)
	}
	s := object(d, props, names)
	s.Description = description
	return s
}

func object(d dialect, props map[string]*Schema, required []string) *Schema {
	s := &Schema{
		Type:       typeName(d, "object"),
		Properties: props,
		Required:   required,
	}
	switch d {
	case dialectGemini:
		s.PropertyOrdering = required
	case dialectOpenAI:
		closed := false
		s.AdditionalProperties = &closed
	}
	return s
}

// Gemini spells types in upper case.
func typeName(d dialect, kind string) string {
	if d == dialectGemini {
		return strings.ToUpper(kind)
	}
	return kind
}
