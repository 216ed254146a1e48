package aiclient

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/Skufu/DiabetView/internal/projection"
)

// Pointer fields tell an absent key apart from a zero value.
type wireMetrics struct {
	CVDRisk10Year  *float64 `json:"cvdRisk10Year"`
	LifeExpectancy *float64 `json:"lifeExpectancy"`
	KidneyHealth   *float64 `json:"kidneyHealth"`
	VisionHealth   *float64 `json:"visionHealth"`
	HeartHealth    *float64 `json:"heartHealth"`
	NerveHealth    *float64 `json:"nerveHealth"`
	VascularHealth *float64 `json:"vascularHealth"`
	Explanation    *string  `json:"explanation"`
}

type wireResult struct {
	Current        *wireMetrics `json:"current"`
	Counterfactual *wireMetrics `json:"counterfactual"`
}

// Parse validates a model reply against the response schema and clamps the
// accepted numbers into their documented bounds. Every failure wraps ErrSchema.
func Parse(text string) (projection.SimulationResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return projection.SimulationResult{}, fmt.Errorf("%w: empty response", ErrSchema)
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return projection.SimulationResult{}, fmt.Errorf("%w: decode: %v", ErrSchema, err)
	}

	var problems []string
	current := wire.Current.toMetrics("current", &problems)
	counterfactual := wire.Counterfactual.toMetrics("counterfactual", &problems)
	if len(problems) > 0 {
		return projection.SimulationResult{}, fmt.Errorf("%w: %s", ErrSchema, strings.Join(problems, "; "))
	}

	return projection.SimulationResult{Current: current, Counterfactual: counterfactual}.Clamp(), nil
}

func (w *wireMetrics) toMetrics(path string, problems *[]string) projection.HealthMetrics {
	if w == nil {
		*problems = append(*problems, path+" missing")
		return projection.HealthMetrics{}
	}

	num := func(name string, v *float64) float64 {
		switch {
		case v == nil:
			*problems = append(*problems, path+"."+name+" missing")
			return 0
		case math.IsNaN(*v) || math.IsInf(*v, 0):
			*problems = append(*problems, path+"."+name+" not finite")
			return 0
		}
		return *v
	}

	m := projection.HealthMetrics{
		CVDRisk10Year:  num("cvdRisk10Year", w.CVDRisk10Year),
		LifeExpectancy: num("lifeExpectancy", w.LifeExpectancy),
		KidneyHealth:   num("kidneyHealth", w.KidneyHealth),
		VisionHealth:   num("visionHealth", w.VisionHealth),
		HeartHealth:    num("heartHealth", w.HeartHealth),
		NerveHealth:    num("nerveHealth", w.NerveHealth),
		VascularHealth: num("vascularHealth", w.VascularHealth),
	}

	switch {
	case w.Explanation == nil:
		*problems = append(*problems, path+".explanation missing")
	case strings.TrimSpace(*w.Explanation) == "":
		*problems = append(*problems, path+".explanation empty")
	default:
		m.Explanation = strings.TrimSpace(*w.Explanation)
	}

	return m
}
