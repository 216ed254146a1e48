// Package vision maps glycemic control to the rendering parameters of the
// retinopathy simulation view.
package vision

import (
	"math"

	"github.com/Skufu/DiabetView/internal/projection"
)

// HbA1c above this is treated as symptomatic.
const severityBaseline = 6.0

// MaxLesions bounds the layout regardless of the severity it was asked for.
const MaxLesions = 64

type Mode string

const (
	ModeCurrent        Mode = "current"
	ModeCounterfactual Mode = "counterfactual"
)

type Effects struct {
	BlurPx        float64 `json:"blurPx"`
	BrightnessPct float64 `json:"brightnessPct"`
	ContrastPct   float64 `json:"contrastPct"`
	LesionCount   int     `json:"lesionCount"`
	LesionOpacity float64 `json:"lesionOpacity"`
}

// Lesion is one dark spot (scotoma). Top and Left are percentages of the
// viewport, SizePx is the diameter.
type Lesion struct {
	TopPct  float64 `json:"topPct"`
	LeftPct float64 `json:"leftPct"`
	SizePx  float64 `json:"sizePx"`
}

func MapSeverity(effectiveHbA1c float64) Effects {
	severity := math.Max(0, effectiveHbA1c-severityBaseline)

	lesions := 0
	if severity > 2 {
		lesions = int(math.Floor((severity - 1.5) * 4))
	}

	return Effects{
		BlurPx:        severity * 1.5,
		BrightnessPct: 100 - severity*5,
		ContrastPct:   100 + severity*5,
		LesionCount:   lesions,
		LesionOpacity: math.Min(0.8, severity*0.15),
	}
}

// Lesions lays out n lesions as a fixed function of their index so the same
// severity always renders the same picture.
func Lesions(n int) []Lesion {
	n = min(max(n, 0), MaxLesions)
	out := make([]Lesion, 0, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		out = append(out, Lesion{
			TopPct:  math.Abs(math.Sin(x*123.45))*80 + 10,
			LeftPct: math.Abs(math.Cos(x*678.90))*80 + 10,
			SizePx:  30 + math.Abs(math.Sin(x))*50,
		})
	}
	return out
}

// EstimateHbA1c converts a target mean glucose in mmol/L into an HbA1c
// percentage.
func EstimateHbA1c(targetGlucose float64) float64 {
	return (targetGlucose + 2.6) / 1.6
}

// EffectiveHbA1c picks the value that drives the view: the measured HbA1c in
// current mode, the estimate from the target glucose otherwise.
func EffectiveHbA1c(mode Mode, profile projection.PatientProfile, intervention projection.Intervention) float64 {
	if mode == ModeCounterfactual {
		return EstimateHbA1c(intervention.TargetGlucose)
	}
	return profile.HbA1c
}

// Simulation bundles everything the vision view needs for one mode.
type Simulation struct {
	Mode           Mode     `json:"mode"`
	EffectiveHbA1c float64  `json:"effectiveHbA1c"`
	Effects        Effects  `json:"effects"`
	Lesions        []Lesion `json:"lesions"`
}

func Simulate(mode Mode, profile projection.PatientProfile, intervention projection.Intervention) Simulation {
	hba1c := EffectiveHbA1c(mode, profile, intervention)
	effects := MapSeverity(hba1c)
	return Simulation{
		Mode:           mode,
		EffectiveHbA1c: hba1c,
		Effects:        effects,
		Lesions:        Lesions(effects.LesionCount),
	}
}
