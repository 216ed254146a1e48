// Package projection holds the patient domain model and the deterministic
// current-vs-counterfactual health projection used whenever the AI path is
// unavailable.
package projection

import "math"

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// PatientProfile is an immutable snapshot of one edit. Binding tags are
// enforced at the HTTP boundary only; the projection functions accept any value.
type PatientProfile struct {
	Age                   int     `json:"age" binding:"gt=0"`
	Weight                float64 `json:"weight" binding:"gt=0"`
	Height                float64 `json:"height" binding:"gt=0"`
	FastingGlucose        float64 `json:"fastingGlucose" binding:"gte=0,lte=40"`
	HbA1c                 float64 `json:"hba1c" binding:"gte=0,lte=20"`
	SystolicBP            float64 `json:"systolicBP" binding:"gt=0"`
	IsSmoker              bool    `json:"isSmoker"`
	DiabetesDurationYears float64 `json:"diabetesDurationYears" binding:"gte=0"`
	Gender                Gender  `json:"gender" binding:"required,oneof=MALE FEMALE"`
}

type Intervention struct {
	TargetWeight  float64 `json:"targetWeight" binding:"gt=0"`
	TargetGlucose float64 `json:"targetGlucose" binding:"gte=0,lte=40"`
	// QuitSmoking only matters when the profile is a smoker.
	QuitSmoking bool `json:"quitSmoking"`
}

type HealthMetrics struct {
	CVDRisk10Year  float64 `json:"cvdRisk10Year"`
	LifeExpectancy float64 `json:"lifeExpectancy"`
	KidneyHealth   float64 `json:"kidneyHealth"`
	VisionHealth   float64 `json:"visionHealth"`
	HeartHealth    float64 `json:"heartHealth"`
	NerveHealth    float64 `json:"nerveHealth"`
	VascularHealth float64 `json:"vascularHealth"`
	Explanation    string  `json:"explanation"`
}

type SimulationResult struct {
	Current        HealthMetrics `json:"current"`
	Counterfactual HealthMetrics `json:"counterfactual"`
}

// Source records which path produced a Projection.
type Source string

const (
	SourceAI        Source = "ai"
	SourceCache     Source = "cache"
	SourceHeuristic Source = "heuristic"
)

// Projection is a SimulationResult tagged with its provenance. Reason is set
// when the heuristic model stood in for the AI.
type Projection struct {
	SimulationResult
	Source Source `json:"source"`
	Reason string `json:"reason,omitempty"`
}

const (
	MaxCVDRisk        = 99.0
	MinLifeExpectancy = 60.0
	MinOrganScore     = 20.0
	MaxOrganScore     = 100.0
)

// Clamp forces every numeric field into its documented range. It is applied
// to AI output, which is not trusted to respect the bounds.
func (m HealthMetrics) Clamp() HealthMetrics {
	m.CVDRisk10Year = clamp(m.CVDRisk10Year, 0, MaxCVDRisk)
	m.LifeExpectancy = math.Max(m.LifeExpectancy, MinLifeExpectancy)
	m.KidneyHealth = clamp(m.KidneyHealth, MinOrganScore, MaxOrganScore)
	m.VisionHealth = clamp(m.VisionHealth, MinOrganScore, MaxOrganScore)
	m.HeartHealth = clamp(m.HeartHealth, MinOrganScore, MaxOrganScore)
	m.NerveHealth = clamp(m.NerveHealth, MinOrganScore, MaxOrganScore)
	m.VascularHealth = clamp(m.VascularHealth, MinOrganScore, MaxOrganScore)
	return m
}

// Finite reports whether every numeric field is a finite number.
func (m HealthMetrics) Finite() bool {
	for _, v := range m.values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (m HealthMetrics) values() []float64 {
	return []float64{
		m.CVDRisk10Year,
		m.LifeExpectancy,
		m.KidneyHealth,
		m.VisionHealth,
		m.HeartHealth,
		m.NerveHealth,
		m.VascularHealth,
	}
}

func (r SimulationResult) Clamp() SimulationResult {
	return SimulationResult{
		Current:        r.Current.Clamp(),
		Counterfactual: r.Counterfactual.Clamp(),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
