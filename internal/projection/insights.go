package projection

import "math"

const minArteryLumen = 2.0

// BMI returns weight over height squared, with height given in centimetres.
func BMI(weightKg, heightCm float64) float64 {
	m := heightCm / 100
	return weightKg / (m * m)
}

type OrganComparison struct {
	Organ          string  `json:"organ"`
	Current        float64 `json:"current"`
	Counterfactual float64 `json:"counterfactual"`
}

type ArteryLumen struct {
	Current        float64 `json:"current"`
	Counterfactual float64 `json:"counterfactual"`
}

// Summary is the chart-ready view of a SimulationResult.
type Summary struct {
	YearsGained      float64           `json:"yearsGained"`
	CVDRiskReduction float64           `json:"cvdRiskReduction"`
	Organs           []OrganComparison `json:"organs"`
	ArteryLumen      ArteryLumen       `json:"arteryLumen"`
}

func Summarize(r SimulationResult) Summary {
	cur, cf := r.Current, r.Counterfactual
	return Summary{
		YearsGained:      cf.LifeExpectancy - cur.LifeExpectancy,
		CVDRiskReduction: cur.CVDRisk10Year - cf.CVDRisk10Year,
		Organs: []OrganComparison{
			{Organ: "kidney", Current: cur.KidneyHealth, Counterfactual: cf.KidneyHealth},
			{Organ: "vision", Current: cur.VisionHealth, Counterfactual: cf.VisionHealth},
			{Organ: "heart", Current: cur.HeartHealth, Counterfactual: cf.HeartHealth},
			{Organ: "nerve", Current: cur.NerveHealth, Counterfactual: cf.NerveHealth},
			{Organ: "vascular", Current: cur.VascularHealth, Counterfactual: cf.VascularHealth},
		},
		ArteryLumen: ArteryLumen{
			Current:        lumenRadius(cur.VascularHealth),
			Counterfactual: lumenRadius(cf.VascularHealth),
		},
	}
}

// lumenRadius narrows the drawn artery as vascular health drops.
func lumenRadius(vascularHealth float64) float64 {
	return math.Max(minArteryLumen, vascularHealth/2)
}

// ImprovementScore weighs the planned weight loss and glucose reduction.
func ImprovementScore(profile PatientProfile, intervention Intervention) float64 {
	return (profile.Weight - intervention.TargetWeight) + (profile.FastingGlucose-intervention.TargetGlucose)*2
}

func Beneficial(profile PatientProfile, intervention Intervention) bool {
	return ImprovementScore(profile, intervention) > 0 || (profile.IsSmoker && intervention.QuitSmoking)
}
