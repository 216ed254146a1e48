package projection

import "math"

const (
	currentExplanation        = "Elevated HbA1c together with the present risk factors substantially lowers the projected health scores."
	counterfactualExplanation = "Reaching the target weight and glucose, and quitting smoking where applicable, extends life expectancy and protects the organs."

	// Systolic pressure subtracted from the measured BP when scoring vascular
	// health. The counterfactual assumes a mild improvement with weight loss.
	currentBPBaseline        = 110.0
	counterfactualBPBaseline = 120.0
)

// Project computes the current and counterfactual metrics without any I/O.
// It is pure and deterministic, and is the fallback of last resort for the AI
// client, so it must never fail. The formulas can leave the documented range
// (vascular health above 100 for a systolic BP under the baseline), so the
// result is clamped like any other projection.
func Project(profile PatientProfile, intervention Intervention) SimulationResult {
	bmi := BMI(profile.Weight, profile.Height)
	risk := riskFactor(profile.HbA1c, profile.IsSmoker, bmi)

	smokes := profile.IsSmoker && !intervention.QuitSmoking
	targetBMI := BMI(intervention.TargetWeight, profile.Height)
	improvedRisk := riskFactor(intervention.TargetGlucose, smokes, targetBMI)

	return SimulationResult{
		Current:        metrics(risk, profile.HbA1c, profile.SystolicBP-currentBPBaseline, currentExplanation),
		Counterfactual: metrics(improvedRisk, intervention.TargetGlucose, profile.SystolicBP-counterfactualBPBaseline, counterfactualExplanation),
	}.Clamp()
}

func riskFactor(glycemia float64, smoker bool, bmi float64) float64 {
	risk := glycemia * 2
	if smoker {
		risk += 10
	}
	if bmi > 30 {
		risk += 5
	}
	return risk
}

func metrics(risk, glycemia, excessBP float64, explanation string) HealthMetrics {
	return HealthMetrics{
		CVDRisk10Year:  math.Min(roundHalfUp(risk*1.5), MaxCVDRisk),
		LifeExpectancy: math.Max(MinLifeExpectancy, 90-risk),
		KidneyHealth:   math.Max(MinOrganScore, 100-risk),
		VisionHealth:   math.Max(MinOrganScore, 100-glycemia*5),
		HeartHealth:    math.Max(MinOrganScore, 100-risk*1.2),
		NerveHealth:    math.Max(MinOrganScore, 100-glycemia*4),
		VascularHealth: math.Max(MinOrganScore, 100-excessBP),
		Explanation:    explanation,
	}
}

// roundHalfUp rounds .5 toward positive infinity, so -2.5 becomes -2.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
