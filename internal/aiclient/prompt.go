package aiclient

import (
	"fmt"
	"strings"

	"github.com/Skufu/DiabetView/internal/projection"
)

// BuildPrompt renders every profile and intervention field into a fixed
// template. The text is kept for traceability and never parsed back.
func BuildPrompt(profile projection.PatientProfile, intervention projection.Intervention) string {
	var b strings.Builder

	b.WriteString("Act as a medical expert in endocrinology and cardiology.\n")
	b.WriteString("Analyze the following patient data and perform a counterfactual analysis based on the proposed interventions.\n\n")

	b.WriteString("Current Patient Profile:\n")
	fmt.Fprintf(&b, "- Age: %d\n", profile.Age)
	fmt.Fprintf(&b, "- Gender: %s\n", genderLabel(profile.Gender))
	fmt.Fprintf(&b, "- Weight: %gkg (Height: %gcm)\n", profile.Weight, profile.Height)
	fmt.Fprintf(&b, "- Fasting Glucose: %g mmol/L\n", profile.FastingGlucose)
	fmt.Fprintf(&b, "- HbA1c: %g%%\n", profile.HbA1c)
	fmt.Fprintf(&b, "- Systolic BP: %g mmHg\n", profile.SystolicBP)
	fmt.Fprintf(&b, "- Smoker: %s\n", yesNo(profile.IsSmoker, "No"))
	fmt.Fprintf(&b, "- Diabetes Duration: %g years\n\n", profile.DiabetesDurationYears)

	b.WriteString("Proposed Interventions (Counterfactual):\n")
	fmt.Fprintf(&b, "- Target Weight: %gkg\n", intervention.TargetWeight)
	fmt.Fprintf(&b, "- Target Glucose: %g mmol/L\n", intervention.TargetGlucose)
	fmt.Fprintf(&b, "- Quit Smoking: %s\n\n", yesNo(intervention.QuitSmoking, "No (Unchanged)"))

	b.WriteString("Return a JSON object comparing the 'current' status vs the 'counterfactual' status.\n")
	b.WriteString("Be realistic about medical risks associated with diabetes.\n")

	return b.String()
}

func genderLabel(g projection.Gender) string {
	switch g {
	case projection.GenderMale:
		return "Male"
	case projection.GenderFemale:
		return "Female"
	default:
		return "Unspecified"
	}
}

func yesNo(v bool, no string) string {
	if v {
		return "Yes"
	}
	return no
}
