package aiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skufu/DiabetView/internal/projection"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(sampleProfile(), sampleIntervention())

	for _, want := range []string{
		"- Age: 55",
		"- Gender: Male",
		"- Weight: 95kg (Height: 175cm)",
		"- Fasting Glucose: 8.5 mmol/L",
		"- HbA1c: 7.8%",
		"- Systolic BP: 145 mmHg",
		"- Smoker: Yes",
		"- Diabetes Duration: 5 years",
		"- Target Weight: 85kg",
		"- Target Glucose: 6 mmol/L",
		"- Quit Smoking: Yes",
	} {
		assert.Contains(t, prompt, want)
	}
}

func TestBuildPrompt_Unchanged(t *testing.T) {
	p := sampleProfile()
	p.Gender = projection.GenderFemale
	p.IsSmoker = false
	iv := sampleIntervention()
	iv.QuitSmoking = false

	prompt := BuildPrompt(p, iv)
	assert.Contains(t, prompt, "- Gender: Female")
	assert.Contains(t, prompt, "- Smoker: No")
	assert.Contains(t, prompt, "- Quit Smoking: No (Unchanged)")
}
