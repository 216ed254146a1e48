package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBMI(t *testing.T) {
	assert.InDelta(t, 31.02, BMI(95, 175), 0.01)
	assert.InDelta(t, 27.76, BMI(85, 175), 0.01)
}

func TestSummarize(t *testing.T) {
	s := Summarize(Project(sampleProfile(), sampleIntervention()))

	assert.Equal(t, 18.0, s.YearsGained)
	assert.Equal(t, 28.0, s.CVDRiskReduction)
	require.Len(t, s.Organs, 5)
	assert.Equal(t, "kidney", s.Organs[0].Organ)
	assert.Equal(t, "vascular", s.Organs[4].Organ)
	assert.Equal(t, 75.0, s.Organs[4].Counterfactual)
	assert.Equal(t, 32.5, s.ArteryLumen.Current)
	assert.Equal(t, 37.5, s.ArteryLumen.Counterfactual)
}

func TestLumenRadiusFloor(t *testing.T) {
	assert.Equal(t, 2.0, lumenRadius(3))
	assert.Equal(t, 10.0, lumenRadius(20))
}

func TestImprovementScore(t *testing.T) {
	p, iv := sampleProfile(), sampleIntervention()
	// (95-85) + (8.5-6.0)*2
	assert.InDelta(t, 15.0, ImprovementScore(p, iv), 1e-9)
	assert.True(t, Beneficial(p, iv))

	worse := Intervention{TargetWeight: 100, TargetGlucose: 9, QuitSmoking: false}
	assert.False(t, Beneficial(p, worse))

	worse.QuitSmoking = true
	assert.True(t, Beneficial(p, worse))
}
