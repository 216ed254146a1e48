package projection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthMetricsClamp(t *testing.T) {
	m := HealthMetrics{
		CVDRisk10Year:  140,
		LifeExpectancy: 41,
		KidneyHealth:   -3,
		VisionHealth:   180,
		HeartHealth:    55,
		NerveHealth:    19.9,
		VascularHealth: 100.1,
		Explanation:    "kept",
	}

	got := m.Clamp()
	assert.Equal(t, 99.0, got.CVDRisk10Year)
	assert.Equal(t, 60.0, got.LifeExpectancy)
	assert.Equal(t, 20.0, got.KidneyHealth)
	assert.Equal(t, 100.0, got.VisionHealth)
	assert.Equal(t, 55.0, got.HeartHealth)
	assert.Equal(t, 20.0, got.NerveHealth)
	assert.Equal(t, 100.0, got.VascularHealth)
	assert.Equal(t, "kept", got.Explanation)

	assert.Equal(t, 0.0, HealthMetrics{CVDRisk10Year: -5}.Clamp().CVDRisk10Year)
	// No ceiling on life expectancy.
	assert.Equal(t, 104.0, HealthMetrics{LifeExpectancy: 104}.Clamp().LifeExpectancy)
}

func TestHealthMetricsFinite(t *testing.T) {
	assert.True(t, HealthMetrics{}.Finite())
	assert.False(t, HealthMetrics{HeartHealth: math.NaN()}.Finite())
	assert.False(t, HealthMetrics{LifeExpectancy: math.Inf(1)}.Finite())
}
