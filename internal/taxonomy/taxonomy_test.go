package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pulse/internal/contracts"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Validate())
}

func TestSparseMetricsExcludedFromAllowlists(t *testing.T) {
	baseline := BaselineEligibleKeys()
	anomaly := AnomalyEligibleKeys()

	for _, key := range []string{"sleep_duration", "vo2max"} {
		assert.NotContains(t, baseline, key)
		assert.NotContains(t, anomaly, key)
		d, ok := Lookup(key)
		require.True(t, ok)
		assert.True(t, d.Sparse)
	}
}

func TestExcludedTypesHaveNoDescriptor(t *testing.T) {
	for _, d := range Catalog {
		assert.NotEqual(t, "BodyMass", d.ObservationType)
		assert.NotEqual(t, "Height", d.ObservationType)
		assert.NotEqual(t, "cat_SleepDurationGoal", d.ObservationType)
	}
}

func TestLookup(t *testing.T) {
	d, ok := Lookup("hrv_sdnn")
	require.True(t, ok)
	assert.Equal(t, "HeartRateVariabilitySDNN", d.ObservationType)
	assert.Equal(t, ReduceMedian, d.Reducer)

	_, ok = Lookup("body_mass")
	assert.False(t, ok)
}

func TestValidValueBounds(t *testing.T) {
	steps, _ := Lookup("steps")
	assert.True(t, steps.ValidValue(0), "sum metrics accept zero")
	assert.False(t, steps.ValidValue(-1))

	hr, _ := Lookup("heart_rate_mean")
	assert.False(t, hr.ValidValue(30), "lower bound is exclusive")
	assert.True(t, hr.ValidValue(31))
	assert.False(t, hr.ValidValue(250), "upper bound is exclusive")
	assert.True(t, hr.ValidValue(249))

	speed, _ := Lookup("walking_speed")
	assert.False(t, speed.ValidValue(0), "rate metrics reject zero")
	assert.True(t, speed.ValidValue(0.1))
}

func TestQualityForSources(t *testing.T) {
	tests := []struct {
		name    string
		sources []string
		want    contracts.SourceQuality
	}{
		{"apple watch wins", []string{"iPhone", "Wonny's Apple Watch"}, contracts.QualityHigh},
		{"whoop is medium", []string{"WHOOP"}, contracts.QualityMedium},
		{"oura is medium", []string{"Oura"}, contracts.QualityMedium},
		{"phone only is low", []string{"iPhone"}, contracts.QualityLow},
		{"empty is low", nil, contracts.QualityLow},
		{"watch beats tracker", []string{"whoop", "Galaxy Watch"}, contracts.QualityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QualityForSources(tt.sources))
		})
	}
}

func TestHeartRateDerivesThreeMetrics(t *testing.T) {
	var keys []string
	for _, d := range Catalog {
		if d.ObservationType == "HeartRate" {
			keys = append(keys, d.Key)
		}
	}
	assert.ElementsMatch(t, []string{"heart_rate_mean", "heart_rate_min", "heart_rate_max"}, keys)
}
