package scoring

// Scenario determines which data sources and weights drive a score.
type Scenario string

const (
	// ScenarioWithReviews applies when at least one nearby location has a
	// score record matching the user's demographics.
	ScenarioWithReviews Scenario = "WITH_REVIEWS"

	// ScenarioMLOnly applies when no demographic match exists but nearby
	// locations carry some safety data (place-type peers or overall records).
	ScenarioMLOnly Scenario = "ML_ONLY"

	// ScenarioColdStart applies when no nearby review data exists at all;
	// only neighborhood statistics contribute.
	ScenarioColdStart Scenario = "COLD_START"
)

// WeightTriple blends the three score sources. Each scenario's triple sums
// to 1.0. These are configuration, not derived values.
type WeightTriple struct {
	Reviews      float64
	MLPrediction float64
	Statistics   float64
}

var scenarioWeights = map[Scenario]WeightTriple{
	ScenarioWithReviews: {Reviews: 0.60, MLPrediction: 0.25, Statistics: 0.15},
	ScenarioMLOnly:      {Reviews: 0.00, MLPrediction: 0.60, Statistics: 0.40},
	ScenarioColdStart:   {Reviews: 0.00, MLPrediction: 0.00, Statistics: 1.00},
}

var scenarioConfidenceCaps = map[Scenario]float64{
	ScenarioWithReviews: 0.95,
	ScenarioMLOnly:      0.75,
	ScenarioColdStart:   0.35,
}

// Weights returns the blend weights for the scenario.
func (s Scenario) Weights() WeightTriple {
	return scenarioWeights[s]
}

// ConfidenceCap returns the maximum confidence for the scenario.
func (s Scenario) ConfidenceCap() float64 {
	return scenarioConfidenceCaps[s]
}

// ClassifyScenario selects the scoring scenario for a set of nearby
// locations and a user profile. A demographic match always selects
// WITH_REVIEWS, even when place-type peer data also exists.
func ClassifyScenario(locations []NearbyLocation, demo UserDemographics) Scenario {
	anyData := false
	for _, loc := range locations {
		for _, rec := range loc.Scores {
			anyData = true
			if Matches(rec, demo) {
				return ScenarioWithReviews
			}
		}
	}
	if anyData {
		return ScenarioMLOnly
	}
	return ScenarioColdStart
}
