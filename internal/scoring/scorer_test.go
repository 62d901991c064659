package scoring_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/scoring"
)

var origin = geo.Coordinate{Lat: 0, Lon: 0}

func newTestScorer(repo scoring.GeoRepository) *scoring.Scorer {
	return scoring.NewScorer(repo, scoring.ScorerConfig{}, zerolog.Nop())
}

func segmentAt(center geo.Coordinate) *scoring.RouteSegment {
	return &scoring.RouteSegment{
		Start:          center,
		End:            center,
		Center:         center,
		DistanceMeters: 100,
	}
}

// squareAround returns a polygon containing the point.
func squareAround(c geo.Coordinate, sideDeg float64) []geo.Coordinate {
	h := sideDeg / 2
	return []geo.Coordinate{
		{Lat: c.Lat - h, Lon: c.Lon - h},
		{Lat: c.Lat - h, Lon: c.Lon + h},
		{Lat: c.Lat + h, Lon: c.Lon + h},
		{Lat: c.Lat + h, Lon: c.Lon - h},
	}
}

func reviewedLocation(id string, at geo.Coordinate, scores ...scoring.SafetyScoreRecord) scoring.NearbyLocation {
	return scoring.NearbyLocation{
		ID:        id,
		Name:      "Location " + id,
		PlaceType: "cafe",
		Location:  at,
		Scores:    scores,
	}
}

func TestScoreSegment_ColdStart(t *testing.T) {
	scorer := newTestScorer(scoring.NewInMemoryRepository())

	seg := segmentAt(origin)
	scorer.ScoreSegment(context.Background(), seg, scoring.UserDemographics{Gender: "woman"})

	assert.Equal(t, scoring.ScenarioColdStart, seg.Scenario)
	assert.InDelta(t, scoring.NeutralScore, seg.SafetyScore, 1e-9)
	assert.InDelta(t, scoring.NeutralScore, seg.ComfortScore, 1e-9)
	assert.InDelta(t, scoring.NeutralScore, seg.OverallScore, 1e-9)
	assert.InDelta(t, 0.15, seg.Confidence, 1e-9)
	assert.Contains(t, seg.RiskFactors, "Limited data available for this area")
}

func TestScoreSegment_WithReviews(t *testing.T) {
	repo := scoring.NewInMemoryRepository()
	repo.AddLocation(reviewedLocation("loc-1", origin,
		scoring.SafetyScoreRecord{
			DemographicType:  scoring.DemographicGender,
			DemographicValue: "woman",
			AvgSafetyScore:   2.0,
			AvgComfortScore:  2.4,
			AvgOverallScore:  2.2,
			ReviewCount:      12,
		},
		scoring.SafetyScoreRecord{
			DemographicType: scoring.DemographicOverall,
			AvgSafetyScore:  3.1,
			AvgComfortScore: 3.2,
			AvgOverallScore: 3.0,
			ReviewCount:     40,
		},
	))
	scorer := newTestScorer(repo)

	seg := segmentAt(origin)
	scorer.ScoreSegment(context.Background(), seg, scoring.UserDemographics{Gender: "woman"})

	assert.Equal(t, scoring.ScenarioWithReviews, seg.Scenario)

	// Review source: the matching gender record. ML source: weighted mean of
	// the match (weight 2) and the overall record (weight 1) = 7.4/3.
	// Statistics absent, neutral 3.5.
	ml := (2.2*2 + 3.0) / 3
	assert.InDelta(t, 0.60*2.0+0.25*ml+0.15*3.5, seg.SafetyScore, 1e-9)
	assert.InDelta(t, 0.60*2.4+0.25*ml+0.15*3.5, seg.ComfortScore, 1e-9)
	assert.InDelta(t, 0.60*2.2+0.25*ml+0.15*3.5, seg.OverallScore, 1e-9)

	// base 0.15 + one match 0.06 + one peer 0.03
	assert.InDelta(t, 0.24, seg.Confidence, 1e-9)

	assert.Contains(t, seg.RiskFactors, "Low reported safety in this area")
	assert.Contains(t, seg.RiskFactors, "Limited data available for this area")
}

func TestScoreSegment_MLOnly(t *testing.T) {
	repo := scoring.NewInMemoryRepository()
	repo.AddLocation(reviewedLocation("loc-1", origin,
		scoring.SafetyScoreRecord{
			DemographicType:  scoring.DemographicGender,
			DemographicValue: "woman",
			AvgOverallScore:  2.0,
			ReviewCount:      4,
		},
		scoring.SafetyScoreRecord{
			DemographicType: scoring.DemographicOverall,
			AvgOverallScore: 4.0,
			ReviewCount:     9,
		},
	))
	scorer := newTestScorer(repo)

	seg := segmentAt(origin)
	scorer.ScoreSegment(context.Background(), seg, scoring.UserDemographics{Gender: "man"})

	assert.Equal(t, scoring.ScenarioMLOnly, seg.Scenario)

	// No demographic match: only the overall record feeds the ML source.
	assert.InDelta(t, 0.60*4.0+0.40*3.5, seg.SafetyScore, 1e-9)
	assert.InDelta(t, 0.18, seg.Confidence, 1e-9)
}

func TestScoreSegment_DangerZonePenalty(t *testing.T) {
	repo := scoring.NewInMemoryRepository()
	repo.AddDangerZone(scoring.DangerZone{
		ID:                 "zone-1",
		Polygon:            squareAround(origin, 0.02),
		SeverityMultiplier: 1.0,
		Description:        "Poorly lit underpass",
	})
	scorer := newTestScorer(repo)

	seg := segmentAt(origin)
	scorer.ScoreSegment(context.Background(), seg, scoring.UserDemographics{})

	// Penalty applies to safety and overall only.
	assert.InDelta(t, 1.5, seg.SafetyScore, 1e-9)
	assert.InDelta(t, 1.5, seg.OverallScore, 1e-9)
	assert.InDelta(t, 3.5, seg.ComfortScore, 1e-9)

	assert.Contains(t, seg.RiskFactors, "Danger zone: Poorly lit underpass (severity x1.0)")
	assert.Contains(t, seg.RiskFactors, "Passes through 1 flagged danger zone")
	assert.Contains(t, seg.RiskFactors, "Low reported safety in this area")
	assert.Len(t, seg.DangerZones, 1)
}

func TestScoreSegment_NeighborhoodStatistics(t *testing.T) {
	repo := scoring.NewInMemoryRepository()
	repo.SetStats(origin, 1000, scoring.NeighborhoodStats{
		CrimeRatePer1000:   60, // -1.0
		HateCrimeIncidents: 8,  // -0.5
		DiversityIndex:     0.2,
	})
	scorer := newTestScorer(repo)

	seg := segmentAt(origin)
	scorer.ScoreSegment(context.Background(), seg, scoring.UserDemographics{RaceEthnicity: []string{"white"}})

	assert.Equal(t, scoring.ScenarioColdStart, seg.Scenario)
	assert.InDelta(t, 3.0, seg.SafetyScore, 1e-9)
	assert.InDelta(t, 0.20, seg.Confidence, 1e-9)
}

func TestScoreSegment_DemographicAdjustment(t *testing.T) {
	repo := scoring.NewInMemoryRepository()
	repo.SetStats(origin, 1000, scoring.NeighborhoodStats{
		CrimeRatePer1000:   60,
		HateCrimeIncidents: 8,
		DiversityIndex:     0.2,
	})
	scorer := newTestScorer(repo)

	// Same area as above scores lower for a racial minority: low diversity
	// (-1.0) and elevated hate crime (-0.5) on top of the banded penalties.
	seg := segmentAt(origin)
	scorer.ScoreSegment(context.Background(), seg, scoring.UserDemographics{RaceEthnicity: []string{"black"}})

	assert.InDelta(t, 1.5, seg.SafetyScore, 1e-9)
}

func TestScoreSegment_ScoresStayInBounds(t *testing.T) {
	repo := scoring.NewInMemoryRepository()
	repo.SetStats(origin, 1000, scoring.NeighborhoodStats{
		CrimeRatePer1000:   200,
		ViolentCrimeRate:   50,
		HateCrimeIncidents: 50,
	})
	repo.AddDangerZone(scoring.DangerZone{
		ID:                 "zone-1",
		Polygon:            squareAround(origin, 0.02),
		SeverityMultiplier: 3.0,
		Description:        "High-crime corridor",
	})
	scorer := newTestScorer(repo)

	seg := segmentAt(origin)
	scorer.ScoreSegment(context.Background(), seg, scoring.UserDemographics{RaceEthnicity: []string{"black"}})

	assert.GreaterOrEqual(t, seg.SafetyScore, scoring.MinScore)
	assert.GreaterOrEqual(t, seg.OverallScore, scoring.MinScore)
	assert.LessOrEqual(t, seg.SafetyScore, scoring.MaxScore)
	assert.LessOrEqual(t, seg.OverallScore, scoring.MaxScore)
	assert.LessOrEqual(t, seg.Confidence, 1.0)
}

func TestClassifyScenario(t *testing.T) {
	woman := scoring.UserDemographics{Gender: "woman"}

	matchRec := scoring.SafetyScoreRecord{DemographicType: scoring.DemographicGender, DemographicValue: "woman"}
	overallRec := scoring.SafetyScoreRecord{DemographicType: scoring.DemographicOverall}

	assert.Equal(t, scoring.ScenarioColdStart, scoring.ClassifyScenario(nil, woman))
	assert.Equal(t, scoring.ScenarioColdStart, scoring.ClassifyScenario(
		[]scoring.NearbyLocation{reviewedLocation("loc-1", origin)}, woman))
	assert.Equal(t, scoring.ScenarioMLOnly, scoring.ClassifyScenario(
		[]scoring.NearbyLocation{reviewedLocation("loc-1", origin, overallRec)}, woman))
	// A demographic match wins even when peer data also exists.
	assert.Equal(t, scoring.ScenarioWithReviews, scoring.ClassifyScenario(
		[]scoring.NearbyLocation{reviewedLocation("loc-1", origin, overallRec, matchRec)}, woman))
}

func TestScenarioWeightsSumToOne(t *testing.T) {
	for _, scenario := range []scoring.Scenario{
		scoring.ScenarioWithReviews,
		scoring.ScenarioMLOnly,
		scoring.ScenarioColdStart,
	} {
		w := scenario.Weights()
		assert.InDelta(t, 1.0, w.Reviews+w.MLPrediction+w.Statistics, 1e-9, "scenario %s", scenario)
	}
}
