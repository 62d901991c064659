package scoring_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/scoring"
)

func newTestPredictor(repo *scoring.InMemoryRepository) *scoring.Predictor {
	return scoring.NewPredictor(newTestScorer(repo), repo, zerolog.Nop())
}

func TestPredictPoint_RequiresDemographics(t *testing.T) {
	predictor := newTestPredictor(scoring.NewInMemoryRepository())

	_, err := predictor.PredictPoint(context.Background(), origin, nil, "", 0)
	assert.ErrorIs(t, err, scoring.ErrMissingDemographics)
}

func TestPredictPoint_ColdStart(t *testing.T) {
	predictor := newTestPredictor(scoring.NewInMemoryRepository())

	prediction, err := predictor.PredictPoint(context.Background(), origin, &scoring.UserDemographics{Gender: "woman"}, "", 0)
	require.NoError(t, err)

	assert.Equal(t, scoring.ScenarioColdStart, prediction.Scenario)
	assert.InDelta(t, scoring.NeutralScore, prediction.PredictedScore, 1e-9)
	assert.InDelta(t, 0.15, prediction.Confidence, 1e-9)
	assert.Equal(t, scoring.PredictionBasis{}, prediction.BasedOn)
}

func TestPredictPoint_BreakdownWithReviews(t *testing.T) {
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
	predictor := newTestPredictor(repo)

	prediction, err := predictor.PredictPoint(context.Background(), origin, &scoring.UserDemographics{Gender: "woman"}, "", 0)
	require.NoError(t, err)

	assert.Equal(t, scoring.ScenarioWithReviews, prediction.Scenario)

	ml := (2.2*2 + 3.0) / 3
	assert.InDelta(t, 0.60*2.0+0.25*ml+0.15*3.5, prediction.PredictedScore, 1e-9)
	assert.InDelta(t, 2.0, prediction.Breakdown.ReviewScore, 1e-9)
	assert.InDelta(t, ml, prediction.Breakdown.MLScore, 1e-9)
	assert.InDelta(t, 3.5, prediction.Breakdown.StatisticsScore, 1e-9)
	assert.InDelta(t, 0.0, prediction.Breakdown.DemographicDelta, 1e-9)

	assert.True(t, prediction.BasedOn.Reviews)
	assert.True(t, prediction.BasedOn.PlaceTypePeers)
	assert.False(t, prediction.BasedOn.NeighborhoodStats)
	assert.False(t, prediction.BasedOn.VoteValidation)
}

func TestPredictPoint_PlaceTypeNarrowsPeers(t *testing.T) {
	repo := scoring.NewInMemoryRepository()
	cafe := reviewedLocation("loc-1", origin,
		scoring.SafetyScoreRecord{DemographicType: scoring.DemographicOverall, AvgOverallScore: 4.0, ReviewCount: 9})
	bar := reviewedLocation("loc-2", origin,
		scoring.SafetyScoreRecord{DemographicType: scoring.DemographicOverall, AvgOverallScore: 2.0, ReviewCount: 5})
	bar.PlaceType = "bar"
	repo.AddLocation(cafe)
	repo.AddLocation(bar)
	predictor := newTestPredictor(repo)

	// Only the cafe's overall record counts as a peer for place type "cafe".
	prediction, err := predictor.PredictPoint(context.Background(), origin, &scoring.UserDemographics{Gender: "man"}, "cafe", 0)
	require.NoError(t, err)

	assert.Equal(t, scoring.ScenarioMLOnly, prediction.Scenario)
	assert.InDelta(t, 0.60*4.0+0.40*3.5, prediction.PredictedScore, 1e-9)
}

func TestPredictPoint_VoteValidation(t *testing.T) {
	repo := scoring.NewInMemoryRepository()
	repo.SetVotes(origin, scoring.VoteTally{Accurate: 2, Total: 4})
	predictor := newTestPredictor(repo)

	prediction, err := predictor.PredictPoint(context.Background(), origin, &scoring.UserDemographics{}, "", 0)
	require.NoError(t, err)

	// Base cold-start confidence 0.15 scaled by the 50% accuracy rate.
	assert.InDelta(t, 0.075, prediction.Confidence, 1e-9)
	assert.True(t, prediction.BasedOn.VoteValidation)
}

func TestPredictPoint_VoteValidationNeedsMinimumVotes(t *testing.T) {
	repo := scoring.NewInMemoryRepository()
	repo.SetVotes(origin, scoring.VoteTally{Accurate: 0, Total: 2})
	predictor := newTestPredictor(repo)

	prediction, err := predictor.PredictPoint(context.Background(), origin, &scoring.UserDemographics{}, "", 0)
	require.NoError(t, err)

	assert.InDelta(t, 0.15, prediction.Confidence, 1e-9)
	assert.False(t, prediction.BasedOn.VoteValidation)
}

func TestPredictPoint_NilVoteRepositoryDisablesValidation(t *testing.T) {
	repo := scoring.NewInMemoryRepository()
	predictor := scoring.NewPredictor(newTestScorer(repo), nil, zerolog.Nop())

	prediction, err := predictor.PredictPoint(context.Background(), origin, &scoring.UserDemographics{}, "", 0)
	require.NoError(t, err)

	assert.InDelta(t, 0.15, prediction.Confidence, 1e-9)
	assert.False(t, prediction.BasedOn.VoteValidation)
}
