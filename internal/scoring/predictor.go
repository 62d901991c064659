package scoring

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/geo"
)

// minVotesForValidation is the minimum number of accuracy votes before the
// empirical accuracy rate adjusts a prediction's confidence.
const minVotesForValidation = 3

// PredictionBreakdown surfaces the per-source sub-scores behind a point
// prediction, intended for direct display.
type PredictionBreakdown struct {
	ReviewScore      float64 `json:"reviewScore"`
	MLScore          float64 `json:"mlScore"`
	StatisticsScore  float64 `json:"statisticsScore"`
	DemographicDelta float64 `json:"demographicDelta"`
}

// PredictionBasis flags which data sources contributed to a prediction.
type PredictionBasis struct {
	Reviews           bool `json:"reviews"`
	PlaceTypePeers    bool `json:"placeTypePeers"`
	NeighborhoodStats bool `json:"neighborhoodStats"`
	DangerZones       bool `json:"dangerZones"`
	VoteValidation    bool `json:"voteValidation"`
}

// PointPrediction is the result of predicting safety at a single coordinate.
type PointPrediction struct {
	PredictedScore float64             `json:"predictedScore"`
	Confidence     float64             `json:"confidence"`
	Scenario       Scenario            `json:"scenario"`
	RiskFactors    []string            `json:"riskFactors,omitempty"`
	Breakdown      PredictionBreakdown `json:"breakdown"`
	BasedOn        PredictionBasis     `json:"basedOn"`
}

// Predictor predicts safety at single unreviewed points. It shares the
// scoring scenario logic with segment scoring and adds a vote-validation
// confidence post-step.
type Predictor struct {
	scorer *Scorer
	votes  VoteRepository
	logger zerolog.Logger
}

// NewPredictor creates a new point predictor. The vote repository may be nil,
// which disables vote validation.
func NewPredictor(scorer *Scorer, votes VoteRepository, logger zerolog.Logger) *Predictor {
	return &Predictor{scorer: scorer, votes: votes, logger: logger}
}

// PredictPoint predicts the safety score at a coordinate for a user.
// placeType narrows the peer set when known; radiusMeters falls back to the
// segment radius when zero or negative.
func (p *Predictor) PredictPoint(ctx context.Context, point geo.Coordinate, demo *UserDemographics, placeType string, radiusMeters float64) (*PointPrediction, error) {
	if demo == nil {
		return nil, ErrMissingDemographics
	}
	if radiusMeters <= 0 {
		radiusMeters = SegmentRadiusMeters
	}

	ps := p.scorer.scorePoint(ctx, point, radiusMeters, placeType, *demo)

	prediction := &PointPrediction{
		// Point prediction surfaces the safety blend rather than the overall
		// blend; review sub-scores already use avgSafetyScore here.
		PredictedScore: ps.safety,
		Confidence:     ps.confidence,
		Scenario:       ps.scenario,
		RiskFactors:    ps.riskFactors,
		Breakdown: PredictionBreakdown{
			ReviewScore:      ps.reviewSafety,
			MLScore:          ps.mlScore,
			StatisticsScore:  ps.statsScore,
			DemographicDelta: ps.demographicDelta,
		},
		BasedOn: PredictionBasis{
			Reviews:           ps.matchCount > 0,
			PlaceTypePeers:    ps.peerCount > 0,
			NeighborhoodStats: ps.statsPresent,
			DangerZones:       len(ps.zones) > 0,
		},
	}

	p.applyVoteValidation(ctx, point, prediction)
	return prediction, nil
}

// applyVoteValidation multiplies confidence by the empirical accuracy rate
// when enough users have voted on predictions at this point. This is an
// optional post-step; a vote lookup failure leaves the base confidence
// untouched.
func (p *Predictor) applyVoteValidation(ctx context.Context, point geo.Coordinate, prediction *PointPrediction) {
	if p.votes == nil {
		return
	}

	tally, err := p.votes.PredictionVotes(ctx, point)
	if err != nil {
		p.logger.Warn().Err(err).Msg("prediction vote lookup failed")
		return
	}
	if tally.Total < minVotesForValidation {
		return
	}

	accuracy := float64(tally.Accurate) / float64(tally.Total)
	prediction.Confidence *= accuracy
	prediction.BasedOn.VoteValidation = true
}
