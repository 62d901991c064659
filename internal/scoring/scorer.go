package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/geo"
)

// Scoring constants.
const (
	// SegmentRadiusMeters is the lookup radius around a segment center.
	SegmentRadiusMeters = 500.0

	// NearbyLocationLimit caps the number of locations fetched per point.
	NearbyLocationLimit = 20

	// DangerZonePenalty is multiplied by a zone's severity and subtracted
	// from the safety and overall scores of intersecting segments.
	DangerZonePenalty = 2.0

	// baseConfidence is the floor confidence before any data volume bonus.
	baseConfidence = 0.15

	// ML blend weights for peer location records.
	mlWeightDemographicMatch = 2.0
	mlWeightPlaceTypeOverall = 1.0

	// lowSafetyThreshold flags segments with a concerning safety score.
	lowSafetyThreshold = 3.0

	// lowConfidenceThreshold flags segments scored on thin data.
	lowConfidenceThreshold = 0.4
)

// ScorerConfig holds configuration for the segment scorer.
type ScorerConfig struct {
	// StorageTimeout bounds each storage call. A timed-out call degrades the
	// point to COLD_START rather than failing the request. Default: 3s.
	StorageTimeout time.Duration
}

// Scorer scores individual points and route segments.
type Scorer struct {
	repo   GeoRepository
	config ScorerConfig
	logger zerolog.Logger
}

// NewScorer creates a new segment scorer.
func NewScorer(repo GeoRepository, cfg ScorerConfig, logger zerolog.Logger) *Scorer {
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 3 * time.Second
	}
	return &Scorer{repo: repo, config: cfg, logger: logger}
}

// pointScore is the full scoring outcome for one point, shared by segment
// scoring and single-point prediction.
type pointScore struct {
	scenario Scenario

	reviewSafety  float64
	reviewComfort float64
	reviewOverall float64
	matchCount    int

	mlScore   float64
	peerCount int

	statsScore       float64
	demographicDelta float64
	statsPresent     bool

	safety     float64
	comfort    float64
	overall    float64
	confidence float64

	riskFactors []string
	locations   []NearbyLocation
	zones       []DangerZone
}

// ScoreSegment populates the scoring fields of a segment in place. It never
// returns an error: data gaps and storage failures degrade the segment to
// COLD_START with low confidence.
func (s *Scorer) ScoreSegment(ctx context.Context, seg *RouteSegment, demo UserDemographics) {
	ps := s.scorePoint(ctx, seg.Center, SegmentRadiusMeters, "", demo)

	seg.Scenario = ps.scenario
	seg.SafetyScore = ps.safety
	seg.ComfortScore = ps.comfort
	seg.OverallScore = ps.overall
	seg.Confidence = ps.confidence
	seg.RiskFactors = ps.riskFactors
	seg.NearbyLocations = ps.locations
	seg.DangerZones = ps.zones
}

// scorePoint fetches nearby data and blends it into scores for one point.
// placeType narrows the ML peer set when non-empty (point prediction only).
func (s *Scorer) scorePoint(ctx context.Context, point geo.Coordinate, radiusMeters float64, placeType string, demo UserDemographics) pointScore {
	fetchCtx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	locations, err := s.repo.NearbyLocations(fetchCtx, point, radiusMeters, NearbyLocationLimit)
	if err != nil {
		s.logger.Warn().Err(err).
			Float64("lat", point.Lat).
			Float64("lon", point.Lon).
			Msg("nearby location lookup failed, degrading to cold start")
		locations = nil
	}

	zones, err := s.repo.DangerZones(fetchCtx, point, radiusMeters)
	if err != nil {
		s.logger.Warn().Err(err).Msg("danger zone lookup failed")
		zones = nil
	}

	stats, err := s.repo.NeighborhoodStats(fetchCtx, point)
	if err != nil {
		s.logger.Warn().Err(err).Msg("neighborhood stats lookup failed")
		stats = nil
	}

	ps := pointScore{
		scenario:  ClassifyScenario(locations, demo),
		locations: locations,
		zones:     zones,
	}

	ps.reviewSafety, ps.reviewComfort, ps.reviewOverall, ps.matchCount = reviewScores(locations, demo)
	ps.mlScore, ps.peerCount = mlPredictionScore(locations, demo, placeType)
	ps.statsScore = statisticsScore(stats)
	ps.demographicDelta = demographicAdjustment(stats, demo)
	ps.statsPresent = stats != nil

	s.blend(&ps)
	s.applyDangerZones(&ps)
	ps.confidence = s.confidence(ps)
	s.appendRiskFlags(&ps)

	return ps
}

// blend combines the per-source sub-scores using the scenario weight triple.
// A source with no data contributes the neutral baseline so the triple still
// sums to one.
func (s *Scorer) blend(ps *pointScore) {
	w := ps.scenario.Weights()

	reviewSafety, reviewComfort, reviewOverall := ps.reviewSafety, ps.reviewComfort, ps.reviewOverall
	if ps.matchCount == 0 {
		reviewSafety, reviewComfort, reviewOverall = NeutralScore, NeutralScore, NeutralScore
	}
	ml := ps.mlScore
	if ps.peerCount == 0 {
		ml = NeutralScore
	}
	stats := clampScore(ps.statsScore + ps.demographicDelta)

	ps.safety = clampScore(w.Reviews*reviewSafety + w.MLPrediction*ml + w.Statistics*stats)
	ps.comfort = clampScore(w.Reviews*reviewComfort + w.MLPrediction*ml + w.Statistics*stats)
	ps.overall = clampScore(w.Reviews*reviewOverall + w.MLPrediction*ml + w.Statistics*stats)
}

// applyDangerZones subtracts the zone penalty from safety and overall for
// every intersecting zone, floored at MinScore, and records risk factors.
func (s *Scorer) applyDangerZones(ps *pointScore) {
	if len(ps.zones) == 0 {
		return
	}

	for _, zone := range ps.zones {
		penalty := DangerZonePenalty * zone.SeverityMultiplier
		ps.safety = clampScore(ps.safety - penalty)
		ps.overall = clampScore(ps.overall - penalty)
		ps.riskFactors = append(ps.riskFactors,
			fmt.Sprintf("Danger zone: %s (severity x%.1f)", zone.Description, zone.SeverityMultiplier))
	}

	plural := ""
	if len(ps.zones) != 1 {
		plural = "s"
	}
	ps.riskFactors = append(ps.riskFactors,
		fmt.Sprintf("Passes through %d flagged danger zone%s", len(ps.zones), plural))
}

// confidence computes the data-volume confidence, capped per scenario.
func (s *Scorer) confidence(ps pointScore) float64 {
	conf := baseConfidence
	conf += 0.06 * float64(minInt(ps.matchCount, 5))
	conf += 0.03 * float64(minInt(ps.peerCount, 5))
	if ps.statsPresent {
		conf += 0.05
	}

	if cap := ps.scenario.ConfidenceCap(); conf > cap {
		conf = cap
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func (s *Scorer) appendRiskFlags(ps *pointScore) {
	if ps.safety < lowSafetyThreshold {
		ps.riskFactors = append(ps.riskFactors, "Low reported safety in this area")
	}
	if ps.confidence < lowConfidenceThreshold {
		ps.riskFactors = append(ps.riskFactors, "Limited data available for this area")
	}
}

// reviewScores averages the demographic-matching records across locations.
func reviewScores(locations []NearbyLocation, demo UserDemographics) (safety, comfort, overall float64, count int) {
	var sumSafety, sumComfort, sumOverall float64
	for _, loc := range locations {
		for _, rec := range loc.Scores {
			if !Matches(rec, demo) {
				continue
			}
			sumSafety += rec.AvgSafetyScore
			sumComfort += rec.AvgComfortScore
			sumOverall += rec.AvgOverallScore
			count++
		}
	}
	if count == 0 {
		return 0, 0, 0, 0
	}
	n := float64(count)
	return sumSafety / n, sumComfort / n, sumOverall / n, count
}

// mlPredictionScore computes the place-type peer score: a weighted mean over
// peer locations giving extra weight to demographic-matching records and
// base weight to overall records. When placeType is non-empty, overall
// records only count for locations of that place type.
func mlPredictionScore(locations []NearbyLocation, demo UserDemographics, placeType string) (score float64, peers int) {
	var weightedSum, totalWeight float64
	for _, loc := range locations {
		contributed := false
		for _, rec := range loc.Scores {
			switch {
			case Matches(rec, demo):
				weightedSum += rec.AvgOverallScore * mlWeightDemographicMatch
				totalWeight += mlWeightDemographicMatch
				contributed = true
			case rec.DemographicType == DemographicOverall:
				if placeType != "" && loc.PlaceType != placeType {
					continue
				}
				weightedSum += rec.AvgOverallScore * mlWeightPlaceTypeOverall
				totalWeight += mlWeightPlaceTypeOverall
				contributed = true
			}
		}
		if contributed {
			peers++
		}
	}
	if totalWeight == 0 {
		return 0, 0
	}
	return weightedSum / totalWeight, peers
}

// statisticsScore maps neighborhood statistics to a score with fixed banded
// penalties. Absent stats yield the neutral baseline.
func statisticsScore(stats *NeighborhoodStats) float64 {
	if stats == nil {
		return NeutralScore
	}

	score := 4.5

	switch {
	case stats.CrimeRatePer1000 > 100:
		score -= 1.5
	case stats.CrimeRatePer1000 > 50:
		score -= 1.0
	case stats.CrimeRatePer1000 > 25:
		score -= 0.5
	}

	switch {
	case stats.ViolentCrimeRate > 20:
		score -= 1.5
	case stats.ViolentCrimeRate > 10:
		score -= 1.0
	case stats.ViolentCrimeRate > 5:
		score -= 0.5
	}

	switch {
	case stats.HateCrimeIncidents > 20:
		score -= 1.5
	case stats.HateCrimeIncidents > 10:
		score -= 1.0
	case stats.HateCrimeIncidents > 5:
		score -= 0.5
	}

	if stats.DiversityIndex > 0.6 {
		score += 0.3
	}

	return clampScore(score)
}

// demographicAdjustment returns a delta applied to the statistics score for
// users identified as a racial or ethnic minority. Zero when statistics are
// absent or the adjustment does not apply.
func demographicAdjustment(stats *NeighborhoodStats, demo UserDemographics) float64 {
	if stats == nil || !demo.IsRacialMinority() {
		return 0
	}

	var delta float64
	switch {
	case stats.DiversityIndex < 0.3:
		delta -= 1.0
	case stats.DiversityIndex < 0.5:
		delta -= 0.5
	case stats.DiversityIndex > 0.7:
		delta += 0.5
	}

	switch {
	case stats.HateCrimeIncidents > 10:
		delta -= 1.0
	case stats.HateCrimeIncidents > 5:
		delta -= 0.5
	}

	return delta
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
