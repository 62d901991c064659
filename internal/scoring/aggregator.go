package scoring

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/geo"
)

// Aggregation thresholds.
const (
	safeScoreThreshold     = 4.0
	unsafeScoreThreshold   = 3.0
	lowRouteConfidence     = 0.6
	unsafeFractionHigh     = 0.30
	unsafeFractionModerate = 0.10
)

// ServiceConfig holds configuration for the route scoring service.
type ServiceConfig struct {
	// Concurrency bounds parallel segment scoring. Size it to the storage
	// connection limit. Default: 8.
	Concurrency int
}

// Service scores whole routes by fanning segment scoring out over a bounded
// worker pool and reducing the results.
type Service struct {
	scorer      *Scorer
	concurrency int
	logger      zerolog.Logger
}

// NewService creates a new route scoring service.
func NewService(scorer *Scorer, cfg ServiceConfig, logger zerolog.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Service{scorer: scorer, concurrency: cfg.Concurrency, logger: logger}
}

// ScoreRoute segments the polyline, scores every segment and reduces the
// results into a route-level safety assessment.
//
// The overall scores are an unweighted arithmetic mean across segments, not
// distance-weighted. A long segment counts the same as a short one; this is
// specified behavior, pinned by tests.
func (s *Service) ScoreRoute(ctx context.Context, coords []geo.Coordinate, demo *UserDemographics) (*RouteSafetyResult, error) {
	if demo == nil {
		return nil, ErrMissingDemographics
	}

	segments, err := SegmentRoute(coords)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrEmptyRoute
	}

	s.scoreSegments(ctx, segments, *demo)
	result := s.reduce(segments)

	s.logger.Debug().
		Int("segments", len(segments)).
		Int("high_risk", len(result.HighRiskSegments)).
		Float64("overall_score", result.OverallScore).
		Float64("confidence", result.Confidence).
		Msg("route scored")

	return result, nil
}

// scoreSegments runs the scorer over every segment with bounded parallelism.
// Segments have no data dependency on each other; results are written to the
// segment slice in place, one writer per index.
func (s *Service) scoreSegments(ctx context.Context, segments []RouteSegment, demo UserDemographics) {
	indexes := make(chan int, len(segments))
	for i := range segments {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	workers := minInt(s.concurrency, len(segments))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				s.scorer.ScoreSegment(ctx, &segments[i], demo)
			}
		}()
	}
	wg.Wait()
}

func (s *Service) reduce(segments []RouteSegment) *RouteSafetyResult {
	result := &RouteSafetyResult{Segments: segments}

	var sumSafety, sumComfort, sumOverall, sumConfidence float64
	zonesByID := make(map[string]DangerZone)

	for _, seg := range segments {
		sumSafety += seg.SafetyScore
		sumComfort += seg.ComfortScore
		sumOverall += seg.OverallScore
		sumConfidence += seg.Confidence

		switch {
		case seg.OverallScore >= safeScoreThreshold:
			result.Summary.SafeCount++
		case seg.OverallScore >= unsafeScoreThreshold:
			result.Summary.MixedCount++
		default:
			result.Summary.UnsafeCount++
			result.HighRiskSegments = append(result.HighRiskSegments, seg)
		}

		for _, zone := range seg.DangerZones {
			zonesByID[zone.ID] = zone
		}
	}

	for _, zone := range zonesByID {
		result.DangerZonesIntersected = append(result.DangerZonesIntersected, zone)
	}
	result.Summary.DangerZoneCount = len(result.DangerZonesIntersected)

	n := float64(len(segments))
	result.OverallSafety = sumSafety / n
	result.OverallComfort = sumComfort / n
	result.OverallScore = sumOverall / n
	result.Confidence = sumConfidence / n

	result.Suggestions = s.suggestions(result)
	return result
}

// suggestions generates human-readable route improvement hints from fixed
// rules. When nothing applies, a single "appears safe" message is emitted.
func (s *Service) suggestions(result *RouteSafetyResult) []string {
	var out []string

	if n := len(result.HighRiskSegments); n > 0 {
		plural := ""
		if n != 1 {
			plural = "s"
		}
		out = append(out, fmt.Sprintf("%d segment%s of this route scored below 3.0; consider an alternative path through those areas", n, plural))
	}

	if n := result.Summary.DangerZoneCount; n > 0 {
		plural := ""
		if n != 1 {
			plural = "s"
		}
		out = append(out, fmt.Sprintf("This route crosses %d flagged danger zone%s", n, plural))
	}

	total := len(result.Segments)
	unsafeFraction := float64(result.Summary.UnsafeCount) / float64(total)
	switch {
	case unsafeFraction > unsafeFractionHigh:
		out = append(out, "More than 30% of this route's segments scored unsafe; a different route is strongly recommended")
	case unsafeFraction > unsafeFractionModerate:
		out = append(out, "More than 10% of this route's segments scored unsafe")
	}

	if len(out) == 0 {
		out = append(out, "This route appears safe based on available data")
	}

	if result.Confidence < lowRouteConfidence {
		out = append(out, "Limited data was available for parts of this route; scores may not reflect current conditions")
	}
	return out
}
