package models

import (
	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/scoring"
)

// ScoreRouteRequest is the request body for POST /v1/routes:score.
type ScoreRouteRequest struct {
	Route        []Point                   `json:"route" validate:"required,min=2"`
	Demographics *scoring.UserDemographics `json:"demographics" validate:"required"`
}

// PredictPointRequest is the request body for POST /v1/points:predict.
type PredictPointRequest struct {
	Point        Point                     `json:"point" validate:"required"`
	PlaceType    string                    `json:"placeType,omitempty"`
	RadiusMeters float64                   `json:"radiusMeters,omitempty" validate:"gte=0,lte=5000"`
	Demographics *scoring.UserDemographics `json:"demographics" validate:"required"`
}

// SegmentScore is the per-segment part of a route scoring response.
type SegmentScore struct {
	Start           Point    `json:"start"`
	End             Point    `json:"end"`
	DistanceMeters  float64  `json:"distanceMeters"`
	Scenario        string   `json:"scenario"`
	SafetyScore     float64  `json:"safetyScore"`
	ComfortScore    float64  `json:"comfortScore"`
	OverallScore    float64  `json:"overallScore"`
	Confidence      float64  `json:"confidence"`
	RiskFactors     []string `json:"riskFactors,omitempty"`
	NearbyLocations int      `json:"nearbyLocations"`
	DangerZones     int      `json:"dangerZones"`
}

// DangerZoneSummary describes one danger zone a route intersects.
type DangerZoneSummary struct {
	ID                 string  `json:"id"`
	Description        string  `json:"description"`
	SeverityMultiplier float64 `json:"severityMultiplier"`
}

// RouteSafetyResponse is the response body for POST /v1/routes:score.
type RouteSafetyResponse struct {
	OverallSafety    float64              `json:"overallSafety"`
	OverallComfort   float64              `json:"overallComfort"`
	OverallScore     float64              `json:"overallScore"`
	Confidence       float64              `json:"confidence"`
	Segments         []SegmentScore       `json:"segments"`
	DangerZones      []DangerZoneSummary  `json:"dangerZones,omitempty"`
	HighRiskSegments []SegmentScore       `json:"highRiskSegments,omitempty"`
	Suggestions      []string             `json:"suggestions"`
	Summary          scoring.RouteSummary `json:"summary"`
}

// NewRouteSafetyResponse maps a scoring result onto the wire shape.
func NewRouteSafetyResponse(result *scoring.RouteSafetyResult) RouteSafetyResponse {
	resp := RouteSafetyResponse{
		OverallSafety:  result.OverallSafety,
		OverallComfort: result.OverallComfort,
		OverallScore:   result.OverallScore,
		Confidence:     result.Confidence,
		Segments:       make([]SegmentScore, 0, len(result.Segments)),
		Suggestions:    result.Suggestions,
		Summary:        result.Summary,
	}
	for _, seg := range result.Segments {
		resp.Segments = append(resp.Segments, newSegmentScore(seg))
	}
	for _, seg := range result.HighRiskSegments {
		resp.HighRiskSegments = append(resp.HighRiskSegments, newSegmentScore(seg))
	}
	for _, zone := range result.DangerZonesIntersected {
		resp.DangerZones = append(resp.DangerZones, DangerZoneSummary{
			ID:                 zone.ID,
			Description:        zone.Description,
			SeverityMultiplier: zone.SeverityMultiplier,
		})
	}
	return resp
}

func newSegmentScore(seg scoring.RouteSegment) SegmentScore {
	return SegmentScore{
		Start:           Point{Lat: seg.Start.Lat, Lon: seg.Start.Lon},
		End:             Point{Lat: seg.End.Lat, Lon: seg.End.Lon},
		DistanceMeters:  seg.DistanceMeters,
		Scenario:        string(seg.Scenario),
		SafetyScore:     seg.SafetyScore,
		ComfortScore:    seg.ComfortScore,
		OverallScore:    seg.OverallScore,
		Confidence:      seg.Confidence,
		RiskFactors:     seg.RiskFactors,
		NearbyLocations: len(seg.NearbyLocations),
		DangerZones:     len(seg.DangerZones),
	}
}

// Coordinates converts request points to the geo representation.
func Coordinates(points []Point) []geo.Coordinate {
	coords := make([]geo.Coordinate, 0, len(points))
	for _, p := range points {
		coords = append(coords, geo.Coordinate{Lat: p.Lat, Lon: p.Lon})
	}
	return coords
}
