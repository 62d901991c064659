// Package scoring computes demographic-aware safety scores for travel routes
// and single points.
package scoring

import (
	"errors"

	"github.com/saferoute/saferoute/internal/geo"
)

// Scoring errors.
var (
	ErrInvalidRoute        = errors.New("route must contain at least two distinct coordinates")
	ErrEmptyRoute          = errors.New("route produced no segments")
	ErrMissingDemographics = errors.New("user demographics are required")
)

// Score bounds. Every safety, comfort and overall score lies in this range.
const (
	MinScore = 1.0
	MaxScore = 5.0

	// NeutralScore is the baseline used when a data source is absent.
	NeutralScore = 3.5
)

// DemographicType identifies which demographic axis a score record aggregates.
type DemographicType string

const (
	DemographicRaceEthnicity DemographicType = "race_ethnicity"
	DemographicGender        DemographicType = "gender"
	DemographicLGBTQ         DemographicType = "lgbtq"
	DemographicReligion      DemographicType = "religion"
	DemographicDisability    DemographicType = "disability"
	DemographicOverall       DemographicType = "overall"
)

// SafetyScoreRecord is a stored per-demographic aggregate for one location.
// A location holds at most one record per (type, value) pair plus exactly one
// overall record once any review exists.
type SafetyScoreRecord struct {
	DemographicType  DemographicType
	DemographicValue string
	AvgSafetyScore   float64
	AvgComfortScore  float64
	AvgOverallScore  float64
	ReviewCount      int
}

// NearbyLocation is a reviewed place near a query point, with its
// per-demographic score aggregates.
type NearbyLocation struct {
	ID        string
	Name      string
	PlaceType string
	Location  geo.Coordinate
	Scores    []SafetyScoreRecord
}

// DangerZone is a polygon flagged as elevated-risk. Intersecting segments
// receive a multiplicative penalty.
type DangerZone struct {
	ID                 string
	Polygon            []geo.Coordinate
	SeverityMultiplier float64
	Description        string
}

// NeighborhoodStats holds area-level statistics looked up by point. All
// fields are optional at the storage layer; a missing row degrades scoring
// to the neutral baseline.
type NeighborhoodStats struct {
	CrimeRatePer1000   float64
	ViolentCrimeRate   float64
	HateCrimeIncidents int
	DiversityIndex     float64
	PctMinority        float64
}

// RouteSegment is a bounded-length piece of a route polyline, the unit of
// safety scoring. Created by SegmentRoute, populated once by the scorer and
// never mutated afterwards.
type RouteSegment struct {
	Start          geo.Coordinate
	End            geo.Coordinate
	Center         geo.Coordinate
	DistanceMeters float64

	// Populated by scoring.
	Scenario        Scenario
	SafetyScore     float64
	ComfortScore    float64
	OverallScore    float64
	Confidence      float64
	RiskFactors     []string
	NearbyLocations []NearbyLocation
	DangerZones     []DangerZone
}

// RouteSummary buckets segments by overall score.
type RouteSummary struct {
	SafeCount       int `json:"safeCount"`
	MixedCount      int `json:"mixedCount"`
	UnsafeCount     int `json:"unsafeCount"`
	DangerZoneCount int `json:"dangerZoneCount"`
}

// RouteSafetyResult is the aggregate scoring result for a whole route.
// Produced once per request and returned to the caller; never persisted.
type RouteSafetyResult struct {
	OverallSafety          float64        `json:"overallSafety"`
	OverallComfort         float64        `json:"overallComfort"`
	OverallScore           float64        `json:"overallScore"`
	Confidence             float64        `json:"confidence"`
	Segments               []RouteSegment `json:"-"`
	DangerZonesIntersected []DangerZone   `json:"-"`
	HighRiskSegments       []RouteSegment `json:"-"`
	Suggestions            []string       `json:"suggestions"`
	Summary                RouteSummary   `json:"summary"`
}

// clampScore bounds a score to [MinScore, MaxScore].
func clampScore(s float64) float64 {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}
