package scoring

// UserDemographics describes the demographic profile of a user. Every field
// is optional: an absent field means "unknown" and never matches a specific
// demographic bucket, only the overall one.
type UserDemographics struct {
	RaceEthnicity    []string `json:"raceEthnicity,omitempty"`
	Gender           string   `json:"gender,omitempty"`
	LGBTQStatus      *bool    `json:"lgbtqStatus,omitempty"`
	Religion         string   `json:"religion,omitempty"`
	DisabilityStatus []string `json:"disabilityStatus,omitempty"`
	AgeRange         string   `json:"ageRange,omitempty"`
}

// Matches reports whether a stored score record is relevant to the user's
// demographic profile. Dispatch is exact per axis; unknown user fields fail
// every specific match, which intentionally falls the caller back to
// overall-weighted scoring. Overall records never match here, they are
// handled as a separate always-included weight.
func Matches(record SafetyScoreRecord, demo UserDemographics) bool {
	switch record.DemographicType {
	case DemographicRaceEthnicity:
		return containsString(demo.RaceEthnicity, record.DemographicValue)
	case DemographicGender:
		return demo.Gender != "" && demo.Gender == record.DemographicValue
	case DemographicLGBTQ:
		if demo.LGBTQStatus == nil {
			return false
		}
		if *demo.LGBTQStatus {
			return record.DemographicValue == "yes"
		}
		return record.DemographicValue == "no"
	case DemographicReligion:
		return demo.Religion != "" && demo.Religion == record.DemographicValue
	case DemographicDisability:
		return containsString(demo.DisabilityStatus, record.DemographicValue)
	case DemographicOverall:
		return false
	default:
		return false
	}
}

// Relevant reports whether one party's experience should influence another's,
// used when filtering hazard alerts by reporter/rider demographics. Axes are
// composed with a logical OR, and an axis that is unknown on either side
// cannot rule out relevance.
func Relevant(a, b UserDemographics) bool {
	return raceRelevant(a, b) ||
		genderRelevant(a, b) ||
		lgbtqRelevant(a, b) ||
		religionRelevant(a, b) ||
		disabilityRelevant(a, b)
}

func raceRelevant(a, b UserDemographics) bool {
	if len(a.RaceEthnicity) == 0 || len(b.RaceEthnicity) == 0 {
		return true
	}
	for _, r := range a.RaceEthnicity {
		if containsString(b.RaceEthnicity, r) {
			return true
		}
	}
	return false
}

func genderRelevant(a, b UserDemographics) bool {
	if a.Gender == "" || b.Gender == "" {
		return true
	}
	return a.Gender == b.Gender
}

func lgbtqRelevant(a, b UserDemographics) bool {
	if a.LGBTQStatus == nil || b.LGBTQStatus == nil {
		return true
	}
	return *a.LGBTQStatus == *b.LGBTQStatus
}

func religionRelevant(a, b UserDemographics) bool {
	if a.Religion == "" || b.Religion == "" {
		return true
	}
	return a.Religion == b.Religion
}

func disabilityRelevant(a, b UserDemographics) bool {
	if len(a.DisabilityStatus) == 0 || len(b.DisabilityStatus) == 0 {
		return true
	}
	for _, d := range a.DisabilityStatus {
		if containsString(b.DisabilityStatus, d) {
			return true
		}
	}
	return false
}

// IsRacialMinority reports whether the user identifies as a racial or ethnic
// minority, which enables the diversity-index adjustment.
func (d UserDemographics) IsRacialMinority() bool {
	for _, r := range d.RaceEthnicity {
		if r != "white" {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	if needle == "" {
		return false
	}
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
