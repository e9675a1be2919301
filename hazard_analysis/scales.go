package hazard_analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type ScalePoint struct {
	Label string
	Value float64
}

type Scale struct {
	Name   string
	Points []ScalePoint
}

var ProbabilityScale = Scale{Name: "Probability", Points: []ScalePoint{
	{"May well be expected", 10},
	{"Quite possible", 7},
	{"Unusual but possible", 3},
	{"Only remotely possible", 2},
	{"Conceivable but unlikely", 1},
	{"Practically impossible", 0.5},
	{"Virtually impossible", 0.1},
}}

var ExposureScale = Scale{Name: "Exposure", Points: []ScalePoint{
	{"Continuous", 10},
	{"Frequent (daily)", 5},
	{"Seldom (weekly)", 3},
	{"Unusual (monthly)", 2.5},
	{"Occasional (yearly)", 2},
	{"Once in 5 years", 1.5},
	{"Once in 10 years", 0.5},
	{"Once in 100 years", 0.02},
}}

var ConsequenceScale = Scale{Name: "Consequences", Points: []ScalePoint{
	{"Several dead", 5},
	{"One dead", 1},
	{"Significant chance of fatality", 0.3},
	{"One permanent disability or less chance of fatality", 0.1},
	{"Many lost time injuries", 0.01},
	{"One lost time injury", 0.001},
	{"Small injury", 0.0001},
}}

// Contains reports whether v is one of the scale's values.
func (s Scale) Contains(v float64) bool {
	for _, p := range s.Points {
		if math.Abs(p.Value-v) < 1e-9 {
			return true
		}
	}
	return false
}

func (s Scale) String() string {
	parts := make([]string, len(s.Points))
	for i, p := range s.Points {
		parts[i] = fmt.Sprintf("%s = %s", p.Label, strconv.FormatFloat(p.Value, 'f', -1, 64))
	}
	return s.Name + ": " + strings.Join(parts, "; ")
}

// FormatScales renders the three scales for the hazard analysis prompt.
func FormatScales() string {
	return "  - " + ProbabilityScale.String() + "\n  - " + ExposureScale.String() + "\n  - " + ConsequenceScale.String()
}

type Rating string

const (
	RatingLow    Rating = "Low"
	RatingMedium Rating = "Medium"
	RatingHigh   Rating = "High"
)

const (
	highRiskThreshold   = 100
	mediumRiskThreshold = 20
)

// RiskScore is probability * exposure * consequences, rounded to remove
// floating point noise from the small consequence values.
func RiskScore(probability, exposure, consequences float64) float64 {
	return math.Round(probability*exposure*consequences*1e6) / 1e6
}

func RiskRating(score float64) Rating {
	switch {
	case score >= highRiskThreshold:
		return RatingHigh
	case score >= mediumRiskThreshold:
		return RatingMedium
	}
	return RatingLow
}
