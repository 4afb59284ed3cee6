package models

// InsightStatus grades a campus insight.
type InsightStatus string

const (
	InsightNormal   InsightStatus = "Normal"
	InsightWarning  InsightStatus = "Warning"
	InsightCritical InsightStatus = "Critical"
)

// InsightAudience is the reader group an insight is written for.
type InsightAudience string

const (
	AudienceAdmin   InsightAudience = "Admin"
	AudienceStaff   InsightAudience = "Staff"
	AudienceStudent InsightAudience = "Student"
)

// AudienceFor maps a role onto its insight audience. Employees and security
// staff read the Staff insights.
func AudienceFor(role UserRole) InsightAudience {
	switch role {
	case RoleAdmin:
		return AudienceAdmin
	case RoleStudent:
		return AudienceStudent
	default:
		return AudienceStaff
	}
}

// Insight is one headline on the campus sustainability board.
type Insight struct {
	Headline        string            `json:"headline"`
	Resource        string            `json:"resource"`
	Status          InsightStatus     `json:"status"`
	Insight         string            `json:"insight"`
	Impact          string            `json:"impact"`
	SuggestedAction string            `json:"suggested_action"`
	Audience        []InsightAudience `json:"audience"`
}

// VisibleTo reports whether the audience may read the insight.
func (i Insight) VisibleTo(audience InsightAudience) bool {
	for _, a := range i.Audience {
		if a == audience {
			return true
		}
	}
	return false
}

// ResourceTrend lists the hostels whose latest reading of one resource runs
// above their weekly average.
type ResourceTrend struct {
	Critical []string `json:"critical"`
	Warning  []string `json:"warning"`
}

// Status is the worst grade present in the trend.
func (t ResourceTrend) Status() InsightStatus {
	switch {
	case len(t.Critical) > 0:
		return InsightCritical
	case len(t.Warning) > 0:
		return InsightWarning
	default:
		return InsightNormal
	}
}

// UsageTrends is the weekly comparison across hostels.
type UsageTrends struct {
	Water            ResourceTrend `json:"water"`
	FoodWaste        ResourceTrend `json:"food_waste"`
	Electricity      ResourceTrend `json:"electricity"`
	WaterLatestTotal float64       `json:"water_latest_total"`
	WaterAverageSum  float64       `json:"water_average_sum"`
}
