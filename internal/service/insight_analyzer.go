package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/campus-ops-api/internal/models"
)

// Trend and occupancy thresholds, as ratios to the weekly average and to the
// seat count respectively.
const (
	trendCriticalRatio = 1.15
	trendWarningRatio  = 1.05

	occupancyCritical = 90.0
	occupancyWarning  = 75.0
)

var (
	everyone     = []models.InsightAudience{models.AudienceAdmin, models.AudienceStaff, models.AudienceStudent}
	staffOnly    = []models.InsightAudience{models.AudienceAdmin, models.AudienceStaff}
	studyReaders = []models.InsightAudience{models.AudienceStudent, models.AudienceAdmin}
)

// TrendStatus grades the latest reading against the average. A zero average
// never grades above Normal.
func TrendStatus(latest, average float64) models.InsightStatus {
	switch {
	case average <= 0:
		return models.InsightNormal
	case latest > average*trendCriticalRatio:
		return models.InsightCritical
	case latest > average*trendWarningRatio:
		return models.InsightWarning
	default:
		return models.InsightNormal
	}
}

// ComputeTrends compares each hostel's latest reading to its average over
// rows. Rows must be grouped by hostel and oldest first within a hostel.
func ComputeTrends(rows []models.ResourceUsage) models.UsageTrends {
	var trends models.UsageTrends
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].HostelID == rows[start].HostelID {
			end++
		}
		group := rows[start:end]
		start = end

		var sum models.UsageReading
		for _, r := range group {
			sum.Water += r.Water
			sum.Electricity += r.Electricity
			sum.FoodWaste += r.FoodWaste
		}
		n := float64(len(group))
		latest := group[len(group)-1]
		name := latest.HostelName
		if name == "" {
			name = latest.HostelID
		}

		trends.WaterLatestTotal += latest.Water
		trends.WaterAverageSum += sum.Water / n
		classify(&trends.Water, name, TrendStatus(latest.Water, sum.Water/n))
		classify(&trends.FoodWaste, name, TrendStatus(latest.FoodWaste, sum.FoodWaste/n))
		classify(&trends.Electricity, name, TrendStatus(latest.Electricity, sum.Electricity/n))
	}
	return trends
}

func classify(trend *models.ResourceTrend, hostel string, status models.InsightStatus) {
	switch status {
	case models.InsightCritical:
		trend.Critical = append(trend.Critical, hostel)
	case models.InsightWarning:
		trend.Warning = append(trend.Warning, hostel)
	}
}

// SustainabilityScore starts at 100 and loses 10 per Warning and 20 per
// Critical resource.
func SustainabilityScore(statuses ...models.InsightStatus) int {
	score := 100
	for _, s := range statuses {
		switch s {
		case models.InsightWarning:
			score -= 10
		case models.InsightCritical:
			score -= 20
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

type trendCopy struct {
	resource         string
	audience         []models.InsightAudience
	normalHeadline   string
	normalInsight    string
	normalAction     string
	normalImpact     string
	warningHeadline  string
	warningInsight   string
	warningAction    string
	criticalHeadline string
	criticalInsight  string
	criticalAction   string
	abnormalImpact   string
}

func (c trendCopy) build(trend models.ResourceTrend) models.Insight {
	in := models.Insight{Resource: c.resource, Status: trend.Status(), Audience: c.audience, Impact: c.abnormalImpact}
	switch in.Status {
	case models.InsightCritical:
		names := strings.Join(trend.Critical, ", ")
		in.Headline = c.criticalHeadline
		in.Insight = fmt.Sprintf(c.criticalInsight, names)
		in.SuggestedAction = fmt.Sprintf(c.criticalAction, names)
	case models.InsightWarning:
		names := strings.Join(trend.Warning, ", ")
		in.Headline = c.warningHeadline
		in.Insight = fmt.Sprintf(c.warningInsight, names)
		in.SuggestedAction = fmt.Sprintf(c.warningAction, names)
	default:
		in.Headline = c.normalHeadline
		in.Insight = c.normalInsight
		in.SuggestedAction = c.normalAction
		in.Impact = c.normalImpact
	}
	return in
}

var (
	waterCopy = trendCopy{
		resource:         "Water",
		audience:         everyone,
		normalHeadline:   "Water usage is stable.",
		normalAction:     "Maintain current monitoring.",
		normalImpact:     "Conservation goals met.",
		warningHeadline:  "Water usage rising.",
		warningInsight:   "Rising trends in: %s.",
		warningAction:    "Inspect taps in: %s.",
		criticalHeadline: "Abnormal water spike detected!",
		criticalInsight:  "Significant spikes in: %s.",
		criticalAction:   "Check pipelines in: %s.",
		abnormalImpact:   "Potential leakage or overuse detected.",
	}
	foodCopy = trendCopy{
		resource:         "Food",
		audience:         staffOnly,
		normalHeadline:   "Food waste minimized.",
		normalInsight:    "Waste levels are within acceptable limits.",
		normalAction:     "Keep it up.",
		normalImpact:     "Efficient kitchen operations.",
		warningHeadline:  "Food waste rising.",
		warningInsight:   "Slight increase in: %s.",
		warningAction:    "Monitor serving sizes in: %s.",
		criticalHeadline: "High food wastage.",
		criticalInsight:  "Excessive waste in: %s.",
		criticalAction:   "Adjust procurement for: %s.",
		abnormalImpact:   "Wasted meals and increased costs.",
	}
	electricityCopy = trendCopy{
		resource:         "Electricity",
		audience:         staffOnly,
		normalHeadline:   "Electricity usage optimized.",
		normalInsight:    "Consumption matches expected baselines.",
		normalAction:     "No action needed.",
		normalImpact:     "Carbon footprint reduced.",
		warningHeadline:  "Power usage rising.",
		warningInsight:   "Above average in: %s.",
		warningAction:    "Audit appliances in: %s.",
		criticalHeadline: "Power consumption spike.",
		criticalInsight:  "High usage in: %s.",
		criticalAction:   "Check AC/Lighting in: %s.",
		abnormalImpact:   "Higher electricity bill expected.",
	}
)

// BuildInsights turns the weekly trends and library occupancy into the
// campus board, sustainability score first. The library insight is omitted
// when no library has seats.
func BuildInsights(trends models.UsageTrends, libraries []models.Library) []models.Insight {
	water := waterCopy
	water.normalInsight = fmt.Sprintf("Total Campus Usage: %.0fL (Avg: %.0fL).", trends.WaterLatestTotal, trends.WaterAverageSum)

	board := []models.Insight{
		water.build(trends.Water),
		foodCopy.build(trends.FoodWaste),
		electricityCopy.build(trends.Electricity),
	}
	if lib, ok := libraryInsight(libraries); ok {
		board = append(board, lib)
	}

	score := SustainabilityScore(trends.Water.Status(), trends.FoodWaste.Status(), trends.Electricity.Status())
	summary := models.Insight{
		Headline: fmt.Sprintf("Campus Sustainability Score: %d/100", score),
		Resource: "Sustainability",
		Impact:   "Tracks overall campus efficiency.",
		Audience: everyone,
	}
	switch {
	case score > 80:
		summary.Status = models.InsightNormal
	case score > 60:
		summary.Status = models.InsightWarning
	default:
		summary.Status = models.InsightCritical
	}
	if score > 80 {
		summary.Insight = "Excellent eco-friendly operations."
		summary.SuggestedAction = "Promote success on social media."
	} else {
		summary.Insight = "Multiple resources exceeding limits."
		summary.SuggestedAction = "Review critical alerts below."
	}
	return append([]models.Insight{summary}, board...)
}

func libraryInsight(libraries []models.Library) (models.Insight, bool) {
	var total, booked int
	for _, l := range libraries {
		total += l.TotalSeats
		booked += l.BookedSeats
	}
	if total <= 0 {
		return models.Insight{}, false
	}
	occupancy := float64(booked) / float64(total) * 100
	in := models.Insight{
		Resource:        "Library",
		Status:          models.InsightNormal,
		Headline:        "Library study environment optimal.",
		Insight:         fmt.Sprintf("Occupancy at %.0f%% (%d/%d seats).", occupancy, booked, total),
		Impact:          "Student productivity affected.",
		SuggestedAction: "Check AC levels.",
		Audience:        studyReaders,
	}
	switch {
	case occupancy > occupancyCritical:
		in.Status = models.InsightCritical
		in.Headline = "Library Overcrowded."
		in.SuggestedAction = "Open seminar halls for study."
	case occupancy > occupancyWarning:
		in.Status = models.InsightWarning
		in.Headline = "Library nearing capacity."
	}
	return in, true
}

// FilterInsights keeps the insights written for audience. An empty audience
// keeps everything.
func FilterInsights(insights []models.Insight, audience models.InsightAudience) []models.Insight {
	if audience == "" {
		return insights
	}
	out := make([]models.Insight, 0, len(insights))
	for _, in := range insights {
		if in.VisibleTo(audience) {
			out = append(out, in)
		}
	}
	return out
}
