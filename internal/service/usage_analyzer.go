package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/campus-ops-api/internal/models"
)

// Per-resident daily baselines and the floor applied to small hostels.
const (
	waterPerResident       = 135.0
	electricityPerResident = 5.0
	foodWastePerResident   = 0.1

	waterFloor       = 500.0
	electricityFloor = 20.0
	foodWasteFloor   = 2.0

	highThresholdPercent   = 30.0
	mediumThresholdPercent = 10.0
	insightFactor          = 1.2
)

// UsageFinding is one resource reading over its ceiling.
type UsageFinding struct {
	Resource string
	Unit     string
	Severity models.Severity
	Percent  float64
	Actual   float64
	Limit    float64
	Message  string
}

// AlertType is the alert category recorded for the finding.
func (f UsageFinding) AlertType() string {
	return "Analysis: " + f.Resource
}

// UsageCeilings returns the expected daily limits for a hostel.
func UsageCeilings(residents int) models.UsageReading {
	n := float64(residents)
	return models.UsageReading{
		Water:       math.Max(n*waterPerResident, waterFloor),
		Electricity: math.Max(n*electricityPerResident, electricityFloor),
		FoodWaste:   math.Max(n*foodWastePerResident, foodWasteFloor),
	}
}

// AnalyzeUsage compares a reading to the hostel's ceilings. Readings more than
// 30% over are High, more than 10% over Medium; the rest yield nothing.
func AnalyzeUsage(hostel string, residents int, reading models.UsageReading) []UsageFinding {
	limits := UsageCeilings(residents)
	checks := []struct {
		resource, unit string
		actual, limit  float64
	}{
		{"Water", "L", reading.Water, limits.Water},
		{"Electricity", "kWh", reading.Electricity, limits.Electricity},
		{"Food Waste", "kg", reading.FoodWaste, limits.FoodWaste},
	}

	var findings []UsageFinding
	for _, c := range checks {
		percent := (c.actual - c.limit) / c.limit * 100
		f := UsageFinding{Resource: c.resource, Unit: c.unit, Percent: percent, Actual: c.actual, Limit: c.limit}
		current := formatQuantity(c.actual) + c.unit
		limit := fmt.Sprintf("%.0f%s", math.Round(c.limit), c.unit)
		switch {
		case percent > highThresholdPercent:
			f.Severity = models.SeverityHigh
			f.Message = fmt.Sprintf("CRITICAL: %s - %s usage is %.1f%% above expected limit based on %d residents. Current: %s (Limit: %s).",
				hostel, c.resource, percent, residents, current, limit)
		case percent > mediumThresholdPercent:
			f.Severity = models.SeverityMedium
			f.Message = fmt.Sprintf("WARNING: %s - %s usage is %.1f%% above expected limit based on residents. Current: %s (Limit: %s).",
				hostel, c.resource, percent, current, limit)
		default:
			continue
		}
		findings = append(findings, f)
	}
	return findings
}

// UsageInsight summarises water and electricity readings more than 20% over
// their ceilings. It returns "" when nothing stands out.
func UsageInsight(residents int, reading models.UsageReading) string {
	limits := UsageCeilings(residents)
	var parts []string
	if reading.Water > limits.Water*insightFactor {
		percent := math.Round((reading.Water - limits.Water) / limits.Water * 100)
		parts = append(parts, fmt.Sprintf("High Water Usage (+%.0f%% above limit for %d residents)", percent, residents))
	}
	if reading.Electricity > limits.Electricity*insightFactor {
		percent := math.Round((reading.Electricity - limits.Electricity) / limits.Electricity * 100)
		parts = append(parts, fmt.Sprintf("High Electricity (+%.0f%% above limit)", percent))
	}
	return strings.Join(parts, ", ")
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
