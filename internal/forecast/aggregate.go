// Package forecast collapses raw 3-hour forecast samples into daily summaries.
package forecast

import (
	"sort"
	"strings"
	"time"

	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/weather"
)

// maxDays caps the number of summarized days.
const maxDays = 5

type dayAgg struct {
	high      float64
	low       float64
	condition string // first sample's condition, not re-evaluated
}

// Aggregate groups samples by calendar day in loc, excluding now's calendar
// day, and returns at most 5 summaries in ascending date order. For each day
// the high is the max of sample highs, the low the min of sample lows, and
// the icon comes from the day's first sample.
func Aggregate(samples []models.ForecastSample, now time.Time, loc *time.Location) []models.DailySummary {
	if loc == nil {
		loc = time.Local
	}
	today := startOfDay(now.In(loc))

	days := make(map[time.Time]*dayAgg)
	for _, s := range samples {
		day := startOfDay(s.Time.In(loc))
		if !day.After(today) {
			continue
		}
		agg, ok := days[day]
		if !ok {
			days[day] = &dayAgg{
				high:      s.High,
				low:       s.Low,
				condition: s.Condition,
			}
			continue
		}
		if s.High > agg.high {
			agg.high = s.High
		}
		if s.Low < agg.low {
			agg.low = s.Low
		}
	}

	keys := make([]time.Time, 0, len(days))
	for day := range days {
		keys = append(keys, day)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	if len(keys) > maxDays {
		keys = keys[:maxDays]
	}

	out := make([]models.DailySummary, 0, len(keys))
	for _, day := range keys {
		agg := days[day]
		out = append(out, models.DailySummary{
			Day:  strings.ToUpper(day.Format("Mon")),
			High: agg.high,
			Low:  agg.low,
			Icon: weather.IconFor(agg.condition),
		})
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
