package analytics

import (
	"fmt"
	"sort"

	"github.com/xraph/treasury/internal/calendar"
	"github.com/xraph/treasury/trace"
)

const peakCount = 3

// TimePatternReport counts traces along several calendar axes.
type TimePatternReport struct {
	Hourly  map[string]int `json:"hourly_distribution"`  // "00".."23"
	Daily   map[string]int `json:"daily_distribution"`   // "2024-03-01"
	Weekly  map[string]int `json:"weekly_distribution"`  // weekday name
	Monthly map[string]int `json:"monthly_distribution"` // "2024-03"
	// PeakHours and PeakDays are the three busiest hourly and daily keys,
	// busiest first, ties broken by key.
	PeakHours []string `json:"peak_hours"`
	PeakDays  []string `json:"peak_days"`
}

// TimePatterns computes the time pattern report of traces.
func TimePatterns(traces []*trace.Trace) TimePatternReport {
	report := TimePatternReport{
		Hourly:  make(map[string]int),
		Daily:   make(map[string]int),
		Weekly:  make(map[string]int),
		Monthly: make(map[string]int),
	}

	for _, t := range traces {
		sec := t.CreatedAt.Unix()
		d := calendar.FromUnix(sec)
		report.Hourly[fmt.Sprintf("%02d", d.Hour)]++
		report.Daily[calendar.Day.Key(sec)]++
		report.Weekly[d.WeekdayName()]++
		report.Monthly[calendar.Month.Key(sec)]++
	}

	report.PeakHours = peaks(report.Hourly, peakCount)
	report.PeakDays = peaks(report.Daily, peakCount)
	return report
}

// peaks returns up to n keys of counts with the highest values.
func peaks(counts map[string]int, n int) []string {
	keys := sortedKeys(counts)
	sort.SliceStable(keys, func(i, j int) bool { return counts[keys[i]] > counts[keys[j]] })
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
