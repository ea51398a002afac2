package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/xraph/treasury/trace"
)

// RiskLevel buckets the overall risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Risk factor types.
const (
	FactorAmount    = "amount"
	FactorFrequency = "frequency"
	FactorStatus    = "status"
	FactorPattern   = "pattern"
)

const (
	riskWeight         = 0.25
	riskZ              = 2.0
	riskSevereZ        = 3.0
	failureRiskRatio   = 0.10
	suspiciousSeverity = 0.8
)

// RiskFactor is one observation contributing to the risk score.
type RiskFactor struct {
	Type        string  `json:"factor_type"`
	Description string  `json:"description"`
	Severity    float64 `json:"severity"`
}

// RiskReport scores a trace slice on four components, each in [0, 1].
type RiskReport struct {
	Score         float64      `json:"risk_score"`
	Level         RiskLevel    `json:"risk_level"`
	AmountRisk    float64      `json:"amount_risk"`
	FrequencyRisk float64      `json:"frequency_risk"`
	StatusRisk    float64      `json:"status_risk"`
	PatternRisk   float64      `json:"pattern_risk"`
	Factors       []RiskFactor `json:"risk_factors"`
	// SuspiciousPatterns are the factors with severity >= 0.8.
	SuspiciousPatterns []RiskFactor `json:"suspicious_patterns"`
}

// LevelFor maps a score to its level.
func LevelFor(score float64) RiskLevel {
	switch {
	case score >= 0.8:
		return RiskHigh
	case score >= 0.5:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Risk scores traces:
//   - amount: +0.25 per amount with |z| > 2
//   - frequency: +0.25 per inter-arrival gap with |z| > 2
//   - status: +0.25 when more than 10% of traces Failed
//   - pattern: +0.25 per operation making up less than 5% of traces
//
// The score is the mean of the four clamped components.
func Risk(traces []*trace.Trace) RiskReport {
	report := RiskReport{
		Level:              RiskLow,
		Factors:            []RiskFactor{},
		SuspiciousPatterns: []RiskFactor{},
	}
	if len(traces) == 0 {
		return report
	}

	amounts := amountsOf(traces)
	m, sd := mean(amounts), stddev(amounts)
	for i, x := range amounts {
		z := math.Abs(zscore(x, m, sd))
		if z > riskZ {
			report.AmountRisk += riskWeight
			report.add(FactorAmount, fmt.Sprintf("Unusual amount: %s", traces[i].Amount()), severityFor(z))
		}
	}

	g := gaps(chronological(traces))
	gm, gsd := mean(g), stddev(g)
	for _, x := range g {
		z := math.Abs(zscore(x, gm, gsd))
		if z > riskZ {
			report.FrequencyRisk += riskWeight
			report.add(FactorFrequency, fmt.Sprintf("Unusual time gap: %.0f seconds", x), severityFor(z))
		}
	}

	n := len(traces)
	failed := 0
	opCounts := make(map[string]int)
	for _, t := range traces {
		if t.Status() == trace.StatusFailed {
			failed++
		}
		opCounts[operationKey(t)]++
	}
	if r := ratio(failed, n); r > failureRiskRatio {
		report.StatusRisk += riskWeight
		report.add(FactorStatus, fmt.Sprintf("High failure rate: %.1f%%", r*100), r)
	}

	ops := make([]string, 0, len(opCounts))
	for op := range opCounts {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		if r := ratio(opCounts[op], n); r < rareOperationRatio {
			report.PatternRisk += riskWeight
			report.add(FactorPattern, fmt.Sprintf("Rare operation: %s (%.1f%%)", op, r*100), 1-r)
		}
	}

	report.AmountRisk = clamp01(report.AmountRisk)
	report.FrequencyRisk = clamp01(report.FrequencyRisk)
	report.StatusRisk = clamp01(report.StatusRisk)
	report.PatternRisk = clamp01(report.PatternRisk)
	report.Score = (report.AmountRisk + report.FrequencyRisk + report.StatusRisk + report.PatternRisk) / 4
	report.Level = LevelFor(report.Score)

	return report
}

func (r *RiskReport) add(kind, description string, severity float64) {
	f := RiskFactor{Type: kind, Description: description, Severity: severity}
	r.Factors = append(r.Factors, f)
	if severity >= suspiciousSeverity {
		r.SuspiciousPatterns = append(r.SuspiciousPatterns, f)
	}
}

func severityFor(z float64) float64 {
	if z > riskSevereZ {
		return 0.8
	}
	return 0.5
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
