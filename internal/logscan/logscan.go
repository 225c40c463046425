// Package logscan walks raw log text line by line, tagging lines against
// fixed pattern categories and pulling out timestamps. The output feeds
// the chat pipeline (as the file-attached signal) and the analyze API.
package logscan

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Severity counts per scan.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
)

// maxSamplesPerCategory bounds how many matching lines are kept.
const maxSamplesPerCategory = 5

var categoryPatterns = map[string]*regexp.Regexp{
	"error":          regexp.MustCompile(`(?i)\b(error|err|exception|fatal)\b`),
	"warning":        regexp.MustCompile(`(?i)\b(warning|warn)\b`),
	"critical":       regexp.MustCompile(`(?i)\b(critical|crit|emergency|panic)\b`),
	"timeout":        regexp.MustCompile(`(?i)\b(timeout|timed out)\b`),
	"connection":     regexp.MustCompile(`(?i)\b(connection|connect|refused|disconnect)\b`),
	"memory":         regexp.MustCompile(`(?i)\b(memory|oom|out of memory|heap)\b`),
	"disk":           regexp.MustCompile(`(?i)\b(disk|space|storage|filesystem)\b`),
	"network":        regexp.MustCompile(`(?i)\b(network|dns|unreachable|packet)\b`),
	"database":       regexp.MustCompile(`(?i)\b(database|db|sql|query|deadlock)\b`),
	"authentication": regexp.MustCompile(`(?i)\b(auth|login|password|unauthorized|forbidden)\b`),
}

var timestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`\w{3}\s+\d{1,2} \d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2}`),
}

// Report is the aggregate result of one scan.
type Report struct {
	TotalLines      int                 `json:"total_lines"`
	CriticalCount   int                 `json:"critical_count"`
	ErrorCount      int                 `json:"error_count"`
	WarningCount    int                 `json:"warning_count"`
	Categories      map[string][]string `json:"categories"`
	FirstTimestamp  string              `json:"first_timestamp,omitempty"`
	LastTimestamp   string              `json:"last_timestamp,omitempty"`
	Recommendations []string            `json:"recommendations"`
	Summary         string              `json:"summary"`
}

// Scan analyzes raw log content. It never fails; empty input yields an
// empty report.
func Scan(content string) Report {
	report := Report{Categories: map[string][]string{}}
	if strings.TrimSpace(content) == "" {
		report.Summary = "No log content to analyze."
		report.Recommendations = []string{"Provide a non-empty log file."}
		return report
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		report.TotalLines++

		switch lineSeverity(line) {
		case SeverityCritical:
			report.CriticalCount++
		case SeverityError:
			report.ErrorCount++
		case SeverityWarning:
			report.WarningCount++
		}

		for category, pattern := range categoryPatterns {
			if pattern.MatchString(line) {
				if len(report.Categories[category]) < maxSamplesPerCategory {
					report.Categories[category] = append(report.Categories[category], strings.TrimSpace(line))
				}
			}
		}

		if ts := extractTimestamp(line); ts != "" {
			if report.FirstTimestamp == "" {
				report.FirstTimestamp = ts
			}
			report.LastTimestamp = ts
		}
	}

	report.Recommendations = recommendations(report)
	report.Summary = summarize(report)
	return report
}

// lineSeverity returns the highest severity the line matches. Critical
// outranks error outranks warning.
func lineSeverity(line string) string {
	switch {
	case categoryPatterns["critical"].MatchString(line):
		return SeverityCritical
	case categoryPatterns["error"].MatchString(line):
		return SeverityError
	case categoryPatterns["warning"].MatchString(line):
		return SeverityWarning
	default:
		return ""
	}
}

func extractTimestamp(line string) string {
	for _, pattern := range timestampPatterns {
		if match := pattern.FindString(line); match != "" {
			return match
		}
	}
	return ""
}

func recommendations(report Report) []string {
	var recs []string
	if report.CriticalCount > 0 {
		recs = append(recs, "Critical entries found - investigate immediately and check service availability")
	}
	if report.ErrorCount > 10 {
		recs = append(recs, "High error volume - consider checking recent deployments or configuration changes")
	}

	byCategory := map[string]string{
		"memory":         "Memory issues detected - check usage with free -h and look for leaks",
		"disk":           "Disk issues detected - check space with df -h and clean up old files",
		"connection":     "Connection issues detected - verify services are running and ports are open",
		"timeout":        "Timeouts detected - check network latency and server load",
		"network":        "Network issues detected - verify DNS resolution and routing",
		"database":       "Database issues detected - check database service status and slow queries",
		"authentication": "Authentication issues detected - review access logs for repeated failures",
	}
	for _, category := range sortedCategories(report.Categories) {
		if rec, ok := byCategory[category]; ok {
			recs = append(recs, rec)
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "No significant issues detected - logs look healthy")
	}
	return recs
}

func summarize(report Report) string {
	span := ""
	if report.FirstTimestamp != "" {
		span = fmt.Sprintf(" spanning %s to %s", report.FirstTimestamp, report.LastTimestamp)
	}
	return fmt.Sprintf("Analyzed %d lines%s: %d critical, %d errors, %d warnings across %d categories.",
		report.TotalLines, span, report.CriticalCount, report.ErrorCount,
		report.WarningCount, len(report.Categories))
}

func sortedCategories(categories map[string][]string) []string {
	keys := make([]string, 0, len(categories))
	for k := range categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
