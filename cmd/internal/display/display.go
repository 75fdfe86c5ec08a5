// Package display formats scan reports for the terminal.
package display

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/moodlesec/moodlescan/pkg/auth/common"
)

// ColorSeverity returns a colorized severity label
func ColorSeverity(severity common.Severity) string {
	switch severity {
	case common.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprint("CRITICAL")
	case common.SeverityHigh:
		return color.New(color.FgRed).Sprint("HIGH")
	case common.SeverityMedium:
		return color.New(color.FgYellow).Sprint("MEDIUM")
	case common.SeverityInfo:
		return color.New(color.FgWhite).Sprint("INFO")
	default:
		return string(severity)
	}
}

// CountBySeverity tallies findings per severity level
func CountBySeverity(findings []common.Finding) map[common.Severity]int {
	counts := make(map[common.Severity]int)
	for _, finding := range findings {
		counts[finding.Severity]++
	}
	return counts
}

// RenderReport prints a full report: vulnerabilities first, then the
// informational notes, then a severity summary line.
func RenderReport(target string, report *common.Report) {
	header := color.New(color.Bold)
	header.Printf("\nAuthentication scan results for %s\n", target)
	fmt.Println()

	if len(report.Vulnerabilities) == 0 {
		color.New(color.FgGreen).Println("No vulnerabilities found.")
	}

	for _, finding := range report.Vulnerabilities {
		fmt.Printf("%s - %s\n", ColorSeverity(finding.Severity), finding.Title)
		if finding.CVE != "" {
			fmt.Printf("  CVE: %s\n", finding.CVE)
		}
		if finding.Description != "" {
			fmt.Printf("  %s\n", finding.Description)
		}
		if finding.Evidence != "" {
			fmt.Printf("  Evidence: %s\n", finding.Evidence)
		}
		if finding.Remediation != "" {
			fmt.Printf("  Remediation: %s\n", finding.Remediation)
		}
		for _, ref := range finding.References {
			fmt.Printf("  Reference: %s\n", ref)
		}
		fmt.Println()
	}

	for _, note := range report.Info {
		fmt.Printf("%s - %s\n", ColorSeverity(note.Severity), note.Title)
		if note.Description != "" {
			fmt.Printf("  %s\n", note.Description)
		}
	}

	counts := CountBySeverity(report.Vulnerabilities)
	fmt.Printf("\nSummary: %d critical, %d high, %d medium\n",
		counts[common.SeverityCritical],
		counts[common.SeverityHigh],
		counts[common.SeverityMedium])
}
